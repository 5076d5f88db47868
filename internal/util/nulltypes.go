// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package util

import (
	"database/sql"
	"time"
)

// NullInt64FromPtr converts a pointer to int64 into sql.NullInt64.
func NullInt64FromPtr(ptr *int64) sql.NullInt64 {
	if ptr != nil {
		return sql.NullInt64{Int64: *ptr, Valid: true}
	}
	return sql.NullInt64{}
}

// NullInt64FromValue creates a valid sql.NullInt64 from an int64 value.
func NullInt64FromValue(val int64) sql.NullInt64 {
	return sql.NullInt64{Int64: val, Valid: true}
}

// NullInt64FromPositive returns a NullInt64 that is valid only for val > 0.
func NullInt64FromPositive(val int64) sql.NullInt64 {
	return sql.NullInt64{Int64: val, Valid: val > 0}
}

// NullStringFromValue returns a NullString that is valid only for non-empty s.
func NullStringFromValue(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

// NullTimeFromValue creates a valid sql.NullTime.
func NullTimeFromValue(t time.Time) sql.NullTime {
	return sql.NullTime{Time: t, Valid: true}
}

// PtrFromNullInt64 converts sql.NullInt64 back into a pointer, nil when invalid.
func PtrFromNullInt64(n sql.NullInt64) *int64 {
	if !n.Valid {
		return nil
	}
	v := n.Int64
	return &v
}

// PtrFromNullTime converts sql.NullTime into a pointer, nil when invalid.
func PtrFromNullTime(n sql.NullTime) *time.Time {
	if !n.Valid {
		return nil
	}
	v := n.Time
	return &v
}
