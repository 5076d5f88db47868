// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package store

import (
	"context"
	"database/sql"
	"time"
)

const eventColumns = `id, level, category, message, user_id, project_id, metadata, ip_address, created_at`

func scanEvent(row interface{ Scan(...any) error }) (Event, error) {
	var i Event
	err := row.Scan(
		&i.ID,
		&i.Level,
		&i.Category,
		&i.Message,
		&i.UserID,
		&i.ProjectID,
		&i.Metadata,
		&i.IpAddress,
		&i.CreatedAt,
	)
	return i, err
}

const createEvent = `
INSERT INTO events (level, category, message, user_id, project_id, metadata, ip_address, created_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?)
RETURNING ` + eventColumns

type CreateEventParams struct {
	Level     string
	Category  string
	Message   string
	UserID    sql.NullInt64
	ProjectID sql.NullInt64
	Metadata  string
	IpAddress string
	CreatedAt time.Time
}

func (q *Queries) CreateEvent(ctx context.Context, arg CreateEventParams) (Event, error) {
	row := q.db.QueryRowContext(ctx, createEvent,
		arg.Level,
		arg.Category,
		arg.Message,
		arg.UserID,
		arg.ProjectID,
		arg.Metadata,
		arg.IpAddress,
		arg.CreatedAt,
	)
	return scanEvent(row)
}

// Empty Level and Category disable their filters.
const listEvents = `
SELECT ` + eventColumns + ` FROM events
WHERE (?1 = '' OR level = ?1) AND (?2 = '' OR category = ?2)
ORDER BY created_at DESC, id DESC
LIMIT ?3 OFFSET ?4`

type ListEventsParams struct {
	Level    string
	Category string
	Limit    int64
	Offset   int64
}

func (q *Queries) ListEvents(ctx context.Context, arg ListEventsParams) ([]Event, error) {
	rows, err := q.db.QueryContext(ctx, listEvents, arg.Level, arg.Category, arg.Limit, arg.Offset)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	items := []Event{}
	for rows.Next() {
		i, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}
	return items, rows.Err()
}

const countEvents = `SELECT COUNT(*) FROM events WHERE (?1 = '' OR level = ?1) AND (?2 = '' OR category = ?2)`

type CountEventsParams struct {
	Level    string
	Category string
}

func (q *Queries) CountEvents(ctx context.Context, arg CountEventsParams) (int64, error) {
	var count int64
	err := q.db.QueryRowContext(ctx, countEvents, arg.Level, arg.Category).Scan(&count)
	return count, err
}

const deleteOldEvents = `DELETE FROM events WHERE created_at < ?`

func (q *Queries) DeleteOldEvents(ctx context.Context, cutoff time.Time) (int64, error) {
	result, err := q.db.ExecContext(ctx, deleteOldEvents, cutoff)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}
