// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

// Package session configures cookie sessions backed by the sessions table.
package session

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"time"

	"github.com/alexedwards/scs/sqlite3store"
	"github.com/alexedwards/scs/v2"
)

// Session keys.
const (
	KeyUserID = "user_id"
	KeyEmail  = "email"
)

// Lifetime is the absolute session lifetime; IdleTimeout expires unused sessions sooner.
const (
	Lifetime    = 24 * time.Hour
	IdleTimeout = 2 * time.Hour
)

// New creates a session manager that stores sessions in db.
func New(db *sql.DB, isDev bool) *scs.SessionManager {
	sm := scs.New()
	sm.Store = sqlite3store.New(db)

	sm.Lifetime = Lifetime
	sm.IdleTimeout = IdleTimeout
	sm.Cookie.HttpOnly = true
	sm.Cookie.SameSite = http.SameSiteLaxMode
	sm.Cookie.Path = "/"
	sm.Cookie.Secure = !isDev
	if !isDev {
		// __Host- requires Secure, Path=/ and no Domain.
		sm.Cookie.Name = "__Host-session"
	}

	return sm
}

// Login renews the session token and binds it to the user.
func Login(ctx context.Context, sm *scs.SessionManager, userID int64, email string) error {
	if err := sm.RenewToken(ctx); err != nil {
		return fmt.Errorf("renewing session token: %w", err)
	}
	sm.Put(ctx, KeyUserID, userID)
	sm.Put(ctx, KeyEmail, email)
	return nil
}

// Logout destroys the session.
func Logout(ctx context.Context, sm *scs.SessionManager) error {
	return sm.Destroy(ctx)
}

// UserID returns the logged-in user, or 0.
func UserID(ctx context.Context, sm *scs.SessionManager) int64 {
	return sm.GetInt64(ctx, KeyUserID)
}
