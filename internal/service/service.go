// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

// Package service holds the business logic behind the HTTP API: projects and
// their members, page settings, registrations, media, users and the audit log.
package service

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"time"

	"github.com/olegiv/evsite-go/internal/cache"
	"github.com/olegiv/evsite-go/internal/realtime"
	"github.com/olegiv/evsite-go/internal/store"
	"github.com/olegiv/evsite-go/internal/webhook"
)

// Errors shared by the services. The API maps each to a status code.
var (
	ErrNotFound           = errors.New("not found")
	ErrForbidden          = errors.New("access denied")
	ErrSlugTaken          = errors.New("slug is already in use")
	ErrEmailTaken         = errors.New("email is already registered")
	ErrAlreadyMember      = errors.New("user is already a member")
	ErrLastOwner          = errors.New("project must keep at least one owner")
	ErrProjectInactive    = errors.New("project is not active")
	ErrRegistrationClosed = errors.New("registration is closed")
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrSignupDisabled     = errors.New("sign-up is disabled")
	ErrUnknownCategory    = errors.New("unknown settings category")
)

// Default and maximum page sizes for list operations.
const (
	DefaultPageSize = 20
	MaxPageSize     = 100
)

// Deps bundles the collaborators shared by the services. Only DB is required;
// a nil Cache disables caching and nil Realtime or Webhooks disable those
// notifications.
type Deps struct {
	DB       *sql.DB
	Cache    *cache.Manager
	Realtime realtime.Publisher
	Webhooks webhook.Sender
	Logger   *slog.Logger
}

// base carries Deps plus a clock.
type base struct {
	Deps
	now func() time.Time
}

func newBase(d Deps) base {
	if d.Logger == nil {
		d.Logger = slog.Default()
	}
	return base{Deps: d, now: func() time.Time { return time.Now().UTC() }}
}

// publish announces a change of table for a project.
func (b *base) publish(ctx context.Context, table string, projectID int64, category, action string) {
	if b.Realtime == nil {
		return
	}
	b.Realtime.Publish(ctx, realtime.Change{
		Table:     table,
		ProjectID: projectID,
		Category:  category,
		Action:    action,
		At:        b.now(),
	})
}

// dispatch sends a webhook event. Failures are logged and not returned.
func (b *base) dispatch(ctx context.Context, eventType string, projectID int64, data any) {
	if b.Webhooks == nil {
		return
	}
	if err := b.Webhooks.Dispatch(ctx, webhook.NewEvent(eventType, projectID, data)); err != nil {
		b.Logger.Warn("webhook dispatch failed",
			"category", "webhook",
			"event", eventType,
			"project_id", projectID,
			"error", err)
	}
}

// notFound maps sql.ErrNoRows to ErrNotFound.
func notFound(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	return err
}

// slugConflict maps a lost race on the projects.slug UNIQUE constraint to
// ErrSlugTaken.
func slugConflict(err error) error {
	if store.IsUniqueViolation(err, "projects.slug") {
		return ErrSlugTaken
	}
	return err
}

// clampPage normalizes a limit/offset pair.
func clampPage(limit, offset int) (int64, int64) {
	if limit <= 0 {
		limit = DefaultPageSize
	}
	if limit > MaxPageSize {
		limit = MaxPageSize
	}
	if offset < 0 {
		offset = 0
	}
	return int64(limit), int64(offset)
}
