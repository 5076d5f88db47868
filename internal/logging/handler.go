// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

// Package logging provides an slog handler that mirrors warnings and errors
// into the events table, so operators can audit them from the API.
package logging

import (
	"context"
	"database/sql"
	"encoding/json"
	"log/slog"
	"strings"
	"time"

	"github.com/olegiv/evsite-go/internal/model"
	"github.com/olegiv/evsite-go/internal/store"
)

// Attribute keys with special meaning to the event log.
const (
	AttrCategory  = "category"
	AttrProjectID = "project_id"
	AttrUserID    = "user_id"
	AttrIP        = "ip"
)

// EventLogHandler wraps another handler and also records records at or
// above its level as events.
type EventLogHandler struct {
	inner   slog.Handler
	queries *store.Queries
	level   slog.Level
	attrs   []slog.Attr
	group   string
	pathFn  func(context.Context) string
}

// NewEventLogHandler records WARN and above.
func NewEventLogHandler(inner slog.Handler, db *sql.DB) *EventLogHandler {
	return NewEventLogHandlerWithLevel(inner, db, slog.LevelWarn)
}

// NewEventLogHandlerWithLevel records records at or above level.
func NewEventLogHandlerWithLevel(inner slog.Handler, db *sql.DB, level slog.Level) *EventLogHandler {
	return &EventLogHandler{
		inner:   inner,
		queries: store.New(db),
		level:   level,
	}
}

// WithRequestPath makes the handler store the request path returned by fn
// in each event's metadata.
func (h *EventLogHandler) WithRequestPath(fn func(context.Context) string) *EventLogHandler {
	c := h.clone()
	c.pathFn = fn
	return c
}

// Enabled implements slog.Handler.
func (h *EventLogHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.inner.Enabled(ctx, level) || level >= h.level
}

// Handle implements slog.Handler.
func (h *EventLogHandler) Handle(ctx context.Context, r slog.Record) error {
	var err error
	if h.inner.Enabled(ctx, r.Level) {
		err = h.inner.Handle(ctx, r)
	}
	if r.Level >= h.level {
		path := ""
		if h.pathFn != nil {
			path = h.pathFn(ctx)
		}
		h.record(r, path)
	}
	return err
}

// WithAttrs implements slog.Handler.
func (h *EventLogHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	c := h.clone()
	c.inner = h.inner.WithAttrs(attrs)
	for _, a := range attrs {
		c.attrs = append(c.attrs, h.qualify(a))
	}
	return c
}

// WithGroup implements slog.Handler.
func (h *EventLogHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	c := h.clone()
	c.inner = h.inner.WithGroup(name)
	if c.group == "" {
		c.group = name
	} else {
		c.group += "." + name
	}
	return c
}

func (h *EventLogHandler) clone() *EventLogHandler {
	return &EventLogHandler{
		inner:   h.inner,
		queries: h.queries,
		level:   h.level,
		attrs:   append([]slog.Attr(nil), h.attrs...),
		group:   h.group,
		pathFn:  h.pathFn,
	}
}

func (h *EventLogHandler) qualify(a slog.Attr) slog.Attr {
	if h.group != "" {
		a.Key = h.group + "." + a.Key
	}
	return a
}

// record writes r with a fresh context so cancelled requests still leave a trace.
func (h *EventLogHandler) record(r slog.Record, path string) {
	params := store.CreateEventParams{
		Level:     eventLevel(r.Level),
		Message:   r.Message,
		CreatedAt: r.Time.UTC(),
	}
	if params.CreatedAt.IsZero() {
		params.CreatedAt = time.Now().UTC()
	}

	meta := make(map[string]any)
	collect := func(a slog.Attr) {
		v := a.Value.Resolve()
		switch a.Key {
		case AttrCategory:
			params.Category = v.String()
		case AttrProjectID:
			if id, ok := int64Value(v); ok {
				params.ProjectID = sql.NullInt64{Int64: id, Valid: id > 0}
			}
		case AttrUserID:
			if id, ok := int64Value(v); ok {
				params.UserID = sql.NullInt64{Int64: id, Valid: id > 0}
			}
		case AttrIP:
			params.IpAddress = v.String()
		default:
			meta[a.Key] = v.String()
		}
	}
	for _, a := range h.attrs {
		collect(a)
	}
	r.Attrs(func(a slog.Attr) bool {
		collect(h.qualify(a))
		return true
	})

	if path != "" {
		meta["path"] = path
	}
	if params.Category == "" {
		params.Category = inferCategory(r.Message)
	}
	params.Metadata = "{}"
	if len(meta) > 0 {
		if b, err := json.Marshal(meta); err == nil {
			params.Metadata = string(b)
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_, _ = h.queries.CreateEvent(ctx, params)
}

func eventLevel(level slog.Level) string {
	switch {
	case level >= slog.LevelError:
		return model.EventLevelError
	case level >= slog.LevelWarn:
		return model.EventLevelWarning
	default:
		return model.EventLevelInfo
	}
}

func int64Value(v slog.Value) (int64, bool) {
	switch v.Kind() {
	case slog.KindInt64:
		return v.Int64(), true
	case slog.KindUint64:
		return int64(v.Uint64()), true
	default:
		return 0, false
	}
}

// inferCategory guesses a category from the message when none was given.
func inferCategory(msg string) string {
	msg = strings.ToLower(msg)
	switch {
	case strings.Contains(msg, "login") || strings.Contains(msg, "logout") || strings.Contains(msg, "auth") ||
		strings.Contains(msg, "token"):
		return model.EventCategoryAuth
	case strings.Contains(msg, "registration"):
		return model.EventCategoryRegistration
	case strings.Contains(msg, "webhook"):
		return model.EventCategoryWebhook
	case strings.Contains(msg, "setting") || strings.Contains(msg, "section"):
		return model.EventCategorySettings
	case strings.Contains(msg, "project"):
		return model.EventCategoryProject
	case strings.Contains(msg, "media") || strings.Contains(msg, "upload"):
		return model.EventCategoryMedia
	case strings.Contains(msg, "user") || strings.Contains(msg, "profile"):
		return model.EventCategoryUser
	case strings.Contains(msg, "cache"):
		return model.EventCategoryCache
	case strings.Contains(msg, "csrf") || strings.Contains(msg, "rate limit") || strings.Contains(msg, "blocked"):
		return model.EventCategorySecurity
	default:
		return model.EventCategorySystem
	}
}
