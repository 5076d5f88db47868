// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/olegiv/evsite-go/internal/model"
	"github.com/olegiv/evsite-go/internal/store"
	"github.com/olegiv/evsite-go/internal/util"
)

// EventService writes and reads the audit log.
type EventService struct {
	queries *store.Queries
	logger  *slog.Logger
	now     func() time.Time
}

// NewEventService creates a new EventService.
func NewEventService(db *sql.DB, logger *slog.Logger) *EventService {
	if logger == nil {
		logger = slog.Default()
	}
	return &EventService{
		queries: store.New(db),
		logger:  logger,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// Entry is one audit log record. Zero UserID or ProjectID means none.
type Entry struct {
	Level     string
	Category  string
	Message   string
	UserID    int64
	ProjectID int64
	IP        string
	Metadata  map[string]any
}

// Log records e. An empty level defaults to info.
func (s *EventService) Log(ctx context.Context, e Entry) error {
	if e.Level == "" {
		e.Level = model.EventLevelInfo
	}
	meta := "{}"
	if len(e.Metadata) > 0 {
		if b, err := json.Marshal(e.Metadata); err == nil {
			meta = string(b)
		}
	}

	_, err := s.queries.CreateEvent(ctx, store.CreateEventParams{
		Level:     e.Level,
		Category:  e.Category,
		Message:   e.Message,
		UserID:    util.NullInt64FromPositive(e.UserID),
		ProjectID: util.NullInt64FromPositive(e.ProjectID),
		Metadata:  meta,
		IpAddress: e.IP,
		CreatedAt: s.now(),
	})
	if err != nil {
		s.logger.Error("failed to log event", "category", e.Category, "error", err)
		return fmt.Errorf("creating event: %w", err)
	}
	return nil
}

// LogInfo records an info event.
func (s *EventService) LogInfo(ctx context.Context, category, message string, userID int64, ip string, metadata map[string]any) error {
	return s.Log(ctx, Entry{Level: model.EventLevelInfo, Category: category, Message: message, UserID: userID, IP: ip, Metadata: metadata})
}

// LogWarning records a warning event.
func (s *EventService) LogWarning(ctx context.Context, category, message string, userID int64, ip string, metadata map[string]any) error {
	return s.Log(ctx, Entry{Level: model.EventLevelWarning, Category: category, Message: message, UserID: userID, IP: ip, Metadata: metadata})
}

// LogProjectEvent records an info event attached to a project.
func (s *EventService) LogProjectEvent(ctx context.Context, category, message string, userID, projectID int64, metadata map[string]any) error {
	return s.Log(ctx, Entry{Category: category, Message: message, UserID: userID, ProjectID: projectID, Metadata: metadata})
}

// EventFilter selects events for List. Empty fields match everything.
type EventFilter struct {
	Level    string
	Category string
	Limit    int
	Offset   int
}

// List returns a page of events, newest first, and the total count.
func (s *EventService) List(ctx context.Context, f EventFilter) ([]store.Event, int64, error) {
	limit, offset := clampPage(f.Limit, f.Offset)
	events, err := s.queries.ListEvents(ctx, store.ListEventsParams{
		Level:    f.Level,
		Category: f.Category,
		Limit:    limit,
		Offset:   offset,
	})
	if err != nil {
		return nil, 0, fmt.Errorf("listing events: %w", err)
	}
	total, err := s.queries.CountEvents(ctx, store.CountEventsParams{Level: f.Level, Category: f.Category})
	if err != nil {
		return nil, 0, fmt.Errorf("counting events: %w", err)
	}
	return events, total, nil
}

// DeleteOldEvents removes events older than olderThan.
func (s *EventService) DeleteOldEvents(ctx context.Context, olderThan time.Duration) (int64, error) {
	return s.queries.DeleteOldEvents(ctx, s.now().Add(-olderThan))
}
