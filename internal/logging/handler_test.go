// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/olegiv/evsite-go/internal/model"
	"github.com/olegiv/evsite-go/internal/store"
	"github.com/olegiv/evsite-go/internal/testutil"
)

func listEvents(t *testing.T, q *store.Queries) []store.Event {
	t.Helper()
	events, err := q.ListEvents(context.Background(), store.ListEventsParams{Limit: 50})
	require.NoError(t, err)
	return events
}

func TestEventLogHandler_RecordsWarnAndAbove(t *testing.T) {
	db := testutil.TestDB(t)
	var buf bytes.Buffer
	logger := slog.New(NewEventLogHandler(slog.NewTextHandler(&buf, nil), db))

	logger.Info("server listening")
	logger.Warn("login failed", "email", "a@example.com")
	logger.Error("database connection failed", "host", "localhost", "port", 5432)

	events := listEvents(t, store.New(db))
	require.Len(t, events, 2)

	byLevel := map[string]store.Event{}
	for _, e := range events {
		byLevel[e.Level] = e
	}
	assert.Equal(t, model.EventCategoryAuth, byLevel[model.EventLevelWarning].Category)
	assert.Equal(t, model.EventCategorySystem, byLevel[model.EventLevelError].Category)

	var meta map[string]string
	require.NoError(t, json.Unmarshal([]byte(byLevel[model.EventLevelError].Metadata), &meta))
	assert.Equal(t, map[string]string{"host": "localhost", "port": "5432"}, meta)

	assert.Contains(t, buf.String(), "server listening", "inner handler still receives info")
}

func TestEventLogHandler_SpecialAttributes(t *testing.T) {
	db := testutil.TestDB(t)
	owner := testutil.CreateUser(t, db, "")
	project := testutil.CreateProject(t, db, "summit", owner.ID)

	logger := slog.New(NewEventLogHandler(slog.NewTextHandler(&bytes.Buffer{}, nil), db)).
		With(AttrProjectID, project.ID)
	logger.Warn("something odd", AttrCategory, model.EventCategoryWebhook, AttrUserID, owner.ID, AttrIP, "10.0.0.1", "note", `quote " here`)

	events := listEvents(t, store.New(db))
	require.Len(t, events, 1)
	e := events[0]
	assert.Equal(t, model.EventCategoryWebhook, e.Category)
	assert.Equal(t, project.ID, e.ProjectID.Int64)
	assert.True(t, e.ProjectID.Valid)
	assert.Equal(t, owner.ID, e.UserID.Int64)
	assert.Equal(t, "10.0.0.1", e.IpAddress)

	var meta map[string]string
	require.NoError(t, json.Unmarshal([]byte(e.Metadata), &meta))
	assert.Equal(t, `quote " here`, meta["note"])
	assert.NotContains(t, meta, AttrCategory)
}

func TestEventLogHandler_GroupsQualifyKeys(t *testing.T) {
	db := testutil.TestDB(t)
	logger := slog.New(NewEventLogHandler(slog.NewTextHandler(&bytes.Buffer{}, nil), db)).
		WithGroup("http").With("status", 500)
	logger.Error("handler failed", "path", "/x")

	events := listEvents(t, store.New(db))
	require.Len(t, events, 1)
	var meta map[string]string
	require.NoError(t, json.Unmarshal([]byte(events[0].Metadata), &meta))
	assert.Equal(t, map[string]string{"http.status": "500", "http.path": "/x"}, meta)
}

func TestEventLogHandler_CustomLevelAndQuietInner(t *testing.T) {
	db := testutil.TestDB(t)
	var buf bytes.Buffer
	inner := slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelError})
	logger := slog.New(NewEventLogHandlerWithLevel(inner, db, slog.LevelInfo))

	logger.Info("project created", "slug", "summit")

	events := listEvents(t, store.New(db))
	require.Len(t, events, 1)
	assert.Equal(t, model.EventLevelInfo, events[0].Level)
	assert.Equal(t, model.EventCategoryProject, events[0].Category)
	assert.Empty(t, buf.String())
}

func TestInferCategory(t *testing.T) {
	tests := []struct {
		msg  string
		want string
	}{
		{"Login failed", model.EventCategoryAuth},
		{"invalid bearer token", model.EventCategoryAuth},
		{"registration rejected", model.EventCategoryRegistration},
		{"webhook delivery failed", model.EventCategoryWebhook},
		{"failed to save settings", model.EventCategorySettings},
		{"project not found", model.EventCategoryProject},
		{"upload too large", model.EventCategoryMedia},
		{"cache unavailable", model.EventCategoryCache},
		{"rate limit exceeded", model.EventCategorySecurity},
		{"something else", model.EventCategorySystem},
	}
	for _, tt := range tests {
		t.Run(tt.msg, func(t *testing.T) {
			assert.Equal(t, tt.want, inferCategory(tt.msg))
		})
	}
}

type pathKey struct{}

func TestEventLogHandler_WithRequestPath(t *testing.T) {
	db := testutil.TestDB(t)
	h := NewEventLogHandler(slog.NewTextHandler(&bytes.Buffer{}, nil), db).
		WithRequestPath(func(ctx context.Context) string {
			p, _ := ctx.Value(pathKey{}).(string)
			return p
		})
	logger := slog.New(h)

	ctx := context.WithValue(context.Background(), pathKey{}, "/api/v1/projects/3")
	logger.WarnContext(ctx, "access denied", "category", model.EventCategorySecurity)

	events := listEvents(t, store.New(db))
	require.Len(t, events, 1)
	assert.Equal(t, model.EventCategorySecurity, events[0].Category)
	assert.JSONEq(t, `{"path":"/api/v1/projects/3"}`, events[0].Metadata)
}
