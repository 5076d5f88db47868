// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

// Package testutil provides shared test helpers: migrated databases,
// quiet loggers and small fixtures.
package testutil

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/olegiv/evsite-go/internal/model"
	"github.com/olegiv/evsite-go/internal/store"
)

// TestLogger returns a logger that only prints warnings and errors.
func TestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))
}

// DiscardLogger returns a logger that drops everything.
func DiscardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// TestDB opens a migrated database in a temporary file. It is closed when
// the test ends.
func TestDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := store.NewDB(filepath.Join(t.TempDir(), "evsite-test.db"))
	if err != nil {
		t.Fatalf("NewDB: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	if err := store.Migrate(db); err != nil {
		t.Fatalf("Migrate: %v", err)
	}
	return db
}

var seq atomic.Int64

// CreateUser inserts a user with the given app roles. The password hash is
// a placeholder; use auth.HashPassword where logins are tested.
func CreateUser(t *testing.T, db *sql.DB, email string, roles ...string) store.User {
	t.Helper()
	ctx := context.Background()
	q := store.New(db)
	now := time.Now().UTC()

	if email == "" {
		email = fmt.Sprintf("user%d@example.com", seq.Add(1))
	}
	user, err := q.CreateUser(ctx, store.CreateUserParams{
		Email:        email,
		PasswordHash: "x",
		Name:         "Test User",
		CreatedAt:    now,
		UpdatedAt:    now,
	})
	if err != nil {
		t.Fatalf("CreateUser: %v", err)
	}
	for _, role := range roles {
		if err := q.AddUserRole(ctx, store.AddUserRoleParams{UserID: user.ID, Role: role, CreatedAt: now}); err != nil {
			t.Fatalf("AddUserRole: %v", err)
		}
	}
	return user
}

// CreateProject inserts an active project owned by ownerID.
func CreateProject(t *testing.T, db *sql.DB, slug string, ownerID int64) store.Project {
	t.Helper()
	ctx := context.Background()
	q := store.New(db)
	now := time.Now().UTC()

	project, err := q.CreateProject(ctx, store.CreateProjectParams{
		Name:      "Project " + slug,
		Slug:      slug,
		IsActive:  true,
		OwnerID:   ownerID,
		CreatedAt: now,
		UpdatedAt: now,
	})
	if err != nil {
		t.Fatalf("CreateProject: %v", err)
	}
	AddMember(t, db, project.ID, ownerID, model.ProjectRoleOwner)
	return project
}

// AddMember adds userID to a project with role.
func AddMember(t *testing.T, db *sql.DB, projectID, userID int64, role string) {
	t.Helper()
	now := time.Now().UTC()
	if _, err := store.New(db).AddProjectMember(context.Background(), store.AddProjectMemberParams{
		ProjectID: projectID,
		UserID:    userID,
		Role:      role,
		CreatedAt: now,
		UpdatedAt: now,
	}); err != nil {
		t.Fatalf("AddProjectMember: %v", err)
	}
}

// Identity builds the identity of a stored user.
func Identity(user store.User, roles ...string) *model.Identity {
	return &model.Identity{UserID: user.ID, Email: user.Email, Name: user.Name, Roles: roles}
}
