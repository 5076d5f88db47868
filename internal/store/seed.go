// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"
)

// DemoProjectSlug is the slug of the project created by Seed.
const DemoProjectSlug = "demo"

// SeedParams controls initial data creation.
type SeedParams struct {
	AdminEmail   string
	PasswordHash string
	AdminName    string
	// Settings are written into the demo project, keyed by category.
	Settings map[string][]UpsertSiteSettingParams
}

// Seed creates the master user and a demo project when the database has no users.
func Seed(ctx context.Context, db *sql.DB, p SeedParams) error {
	queries := New(db)

	count, err := queries.CountUsers(ctx)
	if err != nil {
		return fmt.Errorf("counting users: %w", err)
	}
	if count > 0 {
		slog.Info("users already exist, skipping seed")
		return nil
	}

	return InTx(ctx, db, func(q *Queries) error {
		now := time.Now().UTC()
		user, err := q.CreateUser(ctx, CreateUserParams{
			Email:        p.AdminEmail,
			PasswordHash: p.PasswordHash,
			Name:         p.AdminName,
			CreatedAt:    now,
			UpdatedAt:    now,
		})
		if err != nil {
			return fmt.Errorf("creating admin user: %w", err)
		}
		if _, err := q.UpsertProfile(ctx, UpsertProfileParams{
			UserID:      user.ID,
			DisplayName: p.AdminName,
			UpdatedAt:   now,
		}); err != nil {
			return fmt.Errorf("creating admin profile: %w", err)
		}
		if err := q.AddUserRole(ctx, AddUserRoleParams{UserID: user.ID, Role: "master", CreatedAt: now}); err != nil {
			return fmt.Errorf("granting master role: %w", err)
		}

		_, err = q.GetProjectBySlug(ctx, DemoProjectSlug)
		if err == nil {
			return nil
		}
		if !errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("checking demo project: %w", err)
		}

		project, err := q.CreateProject(ctx, CreateProjectParams{
			Name:        "Demo Conference",
			Slug:        DemoProjectSlug,
			Description: "Sample event microsite",
			IsActive:    true,
			OwnerID:     user.ID,
			CreatedAt:   now,
			UpdatedAt:   now,
		})
		if err != nil {
			return fmt.Errorf("creating demo project: %w", err)
		}
		if _, err := q.AddProjectMember(ctx, AddProjectMemberParams{
			ProjectID: project.ID,
			UserID:    user.ID,
			Role:      "owner",
			CreatedAt: now,
			UpdatedAt: now,
		}); err != nil {
			return fmt.Errorf("adding demo owner: %w", err)
		}

		for _, rows := range p.Settings {
			for _, row := range rows {
				row.ProjectID = project.ID
				row.UpdatedBy = sql.NullInt64{Int64: user.ID, Valid: true}
				row.UpdatedAt = now
				if err := q.UpsertSiteSetting(ctx, row); err != nil {
					return fmt.Errorf("seeding setting %s: %w", row.Key, err)
				}
			}
		}

		slog.Info("seeded master user and demo project",
			"user_id", user.ID,
			"email", user.Email,
			"project", project.Slug)
		return nil
	})
}
