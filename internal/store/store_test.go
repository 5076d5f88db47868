// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"testing"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// testDB opens an in-memory database with all migrations applied.
func testDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := sql.Open("sqlite3", ":memory:?_foreign_keys=on")
	if err != nil {
		t.Fatalf("opening database: %v", err)
	}
	// A single connection keeps the in-memory database alive and shared.
	db.SetMaxOpenConns(1)

	if err := Migrate(db); err != nil {
		_ = db.Close()
		t.Fatalf("Migrate: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func createTestUser(t *testing.T, q *Queries, email string) User {
	t.Helper()
	now := time.Now().UTC()
	user, err := q.CreateUser(context.Background(), CreateUserParams{
		Email:        email,
		PasswordHash: "hash",
		Name:         "Test User",
		CreatedAt:    now,
		UpdatedAt:    now,
	})
	if err != nil {
		t.Fatalf("CreateUser: %v", err)
	}
	return user
}

func createTestProject(t *testing.T, q *Queries, slug string, ownerID int64) Project {
	t.Helper()
	now := time.Now().UTC()
	project, err := q.CreateProject(context.Background(), CreateProjectParams{
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
	return project
}

func TestCreateUser(t *testing.T) {
	q := New(testDB(t))

	user := createTestUser(t, q, "test@example.com")
	if user.ID == 0 {
		t.Error("user.ID should not be 0")
	}
	if user.Email != "test@example.com" {
		t.Errorf("Email = %q, want %q", user.Email, "test@example.com")
	}
}

func TestGetUserByEmail_CaseInsensitive(t *testing.T) {
	q := New(testDB(t))
	created := createTestUser(t, q, "find@example.com")

	found, err := q.GetUserByEmail(context.Background(), "FIND@Example.com")
	if err != nil {
		t.Fatalf("GetUserByEmail: %v", err)
	}
	if found.ID != created.ID {
		t.Errorf("ID = %d, want %d", found.ID, created.ID)
	}
}

func TestGetUserByEmail_NotFound(t *testing.T) {
	q := New(testDB(t))

	_, err := q.GetUserByEmail(context.Background(), "missing@example.com")
	if !errors.Is(err, sql.ErrNoRows) {
		t.Errorf("err = %v, want sql.ErrNoRows", err)
	}
}

func TestUserRoles(t *testing.T) {
	q := New(testDB(t))
	ctx := context.Background()
	user := createTestUser(t, q, "roles@example.com")
	now := time.Now().UTC()

	for _, role := range []string{"project_staff", "master", "master"} {
		if err := q.AddUserRole(ctx, AddUserRoleParams{UserID: user.ID, Role: role, CreatedAt: now}); err != nil {
			t.Fatalf("AddUserRole(%s): %v", role, err)
		}
	}

	roles, err := q.ListUserRoles(ctx, user.ID)
	if err != nil {
		t.Fatalf("ListUserRoles: %v", err)
	}
	if len(roles) != 2 || roles[0] != "master" || roles[1] != "project_staff" {
		t.Errorf("roles = %v, want [master project_staff]", roles)
	}

	if err := q.AddUserRole(ctx, AddUserRoleParams{UserID: user.ID, Role: "superuser", CreatedAt: now}); err == nil {
		t.Error("AddUserRole should reject unknown roles")
	}
}

func TestProjectSlugUnique(t *testing.T) {
	q := New(testDB(t))
	user := createTestUser(t, q, "owner@example.com")
	createTestProject(t, q, "summit", user.ID)

	now := time.Now().UTC()
	_, err := q.CreateProject(context.Background(), CreateProjectParams{
		Name: "Other", Slug: "summit", OwnerID: user.ID, CreatedAt: now, UpdatedAt: now,
	})
	if err == nil {
		t.Fatal("CreateProject with duplicate slug should fail")
	}
	if !IsUniqueViolation(err, "projects.slug") {
		t.Errorf("IsUniqueViolation(%v, projects.slug) = false", err)
	}
	if IsUniqueViolation(err, "users.email") {
		t.Error("violation reported for the wrong column")
	}
	if IsUniqueViolation(nil, "") || IsUniqueViolation(errors.New("disk I/O error"), "") {
		t.Error("non-constraint errors reported as violations")
	}

	count, err := q.ProjectSlugExists(context.Background(), "summit")
	if err != nil {
		t.Fatalf("ProjectSlugExists: %v", err)
	}
	if count != 1 {
		t.Errorf("count = %d, want 1", count)
	}
}

func TestProjectMembers(t *testing.T) {
	q := New(testDB(t))
	ctx := context.Background()
	owner := createTestUser(t, q, "owner@example.com")
	editor := createTestUser(t, q, "editor@example.com")
	project := createTestProject(t, q, "expo", owner.ID)
	now := time.Now().UTC()

	for _, m := range []struct {
		userID int64
		role   string
	}{{editor.ID, "editor"}, {owner.ID, "owner"}} {
		if _, err := q.AddProjectMember(ctx, AddProjectMemberParams{
			ProjectID: project.ID, UserID: m.userID, Role: m.role, CreatedAt: now, UpdatedAt: now,
		}); err != nil {
			t.Fatalf("AddProjectMember: %v", err)
		}
	}

	members, err := q.ListProjectMembers(ctx, project.ID)
	if err != nil {
		t.Fatalf("ListProjectMembers: %v", err)
	}
	if len(members) != 2 || members[0].Role != "owner" || members[1].Email != "editor@example.com" {
		t.Errorf("members = %+v", members)
	}

	owners, err := q.CountProjectOwners(ctx, project.ID)
	if err != nil {
		t.Fatalf("CountProjectOwners: %v", err)
	}
	if owners != 1 {
		t.Errorf("owners = %d, want 1", owners)
	}

	projects, err := q.ListProjectsForUser(ctx, ListProjectsForUserParams{UserID: editor.ID, Limit: 10})
	if err != nil {
		t.Fatalf("ListProjectsForUser: %v", err)
	}
	if len(projects) != 1 || projects[0].ID != project.ID {
		t.Errorf("projects = %+v", projects)
	}
}

func TestUpsertSiteSetting(t *testing.T) {
	q := New(testDB(t))
	ctx := context.Background()
	user := createTestUser(t, q, "owner@example.com")
	project := createTestProject(t, q, "fair", user.ID)
	now := time.Now().UTC()

	upsert := func(value string) {
		t.Helper()
		if err := q.UpsertSiteSetting(ctx, UpsertSiteSettingParams{
			ProjectID: project.ID,
			Category:  "home",
			Key:       "home_title",
			Value:     value,
			UpdatedAt: now,
		}); err != nil {
			t.Fatalf("UpsertSiteSetting: %v", err)
		}
	}
	upsert("first")
	upsert("second")

	rows, err := q.ListSiteSettings(ctx, ListSiteSettingsParams{ProjectID: project.ID, Category: "home"})
	if err != nil {
		t.Fatalf("ListSiteSettings: %v", err)
	}
	if len(rows) != 1 {
		t.Fatalf("len(rows) = %d, want 1", len(rows))
	}
	if rows[0].Value != "second" {
		t.Errorf("Value = %q, want %q", rows[0].Value, "second")
	}

	if err := q.DeleteSiteSetting(ctx, DeleteSiteSettingParams{ProjectID: project.ID, Key: "home_title"}); err != nil {
		t.Fatalf("DeleteSiteSetting: %v", err)
	}
	count, _ := q.CountSiteSettings(ctx, project.ID)
	if count != 0 {
		t.Errorf("count = %d, want 0", count)
	}
}

func TestRegistrationQueries(t *testing.T) {
	q := New(testDB(t))
	ctx := context.Background()
	user := createTestUser(t, q, "owner@example.com")
	project := createTestProject(t, q, "gala", user.ID)
	now := time.Now().UTC()

	people := []struct{ name, email, token string }{
		{"Ann Lee", "ann@example.com", "tok-1"},
		{"Bob Ray", "bob@example.com", "tok-2"},
		{"Ann Lee", "ANN@example.com", "tok-3"},
	}
	for i, p := range people {
		if _, err := q.CreateRegistration(ctx, CreateRegistrationParams{
			ProjectID:         project.ID,
			Name:              p.name,
			Email:             p.email,
			FormData:          "{}",
			PrivacyConsent:    true,
			Status:            "pending",
			VerificationToken: p.token,
			CreatedAt:         now.Add(time.Duration(i) * time.Second),
			UpdatedAt:         now,
		}); err != nil {
			t.Fatalf("CreateRegistration: %v", err)
		}
	}

	found, err := q.FindRegistrationsByEmail(ctx, FindRegistrationsByEmailParams{ProjectID: project.ID, Email: "ann@EXAMPLE.com"})
	if err != nil {
		t.Fatalf("FindRegistrationsByEmail: %v", err)
	}
	if len(found) != 2 {
		t.Errorf("len(found) = %d, want 2", len(found))
	}

	reg, err := q.GetRegistrationByToken(ctx, "tok-2")
	if err != nil {
		t.Fatalf("GetRegistrationByToken: %v", err)
	}
	updated, err := q.UpdateRegistrationStatus(ctx, UpdateRegistrationStatusParams{
		Status:      "cancelled",
		CancelledAt: sql.NullTime{Time: now, Valid: true},
		UpdatedAt:   now,
		ID:          reg.ID,
	})
	if err != nil {
		t.Fatalf("UpdateRegistrationStatus: %v", err)
	}
	if updated.Status != "cancelled" || !updated.CancelledAt.Valid {
		t.Errorf("updated = %+v", updated)
	}

	tests := []struct {
		name   string
		status string
		search string
		want   int64
	}{
		{"all", "", "", 3},
		{"pending", "pending", "", 2},
		{"cancelled", "cancelled", "", 1},
		{"search name", "", "ann", 2},
		{"search and status", "cancelled", "ann", 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			count, err := q.CountRegistrations(ctx, CountRegistrationsParams{
				ProjectID: project.ID, Status: tt.status, Search: tt.search,
			})
			if err != nil {
				t.Fatalf("CountRegistrations: %v", err)
			}
			if count != tt.want {
				t.Errorf("count = %d, want %d", count, tt.want)
			}
			list, err := q.ListRegistrations(ctx, ListRegistrationsParams{
				ProjectID: project.ID, Status: tt.status, Search: tt.search, Limit: 10,
			})
			if err != nil {
				t.Fatalf("ListRegistrations: %v", err)
			}
			if int64(len(list)) != tt.want {
				t.Errorf("len(list) = %d, want %d", len(list), tt.want)
			}
		})
	}

	byStatus, err := q.CountRegistrationsByStatus(ctx, project.ID)
	if err != nil {
		t.Fatalf("CountRegistrationsByStatus: %v", err)
	}
	if len(byStatus) != 2 {
		t.Errorf("byStatus = %+v", byStatus)
	}
}

func TestRegistrationSearchIsLiteral(t *testing.T) {
	q := New(testDB(t))
	ctx := context.Background()
	user := createTestUser(t, q, "owner@example.com")
	project := createTestProject(t, q, "fair", user.ID)
	now := time.Now().UTC()

	for i, name := range []string{"50% Off", "Fifty Off", "ann_lee", "annXlee", `back\slash`} {
		if _, err := q.CreateRegistration(ctx, CreateRegistrationParams{
			ProjectID:         project.ID,
			Name:              name,
			Email:             fmt.Sprintf("guest%d@example.com", i),
			FormData:          "{}",
			PrivacyConsent:    true,
			Status:            "pending",
			VerificationToken: fmt.Sprintf("lit-%d", i),
			CreatedAt:         now,
			UpdatedAt:         now,
		}); err != nil {
			t.Fatalf("CreateRegistration: %v", err)
		}
	}

	tests := []struct {
		search string
		want   int64
	}{
		{"%", 1},
		{"_", 1},
		{"ann_", 1},
		{`\`, 1},
		{"off", 2},
	}
	for _, tt := range tests {
		t.Run(tt.search, func(t *testing.T) {
			count, err := q.CountRegistrations(ctx, CountRegistrationsParams{ProjectID: project.ID, Search: tt.search})
			if err != nil {
				t.Fatalf("CountRegistrations: %v", err)
			}
			if count != tt.want {
				t.Errorf("count(%q) = %d, want %d", tt.search, count, tt.want)
			}
			list, err := q.ListRegistrations(ctx, ListRegistrationsParams{ProjectID: project.ID, Search: tt.search, Limit: 10})
			if err != nil {
				t.Fatalf("ListRegistrations: %v", err)
			}
			if int64(len(list)) != tt.want {
				t.Errorf("len(list(%q)) = %d, want %d", tt.search, len(list), tt.want)
			}
		})
	}
}

func TestDeleteProjectCascades(t *testing.T) {
	q := New(testDB(t))
	ctx := context.Background()
	user := createTestUser(t, q, "owner@example.com")
	project := createTestProject(t, q, "cascade", user.ID)
	now := time.Now().UTC()

	if err := q.UpsertSiteSetting(ctx, UpsertSiteSettingParams{
		ProjectID: project.ID, Category: "home", Key: "home_title", Value: "x", UpdatedAt: now,
	}); err != nil {
		t.Fatalf("UpsertSiteSetting: %v", err)
	}
	if err := q.DeleteProject(ctx, project.ID); err != nil {
		t.Fatalf("DeleteProject: %v", err)
	}

	count, err := q.CountSiteSettings(ctx, project.ID)
	if err != nil {
		t.Fatalf("CountSiteSettings: %v", err)
	}
	if count != 0 {
		t.Errorf("settings left after project delete: %d", count)
	}
}

func TestSeed(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()

	params := SeedParams{
		AdminEmail:   "admin@example.com",
		PasswordHash: "hash",
		AdminName:    "Admin",
		Settings: map[string][]UpsertSiteSettingParams{
			"home": {{Category: "home", Key: "home_title", Value: "Welcome"}},
		},
	}
	if err := Seed(ctx, db, params); err != nil {
		t.Fatalf("Seed: %v", err)
	}
	// Second run is a no-op.
	if err := Seed(ctx, db, params); err != nil {
		t.Fatalf("Seed (second run): %v", err)
	}

	q := New(db)
	users, _ := q.CountUsers(ctx)
	if users != 1 {
		t.Errorf("users = %d, want 1", users)
	}
	project, err := q.GetProjectBySlug(ctx, DemoProjectSlug)
	if err != nil {
		t.Fatalf("GetProjectBySlug: %v", err)
	}
	settings, _ := q.ListSiteSettings(ctx, ListSiteSettingsParams{ProjectID: project.ID, Category: "home"})
	if len(settings) != 1 || settings[0].Value != "Welcome" {
		t.Errorf("settings = %+v", settings)
	}
}
