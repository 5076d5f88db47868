// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package store

import (
	"context"
	"time"
)

const projectColumns = `id, name, slug, description, is_active, owner_id, created_at, updated_at`

func scanProject(row interface{ Scan(...any) error }) (Project, error) {
	var i Project
	err := row.Scan(
		&i.ID,
		&i.Name,
		&i.Slug,
		&i.Description,
		&i.IsActive,
		&i.OwnerID,
		&i.CreatedAt,
		&i.UpdatedAt,
	)
	return i, err
}

func (q *Queries) queryProjects(ctx context.Context, query string, args ...any) ([]Project, error) {
	rows, err := q.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	items := []Project{}
	for rows.Next() {
		i, err := scanProject(rows)
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

const createProject = `
INSERT INTO projects (name, slug, description, is_active, owner_id, created_at, updated_at)
VALUES (?, ?, ?, ?, ?, ?, ?)
RETURNING ` + projectColumns

type CreateProjectParams struct {
	Name        string
	Slug        string
	Description string
	IsActive    bool
	OwnerID     int64
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

func (q *Queries) CreateProject(ctx context.Context, arg CreateProjectParams) (Project, error) {
	row := q.db.QueryRowContext(ctx, createProject,
		arg.Name,
		arg.Slug,
		arg.Description,
		arg.IsActive,
		arg.OwnerID,
		arg.CreatedAt,
		arg.UpdatedAt,
	)
	return scanProject(row)
}

const getProject = `SELECT ` + projectColumns + ` FROM projects WHERE id = ?`

func (q *Queries) GetProject(ctx context.Context, id int64) (Project, error) {
	return scanProject(q.db.QueryRowContext(ctx, getProject, id))
}

const getProjectBySlug = `SELECT ` + projectColumns + ` FROM projects WHERE slug = ?`

func (q *Queries) GetProjectBySlug(ctx context.Context, slug string) (Project, error) {
	return scanProject(q.db.QueryRowContext(ctx, getProjectBySlug, slug))
}

const projectSlugExists = `SELECT COUNT(*) FROM projects WHERE slug = ?`

func (q *Queries) ProjectSlugExists(ctx context.Context, slug string) (int64, error) {
	var count int64
	err := q.db.QueryRowContext(ctx, projectSlugExists, slug).Scan(&count)
	return count, err
}

const projectSlugExistsExcluding = `SELECT COUNT(*) FROM projects WHERE slug = ? AND id != ?`

type ProjectSlugExistsExcludingParams struct {
	Slug string
	ID   int64
}

func (q *Queries) ProjectSlugExistsExcluding(ctx context.Context, arg ProjectSlugExistsExcludingParams) (int64, error) {
	var count int64
	err := q.db.QueryRowContext(ctx, projectSlugExistsExcluding, arg.Slug, arg.ID).Scan(&count)
	return count, err
}

const listProjects = `SELECT ` + projectColumns + ` FROM projects ORDER BY created_at DESC, id DESC LIMIT ? OFFSET ?`

type ListProjectsParams struct {
	Limit  int64
	Offset int64
}

func (q *Queries) ListProjects(ctx context.Context, arg ListProjectsParams) ([]Project, error) {
	return q.queryProjects(ctx, listProjects, arg.Limit, arg.Offset)
}

const countProjects = `SELECT COUNT(*) FROM projects`

func (q *Queries) CountProjects(ctx context.Context) (int64, error) {
	var count int64
	err := q.db.QueryRowContext(ctx, countProjects).Scan(&count)
	return count, err
}

const listProjectsForUser = `
SELECT p.id, p.name, p.slug, p.description, p.is_active, p.owner_id, p.created_at, p.updated_at
FROM projects p
JOIN project_members m ON m.project_id = p.id
WHERE m.user_id = ?
ORDER BY p.created_at DESC, p.id DESC
LIMIT ? OFFSET ?`

type ListProjectsForUserParams struct {
	UserID int64
	Limit  int64
	Offset int64
}

func (q *Queries) ListProjectsForUser(ctx context.Context, arg ListProjectsForUserParams) ([]Project, error) {
	return q.queryProjects(ctx, listProjectsForUser, arg.UserID, arg.Limit, arg.Offset)
}

const countProjectsForUser = `SELECT COUNT(*) FROM project_members WHERE user_id = ?`

func (q *Queries) CountProjectsForUser(ctx context.Context, userID int64) (int64, error) {
	var count int64
	err := q.db.QueryRowContext(ctx, countProjectsForUser, userID).Scan(&count)
	return count, err
}

const updateProject = `
UPDATE projects SET name = ?, slug = ?, description = ?, is_active = ?, updated_at = ?
WHERE id = ?
RETURNING ` + projectColumns

type UpdateProjectParams struct {
	Name        string
	Slug        string
	Description string
	IsActive    bool
	UpdatedAt   time.Time
	ID          int64
}

func (q *Queries) UpdateProject(ctx context.Context, arg UpdateProjectParams) (Project, error) {
	row := q.db.QueryRowContext(ctx, updateProject,
		arg.Name,
		arg.Slug,
		arg.Description,
		arg.IsActive,
		arg.UpdatedAt,
		arg.ID,
	)
	return scanProject(row)
}

const deleteProject = `DELETE FROM projects WHERE id = ?`

func (q *Queries) DeleteProject(ctx context.Context, id int64) error {
	_, err := q.db.ExecContext(ctx, deleteProject, id)
	return err
}
