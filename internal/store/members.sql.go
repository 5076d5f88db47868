// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package store

import (
	"context"
	"time"
)

const addProjectMember = `
INSERT INTO project_members (project_id, user_id, role, created_at, updated_at)
VALUES (?, ?, ?, ?, ?)
RETURNING project_id, user_id, role, created_at, updated_at`

type AddProjectMemberParams struct {
	ProjectID int64
	UserID    int64
	Role      string
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (q *Queries) AddProjectMember(ctx context.Context, arg AddProjectMemberParams) (ProjectMember, error) {
	var i ProjectMember
	err := q.db.QueryRowContext(ctx, addProjectMember,
		arg.ProjectID,
		arg.UserID,
		arg.Role,
		arg.CreatedAt,
		arg.UpdatedAt,
	).Scan(&i.ProjectID, &i.UserID, &i.Role, &i.CreatedAt, &i.UpdatedAt)
	return i, err
}

const getProjectMember = `
SELECT project_id, user_id, role, created_at, updated_at
FROM project_members WHERE project_id = ? AND user_id = ?`

type GetProjectMemberParams struct {
	ProjectID int64
	UserID    int64
}

func (q *Queries) GetProjectMember(ctx context.Context, arg GetProjectMemberParams) (ProjectMember, error) {
	var i ProjectMember
	err := q.db.QueryRowContext(ctx, getProjectMember, arg.ProjectID, arg.UserID).
		Scan(&i.ProjectID, &i.UserID, &i.Role, &i.CreatedAt, &i.UpdatedAt)
	return i, err
}

const listProjectMembers = `
SELECT m.project_id, m.user_id, m.role, m.created_at, u.email, u.name
FROM project_members m
JOIN users u ON u.id = m.user_id
WHERE m.project_id = ?
ORDER BY CASE m.role WHEN 'owner' THEN 0 WHEN 'admin' THEN 1 WHEN 'editor' THEN 2 ELSE 3 END, u.email`

type ListProjectMembersRow struct {
	ProjectID int64     `json:"project_id"`
	UserID    int64     `json:"user_id"`
	Role      string    `json:"role"`
	CreatedAt time.Time `json:"created_at"`
	Email     string    `json:"email"`
	Name      string    `json:"name"`
}

func (q *Queries) ListProjectMembers(ctx context.Context, projectID int64) ([]ListProjectMembersRow, error) {
	rows, err := q.db.QueryContext(ctx, listProjectMembers, projectID)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	items := []ListProjectMembersRow{}
	for rows.Next() {
		var i ListProjectMembersRow
		if err := rows.Scan(&i.ProjectID, &i.UserID, &i.Role, &i.CreatedAt, &i.Email, &i.Name); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}
	return items, rows.Err()
}

const updateProjectMemberRole = `
UPDATE project_members SET role = ?, updated_at = ?
WHERE project_id = ? AND user_id = ?`

type UpdateProjectMemberRoleParams struct {
	Role      string
	UpdatedAt time.Time
	ProjectID int64
	UserID    int64
}

func (q *Queries) UpdateProjectMemberRole(ctx context.Context, arg UpdateProjectMemberRoleParams) error {
	_, err := q.db.ExecContext(ctx, updateProjectMemberRole, arg.Role, arg.UpdatedAt, arg.ProjectID, arg.UserID)
	return err
}

const deleteProjectMember = `DELETE FROM project_members WHERE project_id = ? AND user_id = ?`

type DeleteProjectMemberParams struct {
	ProjectID int64
	UserID    int64
}

func (q *Queries) DeleteProjectMember(ctx context.Context, arg DeleteProjectMemberParams) error {
	_, err := q.db.ExecContext(ctx, deleteProjectMember, arg.ProjectID, arg.UserID)
	return err
}

const countProjectOwners = `SELECT COUNT(*) FROM project_members WHERE project_id = ? AND role = 'owner'`

func (q *Queries) CountProjectOwners(ctx context.Context, projectID int64) (int64, error) {
	var count int64
	err := q.db.QueryRowContext(ctx, countProjectOwners, projectID).Scan(&count)
	return count, err
}
