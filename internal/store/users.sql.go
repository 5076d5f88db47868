// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package store

import (
	"context"
	"database/sql"
	"time"
)

const userColumns = `id, email, password_hash, name, last_login_at, created_at, updated_at`

func scanUser(row interface{ Scan(...any) error }) (User, error) {
	var i User
	err := row.Scan(
		&i.ID,
		&i.Email,
		&i.PasswordHash,
		&i.Name,
		&i.LastLoginAt,
		&i.CreatedAt,
		&i.UpdatedAt,
	)
	return i, err
}

const createUser = `
INSERT INTO users (email, password_hash, name, created_at, updated_at)
VALUES (?, ?, ?, ?, ?)
RETURNING ` + userColumns

type CreateUserParams struct {
	Email        string
	PasswordHash string
	Name         string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

func (q *Queries) CreateUser(ctx context.Context, arg CreateUserParams) (User, error) {
	row := q.db.QueryRowContext(ctx, createUser,
		arg.Email,
		arg.PasswordHash,
		arg.Name,
		arg.CreatedAt,
		arg.UpdatedAt,
	)
	return scanUser(row)
}

const getUserByID = `SELECT ` + userColumns + ` FROM users WHERE id = ?`

func (q *Queries) GetUserByID(ctx context.Context, id int64) (User, error) {
	return scanUser(q.db.QueryRowContext(ctx, getUserByID, id))
}

const getUserByEmail = `SELECT ` + userColumns + ` FROM users WHERE email = ?`

func (q *Queries) GetUserByEmail(ctx context.Context, email string) (User, error) {
	return scanUser(q.db.QueryRowContext(ctx, getUserByEmail, email))
}

const countUsers = `SELECT COUNT(*) FROM users`

func (q *Queries) CountUsers(ctx context.Context) (int64, error) {
	var count int64
	err := q.db.QueryRowContext(ctx, countUsers).Scan(&count)
	return count, err
}

const listUsers = `SELECT ` + userColumns + ` FROM users ORDER BY id LIMIT ? OFFSET ?`

type ListUsersParams struct {
	Limit  int64
	Offset int64
}

func (q *Queries) ListUsers(ctx context.Context, arg ListUsersParams) ([]User, error) {
	rows, err := q.db.QueryContext(ctx, listUsers, arg.Limit, arg.Offset)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	items := []User{}
	for rows.Next() {
		i, err := scanUser(rows)
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

const updateUserName = `UPDATE users SET name = ?, updated_at = ? WHERE id = ?`

type UpdateUserNameParams struct {
	Name      string
	UpdatedAt time.Time
	ID        int64
}

func (q *Queries) UpdateUserName(ctx context.Context, arg UpdateUserNameParams) error {
	_, err := q.db.ExecContext(ctx, updateUserName, arg.Name, arg.UpdatedAt, arg.ID)
	return err
}

const updateUserPassword = `UPDATE users SET password_hash = ?, updated_at = ? WHERE id = ?`

type UpdateUserPasswordParams struct {
	PasswordHash string
	UpdatedAt    time.Time
	ID           int64
}

func (q *Queries) UpdateUserPassword(ctx context.Context, arg UpdateUserPasswordParams) error {
	_, err := q.db.ExecContext(ctx, updateUserPassword, arg.PasswordHash, arg.UpdatedAt, arg.ID)
	return err
}

const updateUserLastLogin = `UPDATE users SET last_login_at = ? WHERE id = ?`

type UpdateUserLastLoginParams struct {
	LastLoginAt sql.NullTime
	ID          int64
}

func (q *Queries) UpdateUserLastLogin(ctx context.Context, arg UpdateUserLastLoginParams) error {
	_, err := q.db.ExecContext(ctx, updateUserLastLogin, arg.LastLoginAt, arg.ID)
	return err
}

const getProfile = `
SELECT user_id, display_name, phone, organization, bio, updated_at
FROM profiles WHERE user_id = ?`

func (q *Queries) GetProfile(ctx context.Context, userID int64) (Profile, error) {
	var i Profile
	err := q.db.QueryRowContext(ctx, getProfile, userID).Scan(
		&i.UserID,
		&i.DisplayName,
		&i.Phone,
		&i.Organization,
		&i.Bio,
		&i.UpdatedAt,
	)
	return i, err
}

const upsertProfile = `
INSERT INTO profiles (user_id, display_name, phone, organization, bio, updated_at)
VALUES (?, ?, ?, ?, ?, ?)
ON CONFLICT(user_id) DO UPDATE SET
    display_name = excluded.display_name,
    phone = excluded.phone,
    organization = excluded.organization,
    bio = excluded.bio,
    updated_at = excluded.updated_at
RETURNING user_id, display_name, phone, organization, bio, updated_at`

type UpsertProfileParams struct {
	UserID       int64
	DisplayName  string
	Phone        string
	Organization string
	Bio          string
	UpdatedAt    time.Time
}

func (q *Queries) UpsertProfile(ctx context.Context, arg UpsertProfileParams) (Profile, error) {
	var i Profile
	err := q.db.QueryRowContext(ctx, upsertProfile,
		arg.UserID,
		arg.DisplayName,
		arg.Phone,
		arg.Organization,
		arg.Bio,
		arg.UpdatedAt,
	).Scan(
		&i.UserID,
		&i.DisplayName,
		&i.Phone,
		&i.Organization,
		&i.Bio,
		&i.UpdatedAt,
	)
	return i, err
}

const addUserRole = `INSERT OR IGNORE INTO user_roles (user_id, role, created_at) VALUES (?, ?, ?)`

type AddUserRoleParams struct {
	UserID    int64
	Role      string
	CreatedAt time.Time
}

func (q *Queries) AddUserRole(ctx context.Context, arg AddUserRoleParams) error {
	_, err := q.db.ExecContext(ctx, addUserRole, arg.UserID, arg.Role, arg.CreatedAt)
	return err
}

const deleteUserRoles = `DELETE FROM user_roles WHERE user_id = ?`

func (q *Queries) DeleteUserRoles(ctx context.Context, userID int64) error {
	_, err := q.db.ExecContext(ctx, deleteUserRoles, userID)
	return err
}

const listUserRoles = `SELECT role FROM user_roles WHERE user_id = ? ORDER BY role`

func (q *Queries) ListUserRoles(ctx context.Context, userID int64) ([]string, error) {
	rows, err := q.db.QueryContext(ctx, listUserRoles, userID)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	items := []string{}
	for rows.Next() {
		var role string
		if err := rows.Scan(&role); err != nil {
			return nil, err
		}
		items = append(items, role)
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}
	return items, rows.Err()
}
