// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package store

import (
	"context"
	"database/sql"
	"strings"
	"time"
)

const registrationColumns = `id, project_id, name, email, phone, organization, form_data, privacy_consent,
    status, verification_token, ip_address, user_agent, cancelled_at, created_at, updated_at`

func scanRegistration(row interface{ Scan(...any) error }) (Registration, error) {
	var i Registration
	err := row.Scan(
		&i.ID,
		&i.ProjectID,
		&i.Name,
		&i.Email,
		&i.Phone,
		&i.Organization,
		&i.FormData,
		&i.PrivacyConsent,
		&i.Status,
		&i.VerificationToken,
		&i.IpAddress,
		&i.UserAgent,
		&i.CancelledAt,
		&i.CreatedAt,
		&i.UpdatedAt,
	)
	return i, err
}

func (q *Queries) queryRegistrations(ctx context.Context, query string, args ...any) ([]Registration, error) {
	rows, err := q.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	items := []Registration{}
	for rows.Next() {
		i, err := scanRegistration(rows)
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

const createRegistration = `
INSERT INTO registrations (
    project_id, name, email, phone, organization, form_data, privacy_consent,
    status, verification_token, ip_address, user_agent, created_at, updated_at
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
RETURNING ` + registrationColumns

type CreateRegistrationParams struct {
	ProjectID         int64
	Name              string
	Email             string
	Phone             string
	Organization      string
	FormData          string
	PrivacyConsent    bool
	Status            string
	VerificationToken string
	IpAddress         string
	UserAgent         string
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

func (q *Queries) CreateRegistration(ctx context.Context, arg CreateRegistrationParams) (Registration, error) {
	row := q.db.QueryRowContext(ctx, createRegistration,
		arg.ProjectID,
		arg.Name,
		arg.Email,
		arg.Phone,
		arg.Organization,
		arg.FormData,
		arg.PrivacyConsent,
		arg.Status,
		arg.VerificationToken,
		arg.IpAddress,
		arg.UserAgent,
		arg.CreatedAt,
		arg.UpdatedAt,
	)
	return scanRegistration(row)
}

const getRegistration = `SELECT ` + registrationColumns + ` FROM registrations WHERE id = ?`

func (q *Queries) GetRegistration(ctx context.Context, id int64) (Registration, error) {
	return scanRegistration(q.db.QueryRowContext(ctx, getRegistration, id))
}

const getRegistrationByToken = `SELECT ` + registrationColumns + ` FROM registrations WHERE verification_token = ?`

func (q *Queries) GetRegistrationByToken(ctx context.Context, verificationToken string) (Registration, error) {
	return scanRegistration(q.db.QueryRowContext(ctx, getRegistrationByToken, verificationToken))
}

// Empty Status or Search disables the corresponding filter. Search matches
// literally; LIKE wildcards in it are escaped.
const listRegistrations = `
SELECT ` + registrationColumns + `
FROM registrations
WHERE project_id = ?1
  AND (?2 = '' OR status = ?2)
  AND (?3 = '' OR name LIKE '%' || ?3 || '%' ESCAPE '\' OR email LIKE '%' || ?3 || '%' ESCAPE '\'
       OR phone LIKE '%' || ?3 || '%' ESCAPE '\' OR organization LIKE '%' || ?3 || '%' ESCAPE '\')
ORDER BY created_at DESC, id DESC
LIMIT ?4 OFFSET ?5`

type ListRegistrationsParams struct {
	ProjectID int64
	Status    string
	Search    string
	Limit     int64
	Offset    int64
}

func (q *Queries) ListRegistrations(ctx context.Context, arg ListRegistrationsParams) ([]Registration, error) {
	return q.queryRegistrations(ctx, listRegistrations,
		arg.ProjectID,
		arg.Status,
		escapeLike(arg.Search),
		arg.Limit,
		arg.Offset,
	)
}

const countRegistrations = `
SELECT COUNT(*)
FROM registrations
WHERE project_id = ?1
  AND (?2 = '' OR status = ?2)
  AND (?3 = '' OR name LIKE '%' || ?3 || '%' ESCAPE '\' OR email LIKE '%' || ?3 || '%' ESCAPE '\'
       OR phone LIKE '%' || ?3 || '%' ESCAPE '\' OR organization LIKE '%' || ?3 || '%' ESCAPE '\')`

type CountRegistrationsParams struct {
	ProjectID int64
	Status    string
	Search    string
}

func (q *Queries) CountRegistrations(ctx context.Context, arg CountRegistrationsParams) (int64, error) {
	var count int64
	err := q.db.QueryRowContext(ctx, countRegistrations, arg.ProjectID, arg.Status, escapeLike(arg.Search)).Scan(&count)
	return count, err
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// escapeLike quotes the LIKE wildcards of s for use with ESCAPE '\'.
func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}

const listProjectRegistrations = `
SELECT ` + registrationColumns + `
FROM registrations
WHERE project_id = ?
ORDER BY created_at, id`

// ListProjectRegistrations returns every registration of a project in submission order.
func (q *Queries) ListProjectRegistrations(ctx context.Context, projectID int64) ([]Registration, error) {
	return q.queryRegistrations(ctx, listProjectRegistrations, projectID)
}

const findRegistrationsByEmail = `
SELECT ` + registrationColumns + `
FROM registrations
WHERE project_id = ? AND email = ? COLLATE NOCASE
ORDER BY created_at DESC, id DESC`

type FindRegistrationsByEmailParams struct {
	ProjectID int64
	Email     string
}

func (q *Queries) FindRegistrationsByEmail(ctx context.Context, arg FindRegistrationsByEmailParams) ([]Registration, error) {
	return q.queryRegistrations(ctx, findRegistrationsByEmail, arg.ProjectID, arg.Email)
}

const updateRegistrationStatus = `
UPDATE registrations SET status = ?, cancelled_at = ?, updated_at = ?
WHERE id = ?
RETURNING ` + registrationColumns

type UpdateRegistrationStatusParams struct {
	Status      string
	CancelledAt sql.NullTime
	UpdatedAt   time.Time
	ID          int64
}

func (q *Queries) UpdateRegistrationStatus(ctx context.Context, arg UpdateRegistrationStatusParams) (Registration, error) {
	row := q.db.QueryRowContext(ctx, updateRegistrationStatus,
		arg.Status,
		arg.CancelledAt,
		arg.UpdatedAt,
		arg.ID,
	)
	return scanRegistration(row)
}

const deleteRegistration = `DELETE FROM registrations WHERE id = ?`

func (q *Queries) DeleteRegistration(ctx context.Context, id int64) error {
	_, err := q.db.ExecContext(ctx, deleteRegistration, id)
	return err
}

const countRegistrationsByStatus = `
SELECT status, COUNT(*) AS count
FROM registrations
WHERE project_id = ?
GROUP BY status
ORDER BY status`

type CountRegistrationsByStatusRow struct {
	Status string `json:"status"`
	Count  int64  `json:"count"`
}

func (q *Queries) CountRegistrationsByStatus(ctx context.Context, projectID int64) ([]CountRegistrationsByStatusRow, error) {
	rows, err := q.db.QueryContext(ctx, countRegistrationsByStatus, projectID)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	items := []CountRegistrationsByStatusRow{}
	for rows.Next() {
		var i CountRegistrationsByStatusRow
		if err := rows.Scan(&i.Status, &i.Count); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}
	return items, rows.Err()
}
