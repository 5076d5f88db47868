// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package store

import (
	"context"
	"database/sql"
	"time"
)

const mediaColumns = `id, project_id, uuid, filename, mime_type, size, width, height, uploaded_by, created_at`

func scanMedium(row interface{ Scan(...any) error }) (Medium, error) {
	var i Medium
	err := row.Scan(
		&i.ID,
		&i.ProjectID,
		&i.Uuid,
		&i.Filename,
		&i.MimeType,
		&i.Size,
		&i.Width,
		&i.Height,
		&i.UploadedBy,
		&i.CreatedAt,
	)
	return i, err
}

const createMedia = `
INSERT INTO media (project_id, uuid, filename, mime_type, size, width, height, uploaded_by, created_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
RETURNING ` + mediaColumns

type CreateMediaParams struct {
	ProjectID  int64
	Uuid       string
	Filename   string
	MimeType   string
	Size       int64
	Width      int64
	Height     int64
	UploadedBy sql.NullInt64
	CreatedAt  time.Time
}

func (q *Queries) CreateMedia(ctx context.Context, arg CreateMediaParams) (Medium, error) {
	row := q.db.QueryRowContext(ctx, createMedia,
		arg.ProjectID,
		arg.Uuid,
		arg.Filename,
		arg.MimeType,
		arg.Size,
		arg.Width,
		arg.Height,
		arg.UploadedBy,
		arg.CreatedAt,
	)
	return scanMedium(row)
}

const getMedia = `SELECT ` + mediaColumns + ` FROM media WHERE id = ?`

func (q *Queries) GetMedia(ctx context.Context, id int64) (Medium, error) {
	return scanMedium(q.db.QueryRowContext(ctx, getMedia, id))
}

const listMedia = `
SELECT ` + mediaColumns + ` FROM media
WHERE project_id = ?
ORDER BY created_at DESC, id DESC
LIMIT ? OFFSET ?`

type ListMediaParams struct {
	ProjectID int64
	Limit     int64
	Offset    int64
}

func (q *Queries) ListMedia(ctx context.Context, arg ListMediaParams) ([]Medium, error) {
	rows, err := q.db.QueryContext(ctx, listMedia, arg.ProjectID, arg.Limit, arg.Offset)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	items := []Medium{}
	for rows.Next() {
		i, err := scanMedium(rows)
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

const countMedia = `SELECT COUNT(*) FROM media WHERE project_id = ?`

func (q *Queries) CountMedia(ctx context.Context, projectID int64) (int64, error) {
	var count int64
	err := q.db.QueryRowContext(ctx, countMedia, projectID).Scan(&count)
	return count, err
}

const deleteMedia = `DELETE FROM media WHERE id = ?`

func (q *Queries) DeleteMedia(ctx context.Context, id int64) error {
	_, err := q.db.ExecContext(ctx, deleteMedia, id)
	return err
}
