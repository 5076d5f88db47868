// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package store

import (
	"context"
	"database/sql"
	"time"
)

const listSiteSettings = `
SELECT id, project_id, category, key, value, description, updated_by, updated_at
FROM site_settings
WHERE project_id = ? AND category = ?
ORDER BY key`

type ListSiteSettingsParams struct {
	ProjectID int64
	Category  string
}

func (q *Queries) ListSiteSettings(ctx context.Context, arg ListSiteSettingsParams) ([]SiteSetting, error) {
	rows, err := q.db.QueryContext(ctx, listSiteSettings, arg.ProjectID, arg.Category)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	items := []SiteSetting{}
	for rows.Next() {
		var i SiteSetting
		if err := rows.Scan(
			&i.ID,
			&i.ProjectID,
			&i.Category,
			&i.Key,
			&i.Value,
			&i.Description,
			&i.UpdatedBy,
			&i.UpdatedAt,
		); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}
	return items, rows.Err()
}

// The conflict target matches UNIQUE(project_id, key); a key moved between
// categories is rewritten in place.
const upsertSiteSetting = `
INSERT INTO site_settings (project_id, category, key, value, description, updated_by, updated_at)
VALUES (?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(project_id, key) DO UPDATE SET
    category = excluded.category,
    value = excluded.value,
    description = excluded.description,
    updated_by = excluded.updated_by,
    updated_at = excluded.updated_at`

type UpsertSiteSettingParams struct {
	ProjectID   int64
	Category    string
	Key         string
	Value       string
	Description string
	UpdatedBy   sql.NullInt64
	UpdatedAt   time.Time
}

func (q *Queries) UpsertSiteSetting(ctx context.Context, arg UpsertSiteSettingParams) error {
	_, err := q.db.ExecContext(ctx, upsertSiteSetting,
		arg.ProjectID,
		arg.Category,
		arg.Key,
		arg.Value,
		arg.Description,
		arg.UpdatedBy,
		arg.UpdatedAt,
	)
	return err
}

const deleteSiteSetting = `DELETE FROM site_settings WHERE project_id = ? AND key = ?`

type DeleteSiteSettingParams struct {
	ProjectID int64
	Key       string
}

func (q *Queries) DeleteSiteSetting(ctx context.Context, arg DeleteSiteSettingParams) error {
	_, err := q.db.ExecContext(ctx, deleteSiteSetting, arg.ProjectID, arg.Key)
	return err
}

const countSiteSettings = `SELECT COUNT(*) FROM site_settings WHERE project_id = ?`

func (q *Queries) CountSiteSettings(ctx context.Context, projectID int64) (int64, error) {
	var count int64
	err := q.db.QueryRowContext(ctx, countSiteSettings, projectID).Scan(&count)
	return count, err
}
