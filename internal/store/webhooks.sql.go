// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package store

import (
	"context"
	"database/sql"
	"time"
)

const webhookColumns = `id, project_id, name, url, secret, events, headers, is_active, created_by, created_at, updated_at`

func scanWebhook(row interface{ Scan(...any) error }) (Webhook, error) {
	var i Webhook
	err := row.Scan(
		&i.ID,
		&i.ProjectID,
		&i.Name,
		&i.Url,
		&i.Secret,
		&i.Events,
		&i.Headers,
		&i.IsActive,
		&i.CreatedBy,
		&i.CreatedAt,
		&i.UpdatedAt,
	)
	return i, err
}

func (q *Queries) queryWebhooks(ctx context.Context, query string, args ...any) ([]Webhook, error) {
	rows, err := q.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	items := []Webhook{}
	for rows.Next() {
		i, err := scanWebhook(rows)
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

const createWebhook = `
INSERT INTO webhooks (project_id, name, url, secret, events, headers, is_active, created_by, created_at, updated_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
RETURNING ` + webhookColumns

type CreateWebhookParams struct {
	ProjectID int64
	Name      string
	Url       string
	Secret    string
	Events    string
	Headers   string
	IsActive  bool
	CreatedBy sql.NullInt64
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (q *Queries) CreateWebhook(ctx context.Context, arg CreateWebhookParams) (Webhook, error) {
	row := q.db.QueryRowContext(ctx, createWebhook,
		arg.ProjectID,
		arg.Name,
		arg.Url,
		arg.Secret,
		arg.Events,
		arg.Headers,
		arg.IsActive,
		arg.CreatedBy,
		arg.CreatedAt,
		arg.UpdatedAt,
	)
	return scanWebhook(row)
}

const getWebhook = `SELECT ` + webhookColumns + ` FROM webhooks WHERE id = ?`

func (q *Queries) GetWebhook(ctx context.Context, id int64) (Webhook, error) {
	return scanWebhook(q.db.QueryRowContext(ctx, getWebhook, id))
}

const listWebhooks = `SELECT ` + webhookColumns + ` FROM webhooks WHERE project_id = ? ORDER BY name, id`

func (q *Queries) ListWebhooks(ctx context.Context, projectID int64) ([]Webhook, error) {
	return q.queryWebhooks(ctx, listWebhooks, projectID)
}

// LIKE is a prefilter; callers confirm the exact event name.
const listWebhooksForEvent = `
SELECT ` + webhookColumns + ` FROM webhooks
WHERE project_id = ? AND is_active = 1 AND events LIKE '%"' || ? || '"%'
ORDER BY id`

type ListWebhooksForEventParams struct {
	ProjectID int64
	Event     string
}

func (q *Queries) ListWebhooksForEvent(ctx context.Context, arg ListWebhooksForEventParams) ([]Webhook, error) {
	return q.queryWebhooks(ctx, listWebhooksForEvent, arg.ProjectID, arg.Event)
}

const updateWebhook = `
UPDATE webhooks SET name = ?, url = ?, events = ?, headers = ?, is_active = ?, updated_at = ?
WHERE id = ?
RETURNING ` + webhookColumns

type UpdateWebhookParams struct {
	Name      string
	Url       string
	Events    string
	Headers   string
	IsActive  bool
	UpdatedAt time.Time
	ID        int64
}

func (q *Queries) UpdateWebhook(ctx context.Context, arg UpdateWebhookParams) (Webhook, error) {
	row := q.db.QueryRowContext(ctx, updateWebhook,
		arg.Name,
		arg.Url,
		arg.Events,
		arg.Headers,
		arg.IsActive,
		arg.UpdatedAt,
		arg.ID,
	)
	return scanWebhook(row)
}

const deleteWebhook = `DELETE FROM webhooks WHERE id = ?`

func (q *Queries) DeleteWebhook(ctx context.Context, id int64) error {
	_, err := q.db.ExecContext(ctx, deleteWebhook, id)
	return err
}

const deliveryColumns = `id, webhook_id, event, payload, response_code, response_body, attempts,
    next_retry_at, delivered_at, status, error_message, created_at, updated_at`

func scanWebhookDelivery(row interface{ Scan(...any) error }) (WebhookDelivery, error) {
	var i WebhookDelivery
	err := row.Scan(
		&i.ID,
		&i.WebhookID,
		&i.Event,
		&i.Payload,
		&i.ResponseCode,
		&i.ResponseBody,
		&i.Attempts,
		&i.NextRetryAt,
		&i.DeliveredAt,
		&i.Status,
		&i.ErrorMessage,
		&i.CreatedAt,
		&i.UpdatedAt,
	)
	return i, err
}

func (q *Queries) queryDeliveries(ctx context.Context, query string, args ...any) ([]WebhookDelivery, error) {
	rows, err := q.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	items := []WebhookDelivery{}
	for rows.Next() {
		i, err := scanWebhookDelivery(rows)
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

const createWebhookDelivery = `
INSERT INTO webhook_deliveries (webhook_id, event, payload, status, created_at, updated_at)
VALUES (?, ?, ?, 'pending', ?, ?)
RETURNING ` + deliveryColumns

type CreateWebhookDeliveryParams struct {
	WebhookID int64
	Event     string
	Payload   string
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (q *Queries) CreateWebhookDelivery(ctx context.Context, arg CreateWebhookDeliveryParams) (WebhookDelivery, error) {
	row := q.db.QueryRowContext(ctx, createWebhookDelivery,
		arg.WebhookID,
		arg.Event,
		arg.Payload,
		arg.CreatedAt,
		arg.UpdatedAt,
	)
	return scanWebhookDelivery(row)
}

const getWebhookDelivery = `SELECT ` + deliveryColumns + ` FROM webhook_deliveries WHERE id = ?`

func (q *Queries) GetWebhookDelivery(ctx context.Context, id int64) (WebhookDelivery, error) {
	return scanWebhookDelivery(q.db.QueryRowContext(ctx, getWebhookDelivery, id))
}

const listWebhookDeliveries = `
SELECT ` + deliveryColumns + ` FROM webhook_deliveries
WHERE webhook_id = ?
ORDER BY created_at DESC, id DESC
LIMIT ? OFFSET ?`

type ListWebhookDeliveriesParams struct {
	WebhookID int64
	Limit     int64
	Offset    int64
}

func (q *Queries) ListWebhookDeliveries(ctx context.Context, arg ListWebhookDeliveriesParams) ([]WebhookDelivery, error) {
	return q.queryDeliveries(ctx, listWebhookDeliveries, arg.WebhookID, arg.Limit, arg.Offset)
}

const countWebhookDeliveries = `SELECT COUNT(*) FROM webhook_deliveries WHERE webhook_id = ?`

func (q *Queries) CountWebhookDeliveries(ctx context.Context, webhookID int64) (int64, error) {
	var count int64
	err := q.db.QueryRowContext(ctx, countWebhookDeliveries, webhookID).Scan(&count)
	return count, err
}

const listDueDeliveries = `
SELECT ` + deliveryColumns + ` FROM webhook_deliveries
WHERE status = 'pending' AND next_retry_at IS NOT NULL AND next_retry_at <= ?
ORDER BY next_retry_at
LIMIT ?`

type ListDueDeliveriesParams struct {
	Now   time.Time
	Limit int64
}

// ListDueDeliveries returns pending deliveries whose retry time has passed.
func (q *Queries) ListDueDeliveries(ctx context.Context, arg ListDueDeliveriesParams) ([]WebhookDelivery, error) {
	return q.queryDeliveries(ctx, listDueDeliveries, arg.Now, arg.Limit)
}

const scheduleDelivery = `
UPDATE webhook_deliveries SET next_retry_at = ?, updated_at = ?
WHERE id = ? AND status = 'pending'`

type ScheduleDeliveryParams struct {
	NextRetryAt time.Time
	UpdatedAt   time.Time
	ID          int64
}

// ScheduleDelivery hands a pending delivery to the retry job without counting an attempt.
func (q *Queries) ScheduleDelivery(ctx context.Context, arg ScheduleDeliveryParams) error {
	_, err := q.db.ExecContext(ctx, scheduleDelivery, arg.NextRetryAt, arg.UpdatedAt, arg.ID)
	return err
}

const updateDeliverySuccess = `
UPDATE webhook_deliveries
SET status = 'delivered', attempts = attempts + 1, response_code = ?, response_body = ?,
    delivered_at = ?, next_retry_at = NULL, updated_at = ?
WHERE id = ?`

type UpdateDeliverySuccessParams struct {
	ResponseCode sql.NullInt64
	ResponseBody sql.NullString
	DeliveredAt  sql.NullTime
	UpdatedAt    time.Time
	ID           int64
}

func (q *Queries) UpdateDeliverySuccess(ctx context.Context, arg UpdateDeliverySuccessParams) error {
	_, err := q.db.ExecContext(ctx, updateDeliverySuccess,
		arg.ResponseCode,
		arg.ResponseBody,
		arg.DeliveredAt,
		arg.UpdatedAt,
		arg.ID,
	)
	return err
}

const updateDeliveryRetry = `
UPDATE webhook_deliveries
SET attempts = attempts + 1, response_code = ?, response_body = ?, error_message = ?,
    next_retry_at = ?, updated_at = ?
WHERE id = ?`

type UpdateDeliveryRetryParams struct {
	ResponseCode sql.NullInt64
	ResponseBody sql.NullString
	ErrorMessage sql.NullString
	NextRetryAt  sql.NullTime
	UpdatedAt    time.Time
	ID           int64
}

func (q *Queries) UpdateDeliveryRetry(ctx context.Context, arg UpdateDeliveryRetryParams) error {
	_, err := q.db.ExecContext(ctx, updateDeliveryRetry,
		arg.ResponseCode,
		arg.ResponseBody,
		arg.ErrorMessage,
		arg.NextRetryAt,
		arg.UpdatedAt,
		arg.ID,
	)
	return err
}

const updateDeliveryDead = `
UPDATE webhook_deliveries
SET status = 'dead', attempts = attempts + 1, error_message = ?, next_retry_at = NULL, updated_at = ?
WHERE id = ?`

type UpdateDeliveryDeadParams struct {
	ErrorMessage sql.NullString
	UpdatedAt    time.Time
	ID           int64
}

func (q *Queries) UpdateDeliveryDead(ctx context.Context, arg UpdateDeliveryDeadParams) error {
	_, err := q.db.ExecContext(ctx, updateDeliveryDead, arg.ErrorMessage, arg.UpdatedAt, arg.ID)
	return err
}

const deleteOldDeliveries = `DELETE FROM webhook_deliveries WHERE created_at < ? AND status != 'pending'`

func (q *Queries) DeleteOldDeliveries(ctx context.Context, cutoff time.Time) (int64, error) {
	result, err := q.db.ExecContext(ctx, deleteOldDeliveries, cutoff)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}
