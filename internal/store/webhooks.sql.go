// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package store

import (
	"context"
	"database/sql"
	"time"
)

const webhookColumns = `id, name, url, secret, events, is_active, created_at, updated_at`

func scanWebhook(row interface{ Scan(...any) error }) (Webhook, error) {
	var i Webhook
	err := row.Scan(&i.ID, &i.Name, &i.Url, &i.Secret, &i.Events, &i.IsActive, &i.CreatedAt, &i.UpdatedAt)
	return i, err
}

const createWebhook = `INSERT INTO webhooks (name, url, secret, events, is_active, created_at, updated_at)
VALUES (?, ?, ?, ?, ?, ?, ?)
RETURNING ` + webhookColumns

type CreateWebhookParams struct {
	Name      string
	Url       string
	Secret    string
	Events    string
	IsActive  bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (q *Queries) CreateWebhook(ctx context.Context, arg CreateWebhookParams) (Webhook, error) {
	row := q.db.QueryRowContext(ctx, createWebhook,
		arg.Name, arg.Url, arg.Secret, arg.Events, arg.IsActive, arg.CreatedAt, arg.UpdatedAt)
	return scanWebhook(row)
}

const getWebhookByID = `SELECT ` + webhookColumns + ` FROM webhooks WHERE id = ?`

func (q *Queries) GetWebhookByID(ctx context.Context, id int64) (Webhook, error) {
	return scanWebhook(q.db.QueryRowContext(ctx, getWebhookByID, id))
}

const deleteWebhook = `DELETE FROM webhooks WHERE id = ?`

func (q *Queries) DeleteWebhook(ctx context.Context, id int64) error {
	_, err := q.db.ExecContext(ctx, deleteWebhook, id)
	return err
}

const listWebhooks = `SELECT ` + webhookColumns + ` FROM webhooks ORDER BY name`

func (q *Queries) ListWebhooks(ctx context.Context) ([]Webhook, error) {
	return collectWebhooks(q.db.QueryContext(ctx, listWebhooks))
}

const listActiveWebhooks = `SELECT ` + webhookColumns + ` FROM webhooks WHERE is_active = 1 ORDER BY id`

func (q *Queries) ListActiveWebhooks(ctx context.Context) ([]Webhook, error) {
	return collectWebhooks(q.db.QueryContext(ctx, listActiveWebhooks))
}

func collectWebhooks(rows *sql.Rows, err error) ([]Webhook, error) {
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []Webhook
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
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const deliveryColumns = `id, webhook_id, event, payload, status, attempts, next_retry_at, response_code,
       response_body, error_message, delivered_at, created_at, updated_at`

func scanDelivery(row interface{ Scan(...any) error }) (WebhookDelivery, error) {
	var i WebhookDelivery
	err := row.Scan(&i.ID, &i.WebhookID, &i.Event, &i.Payload, &i.Status, &i.Attempts, &i.NextRetryAt,
		&i.ResponseCode, &i.ResponseBody, &i.ErrorMessage, &i.DeliveredAt, &i.CreatedAt, &i.UpdatedAt)
	return i, err
}

const createWebhookDelivery = `INSERT INTO webhook_deliveries (webhook_id, event, payload, status, created_at, updated_at)
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
	row := q.db.QueryRowContext(ctx, createWebhookDelivery, arg.WebhookID, arg.Event, arg.Payload, arg.CreatedAt, arg.UpdatedAt)
	return scanDelivery(row)
}

const getWebhookDelivery = `SELECT ` + deliveryColumns + ` FROM webhook_deliveries WHERE id = ?`

func (q *Queries) GetWebhookDelivery(ctx context.Context, id int64) (WebhookDelivery, error) {
	return scanDelivery(q.db.QueryRowContext(ctx, getWebhookDelivery, id))
}

const markDeliverySuccess = `UPDATE webhook_deliveries
SET status = 'delivered', attempts = attempts + 1, response_code = ?, response_body = ?,
    error_message = '', delivered_at = ?, next_retry_at = NULL, updated_at = ?
WHERE id = ?`

type MarkDeliverySuccessParams struct {
	ResponseCode int64
	ResponseBody string
	DeliveredAt  sql.NullTime
	UpdatedAt    time.Time
	ID           int64
}

func (q *Queries) MarkDeliverySuccess(ctx context.Context, arg MarkDeliverySuccessParams) error {
	_, err := q.db.ExecContext(ctx, markDeliverySuccess,
		arg.ResponseCode, arg.ResponseBody, arg.DeliveredAt, arg.UpdatedAt, arg.ID)
	return err
}

const markDeliveryFailed = `UPDATE webhook_deliveries
SET status = ?, attempts = attempts + 1, response_code = ?, response_body = ?,
    error_message = ?, next_retry_at = ?, updated_at = ?
WHERE id = ?`

type MarkDeliveryFailedParams struct {
	Status       string
	ResponseCode int64
	ResponseBody string
	ErrorMessage string
	NextRetryAt  sql.NullTime
	UpdatedAt    time.Time
	ID           int64
}

func (q *Queries) MarkDeliveryFailed(ctx context.Context, arg MarkDeliveryFailedParams) error {
	_, err := q.db.ExecContext(ctx, markDeliveryFailed,
		arg.Status, arg.ResponseCode, arg.ResponseBody, arg.ErrorMessage, arg.NextRetryAt, arg.UpdatedAt, arg.ID)
	return err
}

const listDueDeliveries = `SELECT ` + deliveryColumns + ` FROM webhook_deliveries
WHERE status = 'failed' AND next_retry_at IS NOT NULL AND next_retry_at <= ?
ORDER BY next_retry_at
LIMIT ?`

type ListDueDeliveriesParams struct {
	Now   time.Time
	Limit int64
}

func (q *Queries) ListDueDeliveries(ctx context.Context, arg ListDueDeliveriesParams) ([]WebhookDelivery, error) {
	rows, err := q.db.QueryContext(ctx, listDueDeliveries, arg.Now, arg.Limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []WebhookDelivery
	for rows.Next() {
		i, err := scanDelivery(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}
