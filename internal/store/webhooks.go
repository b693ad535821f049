// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
)

// Webhook delivery statuses
const (
	DeliveryStatusPending   = "pending"
	DeliveryStatusDelivered = "delivered"
	DeliveryStatusDead      = "dead"
)

// WebhookDelivery is one payload bound for one target URL.
type WebhookDelivery struct {
	ID           int64
	TargetURL    string
	Event        string
	Payload      string
	Status       string
	Attempts     int64
	ResponseCode sql.NullInt64
	ErrorMessage string
	NextRetryAt  sql.NullTime
	DeliveredAt  sql.NullTime
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

var deliveryColumns = []string{
	"id", "target_url", "event", "payload", "status", "attempts", "response_code",
	"error_message", "next_retry_at", "delivered_at", "created_at", "updated_at",
}

func scanDelivery(row rowScanner) (WebhookDelivery, error) {
	var d WebhookDelivery
	err := row.Scan(&d.ID, &d.TargetURL, &d.Event, &d.Payload, &d.Status, &d.Attempts,
		&d.ResponseCode, &d.ErrorMessage, &d.NextRetryAt, &d.DeliveredAt, &d.CreatedAt, &d.UpdatedAt)
	return d, err
}

// CreateWebhookDelivery records a pending delivery. retryAt is when the
// retry job may pick it up if the first attempt never reports back.
func (q *Queries) CreateWebhookDelivery(ctx context.Context, targetURL, event, payload string, retryAt time.Time) (WebhookDelivery, error) {
	now := q.now()
	res, err := q.execBuilt(ctx, psql.Insert("webhook_deliveries").SetMap(map[string]any{
		"target_url":    targetURL,
		"event":         event,
		"payload":       payload,
		"status":        DeliveryStatusPending,
		"next_retry_at": retryAt.UTC(),
		"created_at":    now,
		"updated_at":    now,
	}))
	if err != nil {
		return WebhookDelivery{}, fmt.Errorf("creating webhook delivery: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return WebhookDelivery{}, err
	}
	return WebhookDelivery{
		ID: id, TargetURL: targetURL, Event: event, Payload: payload,
		Status: DeliveryStatusPending, CreatedAt: now, UpdatedAt: now,
		NextRetryAt: sql.NullTime{Time: retryAt.UTC(), Valid: true},
	}, nil
}

func (q *Queries) GetWebhookDelivery(ctx context.Context, id int64) (WebhookDelivery, error) {
	query, args, err := psql.Select(deliveryColumns...).From("webhook_deliveries").Where(sq.Eq{"id": id}).ToSql()
	if err != nil {
		return WebhookDelivery{}, err
	}
	d, err := scanDelivery(q.db.QueryRowContext(ctx, query, args...))
	return d, mapErr(err)
}

// ListDueWebhookDeliveries returns pending deliveries whose retry time has passed.
func (q *Queries) ListDueWebhookDeliveries(ctx context.Context, now time.Time, limit int) ([]WebhookDelivery, error) {
	b := psql.Select(deliveryColumns...).From("webhook_deliveries").
		Where(sq.Eq{"status": DeliveryStatusPending}).
		Where(sq.And{sq.NotEq{"next_retry_at": nil}, sq.LtOrEq{"next_retry_at": now.UTC()}}).
		OrderBy("next_retry_at ASC").
		Limit(uint64(limit))
	rows, err := q.queryBuilt(ctx, b)
	if err != nil {
		return nil, fmt.Errorf("listing due deliveries: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []WebhookDelivery
	for rows.Next() {
		d, err := scanDelivery(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

// MarkDeliverySuccess records a 2xx response.
func (q *Queries) MarkDeliverySuccess(ctx context.Context, id int64, code int) error {
	now := q.now()
	_, err := q.execBuilt(ctx, psql.Update("webhook_deliveries").SetMap(map[string]any{
		"status":        DeliveryStatusDelivered,
		"attempts":      sq.Expr("attempts + 1"),
		"response_code": code,
		"error_message": "",
		"next_retry_at": nil,
		"delivered_at":  now,
		"updated_at":    now,
	}).Where(sq.Eq{"id": id}))
	return err
}

// MarkDeliveryRetry records a failed attempt and the next retry time.
func (q *Queries) MarkDeliveryRetry(ctx context.Context, id int64, code int, errMsg string, next time.Time) error {
	_, err := q.execBuilt(ctx, psql.Update("webhook_deliveries").SetMap(map[string]any{
		"attempts":      sq.Expr("attempts + 1"),
		"response_code": sql.NullInt64{Int64: int64(code), Valid: code > 0},
		"error_message": errMsg,
		"next_retry_at": next.UTC(),
		"updated_at":    q.now(),
	}).Where(sq.Eq{"id": id}))
	return err
}

// MarkDeliveryDead stops retrying a delivery.
func (q *Queries) MarkDeliveryDead(ctx context.Context, id int64, code int, errMsg string) error {
	_, err := q.execBuilt(ctx, psql.Update("webhook_deliveries").SetMap(map[string]any{
		"status":        DeliveryStatusDead,
		"attempts":      sq.Expr("attempts + 1"),
		"response_code": sql.NullInt64{Int64: int64(code), Valid: code > 0},
		"error_message": errMsg,
		"next_retry_at": nil,
		"updated_at":    q.now(),
	}).Where(sq.Eq{"id": id}))
	return err
}

// DeliveryCounts returns delivery counts keyed by status.
func (q *Queries) DeliveryCounts(ctx context.Context) (map[string]int64, error) {
	return q.countByStatus(ctx, "webhook_deliveries")
}
