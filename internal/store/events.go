// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"

	"github.com/olegiv/agency-cms/internal/model"
)

var eventColumns = []string{
	"id", "level", "category", "message", "user_id", "metadata",
	"ip_address", "request_url", "created_at",
}

// EventFilter narrows ListEvents.
type EventFilter struct {
	Level    string
	Category string
	UserID   int64
	Limit    int
	Offset   int
}

func scanEvent(row rowScanner) (model.Event, error) {
	var (
		e      model.Event
		userID sql.NullInt64
	)
	err := row.Scan(&e.ID, &e.Level, &e.Category, &e.Message, &userID, &e.Metadata,
		&e.IPAddress, &e.RequestURL, &e.CreatedAt)
	if err != nil {
		return e, err
	}
	e.UserID = int64Ptr(userID)
	return e, nil
}

// CreateEvent appends an audit log entry.
func (q *Queries) CreateEvent(ctx context.Context, e *model.Event) error {
	if e.Metadata == "" {
		e.Metadata = "{}"
	}
	now := q.now()
	res, err := q.execBuilt(ctx, psql.Insert("events").SetMap(map[string]any{
		"level":       e.Level,
		"category":    e.Category,
		"message":     e.Message,
		"user_id":     nullInt64(e.UserID),
		"metadata":    e.Metadata,
		"ip_address":  e.IPAddress,
		"request_url": e.RequestURL,
		"created_at":  now,
	}))
	if err != nil {
		return fmt.Errorf("creating event: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	e.ID, e.CreatedAt = id, now
	return nil
}

// ListEvents returns one page of events, newest first.
func (q *Queries) ListEvents(ctx context.Context, f EventFilter) ([]model.Event, int64, error) {
	where := func(b sq.SelectBuilder) sq.SelectBuilder {
		if f.Level != "" {
			b = b.Where(sq.Eq{"level": f.Level})
		}
		if f.Category != "" {
			b = b.Where(sq.Eq{"category": f.Category})
		}
		if f.UserID > 0 {
			b = b.Where(sq.Eq{"user_id": f.UserID})
		}
		return b
	}

	b := where(psql.Select(eventColumns...).From("events")).OrderBy("created_at DESC", "id DESC")
	if f.Limit > 0 {
		b = b.Limit(uint64(f.Limit)).Offset(uint64(max(f.Offset, 0)))
	}
	rows, err := q.queryBuilt(ctx, b)
	if err != nil {
		return nil, 0, fmt.Errorf("listing events: %w", err)
	}
	defer func() { _ = rows.Close() }()

	events := []model.Event{}
	for rows.Next() {
		e, err := scanEvent(rows)
		if err != nil {
			return nil, 0, err
		}
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}

	total, err := q.countBuilt(ctx, where(psql.Select("COUNT(*)").From("events")))
	if err != nil {
		return nil, 0, fmt.Errorf("counting events: %w", err)
	}
	return events, total, nil
}

// DeleteEventsBefore prunes the audit log and returns the number removed.
func (q *Queries) DeleteEventsBefore(ctx context.Context, before time.Time) (int64, error) {
	res, err := q.execBuilt(ctx, psql.Delete("events").Where(sq.Lt{"created_at": before.UTC()}))
	if err != nil {
		return 0, fmt.Errorf("pruning events: %w", err)
	}
	return res.RowsAffected()
}
