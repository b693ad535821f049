// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package store

import (
	"context"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"

	"github.com/olegiv/agency-cms/internal/model"
)

// PublishableTables are the content tables that support scheduled publishing.
var PublishableTables = []string{"projects", "blog_posts", "services"}

func (q *Queries) slugExists(ctx context.Context, table, slug string, excludeID int64) (bool, error) {
	b := psql.Select("COUNT(*)").From(table).Where(sq.Eq{"slug": slug})
	if excludeID > 0 {
		b = b.Where(sq.NotEq{"id": excludeID})
	}
	n, err := q.countBuilt(ctx, b)
	if err != nil {
		return false, fmt.Errorf("checking %s slug: %w", table, err)
	}
	return n > 0, nil
}

func (q *Queries) deleteByID(ctx context.Context, table string, id int64) error {
	res, err := q.execBuilt(ctx, psql.Delete(table).Where(sq.Eq{"id": id}))
	if err != nil {
		return fmt.Errorf("deleting from %s: %w", table, err)
	}
	return requireAffected(res)
}

func (q *Queries) countByStatus(ctx context.Context, table string) (map[string]int64, error) {
	rows, err := q.queryBuilt(ctx, psql.Select("status", "COUNT(*)").From(table).GroupBy("status"))
	if err != nil {
		return nil, fmt.Errorf("counting %s: %w", table, err)
	}
	defer func() { _ = rows.Close() }()

	out := make(map[string]int64)
	for rows.Next() {
		var status string
		var n int64
		if err := rows.Scan(&status, &n); err != nil {
			return nil, err
		}
		out[status] = n
	}
	return out, rows.Err()
}

// PublishDue flips scheduled rows of table whose publish_at has passed to
// published and returns their ids.
func (q *Queries) PublishDue(ctx context.Context, table string, now time.Time) ([]int64, error) {
	if !isPublishable(table) {
		return nil, fmt.Errorf("table %q does not support scheduling", table)
	}
	now = now.UTC()
	query, args, err := psql.Update(table).
		Set("status", model.StatusPublished).
		Set("published_at", sq.Expr("COALESCE(published_at, ?)", now)).
		Set("updated_at", now).
		Where(sq.Eq{"status": model.StatusScheduled}).
		Where(sq.LtOrEq{"publish_at": now}).
		Suffix("RETURNING id").
		ToSql()
	if err != nil {
		return nil, err
	}

	rows, err := q.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("publishing due %s: %w", table, err)
	}
	defer func() { _ = rows.Close() }()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func isPublishable(table string) bool {
	for _, t := range PublishableTables {
		if t == table {
			return true
		}
	}
	return false
}
