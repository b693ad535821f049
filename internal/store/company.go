// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package store

import (
	"context"
	"errors"
	"fmt"

	sq "github.com/Masterminds/squirrel"

	"github.com/olegiv/agency-cms/internal/model"
)

var companyColumns = []string{"key", "value", "value_type", "is_public", "description", "created_at", "updated_at"}

func scanCompanyInfo(row rowScanner) (model.CompanyInfo, error) {
	var c model.CompanyInfo
	err := row.Scan(&c.Key, &c.Value, &c.ValueType, &c.IsPublic, &c.Description, &c.CreatedAt, &c.UpdatedAt)
	return c, err
}

// ListCompanyInfo returns rows ordered by key. publicOnly drops rows with
// is_public = 0 in SQL so they never reach the caller.
func (q *Queries) ListCompanyInfo(ctx context.Context, publicOnly bool) ([]model.CompanyInfo, error) {
	b := psql.Select(companyColumns...).From("company_info").OrderBy("key")
	if publicOnly {
		b = b.Where(sq.Eq{"is_public": 1})
	}
	rows, err := q.queryBuilt(ctx, b)
	if err != nil {
		return nil, fmt.Errorf("listing company info: %w", err)
	}
	defer func() { _ = rows.Close() }()

	items := []model.CompanyInfo{}
	for rows.Next() {
		c, err := scanCompanyInfo(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, c)
	}
	return items, rows.Err()
}

// GetCompanyInfo returns model.ErrNotFound for unknown keys, and for private
// keys when publicOnly is set.
func (q *Queries) GetCompanyInfo(ctx context.Context, key string, publicOnly bool) (model.CompanyInfo, error) {
	b := psql.Select(companyColumns...).From("company_info").Where(sq.Eq{"key": key})
	if publicOnly {
		b = b.Where(sq.Eq{"is_public": 1})
	}
	query, args, err := b.ToSql()
	if err != nil {
		return model.CompanyInfo{}, err
	}
	c, err := scanCompanyInfo(q.db.QueryRowContext(ctx, query, args...))
	return c, mapErr(err)
}

// UpsertCompanyInfo creates or replaces the row for c.Key and reports
// whether it was created.
func (q *Queries) UpsertCompanyInfo(ctx context.Context, c *model.CompanyInfo) (bool, error) {
	now := q.now()
	existing, err := q.GetCompanyInfo(ctx, c.Key, false)
	switch {
	case err == nil:
		_, err = q.execBuilt(ctx, psql.Update("company_info").SetMap(map[string]any{
			"value":       c.Value,
			"value_type":  c.ValueType,
			"is_public":   c.IsPublic,
			"description": c.Description,
			"updated_at":  now,
		}).Where(sq.Eq{"key": c.Key}))
		if err != nil {
			return false, fmt.Errorf("updating company info: %w", err)
		}
		c.CreatedAt, c.UpdatedAt = existing.CreatedAt, now
		return false, nil
	case errors.Is(err, model.ErrNotFound):
		_, err = q.execBuilt(ctx, psql.Insert("company_info").SetMap(map[string]any{
			"key":         c.Key,
			"value":       c.Value,
			"value_type":  c.ValueType,
			"is_public":   c.IsPublic,
			"description": c.Description,
			"created_at":  now,
			"updated_at":  now,
		}))
		if err != nil {
			return false, fmt.Errorf("creating company info: %w", err)
		}
		c.CreatedAt, c.UpdatedAt = now, now
		return true, nil
	default:
		return false, err
	}
}

// InsertCompanyInfoIfMissing creates c only when its key is absent.
func (q *Queries) InsertCompanyInfoIfMissing(ctx context.Context, c *model.CompanyInfo) error {
	now := q.now()
	_, err := q.execBuilt(ctx, psql.Insert("company_info").
		Options("OR IGNORE").
		SetMap(map[string]any{
			"key":         c.Key,
			"value":       c.Value,
			"value_type":  c.ValueType,
			"is_public":   c.IsPublic,
			"description": c.Description,
			"created_at":  now,
			"updated_at":  now,
		}))
	return err
}

func (q *Queries) DeleteCompanyInfo(ctx context.Context, key string) error {
	res, err := q.execBuilt(ctx, psql.Delete("company_info").Where(sq.Eq{"key": key}))
	if err != nil {
		return fmt.Errorf("deleting company info: %w", err)
	}
	return requireAffected(res)
}
