// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package store

import (
	"context"
	"database/sql"
	"fmt"

	sq "github.com/Masterminds/squirrel"

	"github.com/olegiv/agency-cms/internal/model"
)

var serviceTable = tableSpec{
	table: "services",
	columns: []string{
		"id", "title", "slug", "summary", "body", "body_html", "icon", "features",
		"price_from", "sort_order", "status", "publish_at", "published_at",
		"author_id", "created_at", "updated_at",
	},
	searchCols: []string{"title", "summary"},
	orderBy:    []string{"created_at DESC", "id DESC"},
}

func scanService(row rowScanner) (model.Service, error) {
	var (
		s                      model.Service
		features               string
		publishAt, publishedAt sql.NullTime
		authorID               sql.NullInt64
	)
	err := row.Scan(&s.ID, &s.Title, &s.Slug, &s.Summary, &s.Body, &s.BodyHTML, &s.Icon,
		&features, &s.PriceFrom, &s.SortOrder, &s.Status, &publishAt, &publishedAt,
		&authorID, &s.CreatedAt, &s.UpdatedAt)
	if err != nil {
		return s, err
	}
	s.Features = decodeList(features)
	s.PublishAt = timePtr(publishAt)
	s.PublishedAt = timePtr(publishedAt)
	s.AuthorID = int64Ptr(authorID)
	return s, nil
}

// ListServices returns one page of services, newest first.
func (q *Queries) ListServices(ctx context.Context, f ListFilter) ([]model.Service, int64, error) {
	rows, err := q.queryBuilt(ctx, serviceTable.selectList(f))
	if err != nil {
		return nil, 0, fmt.Errorf("listing services: %w", err)
	}
	defer func() { _ = rows.Close() }()

	items := []model.Service{}
	for rows.Next() {
		s, err := scanService(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scanning service: %w", err)
		}
		items = append(items, s)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}

	total, err := q.countBuilt(ctx, serviceTable.selectCount(f))
	if err != nil {
		return nil, 0, fmt.Errorf("counting services: %w", err)
	}
	return items, total, nil
}

func (q *Queries) GetServiceByID(ctx context.Context, id int64) (model.Service, error) {
	return q.getService(ctx, sq.Eq{"id": id})
}

func (q *Queries) GetServiceBySlug(ctx context.Context, slug string) (model.Service, error) {
	return q.getService(ctx, sq.Eq{"slug": slug})
}

func (q *Queries) getService(ctx context.Context, pred sq.Eq) (model.Service, error) {
	query, args, err := serviceTable.selectOne().Where(pred).ToSql()
	if err != nil {
		return model.Service{}, err
	}
	s, err := scanService(q.db.QueryRowContext(ctx, query, args...))
	return s, mapErr(err)
}

func (q *Queries) ServiceSlugExists(ctx context.Context, slug string, excludeID int64) (bool, error) {
	return q.slugExists(ctx, serviceTable.table, slug, excludeID)
}

func (q *Queries) CreateService(ctx context.Context, s *model.Service) error {
	now := q.now()
	res, err := q.execBuilt(ctx, psql.Insert(serviceTable.table).SetMap(map[string]any{
		"title":        s.Title,
		"slug":         s.Slug,
		"summary":      s.Summary,
		"body":         s.Body,
		"body_html":    s.BodyHTML,
		"icon":         s.Icon,
		"features":     encodeList(s.Features),
		"price_from":   s.PriceFrom,
		"sort_order":   s.SortOrder,
		"status":       s.Status,
		"publish_at":   nullTime(s.PublishAt),
		"published_at": nullTime(s.PublishedAt),
		"author_id":    nullInt64(s.AuthorID),
		"created_at":   now,
		"updated_at":   now,
	}))
	if err != nil {
		return fmt.Errorf("creating service: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	s.ID, s.CreatedAt, s.UpdatedAt = id, now, now
	if s.Features == nil {
		s.Features = []string{}
	}
	return nil
}

func (q *Queries) UpdateService(ctx context.Context, s *model.Service) error {
	now := q.now()
	res, err := q.execBuilt(ctx, psql.Update(serviceTable.table).SetMap(map[string]any{
		"title":        s.Title,
		"slug":         s.Slug,
		"summary":      s.Summary,
		"body":         s.Body,
		"body_html":    s.BodyHTML,
		"icon":         s.Icon,
		"features":     encodeList(s.Features),
		"price_from":   s.PriceFrom,
		"sort_order":   s.SortOrder,
		"status":       s.Status,
		"publish_at":   nullTime(s.PublishAt),
		"published_at": nullTime(s.PublishedAt),
		"updated_at":   now,
	}).Where(sq.Eq{"id": s.ID}))
	if err != nil {
		return fmt.Errorf("updating service: %w", err)
	}
	if err := requireAffected(res); err != nil {
		return err
	}
	s.UpdatedAt = now
	return nil
}

func (q *Queries) DeleteService(ctx context.Context, id int64) error {
	return q.deleteByID(ctx, serviceTable.table, id)
}

func (q *Queries) CountServicesByStatus(ctx context.Context) (map[string]int64, error) {
	return q.countByStatus(ctx, serviceTable.table)
}
