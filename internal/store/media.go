// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	sq "github.com/Masterminds/squirrel"

	"github.com/olegiv/agency-cms/internal/model"
)

var mediaColumns = []string{
	"id", "uuid", "filename", "mime_type", "size", "width", "height", "alt",
	"url", "variants", "uploaded_by", "created_at",
}

func scanMedia(row rowScanner) (model.Media, error) {
	var (
		m          model.Media
		variants   string
		uploadedBy sql.NullInt64
	)
	err := row.Scan(&m.ID, &m.UUID, &m.Filename, &m.MimeType, &m.Size, &m.Width, &m.Height,
		&m.Alt, &m.URL, &variants, &uploadedBy, &m.CreatedAt)
	if err != nil {
		return m, err
	}
	m.Variants = map[string]string{}
	_ = json.Unmarshal([]byte(variants), &m.Variants)
	m.UploadedBy = int64Ptr(uploadedBy)
	return m, nil
}

// CreateMedia records an uploaded image.
func (q *Queries) CreateMedia(ctx context.Context, m *model.Media) error {
	variants, err := json.Marshal(m.Variants)
	if err != nil {
		return fmt.Errorf("encoding variants: %w", err)
	}
	now := q.now()
	res, err := q.execBuilt(ctx, psql.Insert("media").SetMap(map[string]any{
		"uuid":        m.UUID,
		"filename":    m.Filename,
		"mime_type":   m.MimeType,
		"size":        m.Size,
		"width":       m.Width,
		"height":      m.Height,
		"alt":         m.Alt,
		"url":         m.URL,
		"variants":    string(variants),
		"uploaded_by": nullInt64(m.UploadedBy),
		"created_at":  now,
	}))
	if err != nil {
		return fmt.Errorf("creating media: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	m.ID, m.CreatedAt = id, now
	return nil
}

func (q *Queries) GetMediaByUUID(ctx context.Context, uuid string) (model.Media, error) {
	query, args, err := psql.Select(mediaColumns...).From("media").Where(sq.Eq{"uuid": uuid}).ToSql()
	if err != nil {
		return model.Media{}, err
	}
	m, err := scanMedia(q.db.QueryRowContext(ctx, query, args...))
	return m, mapErr(err)
}

// ListMedia returns uploads newest first.
func (q *Queries) ListMedia(ctx context.Context, limit, offset int) ([]model.Media, int64, error) {
	b := psql.Select(mediaColumns...).From("media").OrderBy("created_at DESC", "id DESC")
	if limit > 0 {
		b = b.Limit(uint64(limit)).Offset(uint64(max(offset, 0)))
	}
	rows, err := q.queryBuilt(ctx, b)
	if err != nil {
		return nil, 0, fmt.Errorf("listing media: %w", err)
	}
	defer func() { _ = rows.Close() }()

	items := []model.Media{}
	for rows.Next() {
		m, err := scanMedia(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, m)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	total, err := q.countBuilt(ctx, psql.Select("COUNT(*)").From("media"))
	if err != nil {
		return nil, 0, err
	}
	return items, total, nil
}

func (q *Queries) DeleteMedia(ctx context.Context, id int64) error {
	return q.deleteByID(ctx, "media", id)
}
