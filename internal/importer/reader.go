// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package importer

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/go-sql-driver/mysql"
)

// Reader reads blog posts from a legacy site's MySQL database.
type Reader struct {
	db     *sql.DB
	prefix string

	// Optional columns; older schemas lack them.
	hasSlug        bool
	hasDescription bool
	schemaDetected bool
}

// Open connects to the legacy database. tablePrefix is prepended to table
// names and may only hold letters, digits and underscores.
func Open(ctx context.Context, dsn, tablePrefix string) (*Reader, error) {
	prefix, err := sanitizeTablePrefix(tablePrefix)
	if err != nil {
		return nil, err
	}

	dsn, err = normalizeDSN(dsn)
	if err != nil {
		return nil, err
	}

	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	return &Reader{db: db, prefix: prefix}, nil
}

// Close closes the database connection.
func (r *Reader) Close() error {
	return r.db.Close()
}

// normalizeDSN turns on time parsing so the ts column scans into
// time.Time.
func normalizeDSN(dsn string) (string, error) {
	cfg, err := mysql.ParseDSN(dsn)
	if err != nil {
		return "", fmt.Errorf("invalid DSN: %w", err)
	}
	cfg.ParseTime = true
	if cfg.Loc == nil {
		cfg.Loc = time.UTC
	}
	return cfg.FormatDSN(), nil
}

// sanitizeTablePrefix rejects prefixes that could break out of an
// identifier.
func sanitizeTablePrefix(prefix string) (string, error) {
	prefix = strings.TrimSpace(prefix)
	for _, c := range prefix {
		if !(c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' || c >= '0' && c <= '9' || c == '_') {
			return "", fmt.Errorf("invalid table prefix %q: only letters, digits and underscores are allowed", prefix)
		}
	}
	return prefix, nil
}

func (r *Reader) table() string { return r.prefix + "blog_post" }

// detectColumns records which optional columns the posts table has.
func (r *Reader) detectColumns(ctx context.Context) error {
	if r.schemaDetected {
		return nil
	}

	rows, err := sq.Select("COLUMN_NAME").
		From("INFORMATION_SCHEMA.COLUMNS").
		Where("TABLE_SCHEMA = DATABASE()").
		Where(sq.Eq{"TABLE_NAME": r.table()}).
		RunWith(r.db).QueryContext(ctx)
	if err != nil {
		return fmt.Errorf("failed to query column information: %w", err)
	}
	defer func() { _ = rows.Close() }()

	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return fmt.Errorf("failed to scan column name: %w", err)
		}
		switch name {
		case "slug":
			r.hasSlug = true
		case "description":
			r.hasDescription = true
		}
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("error iterating columns: %w", err)
	}

	r.schemaDetected = true
	return nil
}

// Posts returns the legacy posts, newest first. With publishedOnly set,
// drafts and queued posts are left out.
func (r *Reader) Posts(ctx context.Context, publishedOnly bool) ([]LegacyPost, error) {
	if err := r.detectColumns(ctx); err != nil {
		return nil, fmt.Errorf("failed to detect schema: %w", err)
	}

	cols := []string{"id", "title", "body", "ts", "author", "published", "tags", "thumbnail"}
	if r.hasSlug {
		cols = append(cols, "slug")
	}
	if r.hasDescription {
		cols = append(cols, "description")
	}

	q := sq.Select(cols...).From(r.table()).OrderBy("ts DESC")
	if publishedOnly {
		q = q.Where(sq.Eq{"published": publishedYes})
	}
	rows, err := q.RunWith(r.db).QueryContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to query blog posts: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var posts []LegacyPost
	for rows.Next() {
		var p LegacyPost
		dest := []any{&p.ID, &p.Title, &p.Body, &p.Timestamp, &p.Author, &p.Published, &p.Tags, &p.Thumbnail}
		if r.hasSlug {
			dest = append(dest, &p.Slug)
		}
		if r.hasDescription {
			dest = append(dest, &p.Description)
		}
		if err := rows.Scan(dest...); err != nil {
			return nil, fmt.Errorf("failed to scan blog post: %w", err)
		}
		posts = append(posts, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating blog posts: %w", err)
	}
	return posts, nil
}
