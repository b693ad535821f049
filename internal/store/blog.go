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

var blogTable = tableSpec{
	table: "blog_posts",
	columns: []string{
		"id", "title", "slug", "excerpt", "body", "body_html", "category", "tags",
		"image_url", "reading_time", "status", "publish_at", "published_at",
		"author_id", "created_at", "updated_at",
	},
	searchCols: []string{"title", "excerpt"},
	orderBy:    []string{"created_at DESC", "id DESC"},
	listCol:    "tags",
	hasCat:     true,
}

func scanBlogPost(row rowScanner) (model.BlogPost, error) {
	var (
		b                      model.BlogPost
		tags                   string
		publishAt, publishedAt sql.NullTime
		authorID               sql.NullInt64
	)
	err := row.Scan(&b.ID, &b.Title, &b.Slug, &b.Excerpt, &b.Body, &b.BodyHTML, &b.Category,
		&tags, &b.ImageURL, &b.ReadingTime, &b.Status, &publishAt, &publishedAt,
		&authorID, &b.CreatedAt, &b.UpdatedAt)
	if err != nil {
		return b, err
	}
	b.Tags = decodeList(tags)
	b.PublishAt = timePtr(publishAt)
	b.PublishedAt = timePtr(publishedAt)
	b.AuthorID = int64Ptr(authorID)
	return b, nil
}

// ListBlogPosts returns one page of posts, newest first, and the total
// number of rows matching f.
func (q *Queries) ListBlogPosts(ctx context.Context, f ListFilter) ([]model.BlogPost, int64, error) {
	rows, err := q.queryBuilt(ctx, blogTable.selectList(f))
	if err != nil {
		return nil, 0, fmt.Errorf("listing blog posts: %w", err)
	}
	defer func() { _ = rows.Close() }()

	items := []model.BlogPost{}
	for rows.Next() {
		b, err := scanBlogPost(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scanning blog post: %w", err)
		}
		items = append(items, b)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}

	total, err := q.countBuilt(ctx, blogTable.selectCount(f))
	if err != nil {
		return nil, 0, fmt.Errorf("counting blog posts: %w", err)
	}
	return items, total, nil
}

func (q *Queries) GetBlogPostByID(ctx context.Context, id int64) (model.BlogPost, error) {
	return q.getBlogPost(ctx, sq.Eq{"id": id})
}

func (q *Queries) GetBlogPostBySlug(ctx context.Context, slug string) (model.BlogPost, error) {
	return q.getBlogPost(ctx, sq.Eq{"slug": slug})
}

func (q *Queries) getBlogPost(ctx context.Context, pred sq.Eq) (model.BlogPost, error) {
	query, args, err := blogTable.selectOne().Where(pred).ToSql()
	if err != nil {
		return model.BlogPost{}, err
	}
	b, err := scanBlogPost(q.db.QueryRowContext(ctx, query, args...))
	return b, mapErr(err)
}

func (q *Queries) BlogPostSlugExists(ctx context.Context, slug string, excludeID int64) (bool, error) {
	return q.slugExists(ctx, blogTable.table, slug, excludeID)
}

func (q *Queries) CreateBlogPost(ctx context.Context, b *model.BlogPost) error {
	now := q.now()
	res, err := q.execBuilt(ctx, psql.Insert(blogTable.table).SetMap(map[string]any{
		"title":        b.Title,
		"slug":         b.Slug,
		"excerpt":      b.Excerpt,
		"body":         b.Body,
		"body_html":    b.BodyHTML,
		"category":     b.Category,
		"tags":         encodeList(b.Tags),
		"image_url":    b.ImageURL,
		"reading_time": b.ReadingTime,
		"status":       b.Status,
		"publish_at":   nullTime(b.PublishAt),
		"published_at": nullTime(b.PublishedAt),
		"author_id":    nullInt64(b.AuthorID),
		"created_at":   now,
		"updated_at":   now,
	}))
	if err != nil {
		return fmt.Errorf("creating blog post: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	b.ID, b.CreatedAt, b.UpdatedAt = id, now, now
	if b.Tags == nil {
		b.Tags = []string{}
	}
	return nil
}

func (q *Queries) UpdateBlogPost(ctx context.Context, b *model.BlogPost) error {
	now := q.now()
	res, err := q.execBuilt(ctx, psql.Update(blogTable.table).SetMap(map[string]any{
		"title":        b.Title,
		"slug":         b.Slug,
		"excerpt":      b.Excerpt,
		"body":         b.Body,
		"body_html":    b.BodyHTML,
		"category":     b.Category,
		"tags":         encodeList(b.Tags),
		"image_url":    b.ImageURL,
		"reading_time": b.ReadingTime,
		"status":       b.Status,
		"publish_at":   nullTime(b.PublishAt),
		"published_at": nullTime(b.PublishedAt),
		"updated_at":   now,
	}).Where(sq.Eq{"id": b.ID}))
	if err != nil {
		return fmt.Errorf("updating blog post: %w", err)
	}
	if err := requireAffected(res); err != nil {
		return err
	}
	b.UpdatedAt = now
	return nil
}

func (q *Queries) DeleteBlogPost(ctx context.Context, id int64) error {
	return q.deleteByID(ctx, blogTable.table, id)
}

func (q *Queries) CountBlogPostsByStatus(ctx context.Context) (map[string]int64, error) {
	return q.countByStatus(ctx, blogTable.table)
}
