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

var projectTable = tableSpec{
	table: "projects",
	columns: []string{
		"id", "title", "slug", "summary", "body", "body_html", "category", "client",
		"technologies", "image_url", "project_url", "featured", "status",
		"publish_at", "published_at", "author_id", "created_at", "updated_at",
	},
	searchCols: []string{"title", "summary"},
	orderBy:    []string{"featured DESC", "created_at DESC", "id DESC"},
	hasFeature: true,
	hasCat:     true,
}

func scanProject(row rowScanner) (model.Project, error) {
	var (
		p                      model.Project
		techs                  string
		publishAt, publishedAt sql.NullTime
		authorID               sql.NullInt64
	)
	err := row.Scan(&p.ID, &p.Title, &p.Slug, &p.Summary, &p.Body, &p.BodyHTML, &p.Category,
		&p.Client, &techs, &p.ImageURL, &p.ProjectURL, &p.Featured, &p.Status,
		&publishAt, &publishedAt, &authorID, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return p, err
	}
	p.Technologies = decodeList(techs)
	p.PublishAt = timePtr(publishAt)
	p.PublishedAt = timePtr(publishedAt)
	p.AuthorID = int64Ptr(authorID)
	return p, nil
}

// ListProjects returns one page of projects, featured first, and the total
// number of rows matching f.
func (q *Queries) ListProjects(ctx context.Context, f ListFilter) ([]model.Project, int64, error) {
	rows, err := q.queryBuilt(ctx, projectTable.selectList(f))
	if err != nil {
		return nil, 0, fmt.Errorf("listing projects: %w", err)
	}
	defer func() { _ = rows.Close() }()

	items := []model.Project{}
	for rows.Next() {
		p, err := scanProject(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scanning project: %w", err)
		}
		items = append(items, p)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}

	total, err := q.countBuilt(ctx, projectTable.selectCount(f))
	if err != nil {
		return nil, 0, fmt.Errorf("counting projects: %w", err)
	}
	return items, total, nil
}

// GetProjectByID returns model.ErrNotFound when no row matches.
func (q *Queries) GetProjectByID(ctx context.Context, id int64) (model.Project, error) {
	return q.getProject(ctx, sq.Eq{"id": id})
}

// GetProjectBySlug returns model.ErrNotFound when no row matches.
func (q *Queries) GetProjectBySlug(ctx context.Context, slug string) (model.Project, error) {
	return q.getProject(ctx, sq.Eq{"slug": slug})
}

func (q *Queries) getProject(ctx context.Context, pred sq.Eq) (model.Project, error) {
	query, args, err := projectTable.selectOne().Where(pred).ToSql()
	if err != nil {
		return model.Project{}, err
	}
	p, err := scanProject(q.db.QueryRowContext(ctx, query, args...))
	return p, mapErr(err)
}

// ProjectSlugExists reports whether another project uses slug.
func (q *Queries) ProjectSlugExists(ctx context.Context, slug string, excludeID int64) (bool, error) {
	return q.slugExists(ctx, projectTable.table, slug, excludeID)
}

// CreateProject inserts p and fills in its id and timestamps.
func (q *Queries) CreateProject(ctx context.Context, p *model.Project) error {
	now := q.now()
	res, err := q.execBuilt(ctx, psql.Insert(projectTable.table).SetMap(map[string]any{
		"title":        p.Title,
		"slug":         p.Slug,
		"summary":      p.Summary,
		"body":         p.Body,
		"body_html":    p.BodyHTML,
		"category":     p.Category,
		"client":       p.Client,
		"technologies": encodeList(p.Technologies),
		"image_url":    p.ImageURL,
		"project_url":  p.ProjectURL,
		"featured":     p.Featured,
		"status":       p.Status,
		"publish_at":   nullTime(p.PublishAt),
		"published_at": nullTime(p.PublishedAt),
		"author_id":    nullInt64(p.AuthorID),
		"created_at":   now,
		"updated_at":   now,
	}))
	if err != nil {
		return fmt.Errorf("creating project: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	p.ID, p.CreatedAt, p.UpdatedAt = id, now, now
	if p.Technologies == nil {
		p.Technologies = []string{}
	}
	return nil
}

// UpdateProject writes every editable column of p.
func (q *Queries) UpdateProject(ctx context.Context, p *model.Project) error {
	now := q.now()
	res, err := q.execBuilt(ctx, psql.Update(projectTable.table).SetMap(map[string]any{
		"title":        p.Title,
		"slug":         p.Slug,
		"summary":      p.Summary,
		"body":         p.Body,
		"body_html":    p.BodyHTML,
		"category":     p.Category,
		"client":       p.Client,
		"technologies": encodeList(p.Technologies),
		"image_url":    p.ImageURL,
		"project_url":  p.ProjectURL,
		"featured":     p.Featured,
		"status":       p.Status,
		"publish_at":   nullTime(p.PublishAt),
		"published_at": nullTime(p.PublishedAt),
		"updated_at":   now,
	}).Where(sq.Eq{"id": p.ID}))
	if err != nil {
		return fmt.Errorf("updating project: %w", err)
	}
	if err := requireAffected(res); err != nil {
		return err
	}
	p.UpdatedAt = now
	return nil
}

// DeleteProject removes a project.
func (q *Queries) DeleteProject(ctx context.Context, id int64) error {
	return q.deleteByID(ctx, projectTable.table, id)
}

// CountProjectsByStatus returns row counts keyed by status.
func (q *Queries) CountProjectsByStatus(ctx context.Context) (map[string]int64, error) {
	return q.countByStatus(ctx, projectTable.table)
}
