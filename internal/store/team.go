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

var teamTable = tableSpec{
	table: "team_members",
	columns: []string{
		"id", "name", "slug", "position", "bio", "bio_html", "photo_url", "email",
		"linkedin_url", "github_url", "twitter_url", "sort_order", "status",
		"author_id", "created_at", "updated_at",
	},
	searchCols: []string{"name", "position"},
	orderBy:    []string{"created_at DESC", "id DESC"},
}

func scanTeamMember(row rowScanner) (model.TeamMember, error) {
	var (
		m        model.TeamMember
		authorID sql.NullInt64
	)
	err := row.Scan(&m.ID, &m.Name, &m.Slug, &m.Position, &m.Bio, &m.BioHTML, &m.PhotoURL,
		&m.Email, &m.LinkedInURL, &m.GitHubURL, &m.TwitterURL, &m.SortOrder, &m.Status,
		&authorID, &m.CreatedAt, &m.UpdatedAt)
	if err != nil {
		return m, err
	}
	m.AuthorID = int64Ptr(authorID)
	return m, nil
}

// ListTeamMembers returns one page of team members, newest first.
func (q *Queries) ListTeamMembers(ctx context.Context, f ListFilter) ([]model.TeamMember, int64, error) {
	rows, err := q.queryBuilt(ctx, teamTable.selectList(f))
	if err != nil {
		return nil, 0, fmt.Errorf("listing team members: %w", err)
	}
	defer func() { _ = rows.Close() }()

	items := []model.TeamMember{}
	for rows.Next() {
		m, err := scanTeamMember(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scanning team member: %w", err)
		}
		items = append(items, m)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}

	total, err := q.countBuilt(ctx, teamTable.selectCount(f))
	if err != nil {
		return nil, 0, fmt.Errorf("counting team members: %w", err)
	}
	return items, total, nil
}

func (q *Queries) GetTeamMemberByID(ctx context.Context, id int64) (model.TeamMember, error) {
	return q.getTeamMember(ctx, sq.Eq{"id": id})
}

func (q *Queries) GetTeamMemberBySlug(ctx context.Context, slug string) (model.TeamMember, error) {
	return q.getTeamMember(ctx, sq.Eq{"slug": slug})
}

func (q *Queries) getTeamMember(ctx context.Context, pred sq.Eq) (model.TeamMember, error) {
	query, args, err := teamTable.selectOne().Where(pred).ToSql()
	if err != nil {
		return model.TeamMember{}, err
	}
	m, err := scanTeamMember(q.db.QueryRowContext(ctx, query, args...))
	return m, mapErr(err)
}

func (q *Queries) TeamMemberSlugExists(ctx context.Context, slug string, excludeID int64) (bool, error) {
	return q.slugExists(ctx, teamTable.table, slug, excludeID)
}

func (q *Queries) CreateTeamMember(ctx context.Context, m *model.TeamMember) error {
	now := q.now()
	res, err := q.execBuilt(ctx, psql.Insert(teamTable.table).SetMap(map[string]any{
		"name":         m.Name,
		"slug":         m.Slug,
		"position":     m.Position,
		"bio":          m.Bio,
		"bio_html":     m.BioHTML,
		"photo_url":    m.PhotoURL,
		"email":        m.Email,
		"linkedin_url": m.LinkedInURL,
		"github_url":   m.GitHubURL,
		"twitter_url":  m.TwitterURL,
		"sort_order":   m.SortOrder,
		"status":       m.Status,
		"author_id":    nullInt64(m.AuthorID),
		"created_at":   now,
		"updated_at":   now,
	}))
	if err != nil {
		return fmt.Errorf("creating team member: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	m.ID, m.CreatedAt, m.UpdatedAt = id, now, now
	return nil
}

func (q *Queries) UpdateTeamMember(ctx context.Context, m *model.TeamMember) error {
	now := q.now()
	res, err := q.execBuilt(ctx, psql.Update(teamTable.table).SetMap(map[string]any{
		"name":         m.Name,
		"slug":         m.Slug,
		"position":     m.Position,
		"bio":          m.Bio,
		"bio_html":     m.BioHTML,
		"photo_url":    m.PhotoURL,
		"email":        m.Email,
		"linkedin_url": m.LinkedInURL,
		"github_url":   m.GitHubURL,
		"twitter_url":  m.TwitterURL,
		"sort_order":   m.SortOrder,
		"status":       m.Status,
		"updated_at":   now,
	}).Where(sq.Eq{"id": m.ID}))
	if err != nil {
		return fmt.Errorf("updating team member: %w", err)
	}
	if err := requireAffected(res); err != nil {
		return err
	}
	m.UpdatedAt = now
	return nil
}

func (q *Queries) DeleteTeamMember(ctx context.Context, id int64) error {
	return q.deleteByID(ctx, teamTable.table, id)
}

func (q *Queries) CountTeamMembersByStatus(ctx context.Context) (map[string]int64, error) {
	return q.countByStatus(ctx, teamTable.table)
}
