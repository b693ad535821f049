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

var contactTable = tableSpec{
	table: "contact_submissions",
	columns: []string{
		"id", "name", "email", "phone", "company", "subject", "message", "budget",
		"status", "notes", "ip_address", "country", "browser", "os", "device",
		"handled_by", "created_at", "updated_at",
	},
	searchCols: []string{"name", "email", "company", "subject", "message"},
	orderBy:    []string{"created_at DESC", "id DESC"},
}

func scanContact(row rowScanner) (model.ContactSubmission, error) {
	var (
		c         model.ContactSubmission
		handledBy sql.NullInt64
	)
	err := row.Scan(&c.ID, &c.Name, &c.Email, &c.Phone, &c.Company, &c.Subject, &c.Message,
		&c.Budget, &c.Status, &c.Notes, &c.IPAddress, &c.Country, &c.Browser, &c.OS,
		&c.Device, &handledBy, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return c, err
	}
	c.HandledBy = int64Ptr(handledBy)
	return c, nil
}

// ListContactSubmissions returns one page of submissions, newest first.
func (q *Queries) ListContactSubmissions(ctx context.Context, f ListFilter) ([]model.ContactSubmission, int64, error) {
	rows, err := q.queryBuilt(ctx, contactTable.selectList(f))
	if err != nil {
		return nil, 0, fmt.Errorf("listing contact submissions: %w", err)
	}
	defer func() { _ = rows.Close() }()

	items := []model.ContactSubmission{}
	for rows.Next() {
		c, err := scanContact(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scanning contact submission: %w", err)
		}
		items = append(items, c)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}

	total, err := q.countBuilt(ctx, contactTable.selectCount(f))
	if err != nil {
		return nil, 0, fmt.Errorf("counting contact submissions: %w", err)
	}
	return items, total, nil
}

func (q *Queries) GetContactSubmission(ctx context.Context, id int64) (model.ContactSubmission, error) {
	query, args, err := contactTable.selectOne().Where(sq.Eq{"id": id}).ToSql()
	if err != nil {
		return model.ContactSubmission{}, err
	}
	c, err := scanContact(q.db.QueryRowContext(ctx, query, args...))
	return c, mapErr(err)
}

// CreateContactSubmission stores a new submission in the "new" state.
func (q *Queries) CreateContactSubmission(ctx context.Context, c *model.ContactSubmission) error {
	now := q.now()
	if c.Status == "" {
		c.Status = model.ContactStatusNew
	}
	res, err := q.execBuilt(ctx, psql.Insert(contactTable.table).SetMap(map[string]any{
		"name":       c.Name,
		"email":      c.Email,
		"phone":      c.Phone,
		"company":    c.Company,
		"subject":    c.Subject,
		"message":    c.Message,
		"budget":     c.Budget,
		"status":     c.Status,
		"notes":      c.Notes,
		"ip_address": c.IPAddress,
		"country":    c.Country,
		"browser":    c.Browser,
		"os":         c.OS,
		"device":     c.Device,
		"created_at": now,
		"updated_at": now,
	}))
	if err != nil {
		return fmt.Errorf("creating contact submission: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	c.ID, c.CreatedAt, c.UpdatedAt = id, now, now
	return nil
}

// UpdateContactTriage writes the admin-editable fields: status, notes and
// the handling user.
func (q *Queries) UpdateContactTriage(ctx context.Context, c *model.ContactSubmission) error {
	now := q.now()
	res, err := q.execBuilt(ctx, psql.Update(contactTable.table).SetMap(map[string]any{
		"status":     c.Status,
		"notes":      c.Notes,
		"handled_by": nullInt64(c.HandledBy),
		"updated_at": now,
	}).Where(sq.Eq{"id": c.ID}))
	if err != nil {
		return fmt.Errorf("updating contact submission: %w", err)
	}
	if err := requireAffected(res); err != nil {
		return err
	}
	c.UpdatedAt = now
	return nil
}

func (q *Queries) DeleteContactSubmission(ctx context.Context, id int64) error {
	return q.deleteByID(ctx, contactTable.table, id)
}

func (q *Queries) CountContactSubmissionsByStatus(ctx context.Context) (map[string]int64, error) {
	return q.countByStatus(ctx, contactTable.table)
}
