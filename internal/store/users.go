// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	sq "github.com/Masterminds/squirrel"

	"github.com/olegiv/agency-cms/internal/model"
	"github.com/olegiv/agency-cms/internal/rbac"
)

var userColumns = []string{
	"id", "email", "password_hash", "first_name", "last_name", "role",
	"permissions", "is_active", "last_login_at", "created_at", "updated_at",
}

// UserFilter narrows ListUsers.
type UserFilter struct {
	Role   string
	Active *bool
	Search string
	Limit  int
	Offset int
}

func scanUser(row rowScanner) (model.User, error) {
	var (
		u         model.User
		perms     string
		lastLogin sql.NullTime
	)
	err := row.Scan(&u.ID, &u.Email, &u.PasswordHash, &u.FirstName, &u.LastName, &u.Role,
		&perms, &u.IsActive, &lastLogin, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		return u, err
	}
	u.LastLoginAt = timePtr(lastLogin)
	u.Permissions, err = rbac.ParsePermissions(perms)
	if err != nil {
		return u, fmt.Errorf("user %d: %w", u.ID, err)
	}
	return u, nil
}

func (q *Queries) getUser(ctx context.Context, pred sq.Sqlizer) (model.User, error) {
	query, args, err := psql.Select(userColumns...).From("users").Where(pred).Limit(1).ToSql()
	if err != nil {
		return model.User{}, err
	}
	u, err := scanUser(q.db.QueryRowContext(ctx, query, args...))
	return u, mapErr(err)
}

// GetUserByID returns model.ErrNotFound when no row matches.
func (q *Queries) GetUserByID(ctx context.Context, id int64) (model.User, error) {
	return q.getUser(ctx, sq.Eq{"id": id})
}

// GetUserByEmail matches case-insensitively.
func (q *Queries) GetUserByEmail(ctx context.Context, email string) (model.User, error) {
	return q.getUser(ctx, sq.Eq{"email": model.NormalizeEmail(email)})
}

// ListUsers returns one page of users ordered by creation time.
func (q *Queries) ListUsers(ctx context.Context, f UserFilter) ([]model.User, int64, error) {
	where := func(b sq.SelectBuilder) sq.SelectBuilder {
		if f.Role != "" {
			b = b.Where(sq.Eq{"role": f.Role})
		}
		if f.Active != nil {
			b = b.Where(sq.Eq{"is_active": boolInt(*f.Active)})
		}
		if term := strings.TrimSpace(f.Search); term != "" {
			pattern := "%" + escapeLike(term) + "%"
			b = b.Where(sq.Or{
				sq.Expr(`email LIKE ? ESCAPE '\'`, pattern),
				sq.Expr(`first_name || ' ' || last_name LIKE ? ESCAPE '\'`, pattern),
			})
		}
		return b
	}

	b := where(psql.Select(userColumns...).From("users")).OrderBy("created_at ASC", "id ASC")
	if f.Limit > 0 {
		b = b.Limit(uint64(f.Limit)).Offset(uint64(max(f.Offset, 0)))
	}
	rows, err := q.queryBuilt(ctx, b)
	if err != nil {
		return nil, 0, fmt.Errorf("listing users: %w", err)
	}
	defer func() { _ = rows.Close() }()

	users := []model.User{}
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, 0, err
		}
		users = append(users, u)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}

	total, err := q.countBuilt(ctx, where(psql.Select("COUNT(*)").From("users")))
	if err != nil {
		return nil, 0, fmt.Errorf("counting users: %w", err)
	}
	return users, total, nil
}

// CreateUser inserts u. A duplicate email yields model.ErrConflict.
func (q *Queries) CreateUser(ctx context.Context, u *model.User) error {
	now := q.now()
	u.Email = model.NormalizeEmail(u.Email)
	res, err := q.execBuilt(ctx, psql.Insert("users").SetMap(map[string]any{
		"email":         u.Email,
		"password_hash": u.PasswordHash,
		"first_name":    u.FirstName,
		"last_name":     u.LastName,
		"role":          u.Role,
		"permissions":   u.Permissions.String(),
		"is_active":     u.IsActive,
		"created_at":    now,
		"updated_at":    now,
	}))
	if err != nil {
		return fmt.Errorf("creating user: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	u.ID, u.CreatedAt, u.UpdatedAt = id, now, now
	return nil
}

// UpdateUser writes profile, role, permission and active columns.
func (q *Queries) UpdateUser(ctx context.Context, u *model.User) error {
	now := q.now()
	u.Email = model.NormalizeEmail(u.Email)
	res, err := q.execBuilt(ctx, psql.Update("users").SetMap(map[string]any{
		"email":       u.Email,
		"first_name":  u.FirstName,
		"last_name":   u.LastName,
		"role":        u.Role,
		"permissions": u.Permissions.String(),
		"is_active":   u.IsActive,
		"updated_at":  now,
	}).Where(sq.Eq{"id": u.ID}))
	if err != nil {
		return fmt.Errorf("updating user: %w", err)
	}
	if err := requireAffected(res); err != nil {
		return err
	}
	u.UpdatedAt = now
	return nil
}

// UpdateUserPassword replaces the stored password hash.
func (q *Queries) UpdateUserPassword(ctx context.Context, id int64, hash string) error {
	res, err := q.execBuilt(ctx, psql.Update("users").
		Set("password_hash", hash).
		Set("updated_at", q.now()).
		Where(sq.Eq{"id": id}))
	if err != nil {
		return fmt.Errorf("updating password: %w", err)
	}
	return requireAffected(res)
}

// UpdateUserLastLogin records a successful login.
func (q *Queries) UpdateUserLastLogin(ctx context.Context, id int64, at time.Time) error {
	_, err := q.execBuilt(ctx, psql.Update("users").
		Set("last_login_at", at.UTC()).
		Where(sq.Eq{"id": id}))
	if err != nil {
		return fmt.Errorf("updating last login: %w", err)
	}
	return nil
}

// SetUserActive activates or deactivates a user. Users are never deleted.
func (q *Queries) SetUserActive(ctx context.Context, id int64, active bool) error {
	res, err := q.execBuilt(ctx, psql.Update("users").
		Set("is_active", active).
		Set("updated_at", q.now()).
		Where(sq.Eq{"id": id}))
	if err != nil {
		return fmt.Errorf("setting user active: %w", err)
	}
	return requireAffected(res)
}

// CountUsers returns the number of user rows.
func (q *Queries) CountUsers(ctx context.Context) (int64, error) {
	return q.countBuilt(ctx, psql.Select("COUNT(*)").From("users"))
}

// CountActiveSuperAdmins is used to refuse removing the last super admin.
func (q *Queries) CountActiveSuperAdmins(ctx context.Context) (int64, error) {
	return q.countBuilt(ctx, psql.Select("COUNT(*)").From("users").
		Where(sq.Eq{"role": rbac.RoleSuperAdmin, "is_active": 1}))
}
