// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

// Package testutil provides shared test helpers for agency-cms.
package testutil

import (
	"context"
	"database/sql"
	"io"
	"log/slog"
	"os"
	"testing"

	"github.com/olegiv/agency-cms/internal/auth"
	"github.com/olegiv/agency-cms/internal/model"
	"github.com/olegiv/agency-cms/internal/rbac"
	"github.com/olegiv/agency-cms/internal/store"
)

// TestTokenSecret is a 32+ byte signing secret for tests.
const TestTokenSecret = "test-secret-0123456789-abcdefghijklmnop"

// FastParams keeps argon2 cheap in tests.
var FastParams = auth.Params{Time: 1, Memory: 64, Threads: 1, KeyLen: 16, SaltLen: 8}

// TestLogger creates a silent test logger that only outputs warnings and errors.
func TestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelWarn,
	}))
}

// DiscardLogger drops everything.
func DiscardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// TestDB creates a temporary test database with all migrations applied.
// Returns the database and a cleanup function that should be deferred.
func TestDB(t *testing.T) (*sql.DB, func()) {
	t.Helper()

	f, err := os.CreateTemp(t.TempDir(), "agency-test-*.db")
	if err != nil {
		t.Fatalf("creating temp file: %v", err)
	}
	dbPath := f.Name()
	_ = f.Close()

	db, err := store.NewDB(dbPath)
	if err != nil {
		_ = os.Remove(dbPath)
		t.Fatalf("NewDB: %v", err)
	}

	if err := store.Migrate(db); err != nil {
		_ = db.Close()
		_ = os.Remove(dbPath)
		t.Fatalf("Migrate: %v", err)
	}

	return db, func() {
		_ = db.Close()
		_ = os.Remove(dbPath)
	}
}

// CreateUser stores an active user with role's template permissions and
// the given password hashed with FastParams.
func CreateUser(t *testing.T, db *sql.DB, email, password, role string) *model.User {
	t.Helper()

	hash, err := auth.NewHasher(FastParams).Hash(password)
	if err != nil {
		t.Fatalf("hashing password: %v", err)
	}
	u := &model.User{
		Email:        email,
		PasswordHash: hash,
		FirstName:    "Test",
		LastName:     role,
		Role:         role,
		Permissions:  rbac.RoleTemplate(role),
		IsActive:     true,
	}
	if err := store.New(db).CreateUser(context.Background(), u); err != nil {
		t.Fatalf("CreateUser(%s): %v", email, err)
	}
	return u
}

// AuthService returns an auth.Service over db using FastParams.
func AuthService(db *sql.DB) *auth.Service {
	return auth.NewService(
		store.New(db),
		auth.NewTokens(TestTokenSecret, auth.DefaultTokenTTL, "agency-cms-test"),
		auth.NewHasher(FastParams),
		DiscardLogger(),
	)
}
