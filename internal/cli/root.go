// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

// Package cli implements agencyctl, the operator command line for the
// agency CMS database: migrations, accounts, seeding and legacy imports.
package cli

import (
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/olegiv/agency-cms/internal/auth"
	"github.com/olegiv/agency-cms/internal/cache"
	"github.com/olegiv/agency-cms/internal/config"
	"github.com/olegiv/agency-cms/internal/store"
	"github.com/olegiv/agency-cms/internal/version"
)

// app holds what the subcommands share. It is filled by the root
// command's PersistentPreRunE.
type app struct {
	dbPath string

	cfg     *config.ToolsConfig
	logger  *slog.Logger
	db      *sql.DB
	queries *store.Queries
	auth    *auth.Service
	cache   cache.Cache
	tagged  *cache.Tagged
}

// NewRootCmd builds the agencyctl command tree.
func NewRootCmd() *cobra.Command {
	a := &app{}

	root := &cobra.Command{
		Use:   "agencyctl",
		Short: "Operator tool for the agency CMS",
		Long: `agencyctl manages an agency CMS database without going through the API.
It runs migrations, manages admin accounts, loads seed data and imports
blog posts from a legacy MySQL site.

Configuration is read from AGENCY_* environment variables and an optional
.env file, the same way the server reads it.`,
		Version:           version.Get().String(),
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: a.open,
		PersistentPostRunE: func(*cobra.Command, []string) error {
			return a.close()
		},
	}
	root.PersistentFlags().StringVar(&a.dbPath, "db", "", "SQLite database path (overrides AGENCY_DB_PATH)")

	root.AddCommand(
		newMigrateCmd(a),
		newUserCmd(a),
		newSeedCmd(a),
		newImportCmd(a),
	)
	return root
}

func (a *app) open(cmd *cobra.Command, _ []string) error {
	// Load .env files if present (development)
	_ = godotenv.Load()

	cfg, err := config.LoadTools()
	if err != nil {
		return err
	}
	if a.dbPath != "" {
		cfg.DBPath = a.dbPath
	}
	a.cfg = cfg
	a.logger = slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: cfg.SlogLevel()}))

	if err := os.MkdirAll(filepath.Dir(cfg.DBPath), 0o755); err != nil {
		return fmt.Errorf("creating data directory: %w", err)
	}
	db, err := store.NewDB(cfg.DBPath)
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	if err := store.Migrate(db); err != nil {
		_ = db.Close()
		return fmt.Errorf("running migrations: %w", err)
	}
	a.db = db
	a.queries = store.New(db)
	// No tokens are issued from the CLI.
	a.auth = auth.NewService(a.queries, nil, auth.NewHasher(auth.DefaultParams), a.logger)

	if cfg.RedisURL != "" {
		a.cache = cache.New(cache.Config{RedisURL: cfg.RedisURL, Prefix: cfg.CachePrefix}, a.logger)
		a.tagged = cache.NewTagged(a.cache)
	}
	return nil
}

func (a *app) close() error {
	if a.cache != nil {
		_ = a.cache.Close()
	}
	if a.db == nil {
		return nil
	}
	err := a.db.Close()
	a.db = nil
	return err
}
