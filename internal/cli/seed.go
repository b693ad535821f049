// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package cli

import (
	"fmt"
	"maps"
	"slices"

	"github.com/spf13/cobra"

	"github.com/olegiv/agency-cms/internal/seed"
)

func newSeedCmd(a *app) *cobra.Command {
	var (
		file      string
		email     string
		password  string
		skipAdmin bool
	)
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Seed the first admin, company defaults and optional fixtures",
		Long: `Create the first super admin when no account exists, insert missing
company info defaults and, with --file, load a YAML fixture document.

Content whose slug already exists is skipped, so seeding is safe to repeat.`,
		Example: `  agencyctl seed
  agencyctl seed --file fixtures/demo.yaml --skip-admin`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			s := seed.New(a.queries, a.auth, a.tagged, a.logger)

			if email == "" {
				email = a.cfg.SeedAdminEmail
			}
			if password == "" {
				password = a.cfg.SeedAdminPassword
			}
			if !skipAdmin {
				if _, err := s.Admin(ctx, email, password); err != nil {
					return err
				}
			}
			if err := s.CompanyDefaults(ctx); err != nil {
				return err
			}

			if file == "" {
				return nil
			}
			fx, err := seed.LoadFile(file)
			if err != nil {
				return err
			}
			res, err := s.Fixtures(ctx, fx)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			for _, name := range slices.Sorted(maps.Keys(union(res.Created, res.Skipped))) {
				_, _ = fmt.Fprintf(out, "%-13s created %d, skipped %d\n", name, res.Created[name], res.Skipped[name])
			}
			return nil
		},
	}
	f := cmd.Flags()
	f.StringVarP(&file, "file", "f", "", "YAML fixture document to load")
	f.StringVar(&email, "admin-email", "", "first admin email (default AGENCY_SEED_ADMIN_EMAIL)")
	f.StringVar(&password, "admin-password", "", "first admin password (default AGENCY_SEED_ADMIN_PASSWORD, generated when empty)")
	f.BoolVar(&skipAdmin, "skip-admin", false, "do not create the first admin")
	return cmd
}

func union(a, b map[string]int) map[string]int {
	out := maps.Clone(a)
	maps.Copy(out, b)
	return out
}
