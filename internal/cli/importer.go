// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/olegiv/agency-cms/internal/cache"
	"github.com/olegiv/agency-cms/internal/importer"
	"github.com/olegiv/agency-cms/internal/model"
	"github.com/olegiv/agency-cms/internal/service"
)

func newImportCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "import",
		Short: "Import content from other systems",
	}
	cmd.AddCommand(newImportLegacyCmd(a))
	return cmd
}

func newImportLegacyCmd(a *app) *cobra.Command {
	var (
		dsn    string
		prefix string
		author string
		opts   importer.Options
	)
	cmd := &cobra.Command{
		Use:   "legacy",
		Short: "Import blog posts from a legacy MySQL site",
		Long: `Copy blog posts from the legacy site's MySQL blog_post table.

Published posts keep their original publish time, queued posts with a
future date become scheduled and everything else is imported as a draft.
A post whose slug is taken is imported under a numbered slug unless
--skip-existing is set.`,
		Example: `  agencyctl import legacy --dsn 'user:pass@tcp(db:3306)/site' --prefix elefant_ --dry-run`,
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()

			if author != "" {
				u, err := a.queries.GetUserByEmail(ctx, model.NormalizeEmail(author))
				if err != nil {
					return fmt.Errorf("author %q: %w", author, describeErr(err))
				}
				opts.AuthorID = &u.ID
			}

			src, err := importer.Open(ctx, dsn, prefix)
			if err != nil {
				return err
			}
			defer func() { _ = src.Close() }()

			events := service.NewEventService(a.queries, a.logger)
			blog := service.NewContentService(service.BlogKind(a.queries), nil, a.tagged, events, nil, a.logger)
			res, err := importer.New(a.queries, blog, a.logger).Import(ctx, src, opts)
			if err != nil {
				return err
			}
			if a.tagged != nil && res.Imported > 0 && !opts.DryRun {
				if err := a.tagged.Invalidate(ctx, cache.TagBlog); err != nil {
					a.logger.Warn("failed to invalidate blog cache", "error", err)
				}
			}

			out := cmd.OutOrStdout()
			verb := "imported"
			if opts.DryRun {
				verb = "would import"
			}
			_, _ = fmt.Fprintf(out, "%s %d, skipped %d, failed %d\n", verb, res.Imported, res.Skipped, len(res.Errors))
			for _, e := range res.Errors {
				_, _ = fmt.Fprintf(out, "  %s\n", e)
			}
			return nil
		},
	}
	f := cmd.Flags()
	f.StringVar(&dsn, "dsn", "", "MySQL DSN of the legacy database (required)")
	f.StringVar(&prefix, "prefix", "", "legacy table prefix")
	f.StringVar(&author, "author", "", "email of the account credited as author")
	f.BoolVar(&opts.PublishedOnly, "published-only", false, "skip drafts and queued posts")
	f.BoolVar(&opts.SkipExisting, "skip-existing", false, "skip posts whose slug is taken")
	f.BoolVar(&opts.DryRun, "dry-run", false, "validate without writing")
	_ = cmd.MarkFlagRequired("dsn")
	return cmd
}
