// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

// Package importer copies blog posts from a legacy site's MySQL database
// into the blog.
package importer

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"

	"github.com/olegiv/agency-cms/internal/content"
	"github.com/olegiv/agency-cms/internal/model"
	"github.com/olegiv/agency-cms/internal/service"
	"github.com/olegiv/agency-cms/internal/store"
)

// PostSource yields legacy posts. *Reader implements it.
type PostSource interface {
	Posts(ctx context.Context, publishedOnly bool) ([]LegacyPost, error)
}

// Options control an import run.
type Options struct {
	// PublishedOnly skips drafts and queued posts.
	PublishedOnly bool
	// SkipExisting skips posts whose slug is already taken instead of
	// importing them under a suffixed slug.
	SkipExisting bool
	// DryRun maps and validates posts without writing them.
	DryRun bool
	// AuthorID is stamped on imported posts.
	AuthorID *int64
}

// Result summarizes an import run.
type Result struct {
	Imported int      `json:"imported"`
	Skipped  int      `json:"skipped"`
	Errors   []string `json:"errors,omitempty"`
}

// Importer writes legacy posts through the blog content service, so they
// get the same rendering, validation, cache invalidation and audit events
// as posts created over the API.
type Importer struct {
	queries *store.Queries
	blog    *service.ContentService[*model.BlogPost]
	logger  *slog.Logger
	now     func() time.Time
}

// New creates an Importer. blog may be nil, in which case a service
// without cache or notifier is built over q.
func New(q *store.Queries, blog *service.ContentService[*model.BlogPost], logger *slog.Logger) *Importer {
	if logger == nil {
		logger = slog.Default()
	}
	if blog == nil {
		blog = service.NewContentService(service.BlogKind(q), nil, nil, service.NewEventService(q, logger), nil, logger)
	}
	return &Importer{queries: q, blog: blog, logger: logger, now: time.Now}
}

// Import copies every post of src. Per-post failures are collected in the
// result; only a failure to read src aborts the run.
func (im *Importer) Import(ctx context.Context, src PostSource, opts Options) (*Result, error) {
	posts, err := src.Posts(ctx, opts.PublishedOnly)
	if err != nil {
		return nil, fmt.Errorf("failed to read legacy posts: %w", err)
	}

	result := &Result{}
	origin := service.Source{UserID: opts.AuthorID, RequestURL: "import:legacy"}

	for _, lp := range posts {
		if err := ctx.Err(); err != nil {
			return result, err
		}

		post := im.mapPost(lp)

		base := post.Slug
		if base == "" {
			base = content.Slugify(post.Title)
		}
		if base != "" {
			taken, err := im.queries.BlogPostSlugExists(ctx, base, 0)
			if err != nil {
				return result, fmt.Errorf("checking slug %q: %w", base, err)
			}
			if taken {
				if opts.SkipExisting {
					result.Skipped++
					continue
				}
				unique, err := content.UniqueSlug(ctx, base, func(ctx context.Context, slug string) (bool, error) {
					return im.queries.BlogPostSlugExists(ctx, slug, 0)
				})
				if err != nil {
					result.Errors = append(result.Errors, fmt.Sprintf("Post %d %q: %v", lp.ID, lp.Title, err))
					continue
				}
				base = unique
			}
		}
		post.Slug = base

		if opts.DryRun {
			if err := post.Validate(); err != nil {
				result.Errors = append(result.Errors, describe(lp, err))
				continue
			}
			result.Imported++
			continue
		}

		created, err := im.blog.Create(ctx, post, origin)
		if err != nil {
			result.Errors = append(result.Errors, describe(lp, err))
			continue
		}

		// Keep the legacy publication date instead of the import time.
		if created.Status == model.StatusPublished && !lp.Timestamp.IsZero() {
			at := lp.Timestamp.UTC().Truncate(time.Second)
			created.PublishedAt = &at
			if err := im.queries.UpdateBlogPost(ctx, created); err != nil {
				result.Errors = append(result.Errors, fmt.Sprintf("Post %d %q: failed to set published_at: %v", lp.ID, lp.Title, err))
			}
		}
		result.Imported++
	}

	im.logger.Info("legacy import finished",
		"imported", result.Imported, "skipped", result.Skipped, "errors", len(result.Errors), "dry_run", opts.DryRun)
	return result, nil
}

// mapPost converts a legacy row to a blog post. Queued posts dated in the
// future become scheduled; other queued posts and drafts become drafts.
func (im *Importer) mapPost(lp LegacyPost) *model.BlogPost {
	post := &model.BlogPost{
		Title:    strings.TrimSpace(lp.Title),
		Slug:     content.Slugify(lp.Slug),
		Body:     lp.Body,
		Excerpt:  truncate(nullStringToString(lp.Description), model.MaxSummaryLength),
		Tags:     parseTags(lp.Tags),
		ImageURL: imageURL(nullStringToString(lp.Thumbnail)),
		Status:   model.StatusDraft,
	}

	switch lp.Published {
	case publishedYes:
		post.Status = model.StatusPublished
	case publishedQueued:
		if lp.Timestamp.After(im.now()) {
			at := lp.Timestamp.UTC().Truncate(time.Second)
			post.Status = model.StatusScheduled
			post.PublishAt = &at
		}
	}
	return post
}

// parseTags reads the legacy tag list: a JSON array, or a comma
// separated string on rows written by old versions.
func parseTags(raw string) []string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}

	var tags []string
	if err := json.Unmarshal([]byte(raw), &tags); err != nil {
		tags = strings.Split(raw, ",")
	}

	out := make([]string, 0, len(tags))
	seen := make(map[string]bool, len(tags))
	for _, t := range tags {
		t = strings.ToLower(strings.TrimSpace(t))
		if t == "" || len(t) > 50 || seen[t] {
			continue
		}
		seen[t] = true
		out = append(out, t)
	}
	return out
}

// imageURL keeps thumbnails the blog can link to. Legacy paths are site
// relative without the leading slash.
func imageURL(thumb string) string {
	thumb = strings.TrimSpace(thumb)
	switch {
	case thumb == "":
		return ""
	case strings.HasPrefix(thumb, "http://"), strings.HasPrefix(thumb, "https://"):
		return thumb
	case strings.HasPrefix(thumb, "//"):
		return ""
	case strings.HasPrefix(thumb, "/"):
		return thumb
	}
	return "/" + thumb
}

func truncate(s string, n int) string {
	s = strings.TrimSpace(s)
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return strings.TrimSpace(string(r[:n]))
}

func nullStringToString(ns sql.NullString) string {
	if ns.Valid {
		return ns.String
	}
	return ""
}

// describe formats a per-post failure, listing validation fields.
func describe(lp LegacyPost, err error) string {
	if ve, ok := model.AsValidationError(err); ok {
		fields := make([]string, 0, len(ve.Fields))
		for f, msg := range ve.Fields {
			fields = append(fields, f+": "+msg)
		}
		slices.Sort(fields)
		return fmt.Sprintf("Post %d %q: %s", lp.ID, lp.Title, strings.Join(fields, "; "))
	}
	return fmt.Sprintf("Post %d %q: %v", lp.ID, lp.Title, err)
}
