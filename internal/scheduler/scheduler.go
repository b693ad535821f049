// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

// Package scheduler runs the background cron jobs: scheduled publishing,
// webhook retries, GeoIP reloads and audit log pruning.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/olegiv/agency-cms/internal/cache"
	"github.com/olegiv/agency-cms/internal/geoip"
	"github.com/olegiv/agency-cms/internal/model"
	"github.com/olegiv/agency-cms/internal/service"
	"github.com/olegiv/agency-cms/internal/store"
	"github.com/olegiv/agency-cms/internal/webhook"
)

// Job names.
const (
	JobPublishScheduled = "publish-scheduled"
	JobRetryWebhooks    = "retry-webhooks"
	JobReloadGeoIP      = "reload-geoip"
	JobPruneEvents      = "prune-events"
	JobPruneLimiters    = "prune-limiters"
)

// DefaultEventRetention is how long audit events are kept.
const DefaultEventRetention = 90 * 24 * time.Hour

// publishTargets maps schedulable tables to their cache tag and the kind
// reported in webhooks.
var publishTargets = map[string]struct{ tag, kind string }{
	"projects":   {cache.TagProjects, "projects"},
	"blog_posts": {cache.TagBlog, "blog"},
	"services":   {cache.TagServices, "services"},
}

// Publisher flips due scheduled rows to published.
type Publisher interface {
	PublishDue(ctx context.Context, table string, now time.Time) ([]int64, error)
}

// Deps are the collaborators of the jobs. Only Publisher is required.
type Deps struct {
	Publisher      Publisher
	Cache          *cache.Tagged
	Events         *service.EventService
	Webhooks       *webhook.Dispatcher
	GeoIP          *geoip.Resolver
	EventRetention time.Duration
}

// Scheduler handles scheduled tasks like publishing content.
type Scheduler struct {
	deps     Deps
	cron     *cron.Cron
	registry *Registry
	logger   *slog.Logger
	now      func() time.Time
}

// New creates a new scheduler instance.
func New(deps Deps, logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	if deps.EventRetention <= 0 {
		deps.EventRetention = DefaultEventRetention
	}
	c := cron.New()
	return &Scheduler{
		deps:     deps,
		cron:     c,
		registry: NewRegistry(c, logger),
		logger:   logger,
		now:      time.Now,
	}
}

// Registry exposes the registered jobs.
func (s *Scheduler) Registry() *Registry { return s.registry }

// Start registers the jobs whose dependencies are present and starts cron.
func (s *Scheduler) Start() error {
	if err := s.registry.Add(JobPublishScheduled, "Publish scheduled content whose time has come",
		"* * * * *", func() error { _, err := s.PublishScheduled(context.Background()); return err }); err != nil {
		return err
	}
	if s.deps.Webhooks.Enabled() {
		if err := s.registry.Add(JobRetryWebhooks, "Retry failed webhook deliveries",
			"*/2 * * * *", s.retryWebhooks); err != nil {
			return err
		}
	}
	if s.deps.GeoIP != nil && s.deps.GeoIP.Enabled() {
		if err := s.registry.Add(JobReloadGeoIP, "Reload the GeoIP database if it changed",
			"15 3 * * *", s.deps.GeoIP.Reload); err != nil {
			return err
		}
	}
	if s.deps.Events != nil {
		if err := s.registry.Add(JobPruneEvents, "Delete old audit events",
			"30 3 * * *", s.pruneEvents); err != nil {
			return err
		}
	}

	s.cron.Start()
	s.logger.Info("scheduler started", "jobs", len(s.cron.Entries()))
	return nil
}

// Stop gracefully stops the scheduler.
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	s.logger.Info("scheduler stopped")
}

// PublishScheduled publishes every due item across the schedulable tables
// and returns how many were published. Each affected content type has its
// cache tag invalidated.
func (s *Scheduler) PublishScheduled(ctx context.Context) (int, error) {
	now := s.now()
	published := 0
	var firstErr error

	for _, table := range store.PublishableTables {
		ids, err := s.deps.Publisher.PublishDue(ctx, table, now)
		if err != nil {
			s.logger.Error("failed to publish scheduled content", "table", table, "error", err)
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		if len(ids) == 0 {
			continue
		}
		published += len(ids)
		target := publishTargets[table]

		if s.deps.Cache != nil {
			if err := s.deps.Cache.Invalidate(ctx, target.tag); err != nil {
				s.logger.Warn("failed to invalidate cache tag", "tag", target.tag, "error", err)
			}
		}
		for _, id := range ids {
			s.announce(ctx, target.kind, id, now)
		}
	}

	if published > 0 {
		s.logger.Info("published scheduled content", "count", published)
	}
	if firstErr != nil {
		return published, fmt.Errorf("publishing scheduled content: %w", firstErr)
	}
	return published, nil
}

func (s *Scheduler) announce(ctx context.Context, kind string, id int64, now time.Time) {
	if s.deps.Events != nil {
		_ = s.deps.Events.LogContentEvent(ctx, model.EventLevelInfo,
			fmt.Sprintf("Scheduled %s item %d published", kind, id), service.Source{},
			map[string]any{"kind": kind, "id": id, "published_at": now.UTC().Format(time.RFC3339)})
	}
	if s.deps.Webhooks.Enabled() {
		at := now.UTC()
		err := s.deps.Webhooks.DispatchEvent(ctx, webhook.EventContentPublished, webhook.ContentEventData{
			Kind:        kind,
			ID:          id,
			PublishedAt: &at,
			Scheduled:   true,
		})
		if err != nil {
			s.logger.Warn("failed to dispatch publish webhook", "kind", kind, "id", id, "error", err)
		}
	}
}

func (s *Scheduler) retryWebhooks() error {
	n, err := s.deps.Webhooks.RetryDue(context.Background())
	if n > 0 {
		s.logger.Info("retried webhook deliveries", "count", n)
	}
	return err
}

func (s *Scheduler) pruneEvents() error {
	n, err := s.deps.Events.DeleteOldEvents(context.Background(), s.deps.EventRetention)
	if err != nil {
		return err
	}
	if n > 0 {
		s.logger.Info("pruned audit events", "count", n)
	}
	return nil
}
