// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

// Package seed fills a fresh database: the first super admin, the default
// company info rows and optional YAML content fixtures.
package seed

import (
	"context"
	"crypto/rand"
	"fmt"
	"log/slog"

	"github.com/olegiv/agency-cms/internal/auth"
	"github.com/olegiv/agency-cms/internal/cache"
	"github.com/olegiv/agency-cms/internal/model"
	"github.com/olegiv/agency-cms/internal/rbac"
	"github.com/olegiv/agency-cms/internal/service"
	"github.com/olegiv/agency-cms/internal/store"
)

// DefaultCompanyInfo is inserted on seed for every key that does not exist
// yet. Existing values are never overwritten.
var DefaultCompanyInfo = []model.CompanyInfo{
	{Key: "company.name", Value: "Our Agency", ValueType: model.ValueTypeText, IsPublic: true, Description: "Agency name shown in the site header"},
	{Key: "company.tagline", Value: "We design and build digital products", ValueType: model.ValueTypeText, IsPublic: true, Description: "Short slogan"},
	{Key: "company.email", Value: "hello@example.com", ValueType: model.ValueTypeEmail, IsPublic: true, Description: "Public contact address"},
	{Key: "company.phone", Value: "", ValueType: model.ValueTypeText, IsPublic: true, Description: "Public phone number"},
	{Key: "company.address", Value: "", ValueType: model.ValueTypeText, IsPublic: true, Description: "Office address"},
	{Key: "company.founded", Value: "2020", ValueType: model.ValueTypeNumber, IsPublic: true, Description: "Founding year"},
	{Key: "social.links", Value: "{}", ValueType: model.ValueTypeJSON, IsPublic: true, Description: "Social profile URLs by network"},
	{Key: "contact.notify_email", Value: "hello@example.com", ValueType: model.ValueTypeEmail, IsPublic: false, Description: "Where new contact submissions are announced"},
	{Key: "site.maintenance", Value: "false", ValueType: model.ValueTypeBoolean, IsPublic: true, Description: "Shows the maintenance banner"},
}

// Seeder writes seed data.
type Seeder struct {
	queries *store.Queries
	auth    *auth.Service
	cache   *cache.Tagged
	logger  *slog.Logger

	projects *service.ContentService[*model.Project]
	blog     *service.ContentService[*model.BlogPost]
	team     *service.ContentService[*model.TeamMember]
	services *service.ContentService[*model.Service]
}

// New creates a Seeder. tagged may be nil; when set, seeded content
// invalidates the matching cache tags.
func New(q *store.Queries, authSvc *auth.Service, tagged *cache.Tagged, logger *slog.Logger) *Seeder {
	if logger == nil {
		logger = slog.Default()
	}
	events := service.NewEventService(q, logger)
	return &Seeder{
		queries:  q,
		auth:     authSvc,
		cache:    tagged,
		logger:   logger,
		projects: service.NewContentService(service.ProjectsKind(q), nil, tagged, events, nil, logger),
		blog:     service.NewContentService(service.BlogKind(q), nil, tagged, events, nil, logger),
		team:     service.NewContentService(service.TeamKind(q), nil, tagged, events, nil, logger),
		services: service.NewContentService(service.ServicesKind(q), nil, tagged, events, nil, logger),
	}
}

// Admin creates a super admin when the users table is empty. An empty
// password is replaced by a random one, which is logged once. It returns
// nil when users already exist.
func (s *Seeder) Admin(ctx context.Context, email, password string) (*model.User, error) {
	n, err := s.queries.CountUsers(ctx)
	if err != nil {
		return nil, fmt.Errorf("counting users: %w", err)
	}
	if n > 0 {
		s.logger.Info("users already exist, skipping admin seed")
		return nil, nil
	}

	generated := password == ""
	if generated {
		password = rand.Text()
	}

	user, err := s.auth.CreateUser(ctx, auth.NewUser{
		Email:     email,
		Password:  password,
		FirstName: "Site",
		LastName:  "Administrator",
		Role:      rbac.RoleSuperAdmin,
	})
	if err != nil {
		return nil, fmt.Errorf("creating admin user: %w", err)
	}

	if generated {
		s.logger.Warn("created super admin with a generated password; change it after first login",
			"email", user.Email, "password", password)
	} else {
		s.logger.Info("created super admin", "id", user.ID, "email", user.Email)
	}
	return user, nil
}

// CompanyDefaults inserts the missing DefaultCompanyInfo rows.
func (s *Seeder) CompanyDefaults(ctx context.Context) error {
	for _, c := range DefaultCompanyInfo {
		if err := s.queries.InsertCompanyInfoIfMissing(ctx, &c); err != nil {
			return fmt.Errorf("seeding company info %q: %w", c.Key, err)
		}
	}
	s.invalidate(ctx, cache.TagCompany)
	return nil
}

// Run seeds the admin account and the company defaults.
func (s *Seeder) Run(ctx context.Context, adminEmail, adminPassword string) error {
	if _, err := s.Admin(ctx, adminEmail, adminPassword); err != nil {
		return err
	}
	return s.CompanyDefaults(ctx)
}

func (s *Seeder) invalidate(ctx context.Context, tag string) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Invalidate(ctx, tag); err != nil {
		s.logger.Warn("failed to invalidate cache tag", "tag", tag, "error", err)
	}
}
