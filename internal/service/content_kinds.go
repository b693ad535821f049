// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package service

import (
	"context"
	"strings"

	"github.com/olegiv/agency-cms/internal/cache"
	"github.com/olegiv/agency-cms/internal/content"
	"github.com/olegiv/agency-cms/internal/model"
	"github.com/olegiv/agency-cms/internal/rbac"
	"github.com/olegiv/agency-cms/internal/store"
)

// ptrs converts a page of rows to pointers.
func ptrs[E any](rows []E) []*E {
	out := make([]*E, len(rows))
	for i := range rows {
		out[i] = &rows[i]
	}
	return out
}

// listOf adapts a store list function to pointer results.
func listOf[E any](fn func(context.Context, store.ListFilter) ([]E, int64, error)) func(context.Context, store.ListFilter) ([]*E, int64, error) {
	return func(ctx context.Context, f store.ListFilter) ([]*E, int64, error) {
		rows, total, err := fn(ctx, f)
		if err != nil {
			return nil, 0, err
		}
		return ptrs(rows), total, nil
	}
}

// getOf adapts a store lookup to a pointer result.
func getOf[E, K any](fn func(context.Context, K) (E, error)) func(context.Context, K) (*E, error) {
	return func(ctx context.Context, key K) (*E, error) {
		row, err := fn(ctx, key)
		if err != nil {
			return nil, err
		}
		return &row, nil
	}
}

func trimList(in []string) []string {
	out := make([]string, 0, len(in))
	for _, v := range in {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}

// ProjectsKind binds portfolio projects to q.
func ProjectsKind(q *store.Queries) Kind[*model.Project] {
	return Kind[*model.Project]{
		Name:       "projects",
		Resource:   rbac.ResourceProjects,
		Tag:        cache.TagProjects,
		New:        func() *model.Project { return &model.Project{} },
		List:       listOf(q.ListProjects),
		GetByID:    getOf(q.GetProjectByID),
		GetBySlug:  getOf(q.GetProjectBySlug),
		SlugExists: q.ProjectSlugExists,
		Create:     q.CreateProject,
		Update:     q.UpdateProject,
		Delete:     q.DeleteProject,
		Prepare: func(r *content.Renderer, p *model.Project) error {
			p.Title = strings.TrimSpace(p.Title)
			p.Summary = strings.TrimSpace(p.Summary)
			p.Category = strings.TrimSpace(p.Category)
			p.Client = strings.TrimSpace(p.Client)
			p.Technologies = trimList(p.Technologies)
			html, err := r.Render(p.Body)
			if err != nil {
				return err
			}
			p.BodyHTML = html
			return nil
		},
		KeepSystemFields: func(item, orig *model.Project) { item.KeepSystemFields(orig) },
		SetAuthor:        func(item *model.Project, id *int64) { item.AuthorID = id },
		DefaultStatus:    model.StatusDraft,
	}
}

// BlogKind binds blog posts to q.
func BlogKind(q *store.Queries) Kind[*model.BlogPost] {
	return Kind[*model.BlogPost]{
		Name:       "blog",
		Resource:   rbac.ResourceBlog,
		Tag:        cache.TagBlog,
		New:        func() *model.BlogPost { return &model.BlogPost{} },
		List:       listOf(q.ListBlogPosts),
		GetByID:    getOf(q.GetBlogPostByID),
		GetBySlug:  getOf(q.GetBlogPostBySlug),
		SlugExists: q.BlogPostSlugExists,
		Create:     q.CreateBlogPost,
		Update:     q.UpdateBlogPost,
		Delete:     q.DeleteBlogPost,
		Prepare: func(r *content.Renderer, b *model.BlogPost) error {
			b.Title = strings.TrimSpace(b.Title)
			b.Excerpt = strings.TrimSpace(b.Excerpt)
			b.Category = strings.TrimSpace(b.Category)
			tags := trimList(b.Tags)
			for i, tag := range tags {
				tags[i] = strings.ToLower(tag)
			}
			b.Tags = tags
			html, err := r.Render(b.Body)
			if err != nil {
				return err
			}
			b.BodyHTML = html
			b.ReadingTime = content.ReadingTime(b.Body)
			return nil
		},
		KeepSystemFields: func(item, orig *model.BlogPost) { item.KeepSystemFields(orig) },
		SetAuthor:        func(item *model.BlogPost, id *int64) { item.AuthorID = id },
		DefaultStatus:    model.StatusDraft,
	}
}

// TeamKind binds team members to q. The member's name plays the title.
func TeamKind(q *store.Queries) Kind[*model.TeamMember] {
	return Kind[*model.TeamMember]{
		Name:       "team",
		Resource:   rbac.ResourceTeam,
		Tag:        cache.TagTeam,
		New:        func() *model.TeamMember { return &model.TeamMember{} },
		List:       listOf(q.ListTeamMembers),
		GetByID:    getOf(q.GetTeamMemberByID),
		GetBySlug:  getOf(q.GetTeamMemberBySlug),
		SlugExists: q.TeamMemberSlugExists,
		Create:     q.CreateTeamMember,
		Update:     q.UpdateTeamMember,
		Delete:     q.DeleteTeamMember,
		Prepare: func(r *content.Renderer, m *model.TeamMember) error {
			m.Name = strings.TrimSpace(m.Name)
			m.Position = strings.TrimSpace(m.Position)
			m.Email = strings.ToLower(strings.TrimSpace(m.Email))
			html, err := r.Render(m.Bio)
			if err != nil {
				return err
			}
			m.BioHTML = html
			return nil
		},
		KeepSystemFields: func(item, orig *model.TeamMember) { item.KeepSystemFields(orig) },
		SetAuthor:        func(item *model.TeamMember, id *int64) { item.AuthorID = id },
		DefaultStatus:    model.TeamStatusActive,
	}
}

// ServicesKind binds agency services to q.
func ServicesKind(q *store.Queries) Kind[*model.Service] {
	return Kind[*model.Service]{
		Name:       "services",
		Resource:   rbac.ResourceServices,
		Tag:        cache.TagServices,
		New:        func() *model.Service { return &model.Service{} },
		List:       listOf(q.ListServices),
		GetByID:    getOf(q.GetServiceByID),
		GetBySlug:  getOf(q.GetServiceBySlug),
		SlugExists: q.ServiceSlugExists,
		Create:     q.CreateService,
		Update:     q.UpdateService,
		Delete:     q.DeleteService,
		Prepare: func(r *content.Renderer, s *model.Service) error {
			s.Title = strings.TrimSpace(s.Title)
			s.Summary = strings.TrimSpace(s.Summary)
			s.Icon = strings.TrimSpace(s.Icon)
			s.PriceFrom = strings.TrimSpace(s.PriceFrom)
			s.Features = trimList(s.Features)
			html, err := r.Render(s.Body)
			if err != nil {
				return err
			}
			s.BodyHTML = html
			return nil
		},
		KeepSystemFields: func(item, orig *model.Service) { item.KeepSystemFields(orig) },
		SetAuthor:        func(item *model.Service, id *int64) { item.AuthorID = id },
		DefaultStatus:    model.StatusDraft,
	}
}
