// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package model

import (
	"net/url"
	"strconv"
	"strings"
	"time"
)

// Lifecycle states shared by projects, blog posts and services.
const (
	StatusDraft     = "draft"
	StatusScheduled = "scheduled"
	StatusPublished = "published"
	StatusArchived  = "archived"
)

// Team member states. Active is the published-equivalent.
const (
	TeamStatusActive   = "active"
	TeamStatusInactive = "inactive"
)

// Field limits.
const (
	MaxTitleLength   = 200
	MaxSlugLength    = 200
	MaxSummaryLength = 500
)

var contentStatuses = []string{StatusDraft, StatusScheduled, StatusPublished, StatusArchived}

var teamStatuses = []string{TeamStatusActive, TeamStatusInactive}

// Content is implemented by every publishable content type.
type Content interface {
	GetID() int64
	GetSlug() string
	SetSlug(string)
	GetTitle() string
	GetStatus() string
	SetStatus(string)
	// PublicStatus is the published-equivalent state of the type.
	PublicStatus() string
	// MarkPublished stamps the first publication time.
	MarkPublished(at time.Time)
	Validate() error
}

// Project is a portfolio case study.
type Project struct {
	ID           int64      `json:"id"`
	Title        string     `json:"title"`
	Slug         string     `json:"slug"`
	Summary      string     `json:"summary"`
	Body         string     `json:"body"`
	BodyHTML     string     `json:"body_html"`
	Category     string     `json:"category"`
	Client       string     `json:"client"`
	Technologies []string   `json:"technologies"`
	ImageURL     string     `json:"image_url"`
	ProjectURL   string     `json:"project_url"`
	Featured     bool       `json:"featured"`
	Status       string     `json:"status"`
	PublishAt    *time.Time `json:"publish_at,omitempty"`
	PublishedAt  *time.Time `json:"published_at,omitempty"`
	AuthorID     *int64     `json:"author_id,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

func (p *Project) GetID() int64         { return p.ID }
func (p *Project) GetSlug() string      { return p.Slug }
func (p *Project) SetSlug(s string)     { p.Slug = s }
func (p *Project) GetTitle() string     { return p.Title }
func (p *Project) GetStatus() string    { return p.Status }
func (p *Project) SetStatus(v string)   { p.Status = v }
func (p *Project) PublicStatus() string { return StatusPublished }

func (p *Project) MarkPublished(at time.Time) {
	if p.PublishedAt == nil {
		p.PublishedAt = &at
	}
}

// KeepSystemFields copies server-owned fields from orig.
func (p *Project) KeepSystemFields(orig *Project) {
	p.ID = orig.ID
	p.AuthorID = orig.AuthorID
	p.PublishedAt = orig.PublishedAt
	p.CreatedAt = orig.CreatedAt
}

func (p *Project) Validate() error {
	ve := NewValidationError()
	validateTitle(ve, "title", p.Title)
	validateSlug(ve, p.Slug)
	validateLength(ve, "summary", p.Summary, MaxSummaryLength)
	validateLength(ve, "category", p.Category, 100)
	validateURL(ve, "project_url", p.ProjectURL)
	validateURL(ve, "image_url", p.ImageURL)
	validateStatus(ve, p.Status, contentStatuses, p.PublishAt)
	return ve.Err()
}

// BlogPost is an article on the agency blog.
type BlogPost struct {
	ID          int64      `json:"id"`
	Title       string     `json:"title"`
	Slug        string     `json:"slug"`
	Excerpt     string     `json:"excerpt"`
	Body        string     `json:"body"`
	BodyHTML    string     `json:"body_html"`
	Category    string     `json:"category"`
	Tags        []string   `json:"tags"`
	ImageURL    string     `json:"image_url"`
	ReadingTime int        `json:"reading_time"`
	Status      string     `json:"status"`
	PublishAt   *time.Time `json:"publish_at,omitempty"`
	PublishedAt *time.Time `json:"published_at,omitempty"`
	AuthorID    *int64     `json:"author_id,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

func (b *BlogPost) GetID() int64         { return b.ID }
func (b *BlogPost) GetSlug() string      { return b.Slug }
func (b *BlogPost) SetSlug(s string)     { b.Slug = s }
func (b *BlogPost) GetTitle() string     { return b.Title }
func (b *BlogPost) GetStatus() string    { return b.Status }
func (b *BlogPost) SetStatus(v string)   { b.Status = v }
func (b *BlogPost) PublicStatus() string { return StatusPublished }

func (b *BlogPost) MarkPublished(at time.Time) {
	if b.PublishedAt == nil {
		b.PublishedAt = &at
	}
}

// KeepSystemFields copies server-owned fields from orig.
func (b *BlogPost) KeepSystemFields(orig *BlogPost) {
	b.ID = orig.ID
	b.AuthorID = orig.AuthorID
	b.PublishedAt = orig.PublishedAt
	b.CreatedAt = orig.CreatedAt
}

func (b *BlogPost) Validate() error {
	ve := NewValidationError()
	validateTitle(ve, "title", b.Title)
	validateSlug(ve, b.Slug)
	validateLength(ve, "excerpt", b.Excerpt, MaxSummaryLength)
	if strings.TrimSpace(b.Body) == "" {
		ve.Add("body", "Body is required")
	}
	validateLength(ve, "category", b.Category, 100)
	validateURL(ve, "image_url", b.ImageURL)
	for _, tag := range b.Tags {
		if strings.TrimSpace(tag) == "" || len(tag) > 50 {
			ve.Add("tags", "Tags must be 1 to 50 characters")
			break
		}
	}
	validateStatus(ve, b.Status, contentStatuses, b.PublishAt)
	return ve.Err()
}

// TeamMember is a person shown on the team page.
type TeamMember struct {
	ID          int64     `json:"id"`
	Name        string    `json:"name"`
	Slug        string    `json:"slug"`
	Position    string    `json:"position"`
	Bio         string    `json:"bio"`
	BioHTML     string    `json:"bio_html"`
	PhotoURL    string    `json:"photo_url"`
	Email       string    `json:"email"`
	LinkedInURL string    `json:"linkedin_url"`
	GitHubURL   string    `json:"github_url"`
	TwitterURL  string    `json:"twitter_url"`
	SortOrder   int       `json:"sort_order"`
	Status      string    `json:"status"`
	AuthorID    *int64    `json:"author_id,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

func (m *TeamMember) GetID() int64         { return m.ID }
func (m *TeamMember) GetSlug() string      { return m.Slug }
func (m *TeamMember) SetSlug(s string)     { m.Slug = s }
func (m *TeamMember) GetTitle() string     { return m.Name }
func (m *TeamMember) GetStatus() string    { return m.Status }
func (m *TeamMember) SetStatus(v string)   { m.Status = v }
func (m *TeamMember) PublicStatus() string { return TeamStatusActive }

// MarkPublished is a no-op; team members carry no publication time.
func (m *TeamMember) MarkPublished(time.Time) {}

// KeepSystemFields copies server-owned fields from orig.
func (m *TeamMember) KeepSystemFields(orig *TeamMember) {
	m.ID = orig.ID
	m.AuthorID = orig.AuthorID
	m.CreatedAt = orig.CreatedAt
}

func (m *TeamMember) Validate() error {
	ve := NewValidationError()
	validateTitle(ve, "name", m.Name)
	validateSlug(ve, m.Slug)
	if strings.TrimSpace(m.Position) == "" {
		ve.Add("position", "Position is required")
	}
	validateLength(ve, "position", m.Position, 100)
	if m.Email != "" && !ValidEmail(m.Email) {
		ve.Add("email", "Email is not a valid address")
	}
	validateURL(ve, "photo_url", m.PhotoURL)
	validateURL(ve, "linkedin_url", m.LinkedInURL)
	validateURL(ve, "github_url", m.GitHubURL)
	validateURL(ve, "twitter_url", m.TwitterURL)
	validateStatus(ve, m.Status, teamStatuses, nil)
	return ve.Err()
}

// Service is an offering listed on the services page.
type Service struct {
	ID          int64      `json:"id"`
	Title       string     `json:"title"`
	Slug        string     `json:"slug"`
	Summary     string     `json:"summary"`
	Body        string     `json:"body"`
	BodyHTML    string     `json:"body_html"`
	Icon        string     `json:"icon"`
	Features    []string   `json:"features"`
	PriceFrom   string     `json:"price_from"`
	SortOrder   int        `json:"sort_order"`
	Status      string     `json:"status"`
	PublishAt   *time.Time `json:"publish_at,omitempty"`
	PublishedAt *time.Time `json:"published_at,omitempty"`
	AuthorID    *int64     `json:"author_id,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

func (s *Service) GetID() int64         { return s.ID }
func (s *Service) GetSlug() string      { return s.Slug }
func (s *Service) SetSlug(v string)     { s.Slug = v }
func (s *Service) GetTitle() string     { return s.Title }
func (s *Service) GetStatus() string    { return s.Status }
func (s *Service) SetStatus(v string)   { s.Status = v }
func (s *Service) PublicStatus() string { return StatusPublished }

func (s *Service) MarkPublished(at time.Time) {
	if s.PublishedAt == nil {
		s.PublishedAt = &at
	}
}

// KeepSystemFields copies server-owned fields from orig.
func (s *Service) KeepSystemFields(orig *Service) {
	s.ID = orig.ID
	s.AuthorID = orig.AuthorID
	s.PublishedAt = orig.PublishedAt
	s.CreatedAt = orig.CreatedAt
}

func (s *Service) Validate() error {
	ve := NewValidationError()
	validateTitle(ve, "title", s.Title)
	validateSlug(ve, s.Slug)
	if strings.TrimSpace(s.Summary) == "" {
		ve.Add("summary", "Summary is required")
	}
	validateLength(ve, "summary", s.Summary, MaxSummaryLength)
	validateLength(ve, "icon", s.Icon, 100)
	validateLength(ve, "price_from", s.PriceFrom, 50)
	validateStatus(ve, s.Status, contentStatuses, s.PublishAt)
	return ve.Err()
}

func validateTitle(ve *ValidationError, field, v string) {
	label := strings.ToUpper(field[:1]) + field[1:]
	if strings.TrimSpace(v) == "" {
		ve.Add(field, label+" is required")
		return
	}
	validateLength(ve, field, v, MaxTitleLength)
}

func validateLength(ve *ValidationError, field, v string, limit int) {
	if len(v) > limit {
		ve.Add(field, "Must be at most "+strconv.Itoa(limit)+" characters")
	}
}

func validateSlug(ve *ValidationError, slug string) {
	switch {
	case slug == "":
		ve.Add("slug", "Slug is required")
	case len(slug) > MaxSlugLength:
		ve.Add("slug", "Must be at most "+strconv.Itoa(MaxSlugLength)+" characters")
	case !IsValidSlug(slug):
		ve.Add("slug", "Slug may only contain lowercase letters, digits and single hyphens")
	case isAllDigits(slug):
		// Numeric path segments are looked up as ids.
		ve.Add("slug", "Slug must contain at least one letter")
	}
}

func validateURL(ve *ValidationError, field, v string) {
	if v == "" {
		return
	}
	if strings.HasPrefix(v, "/") && !strings.HasPrefix(v, "//") {
		return
	}
	u, err := url.Parse(v)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		ve.Add(field, "Must be an http(s) URL or a site-relative path")
	}
}

func validateStatus(ve *ValidationError, status string, allowed []string, publishAt *time.Time) {
	for _, s := range allowed {
		if s == status {
			if status == StatusScheduled && publishAt == nil {
				ve.Add("publish_at", "Scheduled content needs a publish time")
			}
			return
		}
	}
	ve.Add("status", "Status must be one of "+strings.Join(allowed, ", "))
}

// IsValidSlug checks the lowercase-hyphen slug format.
func IsValidSlug(s string) bool {
	if s == "" || s[0] == '-' || s[len(s)-1] == '-' || strings.Contains(s, "--") {
		return false
	}
	for _, r := range s {
		if !((r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') || r == '-') {
			return false
		}
	}
	return true
}

func isAllDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return s != ""
}
