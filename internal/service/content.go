// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/olegiv/agency-cms/internal/cache"
	"github.com/olegiv/agency-cms/internal/content"
	"github.com/olegiv/agency-cms/internal/model"
	"github.com/olegiv/agency-cms/internal/rbac"
	"github.com/olegiv/agency-cms/internal/store"
	"github.com/olegiv/agency-cms/internal/webhook"
)

// Kind binds one content type to its storage. T is a pointer type such as
// *model.Project.
type Kind[T model.Content] struct {
	// Name is the collection name used in routes, cache tags and webhooks.
	Name     string
	Resource rbac.Resource
	Tag      string

	New        func() T
	List       func(ctx context.Context, f store.ListFilter) ([]T, int64, error)
	GetByID    func(ctx context.Context, id int64) (T, error)
	GetBySlug  func(ctx context.Context, slug string) (T, error)
	SlugExists func(ctx context.Context, slug string, excludeID int64) (bool, error)
	Create     func(ctx context.Context, item T) error
	Update     func(ctx context.Context, item T) error
	Delete     func(ctx context.Context, id int64) error

	// Prepare trims input and renders markdown fields.
	Prepare func(r *content.Renderer, item T) error
	// KeepSystemFields copies server-owned fields from orig onto item.
	KeepSystemFields func(item, orig T)
	// SetAuthor stamps the creating user.
	SetAuthor func(item T, userID *int64)
	// DefaultStatus is used when a create request leaves status empty.
	DefaultStatus string
}

// ContentService implements list, get, create, update and delete for one
// content type. Every mutation invalidates the type's cache tag and writes
// an audit event; transitions into the public state send a webhook.
type ContentService[T model.Content] struct {
	kind     Kind[T]
	renderer *content.Renderer
	cache    *cache.Tagged
	events   *EventService
	notifier Notifier
	logger   *slog.Logger
	now      func() time.Time
}

// NewContentService wires a ContentService. cache, events and notifier may
// be nil.
func NewContentService[T model.Content](kind Kind[T], renderer *content.Renderer, tagged *cache.Tagged, events *EventService, notifier Notifier, logger *slog.Logger) *ContentService[T] {
	if renderer == nil {
		renderer = content.NewRenderer()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &ContentService[T]{
		kind:     kind,
		renderer: renderer,
		cache:    tagged,
		events:   events,
		notifier: notifier,
		logger:   logger,
		now:      time.Now,
	}
}

// Kind returns the type descriptor.
func (s *ContentService[T]) Kind() Kind[T] { return s.kind }

// List returns one page of items and the total matching f.
func (s *ContentService[T]) List(ctx context.Context, f store.ListFilter) ([]T, int64, error) {
	return s.kind.List(ctx, f)
}

// Get resolves idOrSlug: an all-digit value is an id, anything else a slug.
func (s *ContentService[T]) Get(ctx context.Context, idOrSlug string) (T, error) {
	if id, err := strconv.ParseInt(idOrSlug, 10, 64); err == nil {
		if id <= 0 {
			var zero T
			return zero, model.ErrNotFound
		}
		return s.kind.GetByID(ctx, id)
	}
	return s.kind.GetBySlug(ctx, strings.ToLower(idOrSlug))
}

// Create stores item. An empty slug is derived from the title and made
// unique; an explicit slug that is taken is a validation error.
func (s *ContentService[T]) Create(ctx context.Context, item T, src Source) (T, error) {
	var zero T
	s.kind.KeepSystemFields(item, s.kind.New())
	if item.GetStatus() == "" {
		item.SetStatus(s.kind.DefaultStatus)
	}
	if s.kind.SetAuthor != nil {
		s.kind.SetAuthor(item, src.UserID)
	}
	if err := s.prepare(ctx, item, 0); err != nil {
		return zero, err
	}
	if err := s.kind.Create(ctx, item); err != nil {
		return zero, s.mapConflict(err)
	}

	s.afterWrite(ctx, "created", item, "", src)
	return item, nil
}

// Update applies the JSON patch body over orig. Fields missing from the
// body keep their stored value; server-owned fields are never taken from
// the body.
func (s *ContentService[T]) Update(ctx context.Context, orig T, patch []byte, src Source) (T, error) {
	item, err := s.Merge(orig, patch)
	if err != nil {
		var zero T
		return zero, err
	}
	return s.Save(ctx, orig, item, src)
}

// Save validates and stores item, the merged edit of orig.
func (s *ContentService[T]) Save(ctx context.Context, orig, item T, src Source) (T, error) {
	var zero T
	s.kind.KeepSystemFields(item, orig)
	if err := s.prepare(ctx, item, orig.GetID()); err != nil {
		return zero, err
	}
	if err := s.kind.Update(ctx, item); err != nil {
		return zero, s.mapConflict(err)
	}

	s.afterWrite(ctx, "updated", item, orig.GetStatus(), src)
	return item, nil
}

// Merge returns a copy of orig with patch applied and system fields
// restored. It does not validate.
func (s *ContentService[T]) Merge(orig T, patch []byte) (T, error) {
	var zero T
	base, err := json.Marshal(orig)
	if err != nil {
		return zero, err
	}
	item := s.kind.New()
	if err := json.Unmarshal(base, item); err != nil {
		return zero, err
	}
	if err := json.Unmarshal(patch, item); err != nil {
		return zero, badJSON(err)
	}
	s.kind.KeepSystemFields(item, orig)
	return item, nil
}

// Delete removes the item.
func (s *ContentService[T]) Delete(ctx context.Context, item T, src Source) error {
	if err := s.kind.Delete(ctx, item.GetID()); err != nil {
		return err
	}
	s.invalidate(ctx)
	s.logEvent(ctx, "deleted", item, src)
	return nil
}

// prepare fills the slug, stamps publication and validates item.
func (s *ContentService[T]) prepare(ctx context.Context, item T, id int64) error {
	if err := s.kind.Prepare(s.renderer, item); err != nil {
		return err
	}

	exists := func(ctx context.Context, slug string) (bool, error) {
		return s.kind.SlugExists(ctx, slug, id)
	}
	slug := strings.TrimSpace(item.GetSlug())
	if slug == "" {
		base := content.Slugify(item.GetTitle())
		if base != "" && !strings.ContainsFunc(base, isLetter) {
			base = singular(s.kind.Name) + "-" + base
		}
		if base != "" {
			unique, err := content.UniqueSlug(ctx, base, exists)
			if err != nil {
				return err
			}
			slug = unique
		}
		item.SetSlug(slug)
	} else {
		item.SetSlug(strings.ToLower(slug))
	}

	ve := model.NewValidationError()
	if err := item.Validate(); err != nil {
		fe, ok := model.AsValidationError(err)
		if !ok {
			return err
		}
		for f, msg := range fe.Fields {
			ve.Add(f, msg)
		}
	}
	if _, bad := ve.Fields["slug"]; !bad && item.GetSlug() != "" {
		taken, err := exists(ctx, item.GetSlug())
		if err != nil {
			return err
		}
		if taken {
			ve.Add("slug", "Slug is already in use")
		}
	}
	if err := ve.Err(); err != nil {
		return err
	}

	if item.GetStatus() == item.PublicStatus() {
		item.MarkPublished(s.now().UTC().Truncate(time.Second))
	}
	return nil
}

// mapConflict turns a unique-index race on the slug into a validation error.
func (s *ContentService[T]) mapConflict(err error) error {
	if errors.Is(err, model.ErrConflict) {
		ve := model.NewValidationError()
		ve.Add("slug", "Slug is already in use")
		return ve
	}
	return err
}

func (s *ContentService[T]) afterWrite(ctx context.Context, verb string, item T, prevStatus string, src Source) {
	s.invalidate(ctx)
	s.logEvent(ctx, verb, item, src)

	public := item.PublicStatus()
	if item.GetStatus() == public && prevStatus != public {
		s.announce(ctx, item)
	}
}

func (s *ContentService[T]) invalidate(ctx context.Context) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Invalidate(ctx, s.kind.Tag); err != nil {
		s.logger.Warn("failed to invalidate cache tag", "category", model.EventCategoryCache, "tag", s.kind.Tag, "error", err)
	}
}

func (s *ContentService[T]) logEvent(ctx context.Context, verb string, item T, src Source) {
	if s.events == nil {
		return
	}
	noun := singular(s.kind.Name)
	msg := fmt.Sprintf("%s %q %s", strings.ToUpper(noun[:1])+noun[1:], item.GetTitle(), verb)
	_ = s.events.LogContentEvent(ctx, model.EventLevelInfo, msg, src, map[string]any{
		"kind":   s.kind.Name,
		"id":     item.GetID(),
		"slug":   item.GetSlug(),
		"status": item.GetStatus(),
	})
}

func (s *ContentService[T]) announce(ctx context.Context, item T) {
	if s.notifier == nil {
		return
	}
	if d, ok := s.notifier.(interface{ Enabled() bool }); ok && !d.Enabled() {
		return
	}
	at := s.now().UTC().Truncate(time.Second)
	err := s.notifier.DispatchEvent(ctx, webhook.EventContentPublished, webhook.ContentEventData{
		Kind:        s.kind.Name,
		ID:          item.GetID(),
		Slug:        item.GetSlug(),
		Title:       item.GetTitle(),
		PublishedAt: &at,
	})
	if err != nil {
		s.logger.Warn("failed to dispatch publish webhook", "kind", s.kind.Name, "id", item.GetID(), "error", err)
	}
}

func badJSON(err error) error {
	ve := model.NewValidationError()
	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &typeErr) && typeErr.Field != "" {
		ve.Add(typeErr.Field, "Must be a "+typeErr.Type.String())
		return ve
	}
	ve.Add("body", "Request body is not valid JSON")
	return ve
}

func isLetter(r rune) bool {
	return (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z')
}

// singular maps a collection name to its item noun.
func singular(name string) string {
	switch name {
	case "blog":
		return "post"
	case "team":
		return "member"
	}
	return strings.TrimSuffix(name, "s")
}
