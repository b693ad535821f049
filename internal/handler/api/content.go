// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package api

import (
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/olegiv/agency-cms/internal/cache"
	"github.com/olegiv/agency-cms/internal/middleware"
	"github.com/olegiv/agency-cms/internal/model"
	"github.com/olegiv/agency-cms/internal/rbac"
	"github.com/olegiv/agency-cms/internal/service"
	"github.com/olegiv/agency-cms/internal/store"
)

// contentHandler serves the REST surface of one content type.
// Callers without <resource>:read only ever see the public state, and
// their responses are served from the tagged cache.
type contentHandler[T model.Content] struct {
	h        *Handler
	svc      *service.ContentService[T]
	resource rbac.Resource
	tag      string
	public   string
	lists    *cache.TypedCache[ListResponse[T]]
	items    *cache.TypedCache[T]
}

func newContentHandler[T model.Content](h *Handler, svc *service.ContentService[T]) *contentHandler[T] {
	kind := svc.Kind()
	c := &contentHandler[T]{
		h:        h,
		svc:      svc,
		resource: kind.Resource,
		tag:      kind.Tag,
		public:   kind.New().PublicStatus(),
	}
	if h.Cache != nil {
		c.lists = cache.NewTypedCache[ListResponse[T]](h.Cache.Backend(), h.CacheTTL)
		c.items = cache.NewTypedCache[T](h.Cache.Backend(), h.CacheTTL)
	}
	return c
}

// routes mounts list, get, create, update and delete.
func (c *contentHandler[T]) routes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(middleware.OptionalBearerAuth(c.h.Auth))
		r.Get("/", c.list)
		r.Get("/{idOrSlug}", c.get)
	})
	r.Group(func(r chi.Router) {
		c.h.authenticated(r)
		r.With(middleware.RequirePermission(c.resource, rbac.ActionWrite)).Post("/", c.create)
		r.With(middleware.RequirePermission(c.resource, rbac.ActionWrite)).Put("/{idOrSlug}", c.update)
		r.With(middleware.RequirePermission(c.resource, rbac.ActionDelete)).Delete("/{idOrSlug}", c.delete)
	})
}

// list handles GET /<type>.
// Query: page, limit, status, category, search, featured, tag.
func (c *contentHandler[T]) list(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	p, err := parsePage(r)
	if err != nil {
		c.h.writeError(w, r, err)
		return
	}
	featured, err := parseBool(r, "featured")
	if err != nil {
		c.h.writeError(w, r, err)
		return
	}

	q := r.URL.Query()
	f := store.ListFilter{
		Status:   q.Get("status"),
		Category: strings.TrimSpace(q.Get("category")),
		Search:   strings.TrimSpace(q.Get("search")),
		Featured: featured,
		Tag:      strings.ToLower(strings.TrimSpace(q.Get("tag"))),
		Limit:    p.Limit,
		Offset:   p.Offset(),
	}

	publicOnly := !middleware.Can(r, c.resource, rbac.ActionRead)
	if publicOnly {
		if f.Status != "" && f.Status != c.public {
			WriteForbidden(w, "Only "+c.public+" "+string(c.resource)+" are visible without "+string(c.resource)+":read")
			return
		}
		f.Status = c.public
	}

	load := func() (ListResponse[T], error) {
		items, total, err := c.svc.List(ctx, f)
		if err != nil {
			return ListResponse[T]{}, err
		}
		return NewListResponse(items, total, p), nil
	}

	var resp ListResponse[T]
	if publicOnly && c.lists != nil {
		resp, err = c.lists.GetOrSet(ctx, c.h.Cache.Key(ctx, c.tag, listCacheParams(f, p)), load)
	} else {
		resp, err = load()
	}
	if err != nil {
		c.h.writeError(w, r, err)
		return
	}
	WriteJSON(w, http.StatusOK, resp)
}

// listCacheParams is the canonical parameter set of a public list query.
func listCacheParams(f store.ListFilter, p PageParams) url.Values {
	v := url.Values{
		"page":  {strconv.Itoa(p.Page)},
		"limit": {strconv.Itoa(p.Limit)},
	}
	if f.Category != "" {
		v.Set("category", f.Category)
	}
	if f.Search != "" {
		v.Set("search", f.Search)
	}
	if f.Featured != nil {
		v.Set("featured", strconv.FormatBool(*f.Featured))
	}
	if f.Tag != "" {
		v.Set("tag", f.Tag)
	}
	return v
}

// get handles GET /<type>/{idOrSlug}. Non-public items are hidden as 404
// from callers without read permission.
func (c *contentHandler[T]) get(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	key := chi.URLParam(r, "idOrSlug")

	if middleware.Can(r, c.resource, rbac.ActionRead) {
		item, err := c.svc.Get(ctx, key)
		if err != nil {
			c.h.writeError(w, r, err)
			return
		}
		WriteSuccess(w, item)
		return
	}

	load := func() (T, error) {
		item, err := c.svc.Get(ctx, key)
		if err != nil {
			return item, err
		}
		if item.GetStatus() != c.public {
			var zero T
			return zero, model.ErrNotFound
		}
		return item, nil
	}
	var (
		item T
		err  error
	)
	if c.items != nil {
		item, err = c.items.GetOrSet(ctx, c.h.Cache.Key(ctx, c.tag, url.Values{"item": {strings.ToLower(key)}}), load)
	} else {
		item, err = load()
	}
	if err != nil {
		c.h.writeError(w, r, err)
		return
	}
	WriteSuccess(w, item)
}

// create handles POST /<type>.
func (c *contentHandler[T]) create(w http.ResponseWriter, r *http.Request) {
	item := c.svc.Kind().New()
	if err := decodeJSON(r, item); err != nil {
		c.h.writeError(w, r, err)
		return
	}

	canPublish := middleware.Can(r, c.resource, rbac.ActionPublish)
	if item.GetStatus() == "" && !canPublish {
		item.SetStatus(c.privateStatus())
	}
	if c.publishing(item.GetStatus()) && !canPublish {
		c.denyPublish(w, r)
		return
	}

	created, err := c.svc.Create(r.Context(), item, source(r))
	if err != nil {
		c.h.writeError(w, r, err)
		return
	}
	WriteCreated(w, created)
}

// update handles PUT /<type>/{idOrSlug}. Fields missing from the body keep
// their stored values.
func (c *contentHandler[T]) update(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	orig, err := c.svc.Get(ctx, chi.URLParam(r, "idOrSlug"))
	if err != nil {
		c.h.writeError(w, r, err)
		return
	}
	patch, err := readBody(r)
	if err != nil {
		c.h.writeError(w, r, err)
		return
	}
	item, err := c.svc.Merge(orig, patch)
	if err != nil {
		c.h.writeError(w, r, err)
		return
	}

	changed := item.GetStatus() != orig.GetStatus()
	if changed && (c.publishing(orig.GetStatus()) || c.publishing(item.GetStatus())) &&
		!middleware.Can(r, c.resource, rbac.ActionPublish) {
		c.denyPublish(w, r)
		return
	}

	saved, err := c.svc.Save(ctx, orig, item, source(r))
	if err != nil {
		c.h.writeError(w, r, err)
		return
	}
	WriteSuccess(w, saved)
}

// delete handles DELETE /<type>/{idOrSlug}.
func (c *contentHandler[T]) delete(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	item, err := c.svc.Get(ctx, chi.URLParam(r, "idOrSlug"))
	if err != nil {
		c.h.writeError(w, r, err)
		return
	}
	if err := c.svc.Delete(ctx, item, source(r)); err != nil {
		c.h.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// publishing reports whether status makes or keeps an item public.
func (c *contentHandler[T]) publishing(status string) bool {
	return status == c.public || status == model.StatusScheduled
}

// privateStatus is the non-public default for callers without publish.
func (c *contentHandler[T]) privateStatus() string {
	if c.public == model.TeamStatusActive {
		return model.TeamStatusInactive
	}
	return model.StatusDraft
}

func (c *contentHandler[T]) denyPublish(w http.ResponseWriter, r *http.Request) {
	middleware.LogDenied(r, c.resource, rbac.ActionPublish)
	WriteForbidden(w, "Missing permission "+string(c.resource)+":"+string(rbac.ActionPublish))
}
