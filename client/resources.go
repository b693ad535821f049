// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package client

import (
	"context"
	"net/http"
	"net/url"
	"strconv"

	"github.com/olegiv/agency-cms/internal/model"
	"github.com/olegiv/agency-cms/internal/service"
)

// API types, shared with the server.
type (
	User              = model.User
	Project           = model.Project
	BlogPost          = model.BlogPost
	TeamMember        = model.TeamMember
	Service           = model.Service
	ContactSubmission = model.ContactSubmission
	CompanyInfo       = model.CompanyInfo
	ContactInput      = service.ContactInput
	TriageInput       = service.TriageInput
)

// ListParams filter a content list. Zero fields are not sent.
type ListParams struct {
	Page     int
	Limit    int
	Status   string
	Category string
	Search   string
	Tag      string
	Featured *bool
}

// Values encodes p as query parameters.
func (p ListParams) Values() url.Values {
	v := url.Values{}
	if p.Page > 0 {
		v.Set("page", strconv.Itoa(p.Page))
	}
	if p.Limit > 0 {
		v.Set("limit", strconv.Itoa(p.Limit))
	}
	set := func(k, s string) {
		if s != "" {
			v.Set(k, s)
		}
	}
	set("status", p.Status)
	set("category", p.Category)
	set("search", p.Search)
	set("tag", p.Tag)
	if p.Featured != nil {
		v.Set("featured", strconv.FormatBool(*p.Featured))
	}
	return v
}

// Resource is a content collection: reads go through the query cache and
// writes invalidate its tag.
type Resource[T any] struct {
	c    *Client
	path string
	tag  string
	key  string
}

func newResource[T any](c *Client, path, tag, key string) *Resource[T] {
	return &Resource[T]{c: c, path: path, tag: tag, key: key}
}

// Projects returns the projects collection.
func (c *Client) Projects() *Resource[Project] {
	return newResource[Project](c, "/projects", TagProjects, "projects")
}

// Blog returns the blog collection.
func (c *Client) Blog() *Resource[BlogPost] {
	return newResource[BlogPost](c, "/blog", TagBlog, "posts")
}

// Team returns the team collection.
func (c *Client) Team() *Resource[TeamMember] {
	return newResource[TeamMember](c, "/team", TagTeam, "members")
}

// Services returns the services collection.
func (c *Client) Services() *Resource[Service] {
	return newResource[Service](c, "/services", TagServices, "services")
}

// Tag is the query cache tag of the collection.
func (r *Resource[T]) Tag() string { return r.tag }

// List returns one page of the collection.
func (r *Resource[T]) List(ctx context.Context, p ListParams) (*Page[T], error) {
	params := p.Values()
	return Query(ctx, r.c.queries, r.tag, params, func(ctx context.Context) (*Page[T], error) {
		data, err := r.c.do(ctx, request{method: http.MethodGet, path: r.path, query: params})
		if err != nil {
			return nil, err
		}
		return normalizePage[T](data, r.key)
	})
}

// Get returns one item by numeric id or slug.
func (r *Resource[T]) Get(ctx context.Context, idOrSlug string) (*T, error) {
	params := url.Values{"_item": {idOrSlug}}
	return Query(ctx, r.c.queries, r.tag, params, func(ctx context.Context) (*T, error) {
		var item T
		if err := r.c.getJSON(ctx, r.path+"/"+url.PathEscape(idOrSlug), nil, &item); err != nil {
			return nil, err
		}
		return &item, nil
	})
}

// Create stores a new item and returns it as saved.
func (r *Resource[T]) Create(ctx context.Context, item *T) (*T, error) {
	var out T
	if err := r.c.send(ctx, http.MethodPost, r.path, item, &out); err != nil {
		return nil, err
	}
	r.c.queries.Invalidate(r.tag)
	return &out, nil
}

// Update replaces an item and returns it as saved.
func (r *Resource[T]) Update(ctx context.Context, idOrSlug string, item *T) (*T, error) {
	var out T
	if err := r.c.send(ctx, http.MethodPut, r.path+"/"+url.PathEscape(idOrSlug), item, &out); err != nil {
		return nil, err
	}
	r.c.queries.Invalidate(r.tag)
	return &out, nil
}

// Delete removes an item.
func (r *Resource[T]) Delete(ctx context.Context, idOrSlug string) error {
	if err := r.c.send(ctx, http.MethodDelete, r.path+"/"+url.PathEscape(idOrSlug), nil, nil); err != nil {
		return err
	}
	r.c.queries.Invalidate(r.tag)
	return nil
}

// Contacts is the contact submission inbox.
type Contacts struct{ c *Client }

// Contacts returns the contact submission inbox.
func (c *Client) Contacts() *Contacts { return &Contacts{c: c} }

// SubmitResult is the answer to a public contact submission.
type SubmitResult struct {
	ID      int64  `json:"id"`
	Message string `json:"message"`
}

// Submit sends the public contact form. No token is sent.
func (r *Contacts) Submit(ctx context.Context, in ContactInput) (*SubmitResult, error) {
	data, err := r.c.do(ctx, request{method: http.MethodPost, path: "/contact", body: in, anonymous: true})
	if err != nil {
		return nil, err
	}
	var out SubmitResult
	if err := decodeData(data, &out); err != nil {
		return nil, err
	}
	r.c.queries.Invalidate(TagContacts)
	return &out, nil
}

// List returns one page of submissions. Only Page, Limit, Status and
// Search apply.
func (r *Contacts) List(ctx context.Context, p ListParams) (*Page[ContactSubmission], error) {
	params := ListParams{Page: p.Page, Limit: p.Limit, Status: p.Status, Search: p.Search}.Values()
	return Query(ctx, r.c.queries, TagContacts, params, func(ctx context.Context) (*Page[ContactSubmission], error) {
		data, err := r.c.do(ctx, request{method: http.MethodGet, path: "/contact", query: params})
		if err != nil {
			return nil, err
		}
		return normalizePage[ContactSubmission](data, "contacts")
	})
}

// Get returns one submission.
func (r *Contacts) Get(ctx context.Context, id int64) (*ContactSubmission, error) {
	params := url.Values{"_item": {strconv.FormatInt(id, 10)}}
	return Query(ctx, r.c.queries, TagContacts, params, func(ctx context.Context) (*ContactSubmission, error) {
		var c ContactSubmission
		if err := r.c.getJSON(ctx, "/contact/"+strconv.FormatInt(id, 10), nil, &c); err != nil {
			return nil, err
		}
		return &c, nil
	})
}

// Triage updates the status or notes of a submission.
func (r *Contacts) Triage(ctx context.Context, id int64, in TriageInput) (*ContactSubmission, error) {
	var c ContactSubmission
	if err := r.c.send(ctx, http.MethodPatch, "/contact/"+strconv.FormatInt(id, 10), in, &c); err != nil {
		return nil, err
	}
	r.c.queries.Invalidate(TagContacts)
	return &c, nil
}

// Delete removes a submission.
func (r *Contacts) Delete(ctx context.Context, id int64) error {
	if err := r.c.send(ctx, http.MethodDelete, "/contact/"+strconv.FormatInt(id, 10), nil, nil); err != nil {
		return err
	}
	r.c.queries.Invalidate(TagContacts)
	return nil
}

// CompanyInfoSet is the company key/value settings.
type CompanyInfoSet struct{ c *Client }

// CompanyInfo returns the company settings. Anonymous callers only see
// public keys.
func (c *Client) CompanyInfo() *CompanyInfoSet { return &CompanyInfoSet{c: c} }

// List returns every visible row.
func (r *CompanyInfoSet) List(ctx context.Context) ([]CompanyInfo, error) {
	return Query(ctx, r.c.queries, TagCompany, nil, func(ctx context.Context) ([]CompanyInfo, error) {
		data, err := r.c.do(ctx, request{method: http.MethodGet, path: "/company-info"})
		if err != nil {
			return nil, err
		}
		items, _, err := Normalize[CompanyInfo](data, "company_info")
		return items, err
	})
}

// Get returns one row. A private key reads as ErrNotFound for anonymous
// callers.
func (r *CompanyInfoSet) Get(ctx context.Context, key string) (*CompanyInfo, error) {
	params := url.Values{"_item": {key}}
	return Query(ctx, r.c.queries, TagCompany, params, func(ctx context.Context) (*CompanyInfo, error) {
		var c CompanyInfo
		if err := r.c.getJSON(ctx, "/company-info/"+url.PathEscape(key), nil, &c); err != nil {
			return nil, err
		}
		return &c, nil
	})
}

// Put creates or replaces the row info.Key.
func (r *CompanyInfoSet) Put(ctx context.Context, info CompanyInfo) (*CompanyInfo, error) {
	var out CompanyInfo
	if err := r.c.send(ctx, http.MethodPut, "/company-info/"+url.PathEscape(info.Key), info, &out); err != nil {
		return nil, err
	}
	r.c.queries.Invalidate(TagCompany)
	return &out, nil
}

// Delete removes a row.
func (r *CompanyInfoSet) Delete(ctx context.Context, key string) error {
	if err := r.c.send(ctx, http.MethodDelete, "/company-info/"+url.PathEscape(key), nil, nil); err != nil {
		return err
	}
	r.c.queries.Invalidate(TagCompany)
	return nil
}
