// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package api

import (
	"net/http"
	"net/url"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/olegiv/agency-cms/internal/cache"
	"github.com/olegiv/agency-cms/internal/middleware"
	"github.com/olegiv/agency-cms/internal/model"
	"github.com/olegiv/agency-cms/internal/rbac"
)

// CompanyInfoRequest is the body of PUT /company-info/{key}.
type CompanyInfoRequest struct {
	Value       string `json:"value"`
	ValueType   string `json:"value_type"`
	IsPublic    bool   `json:"is_public"`
	Description string `json:"description"`
}

// ListCompanyInfo handles GET /company-info. Callers without company:read
// get public rows only, filtered in SQL.
func (h *Handler) ListCompanyInfo(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	publicOnly := !middleware.Can(r, rbac.ResourceCompany, rbac.ActionRead)

	load := func() ([]model.CompanyInfo, error) {
		return h.Queries.ListCompanyInfo(ctx, publicOnly)
	}

	var (
		items []model.CompanyInfo
		err   error
	)
	if publicOnly && h.Cache != nil {
		typed := cache.NewTypedCache[[]model.CompanyInfo](h.Cache.Backend(), h.CacheTTL)
		items, err = typed.GetOrSet(ctx, h.Cache.Key(ctx, cache.TagCompany, url.Values{"list": {"public"}}), load)
	} else {
		items, err = load()
	}
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if items == nil {
		items = []model.CompanyInfo{}
	}
	WriteSuccess(w, items)
}

// GetCompanyInfo handles GET /company-info/{key}. Private keys are
// indistinguishable from missing ones for public callers.
func (h *Handler) GetCompanyInfo(w http.ResponseWriter, r *http.Request) {
	publicOnly := !middleware.Can(r, rbac.ResourceCompany, rbac.ActionRead)
	c, err := h.Queries.GetCompanyInfo(r.Context(), chi.URLParam(r, "key"), publicOnly)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	WriteSuccess(w, c)
}

// PutCompanyInfo handles PUT /company-info/{key}: 201 when the key was
// created, 200 when it was replaced.
func (h *Handler) PutCompanyInfo(w http.ResponseWriter, r *http.Request) {
	var req CompanyInfoRequest
	if err := decodeJSON(r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}

	c := &model.CompanyInfo{
		Key:         chi.URLParam(r, "key"),
		Value:       req.Value,
		ValueType:   strings.TrimSpace(req.ValueType),
		IsPublic:    req.IsPublic,
		Description: strings.TrimSpace(req.Description),
	}
	if c.ValueType == "" {
		c.ValueType = model.ValueTypeText
	}
	if c.ValueType == model.ValueTypeHTML {
		c.Value = h.Renderer.SanitizeHTML(c.Value)
	} else {
		c.Value = strings.TrimSpace(c.Value)
	}
	if err := c.Validate(); err != nil {
		h.writeError(w, r, err)
		return
	}

	ctx := r.Context()
	created, err := h.Queries.UpsertCompanyInfo(ctx, c)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.invalidate(r, cache.TagCompany)
	_ = h.Events.LogInfo(ctx, model.EventCategoryCompany, "Company info saved", source(r),
		map[string]any{"key": c.Key, "is_public": c.IsPublic})

	if created {
		WriteCreated(w, c)
		return
	}
	WriteSuccess(w, c)
}

// DeleteCompanyInfo handles DELETE /company-info/{key}.
func (h *Handler) DeleteCompanyInfo(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "key")
	if err := h.Queries.DeleteCompanyInfo(r.Context(), key); err != nil {
		h.writeError(w, r, err)
		return
	}
	h.invalidate(r, cache.TagCompany)
	_ = h.Events.LogInfo(r.Context(), model.EventCategoryCompany, "Company info deleted", source(r),
		map[string]any{"key": key})
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) invalidate(r *http.Request, tag string) {
	if h.Cache == nil {
		return
	}
	if err := h.Cache.Invalidate(r.Context(), tag); err != nil {
		h.Logger.Warn("failed to invalidate cache tag", "category", model.EventCategoryCache, "tag", tag, "error", err)
	}
}
