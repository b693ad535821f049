// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

// Package api provides the REST handlers of the agency content API and
// admin API.
package api

import (
	"database/sql"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/olegiv/agency-cms/internal/auth"
	"github.com/olegiv/agency-cms/internal/cache"
	"github.com/olegiv/agency-cms/internal/content"
	"github.com/olegiv/agency-cms/internal/middleware"
	"github.com/olegiv/agency-cms/internal/model"
	"github.com/olegiv/agency-cms/internal/scheduler"
	"github.com/olegiv/agency-cms/internal/service"
	"github.com/olegiv/agency-cms/internal/store"
	"github.com/olegiv/agency-cms/internal/version"
)

// Pagination defaults for list endpoints.
const (
	DefaultPageSize = 12
	MaxPageSize     = 100
	// MaxPage keeps the row offset of any page within an int.
	MaxPage = math.MaxInt/MaxPageSize + 1
)

// maxBodyBytes bounds JSON request bodies.
const maxBodyBytes = 1 << 20

// Per-user limits for authenticated requests.
const (
	userRPS   = 10
	userBurst = 30
)

// Deps are the collaborators of Handler. Cache, Media, Notifier, LoginGuard
// and Scheduler may be nil.
type Deps struct {
	DB         *sql.DB
	Queries    *store.Queries
	Auth       *auth.Service
	LoginGuard *middleware.LoginProtection
	Cache      *cache.Tagged
	CacheTTL   time.Duration
	Events     *service.EventService
	Contacts   *service.ContactService
	Media      *service.MediaService
	Notifier   service.Notifier
	Renderer   *content.Renderer
	Scheduler  *scheduler.Scheduler
	UploadsDir string
	Version    version.Info
	Logger     *slog.Logger
}

// Handler holds shared dependencies for all API handlers.
type Handler struct {
	Deps

	projects *service.ContentService[*model.Project]
	blog     *service.ContentService[*model.BlogPost]
	team     *service.ContentService[*model.TeamMember]
	services *service.ContentService[*model.Service]

	userLimit    func(http.Handler) http.Handler
	contactLimit *middleware.GlobalRateLimiter
	startTime    time.Time
}

// NewHandler creates a new API handler.
func NewHandler(d Deps) *Handler {
	if d.Queries == nil {
		d.Queries = store.New(d.DB)
	}
	if d.Logger == nil {
		d.Logger = slog.Default()
	}
	if d.Renderer == nil {
		d.Renderer = content.NewRenderer()
	}
	if d.Events == nil {
		d.Events = service.NewEventService(d.Queries, d.Logger)
	}
	if d.CacheTTL <= 0 {
		d.CacheTTL = 5 * time.Minute
	}
	if d.Contacts == nil {
		d.Contacts = service.NewContactService(d.Queries, nil, d.Notifier, d.Events, d.Logger)
	}

	h := &Handler{
		Deps:         d,
		userLimit:    middleware.UserRateLimit(userRPS, userBurst),
		contactLimit: middleware.NewGlobalRateLimiter(contactRPS, contactBurst),
		startTime:    time.Now(),
	}
	h.projects = service.NewContentService(service.ProjectsKind(d.Queries), d.Renderer, d.Cache, d.Events, d.Notifier, d.Logger)
	h.blog = service.NewContentService(service.BlogKind(d.Queries), d.Renderer, d.Cache, d.Events, d.Notifier, d.Logger)
	h.team = service.NewContentService(service.TeamKind(d.Queries), d.Renderer, d.Cache, d.Events, d.Notifier, d.Logger)
	h.services = service.NewContentService(service.ServicesKind(d.Queries), d.Renderer, d.Cache, d.Events, d.Notifier, d.Logger)
	return h
}

// Response is the standard API response wrapper.
type Response struct {
	Data any `json:"data"`
}

// ListResponse is the envelope of paginated list endpoints.
type ListResponse[T any] struct {
	Data       []T        `json:"data"`
	Total      int64      `json:"total"`
	Pagination Pagination `json:"pagination"`
}

// Pagination describes the page a list response holds.
type Pagination struct {
	Page       int  `json:"page"`
	Limit      int  `json:"limit"`
	TotalPages int  `json:"total_pages"`
	HasNext    bool `json:"has_next"`
	HasPrev    bool `json:"has_prev"`
}

// PageParams are the parsed page and limit query parameters.
type PageParams struct {
	Page  int
	Limit int
}

// Offset returns the row offset of the page.
func (p PageParams) Offset() int { return (p.Page - 1) * p.Limit }

// NewPagination computes page metadata for total rows.
func NewPagination(p PageParams, total int64) Pagination {
	pages := int((total + int64(p.Limit) - 1) / int64(p.Limit))
	return Pagination{
		Page:       p.Page,
		Limit:      p.Limit,
		TotalPages: pages,
		HasNext:    p.Page < pages,
		HasPrev:    p.Page > 1,
	}
}

// NewListResponse wraps one page of items. A nil slice encodes as [].
func NewListResponse[T any](items []T, total int64, p PageParams) ListResponse[T] {
	if items == nil {
		items = []T{}
	}
	return ListResponse[T]{Data: items, Total: total, Pagination: NewPagination(p, total)}
}

// parsePage reads page (default 1) and limit (default DefaultPageSize,
// capped at MaxPageSize). Malformed values are a validation error.
func parsePage(r *http.Request) (PageParams, error) {
	p := PageParams{Page: 1, Limit: DefaultPageSize}
	ve := model.NewValidationError()
	q := r.URL.Query()
	if v := q.Get("page"); v != "" {
		n, err := strconv.Atoi(v)
		switch {
		case err != nil || n < 1:
			ve.Add("page", "Page must be a positive integer")
		case n > MaxPage:
			ve.Add("page", "Page is out of range")
		default:
			p.Page = n
		}
	}
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			ve.Add("limit", "Limit must be a positive integer")
		} else {
			p.Limit = min(n, MaxPageSize)
		}
	}
	return p, ve.Err()
}

// WriteJSON writes a JSON response with the given status code.
func WriteJSON(w http.ResponseWriter, statusCode int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(data)
}

// WriteSuccess writes a 200 response wrapping data.
func WriteSuccess(w http.ResponseWriter, data any) {
	WriteJSON(w, http.StatusOK, Response{Data: data})
}

// WriteCreated writes a 201 Created JSON response.
func WriteCreated(w http.ResponseWriter, data any) {
	WriteJSON(w, http.StatusCreated, Response{Data: data})
}

// WriteBadRequest writes a 400 Bad Request response.
func WriteBadRequest(w http.ResponseWriter, message string) {
	middleware.WriteAPIError(w, http.StatusBadRequest, middleware.CodeBadRequest, message, nil)
}

// WriteNotFound writes a 404 Not Found response.
func WriteNotFound(w http.ResponseWriter, message string) {
	middleware.WriteAPIError(w, http.StatusNotFound, middleware.CodeNotFound, message, nil)
}

// WriteForbidden writes a 403 permission_denied response.
func WriteForbidden(w http.ResponseWriter, message string) {
	middleware.WriteAPIError(w, http.StatusForbidden, middleware.CodePermissionDenied, message, nil)
}

// writeError maps err to the error envelope. Internal failures are logged
// with the request path; their message never reaches the client.
func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status, _, _ := middleware.ErrorStatus(err)
	if status == http.StatusInternalServerError {
		h.Logger.Error("request failed", "error", err, "method", r.Method, "path", r.URL.Path)
	}
	middleware.WriteError(w, err)
}

// decodeJSON reads a bounded JSON body into dst. Syntax and type errors
// become validation errors naming the offending field.
func decodeJSON(r *http.Request, dst any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	if err := dec.Decode(dst); err != nil {
		ve := model.NewValidationError()
		var typeErr *json.UnmarshalTypeError
		switch {
		case errors.As(err, &typeErr) && typeErr.Field != "":
			ve.Add(typeErr.Field, "Must be a "+typeErr.Type.String())
		case errors.Is(err, io.EOF):
			ve.Add("body", "Request body is required")
		default:
			ve.Add("body", "Request body is not valid JSON")
		}
		return ve
	}
	return nil
}

// readBody returns the raw bounded body of a JSON request.
func readBody(r *http.Request) ([]byte, error) {
	data, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes+1))
	if err != nil {
		return nil, err
	}
	if len(data) > maxBodyBytes {
		ve := model.NewValidationError()
		ve.Add("body", "Request body is too large")
		return nil, ve
	}
	if len(strings.TrimSpace(string(data))) == 0 {
		ve := model.NewValidationError()
		ve.Add("body", "Request body is required")
		return nil, ve
	}
	return data, nil
}

// parseIDParam reads the numeric {id} URL parameter.
func parseIDParam(r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}

// source describes the request for audit events.
func source(r *http.Request) service.Source {
	return service.Source{
		UserID:     middleware.GetUserIDPtr(r),
		IPAddress:  middleware.ClientIP(r),
		RequestURL: r.URL.RequestURI(),
	}
}

// parseBool reads an optional boolean query parameter.
func parseBool(r *http.Request, name string) (*bool, error) {
	v := r.URL.Query().Get(name)
	if v == "" {
		return nil, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		ve := model.NewValidationError()
		ve.Add(name, "Must be true or false")
		return nil, ve
	}
	return &b, nil
}
