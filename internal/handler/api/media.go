// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package api

import (
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/olegiv/agency-cms/internal/middleware"
	"github.com/olegiv/agency-cms/internal/model"
	"github.com/olegiv/agency-cms/internal/service"
)

// UploadMedia handles POST /media (multipart form, fields "file" and "alt").
func (h *Handler) UploadMedia(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, service.MaxUploadSize+1<<20)
	if err := r.ParseMultipartForm(service.MaxUploadSize); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			ve := model.NewValidationError()
			ve.Add("file", "File is too large")
			h.writeError(w, r, ve)
			return
		}
		WriteBadRequest(w, "Failed to parse multipart form")
		return
	}
	defer func() { _ = r.MultipartForm.RemoveAll() }()

	file, header, err := r.FormFile("file")
	if err != nil {
		ve := model.NewValidationError()
		ve.Add("file", "File is required")
		h.writeError(w, r, ve)
		return
	}
	defer func() { _ = file.Close() }()

	alt := strings.TrimSpace(r.FormValue("alt"))
	m, err := h.Media.Upload(r.Context(), file, header.Filename, alt, middleware.GetUserID(r))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	_ = h.Events.LogInfo(r.Context(), model.EventCategoryMedia, "Media uploaded", source(r),
		map[string]any{"uuid": m.UUID, "filename": m.Filename, "size": m.Size})
	WriteCreated(w, m)
}

// ListMedia handles GET /media.
func (h *Handler) ListMedia(w http.ResponseWriter, r *http.Request) {
	p, err := parsePage(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	items, total, err := h.Media.List(r.Context(), p.Limit, p.Offset())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	WriteJSON(w, http.StatusOK, NewListResponse(items, total, p))
}

// DeleteMedia handles DELETE /media/{uuid}.
func (h *Handler) DeleteMedia(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "uuid")
	if err := h.Media.Delete(r.Context(), id); err != nil {
		h.writeError(w, r, err)
		return
	}
	_ = h.Events.LogInfo(r.Context(), model.EventCategoryMedia, "Media deleted", source(r), map[string]any{"uuid": id})
	w.WriteHeader(http.StatusNoContent)
}
