// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package api

import (
	"net/http"
	"strings"

	"github.com/olegiv/agency-cms/internal/middleware"
	"github.com/olegiv/agency-cms/internal/model"
	"github.com/olegiv/agency-cms/internal/service"
	"github.com/olegiv/agency-cms/internal/store"
)

// SubmitContact handles POST /contact.
func (h *Handler) SubmitContact(w http.ResponseWriter, r *http.Request) {
	var in service.ContactInput
	if err := decodeJSON(r, &in); err != nil {
		h.writeError(w, r, err)
		return
	}
	c, err := h.Contacts.Submit(r.Context(), in, service.ClientInfo{
		IP:        middleware.ClientIP(r),
		UserAgent: r.UserAgent(),
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	WriteCreated(w, map[string]any{
		"id":      c.ID,
		"message": "Thank you, we will get back to you soon.",
	})
}

// ListContacts handles GET /contact.
// Query: page, limit, status, search.
func (h *Handler) ListContacts(w http.ResponseWriter, r *http.Request) {
	p, err := parsePage(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	status := r.URL.Query().Get("status")
	if status != "" && !model.IsValidContactStatus(status) {
		ve := model.NewValidationError()
		ve.Add("status", "Status must be one of "+strings.Join(model.ContactStatuses, ", "))
		h.writeError(w, r, ve)
		return
	}

	items, total, err := h.Contacts.List(r.Context(), store.ListFilter{
		Status: status,
		Search: strings.TrimSpace(r.URL.Query().Get("search")),
		Limit:  p.Limit,
		Offset: p.Offset(),
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	WriteJSON(w, http.StatusOK, NewListResponse(items, total, p))
}

// GetContact handles GET /contact/{id}.
func (h *Handler) GetContact(w http.ResponseWriter, r *http.Request) {
	id, ok := parseIDParam(r)
	if !ok {
		WriteBadRequest(w, "Invalid submission ID")
		return
	}
	c, err := h.Contacts.Get(r.Context(), id)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	WriteSuccess(w, c)
}

// TriageContact handles PATCH /contact/{id}.
func (h *Handler) TriageContact(w http.ResponseWriter, r *http.Request) {
	id, ok := parseIDParam(r)
	if !ok {
		WriteBadRequest(w, "Invalid submission ID")
		return
	}
	var in service.TriageInput
	if err := decodeJSON(r, &in); err != nil {
		h.writeError(w, r, err)
		return
	}
	c, err := h.Contacts.Triage(r.Context(), id, in, middleware.GetUserID(r))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	_ = h.Events.LogInfo(r.Context(), model.EventCategoryContact, "Contact submission updated", source(r),
		map[string]any{"submission_id": c.ID, "status": c.Status})
	WriteSuccess(w, c)
}

// DeleteContact handles DELETE /contact/{id}.
func (h *Handler) DeleteContact(w http.ResponseWriter, r *http.Request) {
	id, ok := parseIDParam(r)
	if !ok {
		WriteBadRequest(w, "Invalid submission ID")
		return
	}
	if err := h.Contacts.Delete(r.Context(), id); err != nil {
		h.writeError(w, r, err)
		return
	}
	_ = h.Events.LogInfo(r.Context(), model.EventCategoryContact, "Contact submission deleted", source(r),
		map[string]any{"submission_id": id})
	w.WriteHeader(http.StatusNoContent)
}
