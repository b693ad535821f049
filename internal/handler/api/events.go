// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package api

import (
	"net/http"
	"strconv"

	"github.com/olegiv/agency-cms/internal/model"
	"github.com/olegiv/agency-cms/internal/store"
)

// ListEvents handles GET /events.
// Query: page, limit, level, category, user_id.
func (h *Handler) ListEvents(w http.ResponseWriter, r *http.Request) {
	p, err := parsePage(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	q := r.URL.Query()
	f := store.EventFilter{
		Level:    q.Get("level"),
		Category: q.Get("category"),
		Limit:    p.Limit,
		Offset:   p.Offset(),
	}
	if v := q.Get("user_id"); v != "" {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil || id <= 0 {
			ve := model.NewValidationError()
			ve.Add("user_id", "Must be a positive integer")
			h.writeError(w, r, ve)
			return
		}
		f.UserID = id
	}

	events, total, err := h.Events.List(r.Context(), f)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	WriteJSON(w, http.StatusOK, NewListResponse(events, total, p))
}
