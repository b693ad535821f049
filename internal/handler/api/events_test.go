// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package api

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/olegiv/agency-cms/internal/model"
	"github.com/olegiv/agency-cms/internal/rbac"
)

func TestListEvents(t *testing.T) {
	env := testSetup(t)
	_, admin := env.userToken(t, "admin@example.com", rbac.RoleAdmin)
	_, editor := env.userToken(t, "editor@example.com", rbac.RoleEditor)

	// A login through the API records an auth event.
	w := env.do(t, http.MethodPost, "/auth/login", "", LoginRequest{Email: "editor@example.com", Password: testPassword})
	assertStatusCode(t, w, http.StatusOK)

	w = env.do(t, http.MethodGet, "/events", editor, nil)
	assertStatusCode(t, w, http.StatusForbidden)

	w = env.do(t, http.MethodGet, "/events?category="+model.EventCategoryAuth, admin, nil)
	assertStatusCode(t, w, http.StatusOK)
	list := unmarshalList[model.Event](t, w)
	if assert.NotEmpty(t, list.Data) {
		assert.Equal(t, model.EventCategoryAuth, list.Data[0].Category)
	}

	w = env.do(t, http.MethodGet, "/events?user_id=abc", admin, nil)
	assertStatusCode(t, w, http.StatusUnprocessableEntity)
}
