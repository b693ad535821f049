// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package api

import (
	"net/http"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/olegiv/agency-cms/internal/middleware"
	"github.com/olegiv/agency-cms/internal/model"
	"github.com/olegiv/agency-cms/internal/rbac"
	"github.com/olegiv/agency-cms/internal/service"
)

func TestSubmitContact(t *testing.T) {
	env := testSetup(t)

	w := env.do(t, http.MethodPost, "/contact", "", service.ContactInput{
		Name:    "Jane Client",
		Email:   "Jane@Client.example",
		Subject: "New website",
		Message: "We need a relaunch.",
	})

	assertStatusCode(t, w, http.StatusCreated)
	got := unmarshalData[map[string]any](t, w)
	assert.NotZero(t, got["id"])
	assert.NotEmpty(t, got["message"])
}

func TestSubmitContact_Validation(t *testing.T) {
	env := testSetup(t)

	w := env.do(t, http.MethodPost, "/contact", "", service.ContactInput{Name: "", Email: "nope"})

	assertStatusCode(t, w, http.StatusUnprocessableEntity)
	resp := assertErrorResponse(t, w, middleware.CodeValidation)
	for _, field := range []string{"name", "email", "message"} {
		assert.Contains(t, resp.Error.Details, field)
	}
}

func TestSubmitContact_RateLimited(t *testing.T) {
	env := testSetup(t)
	in := service.ContactInput{Name: "Spam", Email: "spam@example.com", Message: "Buy now"}

	for range contactBurst {
		w := env.do(t, http.MethodPost, "/contact", "", in)
		assertStatusCode(t, w, http.StatusCreated)
	}
	w := env.do(t, http.MethodPost, "/contact", "", in)
	assertStatusCode(t, w, http.StatusTooManyRequests)
	assertErrorResponse(t, w, middleware.CodeRateLimited)
}

func TestContactTriage(t *testing.T) {
	env := testSetup(t)
	_, editor := env.userToken(t, "editor@example.com", rbac.RoleEditor)
	_, viewer := env.userToken(t, "viewer@example.com", rbac.RoleViewer)

	w := env.do(t, http.MethodPost, "/contact", "", service.ContactInput{Name: "Jane", Email: "jane@example.com", Message: "Hello"})
	require.Equal(t, http.StatusCreated, w.Code)
	id := int64(unmarshalData[map[string]any](t, w)["id"].(float64))
	path := "/contact/" + strconv.FormatInt(id, 10)

	w = env.do(t, http.MethodGet, "/contact", "", nil)
	assertStatusCode(t, w, http.StatusUnauthorized)

	w = env.do(t, http.MethodGet, "/contact?status=new", viewer, nil)
	assertStatusCode(t, w, http.StatusOK)
	assert.Equal(t, int64(1), unmarshalList[model.ContactSubmission](t, w).Total)

	w = env.do(t, http.MethodGet, "/contact?status=bogus", viewer, nil)
	assertStatusCode(t, w, http.StatusUnprocessableEntity)

	w = env.do(t, http.MethodPatch, path, viewer, map[string]string{"status": model.ContactStatusRead})
	assertStatusCode(t, w, http.StatusForbidden)

	w = env.do(t, http.MethodPatch, path, editor, map[string]string{"status": model.ContactStatusReplied, "notes": "Called back"})
	assertStatusCode(t, w, http.StatusOK)
	c := unmarshalData[model.ContactSubmission](t, w)
	assert.Equal(t, model.ContactStatusReplied, c.Status)

	w = env.do(t, http.MethodGet, path, viewer, nil)
	assertStatusCode(t, w, http.StatusOK)

	w = env.do(t, http.MethodDelete, path, editor, nil)
	assertStatusCode(t, w, http.StatusForbidden)

	w = env.do(t, http.MethodGet, "/contact/abc", viewer, nil)
	assertStatusCode(t, w, http.StatusBadRequest)
}
