// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package api

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/olegiv/agency-cms/internal/middleware"
	"github.com/olegiv/agency-cms/internal/model"
	"github.com/olegiv/agency-cms/internal/rbac"
)

func TestCompanyInfo_PublicAndPrivateKeys(t *testing.T) {
	env := testSetup(t)
	_, admin := env.userToken(t, "admin@example.com", rbac.RoleAdmin)

	w := env.do(t, http.MethodPut, "/company-info/company_name", admin, CompanyInfoRequest{Value: " Acme Studio ", IsPublic: true})
	assertStatusCode(t, w, http.StatusCreated)
	assert.Equal(t, "Acme Studio", unmarshalData[model.CompanyInfo](t, w).Value)

	w = env.do(t, http.MethodPut, "/company-info/bank.iban", admin, CompanyInfoRequest{Value: "DE00 1234"})
	assertStatusCode(t, w, http.StatusCreated)

	// Warm the public cache, then replace a value.
	w = env.do(t, http.MethodGet, "/company-info", "", nil)
	assertStatusCode(t, w, http.StatusOK)
	assert.Len(t, unmarshalData[[]model.CompanyInfo](t, w), 1)

	w = env.do(t, http.MethodPut, "/company-info/company_name", admin, CompanyInfoRequest{Value: "Acme Labs", IsPublic: true})
	assertStatusCode(t, w, http.StatusOK)

	w = env.do(t, http.MethodGet, "/company-info", "", nil)
	items := unmarshalData[[]model.CompanyInfo](t, w)
	if assert.Len(t, items, 1) {
		assert.Equal(t, "Acme Labs", items[0].Value)
	}

	w = env.do(t, http.MethodGet, "/company-info/bank.iban", "", nil)
	assertStatusCode(t, w, http.StatusNotFound)

	w = env.do(t, http.MethodGet, "/company-info/bank.iban", admin, nil)
	assertStatusCode(t, w, http.StatusOK)

	w = env.do(t, http.MethodGet, "/company-info", admin, nil)
	assert.Len(t, unmarshalData[[]model.CompanyInfo](t, w), 2)
}

func TestCompanyInfo_Validation(t *testing.T) {
	env := testSetup(t)
	_, admin := env.userToken(t, "admin@example.com", rbac.RoleAdmin)

	tests := []struct {
		name  string
		key   string
		req   CompanyInfoRequest
		field string
	}{
		{"bad key", "1abc", CompanyInfoRequest{Value: "x"}, "key"},
		{"bad number", "team_size", CompanyInfoRequest{Value: "many", ValueType: model.ValueTypeNumber}, "value"},
		{"bad boolean", "hiring", CompanyInfoRequest{Value: "maybe", ValueType: model.ValueTypeBoolean}, "value"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := env.do(t, http.MethodPut, "/company-info/"+tt.key, admin, tt.req)
			assertStatusCode(t, w, http.StatusUnprocessableEntity)
			resp := assertErrorResponse(t, w, middleware.CodeValidation)
			assert.Contains(t, resp.Error.Details, tt.field)
		})
	}
}

func TestCompanyInfo_WriteGates(t *testing.T) {
	env := testSetup(t)
	_, editor := env.userToken(t, "editor@example.com", rbac.RoleEditor)
	_, admin := env.userToken(t, "admin@example.com", rbac.RoleAdmin)

	w := env.do(t, http.MethodPut, "/company-info/phone", editor, CompanyInfoRequest{Value: "+1 555"})
	assertStatusCode(t, w, http.StatusForbidden)

	w = env.do(t, http.MethodPut, "/company-info/phone", admin, CompanyInfoRequest{Value: "+1 555", IsPublic: true})
	assertStatusCode(t, w, http.StatusCreated)

	w = env.do(t, http.MethodDelete, "/company-info/phone", admin, nil)
	assertStatusCode(t, w, http.StatusNoContent)

	w = env.do(t, http.MethodGet, "/company-info/phone", "", nil)
	assertStatusCode(t, w, http.StatusNotFound)
}

func TestCompanyInfo_HTMLIsSanitized(t *testing.T) {
	env := testSetup(t)
	_, admin := env.userToken(t, "admin@example.com", rbac.RoleAdmin)

	w := env.do(t, http.MethodPut, "/company-info/about", admin, CompanyInfoRequest{
		Value:     `<p>Hi</p><script>alert(1)</script>`,
		ValueType: model.ValueTypeHTML,
		IsPublic:  true,
	})

	assertStatusCode(t, w, http.StatusCreated)
	got := unmarshalData[model.CompanyInfo](t, w)
	assert.Contains(t, got.Value, "<p>Hi</p>")
	assert.NotContains(t, got.Value, "script")
}
