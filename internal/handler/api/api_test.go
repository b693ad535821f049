// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package api

import (
	"encoding/json"
	"math"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"

	"github.com/olegiv/agency-cms/internal/middleware"
	"github.com/olegiv/agency-cms/internal/model"
)

// assertStatusCode checks that the response has the expected status code.
func assertStatusCode(t *testing.T, w *httptest.ResponseRecorder, expected int) {
	t.Helper()
	if w.Code != expected {
		t.Errorf("expected status %d, got %d (body %s)", expected, w.Code, w.Body.String())
	}
}

// assertErrorResponse unmarshals and validates an error response.
func assertErrorResponse(t *testing.T, w *httptest.ResponseRecorder, expectedCode string) middleware.APIError {
	t.Helper()
	resp := unmarshalError(t, w)
	if resp.Error.Code != expectedCode {
		t.Errorf("expected code '%s', got %s", expectedCode, resp.Error.Code)
	}
	return resp
}

func TestWriteJSON(t *testing.T) {
	w := httptest.NewRecorder()

	WriteJSON(w, http.StatusOK, map[string]string{"key": "value"})

	assertStatusCode(t, w, http.StatusOK)
	if ct := w.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("expected Content-Type 'application/json', got %s", ct)
	}
	var resp map[string]string
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to unmarshal response: %v", err)
	}
	if resp["key"] != "value" {
		t.Errorf("expected key 'value', got %s", resp["key"])
	}
}

func TestWriteCreated(t *testing.T) {
	w := httptest.NewRecorder()

	WriteCreated(w, map[string]int{"id": 3})

	assertStatusCode(t, w, http.StatusCreated)
	if got := unmarshalData[map[string]int](t, w); got["id"] != 3 {
		t.Errorf("data.id = %d, want 3", got["id"])
	}
}

func TestParsePage(t *testing.T) {
	tests := []struct {
		name      string
		query     string
		wantPage  int
		wantLimit int
		wantErr   string
	}{
		{"defaults", "", 1, DefaultPageSize, ""},
		{"explicit", "?page=3&limit=5", 3, 5, ""},
		{"limit capped", "?limit=1000", 1, MaxPageSize, ""},
		{"page zero", "?page=0", 0, 0, "page"},
		{"last addressable page", "?page=" + strconv.Itoa(MaxPage), MaxPage, DefaultPageSize, ""},
		{"page past addressable rows", "?page=" + strconv.Itoa(MaxPage+1), 0, 0, "page"},
		{"page overflows int", "?page=99999999999999999999", 0, 0, "page"},
		{"limit not a number", "?limit=ten", 0, 0, "limit"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, "/projects"+tt.query, nil)
			p, err := parsePage(r)
			if tt.wantErr != "" {
				ve, ok := model.AsValidationError(err)
				if !ok {
					t.Fatalf("expected validation error, got %v", err)
				}
				if _, ok := ve.Fields[tt.wantErr]; !ok {
					t.Errorf("expected field %q in %v", tt.wantErr, ve.Fields)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if p.Page != tt.wantPage || p.Limit != tt.wantLimit {
				t.Errorf("got page=%d limit=%d, want page=%d limit=%d", p.Page, p.Limit, tt.wantPage, tt.wantLimit)
			}
		})
	}
}

func TestPageParams_OffsetOfLastPage(t *testing.T) {
	off := PageParams{Page: MaxPage, Limit: MaxPageSize}.Offset()
	if off < 0 || off > math.MaxInt-MaxPageSize {
		t.Errorf("offset %d of the last page leaves no room for a full page", off)
	}
}

func TestNewPagination(t *testing.T) {
	tests := []struct {
		name  string
		page  int
		limit int
		total int64
		want  Pagination
	}{
		{"empty", 1, 12, 0, Pagination{Page: 1, Limit: 12, TotalPages: 0}},
		{"single page", 1, 12, 12, Pagination{Page: 1, Limit: 12, TotalPages: 1}},
		{"first of three", 1, 10, 25, Pagination{Page: 1, Limit: 10, TotalPages: 3, HasNext: true}},
		{"middle", 2, 10, 25, Pagination{Page: 2, Limit: 10, TotalPages: 3, HasNext: true, HasPrev: true}},
		{"last", 3, 10, 25, Pagination{Page: 3, Limit: 10, TotalPages: 3, HasPrev: true}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := NewPagination(PageParams{Page: tt.page, Limit: tt.limit}, tt.total)
			if got != tt.want {
				t.Errorf("got %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestNewListResponse_NilBecomesEmpty(t *testing.T) {
	w := httptest.NewRecorder()
	WriteJSON(w, http.StatusOK, NewListResponse[*model.Project](nil, 0, PageParams{Page: 1, Limit: 12}))

	var raw map[string]json.RawMessage
	if err := json.Unmarshal(w.Body.Bytes(), &raw); err != nil {
		t.Fatalf("failed to unmarshal response: %v", err)
	}
	if string(raw["data"]) != "[]" {
		t.Errorf("data = %s, want []", raw["data"])
	}
}

func TestDecodeJSON(t *testing.T) {
	tests := []struct {
		name      string
		body      string
		wantField string
	}{
		{"empty body", "", "body"},
		{"syntax error", "{", "body"},
		{"wrong type", `{"email": 5}`, "email"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := newJSONRequest(t, http.MethodPost, "/auth/login", tt.body, nil)
			var dst LoginRequest
			err := decodeJSON(req, &dst)
			ve, ok := model.AsValidationError(err)
			if !ok {
				t.Fatalf("expected validation error, got %v", err)
			}
			if _, ok := ve.Fields[tt.wantField]; !ok {
				t.Errorf("expected field %q in %v", tt.wantField, ve.Fields)
			}
		})
	}
}

func TestParseIDParam(t *testing.T) {
	tests := []struct {
		value string
		want  int64
		ok    bool
	}{
		{"42", 42, true},
		{"0", 0, false},
		{"-1", 0, false},
		{"abc", 0, false},
	}

	for _, tt := range tests {
		req := requestWithURLParams(httptest.NewRequest(http.MethodGet, "/users/"+tt.value, nil), map[string]string{"id": tt.value})
		got, ok := parseIDParam(req)
		if got != tt.want || ok != tt.ok {
			t.Errorf("parseIDParam(%q) = %d, %v; want %d, %v", tt.value, got, ok, tt.want, tt.ok)
		}
	}
}

func TestWriteForbidden(t *testing.T) {
	w := executeHandler(t, func(w http.ResponseWriter, _ *http.Request) {
		WriteForbidden(w, "nope")
	}, httptest.NewRequest(http.MethodGet, "/", nil))

	assertStatusCode(t, w, http.StatusForbidden)
	resp := assertErrorResponse(t, w, middleware.CodePermissionDenied)
	if resp.Error.Message != "nope" {
		t.Errorf("message = %q, want nope", resp.Error.Message)
	}
}
