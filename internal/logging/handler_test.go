// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package logging

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"

	"github.com/olegiv/agency-cms/internal/model"
	"github.com/olegiv/agency-cms/internal/store"
	"github.com/olegiv/agency-cms/internal/testutil"
)

// discardHandler is a slog.Handler that discards all logs.
type discardHandler struct{}

func (h discardHandler) Enabled(context.Context, slog.Level) bool  { return true }
func (h discardHandler) Handle(context.Context, slog.Record) error { return nil }
func (h discardHandler) WithAttrs([]slog.Attr) slog.Handler        { return h }
func (h discardHandler) WithGroup(string) slog.Handler             { return h }

func listEvents(t *testing.T, q *store.Queries) []model.Event {
	t.Helper()
	events, _, err := q.ListEvents(context.Background(), store.EventFilter{Limit: 10})
	if err != nil {
		t.Fatalf("ListEvents: %v", err)
	}
	return events
}

func newQueries(t *testing.T) *store.Queries {
	t.Helper()
	_, q := newDB(t)
	return q
}

func newDB(t *testing.T) (*sql.DB, *store.Queries) {
	t.Helper()
	db, cleanup := testutil.TestDB(t)
	t.Cleanup(cleanup)
	return db, store.New(db)
}

func TestEventLogHandler_Levels(t *testing.T) {
	tests := []struct {
		name      string
		log       func(*slog.Logger)
		wantCount int
		wantLevel string
	}{
		{"error", func(l *slog.Logger) { l.Error("database connection failed", "host", "db") }, 1, model.EventLevelError},
		{"warn", func(l *slog.Logger) { l.Warn("slow query detected", "duration_ms", 5000) }, 1, model.EventLevelWarning},
		{"info", func(l *slog.Logger) { l.Info("server started", "port", 8080) }, 0, ""},
		{"debug", func(l *slog.Logger) { l.Debug("processing request") }, 0, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q := newQueries(t)
			tt.log(slog.New(NewEventLogHandler(discardHandler{}, q)))

			events := listEvents(t, q)
			if len(events) != tt.wantCount {
				t.Fatalf("got %d events, want %d", len(events), tt.wantCount)
			}
			if tt.wantCount == 1 && events[0].Level != tt.wantLevel {
				t.Errorf("Level = %q, want %q", events[0].Level, tt.wantLevel)
			}
		})
	}
}

func TestEventLogHandler_CustomLevel(t *testing.T) {
	q := newQueries(t)
	logger := slog.New(NewEventLogHandlerWithLevel(discardHandler{}, q, slog.LevelInfo))

	logger.Info("server started", "port", 8080)

	if got := len(listEvents(t, q)); got != 1 {
		t.Errorf("got %d events, want 1", got)
	}
}

func TestEventLogHandler_AttributesAndCategory(t *testing.T) {
	db, q := newDB(t)
	u := testutil.CreateUser(t, db, "ops@example.com", "password123", "admin")
	logger := slog.New(NewEventLogHandler(discardHandler{}, q)).With("request_id", "req-1")

	logger.Warn("quota reached",
		"category", model.EventCategoryMedia,
		"ip", "203.0.113.9",
		"path", "/api/media",
		"user_id", u.ID,
		"detail", `quoted "value"`)

	events := listEvents(t, q)
	if len(events) != 1 {
		t.Fatalf("got %d events, want 1", len(events))
	}
	e := events[0]
	if e.Category != model.EventCategoryMedia {
		t.Errorf("Category = %q", e.Category)
	}
	if e.IPAddress != "203.0.113.9" || e.RequestURL != "/api/media" {
		t.Errorf("ip/url = %q %q", e.IPAddress, e.RequestURL)
	}
	if e.UserID == nil || *e.UserID != u.ID {
		t.Errorf("UserID = %v, want %d", e.UserID, u.ID)
	}
	var meta map[string]string
	if err := json.Unmarshal([]byte(e.Metadata), &meta); err != nil {
		t.Fatalf("metadata %q: %v", e.Metadata, err)
	}
	if meta["request_id"] != "req-1" || meta["detail"] != `quoted "value"` {
		t.Errorf("metadata = %v", meta)
	}
	if _, ok := meta["category"]; ok {
		t.Error("category duplicated into metadata")
	}
}

func TestInferCategory(t *testing.T) {
	tests := []struct {
		msg  string
		want string
	}{
		{"login failed", model.EventCategoryAuth},
		{"Token signature invalid", model.EventCategoryAuth},
		{"rate limit exceeded", model.EventCategorySecurity},
		{"account locked", model.EventCategorySecurity},
		{"user deactivated", model.EventCategoryUser},
		{"contact webhook failed", model.EventCategoryContact},
		{"upload rejected", model.EventCategoryMedia},
		{"failed to publish scheduled content", model.EventCategoryContent},
		{"redis cache unavailable", model.EventCategoryCache},
		{"shutting down", model.EventCategorySystem},
	}
	for _, tt := range tests {
		if got := inferCategory(tt.msg); got != tt.want {
			t.Errorf("inferCategory(%q) = %q, want %q", tt.msg, got, tt.want)
		}
	}
}

func TestParseLevelAndNewLogger(t *testing.T) {
	if ParseLevel("DEBUG") != slog.LevelDebug || ParseLevel("warning") != slog.LevelWarn ||
		ParseLevel("error") != slog.LevelError || ParseLevel("bogus") != slog.LevelInfo {
		t.Error("ParseLevel mapping wrong")
	}

	var buf bytes.Buffer
	logger := NewLogger(&buf, "warn")
	logger.Info("hidden")
	logger.Warn("shown")
	if strings.Contains(buf.String(), "hidden") || !strings.Contains(buf.String(), "shown") {
		t.Errorf("output = %q", buf.String())
	}
}
