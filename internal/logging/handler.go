// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

// Package logging builds the process logger and mirrors WARN and ERROR
// records into the audit log.
package logging

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"strings"

	"github.com/olegiv/agency-cms/internal/model"
)

// EventSink stores audit events.
type EventSink interface {
	CreateEvent(ctx context.Context, e *model.Event) error
}

// ParseLevel maps debug, info, warn and error to a slog.Level. Anything
// else is info.
func ParseLevel(s string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// NewLogger returns a text logger writing to w at level.
func NewLogger(w io.Writer, level string) *slog.Logger {
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: ParseLevel(level)}))
}

// EventLogHandler is a slog.Handler that wraps another handler and also writes
// records at or above its level to the audit log.
type EventLogHandler struct {
	inner slog.Handler
	sink  EventSink
	level slog.Level
	attrs []slog.Attr
}

// NewEventLogHandler wraps inner and forwards WARN and above to sink.
func NewEventLogHandler(inner slog.Handler, sink EventSink) *EventLogHandler {
	return NewEventLogHandlerWithLevel(inner, sink, slog.LevelWarn)
}

// NewEventLogHandlerWithLevel creates a new EventLogHandler with a custom minimum level.
func NewEventLogHandlerWithLevel(inner slog.Handler, sink EventSink, level slog.Level) *EventLogHandler {
	return &EventLogHandler{inner: inner, sink: sink, level: level}
}

// Enabled implements slog.Handler.
func (h *EventLogHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.inner.Enabled(ctx, level)
}

// Handle implements slog.Handler.
func (h *EventLogHandler) Handle(ctx context.Context, r slog.Record) error {
	if err := h.inner.Handle(ctx, r); err != nil {
		return err
	}
	if r.Level >= h.level {
		h.writeToEventLog(r)
	}
	return nil
}

// WithAttrs implements slog.Handler.
func (h *EventLogHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	merged := make([]slog.Attr, 0, len(h.attrs)+len(attrs))
	merged = append(merged, h.attrs...)
	merged = append(merged, attrs...)
	return &EventLogHandler{inner: h.inner.WithAttrs(attrs), sink: h.sink, level: h.level, attrs: merged}
}

// WithGroup implements slog.Handler. Group names are not reflected in the
// audit metadata.
func (h *EventLogHandler) WithGroup(name string) slog.Handler {
	return &EventLogHandler{inner: h.inner.WithGroup(name), sink: h.sink, level: h.level, attrs: h.attrs}
}

// writeToEventLog stores r. A background context keeps the write alive
// when the request that logged it is cancelled.
func (h *EventLogHandler) writeToEventLog(r slog.Record) {
	e := &model.Event{
		Level:   slogLevelToEventLevel(r.Level),
		Message: r.Message,
	}

	meta := map[string]string{}
	collect := func(a slog.Attr) bool {
		switch a.Key {
		case "category":
			e.Category = a.Value.String()
		case "ip", "ip_address":
			e.IPAddress = a.Value.String()
		case "path", "request_url":
			e.RequestURL = a.Value.String()
		case "user_id":
			if v := a.Value.Resolve(); v.Kind() == slog.KindInt64 && v.Int64() > 0 {
				id := v.Int64()
				e.UserID = &id
			}
			meta[a.Key] = a.Value.String()
		default:
			meta[a.Key] = a.Value.String()
		}
		return true
	}
	for _, a := range h.attrs {
		collect(a)
	}
	r.Attrs(collect)

	if e.Category == "" {
		e.Category = inferCategory(r.Message)
	}
	if len(meta) > 0 {
		if b, err := json.Marshal(meta); err == nil {
			e.Metadata = string(b)
		}
	}

	_ = h.sink.CreateEvent(context.Background(), e)
}

func slogLevelToEventLevel(level slog.Level) string {
	switch {
	case level >= slog.LevelError:
		return model.EventLevelError
	case level >= slog.LevelWarn:
		return model.EventLevelWarning
	default:
		return model.EventLevelInfo
	}
}

// inferCategory guesses a category from message keywords.
func inferCategory(message string) string {
	msg := strings.ToLower(message)
	switch {
	case strings.Contains(msg, "auth") || strings.Contains(msg, "login") || strings.Contains(msg, "token"):
		return model.EventCategoryAuth
	case strings.Contains(msg, "rate limit") || strings.Contains(msg, "locked") || strings.Contains(msg, "blocked"):
		return model.EventCategorySecurity
	case strings.Contains(msg, "user"):
		return model.EventCategoryUser
	case strings.Contains(msg, "contact"):
		return model.EventCategoryContact
	case strings.Contains(msg, "media") || strings.Contains(msg, "upload"):
		return model.EventCategoryMedia
	case strings.Contains(msg, "project") || strings.Contains(msg, "blog") ||
		strings.Contains(msg, "publish") || strings.Contains(msg, "content"):
		return model.EventCategoryContent
	case strings.Contains(msg, "cache"):
		return model.EventCategoryCache
	default:
		return model.EventCategorySystem
	}
}
