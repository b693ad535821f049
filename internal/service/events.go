// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

// Package service holds the workflows that span several stores: the audit
// log, media uploads and contact intake.
package service

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/olegiv/agency-cms/internal/model"
	"github.com/olegiv/agency-cms/internal/store"
)

// EventStore is the persistence EventService needs.
type EventStore interface {
	CreateEvent(ctx context.Context, e *model.Event) error
	ListEvents(ctx context.Context, f store.EventFilter) ([]model.Event, int64, error)
	DeleteEventsBefore(ctx context.Context, before time.Time) (int64, error)
}

// EventService writes and reads the audit log.
type EventService struct {
	events EventStore
	logger *slog.Logger
}

// NewEventService creates a new EventService.
func NewEventService(events EventStore, logger *slog.Logger) *EventService {
	if logger == nil {
		logger = slog.Default()
	}
	return &EventService{events: events, logger: logger}
}

// Source identifies who caused an event. The zero value is the system.
type Source struct {
	UserID     *int64
	IPAddress  string
	RequestURL string
}

// LogEvent creates a new event log entry. Failures are logged and returned;
// callers on a request path usually ignore them.
func (s *EventService) LogEvent(ctx context.Context, level, category, message string, src Source, metadata map[string]any) error {
	metadataJSON := "{}"
	if len(metadata) > 0 {
		if b, err := json.Marshal(metadata); err == nil {
			metadataJSON = string(b)
		}
	}

	err := s.events.CreateEvent(ctx, &model.Event{
		Level:      level,
		Category:   category,
		Message:    message,
		UserID:     src.UserID,
		Metadata:   metadataJSON,
		IPAddress:  src.IPAddress,
		RequestURL: src.RequestURL,
	})
	if err != nil {
		s.logger.Debug("failed to log event", "error", err, "category", category)
		return err
	}
	return nil
}

// LogInfo logs an info-level event.
func (s *EventService) LogInfo(ctx context.Context, category, message string, src Source, metadata map[string]any) error {
	return s.LogEvent(ctx, model.EventLevelInfo, category, message, src, metadata)
}

// LogWarning logs a warning-level event.
func (s *EventService) LogWarning(ctx context.Context, category, message string, src Source, metadata map[string]any) error {
	return s.LogEvent(ctx, model.EventLevelWarning, category, message, src, metadata)
}

// LogError logs an error-level event.
func (s *EventService) LogError(ctx context.Context, category, message string, src Source, metadata map[string]any) error {
	return s.LogEvent(ctx, model.EventLevelError, category, message, src, metadata)
}

// LogAuthEvent logs an authentication-related event.
func (s *EventService) LogAuthEvent(ctx context.Context, level, message string, src Source, metadata map[string]any) error {
	return s.LogEvent(ctx, level, model.EventCategoryAuth, message, src, metadata)
}

// LogContentEvent logs a content mutation.
func (s *EventService) LogContentEvent(ctx context.Context, level, message string, src Source, metadata map[string]any) error {
	return s.LogEvent(ctx, level, model.EventCategoryContent, message, src, metadata)
}

// LogUserEvent logs a user-related event.
func (s *EventService) LogUserEvent(ctx context.Context, level, message string, src Source, metadata map[string]any) error {
	return s.LogEvent(ctx, level, model.EventCategoryUser, message, src, metadata)
}

// LogSystemEvent logs a system-related event.
func (s *EventService) LogSystemEvent(ctx context.Context, level, message string, metadata map[string]any) error {
	return s.LogEvent(ctx, level, model.EventCategorySystem, message, Source{}, metadata)
}

// List returns one page of events, newest first.
func (s *EventService) List(ctx context.Context, f store.EventFilter) ([]model.Event, int64, error) {
	return s.events.ListEvents(ctx, f)
}

// DeleteOldEvents removes events older than olderThan.
func (s *EventService) DeleteOldEvents(ctx context.Context, olderThan time.Duration) (int64, error) {
	return s.events.DeleteEventsBefore(ctx, time.Now().Add(-olderThan))
}
