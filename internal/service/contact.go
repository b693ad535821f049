// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package service

import (
	"context"
	"log/slog"
	"strings"

	"github.com/mileusna/useragent"

	"github.com/olegiv/agency-cms/internal/geoip"
	"github.com/olegiv/agency-cms/internal/model"
	"github.com/olegiv/agency-cms/internal/store"
	"github.com/olegiv/agency-cms/internal/webhook"
)

// ContactStore is the persistence ContactService needs.
type ContactStore interface {
	CreateContactSubmission(ctx context.Context, c *model.ContactSubmission) error
	ListContactSubmissions(ctx context.Context, f store.ListFilter) ([]model.ContactSubmission, int64, error)
	GetContactSubmission(ctx context.Context, id int64) (model.ContactSubmission, error)
	UpdateContactTriage(ctx context.Context, c *model.ContactSubmission) error
	DeleteContactSubmission(ctx context.Context, id int64) error
}

// Notifier sends outbound event notifications.
type Notifier interface {
	DispatchEvent(ctx context.Context, eventType string, data any) error
}

// ContactInput is what a visitor sends through the contact form.
type ContactInput struct {
	Name    string `json:"name"`
	Email   string `json:"email"`
	Phone   string `json:"phone"`
	Company string `json:"company"`
	Subject string `json:"subject"`
	Message string `json:"message"`
	Budget  string `json:"budget"`
}

// ClientInfo describes the request a submission arrived on.
type ClientInfo struct {
	IP        string
	UserAgent string
}

// TriageInput holds the admin-editable fields. Nil fields are unchanged.
type TriageInput struct {
	Status *string `json:"status"`
	Notes  *string `json:"notes"`
}

// ContactService accepts and triages contact submissions.
type ContactService struct {
	contacts ContactStore
	geo      *geoip.Resolver
	notifier Notifier
	events   *EventService
	logger   *slog.Logger
}

// NewContactService wires a ContactService. geo and notifier may be nil.
func NewContactService(contacts ContactStore, geo *geoip.Resolver, notifier Notifier, events *EventService, logger *slog.Logger) *ContactService {
	if logger == nil {
		logger = slog.Default()
	}
	return &ContactService{contacts: contacts, geo: geo, notifier: notifier, events: events, logger: logger}
}

// Submit validates in, enriches it with country and client details and
// stores it in the "new" state.
func (s *ContactService) Submit(ctx context.Context, in ContactInput, client ClientInfo) (*model.ContactSubmission, error) {
	c := &model.ContactSubmission{
		Name:    strings.TrimSpace(in.Name),
		Email:   model.NormalizeEmail(in.Email),
		Phone:   strings.TrimSpace(in.Phone),
		Company: strings.TrimSpace(in.Company),
		Subject: strings.TrimSpace(in.Subject),
		Message: strings.TrimSpace(in.Message),
		Budget:  strings.TrimSpace(in.Budget),
		Status:  model.ContactStatusNew,
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}

	c.IPAddress = client.IP
	if s.geo != nil {
		c.Country = s.geo.Country(client.IP)
	}
	c.Browser, c.OS, c.Device = parseUserAgent(client.UserAgent)

	if err := s.contacts.CreateContactSubmission(ctx, c); err != nil {
		return nil, err
	}

	if s.events != nil {
		_ = s.events.LogInfo(ctx, model.EventCategoryContact, "Contact form submitted",
			Source{IPAddress: client.IP}, map[string]any{"submission_id": c.ID, "country": c.Country})
	}
	if s.notifier != nil {
		err := s.notifier.DispatchEvent(ctx, webhook.EventContactSubmitted, webhook.ContactEventData{
			ID:          c.ID,
			Name:        c.Name,
			Email:       c.Email,
			Company:     c.Company,
			Subject:     c.Subject,
			Country:     c.Country,
			SubmittedAt: c.CreatedAt,
		})
		if err != nil {
			s.logger.Warn("failed to dispatch contact webhook", "submission_id", c.ID, "error", err)
		}
	}
	return c, nil
}

// List returns one page of submissions, newest first.
func (s *ContactService) List(ctx context.Context, f store.ListFilter) ([]model.ContactSubmission, int64, error) {
	return s.contacts.ListContactSubmissions(ctx, f)
}

// Get returns submission id.
func (s *ContactService) Get(ctx context.Context, id int64) (*model.ContactSubmission, error) {
	c, err := s.contacts.GetContactSubmission(ctx, id)
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// Triage updates status and notes and marks handledBy as the handler.
func (s *ContactService) Triage(ctx context.Context, id int64, in TriageInput, handledBy int64) (*model.ContactSubmission, error) {
	c, err := s.contacts.GetContactSubmission(ctx, id)
	if err != nil {
		return nil, err
	}

	ve := model.NewValidationError()
	if in.Status != nil {
		if !model.IsValidContactStatus(*in.Status) {
			ve.Add("status", "Status must be one of "+strings.Join(model.ContactStatuses, ", "))
		}
		c.Status = *in.Status
	}
	if in.Notes != nil {
		if len(*in.Notes) > model.MaxMessageLength {
			ve.Add("notes", "Notes are too long")
		}
		c.Notes = *in.Notes
	}
	if err := ve.Err(); err != nil {
		return nil, err
	}
	if handledBy > 0 {
		c.HandledBy = &handledBy
	}

	if err := s.contacts.UpdateContactTriage(ctx, &c); err != nil {
		return nil, err
	}
	return &c, nil
}

// Delete removes submission id.
func (s *ContactService) Delete(ctx context.Context, id int64) error {
	return s.contacts.DeleteContactSubmission(ctx, id)
}

// parseUserAgent returns browser, OS and device class for a User-Agent.
func parseUserAgent(raw string) (browser, os, device string) {
	if raw == "" {
		return "", "", ""
	}
	ua := useragent.Parse(raw)
	browser, os = ua.Name, ua.OS
	switch {
	case ua.Bot:
		device = "bot"
	case ua.Tablet:
		device = "tablet"
	case ua.Mobile:
		device = "mobile"
	default:
		device = "desktop"
	}
	return browser, os, device
}
