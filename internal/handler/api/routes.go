// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package api

import (
	"github.com/go-chi/chi/v5"

	"github.com/olegiv/agency-cms/internal/middleware"
	"github.com/olegiv/agency-cms/internal/rbac"
)

// Contact form submissions allowed per client IP.
const (
	contactRPS   = 0.1
	contactBurst = 3
)

// Routes registers the content API and the admin API on r. Mount it under
// the configured API prefix.
func (h *Handler) Routes(r chi.Router) {
	r.Use(middleware.NoStoreAuthorized)

	// Health (public, details for authenticated callers)
	r.With(middleware.OptionalBearerAuth(h.Auth)).Get("/health", h.Health)
	r.Get("/health/live", h.Liveness)

	r.Route("/auth", func(r chi.Router) {
		if h.LoginGuard != nil {
			r.With(h.LoginGuard.Middleware()).Post("/login", h.Login)
		} else {
			r.Post("/login", h.Login)
		}
		r.Post("/verify-token", h.VerifyToken)

		r.Group(func(r chi.Router) {
			h.authenticated(r)
			r.Post("/logout", h.Logout)
			r.Get("/me", h.Me)
			r.Put("/profile", h.UpdateProfile)
			r.Put("/change-password", h.ChangePassword)
		})
	})

	// Content types: public reads, gated writes
	r.Route("/projects", newContentHandler(h, h.projects).routes)
	r.Route("/blog", newContentHandler(h, h.blog).routes)
	r.Route("/team", newContentHandler(h, h.team).routes)
	r.Route("/services", newContentHandler(h, h.services).routes)

	r.Route("/contact", func(r chi.Router) {
		r.With(h.contactLimit.Middleware()).Post("/", h.SubmitContact)

		r.Group(func(r chi.Router) {
			h.authenticated(r)
			r.With(middleware.RequirePermission(rbac.ResourceContacts, rbac.ActionRead)).Get("/", h.ListContacts)
			r.With(middleware.RequirePermission(rbac.ResourceContacts, rbac.ActionRead)).Get("/{id}", h.GetContact)
			r.With(middleware.RequirePermission(rbac.ResourceContacts, rbac.ActionWrite)).Patch("/{id}", h.TriageContact)
			r.With(middleware.RequirePermission(rbac.ResourceContacts, rbac.ActionDelete)).Delete("/{id}", h.DeleteContact)
		})
	})

	r.Route("/company-info", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			r.Use(middleware.OptionalBearerAuth(h.Auth))
			r.Get("/", h.ListCompanyInfo)
			r.Get("/{key}", h.GetCompanyInfo)
		})
		r.Group(func(r chi.Router) {
			h.authenticated(r)
			r.With(middleware.RequirePermission(rbac.ResourceCompany, rbac.ActionWrite)).Put("/{key}", h.PutCompanyInfo)
			r.With(middleware.RequirePermission(rbac.ResourceCompany, rbac.ActionDelete)).Delete("/{key}", h.DeleteCompanyInfo)
		})
	})

	// Admin endpoints
	r.Group(func(r chi.Router) {
		h.authenticated(r)

		r.Route("/users", func(r chi.Router) {
			r.Group(func(r chi.Router) {
				r.Use(middleware.RequirePermission(rbac.ResourceUsers, rbac.ActionRead))
				r.Get("/", h.ListUsers)
				r.Get("/{id}", h.GetUser)
			})
			r.Group(func(r chi.Router) {
				r.Use(middleware.RequirePermission(rbac.ResourceUsers, rbac.ActionWrite))
				r.Post("/", h.CreateUser)
				r.Put("/{id}", h.UpdateUser)
				r.Post("/{id}/activate", h.ActivateUser)
			})
			r.With(middleware.RequirePermission(rbac.ResourceUsers, rbac.ActionDelete)).Post("/{id}/deactivate", h.DeactivateUser)
		})

		if h.Media != nil {
			r.Route("/media", func(r chi.Router) {
				r.With(middleware.RequirePermission(rbac.ResourceMedia, rbac.ActionRead)).Get("/", h.ListMedia)
				r.With(middleware.RequirePermission(rbac.ResourceMedia, rbac.ActionWrite)).Post("/", h.UploadMedia)
				r.With(middleware.RequirePermission(rbac.ResourceMedia, rbac.ActionDelete)).Delete("/{uuid}", h.DeleteMedia)
			})
		}

		r.With(middleware.RequirePermission(rbac.ResourceEvents, rbac.ActionRead)).Get("/events", h.ListEvents)
	})
}

// authenticated requires a valid bearer token on the routes of r and
// limits each user's request rate.
func (h *Handler) authenticated(r chi.Router) {
	r.Use(middleware.BearerAuth(h.Auth), h.userLimit)
}

// PruneLimiters bounds the per-IP limiter tables. Run it periodically.
func (h *Handler) PruneLimiters() {
	h.contactLimit.Prune()
}
