// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/olegiv/evsite-go/internal/middleware"
	"github.com/olegiv/evsite-go/internal/model"
)

// Prefix is where the API router is mounted.
const Prefix = "/api/v1"

// Routes builds the API router. Mount it at Prefix.
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		WriteNotFound(w, "Endpoint not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		WriteError(w, http.StatusMethodNotAllowed, "method_not_allowed", "Method not allowed", nil)
	})

	if h.sessions != nil {
		r.Use(h.sessions.LoadAndSave)
	}
	if h.csrf != nil {
		r.Use(h.csrf)
	}
	r.Use(middleware.Authenticate(h.sessions, h.tokens, h.users))

	r.With(h.withTimeout).Get("/", h.Status)

	// Public microsite, by project slug. Inactive projects are not found.
	r.Route("/p/{slug}", func(r chi.Router) {
		r.Use(middleware.ProjectFromSlug(h.projects))
		r.Get("/changes", h.PublicChanges)

		r.Group(func(r chi.Router) {
			r.Use(h.withTimeout)
			r.Get("/", h.GetPublicProject)
			r.Get("/pages/{category}", h.GetPublicPage)
			r.Post("/registrations", h.SubmitRegistration)
			r.Post("/registrations/check", h.CheckRegistration)
			r.Get("/registrations/verify/{token}", h.VerifyRegistration)
			r.Get("/registrations/verify/{token}/qr.png", h.RegistrationQR)
			r.Post("/registrations/verify/{token}/cancel", h.CancelRegistration)
		})
	})

	r.Route("/auth", func(r chi.Router) {
		r.Use(h.withTimeout)
		r.Post("/signup", h.Signup)
		if h.login != nil {
			r.With(h.login.Middleware()).Post("/login", h.Login)
		} else {
			r.Post("/login", h.Login)
		}
		r.Post("/logout", h.Logout)
		r.With(middleware.RequireAuth).Get("/me", h.Me)
		r.With(middleware.RequireAuth).Post("/token", h.IssueToken)
	})

	r.Route("/profile", func(r chi.Router) {
		r.Use(h.withTimeout, middleware.RequireAuth)
		r.Get("/", h.GetProfile)
		r.Put("/", h.UpdateProfile)
		r.Put("/password", h.ChangePassword)
	})

	r.Route("/projects", func(r chi.Router) {
		r.Use(middleware.RequireAuth)
		r.With(h.withTimeout).Get("/", h.ListProjects)
		r.With(h.withTimeout).Post("/", h.CreateProject)

		r.Route("/{id}", func(r chi.Router) {
			r.Use(middleware.ProjectFromID(h.projects))
			viewer := middleware.RequireProjectRole(h.projects, model.ProjectRoleViewer)
			editor := middleware.RequireProjectRole(h.projects, model.ProjectRoleEditor)
			admin := middleware.RequireProjectRole(h.projects, model.ProjectRoleAdmin)
			owner := middleware.RequireProjectRole(h.projects, model.ProjectRoleOwner)

			r.With(viewer).Get("/changes", h.ProjectChanges)

			r.Group(func(r chi.Router) {
				r.Use(h.withTimeout)

				r.With(viewer).Get("/", h.GetProject)
				r.With(admin).Put("/", h.UpdateProject)
				r.With(owner).Delete("/", h.DeleteProject)

				r.With(viewer).Get("/members", h.ListMembers)
				r.With(admin).Post("/members", h.AddMember)
				r.With(admin).Put("/members/{userId}", h.UpdateMember)
				r.With(admin).Delete("/members/{userId}", h.RemoveMember)

				r.With(viewer).Get("/settings/{category}", h.GetSettings)
				r.With(editor).Put("/settings/{category}", h.SaveSettings)
				r.With(editor).Delete("/settings/{category}", h.ResetSettings)
				r.With(editor).Post("/settings/{category}/move", h.MoveSection)

				r.With(viewer).Get("/registrations", h.ListRegistrations)
				r.With(viewer).Get("/registrations/stats", h.RegistrationStats)
				r.With(viewer).Get("/registrations/export", h.ExportRegistrations)
				r.With(viewer).Get("/registrations/duplicates", h.DuplicateRegistrations)
				r.With(viewer).Get("/registrations/{regId}", h.GetRegistration)
				r.With(editor).Put("/registrations/{regId}", h.UpdateRegistration)
				r.With(admin).Delete("/registrations/{regId}", h.DeleteRegistration)

				r.With(viewer).Get("/media", h.ListMedia)
				r.With(editor).Post("/media", h.UploadMedia)
				r.With(viewer).Get("/media/{mediaId}", h.GetMedia)
				r.With(editor).Delete("/media/{mediaId}", h.DeleteMedia)

				r.Group(func(r chi.Router) {
					r.Use(admin)
					r.Get("/webhooks", h.ListWebhooks)
					r.Post("/webhooks", h.CreateWebhook)
					r.Get("/webhooks/{webhookId}", h.GetWebhook)
					r.Put("/webhooks/{webhookId}", h.UpdateWebhook)
					r.Delete("/webhooks/{webhookId}", h.DeleteWebhook)
					r.Get("/webhooks/{webhookId}/deliveries", h.ListDeliveries)
					r.Post("/webhooks/{webhookId}/test", h.TestWebhook)
				})
			})
		})
	})

	r.Route("/admin", func(r chi.Router) {
		r.Use(h.withTimeout, middleware.RequireAppRole(model.AppRoleMaster))
		r.Get("/users", h.ListUsers)
		r.Put("/users/{userId}/roles", h.SetUserRoles)
		r.Get("/events", h.ListEvents)
	})

	return r
}

// withTimeout applies the request timeout when one is configured.
func (h *Handler) withTimeout(next http.Handler) http.Handler {
	if h.timeout <= 0 {
		return next
	}
	return middleware.Timeout(h.timeout)(next)
}

// StatusResponse contains API status information.
type StatusResponse struct {
	Status  string `json:"status"`
	Version string `json:"version"`
}

// Status returns the API status.
func (h *Handler) Status(w http.ResponseWriter, _ *http.Request) {
	WriteSuccess(w, StatusResponse{Status: "ok", Version: "v1"}, nil)
}
