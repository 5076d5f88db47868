// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package api

import (
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/olegiv/evsite-go/internal/middleware"
	"github.com/olegiv/evsite-go/internal/model"
	"github.com/olegiv/evsite-go/internal/sections"
	"github.com/olegiv/evsite-go/internal/service"
	"github.com/olegiv/evsite-go/internal/store"
)

// PublicProjectResponse is what a microsite learns about its project.
type PublicProjectResponse struct {
	Name             string   `json:"name"`
	Slug             string   `json:"slug"`
	Description      string   `json:"description"`
	RegistrationOpen bool     `json:"registration_open"`
	Categories       []string `json:"categories"`
}

// PublicRegistrationResponse is a registration as its attendee sees it.
type PublicRegistrationResponse struct {
	Name         string     `json:"name"`
	Email        string     `json:"email"`
	Organization string     `json:"organization,omitempty"`
	Status       string     `json:"status"`
	Token        string     `json:"token"`
	VerifyURL    string     `json:"verify_url"`
	QRCodeURL    string     `json:"qr_code_url"`
	CreatedAt    time.Time  `json:"created_at"`
	CancelledAt  *time.Time `json:"cancelled_at,omitempty"`
}

func (h *Handler) publicRegistration(project store.Project, reg store.Registration) PublicRegistrationResponse {
	resp := PublicRegistrationResponse{
		Name:         reg.Name,
		Email:        reg.Email,
		Organization: reg.Organization,
		Status:       reg.Status,
		Token:        reg.VerificationToken,
		VerifyURL:    h.registrations.VerifyURL(project.Slug, reg.VerificationToken),
		QRCodeURL:    publicBase(project) + "/registrations/verify/" + reg.VerificationToken + "/qr.png",
		CreatedAt:    reg.CreatedAt,
	}
	if reg.CancelledAt.Valid {
		t := reg.CancelledAt.Time
		resp.CancelledAt = &t
	}
	return resp
}

// publicBase is the API path of a project's public endpoints.
func publicBase(project store.Project) string {
	return Prefix + "/p/" + url.PathEscape(project.Slug)
}

// GetPublicProject handles GET /p/{slug}.
func (h *Handler) GetPublicProject(w http.ResponseWriter, r *http.Request) {
	project, ok := currentProject(w, r)
	if !ok {
		return
	}
	page, err := h.settings.Load(r.Context(), project.ID, model.CategoryRegistration)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	WriteSuccess(w, PublicProjectResponse{
		Name:             project.Name,
		Slug:             project.Slug,
		Description:      project.Description,
		RegistrationOpen: page.BoolValue(sections.ValueRegistrationOpen, true),
		Categories:       model.Categories,
	}, nil)
}

// GetPublicPage handles GET /p/{slug}/pages/{category}: the visible sections
// with markdown rendered.
func (h *Handler) GetPublicPage(w http.ResponseWriter, r *http.Request) {
	project, ok := currentProject(w, r)
	if !ok {
		return
	}
	page, err := h.settings.Public(r.Context(), project.ID, chi.URLParam(r, "category"))
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	WriteSuccess(w, page, nil)
}

// SubmitRegistration handles POST /p/{slug}/registrations.
func (h *Handler) SubmitRegistration(w http.ResponseWriter, r *http.Request) {
	project, ok := currentProject(w, r)
	if !ok {
		return
	}
	var in service.SubmitInput
	if !decodeJSON(w, r, &in) {
		return
	}
	in.IP = middleware.ClientIP(r)
	in.UserAgent = r.UserAgent()

	reg, err := h.registrations.Submit(r.Context(), project, in)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	WriteCreated(w, h.publicRegistration(project, reg))
}

// CheckRegistration handles POST /p/{slug}/registrations/check: an attendee
// finds their registrations by email plus name or phone.
func (h *Handler) CheckRegistration(w http.ResponseWriter, r *http.Request) {
	project, ok := currentProject(w, r)
	if !ok {
		return
	}
	var in service.CheckInput
	if !decodeJSON(w, r, &in) {
		return
	}

	regs, err := h.registrations.Check(r.Context(), project, in)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	out := make([]PublicRegistrationResponse, len(regs))
	for i, reg := range regs {
		out[i] = h.publicRegistration(project, reg)
	}
	WriteSuccess(w, out, nil)
}

// VerifyRegistration handles GET /p/{slug}/registrations/verify/{token}.
func (h *Handler) VerifyRegistration(w http.ResponseWriter, r *http.Request) {
	project, ok := currentProject(w, r)
	if !ok {
		return
	}
	reg, err := h.registrations.GetByToken(r.Context(), project, chi.URLParam(r, "token"))
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	WriteSuccess(w, h.publicRegistration(project, reg), nil)
}

// RegistrationQR handles GET /p/{slug}/registrations/verify/{token}/qr.png.
func (h *Handler) RegistrationQR(w http.ResponseWriter, r *http.Request) {
	project, ok := currentProject(w, r)
	if !ok {
		return
	}
	png, err := h.registrations.QRCode(r.Context(), project, chi.URLParam(r, "token"))
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Content-Length", strconv.Itoa(len(png)))
	w.Header().Set("Cache-Control", "private, no-store")
	_, _ = w.Write(png)
}

// CancelRegistration handles POST /p/{slug}/registrations/verify/{token}/cancel.
func (h *Handler) CancelRegistration(w http.ResponseWriter, r *http.Request) {
	project, ok := currentProject(w, r)
	if !ok {
		return
	}
	reg, err := h.registrations.CancelByToken(r.Context(), project, chi.URLParam(r, "token"))
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	WriteSuccess(w, h.publicRegistration(project, reg), nil)
}
