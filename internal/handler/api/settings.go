// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/olegiv/evsite-go/internal/middleware"
	"github.com/olegiv/evsite-go/internal/sections"
)

// MoveRequest moves one section. Either From (an index) or ID names it.
type MoveRequest struct {
	From *int   `json:"from"`
	ID   string `json:"id"`
	To   int    `json:"to"`
}

// GetSettings handles GET /projects/{id}/settings/{category}: the full page
// including hidden sections and any fallbacks taken while decoding.
func (h *Handler) GetSettings(w http.ResponseWriter, r *http.Request) {
	project, ok := currentProject(w, r)
	if !ok {
		return
	}
	page, err := h.settings.Load(r.Context(), project.ID, chi.URLParam(r, "category"))
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	WriteSuccess(w, page, nil)
}

// SaveSettings handles PUT /projects/{id}/settings/{category}. The body
// replaces the whole category.
func (h *Handler) SaveSettings(w http.ResponseWriter, r *http.Request) {
	project, ok := currentProject(w, r)
	if !ok {
		return
	}
	var page sections.Page
	if !decodeJSON(w, r, &page) {
		return
	}
	saved, err := h.settings.Save(r.Context(), project.ID, chi.URLParam(r, "category"), page, middleware.GetUserID(r))
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	WriteSuccess(w, saved, nil)
}

// ResetSettings handles DELETE /projects/{id}/settings/{category}.
func (h *Handler) ResetSettings(w http.ResponseWriter, r *http.Request) {
	project, ok := currentProject(w, r)
	if !ok {
		return
	}
	page, err := h.settings.Reset(r.Context(), project.ID, chi.URLParam(r, "category"), middleware.GetUserID(r))
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	WriteSuccess(w, page, nil)
}

// MoveSection handles POST /projects/{id}/settings/{category}/move.
func (h *Handler) MoveSection(w http.ResponseWriter, r *http.Request) {
	project, ok := currentProject(w, r)
	if !ok {
		return
	}
	var in MoveRequest
	if !decodeJSON(w, r, &in) {
		return
	}
	if in.From == nil && in.ID == "" {
		WriteValidationError(w, map[string]string{"from": "from or id is required"})
		return
	}

	category := chi.URLParam(r, "category")
	userID := middleware.GetUserID(r)
	var (
		page sections.Page
		err  error
	)
	if in.ID != "" {
		page, err = h.settings.MoveSectionID(r.Context(), project.ID, category, in.ID, in.To, userID)
	} else {
		page, err = h.settings.MoveSection(r.Context(), project.ID, category, *in.From, in.To, userID)
	}
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	WriteSuccess(w, page, nil)
}
