// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package api

import (
	"bytes"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/olegiv/evsite-go/internal/service"
	"github.com/olegiv/evsite-go/internal/store"
)

// RegistrationResponse is a registration as the back office sees it.
type RegistrationResponse struct {
	store.Registration
	FormData    map[string]string `json:"form_data"`
	CancelledAt *time.Time        `json:"cancelled_at,omitempty"`
}

func registrationResponse(reg store.Registration) RegistrationResponse {
	resp := RegistrationResponse{Registration: reg, FormData: service.FormValues(reg)}
	if reg.CancelledAt.Valid {
		t := reg.CancelledAt.Time
		resp.CancelledAt = &t
	}
	return resp
}

// StatusRequest is the body of PUT /projects/{id}/registrations/{regId}.
type StatusRequest struct {
	Status string `json:"status"`
}

// ListRegistrations handles GET /projects/{id}/registrations with optional
// status and search filters.
func (h *Handler) ListRegistrations(w http.ResponseWriter, r *http.Request) {
	project, ok := currentProject(w, r)
	if !ok {
		return
	}
	p := parsePagination(r)
	q := r.URL.Query()
	regs, total, err := h.registrations.List(r.Context(), project.ID, service.RegistrationFilter{
		Status: q.Get("status"),
		Search: q.Get("search"),
		Limit:  p.PerPage,
		Offset: p.Offset(),
	})
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	out := make([]RegistrationResponse, len(regs))
	for i, reg := range regs {
		out[i] = registrationResponse(reg)
	}
	WriteSuccess(w, out, p.Meta(total))
}

// RegistrationStats handles GET /projects/{id}/registrations/stats.
func (h *Handler) RegistrationStats(w http.ResponseWriter, r *http.Request) {
	project, ok := currentProject(w, r)
	if !ok {
		return
	}
	stats, err := h.registrations.Stats(r.Context(), project.ID)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	WriteSuccess(w, stats, nil)
}

// ExportRegistrations handles GET /projects/{id}/registrations/export as a
// CSV download.
func (h *Handler) ExportRegistrations(w http.ResponseWriter, r *http.Request) {
	project, ok := currentProject(w, r)
	if !ok {
		return
	}
	var buf bytes.Buffer
	n, err := h.registrations.ExportCSV(r.Context(), project.ID, &buf)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	filename := fmt.Sprintf("%s-registrations-%s.csv", project.Slug, time.Now().UTC().Format("20060102"))
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	w.Header().Set("X-Total-Count", strconv.Itoa(n))
	w.Header().Set("Cache-Control", "no-store")
	_, _ = w.Write(buf.Bytes())
}

// DuplicateRegistrations handles GET /projects/{id}/registrations/duplicates.
// The fields query lists the compared fields, comma separated.
func (h *Handler) DuplicateRegistrations(w http.ResponseWriter, r *http.Request) {
	project, ok := currentProject(w, r)
	if !ok {
		return
	}
	var fields []string
	for _, f := range strings.Split(r.URL.Query().Get("fields"), ",") {
		if f = strings.TrimSpace(f); f != "" {
			fields = append(fields, f)
		}
	}
	groups, err := h.registrations.Duplicates(r.Context(), project.ID, fields)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	if groups == nil {
		groups = []service.DuplicateGroup{}
	}
	WriteSuccess(w, groups, &Meta{Total: int64(len(groups))})
}

// GetRegistration handles GET /projects/{id}/registrations/{regId}.
func (h *Handler) GetRegistration(w http.ResponseWriter, r *http.Request) {
	project, ok := currentProject(w, r)
	if !ok {
		return
	}
	id, ok := parseIDParam(w, r, "regId", "registration")
	if !ok {
		return
	}
	reg, err := h.registrations.Get(r.Context(), project.ID, id)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	WriteSuccess(w, registrationResponse(reg), nil)
}

// UpdateRegistration handles PUT /projects/{id}/registrations/{regId}.
func (h *Handler) UpdateRegistration(w http.ResponseWriter, r *http.Request) {
	project, ok := currentProject(w, r)
	if !ok {
		return
	}
	id, ok := parseIDParam(w, r, "regId", "registration")
	if !ok {
		return
	}
	var in StatusRequest
	if !decodeJSON(w, r, &in) {
		return
	}
	reg, err := h.registrations.UpdateStatus(r.Context(), project.ID, id, in.Status)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	WriteSuccess(w, registrationResponse(reg), nil)
}

// DeleteRegistration handles DELETE /projects/{id}/registrations/{regId}.
func (h *Handler) DeleteRegistration(w http.ResponseWriter, r *http.Request) {
	project, ok := currentProject(w, r)
	if !ok {
		return
	}
	id, ok := parseIDParam(w, r, "regId", "registration")
	if !ok {
		return
	}
	if err := h.registrations.Delete(r.Context(), project.ID, id); err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	WriteNoContent(w)
}
