// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package api

import (
	"net/http"

	"github.com/olegiv/evsite-go/internal/middleware"
	"github.com/olegiv/evsite-go/internal/service"
	"github.com/olegiv/evsite-go/internal/store"
)

// RolesRequest is the body of PUT /admin/users/{userId}/roles.
type RolesRequest struct {
	Roles []string `json:"roles"`
}

// EventResponse is an audit log entry.
type EventResponse struct {
	store.Event
	UserID    *int64 `json:"user_id,omitempty"`
	ProjectID *int64 `json:"project_id,omitempty"`
}

func eventResponse(e store.Event) EventResponse {
	resp := EventResponse{Event: e}
	if e.UserID.Valid {
		id := e.UserID.Int64
		resp.UserID = &id
	}
	if e.ProjectID.Valid {
		id := e.ProjectID.Int64
		resp.ProjectID = &id
	}
	return resp
}

// ListUsers handles GET /admin/users.
func (h *Handler) ListUsers(w http.ResponseWriter, r *http.Request) {
	p := parsePagination(r)
	users, total, err := h.users.List(r.Context(), p.PerPage, p.Offset())
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	WriteSuccess(w, users, p.Meta(total))
}

// SetUserRoles handles PUT /admin/users/{userId}/roles. The list replaces
// the user's app roles.
func (h *Handler) SetUserRoles(w http.ResponseWriter, r *http.Request) {
	userID, ok := parseIDParam(w, r, "userId", "user")
	if !ok {
		return
	}
	var in RolesRequest
	if !decodeJSON(w, r, &in) {
		return
	}
	roles, err := h.users.SetRoles(r.Context(), middleware.GetIdentity(r), userID, in.Roles)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	WriteSuccess(w, map[string]any{"user_id": userID, "roles": roles}, nil)
}

// ListEvents handles GET /admin/events with optional level and category filters.
func (h *Handler) ListEvents(w http.ResponseWriter, r *http.Request) {
	p := parsePagination(r)
	q := r.URL.Query()
	events, total, err := h.events.List(r.Context(), service.EventFilter{
		Level:    q.Get("level"),
		Category: q.Get("category"),
		Limit:    p.PerPage,
		Offset:   p.Offset(),
	})
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	out := make([]EventResponse, len(events))
	for i, e := range events {
		out[i] = eventResponse(e)
	}
	WriteSuccess(w, out, p.Meta(total))
}
