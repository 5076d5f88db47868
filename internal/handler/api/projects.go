// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package api

import (
	"net/http"

	"github.com/olegiv/evsite-go/internal/middleware"
	"github.com/olegiv/evsite-go/internal/model"
	"github.com/olegiv/evsite-go/internal/service"
	"github.com/olegiv/evsite-go/internal/store"
)

// ProjectResponse is a project with the caller's effective role on it.
type ProjectResponse struct {
	store.Project
	Role string `json:"role,omitempty"`
}

// roleName maps an access level back to the project role it stands for.
func roleName(level int) string {
	for _, role := range []string{model.ProjectRoleOwner, model.ProjectRoleAdmin, model.ProjectRoleEditor, model.ProjectRoleViewer} {
		if level >= model.ProjectRoleLevel(role) {
			return role
		}
	}
	return ""
}

// ListProjects handles GET /projects: the projects the caller can see.
func (h *Handler) ListProjects(w http.ResponseWriter, r *http.Request) {
	p := parsePagination(r)
	projects, total, err := h.projects.ListForUser(r.Context(), middleware.GetIdentity(r), p.PerPage, p.Offset())
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	if projects == nil {
		projects = []store.Project{}
	}
	WriteSuccess(w, projects, p.Meta(total))
}

// CreateProject handles POST /projects. The creator becomes its owner.
func (h *Handler) CreateProject(w http.ResponseWriter, r *http.Request) {
	var in service.ProjectInput
	if !decodeJSON(w, r, &in) {
		return
	}
	project, err := h.projects.Create(r.Context(), middleware.GetIdentity(r), in)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	WriteCreated(w, ProjectResponse{Project: project, Role: model.ProjectRoleOwner})
}

// GetProject handles GET /projects/{id}.
func (h *Handler) GetProject(w http.ResponseWriter, r *http.Request) {
	project, ok := currentProject(w, r)
	if !ok {
		return
	}
	WriteSuccess(w, ProjectResponse{Project: project, Role: roleName(middleware.GetProjectLevel(r))}, nil)
}

// UpdateProject handles PUT /projects/{id}.
func (h *Handler) UpdateProject(w http.ResponseWriter, r *http.Request) {
	project, ok := currentProject(w, r)
	if !ok {
		return
	}
	var in service.ProjectInput
	if !decodeJSON(w, r, &in) {
		return
	}
	updated, err := h.projects.Update(r.Context(), middleware.GetIdentity(r), project.ID, in)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	WriteSuccess(w, ProjectResponse{Project: updated, Role: roleName(middleware.GetProjectLevel(r))}, nil)
}

// DeleteProject handles DELETE /projects/{id}.
func (h *Handler) DeleteProject(w http.ResponseWriter, r *http.Request) {
	project, ok := currentProject(w, r)
	if !ok {
		return
	}
	if err := h.projects.Delete(r.Context(), middleware.GetIdentity(r), project.ID); err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	WriteNoContent(w)
}

// MemberRequest adds a member or changes their role. Email is only read when adding.
type MemberRequest struct {
	Email string `json:"email"`
	Role  string `json:"role"`
}

// ListMembers handles GET /projects/{id}/members.
func (h *Handler) ListMembers(w http.ResponseWriter, r *http.Request) {
	project, ok := currentProject(w, r)
	if !ok {
		return
	}
	members, err := h.projects.Members(r.Context(), project.ID)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	if members == nil {
		members = []store.ListProjectMembersRow{}
	}
	WriteSuccess(w, members, nil)
}

// AddMember handles POST /projects/{id}/members. Nobody grants a role above
// their own.
func (h *Handler) AddMember(w http.ResponseWriter, r *http.Request) {
	project, ok := currentProject(w, r)
	if !ok {
		return
	}
	var in MemberRequest
	if !decodeJSON(w, r, &in) {
		return
	}
	member, err := h.projects.AddMember(r.Context(), middleware.GetProjectLevel(r), project.ID, in.Email, in.Role)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	WriteCreated(w, member)
}

// UpdateMember handles PUT /projects/{id}/members/{userId}.
func (h *Handler) UpdateMember(w http.ResponseWriter, r *http.Request) {
	project, ok := currentProject(w, r)
	if !ok {
		return
	}
	userID, ok := parseIDParam(w, r, "userId", "user")
	if !ok {
		return
	}
	var in MemberRequest
	if !decodeJSON(w, r, &in) {
		return
	}
	if err := h.projects.UpdateMemberRole(r.Context(), middleware.GetProjectLevel(r), project.ID, userID, in.Role); err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	WriteSuccess(w, map[string]any{"user_id": userID, "role": in.Role}, nil)
}

// RemoveMember handles DELETE /projects/{id}/members/{userId}. The last
// owner cannot be removed.
func (h *Handler) RemoveMember(w http.ResponseWriter, r *http.Request) {
	project, ok := currentProject(w, r)
	if !ok {
		return
	}
	userID, ok := parseIDParam(w, r, "userId", "user")
	if !ok {
		return
	}
	if err := h.projects.RemoveMember(r.Context(), middleware.GetProjectLevel(r), project.ID, userID); err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	WriteNoContent(w)
}
