// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package middleware

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/olegiv/evsite-go/internal/model"
	"github.com/olegiv/evsite-go/internal/service"
	"github.com/olegiv/evsite-go/internal/store"
)

// ProjectResolver loads projects and resolves access levels.
// *service.ProjectService implements it.
type ProjectResolver interface {
	Get(ctx context.Context, id int64) (store.Project, error)
	GetActiveBySlug(ctx context.Context, slug string) (store.Project, error)
	Access(ctx context.Context, actor *model.Identity, projectID int64) (int, error)
}

// URL parameters read by the project loaders.
const (
	ParamProjectID   = "id"
	ParamProjectSlug = "slug"
)

// ProjectFromID loads the project named by the {id} URL parameter.
func ProjectFromID(projects ProjectResolver) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id, err := strconv.ParseInt(chi.URLParam(r, ParamProjectID), 10, 64)
			if err != nil || id <= 0 {
				WriteAPIError(w, http.StatusBadRequest, "invalid_id", "invalid project id", nil)
				return
			}
			project, err := projects.Get(r.Context(), id)
			serveProject(w, r, next, project, err)
		})
	}
}

// ProjectFromSlug loads the active project named by the {slug} URL parameter.
// Inactive projects are reported as not found.
func ProjectFromSlug(projects ProjectResolver) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			project, err := projects.GetActiveBySlug(r.Context(), chi.URLParam(r, ParamProjectSlug))
			serveProject(w, r, next, project, err)
		})
	}
}

func serveProject(w http.ResponseWriter, r *http.Request, next http.Handler, project store.Project, err error) {
	if errors.Is(err, service.ErrNotFound) {
		WriteAPIError(w, http.StatusNotFound, "not_found", "project not found", nil)
		return
	}
	if err != nil {
		slog.Error("failed to load project", "error", err)
		WriteAPIError(w, http.StatusInternalServerError, "internal_error", "internal server error", nil)
		return
	}
	ctx := context.WithValue(r.Context(), ContextKeyProject, project)
	next.ServeHTTP(w, r.WithContext(ctx))
}

// GetProject retrieves the project loaded by ProjectFromID or ProjectFromSlug.
func GetProject(r *http.Request) (store.Project, bool) {
	project, ok := r.Context().Value(ContextKeyProject).(store.Project)
	return project, ok
}

// GetProjectLevel returns the caller's role level on the current project, as
// resolved by RequireProjectRole.
func GetProjectLevel(r *http.Request) int {
	level, _ := r.Context().Value(ContextKeyProjectLevel).(int)
	return level
}

// RequireProjectRole requires at least minRole on the project in context.
// Callers without any access get 404 so project ids are not disclosed;
// members below minRole get 403. Must run after ProjectFromID.
func RequireProjectRole(projects ProjectResolver, minRole string) func(http.Handler) http.Handler {
	minLevel := model.ProjectRoleLevel(minRole)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			identity := GetIdentity(r)
			if identity == nil {
				WriteAPIError(w, http.StatusUnauthorized, "unauthorized", "login required", nil)
				return
			}
			project, ok := GetProject(r)
			if !ok {
				slog.Error("RequireProjectRole used without a project loader", "path", r.URL.Path)
				WriteAPIError(w, http.StatusInternalServerError, "internal_error", "internal server error", nil)
				return
			}

			level, err := projects.Access(r.Context(), identity, project.ID)
			if err != nil {
				slog.Error("failed to resolve project access", "project_id", project.ID, "error", err)
				WriteAPIError(w, http.StatusInternalServerError, "internal_error", "internal server error", nil)
				return
			}
			if level == 0 {
				WriteAPIError(w, http.StatusNotFound, "not_found", "project not found", nil)
				return
			}
			if level < minLevel {
				slog.WarnContext(r.Context(), "access denied",
					"category", model.EventCategorySecurity,
					"status", http.StatusForbidden,
					"method", r.Method,
					"user_id", identity.UserID,
					"project_id", project.ID,
					"required_role", minRole,
				)
				WriteAPIError(w, http.StatusForbidden, "forbidden", "access denied", nil)
				return
			}

			ctx := context.WithValue(r.Context(), ContextKeyProjectLevel, level)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
