// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

// Package api provides the JSON API: public microsite endpoints per project
// slug, authentication, and the project back office.
package api

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/alexedwards/scs/v2"
	"github.com/go-chi/chi/v5"

	"github.com/olegiv/evsite-go/internal/auth"
	"github.com/olegiv/evsite-go/internal/imaging"
	"github.com/olegiv/evsite-go/internal/middleware"
	"github.com/olegiv/evsite-go/internal/model"
	"github.com/olegiv/evsite-go/internal/realtime"
	"github.com/olegiv/evsite-go/internal/sections"
	"github.com/olegiv/evsite-go/internal/service"
	"github.com/olegiv/evsite-go/internal/store"
)

// maxBodySize bounds JSON request bodies.
const maxBodySize = 1 << 20

// Config holds the dependencies of the API handlers. Sessions, Tokens, Login,
// CSRF and Hub are optional.
type Config struct {
	Projects      *service.ProjectService
	Settings      *service.SettingsService
	Registrations *service.RegistrationService
	Media         *service.MediaService
	Users         *service.UserService
	Webhooks      *service.WebhookService
	Events        *service.EventService

	Hub      *realtime.Hub
	Sessions *scs.SessionManager
	Tokens   *auth.TokenIssuer
	Login    *middleware.LoginProtection
	CSRF     func(http.Handler) http.Handler

	// RequestTimeout bounds every route except the change stream. Zero disables it.
	RequestTimeout time.Duration
	// Heartbeat is the change stream keep-alive interval.
	Heartbeat time.Duration
	Logger    *slog.Logger
}

// Handler holds shared dependencies for all API handlers.
type Handler struct {
	projects      *service.ProjectService
	settings      *service.SettingsService
	registrations *service.RegistrationService
	media         *service.MediaService
	users         *service.UserService
	webhooks      *service.WebhookService
	events        *service.EventService

	hub      *realtime.Hub
	sessions *scs.SessionManager
	tokens   *auth.TokenIssuer
	login    *middleware.LoginProtection
	csrf     func(http.Handler) http.Handler

	timeout   time.Duration
	heartbeat time.Duration
	logger    *slog.Logger
}

// DefaultHeartbeat is the change stream keep-alive interval.
const DefaultHeartbeat = 25 * time.Second

// NewHandler creates a new API handler.
func NewHandler(cfg Config) *Handler {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Heartbeat <= 0 {
		cfg.Heartbeat = DefaultHeartbeat
	}
	return &Handler{
		projects:      cfg.Projects,
		settings:      cfg.Settings,
		registrations: cfg.Registrations,
		media:         cfg.Media,
		users:         cfg.Users,
		webhooks:      cfg.Webhooks,
		events:        cfg.Events,
		hub:           cfg.Hub,
		sessions:      cfg.Sessions,
		tokens:        cfg.Tokens,
		login:         cfg.Login,
		csrf:          cfg.CSRF,
		timeout:       cfg.RequestTimeout,
		heartbeat:     cfg.Heartbeat,
		logger:        cfg.Logger,
	}
}

// Response is the standard API response wrapper.
type Response struct {
	Data any   `json:"data,omitempty"`
	Meta *Meta `json:"meta,omitempty"`
}

// Meta contains pagination metadata.
type Meta struct {
	Total   int64 `json:"total"`
	Page    int   `json:"page,omitempty"`
	PerPage int   `json:"per_page,omitempty"`
	Pages   int   `json:"pages"`
}

// ErrorResponse is the standard API error response.
type ErrorResponse = middleware.APIError

// WriteJSON writes a JSON response with the given status code.
func WriteJSON(w http.ResponseWriter, statusCode int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(data)
}

// WriteSuccess writes a successful JSON response.
func WriteSuccess(w http.ResponseWriter, data any, meta *Meta) {
	WriteJSON(w, http.StatusOK, Response{Data: data, Meta: meta})
}

// WriteCreated writes a 201 Created JSON response.
func WriteCreated(w http.ResponseWriter, data any) {
	WriteJSON(w, http.StatusCreated, Response{Data: data})
}

// WriteNoContent writes a 204 No Content response.
func WriteNoContent(w http.ResponseWriter) {
	w.WriteHeader(http.StatusNoContent)
}

// WriteError writes an error JSON response.
func WriteError(w http.ResponseWriter, statusCode int, code, message string, details map[string]string) {
	middleware.WriteAPIError(w, statusCode, code, message, details)
}

// WriteBadRequest writes a 400 Bad Request response.
func WriteBadRequest(w http.ResponseWriter, message string, details map[string]string) {
	WriteError(w, http.StatusBadRequest, "bad_request", message, details)
}

// WriteNotFound writes a 404 Not Found response.
func WriteNotFound(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusNotFound, "not_found", message, nil)
}

// WriteUnauthorized writes a 401 Unauthorized response.
func WriteUnauthorized(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusUnauthorized, "unauthorized", message, nil)
}

// WriteForbidden writes a 403 Forbidden response.
func WriteForbidden(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusForbidden, "forbidden", message, nil)
}

// WriteConflict writes a 409 Conflict response.
func WriteConflict(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusConflict, "conflict", message, nil)
}

// WriteInternalError writes a 500 Internal Server Error response.
func WriteInternalError(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusInternalServerError, "internal_error", message, nil)
}

// WriteValidationError writes a 422 Unprocessable Entity response with field errors.
func WriteValidationError(w http.ResponseWriter, fieldErrors map[string]string) {
	WriteError(w, http.StatusUnprocessableEntity, "validation_error", "Validation failed", fieldErrors)
}

// writeServiceError maps a service error to its status code. Unknown errors
// are logged and reported as internal errors without detail.
func (h *Handler) writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	var verr *model.ValidationError
	switch {
	case errors.As(err, &verr):
		WriteValidationError(w, verr.Fields)
	case errors.Is(err, service.ErrNotFound):
		WriteNotFound(w, "Not found")
	case errors.Is(err, service.ErrForbidden):
		WriteForbidden(w, "Access denied")
	case errors.Is(err, service.ErrInvalidCredentials):
		WriteError(w, http.StatusUnauthorized, "invalid_credentials", err.Error(), nil)
	case errors.Is(err, service.ErrSignupDisabled):
		WriteForbidden(w, err.Error())
	case errors.Is(err, service.ErrSlugTaken):
		WriteError(w, http.StatusConflict, "conflict", err.Error(), map[string]string{"slug": err.Error()})
	case errors.Is(err, service.ErrEmailTaken):
		WriteError(w, http.StatusConflict, "conflict", err.Error(), map[string]string{"email": err.Error()})
	case errors.Is(err, service.ErrAlreadyMember), errors.Is(err, service.ErrLastOwner):
		WriteConflict(w, err.Error())
	case errors.Is(err, service.ErrProjectInactive), errors.Is(err, service.ErrRegistrationClosed):
		WriteError(w, http.StatusForbidden, "registration_closed", err.Error(), nil)
	case errors.Is(err, service.ErrUnknownCategory):
		WriteNotFound(w, err.Error())
	case errors.Is(err, sections.ErrInvalidOrder):
		WriteValidationError(w, map[string]string{"order": err.Error()})
	case errors.Is(err, imaging.ErrUnsupportedFormat):
		WriteError(w, http.StatusUnsupportedMediaType, "unsupported_media_type", err.Error(), nil)
	case errors.Is(err, imaging.ErrTooLarge):
		WriteError(w, http.StatusRequestEntityTooLarge, "too_large", err.Error(), nil)
	default:
		h.logger.ErrorContext(r.Context(), "request failed",
			"method", r.Method,
			"path", r.URL.Path,
			"error", err,
		)
		WriteInternalError(w, "Internal server error")
	}
}

// decodeJSON reads a JSON body into v. It writes a 400 response and returns
// false when the body is missing or malformed.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodySize))
	if err := dec.Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			WriteBadRequest(w, "Request body is required", nil)
			return false
		}
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			WriteError(w, http.StatusRequestEntityTooLarge, "too_large", "Request body too large", nil)
			return false
		}
		WriteBadRequest(w, "Invalid JSON body", nil)
		return false
	}
	return true
}

// pagination is a parsed page/per_page query.
type pagination struct {
	Page    int
	PerPage int
}

func (p pagination) Offset() int {
	return (p.Page - 1) * p.PerPage
}

// Meta builds the response metadata for total rows.
func (p pagination) Meta(total int64) *Meta {
	pages := int(total) / p.PerPage
	if int(total)%p.PerPage != 0 {
		pages++
	}
	return &Meta{Total: total, Page: p.Page, PerPage: p.PerPage, Pages: pages}
}

// parsePagination reads page (from 1) and per_page (1..MaxPageSize).
// Invalid values fall back to the defaults.
func parsePagination(r *http.Request) pagination {
	p := pagination{Page: 1, PerPage: service.DefaultPageSize}
	q := r.URL.Query()
	if v, err := strconv.Atoi(q.Get("page")); err == nil && v > 0 {
		p.Page = v
	}
	if v, err := strconv.Atoi(q.Get("per_page")); err == nil && v > 0 && v <= service.MaxPageSize {
		p.PerPage = v
	}
	return p
}

// parseIDParam reads a positive int64 URL parameter. It writes a 400
// response and returns false when the value is invalid.
func parseIDParam(w http.ResponseWriter, r *http.Request, name, entity string) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	if err != nil || id <= 0 {
		WriteBadRequest(w, "Invalid "+entity+" ID", nil)
		return 0, false
	}
	return id, true
}

// currentProject returns the project loaded by the route's project middleware.
func currentProject(w http.ResponseWriter, r *http.Request) (store.Project, bool) {
	project, ok := middleware.GetProject(r)
	if !ok {
		WriteInternalError(w, "Project not loaded")
	}
	return project, ok
}
