// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package api

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/olegiv/evsite-go/internal/middleware"
	"github.com/olegiv/evsite-go/internal/model"
	"github.com/olegiv/evsite-go/internal/service"
	"github.com/olegiv/evsite-go/internal/session"
)

// LoginRequest is the body of POST /auth/login.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// TokenResponse carries a bearer token.
type TokenResponse struct {
	AccessToken string    `json:"access_token"`
	TokenType   string    `json:"token_type"`
	ExpiresAt   time.Time `json:"expires_at"`
}

// LoginResponse is returned by a successful login. Token is set when bearer
// tokens are enabled.
type LoginResponse struct {
	User  IdentityResponse `json:"user"`
	Token *TokenResponse   `json:"token,omitempty"`
}

// IdentityResponse is the signed-in user.
type IdentityResponse struct {
	ID    int64    `json:"id"`
	Email string   `json:"email"`
	Name  string   `json:"name"`
	Roles []string `json:"roles"`
}

func identityResponse(id *model.Identity) IdentityResponse {
	roles := id.Roles
	if roles == nil {
		roles = []string{}
	}
	return IdentityResponse{ID: id.UserID, Email: id.Email, Name: id.Name, Roles: roles}
}

// Signup handles POST /auth/signup. The new user is signed in.
func (h *Handler) Signup(w http.ResponseWriter, r *http.Request) {
	var in service.SignupInput
	if !decodeJSON(w, r, &in) {
		return
	}
	user, err := h.users.Signup(r.Context(), in)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	if h.sessions != nil {
		if err := session.Login(r.Context(), h.sessions, user.ID, user.Email); err != nil {
			h.writeServiceError(w, r, err)
			return
		}
	}
	account, err := h.users.Account(r.Context(), user.ID)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	WriteCreated(w, account)
}

// Login handles POST /auth/login. Repeated failures lock the account for a
// while; locked accounts get 429 with Retry-After.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var in LoginRequest
	if !decodeJSON(w, r, &in) {
		return
	}
	ip := middleware.ClientIP(r)

	if h.login != nil {
		if locked, remaining := h.login.IsAccountLocked(in.Email); locked {
			writeLocked(w, remaining)
			return
		}
	}

	identity, err := h.users.Authenticate(r.Context(), in.Email, in.Password)
	if errors.Is(err, service.ErrInvalidCredentials) {
		slog.WarnContext(r.Context(), "failed login attempt",
			"category", model.EventCategoryAuth,
			"email", in.Email,
			"ip", ip,
		)
		if h.login != nil {
			if locked, remaining := h.login.RecordFailedAttempt(in.Email); locked {
				slog.WarnContext(r.Context(), "account locked",
					"category", model.EventCategorySecurity,
					"email", in.Email,
					"ip", ip,
				)
				writeLocked(w, remaining)
				return
			}
		}
		h.writeServiceError(w, r, err)
		return
	}
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	if h.login != nil {
		h.login.RecordSuccessfulLogin(in.Email)
	}
	if h.sessions != nil {
		if err := session.Login(r.Context(), h.sessions, identity.UserID, identity.Email); err != nil {
			h.writeServiceError(w, r, err)
			return
		}
	}
	if h.events != nil {
		_ = h.events.LogInfo(r.Context(), model.EventCategoryAuth, "User logged in", identity.UserID, ip, nil)
	}

	resp := LoginResponse{User: identityResponse(identity)}
	if h.tokens != nil {
		token, err := h.issueToken(identity)
		if err != nil {
			h.writeServiceError(w, r, err)
			return
		}
		resp.Token = &token
	}
	WriteSuccess(w, resp, nil)
}

func writeLocked(w http.ResponseWriter, remaining time.Duration) {
	secs := int(remaining.Seconds())
	if secs < 1 {
		secs = 1
	}
	w.Header().Set("Retry-After", strconv.Itoa(secs))
	WriteError(w, http.StatusTooManyRequests, "account_locked",
		"too many failed attempts, try again later", nil)
}

func (h *Handler) issueToken(identity *model.Identity) (TokenResponse, error) {
	token, expires, err := h.tokens.Issue(identity.UserID, identity.Email, identity.Roles)
	if err != nil {
		return TokenResponse{}, err
	}
	return TokenResponse{AccessToken: token, TokenType: "Bearer", ExpiresAt: expires}, nil
}

// Logout handles POST /auth/logout. Bearer tokens expire on their own.
func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	if h.sessions != nil {
		if err := session.Logout(r.Context(), h.sessions); err != nil {
			h.writeServiceError(w, r, err)
			return
		}
	}
	WriteNoContent(w)
}

// Me handles GET /auth/me.
func (h *Handler) Me(w http.ResponseWriter, r *http.Request) {
	WriteSuccess(w, identityResponse(middleware.GetIdentity(r)), nil)
}

// IssueToken handles POST /auth/token: a fresh bearer token for the caller.
func (h *Handler) IssueToken(w http.ResponseWriter, r *http.Request) {
	if h.tokens == nil {
		WriteNotFound(w, "Bearer tokens are disabled")
		return
	}
	token, err := h.issueToken(middleware.GetIdentity(r))
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	WriteSuccess(w, token, nil)
}

// GetProfile handles GET /profile.
func (h *Handler) GetProfile(w http.ResponseWriter, r *http.Request) {
	account, err := h.users.Account(r.Context(), middleware.GetUserID(r))
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	WriteSuccess(w, account, nil)
}

// UpdateProfile handles PUT /profile.
func (h *Handler) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	var in service.ProfileInput
	if !decodeJSON(w, r, &in) {
		return
	}
	account, err := h.users.UpdateProfile(r.Context(), middleware.GetUserID(r), in)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	WriteSuccess(w, account, nil)
}

// ChangePasswordRequest is the body of PUT /profile/password.
type ChangePasswordRequest struct {
	CurrentPassword string `json:"current_password"`
	NewPassword     string `json:"new_password"`
}

// ChangePassword handles PUT /profile/password.
func (h *Handler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	var in ChangePasswordRequest
	if !decodeJSON(w, r, &in) {
		return
	}
	err := h.users.ChangePassword(r.Context(), middleware.GetUserID(r), in.CurrentPassword, in.NewPassword)
	if errors.Is(err, service.ErrInvalidCredentials) {
		WriteValidationError(w, map[string]string{"current_password": "is incorrect"})
		return
	}
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	if h.sessions != nil {
		if err := h.sessions.RenewToken(r.Context()); err != nil {
			h.writeServiceError(w, r, err)
			return
		}
	}
	WriteNoContent(w)
}
