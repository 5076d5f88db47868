// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package middleware

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/alexedwards/scs/v2"

	"github.com/olegiv/evsite-go/internal/auth"
	"github.com/olegiv/evsite-go/internal/model"
	"github.com/olegiv/evsite-go/internal/service"
	"github.com/olegiv/evsite-go/internal/session"
)

// IdentityLoader resolves a user id into an identity with app roles.
// *service.UserService implements it.
type IdentityLoader interface {
	Identity(ctx context.Context, userID int64) (*model.Identity, error)
}

// bearerToken returns the token of an "Authorization: Bearer" header.
func bearerToken(r *http.Request) (string, bool) {
	header := r.Header.Get("Authorization")
	if header == "" {
		return "", false
	}
	scheme, token, ok := strings.Cut(header, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	return strings.TrimSpace(token), true
}

// Authenticate loads the caller's identity into the request context. A bearer
// token takes precedence over the session cookie. An invalid bearer token is
// rejected with 401; a session pointing at a deleted user is destroyed and the
// request continues anonymously. sm may be nil for token-only setups.
func Authenticate(sm *scs.SessionManager, tokens *auth.TokenIssuer, users IdentityLoader) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			var userID int64
			fromToken := false

			if raw, ok := bearerToken(r); ok {
				if tokens == nil {
					WriteAPIError(w, http.StatusUnauthorized, "invalid_token", "bearer tokens are not accepted", nil)
					return
				}
				claims, err := tokens.Parse(raw)
				if err != nil {
					WriteAPIError(w, http.StatusUnauthorized, "invalid_token", "invalid or expired token", nil)
					return
				}
				userID, _ = claims.UserID()
				fromToken = true
			} else if sm != nil {
				userID = session.UserID(r.Context(), sm)
			}

			if userID == 0 {
				next.ServeHTTP(w, r)
				return
			}

			identity, err := users.Identity(r.Context(), userID)
			switch {
			case errors.Is(err, service.ErrNotFound):
				if fromToken {
					WriteAPIError(w, http.StatusUnauthorized, "invalid_token", "invalid or expired token", nil)
					return
				}
				_ = session.Logout(r.Context(), sm)
				next.ServeHTTP(w, r)
				return
			case err != nil:
				slog.Error("failed to load identity", "user_id", userID, "error", err)
				WriteAPIError(w, http.StatusInternalServerError, "internal_error", "internal server error", nil)
				return
			}

			ctx := context.WithValue(r.Context(), ContextKeyIdentity, identity)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// GetIdentity retrieves the authenticated identity from the request context.
// Returns nil for anonymous requests.
func GetIdentity(r *http.Request) *model.Identity {
	identity, _ := r.Context().Value(ContextKeyIdentity).(*model.Identity)
	return identity
}

// GetUserID returns the current user's ID from context, or 0 if not found.
func GetUserID(r *http.Request) int64 {
	if identity := GetIdentity(r); identity != nil {
		return identity.UserID
	}
	return 0
}

// RequireAuth rejects anonymous requests with 401.
func RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if GetIdentity(r) == nil {
			WriteAPIError(w, http.StatusUnauthorized, "unauthorized", "login required", nil)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// RequireAppRole creates middleware that requires any of the given app roles.
// Denials are logged as security events.
func RequireAppRole(roles ...string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			identity := GetIdentity(r)
			if identity == nil {
				WriteAPIError(w, http.StatusUnauthorized, "unauthorized", "login required", nil)
				return
			}

			for _, role := range roles {
				if identity.HasRole(role) {
					next.ServeHTTP(w, r)
					return
				}
			}

			slog.WarnContext(r.Context(), "access denied",
				"category", model.EventCategorySecurity,
				"status", http.StatusForbidden,
				"method", r.Method,
				"user_id", identity.UserID,
				"required_roles", strings.Join(roles, ","),
				"ip", ClientIP(r),
			)
			WriteAPIError(w, http.StatusForbidden, "forbidden", "access denied", nil)
		})
	}
}
