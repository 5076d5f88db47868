// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package middleware

import (
	"log/slog"
	"net/http"
	"net/url"

	"filippo.io/csrf/gorilla"
	"github.com/go-chi/cors"
)

// CSRFConfig holds configuration for CSRF protection.
// filippo.io/csrf/gorilla checks Fetch metadata headers instead of tokens in
// cookies, so there are no cookie options.
type CSRFConfig struct {
	// AuthKey is a 32-byte key; the session secret is used.
	AuthKey []byte

	// ErrorHandler is called when CSRF validation fails.
	ErrorHandler http.Handler

	// TrustedOrigins are host[:port] values allowed to send cross-origin
	// mutations with the session cookie.
	TrustedOrigins []string
}

// DefaultCSRFConfig returns a CSRFConfig trusting the SPA origins, given as
// full URLs the way CORS takes them.
func DefaultCSRFConfig(authKey []byte, corsOrigins []string) CSRFConfig {
	return CSRFConfig{
		AuthKey:        authKey,
		TrustedOrigins: originHosts(corsOrigins),
	}
}

// originHosts converts origins such as "https://app.example.com" into the
// host-only form the csrf package expects. Wildcards are skipped.
func originHosts(origins []string) []string {
	var hosts []string
	for _, o := range origins {
		u, err := url.Parse(o)
		if err != nil || u.Host == "" || u.Host == "*" {
			continue
		}
		hosts = append(hosts, u.Host)
	}
	return hosts
}

// CSRF returns a middleware that provides CSRF protection for cookie
// authenticated requests. Requests carrying a bearer token skip the check:
// browsers never attach those automatically.
func CSRF(cfg CSRFConfig) func(http.Handler) http.Handler {
	opts := []csrf.Option{csrf.ErrorHandler(http.HandlerFunc(csrfErrorHandler))}
	if cfg.ErrorHandler != nil {
		opts[0] = csrf.ErrorHandler(cfg.ErrorHandler)
	}
	if len(cfg.TrustedOrigins) > 0 {
		opts = append(opts, csrf.TrustedOrigins(cfg.TrustedOrigins))
	}
	protect := csrf.Protect(cfg.AuthKey, opts...)

	return func(next http.Handler) http.Handler {
		protected := protect(next)
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if _, ok := bearerToken(r); ok {
				r = csrf.UnsafeSkipCheck(r)
			}
			protected.ServeHTTP(w, r)
		})
	}
}

// csrfErrorHandler handles CSRF validation failures.
func csrfErrorHandler(w http.ResponseWriter, r *http.Request) {
	reasonStr := "unknown"
	if reason := csrf.FailureReason(r); reason != nil {
		reasonStr = reason.Error()
	}
	slog.Warn("CSRF validation failed",
		"category", "security",
		"reason", reasonStr,
		"method", r.Method,
		"path", r.URL.Path,
		"origin", r.Header.Get("Origin"),
		"sec_fetch_site", r.Header.Get("Sec-Fetch-Site"),
	)
	WriteAPIError(w, http.StatusForbidden, "csrf_failed", "cross-site request rejected", nil)
}

// CORS allows the SPA origins to call the API with credentials.
// An empty origin list disables cross-origin access.
func CORS(origins []string) func(http.Handler) http.Handler {
	return cors.Handler(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Content-Disposition", "X-Total-Count"},
		AllowCredentials: true,
		MaxAge:           300,
	})
}
