// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package api

import (
	"database/sql"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/olegiv/evsite-go/internal/model"
	"github.com/olegiv/evsite-go/internal/service"
)

func login(t *testing.T, env *testEnv, email, password string) *http.Response {
	t.Helper()
	rec := env.do(t, request{
		method: http.MethodPost,
		path:   "/auth/login",
		body:   LoginRequest{Email: email, Password: password},
	})
	return rec.Result()
}

func TestSignup(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, request{
		method: http.MethodPost,
		path:   "/auth/signup",
		body:   service.SignupInput{Email: "New@Example.com", Password: testPassword, Name: "Grace"},
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	account, _ := decodeData[service.Account](t, rec)
	assert.Equal(t, "new@example.com", account.User.Email)
	assert.Equal(t, "Grace", account.Profile.DisplayName)
	assert.Empty(t, account.Roles)
	assert.NotContains(t, rec.Body.String(), "password")

	cookies := rec.Result().Cookies()
	require.NotEmpty(t, cookies, "signup should start a session")
	rec = env.do(t, request{method: http.MethodGet, path: "/auth/me", cookies: cookies})
	require.Equal(t, http.StatusOK, rec.Code)
	me, _ := decodeData[IdentityResponse](t, rec)
	assert.Equal(t, "new@example.com", me.Email)
	assert.NotNil(t, me.Roles)
}

func TestSignup_Errors(t *testing.T) {
	env := newTestEnv(t)
	env.user(t, "taken@example.com")

	tests := []struct {
		name       string
		in         service.SignupInput
		wantStatus int
	}{
		{"duplicate email", service.SignupInput{Email: "TAKEN@example.com", Password: testPassword}, http.StatusConflict},
		{"invalid email", service.SignupInput{Email: "nope", Password: testPassword}, http.StatusUnprocessableEntity},
		{"weak password", service.SignupInput{Email: "weak@example.com", Password: "short"}, http.StatusUnprocessableEntity},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := env.do(t, request{method: http.MethodPost, path: "/auth/signup", body: tt.in})
			assert.Equal(t, tt.wantStatus, rec.Code, rec.Body.String())
		})
	}
}

func TestSignup_Disabled(t *testing.T) {
	env := newTestEnv(t, func(c *Config, db *sql.DB) {
		c.Users = service.NewUserService(service.Deps{DB: db, Logger: c.Logger}, c.Events, false)
	})

	rec := env.do(t, request{
		method: http.MethodPost,
		path:   "/auth/signup",
		body:   service.SignupInput{Email: "new@example.com", Password: testPassword},
	})
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, "forbidden", errorCode(t, rec))
}

func TestLogin(t *testing.T) {
	env := newTestEnv(t)
	u := env.user(t, "ada@example.com", model.AppRoleMNCAdmin)

	resp := login(t, env, "ADA@example.com", testPassword)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.NotEmpty(t, resp.Cookies())

	rec := env.do(t, request{
		method: http.MethodPost,
		path:   "/auth/login",
		body:   LoginRequest{Email: "ada@example.com", Password: testPassword},
	})
	out, _ := decodeData[LoginResponse](t, rec)
	assert.Equal(t, u.ID, out.User.ID)
	assert.Equal(t, []string{model.AppRoleMNCAdmin}, out.User.Roles)
	require.NotNil(t, out.Token)
	assert.Equal(t, "Bearer", out.Token.TokenType)

	rec = env.get(t, "/auth/me", out.Token.AccessToken)
	require.Equal(t, http.StatusOK, rec.Code)
	me, _ := decodeData[IdentityResponse](t, rec)
	assert.Equal(t, "ada@example.com", me.Email)
}

func TestLogin_InvalidCredentials(t *testing.T) {
	env := newTestEnv(t)
	env.user(t, "ada@example.com")

	for _, email := range []string{"ada@example.com", "ghost@example.com"} {
		rec := env.do(t, request{
			method: http.MethodPost,
			path:   "/auth/login",
			body:   LoginRequest{Email: email, Password: "Wrong-Password-123"},
		})
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.Equal(t, "invalid_credentials", errorCode(t, rec))
	}
}

func TestLogin_LocksAccount(t *testing.T) {
	env := newTestEnv(t)
	env.user(t, "ada@example.com")

	bad := LoginRequest{Email: "ada@example.com", Password: "Wrong-Password-123"}
	for i := 0; i < 4; i++ {
		rec := env.do(t, request{method: http.MethodPost, path: "/auth/login", body: bad})
		require.Equal(t, http.StatusUnauthorized, rec.Code)
	}

	rec := env.do(t, request{method: http.MethodPost, path: "/auth/login", body: bad})
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "account_locked", errorCode(t, rec))
	assert.NotEmpty(t, rec.Header().Get("Retry-After"))
}

func TestLogout(t *testing.T) {
	env := newTestEnv(t)
	env.user(t, "ada@example.com")

	resp := login(t, env, "ada@example.com", testPassword)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	cookies := resp.Cookies()

	rec := env.do(t, request{method: http.MethodPost, path: "/auth/logout", cookies: cookies})
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = env.do(t, request{method: http.MethodGet, path: "/auth/me", cookies: cookies})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestMe_RequiresAuth(t *testing.T) {
	env := newTestEnv(t)

	rec := env.get(t, "/auth/me", "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "unauthorized", errorCode(t, rec))

	rec = env.get(t, "/auth/me", "not-a-jwt")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "invalid_token", errorCode(t, rec))
}

func TestIssueToken(t *testing.T) {
	env := newTestEnv(t)
	u := env.user(t, "ada@example.com")

	rec := env.do(t, request{method: http.MethodPost, path: "/auth/token", token: env.token(t, u)})
	require.Equal(t, http.StatusOK, rec.Code)
	tok, _ := decodeData[TokenResponse](t, rec)
	assert.NotEmpty(t, tok.AccessToken)
	assert.Equal(t, http.StatusOK, env.get(t, "/auth/me", tok.AccessToken).Code)
}

func TestProfile(t *testing.T) {
	env := newTestEnv(t)
	u := env.user(t, "ada@example.com")
	tok := env.token(t, u)

	rec := env.get(t, "/profile", tok)
	require.Equal(t, http.StatusOK, rec.Code)
	account, _ := decodeData[service.Account](t, rec)
	assert.Equal(t, u.ID, account.User.ID)

	rec = env.do(t, request{
		method: http.MethodPut,
		path:   "/profile",
		token:  tok,
		body:   service.ProfileInput{Name: " Ada ", DisplayName: "Countess", Organization: "Analytical Engines"},
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	account, _ = decodeData[service.Account](t, rec)
	assert.Equal(t, "Ada", account.User.Name)
	assert.Equal(t, "Countess", account.Profile.DisplayName)
	assert.Equal(t, "Analytical Engines", account.Profile.Organization)
}

func TestChangePassword(t *testing.T) {
	env := newTestEnv(t)
	u := env.user(t, "ada@example.com")
	tok := env.token(t, u)
	const next = "Brand-New-Secret-42"

	tests := []struct {
		name       string
		in         ChangePasswordRequest
		wantStatus int
	}{
		{"wrong current password", ChangePasswordRequest{CurrentPassword: "nope", NewPassword: next}, http.StatusUnprocessableEntity},
		{"weak new password", ChangePasswordRequest{CurrentPassword: testPassword, NewPassword: "short"}, http.StatusUnprocessableEntity},
		{"success", ChangePasswordRequest{CurrentPassword: testPassword, NewPassword: next}, http.StatusNoContent},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := env.do(t, request{method: http.MethodPut, path: "/profile/password", token: tok, body: tt.in})
			assert.Equal(t, tt.wantStatus, rec.Code, rec.Body.String())
		})
	}

	assert.Equal(t, http.StatusUnauthorized, login(t, env, "ada@example.com", testPassword).StatusCode)
	assert.Equal(t, http.StatusOK, login(t, env, "ada@example.com", next).StatusCode)
}
