// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package api

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/olegiv/evsite-go/internal/auth"
	"github.com/olegiv/evsite-go/internal/imaging"
	"github.com/olegiv/evsite-go/internal/middleware"
	"github.com/olegiv/evsite-go/internal/realtime"
	"github.com/olegiv/evsite-go/internal/service"
	"github.com/olegiv/evsite-go/internal/session"
	"github.com/olegiv/evsite-go/internal/store"
	"github.com/olegiv/evsite-go/internal/testutil"
)

const testPassword = "Correct-Horse-Battery-9"

// publicHookURL passes webhook URL validation without a DNS lookup.
const publicHookURL = "https://93.184.216.34/hook"

type fakeTester struct {
	mu    sync.Mutex
	calls []int64
}

func (f *fakeTester) SendTest(_ context.Context, wh store.Webhook) (store.WebhookDelivery, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, wh.ID)
	return store.WebhookDelivery{ID: 1, WebhookID: wh.ID, Event: "webhook.test", Status: "pending"}, nil
}

type testEnv struct {
	db      *sql.DB
	hub     *realtime.Hub
	tokens  *auth.TokenIssuer
	tester  *fakeTester
	handler *Handler
	router  http.Handler
}

type envOption func(c *Config, db *sql.DB)

func newTestEnv(t *testing.T, opts ...envOption) *testEnv {
	t.Helper()
	db := testutil.TestDB(t)
	logger := testutil.DiscardLogger()

	hub := realtime.NewHub(realtime.DefaultBuffer)
	t.Cleanup(hub.Close)

	deps := service.Deps{DB: db, Realtime: hub, Logger: logger}
	events := service.NewEventService(db, logger)
	processor := imaging.NewProcessor(t.TempDir())
	settings := service.NewSettingsService(deps)
	tester := &fakeTester{}

	login := middleware.NewLoginProtection(middleware.DefaultLoginProtectionConfig())
	t.Cleanup(login.Close)

	tokens := auth.NewTokenIssuer([]byte("0123456789abcdef0123456789abcdef"), time.Hour)
	cfg := Config{
		Projects:      service.NewProjectService(deps, events, processor),
		Settings:      settings,
		Registrations: service.NewRegistrationService(deps, settings, "https://events.example.com"),
		Media:         service.NewMediaService(deps, processor),
		Users:         service.NewUserService(deps, events, true),
		Webhooks:      service.NewWebhookService(deps, tester),
		Events:        events,
		Hub:           hub,
		Sessions:      session.New(db, true),
		Tokens:        tokens,
		Login:         login,
		Heartbeat:     50 * time.Millisecond,
		Logger:        logger,
	}
	for _, opt := range opts {
		opt(&cfg, db)
	}

	h := NewHandler(cfg)
	return &testEnv{db: db, hub: hub, tokens: tokens, tester: tester, handler: h, router: h.Routes()}
}

// user creates a user whose password is testPassword.
func (e *testEnv) user(t *testing.T, email string, roles ...string) store.User {
	t.Helper()
	u := testutil.CreateUser(t, e.db, email, roles...)
	hash, err := auth.HashPassword(testPassword)
	require.NoError(t, err)
	require.NoError(t, store.New(e.db).UpdateUserPassword(context.Background(), store.UpdateUserPasswordParams{
		PasswordHash: hash,
		UpdatedAt:    time.Now().UTC(),
		ID:           u.ID,
	}))
	return u
}

func (e *testEnv) token(t *testing.T, u store.User) string {
	t.Helper()
	tok, _, err := e.tokens.Issue(u.ID, u.Email, nil)
	require.NoError(t, err)
	return tok
}

// request describes one API call. Body is encoded as JSON unless it is an io.Reader.
type request struct {
	method  string
	path    string
	body    any
	token   string
	cookies []*http.Cookie
	header  http.Header
}

func (e *testEnv) do(t *testing.T, req request) *httptest.ResponseRecorder {
	t.Helper()
	var body io.Reader
	switch b := req.body.(type) {
	case nil:
	case io.Reader:
		body = b
	default:
		data, err := json.Marshal(b)
		require.NoError(t, err)
		body = bytes.NewReader(data)
	}

	r := httptest.NewRequest(req.method, req.path, body)
	if req.body != nil && req.header.Get("Content-Type") == "" {
		r.Header.Set("Content-Type", "application/json")
	}
	for k, v := range req.header {
		r.Header[k] = v
	}
	if req.token != "" {
		r.Header.Set("Authorization", "Bearer "+req.token)
	}
	for _, c := range req.cookies {
		r.AddCookie(c)
	}

	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, r)
	return rec
}

func (e *testEnv) get(t *testing.T, path, token string) *httptest.ResponseRecorder {
	t.Helper()
	return e.do(t, request{method: http.MethodGet, path: path, token: token})
}

// decodeData unmarshals the data member of a success response.
func decodeData[T any](t *testing.T, rec *httptest.ResponseRecorder) (T, *Meta) {
	t.Helper()
	var resp struct {
		Data T     `json:"data"`
		Meta *Meta `json:"meta"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp), rec.Body.String())
	return resp.Data, resp.Meta
}

// errorCode returns the code of an error response.
func errorCode(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp), rec.Body.String())
	return resp.Error.Code
}

func jsonUnmarshal(rec *httptest.ResponseRecorder, v any) error {
	return json.Unmarshal(rec.Body.Bytes(), v)
}

func itoa(id int64) string {
	return strconv.FormatInt(id, 10)
}
