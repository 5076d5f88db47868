// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package api

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/olegiv/evsite-go/internal/model"
	"github.com/olegiv/evsite-go/internal/service"
)

func TestWebhooks_CRUD(t *testing.T) {
	env := newTestEnv(t)
	f := newProjectFixture(t, env)
	tok := env.token(t, f.admin)

	rec := env.do(t, request{method: http.MethodPost, path: f.path("/webhooks"), token: tok, body: service.WebhookInput{
		Name:    "CRM",
		URL:     publicHookURL,
		Events:  []string{model.EventRegistrationCreated},
		Headers: map[string]string{"X-Api-Key": "k"},
	}})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	created, _ := decodeData[service.CreatedWebhook](t, rec)
	assert.NotEmpty(t, created.Secret)
	assert.Equal(t, []string{model.EventRegistrationCreated}, created.Events)
	hookPath := f.path("/webhooks/" + itoa(created.ID))

	rec = env.get(t, f.path("/webhooks"), tok)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.NotContains(t, rec.Body.String(), created.Secret)
	hooks, meta := decodeData[[]service.WebhookView](t, rec)
	require.Len(t, hooks, 1)
	assert.EqualValues(t, 1, meta.Total)

	rec = env.get(t, hookPath, tok)
	require.Equal(t, http.StatusOK, rec.Code)
	got, _ := decodeData[service.WebhookView](t, rec)
	assert.Equal(t, "CRM", got.Name)
	assert.Equal(t, "k", got.Headers["X-Api-Key"])

	inactive := false
	rec = env.do(t, request{method: http.MethodPut, path: hookPath, token: tok, body: service.WebhookInput{
		Name:     "CRM v2",
		URL:      publicHookURL,
		Events:   []string{model.EventRegistrationCreated, model.EventRegistrationCancelled},
		IsActive: &inactive,
	}})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	updated, _ := decodeData[service.WebhookView](t, rec)
	assert.Equal(t, "CRM v2", updated.Name)
	assert.False(t, updated.IsActive)
	assert.Len(t, updated.Events, 2)

	rec = env.get(t, hookPath+"/deliveries", tok)
	require.Equal(t, http.StatusOK, rec.Code)
	deliveries, _ := decodeData[[]DeliveryResponse](t, rec)
	assert.Empty(t, deliveries)

	rec = env.do(t, request{method: http.MethodDelete, path: hookPath, token: tok})
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, http.StatusNotFound, env.get(t, hookPath, tok).Code)
	assert.Equal(t, http.StatusNotFound, env.get(t, hookPath+"/deliveries", tok).Code)
}

func TestWebhooks_Validation(t *testing.T) {
	env := newTestEnv(t)
	f := newProjectFixture(t, env)
	tok := env.token(t, f.admin)

	tests := []struct {
		name      string
		in        service.WebhookInput
		wantField string
	}{
		{"private address", service.WebhookInput{Name: "x", URL: "https://127.0.0.1/hook", Events: []string{model.EventMediaUploaded}}, "url"},
		{"no events", service.WebhookInput{Name: "x", URL: publicHookURL}, "events"},
		{"unknown event", service.WebhookInput{Name: "x", URL: publicHookURL, Events: []string{"party.started"}}, "events"},
		{"missing name", service.WebhookInput{URL: publicHookURL, Events: []string{model.EventMediaUploaded}}, "name"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := env.do(t, request{method: http.MethodPost, path: f.path("/webhooks"), token: tok, body: tt.in})
			require.Equal(t, http.StatusUnprocessableEntity, rec.Code, rec.Body.String())
			var resp ErrorResponse
			require.NoError(t, jsonUnmarshal(rec, &resp))
			assert.Contains(t, resp.Error.Details, tt.wantField)
		})
	}
}

func TestWebhooks_Test(t *testing.T) {
	env := newTestEnv(t)
	f := newProjectFixture(t, env)
	tok := env.token(t, f.admin)

	rec := env.do(t, request{method: http.MethodPost, path: f.path("/webhooks"), token: tok, body: service.WebhookInput{
		Name:   "Ping",
		URL:    publicHookURL,
		Events: []string{model.EventSettingsUpdated},
	}})
	require.Equal(t, http.StatusCreated, rec.Code)
	created, _ := decodeData[service.CreatedWebhook](t, rec)

	rec = env.do(t, request{method: http.MethodPost, path: f.path("/webhooks/" + itoa(created.ID) + "/test"), token: tok})
	require.Equal(t, http.StatusAccepted, rec.Code, rec.Body.String())
	delivery, _ := decodeData[DeliveryResponse](t, rec)
	assert.Equal(t, model.EventWebhookTest, delivery.Event)
	assert.Equal(t, []int64{created.ID}, env.tester.calls)
}

func TestWebhooks_RequireAdmin(t *testing.T) {
	env := newTestEnv(t)
	f := newProjectFixture(t, env)

	rec := env.get(t, f.path("/webhooks"), env.token(t, f.editor))
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = env.do(t, request{method: http.MethodPost, path: f.path("/webhooks"), token: env.token(t, f.editor),
		body: service.WebhookInput{Name: "x", URL: publicHookURL, Events: []string{model.EventMediaUploaded}}})
	assert.Equal(t, http.StatusForbidden, rec.Code)
}
