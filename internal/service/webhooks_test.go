// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package service

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/olegiv/evsite-go/internal/model"
	"github.com/olegiv/evsite-go/internal/store"
	"github.com/olegiv/evsite-go/internal/testutil"
)

type fakeTester struct {
	sent []int64
}

func (f *fakeTester) SendTest(_ context.Context, wh store.Webhook) (store.WebhookDelivery, error) {
	f.sent = append(f.sent, wh.ID)
	return store.WebhookDelivery{WebhookID: wh.ID, Event: model.EventWebhookTest}, nil
}

func newWebhookService(t *testing.T) (*WebhookService, *fakeTester, store.Project) {
	t.Helper()
	env := newTestEnv(t)
	tester := &fakeTester{}
	svc := NewWebhookService(env.deps, tester)
	svc.validateURL = func(_ context.Context, raw string) error {
		if raw == "http://10.0.0.1/hook" {
			return errors.New("private or reserved IP addresses are not allowed")
		}
		return nil
	}
	owner := testutil.CreateUser(t, env.deps.DB, "")
	return svc, tester, testutil.CreateProject(t, env.deps.DB, "hooks", owner.ID)
}

func TestWebhookService_CRUD(t *testing.T) {
	svc, tester, p := newWebhookService(t)
	ctx := context.Background()

	created, err := svc.Create(ctx, p.ID, 0, WebhookInput{
		Name:    "CRM",
		URL:     "https://crm.example.com/hook",
		Events:  []string{model.EventRegistrationCreated},
		Headers: map[string]string{"X-Token": "abc"},
	})
	require.NoError(t, err)
	assert.Len(t, created.Secret, 64)
	assert.True(t, created.IsActive)
	assert.Equal(t, []string{model.EventRegistrationCreated}, created.Events)

	off := false
	updated, err := svc.Update(ctx, p.ID, created.ID, WebhookInput{
		Name:     "CRM v2",
		URL:      "https://crm.example.com/v2",
		Events:   []string{model.EventRegistrationCreated, model.EventRegistrationCancelled},
		IsActive: &off,
	})
	require.NoError(t, err)
	assert.False(t, updated.IsActive)
	assert.Len(t, updated.Events, 2)
	assert.Empty(t, updated.Headers)

	list, err := svc.List(ctx, p.ID)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "CRM v2", list[0].Name)

	_, err = svc.Test(ctx, p.ID, created.ID)
	require.NoError(t, err)
	assert.Equal(t, []int64{created.ID}, tester.sent)

	_, total, err := svc.Deliveries(ctx, p.ID, created.ID, 0, 0)
	require.NoError(t, err)
	assert.Zero(t, total)

	_, err = svc.Test(ctx, p.ID+100, created.ID)
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, svc.Delete(ctx, p.ID, created.ID))
	_, err = svc.Get(ctx, p.ID, created.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestWebhookService_Validation(t *testing.T) {
	svc, _, p := newWebhookService(t)

	tests := []struct {
		name  string
		in    WebhookInput
		field string
	}{
		{"missing name", WebhookInput{URL: "https://a.example.com", Events: []string{model.EventMediaUploaded}}, "name"},
		{"private url", WebhookInput{Name: "x", URL: "http://10.0.0.1/hook", Events: []string{model.EventMediaUploaded}}, "url"},
		{"no events", WebhookInput{Name: "x", URL: "https://a.example.com"}, "events"},
		{"unknown event", WebhookInput{Name: "x", URL: "https://a.example.com", Events: []string{"page.viewed"}}, "events"},
		{"reserved header", WebhookInput{Name: "x", URL: "https://a.example.com", Events: []string{model.EventMediaUploaded},
			Headers: map[string]string{"x-webhook-signature": "forged"}}, "headers"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Create(context.Background(), p.ID, 0, tt.in)
			assert.Contains(t, fieldErrors(t, err), tt.field)
		})
	}
}
