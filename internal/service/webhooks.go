// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package service

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/olegiv/evsite-go/internal/model"
	"github.com/olegiv/evsite-go/internal/store"
	"github.com/olegiv/evsite-go/internal/util"
)

// MaxWebhookNameLength bounds webhook names.
const MaxWebhookNameLength = 200

// WebhookInput creates or updates a webhook. A nil IsActive keeps the
// current state, or activates a new webhook.
type WebhookInput struct {
	Name     string            `json:"name"`
	URL      string            `json:"url"`
	Events   []string          `json:"events"`
	Headers  map[string]string `json:"headers"`
	IsActive *bool             `json:"is_active"`
}

// WebhookView is a webhook with decoded events and headers.
type WebhookView struct {
	store.Webhook
	Events  []string          `json:"events"`
	Headers map[string]string `json:"headers"`
}

// CreatedWebhook carries the secret, which is only shown once.
type CreatedWebhook struct {
	WebhookView
	Secret string `json:"secret"`
}

// TestSender delivers a test event to one webhook.
type TestSender interface {
	SendTest(ctx context.Context, wh store.Webhook) (store.WebhookDelivery, error)
}

// WebhookService manages a project's webhooks.
type WebhookService struct {
	base
	queries     *store.Queries
	tester      TestSender
	validateURL func(ctx context.Context, rawURL string) error
}

// NewWebhookService creates a webhook service. tester may be nil, which
// disables test deliveries.
func NewWebhookService(d Deps, tester TestSender) *WebhookService {
	return &WebhookService{
		base:        newBase(d),
		queries:     store.New(d.DB),
		tester:      tester,
		validateURL: util.ValidateWebhookURL,
	}
}

func (s *WebhookService) validate(ctx context.Context, in *WebhookInput) error {
	in.Name = strings.TrimSpace(in.Name)
	in.URL = strings.TrimSpace(in.URL)

	v := model.NewValidationError()
	if in.Name == "" {
		v.Add("name", "is required")
	} else if len(in.Name) > MaxWebhookNameLength {
		v.Add("name", fmt.Sprintf("must be at most %d characters", MaxWebhookNameLength))
	}
	if in.URL == "" {
		v.Add("url", "is required")
	} else if err := s.validateURL(ctx, in.URL); err != nil {
		v.Add("url", err.Error())
	}
	if len(in.Events) == 0 {
		v.Add("events", "select at least one event")
	}
	for _, e := range in.Events {
		if !model.IsValidWebhookEvent(e) {
			v.Add("events", fmt.Sprintf("unknown event %q", e))
		}
	}
	for k := range in.Headers {
		if k == "" || strings.ContainsAny(k, " :\r\n") || http.CanonicalHeaderKey(k) == "X-Webhook-Signature" {
			v.Add("headers", fmt.Sprintf("invalid header %q", k))
		}
	}
	return v.OrNil()
}

// List returns the project's webhooks.
func (s *WebhookService) List(ctx context.Context, projectID int64) ([]WebhookView, error) {
	hooks, err := s.queries.ListWebhooks(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("listing webhooks: %w", err)
	}
	out := make([]WebhookView, len(hooks))
	for i, wh := range hooks {
		out[i] = view(wh)
	}
	return out, nil
}

// Get returns a webhook of the project.
func (s *WebhookService) Get(ctx context.Context, projectID, id int64) (store.Webhook, error) {
	wh, err := s.queries.GetWebhook(ctx, id)
	if err != nil {
		return store.Webhook{}, notFound(err)
	}
	if wh.ProjectID != projectID {
		return store.Webhook{}, ErrNotFound
	}
	return wh, nil
}

// Create adds a webhook with a fresh signing secret.
func (s *WebhookService) Create(ctx context.Context, projectID, userID int64, in WebhookInput) (CreatedWebhook, error) {
	if err := s.validate(ctx, &in); err != nil {
		return CreatedWebhook{}, err
	}
	secret, err := model.GenerateWebhookSecret()
	if err != nil {
		return CreatedWebhook{}, fmt.Errorf("generating secret: %w", err)
	}
	active := true
	if in.IsActive != nil {
		active = *in.IsActive
	}

	now := s.now()
	wh, err := s.queries.CreateWebhook(ctx, store.CreateWebhookParams{
		ProjectID: projectID,
		Name:      in.Name,
		Url:       in.URL,
		Secret:    secret,
		Events:    model.EventsToJSON(in.Events),
		Headers:   model.HeadersToJSON(in.Headers),
		IsActive:  active,
		CreatedBy: util.NullInt64FromPositive(userID),
		CreatedAt: now,
		UpdatedAt: now,
	})
	if err != nil {
		return CreatedWebhook{}, fmt.Errorf("creating webhook: %w", err)
	}
	s.Logger.Info("webhook created", "project_id", projectID, "webhook_id", wh.ID, "user_id", userID)
	return CreatedWebhook{WebhookView: view(wh), Secret: secret}, nil
}

// Update changes a webhook. The secret is kept.
func (s *WebhookService) Update(ctx context.Context, projectID, id int64, in WebhookInput) (WebhookView, error) {
	wh, err := s.Get(ctx, projectID, id)
	if err != nil {
		return WebhookView{}, err
	}
	if err := s.validate(ctx, &in); err != nil {
		return WebhookView{}, err
	}
	active := wh.IsActive
	if in.IsActive != nil {
		active = *in.IsActive
	}
	updated, err := s.queries.UpdateWebhook(ctx, store.UpdateWebhookParams{
		Name:      in.Name,
		Url:       in.URL,
		Events:    model.EventsToJSON(in.Events),
		Headers:   model.HeadersToJSON(in.Headers),
		IsActive:  active,
		UpdatedAt: s.now(),
		ID:        id,
	})
	if err != nil {
		return WebhookView{}, fmt.Errorf("updating webhook: %w", err)
	}
	return view(updated), nil
}

// Delete removes a webhook and its deliveries.
func (s *WebhookService) Delete(ctx context.Context, projectID, id int64) error {
	if _, err := s.Get(ctx, projectID, id); err != nil {
		return err
	}
	if err := s.queries.DeleteWebhook(ctx, id); err != nil {
		return fmt.Errorf("deleting webhook: %w", err)
	}
	s.Logger.Info("webhook deleted", "project_id", projectID, "webhook_id", id)
	return nil
}

// Deliveries returns a page of a webhook's deliveries, newest first.
func (s *WebhookService) Deliveries(ctx context.Context, projectID, id int64, limit, offset int) ([]store.WebhookDelivery, int64, error) {
	if _, err := s.Get(ctx, projectID, id); err != nil {
		return nil, 0, err
	}
	l, o := clampPage(limit, offset)
	items, err := s.queries.ListWebhookDeliveries(ctx, store.ListWebhookDeliveriesParams{WebhookID: id, Limit: l, Offset: o})
	if err != nil {
		return nil, 0, fmt.Errorf("listing deliveries: %w", err)
	}
	total, err := s.queries.CountWebhookDeliveries(ctx, id)
	if err != nil {
		return nil, 0, fmt.Errorf("counting deliveries: %w", err)
	}
	return items, total, nil
}

// Test queues a webhook.test delivery, regardless of subscriptions.
func (s *WebhookService) Test(ctx context.Context, projectID, id int64) (store.WebhookDelivery, error) {
	wh, err := s.Get(ctx, projectID, id)
	if err != nil {
		return store.WebhookDelivery{}, err
	}
	if s.tester == nil {
		return store.WebhookDelivery{}, fmt.Errorf("webhook delivery is not configured")
	}
	return s.tester.SendTest(ctx, wh)
}

func view(wh store.Webhook) WebhookView {
	return WebhookView{
		Webhook: wh,
		Events:  model.ParseWebhookEvents(wh.Events),
		Headers: model.ParseWebhookHeaders(wh.Headers),
	}
}
