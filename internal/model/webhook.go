// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package model

import (
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"slices"
)

// Webhook event types
const (
	EventRegistrationCreated   = "registration.created"
	EventRegistrationCancelled = "registration.cancelled"
	EventRegistrationDeleted   = "registration.deleted"
	EventSettingsUpdated       = "settings.updated"
	EventProjectUpdated        = "project.updated"
	EventMediaUploaded         = "media.uploaded"
	EventMediaDeleted          = "media.deleted"
	EventWebhookTest           = "webhook.test"
)

// Webhook delivery statuses
const (
	DeliveryStatusPending   = "pending"
	DeliveryStatusDelivered = "delivered"
	DeliveryStatusDead      = "dead"
)

// WebhookEventInfo contains event type and description.
type WebhookEventInfo struct {
	Type        string `json:"type"`
	Description string `json:"description"`
}

// AllWebhookEvents returns all subscribable webhook event types with descriptions.
func AllWebhookEvents() []WebhookEventInfo {
	return []WebhookEventInfo{
		{EventRegistrationCreated, "When an attendee registers"},
		{EventRegistrationCancelled, "When a registration is cancelled"},
		{EventRegistrationDeleted, "When a registration is deleted"},
		{EventSettingsUpdated, "When a page's settings are saved"},
		{EventProjectUpdated, "When project details change"},
		{EventMediaUploaded, "When an image is uploaded"},
		{EventMediaDeleted, "When an image is deleted"},
	}
}

// IsValidWebhookEvent reports whether event can be subscribed to.
func IsValidWebhookEvent(event string) bool {
	return slices.ContainsFunc(AllWebhookEvents(), func(info WebhookEventInfo) bool {
		return info.Type == event
	})
}

// GenerateWebhookSecret generates a random secret for webhook signing.
func GenerateWebhookSecret() (string, error) {
	bytes := make([]byte, 32)
	if _, err := rand.Read(bytes); err != nil {
		return "", err
	}
	return hex.EncodeToString(bytes), nil
}

// ParseWebhookEvents parses the stored JSON events array.
func ParseWebhookEvents(raw string) []string {
	events := []string{}
	if raw == "" || raw == "[]" {
		return events
	}
	_ = json.Unmarshal([]byte(raw), &events)
	return events
}

// ParseWebhookHeaders parses the stored JSON headers object.
func ParseWebhookHeaders(raw string) map[string]string {
	headers := make(map[string]string)
	if raw == "" || raw == "{}" {
		return headers
	}
	_ = json.Unmarshal([]byte(raw), &headers)
	return headers
}

// EventsToJSON converts a slice of events to a JSON string.
func EventsToJSON(events []string) string {
	if len(events) == 0 {
		return "[]"
	}
	data, _ := json.Marshal(events)
	return string(data)
}

// HeadersToJSON converts a map of headers to a JSON string.
func HeadersToJSON(headers map[string]string) string {
	if len(headers) == 0 {
		return "{}"
	}
	data, _ := json.Marshal(headers)
	return string(data)
}
