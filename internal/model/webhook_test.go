// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package model

import (
	"slices"
	"testing"
)

func TestGenerateWebhookSecret(t *testing.T) {
	secret1, err := GenerateWebhookSecret()
	if err != nil {
		t.Fatalf("GenerateWebhookSecret() error = %v", err)
	}

	// 32 bytes hex-encoded
	if len(secret1) != 64 {
		t.Errorf("GenerateWebhookSecret() length = %d, want 64", len(secret1))
	}

	secret2, err := GenerateWebhookSecret()
	if err != nil {
		t.Fatalf("GenerateWebhookSecret() second call error = %v", err)
	}
	if secret1 == secret2 {
		t.Error("GenerateWebhookSecret() generated identical secrets")
	}
}

func TestParseWebhookEvents(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  []string
	}{
		{"empty string", "", []string{}},
		{"empty array", "[]", []string{}},
		{"corrupt", "{not json", []string{}},
		{"single", `["registration.created"]`, []string{EventRegistrationCreated}},
		{"multiple", `["registration.created","settings.updated"]`, []string{EventRegistrationCreated, EventSettingsUpdated}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ParseWebhookEvents(tt.input); !slices.Equal(got, tt.want) {
				t.Errorf("ParseWebhookEvents(%q) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}

func TestEventsToJSON(t *testing.T) {
	tests := []struct {
		name   string
		events []string
		want   string
	}{
		{"nil", nil, "[]"},
		{"empty", []string{}, "[]"},
		{"single", []string{EventRegistrationCreated}, `["registration.created"]`},
		{"multiple", []string{EventSettingsUpdated, EventMediaDeleted}, `["settings.updated","media.deleted"]`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := EventsToJSON(tt.events); got != tt.want {
				t.Errorf("EventsToJSON() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestParseWebhookHeaders(t *testing.T) {
	headers := ParseWebhookHeaders(HeadersToJSON(map[string]string{"X-Token": "abc"}))
	if headers["X-Token"] != "abc" {
		t.Errorf("headers = %v", headers)
	}
	if len(ParseWebhookHeaders("")) != 0 {
		t.Error("empty input should yield no headers")
	}
	if HeadersToJSON(nil) != "{}" {
		t.Errorf("HeadersToJSON(nil) = %q", HeadersToJSON(nil))
	}
}

func TestIsValidWebhookEvent(t *testing.T) {
	for _, info := range AllWebhookEvents() {
		if !IsValidWebhookEvent(info.Type) {
			t.Errorf("IsValidWebhookEvent(%q) = false", info.Type)
		}
	}
	if IsValidWebhookEvent(EventWebhookTest) {
		t.Error("test events are not subscribable")
	}
	if IsValidWebhookEvent("page.created") {
		t.Error("unknown event accepted")
	}
}
