// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

// Package webhook delivers project events to subscriber URLs with signed
// payloads and retries.
package webhook

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Event is the JSON body posted to webhook endpoints.
type Event struct {
	ID        string    `json:"id"`
	Type      string    `json:"type"`
	ProjectID int64     `json:"project_id"`
	Timestamp time.Time `json:"timestamp"`
	Data      any       `json:"data"`
}

// NewEvent creates an event for a project.
func NewEvent(eventType string, projectID int64, data any) *Event {
	return &Event{
		ID:        uuid.NewString(),
		Type:      eventType,
		ProjectID: projectID,
		Timestamp: time.Now().UTC(),
		Data:      data,
	}
}

// entityKeyer is implemented by payloads that identify a single entity.
type entityKeyer interface {
	entityKey() string
}

// key identifies events that describe the same entity, for debouncing.
func (e *Event) key() string {
	if k, ok := e.Data.(entityKeyer); ok {
		return fmt.Sprintf("%s:%d:%s", e.Type, e.ProjectID, k.entityKey())
	}
	return fmt.Sprintf("%s:%d", e.Type, e.ProjectID)
}

// RegistrationEventData describes a registration.
type RegistrationEventData struct {
	ID           int64             `json:"id"`
	Name         string            `json:"name"`
	Email        string            `json:"email"`
	Phone        string            `json:"phone,omitempty"`
	Organization string            `json:"organization,omitempty"`
	Status       string            `json:"status"`
	FormData     map[string]string `json:"form_data,omitempty"`
	Client       *ClientInfo       `json:"client,omitempty"`
	CreatedAt    time.Time         `json:"created_at"`
}

// ClientInfo summarizes the user agent a registration was submitted from.
type ClientInfo struct {
	Browser string `json:"browser"`
	OS      string `json:"os"`
	Device  string `json:"device"`
}

func (d RegistrationEventData) entityKey() string { return fmt.Sprint(d.ID) }

// SettingsEventData describes a saved page category.
type SettingsEventData struct {
	Category  string   `json:"category"`
	Order     []string `json:"order"`
	UpdatedBy int64    `json:"updated_by,omitempty"`
}

func (d SettingsEventData) entityKey() string { return d.Category }

// ProjectEventData describes a project.
type ProjectEventData struct {
	ID       int64  `json:"id"`
	Name     string `json:"name"`
	Slug     string `json:"slug"`
	IsActive bool   `json:"is_active"`
}

func (d ProjectEventData) entityKey() string { return fmt.Sprint(d.ID) }

// MediaEventData describes an uploaded image.
type MediaEventData struct {
	ID       int64  `json:"id"`
	UUID     string `json:"uuid"`
	Filename string `json:"filename"`
	MimeType string `json:"mime_type"`
	Size     int64  `json:"size"`
	URL      string `json:"url"`
}

func (d MediaEventData) entityKey() string { return fmt.Sprint(d.ID) }

// TestEventData is sent by the "send test" action.
type TestEventData struct {
	Message string `json:"message"`
	Webhook string `json:"webhook"`
}
