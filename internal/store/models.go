// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package store

import (
	"database/sql"
	"time"
)

type User struct {
	ID           int64        `json:"id"`
	Email        string       `json:"email"`
	PasswordHash string       `json:"-"`
	Name         string       `json:"name"`
	LastLoginAt  sql.NullTime `json:"-"`
	CreatedAt    time.Time    `json:"created_at"`
	UpdatedAt    time.Time    `json:"updated_at"`
}

type Profile struct {
	UserID       int64     `json:"user_id"`
	DisplayName  string    `json:"display_name"`
	Phone        string    `json:"phone"`
	Organization string    `json:"organization"`
	Bio          string    `json:"bio"`
	UpdatedAt    time.Time `json:"updated_at"`
}

type UserRole struct {
	UserID    int64     `json:"user_id"`
	Role      string    `json:"role"`
	CreatedAt time.Time `json:"created_at"`
}

type Project struct {
	ID          int64     `json:"id"`
	Name        string    `json:"name"`
	Slug        string    `json:"slug"`
	Description string    `json:"description"`
	IsActive    bool      `json:"is_active"`
	OwnerID     int64     `json:"owner_id"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

type ProjectMember struct {
	ProjectID int64     `json:"project_id"`
	UserID    int64     `json:"user_id"`
	Role      string    `json:"role"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type SiteSetting struct {
	ID          int64         `json:"id"`
	ProjectID   int64         `json:"project_id"`
	Category    string        `json:"category"`
	Key         string        `json:"key"`
	Value       string        `json:"value"`
	Description string        `json:"description"`
	UpdatedBy   sql.NullInt64 `json:"-"`
	UpdatedAt   time.Time     `json:"updated_at"`
}

type Registration struct {
	ID                int64        `json:"id"`
	ProjectID         int64        `json:"project_id"`
	Name              string       `json:"name"`
	Email             string       `json:"email"`
	Phone             string       `json:"phone"`
	Organization      string       `json:"organization"`
	FormData          string       `json:"-"`
	PrivacyConsent    bool         `json:"privacy_consent"`
	Status            string       `json:"status"`
	VerificationToken string       `json:"-"`
	IpAddress         string       `json:"-"`
	UserAgent         string       `json:"-"`
	CancelledAt       sql.NullTime `json:"-"`
	CreatedAt         time.Time    `json:"created_at"`
	UpdatedAt         time.Time    `json:"updated_at"`
}

type Medium struct {
	ID         int64         `json:"id"`
	ProjectID  int64         `json:"project_id"`
	Uuid       string        `json:"uuid"`
	Filename   string        `json:"filename"`
	MimeType   string        `json:"mime_type"`
	Size       int64         `json:"size"`
	Width      int64         `json:"width"`
	Height     int64         `json:"height"`
	UploadedBy sql.NullInt64 `json:"-"`
	CreatedAt  time.Time     `json:"created_at"`
}

type Event struct {
	ID        int64         `json:"id"`
	Level     string        `json:"level"`
	Category  string        `json:"category"`
	Message   string        `json:"message"`
	UserID    sql.NullInt64 `json:"-"`
	ProjectID sql.NullInt64 `json:"-"`
	Metadata  string        `json:"metadata"`
	IpAddress string        `json:"ip_address"`
	CreatedAt time.Time     `json:"created_at"`
}

type Webhook struct {
	ID        int64         `json:"id"`
	ProjectID int64         `json:"project_id"`
	Name      string        `json:"name"`
	Url       string        `json:"url"`
	Secret    string        `json:"-"`
	Events    string        `json:"-"`
	Headers   string        `json:"-"`
	IsActive  bool          `json:"is_active"`
	CreatedBy sql.NullInt64 `json:"-"`
	CreatedAt time.Time     `json:"created_at"`
	UpdatedAt time.Time     `json:"updated_at"`
}

type WebhookDelivery struct {
	ID           int64          `json:"id"`
	WebhookID    int64          `json:"webhook_id"`
	Event        string         `json:"event"`
	Payload      string         `json:"payload"`
	ResponseCode sql.NullInt64  `json:"-"`
	ResponseBody sql.NullString `json:"-"`
	Attempts     int64          `json:"attempts"`
	NextRetryAt  sql.NullTime   `json:"-"`
	DeliveredAt  sql.NullTime   `json:"-"`
	Status       string         `json:"status"`
	ErrorMessage sql.NullString `json:"-"`
	CreatedAt    time.Time      `json:"created_at"`
	UpdatedAt    time.Time      `json:"updated_at"`
}
