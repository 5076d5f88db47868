// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package config

import (
	"os"
	"testing"
	"time"
)

const testSecret = "test-secret-key-32-bytes-long!!!"

func setEnv(t *testing.T, key, value string) {
	t.Helper()
	if err := os.Setenv(key, value); err != nil {
		t.Fatalf("failed to set %s: %v", key, err)
	}
}

func TestLoad_Defaults(t *testing.T) {
	os.Clearenv()
	setEnv(t, "EVSITE_SESSION_SECRET", testSecret)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}

	if cfg.DBPath != "./data/evsite.db" {
		t.Errorf("DBPath = %q, want %q", cfg.DBPath, "./data/evsite.db")
	}
	if cfg.ServerHost != "localhost" {
		t.Errorf("ServerHost = %q, want %q", cfg.ServerHost, "localhost")
	}
	if cfg.ServerPort != 8080 {
		t.Errorf("ServerPort = %d, want %d", cfg.ServerPort, 8080)
	}
	if cfg.Env != "development" {
		t.Errorf("Env = %q, want %q", cfg.Env, "development")
	}
	if cfg.UploadsDir != "./uploads" {
		t.Errorf("UploadsDir = %q, want %q", cfg.UploadsDir, "./uploads")
	}
	if !cfg.AllowSignup {
		t.Error("AllowSignup = false, want true")
	}
	if cfg.TokenLifetime() != time.Hour {
		t.Errorf("TokenLifetime() = %v, want 1h", cfg.TokenLifetime())
	}
	if cfg.EventRetention() != 90*24*time.Hour {
		t.Errorf("EventRetention() = %v, want 90 days", cfg.EventRetention())
	}
	if len(cfg.CORSOrigins) != 0 {
		t.Errorf("CORSOrigins = %v, want empty", cfg.CORSOrigins)
	}
}

func TestLoad_CustomValues(t *testing.T) {
	os.Clearenv()
	setEnv(t, "EVSITE_SESSION_SECRET", testSecret)
	setEnv(t, "EVSITE_DB_PATH", "/custom/path.db")
	setEnv(t, "EVSITE_SERVER_PORT", "3000")
	setEnv(t, "EVSITE_ENV", "production")
	setEnv(t, "EVSITE_PUBLIC_URL", "https://events.example.com/")
	setEnv(t, "EVSITE_CORS_ORIGINS", "https://a.example.com,https://b.example.com")
	setEnv(t, "EVSITE_REDIS_URL", "redis://localhost:6379/0")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}

	if cfg.DBPath != "/custom/path.db" {
		t.Errorf("DBPath = %q, want %q", cfg.DBPath, "/custom/path.db")
	}
	if cfg.ServerPort != 3000 {
		t.Errorf("ServerPort = %d, want %d", cfg.ServerPort, 3000)
	}
	if cfg.IsDevelopment() {
		t.Error("IsDevelopment() = true, want false")
	}
	if cfg.PublicURL != "https://events.example.com" {
		t.Errorf("PublicURL = %q, want trailing slash trimmed", cfg.PublicURL)
	}
	if len(cfg.CORSOrigins) != 2 || cfg.CORSOrigins[1] != "https://b.example.com" {
		t.Errorf("CORSOrigins = %v", cfg.CORSOrigins)
	}
	if !cfg.UseRedis() {
		t.Error("UseRedis() = false, want true")
	}
}

func TestLoad_RequiredSessionSecret(t *testing.T) {
	os.Clearenv()

	if _, err := Load(); err == nil {
		t.Fatal("Load() should fail when EVSITE_SESSION_SECRET is not set")
	}
}

func TestLoad_InvalidValues(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{"short secret", map[string]string{"EVSITE_SESSION_SECRET": "short"}},
		{"31 byte secret", map[string]string{"EVSITE_SESSION_SECRET": "1234567890123456789012345678901"}},
		{"known weak secret", map[string]string{"EVSITE_SESSION_SECRET": "change-me-to-32-byte-secret-key!"}},
		{"unknown env", map[string]string{"EVSITE_SESSION_SECRET": testSecret, "EVSITE_ENV": "staging"}},
		{"zero token ttl", map[string]string{"EVSITE_SESSION_SECRET": testSecret, "EVSITE_TOKEN_TTL": "0"}},
		{"seed without password", map[string]string{
			"EVSITE_SESSION_SECRET": testSecret,
			"EVSITE_DO_SEED":        "true",
			"EVSITE_ADMIN_EMAIL":    "admin@example.com",
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			os.Clearenv()
			for k, v := range tt.env {
				setEnv(t, k, v)
			}
			if _, err := Load(); err == nil {
				t.Fatal("Load() should fail")
			}
		})
	}
}

func TestConfig_ServerAddr(t *testing.T) {
	tests := []struct {
		host string
		port int
		want string
	}{
		{"localhost", 8080, "localhost:8080"},
		{"0.0.0.0", 3000, "0.0.0.0:3000"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			cfg := Config{ServerHost: tt.host, ServerPort: tt.port}
			if got := cfg.ServerAddr(); got != tt.want {
				t.Errorf("ServerAddr() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestHasMinimumEntropy(t *testing.T) {
	tests := []struct {
		secret string
		want   bool
	}{
		{"aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa", false},
		{"aaaaaaaaaaaaaaaaAAAAAAAAAAAAAAAA", false},
		{"aaaaaaaaaaaaaaaAAAAAAAAAAAAAAA11", true},
		{testSecret, true},
	}

	for _, tt := range tests {
		if got := hasMinimumEntropy(tt.secret); got != tt.want {
			t.Errorf("hasMinimumEntropy(%q) = %v, want %v", tt.secret, got, tt.want)
		}
	}
}
