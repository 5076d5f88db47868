// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package config

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
)

// knownWeakSecrets contains example secrets that must never be used.
var knownWeakSecrets = []string{
	"change-me-to-32-byte-secret-key!",
	"REPLACE_WITH_YOUR_OWN_SECRET_KEY!",
}

// Config holds the application configuration loaded from environment variables.
type Config struct {
	DBPath        string `env:"EVSITE_DB_PATH" envDefault:"./data/evsite.db"`
	SessionSecret string `env:"EVSITE_SESSION_SECRET,required"`
	ServerHost    string `env:"EVSITE_SERVER_HOST" envDefault:"localhost"`
	ServerPort    int    `env:"EVSITE_SERVER_PORT" envDefault:"8080"`
	Env           string `env:"EVSITE_ENV" envDefault:"development"`
	LogLevel      string `env:"EVSITE_LOG_LEVEL" envDefault:"info"`
	UploadsDir    string `env:"EVSITE_UPLOADS_DIR" envDefault:"./uploads"`

	// PublicURL is the externally visible base URL, used to build QR verification links.
	PublicURL   string   `env:"EVSITE_PUBLIC_URL" envDefault:"http://localhost:8080"`
	CORSOrigins []string `env:"EVSITE_CORS_ORIGINS" envSeparator:","`

	// Cache configuration. RedisURL also enables realtime fan-out between instances.
	RedisURL     string `env:"EVSITE_REDIS_URL"`
	CachePrefix  string `env:"EVSITE_CACHE_PREFIX" envDefault:"evsite:"`
	CacheTTL     int    `env:"EVSITE_CACHE_TTL" envDefault:"3600"`       // seconds
	CacheMaxSize int    `env:"EVSITE_CACHE_MAX_SIZE" envDefault:"10000"` // max memory cache entries

	// Auth
	TokenTTL    int  `env:"EVSITE_TOKEN_TTL" envDefault:"60"` // Bearer token lifetime in minutes
	AllowSignup bool `env:"EVSITE_ALLOW_SIGNUP" envDefault:"true"`

	// Seeding configuration
	DoSeed        bool   `env:"EVSITE_DO_SEED" envDefault:"false"`
	AdminEmail    string `env:"EVSITE_ADMIN_EMAIL"`
	AdminPassword string `env:"EVSITE_ADMIN_PASSWORD"`

	EventRetentionDays int `env:"EVSITE_EVENT_RETENTION_DAYS" envDefault:"90"`
}

// IsDevelopment returns true if the application is running in development mode.
func (c Config) IsDevelopment() bool {
	return c.Env == "development"
}

// ServerAddr returns the full server address in host:port format.
func (c Config) ServerAddr() string {
	return fmt.Sprintf("%s:%d", c.ServerHost, c.ServerPort)
}

// UseRedis returns true if Redis is configured.
func (c Config) UseRedis() bool {
	return c.RedisURL != ""
}

// TokenLifetime returns the bearer token lifetime.
func (c Config) TokenLifetime() time.Duration {
	return time.Duration(c.TokenTTL) * time.Minute
}

// CacheLifetime returns the default cache TTL.
func (c Config) CacheLifetime() time.Duration {
	return time.Duration(c.CacheTTL) * time.Second
}

// EventRetention returns how long audit events are kept.
func (c Config) EventRetention() time.Duration {
	return time.Duration(c.EventRetentionDays) * 24 * time.Hour
}

// MinSessionSecretLength is the minimum required length for the session secret.
const MinSessionSecretLength = 32

// Load parses environment variables and returns a Config struct.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	if len(cfg.SessionSecret) < MinSessionSecretLength {
		return nil, fmt.Errorf("EVSITE_SESSION_SECRET must be at least %d bytes long, got %d bytes; "+
			"generate a secure secret with: openssl rand -base64 32",
			MinSessionSecretLength, len(cfg.SessionSecret))
	}

	for _, weak := range knownWeakSecrets {
		if cfg.SessionSecret == weak {
			return nil, fmt.Errorf("EVSITE_SESSION_SECRET is a known default value and must not be used; " +
				"generate a secure secret with: openssl rand -base64 32")
		}
	}

	if !hasMinimumEntropy(cfg.SessionSecret) {
		slog.Warn("EVSITE_SESSION_SECRET has low character diversity; " +
			"consider generating a random secret with: openssl rand -base64 32")
	}

	if cfg.Env != "development" && cfg.Env != "production" {
		return nil, fmt.Errorf("EVSITE_ENV must be development or production, got %q", cfg.Env)
	}
	if cfg.TokenTTL <= 0 {
		return nil, fmt.Errorf("EVSITE_TOKEN_TTL must be positive, got %d", cfg.TokenTTL)
	}
	if cfg.DoSeed && (cfg.AdminEmail == "") != (cfg.AdminPassword == "") {
		return nil, fmt.Errorf("EVSITE_ADMIN_EMAIL and EVSITE_ADMIN_PASSWORD must be set together")
	}
	cfg.PublicURL = strings.TrimRight(cfg.PublicURL, "/")

	return cfg, nil
}

// hasMinimumEntropy checks that a secret contains at least 3 character classes
// (lowercase, uppercase, digits, special characters).
func hasMinimumEntropy(s string) bool {
	charTypes := 0
	if strings.ContainsAny(s, "abcdefghijklmnopqrstuvwxyz") {
		charTypes++
	}
	if strings.ContainsAny(s, "ABCDEFGHIJKLMNOPQRSTUVWXYZ") {
		charTypes++
	}
	if strings.ContainsAny(s, "0123456789") {
		charTypes++
	}
	if strings.ContainsAny(s, "!@#$%^&*()-_=+[]{}|;:,.<>?/~`'\"\\") {
		charTypes++
	}
	return charTypes >= 3
}
