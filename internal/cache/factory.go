// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package cache

import (
	"context"
	"log/slog"
	"time"
)

// Config selects and configures a backend. An empty RedisURL selects memory.
type Config struct {
	RedisURL        string
	Prefix          string
	DefaultTTL      time.Duration
	MaxSize         int
	CleanupInterval time.Duration
}

// New returns a Redis cache when RedisURL is set and reachable. If Redis
// cannot be reached the memory cache is used and a warning is logged.
func New(ctx context.Context, cfg Config) Cacher {
	if cfg.RedisURL != "" {
		rc, err := NewRedisCache(ctx, RedisOptions{
			URL:        cfg.RedisURL,
			Prefix:     cfg.Prefix,
			DefaultTTL: cfg.DefaultTTL,
		})
		if err == nil {
			slog.Info("cache backend selected", "backend", "redis")
			return rc
		}
		slog.Warn("redis unavailable, falling back to memory cache", "error", err)
	}

	interval := cfg.CleanupInterval
	if interval <= 0 {
		interval = time.Minute
	}
	slog.Info("cache backend selected", "backend", "memory", "max_size", cfg.MaxSize)
	return NewMemoryCache(MemoryOptions{
		DefaultTTL:      cfg.DefaultTTL,
		MaxSize:         cfg.MaxSize,
		CleanupInterval: interval,
	})
}
