// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package cache

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/olegiv/evsite-go/internal/sections"
	"github.com/olegiv/evsite-go/internal/store"
)

// Manager groups the typed caches used by the services.
type Manager struct {
	backend Cacher

	// Pages holds decoded pages keyed by project id and category.
	Pages *TypedCache[sections.Page]
	// Projects holds public project lookups keyed by slug.
	Projects *TypedCache[store.Project]
}

// NewManager creates the typed caches on top of backend.
func NewManager(backend Cacher, cfg Config) *Manager {
	return &Manager{
		backend:  backend,
		Pages:    NewTypedCache[sections.Page](backend, "page:", cfg.DefaultTTL),
		Projects: NewTypedCache[store.Project](backend, "project:", cfg.DefaultTTL),
	}
}

// PageKey returns the cache key of a project's category page.
func PageKey(projectID int64, category string) string {
	return fmt.Sprintf("%d:%s", projectID, category)
}

// InvalidatePage drops one cached page.
func (m *Manager) InvalidatePage(ctx context.Context, projectID int64, category string) {
	if err := m.Pages.Delete(ctx, PageKey(projectID, category)); err != nil {
		slog.Warn("cache invalidation failed", "project_id", projectID, "category", category, "error", err)
	}
}

// InvalidateProject drops the slug lookup and every cached page of a project.
// Pass the old slug as well when a project is renamed.
func (m *Manager) InvalidateProject(ctx context.Context, projectID int64, slugs ...string) {
	for _, slug := range slugs {
		if slug == "" {
			continue
		}
		if err := m.Projects.Delete(ctx, slug); err != nil {
			slog.Warn("cache invalidation failed", "slug", slug, "error", err)
		}
	}
	if err := m.Pages.DeletePrefix(ctx, fmt.Sprintf("%d:", projectID)); err != nil {
		slog.Warn("cache invalidation failed", "project_id", projectID, "error", err)
	}
}

// Clear empties the backend.
func (m *Manager) Clear(ctx context.Context) error {
	return m.backend.Clear(ctx)
}

// Stats reports backend counters.
func (m *Manager) Stats() Stats {
	return m.backend.Stats()
}

// Close releases the backend.
func (m *Manager) Close() error {
	return m.backend.Close()
}
