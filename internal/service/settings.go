// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package service

import (
	"context"
	"fmt"

	"github.com/olegiv/evsite-go/internal/cache"
	"github.com/olegiv/evsite-go/internal/model"
	"github.com/olegiv/evsite-go/internal/realtime"
	"github.com/olegiv/evsite-go/internal/sections"
	"github.com/olegiv/evsite-go/internal/store"
	"github.com/olegiv/evsite-go/internal/util"
	"github.com/olegiv/evsite-go/internal/webhook"
)

// SettingsService loads and saves the section pages of a project.
type SettingsService struct {
	base
	queries  *store.Queries
	renderer *sections.Renderer
}

// NewSettingsService creates a settings service.
func NewSettingsService(d Deps) *SettingsService {
	return &SettingsService{
		base:     newBase(d),
		queries:  store.New(d.DB),
		renderer: sections.NewRenderer(),
	}
}

// Load returns the decoded page of a category. Sections that could not be
// parsed come back as defaults and are listed in Page.Fallbacks.
func (s *SettingsService) Load(ctx context.Context, projectID int64, category string) (sections.Page, error) {
	if !model.IsValidCategory(category) {
		return sections.Page{}, ErrUnknownCategory
	}
	if s.Cache == nil {
		return s.load(ctx, projectID, category)
	}
	return s.Cache.Pages.GetOrLoad(ctx, cache.PageKey(projectID, category), func(ctx context.Context) (sections.Page, error) {
		return s.load(ctx, projectID, category)
	})
}

func (s *SettingsService) load(ctx context.Context, projectID int64, category string) (sections.Page, error) {
	stored, err := s.queries.ListSiteSettings(ctx, store.ListSiteSettingsParams{ProjectID: projectID, Category: category})
	if err != nil {
		return sections.Page{}, fmt.Errorf("loading %s settings: %w", category, err)
	}
	rows := make([]sections.Row, len(stored))
	for i, st := range stored {
		rows[i] = sections.Row{Key: st.Key, Value: st.Value, Description: st.Description}
	}

	page := sections.Decode(category, rows)
	if len(page.Fallbacks) > 0 {
		s.Logger.Warn("settings fell back to defaults",
			"category", model.EventCategorySettings,
			"project_id", projectID,
			"page", category,
			"keys", page.Fallbacks)
	}
	return page, nil
}

// Public returns the visible sections of a page with markdown rendered.
func (s *SettingsService) Public(ctx context.Context, projectID int64, category string) (sections.Page, error) {
	page, err := s.Load(ctx, projectID, category)
	if err != nil {
		return sections.Page{}, err
	}
	return s.renderer.Render(page.Public()), nil
}

// Save replaces the whole category with page. An empty order is rebuilt from
// the sections; a given order must list every section exactly once. All rows
// are upserted and rows of the category absent from page are deleted, in one
// transaction.
func (s *SettingsService) Save(ctx context.Context, projectID int64, category string, page sections.Page, userID int64) (sections.Page, error) {
	if !model.IsValidCategory(category) {
		return sections.Page{}, ErrUnknownCategory
	}
	page.Category = category
	page.Fallbacks = nil
	if page.Values == nil {
		page.Values = map[string]string{}
	}
	if len(page.Order) == 0 {
		page.Order = sections.NormalizeOrder(nil, page.Sections)
	} else if err := sections.ValidateOrder(page.Order, page.Sections); err != nil {
		return sections.Page{}, err
	}
	if err := page.Validate(); err != nil {
		return sections.Page{}, err
	}

	rows, err := sections.Encode(page)
	if err != nil {
		return sections.Page{}, err
	}

	err = store.InTx(ctx, s.DB, func(q *store.Queries) error {
		existing, err := q.ListSiteSettings(ctx, store.ListSiteSettingsParams{ProjectID: projectID, Category: category})
		if err != nil {
			return err
		}
		now := s.now()
		keep := make(map[string]bool, len(rows))
		for _, row := range rows {
			keep[row.Key] = true
			if err := q.UpsertSiteSetting(ctx, store.UpsertSiteSettingParams{
				ProjectID:   projectID,
				Category:    category,
				Key:         row.Key,
				Value:       row.Value,
				Description: row.Description,
				UpdatedBy:   util.NullInt64FromPositive(userID),
				UpdatedAt:   now,
			}); err != nil {
				return fmt.Errorf("saving %s: %w", row.Key, err)
			}
		}
		for _, st := range existing {
			if keep[st.Key] {
				continue
			}
			if err := q.DeleteSiteSetting(ctx, store.DeleteSiteSettingParams{ProjectID: projectID, Key: st.Key}); err != nil {
				return fmt.Errorf("removing %s: %w", st.Key, err)
			}
		}
		return nil
	})
	if err != nil {
		return sections.Page{}, err
	}

	if s.Cache != nil {
		s.Cache.InvalidatePage(ctx, projectID, category)
	}
	s.Logger.Info("settings saved", "project_id", projectID, "page", category, "user_id", userID, "sections", len(page.Sections))
	s.publish(ctx, realtime.TableSiteSettings, projectID, category, "update")
	s.dispatch(ctx, model.EventSettingsUpdated, projectID, webhook.SettingsEventData{
		Category:  category,
		Order:     page.Order,
		UpdatedBy: userID,
	})

	return s.Load(ctx, projectID, category)
}

// MoveSection moves the section at index from to index to and saves the page.
func (s *SettingsService) MoveSection(ctx context.Context, projectID int64, category string, from, to int, userID int64) (sections.Page, error) {
	page, err := s.Load(ctx, projectID, category)
	if err != nil {
		return sections.Page{}, err
	}
	order, err := sections.Move(page.Order, from, to)
	if err != nil {
		return sections.Page{}, err
	}
	page.Order = order
	return s.Save(ctx, projectID, category, page, userID)
}

// MoveSectionID moves the section with the given id to index to and saves the page.
func (s *SettingsService) MoveSectionID(ctx context.Context, projectID int64, category, id string, to int, userID int64) (sections.Page, error) {
	page, err := s.Load(ctx, projectID, category)
	if err != nil {
		return sections.Page{}, err
	}
	order, err := sections.MoveID(page.Order, id, to)
	if err != nil {
		return sections.Page{}, err
	}
	page.Order = order
	return s.Save(ctx, projectID, category, page, userID)
}

// Reset removes every stored row of a category so it shows defaults again.
func (s *SettingsService) Reset(ctx context.Context, projectID int64, category string, userID int64) (sections.Page, error) {
	if !model.IsValidCategory(category) {
		return sections.Page{}, ErrUnknownCategory
	}
	return s.Save(ctx, projectID, category, sections.Defaults(category), userID)
}
