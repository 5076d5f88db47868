// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package service

import (
	"context"
	"fmt"
	"io"

	"github.com/google/uuid"

	"github.com/olegiv/evsite-go/internal/imaging"
	"github.com/olegiv/evsite-go/internal/model"
	"github.com/olegiv/evsite-go/internal/realtime"
	"github.com/olegiv/evsite-go/internal/store"
	"github.com/olegiv/evsite-go/internal/util"
	"github.com/olegiv/evsite-go/internal/webhook"
)

// UploadsURLPrefix is where the uploads directory is served.
const UploadsURLPrefix = "/uploads"

// MediaItem is a stored image with the URLs of its files.
type MediaItem struct {
	store.Medium
	URL  string            `json:"url"`
	URLs map[string]string `json:"urls"`
}

// MediaService stores project images.
type MediaService struct {
	base
	queries   *store.Queries
	processor *imaging.Processor
}

// NewMediaService creates a media service writing through processor.
func NewMediaService(d Deps, processor *imaging.Processor) *MediaService {
	return &MediaService{base: newBase(d), queries: store.New(d.DB), processor: processor}
}

// Upload processes an image into the project's upload directory and records it.
func (s *MediaService) Upload(ctx context.Context, project store.Project, r io.Reader, filename string, userID int64) (MediaItem, error) {
	id := uuid.NewString()
	res, err := s.processor.Process(r, project.Slug, id, filename)
	if err != nil {
		return MediaItem{}, err
	}

	m, err := s.queries.CreateMedia(ctx, store.CreateMediaParams{
		ProjectID:  project.ID,
		Uuid:       id,
		Filename:   res.Filename,
		MimeType:   res.MimeType,
		Size:       res.Size,
		Width:      int64(res.Width),
		Height:     int64(res.Height),
		UploadedBy: util.NullInt64FromPositive(userID),
		CreatedAt:  s.now(),
	})
	if err != nil {
		if derr := s.processor.Delete(project.Slug, id); derr != nil {
			s.Logger.Warn("failed to remove files of unrecorded upload", "uuid", id, "error", derr)
		}
		return MediaItem{}, fmt.Errorf("recording media: %w", err)
	}

	item := s.item(project, m)
	s.Logger.Info("media uploaded", "project_id", project.ID, "media_id", m.ID, "user_id", userID)
	s.publish(ctx, realtime.TableMedia, project.ID, "", "create")
	s.dispatch(ctx, model.EventMediaUploaded, project.ID, webhook.MediaEventData{
		ID:       m.ID,
		UUID:     m.Uuid,
		Filename: m.Filename,
		MimeType: m.MimeType,
		Size:     m.Size,
		URL:      item.URL,
	})
	return item, nil
}

// List returns a page of the project's media, newest first, and the total count.
func (s *MediaService) List(ctx context.Context, project store.Project, limit, offset int) ([]MediaItem, int64, error) {
	l, o := clampPage(limit, offset)
	rows, err := s.queries.ListMedia(ctx, store.ListMediaParams{ProjectID: project.ID, Limit: l, Offset: o})
	if err != nil {
		return nil, 0, fmt.Errorf("listing media: %w", err)
	}
	total, err := s.queries.CountMedia(ctx, project.ID)
	if err != nil {
		return nil, 0, fmt.Errorf("counting media: %w", err)
	}
	items := make([]MediaItem, len(rows))
	for i, m := range rows {
		items[i] = s.item(project, m)
	}
	return items, total, nil
}

// Get returns one media item of the project.
func (s *MediaService) Get(ctx context.Context, project store.Project, id int64) (MediaItem, error) {
	m, err := s.queries.GetMedia(ctx, id)
	if err != nil {
		return MediaItem{}, notFound(err)
	}
	if m.ProjectID != project.ID {
		return MediaItem{}, ErrNotFound
	}
	return s.item(project, m), nil
}

// Delete removes the record and files of a media item.
func (s *MediaService) Delete(ctx context.Context, project store.Project, id int64) error {
	item, err := s.Get(ctx, project, id)
	if err != nil {
		return err
	}
	if err := s.queries.DeleteMedia(ctx, id); err != nil {
		return fmt.Errorf("deleting media: %w", err)
	}
	if err := s.processor.Delete(project.Slug, item.Uuid); err != nil {
		s.Logger.Warn("failed to remove media files", "media_id", id, "error", err)
	}

	s.Logger.Info("media deleted", "project_id", project.ID, "media_id", id)
	s.publish(ctx, realtime.TableMedia, project.ID, "", "delete")
	s.dispatch(ctx, model.EventMediaDeleted, project.ID, webhook.MediaEventData{
		ID:       item.ID,
		UUID:     item.Uuid,
		Filename: item.Filename,
		MimeType: item.MimeType,
		Size:     item.Size,
		URL:      item.URL,
	})
	return nil
}

func (s *MediaService) item(project store.Project, m store.Medium) MediaItem {
	urls := map[string]string{
		imaging.OriginalDir: imaging.URL(UploadsURLPrefix, project.Slug, imaging.OriginalDir, m.Uuid, m.Filename),
	}
	for _, v := range imaging.Variants {
		urls[v.Name] = imaging.URL(UploadsURLPrefix, project.Slug, v.Name, m.Uuid, m.Filename)
	}
	return MediaItem{Medium: m, URL: urls[imaging.Variants[0].Name], URLs: urls}
}
