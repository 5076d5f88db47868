// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package api

import (
	"errors"
	"net/http"

	"github.com/olegiv/evsite-go/internal/imaging"
	"github.com/olegiv/evsite-go/internal/middleware"
	"github.com/olegiv/evsite-go/internal/service"
)

// multipartOverhead is allowed on top of the image size for form framing.
const multipartOverhead = 1 << 20

// ListMedia handles GET /projects/{id}/media.
func (h *Handler) ListMedia(w http.ResponseWriter, r *http.Request) {
	project, ok := currentProject(w, r)
	if !ok {
		return
	}
	p := parsePagination(r)
	items, total, err := h.media.List(r.Context(), project, p.PerPage, p.Offset())
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	if items == nil {
		items = []service.MediaItem{}
	}
	WriteSuccess(w, items, p.Meta(total))
}

// GetMedia handles GET /projects/{id}/media/{mediaId}.
func (h *Handler) GetMedia(w http.ResponseWriter, r *http.Request) {
	project, ok := currentProject(w, r)
	if !ok {
		return
	}
	id, ok := parseIDParam(w, r, "mediaId", "media")
	if !ok {
		return
	}
	item, err := h.media.Get(r.Context(), project, id)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	WriteSuccess(w, item, nil)
}

// UploadMedia handles POST /projects/{id}/media as multipart/form-data with
// the image in the "file" field.
func (h *Handler) UploadMedia(w http.ResponseWriter, r *http.Request) {
	project, ok := currentProject(w, r)
	if !ok {
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, imaging.MaxUploadSize+multipartOverhead)
	if err := r.ParseMultipartForm(imaging.MaxUploadSize); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			h.writeServiceError(w, r, imaging.ErrTooLarge)
			return
		}
		WriteBadRequest(w, "Invalid multipart form", nil)
		return
	}
	defer func() { _ = r.MultipartForm.RemoveAll() }()

	file, header, err := r.FormFile("file")
	if err != nil {
		WriteValidationError(w, map[string]string{"file": "is required"})
		return
	}
	defer func() { _ = file.Close() }()

	item, err := h.media.Upload(r.Context(), project, file, header.Filename, middleware.GetUserID(r))
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	WriteCreated(w, item)
}

// DeleteMedia handles DELETE /projects/{id}/media/{mediaId}.
func (h *Handler) DeleteMedia(w http.ResponseWriter, r *http.Request) {
	project, ok := currentProject(w, r)
	if !ok {
		return
	}
	id, ok := parseIDParam(w, r, "mediaId", "media")
	if !ok {
		return
	}
	if err := h.media.Delete(r.Context(), project, id); err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	WriteNoContent(w)
}
