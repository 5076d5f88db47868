// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package api

import (
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/olegiv/evsite-go/internal/imaging"
	"github.com/olegiv/evsite-go/internal/model"
	"github.com/olegiv/evsite-go/internal/sections"
	"github.com/olegiv/evsite-go/internal/service"
	"github.com/olegiv/evsite-go/internal/testutil"
)

func TestWriteSuccess(t *testing.T) {
	rec := httptest.NewRecorder()
	WriteSuccess(rec, map[string]string{"name": "test"}, &Meta{Total: 100, Page: 1, PerPage: 20, Pages: 5})

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.JSONEq(t, `{"data":{"name":"test"},"meta":{"total":100,"page":1,"per_page":20,"pages":5}}`, rec.Body.String())
}

func TestWriteCreatedAndNoContent(t *testing.T) {
	rec := httptest.NewRecorder()
	WriteCreated(rec, map[string]int{"id": 7})
	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.JSONEq(t, `{"data":{"id":7}}`, rec.Body.String())

	rec = httptest.NewRecorder()
	WriteNoContent(rec)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Empty(t, rec.Body.String())
}

func TestWriteServiceError(t *testing.T) {
	verr := model.NewValidationError()
	verr.Add("email", "is required")

	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   string
	}{
		{"validation", verr, http.StatusUnprocessableEntity, "validation_error"},
		{"wrapped validation", fmt.Errorf("saving: %w", verr), http.StatusUnprocessableEntity, "validation_error"},
		{"not found", service.ErrNotFound, http.StatusNotFound, "not_found"},
		{"forbidden", service.ErrForbidden, http.StatusForbidden, "forbidden"},
		{"bad credentials", service.ErrInvalidCredentials, http.StatusUnauthorized, "invalid_credentials"},
		{"signup disabled", service.ErrSignupDisabled, http.StatusForbidden, "forbidden"},
		{"slug taken", service.ErrSlugTaken, http.StatusConflict, "conflict"},
		{"email taken", service.ErrEmailTaken, http.StatusConflict, "conflict"},
		{"last owner", service.ErrLastOwner, http.StatusConflict, "conflict"},
		{"already member", service.ErrAlreadyMember, http.StatusConflict, "conflict"},
		{"registration closed", service.ErrRegistrationClosed, http.StatusForbidden, "registration_closed"},
		{"inactive project", service.ErrProjectInactive, http.StatusForbidden, "registration_closed"},
		{"unknown category", service.ErrUnknownCategory, http.StatusNotFound, "not_found"},
		{"invalid order", fmt.Errorf("%w: duplicate id", sections.ErrInvalidOrder), http.StatusUnprocessableEntity, "validation_error"},
		{"unsupported image", imaging.ErrUnsupportedFormat, http.StatusUnsupportedMediaType, "unsupported_media_type"},
		{"image too large", imaging.ErrTooLarge, http.StatusRequestEntityTooLarge, "too_large"},
		{"unexpected", errors.New("disk on fire"), http.StatusInternalServerError, "internal_error"},
	}

	h := NewHandler(Config{Logger: testutil.DiscardLogger()})
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			h.writeServiceError(rec, httptest.NewRequest(http.MethodGet, "/", nil), tt.err)
			assert.Equal(t, tt.wantStatus, rec.Code)
			assert.Equal(t, tt.wantCode, errorCode(t, rec))
		})
	}
}

func TestWriteServiceError_HidesInternalDetail(t *testing.T) {
	h := NewHandler(Config{Logger: testutil.DiscardLogger()})
	rec := httptest.NewRecorder()
	h.writeServiceError(rec, httptest.NewRequest(http.MethodGet, "/", nil), errors.New("sql: database is locked"))
	assert.NotContains(t, rec.Body.String(), "locked")
}

func TestParsePagination(t *testing.T) {
	tests := []struct {
		query       string
		wantPage    int
		wantPerPage int
		wantOffset  int
	}{
		{"", 1, 20, 0},
		{"page=3", 3, 20, 40},
		{"page=2&per_page=50", 2, 50, 50},
		{"page=0&per_page=0", 1, 20, 0},
		{"page=-1&per_page=500", 1, 20, 0},
		{"page=abc&per_page=x", 1, 20, 0},
		{"per_page=100", 1, 100, 0},
	}
	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			p := parsePagination(httptest.NewRequest(http.MethodGet, "/?"+tt.query, nil))
			assert.Equal(t, tt.wantPage, p.Page)
			assert.Equal(t, tt.wantPerPage, p.PerPage)
			assert.Equal(t, tt.wantOffset, p.Offset())
		})
	}
}

func TestPaginationMeta(t *testing.T) {
	p := pagination{Page: 2, PerPage: 20}
	assert.Equal(t, &Meta{Total: 41, Page: 2, PerPage: 20, Pages: 3}, p.Meta(41))
	assert.Equal(t, 2, p.Meta(40).Pages)
	assert.Equal(t, 0, p.Meta(0).Pages)
}

func TestDecodeJSON(t *testing.T) {
	tests := []struct {
		name     string
		body     string
		wantOK   bool
		wantCode int
	}{
		{"valid", `{"name":"x"}`, true, http.StatusOK},
		{"empty", ``, false, http.StatusBadRequest},
		{"malformed", `{"name":`, false, http.StatusBadRequest},
		{"too large", `{"name":"` + strings.Repeat("a", maxBodySize) + `"}`, false, http.StatusRequestEntityTooLarge},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			var v struct{ Name string }
			ok := decodeJSON(rec, httptest.NewRequest(http.MethodPost, "/", strings.NewReader(tt.body)), &v)
			require.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.wantCode, rec.Code)
		})
	}
}

func TestRoleName(t *testing.T) {
	assert.Equal(t, model.ProjectRoleOwner, roleName(4))
	assert.Equal(t, model.ProjectRoleAdmin, roleName(3))
	assert.Equal(t, model.ProjectRoleEditor, roleName(2))
	assert.Equal(t, model.ProjectRoleViewer, roleName(1))
	assert.Empty(t, roleName(0))
}

func TestRoutes_StatusAndNotFound(t *testing.T) {
	env := newTestEnv(t)

	rec := env.get(t, "/", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	status, _ := decodeData[StatusResponse](t, rec)
	assert.Equal(t, "ok", status.Status)

	rec = env.get(t, "/nope", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "not_found", errorCode(t, rec))
}
