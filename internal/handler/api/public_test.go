// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package api

import (
	"bytes"
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/olegiv/evsite-go/internal/model"
	"github.com/olegiv/evsite-go/internal/sections"
	"github.com/olegiv/evsite-go/internal/store"
	"github.com/olegiv/evsite-go/internal/testutil"
)

func attendee() map[string]any {
	return map[string]any{
		"values": map[string]string{
			"name":         "Ada Lovelace",
			"email":        "Ada@Example.com",
			"phone":        "+44 20 7946 0018",
			"organization": "Analytical Engines",
		},
		"privacy_consent": true,
	}
}

func newPublicProject(t *testing.T, env *testEnv, slug string) store.Project {
	t.Helper()
	owner := testutil.CreateUser(t, env.db, "")
	return testutil.CreateProject(t, env.db, slug, owner.ID)
}

func TestPublicProject(t *testing.T) {
	env := newTestEnv(t)
	newPublicProject(t, env, "summit")

	rec := env.get(t, "/p/summit", "")
	require.Equal(t, http.StatusOK, rec.Code)
	info, _ := decodeData[PublicProjectResponse](t, rec)
	assert.Equal(t, "summit", info.Slug)
	assert.True(t, info.RegistrationOpen)
	assert.Equal(t, model.Categories, info.Categories)

	rec = env.get(t, "/p/unknown", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestPublicProject_InactiveIsNotFound(t *testing.T) {
	env := newTestEnv(t)
	p := newPublicProject(t, env, "hidden")
	_, err := env.db.Exec(`UPDATE projects SET is_active = 0 WHERE id = ?`, p.ID)
	require.NoError(t, err)

	assert.Equal(t, http.StatusNotFound, env.get(t, "/p/hidden", "").Code)
	assert.Equal(t, http.StatusNotFound, env.get(t, "/p/hidden/pages/home", "").Code)
}

func TestPublicPage(t *testing.T) {
	env := newTestEnv(t)
	newPublicProject(t, env, "summit")

	rec := env.get(t, "/p/summit/pages/home", "")
	require.Equal(t, http.StatusOK, rec.Code)
	page, _ := decodeData[sections.Page](t, rec)
	assert.Equal(t, model.CategoryHome, page.Category)
	assert.Len(t, page.Order, 3)

	rec = env.get(t, "/p/summit/pages/sponsors", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestSubmitRegistration(t *testing.T) {
	env := newTestEnv(t)
	newPublicProject(t, env, "summit")

	rec := env.do(t, request{method: http.MethodPost, path: "/p/summit/registrations", body: attendee()})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	reg, _ := decodeData[PublicRegistrationResponse](t, rec)
	assert.Equal(t, model.RegistrationPending, reg.Status)
	assert.Equal(t, "ada@example.com", reg.Email)
	assert.NotEmpty(t, reg.Token)
	assert.Contains(t, reg.VerifyURL, reg.Token)
	assert.Equal(t, "/api/v1/p/summit/registrations/verify/"+reg.Token+"/qr.png", reg.QRCodeURL)
}

func TestSubmitRegistration_FieldErrors(t *testing.T) {
	env := newTestEnv(t)
	newPublicProject(t, env, "summit")

	noConsent := attendee()
	noConsent["privacy_consent"] = false
	missingName := attendee()
	missingName["values"] = map[string]string{"email": "ada@example.com"}

	tests := []struct {
		name      string
		body      map[string]any
		wantField string
	}{
		{"missing consent", noConsent, "privacy_consent"},
		{"missing required field", missingName, "name"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := env.do(t, request{method: http.MethodPost, path: "/p/summit/registrations", body: tt.body})
			require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
			var resp ErrorResponse
			require.NoError(t, jsonUnmarshal(rec, &resp))
			assert.Equal(t, "validation_error", resp.Error.Code)
			assert.Contains(t, resp.Error.Details, tt.wantField)
		})
	}
}

func TestSubmitRegistration_Closed(t *testing.T) {
	env := newTestEnv(t)
	p := newPublicProject(t, env, "summit")

	ctx := context.Background()
	page, err := env.handler.settings.Load(ctx, p.ID, model.CategoryRegistration)
	require.NoError(t, err)
	page.Values[sections.ValueRegistrationOpen] = "false"
	_, err = env.handler.settings.Save(ctx, p.ID, model.CategoryRegistration, page, 0)
	require.NoError(t, err)

	rec := env.do(t, request{method: http.MethodPost, path: "/p/summit/registrations", body: attendee()})
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, "registration_closed", errorCode(t, rec))

	info, _ := decodeData[PublicProjectResponse](t, env.get(t, "/p/summit", ""))
	assert.False(t, info.RegistrationOpen)
}

func TestRegistrationTokenFlow(t *testing.T) {
	env := newTestEnv(t)
	newPublicProject(t, env, "summit")
	newPublicProject(t, env, "other")

	rec := env.do(t, request{method: http.MethodPost, path: "/p/summit/registrations", body: attendee()})
	require.Equal(t, http.StatusCreated, rec.Code)
	created, _ := decodeData[PublicRegistrationResponse](t, rec)
	base := "/p/summit/registrations/verify/" + created.Token

	rec = env.get(t, base, "")
	require.Equal(t, http.StatusOK, rec.Code)
	got, _ := decodeData[PublicRegistrationResponse](t, rec)
	assert.Equal(t, "Ada Lovelace", got.Name)

	rec = env.get(t, base+"/qr.png", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "image/png", rec.Header().Get("Content-Type"))
	assert.True(t, bytes.HasPrefix(rec.Body.Bytes(), []byte("\x89PNG")))

	// Tokens do not cross projects.
	assert.Equal(t, http.StatusNotFound, env.get(t, "/p/other/registrations/verify/"+created.Token, "").Code)
	assert.Equal(t, http.StatusNotFound, env.get(t, "/p/summit/registrations/verify/not-a-token", "").Code)

	rec = env.do(t, request{method: http.MethodPost, path: base + "/cancel"})
	require.Equal(t, http.StatusOK, rec.Code)
	cancelled, _ := decodeData[PublicRegistrationResponse](t, rec)
	assert.Equal(t, model.RegistrationCancelled, cancelled.Status)
	assert.NotNil(t, cancelled.CancelledAt)

	rec = env.do(t, request{method: http.MethodPost, path: base + "/cancel"})
	assert.Equal(t, http.StatusOK, rec.Code, "cancelling twice is a no-op")
}

func TestCheckRegistration(t *testing.T) {
	env := newTestEnv(t)
	newPublicProject(t, env, "summit")
	require.Equal(t, http.StatusCreated,
		env.do(t, request{method: http.MethodPost, path: "/p/summit/registrations", body: attendee()}).Code)

	tests := []struct {
		name       string
		body       map[string]string
		wantStatus int
	}{
		{"email and name", map[string]string{"email": "ada@example.com", "name": "  ada LOVELACE "}, http.StatusOK},
		{"email and phone", map[string]string{"email": "ada@example.com", "phone": "442079460018"}, http.StatusOK},
		{"wrong name", map[string]string{"email": "ada@example.com", "name": "Charles"}, http.StatusNotFound},
		{"email only", map[string]string{"email": "ada@example.com"}, http.StatusUnprocessableEntity},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := env.do(t, request{method: http.MethodPost, path: "/p/summit/registrations/check", body: tt.body})
			require.Equal(t, tt.wantStatus, rec.Code, rec.Body.String())
			if tt.wantStatus == http.StatusOK {
				regs, _ := decodeData[[]PublicRegistrationResponse](t, rec)
				require.Len(t, regs, 1)
				assert.NotEmpty(t, regs[0].Token)
			}
		})
	}
}
