// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package service

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"image/png"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/olegiv/evsite-go/internal/cache"
	"github.com/olegiv/evsite-go/internal/model"
	"github.com/olegiv/evsite-go/internal/sections"
	"github.com/olegiv/evsite-go/internal/store"
	"github.com/olegiv/evsite-go/internal/testutil"
)

type registrationFixture struct {
	env      *testEnv
	settings *SettingsService
	svc      *RegistrationService
	owner    store.User
	project  store.Project
}

func newRegistrationFixture(t *testing.T) *registrationFixture {
	t.Helper()
	env := newTestEnv(t)
	settings := NewSettingsService(env.deps)
	owner := testutil.CreateUser(t, env.deps.DB, "")
	return &registrationFixture{
		env:      env,
		settings: settings,
		svc:      NewRegistrationService(env.deps, settings, "https://events.example.com/"),
		owner:    owner,
		project:  testutil.CreateProject(t, env.deps.DB, "expo", owner.ID),
	}
}

func (f *registrationFixture) submit(t *testing.T, values map[string]string) store.Registration {
	t.Helper()
	reg, err := f.svc.Submit(context.Background(), f.project, SubmitInput{Values: values, PrivacyConsent: true})
	require.NoError(t, err)
	return reg
}

func validValues() map[string]string {
	return map[string]string{
		"name":  "Ann Lee",
		"email": "Ann@Example.com",
		"phone": "+1 555 0100",
	}
}

func fieldErrors(t *testing.T, err error) map[string]string {
	t.Helper()
	var ve *model.ValidationError
	require.True(t, errors.As(err, &ve), "expected validation error, got %v", err)
	return ve.Fields
}

func TestRegistrationService_Submit(t *testing.T) {
	f := newRegistrationFixture(t)

	reg := f.submit(t, validValues())
	assert.Equal(t, "Ann Lee", reg.Name)
	assert.Equal(t, "ann@example.com", reg.Email)
	assert.Equal(t, model.RegistrationPending, reg.Status)
	assert.True(t, reg.PrivacyConsent)
	assert.Len(t, reg.VerificationToken, 36)
	assert.Equal(t, "Ann Lee", FormValues(reg)["name"])

	assert.Equal(t, []string{model.EventRegistrationCreated}, f.env.sender.types())
	changes := f.env.drain()
	require.Len(t, changes, 1)
	assert.Equal(t, "registrations", changes[0].Table)
	assert.Equal(t, f.project.ID, changes[0].ProjectID)
}

func TestRegistrationService_SubmitRejects(t *testing.T) {
	tests := []struct {
		name    string
		values  map[string]string
		consent bool
		fields  []string
	}{
		{"missing consent", validValues(), false, []string{FieldPrivacyConsent}},
		{"missing required", map[string]string{"phone": "1"}, true, []string{"name", "email"}},
		{"bad email", map[string]string{"name": "A", "email": "not-an-email"}, true, []string{"email"}},
		{"everything", map[string]string{}, false, []string{"name", "email", FieldPrivacyConsent}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newRegistrationFixture(t)
			_, err := f.svc.Submit(context.Background(), f.project, SubmitInput{Values: tt.values, PrivacyConsent: tt.consent})
			got := fieldErrors(t, err)
			for _, field := range tt.fields {
				assert.Contains(t, got, field)
			}
			assert.Len(t, got, len(tt.fields))
			assert.Empty(t, f.env.sender.types())
		})
	}
}

func TestRegistrationService_SubmitClosedOrInactive(t *testing.T) {
	f := newRegistrationFixture(t)
	ctx := context.Background()

	page := sections.Defaults(model.CategoryRegistration)
	page.Values[sections.ValueRegistrationOpen] = "false"
	_, err := f.settings.Save(ctx, f.project.ID, model.CategoryRegistration, page, f.owner.ID)
	require.NoError(t, err)

	_, err = f.svc.Submit(ctx, f.project, SubmitInput{Values: validValues(), PrivacyConsent: true})
	assert.ErrorIs(t, err, ErrRegistrationClosed)

	inactive := f.project
	inactive.IsActive = false
	_, err = f.svc.Submit(ctx, inactive, SubmitInput{Values: validValues(), PrivacyConsent: true})
	assert.ErrorIs(t, err, ErrProjectInactive)
}

func TestRegistrationService_ClosedDuringCachedLoad(t *testing.T) {
	f := newRegistrationFixture(t)
	ctx := context.Background()
	category := model.CategoryRegistration

	_, err := f.env.deps.Cache.Pages.GetOrLoad(ctx, cache.PageKey(f.project.ID, category), func(ctx context.Context) (sections.Page, error) {
		page, err := f.settings.load(ctx, f.project.ID, category)
		if err != nil {
			return page, err
		}
		// A save commits and invalidates after the rows were read.
		if err := store.New(f.env.deps.DB).UpsertSiteSetting(ctx, store.UpsertSiteSettingParams{
			ProjectID: f.project.ID,
			Category:  category,
			Key:       sections.ValueKey(category, sections.ValueRegistrationOpen),
			Value:     "false",
			UpdatedAt: time.Now(),
		}); err != nil {
			return page, err
		}
		f.env.deps.Cache.InvalidatePage(ctx, f.project.ID, category)
		return page, nil
	})
	require.NoError(t, err)

	page, err := f.settings.Load(ctx, f.project.ID, category)
	require.NoError(t, err)
	assert.False(t, page.BoolValue(sections.ValueRegistrationOpen, true))

	_, err = f.svc.Submit(ctx, f.project, SubmitInput{Values: validValues(), PrivacyConsent: true})
	assert.ErrorIs(t, err, ErrRegistrationClosed)
}

func TestRegistrationService_SubmitCustomFields(t *testing.T) {
	f := newRegistrationFixture(t)
	ctx := context.Background()

	page := sections.Defaults(model.CategoryRegistration)
	for i := range page.Sections {
		if page.Sections[i].Type == sections.TypeFields {
			page.Sections[i].Fields.Fields = append(page.Sections[i].Fields.Fields,
				sections.FormField{Name: "ticket", Label: "Ticket", Type: sections.FieldSelect, Required: true, Options: []string{"standard", "vip"}},
				sections.FormField{Name: "arrival", Label: "Arrival", Type: sections.FieldDate},
				sections.FormField{Name: "guests", Label: "Guests", Type: sections.FieldNumber},
				sections.FormField{Name: "terms", Label: "Terms", Type: sections.FieldCheckbox, Required: true},
			)
		}
	}
	_, err := f.settings.Save(ctx, f.project.ID, model.CategoryRegistration, page, f.owner.ID)
	require.NoError(t, err)

	values := validValues()
	values["ticket"] = "backstage"
	values["arrival"] = "2026-13-01"
	values["guests"] = "two"
	_, err = f.svc.Submit(ctx, f.project, SubmitInput{Values: values, PrivacyConsent: true})
	got := fieldErrors(t, err)
	assert.Contains(t, got, "ticket")
	assert.Contains(t, got, "arrival")
	assert.Contains(t, got, "guests")
	assert.Contains(t, got, "terms")

	values["ticket"] = "vip"
	values["arrival"] = "2026-05-01"
	values["guests"] = "2"
	values["terms"] = "on"
	values["ignored"] = "dropped"
	reg, err := f.svc.Submit(ctx, f.project, SubmitInput{Values: values, PrivacyConsent: true})
	require.NoError(t, err)

	data := FormValues(reg)
	assert.Equal(t, "vip", data["ticket"])
	assert.Equal(t, "true", data["terms"])
	assert.NotContains(t, data, "ignored")
}

func TestValidateForm_MaxLength(t *testing.T) {
	fields := []sections.FormField{
		{Name: "code", Label: "Code", Type: sections.FieldText, MaxLength: 3},
		{Name: "note", Label: "Note", Type: sections.FieldTextarea},
	}
	_, err := ValidateForm(fields, map[string]string{"code": "abcd", "note": strings.Repeat("x", DefaultFieldMaxLength+1)})
	got := fieldErrors(t, err)
	assert.Contains(t, got, "code")
	assert.Contains(t, got, "note")

	out, err := ValidateForm(fields, map[string]string{"code": " ab "})
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"code": "ab"}, out)
}

func TestRegistrationService_Check(t *testing.T) {
	f := newRegistrationFixture(t)
	ctx := context.Background()
	reg := f.submit(t, validValues())

	tests := []struct {
		name  string
		in    CheckInput
		found bool
	}{
		{"email and name", CheckInput{Email: "ANN@example.com", Name: "  ann   lee "}, true},
		{"email and phone", CheckInput{Email: "ann@example.com", Phone: "15550100"}, true},
		{"wrong name", CheckInput{Email: "ann@example.com", Name: "Bob"}, false},
		{"wrong email", CheckInput{Email: "bob@example.com", Name: "Ann Lee"}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := f.svc.Check(ctx, f.project, tt.in)
			if !tt.found {
				assert.ErrorIs(t, err, ErrNotFound)
				return
			}
			require.NoError(t, err)
			require.Len(t, got, 1)
			assert.Equal(t, reg.ID, got[0].ID)
		})
	}

	_, err := f.svc.Check(ctx, f.project, CheckInput{Email: "ann@example.com"})
	assert.Contains(t, fieldErrors(t, err), "name")
}

func TestRegistrationService_TokenFlow(t *testing.T) {
	f := newRegistrationFixture(t)
	ctx := context.Background()
	reg := f.submit(t, validValues())

	got, err := f.svc.GetByToken(ctx, f.project, reg.VerificationToken)
	require.NoError(t, err)
	assert.Equal(t, reg.ID, got.ID)

	_, err = f.svc.GetByToken(ctx, f.project, "not-a-token")
	assert.ErrorIs(t, err, ErrNotFound)

	other := testutil.CreateProject(t, f.env.deps.DB, "other", f.owner.ID)
	_, err = f.svc.GetByToken(ctx, other, reg.VerificationToken)
	assert.ErrorIs(t, err, ErrNotFound, "tokens are scoped to their project")

	assert.Equal(t,
		"https://events.example.com/expo/registration/verify?token="+reg.VerificationToken,
		f.svc.VerifyURL(f.project.Slug, reg.VerificationToken))

	img, err := f.svc.QRCode(ctx, f.project, reg.VerificationToken)
	require.NoError(t, err)
	decoded, err := png.Decode(bytes.NewReader(img))
	require.NoError(t, err)
	assert.Equal(t, QRSize, decoded.Bounds().Dx())

	cancelled, err := f.svc.CancelByToken(ctx, f.project, reg.VerificationToken)
	require.NoError(t, err)
	assert.Equal(t, model.RegistrationCancelled, cancelled.Status)
	assert.True(t, cancelled.CancelledAt.Valid)

	again, err := f.svc.CancelByToken(ctx, f.project, reg.VerificationToken)
	require.NoError(t, err)
	assert.Equal(t, model.RegistrationCancelled, again.Status)

	assert.Equal(t, []string{model.EventRegistrationCreated, model.EventRegistrationCancelled}, f.env.sender.types())
}

func TestRegistrationService_AdminOperations(t *testing.T) {
	f := newRegistrationFixture(t)
	ctx := context.Background()

	a := f.submit(t, validValues())
	f.submit(t, map[string]string{"name": "Bob Stone", "email": "bob@example.com", "organization": "Acme"})
	f.submit(t, map[string]string{"name": "Cleo Park", "email": "cleo@example.com"})

	items, total, err := f.svc.List(ctx, f.project.ID, RegistrationFilter{Search: "acme"})
	require.NoError(t, err)
	assert.EqualValues(t, 1, total)
	require.Len(t, items, 1)
	assert.Equal(t, "Bob Stone", items[0].Name)

	_, err = f.svc.UpdateStatus(ctx, f.project.ID, a.ID, "confirmed")
	assert.Contains(t, fieldErrors(t, err), "status")

	_, err = f.svc.UpdateStatus(ctx, f.project.ID, a.ID, model.RegistrationCancelled)
	require.NoError(t, err)

	items, total, err = f.svc.List(ctx, f.project.ID, RegistrationFilter{Status: model.RegistrationPending})
	require.NoError(t, err)
	assert.EqualValues(t, 2, total)
	assert.Len(t, items, 2)

	stats, err := f.svc.Stats(ctx, f.project.ID)
	require.NoError(t, err)
	assert.Equal(t, map[string]int64{model.RegistrationPending: 2, model.RegistrationCancelled: 1}, stats)

	other := testutil.CreateProject(t, f.env.deps.DB, "elsewhere", f.owner.ID)
	_, err = f.svc.Get(ctx, other.ID, a.ID)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, f.svc.Delete(ctx, other.ID, a.ID), ErrNotFound)

	require.NoError(t, f.svc.Delete(ctx, f.project.ID, a.ID))
	_, err = f.svc.Get(ctx, f.project.ID, a.ID)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Contains(t, f.env.sender.types(), model.EventRegistrationDeleted)
}

func TestRegistrationService_ExportCSV(t *testing.T) {
	f := newRegistrationFixture(t)
	f.submit(t, validValues())
	f.submit(t, map[string]string{"name": "=cmd()", "email": "eve@example.com"})

	var buf bytes.Buffer
	n, err := f.svc.ExportCSV(context.Background(), f.project.ID, &buf)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	records, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 3)
	assert.Equal(t, []string{"id", "status", "name", "email", "phone", "organization", "privacy_consent", "created_at"}, records[0])
	assert.Equal(t, "Ann Lee", records[1][2])
	assert.Equal(t, "'=cmd()", records[2][2])
}

func TestRegistrationService_Duplicates(t *testing.T) {
	f := newRegistrationFixture(t)
	first := f.submit(t, validValues())
	second := f.submit(t, map[string]string{"name": "ann  LEE", "email": "ann@example.com "})
	f.submit(t, map[string]string{"name": "Ann Lee", "email": "other@example.com"})

	groups, err := f.svc.Duplicates(context.Background(), f.project.ID, nil)
	require.NoError(t, err)
	require.Len(t, groups, 1)
	assert.Equal(t, "ann lee|ann@example.com", groups[0].Key)
	require.Len(t, groups[0].Registrations, 2)
	assert.Equal(t, first.ID, groups[0].Registrations[0].ID)
	assert.Equal(t, second.ID, groups[0].Registrations[1].ID)
}
