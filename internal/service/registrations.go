// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/mail"
	"net/url"
	"slices"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/olegiv/evsite-go/internal/model"
	"github.com/olegiv/evsite-go/internal/realtime"
	"github.com/olegiv/evsite-go/internal/sections"
	"github.com/olegiv/evsite-go/internal/store"
	"github.com/olegiv/evsite-go/internal/util"
	"github.com/olegiv/evsite-go/internal/webhook"
)

// DefaultFieldMaxLength bounds form values when a field sets no MaxLength.
const DefaultFieldMaxLength = 1000

// FieldPrivacyConsent is the error key for a missing consent.
const FieldPrivacyConsent = "privacy_consent"

// DateLayout is the accepted format of date fields.
const DateLayout = "2006-01-02"

// SubmitInput is an attendee's registration form.
type SubmitInput struct {
	Values         map[string]string `json:"values"`
	PrivacyConsent bool              `json:"privacy_consent"`
	IP             string            `json:"-"`
	UserAgent      string            `json:"-"`
}

// CheckInput identifies an attendee looking up their registration.
type CheckInput struct {
	Email string `json:"email"`
	Name  string `json:"name"`
	Phone string `json:"phone"`
}

// RegistrationFilter selects registrations for List.
type RegistrationFilter struct {
	Status string
	Search string
	Limit  int
	Offset int
}

// RegistrationService handles attendee registrations.
type RegistrationService struct {
	base
	queries   *store.Queries
	settings  *SettingsService
	publicURL string
}

// NewRegistrationService creates a registration service. publicURL is the
// site base used in verification links.
func NewRegistrationService(d Deps, settings *SettingsService, publicURL string) *RegistrationService {
	return &RegistrationService{
		base:      newBase(d),
		queries:   store.New(d.DB),
		settings:  settings,
		publicURL: strings.TrimRight(publicURL, "/"),
	}
}

// Submit validates the form against the project's registration fields and
// stores the registration.
func (s *RegistrationService) Submit(ctx context.Context, project store.Project, in SubmitInput) (store.Registration, error) {
	if !project.IsActive {
		return store.Registration{}, ErrProjectInactive
	}
	// Read past the cache so a just-closed form takes effect at once.
	page, err := s.settings.load(ctx, project.ID, model.CategoryRegistration)
	if err != nil {
		return store.Registration{}, err
	}
	if !page.BoolValue(sections.ValueRegistrationOpen, true) {
		return store.Registration{}, ErrRegistrationClosed
	}

	fields := page.FormFields()
	if len(fields) == 0 {
		fields = sections.DefaultRegistrationFields()
	}
	values, err := ValidateForm(fields, in.Values)
	v := model.NewValidationError()
	var ve *model.ValidationError
	if errors.As(err, &ve) {
		v = ve
	} else if err != nil {
		return store.Registration{}, err
	}
	if !in.PrivacyConsent {
		v.Add(FieldPrivacyConsent, "consent is required")
	}
	if err := v.OrNil(); err != nil {
		return store.Registration{}, err
	}

	formData, err := json.Marshal(values)
	if err != nil {
		return store.Registration{}, fmt.Errorf("encoding form data: %w", err)
	}

	now := s.now()
	reg, err := s.queries.CreateRegistration(ctx, store.CreateRegistrationParams{
		ProjectID:         project.ID,
		Name:              values[model.FieldName],
		Email:             strings.ToLower(values[model.FieldEmail]),
		Phone:             values[model.FieldPhone],
		Organization:      values[model.FieldOrganization],
		FormData:          string(formData),
		PrivacyConsent:    true,
		Status:            model.RegistrationPending,
		VerificationToken: uuid.NewString(),
		IpAddress:         in.IP,
		UserAgent:         truncate(in.UserAgent, 500),
		CreatedAt:         now,
	})
	if err != nil {
		return store.Registration{}, fmt.Errorf("creating registration: %w", err)
	}

	s.Logger.Info("registration created", "project_id", project.ID, "registration_id", reg.ID)
	s.publish(ctx, realtime.TableRegistrations, project.ID, "", "create")
	s.dispatch(ctx, model.EventRegistrationCreated, project.ID, registrationEventData(reg))
	return reg, nil
}

// ValidateForm checks values against fields and returns the cleaned values
// of the known fields. Values for unknown fields are dropped.
func ValidateForm(fields []sections.FormField, values map[string]string) (map[string]string, error) {
	v := model.NewValidationError()
	out := make(map[string]string, len(fields))

	for _, f := range fields {
		val := strings.TrimSpace(values[f.Name])

		if f.Type == sections.FieldCheckbox {
			checked := isChecked(val)
			if f.Required && !checked {
				v.Add(f.Name, "must be checked")
				continue
			}
			out[f.Name] = strconv.FormatBool(checked)
			continue
		}

		if val == "" {
			if f.Required {
				v.Add(f.Name, "is required")
			}
			continue
		}

		limit := f.MaxLength
		if limit <= 0 {
			limit = DefaultFieldMaxLength
		}
		if utf8.RuneCountInString(val) > limit {
			v.Add(f.Name, fmt.Sprintf("must be at most %d characters", limit))
			continue
		}

		switch f.Type {
		case sections.FieldEmail:
			addr, err := mail.ParseAddress(val)
			if err != nil || addr.Address != val {
				v.Add(f.Name, "must be a valid email address")
				continue
			}
		case sections.FieldNumber:
			if _, err := strconv.ParseFloat(val, 64); err != nil {
				v.Add(f.Name, "must be a number")
				continue
			}
		case sections.FieldDate:
			if _, err := time.Parse(DateLayout, val); err != nil {
				v.Add(f.Name, "must be a date (YYYY-MM-DD)")
				continue
			}
		case sections.FieldSelect, sections.FieldRadio:
			if !slices.Contains(f.Options, val) {
				v.Add(f.Name, "must be one of the listed options")
				continue
			}
		}
		out[f.Name] = val
	}

	if err := v.OrNil(); err != nil {
		return nil, err
	}
	return out, nil
}

func isChecked(v string) bool {
	switch strings.ToLower(v) {
	case "1", "true", "on", "yes":
		return true
	}
	return false
}

// Check finds the registrations of an attendee by email plus name or phone.
func (s *RegistrationService) Check(ctx context.Context, project store.Project, in CheckInput) ([]store.Registration, error) {
	v := model.NewValidationError()
	email := strings.TrimSpace(in.Email)
	if email == "" {
		v.Add("email", "is required")
	}
	name := util.NormalizeText(in.Name)
	phone := digits(in.Phone)
	if name == "" && phone == "" {
		v.Add("name", "name or phone is required")
	}
	if err := v.OrNil(); err != nil {
		return nil, err
	}

	candidates, err := s.queries.FindRegistrationsByEmail(ctx, store.FindRegistrationsByEmailParams{
		ProjectID: project.ID,
		Email:     email,
	})
	if err != nil {
		return nil, fmt.Errorf("finding registrations: %w", err)
	}

	var matches []store.Registration
	for _, r := range candidates {
		if (name != "" && util.NormalizeText(r.Name) == name) || (phone != "" && digits(r.Phone) == phone) {
			matches = append(matches, r)
		}
	}
	if len(matches) == 0 {
		return nil, ErrNotFound
	}
	return matches, nil
}

func digits(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// GetByToken returns the registration with a verification token.
func (s *RegistrationService) GetByToken(ctx context.Context, project store.Project, token string) (store.Registration, error) {
	if _, err := uuid.Parse(token); err != nil {
		return store.Registration{}, ErrNotFound
	}
	reg, err := s.queries.GetRegistrationByToken(ctx, token)
	if err != nil {
		return store.Registration{}, notFound(err)
	}
	if reg.ProjectID != project.ID {
		return store.Registration{}, ErrNotFound
	}
	return reg, nil
}

// CancelByToken cancels a registration by its token. Cancelling twice is a no-op.
func (s *RegistrationService) CancelByToken(ctx context.Context, project store.Project, token string) (store.Registration, error) {
	reg, err := s.GetByToken(ctx, project, token)
	if err != nil {
		return store.Registration{}, err
	}
	if reg.Status == model.RegistrationCancelled {
		return reg, nil
	}
	return s.setStatus(ctx, reg, model.RegistrationCancelled)
}

// VerifyURL is the public verification page of a registration, encoded in its QR code.
func (s *RegistrationService) VerifyURL(projectSlug, token string) string {
	return fmt.Sprintf("%s/%s/registration/verify?token=%s", s.publicURL, url.PathEscape(projectSlug), url.QueryEscape(token))
}

// List returns a page of registrations and the total matching count.
func (s *RegistrationService) List(ctx context.Context, projectID int64, f RegistrationFilter) ([]store.Registration, int64, error) {
	if f.Status != "" && !model.IsValidRegistrationStatus(f.Status) {
		v := model.NewValidationError()
		v.Add("status", "must be pending or cancelled")
		return nil, 0, v
	}
	limit, offset := clampPage(f.Limit, f.Offset)
	search := strings.TrimSpace(f.Search)
	items, err := s.queries.ListRegistrations(ctx, store.ListRegistrationsParams{
		ProjectID: projectID,
		Status:    f.Status,
		Search:    search,
		Limit:     limit,
		Offset:    offset,
	})
	if err != nil {
		return nil, 0, fmt.Errorf("listing registrations: %w", err)
	}
	total, err := s.queries.CountRegistrations(ctx, store.CountRegistrationsParams{
		ProjectID: projectID,
		Status:    f.Status,
		Search:    search,
	})
	if err != nil {
		return nil, 0, fmt.Errorf("counting registrations: %w", err)
	}
	return items, total, nil
}

// Stats counts the registrations of a project by status.
func (s *RegistrationService) Stats(ctx context.Context, projectID int64) (map[string]int64, error) {
	rows, err := s.queries.CountRegistrationsByStatus(ctx, projectID)
	if err != nil {
		return nil, err
	}
	out := map[string]int64{model.RegistrationPending: 0, model.RegistrationCancelled: 0}
	for _, r := range rows {
		out[r.Status] = r.Count
	}
	return out, nil
}

// Get returns a registration of the project.
func (s *RegistrationService) Get(ctx context.Context, projectID, id int64) (store.Registration, error) {
	reg, err := s.queries.GetRegistration(ctx, id)
	if err != nil {
		return store.Registration{}, notFound(err)
	}
	if reg.ProjectID != projectID {
		return store.Registration{}, ErrNotFound
	}
	return reg, nil
}

// UpdateStatus sets the status of a registration.
func (s *RegistrationService) UpdateStatus(ctx context.Context, projectID, id int64, status string) (store.Registration, error) {
	if !model.IsValidRegistrationStatus(status) {
		v := model.NewValidationError()
		v.Add("status", "must be pending or cancelled")
		return store.Registration{}, v
	}
	reg, err := s.Get(ctx, projectID, id)
	if err != nil {
		return store.Registration{}, err
	}
	if reg.Status == status {
		return reg, nil
	}
	return s.setStatus(ctx, reg, status)
}

func (s *RegistrationService) setStatus(ctx context.Context, reg store.Registration, status string) (store.Registration, error) {
	now := s.now()
	params := store.UpdateRegistrationStatusParams{Status: status, UpdatedAt: now, ID: reg.ID}
	if status == model.RegistrationCancelled {
		params.CancelledAt = util.NullTimeFromValue(now)
	}
	updated, err := s.queries.UpdateRegistrationStatus(ctx, params)
	if err != nil {
		return store.Registration{}, fmt.Errorf("updating registration: %w", err)
	}

	s.Logger.Info("registration status changed", "project_id", reg.ProjectID, "registration_id", reg.ID, "status", status)
	s.publish(ctx, realtime.TableRegistrations, reg.ProjectID, "", "update")
	if status == model.RegistrationCancelled {
		s.dispatch(ctx, model.EventRegistrationCancelled, reg.ProjectID, registrationEventData(updated))
	}
	return updated, nil
}

// Delete removes a registration of the project.
func (s *RegistrationService) Delete(ctx context.Context, projectID, id int64) error {
	reg, err := s.Get(ctx, projectID, id)
	if err != nil {
		return err
	}
	if err := s.queries.DeleteRegistration(ctx, id); err != nil {
		return fmt.Errorf("deleting registration: %w", err)
	}
	s.Logger.Info("registration deleted", "project_id", projectID, "registration_id", id)
	s.publish(ctx, realtime.TableRegistrations, projectID, "", "delete")
	s.dispatch(ctx, model.EventRegistrationDeleted, projectID, registrationEventData(reg))
	return nil
}

// Duplicates groups the project's registrations by the normalized values of
// fields. Nil fields default to name and email.
func (s *RegistrationService) Duplicates(ctx context.Context, projectID int64, fields []string) ([]DuplicateGroup, error) {
	regs, err := s.queries.ListProjectRegistrations(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("loading registrations: %w", err)
	}
	return FindDuplicates(regs, fields), nil
}

// FormValues decodes the stored form data of a registration.
func FormValues(reg store.Registration) map[string]string {
	values := map[string]string{}
	if reg.FormData == "" {
		return values
	}
	var raw map[string]any
	if err := json.Unmarshal([]byte(reg.FormData), &raw); err != nil {
		return values
	}
	for k, v := range raw {
		switch t := v.(type) {
		case string:
			values[k] = t
		case nil:
		default:
			values[k] = fmt.Sprint(t)
		}
	}
	return values
}

func registrationEventData(reg store.Registration) webhook.RegistrationEventData {
	return webhook.RegistrationEventData{
		ID:           reg.ID,
		Name:         reg.Name,
		Email:        reg.Email,
		Phone:        reg.Phone,
		Organization: reg.Organization,
		Status:       reg.Status,
		FormData:     FormValues(reg),
		Client:       ParseClient(reg.UserAgent),
		CreatedAt:    reg.CreatedAt,
	}
}

func truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n])
}
