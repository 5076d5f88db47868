// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package service

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/olegiv/evsite-go/internal/model"
	"github.com/olegiv/evsite-go/internal/store"
)

// ExportCSV writes every registration of a project as CSV. Form fields
// beyond the core columns get a column each, sorted by name.
func (s *RegistrationService) ExportCSV(ctx context.Context, projectID int64, w io.Writer) (int, error) {
	regs, err := s.queries.ListProjectRegistrations(ctx, projectID)
	if err != nil {
		return 0, fmt.Errorf("loading registrations: %w", err)
	}
	if err := WriteRegistrationsCSV(w, regs); err != nil {
		return 0, err
	}
	s.Logger.Info("registrations exported", "project_id", projectID, "count", len(regs))
	return len(regs), nil
}

// WriteRegistrationsCSV encodes regs as CSV with a header row.
func WriteRegistrationsCSV(w io.Writer, regs []store.Registration) error {
	values := make([]map[string]string, len(regs))
	seen := map[string]bool{}
	var extra []string
	for i, r := range regs {
		values[i] = FormValues(r)
		for k := range values[i] {
			if !isCoreField(k) && !seen[k] {
				seen[k] = true
				extra = append(extra, k)
			}
		}
	}
	slices.Sort(extra)

	header := append([]string{"id", "status"}, model.CoreRegistrationFields...)
	header = append(header, extra...)
	header = append(header, "privacy_consent", "created_at")

	cw := csv.NewWriter(w)
	if err := cw.Write(header); err != nil {
		return err
	}
	for i, r := range regs {
		row := []string{
			strconv.FormatInt(r.ID, 10),
			r.Status,
			csvCell(r.Name),
			csvCell(r.Email),
			csvCell(r.Phone),
			csvCell(r.Organization),
		}
		for _, k := range extra {
			row = append(row, csvCell(values[i][k]))
		}
		row = append(row, strconv.FormatBool(r.PrivacyConsent), r.CreatedAt.UTC().Format(time.RFC3339))
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// csvCell neutralizes values a spreadsheet would evaluate as a formula.
func csvCell(v string) string {
	if v != "" && strings.ContainsRune("=+-@\t\r", rune(v[0])) {
		return "'" + v
	}
	return v
}
