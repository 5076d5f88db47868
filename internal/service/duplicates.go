// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package service

import (
	"sort"
	"strings"

	"github.com/olegiv/evsite-go/internal/model"
	"github.com/olegiv/evsite-go/internal/store"
	"github.com/olegiv/evsite-go/internal/util"
)

// DefaultDuplicateFields are compared when no fields are given.
var DefaultDuplicateFields = []string{model.FieldName, model.FieldEmail}

// DuplicateGroup is a set of registrations sharing a key.
type DuplicateGroup struct {
	Key           string               `json:"key"`
	Registrations []store.Registration `json:"registrations"`
}

// FindDuplicates groups regs by the normalized values of fields joined by
// "|". Registrations whose fields are all empty are skipped. Only groups of
// two or more are returned, largest first; ties keep first-seen order.
func FindDuplicates(regs []store.Registration, fields []string) []DuplicateGroup {
	if len(fields) == 0 {
		fields = DefaultDuplicateFields
	}

	index := make(map[string]int)
	var groups []DuplicateGroup
	parts := make([]string, len(fields))

	for _, reg := range regs {
		var extra map[string]string
		empty := true
		for i, f := range fields {
			val := coreValue(reg, f)
			if val == "" && !isCoreField(f) {
				if extra == nil {
					extra = FormValues(reg)
				}
				val = extra[f]
			}
			parts[i] = util.NormalizeText(val)
			if parts[i] != "" {
				empty = false
			}
		}
		if empty {
			continue
		}

		key := strings.Join(parts, "|")
		if i, ok := index[key]; ok {
			groups[i].Registrations = append(groups[i].Registrations, reg)
			continue
		}
		index[key] = len(groups)
		groups = append(groups, DuplicateGroup{Key: key, Registrations: []store.Registration{reg}})
	}

	out := groups[:0]
	for _, g := range groups {
		if len(g.Registrations) > 1 {
			out = append(out, g)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return len(out[i].Registrations) > len(out[j].Registrations)
	})
	return out
}

func isCoreField(f string) bool {
	switch f {
	case model.FieldName, model.FieldEmail, model.FieldPhone, model.FieldOrganization:
		return true
	}
	return false
}

func coreValue(reg store.Registration, field string) string {
	switch field {
	case model.FieldName:
		return reg.Name
	case model.FieldEmail:
		return reg.Email
	case model.FieldPhone:
		return reg.Phone
	case model.FieldOrganization:
		return reg.Organization
	}
	return ""
}
