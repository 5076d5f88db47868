// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package sections

import (
	"encoding/json"
	"fmt"
	"maps"
	"slices"
	"strconv"
	"strings"
)

// Row is one stored setting of a category.
type Row struct {
	Key         string
	Value       string
	Description string
}

// Page is the decoded content of one category.
type Page struct {
	Category string            `json:"category"`
	Order    []string          `json:"order"`
	Sections []Section         `json:"sections"`
	Values   map[string]string `json:"values"`
	// Fallbacks lists stored keys that could not be used as-is.
	Fallbacks []string `json:"fallbacks,omitempty"`
}

// Section returns the section with the given id.
func (p Page) Section(id string) (Section, bool) {
	for _, s := range p.Sections {
		if s.ID == id {
			return s, true
		}
	}
	return Section{}, false
}

// Value returns a scalar value or def when unset.
func (p Page) Value(name, def string) string {
	if v, ok := p.Values[name]; ok {
		return v
	}
	return def
}

// BoolValue parses a scalar value as a boolean, returning def when unset or invalid.
func (p Page) BoolValue(name string, def bool) bool {
	v, ok := p.Values[name]
	if !ok {
		return def
	}
	b, err := strconv.ParseBool(strings.TrimSpace(v))
	if err != nil {
		return def
	}
	return b
}

// FormFields returns the fields of all visible field sections in page order.
func (p Page) FormFields() []FormField {
	var fields []FormField
	for _, s := range p.Sections {
		if s.Type == TypeFields && s.Visible && s.Fields != nil {
			fields = append(fields, s.Fields.Fields...)
		}
	}
	return fields
}

// Public returns a copy without hidden sections and without fallback details.
func (p Page) Public() Page {
	out := Page{Category: p.Category, Values: maps.Clone(p.Values)}
	for _, s := range p.Sections {
		if s.Visible {
			out.Sections = append(out.Sections, s)
			out.Order = append(out.Order, s.ID)
		}
	}
	if out.Order == nil {
		out.Order = []string{}
		out.Sections = []Section{}
	}
	if out.Values == nil {
		out.Values = map[string]string{}
	}
	return out
}

// sortByOrder arranges p.Sections to follow p.Order.
func (p *Page) sortByOrder() {
	pos := make(map[string]int, len(p.Order))
	for i, id := range p.Order {
		pos[id] = i
	}
	slices.SortStableFunc(p.Sections, func(a, b Section) int {
		return pos[a.ID] - pos[b.ID]
	})
	for i := range p.Sections {
		p.Sections[i].Order = pos[p.Sections[i].ID]
	}
}

// Decode builds a page from the stored rows of a category. Sections that fail
// to parse fall back to their type's default, an unreadable order is rebuilt
// from embedded order fields, and a category without rows yields Defaults.
func Decode(category string, rows []Row) Page {
	if len(rows) == 0 {
		return Defaults(category)
	}

	page := Page{Category: category, Values: map[string]string{}}
	var storedOrder []string

	for _, row := range rows {
		kind, name := classifyKey(category, row.Key)
		switch kind {
		case kindOrder:
			if err := json.Unmarshal([]byte(row.Value), &storedOrder); err != nil {
				storedOrder = nil
				page.Fallbacks = append(page.Fallbacks, row.Key)
			}
		case kindSection:
			t, _, _ := ParseSectionID(name)
			if !IsAllowed(category, t) {
				page.Fallbacks = append(page.Fallbacks, row.Key)
				continue
			}
			s, ok := decodeSection(name, t, row.Value)
			if !ok {
				page.Fallbacks = append(page.Fallbacks, row.Key)
			}
			page.Sections = append(page.Sections, s)
		case kindValue:
			page.Values[name] = row.Value
		default:
			page.Fallbacks = append(page.Fallbacks, row.Key)
		}
	}

	page.Order = NormalizeOrder(storedOrder, page.Sections)
	page.sortByOrder()
	if page.Sections == nil {
		page.Sections = []Section{}
	}
	return page
}

// decodeSection parses one stored section. The key decides id and type; the
// stored JSON cannot override them.
func decodeSection(id string, t SectionType, raw string) (Section, bool) {
	var s Section
	if err := json.Unmarshal([]byte(raw), &s); err != nil {
		def := DefaultSection(t, id)
		def.Order = 1 << 30
		return def, false
	}
	s.ID = id
	s.Type = t
	s.clearPayloads()
	if !s.hasPayload() {
		def := DefaultSection(t, id)
		def.Order = s.Order
		def.Visible = s.Visible
		return def, false
	}
	return s, true
}

// Encode flattens a page into rows. Each section's Order is rewritten to its
// index in p.Order; callers validate the page first.
func Encode(p Page) ([]Row, error) {
	pos := make(map[string]int, len(p.Order))
	for i, id := range p.Order {
		pos[id] = i
	}

	orderJSON, err := json.Marshal(p.Order)
	if err != nil {
		return nil, fmt.Errorf("encoding section order: %w", err)
	}
	rows := []Row{{
		Key:         OrderKey(p.Category),
		Value:       string(orderJSON),
		Description: "Section order",
	}}

	for _, s := range p.Sections {
		s.Order = pos[s.ID]
		s.clearPayloads()
		if s.Description != nil {
			d := *s.Description
			d.BodyHTML = ""
			s.Description = &d
		}
		data, err := json.Marshal(s)
		if err != nil {
			return nil, fmt.Errorf("encoding section %s: %w", s.ID, err)
		}
		rows = append(rows, Row{
			Key:         SectionKey(p.Category, s.ID),
			Value:       string(data),
			Description: string(s.Type) + " section",
		})
	}

	for _, name := range slices.Sorted(maps.Keys(p.Values)) {
		rows = append(rows, Row{Key: ValueKey(p.Category, name), Value: p.Values[name]})
	}

	return rows, nil
}
