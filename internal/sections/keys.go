// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package sections

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// orderKeyName is the per-category row holding the section id array.
const orderKeyName = "section_order"

var (
	sectionIDRegex = regexp.MustCompile(`^(hero|description|cards|buttons|fields|transport)_([1-9][0-9]{0,3})$`)
	valueNameRegex = regexp.MustCompile(`^[a-z][a-z0-9_]{0,63}$`)
)

// OrderKey returns the settings key of a category's section order.
func OrderKey(category string) string {
	return category + "_" + orderKeyName
}

// SectionKey returns the settings key of a section.
func SectionKey(category, id string) string {
	return category + "_" + id
}

// ValueKey returns the settings key of a scalar value.
func ValueKey(category, name string) string {
	return category + "_" + name
}

// SectionID builds a section id from its type and positional suffix.
func SectionID(t SectionType, n int) string {
	return fmt.Sprintf("%s_%d", t, n)
}

// ParseSectionID splits a section id into type and positional suffix.
func ParseSectionID(id string) (SectionType, int, bool) {
	m := sectionIDRegex.FindStringSubmatch(id)
	if m == nil {
		return "", 0, false
	}
	n, err := strconv.Atoi(m[2])
	if err != nil {
		return "", 0, false
	}
	return SectionType(m[1]), n, true
}

// NextSectionID returns the lowest unused id of type t.
func NextSectionID(t SectionType, existing []Section) string {
	used := make(map[string]bool, len(existing))
	for _, s := range existing {
		used[s.ID] = true
	}
	for n := 1; ; n++ {
		id := SectionID(t, n)
		if !used[id] {
			return id
		}
	}
}

// keyKind classifies a settings key within a category.
type keyKind int

const (
	kindForeign keyKind = iota
	kindOrder
	kindSection
	kindValue
)

// classifyKey buckets a settings key by its prefix.
func classifyKey(category, key string) (keyKind, string) {
	rest, ok := strings.CutPrefix(key, category+"_")
	if !ok || rest == "" {
		return kindForeign, ""
	}
	if rest == orderKeyName {
		return kindOrder, rest
	}
	if _, _, ok := ParseSectionID(rest); ok {
		return kindSection, rest
	}
	return kindValue, rest
}

// IsValidValueName reports whether name can be stored as a scalar value key.
func IsValidValueName(name string) bool {
	if !valueNameRegex.MatchString(name) || name == orderKeyName {
		return false
	}
	_, _, isSection := ParseSectionID(name)
	return !isSection
}
