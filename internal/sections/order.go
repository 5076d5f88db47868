// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package sections

import (
	"cmp"
	"errors"
	"fmt"
	"slices"
)

// ErrInvalidOrder is returned when an order is not a permutation of the page's sections.
var ErrInvalidOrder = errors.New("invalid section order")

// NormalizeOrder repairs a stored order against the sections that exist:
// unknown and repeated ids are dropped and sections missing from the order
// are appended by their embedded order, then id.
func NormalizeOrder(order []string, sections []Section) []string {
	known := make(map[string]bool, len(sections))
	for _, s := range sections {
		known[s.ID] = true
	}

	result := make([]string, 0, len(sections))
	seen := make(map[string]bool, len(sections))
	for _, id := range order {
		if known[id] && !seen[id] {
			result = append(result, id)
			seen[id] = true
		}
	}

	var missing []Section
	for _, s := range sections {
		if !seen[s.ID] {
			missing = append(missing, s)
			seen[s.ID] = true
		}
	}
	slices.SortStableFunc(missing, func(a, b Section) int {
		if c := cmp.Compare(a.Order, b.Order); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})
	for _, s := range missing {
		result = append(result, s.ID)
	}
	return result
}

// ValidateOrder checks that order contains every section id exactly once.
func ValidateOrder(order []string, sections []Section) error {
	known := make(map[string]bool, len(sections))
	for _, s := range sections {
		known[s.ID] = true
	}

	seen := make(map[string]bool, len(order))
	for _, id := range order {
		if !known[id] {
			return fmt.Errorf("%w: unknown section %q", ErrInvalidOrder, id)
		}
		if seen[id] {
			return fmt.Errorf("%w: section %q appears more than once", ErrInvalidOrder, id)
		}
		seen[id] = true
	}
	if len(seen) != len(known) {
		for _, s := range sections {
			if !seen[s.ID] {
				return fmt.Errorf("%w: section %q is missing", ErrInvalidOrder, s.ID)
			}
		}
	}
	return nil
}

// Move returns a copy of order with the element at from spliced into position to.
func Move(order []string, from, to int) ([]string, error) {
	if from < 0 || from >= len(order) {
		return nil, fmt.Errorf("%w: source index %d out of range", ErrInvalidOrder, from)
	}
	if to < 0 || to >= len(order) {
		return nil, fmt.Errorf("%w: target index %d out of range", ErrInvalidOrder, to)
	}

	result := slices.Clone(order)
	id := result[from]
	result = slices.Delete(result, from, from+1)
	result = slices.Insert(result, to, id)
	return result, nil
}

// MoveID moves the section with the given id to position to.
func MoveID(order []string, id string, to int) ([]string, error) {
	from := slices.Index(order, id)
	if from < 0 {
		return nil, fmt.Errorf("%w: unknown section %q", ErrInvalidOrder, id)
	}
	return Move(order, from, to)
}
