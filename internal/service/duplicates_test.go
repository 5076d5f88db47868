// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/olegiv/evsite-go/internal/store"
)

func TestFindDuplicates(t *testing.T) {
	regs := []store.Registration{
		{ID: 1, Name: "Ann Lee", Email: "ann@example.com"},
		{ID: 2, Name: " ann lee", Email: "ANN@example.com"},
		{ID: 3, Name: "Bob", Email: "bob@example.com"},
		{ID: 4, Name: "bob", Email: "BOB@example.com"},
		{ID: 5, Name: "Bob", Email: "bob@example.com"},
		{ID: 6},
		{ID: 7},
		{ID: 8, Name: "Cleo", Email: "cleo@example.com"},
	}

	groups := FindDuplicates(regs, nil)
	require.Len(t, groups, 2)
	assert.Equal(t, "bob|bob@example.com", groups[0].Key, "largest group first")
	assert.Len(t, groups[0].Registrations, 3)
	assert.Equal(t, "ann lee|ann@example.com", groups[1].Key)
	assert.Len(t, groups[1].Registrations, 2)
}

func TestFindDuplicates_Fields(t *testing.T) {
	regs := []store.Registration{
		{ID: 1, Name: "A", Phone: "555", FormData: `{"company":"Acme"}`},
		{ID: 2, Name: "B", Phone: "555", FormData: `{"company":"acme "}`},
		{ID: 3, Name: "C", Phone: "", FormData: `{}`},
		{ID: 4, Name: "D", Phone: "", FormData: `{}`},
	}

	byPhone := FindDuplicates(regs, []string{"phone"})
	require.Len(t, byPhone, 1)
	assert.Equal(t, "555", byPhone[0].Key)

	byCompany := FindDuplicates(regs, []string{"company"})
	require.Len(t, byCompany, 1)
	assert.Equal(t, "acme", byCompany[0].Key)

	assert.Empty(t, FindDuplicates(regs, []string{"name"}))
	assert.Empty(t, FindDuplicates(nil, nil))
}
