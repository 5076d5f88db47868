// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package model

// Registration statuses
const (
	RegistrationPending   = "pending"
	RegistrationCancelled = "cancelled"
)

// IsValidRegistrationStatus reports whether status is a known registration status.
func IsValidRegistrationStatus(status string) bool {
	return status == RegistrationPending || status == RegistrationCancelled
}

// Core registration fields are copied out of form data into their own columns.
const (
	FieldName         = "name"
	FieldEmail        = "email"
	FieldPhone        = "phone"
	FieldOrganization = "organization"
)

// CoreRegistrationFields lists the form field names stored as columns.
var CoreRegistrationFields = []string{FieldName, FieldEmail, FieldPhone, FieldOrganization}

// Setting categories, one per public page.
const (
	CategoryHome         = "home"
	CategoryProgram      = "program"
	CategoryRegistration = "registration"
	CategoryLocation     = "location"
)

// Categories lists every setting category in page order.
var Categories = []string{CategoryHome, CategoryProgram, CategoryRegistration, CategoryLocation}

// IsValidCategory reports whether c is a known setting category.
func IsValidCategory(c string) bool {
	for _, cat := range Categories {
		if cat == c {
			return true
		}
	}
	return false
}
