// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package sections

import (
	"github.com/olegiv/evsite-go/internal/model"
)

// Scalar value names with meaning to the backend.
const (
	ValueTitle            = "title"
	ValueRegistrationOpen = "open"
	ValuePrivacyText      = "privacy_text"
	ValueConfirmation     = "confirmation_text"
	ValueAddress          = "address"
	ValueMapURL           = "map_url"
)

// DefaultRegistrationFields is the form used until editors change it.
func DefaultRegistrationFields() []FormField {
	return []FormField{
		{Name: model.FieldName, Label: "Full name", Type: FieldText, Required: true, MaxLength: 200},
		{Name: model.FieldEmail, Label: "Email", Type: FieldEmail, Required: true, MaxLength: 254},
		{Name: model.FieldPhone, Label: "Phone", Type: FieldTel, MaxLength: 50},
		{Name: model.FieldOrganization, Label: "Organization", Type: FieldText, MaxLength: 200},
	}
}

// DefaultSection returns an empty, visible section of type t.
func DefaultSection(t SectionType, id string) Section {
	s := Section{ID: id, Type: t, Visible: true}
	switch t {
	case TypeHero:
		s.Hero = &Hero{OverlayOpacity: 0.4}
	case TypeDescription:
		s.Description = &Description{}
	case TypeCards:
		s.Cards = &CardGroup{Columns: 3, Cards: []Card{}}
	case TypeButtons:
		s.Buttons = &ButtonGroup{Align: "center", Buttons: []Button{}}
	case TypeFields:
		s.Fields = &FieldList{Fields: DefaultRegistrationFields()}
	case TypeTransport:
		s.Transport = &TransportGroup{Cards: []TransportCard{}}
	}
	return s
}

// Defaults returns the page a category shows before anything is saved.
func Defaults(category string) Page {
	page := Page{Category: category, Values: map[string]string{}, Sections: []Section{}}

	add := func(s Section) {
		s.Order = len(page.Sections)
		page.Sections = append(page.Sections, s)
		page.Order = append(page.Order, s.ID)
	}

	switch category {
	case model.CategoryHome:
		hero := DefaultSection(TypeHero, SectionID(TypeHero, 1))
		hero.Hero.Title = "Welcome"
		add(hero)
		add(DefaultSection(TypeDescription, SectionID(TypeDescription, 1)))
		buttons := DefaultSection(TypeButtons, SectionID(TypeButtons, 1))
		buttons.Buttons.Buttons = []Button{{Label: "Register", URL: "registration", Variant: "primary"}}
		add(buttons)
	case model.CategoryProgram:
		hero := DefaultSection(TypeHero, SectionID(TypeHero, 1))
		hero.Hero.Title = "Program"
		add(hero)
		add(DefaultSection(TypeCards, SectionID(TypeCards, 1)))
	case model.CategoryRegistration:
		desc := DefaultSection(TypeDescription, SectionID(TypeDescription, 1))
		desc.Description.Title = "Registration"
		add(desc)
		add(DefaultSection(TypeFields, SectionID(TypeFields, 1)))
		page.Values[ValueRegistrationOpen] = "true"
		page.Values[ValuePrivacyText] = "I agree to the processing of my personal data for this event."
		page.Values[ValueConfirmation] = "Thank you for registering."
	case model.CategoryLocation:
		desc := DefaultSection(TypeDescription, SectionID(TypeDescription, 1))
		desc.Description.Title = "Location"
		add(desc)
		add(DefaultSection(TypeTransport, SectionID(TypeTransport, 1)))
		page.Values[ValueAddress] = ""
		page.Values[ValueMapURL] = ""
	}

	if page.Order == nil {
		page.Order = []string{}
	}
	return page
}
