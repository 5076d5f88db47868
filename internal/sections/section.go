// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

// Package sections implements the page builder model: typed section
// payloads, the key scheme that maps a page onto site_settings rows, and
// the section-order operations used when editors reorder a page.
package sections

import (
	"slices"

	"github.com/olegiv/evsite-go/internal/model"
)

// SectionType identifies the payload a section carries.
type SectionType string

const (
	TypeHero        SectionType = "hero"
	TypeDescription SectionType = "description"
	TypeCards       SectionType = "cards"
	TypeButtons     SectionType = "buttons"
	TypeFields      SectionType = "fields"
	TypeTransport   SectionType = "transport"
)

// AllTypes lists every section type.
var AllTypes = []SectionType{TypeHero, TypeDescription, TypeCards, TypeButtons, TypeFields, TypeTransport}

// allowedTypes maps each category to the section types its page may hold.
var allowedTypes = map[string][]SectionType{
	model.CategoryHome:         {TypeHero, TypeDescription, TypeCards, TypeButtons},
	model.CategoryProgram:      {TypeHero, TypeDescription, TypeCards, TypeButtons},
	model.CategoryRegistration: {TypeHero, TypeDescription, TypeFields, TypeButtons},
	model.CategoryLocation:     {TypeHero, TypeDescription, TypeTransport, TypeButtons},
}

// AllowedTypes returns the section types permitted in category.
func AllowedTypes(category string) []SectionType {
	return slices.Clone(allowedTypes[category])
}

// IsAllowed reports whether t may appear on the category's page.
func IsAllowed(category string, t SectionType) bool {
	return slices.Contains(allowedTypes[category], t)
}

// Hero is a full-width image banner.
type Hero struct {
	ImageURL       string  `json:"image_url"`
	Title          string  `json:"title"`
	Subtitle       string  `json:"subtitle"`
	OverlayOpacity float64 `json:"overlay_opacity"`
}

// Description is a markdown text card.
type Description struct {
	Title    string `json:"title"`
	Body     string `json:"body"`
	BodyHTML string `json:"body_html,omitempty"`
}

// Card is one tile of an icon-card grid.
type Card struct {
	Icon  string `json:"icon"`
	Title string `json:"title"`
	Text  string `json:"text"`
	Link  string `json:"link,omitempty"`
}

// CardGroup is an icon-card grid.
type CardGroup struct {
	Title   string `json:"title"`
	Columns int    `json:"columns"`
	Cards   []Card `json:"cards"`
}

// Button is a call-to-action link.
type Button struct {
	Label   string `json:"label"`
	URL     string `json:"url"`
	Variant string `json:"variant"`
}

// ButtonGroup is a row of buttons.
type ButtonGroup struct {
	Align   string   `json:"align"`
	Buttons []Button `json:"buttons"`
}

// Form field input types.
const (
	FieldText     = "text"
	FieldEmail    = "email"
	FieldTel      = "tel"
	FieldNumber   = "number"
	FieldDate     = "date"
	FieldTextarea = "textarea"
	FieldSelect   = "select"
	FieldRadio    = "radio"
	FieldCheckbox = "checkbox"
)

var fieldTypes = []string{
	FieldText, FieldEmail, FieldTel, FieldNumber, FieldDate,
	FieldTextarea, FieldSelect, FieldRadio, FieldCheckbox,
}

// IsValidFieldType reports whether t is a supported input type.
func IsValidFieldType(t string) bool {
	return slices.Contains(fieldTypes, t)
}

// FormField describes one registration form input.
type FormField struct {
	Name        string   `json:"name"`
	Label       string   `json:"label"`
	Type        string   `json:"type"`
	Required    bool     `json:"required"`
	Placeholder string   `json:"placeholder,omitempty"`
	HelpText    string   `json:"help_text,omitempty"`
	Options     []string `json:"options,omitempty"`
	MaxLength   int      `json:"max_length,omitempty"`
}

// HasOptions reports whether the field's value is chosen from Options.
func (f FormField) HasOptions() bool {
	return f.Type == FieldSelect || f.Type == FieldRadio
}

// FieldList is a block of registration form fields.
type FieldList struct {
	Title  string      `json:"title"`
	Fields []FormField `json:"fields"`
}

// TransportCard describes one way of getting to the venue.
type TransportCard struct {
	Mode        string `json:"mode"`
	Title       string `json:"title"`
	Description string `json:"description"`
	Duration    string `json:"duration,omitempty"`
	Link        string `json:"link,omitempty"`
}

// TransportGroup is a list of transport cards.
type TransportGroup struct {
	Title string          `json:"title"`
	Cards []TransportCard `json:"cards"`
}

// Section is one block on a page. Exactly one payload pointer, the one
// matching Type, is set.
type Section struct {
	ID      string      `json:"id"`
	Type    SectionType `json:"type"`
	Order   int         `json:"order"`
	Visible bool        `json:"visible"`

	Hero        *Hero           `json:"hero,omitempty"`
	Description *Description    `json:"description,omitempty"`
	Cards       *CardGroup      `json:"cards,omitempty"`
	Buttons     *ButtonGroup    `json:"buttons,omitempty"`
	Fields      *FieldList      `json:"fields,omitempty"`
	Transport   *TransportGroup `json:"transport,omitempty"`
}

// payloadCount returns how many payload pointers are set.
func (s Section) payloadCount() int {
	n := 0
	for _, set := range []bool{
		s.Hero != nil, s.Description != nil, s.Cards != nil,
		s.Buttons != nil, s.Fields != nil, s.Transport != nil,
	} {
		if set {
			n++
		}
	}
	return n
}

// hasPayload reports whether the payload matching Type is set.
func (s Section) hasPayload() bool {
	switch s.Type {
	case TypeHero:
		return s.Hero != nil
	case TypeDescription:
		return s.Description != nil
	case TypeCards:
		return s.Cards != nil
	case TypeButtons:
		return s.Buttons != nil
	case TypeFields:
		return s.Fields != nil
	case TypeTransport:
		return s.Transport != nil
	}
	return false
}

// clearPayloads drops every payload that does not match Type.
func (s *Section) clearPayloads() {
	if s.Type != TypeHero {
		s.Hero = nil
	}
	if s.Type != TypeDescription {
		s.Description = nil
	}
	if s.Type != TypeCards {
		s.Cards = nil
	}
	if s.Type != TypeButtons {
		s.Buttons = nil
	}
	if s.Type != TypeFields {
		s.Fields = nil
	}
	if s.Type != TypeTransport {
		s.Transport = nil
	}
}
