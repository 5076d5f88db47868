// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package sections

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"github.com/olegiv/evsite-go/internal/model"
)

// Limits on editor input.
const (
	MaxSectionsPerPage = 50
	MaxItemsPerSection = 50
	MaxTextLength      = 500
	MaxBodyLength      = 20000
	MaxValueLength     = 5000
)

var fieldNameRegex = regexp.MustCompile(`^[a-z][a-z0-9_]{0,63}$`)

// reservedFieldNames are registration columns that form fields cannot shadow.
var reservedFieldNames = map[string]bool{
	"id":              true,
	"status":          true,
	"privacy_consent": true,
	"created_at":      true,
}

// Validate checks the page against its category's rules. Field errors are
// keyed by section id, e.g. "hero_1.image_url".
func (p Page) Validate() error {
	v := model.NewValidationError()

	if !model.IsValidCategory(p.Category) {
		v.Add("category", "Unknown category")
		return v
	}
	if len(p.Sections) > MaxSectionsPerPage {
		v.Add("sections", fmt.Sprintf("At most %d sections per page", MaxSectionsPerPage))
	}

	ids := make(map[string]bool, len(p.Sections))
	fieldNames := make(map[string]string)
	for _, s := range p.Sections {
		t, _, ok := ParseSectionID(s.ID)
		switch {
		case !ok:
			v.Add(s.ID, "Section id must look like <type>_<n>")
			continue
		case t != s.Type:
			v.Add(s.ID, "Section id does not match its type")
			continue
		case !IsAllowed(p.Category, s.Type):
			v.Add(s.ID, fmt.Sprintf("Section type %q is not allowed on the %s page", s.Type, p.Category))
			continue
		case ids[s.ID]:
			v.Add(s.ID, "Duplicate section id")
			continue
		}
		ids[s.ID] = true

		if s.payloadCount() != 1 || !s.hasPayload() {
			v.Add(s.ID, "Section must carry exactly the payload of its type")
			continue
		}
		validatePayload(v, s, fieldNames)
	}

	if err := ValidateOrder(p.Order, p.Sections); err != nil {
		v.Add("order", err.Error())
	}

	for name, value := range p.Values {
		if !IsValidValueName(name) {
			v.Add("values."+name, "Invalid value name")
		} else if len(value) > MaxValueLength {
			v.Add("values."+name, fmt.Sprintf("Must be at most %d characters", MaxValueLength))
		}
	}

	return v.OrNil()
}

func validatePayload(v *model.ValidationError, s Section, fieldNames map[string]string) {
	prefix := s.ID + "."
	switch s.Type {
	case TypeHero:
		checkText(v, prefix+"title", s.Hero.Title)
		checkText(v, prefix+"subtitle", s.Hero.Subtitle)
		checkLink(v, prefix+"image_url", s.Hero.ImageURL)
		if s.Hero.OverlayOpacity < 0 || s.Hero.OverlayOpacity > 1 {
			v.Add(prefix+"overlay_opacity", "Must be between 0 and 1")
		}
	case TypeDescription:
		checkText(v, prefix+"title", s.Description.Title)
		if len(s.Description.Body) > MaxBodyLength {
			v.Add(prefix+"body", fmt.Sprintf("Must be at most %d characters", MaxBodyLength))
		}
	case TypeCards:
		checkText(v, prefix+"title", s.Cards.Title)
		if s.Cards.Columns < 0 || s.Cards.Columns > 6 {
			v.Add(prefix+"columns", "Must be between 0 and 6")
		}
		checkCount(v, prefix+"cards", len(s.Cards.Cards))
		for i, c := range s.Cards.Cards {
			item := fmt.Sprintf("%scards.%d.", prefix, i)
			if strings.TrimSpace(c.Title) == "" {
				v.Add(item+"title", "Title is required")
			}
			checkText(v, item+"title", c.Title)
			checkText(v, item+"icon", c.Icon)
			if len(c.Text) > MaxBodyLength {
				v.Add(item+"text", fmt.Sprintf("Must be at most %d characters", MaxBodyLength))
			}
			checkLink(v, item+"link", c.Link)
		}
	case TypeButtons:
		checkCount(v, prefix+"buttons", len(s.Buttons.Buttons))
		for i, b := range s.Buttons.Buttons {
			item := fmt.Sprintf("%sbuttons.%d.", prefix, i)
			if strings.TrimSpace(b.Label) == "" {
				v.Add(item+"label", "Label is required")
			}
			checkText(v, item+"label", b.Label)
			if strings.TrimSpace(b.URL) == "" {
				v.Add(item+"url", "URL is required")
			}
			checkLink(v, item+"url", b.URL)
		}
	case TypeFields:
		checkText(v, prefix+"title", s.Fields.Title)
		checkCount(v, prefix+"fields", len(s.Fields.Fields))
		for i, f := range s.Fields.Fields {
			item := fmt.Sprintf("%sfields.%d.", prefix, i)
			if !fieldNameRegex.MatchString(f.Name) {
				v.Add(item+"name", "Name must be lowercase letters, digits and underscores")
			} else if reservedFieldNames[f.Name] {
				v.Add(item+"name", fmt.Sprintf("Name %q is reserved", f.Name))
			} else if owner, dup := fieldNames[f.Name]; dup {
				v.Add(item+"name", fmt.Sprintf("Field name already used in %s", owner))
			} else {
				fieldNames[f.Name] = s.ID
			}
			if strings.TrimSpace(f.Label) == "" {
				v.Add(item+"label", "Label is required")
			}
			checkText(v, item+"label", f.Label)
			if !IsValidFieldType(f.Type) {
				v.Add(item+"type", "Unknown field type")
			}
			if f.HasOptions() && len(f.Options) == 0 {
				v.Add(item+"options", "At least one option is required")
			}
			if f.MaxLength < 0 {
				v.Add(item+"max_length", "Must not be negative")
			}
		}
	case TypeTransport:
		checkText(v, prefix+"title", s.Transport.Title)
		checkCount(v, prefix+"cards", len(s.Transport.Cards))
		for i, c := range s.Transport.Cards {
			item := fmt.Sprintf("%scards.%d.", prefix, i)
			if strings.TrimSpace(c.Title) == "" {
				v.Add(item+"title", "Title is required")
			}
			checkText(v, item+"title", c.Title)
			if len(c.Description) > MaxBodyLength {
				v.Add(item+"description", fmt.Sprintf("Must be at most %d characters", MaxBodyLength))
			}
			checkLink(v, item+"link", c.Link)
		}
	}
}

func checkText(v *model.ValidationError, field, s string) {
	if len(s) > MaxTextLength {
		v.Add(field, fmt.Sprintf("Must be at most %d characters", MaxTextLength))
	}
}

func checkCount(v *model.ValidationError, field string, n int) {
	if n > MaxItemsPerSection {
		v.Add(field, fmt.Sprintf("At most %d items", MaxItemsPerSection))
	}
}

// checkLink accepts empty values, relative references and http(s), mailto or tel URLs.
func checkLink(v *model.ValidationError, field, link string) {
	if link == "" {
		return
	}
	if len(link) > 2048 {
		v.Add(field, "URL is too long")
		return
	}
	u, err := url.Parse(link)
	if err != nil {
		v.Add(field, "Invalid URL")
		return
	}
	switch u.Scheme {
	case "":
		if u.Host != "" {
			v.Add(field, "Protocol-relative URLs are not allowed")
		}
	case "http", "https":
		if u.Host == "" {
			v.Add(field, "URL must have a host")
		}
	case "mailto", "tel":
	default:
		v.Add(field, "Must be a relative path or an http(s), mailto or tel URL")
	}
}
