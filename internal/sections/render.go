// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package sections

import (
	"bytes"
	"slices"

	"github.com/microcosm-cc/bluemonday"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
)

// Renderer turns description markdown into sanitized HTML.
type Renderer struct {
	md     goldmark.Markdown
	policy *bluemonday.Policy
}

// NewRenderer creates a Renderer using GitHub-flavoured markdown and the UGC policy.
func NewRenderer() *Renderer {
	return &Renderer{
		md:     goldmark.New(goldmark.WithExtensions(extension.GFM)),
		policy: bluemonday.UGCPolicy(),
	}
}

// Markdown renders body to sanitized HTML.
func (r *Renderer) Markdown(body string) string {
	var buf bytes.Buffer
	if err := r.md.Convert([]byte(body), &buf); err != nil {
		return r.policy.Sanitize(body)
	}
	return r.policy.Sanitize(buf.String())
}

// Render returns a copy of p with BodyHTML filled for every description.
func (r *Renderer) Render(p Page) Page {
	out := p
	out.Sections = slices.Clone(p.Sections)
	for i, s := range out.Sections {
		if s.Type == TypeDescription && s.Description != nil {
			d := *s.Description
			d.BodyHTML = r.Markdown(d.Body)
			out.Sections[i].Description = &d
		}
	}
	return out
}
