// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package content

import (
	"bytes"
	"fmt"
	"math"
	"strings"

	"github.com/microcosm-cc/bluemonday"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/parser"
	"github.com/yuin/goldmark/renderer/html"
)

// WordsPerMinute is the reading speed used for ReadingTime.
const WordsPerMinute = 200

// Renderer turns markdown bodies into sanitized HTML.
type Renderer struct {
	md     goldmark.Markdown
	policy *bluemonday.Policy
}

// NewRenderer returns a GFM renderer whose output passes through the
// bluemonday UGC policy. Raw HTML in the source is kept and left to the
// policy, so imported HTML bodies render.
func NewRenderer() *Renderer {
	md := goldmark.New(
		goldmark.WithExtensions(extension.GFM, extension.Typographer),
		goldmark.WithParserOptions(parser.WithAutoHeadingID()),
		goldmark.WithRendererOptions(html.WithUnsafe()),
	)
	policy := bluemonday.UGCPolicy()
	policy.RequireNoFollowOnLinks(true)
	policy.AddTargetBlankToFullyQualifiedLinks(true)
	policy.AllowAttrs("id").OnElements("h1", "h2", "h3", "h4", "h5", "h6")
	return &Renderer{md: md, policy: policy}
}

// Render converts markdown to sanitized HTML. Empty input yields "".
func (r *Renderer) Render(markdown string) (string, error) {
	if strings.TrimSpace(markdown) == "" {
		return "", nil
	}
	var buf bytes.Buffer
	if err := r.md.Convert([]byte(markdown), &buf); err != nil {
		return "", fmt.Errorf("rendering markdown: %w", err)
	}
	return r.policy.Sanitize(buf.String()), nil
}

// SanitizeHTML cleans editor-supplied HTML, such as html company info
// values, with the same policy.
func (r *Renderer) SanitizeHTML(html string) string {
	return r.policy.Sanitize(html)
}

// ReadingTime estimates minutes to read markdown, at least 1.
func ReadingTime(markdown string) int {
	words := len(strings.Fields(markdown))
	if words == 0 {
		return 1
	}
	return max(1, int(math.Ceil(float64(words)/WordsPerMinute)))
}
