// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package content

import (
	"context"
	"errors"
	"strings"
	"testing"
)

func TestSlugify(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"simple title", "Hello World", "hello-world"},
		{"with special characters", "Hello, World!", "hello-world"},
		{"with numbers", "Project 123", "project-123"},
		{"with accents", "Café résumé", "cafe-resume"},
		{"with multiple spaces", "Hello   World", "hello-world"},
		{"with hyphens", "Hello - World", "hello-world"},
		{"with leading/trailing spaces", "  Hello World  ", "hello-world"},
		{"tabs and newlines", "Hello\tnew\nWorld", "hello-new-world"},
		{"all special characters", "!@#$%^&*()", ""},
		{"german umlauts", "Über München", "uber-munchen"},
		{"cyrillic", "Привет мир", "privet-mir"},
		{"empty string", "", ""},
		{"mixed case", "HeLLo WoRLd", "hello-world"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Slugify(tt.input); got != tt.expected {
				t.Errorf("Slugify(%q) = %q, want %q", tt.input, got, tt.expected)
			}
		})
	}
}

func TestSlugify_Length(t *testing.T) {
	got := Slugify(strings.Repeat("word ", 100))
	if len(got) > MaxSlugLength {
		t.Errorf("len = %d, want <= %d", len(got), MaxSlugLength)
	}
	if strings.HasSuffix(got, "-") {
		t.Errorf("slug ends with hyphen: %q", got)
	}
}

func TestUniqueSlug(t *testing.T) {
	taken := map[string]bool{"launch": true, "launch-2": true}
	exists := func(_ context.Context, s string) (bool, error) { return taken[s], nil }

	got, err := UniqueSlug(context.Background(), "launch", exists)
	if err != nil || got != "launch-3" {
		t.Errorf("UniqueSlug = %q, %v; want launch-3", got, err)
	}

	got, _ = UniqueSlug(context.Background(), "fresh", exists)
	if got != "fresh" {
		t.Errorf("UniqueSlug(free) = %q", got)
	}

	boom := errors.New("db down")
	if _, err := UniqueSlug(context.Background(), "x", func(context.Context, string) (bool, error) { return false, boom }); !errors.Is(err, boom) {
		t.Errorf("error not propagated: %v", err)
	}
	if _, err := UniqueSlug(context.Background(), "", exists); err == nil {
		t.Error("empty base accepted")
	}
}

func TestRenderer_Render(t *testing.T) {
	r := NewRenderer()

	tests := []struct {
		name        string
		input       string
		contains    []string
		notContains []string
	}{
		{
			name:     "heading and emphasis",
			input:    "# Case study\n\nWe **shipped** it.",
			contains: []string{"<h1 id=\"case-study\">Case study</h1>", "<strong>shipped</strong>"},
		},
		{
			name:     "gfm table",
			input:    "| a | b |\n|---|---|\n| 1 | 2 |",
			contains: []string{"<table>", "<td>1</td>"},
		},
		{
			name:        "script stripped",
			input:       "hi <script>alert(1)</script>",
			notContains: []string{"<script", "alert(1)</script>"},
		},
		{
			name:        "raw html kept but cleaned",
			input:       "<p class=\"x\" onclick=\"evil()\">Legacy <em>post</em></p>",
			contains:    []string{"Legacy <em>post</em>"},
			notContains: []string{"onclick"},
		},
		{
			name:        "javascript link stripped",
			input:       "[x](javascript:alert(1))",
			notContains: []string{"javascript:"},
		},
		{
			name:     "external link nofollow",
			input:    "[site](https://example.com)",
			contains: []string{"nofollow", `target="_blank"`},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := r.Render(tt.input)
			if err != nil {
				t.Fatalf("Render: %v", err)
			}
			for _, s := range tt.contains {
				if !strings.Contains(got, s) {
					t.Errorf("output missing %q:\n%s", s, got)
				}
			}
			for _, s := range tt.notContains {
				if strings.Contains(got, s) {
					t.Errorf("output contains %q:\n%s", s, got)
				}
			}
		})
	}

	if got, _ := r.Render("   "); got != "" {
		t.Errorf("Render(blank) = %q", got)
	}
}

func TestSanitizeHTML(t *testing.T) {
	got := NewRenderer().SanitizeHTML(`<p onclick="x()">Hi <b>there</b></p><iframe src="x"></iframe>`)
	if strings.Contains(got, "onclick") || strings.Contains(got, "iframe") {
		t.Errorf("unsafe markup kept: %s", got)
	}
	if !strings.Contains(got, "<b>there</b>") {
		t.Errorf("safe markup dropped: %s", got)
	}
}

func TestReadingTime(t *testing.T) {
	tests := []struct {
		words int
		want  int
	}{
		{0, 1}, {1, 1}, {200, 1}, {201, 2}, {1000, 5},
	}
	for _, tt := range tests {
		if got := ReadingTime(strings.Repeat("w ", tt.words)); got != tt.want {
			t.Errorf("ReadingTime(%d words) = %d, want %d", tt.words, got, tt.want)
		}
	}
}
