// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package components

import (
	"testing"
)

func TestMatchOrDefault(t *testing.T) {
	matcher := NewErrorPatternMatcher()

	// A recognized message takes the pattern's title and suggestions
	display := matcher.MatchOrDefault("Connection Issue", "connection refused")
	if display.title != "Connection Error" {
		t.Errorf("title = %q, want the pattern title", display.title)
	}
	if len(display.suggestions) == 0 {
		t.Error("matched display should carry suggestions")
	}

	// An unrecognized message keeps the caller's title, no suggestions
	display = matcher.MatchOrDefault("Custom Error", "something went wrong")
	if display.title != "Custom Error" {
		t.Errorf("title = %q, want the caller title", display.title)
	}
	if len(display.suggestions) != 0 {
		t.Error("unmatched display should carry no suggestions")
	}
}

func TestSmartError(t *testing.T) {
	if got := SmartError("Error", "dial tcp: connection refused"); len(got.suggestions) == 0 {
		t.Error("recognized message should get suggestions")
	}
	if got := SmartError("Error", "something unexpected happened"); len(got.suggestions) != 0 {
		t.Error("unrecognized message should get no suggestions")
	}
}

func TestMatchIsCaseInsensitive(t *testing.T) {
	matcher := NewErrorPatternMatcher()

	for _, msg := range []string{
		"CONNECTION REFUSED",
		"Connection Refused",
		"connection refused",
		"CoNnEcTiOn ReFuSeD",
	} {
		if matcher.Match(msg) == nil {
			t.Errorf("Match(%q) should hit the connection pattern", msg)
		}
	}
}

func TestMatchEmptyMessage(t *testing.T) {
	if NewErrorPatternMatcher().Match("") != nil {
		t.Error("empty message should not match anything")
	}
}

// Every pattern must be fully populated: the panel renders the title,
// suggestions, and pointers unconditionally once matched.
func TestDefaultPatternsComplete(t *testing.T) {
	for _, pattern := range defaultPatterns() {
		if len(pattern.Keywords) == 0 {
			t.Errorf("pattern %q has no keywords", pattern.Title)
		}
		if pattern.Title == "" || pattern.Category == "" {
			t.Errorf("pattern %+v missing title or category", pattern.Keywords)
		}
		if len(pattern.Suggestions) == 0 {
			t.Errorf("pattern %q has no suggestions", pattern.Title)
		}
		if pattern.DocsURL == "" || pattern.LogHint == "" {
			t.Errorf("pattern %q missing docs or log hint", pattern.Title)
		}
	}
}

func TestPlatformSuggestionsNonEmpty(t *testing.T) {
	if len(permissionSuggestions()) == 0 {
		t.Error("permission suggestions should not be empty")
	}
	if len(serverStartSuggestions()) == 0 {
		t.Error("server start suggestions should not be empty")
	}
}
