// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package components

import (
	"errors"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
)

func TestErrorPatternMatching(t *testing.T) {
	matcher := NewErrorPatternMatcher()

	cases := []struct {
		errMsg    string
		wantMatch bool
		wantCat   ErrorCategory
	}{
		{"cannot connect to the server", true, CategoryNetwork},
		{"model not found", true, CategoryModel},
		{"context exceeded", true, CategoryContext},
		{"request timeout", true, CategoryTimeout},
		{"invalid api key", true, CategoryAuth},
		{"permission denied", true, CategoryAuth},
		{"unsupported parameter: reasoning_effort", true, CategoryRequest},
		{"out of disk space", true, CategoryResource},
		{"parse error", true, CategoryParse},
		{"no response received", true, CategoryModel},
		{"some random error", false, CategoryUnknown},
	}

	for _, tc := range cases {
		t.Run(tc.errMsg, func(t *testing.T) {
			display := matcher.Match(tc.errMsg)
			if !tc.wantMatch {
				if display != nil {
					t.Fatalf("unexpected match: %+v", display)
				}
				return
			}
			if display == nil {
				t.Fatalf("no match for %q", tc.errMsg)
			}
			if display.category != tc.wantCat {
				t.Errorf("category = %s, want %s", display.category, tc.wantCat)
			}
			if display.title == "" || display.message == "" {
				t.Error("matched display should carry title and message")
			}
			if len(display.suggestions) == 0 {
				t.Error("matched display should carry suggestions")
			}
		})
	}
}

// The most specific pattern must win when several keywords overlap.
func TestErrorPatternPriority(t *testing.T) {
	matcher := NewErrorPatternMatcher()

	display := matcher.Match("cannot reach server: connection refused")
	if display == nil {
		t.Fatal("expected a match")
	}
	if display.title != "Server Not Reachable" {
		t.Errorf("title = %q, want %q", display.title, "Server Not Reachable")
	}

	display = matcher.Match("connection refused to unknown host")
	if display == nil {
		t.Fatal("expected a match")
	}
	if display.title != "Connection Error" {
		t.Errorf("title = %q, want %q", display.title, "Connection Error")
	}
}

func TestNewEnhancedError(t *testing.T) {
	pattern := ErrorPattern{
		Keywords:    []string{"test"},
		Category:    CategoryNetwork,
		Title:       "Test Error",
		Suggestions: []string{"Suggestion 1", "Suggestion 2"},
		DocsURL:     "https://example.com/docs",
		LogHint:     "Check logs for details",
	}

	display := NewEnhancedError(pattern, "test error message")

	if display.category != CategoryNetwork {
		t.Errorf("category = %s, want %s", display.category, CategoryNetwork)
	}
	if display.title != "Test Error" {
		t.Errorf("title = %q", display.title)
	}
	if display.message != "test error message" {
		t.Errorf("message = %q", display.message)
	}
	if len(display.suggestions) != 2 {
		t.Errorf("suggestions = %d, want 2", len(display.suggestions))
	}
	if display.docsURL != pattern.DocsURL {
		t.Errorf("docsURL = %q", display.docsURL)
	}
	if display.logHint != pattern.LogHint {
		t.Errorf("logHint = %q", display.logHint)
	}
	if !display.IsVisible() {
		t.Error("enhanced error should be visible")
	}
	if display.logsPath == "" {
		t.Error("logsPath should be populated")
	}
}

func TestSmartErrorFromError(t *testing.T) {
	display := SmartErrorFromError("Request failed", errors.New("request timed out"))
	if display.title != "Request Timeout" {
		t.Errorf("title = %q, want pattern title", display.title)
	}

	display = SmartErrorFromError("Request failed", errors.New("wholly novel failure"))
	if display.title != "Request failed" {
		t.Errorf("unmatched error should keep caller title, got %q", display.title)
	}

	display = SmartErrorFromError("Request failed", nil)
	if display.message != "Unknown error" {
		t.Errorf("nil error message = %q", display.message)
	}
}

func TestErrorDisplayVisibility(t *testing.T) {
	display := NewErrorDisplay()
	if display.IsVisible() {
		t.Error("fresh display should be hidden")
	}
	if display.View() != "" {
		t.Error("hidden display should render nothing")
	}

	display.Show()
	if !display.IsVisible() {
		t.Error("Show() should make the display visible")
	}

	display.Hide()
	if display.IsVisible() {
		t.Error("Hide() should hide the display")
	}
}

func TestErrorDisplayDismissKeys(t *testing.T) {
	for _, key := range []tea.KeyMsg{
		{Type: tea.KeyEsc},
		{Type: tea.KeyEnter},
		{Type: tea.KeyRunes, Runes: []rune{'q'}},
	} {
		display := NewError("Oops", "it broke")
		display, _ = display.Update(key)
		if display.IsVisible() {
			t.Errorf("key %q should dismiss the display", key.String())
		}
	}
}

func TestErrorDisplayResize(t *testing.T) {
	display := NewError("Oops", "it broke")
	display, _ = display.Update(tea.WindowSizeMsg{Width: 120, Height: 40})
	if display.width != 120 || display.height != 40 {
		t.Errorf("size = %dx%d, want 120x40", display.width, display.height)
	}
}

func TestErrorDisplayView(t *testing.T) {
	pattern := ErrorPattern{
		Category:    CategoryNetwork,
		Title:       "Test Error",
		Suggestions: []string{"Suggestion 1", "Suggestion 2"},
		DocsURL:     "https://example.com/docs",
		LogHint:     "Check logs for connection issues",
	}
	display := NewEnhancedError(pattern, "Connection failed")
	display.SetSize(80, 24)

	view := display.View()
	for _, want := range []string{
		"Test Error",
		"Connection failed",
		"Suggestions:",
		"Suggestion 1",
		"[DOC] Docs:",
		"[LOG] Logs:",
		"Check logs for connection issues",
		"[Enter] Dismiss",
		"Network Error",
	} {
		if !strings.Contains(view, want) {
			t.Errorf("View() missing %q", want)
		}
	}
}

func TestDefaultLogsPath(t *testing.T) {
	path := defaultLogsPath()
	if !strings.Contains(path, ".rigchat") || !strings.Contains(path, "rigchat.log") {
		t.Errorf("logs path = %q", path)
	}
}
