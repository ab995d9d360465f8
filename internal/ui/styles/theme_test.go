// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package styles

import (
	"testing"

	"github.com/charmbracelet/lipgloss"
)

func TestNewTheme(t *testing.T) {
	theme := NewTheme()
	if theme == nil {
		t.Fatal("NewTheme() returned nil")
	}

	// Every style group should survive a render round-trip.
	groups := map[string]lipgloss.Style{
		"StatusBar":          theme.StatusBar,
		"StatusBarWide":      theme.StatusBarWide,
		"ServerLocal":        theme.ServerLocal,
		"ServerRemote":       theme.ServerRemote,
		"TokenRate":          theme.TokenRate,
		"ContextOK":          theme.ContextOK,
		"ContextWarn":        theme.ContextWarn,
		"ContextCrit":        theme.ContextCrit,
		"ShortcutKey":        theme.ShortcutKey,
		"ShortcutDesc":       theme.ShortcutDesc,
		"CompletionPopup":    theme.CompletionPopup,
		"CompletionItem":     theme.CompletionItem,
		"CompletionSelected": theme.CompletionSelected,
		"CompletionMatch":    theme.CompletionMatch,
		"SuccessStyle":       theme.SuccessStyle,
		"ErrorStyle":         theme.ErrorStyle,
		"WarningStyle":       theme.WarningStyle,
		"InfoStyle":          theme.InfoStyle,
	}
	for name, style := range groups {
		if style.Render("x") == "" {
			t.Errorf("%s style lost its content", name)
		}
	}
}

func TestThemeSetSize(t *testing.T) {
	theme := NewTheme()
	theme.SetSize(120, 40)

	if theme.Width != 120 || theme.Height != 40 {
		t.Errorf("size = %dx%d, want 120x40", theme.Width, theme.Height)
	}
}

func TestThemeLayoutMode(t *testing.T) {
	cases := []struct {
		width int
		want  LayoutMode
	}{
		{0, LayoutNarrow},
		{59, LayoutNarrow},
		{60, LayoutMedium},
		{99, LayoutMedium},
		{100, LayoutWide},
		{200, LayoutWide},
	}

	theme := NewTheme()
	for _, tc := range cases {
		theme.SetSize(tc.width, 24)
		if got := theme.GetLayoutMode(); got != tc.want {
			t.Errorf("width %d: mode = %v, want %v", tc.width, got, tc.want)
		}
	}
}

// The server badge styles must stay visually distinct: local means the
// conversation never leaves the machine.
func TestThemeServerBadgesDiffer(t *testing.T) {
	theme := NewTheme()
	local := theme.ServerLocal.GetForeground()
	remote := theme.ServerRemote.GetForeground()
	if local == remote {
		t.Error("local and remote badges should use different colors")
	}
}
