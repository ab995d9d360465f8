// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package styles

import (
	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
)

// LayoutMode buckets the terminal width for responsive rendering.
type LayoutMode int

const (
	LayoutNarrow LayoutMode = iota // < 60 columns
	LayoutMedium                   // 60-100 columns
	LayoutWide                     // > 100 columns
)

// Theme carries the detected terminal capabilities, the current
// dimensions, and the shared styles components render with. Adaptive
// colors handle light/dark; the profile fields let callers degrade on
// limited terminals.
type Theme struct {
	IsDark       bool
	HasTrueColor bool
	ColorProfile termenv.Profile

	Width  int
	Height int

	// Status bar styles.
	StatusBar     lipgloss.Style
	StatusBarWide lipgloss.Style
	ServerLocal   lipgloss.Style
	ServerRemote  lipgloss.Style
	TokenRate     lipgloss.Style
	ContextOK     lipgloss.Style
	ContextWarn   lipgloss.Style
	ContextCrit   lipgloss.Style
	ShortcutKey   lipgloss.Style
	ShortcutDesc  lipgloss.Style

	// Completion popup styles.
	CompletionPopup    lipgloss.Style
	CompletionItem     lipgloss.Style
	CompletionSelected lipgloss.Style
	CompletionMatch    lipgloss.Style

	// State styles pair high-contrast colors with the shape indicators
	// from StatusIndicators so state never reads by color alone.
	SuccessStyle lipgloss.Style
	ErrorStyle   lipgloss.Style
	WarningStyle lipgloss.Style
	InfoStyle    lipgloss.Style
}

// NewTheme detects terminal capabilities and builds the style set.
func NewTheme() *Theme {
	profile := termenv.ColorProfile()
	t := &Theme{
		IsDark:       termenv.HasDarkBackground(),
		HasTrueColor: profile == termenv.TrueColor,
		ColorProfile: profile,
	}

	t.StatusBar = lipgloss.NewStyle().
		Background(SurfaceDim).
		Foreground(TextSecondary).
		Padding(0, 1)
	t.StatusBarWide = lipgloss.NewStyle().
		BorderStyle(lipgloss.NormalBorder()).
		BorderTop(true).
		BorderForeground(Overlay).
		Background(SurfaceDim).
		Foreground(TextSecondary).
		Padding(0, 1)
	t.ServerLocal = lipgloss.NewStyle().Foreground(SuccessHighContrast).Bold(true)
	t.ServerRemote = lipgloss.NewStyle().Foreground(WarningHighContrast).Bold(true)
	t.TokenRate = lipgloss.NewStyle().Foreground(Cyan)
	t.ContextOK = lipgloss.NewStyle().Foreground(Emerald)
	t.ContextWarn = lipgloss.NewStyle().Foreground(Amber)
	t.ContextCrit = lipgloss.NewStyle().Foreground(Rose).Bold(true)
	t.ShortcutKey = lipgloss.NewStyle().Foreground(Cyan).Bold(true)
	t.ShortcutDesc = lipgloss.NewStyle().Foreground(TextMuted)

	// The completion strip is a single line, so it gets padding rather
	// than a border.
	t.CompletionPopup = lipgloss.NewStyle().
		Background(Surface).
		Padding(0, 1)
	t.CompletionItem = lipgloss.NewStyle().Foreground(TextPrimary)
	t.CompletionSelected = lipgloss.NewStyle().
		Background(Purple).
		Foreground(TextInverse).
		Bold(true)
	t.CompletionMatch = lipgloss.NewStyle().Foreground(Cyan).Bold(true)

	t.SuccessStyle = lipgloss.NewStyle().Foreground(SuccessHighContrast).Bold(true)
	t.ErrorStyle = lipgloss.NewStyle().Foreground(ErrorHighContrast).Bold(true)
	t.WarningStyle = lipgloss.NewStyle().Foreground(WarningHighContrast).Bold(true)
	t.InfoStyle = lipgloss.NewStyle().Foreground(InfoHighContrast).Bold(true)

	return t
}

// SetSize records the terminal dimensions.
func (t *Theme) SetSize(width, height int) {
	t.Width = width
	t.Height = height
}

// GetLayoutMode buckets the current width.
func (t *Theme) GetLayoutMode() LayoutMode {
	switch {
	case t.Width < 60:
		return LayoutNarrow
	case t.Width < 100:
		return LayoutMedium
	default:
		return LayoutWide
	}
}
