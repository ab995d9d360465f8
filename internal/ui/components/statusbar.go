// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package components

import (
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/jeranaias/rigchat/internal/ui/styles"
	"github.com/jeranaias/rigchat/internal/util"
)

// =============================================================================
// STATUS
// =============================================================================

// Status is the activity state shown at the right edge of the bar.
type Status int

const (
	StatusReady Status = iota
	StatusStreaming
	StatusThinking
	StatusLoading
	StatusError
	StatusIdle
)

// statusText maps each state to its label and its narrow-layout icon.
// Icons are distinct shapes so the state reads without color.
var statusText = map[Status]struct{ label, icon string }{
	StatusReady:     {"Ready", styles.StatusIndicators.Success},
	StatusStreaming: {"Streaming...", "~"},
	StatusThinking:  {"Thinking...", styles.StatusIndicators.Pending},
	StatusLoading:   {"Loading...", styles.StatusIndicators.Pending},
	StatusError:     {"Error", styles.StatusIndicators.Error},
	StatusIdle:      {"Idle", "-"},
}

// String returns the display label for the status.
func (s Status) String() string {
	if t, ok := statusText[s]; ok {
		return t.label
	}
	return "Unknown"
}

// Icon returns the compact shape for narrow layouts.
func (s Status) Icon() string {
	if t, ok := statusText[s]; ok {
		return t.icon
	}
	return "?"
}

// =============================================================================
// STATUS BAR
// =============================================================================

// StatusBar is the bottom bar: active model, endpoint locality, context
// window usage, live generation rate, and current activity.
type StatusBar struct {
	ModelName     string
	ServerHost    string
	ServerIsLocal bool
	TokenCount    int
	MaxTokens     int
	TokensPerSec  float64
	Status        Status
	Width         int
	ShowShortcuts bool

	theme *styles.Theme
}

// NewStatusBar returns a bar with a 4k-token default window.
func NewStatusBar(theme *styles.Theme) *StatusBar {
	return &StatusBar{
		ServerIsLocal: true,
		MaxTokens:     4096,
		Status:        StatusReady,
		Width:         80,
		ShowShortcuts: true,
		theme:         theme,
	}
}

// SetWidth updates the available width.
func (s *StatusBar) SetWidth(width int) { s.Width = width }

// SetTokenUsage updates the context gauge.
func (s *StatusBar) SetTokenUsage(used, max int) {
	s.TokenCount = used
	s.MaxTokens = max
}

// SetStatus updates the activity state.
func (s *StatusBar) SetStatus(status Status) { s.Status = status }

// SetModel updates the model display.
func (s *StatusBar) SetModel(modelName string) { s.ModelName = modelName }

// SetServer updates the endpoint badge. Loopback endpoints get the green
// LOCAL badge, everything else the amber REMOTE badge so the user always
// knows when a conversation leaves the machine.
func (s *StatusBar) SetServer(host string, isLocal bool) {
	s.ServerHost = host
	s.ServerIsLocal = isLocal
}

// SetTokenRate updates the live generation rate. Zero hides it.
func (s *StatusBar) SetTokenRate(tokensPerSec float64) {
	s.TokensPerSec = tokensPerSec
}

// ContextPercent returns context usage as a percentage of the window.
func (s *StatusBar) ContextPercent() float64 {
	if s.MaxTokens <= 0 {
		return 0
	}
	return float64(s.TokenCount) / float64(s.MaxTokens) * 100
}

// View picks a layout by width and renders it.
func (s *StatusBar) View() string {
	switch {
	case s.Width < 60:
		return s.viewNarrow()
	case s.Width < 100:
		return s.viewMedium()
	default:
		return s.viewWide()
	}
}

// =============================================================================
// LAYOUTS
// =============================================================================

// viewNarrow: [L] gauge icon
func (s *StatusBar) viewNarrow() string {
	row := "[" + s.serverStyle().Render(s.serverLabel()[:1]) + "] " +
		s.contextGauge(6, false) + " " +
		s.statusStyle().Render(s.Status.Icon())
	return s.theme.StatusBar.Width(s.Width).Render(row)
}

// viewMedium: LOCAL | model | Ctx: gauge | Status
func (s *StatusBar) viewMedium() string {
	sep := lipgloss.NewStyle().Foreground(styles.Overlay).Render(" | ")

	parts := []string{s.serverStyle().Render(s.serverLabel())}
	if s.ModelName != "" {
		parts = append(parts, lipgloss.NewStyle().
			Foreground(styles.TextSecondary).
			Render(truncateString(s.ModelName, 15)))
	}
	parts = append(parts,
		lipgloss.NewStyle().Foreground(styles.TextMuted).Render("Ctx:")+" "+s.contextGauge(10, true),
		s.statusStyle().Render(s.Status.String()))

	return s.theme.StatusBar.Width(s.Width).Render(strings.Join(parts, sep))
}

// viewWide: model | LOCAL host | 1,234 tok | 42.3 tok/s   Ctx: gauge pct   Status ^P cmds
func (s *StatusBar) viewWide() string {
	sep := lipgloss.NewStyle().Foreground(styles.Overlay).Render(" | ")
	muted := lipgloss.NewStyle().Foreground(styles.TextMuted)

	var left []string
	if s.ModelName != "" {
		left = append(left, lipgloss.NewStyle().Foreground(styles.TextSecondary).Render(s.ModelName))
	}
	badge := s.serverStyle().Render(s.serverLabel())
	if s.ServerHost != "" {
		badge += " " + muted.Render(s.ServerHost)
	}
	left = append(left, badge, muted.Render(fmtNumber(s.TokenCount)+" tok"))
	if s.TokensPerSec > 0 {
		left = append(left, s.theme.TokenRate.Render(util.FloatToStringPrec(s.TokensPerSec, 1)+" tok/s"))
	}
	leftSection := strings.Join(left, sep)

	center := muted.Render("Ctx: ") + s.contextGauge(10, true) + " " + s.contextSummary()

	right := s.statusStyle().Render(s.Status.String())
	if s.ShowShortcuts {
		right += " " + s.theme.ShortcutKey.Render("^P") + s.theme.ShortcutDesc.Render("cmds") +
			" " + s.theme.ShortcutKey.Render("^C") + s.theme.ShortcutDesc.Render("stop")
	}

	gap := s.Width - lipgloss.Width(leftSection) - lipgloss.Width(center) - lipgloss.Width(right) - 4
	if gap < 4 {
		gap = 4
	}
	row := leftSection + strings.Repeat(" ", gap/2) + center + strings.Repeat(" ", gap-gap/2) + right

	return s.theme.StatusBarWide.Width(s.Width).Render(row)
}

// =============================================================================
// PIECES
// =============================================================================

func (s *StatusBar) serverLabel() string {
	if s.ServerIsLocal {
		return "LOCAL"
	}
	return "REMOTE"
}

func (s *StatusBar) serverStyle() lipgloss.Style {
	if s.ServerIsLocal {
		return s.theme.ServerLocal
	}
	return s.theme.ServerRemote
}

// contextGauge renders the usage bar with cells colored by pressure. The
// bar length changes alongside the color, so the cue is not color-only.
func (s *StatusBar) contextGauge(cells int, bracketed bool) string {
	percent := s.ContextPercent()
	filled := int(percent / 100 * float64(cells))
	if filled > cells {
		filled = cells
	}

	bar := s.gaugeStyle(percent).Render(strings.Repeat("#", filled)) +
		lipgloss.NewStyle().Foreground(styles.Overlay).Render(strings.Repeat("-", cells-filled))
	if bracketed {
		return "[" + bar + "]"
	}
	return bar
}

// contextSummary renders "2,048/4,096 (50.0%)" colored by pressure.
func (s *StatusBar) contextSummary() string {
	percent := s.ContextPercent()
	style := lipgloss.NewStyle().Foreground(styles.TextMuted)
	switch {
	case percent >= 90:
		style = s.theme.ContextCrit
	case percent >= 75:
		style = s.theme.ContextWarn
	}
	return style.Render(fmtNumber(s.TokenCount) + "/" + fmtNumber(s.MaxTokens) +
		" (" + fmtPercent(percent) + ")")
}

func (s *StatusBar) gaugeStyle(percent float64) lipgloss.Style {
	switch {
	case percent >= 90:
		return s.theme.ContextCrit
	case percent >= 75:
		return s.theme.ContextWarn
	case percent >= 50:
		return s.theme.ContextOK
	default:
		return s.theme.TokenRate
	}
}

func (s *StatusBar) statusStyle() lipgloss.Style {
	switch s.Status {
	case StatusReady:
		return s.theme.SuccessStyle
	case StatusStreaming, StatusThinking:
		return s.theme.InfoStyle
	case StatusLoading:
		return s.theme.WarningStyle
	case StatusError:
		return s.theme.ErrorStyle
	default:
		return lipgloss.NewStyle().Foreground(styles.TextMuted)
	}
}
