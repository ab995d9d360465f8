// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package components

import (
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/jeranaias/rigchat/internal/ui/styles"
)

// =============================================================================
// SPINNER
// =============================================================================

// Spinner pairs the bubbles spinner with a message line, an optional
// elapsed/estimate timer, and a detail row. Frames are ASCII so the
// animation renders on any terminal.
type Spinner struct {
	model spinner.Model

	message   string
	detail    string
	showTimer bool
	estimate  time.Duration

	active    bool
	startedAt time.Time
}

// NewSpinner returns an inactive spinner with a generic loading message.
func NewSpinner() Spinner {
	m := spinner.New()
	m.Spinner = spinner.Spinner{
		Frames: []string{"|", "/", "-", "\\"},
		FPS:    time.Second / 10,
	}
	return Spinner{
		model:     m,
		message:   "Loading",
		showTimer: true,
	}
}

// NewThinkingSpinner returns a spinner labelled for reasoning output.
func NewThinkingSpinner() Spinner {
	s := NewSpinner()
	s.message = "Thinking"
	return s
}

// SetMessage sets the text displayed next to the spinner.
func (s *Spinner) SetMessage(msg string) { s.message = msg }

// SetDetail sets an extra line rendered under the spinner.
func (s *Spinner) SetDetail(detail string) { s.detail = detail }

// SetShowTimer toggles the elapsed time display.
func (s *Spinner) SetShowTimer(show bool) { s.showTimer = show }

// SetEstimate sets the expected total duration shown beside the elapsed
// time. Derived from past response timings; zero hides it.
func (s *Spinner) SetEstimate(d time.Duration) { s.estimate = d }

// Start activates the spinner, records the start instant, and returns the
// tick command that drives the animation.
func (s *Spinner) Start() tea.Cmd {
	s.active = true
	s.startedAt = time.Now()
	return s.model.Tick
}

// Stop deactivates the spinner. View renders nothing while stopped.
func (s *Spinner) Stop() {
	s.active = false
}

// IsActive reports whether the spinner is running.
func (s *Spinner) IsActive() bool {
	return s.active
}

// GetElapsed returns the time since Start; zero before the first Start.
func (s *Spinner) GetElapsed() time.Duration {
	if s.startedAt.IsZero() {
		return 0
	}
	return time.Since(s.startedAt)
}

// Update advances the animation. Messages are ignored while stopped.
func (s Spinner) Update(msg tea.Msg) (Spinner, tea.Cmd) {
	if !s.active {
		return s, nil
	}
	var cmd tea.Cmd
	s.model, cmd = s.model.Update(msg)
	return s, cmd
}

// View renders the spinner row plus the optional timer and detail line.
func (s Spinner) View() string {
	if !s.active {
		return ""
	}

	accent := lipgloss.NewStyle().Foreground(styles.Purple)
	line := accent.Render(s.model.View()) + " " +
		lipgloss.NewStyle().Foreground(styles.TextSecondary).Render(s.message) +
		accent.Render("...")

	if s.showTimer && !s.startedAt.IsZero() {
		timer := formatElapsed(time.Since(s.startedAt))
		if s.estimate > 0 {
			timer += " / ~" + formatElapsed(s.estimate)
		}
		line += lipgloss.NewStyle().
			Foreground(styles.TextMuted).
			Render(" (" + timer + ")")
	}

	if s.detail != "" {
		line += "\n" + lipgloss.NewStyle().
			Foreground(styles.TextMuted).
			PaddingLeft(2).
			Render(s.detail)
	}
	return line
}

// formatElapsed renders a duration as "42s" or "2m 5s".
func formatElapsed(d time.Duration) string {
	seconds := int(d.Seconds())
	if seconds < 60 {
		return toStr(seconds) + "s"
	}
	return toStr(seconds/60) + "m " + toStr(seconds%60) + "s"
}

// =============================================================================
// THINKING INDICATOR
// =============================================================================

// ThinkingIndicator wraps a Spinner for the reasoning phase of a streamed
// response: it runs from request send until visible content arrives.
type ThinkingIndicator struct {
	spinner   Spinner
	startedAt time.Time
}

// NewThinkingIndicator returns an inactive indicator.
func NewThinkingIndicator() ThinkingIndicator {
	return ThinkingIndicator{spinner: NewThinkingSpinner()}
}

// Start begins the animation and anchors the elapsed clock.
func (t *ThinkingIndicator) Start() tea.Cmd {
	t.startedAt = time.Now()
	return t.spinner.Start()
}

// Stop halts the animation.
func (t *ThinkingIndicator) Stop() {
	t.spinner.Stop()
}

// SetDetail sets the secondary line, e.g. a prompt-processing gauge.
func (t *ThinkingIndicator) SetDetail(detail string) {
	t.spinner.SetDetail(detail)
}

// SetEstimate sets the expected response duration from past timings.
func (t *ThinkingIndicator) SetEstimate(d time.Duration) {
	t.spinner.SetEstimate(d)
}

// IsActive reports whether the indicator is running.
func (t *ThinkingIndicator) IsActive() bool {
	return t.spinner.IsActive()
}

// GetElapsed returns time spent in the reasoning phase.
func (t *ThinkingIndicator) GetElapsed() time.Duration {
	if t.startedAt.IsZero() {
		return 0
	}
	return time.Since(t.startedAt)
}

// Update advances the underlying spinner.
func (t ThinkingIndicator) Update(msg tea.Msg) (ThinkingIndicator, tea.Cmd) {
	var cmd tea.Cmd
	t.spinner, cmd = t.spinner.Update(msg)
	return t, cmd
}

// View renders the indicator.
func (t ThinkingIndicator) View() string {
	return t.spinner.View()
}
