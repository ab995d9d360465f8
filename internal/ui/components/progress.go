// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package components

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/jeranaias/rigchat/internal/api"
	"github.com/jeranaias/rigchat/internal/ui/styles"
)

// ProgressPhase is the lifecycle state of a prompt-processing indicator.
type ProgressPhase string

const (
	ProgressPhaseProcessing ProgressPhase = "Processing"
	ProgressPhaseGenerating ProgressPhase = "Generating"
	ProgressPhaseComplete   ProgressPhase = "Complete"
	ProgressPhaseCanceled   ProgressPhase = "Canceled"
	ProgressPhaseError      ProgressPhase = "Error"
)

// ProgressIndicator tracks prompt ingestion on the inference server.
// Local servers report prompt_progress chunks while they chew through a
// long context; this component turns those snapshots into a visible bar
// so a 30-second silence before the first token does not look like a hang.
type ProgressIndicator struct {
	ProcessedTokens int
	TotalTokens     int
	CachedTokens    int

	// Generation figures, populated once the prompt is done.
	GeneratedTokens int
	TokensPerSec    float64

	StartTime time.Time
	Phase     ProgressPhase

	Width          int
	ShowCancelHint bool
	Compact        bool // single-line mode, forced when Width is narrow
}

// NewProgressIndicator returns an indicator in the processing phase.
func NewProgressIndicator() *ProgressIndicator {
	return &ProgressIndicator{
		StartTime:      time.Now(),
		Phase:          ProgressPhaseProcessing,
		Width:          80,
		ShowCancelHint: true,
	}
}

// Begin resets the indicator for a fresh request.
func (p *ProgressIndicator) Begin() {
	p.ProcessedTokens = 0
	p.TotalTokens = 0
	p.CachedTokens = 0
	p.GeneratedTokens = 0
	p.TokensPerSec = 0
	p.StartTime = time.Now()
	p.Phase = ProgressPhaseProcessing
}

// SetWidth updates the render width.
func (p *ProgressIndicator) SetWidth(width int) {
	p.Width = width
}

// ApplyState folds a live processing snapshot into the indicator. The
// phase flips to Generating once the prompt fraction reaches 1; terminal
// phases are never revived by late snapshots.
func (p *ProgressIndicator) ApplyState(state api.ProcessingState) {
	p.TotalTokens = state.PromptN
	p.CachedTokens = state.CacheN
	p.GeneratedTokens = state.PredictedN
	p.TokensPerSec = state.PredictedPerSecond

	frac := state.PromptProgress
	if frac < 0 {
		frac = 0
	} else if frac > 1 {
		frac = 1
	}
	p.ProcessedTokens = int(frac*float64(state.PromptN) + 0.5)

	if !p.IsActive() {
		return
	}
	if frac >= 1 {
		p.Phase = ProgressPhaseGenerating
	} else {
		p.Phase = ProgressPhaseProcessing
	}
}

// Complete marks the request as finished.
func (p *ProgressIndicator) Complete() {
	p.Phase = ProgressPhaseComplete
	p.ProcessedTokens = p.TotalTokens
}

// Cancel marks the request as stopped by the user.
func (p *ProgressIndicator) Cancel() { p.Phase = ProgressPhaseCanceled }

// Error marks the request as failed.
func (p *ProgressIndicator) Error() { p.Phase = ProgressPhaseError }

// IsActive reports whether the request is still in flight.
func (p *ProgressIndicator) IsActive() bool {
	return p.Phase == ProgressPhaseProcessing || p.Phase == ProgressPhaseGenerating
}

// GetElapsed returns the time since the request started.
func (p *ProgressIndicator) GetElapsed() time.Duration {
	if p.StartTime.IsZero() {
		return 0
	}
	return time.Since(p.StartTime)
}

// GetPercent returns the prompt-processing percentage, 0 to 100. Once
// generation starts the prompt is by definition fully processed.
func (p *ProgressIndicator) GetPercent() float64 {
	if p.Phase == ProgressPhaseGenerating || p.Phase == ProgressPhaseComplete {
		return 100
	}
	if p.TotalTokens <= 0 {
		return 0
	}
	pct := float64(p.ProcessedTokens) / float64(p.TotalTokens) * 100
	if pct > 100 {
		pct = 100
	}
	return pct
}

// =============================================================================
// PHASE ATTRIBUTES
// =============================================================================

// accent returns the phase's accent color.
func (p *ProgressIndicator) accent() lipgloss.AdaptiveColor {
	switch p.Phase {
	case ProgressPhaseGenerating:
		return styles.Cyan
	case ProgressPhaseComplete:
		return styles.Emerald
	case ProgressPhaseCanceled:
		return styles.TextMuted
	case ProgressPhaseError:
		return styles.Rose
	default:
		return styles.Purple
	}
}

// title returns the box heading for the current phase.
func (p *ProgressIndicator) title() string {
	switch p.Phase {
	case ProgressPhaseProcessing:
		return "- Processing Prompt -"
	case ProgressPhaseGenerating:
		return "- Generating -"
	case ProgressPhaseComplete:
		return "- Complete -"
	case ProgressPhaseCanceled:
		return "- Stopped -"
	case ProgressPhaseError:
		return "- Error -"
	}
	return "- Progress -"
}

// label returns the short phase label for compact mode.
func (p *ProgressIndicator) label() string {
	switch p.Phase {
	case ProgressPhaseProcessing:
		return "Processing prompt"
	case ProgressPhaseGenerating:
		return "Generating"
	}
	return string(p.Phase)
}

// =============================================================================
// RENDERING
// =============================================================================

// Render draws the indicator: a titled box normally, a single line in
// compact mode or when the terminal is too narrow for the box.
func (p *ProgressIndicator) Render() string {
	width := p.Width
	if width <= 0 {
		width = 80
	}
	if p.Compact || width < 34 {
		return p.renderLine()
	}
	return p.renderBox(width - 4)
}

// renderBox draws the multi-line boxed indicator.
func (p *ProgressIndicator) renderBox(contentWidth int) string {
	lines := []string{p.headline(), p.gaugeLine(contentWidth)}
	if p.CachedTokens > 0 {
		lines = append(lines,
			mutedText("Cache: ")+
				lipgloss.NewStyle().Bold(true).Foreground(styles.Cyan).Render(fmtNumber(p.CachedTokens))+
				mutedText(" tokens reused"))
	}
	lines = append(lines,
		mutedText("Elapsed: ")+
			lipgloss.NewStyle().Foreground(styles.TextSecondary).Render(formatProgressDuration(p.GetElapsed())))
	if p.ShowCancelHint && p.IsActive() {
		lines = append(lines,
			lipgloss.NewStyle().Foreground(styles.TextMuted).Italic(true).Render("Press Esc to stop"))
	}

	box := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(p.accent()).
		Padding(0, 1).
		Width(contentWidth).
		Render(strings.Join(lines, "\n"))

	heading := lipgloss.NewStyle().Bold(true).Foreground(p.accent()).Render(p.title())
	return heading + "\n" + box
}

// renderLine draws the one-line form:
// [1536/2048] Processing prompt | cache 256 | 12s | 75% [########--]
func (p *ProgressIndicator) renderLine() string {
	parts := []string{
		lipgloss.NewStyle().Bold(true).Foreground(styles.Purple).
			Render(fmt.Sprintf("[%d/%d]", p.ProcessedTokens, p.TotalTokens)),
		lipgloss.NewStyle().Foreground(styles.TextPrimary).Render(p.label()),
	}
	if p.CachedTokens > 0 {
		parts = append(parts, lipgloss.NewStyle().Foreground(styles.Cyan).
			Render(fmt.Sprintf("cache %d", p.CachedTokens)))
	}
	parts = append(parts, mutedText(formatProgressDuration(p.GetElapsed())))

	percent := p.GetPercent()
	parts = append(parts, lipgloss.NewStyle().Foreground(p.accent()).
		Render(fmt.Sprintf("%.0f%% %s", percent, styles.RenderProgressBar(10, percent))))

	sep := lipgloss.NewStyle().Foreground(styles.Overlay).Render(" | ")
	return strings.Join(parts, sep)
}

// headline renders the first box line with token counts.
func (p *ProgressIndicator) headline() string {
	phase := lipgloss.NewStyle().Bold(true).Foreground(styles.Purple)
	detail := lipgloss.NewStyle().Foreground(styles.TextPrimary)

	switch p.Phase {
	case ProgressPhaseGenerating:
		text := fmt.Sprintf("%d tokens", p.GeneratedTokens)
		if p.TokensPerSec > 0 {
			text += fmt.Sprintf(" @ %.1f tok/s", p.TokensPerSec)
		}
		return phase.Render("Generating") + ": " + detail.Render(text)
	case ProgressPhaseProcessing:
		return phase.Render("Processing prompt") + ": " +
			detail.Render(fmtNumber(p.ProcessedTokens)+" / "+fmtNumber(p.TotalTokens)+" tokens")
	}
	return phase.Render(string(p.Phase))
}

// gaugeLine renders the bar with its trailing percentage.
func (p *ProgressIndicator) gaugeLine(width int) string {
	barWidth := width - 10
	if barWidth < 10 {
		barWidth = 10
	}

	percent := p.GetPercent()
	accent := lipgloss.NewStyle().Foreground(p.accent())
	return accent.Render(styles.RenderProgressBar(barWidth, percent)) + " " +
		accent.Bold(true).Render(fmt.Sprintf("%.0f%%", percent))
}

func mutedText(s string) string {
	return lipgloss.NewStyle().Foreground(styles.TextMuted).Render(s)
}

// formatProgressDuration renders an elapsed duration at a precision that
// matches its size: ms under a second, then s, m, h.
func formatProgressDuration(d time.Duration) string {
	seconds := int(d.Seconds())
	switch {
	case seconds < 1:
		return fmt.Sprintf("%dms", d.Milliseconds())
	case seconds < 60:
		return fmt.Sprintf("%ds", seconds)
	case seconds < 3600:
		return fmt.Sprintf("%dm %ds", seconds/60, seconds%60)
	}
	return fmt.Sprintf("%dh %dm", seconds/3600, seconds%3600/60)
}
