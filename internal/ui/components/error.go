// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package components

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/jeranaias/rigchat/internal/ui/styles"
)

// =============================================================================
// ERROR DISPLAY
// =============================================================================

// ErrorDisplay is the centered error panel the chat view overlays when an
// operation fails: a categorized title, the raw error message, recovery
// suggestions, and pointers at docs and the log file.
type ErrorDisplay struct {
	category    ErrorCategory
	title       string
	message     string
	suggestions []string
	docsURL     string
	logHint     string
	logsPath    string

	visible   bool
	createdAt time.Time

	width  int
	height int
}

// NewErrorDisplay returns an empty, hidden panel for embedding in a model.
func NewErrorDisplay() ErrorDisplay {
	return ErrorDisplay{category: CategoryUnknown, logsPath: defaultLogsPath()}
}

// NewError builds a visible error panel with a title and message.
func NewError(title, message string) ErrorDisplay {
	e := NewErrorDisplay()
	e.title = title
	e.message = message
	e.Show()
	return e
}

// NewErrorWithSuggestions builds an error panel with recovery suggestions.
func NewErrorWithSuggestions(title, message string, suggestions []string) ErrorDisplay {
	e := NewError(title, message)
	e.suggestions = suggestions
	return e
}

// NewEnhancedError builds a panel from a matched pattern, carrying the
// pattern's category, suggestions, and documentation pointers.
func NewEnhancedError(pattern ErrorPattern, message string) ErrorDisplay {
	e := NewError(pattern.Title, message)
	e.category = pattern.Category
	e.suggestions = pattern.Suggestions
	e.docsURL = pattern.DocsURL
	e.logHint = pattern.LogHint
	return e
}

// =============================================================================
// STATE
// =============================================================================

// Show makes the panel visible.
func (e *ErrorDisplay) Show() {
	e.visible = true
	e.createdAt = time.Now()
}

// Hide dismisses the panel.
func (e *ErrorDisplay) Hide() { e.visible = false }

// IsVisible reports whether the panel is showing.
func (e *ErrorDisplay) IsVisible() bool { return e.visible }

// SetSize records terminal dimensions for centering.
func (e *ErrorDisplay) SetSize(width, height int) {
	e.width = width
	e.height = height
}

// Update handles resize and dismissal keys (esc, enter, q).
func (e ErrorDisplay) Update(msg tea.Msg) (ErrorDisplay, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		e.width = msg.Width
		e.height = msg.Height
	case tea.KeyMsg:
		switch msg.String() {
		case "esc", "enter", "q":
			e.Hide()
		}
	}
	return e, nil
}

// =============================================================================
// RENDERING
// =============================================================================

// View renders the panel, centered when terminal dimensions are known.
func (e ErrorDisplay) View() string {
	if !e.visible {
		return ""
	}

	width := e.width
	if width == 0 {
		width = 60
	}
	maxWidth := width - 8
	if maxWidth < 30 {
		maxWidth = 30
	}
	if maxWidth > 80 {
		maxWidth = 80
	}

	content := lipgloss.JoinVertical(lipgloss.Left, e.renderParts(maxWidth)...)

	box := lipgloss.NewStyle().
		BorderStyle(lipgloss.RoundedBorder()).
		BorderForeground(e.borderColor()).
		Padding(1, 2).
		Width(maxWidth).
		Render(content)
	box = overlayBorderTitle(box, " "+string(e.categoryLabel())+" Error ", e.borderColor())

	if e.height > 0 {
		return lipgloss.Place(
			e.width, e.height,
			lipgloss.Center, lipgloss.Center,
			box,
		)
	}
	return box
}

// renderParts assembles the panel body lines.
func (e ErrorDisplay) renderParts(maxWidth int) []string {
	// High-contrast color plus the X-mark icon so the state reads
	// without relying on color alone.
	parts := []string{
		lipgloss.NewStyle().
			Foreground(styles.ErrorHighContrast).
			Bold(true).
			Render(styles.StatusIndicators.Error + " " + e.title),
		"",
	}

	if e.message != "" {
		parts = append(parts,
			lipgloss.NewStyle().
				Foreground(styles.TextPrimary).
				Width(maxWidth-4).
				Render(e.message),
			"")
	}

	if len(e.suggestions) > 0 {
		parts = append(parts, lipgloss.NewStyle().
			Foreground(styles.InfoHighContrast).
			Bold(true).
			Render("Suggestions:"))
		bullet := lipgloss.NewStyle().Foreground(styles.Cyan)
		text := lipgloss.NewStyle().Foreground(styles.TextSecondary)
		for _, s := range e.suggestions {
			parts = append(parts, bullet.Render("  * ")+text.Render(s))
		}
		parts = append(parts, "")
	}

	if e.docsURL != "" {
		parts = append(parts,
			lipgloss.NewStyle().Foreground(styles.InfoHighContrast).Render("[DOC] Docs: ")+
				lipgloss.NewStyle().Foreground(styles.TextSecondary).Render(e.docsURL))
	}

	if e.logsPath != "" {
		parts = append(parts,
			lipgloss.NewStyle().Foreground(styles.WarningHighContrast).Render("[LOG] Logs: ")+
				lipgloss.NewStyle().Foreground(styles.TextSecondary).Render(e.logsPath))
		if e.logHint != "" {
			parts = append(parts, "   "+lipgloss.NewStyle().
				Foreground(styles.TextMuted).
				Italic(true).
				Width(maxWidth-4).
				Render("-> "+e.logHint))
		}
		parts = append(parts, "")
	}

	parts = append(parts, lipgloss.NewStyle().
		Foreground(styles.TextMuted).
		Italic(true).
		Render("[Enter] Dismiss"))
	return parts
}

func (e ErrorDisplay) categoryLabel() ErrorCategory {
	if e.category == "" {
		return CategoryUnknown
	}
	return e.category
}

// borderColor maps the error category to a border accent.
func (e ErrorDisplay) borderColor() lipgloss.AdaptiveColor {
	switch e.category {
	case CategoryConfig, CategoryParse, CategoryRequest, CategoryContext, CategoryResource:
		return styles.WarningHighContrast
	case CategoryTimeout:
		return styles.InfoHighContrast
	default:
		return styles.ErrorHighContrast
	}
}

// =============================================================================
// HELPERS
// =============================================================================

// defaultLogsPath points users at the log file mentioned in the panel.
func defaultLogsPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "~/.rigchat/logs/rigchat.log"
	}
	return filepath.ToSlash(filepath.Join(home, ".rigchat", "logs", "rigchat.log"))
}

// overlayBorderTitle paints a label over the top border of a rendered box.
func overlayBorderTitle(box, title string, color lipgloss.AdaptiveColor) string {
	lines := strings.Split(box, "\n")
	if len(lines) == 0 || len(lines[0]) <= 4 {
		return box
	}

	styled := lipgloss.NewStyle().
		Foreground(color).
		Bold(true).
		Render(title)

	top := lines[0]
	cut := min(len(top), 2+lipgloss.Width(styled))
	lines[0] = top[:2] + styled + top[cut:]
	return strings.Join(lines, "\n")
}
