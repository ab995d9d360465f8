// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package components

import (
	"sort"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/jeranaias/rigchat/internal/commands"
	"github.com/jeranaias/rigchat/internal/ui/styles"
)

const (
	paletteMaxVisible = 10
	paletteMaxRecent  = 10
	// Score bumps for commands used recently: a large boost during
	// filtering, and ordering by recency when the filter is empty.
	recentFilterBoost = 100
	recentBrowseBase  = 1000
)

// ExecuteCommandMsg is emitted when the user picks a command from the
// palette. Args is nil; the palette never collects arguments.
type ExecuteCommandMsg struct {
	Command *commands.Command
	Args    []string
}

// =============================================================================
// COMMAND PALETTE
// =============================================================================

// CommandPalette is a centered overlay for fuzzy-searching the command
// registry. Matches are ranked by FuzzyMatch score with recently executed
// commands boosted toward the top.
type CommandPalette struct {
	input    textinput.Model
	registry *commands.Registry
	theme    *styles.Theme

	matches  []paletteMatch
	selected int
	recent   []string

	visible bool
	width   int
	height  int
}

type paletteMatch struct {
	command *commands.Command
	score   int
}

// NewCommandPalette builds a hidden palette over the given registry.
func NewCommandPalette(registry *commands.Registry, theme *styles.Theme) *CommandPalette {
	ti := textinput.New()
	ti.Placeholder = "Type a command..."
	ti.Prompt = "> "
	ti.CharLimit = 100
	ti.Width = 50
	ti.PromptStyle = lipgloss.NewStyle().Foreground(styles.Cyan).Bold(true)
	ti.TextStyle = lipgloss.NewStyle().Foreground(styles.TextPrimary)
	ti.PlaceholderStyle = lipgloss.NewStyle().Foreground(styles.TextMuted).Italic(true)

	cp := &CommandPalette{
		input:    ti,
		registry: registry,
		theme:    theme,
		recent:   make([]string, 0, paletteMaxRecent),
	}
	cp.refilter()
	return cp
}

// =============================================================================
// VISIBILITY
// =============================================================================

// Show opens the palette with a cleared filter and focused input.
func (cp *CommandPalette) Show() {
	cp.visible = true
	cp.input.Reset()
	cp.input.Focus()
	cp.refilter()
	cp.selected = 0
}

// Hide closes the palette.
func (cp *CommandPalette) Hide() {
	cp.visible = false
	cp.input.Blur()
}

// IsVisible reports whether the palette is open.
func (cp *CommandPalette) IsVisible() bool {
	return cp.visible
}

// SetSize records the terminal dimensions used to center the overlay.
func (cp *CommandPalette) SetSize(width, height int) {
	cp.width = width
	cp.height = height
}

// Focus focuses the filter input.
func (cp *CommandPalette) Focus() tea.Cmd {
	return cp.input.Focus()
}

// =============================================================================
// UPDATE
// =============================================================================

// Update handles key events while the palette is open. Arrow keys, tab and
// ctrl+n move the selection; enter emits ExecuteCommandMsg; esc closes.
func (cp *CommandPalette) Update(msg tea.Msg) (*CommandPalette, tea.Cmd) {
	if !cp.visible {
		return cp, nil
	}

	if key, ok := msg.(tea.KeyMsg); ok {
		switch key.String() {
		case "esc":
			cp.Hide()
			return cp, nil
		case "enter":
			return cp, cp.pickSelected()
		case "up":
			cp.moveSelection(-1)
			return cp, nil
		case "down", "ctrl+n", "tab":
			cp.moveSelection(1)
			return cp, nil
		}
	}

	before := cp.input.Value()
	var cmd tea.Cmd
	cp.input, cmd = cp.input.Update(msg)
	if cp.input.Value() != before {
		cp.refilter()
		cp.selected = 0
	}
	return cp, cmd
}

// moveSelection shifts the cursor by delta, wrapping at either end.
func (cp *CommandPalette) moveSelection(delta int) {
	n := len(cp.matches)
	if n == 0 {
		return
	}
	cp.selected = (cp.selected + delta + n) % n
}

// pickSelected records the choice as recent, closes the palette, and
// returns the command that delivers ExecuteCommandMsg.
func (cp *CommandPalette) pickSelected() tea.Cmd {
	if cp.selected < 0 || cp.selected >= len(cp.matches) {
		return nil
	}
	chosen := cp.matches[cp.selected].command
	cp.rememberRecent(chosen.Name)
	cp.Hide()
	return func() tea.Msg {
		return ExecuteCommandMsg{Command: chosen}
	}
}

// =============================================================================
// FILTERING
// =============================================================================

// refilter rebuilds the match list for the current filter text. An empty
// filter lists every visible command, recent ones first.
func (cp *CommandPalette) refilter() {
	if cp.registry == nil {
		cp.matches = nil
		return
	}

	filter := strings.TrimPrefix(strings.TrimSpace(cp.input.Value()), "/")

	var matches []paletteMatch
	for _, cmd := range cp.registry.All() {
		if cmd.Hidden {
			continue
		}
		score, ok := cp.scoreCommand(cmd, filter)
		if !ok {
			continue
		}
		matches = append(matches, paletteMatch{command: cmd, score: score})
	}

	sort.Slice(matches, func(i, j int) bool {
		return matches[i].score > matches[j].score
	})
	cp.matches = matches
}

// scoreCommand scores one command against the filter: the best of the
// name, alias, and half-weighted description scores, plus a recency boost.
// With no filter every command matches, ranked by recency alone.
func (cp *CommandPalette) scoreCommand(cmd *commands.Command, filter string) (int, bool) {
	if filter == "" {
		score := 0
		if idx := cp.recentIndex(cmd.Name); idx >= 0 {
			score = recentBrowseBase - idx
		}
		return score, true
	}

	best := 0
	matched := false

	if score, ok := FuzzyMatch(filter, strings.TrimPrefix(cmd.Name, "/")); ok {
		best = score
		matched = true
	}
	if score, ok := FuzzyMatch(filter, cmd.Description); ok && score/2 > best {
		best = score / 2
		matched = true
	}
	for _, alias := range cmd.Aliases {
		if score, ok := FuzzyMatch(filter, strings.TrimPrefix(alias, "/")); ok && score > best {
			best = score
			matched = true
		}
	}

	if !matched {
		return 0, false
	}
	if cp.recentIndex(cmd.Name) >= 0 {
		best += recentFilterBoost
	}
	return best, true
}

// recentIndex returns the command's position in the recent list, -1 when
// absent. Lower index means more recently used.
func (cp *CommandPalette) recentIndex(name string) int {
	for i, r := range cp.recent {
		if r == name {
			return i
		}
	}
	return -1
}

// rememberRecent moves name to the front of the recent list.
func (cp *CommandPalette) rememberRecent(name string) {
	if idx := cp.recentIndex(name); idx >= 0 {
		cp.recent = append(cp.recent[:idx], cp.recent[idx+1:]...)
	}
	cp.recent = append([]string{name}, cp.recent...)
	if len(cp.recent) > paletteMaxRecent {
		cp.recent = cp.recent[:paletteMaxRecent]
	}
}

// =============================================================================
// VIEW
// =============================================================================

// View renders the palette box, centered when terminal dimensions are
// known. Hidden palettes render nothing.
func (cp *CommandPalette) View() string {
	if !cp.visible {
		return ""
	}

	boxWidth := 60
	if cp.width > 0 && cp.width < boxWidth+10 {
		boxWidth = cp.width - 10
	}
	if boxWidth < 40 {
		boxWidth = 40
	}

	header := lipgloss.NewStyle().
		Foreground(styles.Purple).
		Bold(true).
		Padding(0, 1).
		Render("Commands")
	separator := lipgloss.NewStyle().
		Foreground(styles.Overlay).
		Render(strings.Repeat("-", boxWidth-4))

	cp.input.Width = boxWidth - 6

	help := lipgloss.NewStyle().
		Foreground(styles.TextMuted).
		Padding(1, 0, 0, 0).
		Render("Up/Down navigate | Enter select | Esc close")

	content := lipgloss.JoinVertical(
		lipgloss.Left,
		header,
		separator,
		cp.input.View(),
		separator,
		cp.renderMatches(boxWidth-6),
		help,
	)

	box := lipgloss.NewStyle().
		Background(styles.Surface).
		BorderStyle(lipgloss.RoundedBorder()).
		BorderForeground(styles.Purple).
		Padding(1, 2).
		Width(boxWidth).
		Render(content)

	if cp.width > 0 && cp.height > 0 {
		return lipgloss.Place(
			cp.width, cp.height,
			lipgloss.Center, lipgloss.Center,
			box,
			lipgloss.WithWhitespaceChars(" "),
			lipgloss.WithWhitespaceForeground(lipgloss.Color("#000000")),
		)
	}
	return box
}

// renderMatches renders the visible slice of the match list, with an
// overflow line when more commands match than fit.
func (cp *CommandPalette) renderMatches(width int) string {
	if len(cp.matches) == 0 {
		return lipgloss.NewStyle().
			Foreground(styles.TextMuted).
			Italic(true).
			Padding(1, 0).
			Render("No matching commands")
	}

	var rows []string
	for i, match := range cp.matches {
		if i >= paletteMaxVisible {
			rows = append(rows, lipgloss.NewStyle().
				Foreground(styles.TextMuted).
				Italic(true).
				Render("  ... "+toStr(len(cp.matches)-paletteMaxVisible)+" more"))
			break
		}
		rows = append(rows, cp.renderRow(match.command, i == cp.selected, width))
	}
	return strings.Join(rows, "\n")
}

// renderRow renders one command line: cursor, name, recency star, and a
// truncated description.
func (cp *CommandPalette) renderRow(cmd *commands.Command, selected bool, width int) string {
	cursor := "  "
	if selected {
		cursor = "> "
	}

	name := lipgloss.NewStyle().
		Foreground(styles.Cyan).
		Bold(true).
		Render(cmd.Name)

	star := ""
	if cp.recentIndex(cmd.Name) >= 0 {
		star = lipgloss.NewStyle().Foreground(styles.Emerald).Render(" *")
	}

	descWidth := width - lipgloss.Width(cursor) - lipgloss.Width(name) - lipgloss.Width(star) - 2
	if descWidth < 10 {
		descWidth = 10
	}
	desc := lipgloss.NewStyle().
		Foreground(styles.TextMuted).
		Render(truncateString(cmd.Description, descWidth))

	row := cursor + name + star + "  " + desc
	if selected {
		return lipgloss.NewStyle().
			Background(styles.Purple).
			Foreground(styles.TextInverse).
			Width(width).
			Padding(0, 1).
			Render(row)
	}
	return row
}
