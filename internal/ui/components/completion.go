// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package components

import (
	"strings"

	"github.com/jeranaias/rigchat/internal/commands"
	"github.com/jeranaias/rigchat/internal/ui/styles"
)

// =============================================================================
// COMPLETION STRIP
// =============================================================================

// Number of suggestions shown before collapsing to a "+N more" tail.
const completionMaxInline = 3

// CompletionPopup renders the completion suggestions for the input line.
// It draws as a single-line strip on the aux line between the transcript
// and the input, with the selected candidate highlighted.
type CompletionPopup struct {
	items    []commands.Completion
	selected int
	width    int
	theme    *styles.Theme
}

// NewCompletionPopup creates an empty strip.
func NewCompletionPopup(theme *styles.Theme) *CompletionPopup {
	return &CompletionPopup{width: 50, theme: theme}
}

// SetCompletions replaces the candidate list and resets the selection.
func (c *CompletionPopup) SetCompletions(items []commands.Completion) {
	c.items = items
	c.selected = 0
}

// SetSelected moves the highlight. Out-of-range indexes are ignored.
func (c *CompletionPopup) SetSelected(index int) {
	if index < 0 || index >= len(c.items) {
		return
	}
	c.selected = index
}

// HasCompletions reports whether anything would render.
func (c *CompletionPopup) HasCompletions() bool {
	return len(c.items) > 0
}

// Clear drops all candidates.
func (c *CompletionPopup) Clear() {
	c.items = nil
	c.selected = 0
}

// SetWidth sets the available strip width.
func (c *CompletionPopup) SetWidth(width int) {
	c.width = width
}

// ViewInline renders the strip. The window slides so the selected
// candidate is always among the visible ones.
func (c *CompletionPopup) ViewInline() string {
	if len(c.items) == 0 {
		return ""
	}

	start := 0
	if c.selected >= completionMaxInline {
		start = c.selected - completionMaxInline + 1
	}
	end := start + completionMaxInline
	if end > len(c.items) {
		end = len(c.items)
	}

	parts := make([]string, 0, completionMaxInline+1)
	for i := start; i < end; i++ {
		parts = append(parts, c.renderItem(c.items[i], i == c.selected))
	}
	if rest := len(c.items) - end; rest > 0 {
		parts = append(parts, c.theme.ShortcutDesc.Render("+"+toStr(rest)+" more"))
	}

	return c.theme.CompletionPopup.MaxWidth(c.width).Render(strings.Join(parts, " | "))
}

func (c *CompletionPopup) renderItem(item commands.Completion, selected bool) string {
	label := item.Display
	if label == "" {
		label = item.Value
	}
	label = truncateString(label, 24)

	style := c.theme.CompletionItem
	if selected {
		style = c.theme.CompletionSelected
	}
	out := style.Render(label)

	// Star the value that is already active (current model, current theme)
	// so cycling through candidates shows where you started.
	if item.IsCurrent {
		out += c.theme.CompletionMatch.Render("*")
	}
	return out
}
