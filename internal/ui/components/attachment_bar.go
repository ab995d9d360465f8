// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package components

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/jeranaias/rigchat/internal/model"
	"github.com/jeranaias/rigchat/internal/ui/styles"
)

// =============================================================================
// PENDING ATTACHMENT TYPES
// =============================================================================

// AttachmentItem represents one file staged to be sent with the next message.
type AttachmentItem struct {
	Kind        model.AttachmentKind // image, audio, or document
	Path        string               // Source path; empty for clipboard pastes
	DisplayName string               // Short name (e.g., "photo.png")
	Tokens      int                  // Estimated token cost
}

// PendingAttachments tracks attachments staged for the next user message.
// Sending the message consumes them; they do not persist across turns.
type PendingAttachments struct {
	Items       []AttachmentItem
	TotalTokens int
}

// NewPendingAttachments creates an empty staging area.
func NewPendingAttachments() *PendingAttachments {
	return &PendingAttachments{
		Items:       []AttachmentItem{},
		TotalTokens: 0,
	}
}

// Add stages an attachment item.
func (pa *PendingAttachments) Add(item AttachmentItem) {
	// Attaching the same file twice is almost always a mistake
	for _, existing := range pa.Items {
		if existing.Kind == item.Kind && existing.Path == item.Path && existing.DisplayName == item.DisplayName {
			return
		}
	}
	pa.Items = append(pa.Items, item)
	pa.TotalTokens += item.Tokens
}

// Remove unstages an attachment by index.
func (pa *PendingAttachments) Remove(index int) {
	if index < 0 || index >= len(pa.Items) {
		return
	}
	item := pa.Items[index]
	pa.TotalTokens -= item.Tokens
	pa.Items = append(pa.Items[:index], pa.Items[index+1:]...)
}

// Clear unstages everything. Called after the message is sent.
func (pa *PendingAttachments) Clear() {
	pa.Items = pa.Items[:0]
	pa.TotalTokens = 0
}

// HasItems returns true if anything is staged.
func (pa *PendingAttachments) HasItems() bool {
	return len(pa.Items) > 0
}

// ItemFromAttachment builds a display item from a model attachment.
func ItemFromAttachment(att model.Attachment, path string) AttachmentItem {
	name := att.Name
	if name == "" {
		name = path
	}
	// Reduce paths to the file name for display
	if idx := strings.LastIndexAny(name, "/\\"); idx >= 0 {
		name = name[idx+1:]
	}
	return AttachmentItem{
		Kind:        att.Kind,
		Path:        path,
		DisplayName: name,
		Tokens:      att.EstimateTokens(),
	}
}

// =============================================================================
// ATTACHMENT BAR COMPONENT
// =============================================================================

// AttachmentBar renders the staged attachment indicator above the input.
type AttachmentBar struct {
	pending  *PendingAttachments
	width    int
	expanded bool
}

// NewAttachmentBar creates a new attachment bar component.
func NewAttachmentBar() *AttachmentBar {
	return &AttachmentBar{
		pending:  NewPendingAttachments(),
		width:    80,
		expanded: false,
	}
}

// SetPending updates the staged attachments.
func (ab *AttachmentBar) SetPending(pending *PendingAttachments) {
	ab.pending = pending
}

// SetWidth updates the width of the attachment bar.
func (ab *AttachmentBar) SetWidth(width int) {
	ab.width = width
}

// SetExpanded toggles the expanded view.
func (ab *AttachmentBar) SetExpanded(expanded bool) {
	ab.expanded = expanded
}

// RenderCompact renders a one-line indicator.
// Format: "Attached: [IMG] photo.png +1.2k tok | [DOC] notes.md +500 tok | Total: ~2k tok"
func (ab *AttachmentBar) RenderCompact() string {
	if ab.pending == nil || !ab.pending.HasItems() {
		return ""
	}

	parts := []string{}

	// Limit to the first few items to keep it one line
	maxItems := 3
	itemCount := len(ab.pending.Items)
	displayCount := itemCount
	if displayCount > maxItems {
		displayCount = maxItems
	}

	for i := 0; i < displayCount; i++ {
		item := ab.pending.Items[i]
		parts = append(parts, ab.formatItemCompact(item))
	}

	// Add "... +N more" if there are more items
	if itemCount > maxItems {
		remaining := itemCount - maxItems
		parts = append(parts, fmt.Sprintf("... +%d more", remaining))
	}

	// Add total
	totalStr := formatTokenCount(ab.pending.TotalTokens)

	result := strings.Join(parts, " | ")
	if result != "" {
		result = "Attached: " + result + " | Total: ~" + totalStr
	}

	// Add MaxWidth constraint to prevent overflow on narrow terminals
	maxWidth := ab.width - 4
	if maxWidth < 10 {
		maxWidth = 10
	}

	resultRunes := []rune(result)
	if len(resultRunes) > maxWidth {
		result = string(resultRunes[:maxWidth-3]) + "..."
	}

	return lipgloss.NewStyle().
		Foreground(styles.TextMuted).
		Render(result)
}

// RenderInline renders a super compact indicator for narrow spaces.
// Format: "[IMG] photo.png +1.2k | [DOC] notes.md +500"
func (ab *AttachmentBar) RenderInline() string {
	if ab.pending == nil || !ab.pending.HasItems() {
		return ""
	}

	parts := []string{}

	// Show only first 2 items for inline
	maxItems := 2
	itemCount := len(ab.pending.Items)
	displayCount := itemCount
	if displayCount > maxItems {
		displayCount = maxItems
	}

	for i := 0; i < displayCount; i++ {
		item := ab.pending.Items[i]
		parts = append(parts, ab.formatItemInline(item))
	}

	// Add indicator if more items exist
	if itemCount > maxItems {
		parts = append(parts, "...")
	}

	result := strings.Join(parts, " | ")

	return lipgloss.NewStyle().
		Foreground(styles.Cyan).
		Render(result)
}

// RenderExpanded renders the full staged list with remove buttons.
func (ab *AttachmentBar) RenderExpanded() string {
	if ab.pending == nil || !ab.pending.HasItems() {
		return lipgloss.NewStyle().
			Foreground(styles.TextMuted).
			Render("No attachments staged")
	}

	var lines []string

	// Header
	header := lipgloss.NewStyle().
		Bold(true).
		Foreground(styles.Purple).
		Render("Attachments")
	lines = append(lines, header)
	lines = append(lines, strings.Repeat("-", 40))

	for _, item := range ab.pending.Items {
		lines = append(lines, ab.formatItemExpanded(item))
	}

	// Footer with totals
	lines = append(lines, strings.Repeat("-", 40))
	totalLine := fmt.Sprintf("Total: ~%s tokens", formatTokenCountLong(ab.pending.TotalTokens))
	lines = append(lines, lipgloss.NewStyle().
		Foreground(styles.TextMuted).
		Render(totalLine))

	// Combine all lines
	content := strings.Join(lines, "\n")

	// Wrap in a border
	width := ab.width - 4
	if width < 10 {
		width = 10
	}

	box := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(styles.Purple).
		Padding(1, 2).
		Width(width).
		Render(content)

	return box
}

// =============================================================================
// FORMATTING HELPERS
// =============================================================================

// formatItemCompact formats an item for compact display.
// Format: "[IMG] photo.png +1.2k tok"
func (ab *AttachmentBar) formatItemCompact(item AttachmentItem) string {
	icon := attachmentIcon(item.Kind)
	name := item.DisplayName
	if name == "" {
		name = item.Path
	}
	// Truncate long names
	if len([]rune(name)) > 15 {
		nameRunes := []rune(name)
		name = string(nameRunes[:12]) + "..."
	}

	tokenStr := formatTokenCount(item.Tokens)

	return lipgloss.NewStyle().
		Foreground(attachmentColor(item.Kind)).
		Render(fmt.Sprintf("%s %s +%s", icon, name, tokenStr))
}

// formatItemInline formats an item for inline display (super compact).
func (ab *AttachmentBar) formatItemInline(item AttachmentItem) string {
	icon := attachmentIcon(item.Kind)
	tokenStr := formatTokenCount(item.Tokens)
	name := item.DisplayName
	if name == "" {
		name = string(item.Kind)
	}

	return lipgloss.NewStyle().
		Foreground(attachmentColor(item.Kind)).
		Render(fmt.Sprintf("%s %s +%s", icon, name, tokenStr))
}

// formatItemExpanded formats an item for the expanded list.
// Format: "[IMG] photo.png          1,200 tokens [x]"
func (ab *AttachmentBar) formatItemExpanded(item AttachmentItem) string {
	icon := attachmentIcon(item.Kind)
	name := item.DisplayName
	if name == "" {
		name = item.Path
	}

	// Pad name to align token counts
	namePadded := padRight(name, 20)

	tokenStr := formatTokenCountLong(item.Tokens) + " tokens"

	nameStyle := lipgloss.NewStyle().Foreground(attachmentColor(item.Kind))
	tokenStyle := lipgloss.NewStyle().Foreground(styles.TextMuted)
	actionStyle := lipgloss.NewStyle().Foreground(styles.Rose)

	return fmt.Sprintf("%s %s %s %s",
		nameStyle.Render(icon),
		nameStyle.Render(namePadded),
		tokenStyle.Render(tokenStr),
		actionStyle.Render("[x]"))
}

// attachmentIcon returns the ASCII icon for an attachment kind.
func attachmentIcon(kind model.AttachmentKind) string {
	switch kind {
	case model.AttachmentImage:
		return "[IMG]"
	case model.AttachmentAudio:
		return "[AUD]"
	case model.AttachmentDocument:
		return "[DOC]"
	default:
		return "[?]"
	}
}

// attachmentColor returns the color for an attachment kind.
func attachmentColor(kind model.AttachmentKind) lipgloss.AdaptiveColor {
	switch kind {
	case model.AttachmentImage:
		return styles.Cyan
	case model.AttachmentAudio:
		return styles.Purple
	case model.AttachmentDocument:
		return styles.Emerald
	default:
		return styles.TextMuted
	}
}

// formatTokenCount formats a token count compactly.
// Returns "2.5k tok" for 2500, "500 tok" for 500, etc.
func formatTokenCount(tokens int) string {
	if tokens < 1000 {
		return fmt.Sprintf("%d tok", tokens)
	}
	if tokens < 10000 {
		return fmt.Sprintf("%.1fk tok", float64(tokens)/1000.0)
	}
	return fmt.Sprintf("%dk tok", tokens/1000)
}

// formatTokenCountLong formats a token count with thousand separators.
func formatTokenCountLong(tokens int) string {
	return fmtNumber(tokens)
}

// padRight pads a string to the specified length with spaces, truncating
// longer values so token columns stay aligned.
func padRight(s string, length int) string {
	runes := []rune(s)
	if len(runes) >= length {
		return string(runes[:length])
	}
	padding := strings.Repeat(" ", length-len(runes))
	return s + padding
}
