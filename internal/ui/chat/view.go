// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package chat provides the chat view component for the TUI.
//
// This file contains all rendering logic for the chat interface: the main
// layout, message bubbles, reasoning folds, code block processing, the
// overlay pickers, and the input area.
package chat

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"

	"github.com/jeranaias/rigchat/internal/model"
	"github.com/jeranaias/rigchat/internal/ui/components"
	"github.com/jeranaias/rigchat/internal/ui/styles"
)

// =============================================================================
// MAIN RENDER
// =============================================================================

// View renders the complete chat interface.
// Layout: header (1) + messages (viewport) + aux line (1) + input (1) +
// status bar (1), with the attachment bar appearing above the input when
// files are staged. Total height must equal m.height exactly.
func (m Model) View() string {
	if !m.ready || m.width == 0 || m.height == 0 {
		return "Loading..."
	}

	if m.overlay != OverlayNone {
		return m.renderOverlay()
	}

	rows := []string{
		m.renderHeader(),
		m.viewport.View(),
		m.renderAuxLine(),
	}
	if m.pending.HasItems() {
		rows = append(rows, m.attachBar.RenderCompact())
	}
	rows = append(rows, m.renderInputLine(), m.statusBar.View())

	baseView := lipgloss.JoinVertical(lipgloss.Left, rows...)

	// Command palette overlays everything else
	if m.palette != nil && m.palette.IsVisible() {
		return lipgloss.Place(
			m.width, m.height,
			lipgloss.Left, lipgloss.Top,
			baseView+"\n"+m.palette.View(),
		)
	}

	// Error box overlays the base view, centered
	if m.errView.IsVisible() {
		return lipgloss.Place(
			m.width, m.height,
			lipgloss.Center, lipgloss.Center,
			m.errView.View(),
		)
	}

	return baseView
}

// =============================================================================
// HEADER
// =============================================================================

// renderHeader renders the one-line title bar with the model name and a
// status indicator.
func (m Model) renderHeader() string {
	width := m.width
	if width <= 0 {
		width = 80
	}

	title := lipgloss.NewStyle().
		Bold(true).
		Foreground(styles.Purple).
		Render("rigchat")

	modelName := ""
	if conv := m.session.Conversation(); conv != nil {
		modelName = conv.Model
	}
	if modelName == "" && m.cfg != nil {
		modelName = m.cfg.Chat.Model
	}
	if modelName == "" {
		modelName = "server default"
	}
	modelInfo := lipgloss.NewStyle().
		Foreground(styles.TextMuted).
		Render(" | " + modelName)

	var statusIcon string
	if m.state == StateStreaming {
		statusIcon = lipgloss.NewStyle().Foreground(styles.Emerald).Render(" *")
	} else {
		statusIcon = lipgloss.NewStyle().Foreground(styles.Cyan).Render(" .")
	}

	return lipgloss.NewStyle().
		Background(styles.SurfaceDim).
		Width(width).
		Padding(0, 1).
		Render(title + modelInfo + statusIcon)
}

// =============================================================================
// AUX LINE
// =============================================================================

// renderAuxLine renders the line between the transcript and the input:
// completion suggestions while typing, the thinking indicator while
// streaming, otherwise a transient notice or the key hint.
func (m Model) renderAuxLine() string {
	if m.popup.HasCompletions() {
		return m.popup.ViewInline()
	}

	if m.state == StateStreaming {
		parts := []string{m.thinking.View()}
		if m.progress.IsActive() {
			parts = append(parts, m.progress.Render())
		}
		return strings.Join(parts, "  ")
	}

	if m.notice != "" {
		return lipgloss.NewStyle().
			Foreground(styles.TextMuted).
			Padding(0, 1).
			Render(m.notice)
	}

	return lipgloss.NewStyle().
		Foreground(styles.Overlay).
		Padding(0, 1).
		Render("Enter=send | /=commands | C-p=palette | C-g=help | C-c=quit")
}

// renderInputLine renders the input with a streaming hint appended.
func (m Model) renderInputLine() string {
	inputView := m.input.View()
	if m.state == StateStreaming {
		inputView += lipgloss.NewStyle().
			Foreground(styles.Amber).
			Render(" (streaming... Esc=cancel)")
	}
	return inputView
}

// =============================================================================
// TRANSCRIPT
// =============================================================================

// renderTranscript renders all messages in the conversation.
func (m Model) renderTranscript() string {
	conv := m.session.Conversation()
	if conv == nil || conv.IsEmpty() {
		return m.renderEmptyState()
	}

	var parts []string
	messages := conv.History()
	for i, msg := range messages {
		rendered := m.renderMessage(msg, i == len(messages)-1)
		if rendered != "" {
			parts = append(parts, rendered)
		}
	}
	return strings.Join(parts, "\n")
}

// renderMessage renders a single message based on its role.
func (m Model) renderMessage(msg *model.Message, isLast bool) string {
	switch msg.Role {
	case model.RoleUser:
		return m.renderUserMessage(msg)
	case model.RoleAssistant:
		return m.renderAssistantMessage(msg, isLast)
	case model.RoleSystem:
		return m.renderSystemMessage(msg)
	default:
		return msg.DisplayContent()
	}
}

// bubbleWidth returns the max bubble width for the current terminal.
func (m Model) bubbleWidth() int {
	maxWidth := m.width - 8
	if maxWidth > m.width-2 {
		maxWidth = m.width - 2
	}
	if maxWidth < 10 {
		maxWidth = 10
	}
	return maxWidth
}

// wrapWidthFor returns the text wrap width inside a bubble of maxWidth.
func wrapWidthFor(maxWidth int) int {
	if w := maxWidth - 4; w >= 10 {
		return w
	}
	return 10
}

// messageBubble builds the bordered bubble style the role renderers share.
func messageBubble(fg, bg, border lipgloss.TerminalColor, shape lipgloss.Border, maxWidth int) lipgloss.Style {
	return lipgloss.NewStyle().
		Foreground(fg).
		Background(bg).
		BorderStyle(shape).
		BorderForeground(border).
		Padding(0, 2).
		MaxWidth(maxWidth)
}

// renderUserMessage renders a user message with blue styling and right
// alignment.
func (m Model) renderUserMessage(msg *model.Message) string {
	maxWidth := m.bubbleWidth()
	content := msg.DisplayContent()

	// Attachment names show under the text so the user sees what went out
	if len(msg.Attachments) > 0 {
		var names []string
		for _, att := range msg.Attachments {
			names = append(names, att.Name)
		}
		content += "\n[attached: " + strings.Join(names, ", ") + "]"
	}

	bubble := messageBubble(
		styles.UserBubbleFg, styles.UserBubbleBg, styles.UserBubbleBorder,
		lipgloss.RoundedBorder(), maxWidth)
	rendered := bubble.Render(wrapText(content, wrapWidthFor(maxWidth)))

	// Push right; user messages align right
	marginLeft := 0
	if room := m.width - lipgloss.Width(rendered) - 4; room > 0 {
		marginLeft = room
	}

	return lipgloss.NewStyle().
		MarginLeft(marginLeft).
		MarginTop(1).
		MarginBottom(1).
		Render(rendered)
}

// renderAssistantMessage renders an assistant message with purple styling,
// including the reasoning fold, code blocks, streaming cursor, and stats.
func (m Model) renderAssistantMessage(msg *model.Message, isLast bool) string {
	maxWidth := m.bubbleWidth()
	content := msg.DisplayContent()

	// Skip rendering if no content yet (prevents empty bubble)
	if strings.TrimSpace(content) == "" && !msg.IsStreaming && !msg.HasReasoning() {
		return ""
	}

	var parts []string

	if reasoning := m.renderReasoning(msg, maxWidth); reasoning != "" {
		parts = append(parts, reasoning)
	}

	streaming := msg.IsStreaming && isLast && m.state == StateStreaming
	if streaming {
		cursor := lipgloss.NewStyle().Foreground(styles.Purple).Blink(true).Render("_")
		if content == "" {
			content = "_"
		} else {
			content += cursor
		}
	}

	if content != "" {
		parts = append(parts, m.renderAssistantContent(content, maxWidth, streaming))
	}

	if !msg.IsStreaming && msg.HasToolCalls() {
		parts = append(parts, m.renderToolCalls(msg, maxWidth))
	}

	if !msg.IsStreaming {
		if stats := msg.FormatStats(); stats != "" {
			parts = append(parts, lipgloss.NewStyle().
				Foreground(styles.TextMuted).
				Italic(true).
				PaddingLeft(2).
				Render(stats+" | "+formatTimestamp(msg.Timestamp)))
		}
	}

	return lipgloss.NewStyle().
		MarginTop(1).
		MarginBottom(1).
		MarginLeft(2).
		Render(strings.Join(parts, "\n"))
}

// renderAssistantContent renders the visible text: glamour for finished
// messages when markdown is enabled, code block splitting otherwise.
// Streaming text always renders raw so partial fences don't confuse the
// markdown renderer.
func (m Model) renderAssistantContent(content string, maxWidth int, streaming bool) string {
	if !streaming && m.cfg != nil && m.cfg.UI.MarkdownEnabled {
		if out, ok := renderMarkdown(content, maxWidth-4); ok {
			return out
		}
	}
	return m.renderContentWithCodeBlocks(content, maxWidth)
}

// renderToolCalls shows the tool calls the model requested. rigchat never
// executes them; the block is informational so the user can act on it.
func (m Model) renderToolCalls(msg *model.Message, maxWidth int) string {
	header := lipgloss.NewStyle().
		Foreground(styles.ToolCallBorder).
		Bold(true).
		Render("Tool call requested")

	body := lipgloss.NewStyle().
		Foreground(styles.ToolCallFg).
		Background(styles.ToolCallBg).
		BorderStyle(lipgloss.NormalBorder()).
		BorderForeground(styles.ToolCallBorder).
		BorderLeft(true).
		PaddingLeft(1).
		MaxWidth(maxWidth).
		Render(wrapText(msg.ToolCalls, wrapWidthFor(maxWidth)))

	return header + "\n" + body
}

// renderReasoning renders the reasoning fold above the answer. Hidden
// reasoning leaves a one-line hint so the user knows C-t reveals it.
func (m Model) renderReasoning(msg *model.Message, maxWidth int) string {
	if !msg.HasReasoning() {
		return ""
	}

	if !m.showReasoning {
		return lipgloss.NewStyle().
			Foreground(styles.Overlay).
			Italic(true).
			Render("[thinking hidden - C-t to show]")
	}

	header := lipgloss.NewStyle().
		Foreground(styles.TextMuted).
		Bold(true).
		Render("Thinking")

	body := lipgloss.NewStyle().
		Foreground(styles.ReasoningFg).
		Italic(true).
		BorderStyle(lipgloss.NormalBorder()).
		BorderForeground(styles.ReasoningBorder).
		BorderLeft(true).
		PaddingLeft(2).
		MaxWidth(maxWidth).
		Render(wrapText(msg.DisplayReasoning(), wrapWidthFor(maxWidth)))

	return header + "\n" + body
}

// renderContentWithCodeBlocks processes content and renders code blocks
// separately with syntax highlighting.
func (m Model) renderContentWithCodeBlocks(content string, maxWidth int) string {
	wrapWidth := wrapWidthFor(maxWidth)
	textBubble := messageBubble(
		styles.AssistantBubbleFg, styles.AssistantBubbleBg, styles.AssistantBubbleBorder,
		lipgloss.RoundedBorder(), maxWidth)

	if !strings.Contains(content, "```") {
		return textBubble.Render(wrapText(content, wrapWidth))
	}

	var (
		parts       []string
		currentText []string
		codeLines   []string
		language    string
		inCodeBlock bool
	)

	flushText := func() {
		text := strings.Join(currentText, "\n")
		currentText = nil
		if strings.TrimSpace(text) != "" {
			parts = append(parts, textBubble.Render(wrapText(text, wrapWidth)))
		}
	}
	flushCode := func() {
		cb := components.NewCodeBlock(language, strings.Join(codeLines, "\n"))
		cb.SetMaxWidth(maxWidth)
		parts = append(parts, cb.Render())
		codeLines = nil
	}

	for _, line := range strings.Split(content, "\n") {
		switch {
		case strings.HasPrefix(line, "```") && inCodeBlock:
			flushText()
			flushCode()
			language = ""
			inCodeBlock = false
		case strings.HasPrefix(line, "```"):
			flushText()
			language = strings.TrimSpace(strings.TrimPrefix(line, "```"))
			inCodeBlock = true
		case inCodeBlock:
			codeLines = append(codeLines, line)
		default:
			currentText = append(currentText, line)
		}
	}

	flushText()

	// Unclosed fence: render what we have as code
	if inCodeBlock {
		if len(codeLines) > 0 {
			flushCode()
		} else {
			parts = append(parts, textBubble.Render("```"+language))
		}
	}

	return strings.Join(parts, "\n")
}

// renderSystemMessage renders a system message with amber styling.
func (m Model) renderSystemMessage(msg *model.Message) string {
	maxWidth := m.bubbleWidth()

	bubble := messageBubble(
		styles.SystemBubbleFg, styles.SystemBubbleBg, styles.SystemBubbleBorder,
		lipgloss.DoubleBorder(), maxWidth)
	rendered := bubble.Render(wrapText(msg.DisplayContent(), wrapWidthFor(maxWidth)))

	return lipgloss.NewStyle().
		MarginTop(1).
		MarginBottom(1).
		Render(rendered)
}

// renderEmptyState renders the empty conversation state.
func (m Model) renderEmptyState() string {
	width := m.width
	if width <= 0 {
		width = 80
	}
	emptyWidth := width - 8
	switch {
	case emptyWidth < 40:
		emptyWidth = 40
	case emptyWidth > 80:
		emptyWidth = 80
	}

	centered := func(c lipgloss.TerminalColor, bold bool) lipgloss.Style {
		return lipgloss.NewStyle().
			Foreground(c).
			Bold(bold).
			Align(lipgloss.Center).
			Width(emptyWidth)
	}

	modelName := "server default"
	if m.cfg != nil && m.cfg.Chat.Model != "" {
		modelName = m.cfg.Chat.Model
	}

	var sb strings.Builder
	sb.WriteString(centered(styles.Purple, true).Render("Welcome to rigchat"))
	sb.WriteString("\n\n")
	sb.WriteString(centered(styles.TextSecondary, false).Render("Model: " + modelName))
	sb.WriteString("\n\n")

	tipStyle := lipgloss.NewStyle().Foreground(styles.TextMuted)
	keyStyle := lipgloss.NewStyle().Foreground(styles.Amber).Bold(true)

	tips := []struct {
		key  string
		desc string
	}{
		{"Type a message", "Start chatting"},
		{"/help", "List available commands"},
		{"/model <name>", "Switch models"},
		{"Ctrl+P", "Open command palette"},
		{"@file:path", "Attach a file to your message"},
	}
	for _, tip := range tips {
		sb.WriteString(fmt.Sprintf("  %s  %s\n",
			keyStyle.Render(fmt.Sprintf("%-16s", tip.key)),
			tipStyle.Render(tip.desc)))
	}

	sb.WriteString("\n")
	sb.WriteString(centered(styles.Overlay, false).Render("C-g for help | C-c to quit"))

	return lipgloss.NewStyle().
		Align(lipgloss.Center).
		Width(width - 4).
		Padding(2, 0).
		Render(sb.String())
}

// =============================================================================
// OVERLAYS
// =============================================================================

// renderOverlay renders the active full-screen overlay.
func (m Model) renderOverlay() string {
	var content string
	switch m.overlay {
	case OverlayHelp:
		content = m.helpText
	case OverlayModels:
		content = m.renderModelPicker()
	case OverlayConversations:
		content = m.renderConversationPicker()
	case OverlaySearch:
		content = m.renderSearchResults()
	}

	contentWidth := m.width - 8
	switch {
	case contentWidth < 40:
		contentWidth = 40
	case contentWidth > 100:
		contentWidth = 100
	}

	box := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(styles.Purple).
		Background(styles.Surface).
		Padding(1, 2).
		Width(contentWidth).
		MaxHeight(m.height - 2).
		Render(content)

	return lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center, box)
}

// renderModelPicker renders the model selection list.
func (m Model) renderModelPicker() string {
	var sb strings.Builder
	sb.WriteString(lipgloss.NewStyle().Bold(true).Foreground(styles.Purple).Render("Models"))
	sb.WriteString("\n\n")

	if len(m.models) == 0 {
		sb.WriteString(lipgloss.NewStyle().Foreground(styles.TextMuted).Render("No models reported by the server."))
	}

	selectedStyle := lipgloss.NewStyle().
		Foreground(styles.TextInverse).
		Background(styles.Purple).
		Bold(true)
	normalStyle := lipgloss.NewStyle().Foreground(styles.TextPrimary)

	for i, info := range m.models {
		line := "  " + info.ID
		if info.OwnedBy != "" {
			line += lipgloss.NewStyle().Foreground(styles.TextMuted).Render("  (" + info.OwnedBy + ")")
		}
		if i == m.modelIndex {
			sb.WriteString(selectedStyle.Render("> " + info.ID))
		} else {
			sb.WriteString(normalStyle.Render(line))
		}
		sb.WriteString("\n")
	}

	sb.WriteString("\n")
	sb.WriteString(lipgloss.NewStyle().Foreground(styles.Overlay).Render("up/down=select | Enter=switch | Esc=close"))
	return sb.String()
}

// renderConversationPicker renders the saved conversation list.
func (m Model) renderConversationPicker() string {
	var sb strings.Builder
	sb.WriteString(lipgloss.NewStyle().Bold(true).Foreground(styles.Purple).Render("Conversations"))
	sb.WriteString("\n\n")

	if len(m.conversations) == 0 {
		sb.WriteString(lipgloss.NewStyle().Foreground(styles.TextMuted).Render("No saved conversations yet."))
	}

	selectedStyle := lipgloss.NewStyle().
		Foreground(styles.TextInverse).
		Background(styles.Purple).
		Bold(true)
	normalStyle := lipgloss.NewStyle().Foreground(styles.TextPrimary)
	metaStyle := lipgloss.NewStyle().Foreground(styles.TextMuted)

	for i, info := range m.conversations {
		title := info.Title
		if title == "" {
			title = "(untitled)"
		}
		line := fmt.Sprintf("%s - %s", info.ID, title)
		meta := fmt.Sprintf("  %d msgs, %s", info.MsgCount, info.UpdatedAt)
		if i == m.convIndex {
			sb.WriteString(selectedStyle.Render("> " + line))
		} else {
			sb.WriteString(normalStyle.Render("  " + line))
		}
		sb.WriteString(metaStyle.Render(meta))
		sb.WriteString("\n")
	}

	sb.WriteString("\n")
	sb.WriteString(lipgloss.NewStyle().Foreground(styles.Overlay).Render("up/down=select | Enter=open | Esc=close"))
	return sb.String()
}

// renderSearchResults renders full-text search hits with snippets.
func (m Model) renderSearchResults() string {
	var sb strings.Builder
	header := "Search"
	if m.search != nil {
		header = fmt.Sprintf("Search: %q (%d hits, %s)", m.search.Query, len(m.search.Results), m.search.Duration)
	}
	sb.WriteString(lipgloss.NewStyle().Bold(true).Foreground(styles.Purple).Render(header))
	sb.WriteString("\n\n")

	if m.search == nil || len(m.search.Results) == 0 {
		sb.WriteString(lipgloss.NewStyle().Foreground(styles.TextMuted).Render("No matches."))
		sb.WriteString("\n")
	} else {
		titleStyle := lipgloss.NewStyle().Foreground(styles.Cyan).Bold(true)
		metaStyle := lipgloss.NewStyle().Foreground(styles.TextMuted)
		snippetStyle := lipgloss.NewStyle().Foreground(styles.TextSecondary)

		for _, res := range m.search.Results {
			title := res.Title
			if title == "" {
				title = res.ConversationID
			}
			sb.WriteString(titleStyle.Render(title))
			sb.WriteString(metaStyle.Render(fmt.Sprintf("  [%s, %s]", res.Role, res.ConversationID)))
			sb.WriteString("\n")
			sb.WriteString(snippetStyle.Render("  " + res.Snippet))
			sb.WriteString("\n\n")
		}
		sb.WriteString(lipgloss.NewStyle().Foreground(styles.TextMuted).Render("Open a hit with /open <id>"))
		sb.WriteString("\n")
	}

	sb.WriteString("\n")
	sb.WriteString(lipgloss.NewStyle().Foreground(styles.Overlay).Render("Esc=close"))
	return sb.String()
}

// =============================================================================
// MARKDOWN
// =============================================================================

// Glamour renderers are expensive to build, so the last one is cached and
// rebuilt only when the wrap width changes. Only touched on the render loop.
var (
	mdRenderer *glamour.TermRenderer
	mdWidth    int
)

// renderMarkdown renders markdown through glamour, reporting ok=false when
// rendering fails so the caller can fall back to raw text.
func renderMarkdown(content string, width int) (string, bool) {
	if width < 20 {
		width = 20
	}

	if mdRenderer == nil || mdWidth != width {
		r, err := glamour.NewTermRenderer(
			glamour.WithAutoStyle(),
			glamour.WithWordWrap(width),
		)
		if err != nil {
			return "", false
		}
		mdRenderer = r
		mdWidth = width
	}

	out, err := mdRenderer.Render(content)
	if err != nil {
		return "", false
	}
	return strings.TrimRight(out, "\n"), true
}
