// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/jeranaias/rigchat/internal/api"
	"github.com/jeranaias/rigchat/internal/commands"
	"github.com/jeranaias/rigchat/internal/model"
	"github.com/jeranaias/rigchat/internal/session"
	"github.com/jeranaias/rigchat/internal/storage"
	"github.com/jeranaias/rigchat/internal/ui/components"
)

// =============================================================================
// COMMAND CREATORS
// =============================================================================

// checkServerCmd probes the server's health endpoint.
func (m Model) checkServerCmd() tea.Cmd {
	client := m.client
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return serverStatusMsg{Err: client.Health(ctx)}
	}
}

// fetchModelsCmd quietly fetches the model list to warm the completion
// cache. Failures are ignored; the /models command reports them.
func (m Model) fetchModelsCmd() tea.Cmd {
	client := m.client
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		models, err := client.ListModels(ctx)
		return ModelsListedMsg{Models: models, Error: err}
	}
}

// runStreamCmd runs the blocking stream closure on a command goroutine.
// The outcome lands in the buffer's terminal state; the message only
// guarantees a final drain happens.
func runStreamCmd(run func() error) tea.Cmd {
	return func() tea.Msg {
		_ = run() // errors arrive through OnError into the buffer
		return streamRunDoneMsg{}
	}
}

// copyCmd copies text to the system clipboard.
func copyCmd(what, text string) tea.Cmd {
	return func() tea.Msg {
		return copyDoneMsg{What: what, Err: copyToClipboard(text)}
	}
}

// exportCmd writes the conversation to a file in the working directory.
func exportCmd(conv *model.Conversation, format string) tea.Cmd {
	return func() tea.Msg {
		var (
			data []byte
			ext  string
			err  error
		)
		switch format {
		case "json":
			ext = "json"
			data, err = storage.ExportJSON(conv)
		default:
			ext = "md"
			data = []byte(storage.ExportMarkdown(conv))
		}
		if err != nil {
			return commands.ExportCompleteMsg{Error: err}
		}

		name := fmt.Sprintf("rigchat-%s-%s.%s", conv.ID, time.Now().Format("20060102-150405"), ext)
		path := filepath.Join(".", name)
		if err := os.WriteFile(path, data, 0o600); err != nil {
			return commands.ExportCompleteMsg{Error: err}
		}
		return commands.ExportCompleteMsg{Path: path}
	}
}

// =============================================================================
// UPDATE
// =============================================================================

// Update handles all Bubble Tea messages for the chat view.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.SetSize(msg.Width, msg.Height)
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)

	case StreamTickMsg:
		return m.handleStreamTick()

	case streamRunDoneMsg:
		return m.finishStream()

	case session.TickMsg:
		m.syncStatusBar()
		return m, tea.Batch(m.session.HandleTick(), session.TickCmd())

	case session.AutoSavedMsg:
		if msg.Err == nil {
			m.notice = "Auto-saved"
		}
		return m, nil

	case serverStatusMsg:
		if msg.Err != nil {
			m.statusBar.SetStatus(components.StatusError)
			m.errView = components.SmartErrorFromError("Cannot reach server", msg.Err)
			m.errView.Show()
		} else if m.state == StateIdle {
			m.statusBar.SetStatus(components.StatusReady)
		}
		return m, nil

	case ModelsListedMsg:
		if msg.Error == nil {
			m.cacheModels(msg.Models)
		}
		return m, nil

	case components.ExecuteCommandMsg:
		if msg.Command != nil {
			return m.runCommand(msg.Command, msg.Args)
		}
		return m, nil
	}

	if mm, cmd, handled := m.handleCommandMsg(msg); handled {
		return mm, cmd
	}

	return m.updateComponents(msg)
}

// handleCommandMsg routes the message types produced by the slash command
// handlers in internal/commands.
func (m Model) handleCommandMsg(msg tea.Msg) (Model, tea.Cmd, bool) {
	switch msg := msg.(type) {
	case commands.ShowHelpMsg:
		m.helpText = commands.GenerateHelpText(m.registry, msg.Topic)
		m.overlay = OverlayHelp
		return m, nil, true

	case commands.ModelSwitchMsg:
		m.statusBar.SetModel(msg.Model)
		m.notice = msg.Message
		return m, nil, true

	case commands.NewConversationMsg:
		if m.state == StateStreaming {
			m.notice = "Finish or cancel the current response first"
			return m, nil, true
		}
		m.session.StartNew()
		m.syncStatusBar()
		m.refreshViewport()
		m.notice = "Started a new conversation"
		return m, nil, true

	case commands.ClearConversationMsg:
		if conv := m.session.Conversation(); conv != nil {
			conv.ClearHistory()
			m.session.MarkDirty()
		}
		m.refreshViewport()
		m.notice = "Conversation cleared"
		return m, nil, true

	case commands.SaveCompleteMsg:
		if msg.Error != nil {
			m.errView = components.SmartErrorFromError("Save failed", msg.Error)
			m.errView.Show()
		} else {
			m.notice = "Saved " + msg.ID
		}
		return m, nil, true

	case commands.ConversationLoadedMsg:
		if msg.Error != nil {
			m.errView = components.SmartErrorFromError("Open failed", msg.Error)
			m.errView.Show()
			return m, nil, true
		}
		m.overlay = OverlayNone
		m.syncStatusBar()
		m.refreshViewport()
		m.viewport.GotoBottom()
		m.notice = fmt.Sprintf("Opened %q (%d messages)", msg.Title, msg.MessageCount)
		return m, nil, true

	case commands.ConversationListMsg:
		if msg.Error != nil {
			m.errView = components.SmartErrorFromError("List failed", msg.Error)
			m.errView.Show()
			return m, nil, true
		}
		m.conversations = msg.Conversations
		m.convIndex = 0
		m.overlay = OverlayConversations
		return m, nil, true

	case commands.RetryRequestedMsg:
		return m.retry()

	case commands.CancelResultMsg:
		if msg.Cancelled {
			m.notice = "Request cancelled"
		} else {
			m.notice = "Nothing to cancel"
		}
		return m, nil, true

	case commands.CopyToClipboardMsg:
		content := msg.Content
		if content == "" {
			if conv := m.session.Conversation(); conv != nil {
				if last := conv.LastAssistant(); last != nil {
					content = last.DisplayContent()
				}
			}
		}
		if content == "" {
			m.notice = "Nothing to copy"
			return m, nil, true
		}
		return m, copyCmd("last response", content), true

	case copyDoneMsg:
		if msg.Err != nil {
			m.errView = components.SmartErrorFromError("Copy failed", msg.Err)
			m.errView.Show()
		} else {
			m.notice = "Copied " + msg.What + " to clipboard"
		}
		return m, nil, true

	case commands.ExportConversationMsg:
		conv := m.session.Conversation()
		if conv == nil || conv.IsEmpty() {
			m.notice = "Nothing to export"
			return m, nil, true
		}
		return m, exportCmd(conv, msg.Format), true

	case commands.ExportCompleteMsg:
		if msg.Error != nil {
			m.errView = components.SmartErrorFromError("Export failed", msg.Error)
			m.errView.Show()
		} else {
			m.notice = "Exported to " + msg.Path
		}
		return m, nil, true

	case commands.ShowModelsMsg:
		if msg.Error != nil {
			m.errView = components.SmartErrorFromError("Model listing failed", msg.Error)
			m.errView.Show()
			return m, nil, true
		}
		m.cacheModels(msg.Models)
		m.modelIndex = m.currentModelIndex()
		m.overlay = OverlayModels
		return m, nil, true

	case commands.SystemPromptMsg:
		if msg.Cleared {
			m.notice = "System message cleared"
		} else {
			m.notice = "System message updated"
		}
		return m, nil, true

	case commands.ShowConfigMsg:
		if msg.Key == "" {
			if m.cfg != nil {
				m.addSystemNote("Configuration:\n" + m.cfg.String())
			}
			return m, nil, true
		}
		m.notice = msg.Key + " = " + msg.Value
		return m, nil, true

	case commands.ConfigUpdateMsg:
		if msg.Error != nil {
			m.errView = components.SmartErrorFromError("Config update failed", msg.Error)
			m.errView.Show()
		} else {
			m.notice = fmt.Sprintf("%s = %v", msg.Key, msg.Value)
			m.syncStatusBar()
		}
		return m, nil, true

	case commands.ThemeChangedMsg:
		m.notice = "Theme set to " + msg.Theme
		return m, nil, true

	case commands.StatusInfoMsg:
		m.addSystemNote(renderStatusInfo(msg))
		return m, nil, true

	case commands.SearchResultsMsg:
		if msg.Error != nil {
			m.errView = components.SmartErrorFromError("Search failed", msg.Error)
			m.errView.Show()
			return m, nil, true
		}
		m.search = &msg
		m.overlay = OverlaySearch
		return m, nil, true

	case commands.ErrorMsg:
		var sugg []string
		if msg.Tip != "" {
			sugg = []string{msg.Tip}
		}
		m.errView = components.NewErrorWithSuggestions(msg.Title, msg.Message, sugg)
		m.errView.Show()
		return m, nil, true

	case commands.SystemMessageMsg:
		m.addSystemNote(msg.Content)
		return m, nil, true
	}

	return m, nil, false
}

// updateComponents forwards messages the chat model does not handle itself
// to the focused components.
func (m Model) updateComponents(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	var cmd tea.Cmd
	m.thinking, cmd = m.thinking.Update(msg)
	if cmd != nil {
		cmds = append(cmds, cmd)
	}

	m.errView, cmd = m.errView.Update(msg)
	if cmd != nil {
		cmds = append(cmds, cmd)
	}

	m.input, cmd = m.input.Update(msg)
	if cmd != nil {
		cmds = append(cmds, cmd)
	}

	return m, tea.Batch(cmds...)
}

// =============================================================================
// KEY HANDLING
// =============================================================================

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	// The error box swallows dismissal keys first
	if m.errView.IsVisible() {
		switch msg.String() {
		case "esc", "enter":
			m.errView.Hide()
			return m, nil
		}
	}

	// The palette owns the keyboard while visible
	if m.palette.IsVisible() {
		_, cmd := m.palette.Update(msg)
		return m, cmd
	}

	if m.overlay != OverlayNone {
		return m.handleOverlayKey(msg)
	}

	switch {
	case key.Matches(msg, m.keys.Quit):
		m.session.CancelAll()
		return m, tea.Quit

	case key.Matches(msg, m.keys.Cancel):
		if m.state == StateStreaming {
			if m.session.Cancel() {
				m.notice = "Cancelling..."
			}
			return m, nil
		}
		if m.popup.HasCompletions() {
			m.popup.Clear()
			m.completion.Clear()
			return m, nil
		}
		m.input.Reset()
		m.pending.Clear()
		return m, nil

	case key.Matches(msg, m.keys.Submit):
		return m.submitInput()

	case key.Matches(msg, m.keys.Complete):
		return m.acceptCompletion()

	case key.Matches(msg, m.keys.Palette):
		m.palette.Show()
		return m, m.palette.Focus()

	case key.Matches(msg, m.keys.Help):
		m.helpText = commands.GenerateHelpText(m.registry, "")
		m.overlay = OverlayHelp
		return m, nil

	case key.Matches(msg, m.keys.Reasoning):
		m.showReasoning = !m.showReasoning
		m.refreshViewport()
		return m, nil

	case key.Matches(msg, m.keys.Retry):
		mm, cmd, _ := m.retry()
		return mm, cmd

	case key.Matches(msg, m.keys.Clear):
		if conv := m.session.Conversation(); conv != nil {
			conv.ClearHistory()
			m.session.MarkDirty()
		}
		m.refreshViewport()
		return m, nil

	case key.Matches(msg, m.keys.Up):
		m.viewport.LineUp(1)
		return m, nil
	case key.Matches(msg, m.keys.Down):
		m.viewport.LineDown(1)
		return m, nil
	case key.Matches(msg, m.keys.PageUp):
		m.viewport.HalfViewUp()
		return m, nil
	case key.Matches(msg, m.keys.PageDown):
		m.viewport.HalfViewDown()
		return m, nil
	case key.Matches(msg, m.keys.Home):
		m.viewport.GotoTop()
		return m, nil
	case key.Matches(msg, m.keys.End):
		m.viewport.GotoBottom()
		return m, nil
	}

	// Everything else edits the input
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	m.updateCompletions()
	return m, cmd
}

// handleOverlayKey drives the overlay pickers.
func (m Model) handleOverlayKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "esc", "q":
		m.overlay = OverlayNone
		return m, nil

	case "up", "k":
		switch m.overlay {
		case OverlayModels:
			if m.modelIndex > 0 {
				m.modelIndex--
			}
		case OverlayConversations:
			if m.convIndex > 0 {
				m.convIndex--
			}
		}
		return m, nil

	case "down", "j":
		switch m.overlay {
		case OverlayModels:
			if m.modelIndex < len(m.models)-1 {
				m.modelIndex++
			}
		case OverlayConversations:
			if m.convIndex < len(m.conversations)-1 {
				m.convIndex++
			}
		}
		return m, nil

	case "enter":
		switch m.overlay {
		case OverlayModels:
			if m.modelIndex >= 0 && m.modelIndex < len(m.models) {
				name := m.models[m.modelIndex].ID
				m.overlay = OverlayNone
				return m.runCommand(m.registry.Get("/model"), []string{name})
			}
		case OverlayConversations:
			if m.convIndex >= 0 && m.convIndex < len(m.conversations) {
				id := m.conversations[m.convIndex].ID
				m.overlay = OverlayNone
				return m.runCommand(m.registry.Get("/open"), []string{id})
			}
		}
		m.overlay = OverlayNone
		return m, nil
	}

	return m, nil
}

// =============================================================================
// INPUT SUBMISSION
// =============================================================================

// submitInput sends the typed content: slash commands go through the
// registry, everything else becomes a user message.
func (m Model) submitInput() (tea.Model, tea.Cmd) {
	content := strings.TrimSpace(m.input.Value())
	if content == "" {
		return m, nil
	}

	m.popup.Clear()
	m.completion.Clear()

	if commands.IsCommand(content) {
		m.input.Reset()
		return m.executeCommandLine(content)
	}

	return m.sendMessage(content)
}

// executeCommandLine parses and runs one slash command line.
func (m Model) executeCommandLine(line string) (tea.Model, tea.Cmd) {
	result := m.parser.Parse(line)
	if result.Command == nil {
		m.errView = components.NewErrorWithSuggestions(
			"Unknown command",
			result.CommandName+" is not a command",
			[]string{"Use /help to see available commands"},
		)
		m.errView.Show()
		return m, nil
	}

	if err := commands.ValidateArgs(result.Command, result.Args); err != nil {
		m.errView = components.NewError("Invalid arguments", err.Error())
		m.errView.Show()
		return m, nil
	}

	return m.runCommand(result.Command, result.Args)
}

// runCommand invokes a command handler with a fresh handler context.
func (m Model) runCommand(cmd *commands.Command, args []string) (tea.Model, tea.Cmd) {
	if cmd == nil || cmd.Handler == nil {
		return m, nil
	}
	return m, cmd.Handler(m.cmdCtx.WithHandlerContext(m.handlerContext()), args)
}

// handlerContext snapshots view state the command handlers may need.
func (m Model) handlerContext() *commands.HandlerContext {
	hctx := &commands.HandlerContext{}
	if m.cfg != nil {
		hctx.CurrentModel = m.cfg.Chat.Model
		hctx.Endpoint = m.cfg.Server.Resolve()
	}
	if conv := m.session.Conversation(); conv != nil {
		if conv.Model != "" {
			hctx.CurrentModel = conv.Model
		}
		hctx.ConversationID = conv.ID
		hctx.MessageCount = conv.MessageCount()
		if last := conv.LastAssistant(); last != nil {
			hctx.LastResponse = last.DisplayContent()
		}
	}
	return hctx
}

// sendMessage resolves @file: attachments and starts the stream.
func (m Model) sendMessage(content string) (tea.Model, tea.Cmd) {
	if m.session.Streaming() {
		m.notice = "A response is already streaming (Esc cancels)"
		return m, nil
	}

	clean, paths := extractFileMentions(content)
	var attachments []model.Attachment
	m.pending.Clear()
	for _, path := range paths {
		att, err := model.AttachmentFromFile(path)
		if err != nil {
			m.errView = components.SmartErrorFromError("Cannot attach "+path, err)
			m.errView.Show()
			return m, nil // keep input for correction
		}
		attachments = append(attachments, att)
		m.pending.Add(components.ItemFromAttachment(att, path))
	}
	if clean == "" && len(attachments) > 0 {
		clean = "See attached file."
	}

	if _, err := m.session.BeginSend(clean, attachments...); err != nil {
		m.errView = components.SmartErrorFromError("Cannot send", err)
		m.errView.Show()
		return m, nil
	}

	m.input.Reset()
	return m.startStream()
}

// retry drops the last exchange and resends it.
func (m Model) retry() (Model, tea.Cmd, bool) {
	if m.state == StateStreaming {
		m.notice = "Wait for the current response"
		return m, nil, true
	}
	if _, _, err := m.session.BeginRetry(); err != nil {
		m.notice = err.Error()
		return m, nil, true
	}
	mm, cmd := m.startStream()
	return mm, cmd, true
}

// startStream wires the stream callbacks into the buffer and kicks off the
// request plus the drain tick.
func (m Model) startStream() (Model, tea.Cmd) {
	m.stream.Reset()
	buf := m.stream

	cb := api.StreamCallbacks{
		OnChunk:          buf.Write,
		OnReasoningChunk: buf.WriteReasoning,
		OnModel:          buf.SetModelName,
		OnComplete:       buf.Complete,
		OnError:          buf.Fail,
	}

	run, err := m.session.StreamFunc(cb)
	if err != nil {
		m.errView = components.SmartErrorFromError("Cannot send", err)
		m.errView.Show()
		return m, nil
	}

	m.state = StateStreaming
	m.notice = ""
	m.progress.Begin()
	m.statusBar.SetStatus(components.StatusStreaming)
	m.refreshViewport()

	return m, tea.Batch(
		runStreamCmd(run),
		streamTickCmd(),
		m.thinking.Start(),
	)
}

// =============================================================================
// STREAM DRAINING
// =============================================================================

// handleStreamTick drains the buffer into the conversation and schedules
// the next tick while the stream is alive.
func (m Model) handleStreamTick() (tea.Model, tea.Cmd) {
	if m.state != StateStreaming {
		return m, nil
	}

	m.drainStream(false)

	if done, _, _ := m.stream.Terminal(); done {
		return m.finishStream()
	}

	// Live processing feedback (prompt progress, generation rate)
	if conv := m.session.Conversation(); conv != nil {
		if state, ok := m.usage.ProcessingState(conv.ID); ok {
			m.progress.ApplyState(state)
		}
	}

	return m, streamTickCmd()
}

// drainStream moves buffered tokens into the streaming message. force
// bypasses the batching thresholds for the final drain.
func (m *Model) drainStream(force bool) {
	var content, reasoning string
	var ok bool
	if force {
		content, reasoning, ok = m.stream.ForceFlush()
	} else {
		content, reasoning, ok = m.stream.Flush()
	}
	if !ok {
		return
	}

	conv := m.session.Conversation()
	if conv == nil {
		return
	}
	if content != "" {
		conv.AppendToLast(content)
	}
	if reasoning != "" {
		conv.AppendReasoningToLast(reasoning)
	}
	m.refreshViewport()
}

// finishStream applies the stream's terminal state: completion, error, or
// quiet cancellation.
func (m Model) finishStream() (tea.Model, tea.Cmd) {
	if m.state != StateStreaming {
		return m, nil
	}

	m.drainStream(true)
	m.state = StateIdle
	m.thinking.Stop()
	m.pending.Clear()

	conv := m.session.Conversation()

	done, result, err := m.stream.Terminal()
	switch {
	case done && err != nil:
		if conv != nil {
			conv.FinalizeLast(nil)
		}
		m.progress.Error()
		m.statusBar.SetStatus(components.StatusError)
		m.errView = components.SmartErrorFromError("Request failed", err)
		m.errView.Show()

	case done:
		if name := m.stream.ModelName(); name != "" && conv != nil {
			conv.SetModel(name)
		}
		m.session.ApplyCompletion(result)
		if conv != nil {
			m.usage.RecordCompletion(conv.Model, result.Timings)
		}
		m.progress.Complete()
		m.statusBar.SetStatus(components.StatusReady)

	default:
		// Cancelled: the client aborts quietly, keep the partial text
		if conv != nil {
			conv.FinalizeLast(nil)
		}
		m.progress.Cancel()
		m.statusBar.SetStatus(components.StatusReady)
		m.notice = "Request cancelled"
	}

	m.syncStatusBar()
	m.refreshViewport()
	return m, nil
}

// =============================================================================
// COMPLETION
// =============================================================================

// updateCompletions refreshes the popup for the current input.
func (m *Model) updateCompletions() {
	value := m.input.Value()
	if value == "" || (!strings.HasPrefix(value, "/") && !strings.Contains(value, "@")) {
		m.popup.Clear()
		m.completion.Clear()
		return
	}

	comps := m.completer.Complete(value, m.input.Position())
	m.completion.Update(value, comps)
	m.popup.SetCompletions(comps)
	m.popup.SetSelected(m.completion.Selected)
}

// acceptCompletion applies the selected completion to the input.
func (m Model) acceptCompletion() (tea.Model, tea.Cmd) {
	if !m.popup.HasCompletions() {
		return m, nil
	}

	value := m.completion.Accept()
	if value == "" {
		return m, nil
	}

	m.input.SetValue(applyCompletion(m.input.Value(), value))
	m.input.CursorEnd()
	m.popup.Clear()
	m.completion.Clear()
	return m, nil
}

// =============================================================================
// HELPERS
// =============================================================================

// cacheModels stores the model list for the picker and the completer.
func (m *Model) cacheModels(models []api.ModelInfo) {
	m.models = models
	names := make([]string, len(models))
	for i, info := range models {
		names[i] = info.ID
	}
	m.comp.models = names
}

// currentModelIndex returns the picker index of the active model.
func (m Model) currentModelIndex() int {
	current := ""
	if conv := m.session.Conversation(); conv != nil {
		current = conv.Model
	}
	if current == "" && m.cfg != nil {
		current = m.cfg.Chat.Model
	}
	for i, info := range m.models {
		if info.ID == current {
			return i
		}
	}
	return 0
}

// addSystemNote appends an informational system message to the transcript.
func (m *Model) addSystemNote(content string) {
	if conv := m.session.Conversation(); conv != nil {
		conv.AddSystemMessage(content)
	}
	m.refreshViewport()
	m.viewport.GotoBottom()
}

// renderStatusInfo formats the /status payload for the transcript.
func renderStatusInfo(info commands.StatusInfoMsg) string {
	var sb strings.Builder
	sb.WriteString("Status\n")
	sb.WriteString("  Model:        " + orUnset(info.Model) + "\n")
	sb.WriteString("  Endpoint:     " + info.Endpoint)
	if info.External {
		sb.WriteString(" (external)")
	} else {
		sb.WriteString(" (local)")
	}
	sb.WriteString("\n")
	sb.WriteString("  Server:       " + info.ServerStatus + "\n")
	sb.WriteString("  Session:      " + info.SessionID + " (started " + info.SessionStart + ")\n")
	if info.ConversationID != "" {
		sb.WriteString(fmt.Sprintf("  Conversation: %s, %d messages", info.ConversationID, info.MessageCount))
		if info.Dirty {
			sb.WriteString(", unsaved changes")
		}
		sb.WriteString("\n")
	}
	if info.IndexedConvs > 0 || info.IndexedMsgs > 0 {
		sb.WriteString(fmt.Sprintf("  Index:        %d conversations, %d messages\n", info.IndexedConvs, info.IndexedMsgs))
	}
	return strings.TrimRight(sb.String(), "\n")
}

func orUnset(s string) string {
	if s == "" {
		return "(server default)"
	}
	return s
}
