// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package commands

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/jeranaias/rigchat/internal/api"
	"github.com/jeranaias/rigchat/internal/config"
)

// =============================================================================
// DISPATCH-TIME STATE
// =============================================================================

// HandlerContext is the view-state snapshot taken at dispatch time. The
// services on Context answer most questions; this carries the few values
// only the view knows, like the text of the last visible answer.
type HandlerContext struct {
	CurrentModel   string
	Endpoint       string
	ConversationID string
	MessageCount   int

	// LastResponse is the rendered content of the newest assistant
	// message. /copy reads it here.
	LastResponse string
}

// ConversationInfo is the listing record handed to the view and the
// completer.
type ConversationInfo struct {
	ID        string
	Title     string
	Model     string
	Preview   string
	UpdatedAt string
	MsgCount  int
}

// =============================================================================
// HANDLER MESSAGES
// =============================================================================

// Handlers communicate with the view through these messages. Some are
// requests the view must finish (it owns the stream pipeline and the
// widgets), the rest report results.

// ShowHelpMsg opens the help overlay, optionally on a topic.
type ShowHelpMsg struct {
	Topic string
}

// NewConversationMsg starts a fresh conversation.
type NewConversationMsg struct{}

// ClearConversationMsg wipes the active conversation's history.
type ClearConversationMsg struct{}

// RetryRequestedMsg asks the view to drop the last exchange and resend it.
// The view owns resubmission because it must also restart the stream
// pipeline.
type RetryRequestedMsg struct{}

// ShowStatusMsg asks the view for the status display when no services are
// available to build a StatusInfoMsg.
type ShowStatusMsg struct{}

// ListConversationsMsg asks the view to list conversations when the
// handler has no store.
type ListConversationsMsg struct{}

// SaveConversationMsg asks the view to save when the handler has no
// session.
type SaveConversationMsg struct {
	Title string
}

// LoadConversationMsg asks the view to load when the handler has no
// session.
type LoadConversationMsg struct {
	ID string
}

// CopyToClipboardMsg carries text for the view to copy.
type CopyToClipboardMsg struct {
	Content string
}

// ExportConversationMsg asks the view to export the conversation.
type ExportConversationMsg struct {
	Format string // "markdown" or "json"
}

// ModelSwitchMsg reports a model switch.
type ModelSwitchMsg struct {
	Model   string
	Message string
	Error   error
}

// SaveCompleteMsg reports a finished save.
type SaveCompleteMsg struct {
	ID    string
	Title string
	Error error
}

// ConversationLoadedMsg reports that a conversation became active.
type ConversationLoadedMsg struct {
	ID           string
	Title        string
	Model        string
	MessageCount int
	Error        error
}

// ConversationListMsg carries the stored conversation listing.
type ConversationListMsg struct {
	Conversations []ConversationInfo
	Error         error
}

// CancelResultMsg reports whether an in-flight request was cancelled.
type CancelResultMsg struct {
	Cancelled bool
}

// CopyCompleteMsg reports a finished clipboard copy.
type CopyCompleteMsg struct {
	Success bool
	Error   error
}

// ExportCompleteMsg reports a finished export.
type ExportCompleteMsg struct {
	Path  string
	Error error
}

// ShowModelsMsg carries the server's model listing.
type ShowModelsMsg struct {
	Models []api.ModelInfo
	Error  error
}

// SystemPromptMsg reports a system-message change.
type SystemPromptMsg struct {
	Prompt  string
	Cleared bool
}

// ShowConfigMsg shows configuration, either everything or one key.
type ShowConfigMsg struct {
	Key   string
	Value string
}

// ConfigUpdateMsg reports a config write.
type ConfigUpdateMsg struct {
	Key      string
	Value    interface{}
	OldValue interface{}
	Error    error
}

// ThemeChangedMsg reports a theme switch.
type ThemeChangedMsg struct {
	Theme string
}

// ErrorMsg reports a handler failure with an optional recovery tip.
type ErrorMsg struct {
	Title   string
	Message string
	Tip     string
}

// SystemMessageMsg adds an informational line to the chat transcript.
type SystemMessageMsg struct {
	Content string
}

// StatusInfoMsg is the gathered status report for /status.
type StatusInfoMsg struct {
	Model          string
	Endpoint       string
	External       bool
	ServerStatus   string
	SessionID      string
	SessionStart   string
	IdleTime       string
	ConversationID string
	MessageCount   int
	Dirty          bool
	Streaming      bool
	IndexedConvs   int
	IndexedMsgs    int
}

// =============================================================================
// HANDLER IMPLEMENTATIONS
// =============================================================================

// HandleHelp shows help information.
func HandleHelp(ctx *Context, args []string) tea.Cmd {
	topic := ""
	if len(args) > 0 {
		topic = args[0]
	}
	return emit(ShowHelpMsg{Topic: topic})
}

// HandleQuit exits the application.
func HandleQuit(ctx *Context, args []string) tea.Cmd {
	return tea.Quit
}

// HandleNew starts a new conversation.
func HandleNew(ctx *Context, args []string) tea.Cmd {
	return emit(NewConversationMsg{})
}

// HandleClear clears the conversation history.
func HandleClear(ctx *Context, args []string) tea.Cmd {
	return emit(ClearConversationMsg{})
}

// HandleRetry asks the view to regenerate the last response.
func HandleRetry(ctx *Context, args []string) tea.Cmd {
	return emit(RetryRequestedMsg{})
}

// HandleOpen loads a saved conversation and makes it active. A bare
// number opens the nth entry from /list, 1 being the newest.
func HandleOpen(ctx *Context, args []string) tea.Cmd {
	if len(args) == 0 {
		return HandleList(ctx, args)
	}

	id := args[0]
	if ctx == nil || ctx.Session == nil {
		return emit(LoadConversationMsg{ID: id})
	}

	sess := ctx.Session
	return func() tea.Msg {
		if n, err := strconv.Atoi(id); err == nil && n > 0 {
			if err := sess.OpenIndex(n - 1); err != nil {
				return ConversationLoadedMsg{ID: id, Error: err}
			}
		} else if err := sess.Open(id); err != nil {
			return ConversationLoadedMsg{ID: id, Error: err}
		}

		conv := sess.Conversation()
		return ConversationLoadedMsg{
			ID:           conv.ID,
			Title:        conv.GetTitle(),
			Model:        conv.Model,
			MessageCount: conv.MessageCount(),
		}
	}
}

// HandleSave saves the current conversation, optionally retitling it first.
func HandleSave(ctx *Context, args []string) tea.Cmd {
	title := strings.Join(args, " ")
	if ctx == nil || ctx.Session == nil {
		return emit(SaveConversationMsg{Title: title})
	}

	sess := ctx.Session
	return func() tea.Msg {
		if title != "" {
			if conv := sess.Conversation(); conv != nil {
				conv.SetTitle(title)
			}
		}
		id, err := sess.Save()
		return SaveCompleteMsg{ID: id, Title: title, Error: err}
	}
}

// HandleList shows the saved conversation list.
func HandleList(ctx *Context, args []string) tea.Cmd {
	if ctx == nil || ctx.Storage == nil {
		return emit(ListConversationsMsg{})
	}

	store := ctx.Storage
	return func() tea.Msg {
		metas, err := store.List()
		if err != nil {
			return ConversationListMsg{Error: err}
		}

		conversations := make([]ConversationInfo, len(metas))
		for i, m := range metas {
			conversations[i] = ConversationInfo{
				ID:        m.ID,
				Title:     m.Title,
				Model:     m.Model,
				Preview:   m.Preview,
				UpdatedAt: m.UpdatedAt.Format("2006-01-02 15:04"),
				MsgCount:  m.MessageCount,
			}
		}
		return ConversationListMsg{Conversations: conversations}
	}
}

// HandleCopy copies the last assistant response to the clipboard. The
// content comes from the dispatch snapshot; when it is absent the view
// resolves the text itself.
func HandleCopy(ctx *Context, args []string) tea.Cmd {
	content := ""
	if ctx != nil && ctx.HandlerCtx != nil {
		content = ctx.HandlerCtx.LastResponse
	}
	return emit(CopyToClipboardMsg{Content: content})
}

// HandleExport exports the conversation as markdown or JSON.
func HandleExport(ctx *Context, args []string) tea.Cmd {
	format := "markdown"
	if len(args) > 0 {
		format = strings.ToLower(args[0])
		if format == "md" {
			format = "markdown"
		}
	}

	if format != "markdown" && format != "json" {
		return emit(ErrorMsg{
			Title:   "Invalid export format",
			Message: "Unknown format: " + format,
			Tip:     "Supported formats: markdown, json",
		})
	}
	return emit(ExportConversationMsg{Format: format})
}

// HandleCancel stops the in-flight request for the active conversation.
func HandleCancel(ctx *Context, args []string) tea.Cmd {
	if ctx == nil || ctx.Session == nil {
		return emit(CancelResultMsg{})
	}
	sess := ctx.Session
	return func() tea.Msg {
		return CancelResultMsg{Cancelled: sess.Cancel()}
	}
}

// HandleModel switches the model, or shows the active one when called
// without arguments.
func HandleModel(ctx *Context, args []string) tea.Cmd {
	if len(args) == 0 {
		current := ""
		if ctx != nil {
			if ctx.Session != nil {
				if conv := ctx.Session.Conversation(); conv != nil {
					current = conv.Model
				}
			}
			if current == "" && ctx.Config != nil {
				current = ctx.Config.Chat.Model
			}
		}
		if current == "" {
			current = "(server default)"
		}
		return emit(SystemMessageMsg{
			Content: "Current model: " + current +
				"\nUse /model <name> to switch, /models to list what the server offers.",
		})
	}

	// The name passes through as-is; the server decides whether it exists.
	name := args[0]
	if ctx != nil {
		if ctx.Config != nil {
			ctx.Config.Chat.Model = name
		}
		if ctx.Session != nil {
			if conv := ctx.Session.Conversation(); conv != nil {
				conv.SetModel(name)
			}
		}
	}
	return emit(ModelSwitchMsg{Model: name, Message: "Switched to " + name})
}

// HandleModels lists models reported by the server's /v1/models endpoint.
func HandleModels(ctx *Context, args []string) tea.Cmd {
	if ctx == nil || ctx.Client == nil {
		return emit(ErrorMsg{
			Title:   "No server connection",
			Message: "Model listing requires a configured server",
			Tip:     "Check server.base_url with /config",
		})
	}

	client := ctx.Client
	return func() tea.Msg {
		reqCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		models, err := client.ListModels(reqCtx)
		return ShowModelsMsg{Models: models, Error: err}
	}
}

// HandleSystem shows, sets, or clears the system message. Changes apply
// to the next request; the builder reads config on every send.
func HandleSystem(ctx *Context, args []string) tea.Cmd {
	if ctx == nil || ctx.Config == nil {
		return emit(ErrorMsg{
			Title:   "Config unavailable",
			Message: "/system requires configuration access",
		})
	}

	switch {
	case len(args) == 0:
		current := ctx.Config.Chat.SystemMessage
		if current == "" {
			current = "(none)"
		}
		return emit(SystemMessageMsg{Content: "System message: " + current})

	case len(args) == 1 && strings.EqualFold(args[0], "clear"):
		ctx.Config.Chat.SystemMessage = ""
		return emit(SystemPromptMsg{Cleared: true})

	default:
		prompt := strings.Join(args, " ")
		ctx.Config.Chat.SystemMessage = prompt
		return emit(SystemPromptMsg{Prompt: prompt})
	}
}

// HandleConfig shows or sets configuration. Sets validate against the
// full config and roll back on failure, then persist to disk.
func HandleConfig(ctx *Context, args []string) tea.Cmd {
	if len(args) == 0 {
		return emit(ShowConfigMsg{})
	}
	key := args[0]

	if len(args) == 1 {
		if ctx == nil || ctx.Config == nil {
			return emit(ShowConfigMsg{Key: key})
		}
		val, err := ctx.Config.Get(key)
		if err != nil {
			return emit(ErrorMsg{
				Title:   "Config error",
				Message: err.Error(),
				Tip:     "Use /config to see all available keys",
			})
		}
		display := "unset"
		if val != nil {
			display = fmt.Sprintf("%v", val)
		}
		return emit(ShowConfigMsg{Key: key, Value: display})
	}

	value := strings.Join(args[1:], " ")
	if ctx == nil || ctx.Config == nil {
		return emit(ShowConfigMsg{Key: key, Value: value})
	}

	snapshot := ctx.Config.Clone()
	oldVal, _ := ctx.Config.Get(key)

	if err := ctx.Config.Set(key, value); err != nil {
		return emit(ConfigUpdateMsg{Key: key, Error: err})
	}
	// Reject values the config would refuse to load.
	if err := ctx.Config.Validate(); err != nil {
		*ctx.Config = *snapshot
		return emit(ConfigUpdateMsg{Key: key, Error: err})
	}

	newVal, _ := ctx.Config.Get(key)
	cfg := ctx.Config
	return func() tea.Msg {
		// Persist so the change survives restart. A failed write still
		// leaves the in-memory value applied.
		err := config.Save(cfg)
		return ConfigUpdateMsg{Key: key, Value: newVal, OldValue: oldVal, Error: err}
	}
}

// HandleStatus gathers detailed status across the services.
func HandleStatus(ctx *Context, args []string) tea.Cmd {
	if ctx == nil {
		return emit(ShowStatusMsg{})
	}

	cfg := ctx.Config
	client := ctx.Client
	sess := ctx.Session
	idx := ctx.Index

	return func() tea.Msg {
		info := StatusInfoMsg{}

		if cfg != nil {
			info.Model = cfg.Chat.Model
			info.Endpoint = cfg.Server.Resolve()
			info.External = cfg.Server.IsExternal()
		}

		// Only local servers expose /health; external APIs are not probed.
		if client != nil && !info.External {
			reqCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			info.ServerStatus = "connected"
			if client.Health(reqCtx) != nil {
				info.ServerStatus = "disconnected"
			}
		}

		if sess != nil {
			status := sess.GetStatus()
			info.SessionID = status.SessionID
			info.SessionStart = status.StartTime.Format("15:04:05")
			info.IdleTime = formatDuration(status.IdleTime)
			info.ConversationID = status.ConversationID
			info.MessageCount = status.MessageCount
			info.Dirty = status.IsDirty
			info.Streaming = status.Streaming
		}

		if idx != nil {
			stats := idx.Stats()
			info.IndexedConvs = stats.ConversationCount
			info.IndexedMsgs = stats.MessageCount
		}

		return info
	}
}

// HandleTheme changes the color theme.
func HandleTheme(ctx *Context, args []string) tea.Cmd {
	if len(args) == 0 {
		if ctx != nil && ctx.Config != nil {
			return emit(SystemMessageMsg{Content: "Current theme: " + ctx.Config.UI.Theme})
		}
		return emit(SystemMessageMsg{Content: "Theme: dark (default)"})
	}

	theme := strings.ToLower(args[0])
	switch theme {
	case "dark", "light", "auto":
		if ctx != nil && ctx.Config != nil {
			ctx.Config.UI.Theme = theme
		}
		return emit(ThemeChangedMsg{Theme: theme})
	}
	return emit(ErrorMsg{
		Title:   "Invalid theme",
		Message: "Unknown theme: " + theme,
		Tip:     "Valid themes: dark, light, auto",
	})
}

// emit wraps a message in a tea.Cmd.
func emit(msg tea.Msg) tea.Cmd {
	return func() tea.Msg { return msg }
}

// formatDuration renders idle durations coarsely.
func formatDuration(d time.Duration) string {
	switch {
	case d < time.Minute:
		return fmt.Sprintf("%ds", int(d.Seconds()))
	case d < time.Hour:
		return fmt.Sprintf("%dm %ds", int(d.Minutes()), int(d.Seconds())%60)
	}
	return fmt.Sprintf("%dh %dm", int(d.Hours()), int(d.Minutes())%60)
}

// =============================================================================
// HELP TEXT
// =============================================================================

// helpCategories is the display order for grouped help.
var helpCategories = []string{"Navigation", "Conversation", "Model", "Settings"}

// helpTips holds the per-category footer tips.
var helpTips = map[string][]string{
	"Navigation": {
		"Press Esc to close any overlay",
		"Use Tab for command auto-completion",
	},
	"Conversation": {
		"Dirty conversations auto-save on an idle timer",
		"/search looks across every saved conversation",
		"/retry drops the last answer and regenerates it",
	},
	"Model": {
		"/models shows what the server actually serves",
		"A model switch applies from the next message",
		"/system changes the system message for new requests",
	},
	"Settings": {
		"/config changes are saved to the config file",
		"Use /status to check server connectivity",
	},
}

const quickHelp = `Quick Help - Essential Commands
================================

  /help             Show this help (or try /help all)
  /new              Start new conversation
  /model            Switch model
  /save             Save conversation
  /quit             Exit rigchat

Keyboard Shortcuts
------------------
  Ctrl+C            Stop generation / Cancel
  Tab               Auto-complete
  Up/Down           Navigate history
  PgUp/PgDn         Scroll transcript

Want more? Try:
  /help all          - Show all available commands
  /help navigation   - Navigation commands
  /help conversation - Conversation management
  /help model        - Model commands
  /help settings     - Settings and configuration
`

// GenerateHelpText renders help for a mode: "quick" (default), "all", or
// a category name.
func GenerateHelpText(r *Registry, mode string) string {
	mode = strings.ToLower(mode)

	if mode == "" || mode == "quick" {
		return quickHelp
	}
	for _, category := range helpCategories {
		if mode == strings.ToLower(category) {
			return categoryHelp(r, category)
		}
	}
	return fullHelp(r)
}

// helpHeading writes a title with an underline of the given rune.
func helpHeading(sb *strings.Builder, title string, underline rune) {
	sb.WriteString(title + "\n")
	sb.WriteString(strings.Repeat(string(underline), len(title)) + "\n")
}

// categoryHelp renders one category with its tips.
func categoryHelp(r *Registry, category string) string {
	cmds := r.ByCategory()[category]
	if len(cmds) == 0 {
		return "No commands found in category: " + category +
			"\n\nTry /help all to see all categories."
	}

	var sb strings.Builder
	helpHeading(&sb, category+" Commands", '=')
	sb.WriteString("\n")
	writeCommandLines(&sb, cmds)
	sb.WriteString("\n")

	if tips := helpTips[category]; len(tips) > 0 {
		sb.WriteString("Tips:\n")
		for _, tip := range tips {
			sb.WriteString("  - " + tip + "\n")
		}
	}

	sb.WriteString("\nUse /help all to see all commands, or /help quick for essentials.\n")
	return sb.String()
}

var keyboardShortcuts = [][2]string{
	{"Ctrl+C", "Stop generation / Cancel"},
	{"Tab", "Auto-complete"},
	{"Up/Down", "Navigate history"},
	{"PgUp/PgDn", "Scroll transcript"},
	{"Esc", "Close overlay"},
}

// fullHelp renders every category in order.
func fullHelp(r *Registry) string {
	var sb strings.Builder
	helpHeading(&sb, "Available Commands", '=')
	sb.WriteString("\n")

	grouped := r.ByCategory()
	for _, category := range helpCategories {
		cmds := grouped[category]
		if len(cmds) == 0 {
			continue
		}
		helpHeading(&sb, category, '-')
		writeCommandLines(&sb, cmds)
		sb.WriteString("\n")
	}

	helpHeading(&sb, "Keyboard Shortcuts", '-')
	for _, sc := range keyboardShortcuts {
		fmt.Fprintf(&sb, "  %-16s%s\n", sc[0], sc[1])
	}
	sb.WriteString("\n")

	sb.WriteString("Tip: Use /help <category> to see commands by category\n")
	sb.WriteString("Categories: navigation, conversation, model, settings\n")
	return sb.String()
}

// writeCommandLines renders "  /name (aliases)   description" rows with
// usage sub-lines.
func writeCommandLines(sb *strings.Builder, cmds []*Command) {
	for _, cmd := range cmds {
		if cmd.Hidden {
			continue
		}

		name := cmd.Name
		if len(cmd.Aliases) > 0 {
			name += " (" + strings.Join(cmd.Aliases, ", ") + ")"
		}
		fmt.Fprintf(sb, "  %-28s%s\n", name, cmd.Description)

		if cmd.Usage != "" {
			sb.WriteString("      Usage: " + cmd.Usage + "\n")
		}
	}
}
