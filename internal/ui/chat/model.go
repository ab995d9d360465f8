// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/log"

	"github.com/jeranaias/rigchat/internal/api"
	"github.com/jeranaias/rigchat/internal/commands"
	"github.com/jeranaias/rigchat/internal/config"
	"github.com/jeranaias/rigchat/internal/index"
	"github.com/jeranaias/rigchat/internal/session"
	"github.com/jeranaias/rigchat/internal/stats"
	"github.com/jeranaias/rigchat/internal/storage"
	"github.com/jeranaias/rigchat/internal/ui/components"
	"github.com/jeranaias/rigchat/internal/ui/styles"
)

// =============================================================================
// STATE
// =============================================================================

// State is the chat view's streaming state.
type State int

const (
	// StateIdle means no request is in flight.
	StateIdle State = iota
	// StateStreaming means a response is being received.
	StateStreaming
)

// Overlay identifies which full-screen overlay is showing, if any.
type Overlay int

const (
	OverlayNone Overlay = iota
	OverlayHelp
	OverlayModels
	OverlayConversations
	OverlaySearch
)

// completionData is shared by value copies of Model so the completer's
// callbacks always see the latest cached model list. Only touched on the
// Bubble Tea loop.
type completionData struct {
	models []string
}

// =============================================================================
// MODEL
// =============================================================================

// Model is the Bubble Tea model for the chat view.
type Model struct {
	cfg    *config.Config
	logger *log.Logger
	theme  *styles.Theme
	keys   KeyMap

	// Application services
	session *session.Manager
	client  *api.Client
	store   *storage.ConversationStore
	idx     *index.MessageIndex // nil when indexing is disabled
	usage   *stats.Registry

	// Command system
	registry   *commands.Registry
	parser     *commands.Parser
	completer  *commands.Completer
	cmdCtx     *commands.Context
	completion *commands.CompletionState
	comp       *completionData

	// Components
	input     textinput.Model
	viewport  viewport.Model
	statusBar *components.StatusBar
	thinking  components.ThinkingIndicator
	progress  *components.ProgressIndicator
	popup     *components.CompletionPopup
	palette   *components.CommandPalette
	pending   *components.PendingAttachments
	attachBar *components.AttachmentBar
	errView   components.ErrorDisplay

	// Streaming
	stream *StreamingBuffer
	state  State

	// Overlays
	overlay       Overlay
	helpText      string
	models        []api.ModelInfo
	modelIndex    int
	conversations []commands.ConversationInfo
	convIndex     int
	search        *commands.SearchResultsMsg

	// Transcript presentation
	showReasoning bool
	notice        string // transient line above the input

	width  int
	height int
	ready  bool
}

// New creates the chat view wired to the application services. idx may be
// nil when the search index is disabled.
func New(cfg *config.Config, client *api.Client, sess *session.Manager, store *storage.ConversationStore, idx *index.MessageIndex, usage *stats.Registry, logger *log.Logger) Model {
	theme := styles.NewTheme()

	input := textinput.New()
	input.Placeholder = "Type a message, / for commands, @file: to attach"
	input.CharLimit = 0
	input.Focus()

	vp := viewport.New(80, 20)

	registry := commands.NewRegistry()

	cmdCtx := commands.NewContext(cfg, client, store, sess, idx)

	comp := &completionData{}
	completer := commands.NewCompleter(registry)
	completer.ModelsFn = func() []string {
		return comp.models
	}
	completer.CurrentModelFn = func() string {
		if cfg == nil {
			return ""
		}
		return cfg.Chat.Model
	}
	completer.ConversationsFn = func() []commands.ConversationInfo {
		return listConversations(store)
	}
	completer.ConfigFn = config.GetAllKeys

	statusBar := components.NewStatusBar(theme)
	if cfg != nil {
		statusBar.SetModel(cfg.Chat.Model)
		statusBar.SetServer(cfg.Server.Resolve(), !cfg.Server.IsExternal())
	}
	statusBar.SetStatus(components.StatusLoading)

	m := Model{
		cfg:        cfg,
		logger:     logger,
		theme:      theme,
		keys:       DefaultKeyMap(),
		session:    sess,
		client:     client,
		store:      store,
		idx:        idx,
		usage:      usage,
		registry:   registry,
		parser:     commands.NewParser(registry),
		completer:  completer,
		cmdCtx:     cmdCtx,
		completion: commands.NewCompletionState(),
		comp:       comp,
		input:      input,
		viewport:   vp,
		statusBar:  statusBar,
		thinking:   components.NewThinkingIndicator(),
		progress:   components.NewProgressIndicator(),
		popup:      components.NewCompletionPopup(theme),
		palette:    components.NewCommandPalette(registry, theme),
		pending:    components.NewPendingAttachments(),
		attachBar:  components.NewAttachmentBar(),
		errView:    components.NewErrorDisplay(),
		stream:     NewStreamingBuffer(),
		state:      StateIdle,
	}
	if cfg != nil {
		m.showReasoning = cfg.UI.ShowReasoning
	}
	m.attachBar.SetPending(m.pending)
	return m
}

// Init starts the background concerns: cursor blink, the session autosave
// tick, a server health probe, and a quiet model fetch that warms the
// completion cache.
func (m Model) Init() tea.Cmd {
	return tea.Batch(
		textinput.Blink,
		session.TickCmd(),
		m.checkServerCmd(),
		m.fetchModelsCmd(),
	)
}

// =============================================================================
// LAYOUT
// =============================================================================

// SetSize updates the layout for a new terminal size.
func (m *Model) SetSize(width, height int) {
	m.width = width
	m.height = height
	m.ready = true

	m.theme.SetSize(width, height)

	// Layout: viewport (dynamic) + attachment bar + input + status bar
	reserved := 4
	if m.pending.HasItems() {
		reserved++
	}
	vpHeight := height - reserved
	if vpHeight < 1 {
		vpHeight = 1
	}
	m.viewport.Width = width
	m.viewport.Height = vpHeight

	m.input.Width = width - 4
	m.statusBar.SetWidth(width)
	m.attachBar.SetWidth(width)
	m.popup.SetWidth(width - 4)
	m.progress.SetWidth(width)
	m.palette.SetSize(width, height)
	m.errView.SetSize(width, height)

	m.refreshViewport()
}

// refreshViewport re-renders the transcript into the viewport, keeping the
// scroll position pinned to the bottom while streaming.
func (m *Model) refreshViewport() {
	atBottom := m.viewport.AtBottom()
	m.viewport.SetContent(m.renderTranscript())
	if atBottom || m.state == StateStreaming {
		m.viewport.GotoBottom()
	}
}

// =============================================================================
// STATUS HELPERS
// =============================================================================

// syncStatusBar pushes conversation and usage state into the status bar.
func (m *Model) syncStatusBar() {
	conv := m.session.Conversation()
	if conv == nil {
		return
	}
	m.statusBar.SetModel(conv.Model)
	if m.cfg != nil && m.cfg.UI.ShowTokens {
		m.statusBar.SetTokenUsage(conv.EstimateTokens(), conv.MaxTokens)
	}
	if usage := m.usage.Session(); usage.Requests > 0 {
		m.statusBar.SetTokenRate(usage.TokensPerSecond())
	}
	switch m.state {
	case StateStreaming:
		m.statusBar.SetStatus(components.StatusStreaming)
	default:
		m.statusBar.SetStatus(components.StatusReady)
	}
}

// listConversations maps stored metadata into the command layer's info type.
func listConversations(store *storage.ConversationStore) []commands.ConversationInfo {
	if store == nil {
		return nil
	}
	metas, err := store.List()
	if err != nil {
		return nil
	}
	infos := make([]commands.ConversationInfo, len(metas))
	for i, meta := range metas {
		infos[i] = commands.ConversationInfo{
			ID:        meta.ID,
			Title:     meta.Title,
			Model:     meta.Model,
			Preview:   meta.Preview,
			UpdatedAt: meta.UpdatedAt.Format("2006-01-02 15:04"),
			MsgCount:  meta.MessageCount,
		}
	}
	return infos
}
