// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package session bridges the TUI, storage, and the API client: it owns the
// active conversation, tracks unsaved changes, and autosaves on a tick.
package session

import (
	"context"
	"errors"
	"sync"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/jeranaias/rigchat/internal/api"
	"github.com/jeranaias/rigchat/internal/config"
	"github.com/jeranaias/rigchat/internal/model"
	"github.com/jeranaias/rigchat/internal/storage"
	"github.com/jeranaias/rigchat/internal/util"
)

// =============================================================================
// ERRORS
// =============================================================================

var (
	// ErrNoConversation indicates no conversation is active.
	ErrNoConversation = errors.New("no active conversation")

	// ErrStreamActive indicates a response is still streaming.
	ErrStreamActive = errors.New("a response is already streaming")

	// ErrNothingToRetry indicates the conversation has no completed
	// user/assistant exchange to regenerate.
	ErrNothingToRetry = errors.New("nothing to retry")
)

// =============================================================================
// SESSION MANAGER
// =============================================================================

// Manager owns the active conversation and orchestrates sends through the
// injected request manager. All methods are safe for concurrent use.
type Manager struct {
	mu sync.Mutex

	conversation *model.Conversation
	store        *storage.ConversationStore
	client       *api.Client
	requests     *api.RequestManager

	sessionID    string
	startTime    time.Time
	lastActivity time.Time

	// Autosave state
	autoSaveEnabled  bool
	autoSaveInterval time.Duration
	lastAutoSave     time.Time
	isDirty          bool
}

// Config controls the autosave behavior of a Manager.
type Config struct {
	AutoSaveEnabled  bool
	AutoSaveInterval time.Duration
}

// DefaultConfig returns the default session configuration: autosave every
// thirty seconds.
func DefaultConfig() Config {
	return Config{AutoSaveEnabled: true, AutoSaveInterval: 30 * time.Second}
}

// ConfigFromSettings derives the session configuration from application
// settings: storage.auto_save_secs of 0 disables the autosave tick.
func ConfigFromSettings(cfg *config.Config) Config {
	sc := DefaultConfig()
	if cfg == nil {
		return sc
	}
	if cfg.Storage.AutoSaveSecs <= 0 {
		sc.AutoSaveEnabled = false
		return sc
	}
	sc.AutoSaveInterval = time.Duration(cfg.Storage.AutoSaveSecs) * time.Second
	return sc
}

// NewManager creates a session manager with a fresh conversation.
func NewManager(client *api.Client, requests *api.RequestManager, store *storage.ConversationStore, cfg Config) *Manager {
	now := time.Now()
	m := &Manager{
		conversation: newConversationFromSettings(),
		store:        store,
		client:       client,
		requests:     requests,
		sessionID:    newSessionID(),
		startTime:    now,
		lastActivity: now,
		lastAutoSave: now,
	}
	m.autoSaveEnabled = cfg.AutoSaveEnabled
	m.autoSaveInterval = cfg.AutoSaveInterval
	return m
}

// newConversationFromSettings seeds a conversation with the configured model.
// The configured system message is not copied in: the request builder applies
// it on the wire, so it stays a single source of truth in config.
func newConversationFromSettings() *model.Conversation {
	conv := model.NewConversation()
	if cfg := config.Global(); cfg != nil && cfg.Chat.Model != "" {
		conv.SetModel(cfg.Chat.Model)
	}
	return conv
}

// =============================================================================
// CONVERSATION LIFECYCLE
// =============================================================================

// Conversation returns the active conversation.
func (m *Manager) Conversation() *model.Conversation {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.conversation
}

// StartNew cancels any in-flight request and replaces the active conversation
// with a fresh one. The previous conversation is not saved; callers flush it
// first when they care.
func (m *Manager) StartNew() *model.Conversation {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.conversation != nil {
		m.requests.Cancel(m.conversation.ID)
	}

	m.conversation = newConversationFromSettings()
	m.isDirty = false
	m.lastActivity = time.Now()
	return m.conversation
}

// Open loads a stored conversation and makes it active.
func (m *Manager) Open(id string) error {
	conv, err := m.store.Load(id)
	if err != nil {
		return err
	}
	m.adopt(conv)
	return nil
}

// OpenIndex loads the nth most recent stored conversation (0 = newest).
func (m *Manager) OpenIndex(n int) error {
	conv, err := m.store.LoadByIndex(n)
	if err != nil {
		return err
	}
	m.adopt(conv)
	return nil
}

func (m *Manager) adopt(conv *model.Conversation) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.conversation != nil {
		m.requests.Cancel(m.conversation.ID)
	}
	m.conversation = conv
	m.isDirty = false
	m.lastActivity = time.Now()
}

// Save persists the active conversation and marks the session clean. Empty
// conversations are skipped without error so quitting an untouched session
// never litters the store.
func (m *Manager) Save() (string, error) {
	m.mu.Lock()
	conv := m.conversation
	m.mu.Unlock()

	if conv == nil {
		return "", ErrNoConversation
	}
	if conv.IsEmpty() {
		return "", nil
	}

	id, err := m.store.Save(conv)
	if err != nil {
		return "", err
	}
	m.MarkClean()
	return id, nil
}

// =============================================================================
// SEND ORCHESTRATION
// =============================================================================

// BeginSend appends the user message and a streaming assistant placeholder to
// the active conversation. It refuses to stack sends while a response for
// this conversation is still in flight; callers cancel first.
func (m *Manager) BeginSend(content string, attachments ...model.Attachment) (*model.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.conversation == nil {
		return nil, ErrNoConversation
	}
	if m.requests.Active(m.conversation.ID) {
		return nil, ErrStreamActive
	}

	m.conversation.AddUserMessage(content, attachments...)
	msg := m.conversation.AddAssistantMessage()
	m.isDirty = true
	m.lastActivity = time.Now()
	return msg, nil
}

// BeginRetry drops the last user/assistant exchange and re-submits the same
// user message. Returns the resubmitted content.
func (m *Manager) BeginRetry() (string, *model.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.conversation == nil {
		return "", nil, ErrNoConversation
	}
	if m.requests.Active(m.conversation.ID) {
		return "", nil, ErrStreamActive
	}

	content, attachments, ok := m.conversation.DropLastExchange()
	if !ok {
		return "", nil, ErrNothingToRetry
	}

	m.conversation.AddUserMessage(content, attachments...)
	msg := m.conversation.AddAssistantMessage()
	m.isDirty = true
	m.lastActivity = time.Now()
	return content, msg, nil
}

// StreamFunc snapshots the active conversation into a wire request and
// returns a blocking closure that runs it. The closure is safe to call from
// a Bubble Tea command goroutine; cancellation and per-conversation request
// replacement are handled by the request manager inside the client.
func (m *Manager) StreamFunc(cb api.StreamCallbacks) (func() error, error) {
	m.mu.Lock()
	conv := m.conversation
	m.mu.Unlock()

	if conv == nil {
		return nil, ErrNoConversation
	}

	convID := conv.ID
	messages := conv.ToWireMessages()

	opts := api.OptionsFromConfig(config.Global())
	opts.Stream = true
	if conv.Model != "" {
		opts.Model = conv.Model
	}

	return func() error {
		return m.client.SendChatCompletion(context.Background(), convID, messages, opts, cb)
	}, nil
}

// ApplyCompletion folds a finished completion into the streaming assistant
// message and marks the session dirty.
func (m *Manager) ApplyCompletion(result api.Completion) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.conversation == nil {
		return
	}
	last := m.conversation.LastMessage()
	if last == nil || !last.IsStreaming {
		return
	}
	if result.ToolCalls != "" {
		last.ToolCalls = result.ToolCalls
	}
	m.conversation.FinalizeLast(model.StatsFromTimings(result.Timings))
	m.isDirty = true
	m.lastActivity = time.Now()
}

// Cancel aborts the in-flight request for the active conversation, if any.
func (m *Manager) Cancel() bool {
	m.mu.Lock()
	conv := m.conversation
	m.mu.Unlock()

	if conv == nil {
		return false
	}
	return m.requests.Cancel(conv.ID)
}

// CancelAll aborts every in-flight request.
func (m *Manager) CancelAll() int {
	return m.requests.CancelAll()
}

// Streaming reports whether a request is in flight for the active
// conversation.
func (m *Manager) Streaming() bool {
	m.mu.Lock()
	conv := m.conversation
	m.mu.Unlock()

	if conv == nil {
		return false
	}
	return m.requests.Active(conv.ID)
}

// =============================================================================
// ACTIVITY AND DIRTY TRACKING
// =============================================================================

// RecordActivity updates the last activity timestamp.
func (m *Manager) RecordActivity() {
	m.mu.Lock()
	m.lastActivity = time.Now()
	m.mu.Unlock()
}

// MarkDirty indicates the session has unsaved changes.
func (m *Manager) MarkDirty() {
	m.mu.Lock()
	m.isDirty = true
	m.mu.Unlock()
}

// MarkClean indicates the session has been saved.
func (m *Manager) MarkClean() {
	m.mu.Lock()
	m.isDirty = false
	m.lastAutoSave = time.Now()
	m.mu.Unlock()
}

// IsDirty returns whether the session has unsaved changes.
func (m *Manager) IsDirty() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.isDirty
}

// ShouldAutoSave reports whether an autosave is due: enabled, unsaved
// changes present, and the interval elapsed since the last save.
func (m *Manager) ShouldAutoSave() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.autoSaveEnabled && m.isDirty && time.Since(m.lastAutoSave) >= m.autoSaveInterval
}

// AutoSave persists the conversation when the auto-save conditions hold.
// Returns true when a save actually happened.
func (m *Manager) AutoSave() (bool, error) {
	if !m.ShouldAutoSave() {
		return false, nil
	}
	if _, err := m.Save(); err != nil {
		return false, err
	}
	return true, nil
}

// =============================================================================
// BUBBLE TEA INTEGRATION
// =============================================================================

// TickMsg is sent periodically to evaluate session state.
type TickMsg struct {
	Time time.Time
}

// AutoSavedMsg reports the outcome of a background auto-save.
type AutoSavedMsg struct {
	ID  string
	Err error
}

// TickCmd returns a command that ticks once per second.
func TickCmd() tea.Cmd {
	return tea.Tick(time.Second, func(t time.Time) tea.Msg {
		return TickMsg{Time: t}
	})
}

// HandleTick processes a tick: schedules an auto-save when due, and always
// re-arms the tick.
func (m *Manager) HandleTick() tea.Cmd {
	var cmds []tea.Cmd

	if m.ShouldAutoSave() {
		cmds = append(cmds, func() tea.Msg {
			id, err := m.Save()
			return AutoSavedMsg{ID: id, Err: err}
		})
	}

	cmds = append(cmds, TickCmd())
	return tea.Batch(cmds...)
}

// =============================================================================
// CONFIGURATION
// =============================================================================

// SetAutoSaveEnabled enables or disables auto-save.
func (m *Manager) SetAutoSaveEnabled(enabled bool) {
	m.mu.Lock()
	m.autoSaveEnabled = enabled
	m.mu.Unlock()
}

// SetAutoSaveInterval updates the auto-save interval.
func (m *Manager) SetAutoSaveInterval(d time.Duration) {
	m.mu.Lock()
	m.autoSaveInterval = d
	m.mu.Unlock()
}

// =============================================================================
// SESSION STATUS
// =============================================================================

// Status represents the current session status.
type Status struct {
	SessionID      string
	ConversationID string
	MessageCount   int
	StartTime      time.Time
	Duration       time.Duration
	IdleTime       time.Duration
	IsDirty        bool
	Streaming      bool
}

// GetStatus returns the current session status.
func (m *Manager) GetStatus() Status {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := time.Now()
	st := Status{
		SessionID: m.sessionID,
		StartTime: m.startTime,
		Duration:  now.Sub(m.startTime),
		IdleTime:  now.Sub(m.lastActivity),
		IsDirty:   m.isDirty,
	}
	if m.conversation != nil {
		st.ConversationID = m.conversation.ID
		st.MessageCount = m.conversation.MessageCount()
		st.Streaming = m.requests.Active(m.conversation.ID)
	}
	return st
}

// =============================================================================
// HELPER FUNCTIONS
// =============================================================================

func newSessionID() string {
	return "sess_" + time.Now().Format("20060102_150405")
}

// FormatDuration renders a duration as "42s", "5m", or "5m 42s".
func FormatDuration(d time.Duration) string {
	secs := int(d.Seconds())
	switch {
	case secs < 60:
		return util.IntToString(secs) + "s"
	case secs%60 == 0:
		return util.IntToString(secs/60) + "m"
	default:
		return util.IntToString(secs/60) + "m " + util.IntToString(secs%60) + "s"
	}
}
