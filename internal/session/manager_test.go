// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package session

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/jeranaias/rigchat/internal/api"
	"github.com/jeranaias/rigchat/internal/config"
	"github.com/jeranaias/rigchat/internal/storage"
)

// installTestConfig makes cfg the global configuration for the duration of
// the test. Global() must fire its once first or it would overwrite the
// injected value on first use.
func installTestConfig(t *testing.T, cfg *config.Config) {
	t.Helper()
	_ = config.Global()
	config.SetGlobal(cfg)
	t.Cleanup(config.ResetGlobalForTesting)
}

func testConfig(serverURL string) *config.Config {
	cfg := config.Default()
	cfg.Server.BaseURL = ""
	cfg.Server.LocalURL = serverURL
	cfg.Chat.Model = "test-model"
	cfg.Chat.SystemMessage = ""
	return cfg
}

// newTestManager builds a manager over a temp store and the given server.
func newTestManager(t *testing.T, serverURL string) (*Manager, *api.RequestManager) {
	t.Helper()
	installTestConfig(t, testConfig(serverURL))

	store, err := storage.NewConversationStoreWithDir(t.TempDir())
	if err != nil {
		t.Fatalf("create store: %v", err)
	}

	requests := api.NewRequestManager()
	client := api.NewClient(config.Global()).WithRequestManager(requests)
	return NewManager(client, requests, store, DefaultConfig()), requests
}

// =============================================================================
// CONFIG TESTS
// =============================================================================

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if !cfg.AutoSaveEnabled {
		t.Error("Default AutoSaveEnabled should be true")
	}
	if cfg.AutoSaveInterval != 30*time.Second {
		t.Errorf("Default AutoSaveInterval = %v, want 30s", cfg.AutoSaveInterval)
	}
}

func TestConfigFromSettings(t *testing.T) {
	cfg := config.Default()
	cfg.Storage.AutoSaveSecs = 60

	sc := ConfigFromSettings(cfg)
	if !sc.AutoSaveEnabled {
		t.Error("AutoSaveEnabled should follow a positive auto_save_secs")
	}
	if sc.AutoSaveInterval != time.Minute {
		t.Errorf("AutoSaveInterval = %v, want 1m", sc.AutoSaveInterval)
	}

	cfg.Storage.AutoSaveSecs = 0
	sc = ConfigFromSettings(cfg)
	if sc.AutoSaveEnabled {
		t.Error("auto_save_secs = 0 should disable autosave")
	}
}

// =============================================================================
// MANAGER CREATION TESTS
// =============================================================================

func TestNewManager(t *testing.T) {
	m, _ := newTestManager(t, "http://127.0.0.1:1")

	if !strings.HasPrefix(m.GetStatus().SessionID, "sess_") {
		t.Errorf("SessionID should start with 'sess_', got %q", m.GetStatus().SessionID)
	}

	conv := m.Conversation()
	if conv == nil {
		t.Fatal("new manager should hold a fresh conversation")
	}
	if conv.Model != "test-model" {
		t.Errorf("conversation model = %q, want the configured default", conv.Model)
	}
	if m.IsDirty() {
		t.Error("fresh session should not be dirty")
	}
}

// =============================================================================
// SEND ORCHESTRATION TESTS
// =============================================================================

func TestManager_BeginSend(t *testing.T) {
	m, _ := newTestManager(t, "http://127.0.0.1:1")

	msg, err := m.BeginSend("hello")
	if err != nil {
		t.Fatalf("BeginSend: %v", err)
	}
	if !msg.IsStreaming {
		t.Error("assistant placeholder should be streaming")
	}

	conv := m.Conversation()
	if conv.MessageCount() != 2 {
		t.Fatalf("message count = %d, want user + assistant", conv.MessageCount())
	}
	if conv.Messages[0].Content != "hello" {
		t.Errorf("user content = %q", conv.Messages[0].Content)
	}
	if !m.IsDirty() {
		t.Error("session should be dirty after a send begins")
	}
}

func TestManager_BeginSendWhileStreaming(t *testing.T) {
	m, requests := newTestManager(t, "http://127.0.0.1:1")

	// Simulate an in-flight request for the active conversation.
	_, finish := requests.Begin(context.Background(), m.Conversation().ID)
	defer finish()

	if _, err := m.BeginSend("hello"); !errors.Is(err, ErrStreamActive) {
		t.Errorf("BeginSend during stream = %v, want ErrStreamActive", err)
	}
}

func TestManager_BeginRetry(t *testing.T) {
	m, _ := newTestManager(t, "http://127.0.0.1:1")

	if _, _, err := m.BeginRetry(); !errors.Is(err, ErrNothingToRetry) {
		t.Errorf("retry on empty conversation = %v, want ErrNothingToRetry", err)
	}

	conv := m.Conversation()
	conv.AddUserMessage("original question")
	asst := conv.AddAssistantMessage()
	asst.AppendToken("bad answer")
	asst.FinalizeStream(nil)

	content, msg, err := m.BeginRetry()
	if err != nil {
		t.Fatalf("BeginRetry: %v", err)
	}
	if content != "original question" {
		t.Errorf("retried content = %q", content)
	}
	if !msg.IsStreaming {
		t.Error("retry should append a fresh streaming placeholder")
	}
	if conv.MessageCount() != 2 {
		t.Errorf("message count = %d, want the exchange replaced in place", conv.MessageCount())
	}
	if conv.Messages[1].Content == "bad answer" {
		t.Error("old assistant answer should be gone")
	}
}

func TestManager_StreamRoundTrip(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		flusher := w.(http.Flusher)
		for _, line := range []string{
			`data: {"object":"chat.completion.chunk","model":"m1","choices":[{"delta":{"content":"Hel"}}]}`,
			`data: {"object":"chat.completion.chunk","choices":[{"delta":{"content":"lo"},"finish_reason":"stop"}],"usage":{"prompt_tokens":3,"completion_tokens":2}}`,
			`data: [DONE]`,
		} {
			fmt.Fprintf(w, "%s\n\n", line)
			flusher.Flush()
		}
	}))
	defer srv.Close()

	m, _ := newTestManager(t, srv.URL)

	if _, err := m.BeginSend("hi"); err != nil {
		t.Fatalf("BeginSend: %v", err)
	}

	var chunks []string
	var completion api.Completion
	completions := 0
	run, err := m.StreamFunc(api.StreamCallbacks{
		OnChunk: func(s string) { chunks = append(chunks, s) },
		OnComplete: func(c api.Completion) {
			completion = c
			completions++
		},
		OnError: func(err error) { t.Errorf("unexpected stream error: %v", err) },
	})
	if err != nil {
		t.Fatalf("StreamFunc: %v", err)
	}

	if err := run(); err != nil {
		t.Fatalf("stream run: %v", err)
	}
	if strings.Join(chunks, "") != "Hello" {
		t.Errorf("chunks = %q", chunks)
	}
	if completions != 1 {
		t.Fatalf("completions = %d, want 1", completions)
	}

	m.ApplyCompletion(completion)

	last := m.Conversation().LastMessage()
	if last.IsStreaming {
		t.Error("assistant message should be finalized")
	}
	if last.Content != "Hello" {
		t.Errorf("assistant content = %q, want %q", last.Content, "Hello")
	}
	if last.Stats == nil || last.Stats.PredictedTokens != 2 {
		t.Errorf("stats = %+v, want predicted tokens from usage", last.Stats)
	}
}

func TestManager_CancelWithoutRequest(t *testing.T) {
	m, _ := newTestManager(t, "http://127.0.0.1:1")

	if m.Cancel() {
		t.Error("Cancel with nothing in flight should report false")
	}
	if m.Streaming() {
		t.Error("Streaming should be false with nothing in flight")
	}
}

// =============================================================================
// CONVERSATION LIFECYCLE TESTS
// =============================================================================

func TestManager_SaveAndOpen(t *testing.T) {
	m, _ := newTestManager(t, "http://127.0.0.1:1")

	// Empty conversations are skipped silently.
	if id, err := m.Save(); err != nil || id != "" {
		t.Errorf("Save of empty conversation = (%q, %v), want no-op", id, err)
	}

	conv := m.Conversation()
	conv.AddUserMessage("remember me")
	asst := conv.AddAssistantMessage()
	asst.AppendToken("saved")
	asst.FinalizeStream(nil)
	m.MarkDirty()

	id, err := m.Save()
	if err != nil {
		t.Fatalf("Save: %v", err)
	}
	if m.IsDirty() {
		t.Error("session should be clean after save")
	}

	m.StartNew()
	if m.Conversation().ID == id {
		t.Error("StartNew should replace the conversation")
	}

	if err := m.Open(id); err != nil {
		t.Fatalf("Open: %v", err)
	}
	if got := m.Conversation().Messages[0].Content; got != "remember me" {
		t.Errorf("reopened content = %q", got)
	}

	if err := m.Open("conv_missing"); !errors.Is(err, storage.ErrConversationNotFound) {
		t.Errorf("Open missing id = %v, want ErrConversationNotFound", err)
	}
}

func TestManager_OpenIndex(t *testing.T) {
	m, _ := newTestManager(t, "http://127.0.0.1:1")

	first := m.Conversation()
	first.AddUserMessage("first")
	if _, err := m.Save(); err != nil {
		t.Fatalf("Save: %v", err)
	}
	time.Sleep(10 * time.Millisecond)

	m.StartNew()
	second := m.Conversation()
	second.AddUserMessage("second")
	if _, err := m.Save(); err != nil {
		t.Fatalf("Save: %v", err)
	}

	if err := m.OpenIndex(1); err != nil {
		t.Fatalf("OpenIndex: %v", err)
	}
	if m.Conversation().ID != first.ID {
		t.Error("OpenIndex(1) should load the older conversation")
	}
}

func TestManager_StartNewCancelsInFlight(t *testing.T) {
	m, requests := newTestManager(t, "http://127.0.0.1:1")

	oldID := m.Conversation().ID
	ctx, finish := requests.Begin(context.Background(), oldID)
	defer finish()

	m.StartNew()

	select {
	case <-ctx.Done():
	default:
		t.Error("StartNew should cancel the previous conversation's request")
	}
}

// =============================================================================
// DIRTY STATE AND AUTO-SAVE TESTS
// =============================================================================

func TestManager_DirtyState(t *testing.T) {
	m, _ := newTestManager(t, "http://127.0.0.1:1")

	if m.IsDirty() {
		t.Error("New session should not be dirty")
	}

	m.MarkDirty()
	if !m.IsDirty() {
		t.Error("Session should be dirty after MarkDirty")
	}

	m.MarkClean()
	if m.IsDirty() {
		t.Error("Session should not be dirty after MarkClean")
	}
}

func TestManager_ShouldAutoSave(t *testing.T) {
	m, _ := newTestManager(t, "http://127.0.0.1:1")
	m.SetAutoSaveInterval(20 * time.Millisecond)

	if m.ShouldAutoSave() {
		t.Error("Should not auto-save when not dirty")
	}

	m.MarkDirty()
	time.Sleep(25 * time.Millisecond)

	if !m.ShouldAutoSave() {
		t.Error("Should auto-save when dirty and interval elapsed")
	}
}

func TestManager_SetAutoSaveEnabled(t *testing.T) {
	m, _ := newTestManager(t, "http://127.0.0.1:1")

	m.SetAutoSaveEnabled(false)
	m.MarkDirty()

	if m.ShouldAutoSave() {
		t.Error("Should not auto-save when disabled")
	}
}

func TestManager_AutoSave(t *testing.T) {
	m, _ := newTestManager(t, "http://127.0.0.1:1")
	m.SetAutoSaveInterval(10 * time.Millisecond)

	m.Conversation().AddUserMessage("autosave me")
	m.MarkDirty()
	time.Sleep(15 * time.Millisecond)

	saved, err := m.AutoSave()
	if err != nil {
		t.Fatalf("AutoSave: %v", err)
	}
	if !saved {
		t.Error("AutoSave should have saved")
	}
	if m.IsDirty() {
		t.Error("session should be clean after auto-save")
	}

	// Clean session: nothing to do.
	saved, err = m.AutoSave()
	if err != nil || saved {
		t.Errorf("AutoSave on clean session = (%v, %v), want no-op", saved, err)
	}
}

// =============================================================================
// STATUS TESTS
// =============================================================================

func TestManager_GetStatus(t *testing.T) {
	m, _ := newTestManager(t, "http://127.0.0.1:1")

	m.MarkDirty()
	time.Sleep(10 * time.Millisecond)

	status := m.GetStatus()
	if status.SessionID == "" {
		t.Error("Status.SessionID should not be empty")
	}
	if status.ConversationID == "" {
		t.Error("Status.ConversationID should not be empty")
	}
	if status.Duration < 10*time.Millisecond {
		t.Error("Status.Duration should be at least 10ms")
	}
	if !status.IsDirty {
		t.Error("Status.IsDirty should be true")
	}
	if status.Streaming {
		t.Error("Status.Streaming should be false")
	}
}

// =============================================================================
// FORMAT TESTS
// =============================================================================

func TestFormatDuration(t *testing.T) {
	tests := []struct {
		input time.Duration
		want  string
	}{
		{30 * time.Second, "30s"},
		{90 * time.Second, "1m 30s"},
		{5 * time.Minute, "5m"},
		{5*time.Minute + 30*time.Second, "5m 30s"},
	}

	for _, tc := range tests {
		got := FormatDuration(tc.input)
		if got != tc.want {
			t.Errorf("FormatDuration(%v) = %q, want %q", tc.input, got, tc.want)
		}
	}
}

// =============================================================================
// CONCURRENCY TESTS
// =============================================================================

func TestManager_ConcurrentAccess(t *testing.T) {
	m, _ := newTestManager(t, "http://127.0.0.1:1")

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				_ = m.Conversation()
				_ = m.GetStatus()
				_ = m.IsDirty()
				_ = m.Streaming()
				m.RecordActivity()
				m.MarkDirty()
				m.MarkClean()
			}
		}()
	}
	wg.Wait()
}
