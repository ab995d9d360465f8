// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package model contains the data structures for conversations and messages.
package model

import (
	"crypto/rand"
	"encoding/hex"
	"strings"
	"time"

	"github.com/jeranaias/rigchat/internal/api"
	"github.com/jeranaias/rigchat/internal/util"
)

// =============================================================================
// ROLE TYPE
// =============================================================================

// Role represents the sender of a message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
)

func (r Role) String() string { return string(r) }

// DisplayName is the transcript label for the role.
func (r Role) DisplayName() string {
	switch r {
	case RoleUser:
		return "You"
	case RoleAssistant:
		return "Assistant"
	case RoleSystem:
		return "System"
	default:
		return string(r)
	}
}

// =============================================================================
// MESSAGE TYPE
// =============================================================================

// Message is one turn of a conversation.
//
// Assistant messages carry two text channels: Content holds the visible
// reply, Reasoning holds the model's thinking (from reasoning deltas or
// <think> spans). Both accumulate independently while streaming.
type Message struct {
	// Identity
	ID        string    `json:"id"`
	Role      Role      `json:"role"`
	Timestamp time.Time `json:"timestamp"`

	// Content channels
	Content   string `json:"content"`
	Reasoning string `json:"reasoning,omitempty"`

	// ToolCalls is the serialized JSON array the model emitted, empty when
	// the model made no calls. Kept opaque: rigchat displays calls, it does
	// not execute them.
	ToolCalls string `json:"tool_calls,omitempty"`

	// Attachments on user messages, folded into wire content parts when the
	// request is built.
	Attachments []Attachment `json:"attachments,omitempty"`

	// Streaming state, not persisted. Builders keep token appends from
	// going quadratic on long responses.
	IsStreaming     bool            `json:"-"`
	streamContent   strings.Builder `json:"-"`
	streamReasoning strings.Builder `json:"-"`

	// Stats holds generation timing for assistant messages, nil until the
	// stream is finalized and when the server reported nothing usable.
	Stats *Stats `json:"stats,omitempty"`
}

// NewMessage creates a finished message with a fresh ID.
func NewMessage(role Role, content string) *Message {
	return &Message{
		ID:        newMessageID(),
		Role:      role,
		Content:   content,
		Timestamp: time.Now(),
	}
}

// NewUserMessage creates a user message, optionally with attachments.
func NewUserMessage(content string, attachments ...Attachment) *Message {
	msg := NewMessage(RoleUser, content)
	msg.Attachments = attachments
	return msg
}

// NewAssistantMessage creates an assistant message in streaming state.
func NewAssistantMessage() *Message {
	return &Message{
		ID:          newMessageID(),
		Role:        RoleAssistant,
		Timestamp:   time.Now(),
		IsStreaming: true,
	}
}

// NewSystemMessage creates a system message.
func NewSystemMessage(content string) *Message {
	return NewMessage(RoleSystem, content)
}

// =============================================================================
// MESSAGE METHODS
// =============================================================================

// AppendToken appends a visible-content token to a streaming message.
func (m *Message) AppendToken(token string) {
	if m.IsStreaming {
		m.streamContent.WriteString(token)
	}
}

// AppendReasoning appends a reasoning token to a streaming message.
func (m *Message) AppendReasoning(token string) {
	if m.IsStreaming {
		m.streamReasoning.WriteString(token)
	}
}

// FinalizeStream completes streaming, merging the accumulated channels and
// recording statistics.
func (m *Message) FinalizeStream(stats *Stats) {
	if !m.IsStreaming {
		return
	}

	m.Content = m.streamContent.String()
	m.Reasoning = m.streamReasoning.String()
	m.streamContent.Reset()
	m.streamReasoning.Reset()
	m.IsStreaming = false
	m.Stats = stats
}

// DisplayContent returns the visible content (streaming or final).
func (m *Message) DisplayContent() string {
	if m.IsStreaming {
		return m.streamContent.String()
	}
	return m.Content
}

// DisplayReasoning returns the reasoning text (streaming or final).
func (m *Message) DisplayReasoning() string {
	if m.IsStreaming {
		return m.streamReasoning.String()
	}
	return m.Reasoning
}

// HasReasoning reports whether the message carries any reasoning text.
func (m *Message) HasReasoning() bool {
	return m.Reasoning != "" || m.streamReasoning.Len() > 0
}

// HasToolCalls reports whether the model emitted tool calls.
func (m *Message) HasToolCalls() bool {
	return m.ToolCalls != "" && m.ToolCalls != "[]"
}

// Preview returns the content truncated to maxLen runes.
func (m *Message) Preview(maxLen int) string {
	return util.TruncateRunes(m.DisplayContent(), maxLen)
}

// IsEmpty reports whether both channels are empty.
func (m *Message) IsEmpty() bool {
	return len(m.Content) == 0 && len(m.Reasoning) == 0 &&
		m.streamContent.Len() == 0 && m.streamReasoning.Len() == 0
}

// EstimateTokens approximates the token count at four characters per
// token, attachments included.
func (m *Message) EstimateTokens() int {
	n := (len(m.DisplayContent()) + 3) / 4
	for _, a := range m.Attachments {
		n += a.EstimateTokens()
	}
	return n
}

// FormatStats returns a one-line summary of generation statistics, empty
// when the message has none.
func (m *Message) FormatStats() string {
	if m.Role != RoleAssistant || m.Stats == nil {
		return ""
	}
	return m.Stats.Format()
}

// =============================================================================
// GENERATION STATS
// =============================================================================

// Stats holds the timing of one completed generation. Values come from the
// server's timings object when it sends one, otherwise from usage counts
// split across wall-clock time, in which case Estimated is set.
type Stats struct {
	TTFT            time.Duration `json:"ttft_ns,omitempty"`
	TotalDuration   time.Duration `json:"total_duration_ns,omitempty"`
	TokensPerSec    float64       `json:"tokens_per_sec,omitempty"`
	PromptTokens    int           `json:"prompt_tokens,omitempty"`
	PredictedTokens int           `json:"predicted_tokens,omitempty"`
	Estimated       bool          `json:"estimated,omitempty"`
}

// StatsFromTimings converts the API layer's timing snapshot into message
// statistics. Returns nil for a nil snapshot.
func StatsFromTimings(t *api.TimingSnapshot) *Stats {
	if t == nil {
		return nil
	}
	return &Stats{
		TTFT:            time.Duration(t.PromptMS * float64(time.Millisecond)),
		TotalDuration:   time.Duration((t.PromptMS + t.PredictedMS) * float64(time.Millisecond)),
		TokensPerSec:    t.TokensPerSecond(),
		PromptTokens:    t.PromptN,
		PredictedTokens: t.PredictedN,
		Estimated:       t.Estimated,
	}
}

// Format returns the stats as a display line, e.g.
// "2.5s | 128 tokens | 51.2 tok/s | TTFT 234ms". Estimated figures are
// prefixed with "~".
func (s *Stats) Format() string {
	if s.TotalDuration == 0 && s.PredictedTokens == 0 {
		return ""
	}

	prefix := ""
	if s.Estimated {
		prefix = "~"
	}

	return prefix + formatSeconds(s.TotalDuration) + " | " +
		util.IntToString(s.PredictedTokens) + " tokens | " +
		prefix + util.FloatToString(s.TokensPerSec) + " tok/s | " +
		"TTFT " + prefix + util.Int64ToString(s.TTFT.Milliseconds()) + "ms"
}

// =============================================================================
// HELPER FUNCTIONS
// =============================================================================

func newMessageID() string {
	b := make([]byte, 8)
	rand.Read(b)
	return "msg_" + hex.EncodeToString(b)
}

// formatSeconds renders a duration as "850ms" below one second and "2.5s"
// above.
func formatSeconds(d time.Duration) string {
	if d < time.Second {
		return util.Int64ToString(d.Milliseconds()) + "ms"
	}
	return util.FloatToString(d.Seconds()) + "s"
}
