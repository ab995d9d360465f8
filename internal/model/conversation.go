// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package model

import (
	"crypto/rand"
	"encoding/hex"
	"strings"
	"time"

	"github.com/jeranaias/rigchat/internal/api"
)

// MaxMessages bounds the in-memory history. Older turns are pruned past
// this, system messages excepted.
const MaxMessages = 1000

// =============================================================================
// CONVERSATION
// =============================================================================

// Conversation is a chat transcript with its metadata: identity, the
// message list, the reporting model, and context-window accounting.
type Conversation struct {
	ID        string     `json:"id"`
	Title     string     `json:"title"`
	Messages  []*Message `json:"messages"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`

	// Model is the last model that answered in this conversation, as the
	// server reported it.
	Model string `json:"model"`

	TokensUsed     int     `json:"tokens_used"`
	MaxTokens      int     `json:"max_tokens"`
	ContextPercent float64 `json:"-"` // computed, not persisted

	// SystemPrompt overrides the configured system message for this
	// conversation when non-empty.
	SystemPrompt string `json:"system_prompt,omitempty"`
}

// NewConversation returns an empty conversation with a fresh ID.
func NewConversation() *Conversation {
	now := time.Now()
	return &Conversation{
		ID:        newConversationID(),
		Messages:  make([]*Message, 0),
		CreatedAt: now,
		UpdatedAt: now,
		MaxTokens: DefaultContextWindow,
	}
}

// NewConversationWithModel returns an empty conversation bound to a model.
func NewConversationWithModel(model string) *Conversation {
	conv := NewConversation()
	conv.SetModel(model)
	return conv
}

func newConversationID() string {
	b := make([]byte, 8)
	rand.Read(b)
	return "conv_" + hex.EncodeToString(b)
}

// =============================================================================
// MESSAGES
// =============================================================================

// AddMessage appends a message and refreshes the derived state: token
// estimate, auto-title, and history pruning.
func (c *Conversation) AddMessage(msg *Message) {
	c.Messages = append(c.Messages, msg)
	c.UpdatedAt = time.Now()
	c.recountTokens()
	c.updateTitle()
	c.prune()
}

// AddUserMessage appends a user message with optional attachments.
func (c *Conversation) AddUserMessage(content string, attachments ...Attachment) *Message {
	msg := NewUserMessage(content, attachments...)
	c.AddMessage(msg)
	return msg
}

// AddAssistantMessage appends an empty assistant message in streaming mode.
func (c *Conversation) AddAssistantMessage() *Message {
	msg := NewAssistantMessage()
	c.AddMessage(msg)
	return msg
}

// AddSystemMessage appends a system message.
func (c *Conversation) AddSystemMessage(content string) *Message {
	msg := NewSystemMessage(content)
	c.AddMessage(msg)
	return msg
}

// LastMessage returns the newest message, or nil when empty.
func (c *Conversation) LastMessage() *Message {
	if n := len(c.Messages); n > 0 {
		return c.Messages[n-1]
	}
	return nil
}

// LastAssistant returns the newest assistant message, or nil.
func (c *Conversation) LastAssistant() *Message {
	return c.lastWithRole(RoleAssistant)
}

func (c *Conversation) lastWithRole(role Role) *Message {
	for i := len(c.Messages) - 1; i >= 0; i-- {
		if c.Messages[i].Role == role {
			return c.Messages[i]
		}
	}
	return nil
}

// streamingTail returns the last message while it is still receiving
// tokens, nil otherwise.
func (c *Conversation) streamingTail() *Message {
	if last := c.LastMessage(); last != nil && last.IsStreaming {
		return last
	}
	return nil
}

// AppendToLast feeds a visible token into the streaming tail message.
func (c *Conversation) AppendToLast(token string) {
	if tail := c.streamingTail(); tail != nil {
		tail.AppendToken(token)
	}
}

// AppendReasoningToLast feeds a reasoning token into the streaming tail.
func (c *Conversation) AppendReasoningToLast(token string) {
	if tail := c.streamingTail(); tail != nil {
		tail.AppendReasoning(token)
	}
}

// FinalizeLast closes the streaming tail message with its statistics.
func (c *Conversation) FinalizeLast(stats *Stats) {
	if tail := c.streamingTail(); tail != nil {
		tail.FinalizeStream(stats)
		c.recountTokens()
	}
}

// DropLastExchange removes the trailing assistant message and, when one
// precedes it, the user message that prompted it. Used by retry.
func (c *Conversation) DropLastExchange() (userContent string, attachments []Attachment, ok bool) {
	if last := c.LastMessage(); last != nil && last.Role == RoleAssistant {
		c.Messages = c.Messages[:len(c.Messages)-1]
	}

	last := c.LastMessage()
	if last == nil || last.Role != RoleUser {
		c.recountTokens()
		return "", nil, false
	}

	userContent = last.Content
	attachments = last.Attachments
	c.Messages = c.Messages[:len(c.Messages)-1]
	c.UpdatedAt = time.Now()
	c.recountTokens()
	return userContent, attachments, true
}

// ClearHistory drops every message but keeps the conversation identity.
func (c *Conversation) ClearHistory() {
	c.Messages = make([]*Message, 0)
	c.TokensUsed = 0
	c.ContextPercent = 0
	c.UpdatedAt = time.Now()
}

// MessageCount returns the number of messages.
func (c *Conversation) MessageCount() int { return len(c.Messages) }

// IsEmpty reports whether the conversation has no messages.
func (c *Conversation) IsEmpty() bool { return len(c.Messages) == 0 }

// History returns the message list for display.
func (c *Conversation) History() []*Message { return c.Messages }

// prune caps the history at MaxMessages, keeping system messages and the
// most recent turns.
func (c *Conversation) prune() {
	if len(c.Messages) <= MaxMessages {
		return
	}

	var system, rest []*Message
	for _, msg := range c.Messages {
		if msg.Role == RoleSystem {
			system = append(system, msg)
		} else {
			rest = append(rest, msg)
		}
	}
	if len(rest) > MaxMessages {
		rest = rest[len(rest)-MaxMessages:]
	}

	c.Messages = append(append(make([]*Message, 0, len(system)+len(rest)), system...), rest...)
}

// =============================================================================
// WIRE CONVERSION
// =============================================================================

// ToWireMessages converts the conversation into the chat-completions message
// list. The per-conversation system prompt leads when set; attachments fold
// into multimodal content parts; streaming and empty messages are skipped.
// The request builder still applies the configured system message and blank
// system filtering on top of this list.
func (c *Conversation) ToWireMessages() []api.ChatMessage {
	messages := make([]api.ChatMessage, 0, len(c.Messages)+1)

	if strings.TrimSpace(c.SystemPrompt) != "" {
		messages = append(messages, api.NewSystemMessage(c.SystemPrompt))
	}

	for _, msg := range c.Messages {
		if msg.IsStreaming {
			continue
		}
		role, ok := wireRole(msg.Role)
		if !ok {
			continue
		}

		switch {
		case len(msg.Attachments) > 0:
			parts := make([]api.ContentPart, 0, len(msg.Attachments)+1)
			if msg.Content != "" {
				parts = append(parts, api.TextPart(msg.Content))
			}
			for _, a := range msg.Attachments {
				parts = append(parts, a.ToContentPart())
			}
			messages = append(messages, api.ChatMessage{Role: role, Content: api.PartsContent(parts...)})

		case msg.Content != "":
			messages = append(messages, api.ChatMessage{Role: role, Content: api.TextContent(msg.Content)})
		}
	}

	return messages
}

// wireRole maps a transcript role onto the wire protocol's role strings.
func wireRole(role Role) (string, bool) {
	switch role {
	case RoleUser:
		return api.RoleUser, true
	case RoleAssistant:
		return api.RoleAssistant, true
	case RoleSystem:
		return api.RoleSystem, true
	}
	return "", false
}

// =============================================================================
// TOKENS AND MODEL
// =============================================================================

// EstimateTokens estimates the conversation's total token count: the
// system prompt plus each message and a few tokens of per-message framing.
func (c *Conversation) EstimateTokens() int {
	total := 0
	if c.SystemPrompt != "" {
		total += (len(c.SystemPrompt) + 3) / 4
	}
	for _, msg := range c.Messages {
		total += msg.EstimateTokens() + 4
	}
	return total
}

func (c *Conversation) recountTokens() {
	c.TokensUsed = c.EstimateTokens()
	if c.MaxTokens > 0 {
		c.ContextPercent = float64(c.TokensUsed) / float64(c.MaxTokens) * 100
	}
}

// SetMaxTokens updates the context window size.
func (c *Conversation) SetMaxTokens(max int) {
	c.MaxTokens = max
	c.recountTokens()
}

// SetModel records the active model and adjusts the context window when
// the model is a known one.
func (c *Conversation) SetModel(model string) {
	c.Model = model
	if window, ok := ContextWindow(model); ok {
		c.SetMaxTokens(window)
	}
	c.UpdatedAt = time.Now()
}

// =============================================================================
// TITLES AND PREVIEWS
// =============================================================================

// updateTitle derives a title from the first user message, once.
func (c *Conversation) updateTitle() {
	if c.Title != "" {
		return
	}
	for _, msg := range c.Messages {
		if msg.Role == RoleUser {
			c.Title = msg.Preview(50)
			return
		}
	}
}

// SetTitle sets the title explicitly.
func (c *Conversation) SetTitle(title string) {
	c.Title = title
	c.UpdatedAt = time.Now()
}

// GetTitle returns the title, or a placeholder for untitled conversations.
func (c *Conversation) GetTitle() string {
	if c.Title == "" {
		return "New Conversation"
	}
	return c.Title
}

// Preview returns a one-line summary, preferring the latest user message.
func (c *Conversation) Preview() string {
	if c.IsEmpty() {
		return "Empty conversation"
	}
	msg := c.lastWithRole(RoleUser)
	if msg == nil {
		msg = c.Messages[0]
	}
	return msg.Preview(100)
}

// ConversationMeta is the lightweight listing record for a conversation.
type ConversationMeta struct {
	ID           string    `json:"id"`
	Title        string    `json:"title"`
	Model        string    `json:"model"`
	MessageCount int       `json:"message_count"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
	Preview      string    `json:"preview"`
}

// Meta builds the listing record for this conversation.
func (c *Conversation) Meta() ConversationMeta {
	return ConversationMeta{
		ID:           c.ID,
		Title:        c.GetTitle(),
		Model:        c.Model,
		MessageCount: len(c.Messages),
		CreatedAt:    c.CreatedAt,
		UpdatedAt:    c.UpdatedAt,
		Preview:      c.Preview(),
	}
}

// Clone deep-copies the conversation, messages included.
func (c *Conversation) Clone() *Conversation {
	clone := *c
	clone.Messages = make([]*Message, len(c.Messages))
	for i, msg := range c.Messages {
		msgCopy := *msg
		if msg.Attachments != nil {
			msgCopy.Attachments = append([]Attachment(nil), msg.Attachments...)
		}
		clone.Messages[i] = &msgCopy
	}
	return &clone
}
