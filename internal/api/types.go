// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package api

import (
	"encoding/json"
	"fmt"
	"time"
)

// ============================================================================
// MESSAGES
// ============================================================================

// Message roles recognized by the chat-completions wire format.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// ChatMessage is one message in the outbound request. Immutable once built.
type ChatMessage struct {
	Role    string         `json:"role"`
	Content MessageContent `json:"content"`
}

// NewSystemMessage creates a system message with plain text content.
func NewSystemMessage(text string) ChatMessage {
	return ChatMessage{Role: RoleSystem, Content: TextContent(text)}
}

// NewUserMessage creates a user message with plain text content.
func NewUserMessage(text string) ChatMessage {
	return ChatMessage{Role: RoleUser, Content: TextContent(text)}
}

// NewAssistantMessage creates an assistant message with plain text content.
func NewAssistantMessage(text string) ChatMessage {
	return ChatMessage{Role: RoleAssistant, Content: TextContent(text)}
}

// MessageContent is either plain text or an ordered list of typed parts.
// It marshals as a bare JSON string when Parts is nil, matching what every
// OpenAI-compatible server accepts for text-only messages.
type MessageContent struct {
	Text  string
	Parts []ContentPart
}

// TextContent wraps plain text as message content.
func TextContent(text string) MessageContent {
	return MessageContent{Text: text}
}

// PartsContent wraps typed parts as message content.
func PartsContent(parts ...ContentPart) MessageContent {
	return MessageContent{Parts: parts}
}

// IsEmpty reports whether the content carries no text and no parts.
func (c MessageContent) IsEmpty() bool {
	return c.Text == "" && len(c.Parts) == 0
}

// PlainText returns the textual content: Text for plain messages, the
// concatenated text parts otherwise.
func (c MessageContent) PlainText() string {
	if c.Parts == nil {
		return c.Text
	}
	var out string
	for _, p := range c.Parts {
		if p.Type == PartTypeText {
			out += p.Text
		}
	}
	return out
}

// MarshalJSON emits a bare string for text content and an array for parts.
func (c MessageContent) MarshalJSON() ([]byte, error) {
	if c.Parts == nil {
		return json.Marshal(c.Text)
	}
	return json.Marshal(c.Parts)
}

// UnmarshalJSON accepts both wire shapes.
func (c *MessageContent) UnmarshalJSON(data []byte) error {
	var text string
	if err := json.Unmarshal(data, &text); err == nil {
		c.Text = text
		c.Parts = nil
		return nil
	}

	var parts []ContentPart
	if err := json.Unmarshal(data, &parts); err == nil {
		c.Text = ""
		c.Parts = parts
		return nil
	}

	// "content": null appears on assistant tool-call messages
	if string(data) == "null" {
		*c = MessageContent{}
		return nil
	}
	return fmt.Errorf("content is neither string nor part array: %s", data)
}

// Content part types per the OpenAI multimodal format.
const (
	PartTypeText       = "text"
	PartTypeImageURL   = "image_url"
	PartTypeInputAudio = "input_audio"
)

// ContentPart is one element of a multimodal message.
type ContentPart struct {
	Type       string          `json:"type"`
	Text       string          `json:"text,omitempty"`
	ImageURL   *ImageURLPart   `json:"image_url,omitempty"`
	InputAudio *InputAudioPart `json:"input_audio,omitempty"`
}

// ImageURLPart carries an image by URL or data URI.
type ImageURLPart struct {
	URL string `json:"url"`
}

// InputAudioPart carries base64 audio data.
type InputAudioPart struct {
	Data   string `json:"data"`
	Format string `json:"format"`
}

// TextPart creates a text content part.
func TextPart(text string) ContentPart {
	return ContentPart{Type: PartTypeText, Text: text}
}

// ImagePart creates an image content part from a URL or data URI.
func ImagePart(url string) ContentPart {
	return ContentPart{Type: PartTypeImageURL, ImageURL: &ImageURLPart{URL: url}}
}

// AudioPart creates an audio content part from base64 data.
func AudioPart(data, format string) ContentPart {
	return ContentPart{Type: PartTypeInputAudio, InputAudio: &InputAudioPart{Data: data, Format: format}}
}

// DocumentPart folds an attached text document into a text part with a
// filename header, the convention local servers handle best.
func DocumentPart(name, text string) ContentPart {
	return TextPart("File: " + name + "\n\n" + text)
}

// ============================================================================
// REQUEST OPTIONS
// ============================================================================

// UnlimitedTokens is the llama.cpp sentinel for "no generation cap".
// External APIs reject it, so the builder strips it for them.
const UnlimitedTokens = -1

// RequestOptions carries the optional generation parameters for one
// request. Nil pointer fields are omitted from the wire entirely; they are
// never defaulted silently.
type RequestOptions struct {
	// Model requested from the server. Omitted when empty or when the
	// model selector is disabled in settings.
	Model string
	// Stream selects SSE streaming; always present on the wire.
	Stream bool

	Temperature      *float64
	TopP             *float64
	TopK             *int
	MinP             *float64
	PresencePenalty  *float64
	FrequencyPenalty *float64

	// MaxTokens, when set, wins over MaxCompletionTokens. A value of 0
	// sends the unlimited sentinel (-1).
	MaxTokens *int
	// MaxCompletionTokens is sent only when MaxTokens is unset and the
	// value is positive.
	MaxCompletionTokens *int

	// ReasoningEffort is omitted when empty or "none".
	ReasoningEffort string

	Stop []string
	N    *int
	User string

	// Tool definitions passed through verbatim.
	Tools      json.RawMessage
	ToolChoice json.RawMessage
	// ResponseFormat passed through verbatim (e.g. JSON mode).
	ResponseFormat json.RawMessage

	// CustomJSON is a raw JSON object merged over the built body;
	// its fields win. Invalid JSON is logged and ignored.
	CustomJSON string

	// DisableReasoningFormat passes <think> tags through as visible
	// text instead of routing them to reasoning callbacks.
	DisableReasoningFormat bool
}

// ============================================================================
// CALLBACKS
// ============================================================================

// StreamCallbacks receives decoded stream events. Any field may be nil.
// After cancellation no callback fires, OnComplete and OnError included.
type StreamCallbacks struct {
	// OnChunk receives each visible content fragment.
	OnChunk func(text string)
	// OnReasoningChunk receives each reasoning fragment, whether it came
	// from <think> tags or a dedicated reasoning field.
	OnReasoningChunk func(text string)
	// OnToolCallChunk receives the serialized accumulated tool-call list
	// after every tool-call fragment.
	OnToolCallChunk func(serialized string)
	// OnModel fires exactly once with the model name the server reports.
	OnModel func(name string)
	// OnFirstValidChunk fires once, on the first parsed completion chunk.
	OnFirstValidChunk func()
	// OnComplete fires on clean termination with the final aggregates.
	OnComplete func(result Completion)
	// OnError fires when the request fails; the same error is returned.
	OnError func(err error)
}

// Completion is the final aggregate handed to OnComplete.
type Completion struct {
	// Content is the visible text with reasoning spans removed.
	Content string
	// Reasoning is the aggregated reasoning text, empty when none.
	Reasoning string
	// Timings is the server-reported or estimated snapshot, nil when
	// neither was derivable.
	Timings *TimingSnapshot
	// ToolCalls is the serialized JSON array of completed calls,
	// empty when the model made none.
	ToolCalls string
}

// ============================================================================
// TIMINGS AND USAGE
// ============================================================================

// TimingSnapshot mirrors the llama.cpp timings object: token counts and
// elapsed milliseconds for the prompt and generation phases.
type TimingSnapshot struct {
	PromptN     int     `json:"prompt_n"`
	PromptMS    float64 `json:"prompt_ms"`
	PredictedN  int     `json:"predicted_n"`
	PredictedMS float64 `json:"predicted_ms"`

	PromptPerSecond    float64 `json:"prompt_per_second,omitempty"`
	PredictedPerSecond float64 `json:"predicted_per_second,omitempty"`
	CacheN             int     `json:"cache_n,omitempty"`

	// Estimated marks snapshots derived from usage counts and wall-clock
	// time rather than reported by the server.
	Estimated bool `json:"-"`
}

// TokensPerSecond returns the generation rate, preferring the server's own
// figure when present.
func (t *TimingSnapshot) TokensPerSecond() float64 {
	if t.PredictedPerSecond > 0 {
		return t.PredictedPerSecond
	}
	if t.PredictedMS <= 0 {
		return 0
	}
	return float64(t.PredictedN) / (t.PredictedMS / 1000.0)
}

// Usage carries the token counts some servers report instead of timings.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// PromptProgress reports prompt-processing advance on local servers.
type PromptProgress struct {
	Total     int     `json:"total"`
	Cache     int     `json:"cache"`
	Processed int     `json:"processed"`
	TimeMS    float64 `json:"time_ms"`
}

// Fraction returns completed work in [0, 1].
func (p *PromptProgress) Fraction() float64 {
	if p.Total <= 0 {
		return 0
	}
	f := float64(p.Processed) / float64(p.Total)
	if f > 1 {
		f = 1
	}
	return f
}

// ============================================================================
// LIVE PROCESSING STATE
// ============================================================================

// ProcessingState is the live side-channel snapshot pushed to a StateSink
// while a request streams, keyed by conversation id.
type ProcessingState struct {
	PromptN            int
	PredictedN         int
	PredictedPerSecond float64
	CacheN             int
	// PromptProgress in [0, 1]; 1 once generation started.
	PromptProgress float64
	UpdatedAt      time.Time
}

// StateSink receives live processing updates during streaming. Updates for
// different conversations never interleave state.
type StateSink interface {
	UpdateProcessingState(convID string, state ProcessingState)
	ClearProcessingState(convID string)
}

// ============================================================================
// WIRE CHUNKS
// ============================================================================

// streamChunk is one parsed "data:" line of the SSE response.
type streamChunk struct {
	ID      string          `json:"id"`
	Object  string          `json:"object"`
	Model   string          `json:"model"`
	Choices []streamChoice  `json:"choices"`
	Usage   *Usage          `json:"usage"`
	Timings *TimingSnapshot `json:"timings"`
	Prompt  *PromptProgress `json:"prompt_progress"`
}

// isCompletionChunk reports whether the object type marks a chat
// completion payload.
func (c *streamChunk) isCompletionChunk() bool {
	return c.Object == "chat.completion.chunk" || c.Object == "chat.completion"
}

type streamChoice struct {
	Index        int              `json:"index"`
	Delta        streamDelta      `json:"delta"`
	Message      *responseMessage `json:"message"`
	FinishReason string           `json:"finish_reason"`
}

type streamDelta struct {
	Role             string          `json:"role"`
	Content          string          `json:"content"`
	Reasoning        string          `json:"reasoning"`
	ReasoningContent string          `json:"reasoning_content"`
	Model            string          `json:"model"`
	ToolCalls        []ToolCallDelta `json:"tool_calls"`
}

// reasoningText returns the delta's reasoning regardless of which field
// name the provider used.
func (d *streamDelta) reasoningText() string {
	if d.Reasoning != "" {
		return d.Reasoning
	}
	return d.ReasoningContent
}

// chatResponse is the full body of a non-streaming completion.
type chatResponse struct {
	ID      string          `json:"id"`
	Object  string          `json:"object"`
	Model   string          `json:"model"`
	Choices []struct {
		Index        int             `json:"index"`
		Message      responseMessage `json:"message"`
		FinishReason string          `json:"finish_reason"`
	} `json:"choices"`
	Usage   *Usage          `json:"usage"`
	Timings *TimingSnapshot `json:"timings"`
}

type responseMessage struct {
	Role             string          `json:"role"`
	Content          string          `json:"content"`
	Reasoning        string          `json:"reasoning"`
	ReasoningContent string          `json:"reasoning_content"`
	Model            string          `json:"model"`
	ToolCalls        []ToolCallDelta `json:"tool_calls"`
}

func (m *responseMessage) reasoningText() string {
	if m.Reasoning != "" {
		return m.Reasoning
	}
	return m.ReasoningContent
}

// ============================================================================
// MODELS ENDPOINT
// ============================================================================

// ModelInfo describes one model offered by the server.
type ModelInfo struct {
	ID      string `json:"id"`
	Object  string `json:"object"`
	OwnedBy string `json:"owned_by"`
	Created int64  `json:"created"`
}

// modelsResponse is the /models listing body.
type modelsResponse struct {
	Data []ModelInfo `json:"data"`
}
