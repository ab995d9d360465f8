// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package api

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/charmbracelet/log"

	"github.com/jeranaias/rigchat/internal/config"
)

// ============================================================================
// REQUEST BODY
// ============================================================================

// RequestBody is the outbound JSON object in field-addressable form, so the
// custom-JSON overlay, the external-API filter, and the compatibility retry
// can operate on fields without re-marshalling intermediate structs.
type RequestBody map[string]json.RawMessage

// Marshal renders the body as JSON.
func (b RequestBody) Marshal() ([]byte, error) {
	return json.Marshal(map[string]json.RawMessage(b))
}

// Has reports whether the body carries a field.
func (b RequestBody) Has(field string) bool {
	_, ok := b[field]
	return ok
}

// Int returns a field decoded as an integer.
func (b RequestBody) Int(field string) (int, bool) {
	raw, ok := b[field]
	if !ok {
		return 0, false
	}
	var n int
	if err := json.Unmarshal(raw, &n); err != nil {
		return 0, false
	}
	return n, true
}

// requestPayload is the typed core of the body before overlay and filter.
type requestPayload struct {
	Messages            []ChatMessage   `json:"messages"`
	Model               string          `json:"model,omitempty"`
	Stream              bool            `json:"stream"`
	Temperature         *float64        `json:"temperature,omitempty"`
	TopP                *float64        `json:"top_p,omitempty"`
	TopK                *int            `json:"top_k,omitempty"`
	MinP                *float64        `json:"min_p,omitempty"`
	PresencePenalty     *float64        `json:"presence_penalty,omitempty"`
	FrequencyPenalty    *float64        `json:"frequency_penalty,omitempty"`
	MaxTokens           *int            `json:"max_tokens,omitempty"`
	MaxCompletionTokens *int            `json:"max_completion_tokens,omitempty"`
	ReasoningEffort     string          `json:"reasoning_effort,omitempty"`
	Stop                []string        `json:"stop,omitempty"`
	N                   *int            `json:"n,omitempty"`
	User                string          `json:"user,omitempty"`
	Tools               json.RawMessage `json:"tools,omitempty"`
	ToolChoice          json.RawMessage `json:"tool_choice,omitempty"`
	ResponseFormat      json.RawMessage `json:"response_format,omitempty"`
}

// externalAllowedFields is the standard subset external providers accept.
// Anything else is a local-server extension and gets stripped.
var externalAllowedFields = map[string]bool{
	"messages":              true,
	"model":                 true,
	"stream":                true,
	"temperature":           true,
	"top_p":                 true,
	"presence_penalty":      true,
	"max_tokens":            true,
	"max_completion_tokens": true,
	"reasoning_effort":      true,
	"stop":                  true,
	"tools":                 true,
	"tool_choice":           true,
	"response_format":       true,
	"n":                     true,
	"logit_bias":            true,
	"user":                  true,
}

// ============================================================================
// BUILDER
// ============================================================================

// BuildRequest assembles the wire-ready request body from the message list
// and options. The configured system message is enforced as the first
// message, unset parameters stay off the wire, custom JSON is merged last,
// and external endpoints get the standard-field filter.
func BuildRequest(cfg *config.Config, messages []ChatMessage, opts RequestOptions, logger *log.Logger) (RequestBody, error) {
	payload := requestPayload{
		Messages:         normalizeMessages(messages, cfg.Chat.SystemMessage),
		Stream:           opts.Stream,
		Temperature:      opts.Temperature,
		TopP:             opts.TopP,
		TopK:             opts.TopK,
		MinP:             opts.MinP,
		PresencePenalty:  opts.PresencePenalty,
		FrequencyPenalty: opts.FrequencyPenalty,
		Stop:             opts.Stop,
		N:                opts.N,
		User:             opts.User,
		Tools:            opts.Tools,
		ToolChoice:       opts.ToolChoice,
		ResponseFormat:   opts.ResponseFormat,
	}

	if cfg.Chat.ModelSelectorEnabled && opts.Model != "" {
		payload.Model = opts.Model
	}

	// max_tokens wins when set; 0 means "unlimited", sent as the sentinel.
	// Otherwise max_completion_tokens rides along when it holds a real cap.
	if opts.MaxTokens != nil {
		v := *opts.MaxTokens
		if v == 0 {
			v = UnlimitedTokens
		}
		payload.MaxTokens = &v
	} else if opts.MaxCompletionTokens != nil && *opts.MaxCompletionTokens > 0 {
		payload.MaxCompletionTokens = opts.MaxCompletionTokens
	}

	if effort := strings.ToLower(strings.TrimSpace(opts.ReasoningEffort)); effort != "" && effort != "none" {
		payload.ReasoningEffort = effort
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to encode request: %w", err)
	}
	var body RequestBody
	if err := json.Unmarshal(data, &body); err != nil {
		return nil, fmt.Errorf("failed to index request fields: %w", err)
	}

	// Custom JSON overlays the built body; its fields win. A parse failure
	// must not fail the request.
	if raw := strings.TrimSpace(opts.CustomJSON); raw != "" {
		var overlay map[string]json.RawMessage
		if err := json.Unmarshal([]byte(raw), &overlay); err != nil {
			if logger != nil {
				logger.Warn("ignoring invalid custom JSON", "error", err)
			}
		} else {
			for k, v := range overlay {
				body[k] = v
			}
		}
	}

	if cfg.Server.IsExternal() {
		filterForExternalAPI(body)
	}

	return body, nil
}

// OptionsFromConfig seeds RequestOptions with the configured sampling
// defaults. Callers layer per-request overrides (model switch, stream flag)
// on top of the returned value.
func OptionsFromConfig(cfg *config.Config) RequestOptions {
	opts := RequestOptions{
		Model:                  cfg.Chat.Model,
		Stream:                 true,
		Temperature:            cfg.Chat.Temperature,
		TopP:                   cfg.Chat.TopP,
		TopK:                   cfg.Chat.TopK,
		MinP:                   cfg.Chat.MinP,
		PresencePenalty:        cfg.Chat.PresencePenalty,
		FrequencyPenalty:       cfg.Chat.FrequencyPenalty,
		ReasoningEffort:        cfg.Chat.ReasoningEffort,
		Stop:                   cfg.Chat.Stop,
		CustomJSON:             cfg.Chat.CustomJSON,
		DisableReasoningFormat: cfg.Chat.DisableReasoningFormat,
	}

	// Config uses plain ints where 0 means unset; the wire layer wants
	// pointers so unset parameters stay off the request entirely.
	if cfg.Chat.MaxTokens != 0 {
		v := cfg.Chat.MaxTokens
		opts.MaxTokens = &v
	}
	if cfg.Chat.MaxCompletionTokens > 0 {
		v := cfg.Chat.MaxCompletionTokens
		opts.MaxCompletionTokens = &v
	}

	return opts
}

// normalizeMessages drops blank system messages and enforces the
// configured system message as the first element: it replaces a differing
// leading system message, is prepended when none exists, and leaves an
// identical one untouched.
func normalizeMessages(messages []ChatMessage, systemMessage string) []ChatMessage {
	out := make([]ChatMessage, 0, len(messages)+1)
	for _, m := range messages {
		if m.Role == RoleSystem && strings.TrimSpace(m.Content.PlainText()) == "" {
			continue
		}
		out = append(out, m)
	}

	if strings.TrimSpace(systemMessage) == "" {
		return out
	}

	if len(out) > 0 && out[0].Role == RoleSystem {
		if out[0].Content.PlainText() == systemMessage {
			return out
		}
		out[0] = NewSystemMessage(systemMessage)
		return out
	}

	return append([]ChatMessage{NewSystemMessage(systemMessage)}, out...)
}

// filterForExternalAPI strips non-standard fields and the unlimited
// max_tokens sentinel, which external providers treat as invalid.
func filterForExternalAPI(body RequestBody) {
	for field := range body {
		if !externalAllowedFields[field] {
			delete(body, field)
		}
	}
	if n, ok := body.Int("max_tokens"); ok && n == UnlimitedTokens {
		delete(body, "max_tokens")
	}
}

// ============================================================================
// COMPATIBILITY RETRY
// ============================================================================

// applyCompatRules applies every configured rule whose pattern occurs in
// the 400 error body, but only where the request actually carried an
// affected field. Reports whether anything changed, i.e. whether a retry
// is worth attempting.
func applyCompatRules(rules []config.CompatRule, errorBody string, body RequestBody) bool {
	lowerBody := strings.ToLower(errorBody)
	applied := false

	for _, rule := range rules {
		matched := false
		for _, pattern := range rule.Match {
			if pattern != "" && strings.Contains(lowerBody, strings.ToLower(pattern)) {
				matched = true
				break
			}
		}
		if !matched {
			continue
		}

		for _, field := range rule.DropFields {
			if body.Has(field) {
				delete(body, field)
				applied = true
			}
		}
		for oldName, newName := range rule.RenameFields {
			if raw, ok := body[oldName]; ok {
				delete(body, oldName)
				body[newName] = raw
				applied = true
			}
		}
	}

	return applied
}
