// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package api

import (
	"encoding/json"
	"testing"

	"github.com/jeranaias/rigchat/internal/config"
)

func testConfig() *config.Config {
	cfg := config.Default()
	cfg.Chat.SystemMessage = ""
	return cfg
}

func buildBody(t *testing.T, cfg *config.Config, messages []ChatMessage, opts RequestOptions) RequestBody {
	t.Helper()
	body, err := BuildRequest(cfg, messages, opts, nil)
	if err != nil {
		t.Fatalf("BuildRequest: %v", err)
	}
	return body
}

func bodyMessages(t *testing.T, body RequestBody) []ChatMessage {
	t.Helper()
	var msgs []ChatMessage
	if err := json.Unmarshal(body["messages"], &msgs); err != nil {
		t.Fatalf("decode messages: %v", err)
	}
	return msgs
}

// ============================================================================
// SYSTEM MESSAGE
// ============================================================================

func TestBuildRequestSystemMessagePrepended(t *testing.T) {
	cfg := testConfig()
	cfg.Chat.SystemMessage = "be terse"

	body := buildBody(t, cfg, []ChatMessage{NewUserMessage("hi")}, RequestOptions{})

	msgs := bodyMessages(t, body)
	if len(msgs) != 2 {
		t.Fatalf("got %d messages, want 2", len(msgs))
	}
	if msgs[0].Role != RoleSystem || msgs[0].Content.PlainText() != "be terse" {
		t.Errorf("first message = %+v, want configured system", msgs[0])
	}
}

func TestBuildRequestSystemMessageReplacesDiffering(t *testing.T) {
	cfg := testConfig()
	cfg.Chat.SystemMessage = "be terse"

	body := buildBody(t, cfg, []ChatMessage{
		NewSystemMessage("be verbose"),
		NewUserMessage("hi"),
	}, RequestOptions{})

	msgs := bodyMessages(t, body)
	if len(msgs) != 2 {
		t.Fatalf("got %d messages, want 2", len(msgs))
	}
	if msgs[0].Content.PlainText() != "be terse" {
		t.Errorf("system message = %q, want %q", msgs[0].Content.PlainText(), "be terse")
	}
}

func TestBuildRequestSystemMessageIdenticalNotDuplicated(t *testing.T) {
	cfg := testConfig()
	cfg.Chat.SystemMessage = "be terse"

	body := buildBody(t, cfg, []ChatMessage{
		NewSystemMessage("be terse"),
		NewUserMessage("hi"),
	}, RequestOptions{})

	msgs := bodyMessages(t, body)
	systems := 0
	for _, m := range msgs {
		if m.Role == RoleSystem {
			systems++
		}
	}
	if systems != 1 {
		t.Errorf("got %d system messages, want 1", systems)
	}
}

func TestBuildRequestBlankSystemMessagesDropped(t *testing.T) {
	cfg := testConfig()

	body := buildBody(t, cfg, []ChatMessage{
		NewSystemMessage("   "),
		NewUserMessage("hi"),
	}, RequestOptions{})

	msgs := bodyMessages(t, body)
	if len(msgs) != 1 || msgs[0].Role != RoleUser {
		t.Errorf("messages = %+v, want only the user message", msgs)
	}
}

// ============================================================================
// TOKEN LIMITS
// ============================================================================

func TestBuildRequestMaxTokensPriority(t *testing.T) {
	tests := []struct {
		name                string
		maxTokens           *int
		maxCompletionTokens *int
		wantField           string
		wantValue           int
		wantAbsent          []string
	}{
		{
			name:       "max_tokens wins over max_completion_tokens",
			maxTokens:  intPtr(512),
			wantField:  "max_tokens",
			wantValue:  512,
			wantAbsent: []string{"max_completion_tokens"},
		},
		{
			name:                "max_tokens zero becomes unlimited sentinel",
			maxTokens:           intPtr(0),
			maxCompletionTokens: intPtr(256),
			wantField:           "max_tokens",
			wantValue:           -1,
			wantAbsent:          []string{"max_completion_tokens"},
		},
		{
			name:                "max_completion_tokens used when max_tokens unset",
			maxCompletionTokens: intPtr(256),
			wantField:           "max_completion_tokens",
			wantValue:           256,
			wantAbsent:          []string{"max_tokens"},
		},
		{
			name:                "non-positive max_completion_tokens omitted",
			maxCompletionTokens: intPtr(0),
			wantAbsent:          []string{"max_tokens", "max_completion_tokens"},
		},
		{
			name:       "neither set, neither sent",
			wantAbsent: []string{"max_tokens", "max_completion_tokens"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			body := buildBody(t, testConfig(), []ChatMessage{NewUserMessage("hi")}, RequestOptions{
				MaxTokens:           tt.maxTokens,
				MaxCompletionTokens: tt.maxCompletionTokens,
			})

			if tt.wantField != "" {
				got, ok := body.Int(tt.wantField)
				if !ok {
					t.Fatalf("field %q missing", tt.wantField)
				}
				if got != tt.wantValue {
					t.Errorf("%s = %d, want %d", tt.wantField, got, tt.wantValue)
				}
			}
			for _, field := range tt.wantAbsent {
				if body.Has(field) {
					t.Errorf("field %q present, want absent", field)
				}
			}
		})
	}
}

// ============================================================================
// OPTIONAL PARAMETERS
// ============================================================================

func TestBuildRequestReasoningEffort(t *testing.T) {
	tests := []struct {
		effort string
		want   string // empty means omitted
	}{
		{"", ""},
		{"none", ""},
		{"None", ""},
		{"  none  ", ""},
		{"low", "low"},
		{"HIGH", "high"},
		{"medium", "medium"},
	}

	for _, tt := range tests {
		body := buildBody(t, testConfig(), []ChatMessage{NewUserMessage("hi")}, RequestOptions{
			ReasoningEffort: tt.effort,
		})

		raw, present := body["reasoning_effort"]
		if tt.want == "" {
			if present {
				t.Errorf("effort %q: field present, want omitted", tt.effort)
			}
			continue
		}
		var got string
		if err := json.Unmarshal(raw, &got); err != nil || got != tt.want {
			t.Errorf("effort %q: got %q, want %q", tt.effort, got, tt.want)
		}
	}
}

func TestBuildRequestStreamAlwaysOnWire(t *testing.T) {
	for _, streaming := range []bool{true, false} {
		body := buildBody(t, testConfig(), []ChatMessage{NewUserMessage("hi")}, RequestOptions{
			Stream: streaming,
		})
		raw, ok := body["stream"]
		if !ok {
			t.Fatalf("stream=%v: field missing from wire", streaming)
		}
		var got bool
		if err := json.Unmarshal(raw, &got); err != nil || got != streaming {
			t.Errorf("stream = %v, want %v", got, streaming)
		}
	}
}

func TestBuildRequestUnsetParametersOmitted(t *testing.T) {
	body := buildBody(t, testConfig(), []ChatMessage{NewUserMessage("hi")}, RequestOptions{})

	for _, field := range []string{"temperature", "top_p", "top_k", "min_p", "presence_penalty", "frequency_penalty", "stop", "model", "tools"} {
		if body.Has(field) {
			t.Errorf("field %q present without a value set", field)
		}
	}
}

func TestBuildRequestModelRequiresSelector(t *testing.T) {
	cfg := testConfig()

	cfg.Chat.ModelSelectorEnabled = false
	body := buildBody(t, cfg, []ChatMessage{NewUserMessage("hi")}, RequestOptions{Model: "llama-3"})
	if body.Has("model") {
		t.Error("model sent while selector disabled")
	}

	cfg.Chat.ModelSelectorEnabled = true
	body = buildBody(t, cfg, []ChatMessage{NewUserMessage("hi")}, RequestOptions{Model: "llama-3"})
	var got string
	if err := json.Unmarshal(body["model"], &got); err != nil || got != "llama-3" {
		t.Errorf("model = %q, want %q", got, "llama-3")
	}
}

// ============================================================================
// CUSTOM JSON OVERLAY
// ============================================================================

func TestBuildRequestCustomJSONOverlay(t *testing.T) {
	temp := 0.2
	body := buildBody(t, testConfig(), []ChatMessage{NewUserMessage("hi")}, RequestOptions{
		Temperature: &temp,
		CustomJSON:  `{"temperature": 0.9, "mirostat": 2}`,
	})

	var gotTemp float64
	if err := json.Unmarshal(body["temperature"], &gotTemp); err != nil || gotTemp != 0.9 {
		t.Errorf("temperature = %v, want custom JSON to win with 0.9", gotTemp)
	}
	if n, ok := body.Int("mirostat"); !ok || n != 2 {
		t.Errorf("mirostat = %d (%v), want 2", n, ok)
	}
}

func TestBuildRequestInvalidCustomJSONIgnored(t *testing.T) {
	temp := 0.2
	body := buildBody(t, testConfig(), []ChatMessage{NewUserMessage("hi")}, RequestOptions{
		Temperature: &temp,
		CustomJSON:  `{"temperature": broken`,
	})

	var gotTemp float64
	if err := json.Unmarshal(body["temperature"], &gotTemp); err != nil || gotTemp != 0.2 {
		t.Errorf("temperature = %v, want original 0.2 after invalid overlay", gotTemp)
	}
}

// ============================================================================
// EXTERNAL API FILTER
// ============================================================================

func TestBuildRequestExternalFilterStripsExtensions(t *testing.T) {
	cfg := testConfig()
	cfg.Server.BaseURL = "https://api.example.com/v1"

	topK := 40
	minP := 0.05
	body := buildBody(t, cfg, []ChatMessage{NewUserMessage("hi")}, RequestOptions{
		TopK:       &topK,
		MinP:       &minP,
		CustomJSON: `{"mirostat": 2}`,
	})

	for _, field := range []string{"top_k", "min_p", "mirostat"} {
		if body.Has(field) {
			t.Errorf("non-standard field %q sent to external API", field)
		}
	}
	if !body.Has("messages") || !body.Has("stream") {
		t.Error("standard fields must survive the filter")
	}
}

func TestBuildRequestExternalFilterDropsUnlimitedSentinel(t *testing.T) {
	cfg := testConfig()
	cfg.Server.BaseURL = "https://api.example.com/v1"

	body := buildBody(t, cfg, []ChatMessage{NewUserMessage("hi")}, RequestOptions{
		MaxTokens: intPtr(0), // unlimited
	})
	if body.Has("max_tokens") {
		t.Error("unlimited sentinel sent to external API")
	}

	body = buildBody(t, cfg, []ChatMessage{NewUserMessage("hi")}, RequestOptions{
		MaxTokens: intPtr(512),
	})
	if n, ok := body.Int("max_tokens"); !ok || n != 512 {
		t.Errorf("real max_tokens = %d (%v), want 512 kept", n, ok)
	}
}

func TestBuildRequestLocalServerKeepsExtensions(t *testing.T) {
	cfg := testConfig()
	cfg.Server.BaseURL = "" // local

	topK := 40
	body := buildBody(t, cfg, []ChatMessage{NewUserMessage("hi")}, RequestOptions{
		TopK:      &topK,
		MaxTokens: intPtr(0),
	})

	if !body.Has("top_k") {
		t.Error("top_k stripped for local server")
	}
	if n, ok := body.Int("max_tokens"); !ok || n != -1 {
		t.Errorf("max_tokens = %d (%v), want -1 sentinel kept locally", n, ok)
	}
}

// ============================================================================
// COMPATIBILITY RULES
// ============================================================================

func TestApplyCompatRulesDropField(t *testing.T) {
	body := RequestBody{
		"reasoning_effort": json.RawMessage(`"low"`),
		"messages":         json.RawMessage(`[]`),
	}

	changed := applyCompatRules(config.DefaultCompatRules(),
		`{"error":{"message":"reasoning is not enabled on this model"}}`, body)

	if !changed {
		t.Fatal("rule did not apply")
	}
	if body.Has("reasoning_effort") {
		t.Error("reasoning_effort still present after drop")
	}
	if !body.Has("messages") {
		t.Error("unrelated field removed")
	}
}

func TestApplyCompatRulesRenameField(t *testing.T) {
	body := RequestBody{
		"max_tokens": json.RawMessage(`1024`),
	}

	changed := applyCompatRules(config.DefaultCompatRules(),
		`Use 'max_completion_tokens' instead of 'max_tokens'`, body)

	if !changed {
		t.Fatal("rule did not apply")
	}
	if body.Has("max_tokens") {
		t.Error("max_tokens still present after rename")
	}
	if n, ok := body.Int("max_completion_tokens"); !ok || n != 1024 {
		t.Errorf("max_completion_tokens = %d (%v), want 1024", n, ok)
	}
}

func TestApplyCompatRulesRequiresFieldPresent(t *testing.T) {
	body := RequestBody{
		"messages": json.RawMessage(`[]`),
	}

	changed := applyCompatRules(config.DefaultCompatRules(),
		"reasoning is not enabled", body)

	if changed {
		t.Error("rule applied although the request never carried the field")
	}
}

func TestApplyCompatRulesMatchIsCaseInsensitive(t *testing.T) {
	body := RequestBody{
		"reasoning_effort": json.RawMessage(`"low"`),
	}

	changed := applyCompatRules(config.DefaultCompatRules(),
		"REASONING IS NOT ENABLED", body)

	if !changed {
		t.Error("case-insensitive match failed")
	}
}

func TestApplyCompatRulesNoMatchNoChange(t *testing.T) {
	body := RequestBody{
		"reasoning_effort": json.RawMessage(`"low"`),
	}

	changed := applyCompatRules(config.DefaultCompatRules(),
		"some unrelated validation failure", body)

	if changed {
		t.Error("rule applied without a matching error body")
	}
	if !body.Has("reasoning_effort") {
		t.Error("field removed without a matching rule")
	}
}

func TestApplyCompatRulesBothFixesCombine(t *testing.T) {
	body := RequestBody{
		"reasoning_effort": json.RawMessage(`"low"`),
		"max_tokens":       json.RawMessage(`1024`),
	}

	changed := applyCompatRules(config.DefaultCompatRules(),
		"reasoning is not enabled; use max_completion_tokens instead", body)

	if !changed {
		t.Fatal("rules did not apply")
	}
	if body.Has("reasoning_effort") || body.Has("max_tokens") {
		t.Error("both fixes should apply before the single retry")
	}
	if !body.Has("max_completion_tokens") {
		t.Error("rename missing")
	}
}
