// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package api

import (
	"context"
	"encoding/json"
	"strings"
	"testing"
)

// streamCollector records every callback invocation in order.
type streamCollector struct {
	chunks     []string
	reasoning  []string
	toolCalls  []string
	models     []string
	firstValid int
	completes  []Completion
	errs       []error
}

func (c *streamCollector) callbacks() StreamCallbacks {
	return StreamCallbacks{
		OnChunk:           func(s string) { c.chunks = append(c.chunks, s) },
		OnReasoningChunk:  func(s string) { c.reasoning = append(c.reasoning, s) },
		OnToolCallChunk:   func(s string) { c.toolCalls = append(c.toolCalls, s) },
		OnModel:           func(s string) { c.models = append(c.models, s) },
		OnFirstValidChunk: func() { c.firstValid++ },
		OnComplete:        func(r Completion) { c.completes = append(c.completes, r) },
		OnError:           func(err error) { c.errs = append(c.errs, err) },
	}
}

// sse renders payload lines as a server-sent-event body.
func sse(payloads ...string) string {
	var b strings.Builder
	for _, p := range payloads {
		b.WriteString("data: ")
		b.WriteString(p)
		b.WriteString("\n\n")
	}
	return b.String()
}

func contentChunk(text string) string {
	return `{"object":"chat.completion.chunk","choices":[{"delta":{"content":` + quoteJSON(text) + `}}]}`
}

func quoteJSON(s string) string {
	var b strings.Builder
	b.WriteByte('"')
	for _, r := range s {
		switch r {
		case '"':
			b.WriteString(`\"`)
		case '\\':
			b.WriteString(`\\`)
		case '\n':
			b.WriteString(`\n`)
		default:
			b.WriteRune(r)
		}
	}
	b.WriteByte('"')
	return b.String()
}

func runDecoder(t *testing.T, body string, col *streamCollector) *StreamDecoder {
	t.Helper()
	d := NewStreamDecoder("conv-1", col.callbacks())
	if err := d.Run(context.Background(), strings.NewReader(body)); err != nil {
		t.Fatalf("Run: %v", err)
	}
	return d
}

// ============================================================================
// CONTENT AND COMPLETION
// ============================================================================

func TestStreamDecoderEmitsContent(t *testing.T) {
	col := &streamCollector{}
	body := sse(
		contentChunk("Hello "),
		contentChunk("world"),
		"[DONE]",
	)

	d := runDecoder(t, body, col)

	if len(col.chunks) != 2 || col.chunks[0] != "Hello " || col.chunks[1] != "world" {
		t.Errorf("chunks = %q", col.chunks)
	}
	if len(col.completes) != 1 {
		t.Fatalf("completions = %d, want 1", len(col.completes))
	}
	if got := col.completes[0].Content; got != "Hello world" {
		t.Errorf("final content = %q, want %q", got, "Hello world")
	}
	if d.Phase() != PhaseFinished {
		t.Errorf("phase = %v, want finished", d.Phase())
	}
	if len(col.errs) != 0 {
		t.Errorf("unexpected errors: %v", col.errs)
	}
}

func TestStreamDecoderEndWithoutDoneIsSilent(t *testing.T) {
	col := &streamCollector{}
	body := sse(contentChunk("partial answer"))

	runDecoder(t, body, col)

	if len(col.chunks) != 1 {
		t.Errorf("chunks = %q, want the partial content delivered", col.chunks)
	}
	if len(col.completes) != 0 {
		t.Error("completion fired for a truncated stream")
	}
	if len(col.errs) != 0 {
		t.Errorf("errors fired for a truncated stream: %v", col.errs)
	}
}

func TestStreamDecoderSkipsMalformedLines(t *testing.T) {
	col := &streamCollector{}
	body := "data: {\"object\":\"chat.completion.chunk\",\"choices\":[{\"delta\":{\"content\":\"a\"}}]}\n" +
		"data: {not json at all\n" +
		"data: {\"object\":\"chat.completion.chunk\",\"choices\":[{\"delta\":{\"content\":\"b\"}}]}\n" +
		"data: [DONE]\n"

	runDecoder(t, body, col)

	if len(col.completes) != 1 {
		t.Fatalf("completions = %d, want 1", len(col.completes))
	}
	if got := col.completes[0].Content; got != "ab" {
		t.Errorf("content = %q, want %q despite the malformed line", got, "ab")
	}
}

func TestStreamDecoderIgnoresNonDataLines(t *testing.T) {
	col := &streamCollector{}
	body := ": keep-alive comment\n" +
		"event: message\n" +
		"data: " + contentChunk("x") + "\n" +
		"data: [DONE]\n"

	runDecoder(t, body, col)

	if len(col.completes) != 1 || col.completes[0].Content != "x" {
		t.Errorf("completions = %+v", col.completes)
	}
}

func TestStreamDecoderHandlesCRLF(t *testing.T) {
	col := &streamCollector{}
	body := "data: " + contentChunk("x") + "\r\n\r\ndata: [DONE]\r\n"

	runDecoder(t, body, col)

	if len(col.completes) != 1 || col.completes[0].Content != "x" {
		t.Errorf("CRLF stream not decoded: %+v", col.completes)
	}
}

// ============================================================================
// MODEL AND FIRST CHUNK
// ============================================================================

func TestStreamDecoderModelReportedOnce(t *testing.T) {
	col := &streamCollector{}
	body := sse(
		`{"object":"chat.completion.chunk","model":"llama-3.1","choices":[{"delta":{"content":"a"}}]}`,
		`{"object":"chat.completion.chunk","model":"llama-3.1","choices":[{"delta":{"content":"b"}}]}`,
		"[DONE]",
	)

	runDecoder(t, body, col)

	if len(col.models) != 1 || col.models[0] != "llama-3.1" {
		t.Errorf("models = %q, want exactly one report", col.models)
	}
}

func TestStreamDecoderModelFromDelta(t *testing.T) {
	col := &streamCollector{}
	body := sse(
		`{"object":"chat.completion.chunk","choices":[{"delta":{"model":"qwen-2","content":"a"}}]}`,
		"[DONE]",
	)

	runDecoder(t, body, col)

	if len(col.models) != 1 || col.models[0] != "qwen-2" {
		t.Errorf("models = %q, want delta-level model reported", col.models)
	}
}

// The last fallback for the model name is a message object embedded in
// the choice, after the top level and the delta.
func TestStreamDecoderModelFromMessage(t *testing.T) {
	col := &streamCollector{}
	body := sse(
		`{"object":"chat.completion.chunk","choices":[{"delta":{"content":"a"},"message":{"model":"phi-4"}}]}`,
		"[DONE]",
	)

	runDecoder(t, body, col)

	if len(col.models) != 1 || col.models[0] != "phi-4" {
		t.Errorf("models = %q, want message-level model reported", col.models)
	}
}

func TestStreamDecoderFirstValidChunkOnce(t *testing.T) {
	col := &streamCollector{}
	body := sse(
		`{"object":"","choices":[{"delta":{"content":"ignored object"}}]}`,
		contentChunk("a"),
		contentChunk("b"),
		"[DONE]",
	)

	runDecoder(t, body, col)

	if col.firstValid != 1 {
		t.Errorf("first-valid notifications = %d, want 1", col.firstValid)
	}
}

// ============================================================================
// REASONING
// ============================================================================

func TestStreamDecoderSeparatesThinkSpans(t *testing.T) {
	col := &streamCollector{}
	body := sse(
		contentChunk("<think>work it "),
		contentChunk("out</think>The answer"),
		"[DONE]",
	)

	runDecoder(t, body, col)

	if len(col.reasoning) != 1 || col.reasoning[0] != "work it out" {
		t.Errorf("reasoning = %q, want one emission per span", col.reasoning)
	}
	if len(col.completes) != 1 {
		t.Fatalf("completions = %d, want 1", len(col.completes))
	}
	res := col.completes[0]
	if res.Content != "The answer" {
		t.Errorf("content = %q", res.Content)
	}
	if res.Reasoning != "work it out" {
		t.Errorf("reasoning aggregate = %q", res.Reasoning)
	}
}

func TestStreamDecoderTagSplitAcrossChunks(t *testing.T) {
	col := &streamCollector{}
	body := sse(
		contentChunk("<thi"),
		contentChunk("nk>hidden</think>shown"),
		"[DONE]",
	)

	runDecoder(t, body, col)

	if strings.Join(col.chunks, "") != "shown" {
		t.Errorf("visible chunks = %q, want %q", col.chunks, "shown")
	}
	if len(col.completes) != 1 || col.completes[0].Reasoning != "hidden" {
		t.Errorf("completes = %+v", col.completes)
	}
}

// A delta carrying a close tag plus trailing text must fire the reasoning
// callback before the visible callback: callbacks follow decoded-byte order.
func TestStreamDecoderCallbackOrderAcrossCloseTag(t *testing.T) {
	var events []string
	cb := StreamCallbacks{
		OnChunk:          func(s string) { events = append(events, "visible:"+s) },
		OnReasoningChunk: func(s string) { events = append(events, "reasoning:"+s) },
	}

	body := sse(
		contentChunk("<think>first "),
		contentChunk("half</think>answer"),
		"[DONE]",
	)

	d := NewStreamDecoder("conv-1", cb)
	if err := d.Run(context.Background(), strings.NewReader(body)); err != nil {
		t.Fatalf("Run: %v", err)
	}

	want := []string{"reasoning:first half", "visible:answer"}
	if len(events) != len(want) {
		t.Fatalf("events = %q, want %q", events, want)
	}
	for i := range want {
		if events[i] != want[i] {
			t.Errorf("event %d = %q, want %q", i, events[i], want[i])
		}
	}
}

func TestStreamDecoderDedicatedReasoningField(t *testing.T) {
	col := &streamCollector{}
	body := sse(
		`{"object":"chat.completion.chunk","choices":[{"delta":{"reasoning":"step 1 "}}]}`,
		`{"object":"chat.completion.chunk","choices":[{"delta":{"reasoning_content":"step 2"}}]}`,
		contentChunk("done"),
		"[DONE]",
	)

	runDecoder(t, body, col)

	// dedicated fields forward immediately, one callback per chunk
	if len(col.reasoning) != 2 {
		t.Fatalf("reasoning emissions = %d, want 2", len(col.reasoning))
	}
	if col.completes[0].Reasoning != "step 1 step 2" {
		t.Errorf("reasoning aggregate = %q", col.completes[0].Reasoning)
	}
	if col.completes[0].Content != "done" {
		t.Errorf("content = %q", col.completes[0].Content)
	}
}

func TestStreamDecoderUnterminatedThinkDropped(t *testing.T) {
	col := &streamCollector{}
	body := sse(
		contentChunk("seen<think>never closed"),
		"[DONE]",
	)

	d := runDecoder(t, body, col)

	if len(col.completes) != 1 {
		t.Fatalf("completions = %d, want 1", len(col.completes))
	}
	res := col.completes[0]
	if res.Content != "seen" {
		t.Errorf("content = %q, want %q", res.Content, "seen")
	}
	if res.Reasoning != "" {
		t.Errorf("reasoning = %q, want unterminated span dropped", res.Reasoning)
	}
	if d.Phase() != PhaseFinished {
		t.Errorf("phase = %v", d.Phase())
	}
}

func TestStreamDecoderPhaseThinkOpen(t *testing.T) {
	col := &streamCollector{}
	body := sse(contentChunk("a<think>still going"))

	d := runDecoder(t, body, col)

	if d.Phase() != PhaseThinkOpen {
		t.Errorf("phase = %v, want think_open at truncation inside a span", d.Phase())
	}
}

// ============================================================================
// TOOL CALLS
// ============================================================================

func TestStreamDecoderReassemblesToolCalls(t *testing.T) {
	col := &streamCollector{}
	body := sse(
		`{"object":"chat.completion.chunk","choices":[{"delta":{"tool_calls":[{"index":0,"id":"call_1","type":"function","function":{"name":"lookup","arguments":"{\"q\":"}}]}}]}`,
		`{"object":"chat.completion.chunk","choices":[{"delta":{"tool_calls":[{"index":0,"function":{"arguments":"\"go\"}"}}]}}]}`,
		"[DONE]",
	)

	runDecoder(t, body, col)

	if len(col.toolCalls) != 2 {
		t.Fatalf("tool-call emissions = %d, want one per fragment chunk", len(col.toolCalls))
	}
	// every emission carries the whole list
	if !strings.Contains(col.toolCalls[0], "call_1") {
		t.Errorf("first emission = %q", col.toolCalls[0])
	}

	var final []ToolCall
	if err := json.Unmarshal([]byte(col.completes[0].ToolCalls), &final); err != nil {
		t.Fatalf("final tool calls not valid JSON: %v", err)
	}
	if len(final) != 1 {
		t.Fatalf("final calls = %d, want 1", len(final))
	}
	if final[0].Function.Arguments != `{"q":"go"}` {
		t.Errorf("arguments = %q, want reassembled %q", final[0].Function.Arguments, `{"q":"go"}`)
	}
}

func TestStreamDecoderToolCallsAfterContentStartFreshSlots(t *testing.T) {
	col := &streamCollector{}
	body := sse(
		`{"object":"chat.completion.chunk","choices":[{"delta":{"tool_calls":[{"index":0,"id":"call_a","function":{"name":"first","arguments":"{}"}}]}}]}`,
		contentChunk("interlude"),
		`{"object":"chat.completion.chunk","choices":[{"delta":{"tool_calls":[{"index":0,"id":"call_b","function":{"name":"second","arguments":"{}"}}]}}]}`,
		"[DONE]",
	)

	runDecoder(t, body, col)

	final := col.completes[0].ToolCalls
	if !strings.Contains(final, "call_a") || !strings.Contains(final, "call_b") {
		t.Fatalf("final tool calls = %q, want both bursts present", final)
	}
}

// ============================================================================
// CANCELLATION
// ============================================================================

func TestStreamDecoderCancelSuppressesCallbacks(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	var chunks []string
	completions := 0
	cb := StreamCallbacks{
		OnChunk: func(s string) {
			chunks = append(chunks, s)
			cancel() // user hits stop after the first fragment
		},
		OnComplete: func(Completion) { completions++ },
		OnError:    func(error) { t.Error("OnError fired for a cancelled request") },
	}

	body := sse(
		contentChunk("first"),
		contentChunk("second"),
		"[DONE]",
	)

	d := NewStreamDecoder("conv-1", cb)
	if err := d.Run(ctx, strings.NewReader(body)); err != nil {
		t.Fatalf("Run returned %v, want nil for cancellation", err)
	}

	if len(chunks) != 1 {
		t.Errorf("chunks after cancel = %q, want only the first", chunks)
	}
	if completions != 0 {
		t.Error("completion fired after cancellation")
	}
	if d.Phase() != PhaseAborted {
		t.Errorf("phase = %v, want aborted", d.Phase())
	}
}

func TestStreamDecoderPreCancelledEmitsNothing(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	col := &streamCollector{}
	d := NewStreamDecoder("conv-1", col.callbacks())
	if err := d.Run(ctx, strings.NewReader(sse(contentChunk("x"), "[DONE]"))); err != nil {
		t.Fatalf("Run: %v", err)
	}

	if len(col.chunks)+len(col.completes)+len(col.errs)+col.firstValid != 0 {
		t.Errorf("callbacks fired on a pre-cancelled request: %+v", col)
	}
	if d.Phase() != PhaseAborted {
		t.Errorf("phase = %v, want aborted", d.Phase())
	}
}

// ============================================================================
// STATE SINK
// ============================================================================

type fakeSink struct {
	keys    []string
	states  []ProcessingState
	cleared []string
}

func (f *fakeSink) UpdateProcessingState(convID string, state ProcessingState) {
	f.keys = append(f.keys, convID)
	f.states = append(f.states, state)
}

func (f *fakeSink) ClearProcessingState(convID string) {
	f.cleared = append(f.cleared, convID)
}

func TestStreamDecoderFeedsStateSink(t *testing.T) {
	sink := &fakeSink{}
	col := &streamCollector{}

	body := sse(
		`{"object":"chat.completion.chunk","choices":[{"delta":{}}],"prompt_progress":{"total":100,"processed":40,"cache":10}}`,
		`{"object":"chat.completion.chunk","choices":[{"delta":{"content":"x"}}],"timings":{"prompt_n":100,"prompt_ms":50,"predicted_n":5,"predicted_ms":100,"predicted_per_second":50,"cache_n":10}}`,
		"[DONE]",
	)

	d := NewStreamDecoder("conv-42", col.callbacks()).WithStateSink(sink)
	if err := d.Run(context.Background(), strings.NewReader(body)); err != nil {
		t.Fatalf("Run: %v", err)
	}

	if len(sink.states) != 2 {
		t.Fatalf("sink updates = %d, want 2", len(sink.states))
	}
	for _, key := range sink.keys {
		if key != "conv-42" {
			t.Errorf("sink keyed by %q, want conv-42", key)
		}
	}

	progress := sink.states[0]
	if progress.PromptN != 40 || progress.CacheN != 10 {
		t.Errorf("progress state = %+v", progress)
	}
	if progress.PromptProgress != 0.4 {
		t.Errorf("prompt progress = %v, want 0.4", progress.PromptProgress)
	}

	gen := sink.states[1]
	if gen.PredictedN != 5 || gen.PredictedPerSecond != 50 {
		t.Errorf("generation state = %+v", gen)
	}
	if gen.PromptProgress != 1 {
		t.Errorf("generation prompt progress = %v, want 1", gen.PromptProgress)
	}

	if len(sink.cleared) != 1 || sink.cleared[0] != "conv-42" {
		t.Errorf("cleared = %q, want one clear for conv-42", sink.cleared)
	}
}

// ============================================================================
// TIMINGS
// ============================================================================

func TestStreamDecoderNativeTimingsWin(t *testing.T) {
	col := &streamCollector{}
	body := sse(
		`{"object":"chat.completion.chunk","choices":[{"delta":{"content":"x"},"finish_reason":"stop"}],"usage":{"prompt_tokens":10,"completion_tokens":20,"total_tokens":30},"timings":{"prompt_n":10,"prompt_ms":111,"predicted_n":20,"predicted_ms":222}}`,
		"[DONE]",
	)

	runDecoder(t, body, col)

	timings := col.completes[0].Timings
	if timings == nil {
		t.Fatal("no timings on completion")
	}
	if timings.Estimated {
		t.Error("native timings marked estimated")
	}
	if timings.PromptMS != 111 || timings.PredictedMS != 222 {
		t.Errorf("timings = %+v, want server values passed through", timings)
	}
}

func TestStreamDecoderEstimatesFromUsage(t *testing.T) {
	col := &streamCollector{}
	body := sse(
		contentChunk("x"),
		`{"object":"chat.completion.chunk","choices":[{"delta":{},"finish_reason":"stop"}],"usage":{"prompt_tokens":7,"completion_tokens":13,"total_tokens":20}}`,
		"[DONE]",
	)

	runDecoder(t, body, col)

	timings := col.completes[0].Timings
	if timings == nil {
		t.Fatal("no timings derived from usage")
	}
	if !timings.Estimated {
		t.Error("derived timings not marked estimated")
	}
	if timings.PromptN != 7 || timings.PredictedN != 13 {
		t.Errorf("token counts = %d/%d, want 7/13", timings.PromptN, timings.PredictedN)
	}
	if timings.PromptMS < 0 || timings.PredictedMS < 0 {
		t.Errorf("negative phase times: %+v", timings)
	}
}

func TestStreamDecoderNoUsageNoTimings(t *testing.T) {
	col := &streamCollector{}
	body := sse(contentChunk("x"), "[DONE]")

	runDecoder(t, body, col)

	if col.completes[0].Timings != nil {
		t.Errorf("timings = %+v, want nil without usage or server timings", col.completes[0].Timings)
	}
}
