// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package api

import "encoding/json"

// ============================================================================
// TOOL CALL TYPES
// ============================================================================

// ToolCall is a completed structured function invocation.
type ToolCall struct {
	ID       string           `json:"id,omitempty"`
	Type     string           `json:"type,omitempty"`
	Function ToolCallFunction `json:"function"`
}

// ToolCallFunction holds the call target and its argument JSON, which
// arrives as string fragments during streaming.
type ToolCallFunction struct {
	Name      string `json:"name,omitempty"`
	Arguments string `json:"arguments"`
}

// ToolCallDelta is one incremental tool-call fragment from a stream chunk
// or a complete call from a non-streaming body.
type ToolCallDelta struct {
	// Index slots the fragment within the current burst; nil means 0.
	Index    *int             `json:"index"`
	ID       string           `json:"id"`
	Type     string           `json:"type"`
	Function ToolCallFunction `json:"function"`
}

func (d ToolCallDelta) index() int {
	if d.Index == nil {
		return 0
	}
	return *d.Index
}

// ============================================================================
// ACCUMULATOR
// ============================================================================

// ToolCallAccumulator merges incremental tool-call fragments into a growing
// list. Fragments are keyed by their chunk index plus a running batch
// offset: when visible content resumes after a burst of tool calls, the
// offset advances past the accumulated list, so a later burst reusing
// index 0 lands on new slots instead of corrupting earlier calls.
//
// Argument fragments are appended in arrival order, never reordered or
// replaced. A call is complete only when the stream ends.
type ToolCallAccumulator struct {
	calls       []ToolCall
	batchOffset int
	inBurst     bool
}

// NewToolCallAccumulator returns an empty accumulator.
func NewToolCallAccumulator() *ToolCallAccumulator {
	return &ToolCallAccumulator{}
}

// Add merges one fragment.
func (a *ToolCallAccumulator) Add(delta ToolCallDelta) {
	a.inBurst = true

	slot := a.batchOffset + delta.index()
	if slot < 0 {
		slot = a.batchOffset
	}
	for len(a.calls) <= slot {
		a.calls = append(a.calls, ToolCall{})
	}

	call := &a.calls[slot]
	if delta.ID != "" {
		call.ID = delta.ID
	}
	if delta.Type != "" {
		call.Type = delta.Type
	}
	if delta.Function.Name != "" {
		call.Function.Name = delta.Function.Name
	}
	call.Function.Arguments += delta.Function.Arguments
}

// NoteContent records that visible content resumed. The next burst of
// fragments starts on fresh slots.
func (a *ToolCallAccumulator) NoteContent() {
	if a.inBurst {
		a.batchOffset = len(a.calls)
		a.inBurst = false
	}
}

// Empty reports whether no fragments were accumulated.
func (a *ToolCallAccumulator) Empty() bool {
	return len(a.calls) == 0
}

// Calls returns the accumulated list in slot order.
func (a *ToolCallAccumulator) Calls() []ToolCall {
	return a.calls
}

// Serialize renders the accumulated list as a JSON array.
func (a *ToolCallAccumulator) Serialize() (string, error) {
	if len(a.calls) == 0 {
		return "", nil
	}
	data, err := json.Marshal(a.calls)
	if err != nil {
		return "", err
	}
	return string(data), nil
}
