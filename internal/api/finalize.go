// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package api

import (
	"context"
	"encoding/json"
	"strings"
	"time"
)

// promptShareDivisor splits wall time when no first-token anchor exists:
// prompt processing gets a tenth and generation gets the rest.
const promptShareDivisor = 10

// ============================================================================
// TIMING RESOLUTION
// ============================================================================

// resolveTimings picks the best available timing source. Native server
// timings always win; otherwise usage counts are combined with wall-clock
// measurements into an estimate; with neither, there are no timings.
func (d *StreamDecoder) resolveTimings(end time.Time) *TimingSnapshot {
	if d.lastTimings != nil {
		return d.lastTimings
	}
	return estimateTimings(d.usage, d.startedAt, d.firstTokenAt, end)
}

// estimateTimings derives a timing snapshot from usage token counts and
// wall-clock anchors. When the first-token instant is known, it divides the
// run at that point; otherwise prompt processing is assigned a fixed share
// so the two phases always sum to the total elapsed time.
func estimateTimings(usage *Usage, start, firstToken, end time.Time) *TimingSnapshot {
	if usage == nil || start.IsZero() || end.Before(start) {
		return nil
	}

	var promptMS, predictedMS float64
	if !firstToken.IsZero() && firstToken.After(start) && end.After(firstToken) {
		promptMS = float64(firstToken.Sub(start)) / float64(time.Millisecond)
		predictedMS = float64(end.Sub(firstToken)) / float64(time.Millisecond)
	} else {
		// No anchor: split whole milliseconds so the two phases sum
		// exactly to the measured total.
		total := end.Sub(start).Milliseconds()
		prompt := total / promptShareDivisor
		promptMS = float64(prompt)
		predictedMS = float64(total - prompt)
	}

	snapshot := &TimingSnapshot{
		PromptN:     usage.PromptTokens,
		PromptMS:    promptMS,
		PredictedN:  usage.CompletionTokens,
		PredictedMS: predictedMS,
		Estimated:   true,
	}
	if promptMS > 0 {
		snapshot.PromptPerSecond = float64(usage.PromptTokens) / (promptMS / 1000)
	}
	if predictedMS > 0 {
		snapshot.PredictedPerSecond = float64(usage.CompletionTokens) / (predictedMS / 1000)
	}
	return snapshot
}

// ============================================================================
// NON-STREAMING FINALIZER
// ============================================================================

// FinalizeResponse parses a complete (non-streamed) chat completion body
// and drives the same callbacks a stream would, in a single pass. It
// returns an error for bodies that carry no usable response; the caller
// decides how to surface it.
func FinalizeResponse(ctx context.Context, body []byte, disableReasoningFormat bool, startedAt time.Time, cb StreamCallbacks) error {
	emit := func(fn func()) {
		if ctx != nil && ctx.Err() != nil {
			return
		}
		fn()
	}

	if len(strings.TrimSpace(string(body))) == 0 {
		return newEmptyResponseError()
	}

	var resp chatResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return newParseError("failed to parse response", err)
	}

	var msg *responseMessage
	if len(resp.Choices) > 0 {
		msg = &resp.Choices[0].Message
	}

	content := ""
	reasoning := ""
	toolCalls := ""
	if msg != nil {
		content = msg.Content
		reasoning = msg.reasoningText()
		if len(msg.ToolCalls) > 0 {
			acc := NewToolCallAccumulator()
			for _, tc := range msg.ToolCalls {
				acc.Add(tc)
			}
			if serialized, err := acc.Serialize(); err == nil {
				toolCalls = serialized
			}
		}
	}

	// Emptiness is judged on the raw message: a body whose content is all
	// <think> spans still carried textual content.
	if strings.TrimSpace(content) == "" && toolCalls == "" {
		return newEmptyResponseError()
	}

	// Reasoning embedded in <think> tags is split out when no dedicated
	// field supplied it.
	if reasoning == "" && !disableReasoningFormat {
		content, reasoning = extractThinkSpans(content)
	}

	// Model name fallback order mirrors streaming: top level, then the
	// message itself.
	modelName := resp.Model
	if modelName == "" && msg != nil {
		modelName = msg.Model
	}
	if modelName != "" && cb.OnModel != nil {
		emit(func() { cb.OnModel(modelName) })
	}
	if cb.OnFirstValidChunk != nil {
		emit(func() { cb.OnFirstValidChunk() })
	}
	if reasoning != "" && cb.OnReasoningChunk != nil {
		rea := reasoning
		emit(func() { cb.OnReasoningChunk(rea) })
	}
	if content != "" && cb.OnChunk != nil {
		vis := content
		emit(func() { cb.OnChunk(vis) })
	}
	if toolCalls != "" && cb.OnToolCallChunk != nil {
		calls := toolCalls
		emit(func() { cb.OnToolCallChunk(calls) })
	}

	timings := resp.Timings
	if timings == nil {
		timings = estimateTimings(resp.Usage, startedAt, time.Time{}, time.Now())
	}

	if cb.OnComplete != nil {
		result := Completion{
			Content:   content,
			Reasoning: reasoning,
			Timings:   timings,
			ToolCalls: toolCalls,
		}
		emit(func() { cb.OnComplete(result) })
	}
	return nil
}
