// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package api

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"io"
	"strings"
	"time"

	"github.com/charmbracelet/log"
)

// maxStreamLineBytes bounds a single SSE line.
// SECURITY: Line size limit prevents memory exhaustion from a hostile server.
const maxStreamLineBytes = 10 * 1024 * 1024

// dataPrefix starts every SSE payload line; doneMarker ends the stream.
const (
	dataPrefix = "data: "
	doneMarker = "[DONE]"
)

// ============================================================================
// PHASES
// ============================================================================

// Phase is the decoder's lifecycle state.
type Phase int

const (
	// PhaseActive: reading and emitting normally.
	PhaseActive Phase = iota
	// PhaseThinkOpen: inside a <think> span straddling chunk boundaries.
	PhaseThinkOpen
	// PhaseFinished: saw the [DONE] marker; aggregates are final.
	PhaseFinished
	// PhaseAborted: cancellation observed; no further callbacks fire.
	PhaseAborted
)

func (p Phase) String() string {
	switch p {
	case PhaseActive:
		return "active"
	case PhaseThinkOpen:
		return "think_open"
	case PhaseFinished:
		return "finished"
	case PhaseAborted:
		return "aborted"
	default:
		return "unknown"
	}
}

// ============================================================================
// DECODER
// ============================================================================

// StreamDecoder consumes one SSE response and drives the callbacks. All
// state belongs to a single request; decoders are never reused.
type StreamDecoder struct {
	convID  string
	cb      StreamCallbacks
	sink    StateSink
	logger  *log.Logger
	scanner *ThinkScanner
	acc     *ToolCallAccumulator

	phase         Phase
	ctx           context.Context
	content       strings.Builder
	reasoning     strings.Builder
	modelReported bool
	sawFirstChunk bool
	usage         *Usage
	lastTimings   *TimingSnapshot
	startedAt     time.Time
	firstTokenAt  time.Time
}

// NewStreamDecoder creates a decoder for one request keyed by conversation
// id. The id routes live processing updates when a sink is attached.
func NewStreamDecoder(convID string, cb StreamCallbacks) *StreamDecoder {
	return &StreamDecoder{
		convID:  convID,
		cb:      cb,
		scanner: NewThinkScanner(false),
		acc:     NewToolCallAccumulator(),
		phase:   PhaseActive,
	}
}

// WithStateSink attaches the live processing-state side channel.
func (d *StreamDecoder) WithStateSink(sink StateSink) *StreamDecoder {
	d.sink = sink
	return d
}

// WithLogger attaches a logger for skipped-line diagnostics.
func (d *StreamDecoder) WithLogger(logger *log.Logger) *StreamDecoder {
	d.logger = logger
	return d
}

// WithReasoningFormatDisabled bypasses the <think> scanner so tagged text
// stays visible verbatim.
func (d *StreamDecoder) WithReasoningFormatDisabled(disabled bool) *StreamDecoder {
	d.scanner = NewThinkScanner(disabled)
	return d
}

// Phase returns the current lifecycle state.
func (d *StreamDecoder) Phase() Phase {
	return d.phase
}

// Content returns the visible aggregate decoded so far.
func (d *StreamDecoder) Content() string {
	return d.content.String()
}

// Reasoning returns the reasoning aggregate decoded so far.
func (d *StreamDecoder) Reasoning() string {
	return d.reasoning.String()
}

// ============================================================================
// MAIN LOOP
// ============================================================================

// Run reads the stream until [DONE], end of stream, or cancellation.
//
// Clean [DONE] termination finalizes and fires OnComplete. End of stream
// without [DONE] is a truncated stream: Run returns nil with no completion
// callback. Cancellation stops decoding immediately and suppresses every
// callback; it is not an error.
func (d *StreamDecoder) Run(ctx context.Context, r io.Reader) error {
	d.ctx = ctx
	d.startedAt = time.Now()
	defer d.clearSink()

	lines := bufio.NewScanner(r)
	lines.Buffer(make([]byte, 0, 64*1024), maxStreamLineBytes)

	for {
		// Cancellation is polled before each read and before each line.
		if err := ctx.Err(); err != nil {
			return d.abort(err)
		}
		if !lines.Scan() {
			break
		}
		if err := ctx.Err(); err != nil {
			return d.abort(err)
		}

		if d.processLine(lines.Text()) {
			d.finishStream()
			return nil
		}
	}

	if err := ctx.Err(); err != nil {
		return d.abort(err)
	}
	if err := lines.Err(); err != nil {
		return classifyTransportError(err)
	}

	// End of stream without [DONE]: silent non-completion.
	if d.logger != nil {
		d.logger.Debug("stream ended without done marker", "conversation", d.convID)
	}
	return nil
}

// processLine handles one line and reports whether the stream is done.
func (d *StreamDecoder) processLine(line string) (done bool) {
	line = strings.TrimSuffix(line, "\r")
	if !strings.HasPrefix(line, dataPrefix) {
		// Blank keep-alives, comments, and event fields carry no payload.
		return false
	}

	data := strings.TrimPrefix(line, dataPrefix)
	if data == doneMarker {
		d.phase = PhaseFinished
		return true
	}

	var chunk streamChunk
	if err := json.Unmarshal([]byte(data), &chunk); err != nil {
		// A malformed line never aborts the stream.
		if d.logger != nil {
			d.logger.Debug("skipping malformed stream line", "error", err)
		}
		return false
	}

	d.handleChunk(&chunk)
	return false
}

// handleChunk applies one parsed chunk to the decoder state.
func (d *StreamDecoder) handleChunk(chunk *streamChunk) {
	if !d.sawFirstChunk && chunk.isCompletionChunk() {
		d.sawFirstChunk = true
		if d.cb.OnFirstValidChunk != nil {
			d.emit(func() { d.cb.OnFirstValidChunk() })
		}
	}

	var delta *streamDelta
	var message *responseMessage
	var finishReason string
	if len(chunk.Choices) > 0 {
		delta = &chunk.Choices[0].Delta
		message = chunk.Choices[0].Message
		finishReason = chunk.Choices[0].FinishReason
	}

	// Model name fallback order: top level, then delta, then message.
	model := chunk.Model
	if model == "" && delta != nil {
		model = delta.Model
	}
	if model == "" && message != nil {
		model = message.Model
	}
	d.reportModel(model)

	if delta != nil {
		d.applyDelta(delta)
	}

	if finishReason != "" && chunk.Usage != nil {
		usage := *chunk.Usage
		d.usage = &usage
	}

	if chunk.Timings != nil {
		timings := *chunk.Timings
		d.lastTimings = &timings
		d.pushTimings(&timings)
	}
	if chunk.Prompt != nil {
		d.pushProgress(chunk.Prompt)
	}

	if d.phase != PhaseFinished && d.phase != PhaseAborted {
		if d.scanner.Inside() {
			d.phase = PhaseThinkOpen
		} else {
			d.phase = PhaseActive
		}
	}
}

// applyDelta routes one delta's reasoning, tool calls, and content.
func (d *StreamDecoder) applyDelta(delta *streamDelta) {
	// A dedicated reasoning field bypasses the tag scanner and forwards
	// immediately.
	if rea := delta.reasoningText(); rea != "" {
		d.noteFirstToken()
		d.reasoning.WriteString(rea)
		if d.cb.OnReasoningChunk != nil {
			d.emit(func() { d.cb.OnReasoningChunk(rea) })
		}
	}

	if len(delta.ToolCalls) > 0 {
		d.noteFirstToken()
		for _, tc := range delta.ToolCalls {
			d.acc.Add(tc)
		}
		if d.cb.OnToolCallChunk != nil {
			if serialized, err := d.acc.Serialize(); err == nil {
				d.emit(func() { d.cb.OnToolCallChunk(serialized) })
			}
		}
	}

	if delta.Content != "" {
		d.noteFirstToken()
		d.acc.NoteContent()

		// Segments arrive in decoded-byte order: reasoning released by a
		// close tag fires before visible text that followed the tag.
		for _, seg := range d.scanner.Feed(delta.Content) {
			text := seg.Text
			if seg.Reasoning {
				d.reasoning.WriteString(text)
				if d.cb.OnReasoningChunk != nil {
					d.emit(func() { d.cb.OnReasoningChunk(text) })
				}
			} else {
				d.content.WriteString(text)
				if d.cb.OnChunk != nil {
					d.emit(func() { d.cb.OnChunk(text) })
				}
			}
		}
	}
}

// finishStream completes a [DONE]-terminated stream.
func (d *StreamDecoder) finishStream() {
	if tail := d.scanner.Flush(); tail != "" {
		d.content.WriteString(tail)
		if d.cb.OnChunk != nil {
			d.emit(func() { d.cb.OnChunk(tail) })
		}
	}

	result := Completion{
		Content:   d.content.String(),
		Reasoning: d.reasoning.String(),
		Timings:   d.resolveTimings(time.Now()),
	}
	if !d.acc.Empty() {
		if serialized, err := d.acc.Serialize(); err == nil {
			result.ToolCalls = serialized
		}
	}

	if d.cb.OnComplete != nil {
		d.emit(func() { d.cb.OnComplete(result) })
	}
}

// ============================================================================
// HELPERS
// ============================================================================

// abort records a terminated context. User cancellation is silent; a
// deadline is a real failure the caller must see.
func (d *StreamDecoder) abort(err error) error {
	d.phase = PhaseAborted
	if errors.Is(err, context.DeadlineExceeded) {
		return classifyTransportError(err)
	}
	return nil
}

// emit invokes a callback unless the request was cancelled. Cancellation
// suppresses every callback, completion included.
func (d *StreamDecoder) emit(fn func()) {
	if d.ctx != nil && d.ctx.Err() != nil {
		d.phase = PhaseAborted
		return
	}
	fn()
}

// reportModel fires OnModel exactly once.
func (d *StreamDecoder) reportModel(name string) {
	if name == "" || d.modelReported {
		return
	}
	d.modelReported = true
	if d.cb.OnModel != nil {
		d.emit(func() { d.cb.OnModel(name) })
	}
}

// noteFirstToken pins the generation start for timing estimation.
func (d *StreamDecoder) noteFirstToken() {
	if d.firstTokenAt.IsZero() {
		d.firstTokenAt = time.Now()
	}
}

func (d *StreamDecoder) pushTimings(t *TimingSnapshot) {
	if d.sink == nil || (d.ctx != nil && d.ctx.Err() != nil) {
		return
	}
	d.sink.UpdateProcessingState(d.convID, ProcessingState{
		PromptN:            t.PromptN,
		PredictedN:         t.PredictedN,
		PredictedPerSecond: t.PredictedPerSecond,
		CacheN:             t.CacheN,
		PromptProgress:     1,
		UpdatedAt:          time.Now(),
	})
}

func (d *StreamDecoder) pushProgress(p *PromptProgress) {
	if d.sink == nil || (d.ctx != nil && d.ctx.Err() != nil) {
		return
	}
	d.sink.UpdateProcessingState(d.convID, ProcessingState{
		PromptN:        p.Processed,
		CacheN:         p.Cache,
		PromptProgress: p.Fraction(),
		UpdatedAt:      time.Now(),
	})
}

func (d *StreamDecoder) clearSink() {
	if d.sink != nil {
		d.sink.ClearProcessingState(d.convID)
	}
}
