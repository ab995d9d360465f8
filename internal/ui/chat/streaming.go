// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package chat provides the chat view component for the TUI.
//
// This file implements the buffer between the streaming goroutine and the
// Bubble Tea render loop. Tokens are batched and drained at a capped frame
// rate so a fast stream cannot force a re-render per token.
package chat

import (
	"strings"
	"sync"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/jeranaias/rigchat/internal/api"
)

// Drain pacing. A flush happens when either threshold is met: enough
// tokens accumulated, or a frame interval passed since the last flush.
const (
	streamBatchSize = 15
	streamFrameRate = 30
	streamFrame     = time.Second / streamFrameRate
)

// =============================================================================
// STREAMING BUFFER
// =============================================================================

// StreamingBuffer accumulates stream output between renders. It carries two
// independent text channels, visible content and reasoning, because the
// stream decoder separates them and the transcript renders them differently.
//
// The stream callbacks write from their own goroutine while the Bubble Tea
// loop drains, so every method locks.
type StreamingBuffer struct {
	mu         sync.Mutex
	content    strings.Builder
	reasoning  strings.Builder
	tokenCount int
	lastFlush  time.Time

	// Terminal state, set once by the stream callbacks
	done      bool
	failed    bool
	result    api.Completion
	err       error
	modelName string

	batchSize  int
	flushEvery time.Duration
}

// NewStreamingBuffer creates a buffer with the default pacing.
func NewStreamingBuffer() *StreamingBuffer {
	return newStreamingBuffer(streamBatchSize, streamFrame)
}

func newStreamingBuffer(batchSize int, flushEvery time.Duration) *StreamingBuffer {
	return &StreamingBuffer{
		batchSize:  batchSize,
		flushEvery: flushEvery,
		lastFlush:  time.Now(),
	}
}

// Write adds a visible-content token. Called from the streaming goroutine.
func (sb *StreamingBuffer) Write(token string) {
	sb.mu.Lock()
	sb.content.WriteString(token)
	sb.tokenCount++
	sb.mu.Unlock()
}

// WriteReasoning adds a reasoning token. Called from the streaming goroutine.
func (sb *StreamingBuffer) WriteReasoning(token string) {
	sb.mu.Lock()
	sb.reasoning.WriteString(token)
	sb.tokenCount++
	sb.mu.Unlock()
}

// Flush drains the buffer when a pacing threshold is met. ok is false when
// nothing was drained. Both channels drain together so the transcript
// stays in sync. Called from the Bubble Tea loop.
func (sb *StreamingBuffer) Flush() (content, reasoning string, ok bool) {
	sb.mu.Lock()
	defer sb.mu.Unlock()

	if sb.tokenCount < sb.batchSize && time.Since(sb.lastFlush) < sb.flushEvery {
		return "", "", false
	}
	return sb.drainLocked()
}

// ForceFlush drains everything regardless of pacing. Use when the stream
// terminates so no tokens are lost.
func (sb *StreamingBuffer) ForceFlush() (content, reasoning string, ok bool) {
	sb.mu.Lock()
	defer sb.mu.Unlock()
	return sb.drainLocked()
}

func (sb *StreamingBuffer) drainLocked() (string, string, bool) {
	if sb.content.Len() == 0 && sb.reasoning.Len() == 0 {
		return "", "", false
	}

	content := sb.content.String()
	reasoning := sb.reasoning.String()
	sb.content.Reset()
	sb.reasoning.Reset()
	sb.tokenCount = 0
	sb.lastFlush = time.Now()
	return content, reasoning, true
}

// Reset clears buffered text and terminal state. Use before starting a new
// request so a reused buffer cannot report the previous stream's outcome.
func (sb *StreamingBuffer) Reset() {
	sb.mu.Lock()
	defer sb.mu.Unlock()

	sb.content.Reset()
	sb.reasoning.Reset()
	sb.tokenCount = 0
	sb.lastFlush = time.Now()
	sb.done = false
	sb.failed = false
	sb.result = api.Completion{}
	sb.err = nil
	sb.modelName = ""
}

// =============================================================================
// TERMINAL STATE
// =============================================================================

// Complete records clean stream termination. Called from OnComplete.
func (sb *StreamingBuffer) Complete(result api.Completion) {
	sb.mu.Lock()
	sb.done = true
	sb.result = result
	sb.mu.Unlock()
}

// Fail records stream failure. Called from OnError.
func (sb *StreamingBuffer) Fail(err error) {
	sb.mu.Lock()
	sb.done = true
	sb.failed = true
	sb.err = err
	sb.mu.Unlock()
}

// Terminal reports whether the stream has ended and with what outcome.
// err is nil when the stream completed cleanly.
func (sb *StreamingBuffer) Terminal() (done bool, result api.Completion, err error) {
	sb.mu.Lock()
	defer sb.mu.Unlock()

	switch {
	case !sb.done:
		return false, api.Completion{}, nil
	case sb.failed:
		return true, api.Completion{}, sb.err
	default:
		return true, sb.result, nil
	}
}

// SetModelName records the model name the server reported for this stream.
func (sb *StreamingBuffer) SetModelName(name string) {
	sb.mu.Lock()
	sb.modelName = name
	sb.mu.Unlock()
}

// ModelName returns the server-reported model name, if any arrived yet.
func (sb *StreamingBuffer) ModelName() string {
	sb.mu.Lock()
	defer sb.mu.Unlock()
	return sb.modelName
}

// =============================================================================
// STREAMING TICK COMMAND
// =============================================================================

// streamTickCmd drives the drain loop while a response streams.
func streamTickCmd() tea.Cmd {
	return tea.Tick(streamFrame, func(t time.Time) tea.Msg {
		return StreamTickMsg{Time: t}
	})
}
