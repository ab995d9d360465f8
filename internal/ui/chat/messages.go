// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package chat provides the chat view component for the TUI.
//
// This file defines the Bubble Tea message types used by the chat
// interface. Conversation and command messages (load, save, export, errors)
// live in internal/commands; the types here cover what the chat view itself
// produces: stream lifecycle, model listing, and clipboard results.
package chat

import (
	"time"

	"github.com/jeranaias/rigchat/internal/api"
)

// =============================================================================
// STREAMING MESSAGES
// =============================================================================

// StreamTickMsg drives the drain loop while a response streams.
type StreamTickMsg struct {
	Time time.Time
}

// StreamStartedMsg signals that a request was dispatched for the given
// conversation.
type StreamStartedMsg struct {
	ConversationID string
}

// streamRunDoneMsg reports that the blocking stream closure returned. The
// outcome is read from the buffer's terminal state, not from this message;
// it exists so the final drain happens even when the last tick already
// fired.
type streamRunDoneMsg struct{}

// serverStatusMsg carries the result of the startup health probe.
type serverStatusMsg struct {
	Err error
}

// =============================================================================
// MODEL MESSAGES
// =============================================================================

// ModelsListedMsg delivers the server's model list for the picker overlay.
type ModelsListedMsg struct {
	Models []api.ModelInfo
	Error  error
}

// modelVerifiedMsg confirms a model switch requested by name.
type modelVerifiedMsg struct {
	Model string
	Err   error
}

// =============================================================================
// CLIPBOARD MESSAGES
// =============================================================================

// copyDoneMsg reports the outcome of a clipboard copy.
type copyDoneMsg struct {
	What string
	Err  error
}
