// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package chat implements the main chat view of the TUI.
//
// The package is organized by concern:
//   - model.go: the Bubble Tea model, construction, and layout
//   - update.go: message handling and stream orchestration
//   - view.go: transcript, input, and overlay rendering
//   - streaming.go: token batching between the stream goroutine and the
//     render loop
//   - keys.go: key bindings
//
// Streaming architecture: the API client delivers tokens on its own
// goroutine through callbacks that write into a StreamingBuffer. A 30fps
// tick drains the buffer on the Bubble Tea loop and appends the batch to
// the active conversation, so rendering never races the network.
package chat
