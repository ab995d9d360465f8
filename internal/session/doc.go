// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package session owns the active conversation and bridges the TUI to
// storage and the API client.
//
// The Manager tracks which conversation is live, whether it has unsaved
// changes, and autosaves dirty conversations on a periodic tick. Sends and
// retries go through it so the user/assistant message pair is appended
// atomically, and a second send against a conversation whose response is
// still streaming is refused with ErrStreamActive.
//
// # Key Types
//
//   - Manager: active-conversation owner and send orchestrator
//   - TickMsg/AutoSavedMsg: Bubble Tea messages for the autosave loop
//
// # Usage
//
// Create a manager and send a message:
//
//	sess := session.NewManager(client, requests, store, session.ConfigFromSettings(cfg))
//	msg, err := sess.BeginSend("hello")
//	run, err := sess.StreamFunc(callbacks)
//	// run() blocks; wrap it in a tea.Cmd or goroutine
//
// # Bubble Tea Integration
//
// TickCmd/HandleTick drive autosave from the update loop: a due save is
// scheduled as a command and reported back as AutoSavedMsg.
package session
