// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package storage persists conversations to disk as one JSON file each.
//
// This package handles saving and loading conversations, with support for
// listing, substring search, and Markdown/JSON export.
//
// # Key Types
//
//   - ConversationStore: filesystem-backed store for model.Conversation
//   - model.ConversationMeta: lightweight metadata for listing
//
// # Usage
//
// Create a store and save a conversation:
//
//	store, err := storage.NewConversationStore()
//	id, err := store.Save(conv)
//
// List and load conversations:
//
//	metas, err := store.List()
//	conv, err := store.Load(metas[0].ID)
//
// Search conversations:
//
//	results, err := store.Search("query text")
//
// SearchMessages scans full message bodies; the index package offers the
// indexed fast path over the same files.
//
// # Storage Location
//
// Conversations are stored in ~/.rigchat/conversations/ as JSON files.
// Writes are atomic (temp file + rename) so a crash mid-save never leaves
// a truncated conversation on disk.
package storage
