// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package index provides a SQLite search index over saved conversations.
//
// The conversation store persists each conversation as one JSON file; this
// package mirrors those files into a SQLite database with an FTS5 table so
// message search stays fast as history grows. Indexed text and queries both
// pass through the same case/diacritic folding, so "Café" matches "cafe".
//
// # Key Types
//
//   - MessageIndex: the indexer with its SQLite backend
//   - SearchResult: a matching message with its conversation and snippet
//   - FileWatcher: file system watcher for incremental updates
//
// # Usage
//
// Open an index over the conversations directory and build it:
//
//	idx, err := index.NewMessageIndex(index.DefaultConfig(dir))
//	err = idx.Rebuild(ctx)
//
// Search messages:
//
//	results, err := idx.Search("rate limiter", nil)
//	for _, r := range results {
//	    fmt.Printf("%s %s: %s\n", r.ConversationID, r.Role, r.Snippet)
//	}
//
// Refresh reindexes only conversations whose files changed, which is how
// one-shot CLI invocations catch up without a full rebuild. Long-running
// sessions instead rely on the file watcher (fsnotify, with a polling
// fallback) that Rebuild and Refresh start when enabled.
//
// Only message content is indexed. Reasoning text is display-only and
// excluded to keep results focused on what was actually said.
package index
