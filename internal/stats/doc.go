// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package stats tracks usage statistics for rigchat.
//
// The Registry serves two consumers. During a streaming request it holds
// the live per-conversation processing state (prompt progress, generation
// rate) that the UI polls for its status line; the api package pushes
// updates through the StateSink interface. Across requests it accumulates
// session totals: token counts, request counts, and generation rates,
// broken down by model.
package stats
