// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package api implements the streaming chat-completion client for
// OpenAI-compatible servers, including a local llama.cpp instance.
//
// The package has three cooperating pieces:
//
//   - Request building: assembles the outbound JSON body from messages and
//     RequestOptions, inserts the configured system message, merges custom
//     JSON, and filters the body down to standard fields for external APIs.
//   - Stream decoding: consumes the server-sent-event response line by
//     line, separates <think> reasoning from visible text even when tags
//     straddle chunk boundaries, reassembles incremental tool-call
//     fragments, and feeds live timing data to an optional StateSink.
//   - Finalization: produces the aggregate Completion with timing
//     statistics, estimating them from token usage and wall-clock time
//     when the server supplies none.
//
// Requests are cancelled per conversation through a RequestManager, which
// guarantees at most one outstanding request per conversation key. A
// cancelled request suppresses every callback including completion.
//
// # Usage
//
//	client := api.NewClient(cfg).WithLogger(logger)
//	mgr := api.NewRequestManager()
//
//	ctx, finish := mgr.Begin(context.Background(), conv.ID)
//	defer finish()
//	err := client.SendChatCompletion(ctx, conv.ID, messages, opts, api.StreamCallbacks{
//	    OnChunk:    func(text string) { ... },
//	    OnComplete: func(res api.Completion) { ... },
//	    OnError:    func(err error) { ... },
//	})
package api
