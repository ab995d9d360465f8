// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package model contains the data structures for conversations and messages.
//
// This package defines the core domain types used throughout the application
// for representing chat conversations, messages, attachments, and generation
// statistics.
//
// # Key Types
//
//   - Conversation: Container for a chat session with messages and metadata
//   - Message: Single message with role, content, reasoning, and tool calls
//   - Attachment: File included with a user message (image, audio, document)
//   - Stats: Timing statistics for one completed generation
//   - Role: Message role enumeration (user, assistant, system)
//
// # Usage
//
// Create a new conversation and send it to the API layer:
//
//	conv := model.NewConversation()
//	conv.AddUserMessage("Hello!")
//	messages := conv.ToWireMessages()
package model
