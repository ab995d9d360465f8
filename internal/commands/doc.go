// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package commands provides the slash command system for the TUI.
//
// This package handles parsing and executing slash commands in the chat
// interface, providing autocomplete and command registration.
//
// # Key Types
//
//   - Registry: Command registry with all available commands
//   - ParseResult: Parsed command with name and arguments
//   - Completer: Tab completion for commands and arguments
//
// # Built-in Commands
//
//   - /help: Show available commands
//   - /model: Switch models
//   - /new, /open, /list: Manage conversations
//   - /search: Search saved conversations
//   - /export: Export conversation
//   - /retry, /cancel: Control the active request
//
// # Usage
//
// Parse and execute a command:
//
//	result := parser.Parse(input)
//	if result.IsCommand {
//	    return registry.Execute(ctx, result)
//	}
//
// Get completions:
//
//	completions := completer.Complete("/mo", 3)
//	// Returns /model and /models
package commands
