// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

/*
Package components provides reusable UI components for the rigchat TUI.

This package contains a collection of styled, interactive components built on
top of the Bubble Tea and Lip Gloss libraries. Each component is designed to
be visually consistent with the rigchat design language.

# Components

CompletionPopup (completion.go) - Tab completion strip for slash commands and @file mentions.
CommandPalette (palette.go) - Fuzzy-searchable command palette (Ctrl+P).
AttachmentBar (attachment_bar.go) - Pending file attachments shown above the input.
StatusBar (statusbar.go) - Bottom status line with connection state, model, and token stats.
ThinkingIndicator / ProgressIndicator (spinner.go, progress.go) - Streaming activity feedback.
CodeBlock (codeblock.go) - Syntax-highlighted code blocks using Chroma.
ErrorDisplay (error.go) - Error panel with title, detail, and recovery suggestions.
SmartErrorFromError (error_patterns.go) - Pattern-matches raw errors into actionable messages.

# Bubble Tea Integration

Stateful components follow the Bubble Tea conventions:

	palette := components.NewCommandPalette(registry, theme)
	palette, cmd := palette.Update(msg)
	view := palette.View()

# Error Handling

The error components turn raw transport errors into actionable display:

	display := components.SmartErrorFromError("Request failed", err)
	view := display.View()

Fuzzy matching for the palette and completion popup lives in fuzzy.go and is
shared by both. Shared formatting helpers (duration formatting, Unicode-safe
truncation) live in helpers.go.
*/
package components
