// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package commands provides the slash command system for the TUI.
package commands

import (
	"context"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/jeranaias/rigchat/internal/index"
)

// =============================================================================
// /SEARCH COMMAND
// =============================================================================

// SearchResultsMsg contains full-text search results.
type SearchResultsMsg struct {
	Query    string
	Results  []index.SearchResult
	Duration time.Duration
	Error    error
}

// HandleSearch searches message content across all saved conversations.
// A missing index is built on first use; an existing one is refreshed so
// conversations saved moments ago are searchable.
func HandleSearch(ctx *Context, args []string) tea.Cmd {
	if len(args) == 0 {
		return func() tea.Msg {
			return ErrorMsg{
				Title:   "Missing argument",
				Message: "/search requires a query",
				Tip:     "Usage: /search <query>",
			}
		}
	}

	query := strings.Join(args, " ")

	if ctx == nil || ctx.Index == nil {
		return func() tea.Msg {
			return ErrorMsg{
				Title:   "Search unavailable",
				Message: "The search index is disabled",
				Tip:     "Enable storage.index_enabled in config",
			}
		}
	}

	idx := ctx.Index
	return func() tea.Msg {
		start := time.Now()

		syncCtx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
		defer cancel()

		var err error
		if idx.IsIndexed() {
			err = idx.Refresh(syncCtx)
		} else {
			err = idx.Rebuild(syncCtx)
		}
		if err != nil {
			return SearchResultsMsg{Query: query, Error: err}
		}

		results, err := idx.Search(query, index.DefaultSearchOptions())
		if err != nil {
			return SearchResultsMsg{Query: query, Error: err}
		}

		return SearchResultsMsg{
			Query:    query,
			Results:  results,
			Duration: time.Since(start),
		}
	}
}
