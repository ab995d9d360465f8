// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// search.go - Full-text search across saved conversations.
//
// "rigchat search" runs the query against the SQLite FTS index, refreshing
// it first so recent conversations are found.
//
// Examples:
//   rigchat search "context window"
//   rigchat search gc tuning -n 5
//   rigchat search --json "panic recover" | jq '.[].conversation_id'
package cli

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/jeranaias/rigchat/internal/index"
	"github.com/jeranaias/rigchat/internal/storage"
)

// searchHit is the --json output shape for one result.
type searchHit struct {
	ConversationID string    `json:"conversation_id"`
	Title          string    `json:"title"`
	Role           string    `json:"role"`
	Snippet        string    `json:"snippet"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// HandleSearchCommand searches indexed messages and prints matches.
func HandleSearchCommand(args Args) error {
	query := strings.TrimSpace(args.Query)
	if query == "" {
		return ErrMissingArgument("query", `rigchat search "gc tuning"`)
	}

	store, err := storage.NewConversationStore()
	if err != nil {
		return WrapError(err, "failed to open conversation storage")
	}

	idxCfg := index.DefaultConfig(store.BaseDir)
	idxCfg.EnableWatch = false
	idx, err := index.NewMessageIndex(idxCfg)
	if err != nil {
		return WrapError(err, "failed to open search index")
	}
	defer idx.Close()

	// Pick up conversations saved since the last index pass
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := idx.Refresh(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "%s Index refresh failed: %v\n", WarningStyle.Render("[!]"), err)
	}

	options := index.DefaultSearchOptions()
	options.MaxResults = args.Limit

	started := time.Now()
	results, err := idx.Search(query, options)
	if err != nil {
		return WrapError(err, "search failed")
	}

	if args.JSON {
		hits := make([]searchHit, 0, len(results))
		for _, r := range results {
			hits = append(hits, searchHit{
				ConversationID: r.ConversationID,
				Title:          r.Title,
				Role:           r.Role,
				Snippet:        r.Snippet,
				UpdatedAt:      r.UpdatedAt,
			})
		}
		return outputJSON(hits)
	}

	if len(results) == 0 {
		fmt.Printf("No matches for %s\n", ValueStyle.Render(fmt.Sprintf("%q", query)))
		return nil
	}

	if !args.Quiet {
		fmt.Fprintf(os.Stderr, "%s %d matches in %s\n\n",
			InfoStyle.Render("[+]"), len(results), formatDurationShort(time.Since(started)))
	}

	for _, r := range results {
		title := r.Title
		if title == "" {
			title = "(untitled)"
		}
		fmt.Printf("%s  %s %s\n",
			HighlightStyle.Render(r.ConversationID),
			ValueStyle.Render(title),
			DimStyle.Render(fmt.Sprintf("[%s, %s]", r.Role, r.UpdatedAt.Format("2006-01-02"))))
		if r.Snippet != "" {
			fmt.Printf("    %s\n", DimStyle.Render(r.Snippet))
		}
	}

	if !args.Quiet {
		fmt.Println()
		fmt.Println(DimStyle.Render("Export a conversation with: rigchat export <id>"))
	}
	return nil
}
