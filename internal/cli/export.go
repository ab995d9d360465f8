// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// export.go - Conversation export command.
//
// "rigchat export <id>" writes a saved conversation as markdown or JSON,
// to stdout by default or to a file with --output. With no id the stored
// conversations are listed instead.
//
// Examples:
//   rigchat export                       List stored conversations
//   rigchat export a1b2c3                Markdown to stdout
//   rigchat export a1b2c3 --format json -o backup.json
package cli

import (
	"fmt"
	"os"

	"github.com/jeranaias/rigchat/internal/storage"
)

// HandleExportCommand exports one conversation, or lists them when no id
// was given.
func HandleExportCommand(args Args) error {
	store, err := storage.NewConversationStore()
	if err != nil {
		return WrapError(err, "failed to open conversation storage")
	}

	if args.Query == "" {
		metas, err := store.List()
		if err != nil {
			return WrapError(err, "failed to list conversations")
		}
		if len(metas) == 0 {
			fmt.Println(DimStyle.Render("No stored conversations."))
			return nil
		}
		fmt.Print(storage.FormatConversationList(metas))
		fmt.Println()
		fmt.Println(DimStyle.Render("Export one with: rigchat export <id>"))
		return nil
	}

	conv, err := store.Load(args.Query)
	if err != nil {
		return ErrNotFound("conversation", args.Query)
	}

	var data []byte
	switch args.Format {
	case "markdown", "md", "":
		data = []byte(storage.ExportMarkdown(conv))
	case "json":
		data, err = storage.ExportJSON(conv)
		if err != nil {
			return WrapError(err, "failed to serialize conversation")
		}
	default:
		return ErrUnsupportedFormat(args.Format, []string{"markdown", "json"})
	}

	if args.Output == "" {
		_, err = os.Stdout.Write(data)
		return err
	}

	if err := os.WriteFile(args.Output, data, 0o600); err != nil {
		return WrapError(err, "failed to write export")
	}
	if !args.Quiet {
		fmt.Fprintf(os.Stderr, "%s Exported %s to %s (%s)\n",
			InfoStyle.Render("[+]"), conv.ID, args.Output, formatBytes(int64(len(data))))
	}
	return nil
}
