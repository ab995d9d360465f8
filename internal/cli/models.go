// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// models.go - Model listing command.
//
// "rigchat models" asks the server for /v1/models and prints a table, or
// the raw list with --json.
package cli

import (
	"context"
	"fmt"
	"os"
	"time"
)

// HandleModelsCommand lists the models the server reports.
func HandleModelsCommand(args Args) error {
	cfg, err := loadCLIConfig(args)
	if err != nil {
		return err
	}
	client := newCLIClient(cfg, args)

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	models, err := client.ListModels(ctx)
	if err != nil {
		return WrapError(err, "failed to list models")
	}

	if args.JSON {
		return outputJSON(models)
	}

	if len(models) == 0 {
		fmt.Println(DimStyle.Render("No models reported by the server."))
		return nil
	}

	if !args.Quiet {
		fmt.Fprintf(os.Stderr, "%s %d models at %s\n\n",
			InfoStyle.Render("[+]"), len(models), cfg.Server.Resolve())
	}

	// Column widths sized to the content
	idWidth := len("MODEL")
	for _, m := range models {
		if len(m.ID) > idWidth {
			idWidth = len(m.ID)
		}
	}

	fmt.Printf("  %-*s  %-12s  %s\n", idWidth, "MODEL", "OWNER", "CREATED")
	for _, m := range models {
		created := ""
		if m.Created > 0 {
			created = time.Unix(m.Created, 0).Format("2006-01-02")
		}
		owner := m.OwnedBy
		if owner == "" {
			owner = "-"
		}
		marker := " "
		if m.ID == cfg.Chat.Model {
			marker = HighlightStyle.Render("*")
		}
		fmt.Printf("%s %-*s  %-12s  %s\n", marker, idWidth, m.ID, owner, created)
	}

	if cfg.Chat.Model != "" && !args.Quiet {
		fmt.Println()
		fmt.Println(DimStyle.Render("* configured model"))
	}
	return nil
}
