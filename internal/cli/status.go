// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// status.go - Status command.
//
// "rigchat status" probes the server and summarizes the local setup:
// endpoint reachability and latency, configured model, conversation
// storage, and the search index.
//
// Examples:
//   rigchat status            Human-readable status
//   rigchat status --json     Machine-readable (monitoring, scripts)
package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/jeranaias/rigchat/internal/config"
	"github.com/jeranaias/rigchat/internal/index"
	"github.com/jeranaias/rigchat/internal/storage"
)

// statusReport is the --json output shape.
type statusReport struct {
	Endpoint      string  `json:"endpoint"`
	Reachable     bool    `json:"reachable"`
	LatencyMS     float64 `json:"latency_ms,omitempty"`
	Error         string  `json:"error,omitempty"`
	Model         string  `json:"model,omitempty"`
	APIKeySet     bool    `json:"api_key_set"`
	Conversations int     `json:"conversations"`
	IndexedMsgs   int     `json:"indexed_messages,omitempty"`
	IndexSize     int64   `json:"index_size_bytes,omitempty"`
	Version       string  `json:"version"`
}

// HandleStatusCommand shows server health and a configuration summary.
func HandleStatusCommand(args Args) error {
	cfg, err := loadCLIConfig(args)
	if err != nil {
		return err
	}
	client := newCLIClient(cfg, args)

	report := statusReport{
		Endpoint:  cfg.Server.Resolve(),
		Model:     cfg.Chat.Model,
		APIKeySet: cfg.Server.APIKey != "",
		Version:   Version,
	}

	// Health probe with latency
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	started := time.Now()
	healthErr := client.Health(ctx)
	cancel()

	report.Reachable = healthErr == nil
	if healthErr == nil {
		report.LatencyMS = float64(time.Since(started).Microseconds()) / 1000.0
	} else {
		report.Error = healthErr.Error()
	}

	// Storage summary; status still prints if storage is broken
	store, serr := storage.NewConversationStore()
	if serr == nil {
		if metas, lerr := store.List(); lerr == nil {
			report.Conversations = len(metas)
		}
	}

	// Index stats, without triggering a rebuild
	if cfg.Storage.IndexEnabled && store != nil {
		idxCfg := index.DefaultConfig(store.BaseDir)
		idxCfg.EnableWatch = false
		if idx, ierr := index.NewMessageIndex(idxCfg); ierr == nil {
			stats := idx.Stats()
			report.IndexedMsgs = stats.MessageCount
			report.IndexSize = stats.DatabaseSize
			idx.Close()
		}
	}

	if args.JSON {
		return outputJSON(report)
	}

	printStatusReport(cfg, report)

	if !report.Reachable {
		return NewCommandError("status", "health", "server not reachable", healthErr)
	}
	return nil
}

// printStatusReport renders the human-readable status.
func printStatusReport(cfg *config.Config, report statusReport) {
	fmt.Println()
	fmt.Println(TitleStyle.Render("rigchat status"))

	fmt.Println(SectionStyle.Render("Server"))
	fmt.Printf("  %s %s\n", RenderLabel("Endpoint:"), ValueStyle.Render(report.Endpoint))
	if report.Reachable {
		fmt.Printf("  %s %s %s\n", RenderLabel("Health:"), RenderStatus("ok"),
			DimStyle.Render(fmt.Sprintf("(%.0f ms)", report.LatencyMS)))
	} else {
		fmt.Printf("  %s %s %s\n", RenderLabel("Health:"), RenderStatus("fail"),
			DimStyle.Render(report.Error))
	}
	if report.APIKeySet {
		fmt.Printf("  %s %s\n", RenderLabel("API key:"), SuccessStyle.Render("configured"))
	} else {
		fmt.Printf("  %s %s\n", RenderLabel("API key:"), DimStyle.Render("not set"))
	}

	fmt.Println(SectionStyle.Render("Chat"))
	modelName := report.Model
	if modelName == "" {
		modelName = "(server default)"
	}
	fmt.Printf("  %s %s\n", RenderLabel("Model:"), ValueStyle.Render(modelName))
	if cfg.Chat.SystemMessage != "" {
		fmt.Printf("  %s %s\n", RenderLabel("System prompt:"), DimStyle.Render("set"))
	}

	fmt.Println(SectionStyle.Render("Storage"))
	fmt.Printf("  %s %d\n", RenderLabel("Conversations:"), report.Conversations)
	if cfg.Storage.IndexEnabled {
		fmt.Printf("  %s %s messages, %s\n", RenderLabel("Search index:"),
			formatNumber(report.IndexedMsgs), formatBytes(report.IndexSize))
	} else {
		fmt.Printf("  %s %s\n", RenderLabel("Search index:"), DimStyle.Render("disabled"))
	}

	fmt.Println()
	fmt.Printf("  %s %s\n", RenderLabel("Version:"), DimStyle.Render(report.Version))
	fmt.Println()
}
