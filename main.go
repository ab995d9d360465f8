// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// rigchat - terminal chat client for OpenAI-compatible servers.
package main

import (
	"fmt"
	"os"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/log"

	"github.com/jeranaias/rigchat/internal/api"
	"github.com/jeranaias/rigchat/internal/cli"
	"github.com/jeranaias/rigchat/internal/config"
	"github.com/jeranaias/rigchat/internal/index"
	"github.com/jeranaias/rigchat/internal/logging"
	"github.com/jeranaias/rigchat/internal/secret"
	"github.com/jeranaias/rigchat/internal/session"
	"github.com/jeranaias/rigchat/internal/stats"
	"github.com/jeranaias/rigchat/internal/storage"
	"github.com/jeranaias/rigchat/internal/ui/chat"
)

// Version information (set at build time)
var (
	Version   = "dev"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

func init() {
	// Sync version info with the cli package
	cli.Version = Version
	cli.GitCommit = GitCommit
	cli.BuildDate = BuildDate
}

func main() {
	cmd, args := cli.Parse()

	switch cmd {
	case cli.CmdAsk:
		cli.HandleAsk(args)
	case cli.CmdChat:
		cli.HandleChat(args)
	case cli.CmdModels:
		cli.HandleModels(args)
	case cli.CmdStatus:
		cli.HandleStatus(args)
	case cli.CmdConfig:
		cli.HandleConfig(args)
	case cli.CmdSearch:
		cli.HandleSearch(args)
	case cli.CmdExport:
		cli.HandleExport(args)
	case cli.CmdSetup:
		cli.HandleSetup(args)
	case cli.CmdVersion:
		cli.PrintVersion()
	case cli.CmdHelp:
		cli.PrintUsage()
	default:
		runTUI(args)
	}
}

// runTUI wires the application services and starts the Bubble Tea program.
func runTUI(args cli.Args) {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: failed to load configuration: %v\n", err)
		os.Exit(cli.ExitConfigError)
	}

	// Decrypt a vault-stored API key before the first request needs it
	if dir, derr := config.ConfigDir(); derr == nil {
		if vault, verr := secret.Open(dir); verr == nil {
			if rerr := cfg.ResolveAPIKey(vault); rerr != nil {
				fmt.Fprintf(os.Stderr, "Error: %v\n", rerr)
				fmt.Fprintln(os.Stderr, "Re-run 'rigchat config set-key' to store a fresh key.")
				os.Exit(cli.ExitConfigError)
			}
		}
	}

	if args.Model != "" {
		cfg.Chat.Model = args.Model
		cfg.Chat.ModelSelectorEnabled = true
	}
	config.SetGlobal(cfg)

	// Logging goes to a file when configured; stderr is the TUI's terminal
	logger := buildLogger(cfg, args)

	store, err := newStore(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: failed to open conversation storage: %v\n", err)
		os.Exit(cli.ExitGeneralError)
	}

	usage := stats.NewRegistry()
	requests := api.NewRequestManager()
	client := api.NewClient(cfg).
		WithLogger(logger).
		WithStateSink(usage).
		WithRequestManager(requests)

	sess := session.NewManager(client, requests, store, session.ConfigFromSettings(cfg))

	// The index is optional; the TUI degrades to storage-level search
	var idx *index.MessageIndex
	if cfg.Storage.IndexEnabled {
		idxCfg := index.DefaultConfig(store.BaseDir)
		if idx, err = index.NewMessageIndex(idxCfg); err != nil {
			logger.Warn("search index unavailable", "error", err)
			idx = nil
		} else {
			defer idx.Close()
		}
	}

	model := chat.New(cfg, client, sess, store, idx, usage, logger)
	program := tea.NewProgram(model, tea.WithAltScreen(), tea.WithMouseCellMotion())

	if _, err := program.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(cli.ExitGeneralError)
	}

	// Flush anything dirty before the process goes away
	if sess.IsDirty() {
		if _, serr := sess.Save(); serr != nil {
			logger.Warn("final save failed", "error", serr)
		}
	}
}

// buildLogger creates the application logger. Debug mode comes from config
// or --verbose; output goes to the configured log file, or nowhere, so the
// alternate screen stays clean.
func buildLogger(cfg *config.Config, args cli.Args) *log.Logger {
	debug := cfg.Debug || args.Verbose
	if cfg.LogFile == "" && !debug {
		return logging.Nop()
	}
	opts := []logging.Option{logging.WithDebug(debug)}
	if cfg.LogFile != "" {
		opts = append(opts, logging.WithFile(cfg.LogFile))
	} else {
		// Debug without a file sink still cannot write to the terminal
		return logging.Nop()
	}
	return logging.New(opts...)
}

// newStore opens conversation storage, honoring storage.data_dir.
func newStore(cfg *config.Config) (*storage.ConversationStore, error) {
	if cfg.Storage.DataDir != "" {
		return storage.NewConversationStoreWithDir(cfg.Storage.DataDir)
	}
	return storage.NewConversationStore()
}
