// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// helpers.go - Shared wiring and formatting helpers for CLI commands.

package cli

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/log"

	"github.com/jeranaias/rigchat/internal/api"
	"github.com/jeranaias/rigchat/internal/config"
	"github.com/jeranaias/rigchat/internal/logging"
	"github.com/jeranaias/rigchat/internal/secret"
)

// =============================================================================
// COMMAND WIRING
// =============================================================================

// loadCLIConfig loads configuration for a CLI command: config file plus env
// overrides, encrypted API key resolved through the vault, and the --model
// override applied on top.
func loadCLIConfig(args Args) (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, WrapError(err, "failed to load configuration")
	}

	if dir, derr := config.ConfigDir(); derr == nil {
		if vault, verr := secret.Open(dir); verr == nil {
			if rerr := cfg.ResolveAPIKey(vault); rerr != nil {
				return nil, rerr
			}
		}
	}

	if args.Model != "" {
		cfg.Chat.Model = args.Model
		cfg.Chat.ModelSelectorEnabled = true
	}

	return cfg, nil
}

// cliLogger returns a logger for CLI commands: silent by default, debug to
// stderr with --verbose.
func cliLogger(args Args) *log.Logger {
	if args.Verbose {
		return logging.New(logging.WithDebug(true))
	}
	return logging.Nop()
}

// newCLIClient builds an API client from the loaded config.
func newCLIClient(cfg *config.Config, args Args) *api.Client {
	return api.NewClient(cfg).WithLogger(cliLogger(args))
}

// =============================================================================
// FORMATTING HELPERS
// =============================================================================

// formatDuration formats a duration coarsely: 45s, 12m, 3h, 2d.
func formatDuration(d time.Duration) string {
	if d < time.Minute {
		return fmt.Sprintf("%ds", int(d.Seconds()))
	}
	if d < time.Hour {
		return fmt.Sprintf("%dm", int(d.Minutes()))
	}
	if d < 24*time.Hour {
		return fmt.Sprintf("%dh", int(d.Hours()))
	}
	return fmt.Sprintf("%dd", int(d.Hours()/24))
}

// formatBytes formats a byte count for display.
func formatBytes(bytes int64) string {
	const (
		KB = 1024
		MB = KB * 1024
		GB = MB * 1024
	)

	switch {
	case bytes >= GB:
		return fmt.Sprintf("%.2f GB", float64(bytes)/GB)
	case bytes >= MB:
		return fmt.Sprintf("%.2f MB", float64(bytes)/MB)
	case bytes >= KB:
		return fmt.Sprintf("%.2f KB", float64(bytes)/KB)
	default:
		return fmt.Sprintf("%d bytes", bytes)
	}
}

// formatNumber adds thousands separators: 1234567 -> "1,234,567".
func formatNumber(n int) string {
	s := fmt.Sprintf("%d", n)
	if len(s) <= 3 {
		return s
	}

	var parts []string
	for len(s) > 3 {
		parts = append([]string{s[len(s)-3:]}, parts...)
		s = s[:len(s)-3]
	}
	return s + "," + strings.Join(parts, ",")
}

// outputJSON writes data as indented JSON to stdout.
func outputJSON(data interface{}) error {
	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")
	return encoder.Encode(data)
}

// promptInput reads one line of input after printing a prompt.
func promptInput(prompt string) string {
	fmt.Print(prompt)
	reader := bufio.NewReader(os.Stdin)
	input, _ := reader.ReadString('\n')
	return strings.TrimSpace(input)
}
