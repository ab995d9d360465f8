// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// setup.go - First-run setup wizard.
//
// "rigchat setup" walks through the minimum needed for a working client:
//   1. Server endpoint (local llama.cpp or an external API)
//   2. Optional API key, stored encrypted via the vault
//   3. Model selection from the server's list when reachable
//   4. Markdown rendering preference
//
// The result is written to the TOML config file. Running setup again edits
// the existing config rather than starting over.
package cli

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/jeranaias/rigchat/internal/api"
	"github.com/jeranaias/rigchat/internal/config"
	"github.com/jeranaias/rigchat/internal/secret"
)

// HandleSetupCommand runs the interactive setup wizard.
func HandleSetupCommand(args Args) error {
	if err := RequiresTTY("run setup"); err != nil {
		return err
	}

	cfg, err := config.Load()
	if err != nil {
		// A broken config file shouldn't block setup; start fresh
		fmt.Fprintf(os.Stderr, "%s Existing config unreadable (%v), starting from defaults\n",
			WarningStyle.Render("[!]"), err)
		cfg = config.Default()
	}

	fmt.Println()
	fmt.Println(TitleStyle.Render("rigchat setup"))
	fmt.Println(DimStyle.Render("Press Enter to keep the value shown in brackets."))
	fmt.Println()

	if err := setupEndpoint(cfg); err != nil {
		return err
	}
	if err := setupAPIKey(cfg); err != nil {
		return err
	}
	setupModel(cfg, args)
	setupPreferences(cfg)

	if err := cfg.Validate(); err != nil {
		return err
	}
	if err := config.Save(cfg); err != nil {
		return WrapError(err, "failed to save configuration")
	}

	path, _ := config.ConfigPathTOML()
	fmt.Println()
	fmt.Printf("%s Configuration written to %s\n", SuccessStyle.Render("[OK]"), path)
	fmt.Println(DimStyle.Render("Start chatting with: rigchat"))
	return nil
}

// setupEndpoint prompts for the server URL and verifies it answers.
func setupEndpoint(cfg *config.Config) error {
	fmt.Println(SectionStyle.Render("Server"))

	current := cfg.Server.Resolve()
	answer := promptInput(fmt.Sprintf("Endpoint URL [%s]: ", current))
	if answer != "" {
		if _, err := url.Parse(answer); err != nil {
			return NewValidationErrorWithExample("endpoint", answer,
				"not a valid URL", "http://localhost:8080")
		}
		cfg.Server.BaseURL = answer
	}

	client := api.NewClient(cfg)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Health(ctx); err != nil {
		fmt.Printf("  %s Server not reachable: %v\n", RenderStatus("warn"), err)
		fmt.Println(DimStyle.Render("  Continuing anyway; you can start the server later."))
	} else {
		fmt.Printf("  %s Server answered at %s\n", RenderStatus("ok"), cfg.Server.Resolve())
	}
	return nil
}

// setupAPIKey optionally stores an encrypted API key.
func setupAPIKey(cfg *config.Config) error {
	fmt.Println(SectionStyle.Render("API key"))

	hasKey := cfg.Server.APIKey != ""
	prompt := "Set an API key? [y/N] "
	if hasKey {
		prompt = "Replace the stored API key? [y/N] "
	}

	answer := promptInput(prompt)
	if ok, err := ParseBoolString(answer); err != nil || !ok {
		if hasKey {
			fmt.Println(DimStyle.Render("  Keeping the existing key."))
		}
		return nil
	}

	key, err := readPassword("  API key (input hidden): ")
	if err != nil {
		return err
	}
	if strings.TrimSpace(key) == "" {
		fmt.Println(DimStyle.Render("  Empty input, skipping."))
		return nil
	}

	dir, err := config.ConfigDir()
	if err != nil {
		return WrapError(err, "failed to resolve config directory")
	}
	if err := config.EnsureConfigDir(); err != nil {
		return WrapError(err, "failed to create config directory")
	}

	vault, err := secret.Open(dir)
	if err != nil {
		return WrapError(err, "failed to open secret vault")
	}
	if !vault.Initialized() {
		if err := vault.Init(); err != nil {
			return WrapError(err, "failed to initialize secret vault")
		}
	}

	encrypted, err := vault.EncryptString(key)
	if err != nil {
		return WrapError(err, "failed to encrypt API key")
	}
	cfg.Server.APIKey = encrypted
	fmt.Printf("  %s Key stored encrypted\n", RenderStatus("ok"))
	return nil
}

// setupModel offers the server's model list when available, otherwise a
// free-form prompt.
func setupModel(cfg *config.Config, args Args) {
	fmt.Println(SectionStyle.Render("Model"))

	client := newCLIClient(cfg, args)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	models, err := client.ListModels(ctx)
	cancel()

	current := cfg.Chat.Model
	if current == "" {
		current = "(server default)"
	}

	if err != nil || len(models) == 0 {
		answer := promptInput(fmt.Sprintf("Model name [%s]: ", current))
		if answer != "" {
			cfg.Chat.Model = answer
			cfg.Chat.ModelSelectorEnabled = true
		}
		return
	}

	fmt.Printf("  Available models:\n")
	for i, m := range models {
		marker := " "
		if m.ID == cfg.Chat.Model {
			marker = "*"
		}
		fmt.Printf("  %s %2d. %s\n", marker, i+1, m.ID)
	}

	answer := promptInput(fmt.Sprintf("Pick a number or type a name [%s]: ", current))
	if answer == "" {
		return
	}
	if n, perr := ParseIntWithValidation(answer, "model number"); perr == nil && n <= len(models) {
		cfg.Chat.Model = models[n-1].ID
	} else {
		cfg.Chat.Model = answer
	}
	cfg.Chat.ModelSelectorEnabled = true
}

// setupPreferences covers the toggles most people actually change.
func setupPreferences(cfg *config.Config) {
	fmt.Println(SectionStyle.Render("Preferences"))

	state := "Y/n"
	if !cfg.UI.MarkdownEnabled {
		state = "y/N"
	}
	answer := promptInput(fmt.Sprintf("Render markdown in responses? [%s] ", state))
	if answer != "" {
		if ok, err := ParseBoolString(answer); err == nil {
			cfg.UI.MarkdownEnabled = ok
		}
	}
}
