// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// config.go - Config command.
//
// Subcommands:
//   show (default)      Display current configuration
//   get <key>           Print one value
//   set <key> <value>   Set a value and save
//   list                List all known keys
//   path                Show the config file path
//   set-key             Store the API key encrypted in the vault
//   reset               Reset to default configuration
//
// Keys use dotted paths matching the TOML layout:
//   rigchat config set chat.model qwen2.5:14b
//   rigchat config set server.base_url https://api.example.com/v1
//   rigchat config set ui.markdown_enabled false
package cli

import (
	"fmt"
	"os"
	"strings"

	"github.com/jeranaias/rigchat/internal/config"
	"github.com/jeranaias/rigchat/internal/secret"
)

// HandleConfigCommand dispatches the config subcommands.
func HandleConfigCommand(args Args) error {
	switch args.Subcommand {
	case "", "show":
		return configShow(args)
	case "get":
		return configGet(args)
	case "set":
		return configSet(args)
	case "list", "keys":
		return configList(args)
	case "path":
		return configPath(args)
	case "set-key":
		return configSetKey(args)
	case "reset":
		return configReset(args)
	default:
		return NewValidationErrorWithExample("subcommand", args.Subcommand,
			"unknown config action", "rigchat config <show|get|set|list|path|set-key|reset>")
	}
}

// configShow prints the whole configuration with the API key redacted.
func configShow(args Args) error {
	cfg, err := config.Load()
	if err != nil {
		return WrapError(err, "failed to load configuration")
	}

	if args.JSON {
		clone := cfg.Clone()
		if clone.Server.APIKey != "" {
			clone.Server.APIKey = "(redacted)"
		}
		return outputJSON(clone)
	}

	fmt.Println(cfg.String())
	return nil
}

// configGet prints a single value.
func configGet(args Args) error {
	if args.ConfigKey == "" {
		return ErrMissingArgument("key", "rigchat config get chat.model")
	}

	cfg, err := config.Load()
	if err != nil {
		return WrapError(err, "failed to load configuration")
	}

	value, err := cfg.Get(args.ConfigKey)
	if err != nil {
		return err
	}

	if args.ConfigKey == "server.api_key" {
		if value != "" {
			value = "(redacted)"
		}
	}

	if args.JSON {
		return outputJSON(map[string]interface{}{args.ConfigKey: value})
	}
	fmt.Printf("%v\n", value)
	return nil
}

// configSet sets a value, validates the result, and saves.
func configSet(args Args) error {
	if args.ConfigKey == "" || args.ConfigVal == "" {
		return ErrMissingArgument("key and value", "rigchat config set chat.model qwen2.5:14b")
	}

	cfg, err := config.Load()
	if err != nil {
		return WrapError(err, "failed to load configuration")
	}

	if err := cfg.Set(args.ConfigKey, args.ConfigVal); err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	if err := config.Save(cfg); err != nil {
		return WrapError(err, "failed to save configuration")
	}

	if !args.Quiet {
		fmt.Printf("%s %s = %s\n",
			SuccessStyle.Render("[OK]"), args.ConfigKey, args.ConfigVal)
	}
	return nil
}

// configList prints every settable key with its current value.
func configList(args Args) error {
	cfg, err := config.Load()
	if err != nil {
		return WrapError(err, "failed to load configuration")
	}

	keys := config.GetAllKeys()

	if args.JSON {
		out := make(map[string]interface{}, len(keys))
		for _, key := range keys {
			value, gerr := cfg.Get(key)
			if gerr != nil {
				continue
			}
			if key == "server.api_key" && value != "" {
				value = "(redacted)"
			}
			out[key] = value
		}
		return outputJSON(out)
	}

	for _, key := range keys {
		value, gerr := cfg.Get(key)
		if gerr != nil {
			continue
		}
		if key == "server.api_key" && value != "" {
			value = "(redacted)"
		}
		fmt.Printf("%s = %v\n", ValueStyle.Render(key), value)
	}
	return nil
}

// configPath prints the active config file path.
func configPath(args Args) error {
	path, err := config.ConfigPathTOML()
	if err != nil {
		return WrapError(err, "failed to resolve config path")
	}

	if args.JSON {
		return outputJSON(map[string]string{"path": path})
	}
	fmt.Println(path)
	return nil
}

// configSetKey reads the API key without echo, encrypts it through the
// vault, and stores the ciphertext in the config file.
func configSetKey(args Args) error {
	if err := RequiresTTY("enter an API key"); err != nil {
		return err
	}

	cfg, err := config.Load()
	if err != nil {
		return WrapError(err, "failed to load configuration")
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

	key, err := readPassword("API key (input hidden): ")
	if err != nil {
		return err
	}
	if strings.TrimSpace(key) == "" {
		// Empty input clears the stored key
		cfg.Server.APIKey = ""
		if err := config.Save(cfg); err != nil {
			return WrapError(err, "failed to save configuration")
		}
		fmt.Printf("%s API key cleared\n", SuccessStyle.Render("[OK]"))
		return nil
	}

	encrypted, err := vault.EncryptString(key)
	if err != nil {
		return WrapError(err, "failed to encrypt API key")
	}

	cfg.Server.APIKey = encrypted
	if err := config.Save(cfg); err != nil {
		return WrapError(err, "failed to save configuration")
	}

	fmt.Printf("%s API key stored encrypted in %s\n",
		SuccessStyle.Render("[OK]"), DimStyle.Render(dir))
	return nil
}

// configReset writes the default configuration after confirmation.
func configReset(args Args) error {
	if !args.Quiet {
		answer := promptInput("Reset configuration to defaults? [y/N] ")
		if ok, err := ParseBoolString(answer); err != nil || !ok {
			fmt.Println(DimStyle.Render("Aborted."))
			return nil
		}
	}

	cfg := config.Default()
	if err := config.Save(cfg); err != nil {
		return WrapError(err, "failed to save configuration")
	}

	fmt.Fprintf(os.Stderr, "%s Configuration reset to defaults\n", SuccessStyle.Render("[OK]"))
	return nil
}
