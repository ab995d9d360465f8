// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package cli implements the non-TUI surface of rigchat: argument parsing
// and the ask, chat, models, status, config, search, export, and setup
// commands.
//
// # Usage
//
// Parse and dispatch:
//
//	cmd, args := cli.Parse()
//	switch cmd {
//	case cli.CmdAsk:
//	    cli.HandleAsk(args)
//	case cli.CmdChat:
//	    cli.HandleChat(args)
//	// ... other commands
//	}
//
// Every HandleXCommand variant returns an error; the HandleX wrappers
// print it and exit with the code GetExitCode derives. Commands that
// produce data accept --json for scripting, keep meta output on stderr,
// and drop colors automatically when piped.
package cli
