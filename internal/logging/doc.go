// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package logging configures the shared structured logger for rigchat.
//
// The application logs through a single charmbracelet/log instance. In TUI
// mode the logger stays quiet (warn and above to stderr) so log lines never
// corrupt the alternate screen; --debug or RIGCHAT_DEBUG=1 lowers the level
// and adds an optional file sink under the data directory.
//
// # Usage
//
//	logger := logging.New(
//	    logging.WithDebug(cfg.Debug),
//	    logging.WithFile(filepath.Join(dataDir, "rigchat.log")),
//	)
//	logger.Debug("stream line skipped", "reason", err)
//
// Subsystems receive child loggers via With so every record carries its
// component name:
//
//	apiLog := logger.With("component", "api")
package logging
