// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package logging

import (
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/muesli/termenv"
)

// ============================================================================
// OPTIONS
// ============================================================================

// settings collects the knobs applied by Option values before the logger is
// constructed.
type settings struct {
	debug    bool
	json     bool
	noColor  bool
	writer   io.Writer
	filePath string
	prefix   string
}

// Option customizes the logger returned by New.
type Option func(*settings)

// WithDebug lowers the level to debug and reports caller locations.
func WithDebug(debug bool) Option {
	return func(s *settings) {
		s.debug = debug
	}
}

// WithJSON switches the output format to JSON, one record per line.
// Intended for the file sink where lines are consumed by tools.
func WithJSON(json bool) Option {
	return func(s *settings) {
		s.json = json
	}
}

// WithWriter replaces the default stderr destination.
func WithWriter(w io.Writer) Option {
	return func(s *settings) {
		s.writer = w
	}
}

// WithFile adds a log file next to the console sink. The parent directory
// is created if missing. An empty path disables the file sink.
func WithFile(path string) Option {
	return func(s *settings) {
		s.filePath = path
	}
}

// WithNoColor disables ANSI styling regardless of terminal detection.
func WithNoColor(noColor bool) Option {
	return func(s *settings) {
		s.noColor = noColor
	}
}

// WithPrefix sets the prefix shown on every record. Defaults to "rigchat".
func WithPrefix(prefix string) Option {
	return func(s *settings) {
		s.prefix = prefix
	}
}

// ============================================================================
// CONSTRUCTION
// ============================================================================

// New builds the application logger. Without options it logs warnings and
// errors to stderr in text format, which keeps the TUI's alternate screen
// clean while still surfacing real failures.
func New(opts ...Option) *log.Logger {
	s := settings{
		writer: os.Stderr,
		prefix: "rigchat",
	}
	for _, opt := range opts {
		opt(&s)
	}

	// RIGCHAT_DEBUG=1 force-enables debug logging even when the flag is
	// absent, which is the only practical way to debug the TUI binary.
	if envTruthy(os.Getenv("RIGCHAT_DEBUG")) {
		s.debug = true
	}

	writer := s.writer
	if s.filePath != "" {
		if f := openLogFile(s.filePath); f != nil {
			writer = io.MultiWriter(writer, f)
		}
	}

	logger := log.NewWithOptions(writer, log.Options{
		ReportTimestamp: true,
		TimeFormat:      time.Kitchen,
		Prefix:          s.prefix,
	})

	if s.json {
		logger.SetFormatter(log.JSONFormatter)
		logger.SetTimeFormat(time.RFC3339)
	}
	if s.noColor {
		logger.SetColorProfile(termenv.Ascii)
	}

	if s.debug {
		logger.SetLevel(log.DebugLevel)
		logger.SetReportCaller(true)
	} else {
		logger.SetLevel(log.WarnLevel)
	}

	return logger
}

// Nop returns a logger that discards everything. Tests use it so package
// constructors never need a nil check.
func Nop() *log.Logger {
	logger := log.New(io.Discard)
	logger.SetLevel(log.FatalLevel + 1)
	return logger
}

// openLogFile opens path for appending, creating parent directories as
// needed. Returns nil on any failure; logging must never prevent startup.
func openLogFile(path string) *os.File {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0600)
	if err != nil {
		return nil
	}
	return f
}

// envTruthy reports whether an environment value means "enabled".
// Accepts 1, true, yes, on in any case.
func envTruthy(v string) bool {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "1", "true", "yes", "on":
		return true
	}
	return false
}
