// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// errors.go - Error types and exit codes for CLI commands.
//
// Every command handler returns errors instead of printing and swallowing
// them; the HandleX wrappers in cli.go display the error once and exit
// with the code GetExitCode maps from the error type.
package cli

import (
	"errors"
	"fmt"
	"strings"
)

// =============================================================================
// EXIT CODES
// =============================================================================

// Exit codes follow sysexits loosely: 0 success, 1 unknown, 2 usage, then
// one code per failure family the shell scripts around rigchat care about.
const (
	ExitSuccess       = 0
	ExitGeneralError  = 1
	ExitUsageError    = 2
	ExitConfigError   = 3
	ExitAuthError     = 4
	ExitNetworkError  = 5
	ExitNotFoundError = 7
	ExitTimeoutError  = 8
)

// =============================================================================
// ERROR TYPES
// =============================================================================

// CommandError is a command failure with context about what was running.
type CommandError struct {
	Command string // command that failed ("status", "export")
	Action  string // action being performed ("health", "write")
	Reason  string
	Err     error
}

func (e *CommandError) Error() string {
	msg := e.Command + " " + e.Action + " failed: " + e.Reason
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *CommandError) Unwrap() error { return e.Err }

// ValidationError is a user-input validation failure.
type ValidationError struct {
	Field   string
	Value   string // value the user provided
	Reason  string
	Example string // example of a valid value, optional
}

func (e *ValidationError) Error() string {
	var sb strings.Builder
	sb.WriteString("invalid " + e.Field + ": " + e.Reason)
	if e.Value != "" {
		sb.WriteString(" (got: " + e.Value + ")")
	}
	if e.Example != "" {
		sb.WriteString("\nExample: " + e.Example)
	}
	return sb.String()
}

// NotFoundError reports a missing resource.
type NotFoundError struct {
	Resource string // kind of resource ("conversation", "file")
	ID       string
}

func (e *NotFoundError) Error() string {
	return e.Resource + " not found: " + e.ID
}

// =============================================================================
// CONSTRUCTION HELPERS
// =============================================================================

// NewCommandError creates a command error.
func NewCommandError(command, action, reason string, err error) error {
	return &CommandError{Command: command, Action: action, Reason: reason, Err: err}
}

// NewValidationError creates a validation error.
func NewValidationError(field, value, reason string) error {
	return &ValidationError{Field: field, Value: value, Reason: reason}
}

// NewValidationErrorWithExample creates a validation error with an example.
func NewValidationErrorWithExample(field, value, reason, example string) error {
	return &ValidationError{Field: field, Value: value, Reason: reason, Example: example}
}

// ErrMissingArgument reports a missing required argument with usage.
func ErrMissingArgument(argName, usage string) error {
	return NewValidationErrorWithExample(argName, "", "required argument missing", usage)
}

// ErrNotFound creates a not found error.
func ErrNotFound(resource, id string) error {
	return &NotFoundError{Resource: resource, ID: id}
}

// ErrUnsupportedFormat reports an unsupported format with the valid list.
func ErrUnsupportedFormat(format string, supported []string) error {
	return NewValidationErrorWithExample("format", format, "unsupported format",
		fmt.Sprintf("supported formats: %v", supported))
}

// WrapError adds context as errors bubble up.
func WrapError(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}

// =============================================================================
// EXIT CODE MAPPING
// =============================================================================

// exitCodeHints classifies errors from lower layers by message content.
// Order matters: "configuration unreachable" should read as a config
// problem, not a network one.
var exitCodeHints = []struct {
	code    int
	needles []string
}{
	{ExitConfigError, []string{"config", "configuration"}},
	{ExitAuthError, []string{"unauthorized", "forbidden", "api key"}},
	{ExitTimeoutError, []string{"timed out", "deadline exceeded"}},
	{ExitNetworkError, []string{"connection", "unreachable", "not reachable", "dial"}},
}

// GetExitCode maps an error to an exit code, by type first and by message
// content for errors from lower layers.
func GetExitCode(err error) int {
	if err == nil {
		return ExitSuccess
	}

	var validationErr *ValidationError
	var notFoundErr *NotFoundError
	switch {
	case errors.As(err, &validationErr):
		return ExitUsageError
	case errors.As(err, &notFoundErr):
		return ExitNotFoundError
	}

	msg := strings.ToLower(err.Error())
	for _, hint := range exitCodeHints {
		for _, needle := range hint.needles {
			if strings.Contains(msg, needle) {
				return hint.code
			}
		}
	}
	return ExitGeneralError
}
