// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package commands provides the slash command system for the TUI.
package commands

import (
	"strings"
	"unicode"
)

// =============================================================================
// PARSE RESULT
// =============================================================================

// ParseResult is the outcome of parsing one line of user input.
type ParseResult struct {
	// IsCommand is true when the input starts with /
	IsCommand bool

	// Command is the registry match (nil when unknown)
	Command *Command

	// CommandName is the raw name as typed, e.g. "/model"
	CommandName string

	// Args are the tokenized arguments
	Args []string

	// RawInput is the input line as received
	RawInput string

	// RawArgs is everything after the command name, untokenized
	RawArgs string

	// Error holds a lookup or parse failure
	Error error
}

// =============================================================================
// PARSER
// =============================================================================

// Parser resolves slash commands against a registry.
type Parser struct {
	registry *Registry
}

// NewParser creates a parser backed by the given registry.
func NewParser(registry *Registry) *Parser {
	return &Parser{registry: registry}
}

// Parse classifies one input line. Plain chat text comes back with
// IsCommand=false; a leading / triggers tokenization and registry lookup.
func (p *Parser) Parse(input string) ParseResult {
	input = strings.TrimSpace(input)
	result := ParseResult{RawInput: input}

	if !strings.HasPrefix(input, "/") {
		return result
	}
	result.IsCommand = true

	tokens := tokenize(input)
	if len(tokens) == 0 {
		return result
	}

	result.CommandName = tokens[0]
	if len(tokens) > 1 {
		result.Args = tokens[1:]
		if idx := strings.Index(input, result.CommandName); idx >= 0 {
			result.RawArgs = strings.TrimSpace(input[idx+len(result.CommandName):])
		}
	}

	result.Command = p.registry.Get(result.CommandName)
	return result
}

// ParseArgs tokenizes a raw argument string, respecting quotes.
func ParseArgs(input string) []string {
	return tokenize(input)
}

// =============================================================================
// TOKENIZER
// =============================================================================

// tokenize splits input on whitespace, keeping single- or double-quoted
// spans intact. Quote characters are consumed; \" \' and \\ escape inside
// quotes.
func tokenize(input string) []string {
	const (
		bare = iota
		single
		double
	)

	var tokens []string
	var word strings.Builder
	state := bare
	escaped := false

	flush := func() {
		if word.Len() > 0 {
			tokens = append(tokens, word.String())
			word.Reset()
		}
	}

	for _, r := range input {
		if escaped {
			// Only quote characters and the backslash itself are escapable
			if r != '"' && r != '\'' && r != '\\' {
				word.WriteRune('\\')
			}
			word.WriteRune(r)
			escaped = false
			continue
		}

		switch {
		case r == '\\' && state != bare:
			escaped = true
		case r == '\'' && state == bare:
			state = single
		case r == '\'' && state == single:
			state = bare
		case r == '"' && state == bare:
			state = double
		case r == '"' && state == double:
			state = bare
		case unicode.IsSpace(r) && state == bare:
			flush()
		default:
			word.WriteRune(r)
		}
	}
	if escaped {
		// Trailing backslash inside a quote, keep it literal
		word.WriteRune('\\')
	}
	flush()

	return tokens
}

// =============================================================================
// INPUT CLASSIFICATION HELPERS
// =============================================================================

// IsCommand reports whether the input looks like a slash command.
func IsCommand(input string) bool {
	return strings.HasPrefix(strings.TrimSpace(input), "/")
}

// ExtractCommandName returns just the command name portion of the input,
// e.g. "/model qwen2.5" -> "/model". Empty when input is not a command.
func ExtractCommandName(input string) string {
	input = strings.TrimSpace(input)
	if !strings.HasPrefix(input, "/") {
		return ""
	}
	if end := strings.IndexFunc(input, unicode.IsSpace); end >= 0 {
		return input[:end]
	}
	return input
}

// GetPartialCommand returns the command name still being typed, for
// completion. Once a space follows the name the command is complete and
// this returns "".
func GetPartialCommand(input string) string {
	if !strings.HasPrefix(input, "/") {
		return ""
	}
	if strings.IndexFunc(input, unicode.IsSpace) >= 0 {
		return ""
	}
	return input
}

// GetPartialArg returns the index and text of the argument being typed,
// for argument completion.
func GetPartialArg(input string) (int, string) {
	tokens := tokenize(input)
	if len(tokens) <= 1 {
		return 0, ""
	}

	trimmed := strings.TrimSpace(input)
	if strings.HasSuffix(trimmed, " ") || strings.HasSuffix(trimmed, "\"") || strings.HasSuffix(trimmed, "'") {
		// Cursor is past a completed argument
		return len(tokens) - 1, ""
	}
	return len(tokens) - 2, tokens[len(tokens)-1]
}

// =============================================================================
// ARGUMENT VALIDATION
// =============================================================================

// ValidateArgs checks parsed arguments against a command's definitions:
// required arguments must be present and enum values must match.
func ValidateArgs(cmd *Command, args []string) error {
	if cmd == nil {
		return nil
	}

	for i, def := range cmd.Args {
		if def.Required && i >= len(args) {
			return &ValidationError{
				Command:  cmd.Name,
				Arg:      def.Name,
				Message:  "required argument missing",
				Expected: def.Description,
			}
		}
		if i >= len(args) || def.Type != ArgTypeEnum || len(def.Values) == 0 {
			continue
		}
		if !matchesEnum(args[i], def.Values) {
			return &ValidationError{
				Command:  cmd.Name,
				Arg:      def.Name,
				Message:  "invalid value",
				Got:      args[i],
				Expected: strings.Join(def.Values, ", "),
			}
		}
	}
	return nil
}

// matchesEnum reports whether value equals any allowed value, ignoring case.
func matchesEnum(value string, allowed []string) bool {
	for _, v := range allowed {
		if strings.EqualFold(value, v) {
			return true
		}
	}
	return false
}

// ValidationError reports an argument that failed validation.
type ValidationError struct {
	Command  string
	Arg      string
	Message  string
	Got      string
	Expected string
}

func (e *ValidationError) Error() string {
	var sb strings.Builder
	sb.WriteString(e.Command)
	sb.WriteString(": ")
	sb.WriteString(e.Message)
	if e.Arg != "" {
		sb.WriteString(" for argument '" + e.Arg + "'")
	}
	if e.Got != "" {
		sb.WriteString(" (got: " + e.Got + ")")
	}
	if e.Expected != "" {
		sb.WriteString(" - expected: " + e.Expected)
	}
	return sb.String()
}
