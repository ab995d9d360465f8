// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"strings"
	"time"

	"github.com/atotto/clipboard"
)

// =============================================================================
// TEXT HELPERS
// =============================================================================

// formatTimestamp renders a message time compactly: time only for today,
// weekday for this week, date otherwise.
func formatTimestamp(t time.Time) string {
	now := time.Now()
	switch {
	case t.Year() == now.Year() && t.YearDay() == now.YearDay():
		return t.Format("15:04")
	case now.Sub(t) < 7*24*time.Hour:
		return t.Format("Mon 15:04")
	default:
		return t.Format("Jan 2 15:04")
	}
}

// wrapText wraps text to the given width, breaking at spaces where
// possible. Rune-safe.
func wrapText(text string, width int) string {
	if width <= 0 {
		return text
	}

	var result strings.Builder
	for i, line := range strings.Split(text, "\n") {
		if i > 0 {
			result.WriteString("\n")
		}
		result.WriteString(wrapLine(line, width))
	}
	return result.String()
}

func wrapLine(line string, width int) string {
	runes := []rune(line)
	if len(runes) <= width {
		return line
	}

	var result strings.Builder
	for len(runes) > width {
		// Break at the last space inside the width
		breakAt := width
		for j := width; j > 0; j-- {
			if runes[j] == ' ' {
				breakAt = j
				break
			}
		}
		result.WriteString(string(runes[:breakAt]))
		result.WriteString("\n")
		runes = runes[breakAt:]
		// Skip the space we broke at
		if len(runes) > 0 && runes[0] == ' ' {
			runes = runes[1:]
		}
	}
	result.WriteString(string(runes))
	return result.String()
}

// =============================================================================
// CLIPBOARD
// =============================================================================

// copyToClipboard copies text to the system clipboard.
func copyToClipboard(text string) error {
	return clipboard.WriteAll(text)
}

// =============================================================================
// FILE MENTIONS
// =============================================================================

// extractFileMentions pulls @file:path tokens out of a message, returning
// the message with the tokens removed and the mentioned paths in order.
// Quoted paths (@file:"my notes.txt") may contain spaces.
func extractFileMentions(content string) (string, []string) {
	const marker = "@file:"

	var paths []string
	var clean strings.Builder

	rest := content
	for {
		idx := strings.Index(rest, marker)
		if idx < 0 {
			clean.WriteString(rest)
			break
		}

		clean.WriteString(rest[:idx])
		rest = rest[idx+len(marker):]

		var path string
		if strings.HasPrefix(rest, `"`) {
			if end := strings.Index(rest[1:], `"`); end >= 0 {
				path = rest[1 : 1+end]
				rest = rest[2+end:]
			} else {
				path = rest[1:]
				rest = ""
			}
		} else {
			end := strings.IndexAny(rest, " \t\n")
			if end < 0 {
				end = len(rest)
			}
			path = rest[:end]
			rest = rest[end:]
		}

		if path != "" {
			paths = append(paths, path)
		}
	}

	return strings.Join(strings.Fields(clean.String()), " "), paths
}

// =============================================================================
// COMPLETION APPLICATION
// =============================================================================

// applyCompletion splices an accepted completion value into the input line.
// Command-name completions replace the whole line; mention completions
// replace from the last "@"; argument completions replace the last token.
func applyCompletion(input, value string) string {
	if strings.HasPrefix(value, "/") && !strings.Contains(strings.TrimSpace(input), " ") {
		return value + " "
	}

	if strings.HasPrefix(value, "@") {
		if at := strings.LastIndex(input, "@"); at >= 0 {
			return input[:at] + value
		}
	}

	if sp := strings.LastIndexAny(input, " \t"); sp >= 0 {
		return input[:sp+1] + value
	}
	return value
}
