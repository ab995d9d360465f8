// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package commands

import (
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
)

// =============================================================================
// COMPLETER
// =============================================================================

// Match ranking. A bare hit starts at matchBase; exact and prefix matches
// climb above it, misses sink below. Tests and callers only rely on the
// ordering, not the absolute values.
const (
	matchBase   = 100
	exactBonus  = 100
	prefixBonus = 50
	aliasDemote = 10
	dirBoost    = 5
)

// Cap on directory listings so a completion in $HOME stays readable.
const maxFileResults = 20

// Completer produces completion candidates for the input line: command
// names after "/", typed arguments after a command, and @file: mentions
// inside plain messages. The Fn hooks supply live data from the
// application; a nil hook disables that candidate source.
type Completer struct {
	registry *Registry

	ModelsFn        func() []string
	CurrentModelFn  func() string
	ConversationsFn func() []ConversationInfo
	ConfigFn        func() []string
	FilesFn         func(prefix string) []string
}

// NewCompleter creates a completer over the given registry.
func NewCompleter(registry *Registry) *Completer {
	return &Completer{registry: registry}
}

// Complete returns ranked candidates for the input at the cursor.
func (c *Completer) Complete(input string, cursorPos int) []Completion {
	if cursorPos < len(input) {
		input = input[:cursorPos]
	}
	input = strings.TrimSpace(input)

	if !strings.HasPrefix(input, "/") {
		return c.completeMention(input)
	}

	words := tokenize(input)
	if len(words) == 0 {
		return c.completeCommandNames("")
	}

	trailingSpace := strings.HasSuffix(input, " ")
	if len(words) == 1 && !trailingSpace {
		return c.completeCommandNames(words[0])
	}

	cmd := c.registry.Get(words[0])
	if cmd == nil {
		return nil
	}

	argIndex := len(words) - 2
	partial := ""
	if trailingSpace {
		argIndex++
	} else {
		partial = words[len(words)-1]
	}
	return c.completeArgument(cmd, argIndex, partial)
}

// =============================================================================
// COMMAND NAMES
// =============================================================================

func (c *Completer) completeCommandNames(partial string) []Completion {
	lower := strings.ToLower(partial)

	var out []Completion
	for _, cmd := range c.registry.All() {
		if cmd.Hidden {
			continue
		}

		add := func(value, display string, penalty int) {
			if !strings.HasPrefix(strings.ToLower(value), lower) {
				return
			}
			out = append(out, Completion{
				Value:       value,
				Display:     display,
				Description: cmd.Description,
				Score:       calculateScore(value, lower) - penalty,
			})
		}

		add(cmd.Name, cmd.Name, 0)
		for _, alias := range cmd.Aliases {
			add(alias, alias+" -> "+cmd.Name, aliasDemote)
		}
	}

	sortCompletions(out)
	return out
}

// =============================================================================
// ARGUMENTS
// =============================================================================

func (c *Completer) completeArgument(cmd *Command, argIndex int, partial string) []Completion {
	if argIndex < 0 || argIndex >= len(cmd.Args) {
		return nil
	}

	arg := cmd.Args[argIndex]
	switch arg.Type {
	case ArgTypeModel:
		return c.completeModels(partial)
	case ArgTypeConversation:
		return c.completeConversations(partial)
	case ArgTypeFile:
		return c.completeFiles(partial)
	case ArgTypeEnum:
		return c.listMatches(arg.Values, partial)
	case ArgTypeConfig:
		if c.ConfigFn == nil {
			return nil
		}
		return c.listMatches(c.ConfigFn(), partial)
	case ArgTypeString:
		if arg.Completer != nil {
			return c.listMatches(arg.Completer(), partial)
		}
	}
	return nil
}

// completeModels lists available models, starring the one in use so
// "/model <tab>" shows where you are before switching.
func (c *Completer) completeModels(partial string) []Completion {
	if c.ModelsFn == nil {
		return nil
	}

	current := ""
	if c.CurrentModelFn != nil {
		current = c.CurrentModelFn()
	}

	out := c.listMatches(c.ModelsFn(), partial)
	for i := range out {
		if out[i].Value == current {
			out[i].IsCurrent = true
		}
	}
	return out
}

// completeConversations matches the ID by prefix and the title by
// substring, so "/open decoder" finds "Refactoring the stream decoder"
// even though the ID is a UUID.
func (c *Completer) completeConversations(partial string) []Completion {
	if c.ConversationsFn == nil {
		return nil
	}

	lower := strings.ToLower(partial)

	var out []Completion
	for _, conv := range c.ConversationsFn() {
		byID := strings.HasPrefix(strings.ToLower(conv.ID), lower)
		byTitle := strings.Contains(strings.ToLower(conv.Title), lower)
		if !byID && !byTitle {
			continue
		}

		score := calculateScore(conv.ID, lower)
		if byTitle && !byID {
			score -= 5
		}

		display := conv.ID
		if conv.Title != "" {
			display += " - " + truncate(conv.Title, 30)
		}
		out = append(out, Completion{
			Value:       conv.ID,
			Display:     display,
			Description: conv.Preview,
			Score:       score,
		})
	}

	sortCompletions(out)
	return out
}

func (c *Completer) completeFiles(partial string) []Completion {
	if c.FilesFn != nil {
		return c.listMatches(c.FilesFn(partial), partial)
	}
	return c.browseDir(partial)
}

// browseDir lists directory entries matching the typed path. Hidden
// entries only show when the prefix itself starts with a dot.
func (c *Completer) browseDir(partial string) []Completion {
	dir, prefix := splitBrowsePath(partial)

	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil
	}

	lower := strings.ToLower(prefix)
	showHidden := strings.HasPrefix(lower, ".")

	var out []Completion
	for _, entry := range entries {
		name := entry.Name()
		switch {
		case !strings.HasPrefix(strings.ToLower(name), lower):
			continue
		case strings.HasPrefix(name, ".") && !showHidden:
			continue
		}
		out = append(out, fileCompletion(dir, name, entry, lower))
	}

	sortCompletions(out)
	if len(out) > maxFileResults {
		out = out[:maxFileResults]
	}
	return out
}

// splitBrowsePath separates the typed path into the directory to list and
// the entry-name prefix to match.
func splitBrowsePath(partial string) (dir, prefix string) {
	if partial == "" {
		return ".", ""
	}
	if strings.HasSuffix(partial, string(os.PathSeparator)) {
		return partial, ""
	}
	return filepath.Dir(partial), filepath.Base(partial)
}

func fileCompletion(dir, name string, entry os.DirEntry, lower string) Completion {
	path := filepath.Join(dir, name)
	score := calculateScore(name, lower)
	desc := ""

	if entry.IsDir() {
		path += string(os.PathSeparator)
		score += dirBoost
		desc = "directory"
	} else if info, err := entry.Info(); err == nil {
		desc = formatFileSize(info.Size())
	}

	return Completion{Value: path, Display: name, Description: desc, Score: score}
}

// listMatches filters a plain value list by prefix.
func (c *Completer) listMatches(values []string, partial string) []Completion {
	lower := strings.ToLower(partial)

	var out []Completion
	for _, value := range values {
		if strings.HasPrefix(strings.ToLower(value), lower) {
			out = append(out, Completion{
				Value:   value,
				Display: value,
				Score:   calculateScore(value, lower),
			})
		}
	}

	sortCompletions(out)
	return out
}

// =============================================================================
// MENTIONS
// =============================================================================

// completeMention handles @file: references inside plain message text.
func (c *Completer) completeMention(input string) []Completion {
	lastAt := strings.LastIndex(input, "@")
	if lastAt == -1 {
		return nil
	}
	mention := input[lastAt:]

	if strings.HasPrefix(mention, "@file:") {
		pathPart := strings.Trim(strings.TrimPrefix(mention, "@file:"), "\"")
		files := c.completeFiles(pathPart)
		for i := range files {
			files[i].Value = "@file:" + files[i].Value
			files[i].Display = "@file:" + files[i].Display
		}
		return files
	}

	if strings.HasPrefix("@file:", strings.ToLower(mention)) {
		return []Completion{{
			Value:       "@file:",
			Display:     "@file:",
			Description: "Attach file content to the message",
			Score:       calculateScore("@file:", mention),
		}}
	}
	return nil
}

// =============================================================================
// RANKING
// =============================================================================

// calculateScore ranks a candidate against the typed partial. Exact and
// prefix matches rise above matchBase; among prefix matches, shorter
// candidates win.
func calculateScore(value, partial string) int {
	value = strings.ToLower(value)
	partial = strings.ToLower(partial)

	if value == partial {
		return matchBase + exactBonus
	}

	score := matchBase - len(value)/2
	if strings.HasPrefix(value, partial) {
		score += prefixBonus + 20 - len(value)
	}
	return score
}

// sortCompletions orders by score descending, ties alphabetically.
func sortCompletions(completions []Completion) {
	sort.Slice(completions, func(i, j int) bool {
		if completions[i].Score != completions[j].Score {
			return completions[i].Score > completions[j].Score
		}
		return completions[i].Value < completions[j].Value
	})
}

// truncate shortens a string to maxLen runes, ellipsis included.
func truncate(s string, maxLen int) string {
	runes := []rune(s)
	if len(runes) <= maxLen {
		return s
	}
	return string(runes[:maxLen-3]) + "..."
}

// formatFileSize renders a byte count as "1.5 KB" style, dropping the
// fraction when it is zero.
func formatFileSize(size int64) string {
	const unit = 1024

	if size < unit {
		return strconv.FormatInt(size, 10) + " B"
	}

	value := float64(size)
	for _, suffix := range []string{" KB", " MB", " GB"} {
		value /= unit
		if value < unit || suffix == " GB" {
			s := strconv.FormatFloat(value, 'f', 1, 64)
			return strings.TrimSuffix(s, ".0") + suffix
		}
	}
	return strconv.FormatInt(size, 10) + " B"
}

// =============================================================================
// NAVIGATION STATE
// =============================================================================

// CompletionState tracks the candidate list and selection for the input
// line, independent of how the strip renders it.
type CompletionState struct {
	OriginalInput string
	Completions   []Completion
	Selected      int
	Visible       bool
}

// NewCompletionState returns an empty state with nothing selected.
func NewCompletionState() *CompletionState {
	return &CompletionState{Selected: -1}
}

// Update replaces the candidates and auto-selects the first.
func (cs *CompletionState) Update(input string, completions []Completion) {
	cs.OriginalInput = input
	cs.Completions = completions
	cs.Selected = 0
	cs.Visible = len(completions) > 0
}

// Accept returns the selected value, falling back to the first candidate.
func (cs *CompletionState) Accept() string {
	if cs.Selected >= 0 && cs.Selected < len(cs.Completions) {
		return cs.Completions[cs.Selected].Value
	}
	if len(cs.Completions) > 0 {
		return cs.Completions[0].Value
	}
	return ""
}

// Clear resets the state.
func (cs *CompletionState) Clear() {
	cs.OriginalInput = ""
	cs.Completions = nil
	cs.Selected = -1
	cs.Visible = false
}
