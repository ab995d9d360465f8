// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package commands

import (
	"strings"
	"testing"
)

func newTestCompleter() *Completer {
	registry := NewRegistry()
	registry.Register(&Command{Name: "/help", Description: "Show help"})
	registry.Register(&Command{Name: "/history", Description: "Show history"})
	registry.Register(&Command{
		Name:        "/model",
		Aliases:     []string{"/m"},
		Description: "Switch model",
		Args:        []ArgDef{{Name: "model", Type: ArgTypeModel, Required: true}},
	})
	return NewCompleter(registry)
}

func TestCompleteCommandNames(t *testing.T) {
	completer := newTestCompleter()

	cases := []struct {
		name    string
		input   string
		wantMin int
	}{
		{"all commands after slash", "/", 3},
		{"narrowed by prefix", "/h", 2},
		{"no match", "/xyz", 0},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := completer.Complete(tc.input, len(tc.input))
			if len(got) < tc.wantMin {
				t.Errorf("Complete(%q) = %d candidates, want at least %d", tc.input, len(got), tc.wantMin)
			}
			for _, comp := range got {
				if !strings.HasPrefix(strings.ToLower(comp.Value), strings.ToLower(tc.input)) {
					t.Errorf("candidate %q does not extend %q", comp.Value, tc.input)
				}
			}
		})
	}
}

func TestCompleteAliasesPointAtCommand(t *testing.T) {
	completer := newTestCompleter()

	got := completer.Complete("/m", 2)
	var found bool
	for _, comp := range got {
		if comp.Value == "/m" {
			found = true
			if !strings.Contains(comp.Display, "-> /model") {
				t.Errorf("alias display = %q, should point at /model", comp.Display)
			}
		}
	}
	if !found {
		t.Error("alias /m should be offered")
	}
}

func TestCompleteModelArgument(t *testing.T) {
	completer := newTestCompleter()
	completer.ModelsFn = func() []string {
		return []string{"qwen2.5-coder:14b", "llama3.1:8b"}
	}
	completer.CurrentModelFn = func() string { return "llama3.1:8b" }

	got := completer.Complete("/model ", 7)
	if len(got) != 2 {
		t.Fatalf("Complete() = %d candidates, want 2", len(got))
	}
	for _, comp := range got {
		if comp.Value == "llama3.1:8b" && !comp.IsCurrent {
			t.Error("the active model should be flagged current")
		}
		if comp.Value != "llama3.1:8b" && comp.IsCurrent {
			t.Errorf("%q should not be flagged current", comp.Value)
		}
	}

	got = completer.Complete("/model q", 8)
	if len(got) != 1 || got[0].Value != "qwen2.5-coder:14b" {
		t.Errorf("Complete(/model q) = %+v, want the qwen model only", got)
	}
}

func TestCompleteConversationArgument(t *testing.T) {
	registry := NewRegistry()
	registry.Register(&Command{
		Name: "/open",
		Args: []ArgDef{{Name: "conversation", Type: ArgTypeConversation}},
	})
	completer := NewCompleter(registry)
	completer.ConversationsFn = func() []ConversationInfo {
		return []ConversationInfo{
			{ID: "abc123", Title: "Debugging the parser", Preview: "why does this fail"},
			{ID: "def456", Title: "Trip planning", Preview: "three days in Lisbon"},
		}
	}

	// By ID prefix
	got := completer.Complete("/open abc", 9)
	if len(got) != 1 || got[0].Value != "abc123" {
		t.Fatalf("ID prefix match = %+v, want abc123", got)
	}
	if !strings.Contains(got[0].Display, "Debugging") {
		t.Errorf("display %q should carry the title", got[0].Display)
	}

	// By title substring
	got = completer.Complete("/open trip", 10)
	if len(got) != 1 || got[0].Value != "def456" {
		t.Errorf("title match = %+v, want def456", got)
	}
}

func TestCompleteMentions(t *testing.T) {
	completer := newTestCompleter()
	completer.FilesFn = func(prefix string) []string { return nil }

	cases := []struct {
		input string
		want  int
	}{
		{"@", 1},       // offers @file:
		{"@f", 1},      // still typing the prefix
		{"@file:", 0},  // FilesFn returns nothing
		{"hello o", 0}, // plain text, no mention
	}

	for _, tc := range cases {
		got := completer.Complete(tc.input, len(tc.input))
		if len(got) != tc.want {
			t.Errorf("Complete(%q) = %d candidates, want %d", tc.input, len(got), tc.want)
		}
	}
}

func TestCompleteMentionPrependsPrefix(t *testing.T) {
	completer := newTestCompleter()
	completer.FilesFn = func(prefix string) []string {
		return []string{"notes.md"}
	}

	got := completer.Complete("look at @file:no", 16)
	if len(got) != 1 {
		t.Fatalf("Complete() = %d candidates, want 1", len(got))
	}
	if got[0].Value != "@file:notes.md" {
		t.Errorf("value = %q, want the @file: prefix restored", got[0].Value)
	}
}

func TestCalculateScoreOrdering(t *testing.T) {
	exact := calculateScore("help", "help")
	prefix := calculateScore("help", "hel")
	miss := calculateScore("help", "xyz")

	if exact <= prefix {
		t.Errorf("exact (%d) should outrank prefix (%d)", exact, prefix)
	}
	if prefix <= miss {
		t.Errorf("prefix (%d) should outrank miss (%d)", prefix, miss)
	}
	if miss > matchBase {
		t.Errorf("miss (%d) should not exceed the base score", miss)
	}

	// Among prefix matches, shorter candidates rank higher
	short := calculateScore("/model", "/mo")
	long := calculateScore("/models-all", "/mo")
	if short <= long {
		t.Errorf("shorter candidate (%d) should outrank longer (%d)", short, long)
	}
}

func TestSortCompletionsStable(t *testing.T) {
	comps := []Completion{
		{Value: "b", Score: 50},
		{Value: "a", Score: 50},
		{Value: "c", Score: 150},
	}
	sortCompletions(comps)

	want := []string{"c", "a", "b"}
	for i, w := range want {
		if comps[i].Value != w {
			t.Errorf("position %d = %q, want %q", i, comps[i].Value, w)
		}
	}
}

func TestTruncate(t *testing.T) {
	cases := []struct {
		in     string
		maxLen int
		want   string
	}{
		{"hello", 10, "hello"},
		{"hello", 5, "hello"},
		{"hello world", 8, "hello..."},
		{"你好世界", 4, "你好世界"},
		{"你好世界!", 4, "你..."},
	}

	for _, tc := range cases {
		if got := truncate(tc.in, tc.maxLen); got != tc.want {
			t.Errorf("truncate(%q, %d) = %q, want %q", tc.in, tc.maxLen, got, tc.want)
		}
	}
}

func TestFormatFileSize(t *testing.T) {
	cases := []struct {
		size int64
		want string
	}{
		{0, "0 B"},
		{100, "100 B"},
		{1024, "1 KB"},
		{1536, "1.5 KB"},
		{1024 * 1024, "1 MB"},
		{1024 * 1024 * 1024, "1 GB"},
	}

	for _, tc := range cases {
		if got := formatFileSize(tc.size); got != tc.want {
			t.Errorf("formatFileSize(%d) = %q, want %q", tc.size, got, tc.want)
		}
	}
}

func TestCompletionStateLifecycle(t *testing.T) {
	cs := NewCompletionState()
	if cs.Visible {
		t.Error("fresh state should not be visible")
	}
	if cs.Accept() != "" {
		t.Error("Accept() on empty state should return nothing")
	}

	cs.Update("/he", []Completion{{Value: "/help"}, {Value: "/history"}})
	if !cs.Visible {
		t.Error("state should be visible after Update")
	}
	if cs.Selected != 0 {
		t.Errorf("Selected = %d, want auto-select of 0", cs.Selected)
	}
	if cs.Accept() != "/help" {
		t.Errorf("Accept() = %q, want the selected value", cs.Accept())
	}

	cs.Selected = 1
	if cs.Accept() != "/history" {
		t.Errorf("Accept() = %q after moving selection", cs.Accept())
	}

	cs.Clear()
	if cs.Visible || cs.Completions != nil || cs.Selected != -1 {
		t.Error("Clear() should fully reset the state")
	}
}
