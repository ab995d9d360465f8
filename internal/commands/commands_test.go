// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package commands

import (
	"strings"
	"testing"
)

// =============================================================================
// PARSER HELPERS
// =============================================================================

func TestIsCommand(t *testing.T) {
	cases := []struct {
		input string
		want  bool
	}{
		{"/help", true},
		{"/model llama3", true},
		{"  /help", true},
		{"/", true},
		{"hello", false},
		{"hello /help", false},
		{"", false},
	}

	for _, tc := range cases {
		if got := IsCommand(tc.input); got != tc.want {
			t.Errorf("IsCommand(%q) = %v, want %v", tc.input, got, tc.want)
		}
	}
}

func TestExtractCommandName(t *testing.T) {
	cases := []struct {
		input string
		want  string
	}{
		{"/help", "/help"},
		{"/model llama3", "/model"},
		{"/save my-title", "/save"},
		{"  /help  ", "/help"},
		{"/", "/"},
		{"hello", ""},
	}

	for _, tc := range cases {
		if got := ExtractCommandName(tc.input); got != tc.want {
			t.Errorf("ExtractCommandName(%q) = %q, want %q", tc.input, got, tc.want)
		}
	}
}

func TestGetPartialCommand(t *testing.T) {
	cases := []struct {
		input string
		want  string
	}{
		{"/hel", "/hel"},
		{"/help", "/help"},
		{"/model ", ""},     // space after the name: command is complete
		{"/model llama3", ""}, // already has arguments
		{"hello", ""},
	}

	for _, tc := range cases {
		if got := GetPartialCommand(tc.input); got != tc.want {
			t.Errorf("GetPartialCommand(%q) = %q, want %q", tc.input, got, tc.want)
		}
	}
}

func TestGetPartialArg(t *testing.T) {
	cases := []struct {
		input    string
		wantIdx  int
		wantPart string
	}{
		{"/help", 0, ""},
		{"/model lla", 0, "lla"},
		{"/model llama3 ", 0, "llama3"}, // trailing space is trimmed first
		{"/save my title", 1, "title"},
	}

	for _, tc := range cases {
		gotIdx, gotPart := GetPartialArg(tc.input)
		if gotIdx != tc.wantIdx || gotPart != tc.wantPart {
			t.Errorf("GetPartialArg(%q) = (%d, %q), want (%d, %q)",
				tc.input, gotIdx, gotPart, tc.wantIdx, tc.wantPart)
		}
	}
}

func TestParseArgs(t *testing.T) {
	cases := []struct {
		input string
		want  []string
	}{
		{"/help", []string{"/help"}},
		{"/model llama3", []string{"/model", "llama3"}},
		{`/save "my title"`, []string{"/save", "my title"}},
		{`/save 'my title'`, []string{"/save", "my title"}},
		{"/config key value", []string{"/config", "key", "value"}},
		{`/export "file with spaces.md"`, []string{"/export", "file with spaces.md"}},
	}

	for _, tc := range cases {
		got := ParseArgs(tc.input)
		if len(got) != len(tc.want) {
			t.Errorf("ParseArgs(%q) = %v, want %v", tc.input, got, tc.want)
			continue
		}
		for i := range got {
			if got[i] != tc.want[i] {
				t.Errorf("ParseArgs(%q)[%d] = %q, want %q", tc.input, i, got[i], tc.want[i])
			}
		}
	}
}

// =============================================================================
// REGISTRY
// =============================================================================

func TestRegistryBuiltins(t *testing.T) {
	r := NewRegistry()

	essentials := []string{
		"/help", "/quit", "/new", "/open", "/save", "/list", "/clear",
		"/copy", "/export", "/search", "/retry", "/cancel",
		"/model", "/models", "/system", "/config", "/status",
	}
	for _, name := range essentials {
		cmd := r.Get(name)
		if cmd == nil {
			t.Errorf("builtin %s is not registered", name)
			continue
		}
		if cmd.Handler == nil {
			t.Errorf("builtin %s has no handler", name)
		}
	}
}

func TestRegistryAliases(t *testing.T) {
	r := NewRegistry()

	cases := []struct {
		alias string
		want  string
	}{
		{"/h", "/help"},
		{"/?", "/help"},
		{"/resume", "/open"},
		{"/m", "/model"},
		{"/ls", "/list"},
	}
	for _, tc := range cases {
		cmd := r.Get(tc.alias)
		if cmd == nil {
			t.Errorf("alias %s does not resolve", tc.alias)
			continue
		}
		if cmd.Name != tc.want {
			t.Errorf("alias %s resolves to %s, want %s", tc.alias, cmd.Name, tc.want)
		}
	}

	if r.Get("/nonexistent") != nil {
		t.Error("unknown name should resolve to nil")
	}
}

func TestRegistryRegister(t *testing.T) {
	r := NewRegistry()
	r.Register(&Command{Name: "/test", Aliases: []string{"/t"}})

	if r.Get("/test") == nil || r.Get("/t") == nil {
		t.Error("registered command should resolve by name and alias")
	}

	var found bool
	for _, cmd := range r.All() {
		if cmd.Name == "/test" {
			found = true
		}
	}
	if !found {
		t.Error("All() should include registered commands")
	}
}

func TestRegistryByCategory(t *testing.T) {
	r := NewRegistry()
	groups := r.ByCategory()

	for _, cat := range []string{"Navigation", "Conversation", "Model", "Settings"} {
		if len(groups[cat]) == 0 {
			t.Errorf("category %q should have commands", cat)
		}
	}

	for cat, cmds := range groups {
		for _, cmd := range cmds {
			if cmd.Hidden {
				t.Errorf("hidden command %s leaked into category %q", cmd.Name, cat)
			}
		}
	}

	// Uncategorized commands land under General
	r.Register(&Command{Name: "/stray"})
	groups = r.ByCategory()
	var found bool
	for _, cmd := range groups["General"] {
		if cmd.Name == "/stray" {
			found = true
		}
	}
	if !found {
		t.Error("commands without a category should group under General")
	}
}

// =============================================================================
// PARSER
// =============================================================================

func TestParserParse(t *testing.T) {
	p := NewParser(NewRegistry())

	cases := []struct {
		input     string
		isCommand bool
		cmdName   string
		argsLen   int
	}{
		{"/help", true, "/help", 0},
		{"/model llama3", true, "/model", 1},
		{`/save "my title"`, true, "/save", 1},
		{"/nonexistent", true, "/nonexistent", 0},
		{"hello world", false, "", 0},
	}

	for _, tc := range cases {
		result := p.Parse(tc.input)
		if result.IsCommand != tc.isCommand {
			t.Errorf("Parse(%q).IsCommand = %v, want %v", tc.input, result.IsCommand, tc.isCommand)
		}
		if result.CommandName != tc.cmdName {
			t.Errorf("Parse(%q).CommandName = %q, want %q", tc.input, result.CommandName, tc.cmdName)
		}
		if len(result.Args) != tc.argsLen {
			t.Errorf("Parse(%q) args = %d, want %d", tc.input, len(result.Args), tc.argsLen)
		}
	}
}

func TestParserResolvesAliases(t *testing.T) {
	p := NewParser(NewRegistry())

	if p.Parse("/help").Command == nil {
		t.Error("Parse(/help) should resolve the command")
	}
	if p.Parse("/h").Command == nil {
		t.Error("Parse(/h) should resolve through the alias")
	}
	if p.Parse("/nonexistent").Command != nil {
		t.Error("Parse of an unknown command should leave Command nil")
	}
}

// =============================================================================
// VALIDATION
// =============================================================================

func TestValidateArgsRequired(t *testing.T) {
	cmd := &Command{
		Name: "/test",
		Args: []ArgDef{{Name: "target", Required: true}},
	}

	if err := ValidateArgs(cmd, nil); err == nil {
		t.Error("missing required argument should fail validation")
	}
	if err := ValidateArgs(cmd, []string{"value"}); err != nil {
		t.Errorf("provided required argument should pass: %v", err)
	}
	if err := ValidateArgs(nil, []string{"anything"}); err != nil {
		t.Errorf("nil command should pass: %v", err)
	}
}

func TestValidateArgsEnum(t *testing.T) {
	cmd := &Command{
		Name: "/export",
		Args: []ArgDef{{
			Name:     "format",
			Required: true,
			Type:     ArgTypeEnum,
			Values:   []string{"md", "markdown", "json"},
		}},
	}

	if err := ValidateArgs(cmd, []string{"json"}); err != nil {
		t.Errorf("valid enum value should pass: %v", err)
	}
	if err := ValidateArgs(cmd, []string{"JSON"}); err != nil {
		t.Errorf("enum matching should be case-insensitive: %v", err)
	}
	if err := ValidateArgs(cmd, []string{"xml"}); err == nil {
		t.Error("invalid enum value should fail validation")
	}
}

func TestValidationErrorMessage(t *testing.T) {
	err := &ValidationError{
		Command:  "/test",
		Arg:      "format",
		Message:  "invalid value",
		Got:      "xml",
		Expected: "md, json",
	}

	msg := err.Error()
	for _, want := range []string{"/test", "format", "invalid value", "xml", "md, json"} {
		if !strings.Contains(msg, want) {
			t.Errorf("Error() missing %q: %s", want, msg)
		}
	}
}

// =============================================================================
// CONTEXT
// =============================================================================

func TestContextNilServices(t *testing.T) {
	ctx := NewContext(nil, nil, nil, nil, nil)
	if ctx == nil {
		t.Fatal("NewContext() returned nil")
	}

	// Nil session: the convenience methods are no-ops, not panics
	ctx.RecordActivity()
	ctx.MarkDirty()
}

func TestContextWithHandlerContext(t *testing.T) {
	ctx := NewContext(nil, nil, nil, nil, nil)
	hctx := &HandlerContext{}

	if ctx.WithHandlerContext(hctx) != ctx {
		t.Error("WithHandlerContext should return the same context for chaining")
	}
	if ctx.HandlerCtx != hctx {
		t.Error("HandlerCtx should be attached")
	}
}
