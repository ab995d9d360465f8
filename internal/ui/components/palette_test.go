// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package components

import (
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/jeranaias/rigchat/internal/commands"
	"github.com/jeranaias/rigchat/internal/ui/styles"
)

func newTestPalette(t *testing.T) *CommandPalette {
	t.Helper()
	return NewCommandPalette(commands.NewRegistry(), styles.NewTheme())
}

func typeRunes(cp *CommandPalette, text string) *CommandPalette {
	for _, r := range text {
		cp, _ = cp.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{r}})
	}
	return cp
}

func TestPaletteStartsHidden(t *testing.T) {
	cp := newTestPalette(t)

	if cp.IsVisible() {
		t.Error("palette should start hidden")
	}
	if cp.View() != "" {
		t.Error("hidden palette should render nothing")
	}
}

func TestPaletteShowResetsState(t *testing.T) {
	cp := newTestPalette(t)
	cp.Show()
	cp = typeRunes(cp, "mod")
	cp.moveSelection(1)

	cp.Show()
	if cp.input.Value() != "" {
		t.Errorf("Show() should clear the filter, got %q", cp.input.Value())
	}
	if cp.selected != 0 {
		t.Errorf("Show() should reset selection, got %d", cp.selected)
	}
	if !cp.IsVisible() {
		t.Error("Show() should make the palette visible")
	}
}

func TestPaletteEscapeHides(t *testing.T) {
	cp := newTestPalette(t)
	cp.Show()

	cp, _ = cp.Update(tea.KeyMsg{Type: tea.KeyEsc})
	if cp.IsVisible() {
		t.Error("esc should hide the palette")
	}
}

func TestPaletteIgnoresInputWhileHidden(t *testing.T) {
	cp := newTestPalette(t)

	cp, cmd := cp.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'x'}})
	if cmd != nil {
		t.Error("hidden palette should not produce commands")
	}
	if cp.input.Value() != "" {
		t.Error("hidden palette should not accept input")
	}
}

func TestPaletteFiltering(t *testing.T) {
	cp := newTestPalette(t)
	cp.Show()
	all := len(cp.matches)
	if all == 0 {
		t.Fatal("empty filter should list every command")
	}

	cp = typeRunes(cp, "model")
	if len(cp.matches) == 0 || len(cp.matches) >= all {
		t.Fatalf("filter should narrow the list: %d of %d", len(cp.matches), all)
	}
	if name := cp.matches[0].command.Name; name != "/model" && name != "/models" {
		t.Errorf("top match = %q, want /model or /models", name)
	}
}

func TestPaletteNoMatches(t *testing.T) {
	cp := newTestPalette(t)
	cp.Show()
	cp = typeRunes(cp, "zzqqxx")

	if len(cp.matches) != 0 {
		t.Fatalf("expected no matches, got %d", len(cp.matches))
	}
	if !strings.Contains(cp.View(), "No matching commands") {
		t.Error("View() should show the empty-state line")
	}
}

func TestPaletteSelectionWraps(t *testing.T) {
	cp := newTestPalette(t)
	cp.Show()
	n := len(cp.matches)
	if n < 2 {
		t.Fatal("need at least two commands")
	}

	cp.moveSelection(-1)
	if cp.selected != n-1 {
		t.Errorf("up from top = %d, want %d", cp.selected, n-1)
	}
	cp.moveSelection(1)
	if cp.selected != 0 {
		t.Errorf("down from bottom = %d, want 0", cp.selected)
	}
}

func TestPaletteEnterEmitsExecuteCommand(t *testing.T) {
	cp := newTestPalette(t)
	cp.Show()
	cp = typeRunes(cp, "help")
	if len(cp.matches) == 0 {
		t.Fatal("expected a match for help")
	}
	want := cp.matches[0].command

	cp, cmd := cp.Update(tea.KeyMsg{Type: tea.KeyEnter})
	if cmd == nil {
		t.Fatal("enter should return a command")
	}
	msg, ok := cmd().(ExecuteCommandMsg)
	if !ok {
		t.Fatalf("enter produced %T, want ExecuteCommandMsg", cmd())
	}
	if msg.Command != want {
		t.Errorf("executed %q, want %q", msg.Command.Name, want.Name)
	}
	if cp.IsVisible() {
		t.Error("selection should close the palette")
	}
}

func TestPaletteRecentCommandsRankFirst(t *testing.T) {
	cp := newTestPalette(t)
	cp.rememberRecent("/export")

	cp.Show()
	if got := cp.matches[0].command.Name; got != "/export" {
		t.Errorf("top of empty-filter list = %q, want /export", got)
	}
}

func TestPaletteRecentBoostDuringFilter(t *testing.T) {
	cp := newTestPalette(t)
	cp.Show()
	cp = typeRunes(cp, "s")
	if len(cp.matches) < 2 {
		t.Fatal("need several matches for a single-letter filter")
	}
	last := cp.matches[len(cp.matches)-1].command.Name

	cp.rememberRecent(last)
	cp.refilter()
	if got := cp.matches[0].command.Name; got != last {
		t.Errorf("recent command %q should rank first, got %q", last, got)
	}
}

func TestPaletteRecentListBounded(t *testing.T) {
	cp := newTestPalette(t)
	for i := 0; i < paletteMaxRecent+5; i++ {
		cp.rememberRecent("/cmd" + toStr(i))
	}
	if len(cp.recent) != paletteMaxRecent {
		t.Errorf("recent list length = %d, want %d", len(cp.recent), paletteMaxRecent)
	}
	if cp.recent[0] != "/cmd"+toStr(paletteMaxRecent+4) {
		t.Errorf("most recent entry = %q", cp.recent[0])
	}
}

func TestPaletteViewListsCommands(t *testing.T) {
	cp := newTestPalette(t)
	cp.SetSize(100, 40)
	cp.Show()
	cp = typeRunes(cp, "help")

	view := cp.View()
	if !strings.Contains(view, "/help") {
		t.Error("View() should list the matching command")
	}
	if !strings.Contains(view, "Commands") {
		t.Error("View() should include the header")
	}
}
