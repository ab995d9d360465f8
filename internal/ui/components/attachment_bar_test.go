// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package components

import (
	"strings"
	"testing"

	"github.com/jeranaias/rigchat/internal/model"
)

// =============================================================================
// PENDING ATTACHMENTS TESTS
// =============================================================================

func TestPendingAttachmentsAdd(t *testing.T) {
	pa := NewPendingAttachments()

	pa.Add(AttachmentItem{Kind: model.AttachmentImage, Path: "/tmp/a.png", DisplayName: "a.png", Tokens: 1200})
	pa.Add(AttachmentItem{Kind: model.AttachmentDocument, Path: "/tmp/b.md", DisplayName: "b.md", Tokens: 300})

	if len(pa.Items) != 2 {
		t.Errorf("Add() items = %d, want 2", len(pa.Items))
	}
	if pa.TotalTokens != 1500 {
		t.Errorf("Add() TotalTokens = %d, want 1500", pa.TotalTokens)
	}
}

func TestPendingAttachmentsAddDuplicate(t *testing.T) {
	pa := NewPendingAttachments()
	item := AttachmentItem{Kind: model.AttachmentImage, Path: "/tmp/a.png", DisplayName: "a.png", Tokens: 1200}

	pa.Add(item)
	pa.Add(item) // Same file again

	if len(pa.Items) != 1 {
		t.Errorf("Add() duplicate items = %d, want 1", len(pa.Items))
	}
	if pa.TotalTokens != 1200 {
		t.Errorf("Add() duplicate TotalTokens = %d, want 1200", pa.TotalTokens)
	}
}

func TestPendingAttachmentsRemove(t *testing.T) {
	pa := NewPendingAttachments()
	pa.Add(AttachmentItem{Kind: model.AttachmentImage, Path: "/tmp/a.png", DisplayName: "a.png", Tokens: 1000})
	pa.Add(AttachmentItem{Kind: model.AttachmentDocument, Path: "/tmp/b.md", DisplayName: "b.md", Tokens: 500})

	pa.Remove(0)

	if len(pa.Items) != 1 {
		t.Errorf("Remove() items = %d, want 1", len(pa.Items))
	}
	if pa.Items[0].DisplayName != "b.md" {
		t.Errorf("Remove() remaining item = %q, want %q", pa.Items[0].DisplayName, "b.md")
	}
	if pa.TotalTokens != 500 {
		t.Errorf("Remove() TotalTokens = %d, want 500", pa.TotalTokens)
	}

	// Out-of-range indexes are ignored
	pa.Remove(-1)
	pa.Remove(10)
	if len(pa.Items) != 1 {
		t.Error("Remove() with bad index should not change items")
	}
}

func TestPendingAttachmentsClear(t *testing.T) {
	pa := NewPendingAttachments()
	pa.Add(AttachmentItem{Kind: model.AttachmentImage, Path: "/tmp/a.png", DisplayName: "a.png", Tokens: 1000})

	pa.Clear()

	if pa.HasItems() {
		t.Error("Clear() should remove all items")
	}
	if pa.TotalTokens != 0 {
		t.Errorf("Clear() TotalTokens = %d, want 0", pa.TotalTokens)
	}
}

func TestItemFromAttachment(t *testing.T) {
	att := model.NewImageAttachment("photos/vacation/beach.png", "image/png", make([]byte, 4096))
	item := ItemFromAttachment(att, "photos/vacation/beach.png")

	if item.Kind != model.AttachmentImage {
		t.Errorf("ItemFromAttachment() Kind = %v, want %v", item.Kind, model.AttachmentImage)
	}
	if item.DisplayName != "beach.png" {
		t.Errorf("ItemFromAttachment() DisplayName = %q, want %q", item.DisplayName, "beach.png")
	}
	if item.Tokens != att.EstimateTokens() {
		t.Errorf("ItemFromAttachment() Tokens = %d, want %d", item.Tokens, att.EstimateTokens())
	}
}

// =============================================================================
// ATTACHMENT BAR TESTS
// =============================================================================

func TestAttachmentBarRenderCompactEmpty(t *testing.T) {
	ab := NewAttachmentBar()

	if got := ab.RenderCompact(); got != "" {
		t.Errorf("RenderCompact() with no items = %q, want empty", got)
	}
}

func TestAttachmentBarRenderCompact(t *testing.T) {
	ab := NewAttachmentBar()
	ab.SetWidth(120)

	pending := NewPendingAttachments()
	pending.Add(AttachmentItem{Kind: model.AttachmentImage, Path: "/tmp/a.png", DisplayName: "a.png", Tokens: 1200})
	pending.Add(AttachmentItem{Kind: model.AttachmentDocument, Path: "/tmp/b.md", DisplayName: "b.md", Tokens: 300})
	ab.SetPending(pending)

	view := ab.RenderCompact()

	for _, want := range []string{"Attached:", "[IMG]", "a.png", "[DOC]", "b.md", "Total:"} {
		if !strings.Contains(view, want) {
			t.Errorf("RenderCompact() should contain %q, got %q", want, view)
		}
	}
}

func TestAttachmentBarRenderCompactOverflow(t *testing.T) {
	ab := NewAttachmentBar()
	ab.SetWidth(120)

	pending := NewPendingAttachments()
	for i := 0; i < 5; i++ {
		pending.Add(AttachmentItem{
			Kind:        model.AttachmentDocument,
			Path:        "/tmp/file" + toStr(i) + ".md",
			DisplayName: "file" + toStr(i) + ".md",
			Tokens:      100,
		})
	}
	ab.SetPending(pending)

	view := ab.RenderCompact()
	if !strings.Contains(view, "+2 more") {
		t.Errorf("RenderCompact() should indicate overflow, got %q", view)
	}
}

func TestAttachmentBarRenderCompactNarrowWidth(t *testing.T) {
	ab := NewAttachmentBar()
	ab.SetWidth(30)

	pending := NewPendingAttachments()
	pending.Add(AttachmentItem{Kind: model.AttachmentImage, Path: "/tmp/very-long-image-name.png", DisplayName: "very-long-image-name.png", Tokens: 5000})
	ab.SetPending(pending)

	view := ab.RenderCompact()
	if view == "" {
		t.Error("RenderCompact() should render something on narrow widths")
	}
}

func TestAttachmentBarRenderInline(t *testing.T) {
	ab := NewAttachmentBar()

	pending := NewPendingAttachments()
	pending.Add(AttachmentItem{Kind: model.AttachmentAudio, Path: "/tmp/memo.wav", DisplayName: "memo.wav", Tokens: 800})
	ab.SetPending(pending)

	view := ab.RenderInline()
	if !strings.Contains(view, "[AUD]") || !strings.Contains(view, "memo.wav") {
		t.Errorf("RenderInline() = %q, should contain icon and name", view)
	}
}

func TestAttachmentBarRenderExpanded(t *testing.T) {
	ab := NewAttachmentBar()
	ab.SetWidth(80)

	// Empty state
	view := ab.RenderExpanded()
	if !strings.Contains(view, "No attachments staged") {
		t.Errorf("RenderExpanded() empty = %q", view)
	}

	pending := NewPendingAttachments()
	pending.Add(AttachmentItem{Kind: model.AttachmentImage, Path: "/tmp/a.png", DisplayName: "a.png", Tokens: 1200})
	ab.SetPending(pending)

	view = ab.RenderExpanded()
	for _, want := range []string{"Attachments", "a.png", "[x]", "Total:"} {
		if !strings.Contains(view, want) {
			t.Errorf("RenderExpanded() should contain %q", want)
		}
	}
}

// =============================================================================
// HELPER TESTS
// =============================================================================

func TestAttachmentIcon(t *testing.T) {
	tests := []struct {
		kind model.AttachmentKind
		want string
	}{
		{model.AttachmentImage, "[IMG]"},
		{model.AttachmentAudio, "[AUD]"},
		{model.AttachmentDocument, "[DOC]"},
		{model.AttachmentKind("other"), "[?]"},
	}

	for _, tc := range tests {
		if got := attachmentIcon(tc.kind); got != tc.want {
			t.Errorf("attachmentIcon(%q) = %q, want %q", tc.kind, got, tc.want)
		}
	}
}

func TestFormatTokenCount(t *testing.T) {
	tests := []struct {
		tokens int
		want   string
	}{
		{0, "0 tok"},
		{500, "500 tok"},
		{999, "999 tok"},
		{2500, "2.5k tok"},
		{9999, "10.0k tok"},
		{25000, "25k tok"},
	}

	for _, tc := range tests {
		if got := formatTokenCount(tc.tokens); got != tc.want {
			t.Errorf("formatTokenCount(%d) = %q, want %q", tc.tokens, got, tc.want)
		}
	}
}

func TestPadRight(t *testing.T) {
	tests := []struct {
		input  string
		length int
		want   string
	}{
		{"abc", 5, "abc  "},
		{"abcdef", 3, "abc"},
		{"", 3, "   "},
	}

	for _, tc := range tests {
		if got := padRight(tc.input, tc.length); got != tc.want {
			t.Errorf("padRight(%q, %d) = %q, want %q", tc.input, tc.length, got, tc.want)
		}
	}
}
