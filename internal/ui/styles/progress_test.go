// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package styles

import (
	"strings"
	"testing"
)

func TestRenderProgressBarWidth(t *testing.T) {
	for _, width := range []int{1, 5, 10, 40} {
		for _, percent := range []float64{0, 13.7, 50, 99.9, 100} {
			bar := RenderProgressBar(width, percent)
			if len(bar) != width {
				t.Errorf("width %d at %.1f%%: rendered %d cells (%q)", width, percent, len(bar), bar)
			}
		}
	}
}

func TestRenderProgressBarEndpoints(t *testing.T) {
	if got := RenderProgressBar(8, 0); got != strings.Repeat(progressEmpty, 8) {
		t.Errorf("0%% = %q, want all empty", got)
	}
	if got := RenderProgressBar(8, 100); got != strings.Repeat(progressFull, 8) {
		t.Errorf("100%% = %q, want all full", got)
	}
}

func TestRenderProgressBarClampsPercent(t *testing.T) {
	if got := RenderProgressBar(6, -20); got != RenderProgressBar(6, 0) {
		t.Errorf("negative percent = %q, want clamp to 0", got)
	}
	if got := RenderProgressBar(6, 250); got != RenderProgressBar(6, 100) {
		t.Errorf("over-100 percent = %q, want clamp to 100", got)
	}
}

func TestRenderProgressBarInvalidWidth(t *testing.T) {
	if got := RenderProgressBar(0, 50); got != "" {
		t.Errorf("zero width = %q, want empty", got)
	}
	if got := RenderProgressBar(-3, 50); got != "" {
		t.Errorf("negative width = %q, want empty", got)
	}
}

// The fill never shrinks as percent grows.
func TestRenderProgressBarMonotonic(t *testing.T) {
	width := 20
	prev := 0
	for p := 0; p <= 100; p += 5 {
		bar := RenderProgressBar(width, float64(p))
		full := strings.Count(bar, progressFull)
		if full < prev {
			t.Fatalf("fill shrank from %d to %d at %d%%", prev, full, p)
		}
		prev = full
	}
}
