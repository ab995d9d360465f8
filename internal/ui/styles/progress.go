// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package styles

import "strings"

// Progress bar glyphs, ASCII-only so the gauge renders everywhere. The
// partial glyphs grade the boundary cell by how full it is.
const (
	progressFull  = "#"
	progressEmpty = "-"
)

var progressPartial = []string{".", ":", "+", "#", "#", "#", "#"}

// RenderProgressBar renders a fixed-width gauge for the context meter and
// prompt-processing display. percent is clamped to [0, 100].
func RenderProgressBar(width int, percent float64) string {
	if width <= 0 {
		return ""
	}
	if percent < 0 {
		percent = 0
	} else if percent > 100 {
		percent = 100
	}

	cells := float64(width) * percent / 100
	filled := int(cells)
	frac := cells - float64(filled)

	var b strings.Builder
	b.Grow(width)

	for i := 0; i < filled && i < width; i++ {
		b.WriteString(progressFull)
	}
	if filled < width {
		if idx := int(frac * float64(len(progressPartial))); idx > 0 {
			b.WriteString(progressPartial[idx-1])
			filled++
		}
	}
	for i := filled; i < width; i++ {
		b.WriteString(progressEmpty)
	}

	return b.String()
}
