// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package components

import (
	"math"

	"github.com/jeranaias/rigchat/internal/util"
)

// Small formatting helpers shared across the components.

func toStr(n int) string {
	return util.IntToString(n)
}

// fmtNumber groups digits with thousand separators: 1234567 -> "1,234,567".
func fmtNumber(n int) string {
	if n < 0 {
		if n == math.MinInt {
			// -MinInt overflows, so group its digits directly.
			return "-" + groupDigits(util.IntToString(n)[1:])
		}
		return "-" + fmtNumber(-n)
	}
	return groupDigits(toStr(n))
}

// groupDigits inserts commas into a plain digit string.
func groupDigits(s string) string {
	if len(s) <= 3 {
		return s
	}
	head := len(s) % 3
	if head == 0 {
		head = 3
	}
	out := s[:head]
	for i := head; i < len(s); i += 3 {
		out += "," + s[i:i+3]
	}
	return out
}

// fmtPercent renders a percentage with one decimal place.
func fmtPercent(p float64) string {
	return util.FloatToStringPrec(p, 1) + "%"
}

// truncateString caps a string at maxLen runes, ellipsis included.
func truncateString(s string, maxLen int) string {
	return util.TruncateRunes(s, maxLen)
}
