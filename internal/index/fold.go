// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package index provides a SQLite search index over saved conversations.
package index

import (
	"strings"
	"unicode"

	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// FoldText lowercases text and strips diacritics so that matching is
// insensitive to case and accents. The same folding runs over indexed
// text and over queries, so "Café" and "cafe" land on the same terms.
func FoldText(s string) string {
	// Decompose to NFKD so accents become separate combining marks
	t := transform.Chain(norm.NFKD)
	normalized, _, err := transform.String(t, s)
	if err != nil {
		normalized = s // Fallback to original on error
	}

	// Drop combining marks (Unicode category Mn)
	var b strings.Builder
	b.Grow(len(normalized))
	for _, r := range normalized {
		if unicode.Is(unicode.Mn, r) {
			continue
		}
		b.WriteRune(r)
	}

	return strings.ToLower(b.String())
}

// foldTerms folds a query and splits it into individual search terms.
func foldTerms(query string) []string {
	return strings.Fields(FoldText(query))
}
