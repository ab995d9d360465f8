// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package components

import (
	"strings"
	"unicode"
)

// Scoring weights for FuzzyMatch. Prefix hits dominate, then word-boundary
// and consecutive hits, with a small nudge for matching case exactly.
const (
	fuzzyHit         = 1
	fuzzyConsecutive = 5
	fuzzyBoundary    = 7
	fuzzyPrefix      = 10
	fuzzyCaseMatch   = 2
	fuzzyLenPenalty  = 4
)

// FuzzyMatch scores query against target for the command palette. Every
// query rune must appear in target in order; matching is case-insensitive,
// with bonuses for consecutive runs, word boundaries, the first position,
// and exact-case hits. Longer targets lose a little so short names win
// ties. An empty query matches everything with score zero.
func FuzzyMatch(query, target string) (score int, matched bool) {
	if query == "" {
		return 0, true
	}

	qLower := []rune(strings.ToLower(query))
	tLower := []rune(strings.ToLower(target))
	if len(qLower) > len(tLower) {
		return 0, false
	}

	qOrig := []rune(query)
	tOrig := []rune(target)

	qi := 0
	prevHit := -1
	for ti := 0; ti < len(tLower) && qi < len(qLower); ti++ {
		if tLower[ti] != qLower[qi] {
			continue
		}

		hit := fuzzyHit
		if prevHit == ti-1 {
			hit += fuzzyConsecutive
		}
		if ti == 0 {
			hit += fuzzyPrefix
		}
		if isWordBoundary(tLower, ti) {
			hit += fuzzyBoundary
		}
		if ti < len(tOrig) && qi < len(qOrig) && tOrig[ti] == qOrig[qi] {
			hit += fuzzyCaseMatch
		}

		score += hit
		prevHit = ti
		qi++
	}

	matched = qi == len(qLower)
	if matched {
		score -= len(tLower) / fuzzyLenPenalty
	}
	return score, matched
}

// isWordBoundary reports whether pos starts a word: position zero, after a
// separator, or at a lower-to-upper case transition. The colon separator
// matters for model identifiers like "llama3.1:8b-instruct".
func isWordBoundary(runes []rune, pos int) bool {
	if pos == 0 {
		return true
	}
	if pos >= len(runes) {
		return false
	}

	switch runes[pos-1] {
	case ' ', '/', '-', '_', ':':
		return true
	}
	return unicode.IsLower(runes[pos-1]) && unicode.IsUpper(runes[pos])
}
