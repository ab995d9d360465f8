// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package api

import "strings"

// Reasoning span markers emitted inline by thinking models.
const (
	thinkOpenTag  = "<think>"
	thinkCloseTag = "</think>"
)

// thinkState tracks which side of a <think> span the scanner is on.
type thinkState int

const (
	thinkOutside thinkState = iota
	thinkInside
)

// ThinkScanner separates <think>...</think> reasoning spans from visible
// text. Tags may arrive split across arbitrary chunk boundaries, so the
// scanner holds back any trailing bytes that could still become a tag.
//
// Reasoning is released as one emission per span, when its close tag
// arrives. A span whose close tag never arrives is dropped entirely at end
// of stream: it is neither visible nor reasoning.
type ThinkScanner struct {
	state thinkState
	// pending holds a trailing partial tag candidate awaiting more input
	pending string
	// reasoning accumulates inside-span text until the close tag
	reasoning strings.Builder
	// disabled passes everything through as visible text
	disabled bool
}

// NewThinkScanner returns a scanner. With disabled set, Feed returns every
// byte as visible text and never buffers.
func NewThinkScanner(disabled bool) *ThinkScanner {
	return &ThinkScanner{disabled: disabled}
}

// Inside reports whether the scanner is between an open and close tag.
func (s *ThinkScanner) Inside() bool {
	return s.state == thinkInside
}

// ThinkSegment is one run of scanner output. Segments preserve
// decoded-byte order: a reasoning span released by its close tag sorts
// before visible text whose bytes followed the tag.
type ThinkSegment struct {
	Reasoning bool
	Text      string
}

// Feed consumes one content delta and returns the segments ready to emit
// now, in decoded-byte order. The result may be empty: text can be held
// back while a possible tag straddles the chunk boundary or a span awaits
// its close.
func (s *ThinkScanner) Feed(chunk string) []ThinkSegment {
	if s.disabled {
		if chunk == "" {
			return nil
		}
		return []ThinkSegment{{Text: chunk}}
	}

	buf := s.pending + chunk
	s.pending = ""

	var segs []ThinkSegment
	for buf != "" {
		if s.state == thinkOutside {
			idx := strings.Index(buf, thinkOpenTag)
			if idx >= 0 {
				segs = appendSegment(segs, false, buf[:idx])
				buf = buf[idx+len(thinkOpenTag):]
				s.state = thinkInside
				continue
			}
			hold := partialTagSuffix(buf, thinkOpenTag)
			segs = appendSegment(segs, false, buf[:len(buf)-hold])
			s.pending = buf[len(buf)-hold:]
			break
		}

		// inside a span: buffer until the close tag arrives
		idx := strings.Index(buf, thinkCloseTag)
		if idx >= 0 {
			s.reasoning.WriteString(buf[:idx])
			segs = appendSegment(segs, true, s.reasoning.String())
			s.reasoning.Reset()
			buf = buf[idx+len(thinkCloseTag):]
			s.state = thinkOutside
			continue
		}
		hold := partialTagSuffix(buf, thinkCloseTag)
		s.reasoning.WriteString(buf[:len(buf)-hold])
		s.pending = buf[len(buf)-hold:]
		break
	}

	return segs
}

// appendSegment adds text to the segment list, merging runs of the same
// kind and dropping empty text.
func appendSegment(segs []ThinkSegment, reasoning bool, text string) []ThinkSegment {
	if text == "" {
		return segs
	}
	if n := len(segs); n > 0 && segs[n-1].Reasoning == reasoning {
		segs[n-1].Text += text
		return segs
	}
	return append(segs, ThinkSegment{Reasoning: reasoning, Text: text})
}

// Flush ends the stream. A held partial tag that never completed was plain
// text after all and is returned as visible. Text inside an unterminated
// span is discarded.
func (s *ThinkScanner) Flush() (visible string) {
	if s.state == thinkOutside {
		visible = s.pending
	}
	s.pending = ""
	s.reasoning.Reset()
	s.state = thinkOutside
	return visible
}

// partialTagSuffix returns the length of the longest suffix of s that is a
// proper prefix of tag. Those bytes might complete into the tag once more
// input arrives, so the caller must hold them back.
func partialTagSuffix(s, tag string) int {
	max := len(tag) - 1
	if len(s) < max {
		max = len(s)
	}
	for k := max; k > 0; k-- {
		if s[len(s)-k:] == tag[:k] {
			return k
		}
	}
	return 0
}

// extractThinkSpans strips every complete <think>...</think> span from a
// full (non-streamed) content string. Multiple spans join with a blank
// line. An unterminated trailing span is dropped from both outputs.
func extractThinkSpans(content string) (visible, reasoning string) {
	var vis strings.Builder
	var spans []string

	rest := content
	for {
		open := strings.Index(rest, thinkOpenTag)
		if open < 0 {
			vis.WriteString(rest)
			break
		}
		vis.WriteString(rest[:open])
		rest = rest[open+len(thinkOpenTag):]

		end := strings.Index(rest, thinkCloseTag)
		if end < 0 {
			// unterminated span: swallow the remainder
			break
		}
		if span := strings.TrimSpace(rest[:end]); span != "" {
			spans = append(spans, span)
		}
		rest = rest[end+len(thinkCloseTag):]
	}

	return vis.String(), strings.Join(spans, "\n\n")
}
