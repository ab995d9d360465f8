// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package components

import (
	"strings"

	"github.com/alecthomas/chroma/v2"
	"github.com/alecthomas/chroma/v2/formatters"
	"github.com/alecthomas/chroma/v2/lexers"
	chromaStyles "github.com/alecthomas/chroma/v2/styles"
	"github.com/charmbracelet/lipgloss"

	"github.com/jeranaias/rigchat/internal/ui/styles"
)

// minBlockWidth is the floor for the rendered container so narrow
// terminals still get a usable block.
const minBlockWidth = 20

// =============================================================================
// CODE BLOCK
// =============================================================================

// CodeBlock renders a fenced code snippet with Chroma syntax highlighting,
// line numbers, and a language badge. The chat view feeds it one fence at
// a time while splitting assistant markdown.
type CodeBlock struct {
	language string
	code     string
	maxWidth int
}

// NewCodeBlock creates a block for the given fence language and body. An
// empty language triggers content-based detection at render time.
func NewCodeBlock(language, code string) CodeBlock {
	return CodeBlock{
		language: language,
		code:     code,
		maxWidth: 80,
	}
}

// SetMaxWidth caps the rendered width, normally the message column width.
func (c *CodeBlock) SetMaxWidth(width int) {
	c.maxWidth = width
}

// Render produces the styled block: optional language badge on top, then
// numbered, highlighted source lines inside a rounded border.
func (c CodeBlock) Render() string {
	code := strings.TrimSpace(c.code)

	language := c.language
	if language == "" {
		language = detectLanguage(code)
	}

	numStyle := lipgloss.NewStyle().
		Foreground(styles.TextMuted).
		Width(4).
		Align(lipgloss.Right).
		MarginRight(1)

	var body []string
	for i, line := range strings.Split(highlightCode(code, language), "\n") {
		body = append(body, numStyle.Render(toStr(i+1))+line)
	}

	content := strings.Join(body, "\n")
	if c.language != "" {
		badge := lipgloss.NewStyle().
			Foreground(styles.TextMuted).
			Background(styles.OverlayDim).
			Padding(0, 1).
			Bold(true).
			Render(c.language)
		content = badge + "\n" + content
	}

	width := c.maxWidth - 4
	if width < minBlockWidth {
		width = minBlockWidth
	}

	return lipgloss.NewStyle().
		Background(styles.SurfaceDim).
		BorderStyle(lipgloss.RoundedBorder()).
		BorderForeground(styles.Overlay).
		Padding(1, 2).
		MaxWidth(width).
		Render(content)
}

// =============================================================================
// HIGHLIGHTING
// =============================================================================

// highlightCode runs code through Chroma with a terminal256 formatter.
// Any failure falls back to the plain source.
func highlightCode(code, language string) string {
	iterator, err := codeLexer(code, language).Tokenise(nil, code)
	if err != nil {
		return code
	}

	style := chromaStyles.Get("monokai")
	if style == nil {
		style = chromaStyles.Fallback
	}
	formatter := formatters.Get("terminal256")
	if formatter == nil {
		formatter = formatters.Fallback
	}

	var buf strings.Builder
	if err := formatter.Format(&buf, style, iterator); err != nil {
		return code
	}
	return buf.String()
}

// codeLexer resolves a lexer by fence language, then content analysis,
// then the fallback.
func codeLexer(code, language string) chroma.Lexer {
	lexer := lexers.Get(language)
	if lexer == nil {
		lexer = lexers.Analyse(code)
	}
	if lexer == nil {
		lexer = lexers.Fallback
	}
	return chroma.Coalesce(lexer)
}

// detectLanguage guesses the language from the code body.
func detectLanguage(code string) string {
	if lexer := lexers.Analyse(code); lexer != nil {
		return lexer.Config().Name
	}
	return ""
}
