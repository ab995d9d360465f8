// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package index

import (
	"database/sql"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"
)

// =============================================================================
// SEARCH RESULT
// =============================================================================

// SearchResult represents a single matching message
type SearchResult struct {
	ConversationID string
	Title          string
	MessageID      string
	Role           string
	Content        string // Full original message text
	Snippet        string // Short window around the first match
	CreatedAt      time.Time
	UpdatedAt      time.Time // Conversation last update
	Rank           float64   // Search relevance rank (lower is better)
}

// SearchOptions configures search behavior
type SearchOptions struct {
	// MaxResults limits the number of results (0 = unlimited)
	MaxResults int

	// Roles filters by message role (empty = all roles)
	Roles []string

	// ConversationID limits results to a single conversation
	ConversationID string
}

// DefaultSearchOptions returns default search options
func DefaultSearchOptions() *SearchOptions {
	return &SearchOptions{MaxResults: 50}
}

// =============================================================================
// SEARCH METHODS
// =============================================================================

// Search finds messages matching the query using full-text search. The
// query is folded the same way indexed text was, so matching ignores case
// and diacritics.
func (idx *MessageIndex) Search(query string, options *SearchOptions) ([]SearchResult, error) {
	if !idx.IsIndexed() {
		return nil, ErrNotIndexed
	}
	if options == nil {
		options = DefaultSearchOptions()
	}

	terms := foldTerms(query)
	ftsQuery := buildFTSQuery(terms)
	if ftsQuery == "" {
		// FTS rejects an empty MATCH expression
		return []SearchResult{}, nil
	}

	var q strings.Builder
	q.WriteString(`
		SELECT m.conversation_id, c.title, m.message_id, m.role, m.content,
		       m.created_at, c.updated_at, fts.rank
		FROM messages_fts fts
		JOIN messages m ON m.id = fts.rowid
		JOIN conversations c ON c.id = m.conversation_id
		WHERE messages_fts MATCH ?`)
	args := []interface{}{ftsQuery}

	if len(options.Roles) > 0 {
		q.WriteString(" AND m.role IN (?" + strings.Repeat(",?", len(options.Roles)-1) + ")")
		for _, role := range options.Roles {
			args = append(args, role)
		}
	}
	if options.ConversationID != "" {
		q.WriteString(" AND m.conversation_id = ?")
		args = append(args, options.ConversationID)
	}

	// Best rank first, then most recent conversation
	q.WriteString(" ORDER BY fts.rank, c.updated_at DESC")
	if options.MaxResults > 0 {
		q.WriteString(" LIMIT ?")
		args = append(args, options.MaxResults)
	}

	idx.mu.RLock()
	defer idx.mu.RUnlock()

	rows, err := idx.db.Query(q.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDatabaseError, err)
	}
	defer rows.Close()

	return collectMessageRows(rows, terms, true)
}

// SearchTitles finds conversations whose title matches the query. Titles
// are matched on the folded column, so case and accents are ignored.
func (idx *MessageIndex) SearchTitles(query string, options *SearchOptions) ([]SearchResult, error) {
	if !idx.IsIndexed() {
		return nil, ErrNotIndexed
	}
	if options == nil {
		options = DefaultSearchOptions()
	}

	q := `
		SELECT c.id, c.title, c.updated_at
		FROM conversations c
		WHERE c.folded_title LIKE ?
		ORDER BY c.updated_at DESC`
	args := []interface{}{"%" + escapeLike(FoldText(strings.TrimSpace(query))) + "%"}
	if options.MaxResults > 0 {
		q += " LIMIT ?"
		args = append(args, options.MaxResults)
	}

	idx.mu.RLock()
	defer idx.mu.RUnlock()

	rows, err := idx.db.Query(q, args...)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDatabaseError, err)
	}
	defer rows.Close()

	var results []SearchResult
	for rows.Next() {
		var r SearchResult
		var updatedAt int64
		if err := rows.Scan(&r.ConversationID, &r.Title, &updatedAt); err != nil {
			continue
		}
		r.UpdatedAt = time.Unix(updatedAt, 0)
		r.Snippet = r.Title
		results = append(results, r)
	}
	return results, nil
}

// ConversationMessages returns all indexed messages of one conversation in
// insertion order.
func (idx *MessageIndex) ConversationMessages(conversationID string) ([]SearchResult, error) {
	if !idx.IsIndexed() {
		return nil, ErrNotIndexed
	}

	idx.mu.RLock()
	defer idx.mu.RUnlock()

	rows, err := idx.db.Query(`
		SELECT m.conversation_id, c.title, m.message_id, m.role, m.content,
		       m.created_at, c.updated_at
		FROM messages m
		JOIN conversations c ON c.id = m.conversation_id
		WHERE m.conversation_id = ?
		ORDER BY m.id
	`, conversationID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDatabaseError, err)
	}
	defer rows.Close()

	return collectMessageRows(rows, nil, false)
}

// collectMessageRows scans message rows into results. The rank column is
// only present on FTS queries; snippets are cut when terms are given.
func collectMessageRows(rows *sql.Rows, terms []string, ranked bool) ([]SearchResult, error) {
	var results []SearchResult
	for rows.Next() {
		var r SearchResult
		var createdAt, updatedAt int64

		dest := []interface{}{
			&r.ConversationID, &r.Title, &r.MessageID, &r.Role, &r.Content,
			&createdAt, &updatedAt,
		}
		if ranked {
			dest = append(dest, &r.Rank)
		}
		if err := rows.Scan(dest...); err != nil {
			continue
		}

		r.CreatedAt = time.Unix(createdAt, 0)
		r.UpdatedAt = time.Unix(updatedAt, 0)
		if terms != nil {
			r.Snippet = makeSnippet(r.Content, terms)
		}
		results = append(results, r)
	}
	return results, nil
}

// =============================================================================
// QUERY BUILDING
// =============================================================================

// buildFTSQuery builds an FTS5 query from folded terms. Each term becomes
// a quoted prefix match, joined with implicit AND.
func buildFTSQuery(terms []string) string {
	quoted := make([]string, 0, len(terms))
	for _, term := range terms {
		if term == "" {
			continue
		}
		quoted = append(quoted, quoteFTSTerm(term)+"*")
	}
	return strings.Join(quoted, " ")
}

// quoteFTSTerm quotes a term for FTS5 so user input can never be parsed
// as query syntax. FTS5 escapes a quote inside a quoted string by doubling.
func quoteFTSTerm(term string) string {
	return `"` + strings.ReplaceAll(term, `"`, `""`) + `"`
}

// escapeLike escapes LIKE wildcards in user input. SQLite treats backslash
// as a literal unless ESCAPE is declared, so wildcards are dropped instead.
func escapeLike(s string) string {
	s = strings.ReplaceAll(s, "%", "")
	return strings.ReplaceAll(s, "_", " ")
}

// =============================================================================
// SNIPPETS
// =============================================================================

// snippetRunes is the maximum snippet length in runes.
const snippetRunes = 120

// makeSnippet returns a short single-line window of content around the
// first term occurrence. Term positions are recovered from a lowercased
// copy, so a match that only exists after diacritic folding falls back to
// the head of the message. Good enough for display.
func makeSnippet(content string, terms []string) string {
	flat := strings.Join(strings.Fields(content), " ")

	runes := []rune(flat)
	if len(runes) <= snippetRunes {
		return flat
	}

	lower := strings.ToLower(flat)
	pos := -1
	for _, term := range terms {
		if i := strings.Index(lower, term); i >= 0 && (pos < 0 || i < pos) {
			pos = i
		}
	}
	if pos < 0 {
		pos = 0
	}

	start := utf8.RuneCountInString(lower[:pos])
	if start > len(runes) {
		start = len(runes)
	}

	from := start - snippetRunes/4
	if from < 0 {
		from = 0
	}
	to := from + snippetRunes
	if to > len(runes) {
		to = len(runes)
		from = to - snippetRunes
		if from < 0 {
			from = 0
		}
	}

	snip := string(runes[from:to])
	if from > 0 {
		snip = "..." + snip
	}
	if to < len(runes) {
		snip += "..."
	}

	return snip
}
