// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package index provides a SQLite search index over saved conversations.
package index

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	_ "modernc.org/sqlite" // Pure Go SQLite driver

	"github.com/jeranaias/rigchat/internal/model"
)

// =============================================================================
// ERRORS
// =============================================================================

var (
	ErrNotIndexed    = errors.New("conversations not indexed")
	ErrIndexing      = errors.New("indexing in progress")
	ErrDatabaseError = errors.New("database error")
	ErrInvalidPath   = errors.New("invalid path")
)

// =============================================================================
// CONFIGURATION
// =============================================================================

// Config holds index configuration.
type Config struct {
	// Root is the conversations directory to index.
	Root string

	// DatabasePath is where the SQLite database lives.
	DatabasePath string

	// MaxFileSize caps the conversation file size the index will read.
	MaxFileSize int64

	// EnableWatch keeps the index current via a file watcher.
	EnableWatch bool

	// WatchDebounce is how long the watcher coalesces change events.
	WatchDebounce time.Duration
}

// DefaultConfig returns default configuration. The database lives next to
// the conversations directory, not inside it, so the watcher never sees
// its own writes.
func DefaultConfig(root string) *Config {
	return &Config{
		Root:          root,
		DatabasePath:  filepath.Join(filepath.Dir(root), "index.db"),
		MaxFileSize:   16 * 1024 * 1024,
		EnableWatch:   true,
		WatchDebounce: 500 * time.Millisecond,
	}
}

// =============================================================================
// MESSAGE INDEX
// =============================================================================

// MessageIndex indexes saved conversation files for fast message search.
// It mirrors the JSON files the conversation store writes: one row per
// conversation, one row per message, plus an FTS table over folded text.
type MessageIndex struct {
	db      *sql.DB
	watcher FileWatcher // fsnotify when available, polling otherwise
	root    string
	config  *Config
	mu      sync.RWMutex

	indexing          bool
	indexingMu        sync.Mutex
	lastIndexed       time.Time
	conversationCount int
	messageCount      int
}

// NewMessageIndex opens (or creates) the index database.
func NewMessageIndex(config *Config) (*MessageIndex, error) {
	if config == nil {
		return nil, errors.New("config cannot be nil")
	}
	if info, err := os.Stat(config.Root); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPath, err)
	} else if !info.IsDir() {
		return nil, fmt.Errorf("%w: not a directory", ErrInvalidPath)
	}

	db, err := openIndexDatabase(config.DatabasePath)
	if err != nil {
		return nil, err
	}

	idx := &MessageIndex{
		db:     db,
		root:   config.Root,
		config: config,
	}
	if err := idx.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	// Counts from a previous run; stale counts refresh on the next index
	_ = idx.loadStats()

	return idx, nil
}

// openIndexDatabase opens the SQLite file and applies the session pragmas.
// SQLite allows one writer, so the pool is pinned to a single connection.
func openIndexDatabase(path string) (*sql.DB, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA cache_size=-64000", // 64MB page cache
		"PRAGMA temp_store=MEMORY",
		"PRAGMA mmap_size=268435456",
		"PRAGMA foreign_keys=ON", // cascades keep messages in step with conversations
		"PRAGMA wal_autocheckpoint=1000",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to set pragma: %w", err)
		}
	}
	return db, nil
}

// initSchema creates the tables and records the indexed root.
func (idx *MessageIndex) initSchema() error {
	if _, err := idx.db.Exec(Schema); err != nil {
		return err
	}
	if _, err := idx.db.Exec(InitMetadata); err != nil {
		return err
	}
	_, err := idx.db.Exec("UPDATE metadata SET value = ? WHERE key = 'root_path'", idx.root)
	return err
}

// Close stops the watcher and closes the database.
func (idx *MessageIndex) Close() error {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	if idx.watcher != nil {
		idx.watcher.Close()
	}
	if idx.db == nil {
		return nil
	}
	return idx.db.Close()
}

// =============================================================================
// INDEXING
// =============================================================================

// beginIndexing claims the single indexing slot. The returned release func
// is nil when another index run is already in flight.
func (idx *MessageIndex) beginIndexing() func() {
	idx.indexingMu.Lock()
	defer idx.indexingMu.Unlock()
	if idx.indexing {
		return nil
	}
	idx.indexing = true
	return func() {
		idx.indexingMu.Lock()
		idx.indexing = false
		idx.indexingMu.Unlock()
	}
}

// Rebuild performs a full index of the conversations directory.
func (idx *MessageIndex) Rebuild(ctx context.Context) error {
	release := idx.beginIndexing()
	if release == nil {
		return ErrIndexing
	}
	defer release()

	startTime := time.Now()

	tx, err := idx.db.Begin()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrDatabaseError, err)
	}
	defer tx.Rollback()

	// Drop everything; cascades clear the message rows
	if _, err := tx.Exec("DELETE FROM messages"); err != nil {
		return fmt.Errorf("failed to clear messages: %w", err)
	}
	if _, err := tx.Exec("DELETE FROM conversations"); err != nil {
		return fmt.Errorf("failed to clear conversations: %w", err)
	}

	// The store keeps one JSON file per conversation in a flat directory
	entries, err := os.ReadDir(idx.root)
	if err != nil {
		return fmt.Errorf("failed to read conversations directory: %w", err)
	}

	var convCount, msgCount int
	for _, entry := range entries {
		if err := ctx.Err(); err != nil {
			return err
		}

		path, info, ok := idx.statConversationFile(entry)
		if !ok {
			continue
		}

		n, err := idx.indexConversationFile(tx, path, info)
		if err != nil {
			// Skip unreadable or malformed files, keep indexing
			continue
		}
		convCount++
		msgCount += n
	}

	if _, err := tx.Exec("UPDATE metadata SET value = ? WHERE key = 'last_full_index'", time.Now().Unix()); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	idx.mu.Lock()
	idx.lastIndexed = startTime
	idx.conversationCount = convCount
	idx.messageCount = msgCount
	idx.mu.Unlock()

	idx.ensureWatcher()
	return nil
}

// Refresh incrementally reindexes conversations whose files changed since
// they were last indexed, and drops conversations whose files are gone.
func (idx *MessageIndex) Refresh(ctx context.Context) error {
	release := idx.beginIndexing()
	if release == nil {
		return ErrIndexing
	}
	defer release()

	indexed, err := idx.indexedModTimes()
	if err != nil {
		return err
	}

	entries, err := os.ReadDir(idx.root)
	if err != nil {
		return fmt.Errorf("failed to read conversations directory: %w", err)
	}

	seen := make(map[string]bool)
	for _, entry := range entries {
		if err := ctx.Err(); err != nil {
			return err
		}

		path, info, ok := idx.statConversationFile(entry)
		if !ok {
			continue
		}

		id := conversationIDFromPath(path)
		seen[id] = true

		if modTime, exists := indexed[id]; exists && modTime == info.ModTime().UnixNano() {
			continue // unchanged since last index
		}
		if err := idx.updateConversation(path); err != nil {
			continue
		}
	}

	// Drop conversations whose files were deleted
	for id := range indexed {
		if !seen[id] {
			idx.removeConversation(id)
		}
	}

	idx.mu.Lock()
	idx.lastIndexed = time.Now()
	idx.mu.Unlock()

	// Stale counts refresh on the next query if this fails
	_ = idx.loadCounts()

	idx.ensureWatcher()
	return nil
}

// indexedModTimes snapshots the mod times the index recorded per conversation.
func (idx *MessageIndex) indexedModTimes() (map[string]int64, error) {
	rows, err := idx.db.Query("SELECT id, mod_time FROM conversations")
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDatabaseError, err)
	}
	defer rows.Close()

	indexed := make(map[string]int64)
	for rows.Next() {
		var id string
		var modTime int64
		if err := rows.Scan(&id, &modTime); err == nil {
			indexed[id] = modTime
		}
	}
	return indexed, rows.Err()
}

// updateConversation reindexes a single conversation file in its own
// transaction. Used by Refresh and by the file watchers.
func (idx *MessageIndex) updateConversation(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		// File vanished between the event and now
		return idx.removeConversation(conversationIDFromPath(path))
	}
	if idx.config.MaxFileSize > 0 && info.Size() > idx.config.MaxFileSize {
		return nil
	}

	tx, err := idx.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := idx.indexConversationFile(tx, path, info); err != nil {
		return err
	}
	return tx.Commit()
}

// removeConversation drops a conversation and its messages from the index.
func (idx *MessageIndex) removeConversation(id string) error {
	// Cascade removes the message rows, triggers keep FTS in sync
	_, err := idx.db.Exec("DELETE FROM conversations WHERE id = ?", id)
	return err
}

// indexConversationFile indexes one conversation file and returns the
// number of messages indexed. Any previous rows for the conversation are
// replaced.
func (idx *MessageIndex) indexConversationFile(tx *sql.Tx, path string, info os.FileInfo) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, err
	}

	var conv model.Conversation
	if err := json.Unmarshal(data, &conv); err != nil {
		return 0, err
	}
	if conv.ID == "" {
		conv.ID = conversationIDFromPath(path)
	}

	// Replace any previous rows (cascade removes old messages)
	if _, err := tx.Exec("DELETE FROM conversations WHERE id = ?", conv.ID); err != nil {
		return 0, err
	}

	title := conv.GetTitle()
	_, err = tx.Exec(`
		INSERT INTO conversations (id, title, folded_title, model, message_count, updated_at, mod_time, indexed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, conv.ID, title, FoldText(title), conv.Model, len(conv.Messages),
		conv.UpdatedAt.Unix(), info.ModTime().UnixNano(), time.Now().Unix())
	if err != nil {
		return 0, err
	}

	var count int
	for _, msg := range conv.Messages {
		if msg.Content == "" {
			continue
		}
		_, err := tx.Exec(`
			INSERT INTO messages (conversation_id, message_id, role, content, folded, created_at)
			VALUES (?, ?, ?, ?, ?, ?)
		`, conv.ID, msg.ID, string(msg.Role), msg.Content, FoldText(msg.Content), msg.Timestamp.Unix())
		if err != nil {
			return 0, err
		}
		count++
	}
	return count, nil
}

// statConversationFile filters directory entries down to indexable
// conversation files and stats them.
func (idx *MessageIndex) statConversationFile(entry os.DirEntry) (string, os.FileInfo, bool) {
	if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
		return "", nil, false
	}
	info, err := entry.Info()
	if err != nil {
		return "", nil, false
	}
	if idx.config.MaxFileSize > 0 && info.Size() > idx.config.MaxFileSize {
		return "", nil, false
	}
	return filepath.Join(idx.root, entry.Name()), info, true
}

// conversationIDFromPath derives the conversation ID from its file name.
// The store writes each conversation to <id>.json.
func conversationIDFromPath(path string) string {
	return strings.TrimSuffix(filepath.Base(path), ".json")
}

// ensureWatcher starts the file watcher once, if enabled. A watcher failure
// is not fatal; Refresh still catches changes.
func (idx *MessageIndex) ensureWatcher() {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	if !idx.config.EnableWatch || idx.watcher != nil {
		return
	}
	_ = idx.startWatcher()
}

// =============================================================================
// STATISTICS
// =============================================================================

// Stats describes the index contents.
type Stats struct {
	ConversationCount int
	MessageCount      int
	LastIndexed       time.Time
	IsIndexing        bool
	DatabaseSize      int64
}

// Stats returns current index statistics.
func (idx *MessageIndex) Stats() Stats {
	idx.mu.RLock()
	s := Stats{
		ConversationCount: idx.conversationCount,
		MessageCount:      idx.messageCount,
		LastIndexed:       idx.lastIndexed,
	}
	idx.mu.RUnlock()

	idx.indexingMu.Lock()
	s.IsIndexing = idx.indexing
	idx.indexingMu.Unlock()

	if info, err := os.Stat(idx.config.DatabasePath); err == nil {
		s.DatabaseSize = info.Size()
	}
	return s
}

// IsIndexed reports whether an index run has completed.
func (idx *MessageIndex) IsIndexed() bool {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return !idx.lastIndexed.IsZero()
}

// loadStats restores the last-index time and counts from the database.
func (idx *MessageIndex) loadStats() error {
	var lastIndexed int64
	if err := idx.db.QueryRow("SELECT value FROM metadata WHERE key = 'last_full_index'").Scan(&lastIndexed); err != nil {
		return err
	}
	if lastIndexed > 0 {
		idx.lastIndexed = time.Unix(lastIndexed, 0)
	}
	return idx.loadCounts()
}

// loadCounts refreshes the row counts used by Stats.
func (idx *MessageIndex) loadCounts() error {
	var convCount, msgCount int
	if err := idx.db.QueryRow("SELECT COUNT(*) FROM conversations").Scan(&convCount); err != nil {
		return err
	}
	if err := idx.db.QueryRow("SELECT COUNT(*) FROM messages").Scan(&msgCount); err != nil {
		return err
	}

	idx.mu.Lock()
	idx.conversationCount = convCount
	idx.messageCount = msgCount
	idx.mu.Unlock()
	return nil
}
