// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package index provides a SQLite search index over saved conversations.
package index

const (
	// SchemaVersion tracks the database schema version for migrations
	SchemaVersion = 1
)

// SQLite schema for the message index with FTS (Full Text Search).
// Message text is stored twice: content holds the original text returned
// in results, folded holds the case/diacritic-folded form that queries
// (folded the same way) are matched against.
const Schema = `
-- Metadata table for schema version and index state
CREATE TABLE IF NOT EXISTS metadata (
    key TEXT PRIMARY KEY,
    value TEXT NOT NULL
) WITHOUT ROWID;

-- Conversations table: tracks indexed conversation files
CREATE TABLE IF NOT EXISTS conversations (
    id TEXT PRIMARY KEY,
    title TEXT NOT NULL,
    folded_title TEXT NOT NULL,
    model TEXT,
    message_count INTEGER NOT NULL,
    updated_at INTEGER NOT NULL,  -- Unix timestamp from the conversation
    mod_time INTEGER NOT NULL,    -- Unix nanoseconds of the file, for change detection
    indexed_at INTEGER NOT NULL   -- Unix timestamp
) WITHOUT ROWID;

CREATE INDEX IF NOT EXISTS idx_conversations_updated ON conversations(updated_at);
CREATE INDEX IF NOT EXISTS idx_conversations_folded_title ON conversations(folded_title);

-- Messages table: one row per indexed message
CREATE TABLE IF NOT EXISTS messages (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    conversation_id TEXT NOT NULL,
    message_id TEXT NOT NULL,
    role TEXT NOT NULL,
    content TEXT NOT NULL,
    folded TEXT NOT NULL,
    created_at INTEGER NOT NULL,  -- Unix timestamp
    FOREIGN KEY(conversation_id) REFERENCES conversations(id) ON DELETE CASCADE
);

CREATE INDEX IF NOT EXISTS idx_messages_conversation ON messages(conversation_id);
CREATE INDEX IF NOT EXISTS idx_messages_role ON messages(role);

-- Full-text search virtual table over the folded text
CREATE VIRTUAL TABLE IF NOT EXISTS messages_fts USING fts5(
    folded,
    content='messages',
    content_rowid='id',
    tokenize='unicode61'
);

-- Triggers to keep FTS table in sync. The external-content form requires
-- the special 'delete' command; a plain DELETE would desync the FTS index.
CREATE TRIGGER IF NOT EXISTS messages_ai AFTER INSERT ON messages BEGIN
    INSERT INTO messages_fts(rowid, folded) VALUES (new.id, new.folded);
END;

CREATE TRIGGER IF NOT EXISTS messages_ad AFTER DELETE ON messages BEGIN
    INSERT INTO messages_fts(messages_fts, rowid, folded)
    VALUES ('delete', old.id, old.folded);
END;

CREATE TRIGGER IF NOT EXISTS messages_au AFTER UPDATE ON messages BEGIN
    INSERT INTO messages_fts(messages_fts, rowid, folded)
    VALUES ('delete', old.id, old.folded);
    INSERT INTO messages_fts(rowid, folded) VALUES (new.id, new.folded);
END;
`

// InitMetadata initializes the metadata table with default values
const InitMetadata = `
INSERT OR IGNORE INTO metadata (key, value) VALUES ('schema_version', '1');
INSERT OR IGNORE INTO metadata (key, value) VALUES ('created_at', strftime('%s', 'now'));
INSERT OR IGNORE INTO metadata (key, value) VALUES ('last_full_index', '0');
INSERT OR IGNORE INTO metadata (key, value) VALUES ('root_path', '');
`
