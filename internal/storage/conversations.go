// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package storage provides conversation persistence for rigchat.
package storage

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/jeranaias/rigchat/internal/model"
	"github.com/jeranaias/rigchat/internal/util"
)

// ErrConversationNotFound reports a load or delete against an ID with no
// file behind it.
var ErrConversationNotFound = errors.New("conversation not found")

// ConversationStore persists conversations as one JSON file each, named by
// conversation ID, in a flat directory.
type ConversationStore struct {
	// BaseDir defaults to ~/.rigchat/conversations/.
	BaseDir string

	// MaxConversations caps the stored count; saving past the cap evicts
	// the oldest. Zero means unlimited.
	MaxConversations int
}

// NewConversationStore creates a store under the user's home directory.
func NewConversationStore() (*ConversationStore, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return nil, err
	}
	return NewConversationStoreWithDir(filepath.Join(homeDir, ".rigchat", "conversations"))
}

// NewConversationStoreWithDir creates a store rooted at baseDir.
func NewConversationStoreWithDir(baseDir string) (*ConversationStore, error) {
	if err := os.MkdirAll(baseDir, 0755); err != nil {
		return nil, err
	}
	return &ConversationStore{BaseDir: baseDir, MaxConversations: 100}, nil
}

// filePath maps a conversation ID to its file.
func (s *ConversationStore) filePath(id string) string {
	return filepath.Join(s.BaseDir, id+".json")
}

// files returns every conversation file in the store.
func (s *ConversationStore) files() ([]string, error) {
	paths, err := filepath.Glob(filepath.Join(s.BaseDir, "*.json"))
	if err != nil {
		return nil, err
	}
	return paths, nil
}

// =============================================================================
// SAVE AND LOAD
// =============================================================================

// Save persists a conversation and returns its ID. A conversation mid-stream
// is saved with the streaming message's partial content dropped: the stream
// callbacks own that text until finalization.
func (s *ConversationStore) Save(conv *model.Conversation) (string, error) {
	if conv.ID == "" {
		return "", errors.New("conversation has no id")
	}

	conv.UpdatedAt = time.Now()
	if conv.CreatedAt.IsZero() {
		conv.CreatedAt = conv.UpdatedAt
	}

	data, err := json.MarshalIndent(conv, "", "  ")
	if err != nil {
		return "", err
	}

	// Atomic write with fsync, so a crash never leaves a torn file.
	if err := util.AtomicWriteFile(s.filePath(conv.ID), data, 0600); err != nil {
		return "", err
	}

	if s.MaxConversations > 0 {
		s.evictOldest()
	}
	return conv.ID, nil
}

// evictOldest deletes conversations past the cap, oldest first.
func (s *ConversationStore) evictOldest() {
	metas, err := s.List()
	if err != nil || len(metas) <= s.MaxConversations {
		return
	}
	// List sorts newest first, so everything past the cap is the tail.
	for _, meta := range metas[s.MaxConversations:] {
		s.Delete(meta.ID)
	}
}

// Load retrieves a conversation by ID.
func (s *ConversationStore) Load(id string) (*model.Conversation, error) {
	return readConversation(s.filePath(id))
}

func readConversation(path string) (*model.Conversation, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, ErrConversationNotFound
	}
	if err != nil {
		return nil, err
	}

	conv := new(model.Conversation)
	if err := json.Unmarshal(data, conv); err != nil {
		return nil, err
	}
	return conv, nil
}

// LoadByIndex loads the nth conversation in recency order, 0 being the
// most recent. Backs the "/open <number>" shorthand.
func (s *ConversationStore) LoadByIndex(index int) (*model.Conversation, error) {
	metas, err := s.List()
	if err != nil {
		return nil, err
	}
	if index < 0 || index >= len(metas) {
		return nil, ErrConversationNotFound
	}
	return s.Load(metas[index].ID)
}

// =============================================================================
// LISTING AND SEARCH
// =============================================================================

// List returns metadata for every saved conversation, most recent first.
// Files that fail to parse are skipped so one corrupt save never hides
// the rest.
func (s *ConversationStore) List() ([]model.ConversationMeta, error) {
	paths, err := s.files()
	if err != nil {
		return nil, err
	}

	metas := make([]model.ConversationMeta, 0, len(paths))
	for _, path := range paths {
		conv, err := readConversation(path)
		if err != nil {
			continue
		}
		metas = append(metas, conv.Meta())
	}

	sort.Slice(metas, func(i, j int) bool {
		return metas[i].UpdatedAt.After(metas[j].UpdatedAt)
	})
	return metas, nil
}

// Search matches the query against titles and previews, case-insensitively.
func (s *ConversationStore) Search(query string) ([]model.ConversationMeta, error) {
	all, err := s.List()
	if err != nil {
		return nil, err
	}

	query = strings.ToLower(query)
	var results []model.ConversationMeta
	for _, meta := range all {
		if containsFold(meta.Title, query) || containsFold(meta.Preview, query) {
			results = append(results, meta)
		}
	}
	return results, nil
}

// containsFold reports whether s contains query; query must already be
// lowercased.
func containsFold(s, query string) bool {
	return strings.Contains(strings.ToLower(s), query)
}

// SearchMessages matches the query against full message bodies. This is the
// linear-scan fallback; the index package is the fast path when enabled.
func (s *ConversationStore) SearchMessages(query string) ([]model.ConversationMeta, error) {
	if query == "" {
		return s.List()
	}

	query = strings.ToLower(query)
	all, err := s.List()
	if err != nil {
		return nil, err
	}

	var results []model.ConversationMeta
	for _, meta := range all {
		conv, err := s.Load(meta.ID)
		if err != nil {
			continue
		}
		for _, msg := range conv.Messages {
			if containsFold(msg.Content, query) {
				results = append(results, meta)
				break
			}
		}
	}
	return results, nil
}

// =============================================================================
// DELETION
// =============================================================================

// Delete removes a conversation by ID.
func (s *ConversationStore) Delete(id string) error {
	err := os.Remove(s.filePath(id))
	if errors.Is(err, fs.ErrNotExist) {
		return ErrConversationNotFound
	}
	return err
}

// Clear removes every saved conversation.
func (s *ConversationStore) Clear() error {
	paths, err := s.files()
	if err != nil {
		return err
	}
	for _, path := range paths {
		os.Remove(path)
	}
	return nil
}

// =============================================================================
// CLI OUTPUT AND EXPORT
// =============================================================================

// FormatConversationList renders conversation metadata as a plain table
// for "rigchat list".
func FormatConversationList(metas []model.ConversationMeta) string {
	if len(metas) == 0 {
		return "No conversations found."
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "%-22s %-17s %-5s %s\n", "ID", "Updated", "Msgs", "Title")
	sb.WriteString(strings.Repeat("-", 70) + "\n")

	for _, m := range metas {
		id := m.ID
		if len(id) > 22 {
			id = id[:22]
		}
		fmt.Fprintf(&sb, "%-22s %-17s %-5d %s\n",
			id,
			m.UpdatedAt.Format("2006-01-02 15:04"),
			m.MessageCount,
			util.TruncateRunes(m.Title, 40))
	}
	return sb.String()
}

// ExportMarkdown renders a conversation as Markdown: a metadata header,
// then each message under a role label. Reasoning becomes a quoted block
// ahead of the visible reply; tool calls render as a JSON code fence.
func ExportMarkdown(conv *model.Conversation) string {
	var sb strings.Builder
	sb.WriteString("# " + conv.GetTitle() + "\n\n")
	if conv.Model != "" {
		sb.WriteString("Model: " + conv.Model + "\n\n")
	}
	sb.WriteString("Created: " + conv.CreatedAt.Format(time.RFC3339) + "\n\n")
	sb.WriteString("---\n\n")

	for _, msg := range conv.Messages {
		sb.WriteString("**" + msg.Role.DisplayName() + "** (" + msg.Timestamp.Format("15:04") + "):\n\n")

		if msg.Reasoning != "" {
			for _, line := range strings.Split(msg.Reasoning, "\n") {
				sb.WriteString("> " + line + "\n")
			}
			sb.WriteString("\n")
		}

		if msg.Content != "" {
			sb.WriteString(msg.Content)
			sb.WriteString("\n\n")
		}

		if msg.HasToolCalls() {
			sb.WriteString("```json\n" + msg.ToolCalls + "\n```\n\n")
		}

		for _, a := range msg.Attachments {
			sb.WriteString("_Attachment: " + a.Name + "_\n\n")
		}

		sb.WriteString("---\n\n")
	}

	return sb.String()
}

// ExportJSON renders a conversation as pretty-printed JSON.
func ExportJSON(conv *model.Conversation) ([]byte, error) {
	return json.MarshalIndent(conv, "", "  ")
}
