// Package storage keeps a local sqlite cache of backend-owned conversations.
// The backend is the system of record; the cache exists so the conversation
// list opens instantly and global search works without refetching every
// transcript.
package storage

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/mattn/go-runewidth"
	_ "modernc.org/sqlite"

	"dashtui/chat"
)

// ConversationMeta mirrors the backend's conversation metadata.
type ConversationMeta struct {
	ID         string
	Title      string
	CreatedAt  time.Time
	UpdatedAt  time.Time
	IsArchived bool
}

// ConversationCache is the sqlite-backed cache.
type ConversationCache struct {
	db *sql.DB
}

// NewConversationCache opens (or creates) cache.db under dataDir.
func NewConversationCache(dataDir string) (*ConversationCache, error) {
	dbPath := filepath.Join(dataDir, "cache.db")

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	cache := &ConversationCache{db: db}

	if err := cache.initialize(); err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	return cache, nil
}

func (c *ConversationCache) initialize() error {
	schema := `
	CREATE TABLE IF NOT EXISTS conversations (
		id TEXT PRIMARY KEY,
		title TEXT NOT NULL,
		created_at DATETIME NOT NULL,
		updated_at DATETIME NOT NULL,
		is_archived INTEGER NOT NULL DEFAULT 0
	);
	CREATE TABLE IF NOT EXISTS messages (
		conversation_id TEXT NOT NULL,
		position INTEGER NOT NULL,
		id TEXT NOT NULL,
		role TEXT NOT NULL,
		content TEXT NOT NULL,
		timestamp DATETIME NOT NULL,
		tool_calls TEXT,
		PRIMARY KEY (conversation_id, position)
	);
	CREATE INDEX IF NOT EXISTS idx_messages_conversation ON messages(conversation_id);
	`

	_, err := c.db.Exec(schema)
	return err
}

// Close releases the database handle.
func (c *ConversationCache) Close() error {
	return c.db.Close()
}

// PutConversations upserts the fetched conversation list.
func (c *ConversationCache) PutConversations(list []ConversationMeta) error {
	tx, err := c.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	for _, meta := range list {
		_, err := tx.Exec(`
			INSERT INTO conversations (id, title, created_at, updated_at, is_archived)
			VALUES (?, ?, ?, ?, ?)
			ON CONFLICT(id) DO UPDATE SET
				title = excluded.title,
				updated_at = excluded.updated_at,
				is_archived = excluded.is_archived`,
			meta.ID, meta.Title, meta.CreatedAt, meta.UpdatedAt, boolToInt(meta.IsArchived))
		if err != nil {
			return fmt.Errorf("failed to upsert conversation: %w", err)
		}
	}

	return tx.Commit()
}

// Conversations returns cached metadata, most recently updated first.
func (c *ConversationCache) Conversations() ([]ConversationMeta, error) {
	rows, err := c.db.Query(`
		SELECT id, title, created_at, updated_at, is_archived
		FROM conversations
		WHERE is_archived = 0
		ORDER BY updated_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("failed to query conversations: %w", err)
	}
	defer rows.Close()

	var list []ConversationMeta
	for rows.Next() {
		var meta ConversationMeta
		var archived int
		if err := rows.Scan(&meta.ID, &meta.Title, &meta.CreatedAt, &meta.UpdatedAt, &archived); err != nil {
			return nil, fmt.Errorf("failed to scan conversation: %w", err)
		}
		meta.IsArchived = archived != 0
		list = append(list, meta)
	}
	return list, rows.Err()
}

// PutMessages replaces the cached transcript for one conversation.
func (c *ConversationCache) PutMessages(conversationID string, messages []chat.Message) error {
	tx, err := c.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM messages WHERE conversation_id = ?`, conversationID); err != nil {
		return fmt.Errorf("failed to clear messages: %w", err)
	}

	for i, msg := range messages {
		var toolCalls []byte
		if len(msg.ToolCalls) > 0 {
			toolCalls, err = json.Marshal(msg.ToolCalls)
			if err != nil {
				return fmt.Errorf("failed to marshal tool calls: %w", err)
			}
		}
		_, err := tx.Exec(`
			INSERT INTO messages (conversation_id, position, id, role, content, timestamp, tool_calls)
			VALUES (?, ?, ?, ?, ?, ?, ?)`,
			conversationID, i, msg.ID, msg.Role, msg.Content, msg.Timestamp, string(toolCalls))
		if err != nil {
			return fmt.Errorf("failed to insert message: %w", err)
		}
	}

	return tx.Commit()
}

// Messages returns the cached transcript for a conversation, in order.
func (c *ConversationCache) Messages(conversationID string) ([]chat.Message, error) {
	rows, err := c.db.Query(`
		SELECT id, role, content, timestamp, tool_calls
		FROM messages
		WHERE conversation_id = ?
		ORDER BY position`, conversationID)
	if err != nil {
		return nil, fmt.Errorf("failed to query messages: %w", err)
	}
	defer rows.Close()

	var messages []chat.Message
	for rows.Next() {
		var msg chat.Message
		var toolCalls string
		if err := rows.Scan(&msg.ID, &msg.Role, &msg.Content, &msg.Timestamp, &toolCalls); err != nil {
			return nil, fmt.Errorf("failed to scan message: %w", err)
		}
		if toolCalls != "" {
			if err := json.Unmarshal([]byte(toolCalls), &msg.ToolCalls); err != nil {
				// Corrupted tool-call blob; keep the message text
				msg.ToolCalls = nil
			}
		}
		messages = append(messages, msg)
	}
	return messages, rows.Err()
}

// Delete removes a conversation and its cached transcript.
func (c *ConversationCache) Delete(conversationID string) error {
	tx, err := c.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM messages WHERE conversation_id = ?`, conversationID); err != nil {
		return fmt.Errorf("failed to delete messages: %w", err)
	}
	if _, err := tx.Exec(`DELETE FROM conversations WHERE id = ?`, conversationID); err != nil {
		return fmt.Errorf("failed to delete conversation: %w", err)
	}

	return tx.Commit()
}

// MessageMatch is one search hit across cached conversations.
type MessageMatch struct {
	ConversationID    string
	ConversationTitle string
	MessageIndex      int
	Role              string
	Content           string
	Preview           string
	Timestamp         time.Time
}

// Search finds messages containing query (case-insensitive) across all
// cached conversations.
func (c *ConversationCache) Search(query string) ([]MessageMatch, error) {
	if query == "" {
		return []MessageMatch{}, nil
	}

	rows, err := c.db.Query(`
		SELECT m.conversation_id, c.title, m.position, m.role, m.content, m.timestamp
		FROM messages m
		JOIN conversations c ON c.id = m.conversation_id
		WHERE LOWER(m.content) LIKE ?
		ORDER BY m.timestamp DESC`,
		"%"+strings.ToLower(query)+"%")
	if err != nil {
		return nil, fmt.Errorf("failed to search messages: %w", err)
	}
	defer rows.Close()

	var matches []MessageMatch
	for rows.Next() {
		var m MessageMatch
		if err := rows.Scan(&m.ConversationID, &m.ConversationTitle, &m.MessageIndex, &m.Role, &m.Content, &m.Timestamp); err != nil {
			return nil, fmt.Errorf("failed to scan match: %w", err)
		}
		m.Preview = runewidth.Truncate(m.Content, 100, "...")
		matches = append(matches, m)
	}
	return matches, rows.Err()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
