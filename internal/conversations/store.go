/*-------------------------------------------------------------------------
 *
 * pgEdge Natural Language Agent - Conversation Store
 *
 * Portions copyright (c) 2025, pgEdge, Inc.
 * This software is released under The PostgreSQL License
 *
 *-------------------------------------------------------------------------
 */

// Package conversations persists question/answer history so HTTP clients
// can continue a conversation by id.
package conversations

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite" // Pure Go SQLite driver
)

// ErrNotFound is returned when a conversation does not exist or belongs
// to another owner
var ErrNotFound = errors.New("conversation not found")

// Message roles
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message represents a single message in a conversation
type Message struct {
	Role      string `json:"role"`
	Content   string `json:"content"`
	Timestamp string `json:"timestamp,omitempty"`
	SQL       string `json:"sql,omitempty"`
	IsError   bool   `json:"isError,omitempty"`
}

// Conversation represents a stored conversation
type Conversation struct {
	ID        string    `json:"id"`
	Owner     string    `json:"owner"`
	Title     string    `json:"title"`
	Messages  []Message `json:"messages"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Summary provides a lightweight view for listing
type Summary struct {
	ID           string    `json:"id"`
	Title        string    `json:"title"`
	MessageCount int       `json:"message_count"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
	Preview      string    `json:"preview"`
}

// Store manages conversation persistence using SQLite
type Store struct {
	db   *sql.DB
	mu   sync.RWMutex
	path string
}

// NewStore opens conversations.db in dataDir, creating both as needed
func NewStore(dataDir string) (*Store, error) {
	if err := os.MkdirAll(dataDir, 0o750); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	dbPath := filepath.Join(dataDir, "conversations.db")
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// WAL lets readers proceed while a write is in progress
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	store := &Store{db: db, path: dbPath}
	if err := store.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return store, nil
}

func (s *Store) initSchema() error {
	schema := `
    CREATE TABLE IF NOT EXISTS conversations (
        id TEXT PRIMARY KEY,
        owner TEXT NOT NULL,
        title TEXT NOT NULL,
        messages TEXT NOT NULL,
        created_at DATETIME NOT NULL,
        updated_at DATETIME NOT NULL
    );

    CREATE INDEX IF NOT EXISTS idx_conversations_owner
        ON conversations(owner);

    CREATE INDEX IF NOT EXISTS idx_conversations_updated_at
        ON conversations(updated_at DESC);
    `
	_, err := s.db.Exec(schema)
	return err
}

// Path returns the database file path
func (s *Store) Path() string {
	return s.path
}

// Close closes the database connection
func (s *Store) Close() error {
	return s.db.Close()
}

// generateTitle creates a title from the first user message
func generateTitle(messages []Message) string {
	for _, msg := range messages {
		if msg.Role != RoleUser || msg.Content == "" {
			continue
		}
		return preview(msg.Content, 50)
	}
	return "New conversation"
}

func preview(s string, n int) string {
	if len(s) > n {
		return s[:n-3] + "..."
	}
	return s
}

// Create stores a new conversation
func (s *Store) Create(ctx context.Context, owner string, messages []Message) (*Conversation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if messages == nil {
		messages = []Message{}
	}
	now := time.Now().UTC()
	conv := &Conversation{
		ID:        uuid.NewString(),
		Owner:     owner,
		Title:     generateTitle(messages),
		Messages:  messages,
		CreatedAt: now,
		UpdatedAt: now,
	}

	messagesJSON, err := json.Marshal(messages)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal messages: %w", err)
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO conversations (id, owner, title, messages, created_at, updated_at)
         VALUES (?, ?, ?, ?, ?, ?)`,
		conv.ID, conv.Owner, conv.Title, string(messagesJSON), conv.CreatedAt, conv.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to insert conversation: %w", err)
	}
	return conv, nil
}

// Append adds messages to an existing conversation. The title is kept
// unless it was the placeholder.
func (s *Store) Append(ctx context.Context, id, owner string, messages ...Message) (*Conversation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	conv, err := s.getUnlocked(ctx, id, owner)
	if err != nil {
		return nil, err
	}

	conv.Messages = append(conv.Messages, messages...)
	if conv.Title == "New conversation" {
		conv.Title = generateTitle(conv.Messages)
	}
	conv.UpdatedAt = time.Now().UTC()

	messagesJSON, err := json.Marshal(conv.Messages)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal messages: %w", err)
	}

	_, err = s.db.ExecContext(ctx,
		`UPDATE conversations SET title = ?, messages = ?, updated_at = ?
         WHERE id = ? AND owner = ?`,
		conv.Title, string(messagesJSON), conv.UpdatedAt, id, owner,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to update conversation: %w", err)
	}
	return conv, nil
}

// Get retrieves a conversation by ID
func (s *Store) Get(ctx context.Context, id, owner string) (*Conversation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.getUnlocked(ctx, id, owner)
}

// getUnlocked retrieves a conversation; the caller must hold the lock
func (s *Store) getUnlocked(ctx context.Context, id, owner string) (*Conversation, error) {
	var conv Conversation
	var messagesJSON string

	err := s.db.QueryRowContext(ctx,
		`SELECT id, owner, title, messages, created_at, updated_at
         FROM conversations
         WHERE id = ? AND owner = ?`,
		id, owner,
	).Scan(&conv.ID, &conv.Owner, &conv.Title, &messagesJSON, &conv.CreatedAt, &conv.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query conversation: %w", err)
	}

	if err := json.Unmarshal([]byte(messagesJSON), &conv.Messages); err != nil {
		return nil, fmt.Errorf("failed to unmarshal messages: %w", err)
	}
	return &conv, nil
}

// List lists an owner's conversations, most recently updated first
func (s *Store) List(ctx context.Context, owner string, limit, offset int) ([]Summary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if limit <= 0 {
		limit = 50
	}
	if limit > 100 {
		limit = 100
	}
	if offset < 0 {
		offset = 0
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, title, messages, created_at, updated_at
         FROM conversations
         WHERE owner = ?
         ORDER BY updated_at DESC
         LIMIT ? OFFSET ?`,
		owner, limit, offset,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query conversations: %w", err)
	}
	defer rows.Close()

	summaries := []Summary{}
	for rows.Next() {
		var summary Summary
		var messagesJSON string
		if err := rows.Scan(&summary.ID, &summary.Title, &messagesJSON,
			&summary.CreatedAt, &summary.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}

		var messages []Message
		if err := json.Unmarshal([]byte(messagesJSON), &messages); err == nil {
			summary.MessageCount = len(messages)
			for _, msg := range messages {
				if msg.Role == RoleUser {
					summary.Preview = preview(msg.Content, 100)
					break
				}
			}
		}
		summaries = append(summaries, summary)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}
	return summaries, nil
}

// Rename renames a conversation
func (s *Store) Rename(ctx context.Context, id, owner, title string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	result, err := s.db.ExecContext(ctx,
		`UPDATE conversations SET title = ?, updated_at = ?
         WHERE id = ? AND owner = ?`,
		title, time.Now().UTC(), id, owner,
	)
	if err != nil {
		return fmt.Errorf("failed to rename conversation: %w", err)
	}
	return affected(result)
}

// Delete deletes a conversation
func (s *Store) Delete(ctx context.Context, id, owner string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	result, err := s.db.ExecContext(ctx,
		"DELETE FROM conversations WHERE id = ? AND owner = ?", id, owner)
	if err != nil {
		return fmt.Errorf("failed to delete conversation: %w", err)
	}
	return affected(result)
}

// DeleteAll deletes all of an owner's conversations
func (s *Store) DeleteAll(ctx context.Context, owner string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	result, err := s.db.ExecContext(ctx, "DELETE FROM conversations WHERE owner = ?", owner)
	if err != nil {
		return 0, fmt.Errorf("failed to delete conversations: %w", err)
	}
	return result.RowsAffected()
}

func affected(result sql.Result) error {
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return ErrNotFound
	}
	return nil
}
