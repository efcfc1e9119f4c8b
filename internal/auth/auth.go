/*-------------------------------------------------------------------------
 *
 * pgEdge Natural Language Agent
 *
 * Portions copyright (c) 2025, pgEdge, Inc.
 * This software is released under The PostgreSQL License
 *
 *-------------------------------------------------------------------------
 */

package auth

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"golang.org/x/crypto/bcrypt"
	"gopkg.in/yaml.v3"
)

// HashCost is the bcrypt cost used for API token hashes
const HashCost = bcrypt.DefaultCost

// Token represents an API token with metadata
type Token struct {
	Hash       string     `yaml:"hash"`       // bcrypt hash of the token
	ExpiresAt  *time.Time `yaml:"expires_at"` // Expiry date (null for indefinite)
	Annotation string     `yaml:"annotation"` // User note/description
	CreatedAt  time.Time  `yaml:"created_at"` // When the token was created
}

// TokenStore manages API tokens. Tokens come from two places: hashes
// listed inline in the server configuration, and a token file that can be
// edited while the server runs.
type TokenStore struct {
	mu     sync.RWMutex
	Tokens map[string]*Token `yaml:"tokens"` // key is a unique identifier

	static  map[string]*Token // inline hashes; survive reloads
	path    string            // token file, if any
	watcher *FileWatcher
}

// GenerateToken creates a new random API token
func GenerateToken() (string, error) {
	bytes := make([]byte, 32)
	if _, err := rand.Read(bytes); err != nil {
		return "", fmt.Errorf("failed to generate random token: %w", err)
	}
	return base64.URLEncoding.EncodeToString(bytes), nil
}

// HashToken creates a bcrypt hash of the token
func HashToken(token string) (string, error) {
	if token == "" {
		return "", fmt.Errorf("token cannot be empty")
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(token), HashCost)
	if err != nil {
		return "", fmt.Errorf("failed to hash token: %w", err)
	}
	return string(hash), nil
}

// NewTokenStore creates a store holding the given inline hashes. Each is
// identified as config-1, config-2, ...
func NewTokenStore(hashes []string) *TokenStore {
	static := make(map[string]*Token, len(hashes))
	for i, hash := range hashes {
		static[fmt.Sprintf("config-%d", i+1)] = &Token{Hash: hash, Annotation: "server configuration"}
	}
	return &TokenStore{
		Tokens: make(map[string]*Token),
		static: static,
	}
}

// SetHashes replaces the inline hashes, keeping the file tokens
func (s *TokenStore) SetHashes(hashes []string) {
	static := NewTokenStore(hashes).static
	s.mu.Lock()
	s.static = static
	s.mu.Unlock()
}

// LoadTokenStore loads tokens from a YAML file
func LoadTokenStore(path string) (*TokenStore, error) {
	store := NewTokenStore(nil)
	if err := store.LoadFile(path); err != nil {
		return nil, err
	}
	return store, nil
}

// LoadFile attaches a token file to the store and reads it
func (s *TokenStore) LoadFile(path string) error {
	s.mu.Lock()
	s.path = path
	s.mu.Unlock()
	return s.Reload()
}

// Reload re-reads the token file, replacing the file tokens
func (s *TokenStore) Reload() error {
	s.mu.RLock()
	path := s.path
	s.mu.RUnlock()
	if path == "" {
		return fmt.Errorf("no path set for token store")
	}

	tokens, err := readTokenFile(path)
	if err != nil {
		return err
	}

	s.mu.Lock()
	s.Tokens = tokens
	s.mu.Unlock()
	return nil
}

func readTokenFile(path string) (map[string]*Token, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read token file: %w", err)
	}

	var file struct {
		Tokens map[string]*Token `yaml:"tokens"`
	}
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse token file: %w", err)
	}
	if file.Tokens == nil {
		file.Tokens = make(map[string]*Token)
	}
	return file.Tokens, nil
}

// SaveTokenStore saves the file tokens to a YAML file
func SaveTokenStore(path string, store *TokenStore) error {
	store.mu.RLock()
	data, err := yaml.Marshal(struct {
		Tokens map[string]*Token `yaml:"tokens"`
	}{store.Tokens})
	store.mu.RUnlock()
	if err != nil {
		return fmt.Errorf("failed to marshal tokens: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	// Owner read/write only
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write token file: %w", err)
	}

	return nil
}

// AddToken adds a new token to the store
func (s *TokenStore) AddToken(tokenID, hash, annotation string, expiresAt *time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.Tokens == nil {
		s.Tokens = make(map[string]*Token)
	}
	if _, exists := s.Tokens[tokenID]; exists {
		return fmt.Errorf("token with ID '%s' already exists", tokenID)
	}

	s.Tokens[tokenID] = &Token{
		Hash:       hash,
		ExpiresAt:  expiresAt,
		Annotation: annotation,
		CreatedAt:  time.Now(),
	}
	return nil
}

// RemoveToken removes a file token by ID
func (s *TokenStore) RemoveToken(tokenID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.Tokens[tokenID]; !exists {
		return false
	}
	delete(s.Tokens, tokenID)
	return true
}

// ValidateToken checks the token against every stored hash and returns
// the matching token ID. An expired match is an error.
func (s *TokenStore) ValidateToken(token string) (string, bool, error) {
	if token == "" {
		return "", false, nil
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	now := time.Now()
	for _, tokens := range []map[string]*Token{s.static, s.Tokens} {
		for id, stored := range tokens {
			if bcrypt.CompareHashAndPassword([]byte(stored.Hash), []byte(token)) != nil {
				continue
			}
			if stored.ExpiresAt != nil && stored.ExpiresAt.Before(now) {
				return "", false, fmt.Errorf("token %s has expired", id)
			}
			return id, true, nil
		}
	}
	return "", false, nil
}

// Count returns the number of tokens able to authenticate
func (s *TokenStore) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.static) + len(s.Tokens)
}

// ListTokens returns the file tokens sorted by ID
func (s *TokenStore) ListTokens() []*TokenInfo {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*TokenInfo, 0, len(s.Tokens))
	now := time.Now()

	for id, token := range s.Tokens {
		result = append(result, &TokenInfo{
			ID:         id,
			ExpiresAt:  token.ExpiresAt,
			Annotation: token.Annotation,
			CreatedAt:  token.CreatedAt,
			Expired:    token.ExpiresAt != nil && token.ExpiresAt.Before(now),
		})
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })

	return result
}

// TokenInfo is a display-friendly representation of a token
type TokenInfo struct {
	ID         string
	ExpiresAt  *time.Time
	Annotation string
	CreatedAt  time.Time
	Expired    bool
}

// StartWatching reloads the token file whenever it changes on disk
func (s *TokenStore) StartWatching() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.path == "" {
		return fmt.Errorf("no path set for token store")
	}

	watcher, err := NewFileWatcher(s.path, s.Reload)
	if err != nil {
		return err
	}

	s.watcher = watcher
	s.watcher.Start()
	return nil
}

// StopWatching stops watching the token file for changes
func (s *TokenStore) StopWatching() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.watcher != nil {
		s.watcher.Stop()
		s.watcher = nil
	}
}
