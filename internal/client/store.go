package client

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// Tokens is a copy of the session cookie pair kept so a client can resume
// after a restart. The API never reads it back; it only seeds the cookie jar.
type Tokens struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token"`
	SavedAt      time.Time `json:"saved_at"`
}

// TokenStore persists Tokens. Load returns nil, nil when nothing is stored.
type TokenStore interface {
	Load() (*Tokens, error)
	Save(tokens *Tokens) error
	Clear() error
}

// MemoryStore keeps tokens for the lifetime of the process.
type MemoryStore struct {
	mu     sync.Mutex
	tokens *Tokens
}

// Load implements TokenStore.
func (m *MemoryStore) Load() (*Tokens, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.tokens == nil {
		return nil, nil
	}
	t := *m.tokens
	return &t, nil
}

// Save implements TokenStore.
func (m *MemoryStore) Save(tokens *Tokens) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	t := *tokens
	m.tokens = &t
	return nil
}

// Clear implements TokenStore.
func (m *MemoryStore) Clear() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tokens = nil
	return nil
}

// FileStore keeps tokens in a JSON file readable only by its owner.
type FileStore struct {
	path string
	mu   sync.Mutex
}

// NewFileStore creates a FileStore at path. The file is created on first Save.
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

// Load implements TokenStore.
func (f *FileStore) Load() (*Tokens, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	data, err := os.ReadFile(f.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading token file: %w", err)
	}

	var tokens Tokens
	if err := json.Unmarshal(data, &tokens); err != nil {
		return nil, fmt.Errorf("decoding token file: %w", err)
	}
	if tokens.AccessToken == "" && tokens.RefreshToken == "" {
		return nil, nil
	}
	return &tokens, nil
}

// Save implements TokenStore. The file is replaced atomically.
func (f *FileStore) Save(tokens *Tokens) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	data, err := json.MarshalIndent(tokens, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding tokens: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(f.path), 0o700); err != nil {
		return fmt.Errorf("creating token dir: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(f.path), ".tokens-*")
	if err != nil {
		return fmt.Errorf("creating temp token file: %w", err)
	}
	defer func() { _ = os.Remove(tmp.Name()) }()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("writing tokens: %w", err)
	}
	if err := tmp.Chmod(0o600); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("securing token file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("closing token file: %w", err)
	}
	if err := os.Rename(tmp.Name(), f.path); err != nil {
		return fmt.Errorf("replacing token file: %w", err)
	}
	return nil
}

// Clear implements TokenStore.
func (f *FileStore) Clear() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := os.Remove(f.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("removing token file: %w", err)
	}
	return nil
}
