package credentials

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

type fileTokens struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token"`
	ExpiresAt    time.Time `json:"expires_at"`
}

// File is a Store backed by a JSON file. Reads go through an in-memory
// cache loaded on first use; Save rewrites the whole file atomically so a
// crash mid-write never leaves a truncated credentials file. A missing
// file means "no tokens", not an error.
type File struct {
	path string

	mu     sync.Mutex
	cache  TokenSet
	loaded bool
}

// NewFile creates a file-backed store at the given path.
func NewFile(path string) *File {
	return &File{path: path}
}

// Path returns the file location backing this store.
func (f *File) Path() string {
	return f.path
}

func (f *File) AccessToken() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.load(); err != nil {
		return ""
	}
	return f.cache.AccessToken
}

func (f *File) RefreshToken() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.load(); err != nil {
		return ""
	}
	return f.cache.RefreshToken
}

func (f *File) Expired() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.load(); err != nil {
		return true
	}
	return f.cache.Expired(ExpiryLeeway)
}

// Save writes the token set to a temp file in the same directory and
// renames it into place, then updates the cache.
func (f *File) Save(set TokenSet) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := EnsureParentDir(f.path); err != nil {
		return err
	}

	data, err := json.MarshalIndent(fileTokens{
		AccessToken:  set.AccessToken,
		RefreshToken: set.RefreshToken,
		ExpiresAt:    set.ExpiresAt,
	}, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal credentials: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(f.path), ".credentials-*")
	if err != nil {
		return fmt.Errorf("failed to create temp credentials file: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("failed to write credentials: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("failed to close temp credentials file: %w", err)
	}
	if err := os.Rename(tmp.Name(), f.path); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("failed to replace credentials file: %w", err)
	}

	f.cache = set
	f.loaded = true
	return nil
}

// Clear removes the credentials file and empties the cache.
func (f *File) Clear() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := os.Remove(f.path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove credentials file: %w", err)
	}
	f.cache = TokenSet{}
	f.loaded = true
	return nil
}

// load populates the cache from disk once. Callers must hold f.mu.
func (f *File) load() error {
	if f.loaded {
		return nil
	}

	b, err := os.ReadFile(f.path)
	if os.IsNotExist(err) {
		f.cache = TokenSet{}
		f.loaded = true
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to read credentials file: %w", err)
	}

	var stored fileTokens
	if err := json.Unmarshal(b, &stored); err != nil {
		return fmt.Errorf("failed to parse credentials file: %w", err)
	}

	f.cache = TokenSet{
		AccessToken:  stored.AccessToken,
		RefreshToken: stored.RefreshToken,
		ExpiresAt:    stored.ExpiresAt,
	}
	f.loaded = true
	return nil
}
