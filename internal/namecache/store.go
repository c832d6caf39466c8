// Package namecache persists the window-id → name map across process and
// browser lifetimes.
package namecache

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// Entry is one cached window name. Closed marks a tombstone: the window is
// gone but the entry is retained so the reconciler can re-attach the name to
// a lookalike window after a restart.
type Entry struct {
	Name           string `json:"name"`
	URLFingerprint string `json:"urlFingerprint"`
	Closed         bool   `json:"closed,omitempty"`
}

// Cache is the full keyed collection, keyed by stringified browser window id.
type Cache map[string]Entry

// Store manages the cache file on disk. Every mutation is a full
// read-modify-write of the map, serialized by the store mutex so concurrent
// handlers cannot discard each other's writes.
type Store struct {
	path string
	mu   sync.Mutex
}

// NewStore creates a Store and ensures the parent directory exists.
func NewStore(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("name cache: mkdir %s: %w", filepath.Dir(path), err)
	}
	return &Store{path: path}, nil
}

// Load reads the persisted cache. A missing file is an empty cache, not an
// error.
func (s *Store) Load() (Cache, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.load()
}

// Upsert sets or replaces the entry for windowID, clearing any tombstone.
func (s *Store) Upsert(windowID int, name, urlFingerprint string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cache, err := s.load()
	if err != nil {
		return err
	}
	cache[Key(windowID)] = Entry{Name: name, URLFingerprint: urlFingerprint}
	return s.persist(cache)
}

// MarkClosed tombstones the entry for windowID. The entry is retained, not
// deleted; a missing entry is a no-op.
func (s *Store) MarkClosed(windowID int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cache, err := s.load()
	if err != nil {
		return err
	}
	entry, ok := cache[Key(windowID)]
	if !ok {
		return nil
	}
	entry.Closed = true
	cache[Key(windowID)] = entry
	return s.persist(cache)
}

// UpdateFingerprint rewrites only the fingerprint of an existing entry; a
// missing entry is a no-op.
func (s *Store) UpdateFingerprint(windowID int, urlFingerprint string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cache, err := s.load()
	if err != nil {
		return err
	}
	entry, ok := cache[Key(windowID)]
	if !ok {
		return nil
	}
	entry.URLFingerprint = urlFingerprint
	cache[Key(windowID)] = entry
	return s.persist(cache)
}

// Replace overwrites the whole persisted map. Used by the reconciler, which
// rewrites multiple keys in one pass.
func (s *Store) Replace(cache Cache) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.persist(cache)
}

func (s *Store) load() (Cache, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return Cache{}, nil
		}
		return nil, fmt.Errorf("name cache: read %s: %w", s.path, err)
	}

	cache := Cache{}
	if err := json.Unmarshal(data, &cache); err != nil {
		return nil, fmt.Errorf("name cache: unmarshal %s: %w", s.path, err)
	}
	return cache, nil
}

func (s *Store) persist(cache Cache) error {
	data, err := json.MarshalIndent(cache, "", "  ")
	if err != nil {
		return fmt.Errorf("name cache: marshal: %w", err)
	}

	// Write-then-rename so a crash mid-write never truncates the cache.
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("name cache: write %s: %w", tmp, err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("name cache: rename %s: %w", s.path, err)
	}
	return nil
}

// Key converts a browser window id to its cache map key.
func Key(windowID int) string {
	return fmt.Sprintf("%d", windowID)
}
