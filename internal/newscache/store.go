// Package newscache persists news batches as a JSON array on disk.
//
// Writes go to a temporary file in the target directory and are renamed over
// the cache path, so readers only ever see a complete batch.
package newscache

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/DeafMist/verdict-radar/backend/internal/models"
)

var (
	// ErrNotFound means no batch has been persisted yet.
	ErrNotFound = errors.New("cache file not found")
	// ErrCorrupt means the cache file exists but is not a JSON array of items.
	ErrCorrupt = errors.New("cache file is not a valid batch")
)

// Snapshot is a batch read back from disk together with its write time.
type Snapshot struct {
	Items     []models.NewsItem
	WrittenAt time.Time
}

// Age returns how old the snapshot is at now.
func (s Snapshot) Age(now time.Time) time.Duration {
	return now.Sub(s.WrittenAt)
}

// Store reads and replaces one cache file.
type Store struct {
	path string
	mu   sync.Mutex
}

// New returns a store for path. The parent directory is created on first Save.
func New(path string) *Store {
	return &Store{path: path}
}

// Path is the cache file location; it doubles as the single-flight key.
func (s *Store) Path() string { return s.path }

// Load reads the persisted batch.
func (s *Store) Load() (Snapshot, error) {
	info, err := os.Stat(s.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return Snapshot{}, ErrNotFound
		}
		return Snapshot{}, fmt.Errorf("stat cache: %w", err)
	}

	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return Snapshot{}, ErrNotFound
		}
		return Snapshot{}, fmt.Errorf("read cache: %w", err)
	}

	items, err := DecodeBatch(data)
	if err != nil {
		return Snapshot{}, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}

	return Snapshot{Items: items, WrittenAt: info.ModTime()}, nil
}

// Save replaces the cache file with items.
func (s *Store) Save(items []models.NewsItem) error {
	data, err := EncodeBatch(items)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	return WriteAtomic(s.path, data)
}

// DecodeBatch parses a JSON array of news items. A JSON null is rejected.
func DecodeBatch(data []byte) ([]models.NewsItem, error) {
	var items []models.NewsItem
	if err := json.Unmarshal(data, &items); err != nil {
		return nil, fmt.Errorf("decode batch: %w", err)
	}
	if items == nil {
		return nil, errors.New("decode batch: expected a JSON array")
	}
	return items, nil
}

// EncodeBatch renders items the way the cache file stores them.
func EncodeBatch(items []models.NewsItem) ([]byte, error) {
	if items == nil {
		items = []models.NewsItem{}
	}
	data, err := json.MarshalIndent(items, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encode batch: %w", err)
	}
	return data, nil
}

// WriteAtomic writes data to a sibling temp file, syncs it and renames it
// over path. The temp file is removed on every failure path.
func WriteAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create cache dir: %w", err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()
	committed := false
	defer func() {
		if !committed {
			_ = os.Remove(tmpName)
		}
	}()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("sync temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Chmod(tmpName, 0o644); err != nil {
		return fmt.Errorf("chmod temp file: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("replace cache file: %w", err)
	}
	committed = true
	return nil
}
