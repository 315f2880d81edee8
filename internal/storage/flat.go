package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/claude/liftlog/internal/models"
)

// ErrQuotaExceeded is returned by a FlatStore write that would exceed its quota.
var ErrQuotaExceeded = fmt.Errorf("quota exceeded: %w", models.ErrStorageFailure)

// FlatStore is a flat string key/value substrate with a small capacity,
// the shape of a browser's local storage.
type FlatStore interface {
	GetItem(ctx context.Context, key string) (string, bool, error)
	SetItem(ctx context.Context, key, value string) error
	RemoveItem(ctx context.Context, key string) error
	Keys(ctx context.Context) ([]string, error)
}

// LocalFlat is an in-process FlatStore. When path is non-empty every
// mutation is flushed to a JSON file so state survives restarts.
type LocalFlat struct {
	mu    sync.Mutex
	path  string
	quota int
	used  int
	items map[string]string
}

// OpenLocalFlat loads (or creates) a LocalFlat backed by path. An empty
// path keeps the store in memory only. quota <= 0 disables the limit.
func OpenLocalFlat(path string, quota int) (*LocalFlat, error) {
	s := &LocalFlat{path: path, quota: quota, items: make(map[string]string)}
	if path == "" {
		return s, nil
	}

	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return s, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	if len(data) > 0 {
		if err := json.Unmarshal(data, &s.items); err != nil {
			return nil, fmt.Errorf("parsing %s: %w", path, err)
		}
	}
	for k, v := range s.items {
		s.used += len(k) + len(v)
	}
	return s, nil
}

func (s *LocalFlat) GetItem(_ context.Context, key string) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.items[key]
	return v, ok, nil
}

func (s *LocalFlat) SetItem(_ context.Context, key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	used := s.used + len(key) + len(value)
	if old, ok := s.items[key]; ok {
		used -= len(key) + len(old)
	}
	if s.quota > 0 && used > s.quota {
		return fmt.Errorf("setting %q (%d bytes over %d): %w", key, used-s.quota, s.quota, ErrQuotaExceeded)
	}

	old, existed := s.items[key]
	s.items[key] = value
	if err := s.flush(); err != nil {
		if existed {
			s.items[key] = old
		} else {
			delete(s.items, key)
		}
		return err
	}
	s.used = used
	return nil
}

func (s *LocalFlat) RemoveItem(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	old, ok := s.items[key]
	if !ok {
		return nil
	}
	delete(s.items, key)
	if err := s.flush(); err != nil {
		s.items[key] = old
		return err
	}
	s.used -= len(key) + len(old)
	return nil
}

// Keys returns all keys in sorted order.
func (s *LocalFlat) Keys(_ context.Context) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	keys := make([]string, 0, len(s.items))
	for k := range s.items {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys, nil
}

// Used returns the summed byte length of all keys and values.
func (s *LocalFlat) Used() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.used
}

// flush writes the map to a temp file and renames it over path.
func (s *LocalFlat) flush() error {
	if s.path == "" {
		return nil
	}
	data, err := json.Marshal(s.items)
	if err != nil {
		return fmt.Errorf("encoding flat store: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("creating dir for %s: %w: %w", s.path, err, models.ErrStorageFailure)
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("writing %s: %w: %w", tmp, err, models.ErrStorageFailure)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("replacing %s: %w: %w", s.path, err, models.ErrStorageFailure)
	}
	return nil
}
