package storage

import (
	"context"
	"fmt"
	"strings"

	"github.com/claude/liftlog/internal/models"
)

// FastStore emulates collections over a FlatStore by prefixing every key
// with "<collection>_".
type FastStore struct {
	flat FlatStore
}

// NewFastStore returns a primary KeyValueStore over flat.
func NewFastStore(flat FlatStore) *FastStore {
	return &FastStore{flat: flat}
}

func (s *FastStore) Kind() string { return KindPrimary }

func flatKey(coll models.Collection, key string) string {
	return string(coll) + "_" + key
}

func (s *FastStore) Get(ctx context.Context, coll models.Collection, key string) ([]byte, bool, error) {
	v, ok, err := s.flat.GetItem(ctx, flatKey(coll, key))
	if err != nil || !ok {
		return nil, false, err
	}
	return []byte(v), true, nil
}

func (s *FastStore) Put(ctx context.Context, coll models.Collection, key string, value []byte) error {
	return s.flat.SetItem(ctx, flatKey(coll, key), string(value))
}

func (s *FastStore) List(ctx context.Context, coll models.Collection) ([]Entry, error) {
	keys, err := s.collectionKeys(ctx, coll)
	if err != nil {
		return nil, err
	}
	entries := make([]Entry, 0, len(keys))
	for _, k := range keys {
		v, ok, err := s.flat.GetItem(ctx, flatKey(coll, k))
		if err != nil {
			return nil, err
		}
		if ok {
			entries = append(entries, Entry{Key: k, Value: []byte(v)})
		}
	}
	return entries, nil
}

func (s *FastStore) Delete(ctx context.Context, coll models.Collection, key string) error {
	return s.flat.RemoveItem(ctx, flatKey(coll, key))
}

func (s *FastStore) Clear(ctx context.Context, coll models.Collection) error {
	keys, err := s.collectionKeys(ctx, coll)
	if err != nil {
		return err
	}
	for _, k := range keys {
		if err := s.flat.RemoveItem(ctx, flatKey(coll, k)); err != nil {
			return fmt.Errorf("clearing %s: %w", coll, err)
		}
	}
	return nil
}

// Close is a no-op; the FlatStore is owned by the caller.
func (s *FastStore) Close() error { return nil }

// collectionKeys returns the unprefixed keys belonging to coll.
func (s *FastStore) collectionKeys(ctx context.Context, coll models.Collection) ([]string, error) {
	all, err := s.flat.Keys(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing keys: %w", err)
	}
	prefix := string(coll) + "_"
	var keys []string
	for _, k := range all {
		if strings.HasPrefix(k, prefix) {
			keys = append(keys, strings.TrimPrefix(k, prefix))
		}
	}
	return keys, nil
}
