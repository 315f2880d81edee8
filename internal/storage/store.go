package storage

import (
	"context"

	"github.com/claude/liftlog/internal/models"
)

// Backend kinds reported by KeyValueStore.Kind and exported as storageType.
const (
	KindPrimary   = "primary"
	KindSecondary = "secondary"
)

// Entry is one stored record in its serialized form.
type Entry struct {
	Key   string
	Value []byte
}

// KeyValueStore is a backing store partitioned into the fixed collections.
// Values are opaque JSON documents; stores never rewrite them.
type KeyValueStore interface {
	Kind() string
	Get(ctx context.Context, coll models.Collection, key string) ([]byte, bool, error)
	Put(ctx context.Context, coll models.Collection, key string, value []byte) error
	// List returns every entry in the collection. Order is the store's
	// natural enumeration order.
	List(ctx context.Context, coll models.Collection) ([]Entry, error)
	Delete(ctx context.Context, coll models.Collection, key string) error
	Clear(ctx context.Context, coll models.Collection) error
	Close() error
}

// Indexer is implemented by stores that can answer equality queries from a
// prebuilt index. handled is false when no index covers (coll, field) and
// the caller must fall back to a scan.
type Indexer interface {
	QueryIndex(ctx context.Context, coll models.Collection, field string, value any) (values [][]byte, handled bool, err error)
}

// SecondaryOpener opens the secondary store. It is called lazily during
// Layer initialization, only when the primary substrate is unusable.
type SecondaryOpener func(ctx context.Context) (KeyValueStore, error)
