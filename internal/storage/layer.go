package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"reflect"
	"sync"
	"time"

	"go.uber.org/multierr"

	"github.com/claude/liftlog/internal/metrics"
	"github.com/claude/liftlog/internal/models"
)

const (
	// Version is the export format and metadata schema version.
	Version = "1.0.0"
	// MetadataKey is the key of the single metadata record.
	MetadataKey = "app_metadata"

	DefaultQuotaBytes   = 5_000_000
	DefaultMinFreeBytes = 1_000_000

	probeKey = "__storage_test__"
)

// Options tunes backend selection.
type Options struct {
	// QuotaBytes is the assumed capacity of the primary substrate.
	QuotaBytes int
	// MinFreeBytes is the headroom below which the secondary is used.
	MinFreeBytes int
	Metrics      *metrics.Manager
	// Now is the clock used for metadata timestamps.
	Now func() time.Time
}

// Layer is the persistence layer: one key/value interface over the fixed
// collections, backed by a store chosen once on first use.
type Layer struct {
	mu            sync.Mutex
	primary       FlatStore
	openSecondary SecondaryOpener
	opts          Options
	log           *slog.Logger

	store KeyValueStore
}

// New creates an uninitialized Layer. Either backend may be nil, but not both.
func New(primary FlatStore, openSecondary SecondaryOpener, opts Options, log *slog.Logger) *Layer {
	if opts.QuotaBytes <= 0 {
		opts.QuotaBytes = DefaultQuotaBytes
	}
	if opts.MinFreeBytes <= 0 {
		opts.MinFreeBytes = DefaultMinFreeBytes
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Layer{
		primary:       primary,
		openSecondary: openSecondary,
		opts:          opts,
		log:           log,
	}
}

// Init selects the backend and ensures the metadata record exists. It is
// idempotent; after a failure the next call tries again.
func (l *Layer) Init(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.initLocked(ctx)
}

func (l *Layer) initLocked(ctx context.Context) error {
	if l.store != nil {
		return nil
	}

	store, err := l.selectBackend(ctx)
	if err != nil {
		l.opts.Metrics.StorageOp("init", err)
		return err
	}
	if err := l.ensureMetadata(ctx, store); err != nil {
		l.opts.Metrics.StorageOp("init", err)
		if store.Kind() == KindSecondary {
			store.Close()
		}
		return err
	}

	l.store = store
	l.opts.Metrics.StorageOp("init", nil)
	return nil
}

func (l *Layer) selectBackend(ctx context.Context) (KeyValueStore, error) {
	if l.primary != nil {
		headroom, err := l.probePrimary(ctx)
		if err == nil && headroom >= l.opts.MinFreeBytes {
			l.log.Info("storage: using primary backend", "headroom", headroom)
			return NewFastStore(l.primary), nil
		}
		l.log.Warn("storage: primary backend unusable, falling back to secondary",
			"error", err, "headroom", headroom, "min_free", l.opts.MinFreeBytes)
	}

	if l.openSecondary == nil {
		return nil, fmt.Errorf("no usable backend: %w", models.ErrStorageFailure)
	}
	store, err := l.openSecondary(ctx)
	if err != nil {
		return nil, fmt.Errorf("opening secondary backend: %w: %w", err, models.ErrStorageFailure)
	}
	l.log.Info("storage: using secondary backend", "name", DatabaseName, "schema_version", SchemaVersion)
	return store, nil
}

// probePrimary writes and removes a probe key, then estimates free space
// as quota minus the summed length of every stored key and value.
func (l *Layer) probePrimary(ctx context.Context) (int, error) {
	if err := l.primary.SetItem(ctx, probeKey, probeKey); err != nil {
		return 0, fmt.Errorf("probe write: %w", err)
	}
	if err := l.primary.RemoveItem(ctx, probeKey); err != nil {
		return 0, fmt.Errorf("probe remove: %w", err)
	}

	keys, err := l.primary.Keys(ctx)
	if err != nil {
		return 0, fmt.Errorf("probe keys: %w", err)
	}
	used := 0
	for _, k := range keys {
		v, _, err := l.primary.GetItem(ctx, k)
		if err != nil {
			return 0, fmt.Errorf("probe read %s: %w", k, err)
		}
		used += len(k) + len(v)
	}
	return l.opts.QuotaBytes - used, nil
}

func (l *Layer) ensureMetadata(ctx context.Context, store KeyValueStore) error {
	_, ok, err := store.Get(ctx, models.Metadata, MetadataKey)
	if err != nil {
		return fmt.Errorf("reading metadata: %w", err)
	}
	if ok {
		return nil
	}
	now := l.now()
	return putRecord(ctx, store, models.Metadata, MetadataKey, models.Record{
		"key":         MetadataKey,
		"version":     Version,
		"createdAt":   now,
		"lastUpdated": now,
	})
}

func (l *Layer) now() string {
	return l.opts.Now().UTC().Format(time.RFC3339Nano)
}

// Get returns the record stored under key, or nil when it is absent or
// its stored form is not valid JSON.
func (l *Layer) Get(ctx context.Context, coll models.Collection, key string) (models.Record, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if err := l.initLocked(ctx); err != nil {
		return nil, err
	}
	rec, err := l.getLocked(ctx, coll, key)
	l.opts.Metrics.StorageOp("get", err)
	return rec, err
}

func (l *Layer) getLocked(ctx context.Context, coll models.Collection, key string) (models.Record, error) {
	data, ok, err := l.store.Get(ctx, coll, key)
	if err != nil {
		return nil, fmt.Errorf("getting %s/%s: %w", coll, key, err)
	}
	if !ok {
		return nil, nil
	}
	var rec models.Record
	if err := json.Unmarshal(data, &rec); err != nil {
		l.log.Warn("storage: malformed record", "collection", coll, "key", key, "error", err)
		return nil, nil
	}
	return rec, nil
}

// Set stores value under key. Every write outside the metadata record
// first bumps the metadata lastUpdated timestamp.
func (l *Layer) Set(ctx context.Context, coll models.Collection, key string, value any) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if err := l.initLocked(ctx); err != nil {
		return err
	}
	err := l.setLocked(ctx, coll, key, value)
	l.opts.Metrics.StorageOp("set", err)
	return err
}

func (l *Layer) setLocked(ctx context.Context, coll models.Collection, key string, value any) error {
	if !coll.Valid() {
		return fmt.Errorf("unknown collection %q: %w", coll, models.ErrInvalidInput)
	}
	if key == "" {
		return fmt.Errorf("empty key: %w", models.ErrInvalidInput)
	}
	if !(coll == models.Metadata && key == MetadataKey) {
		if err := l.touchMetadata(ctx); err != nil {
			return err
		}
	}
	if err := putRecord(ctx, l.store, coll, key, value); err != nil {
		return fmt.Errorf("setting %s/%s: %w", coll, key, err)
	}
	return nil
}

func (l *Layer) touchMetadata(ctx context.Context) error {
	meta, err := l.getLocked(ctx, models.Metadata, MetadataKey)
	if err != nil {
		return err
	}
	now := l.now()
	if meta == nil {
		meta = models.Record{"key": MetadataKey, "version": Version, "createdAt": now}
	}
	meta["lastUpdated"] = now
	if err := putRecord(ctx, l.store, models.Metadata, MetadataKey, meta); err != nil {
		return fmt.Errorf("updating metadata: %w", err)
	}
	return nil
}

func putRecord(ctx context.Context, store KeyValueStore, coll models.Collection, key string, value any) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("encoding %s/%s: %w", coll, key, models.ErrInvalidInput)
	}
	return store.Put(ctx, coll, key, data)
}

// GetAll returns every decodable record in the collection. Malformed
// entries are logged and skipped.
func (l *Layer) GetAll(ctx context.Context, coll models.Collection) ([]models.Record, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if err := l.initLocked(ctx); err != nil {
		return nil, err
	}
	recs, err := l.getAllLocked(ctx, coll)
	l.opts.Metrics.StorageOp("get_all", err)
	return recs, err
}

func (l *Layer) getAllLocked(ctx context.Context, coll models.Collection) ([]models.Record, error) {
	entries, err := l.store.List(ctx, coll)
	if err != nil {
		return nil, fmt.Errorf("listing %s: %w", coll, err)
	}
	recs := make([]models.Record, 0, len(entries))
	for _, e := range entries {
		var rec models.Record
		if err := json.Unmarshal(e.Value, &rec); err != nil {
			l.log.Warn("storage: skipping malformed record", "collection", coll, "key", e.Key, "error", err)
			continue
		}
		recs = append(recs, rec)
	}
	return recs, nil
}

// Query returns records whose field equals value. Indexed fields of the
// secondary store are answered from the index; everything else scans.
func (l *Layer) Query(ctx context.Context, coll models.Collection, field string, value any) ([]models.Record, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if err := l.initLocked(ctx); err != nil {
		return nil, err
	}
	recs, err := l.queryLocked(ctx, coll, field, value)
	l.opts.Metrics.StorageOp("query", err)
	return recs, err
}

func (l *Layer) queryLocked(ctx context.Context, coll models.Collection, field string, value any) ([]models.Record, error) {
	if idx, ok := l.store.(Indexer); ok {
		values, handled, err := idx.QueryIndex(ctx, coll, field, value)
		if err != nil {
			return nil, fmt.Errorf("querying %s.%s: %w", coll, field, err)
		}
		if handled {
			recs := make([]models.Record, 0, len(values))
			for _, v := range values {
				var rec models.Record
				if err := json.Unmarshal(v, &rec); err != nil {
					l.log.Warn("storage: skipping malformed record", "collection", coll, "error", err)
					continue
				}
				recs = append(recs, rec)
			}
			return recs, nil
		}
	}

	all, err := l.getAllLocked(ctx, coll)
	if err != nil {
		return nil, err
	}
	want := normalize(value)
	var out []models.Record
	for _, rec := range all {
		if reflect.DeepEqual(rec[field], want) {
			out = append(out, rec)
		}
	}
	return out, nil
}

// normalize maps v to the shape encoding/json decodes it to, so an int
// compares equal to a stored float64.
func normalize(v any) any {
	data, err := json.Marshal(v)
	if err != nil {
		return v
	}
	var out any
	if err := json.Unmarshal(data, &out); err != nil {
		return v
	}
	return out
}

// Delete removes one record. Missing keys are not an error.
func (l *Layer) Delete(ctx context.Context, coll models.Collection, key string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if err := l.initLocked(ctx); err != nil {
		return err
	}
	err := l.store.Delete(ctx, coll, key)
	l.opts.Metrics.StorageOp("delete", err)
	if err != nil {
		return fmt.Errorf("deleting %s/%s: %w", coll, key, err)
	}
	return nil
}

// Clear removes every record in the collection.
func (l *Layer) Clear(ctx context.Context, coll models.Collection) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if err := l.initLocked(ctx); err != nil {
		return err
	}
	err := l.store.Clear(ctx, coll)
	l.opts.Metrics.StorageOp("clear", err)
	if err != nil {
		return fmt.Errorf("clearing %s: %w", coll, err)
	}
	return nil
}

// StorageType returns "primary" or "secondary".
func (l *Layer) StorageType(ctx context.Context) (string, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if err := l.initLocked(ctx); err != nil {
		return "", err
	}
	return l.store.Kind(), nil
}

// Stats reports record count and serialized size per collection.
func (l *Layer) Stats(ctx context.Context) (models.StorageStats, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if err := l.initLocked(ctx); err != nil {
		return models.StorageStats{}, err
	}

	stats := models.StorageStats{
		StorageType: l.store.Kind(),
		Version:     Version,
		Stores:      make(map[models.Collection]models.StoreStats, len(models.Collections)),
	}
	for _, coll := range models.Collections {
		entries, err := l.store.List(ctx, coll)
		if err != nil {
			l.opts.Metrics.StorageOp("stats", err)
			return models.StorageStats{}, fmt.Errorf("listing %s: %w", coll, err)
		}
		var s models.StoreStats
		for _, e := range entries {
			s.Count++
			s.Size += len(e.Value)
		}
		stats.Stores[coll] = s
	}
	l.opts.Metrics.StorageOp("stats", nil)
	return stats, nil
}

// Close releases the selected store and the primary substrate, if it
// holds resources.
func (l *Layer) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	var err error
	if l.store != nil {
		err = multierr.Append(err, l.store.Close())
		l.store = nil
	}
	if c, ok := l.primary.(io.Closer); ok {
		err = multierr.Append(err, c.Close())
	}
	return err
}
