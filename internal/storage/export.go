package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/claude/liftlog/internal/models"
)

// ExportPayload is the interchange format produced by Export and accepted
// by Import.
type ExportPayload struct {
	Version     string                                `json:"version"`
	ExportDate  time.Time                             `json:"exportDate"`
	StorageType string                                `json:"storageType"`
	Data        map[models.Collection][]models.Record `json:"data"`
}

// importPayload differs from ExportPayload so a missing version is
// detectable and unknown collections survive decoding.
type importPayload struct {
	Version *string                      `json:"version"`
	Data    map[string][]json.RawMessage `json:"data"`
}

// Export serializes every collection as indented JSON.
func (l *Layer) Export(ctx context.Context) (string, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if err := l.initLocked(ctx); err != nil {
		return "", err
	}

	payload := ExportPayload{
		Version:     Version,
		ExportDate:  l.opts.Now().UTC(),
		StorageType: l.store.Kind(),
		Data:        make(map[models.Collection][]models.Record, len(models.Collections)),
	}
	for _, coll := range models.Collections {
		recs, err := l.getAllLocked(ctx, coll)
		if err != nil {
			l.opts.Metrics.StorageOp("export", err)
			return "", err
		}
		payload.Data[coll] = recs
	}

	data, err := json.MarshalIndent(payload, "", "  ")
	if err != nil {
		return "", fmt.Errorf("encoding export: %w", err)
	}
	l.opts.Metrics.StorageOp("export", nil)
	return string(data), nil
}

// Import writes an exported payload back. Without merge every collection
// except metadata is cleared first. Each record is keyed by its "id", or
// "key" when id is absent; records with neither are skipped.
func (l *Layer) Import(ctx context.Context, payload string, merge bool) error {
	var in importPayload
	if err := json.Unmarshal([]byte(payload), &in); err != nil {
		return fmt.Errorf("parsing import: %w: %w", err, models.ErrValidationFailure)
	}
	if in.Version == nil || *in.Version == "" {
		return fmt.Errorf("import payload has no version: %w", models.ErrValidationFailure)
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if err := l.initLocked(ctx); err != nil {
		return err
	}

	err := l.importLocked(ctx, in, merge)
	l.opts.Metrics.StorageOp("import", err)
	return err
}

func (l *Layer) importLocked(ctx context.Context, in importPayload, merge bool) error {
	for name := range in.Data {
		if !models.Collection(name).Valid() {
			l.log.Warn("storage: import skipping unknown collection", "collection", name)
		}
	}

	if !merge {
		for _, coll := range models.Collections {
			if coll == models.Metadata {
				continue
			}
			if err := l.store.Clear(ctx, coll); err != nil {
				return fmt.Errorf("clearing %s: %w", coll, err)
			}
		}
	}

	written, skipped := 0, 0
	for _, coll := range models.Collections {
		for _, raw := range in.Data[string(coll)] {
			var rec models.Record
			if err := json.Unmarshal(raw, &rec); err != nil {
				skipped++
				continue
			}
			key := rec.RecordKey()
			if key == "" {
				skipped++
				continue
			}
			if err := l.setLocked(ctx, coll, key, rec); err != nil {
				return fmt.Errorf("importing %s/%s: %w", coll, key, err)
			}
			written++
		}
	}

	l.log.Info("storage: import complete", "version", *in.Version, "merge", merge,
		"written", written, "skipped", skipped)
	return nil
}
