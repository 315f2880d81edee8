package tracker

import (
	"context"
	"fmt"

	"github.com/claude/liftlog/internal/models"
)

// ExportData returns the persistence layer's export document.
func (t *Tracker) ExportData(ctx context.Context) (string, error) {
	if err := t.Init(ctx); err != nil {
		return "", err
	}
	return t.layer.Export(ctx)
}

// ImportData imports an export document and reloads position and program.
func (t *Tracker) ImportData(ctx context.Context, payload string, merge bool) error {
	if err := t.Init(ctx); err != nil {
		return err
	}
	if err := t.layer.Import(ctx, payload, merge); err != nil {
		return fmt.Errorf("importing data: %w", err)
	}

	t.mu.Lock()
	err := t.reloadLocked(ctx)
	t.mu.Unlock()
	if err != nil {
		return err
	}

	t.log.Info("tracker: data imported", "merge", merge)
	t.notify(Event{Type: EventDataImported})
	return nil
}

// GetStatistics combines storage stats, totals over all results and the
// current position.
func (t *Tracker) GetStatistics(ctx context.Context) (models.Statistics, error) {
	if err := t.Init(ctx); err != nil {
		return models.Statistics{}, err
	}
	all, err := t.allResults(ctx)
	if err != nil {
		return models.Statistics{}, err
	}
	storageStats, err := t.layer.Stats(ctx)
	if err != nil {
		return models.Statistics{}, fmt.Errorf("loading storage stats: %w", err)
	}

	totals := models.WorkoutTotals{Total: len(all)}
	days := make(map[string]bool)
	for _, r := range all {
		days[r.Date.UTC().Format("2006-01-02")] = true
		totals.TotalSets += len(r.Sets)
		totals.TotalVolume += r.Volume()
	}
	totals.UniqueDays = len(days)

	return models.Statistics{
		Storage:         storageStats,
		Workouts:        totals,
		CurrentPosition: t.Position(),
	}, nil
}

// ClearAllData removes every result and progress record and resets the
// position. The cached program definition is kept.
func (t *Tracker) ClearAllData(ctx context.Context) error {
	if err := t.Init(ctx); err != nil {
		return err
	}
	for _, coll := range []models.Collection{models.Results, models.Progress} {
		if err := t.layer.Clear(ctx, coll); err != nil {
			return fmt.Errorf("clearing %s: %w", coll, err)
		}
	}

	t.mu.Lock()
	t.position = models.Position{}
	t.mu.Unlock()

	t.log.Info("tracker: all data cleared")
	t.notify(Event{Type: EventDataCleared})
	return nil
}
