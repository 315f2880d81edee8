package alpha

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/claude/liftlog/internal/ingest"
	"github.com/claude/liftlog/internal/models"
)

// ResultLog is the part of the tracker the importer writes to.
type ResultLog interface {
	SaveImportedResult(ctx context.Context, r models.Result) (string, error)
	GetExerciseHistory(ctx context.Context, exerciseID string, limit int) ([]models.Result, error)
}

// Provider turns Alpha Progression CSV exports into logged results.
type Provider struct {
	results ResultLog
	log     *slog.Logger
}

// NewProvider creates a new Alpha Progression ingest provider.
func NewProvider(results ResultLog, log *slog.Logger) *Provider {
	return &Provider{results: results, log: log}
}

// Ingest parses a CSV export and logs one result per exercise. Week and
// day come only from the session name, never from the current position.
// An exercise already logged at the same session time is skipped, so
// re-importing an export is harmless.
func (p *Provider) Ingest(ctx context.Context, r io.Reader) (*ingest.Result, error) {
	sessions, err := Parse(r)
	if err != nil {
		return nil, fmt.Errorf("parsing CSV: %w", err)
	}

	result := &ingest.Result{SessionsReceived: len(sessions)}
	for _, s := range sessions {
		for _, ex := range s.Exercises {
			result.ExercisesReceived++
			result.SetsReceived += len(ex.Sets)
			if len(ex.Sets) == 0 {
				result.ResultsSkipped++
				continue
			}

			id := ex.ID()
			logged, err := p.alreadyLogged(ctx, id, s)
			if err != nil {
				return result, err
			}
			if logged {
				result.ResultsSkipped++
				continue
			}

			if _, err := p.results.SaveImportedResult(ctx, models.Result{
				Program:      s.Program,
				Week:         s.Week,
				Day:          s.Day,
				ExerciseID:   id,
				ExerciseName: ex.Name,
				Date:         s.Date,
				Sets:         ex.Sets,
				Notes:        exerciseNotes(ex),
			}); err != nil {
				return result, fmt.Errorf("saving %s from session %s: %w", ex.Name, s.Date.Format("2006-01-02"), err)
			}
			result.ResultsInserted++
		}
	}

	p.log.Info("alpha: import finished",
		"sessions", result.SessionsReceived,
		"inserted", result.ResultsInserted,
		"skipped", result.ResultsSkipped,
	)
	return result, nil
}

func (p *Provider) alreadyLogged(ctx context.Context, exerciseID string, s Session) (bool, error) {
	history, err := p.results.GetExerciseHistory(ctx, exerciseID, 0)
	if err != nil {
		return false, fmt.Errorf("checking history of %s: %w", exerciseID, err)
	}
	for _, r := range history {
		if r.Date.Equal(s.Date) {
			return true, nil
		}
	}
	return false, nil
}

// exerciseNotes records what the result shape has no field for.
func exerciseNotes(ex Exercise) string {
	var parts []string
	if ex.Equipment != "" {
		parts = append(parts, ex.Equipment)
	}
	if ex.TargetReps > 0 {
		parts = append(parts, fmt.Sprintf("target %d reps", ex.TargetReps))
	}
	if len(ex.RIR) > 0 {
		rir := make([]string, len(ex.RIR))
		for i, v := range ex.RIR {
			rir[i] = fmt.Sprint(v)
		}
		parts = append(parts, "RIR "+strings.Join(rir, "/"))
	}
	if ex.Warmups > 0 {
		parts = append(parts, fmt.Sprintf("%d warmup sets", ex.Warmups))
	}
	return strings.Join(parts, " · ")
}
