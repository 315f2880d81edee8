package tracker

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/claude/liftlog/internal/models"
)

func validateSets(sets []models.Set) error {
	if len(sets) == 0 {
		return fmt.Errorf("result needs at least one set: %w", models.ErrInvalidInput)
	}
	for i, s := range sets {
		if s.WeightOrZero() < 0 || s.RepsOrZero() < 0 {
			return fmt.Errorf("set %d has negative weight or reps: %w", i+1, models.ErrInvalidInput)
		}
	}
	return nil
}

// SaveWorkoutResult assigns an id, fills program, week and day from the
// current position when unset, persists the result and returns its id.
func (t *Tracker) SaveWorkoutResult(ctx context.Context, r models.Result) (string, error) {
	return t.saveResult(ctx, r, true)
}

// SaveImportedResult persists a result logged outside the program
// position, such as one read from another app's export. Program, week and
// day are kept as given, including nil.
func (t *Tracker) SaveImportedResult(ctx context.Context, r models.Result) (string, error) {
	return t.saveResult(ctx, r, false)
}

func (t *Tracker) saveResult(ctx context.Context, r models.Result, fromPosition bool) (string, error) {
	if err := t.Init(ctx); err != nil {
		return "", err
	}
	if err := validateSets(r.Sets); err != nil {
		return "", err
	}

	r.ID = t.newResultID()
	if fromPosition {
		pos := t.Position()
		if r.Program == "" {
			r.Program = pos.Program
		}
		if r.Week == nil {
			r.Week = pos.Week
		}
		if r.Day == nil {
			r.Day = pos.Day
		}
	}
	if r.Date.IsZero() {
		r.Date = t.now().UTC()
	}
	r.UpdatedAt = nil

	if err := t.layer.Set(ctx, models.Results, r.ID, r); err != nil {
		return "", fmt.Errorf("saving result: %w", err)
	}

	t.log.Debug("tracker: result saved", "id", r.ID, "exercise_id", r.ExerciseID)
	t.notify(Event{Type: EventResultSaved, Result: &r})
	return r.ID, nil
}

// UpdateWorkoutResult merges updates over the stored result. The id
// cannot change and updatedAt is stamped.
func (t *Tracker) UpdateWorkoutResult(ctx context.Context, id string, updates models.Record) (models.Result, error) {
	if err := t.Init(ctx); err != nil {
		return models.Result{}, err
	}
	existing, err := t.layer.Get(ctx, models.Results, id)
	if err != nil {
		return models.Result{}, fmt.Errorf("loading result %s: %w", id, err)
	}
	if existing == nil {
		return models.Result{}, fmt.Errorf("result %s: %w", id, models.ErrNotFound)
	}

	for k, v := range updates {
		if k == "id" {
			continue
		}
		existing[k] = v
	}
	existing["updatedAt"] = t.now().UTC().Format(time.RFC3339Nano)

	var updated models.Result
	if err := models.FromRecord(existing, &updated); err != nil {
		return models.Result{}, fmt.Errorf("applying update to %s: %v: %w", id, err, models.ErrInvalidInput)
	}
	if err := validateSets(updated.Sets); err != nil {
		return models.Result{}, err
	}

	if err := t.layer.Set(ctx, models.Results, id, existing); err != nil {
		return models.Result{}, fmt.Errorf("saving result %s: %w", id, err)
	}

	t.notify(Event{Type: EventResultUpdated, Result: &updated})
	return updated, nil
}

// DeleteWorkoutResult removes a result by id.
func (t *Tracker) DeleteWorkoutResult(ctx context.Context, id string) error {
	if err := t.Init(ctx); err != nil {
		return err
	}
	existing, err := t.layer.Get(ctx, models.Results, id)
	if err != nil {
		return fmt.Errorf("loading result %s: %w", id, err)
	}
	if existing == nil {
		return fmt.Errorf("result %s: %w", id, models.ErrNotFound)
	}
	if err := t.layer.Delete(ctx, models.Results, id); err != nil {
		return fmt.Errorf("deleting result %s: %w", id, err)
	}

	t.notify(Event{Type: EventResultDeleted, ResultID: id})
	return nil
}

// GetResult returns one result by id.
func (t *Tracker) GetResult(ctx context.Context, id string) (models.Result, error) {
	if err := t.Init(ctx); err != nil {
		return models.Result{}, err
	}
	rec, err := t.layer.Get(ctx, models.Results, id)
	if err != nil {
		return models.Result{}, fmt.Errorf("loading result %s: %w", id, err)
	}
	if rec == nil {
		return models.Result{}, fmt.Errorf("result %s: %w", id, models.ErrNotFound)
	}
	var r models.Result
	if err := models.FromRecord(rec, &r); err != nil {
		return models.Result{}, fmt.Errorf("decoding result %s: %w", id, err)
	}
	return r, nil
}

// decodeResults converts stored records, skipping any that do not fit
// the result shape.
func (t *Tracker) decodeResults(recs []models.Record) []models.Result {
	out := make([]models.Result, 0, len(recs))
	for _, rec := range recs {
		var r models.Result
		if err := models.FromRecord(rec, &r); err != nil {
			t.log.Warn("tracker: skipping malformed result", "id", rec.String("id"), "error", err)
			continue
		}
		out = append(out, r)
	}
	return out
}

func (t *Tracker) allResults(ctx context.Context) ([]models.Result, error) {
	recs, err := t.layer.GetAll(ctx, models.Results)
	if err != nil {
		return nil, fmt.Errorf("loading results: %w", err)
	}
	return t.decodeResults(recs), nil
}

func sortByDateDesc(rs []models.Result) {
	sort.SliceStable(rs, func(i, j int) bool { return rs[i].Date.After(rs[j].Date) })
}

// GetExerciseHistory returns the results for an exercise, newest first.
// limit <= 0 returns all of them.
func (t *Tracker) GetExerciseHistory(ctx context.Context, exerciseID string, limit int) ([]models.Result, error) {
	if err := t.Init(ctx); err != nil {
		return nil, err
	}
	recs, err := t.layer.Query(ctx, models.Results, "exerciseId", exerciseID)
	if err != nil {
		return nil, fmt.Errorf("querying history for %s: %w", exerciseID, err)
	}
	rs := t.decodeResults(recs)
	sortByDateDesc(rs)
	if limit > 0 && len(rs) > limit {
		rs = rs[:limit]
	}
	return rs, nil
}

// GetResultsByDateRange returns results dated within [start, end], newest first.
func (t *Tracker) GetResultsByDateRange(ctx context.Context, start, end time.Time) ([]models.Result, error) {
	if err := t.Init(ctx); err != nil {
		return nil, err
	}
	all, err := t.allResults(ctx)
	if err != nil {
		return nil, err
	}
	var out []models.Result
	for _, r := range all {
		if !r.Date.Before(start) && !r.Date.After(end) {
			out = append(out, r)
		}
	}
	sortByDateDesc(out)
	return out, nil
}

// GetCurrentWorkoutResults returns results logged at the current position.
func (t *Tracker) GetCurrentWorkoutResults(ctx context.Context) ([]models.Result, error) {
	if err := t.Init(ctx); err != nil {
		return nil, err
	}
	pos := t.Position()
	all, err := t.allResults(ctx)
	if err != nil {
		return nil, err
	}
	var out []models.Result
	for _, r := range all {
		if pos.Matches(r.Program, r.Week, r.Day) {
			out = append(out, r)
		}
	}
	return out, nil
}

// GetProgramProgress aggregates the results logged under a program.
// Results without a rating, or rated 0, do not count toward the average.
func (t *Tracker) GetProgramProgress(ctx context.Context, programID string) (models.ProgramProgress, error) {
	if err := t.Init(ctx); err != nil {
		return models.ProgramProgress{}, err
	}
	all, err := t.allResults(ctx)
	if err != nil {
		return models.ProgramProgress{}, err
	}

	var (
		p       models.ProgramProgress
		days    = make(map[string]bool)
		ratings []float64
	)
	for _, r := range all {
		if r.Program != programID {
			continue
		}
		p.CompletedExercises++
		p.TotalSets += len(r.Sets)
		days[fmt.Sprintf("%s_%s", fmtIntPtr(r.Week), fmtIntPtr(r.Day))] = true
		if r.Rating != nil && *r.Rating != 0 {
			ratings = append(ratings, *r.Rating)
		}
	}
	p.TotalWorkouts = len(days)
	if len(ratings) > 0 {
		var sum float64
		for _, v := range ratings {
			sum += v
		}
		p.AverageRating = sum / float64(len(ratings))
	}
	return p, nil
}

func fmtIntPtr(p *int) string {
	if p == nil {
		return "null"
	}
	return fmt.Sprint(*p)
}

// GetPersonalRecords returns the best weight, reps and single-set volume
// across completed sets of an exercise.
func (t *Tracker) GetPersonalRecords(ctx context.Context, exerciseID string) (models.PersonalRecords, error) {
	history, err := t.GetExerciseHistory(ctx, exerciseID, 0)
	if err != nil {
		return models.PersonalRecords{}, err
	}
	var pr models.PersonalRecords
	for _, r := range history {
		for _, s := range r.Sets {
			if !s.IsCompleted() {
				continue
			}
			w, reps := s.WeightOrZero(), s.RepsOrZero()
			pr.MaxWeight = max(pr.MaxWeight, w)
			pr.MaxReps = max(pr.MaxReps, reps)
			pr.MaxVolume = max(pr.MaxVolume, w*reps)
		}
	}
	return pr, nil
}

// PreviousWeekSets returns the sets of the most recent result for an
// exercise in the current program at week-1, or nil if there is none.
func (t *Tracker) PreviousWeekSets(ctx context.Context, exerciseID string, week int) ([]models.Set, error) {
	if week < 1 {
		return nil, nil
	}
	program := t.Position().Program
	history, err := t.GetExerciseHistory(ctx, exerciseID, 0)
	if err != nil {
		return nil, err
	}
	for _, r := range history {
		if r.Program == program && r.Week != nil && *r.Week == week-1 {
			return r.Sets, nil
		}
	}
	return nil, nil
}
