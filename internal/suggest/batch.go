package suggest

import (
	"fmt"

	"go.uber.org/multierr"

	"github.com/claude/liftlog/internal/models"
)

// DayExercise is one prescribed exercise of a program day.
type DayExercise struct {
	ID       string              `json:"id"`
	Name     string              `json:"name,omitempty"`
	SetsReps string              `json:"setsReps"`
	Type     models.ExerciseType `json:"type,omitempty"`
}

// SetSource returns last period's sets for an exercise.
type SetSource func(exerciseID string) ([]models.Set, error)

// DaySuggestions computes a suggestion per exercise. Exercises without
// prior sets are left out. Failures do not stop the batch; they are
// combined into the returned error alongside the successful results.
func (e *Engine) DaySuggestions(exercises []DayExercise, source SetSource) (map[string]*models.Suggestion, error) {
	out := make(map[string]*models.Suggestion, len(exercises))
	var errs error
	for _, ex := range exercises {
		sets, err := source(ex.ID)
		if err != nil {
			errs = multierr.Append(errs, fmt.Errorf("loading sets for %s: %w", ex.ID, err))
			continue
		}
		if len(sets) == 0 {
			continue
		}
		s, err := e.Calculate(Request{
			ExerciseID:   ex.ID,
			ExerciseName: ex.Name,
			Type:         ex.Type,
			Sets:         sets,
			Target:       ex.SetsReps,
		})
		if err != nil {
			errs = multierr.Append(errs, fmt.Errorf("suggesting %s: %w", ex.ID, err))
			continue
		}
		if s != nil {
			out[ex.ID] = s
		}
	}
	return out, errs
}
