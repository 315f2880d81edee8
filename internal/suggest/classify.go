package suggest

import (
	"fmt"
	"strings"

	"github.com/claude/liftlog/internal/models"
)

// compoundKeywords mark multi-joint lifts. Matching is substring based,
// so "pull" also covers pull-up and pulldown.
var compoundKeywords = []string{
	"squat", "deadlift", "bench", "press", "overhead",
	"row", "pull", "chin", "dip", "lunge",
	"leg press", "thrust", "rdl", "clean", "snatch", "jerk",
	"goodmorning",
}

// Classify labels an exercise name or identifier COMPOUND when it
// contains a compound keyword, ISOLATION otherwise.
func Classify(name string) models.ExerciseType {
	normalized := strings.ToLower(name)
	if normalized == "" {
		return models.Isolation
	}
	for _, kw := range compoundKeywords {
		if strings.Contains(normalized, kw) {
			return models.Compound
		}
	}
	return models.Isolation
}

// ParseExerciseType accepts "compound" or "isolation" in any case.
func ParseExerciseType(s string) (models.ExerciseType, error) {
	switch t := models.ExerciseType(strings.ToUpper(strings.TrimSpace(s))); t {
	case models.Compound, models.Isolation:
		return t, nil
	default:
		return "", fmt.Errorf("exercise type %q must be COMPOUND or ISOLATION: %w", s, models.ErrInvalidInput)
	}
}
