package suggest

import (
	"fmt"
	"math"

	"github.com/claude/liftlog/internal/models"
)

// Level thresholds on the mean set score, checked top-down.
const (
	exceededScore   = 100
	strongScore     = 75
	maintainedScore = 50
	struggledScore  = 25
)

// scoreSet rates one set's reps against r on a 0-100 scale:
// at or above max is 100, exactly min is 25, between them is linear, and
// below min falls linearly from 25 toward 0.
func scoreSet(reps float64, r models.RepRange) float64 {
	lo, hi := float64(r.Min), float64(r.Max)
	switch {
	case reps >= hi:
		return 100
	case reps == lo:
		return 25
	case reps > lo:
		return 25 + 75*(reps-lo)/(hi-lo)
	case lo <= 0:
		return 0
	default:
		return math.Max(0, 25*reps/lo)
	}
}

func levelFor(score float64) models.PerformanceLevel {
	switch {
	case score >= exceededScore:
		return models.Exceeded
	case score >= strongScore:
		return models.Strong
	case score >= maintainedScore:
		return models.Maintained
	case score >= struggledScore:
		return models.Struggled
	default:
		return models.Failed
	}
}

// AnalyzePerformance scores sets against r. Any set explicitly marked not
// completed forces FAILED regardless of reps.
func AnalyzePerformance(sets []models.Set, r models.RepRange) models.Performance {
	if len(sets) == 0 {
		return models.Performance{Level: models.Failed, Summary: "No sets recorded"}
	}

	incomplete := 0
	for _, s := range sets {
		if s.Completed != nil && !*s.Completed {
			incomplete++
		}
	}
	if incomplete > 0 {
		return models.Performance{
			Level:   models.Failed,
			Summary: fmt.Sprintf("%d set(s) not completed", incomplete),
		}
	}

	scores := make([]float64, len(sets))
	for i, s := range sets {
		scores[i] = scoreSet(s.RepsOrZero(), r)
	}
	avg := mean(scores)

	return models.Performance{
		Level:     levelFor(avg),
		Score:     math.Round(avg),
		StdDev:    math.Round(stdDev(scores, avg)*10) / 10,
		Summary:   fmt.Sprintf("Avg %.0f%% of target range", math.Round(avg)),
		SetScores: scores,
	}
}

func mean(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	var sum float64
	for _, x := range xs {
		sum += x
	}
	return sum / float64(len(xs))
}

// stdDev is the population standard deviation of xs around mu.
func stdDev(xs []float64, mu float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	var sq float64
	for _, x := range xs {
		sq += (x - mu) * (x - mu)
	}
	return math.Sqrt(sq / float64(len(xs)))
}

func roundHalf(x float64) float64 {
	return math.Round(x*2) / 2
}

func roundTenth(x float64) float64 {
	return math.Round(x*10) / 10
}
