package suggest

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/coocood/freecache"

	"github.com/claude/liftlog/internal/metrics"
	"github.com/claude/liftlog/internal/models"
)

// Version is stamped on every suggestion.
const Version = "1.0.0"

// stdDevThreshold is the set score spread above which confidence drops.
const stdDevThreshold = 25

// Request is the input to one suggestion.
type Request struct {
	ExerciseID string
	// ExerciseName is classified instead of ExerciseID when set.
	ExerciseName string
	// Type overrides keyword classification when set.
	Type   models.ExerciseType
	Sets   []models.Set
	Target string
}

// Engine turns last period's sets into a next-weight suggestion. It holds
// no state apart from an optional memo cache.
type Engine struct {
	cache   *freecache.Cache
	log     *slog.Logger
	metrics *metrics.Manager
	now     func() time.Time
}

// New creates an Engine. cacheBytes <= 0 disables memoization.
func New(cacheBytes int, log *slog.Logger) *Engine {
	e := &Engine{log: log, now: time.Now}
	if cacheBytes > 0 {
		e.cache = freecache.NewCache(cacheBytes)
	}
	return e
}

// WithMetrics attaches a metrics manager and returns e.
func (e *Engine) WithMetrics(m *metrics.Manager) *Engine {
	e.metrics = m
	return e
}

// CalculateSuggestedWeight classifies exerciseID by keyword and calls Calculate.
func (e *Engine) CalculateSuggestedWeight(exerciseID string, sets []models.Set, target string) (*models.Suggestion, error) {
	return e.Calculate(Request{ExerciseID: exerciseID, Sets: sets, Target: target})
}

// Calculate returns a suggestion, or nil when there are no usable sets.
//
// Any present weight <= 0 fails with ErrInvalidWeight before filtering.
// Usable sets have weight > 0, reps > 0 and are not marked incomplete.
// The target is parsed only once usable sets exist.
func (e *Engine) Calculate(req Request) (*models.Suggestion, error) {
	if req.ExerciseID == "" {
		return nil, fmt.Errorf("exercise id is required: %w", models.ErrInvalidInput)
	}
	if req.Type != "" {
		typ, err := ParseExerciseType(string(req.Type))
		if err != nil {
			return nil, err
		}
		req.Type = typ
	}
	if len(req.Sets) == 0 {
		return nil, nil
	}
	for i, s := range req.Sets {
		if s.Weight != nil && *s.Weight <= 0 {
			return nil, fmt.Errorf("set %d weight %v must be positive: %w", i+1, *s.Weight, models.ErrInvalidWeight)
		}
	}

	cacheKey := e.cacheKey(req)
	if cached := e.cached(cacheKey); cached != nil {
		return cached, nil
	}

	usable := usableSets(req.Sets)
	if len(usable) == 0 {
		return nil, nil
	}

	r, err := ParseRepRange(req.Target)
	if err != nil {
		return nil, err
	}

	typ := req.Type
	if typ == "" {
		name := req.ExerciseName
		if name == "" {
			name = req.ExerciseID
		}
		typ = Classify(name)
	}

	weights := make([]float64, len(usable))
	reps := make([]float64, len(usable))
	for i, s := range usable {
		weights[i] = s.WeightOrZero()
		reps[i] = s.RepsOrZero()
	}
	avgWeight := mean(weights)

	perf := AnalyzePerformance(usable, r)
	adj := AdjustmentFor(typ, perf.Level)

	suggested := roundHalf(avgWeight + adj.Amount)
	increase := suggested - avgWeight
	var pct float64
	if avgWeight > 0 {
		pct = increase / avgWeight * 100
	}

	confidence := adj.Confidence
	reason := adj.Reason
	if perf.StdDev > stdDevThreshold && confidence == models.ConfidenceHigh {
		confidence = models.ConfidenceMedium
		reason += " (conservative: uneven sets)"
	}

	s := &models.Suggestion{
		ExerciseID:   req.ExerciseID,
		ExerciseType: typ,
		Previous: models.PreviousPeriod{
			Sets:        usable,
			AvgWeight:   roundHalf(avgWeight),
			AvgReps:     roundTenth(mean(reps)),
			TargetRange: formatRange(r),
		},
		Target:             req.Target,
		Performance:        perf,
		SuggestedWeight:    suggested,
		IncreaseAmount:     roundHalf(increase),
		IncreasePercentage: roundTenth(pct),
		Reason:             reason,
		ReasonCode:         adj.ReasonCode,
		Confidence:         confidence,
		CalculatedAt:       e.now().UTC(),
		Version:            Version,
	}
	if len(usable) < len(req.Sets) {
		s.Warning = fmt.Sprintf("Based on %d of %d sets", len(usable), len(req.Sets))
	}
	if len(usable) == 1 {
		s.Note = "Suggestion based on 1 set"
	}

	e.metrics.Suggestion(string(perf.Level))
	e.store(cacheKey, s)
	return s, nil
}

func usableSets(sets []models.Set) []models.Set {
	var out []models.Set
	for _, s := range sets {
		if s.Weight == nil || *s.Weight <= 0 {
			continue
		}
		if s.Reps == nil || *s.Reps <= 0 {
			continue
		}
		if s.Completed != nil && !*s.Completed {
			continue
		}
		out = append(out, s)
	}
	return out
}

// ClearCache drops every memoized suggestion. Call it when the sets a
// suggestion was computed from change.
func (e *Engine) ClearCache() {
	if e.cache != nil {
		e.cache.Clear()
	}
}

func (e *Engine) cacheKey(req Request) []byte {
	if e.cache == nil {
		return nil
	}
	sets, err := json.Marshal(req.Sets)
	if err != nil {
		return nil
	}
	return []byte(fmt.Sprintf("%s|%s|%s|%s|%s", req.ExerciseID, req.ExerciseName, req.Type, sets, req.Target))
}

func (e *Engine) cached(key []byte) *models.Suggestion {
	if key == nil {
		return nil
	}
	data, err := e.cache.Get(key)
	if err != nil {
		return nil
	}
	var s models.Suggestion
	if err := json.Unmarshal(data, &s); err != nil {
		e.log.Warn("suggest: dropping corrupt cache entry", "error", err)
		e.cache.Del(key)
		return nil
	}
	return &s
}

func (e *Engine) store(key []byte, s *models.Suggestion) {
	if key == nil {
		return
	}
	data, err := json.Marshal(s)
	if err != nil {
		return
	}
	if err := e.cache.Set(key, data, 0); err != nil {
		e.log.Debug("suggest: cache set failed", "exercise_id", s.ExerciseID, "error", err)
	}
}
