// Package retrieval reads and writes individual logged sets stored as flat
// keys of the form {program}_w{week}_d{day}_{exerciseId}_{set}.
package retrieval

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/claude/liftlog/internal/models"
	"github.com/claude/liftlog/internal/storage"
	"github.com/claude/liftlog/internal/suggest"
)

const (
	// MaxSets is the highest set number probed per exercise.
	MaxSets = 5
	// DaysPerWeek bounds the day number.
	DaysPerWeek = 5

	highWeight = 1000
	highReps   = 100
)

var exerciseIDRe = regexp.MustCompile(`^[A-Z]\d+$`)

// SetKey is the parsed form of a set key.
type SetKey struct {
	Week       int    `json:"week"`
	Day        int    `json:"day"`
	ExerciseID string `json:"exerciseId"`
	Set        int    `json:"set"`
}

// SetEntry is one stored set.
type SetEntry struct {
	Set       int     `json:"set"`
	Weight    float64 `json:"weight"`
	Reps      float64 `json:"reps"`
	Completed *bool   `json:"completed,omitempty"`
}

// ToSet converts the entry for the suggestion engine.
func (e SetEntry) ToSet() models.Set {
	w, r := e.Weight, e.Reps
	return models.Set{Weight: &w, Reps: &r, Completed: e.Completed}
}

// storedSet is the value written under a set key.
type storedSet struct {
	Weight    *float64 `json:"weight"`
	Reps      *float64 `json:"reps"`
	Completed *bool    `json:"completed,omitempty"`
}

// Store accesses raw set keys for one program over a flat substrate.
type Store struct {
	flat    storage.FlatStore
	program string
	keyRe   *regexp.Regexp
	log     *slog.Logger
}

// New creates a Store for program.
func New(flat storage.FlatStore, program string, log *slog.Logger) *Store {
	return &Store{
		flat:    flat,
		program: program,
		keyRe:   regexp.MustCompile(`^` + regexp.QuoteMeta(program) + `_w(\d+)_d(\d+)_([A-Z]\d+)_(\d+)$`),
		log:     log,
	}
}

// BuildKey formats a set key.
func BuildKey(program string, week, day int, exerciseID string, set int) string {
	return fmt.Sprintf("%s_w%d_d%d_%s_%d", program, week, day, exerciseID, set)
}

// ParseKey parses a key of this store's program. ok is false for keys of
// any other shape.
func (s *Store) ParseKey(key string) (SetKey, bool) {
	m := s.keyRe.FindStringSubmatch(key)
	if m == nil {
		return SetKey{}, false
	}
	week, _ := strconv.Atoi(m[1])
	day, _ := strconv.Atoi(m[2])
	set, _ := strconv.Atoi(m[4])
	return SetKey{Week: week, Day: day, ExerciseID: m[3], Set: set}, true
}

func validateCoords(exerciseID string, day, week int) error {
	if day < 1 || day > DaysPerWeek {
		return fmt.Errorf("day %d out of range 1-%d: %w", day, DaysPerWeek, models.ErrInvalidInput)
	}
	if week < 1 {
		return fmt.Errorf("week %d must be at least 1: %w", week, models.ErrInvalidInput)
	}
	if exerciseID != "" && !exerciseIDRe.MatchString(exerciseID) {
		return fmt.Errorf("exercise id %q must look like A1: %w", exerciseID, models.ErrInvalidInput)
	}
	return nil
}

// SaveSet stores one set.
func (s *Store) SaveSet(ctx context.Context, week, day int, exerciseID string, entry SetEntry) error {
	if exerciseID == "" {
		return fmt.Errorf("exercise id is required: %w", models.ErrInvalidInput)
	}
	if err := validateCoords(exerciseID, day, week); err != nil {
		return err
	}
	if entry.Set < 1 || entry.Set > MaxSets {
		return fmt.Errorf("set %d out of range 1-%d: %w", entry.Set, MaxSets, models.ErrInvalidInput)
	}
	if entry.Weight < 0 || entry.Reps < 0 {
		return fmt.Errorf("negative weight or reps: %w", models.ErrInvalidInput)
	}

	data, err := json.Marshal(storedSet{Weight: &entry.Weight, Reps: &entry.Reps, Completed: entry.Completed})
	if err != nil {
		return fmt.Errorf("encoding set: %w", err)
	}
	key := BuildKey(s.program, week, day, exerciseID, entry.Set)
	if err := s.flat.SetItem(ctx, key, string(data)); err != nil {
		return fmt.Errorf("saving %s: %w", key, err)
	}
	return nil
}

// WeekResults reads sets 1..MaxSets for an exercise, stopping at the
// first missing set. It returns nil when no set exists. Corrupt or
// negative data fails the whole read with ErrValidationFailure.
func (s *Store) WeekResults(ctx context.Context, exerciseID string, day, week int) ([]SetEntry, error) {
	if exerciseID == "" {
		return nil, fmt.Errorf("exercise id is required: %w", models.ErrInvalidInput)
	}
	if err := validateCoords(exerciseID, day, week); err != nil {
		return nil, err
	}

	var out []SetEntry
	for set := 1; set <= MaxSets; set++ {
		key := BuildKey(s.program, week, day, exerciseID, set)
		raw, ok, err := s.flat.GetItem(ctx, key)
		if err != nil {
			return nil, fmt.Errorf("reading %s: %w", key, err)
		}
		if !ok {
			break
		}
		entry, err := decodeSet(raw)
		if err != nil {
			s.log.Error("retrieval: corrupt set", "key", key, "error", err)
			return nil, fmt.Errorf("reading %s: %w", key, err)
		}
		entry.Set = set
		out = append(out, entry)
	}
	return out, nil
}

func decodeSet(raw string) (SetEntry, error) {
	var v storedSet
	if err := json.Unmarshal([]byte(raw), &v); err != nil {
		return SetEntry{}, fmt.Errorf("%v: %w", err, models.ErrValidationFailure)
	}
	if v.Weight == nil || v.Reps == nil {
		return SetEntry{}, fmt.Errorf("weight and reps are required: %w", models.ErrValidationFailure)
	}
	if *v.Weight < 0 || *v.Reps < 0 {
		return SetEntry{}, fmt.Errorf("negative values: %w", models.ErrValidationFailure)
	}
	return SetEntry{Weight: *v.Weight, Reps: *v.Reps, Completed: v.Completed}, nil
}

// keysWithPrefix returns the sorted store keys starting with prefix.
func (s *Store) keysWithPrefix(ctx context.Context, prefix string) ([]string, error) {
	all, err := s.flat.Keys(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing keys: %w", err)
	}
	var keys []string
	for _, k := range all {
		if strings.HasPrefix(k, prefix) {
			keys = append(keys, k)
		}
	}
	return keys, nil
}

// DayResults returns the sets of every exercise logged on a day, keyed by
// exercise id. Exercises whose data is corrupt are logged and left out.
func (s *Store) DayResults(ctx context.Context, day, week int) (map[string][]SetEntry, error) {
	if err := validateCoords("", day, week); err != nil {
		return nil, err
	}
	keys, err := s.keysWithPrefix(ctx, fmt.Sprintf("%s_w%d_d%d_", s.program, week, day))
	if err != nil {
		return nil, err
	}

	out := make(map[string][]SetEntry)
	for _, k := range keys {
		parsed, ok := s.ParseKey(k)
		if !ok || parsed.Week != week || parsed.Day != day {
			continue
		}
		if _, seen := out[parsed.ExerciseID]; seen {
			continue
		}
		sets, err := s.WeekResults(ctx, parsed.ExerciseID, day, week)
		if err != nil {
			s.log.Warn("retrieval: skipping exercise", "exercise_id", parsed.ExerciseID, "error", err)
			out[parsed.ExerciseID] = nil
			continue
		}
		out[parsed.ExerciseID] = sets
	}
	for id, sets := range out {
		if len(sets) == 0 {
			delete(out, id)
		}
	}
	return out, nil
}

// Completeness compares logged sets with the prescribed count.
type Completeness struct {
	IsComplete   bool       `json:"isComplete"`
	FoundSets    int        `json:"foundSets"`
	ExpectedSets int        `json:"expectedSets"`
	Data         []SetEntry `json:"data"`
	Message      string     `json:"message"`
}

// HasCompleteWeekData reports whether exactly expectedSets sets are logged.
func (s *Store) HasCompleteWeekData(ctx context.Context, exerciseID string, day, expectedSets, week int) (Completeness, error) {
	c := Completeness{ExpectedSets: expectedSets}
	if expectedSets < 1 {
		return c, fmt.Errorf("expected sets %d must be positive: %w", expectedSets, models.ErrInvalidInput)
	}
	sets, err := s.WeekResults(ctx, exerciseID, day, week)
	if err != nil {
		return c, err
	}
	if len(sets) == 0 {
		c.Message = "No data found"
		return c, nil
	}

	c.FoundSets = len(sets)
	c.Data = sets
	c.IsComplete = c.FoundSets == expectedSets
	switch {
	case c.IsComplete:
		c.Message = "Complete data found"
	case c.FoundSets < expectedSets:
		c.Message = fmt.Sprintf("Incomplete: found %d/%d sets", c.FoundSets, expectedSets)
	default:
		c.Message = fmt.Sprintf("Extra data: found %d/%d sets", c.FoundSets, expectedSets)
	}
	return c, nil
}

// WeekStats counts logged exercises for a week.
type WeekStats struct {
	TotalExercises int         `json:"totalExercises"`
	ByDay          map[int]int `json:"byDay"`
	ExerciseIDs    []string    `json:"exerciseIds"`
}

// WeekDataStats counts exercises per day and overall for a week.
func (s *Store) WeekDataStats(ctx context.Context, week int) (WeekStats, error) {
	stats := WeekStats{ByDay: make(map[int]int, DaysPerWeek), ExerciseIDs: []string{}}
	seen := make(map[string]bool)
	for day := 1; day <= DaysPerWeek; day++ {
		results, err := s.DayResults(ctx, day, week)
		if err != nil {
			return stats, err
		}
		stats.ByDay[day] = len(results)
		for id := range results {
			if !seen[id] {
				seen[id] = true
				stats.ExerciseIDs = append(stats.ExerciseIDs, id)
			}
		}
	}
	sort.Strings(stats.ExerciseIDs)
	stats.TotalExercises = len(stats.ExerciseIDs)
	return stats, nil
}

// ValidationReport lists problems found in a week's raw data. Errors make
// the data invalid; warnings flag suspicious values.
type ValidationReport struct {
	IsValid  bool     `json:"isValid"`
	Errors   []string `json:"errors"`
	Warnings []string `json:"warnings"`
}

// ValidateWeekData checks every key of a week for format and plausibility.
func (s *Store) ValidateWeekData(ctx context.Context, week int) (ValidationReport, error) {
	report := ValidationReport{IsValid: true, Errors: []string{}, Warnings: []string{}}
	keys, err := s.keysWithPrefix(ctx, fmt.Sprintf("%s_w%d_", s.program, week))
	if err != nil {
		return report, err
	}

	fail := func(format string, args ...any) {
		report.Errors = append(report.Errors, fmt.Sprintf(format, args...))
		report.IsValid = false
	}
	for _, k := range keys {
		if _, ok := s.ParseKey(k); !ok {
			fail("Invalid key format: %s", k)
			continue
		}
		raw, ok, err := s.flat.GetItem(ctx, k)
		if err != nil {
			return report, fmt.Errorf("reading %s: %w", k, err)
		}
		if !ok {
			continue
		}
		var v storedSet
		if err := json.Unmarshal([]byte(raw), &v); err != nil {
			fail("Corrupted data in %s: %v", k, err)
			continue
		}
		if v.Weight == nil || v.Reps == nil {
			fail("Invalid data structure in %s", k)
			continue
		}
		w, r := *v.Weight, *v.Reps
		if w < 0 || r < 0 {
			fail("Negative values in %s", k)
		}
		if w == 0 || r == 0 {
			report.Warnings = append(report.Warnings, fmt.Sprintf("Zero values in %s", k))
		}
		if w > highWeight {
			report.Warnings = append(report.Warnings, fmt.Sprintf("Unusually high weight (%g) in %s", w, k))
		}
		if r > highReps {
			report.Warnings = append(report.Warnings, fmt.Sprintf("Unusually high reps (%g) in %s", r, k))
		}
	}
	return report, nil
}

// ClearWeekData removes every key of a week and returns how many were removed.
func (s *Store) ClearWeekData(ctx context.Context, week int) (int, error) {
	if week < 1 {
		return 0, fmt.Errorf("week %d must be at least 1: %w", week, models.ErrInvalidInput)
	}
	keys, err := s.keysWithPrefix(ctx, fmt.Sprintf("%s_w%d_", s.program, week))
	if err != nil {
		return 0, err
	}
	for i, k := range keys {
		if err := s.flat.RemoveItem(ctx, k); err != nil {
			return i, fmt.Errorf("removing %s: %w", k, err)
		}
	}
	s.log.Info("retrieval: cleared week", "program", s.program, "week", week, "removed", len(keys))
	return len(keys), nil
}

// SuggestForExercise suggests a weight for week from the sets logged in
// the week before it. It returns nil when nothing was logged.
func (s *Store) SuggestForExercise(ctx context.Context, engine *suggest.Engine, exerciseID string, day, week int, target string) (*models.Suggestion, error) {
	if week < 2 {
		return nil, fmt.Errorf("week %d has no previous week: %w", week, models.ErrInvalidInput)
	}
	entries, err := s.WeekResults(ctx, exerciseID, day, week-1)
	if err != nil {
		return nil, err
	}
	if len(entries) == 0 {
		return nil, nil
	}
	sets := make([]models.Set, len(entries))
	for i, e := range entries {
		sets[i] = e.ToSet()
	}
	return engine.CalculateSuggestedWeight(exerciseID, sets, target)
}
