package models

import "time"

// Position is the user's pointer into the loaded program definition.
// Week and Day are zero-based indices and stay nil until first set.
type Position struct {
	Program string `json:"program"`
	Week    *int   `json:"week"`
	Day     *int   `json:"day"`
}

// IsSet reports whether all three coordinates are present.
func (p Position) IsSet() bool {
	return p.Program != "" && p.Week != nil && p.Day != nil
}

// Matches reports whether the coordinates equal the given values.
func (p Position) Matches(program string, week, day *int) bool {
	return p.Program == program && intPtrEqual(p.Week, week) && intPtrEqual(p.Day, day)
}

func intPtrEqual(a, b *int) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

// IntPtr returns a pointer to v.
func IntPtr(v int) *int { return &v }

// PositionRecord is the persisted mirror of Position in the progress collection.
type PositionRecord struct {
	Key       string    `json:"key"`
	Program   string    `json:"program"`
	Week      *int      `json:"week"`
	Day       *int      `json:"day"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Set is one performed set. Pointer fields distinguish "absent" from zero,
// which the suggestion filter treats differently.
type Set struct {
	Weight    *float64 `json:"weight,omitempty"`
	Reps      *float64 `json:"reps,omitempty"`
	Completed *bool    `json:"completed,omitempty"`
}

// NewSet builds a set with weight, reps and an explicit completed flag.
func NewSet(weight, reps float64, completed bool) Set {
	return Set{Weight: &weight, Reps: &reps, Completed: &completed}
}

// WeightOrZero returns the weight, or 0 when absent.
func (s Set) WeightOrZero() float64 {
	if s.Weight == nil {
		return 0
	}
	return *s.Weight
}

// RepsOrZero returns the reps, or 0 when absent.
func (s Set) RepsOrZero() float64 {
	if s.Reps == nil {
		return 0
	}
	return *s.Reps
}

// IsCompleted reports an explicit completed=true flag.
func (s Set) IsCompleted() bool {
	return s.Completed != nil && *s.Completed
}

// Result is one completed exercise attempt in the results log.
type Result struct {
	ID           string     `json:"id"`
	Program      string     `json:"program"`
	Week         *int       `json:"week"`
	Day          *int       `json:"day"`
	ExerciseID   string     `json:"exerciseId"`
	ExerciseName string     `json:"exerciseName"`
	Date         time.Time  `json:"date"`
	Sets         []Set      `json:"sets"`
	Notes        string     `json:"notes"`
	Duration     *float64   `json:"duration"`
	Rating       *float64   `json:"rating"`
	UpdatedAt    *time.Time `json:"updatedAt,omitempty"`
}

// Volume returns the sum of weight×reps across all sets.
func (r Result) Volume() float64 {
	var total float64
	for _, s := range r.Sets {
		total += s.WeightOrZero() * s.RepsOrZero()
	}
	return total
}

// ProgramProgress aggregates the results logged under one program.
type ProgramProgress struct {
	TotalWorkouts      int     `json:"totalWorkouts"`
	CompletedExercises int     `json:"completedExercises"`
	TotalSets          int     `json:"totalSets"`
	AverageRating      float64 `json:"averageRating"`
}

// PersonalRecords holds the bests for one exercise across completed sets.
type PersonalRecords struct {
	MaxWeight float64 `json:"maxWeight"`
	MaxReps   float64 `json:"maxReps"`
	MaxVolume float64 `json:"maxVolume"`
}

// WorkoutTotals summarises the whole results log.
type WorkoutTotals struct {
	Total       int     `json:"total"`
	UniqueDays  int     `json:"uniqueDays"`
	TotalSets   int     `json:"totalSets"`
	TotalVolume float64 `json:"totalVolume"`
}

// StoreStats describes one collection's footprint.
type StoreStats struct {
	Count int `json:"count"`
	Size  int `json:"size"`
}

// StorageStats is the persistence layer's view of itself.
type StorageStats struct {
	StorageType string                    `json:"storageType"`
	Version     string                    `json:"version"`
	Stores      map[Collection]StoreStats `json:"stores"`
}

// Statistics is the tracker's combined report.
type Statistics struct {
	Storage         StorageStats  `json:"storage"`
	Workouts        WorkoutTotals `json:"workouts"`
	CurrentPosition Position      `json:"currentPosition"`
}
