package models

import "time"

// ExerciseType selects the magnitude of weight increments.
type ExerciseType string

const (
	Compound  ExerciseType = "COMPOUND"
	Isolation ExerciseType = "ISOLATION"
)

// PerformanceLevel buckets how reps compared with the target range.
type PerformanceLevel string

const (
	Exceeded   PerformanceLevel = "EXCEEDED"
	Strong     PerformanceLevel = "STRONG"
	Maintained PerformanceLevel = "MAINTAINED"
	Struggled  PerformanceLevel = "STRUGGLED"
	Failed     PerformanceLevel = "FAILED"
)

// Confidence is the qualitative reliability label of a suggestion.
type Confidence string

const (
	ConfidenceHigh   Confidence = "high"
	ConfidenceMedium Confidence = "medium"
	ConfidenceLow    Confidence = "low"
)

// RepRange is a parsed target such as "3x18-20".
type RepRange struct {
	Sets int `json:"sets,omitempty"`
	Min  int `json:"min"`
	Max  int `json:"max"`
}

// Performance is the scored comparison of sets against a RepRange.
type Performance struct {
	Level     PerformanceLevel `json:"level"`
	Score     float64          `json:"score"`
	StdDev    float64          `json:"stdDev"`
	Summary   string           `json:"summary"`
	SetScores []float64        `json:"setScores,omitempty"`
}

// PreviousPeriod echoes the inputs a suggestion was computed from.
type PreviousPeriod struct {
	Sets        []Set   `json:"sets"`
	AvgWeight   float64 `json:"avgWeight"`
	AvgReps     float64 `json:"avgReps"`
	TargetRange string  `json:"targetRange"`
}

// Suggestion is a derived, never persisted, next-weight recommendation.
type Suggestion struct {
	ExerciseID         string         `json:"exerciseId"`
	ExerciseType       ExerciseType   `json:"exerciseType"`
	Previous           PreviousPeriod `json:"previous"`
	Target             string         `json:"target"`
	Performance        Performance    `json:"performance"`
	SuggestedWeight    float64        `json:"suggestedWeight"`
	IncreaseAmount     float64        `json:"increaseAmount"`
	IncreasePercentage float64        `json:"increasePercentage"`
	Reason             string         `json:"reason"`
	ReasonCode         string         `json:"reasonCode"`
	Confidence         Confidence     `json:"confidence"`
	Warning            string         `json:"warning,omitempty"`
	Note               string         `json:"note,omitempty"`
	CalculatedAt       time.Time      `json:"calculatedAt"`
	Version            string         `json:"version"`
}
