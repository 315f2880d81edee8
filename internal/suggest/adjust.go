package suggest

import "github.com/claude/liftlog/internal/models"

// Adjustment is one cell of the weight delta table.
type Adjustment struct {
	Amount     float64
	Reason     string
	ReasonCode string
	Confidence models.Confidence
}

var reasonCodes = map[models.PerformanceLevel]string{
	models.Exceeded:   "hit_top_range_all_sets",
	models.Strong:     "hit_top_range_most_sets",
	models.Maintained: "mid_range_consistent",
	models.Struggled:  "bottom_range_struggle",
	models.Failed:     "failed_sets",
}

var adjustments = map[models.ExerciseType]map[models.PerformanceLevel]Adjustment{
	models.Compound: {
		models.Exceeded:   {Amount: 10, Reason: "Crushed it! Time to level up.", Confidence: models.ConfidenceHigh},
		models.Strong:     {Amount: 5, Reason: "Great work! Small bump.", Confidence: models.ConfidenceHigh},
		models.Maintained: {Amount: 0, Reason: "Master this weight first.", Confidence: models.ConfidenceMedium},
		models.Struggled:  {Amount: 0, Reason: "Let's nail this weight.", Confidence: models.ConfidenceLow},
		models.Failed:     {Amount: -5, Reason: "Let's dial it back and reduce weight.", Confidence: models.ConfidenceLow},
	},
	models.Isolation: {
		models.Exceeded:   {Amount: 5, Reason: "Perfect form! Moving up.", Confidence: models.ConfidenceHigh},
		models.Strong:     {Amount: 2.5, Reason: "Solid progress! Slight increase.", Confidence: models.ConfidenceHigh},
		models.Maintained: {Amount: 0, Reason: "Keep building at this weight.", Confidence: models.ConfidenceMedium},
		models.Struggled:  {Amount: 0, Reason: "Focus on control here.", Confidence: models.ConfidenceLow},
		models.Failed:     {Amount: -2.5, Reason: "Drop weight, reduce and perfect technique.", Confidence: models.ConfidenceMedium},
	},
}

// AdjustmentFor looks up the delta for an exercise type and level.
// Unknown types are treated as isolation.
func AdjustmentFor(typ models.ExerciseType, level models.PerformanceLevel) Adjustment {
	table, ok := adjustments[typ]
	if !ok {
		table = adjustments[models.Isolation]
	}
	adj := table[level]
	adj.ReasonCode = reasonCodes[level]
	return adj
}

var reasonMessages = map[string]string{
	"hit_top_range_all_sets":  "You hit the top of the target range on all sets!",
	"hit_top_range_most_sets": "You hit the top range on most sets",
	"mid_range_consistent":    "Consistent performance in target range",
	"exceeded_range":          "You exceeded the target range!",
	"bottom_range_struggle":   "Stay at this weight to build consistency",
	"failed_sets":             "Let's reduce weight and perfect form",
	"first_time_exercise":     "Start with a manageable weight",
	"insufficient_data":       "Not enough data from last week",
}

// ReasonMessage returns display text for a reason code.
func ReasonMessage(code string) string {
	if msg, ok := reasonMessages[code]; ok {
		return msg
	}
	return "Based on last week's performance"
}

// ConfidenceBadgeClass maps a confidence label to its CSS class.
func ConfidenceBadgeClass(c models.Confidence) string {
	switch c {
	case models.ConfidenceHigh, models.ConfidenceMedium, models.ConfidenceLow:
		return "confidence-" + string(c)
	}
	return "confidence-low"
}
