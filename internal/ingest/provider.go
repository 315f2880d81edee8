// Package ingest holds what importers of other apps' exports share.
package ingest

// Result holds the outcome of an ingest operation.
type Result struct {
	SessionsReceived  int `json:"sessions_received"`
	ExercisesReceived int `json:"exercises_received"`
	SetsReceived      int `json:"sets_received"`

	ResultsInserted int `json:"results_inserted"`
	ResultsSkipped  int `json:"results_skipped"`

	Message string `json:"message,omitempty"`
}
