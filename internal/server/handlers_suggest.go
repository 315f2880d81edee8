package server

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/multierr"

	"github.com/claude/liftlog/internal/models"
	"github.com/claude/liftlog/internal/suggest"
)

type suggestRequest struct {
	ExerciseID   string              `json:"exerciseId"`
	ExerciseName string              `json:"exerciseName"`
	Type         models.ExerciseType `json:"type"`
	Sets         []models.Set        `json:"sets"`
	Target       string              `json:"target"`
}

// writeSuggestion answers 204 when the engine had no usable sets.
func (s *Server) writeSuggestion(w http.ResponseWriter, sug *models.Suggestion, err error) {
	if err != nil {
		s.writeError(w, err)
		return
	}
	if sug == nil {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	writeJSON(w, http.StatusOK, sug)
}

func (s *Server) handleSuggest(w http.ResponseWriter, r *http.Request) {
	var req suggestRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	sug, err := s.engine.Calculate(suggest.Request{
		ExerciseID:   req.ExerciseID,
		ExerciseName: req.ExerciseName,
		Type:         req.Type,
		Sets:         req.Sets,
		Target:       req.Target,
	})
	s.writeSuggestion(w, sug, err)
}

// handleSuggestFromHistory suggests a weight for the given week (default:
// the current one) from the result logged in the week before.
func (s *Server) handleSuggestFromHistory(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if err := s.tracker.Init(ctx); err != nil {
		s.writeError(w, err)
		return
	}
	target := r.URL.Query().Get("target")
	if target == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "target parameter required"})
		return
	}
	week, err := queryInt(r, "week", currentWeek(s.tracker.Position()))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}

	id := chi.URLParam(r, "id")
	sets, err := s.tracker.PreviousWeekSets(ctx, id, week)
	if err != nil {
		s.writeError(w, err)
		return
	}
	sug, err := s.engine.Calculate(suggest.Request{
		ExerciseID:   id,
		ExerciseName: r.URL.Query().Get("name"),
		Type:         models.ExerciseType(r.URL.Query().Get("type")),
		Sets:         sets,
		Target:       target,
	})
	s.writeSuggestion(w, sug, err)
}

type daySuggestionsRequest struct {
	Week      *int                  `json:"week"`
	Exercises []suggest.DayExercise `json:"exercises"`
}

type daySuggestionsResponse struct {
	Suggestions map[string]*models.Suggestion `json:"suggestions"`
	Errors      []string                      `json:"errors"`
}

// handleDaySuggestions computes suggestions for a list of exercises, or
// for the exercises of the current workout when none are given.
func (s *Server) handleDaySuggestions(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var req daySuggestionsRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if err := s.tracker.Init(ctx); err != nil {
		s.writeError(w, err)
		return
	}

	week := currentWeek(s.tracker.Position())
	if req.Week != nil {
		week = *req.Week
	}
	exercises := req.Exercises
	if len(exercises) == 0 {
		var err error
		exercises, err = currentDayExercises(s.tracker.GetCurrentWorkout())
		if err != nil {
			s.writeError(w, err)
			return
		}
	}

	out, err := s.engine.DaySuggestions(exercises, func(id string) ([]models.Set, error) {
		return s.tracker.PreviousWeekSets(ctx, id, week)
	})
	resp := daySuggestionsResponse{Suggestions: out, Errors: []string{}}
	for _, e := range multierr.Errors(err) {
		resp.Errors = append(resp.Errors, e.Error())
	}
	writeJSON(w, http.StatusOK, resp)
}

func currentWeek(p models.Position) int {
	if p.Week == nil {
		return 0
	}
	return *p.Week
}

// currentDayExercises reads the exercises list of a program day.
func currentDayExercises(day models.Record) ([]suggest.DayExercise, error) {
	if day == nil {
		return nil, nil
	}
	var parsed struct {
		Exercises []suggest.DayExercise `json:"exercises"`
	}
	if err := models.FromRecord(day, &parsed); err != nil {
		return nil, err
	}
	return parsed.Exercises, nil
}
