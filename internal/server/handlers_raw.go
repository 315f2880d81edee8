package server

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/claude/liftlog/internal/retrieval"
)

func (s *Server) rawRoutes(r chi.Router) {
	r.Get("/stats", s.handleRawWeekStats)
	r.Get("/validate", s.handleRawValidateWeek)
	r.Get("/days/{day}", s.handleRawDay)
	r.Get("/days/{day}/exercises/{id}", s.handleRawExercise)
	r.Get("/days/{day}/exercises/{id}/complete", s.handleRawCompleteness)
	r.Get("/days/{day}/exercises/{id}/suggestion", s.handleRawSuggestion)

	r.Group(func(r chi.Router) {
		r.Use(APIKeyAuth(s.apiKey))
		r.Delete("/", s.handleRawClearWeek)
		r.Put("/days/{day}/exercises/{id}/sets/{set}", s.handleRawSaveSet)
	})
}

// rawCoords parses the week and, when present, day URL parameters.
func rawCoords(w http.ResponseWriter, r *http.Request, withDay bool) (week, day int, ok bool) {
	week, err := urlInt(r, "week")
	if err == nil && withDay {
		day, err = urlInt(r, "day")
	}
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return 0, 0, false
	}
	return week, day, true
}

func (s *Server) handleRawWeekStats(w http.ResponseWriter, r *http.Request) {
	week, _, ok := rawCoords(w, r, false)
	if !ok {
		return
	}
	stats, err := s.raw.WeekDataStats(r.Context(), week)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (s *Server) handleRawValidateWeek(w http.ResponseWriter, r *http.Request) {
	week, _, ok := rawCoords(w, r, false)
	if !ok {
		return
	}
	report, err := s.raw.ValidateWeekData(r.Context(), week)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

func (s *Server) handleRawClearWeek(w http.ResponseWriter, r *http.Request) {
	week, _, ok := rawCoords(w, r, false)
	if !ok {
		return
	}
	n, err := s.raw.ClearWeekData(r.Context(), week)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"removed": n})
}

func (s *Server) handleRawDay(w http.ResponseWriter, r *http.Request) {
	week, day, ok := rawCoords(w, r, true)
	if !ok {
		return
	}
	results, err := s.raw.DayResults(r.Context(), day, week)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, results)
}

func (s *Server) handleRawExercise(w http.ResponseWriter, r *http.Request) {
	week, day, ok := rawCoords(w, r, true)
	if !ok {
		return
	}
	sets, err := s.raw.WeekResults(r.Context(), chi.URLParam(r, "id"), day, week)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, nonNil(sets))
}

func (s *Server) handleRawCompleteness(w http.ResponseWriter, r *http.Request) {
	week, day, ok := rawCoords(w, r, true)
	if !ok {
		return
	}
	expected, err := queryInt(r, "expected", 0)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}
	c, err := s.raw.HasCompleteWeekData(r.Context(), chi.URLParam(r, "id"), day, expected, week)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

func (s *Server) handleRawSuggestion(w http.ResponseWriter, r *http.Request) {
	week, day, ok := rawCoords(w, r, true)
	if !ok {
		return
	}
	target := r.URL.Query().Get("target")
	if target == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "target parameter required"})
		return
	}
	sug, err := s.raw.SuggestForExercise(r.Context(), s.engine, chi.URLParam(r, "id"), day, week, target)
	s.writeSuggestion(w, sug, err)
}

func (s *Server) handleRawSaveSet(w http.ResponseWriter, r *http.Request) {
	week, day, ok := rawCoords(w, r, true)
	if !ok {
		return
	}
	set, err := urlInt(r, "set")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}
	var entry retrieval.SetEntry
	if !decodeJSON(w, r, &entry) {
		return
	}
	entry.Set = set
	if err := s.raw.SaveSet(r.Context(), week, day, chi.URLParam(r, "id"), entry); err != nil {
		s.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
