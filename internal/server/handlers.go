package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/claude/liftlog/internal/models"
)

const maxBodyBytes = 10 << 20

func (s *Server) handleGetPosition(w http.ResponseWriter, r *http.Request) {
	if err := s.tracker.Init(r.Context()); err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, s.tracker.Position())
}

type positionRequest struct {
	Program string `json:"program"`
	Week    *int   `json:"week"`
	Day     *int   `json:"day"`
}

func (s *Server) handleSetPosition(w http.ResponseWriter, r *http.Request) {
	var req positionRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.Week == nil || req.Day == nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "program, week and day are required"})
		return
	}
	if err := s.tracker.SetPosition(r.Context(), req.Program, *req.Week, *req.Day); err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, s.tracker.Position())
}

func (s *Server) handleCurrentWorkout(w http.ResponseWriter, r *http.Request) {
	if err := s.tracker.Init(r.Context()); err != nil {
		s.writeError(w, err)
		return
	}
	day := s.tracker.GetCurrentWorkout()
	if day == nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "no workout at the current position"})
		return
	}
	writeJSON(w, http.StatusOK, day)
}

func (s *Server) handleCurrentWorkoutResults(w http.ResponseWriter, r *http.Request) {
	results, err := s.tracker.GetCurrentWorkoutResults(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, nonNil(results))
}

func (s *Server) handleLoadProgram(w http.ResponseWriter, r *http.Request) {
	var doc models.Record
	if !decodeJSON(w, r, &doc) {
		return
	}
	if err := s.tracker.LoadWorkoutData(r.Context(), doc); err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "loaded"})
}

func (s *Server) handleLoadProgramSource(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Source string `json:"source"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.Source == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "source is required"})
		return
	}
	src, ok := s.resolveProgramSource(req.Source)
	if !ok {
		writeJSON(w, http.StatusForbidden, map[string]string{"error": "source must be the configured program source or a file in the data directory"})
		return
	}
	if err := s.tracker.LoadWorkoutDataFrom(r.Context(), src); err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "loaded", "source": req.Source})
}

// resolveProgramSource allows the configured source as is, and otherwise
// only local files inside programDir. Relative paths are taken from
// programDir.
func (s *Server) resolveProgramSource(src string) (string, bool) {
	if s.programSource != "" && src == s.programSource {
		return src, true
	}
	if s.programDir == "" || strings.Contains(src, "://") {
		return "", false
	}
	dir, err := filepath.Abs(s.programDir)
	if err != nil {
		return "", false
	}
	path := src
	if !filepath.IsAbs(path) {
		path = filepath.Join(dir, path)
	}
	path = filepath.Clean(path)
	rel, err := filepath.Rel(dir, path)
	if err != nil || rel == "." || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", false
	}
	return path, true
}

func (s *Server) handleSaveResult(w http.ResponseWriter, r *http.Request) {
	var result models.Result
	if !decodeJSON(w, r, &result) {
		return
	}
	id, err := s.tracker.SaveWorkoutResult(r.Context(), result)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"id": id})
}

func (s *Server) handleGetResult(w http.ResponseWriter, r *http.Request) {
	result, err := s.tracker.GetResult(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleUpdateResult(w http.ResponseWriter, r *http.Request) {
	var updates models.Record
	if !decodeJSON(w, r, &updates) {
		return
	}
	result, err := s.tracker.UpdateWorkoutResult(r.Context(), chi.URLParam(r, "id"), updates)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleDeleteResult(w http.ResponseWriter, r *http.Request) {
	if err := s.tracker.DeleteWorkoutResult(r.Context(), chi.URLParam(r, "id")); err != nil {
		s.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleResultsByDate(w http.ResponseWriter, r *http.Request) {
	start, end, err := parseTimeRange(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}
	results, err := s.tracker.GetResultsByDateRange(r.Context(), start, end)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, nonNil(results))
}

func (s *Server) handleExerciseHistory(w http.ResponseWriter, r *http.Request) {
	limit, err := queryInt(r, "limit", 0)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}
	history, err := s.tracker.GetExerciseHistory(r.Context(), chi.URLParam(r, "id"), limit)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, history)
}

func (s *Server) handlePersonalRecords(w http.ResponseWriter, r *http.Request) {
	pr, err := s.tracker.GetPersonalRecords(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, pr)
}

func (s *Server) handleProgramProgress(w http.ResponseWriter, r *http.Request) {
	p, err := s.tracker.GetProgramProgress(r.Context(), chi.URLParam(r, "program"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (s *Server) handleStatistics(w http.ResponseWriter, r *http.Request) {
	stats, err := s.tracker.GetStatistics(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	payload, err := s.tracker.ExportData(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}
	filename := fmt.Sprintf("workout-tracker-backup-%s.json", time.Now().UTC().Format("2006-01-02"))
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	w.WriteHeader(http.StatusOK)
	io.WriteString(w, payload)
}

func (s *Server) handleImport(w http.ResponseWriter, r *http.Request) {
	merge := false
	if v := r.URL.Query().Get("merge"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "merge must be a boolean"})
			return
		}
		merge = b
	}
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "reading body: " + err.Error()})
		return
	}
	if err := s.tracker.ImportData(r.Context(), string(body), merge); err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "imported", "merge": merge})
}

func (s *Server) handleAlphaImport(w http.ResponseWriter, r *http.Request) {
	result, err := s.alpha.Ingest(r.Context(), http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		s.log.Error("alpha import error", "error", err)
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleClearData(w http.ResponseWriter, r *http.Request) {
	if err := s.tracker.ClearAllData(r.Context()); err != nil {
		s.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// writeError maps the error taxonomy onto HTTP status codes.
func (s *Server) writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, models.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, models.ErrInvalidInput),
		errors.Is(err, models.ErrInvalidWeight),
		errors.Is(err, models.ErrInvalidTargetRange):
		status = http.StatusBadRequest
	case errors.Is(err, models.ErrValidationFailure):
		status = http.StatusUnprocessableEntity
	}
	if status == http.StatusInternalServerError {
		s.log.Error("request failed", "error", err)
	}
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(dst); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON: " + err.Error()})
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// nonNil keeps empty lists encoding as [] rather than null.
func nonNil[T any](xs []T) []T {
	if xs == nil {
		return []T{}
	}
	return xs
}

func queryInt(r *http.Request, name string, def int) (int, error) {
	v := r.URL.Query().Get(name)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s must be an integer", name)
	}
	return n, nil
}

func urlInt(r *http.Request, name string) (int, error) {
	n, err := strconv.Atoi(chi.URLParam(r, name))
	if err != nil {
		return 0, fmt.Errorf("%s must be an integer", name)
	}
	return n, nil
}

func parseTimeRange(r *http.Request) (start, end time.Time, err error) {
	startStr := r.URL.Query().Get("start")
	endStr := r.URL.Query().Get("end")

	if startStr == "" {
		// Default: last 7 days
		end = time.Now()
		start = end.AddDate(0, 0, -7)
		return
	}

	start, err = time.Parse(time.RFC3339, startStr)
	if err != nil {
		start, err = time.Parse("2006-01-02", startStr)
		if err != nil {
			return time.Time{}, time.Time{}, err
		}
	}

	if endStr == "" {
		end = time.Now()
	} else {
		end, err = time.Parse(time.RFC3339, endStr)
		if err != nil {
			end, err = time.Parse("2006-01-02", endStr)
			if err != nil {
				return time.Time{}, time.Time{}, err
			}
			// End of day for date-only
			end = end.Add(24*time.Hour - time.Nanosecond)
		}
	}
	return
}
