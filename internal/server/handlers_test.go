package server

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/claude/liftlog/internal/metrics"
	"github.com/claude/liftlog/internal/models"
	"github.com/claude/liftlog/internal/retrieval"
	"github.com/claude/liftlog/internal/storage"
	"github.com/claude/liftlog/internal/suggest"
	"github.com/claude/liftlog/internal/tracker"
)

const testKey = "test-key"

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestServer(t *testing.T) *Server {
	t.Helper()
	log := testLogger()

	flat, err := storage.OpenLocalFlat("", storage.DefaultQuotaBytes)
	if err != nil {
		t.Fatal(err)
	}
	layer := storage.New(flat, nil, storage.Options{}, log)
	tr := tracker.New(layer, log)
	t.Cleanup(func() { tr.Close() })

	rawFlat, err := storage.OpenLocalFlat("", 0)
	if err != nil {
		t.Fatal(err)
	}

	reg := prometheus.NewRegistry()
	return New(Deps{
		Tracker:  tr,
		Engine:   suggest.New(0, log),
		Raw:      retrieval.New(rawFlat, "programA", log),
		Metrics:  metrics.NewManager("liftlog", "test", reg),
		Gatherer: reg,
	}, testKey, log)
}

func do(t *testing.T, s *Server, method, path, body string, auth bool) *httptest.ResponseRecorder {
	t.Helper()
	var rd io.Reader
	if body != "" {
		rd = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, rd)
	if auth {
		req.Header.Set("X-API-Key", testKey)
	}
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.NewDecoder(rec.Body).Decode(&v); err != nil {
		t.Fatalf("decode error: %v (body %q)", err, rec.Body.String())
	}
	return v
}

const programJSON = `{"programs":[{"id":"programA","weeks":[
	{"days":[{"name":"Push","exercises":[{"id":"A1","name":"Bench Press","setsReps":"2x18-20"}]}]},
	{"days":[{"name":"Push","exercises":[{"id":"A1","name":"Bench Press","setsReps":"2x18-20"}]}]}
]}]}`

const twoSets = `[{"weight":145,"reps":20,"completed":true},{"weight":145,"reps":20,"completed":true}]`

// TestWritesRequireAPIKey verifies mutating routes reject missing and wrong keys.
func TestWritesRequireAPIKey(t *testing.T) {
	s := newTestServer(t)

	rec := do(t, s, http.MethodPut, "/api/v1/position", `{"program":"programA","week":0,"day":0}`, false)
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("no key: status = %d, want 401", rec.Code)
	}

	req := httptest.NewRequest(http.MethodDelete, "/api/v1/data", nil)
	req.Header.Set("X-API-Key", "wrong")
	rec = httptest.NewRecorder()
	s.ServeHTTP(rec, req)
	if rec.Code != http.StatusForbidden {
		t.Errorf("wrong key: status = %d, want 403", rec.Code)
	}

	if rec := do(t, s, http.MethodGet, "/api/v1/position", "", false); rec.Code != http.StatusOK {
		t.Errorf("read without key: status = %d, want 200", rec.Code)
	}
}

// TestPositionAndCurrentWorkout verifies position updates resolve the
// current day of the loaded program.
func TestPositionAndCurrentWorkout(t *testing.T) {
	s := newTestServer(t)

	if rec := do(t, s, http.MethodGet, "/api/v1/workout/current", "", false); rec.Code != http.StatusNotFound {
		t.Errorf("before load: status = %d, want 404", rec.Code)
	}
	if rec := do(t, s, http.MethodPost, "/api/v1/program", programJSON, true); rec.Code != http.StatusOK {
		t.Fatalf("load program: status = %d, body %s", rec.Code, rec.Body)
	}
	if rec := do(t, s, http.MethodPost, "/api/v1/program", `{"nope":1}`, true); rec.Code != http.StatusUnprocessableEntity {
		t.Errorf("bad program: status = %d, want 422", rec.Code)
	}

	rec := do(t, s, http.MethodPut, "/api/v1/position", `{"program":"programA","week":1,"day":0}`, true)
	if rec.Code != http.StatusOK {
		t.Fatalf("set position: status = %d, body %s", rec.Code, rec.Body)
	}
	pos := decode[models.Position](t, rec)
	if !pos.Matches("programA", models.IntPtr(1), models.IntPtr(0)) {
		t.Errorf("position = %+v", pos)
	}

	if rec := do(t, s, http.MethodPut, "/api/v1/position", `{"program":"programA"}`, true); rec.Code != http.StatusBadRequest {
		t.Errorf("missing week: status = %d, want 400", rec.Code)
	}

	rec = do(t, s, http.MethodGet, "/api/v1/workout/current", "", false)
	if rec.Code != http.StatusOK {
		t.Fatalf("current workout: status = %d", rec.Code)
	}
	day := decode[models.Record](t, rec)
	if day.String("name") != "Push" {
		t.Errorf("day = %v", day)
	}
}

// TestProgramSourceRestricted verifies program sources are limited to the
// data directory and the configured source.
func TestProgramSourceRestricted(t *testing.T) {
	s := newTestServer(t)
	dir := t.TempDir()
	s.programDir = dir
	s.programSource = "https://programs.example.com/ppl.json"

	if err := os.WriteFile(filepath.Join(dir, "program.json"), []byte(programJSON), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "broken.json"), []byte("secret-token-123"), 0o644); err != nil {
		t.Fatal(err)
	}
	outside := filepath.Join(t.TempDir(), "program.json")
	if err := os.WriteFile(outside, []byte(programJSON), 0o644); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name   string
		source string
		want   int
	}{
		{"relative in dir", "program.json", http.StatusOK},
		{"absolute in dir", filepath.Join(dir, "program.json"), http.StatusOK},
		{"outside dir", outside, http.StatusForbidden},
		{"parent escape", "../program.json", http.StatusForbidden},
		{"system file", "/etc/passwd", http.StatusForbidden},
		{"other url", "http://169.254.169.254/latest", http.StatusForbidden},
		{"malformed file", "broken.json", http.StatusUnprocessableEntity},
	}
	for _, tt := range tests {
		body, _ := json.Marshal(map[string]string{"source": tt.source})
		rec := do(t, s, http.MethodPost, "/api/v1/program/source", string(body), true)
		if rec.Code != tt.want {
			t.Errorf("%s: status = %d, want %d (body %s)", tt.name, rec.Code, tt.want, rec.Body)
		}
		if strings.Contains(rec.Body.String(), "secret") {
			t.Errorf("%s: body leaks file content: %s", tt.name, rec.Body)
		}
	}
}

// TestResultLifecycle covers create, read, update, delete and the error statuses.
func TestResultLifecycle(t *testing.T) {
	s := newTestServer(t)

	rec := do(t, s, http.MethodPost, "/api/v1/results", `{"exerciseId":"A1","sets":`+twoSets+`}`, true)
	if rec.Code != http.StatusCreated {
		t.Fatalf("create: status = %d, body %s", rec.Code, rec.Body)
	}
	id := decode[map[string]string](t, rec)["id"]
	if !strings.HasPrefix(id, "result_") {
		t.Fatalf("id = %q", id)
	}

	rec = do(t, s, http.MethodGet, "/api/v1/results/"+id, "", false)
	if rec.Code != http.StatusOK {
		t.Fatalf("get: status = %d", rec.Code)
	}
	if got := decode[models.Result](t, rec); got.ExerciseID != "A1" || len(got.Sets) != 2 {
		t.Errorf("result = %+v", got)
	}

	rec = do(t, s, http.MethodPatch, "/api/v1/results/"+id, `{"notes":"felt easy"}`, true)
	if rec.Code != http.StatusOK {
		t.Fatalf("patch: status = %d, body %s", rec.Code, rec.Body)
	}
	if got := decode[models.Result](t, rec); got.Notes != "felt easy" || got.UpdatedAt == nil {
		t.Errorf("patched = %+v", got)
	}

	rec = do(t, s, http.MethodGet, "/api/v1/exercises/A1/history?limit=5", "", false)
	if history := decode[[]models.Result](t, rec); len(history) != 1 {
		t.Errorf("history = %d results, want 1", len(history))
	}
	rec = do(t, s, http.MethodGet, "/api/v1/exercises/A1/records", "", false)
	if pr := decode[models.PersonalRecords](t, rec); pr.MaxWeight != 145 || pr.MaxVolume != 2900 {
		t.Errorf("records = %+v", pr)
	}

	if rec := do(t, s, http.MethodDelete, "/api/v1/results/"+id, "", true); rec.Code != http.StatusNoContent {
		t.Errorf("delete: status = %d, want 204", rec.Code)
	}
	if rec := do(t, s, http.MethodGet, "/api/v1/results/"+id, "", false); rec.Code != http.StatusNotFound {
		t.Errorf("get deleted: status = %d, want 404", rec.Code)
	}
	if rec := do(t, s, http.MethodDelete, "/api/v1/results/"+id, "", true); rec.Code != http.StatusNotFound {
		t.Errorf("delete twice: status = %d, want 404", rec.Code)
	}

	tests := []struct {
		name string
		body string
		want int
	}{
		{"invalid json", `{`, http.StatusBadRequest},
		{"no sets", `{"exerciseId":"A1","sets":[]}`, http.StatusBadRequest},
	}
	for _, tt := range tests {
		if rec := do(t, s, http.MethodPost, "/api/v1/results", tt.body, true); rec.Code != tt.want {
			t.Errorf("%s: status = %d, want %d", tt.name, rec.Code, tt.want)
		}
	}
}

// TestSuggestEndpoint verifies explicit-set suggestions and their error statuses.
func TestSuggestEndpoint(t *testing.T) {
	s := newTestServer(t)

	rec := do(t, s, http.MethodPost, "/api/v1/suggestions",
		`{"exerciseId":"ex1","type":"COMPOUND","target":"2x18-20","sets":`+twoSets+`}`, false)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body)
	}
	sug := decode[models.Suggestion](t, rec)
	if sug.SuggestedWeight != 155 || sug.Confidence != models.ConfidenceHigh {
		t.Errorf("suggestion = %v %s, want 155 high", sug.SuggestedWeight, sug.Confidence)
	}

	tests := []struct {
		name string
		body string
		want int
	}{
		{"no sets", `{"exerciseId":"ex1","target":"2x18-20","sets":[]}`, http.StatusNoContent},
		{"missing id", `{"target":"2x18-20","sets":` + twoSets + `}`, http.StatusBadRequest},
		{"zero weight", `{"exerciseId":"ex1","target":"2x18-20","sets":[{"weight":0,"reps":10}]}`, http.StatusBadRequest},
		{"bad target", `{"exerciseId":"ex1","target":"heavy","sets":` + twoSets + `}`, http.StatusBadRequest},
		{"unknown type", `{"exerciseId":"ex1","type":"banana","target":"2x18-20","sets":` + twoSets + `}`, http.StatusBadRequest},
	}
	for _, tt := range tests {
		if rec := do(t, s, http.MethodPost, "/api/v1/suggestions", tt.body, false); rec.Code != tt.want {
			t.Errorf("%s: status = %d, want %d (body %s)", tt.name, rec.Code, tt.want, rec.Body)
		}
	}
}

// TestSuggestFromHistory verifies suggestions read last week's logged result.
func TestSuggestFromHistory(t *testing.T) {
	s := newTestServer(t)
	do(t, s, http.MethodPost, "/api/v1/program", programJSON, true)
	do(t, s, http.MethodPut, "/api/v1/position", `{"program":"programA","week":0,"day":0}`, true)
	do(t, s, http.MethodPost, "/api/v1/results", `{"exerciseId":"A1","sets":`+twoSets+`}`, true)

	if rec := do(t, s, http.MethodGet, "/api/v1/exercises/A1/suggestion?target=2x18-20", "", false); rec.Code != http.StatusNoContent {
		t.Errorf("week 0: status = %d, want 204", rec.Code)
	}

	do(t, s, http.MethodPut, "/api/v1/position", `{"program":"programA","week":1,"day":0}`, true)
	rec := do(t, s, http.MethodGet, "/api/v1/exercises/A1/suggestion?target=2x18-20&type=COMPOUND", "", false)
	if rec.Code != http.StatusOK {
		t.Fatalf("week 1: status = %d, body %s", rec.Code, rec.Body)
	}
	if sug := decode[models.Suggestion](t, rec); sug.SuggestedWeight != 155 {
		t.Errorf("suggested = %v, want 155", sug.SuggestedWeight)
	}

	// The current day's exercises are used when none are posted.
	rec = do(t, s, http.MethodPost, "/api/v1/suggestions/day", `{}`, false)
	if rec.Code != http.StatusOK {
		t.Fatalf("day: status = %d", rec.Code)
	}
	day := decode[daySuggestionsResponse](t, rec)
	if day.Suggestions["A1"] == nil || day.Suggestions["A1"].SuggestedWeight != 155 {
		t.Errorf("day suggestions = %+v", day)
	}
	if len(day.Errors) != 0 {
		t.Errorf("errors = %v", day.Errors)
	}
}

// TestExportImport verifies an export can be imported back and that
// malformed payloads are rejected.
func TestExportImport(t *testing.T) {
	s := newTestServer(t)
	do(t, s, http.MethodPost, "/api/v1/results", `{"exerciseId":"A1","sets":`+twoSets+`}`, true)

	rec := do(t, s, http.MethodGet, "/api/v1/export", "", false)
	if rec.Code != http.StatusOK {
		t.Fatalf("export: status = %d", rec.Code)
	}
	if cd := rec.Header().Get("Content-Disposition"); !strings.Contains(cd, "workout-tracker-backup-") {
		t.Errorf("Content-Disposition = %q", cd)
	}
	payload := rec.Body.String()

	if rec := do(t, s, http.MethodDelete, "/api/v1/data", "", true); rec.Code != http.StatusNoContent {
		t.Fatalf("clear: status = %d", rec.Code)
	}
	rec = do(t, s, http.MethodGet, "/api/v1/stats", "", false)
	if stats := decode[models.Statistics](t, rec); stats.Workouts.Total != 0 {
		t.Errorf("after clear total = %d", stats.Workouts.Total)
	}

	if rec := do(t, s, http.MethodPost, "/api/v1/import", payload, true); rec.Code != http.StatusOK {
		t.Fatalf("import: status = %d, body %s", rec.Code, rec.Body)
	}
	rec = do(t, s, http.MethodGet, "/api/v1/stats", "", false)
	if stats := decode[models.Statistics](t, rec); stats.Workouts.Total != 1 || stats.Workouts.TotalVolume != 5800 {
		t.Errorf("after import workouts = %+v", stats.Workouts)
	}

	if rec := do(t, s, http.MethodPost, "/api/v1/import", `{"data":{}}`, true); rec.Code != http.StatusUnprocessableEntity {
		t.Errorf("no version: status = %d, want 422", rec.Code)
	}
	if rec := do(t, s, http.MethodPost, "/api/v1/import?merge=maybe", payload, true); rec.Code != http.StatusBadRequest {
		t.Errorf("bad merge flag: status = %d, want 400", rec.Code)
	}
}

// TestRawSetRoutes verifies raw set keys can be written, read and fed to
// the engine.
func TestRawSetRoutes(t *testing.T) {
	s := newTestServer(t)

	for _, set := range []string{"1", "2"} {
		rec := do(t, s, http.MethodPut, "/api/v1/raw/weeks/1/days/1/exercises/A1/sets/"+set,
			`{"weight":145,"reps":20,"completed":true}`, true)
		if rec.Code != http.StatusNoContent {
			t.Fatalf("save set %s: status = %d, body %s", set, rec.Code, rec.Body)
		}
	}
	if rec := do(t, s, http.MethodPut, "/api/v1/raw/weeks/1/days/9/exercises/A1/sets/1", `{"weight":1,"reps":1}`, true); rec.Code != http.StatusBadRequest {
		t.Errorf("day 9: status = %d, want 400", rec.Code)
	}

	rec := do(t, s, http.MethodGet, "/api/v1/raw/weeks/1/days/1/exercises/A1", "", false)
	if sets := decode[[]retrieval.SetEntry](t, rec); len(sets) != 2 {
		t.Errorf("sets = %+v", sets)
	}

	rec = do(t, s, http.MethodGet, "/api/v1/raw/weeks/1/days/1/exercises/A1/complete?expected=2", "", false)
	if c := decode[retrieval.Completeness](t, rec); !c.IsComplete {
		t.Errorf("completeness = %+v", c)
	}

	rec = do(t, s, http.MethodGet, "/api/v1/raw/weeks/2/days/1/exercises/A1/suggestion?target=2x18-20", "", false)
	if rec.Code != http.StatusOK {
		t.Fatalf("suggestion: status = %d, body %s", rec.Code, rec.Body)
	}
	if sug := decode[models.Suggestion](t, rec); sug.SuggestedWeight <= 145 {
		t.Errorf("suggested = %v, want an increase", sug.SuggestedWeight)
	}

	rec = do(t, s, http.MethodGet, "/api/v1/raw/weeks/1/stats", "", false)
	if stats := decode[retrieval.WeekStats](t, rec); stats.TotalExercises != 1 {
		t.Errorf("stats = %+v", stats)
	}

	rec = do(t, s, http.MethodDelete, "/api/v1/raw/weeks/1", "", true)
	if rec.Code != http.StatusOK {
		t.Fatalf("clear week: status = %d", rec.Code)
	}
	if got := decode[map[string]int](t, rec); got["removed"] != 2 {
		t.Errorf("removed = %v", got)
	}
}

// TestAlphaImport verifies an Alpha Progression export lands in the
// results log and that a malformed export is rejected.
func TestAlphaImport(t *testing.T) {
	s := newTestServer(t)
	csv := `"Push · Day 1 · Week 2 · PPL";"2026-02-17 5:04 h";"1:12 hr"
"1. Bench Press · Barbell · 6 reps";"WU1 · 22,5 kg · 10 reps"
#;KG;REPS;RIR
1;102,5;6;0
2;100;6;0
`
	rec := do(t, s, http.MethodPost, "/api/v1/import/alpha", csv, true)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body)
	}
	got := decode[map[string]int](t, rec)
	if got["results_inserted"] != 1 || got["sets_received"] != 2 {
		t.Errorf("result = %v", got)
	}

	rec = do(t, s, http.MethodGet, "/api/v1/exercises/bench-press/history", "", false)
	if history := decode[[]models.Result](t, rec); len(history) != 1 || history[0].Program != "PPL" {
		t.Errorf("history = %+v", history)
	}

	if rec := do(t, s, http.MethodPost, "/api/v1/import/alpha", "1;100;6;0", true); rec.Code != http.StatusBadRequest {
		t.Errorf("orphan set: status = %d, want 400", rec.Code)
	}
}
