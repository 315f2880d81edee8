package tracker

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/claude/liftlog/internal/models"
	"github.com/claude/liftlog/internal/storage"
	"github.com/claude/liftlog/internal/suggest"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// fixedClock advances one minute per call from a fixed start.
func fixedClock() func() time.Time {
	t := time.Date(2024, 3, 1, 8, 0, 0, 0, time.UTC)
	return func() time.Time {
		t = t.Add(time.Minute)
		return t
	}
}

func newTestTracker(t *testing.T, flatPath string) *Tracker {
	t.Helper()
	flat, err := storage.OpenLocalFlat(flatPath, storage.DefaultQuotaBytes)
	if err != nil {
		t.Fatal(err)
	}
	layer := storage.New(flat, nil, storage.Options{}, testLogger())
	tr := New(layer, testLogger(), WithClock(fixedClock()))
	t.Cleanup(func() { tr.Close() })
	return tr
}

var programDoc = models.Record{
	"programs": []any{
		map[string]any{
			"id": "programA",
			"weeks": []any{
				map[string]any{"days": []any{
					map[string]any{"name": "Push", "exercises": []any{map[string]any{"id": "A1", "setsReps": "2x18-20"}}},
					map[string]any{"name": "Pull"},
				}},
			},
		},
	},
}

func sets(pairs ...float64) []models.Set {
	var out []models.Set
	for i := 0; i+1 < len(pairs); i += 2 {
		out = append(out, models.NewSet(pairs[i], pairs[i+1], true))
	}
	return out
}

// TestFullCycle saves a result at a position and feeds its sets to the
// suggestion engine: 2x145x20 against 2x18-20 on a compound lift gives 155.
func TestFullCycle(t *testing.T) {
	ctx := context.Background()
	tr := newTestTracker(t, "")

	if err := tr.SetPosition(ctx, "programA", 0, 0); err != nil {
		t.Fatal(err)
	}
	id, err := tr.SaveWorkoutResult(ctx, models.Result{ExerciseID: "ex1", Sets: sets(145, 20, 145, 20)})
	if err != nil {
		t.Fatalf("SaveWorkoutResult: %v", err)
	}

	history, err := tr.GetExerciseHistory(ctx, "ex1", 1)
	if err != nil {
		t.Fatal(err)
	}
	if len(history) != 1 || history[0].ID != id {
		t.Fatalf("history = %+v", history)
	}
	r := history[0]
	if r.Program != "programA" || r.Week == nil || *r.Week != 0 || r.Day == nil || *r.Day != 0 {
		t.Errorf("position defaults not applied: %+v", r)
	}

	engine := suggest.New(0, testLogger())
	s, err := engine.Calculate(suggest.Request{
		ExerciseID: "ex1",
		Type:       models.Compound,
		Sets:       r.Sets,
		Target:     "2x18-20",
	})
	if err != nil {
		t.Fatal(err)
	}
	if s.SuggestedWeight != 155 || s.Confidence != models.ConfidenceHigh {
		t.Errorf("suggestion = %v %s, want 155 high", s.SuggestedWeight, s.Confidence)
	}
}

// TestSaveRequiresSets verifies an empty set list is rejected.
func TestSaveRequiresSets(t *testing.T) {
	tr := newTestTracker(t, "")
	_, err := tr.SaveWorkoutResult(context.Background(), models.Result{ExerciseID: "A1"})
	if !errors.Is(err, models.ErrInvalidInput) {
		t.Errorf("error = %v, want ErrInvalidInput", err)
	}
}

// TestSaveImportedResult verifies imported results keep their own
// coordinates instead of taking the current position.
func TestSaveImportedResult(t *testing.T) {
	ctx := context.Background()
	tr := newTestTracker(t, "")
	if err := tr.SetPosition(ctx, "programA", 1, 2); err != nil {
		t.Fatal(err)
	}

	id, err := tr.SaveImportedResult(ctx, models.Result{ExerciseID: "A1", Sets: sets(100, 10)})
	if err != nil {
		t.Fatal(err)
	}
	r, err := tr.GetResult(ctx, id)
	if err != nil {
		t.Fatal(err)
	}
	if r.Program != "" || r.Week != nil || r.Day != nil {
		t.Errorf("coordinates = %q/%v/%v, want empty", r.Program, r.Week, r.Day)
	}
	if r.Date.IsZero() {
		t.Error("date not stamped")
	}

	if _, err := tr.SaveImportedResult(ctx, models.Result{ExerciseID: "A1"}); !errors.Is(err, models.ErrInvalidInput) {
		t.Errorf("empty sets error = %v, want ErrInvalidInput", err)
	}
}

// TestPersistedStateSurvivesRestart verifies position and program are
// reloaded by Init from a file-backed store.
func TestPersistedStateSurvivesRestart(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "flat.json")

	first := newTestTracker(t, path)
	if err := first.LoadWorkoutData(ctx, programDoc); err != nil {
		t.Fatal(err)
	}
	if err := first.SetPosition(ctx, "programA", 0, 1); err != nil {
		t.Fatal(err)
	}
	first.Close()

	second := newTestTracker(t, path)
	if err := second.Init(ctx); err != nil {
		t.Fatal(err)
	}
	pos := second.Position()
	if !pos.Matches("programA", models.IntPtr(0), models.IntPtr(1)) {
		t.Errorf("position = %+v", pos)
	}
	day := second.GetCurrentWorkout()
	if day.String("name") != "Pull" {
		t.Errorf("current workout = %v, want Pull", day)
	}
}

// TestGetCurrentWorkout verifies index-based lookup and nil for any
// missing step.
func TestGetCurrentWorkout(t *testing.T) {
	ctx := context.Background()
	tr := newTestTracker(t, "")

	if tr.GetCurrentWorkout() != nil {
		t.Error("no program loaded should give nil")
	}
	if err := tr.LoadWorkoutData(ctx, programDoc); err != nil {
		t.Fatal(err)
	}
	if tr.GetCurrentWorkout() != nil {
		t.Error("unset position should give nil")
	}

	tests := []struct {
		program   string
		week, day int
		want      string
	}{
		{"programA", 0, 0, "Push"},
		{"programA", 0, 1, "Pull"},
		{"programA", 0, 2, ""},
		{"programA", 1, 0, ""},
		{"programB", 0, 0, ""},
	}
	for _, tt := range tests {
		if err := tr.SetPosition(ctx, tt.program, tt.week, tt.day); err != nil {
			t.Fatal(err)
		}
		got := tr.GetCurrentWorkout()
		if tt.want == "" {
			if got != nil {
				t.Errorf("%s/%d/%d = %v, want nil", tt.program, tt.week, tt.day, got)
			}
			continue
		}
		if got.String("name") != tt.want {
			t.Errorf("%s/%d/%d = %v, want %s", tt.program, tt.week, tt.day, got, tt.want)
		}
	}
}

// TestLoadWorkoutDataValidation verifies a definition without a programs
// list is rejected.
func TestLoadWorkoutDataValidation(t *testing.T) {
	tr := newTestTracker(t, "")
	for _, doc := range []models.Record{nil, {}, {"programs": "nope"}} {
		if err := tr.LoadWorkoutData(context.Background(), doc); !errors.Is(err, models.ErrValidationFailure) {
			t.Errorf("LoadWorkoutData(%v) error = %v, want ErrValidationFailure", doc, err)
		}
	}
}

// TestLoadWorkoutDataFrom verifies loading over HTTP and from a file.
func TestLoadWorkoutDataFrom(t *testing.T) {
	ctx := context.Background()
	body := `{"programs":[{"id":"web","weeks":[]}]}`

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/program.json" {
			http.NotFound(w, r)
			return
		}
		w.Write([]byte(body))
	}))
	defer srv.Close()

	tr := newTestTracker(t, "")
	if err := tr.LoadWorkoutDataFrom(ctx, srv.URL+"/program.json"); err != nil {
		t.Fatalf("http load: %v", err)
	}
	if err := tr.LoadWorkoutDataFrom(ctx, srv.URL+"/missing.json"); err == nil {
		t.Error("404 should fail")
	}

	path := filepath.Join(t.TempDir(), "program.json")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := tr.LoadWorkoutDataFrom(ctx, path); err != nil {
		t.Fatalf("file load: %v", err)
	}

	bad := filepath.Join(t.TempDir(), "bad.json")
	os.WriteFile(bad, []byte("{"), 0o644)
	if err := tr.LoadWorkoutDataFrom(ctx, bad); !errors.Is(err, models.ErrValidationFailure) {
		t.Errorf("bad json error = %v, want ErrValidationFailure", err)
	}
}

// TestUpdateWorkoutResult verifies merge semantics, id immutability and
// NotFound for unknown ids.
func TestUpdateWorkoutResult(t *testing.T) {
	ctx := context.Background()
	tr := newTestTracker(t, "")
	id, err := tr.SaveWorkoutResult(ctx, models.Result{ExerciseID: "A1", Notes: "first", Sets: sets(100, 10)})
	if err != nil {
		t.Fatal(err)
	}

	updated, err := tr.UpdateWorkoutResult(ctx, id, models.Record{"id": "hijack", "notes": "second", "rating": 4})
	if err != nil {
		t.Fatalf("UpdateWorkoutResult: %v", err)
	}
	if updated.ID != id || updated.Notes != "second" || updated.Rating == nil || *updated.Rating != 4 {
		t.Errorf("updated = %+v", updated)
	}
	if updated.UpdatedAt == nil {
		t.Error("updatedAt not stamped")
	}
	if updated.ExerciseID != "A1" || len(updated.Sets) != 1 {
		t.Errorf("untouched fields lost: %+v", updated)
	}

	stored, err := tr.GetResult(ctx, id)
	if err != nil || stored.Notes != "second" {
		t.Errorf("stored = %+v, %v", stored, err)
	}

	if _, err := tr.UpdateWorkoutResult(ctx, "result_missing", models.Record{"notes": "x"}); !errors.Is(err, models.ErrNotFound) {
		t.Errorf("missing error = %v, want ErrNotFound", err)
	}
	if _, err := tr.UpdateWorkoutResult(ctx, id, models.Record{"sets": []any{}}); !errors.Is(err, models.ErrInvalidInput) {
		t.Errorf("empty sets error = %v, want ErrInvalidInput", err)
	}
}

// TestDeleteWorkoutResult verifies deletion and NotFound on a second try.
func TestDeleteWorkoutResult(t *testing.T) {
	ctx := context.Background()
	tr := newTestTracker(t, "")
	id, _ := tr.SaveWorkoutResult(ctx, models.Result{ExerciseID: "A1", Sets: sets(100, 10)})

	if err := tr.DeleteWorkoutResult(ctx, id); err != nil {
		t.Fatal(err)
	}
	if err := tr.DeleteWorkoutResult(ctx, id); !errors.Is(err, models.ErrNotFound) {
		t.Errorf("second delete error = %v, want ErrNotFound", err)
	}
}

// TestHistoryAndDateRange verifies newest-first ordering, limits and
// inclusive date bounds.
func TestHistoryAndDateRange(t *testing.T) {
	ctx := context.Background()
	tr := newTestTracker(t, "")
	day := func(d int) time.Time { return time.Date(2024, 1, d, 10, 0, 0, 0, time.UTC) }

	for _, d := range []int{3, 1, 2} {
		if _, err := tr.SaveWorkoutResult(ctx, models.Result{ExerciseID: "A1", Date: day(d), Sets: sets(100, 10)}); err != nil {
			t.Fatal(err)
		}
	}
	tr.SaveWorkoutResult(ctx, models.Result{ExerciseID: "B1", Date: day(2), Sets: sets(50, 10)})

	history, err := tr.GetExerciseHistory(ctx, "A1", 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(history) != 3 || !history[0].Date.Equal(day(3)) || !history[2].Date.Equal(day(1)) {
		t.Errorf("history order wrong: %+v", history)
	}
	limited, _ := tr.GetExerciseHistory(ctx, "A1", 2)
	if len(limited) != 2 {
		t.Errorf("limited = %d, want 2", len(limited))
	}

	ranged, err := tr.GetResultsByDateRange(ctx, day(2), day(3))
	if err != nil {
		t.Fatal(err)
	}
	if len(ranged) != 3 {
		t.Errorf("range results = %d, want 3", len(ranged))
	}
}

// TestCurrentWorkoutResults verifies filtering by the exact position.
func TestCurrentWorkoutResults(t *testing.T) {
	ctx := context.Background()
	tr := newTestTracker(t, "")

	tr.SetPosition(ctx, "programA", 0, 0)
	tr.SaveWorkoutResult(ctx, models.Result{ExerciseID: "A1", Sets: sets(100, 10)})
	tr.SetPosition(ctx, "programA", 0, 1)
	tr.SaveWorkoutResult(ctx, models.Result{ExerciseID: "A2", Sets: sets(100, 10)})
	tr.SaveWorkoutResult(ctx, models.Result{ExerciseID: "A3", Sets: sets(100, 10)})

	got, err := tr.GetCurrentWorkoutResults(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 {
		t.Errorf("current results = %d, want 2", len(got))
	}
}

// TestProgramProgress verifies distinct days, counts and that missing or zero
// ratings are excluded from the average.
func TestProgramProgress(t *testing.T) {
	ctx := context.Background()
	tr := newTestTracker(t, "")
	rating := func(v float64) *float64 { return &v }

	tr.SetPosition(ctx, "programA", 0, 0)
	tr.SaveWorkoutResult(ctx, models.Result{ExerciseID: "A1", Sets: sets(100, 10, 100, 10), Rating: rating(4)})
	tr.SaveWorkoutResult(ctx, models.Result{ExerciseID: "A2", Sets: sets(100, 10)})
	tr.SetPosition(ctx, "programA", 0, 1)
	tr.SaveWorkoutResult(ctx, models.Result{ExerciseID: "B1", Sets: sets(100, 10), Rating: rating(2)})
	tr.SaveWorkoutResult(ctx, models.Result{ExerciseID: "B2", Sets: sets(100, 10), Rating: rating(0)})
	tr.SaveWorkoutResult(ctx, models.Result{Program: "other", ExerciseID: "C1", Sets: sets(1, 1)})

	p, err := tr.GetProgramProgress(ctx, "programA")
	if err != nil {
		t.Fatal(err)
	}
	want := models.ProgramProgress{TotalWorkouts: 2, CompletedExercises: 4, TotalSets: 5, AverageRating: 3}
	if p != want {
		t.Errorf("progress = %+v, want %+v", p, want)
	}

	empty, _ := tr.GetProgramProgress(ctx, "nothing")
	if empty != (models.ProgramProgress{}) {
		t.Errorf("empty progress = %+v", empty)
	}
}

// TestPersonalRecords verifies only completed sets count.
func TestPersonalRecords(t *testing.T) {
	ctx := context.Background()
	tr := newTestTracker(t, "")
	tr.SaveWorkoutResult(ctx, models.Result{ExerciseID: "A1", Sets: []models.Set{
		models.NewSet(100, 10, true),
		models.NewSet(120, 5, true),
		models.NewSet(200, 20, false),
	}})

	pr, err := tr.GetPersonalRecords(ctx, "A1")
	if err != nil {
		t.Fatal(err)
	}
	want := models.PersonalRecords{MaxWeight: 120, MaxReps: 10, MaxVolume: 1000}
	if pr != want {
		t.Errorf("records = %+v, want %+v", pr, want)
	}
}

// TestPreviousWeekSets verifies the most recent matching week is used.
func TestPreviousWeekSets(t *testing.T) {
	ctx := context.Background()
	tr := newTestTracker(t, "")
	tr.SetPosition(ctx, "programA", 0, 0)
	tr.SaveWorkoutResult(ctx, models.Result{ExerciseID: "A1", Sets: sets(100, 10)})
	tr.SaveWorkoutResult(ctx, models.Result{ExerciseID: "A1", Sets: sets(105, 10)})
	tr.SetPosition(ctx, "programA", 1, 0)

	got, err := tr.PreviousWeekSets(ctx, "A1", 1)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 || got[0].WeightOrZero() != 105 {
		t.Errorf("previous sets = %+v, want the 105 set", got)
	}
	none, _ := tr.PreviousWeekSets(ctx, "A1", 0)
	if none != nil {
		t.Errorf("week 0 = %+v, want nil", none)
	}
}

// TestStatisticsAndClear verifies totals and that clearing resets results
// and position but keeps the program.
func TestStatisticsAndClear(t *testing.T) {
	ctx := context.Background()
	tr := newTestTracker(t, "")
	tr.LoadWorkoutData(ctx, programDoc)
	tr.SetPosition(ctx, "programA", 0, 0)
	tr.SaveWorkoutResult(ctx, models.Result{ExerciseID: "A1", Date: time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC), Sets: sets(100, 10, 100, 8)})
	tr.SaveWorkoutResult(ctx, models.Result{ExerciseID: "A2", Date: time.Date(2024, 1, 1, 18, 0, 0, 0, time.UTC), Sets: sets(50, 10)})
	tr.SaveWorkoutResult(ctx, models.Result{ExerciseID: "A1", Date: time.Date(2024, 1, 2, 9, 0, 0, 0, time.UTC), Sets: sets(100, 10)})

	stats, err := tr.GetStatistics(ctx)
	if err != nil {
		t.Fatal(err)
	}
	want := models.WorkoutTotals{Total: 3, UniqueDays: 2, TotalSets: 4, TotalVolume: 1000 + 800 + 500 + 1000}
	if stats.Workouts != want {
		t.Errorf("totals = %+v, want %+v", stats.Workouts, want)
	}
	if stats.Storage.StorageType != storage.KindPrimary || stats.Storage.Stores[models.Results].Count != 3 {
		t.Errorf("storage stats = %+v", stats.Storage)
	}
	if stats.CurrentPosition.Program != "programA" {
		t.Errorf("position = %+v", stats.CurrentPosition)
	}

	var events []EventType
	tr.Subscribe(func(ev Event) { events = append(events, ev.Type) })
	if err := tr.ClearAllData(ctx); err != nil {
		t.Fatal(err)
	}
	all, _ := tr.GetResultsByDateRange(ctx, time.Time{}, time.Now())
	if len(all) != 0 {
		t.Errorf("results after clear = %d", len(all))
	}
	if tr.Position().IsSet() {
		t.Error("position should be reset")
	}
	if len(events) != 1 || events[0] != EventDataCleared {
		t.Errorf("events = %v", events)
	}
}

// TestImportReloadsState verifies importing restores position and results.
func TestImportReloadsState(t *testing.T) {
	ctx := context.Background()
	src := newTestTracker(t, "")
	src.LoadWorkoutData(ctx, programDoc)
	src.SetPosition(ctx, "programA", 0, 1)
	src.SaveWorkoutResult(ctx, models.Result{ExerciseID: "A1", Sets: sets(100, 10)})
	exported, err := src.ExportData(ctx)
	if err != nil {
		t.Fatal(err)
	}

	dst := newTestTracker(t, "")
	var got []EventType
	dst.Subscribe(func(ev Event) { got = append(got, ev.Type) })
	if err := dst.ImportData(ctx, exported, false); err != nil {
		t.Fatalf("ImportData: %v", err)
	}
	if !dst.Position().Matches("programA", models.IntPtr(0), models.IntPtr(1)) {
		t.Errorf("position = %+v", dst.Position())
	}
	if dst.GetCurrentWorkout().String("name") != "Pull" {
		t.Error("program not reloaded")
	}
	history, _ := dst.GetExerciseHistory(ctx, "A1", 0)
	if len(history) != 1 {
		t.Errorf("history = %d, want 1", len(history))
	}
	if len(got) != 1 || got[0] != EventDataImported {
		t.Errorf("events = %v", got)
	}
}

// TestSubscribers verifies ordering, panic isolation and unsubscribe.
func TestSubscribers(t *testing.T) {
	ctx := context.Background()
	tr := newTestTracker(t, "")

	var calls []string
	tr.Subscribe(func(Event) { calls = append(calls, "first") })
	tr.Subscribe(func(Event) { panic("boom") })
	unsub := tr.Subscribe(func(ev Event) {
		calls = append(calls, "third")
		if ev.Type != EventPositionChanged || ev.Position == nil || ev.Position.Program != "p" {
			t.Errorf("event = %+v", ev)
		}
	})

	if err := tr.SetPosition(ctx, "p", 0, 0); err != nil {
		t.Fatalf("SetPosition must not fail on a panicking listener: %v", err)
	}
	if len(calls) != 2 || calls[0] != "first" || calls[1] != "third" {
		t.Errorf("calls = %v", calls)
	}

	unsub()
	calls = nil
	tr.SetPosition(ctx, "p", 0, 1)
	if len(calls) != 1 {
		t.Errorf("calls after unsubscribe = %v", calls)
	}
}
