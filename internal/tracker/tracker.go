// Package tracker owns the user's position in a program and the log of
// completed exercise results, on top of the persistence layer.
package tracker

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/claude/liftlog/internal/metrics"
	"github.com/claude/liftlog/internal/models"
	"github.com/claude/liftlog/internal/storage"
)

// Keys of the singleton records the tracker persists.
const (
	ProgramDataKey = "program_data"
	PositionKey    = "current_position"
)

// Option configures a Tracker.
type Option func(*Tracker)

// WithHTTPClient sets the client used to fetch program definitions.
func WithHTTPClient(c *http.Client) Option {
	return func(t *Tracker) { t.httpClient = c }
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(t *Tracker) { t.now = now }
}

// WithMetrics counts recovered listener panics.
func WithMetrics(m *metrics.Manager) Option {
	return func(t *Tracker) { t.metrics = m }
}

// Tracker is the stateful service in front of the persistence layer.
type Tracker struct {
	layer      *storage.Layer
	log        *slog.Logger
	metrics    *metrics.Manager
	httpClient *http.Client
	now        func() time.Time

	mu          sync.Mutex
	initialized bool
	position    models.Position
	program     models.Record
	listeners   []subscription
	nextSubID   int
}

// New creates a Tracker. Call Init before use or let the first operation
// do it.
func New(layer *storage.Layer, log *slog.Logger, opts ...Option) *Tracker {
	t := &Tracker{
		layer:      layer,
		log:        log,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Init initializes storage and loads the persisted position and program.
// It is idempotent.
func (t *Tracker) Init(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.initialized {
		return nil
	}
	if err := t.layer.Init(ctx); err != nil {
		return fmt.Errorf("initializing storage: %w", err)
	}
	if err := t.reloadLocked(ctx); err != nil {
		return err
	}
	t.initialized = true
	t.log.Info("tracker: initialized", "program", t.position.Program,
		"week", t.position.Week, "day", t.position.Day)
	return nil
}

// reloadLocked reads position and program back from storage. Records
// that are absent leave the in-memory state unchanged.
func (t *Tracker) reloadLocked(ctx context.Context) error {
	rec, err := t.layer.Get(ctx, models.Progress, PositionKey)
	if err != nil {
		return fmt.Errorf("loading position: %w", err)
	}
	if rec != nil {
		var pr models.PositionRecord
		if err := models.FromRecord(rec, &pr); err != nil {
			t.log.Warn("tracker: ignoring malformed position", "error", err)
		} else {
			t.position = models.Position{Program: pr.Program, Week: pr.Week, Day: pr.Day}
		}
	}

	program, err := t.layer.Get(ctx, models.Workouts, ProgramDataKey)
	if err != nil {
		return fmt.Errorf("loading program data: %w", err)
	}
	if program != nil {
		if program.String("id") == ProgramDataKey {
			delete(program, "id")
		}
		t.program = program
	}
	return nil
}

// Close releases the persistence layer.
func (t *Tracker) Close() error {
	t.mu.Lock()
	t.initialized = false
	t.mu.Unlock()
	return t.layer.Close()
}

// LoadWorkoutData validates, caches and persists a program definition.
// The definition must carry a "programs" list.
func (t *Tracker) LoadWorkoutData(ctx context.Context, data models.Record) error {
	if err := t.Init(ctx); err != nil {
		return err
	}
	if data == nil {
		return fmt.Errorf("workout data must be an object: %w", models.ErrValidationFailure)
	}
	if _, ok := data["programs"].([]any); !ok {
		return fmt.Errorf("workout data is missing a programs list: %w", models.ErrValidationFailure)
	}

	stored := make(models.Record, len(data)+1)
	for k, v := range data {
		stored[k] = v
	}
	stored["id"] = ProgramDataKey

	t.mu.Lock()
	if err := t.layer.Set(ctx, models.Workouts, ProgramDataKey, stored); err != nil {
		t.mu.Unlock()
		return fmt.Errorf("saving program data: %w", err)
	}
	t.program = data
	t.mu.Unlock()

	t.log.Info("tracker: workout data loaded", "programs", len(data["programs"].([]any)))
	t.notify(Event{Type: EventWorkoutDataLoaded, Data: data})
	return nil
}

// LoadWorkoutDataFrom fetches a program definition from an http(s) URL or
// reads it from a local file, then loads it.
func (t *Tracker) LoadWorkoutDataFrom(ctx context.Context, location string) error {
	var (
		body []byte
		err  error
	)
	if strings.HasPrefix(location, "http://") || strings.HasPrefix(location, "https://") {
		body, err = t.fetch(ctx, location)
	} else {
		body, err = os.ReadFile(location)
	}
	if err != nil {
		return fmt.Errorf("loading workout data from %s: %w", location, err)
	}

	var data models.Record
	if err := json.Unmarshal(body, &data); err != nil {
		t.log.Debug("tracker: malformed workout data", "source", location, "error", err)
		return fmt.Errorf("parsing workout data from %s: %w", location, models.ErrValidationFailure)
	}
	return t.LoadWorkoutData(ctx, data)
}

func (t *Tracker) fetch(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	resp, err := t.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("fetching: status %d", resp.StatusCode)
	}
	return io.ReadAll(resp.Body)
}

// SetPosition moves the user to zero-based week and day of program.
func (t *Tracker) SetPosition(ctx context.Context, program string, week, day int) error {
	if err := t.Init(ctx); err != nil {
		return err
	}
	if program == "" {
		return fmt.Errorf("program is required: %w", models.ErrInvalidInput)
	}
	if week < 0 || day < 0 {
		return fmt.Errorf("week and day must be non-negative: %w", models.ErrInvalidInput)
	}

	pos := models.Position{Program: program, Week: models.IntPtr(week), Day: models.IntPtr(day)}
	rec := models.PositionRecord{
		Key:       PositionKey,
		Program:   program,
		Week:      pos.Week,
		Day:       pos.Day,
		UpdatedAt: t.now().UTC(),
	}

	t.mu.Lock()
	if err := t.layer.Set(ctx, models.Progress, PositionKey, rec); err != nil {
		t.mu.Unlock()
		return fmt.Errorf("saving position: %w", err)
	}
	t.position = pos
	t.mu.Unlock()

	t.log.Debug("tracker: position updated", "program", program, "week", week, "day", day)
	t.notify(Event{Type: EventPositionChanged, Position: &pos})
	return nil
}

// Position returns a copy of the current position.
func (t *Tracker) Position() models.Position {
	t.mu.Lock()
	defer t.mu.Unlock()
	return copyPosition(t.position)
}

func copyPosition(p models.Position) models.Position {
	out := models.Position{Program: p.Program}
	if p.Week != nil {
		out.Week = models.IntPtr(*p.Week)
	}
	if p.Day != nil {
		out.Day = models.IntPtr(*p.Day)
	}
	return out
}

// GetCurrentWorkout resolves the current position to a day of the loaded
// program. Week and day index the program's weeks and days lists. It
// returns nil when anything along the path is missing.
func (t *Tracker) GetCurrentWorkout() models.Record {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.program == nil || !t.position.IsSet() {
		return nil
	}
	programs, _ := t.program["programs"].([]any)
	for _, p := range programs {
		prog, ok := p.(map[string]any)
		if !ok || fmt.Sprint(prog["id"]) != t.position.Program {
			continue
		}
		week, ok := index(prog["weeks"], *t.position.Week)
		if !ok {
			return nil
		}
		day, ok := index(week["days"], *t.position.Day)
		if !ok {
			return nil
		}
		return models.Record(day)
	}
	return nil
}

func index(list any, i int) (map[string]any, bool) {
	items, ok := list.([]any)
	if !ok || i < 0 || i >= len(items) {
		return nil, false
	}
	m, ok := items[i].(map[string]any)
	return m, ok
}

// newResultID returns result_<unix millis>_<9 random characters>.
func (t *Tracker) newResultID() string {
	suffix := strings.ReplaceAll(uuid.NewString(), "-", "")[:9]
	return fmt.Sprintf("result_%d_%s", t.now().UnixMilli(), suffix)
}
