package mcp

import (
	"context"
	"time"

	"github.com/claude/liftlog/internal/models"
	"github.com/claude/liftlog/internal/suggest"
	"github.com/claude/liftlog/internal/tracker"
)

// HistoryQuery asks for a suggestion from the result logged in the week
// before Week. Week < 0 means the current position's week.
type HistoryQuery struct {
	ExerciseID   string
	ExerciseName string
	Type         models.ExerciseType
	Target       string
	Week         int
}

// DataSource abstracts the data layer for MCP tools. Both Local (in-process
// tracker) and HTTPClient (remote via REST API) satisfy this interface.
type DataSource interface {
	Position(ctx context.Context) (models.Position, error)
	CurrentWorkout(ctx context.Context) (models.Record, error)
	ExerciseHistory(ctx context.Context, exerciseID string, limit int) ([]models.Result, error)
	PersonalRecords(ctx context.Context, exerciseID string) (models.PersonalRecords, error)
	ProgramProgress(ctx context.Context, program string) (models.ProgramProgress, error)
	ResultsByDate(ctx context.Context, start, end time.Time) ([]models.Result, error)
	Statistics(ctx context.Context) (models.Statistics, error)
	Suggest(ctx context.Context, req suggest.Request) (*models.Suggestion, error)
	SuggestFromHistory(ctx context.Context, q HistoryQuery) (*models.Suggestion, error)
}

// Local serves tools from an in-process tracker and engine.
type Local struct {
	tracker *tracker.Tracker
	engine  *suggest.Engine
}

// Compile-time check: Local satisfies DataSource.
var _ DataSource = (*Local)(nil)

func NewLocal(tr *tracker.Tracker, engine *suggest.Engine) *Local {
	return &Local{tracker: tr, engine: engine}
}

func (l *Local) Position(ctx context.Context) (models.Position, error) {
	if err := l.tracker.Init(ctx); err != nil {
		return models.Position{}, err
	}
	return l.tracker.Position(), nil
}

func (l *Local) CurrentWorkout(ctx context.Context) (models.Record, error) {
	if err := l.tracker.Init(ctx); err != nil {
		return nil, err
	}
	return l.tracker.GetCurrentWorkout(), nil
}

func (l *Local) ExerciseHistory(ctx context.Context, exerciseID string, limit int) ([]models.Result, error) {
	return l.tracker.GetExerciseHistory(ctx, exerciseID, limit)
}

func (l *Local) PersonalRecords(ctx context.Context, exerciseID string) (models.PersonalRecords, error) {
	return l.tracker.GetPersonalRecords(ctx, exerciseID)
}

func (l *Local) ProgramProgress(ctx context.Context, program string) (models.ProgramProgress, error) {
	return l.tracker.GetProgramProgress(ctx, program)
}

func (l *Local) ResultsByDate(ctx context.Context, start, end time.Time) ([]models.Result, error) {
	return l.tracker.GetResultsByDateRange(ctx, start, end)
}

func (l *Local) Statistics(ctx context.Context) (models.Statistics, error) {
	return l.tracker.GetStatistics(ctx)
}

func (l *Local) Suggest(_ context.Context, req suggest.Request) (*models.Suggestion, error) {
	return l.engine.Calculate(req)
}

func (l *Local) SuggestFromHistory(ctx context.Context, q HistoryQuery) (*models.Suggestion, error) {
	if err := l.tracker.Init(ctx); err != nil {
		return nil, err
	}
	week := q.Week
	if week < 0 {
		week = 0
		if w := l.tracker.Position().Week; w != nil {
			week = *w
		}
	}
	sets, err := l.tracker.PreviousWeekSets(ctx, q.ExerciseID, week)
	if err != nil {
		return nil, err
	}
	return l.engine.Calculate(suggest.Request{
		ExerciseID:   q.ExerciseID,
		ExerciseName: q.ExerciseName,
		Type:         q.Type,
		Sets:         sets,
		Target:       q.Target,
	})
}
