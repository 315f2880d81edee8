package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/claude/liftlog/internal/models"
	"github.com/claude/liftlog/internal/suggest"
)

// defaultTimeRange returns start/end defaulting to the last 7 days.
func defaultTimeRange(startStr, endStr string) (time.Time, time.Time, error) {
	var start, end time.Time
	var err error

	if endStr != "" {
		end, err = parseFlexTime(endStr)
		if err != nil {
			return time.Time{}, time.Time{}, err
		}
	} else {
		end = time.Now()
	}

	if startStr != "" {
		start, err = parseFlexTime(startStr)
		if err != nil {
			return time.Time{}, time.Time{}, err
		}
	} else {
		start = end.AddDate(0, 0, -7)
	}

	return start, end, nil
}

func parseFlexTime(s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339, s)
	if err == nil {
		return t, nil
	}
	t, err = time.Parse("2006-01-02", s)
	if err == nil {
		return t, nil
	}
	return time.Time{}, err
}

// --- Tool definitions ---

var toolGetPosition = mcp.NewTool("get_position",
	mcp.WithDescription("Get the current program, week and day. Week and day are zero-based indices into the loaded program."),
)

var toolGetCurrentWorkout = mcp.NewTool("get_current_workout",
	mcp.WithDescription("Get the program day at the current position, including its prescribed exercises and set/rep targets."),
)

var toolGetExerciseHistory = mcp.NewTool("get_exercise_history",
	mcp.WithDescription("List logged results for an exercise, newest first. Each result has its sets (weight, reps, completed), notes and rating."),
	mcp.WithString("exercise_id", mcp.Required(), mcp.Description("Exercise identifier as used in the program (e.g. A1)")),
	mcp.WithNumber("limit", mcp.Description("Maximum number of results. Defaults to 10; 0 returns all.")),
)

var toolGetPersonalRecords = mcp.NewTool("get_personal_records",
	mcp.WithDescription("Get the best weight, reps and single-set volume (weight x reps) across completed sets of an exercise."),
	mcp.WithString("exercise_id", mcp.Required(), mcp.Description("Exercise identifier")),
)

var toolGetProgramProgress = mcp.NewTool("get_program_progress",
	mcp.WithDescription("Aggregate progress for a program: distinct workouts, exercises logged, total sets and average rating."),
	mcp.WithString("program", mcp.Description("Program identifier. Defaults to the current program.")),
)

var toolGetResults = mcp.NewTool("get_results",
	mcp.WithDescription("List all exercise results logged in a date range, newest first."),
	mcp.WithString("start", mcp.Description("Start date (ISO 8601 or YYYY-MM-DD). Defaults to 7 days ago.")),
	mcp.WithString("end", mcp.Description("End date (ISO 8601 or YYYY-MM-DD). Defaults to now.")),
)

var toolSuggestWeight = mcp.NewTool("suggest_weight",
	mcp.WithDescription("Suggest the next working weight for an exercise from last week's sets and the target rep range. Uses the logged history unless sets are given explicitly."),
	mcp.WithString("exercise_id", mcp.Required(), mcp.Description("Exercise identifier")),
	mcp.WithString("target", mcp.Required(), mcp.Description("Target sets and reps, e.g. '3x8-12', '18-20' or 'AMRAP'")),
	mcp.WithString("exercise_name", mcp.Description("Exercise name, used to classify it as compound or isolation")),
	mcp.WithString("type", mcp.Description("Override the classification"), mcp.Enum(string(models.Compound), string(models.Isolation))),
	mcp.WithNumber("week", mcp.Description("Week to suggest for; last week's result is used. Defaults to the current week.")),
	mcp.WithString("sets", mcp.Description(`Explicit previous sets as a JSON array, e.g. [{"weight":100,"reps":10,"completed":true}]`)),
)

// --- Tool handlers ---

func toolJSON(v any) (*mcp.CallToolResult, error) {
	result, err := mcp.NewToolResultJSON(v)
	if err != nil {
		return mcp.NewToolResultError("serialization failed"), nil
	}
	return result, nil
}

func (h *handlers) getPosition(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	pos, err := h.ds.Position(ctx)
	if err != nil {
		h.log.Error("mcp get_position", "error", err)
		return mcp.NewToolResultError("query failed: " + err.Error()), nil
	}
	return toolJSON(pos)
}

func (h *handlers) getCurrentWorkout(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	day, err := h.ds.CurrentWorkout(ctx)
	if err != nil {
		h.log.Error("mcp get_current_workout", "error", err)
		return mcp.NewToolResultError("query failed: " + err.Error()), nil
	}
	if day == nil {
		return mcp.NewToolResultText("No workout at the current position. Load a program and set a position first."), nil
	}
	return toolJSON(day)
}

func (h *handlers) getExerciseHistory(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireString("exercise_id")
	if err != nil {
		return mcp.NewToolResultError("exercise_id parameter is required"), nil
	}
	limit := req.GetInt("limit", 10)

	history, err := h.ds.ExerciseHistory(ctx, id, limit)
	if err != nil {
		h.log.Error("mcp get_exercise_history", "error", err)
		return mcp.NewToolResultError("query failed: " + err.Error()), nil
	}
	return toolJSON(history)
}

func (h *handlers) getPersonalRecords(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireString("exercise_id")
	if err != nil {
		return mcp.NewToolResultError("exercise_id parameter is required"), nil
	}

	pr, err := h.ds.PersonalRecords(ctx, id)
	if err != nil {
		h.log.Error("mcp get_personal_records", "error", err)
		return mcp.NewToolResultError("query failed: " + err.Error()), nil
	}
	return toolJSON(pr)
}

func (h *handlers) getProgramProgress(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	program := req.GetString("program", "")
	if program == "" {
		pos, err := h.ds.Position(ctx)
		if err != nil {
			return mcp.NewToolResultError("query failed: " + err.Error()), nil
		}
		if pos.Program == "" {
			return mcp.NewToolResultError("no program given and no current program set"), nil
		}
		program = pos.Program
	}

	p, err := h.ds.ProgramProgress(ctx, program)
	if err != nil {
		h.log.Error("mcp get_program_progress", "error", err)
		return mcp.NewToolResultError("query failed: " + err.Error()), nil
	}
	return toolJSON(map[string]any{"program": program, "progress": p})
}

func (h *handlers) getResults(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	start, end, err := defaultTimeRange(req.GetString("start", ""), req.GetString("end", ""))
	if err != nil {
		return mcp.NewToolResultError("invalid date format: " + err.Error()), nil
	}

	results, err := h.ds.ResultsByDate(ctx, start, end)
	if err != nil {
		h.log.Error("mcp get_results", "error", err)
		return mcp.NewToolResultError("query failed: " + err.Error()), nil
	}
	return toolJSON(results)
}

func (h *handlers) suggestWeight(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireString("exercise_id")
	if err != nil {
		return mcp.NewToolResultError("exercise_id parameter is required"), nil
	}
	target, err := req.RequireString("target")
	if err != nil {
		return mcp.NewToolResultError("target parameter is required"), nil
	}
	name := req.GetString("exercise_name", "")
	typ := models.ExerciseType(req.GetString("type", ""))

	var sug *models.Suggestion
	if raw := req.GetString("sets", ""); raw != "" {
		var sets []models.Set
		if err := json.Unmarshal([]byte(raw), &sets); err != nil {
			return mcp.NewToolResultError("sets must be a JSON array of {weight, reps, completed}: " + err.Error()), nil
		}
		sug, err = h.ds.Suggest(ctx, suggest.Request{
			ExerciseID: id, ExerciseName: name, Type: typ, Sets: sets, Target: target,
		})
	} else {
		sug, err = h.ds.SuggestFromHistory(ctx, HistoryQuery{
			ExerciseID: id, ExerciseName: name, Type: typ, Target: target, Week: req.GetInt("week", -1),
		})
	}
	if err != nil {
		h.log.Warn("mcp suggest_weight", "exercise_id", id, "error", err)
		return mcp.NewToolResultError(fmt.Sprintf("cannot suggest a weight for %s: %v", id, err)), nil
	}
	if sug == nil {
		return mcp.NewToolResultText(fmt.Sprintf("No usable sets from last week for %s; nothing to base a suggestion on.", id)), nil
	}
	return toolJSON(sug)
}
