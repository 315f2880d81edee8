package mcp

import (
	"context"
	"encoding/json"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
)

func jsonResource(uri string, v any) ([]mcp.ResourceContents, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      uri,
			MIMEType: "application/json",
			Text:     string(data),
		},
	}, nil
}

func (h *handlers) currentWorkout(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	pos, err := h.ds.Position(ctx)
	if err != nil {
		return nil, err
	}
	day, err := h.ds.CurrentWorkout(ctx)
	if err != nil {
		return nil, err
	}

	var logged any
	if pos.IsSet() {
		// Today's logged results are a best-effort addition.
		now := time.Now()
		results, err := h.ds.ResultsByDate(ctx, now.Add(-24*time.Hour), now)
		if err != nil {
			h.log.Warn("current_workout: results query failed", "error", err)
		} else {
			var matching []any
			for _, r := range results {
				if pos.Matches(r.Program, r.Week, r.Day) {
					matching = append(matching, r)
				}
			}
			logged = matching
		}
	}

	return jsonResource(req.Params.URI, map[string]any{
		"position": pos,
		"workout":  day,
		"logged":   logged,
	})
}

func (h *handlers) recentResults(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	end := time.Now()
	start := end.AddDate(0, 0, -14)

	results, err := h.ds.ResultsByDate(ctx, start, end)
	if err != nil {
		return nil, err
	}
	return jsonResource(req.Params.URI, results)
}

func (h *handlers) statistics(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	stats, err := h.ds.Statistics(ctx)
	if err != nil {
		return nil, err
	}
	return jsonResource(req.Params.URI, stats)
}
