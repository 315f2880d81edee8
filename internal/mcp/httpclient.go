package mcp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/claude/liftlog/internal/models"
	"github.com/claude/liftlog/internal/suggest"
)

// HTTPClient implements DataSource by calling the LiftLog REST API.
// Used for remote MCP mode where the binary runs locally (stdio) but
// data lives in a running liftlog server.
type HTTPClient struct {
	baseURL    string
	httpClient *http.Client
}

// Compile-time check: HTTPClient satisfies DataSource.
var _ DataSource = (*HTTPClient)(nil)

// NewHTTPClient creates an HTTPClient targeting the given base URL.
func NewHTTPClient(baseURL string) *HTTPClient {
	return &HTTPClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

// do performs a request and returns the status and body. Statuses other
// than 200, 204 and 404 are errors.
func (c *HTTPClient) do(ctx context.Context, method, path string, params url.Values, payload any) (int, []byte, error) {
	u := c.baseURL + path
	if len(params) > 0 {
		u += "?" + params.Encode()
	}

	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return 0, nil, fmt.Errorf("httpclient: encode request: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, u, body)
	if err != nil {
		return 0, nil, fmt.Errorf("httpclient: create request: %w", err)
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, nil, fmt.Errorf("httpclient: %s: %w", path, err)
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, nil, fmt.Errorf("httpclient: read body: %w", err)
	}

	switch resp.StatusCode {
	case http.StatusOK, http.StatusNoContent, http.StatusNotFound:
		return resp.StatusCode, data, nil
	}
	return resp.StatusCode, nil, fmt.Errorf("httpclient: %s returned %d: %s", path, resp.StatusCode, data)
}

// getJSON decodes a 200 response into dst. A 404 is returned as an error
// wrapping models.ErrNotFound.
func (c *HTTPClient) getJSON(ctx context.Context, path string, params url.Values, dst any) error {
	status, body, err := c.do(ctx, http.MethodGet, path, params, nil)
	if err != nil {
		return err
	}
	if status == http.StatusNotFound {
		return fmt.Errorf("httpclient: %s: %w", path, models.ErrNotFound)
	}
	if err := json.Unmarshal(body, dst); err != nil {
		return fmt.Errorf("httpclient: decode %s: %w", path, err)
	}
	return nil
}

func (c *HTTPClient) Position(ctx context.Context) (models.Position, error) {
	var pos models.Position
	err := c.getJSON(ctx, "/api/v1/position", nil, &pos)
	return pos, err
}

func (c *HTTPClient) CurrentWorkout(ctx context.Context) (models.Record, error) {
	status, body, err := c.do(ctx, http.MethodGet, "/api/v1/workout/current", nil, nil)
	if err != nil {
		return nil, err
	}
	if status == http.StatusNotFound {
		return nil, nil
	}
	var day models.Record
	if err := json.Unmarshal(body, &day); err != nil {
		return nil, fmt.Errorf("httpclient: decode current workout: %w", err)
	}
	return day, nil
}

func (c *HTTPClient) ExerciseHistory(ctx context.Context, exerciseID string, limit int) ([]models.Result, error) {
	params := url.Values{}
	if limit > 0 {
		params.Set("limit", strconv.Itoa(limit))
	}
	var history []models.Result
	err := c.getJSON(ctx, "/api/v1/exercises/"+url.PathEscape(exerciseID)+"/history", params, &history)
	return history, err
}

func (c *HTTPClient) PersonalRecords(ctx context.Context, exerciseID string) (models.PersonalRecords, error) {
	var pr models.PersonalRecords
	err := c.getJSON(ctx, "/api/v1/exercises/"+url.PathEscape(exerciseID)+"/records", nil, &pr)
	return pr, err
}

func (c *HTTPClient) ProgramProgress(ctx context.Context, program string) (models.ProgramProgress, error) {
	var p models.ProgramProgress
	err := c.getJSON(ctx, "/api/v1/programs/"+url.PathEscape(program)+"/progress", nil, &p)
	return p, err
}

func (c *HTTPClient) ResultsByDate(ctx context.Context, start, end time.Time) ([]models.Result, error) {
	params := url.Values{}
	params.Set("start", start.Format(time.RFC3339))
	params.Set("end", end.Format(time.RFC3339))
	var results []models.Result
	err := c.getJSON(ctx, "/api/v1/results", params, &results)
	return results, err
}

func (c *HTTPClient) Statistics(ctx context.Context) (models.Statistics, error) {
	var stats models.Statistics
	err := c.getJSON(ctx, "/api/v1/stats", nil, &stats)
	return stats, err
}

type suggestPayload struct {
	ExerciseID   string              `json:"exerciseId"`
	ExerciseName string              `json:"exerciseName,omitempty"`
	Type         models.ExerciseType `json:"type,omitempty"`
	Sets         []models.Set        `json:"sets"`
	Target       string              `json:"target"`
}

func (c *HTTPClient) Suggest(ctx context.Context, req suggest.Request) (*models.Suggestion, error) {
	status, body, err := c.do(ctx, http.MethodPost, "/api/v1/suggestions", nil, suggestPayload{
		ExerciseID:   req.ExerciseID,
		ExerciseName: req.ExerciseName,
		Type:         req.Type,
		Sets:         req.Sets,
		Target:       req.Target,
	})
	if err != nil {
		return nil, err
	}
	return decodeSuggestion(status, body)
}

func (c *HTTPClient) SuggestFromHistory(ctx context.Context, q HistoryQuery) (*models.Suggestion, error) {
	params := url.Values{}
	params.Set("target", q.Target)
	if q.ExerciseName != "" {
		params.Set("name", q.ExerciseName)
	}
	if q.Type != "" {
		params.Set("type", string(q.Type))
	}
	if q.Week >= 0 {
		params.Set("week", strconv.Itoa(q.Week))
	}
	status, body, err := c.do(ctx, http.MethodGet, "/api/v1/exercises/"+url.PathEscape(q.ExerciseID)+"/suggestion", params, nil)
	if err != nil {
		return nil, err
	}
	return decodeSuggestion(status, body)
}

func decodeSuggestion(status int, body []byte) (*models.Suggestion, error) {
	if status == http.StatusNoContent {
		return nil, nil
	}
	if status == http.StatusNotFound {
		return nil, fmt.Errorf("httpclient: suggestion endpoint: %w", models.ErrNotFound)
	}
	var s models.Suggestion
	if err := json.Unmarshal(body, &s); err != nil {
		return nil, fmt.Errorf("httpclient: decode suggestion: %w", err)
	}
	return &s, nil
}
