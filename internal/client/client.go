// Package client calls the remote workout service over HTTP/JSON.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/claude/workoutsync/internal/metrics"
	"github.com/claude/workoutsync/internal/models"
)

const (
	DefaultTimeout           = 30 * time.Second
	DefaultRequestsPerSecond = 10
	DefaultBurst             = 5
)

// ErrUnauthorized matches a StatusError carrying 401.
var ErrUnauthorized = errors.New("unauthorized")

// StatusError is a non-2xx response from the workout service.
type StatusError struct {
	Method     string
	Path       string
	StatusCode int
	Status     string
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("API request failed: %d %s", e.StatusCode, http.StatusText(e.StatusCode))
}

// Is reports a 401 as ErrUnauthorized.
func (e *StatusError) Is(target error) bool {
	return target == ErrUnauthorized && e.StatusCode == http.StatusUnauthorized
}

// Client talks to the workout service rooted at baseURL.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
	limiter    *rate.Limiter
}

// Option configures a Client.
type Option func(*Client)

// WithToken sends token as a bearer credential.
func WithToken(token string) Option { return func(c *Client) { c.token = token } }

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option { return func(c *Client) { c.httpClient = hc } }

// WithRateLimit bounds outbound requests. rps <= 0 disables limiting.
func WithRateLimit(rps float64, burst int) Option {
	return func(c *Client) {
		if rps <= 0 {
			c.limiter = nil
			return
		}
		c.limiter = rate.NewLimiter(rate.Limit(rps), max(burst, 1))
	}
}

// New creates a Client targeting baseURL, e.g. "https://gym.example.com".
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: DefaultTimeout},
		limiter:    rate.NewLimiter(DefaultRequestsPerSecond, DefaultBurst),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// do sends one request and decodes a JSON response into out (if non-nil).
// op labels the call in metrics.
func (c *Client) do(ctx context.Context, op, method, path string, params url.Values, body, out any) (err error) {
	start := time.Now()
	defer func() { metrics.ObserveRemote(op, start, err) }()

	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return fmt.Errorf("client: %s: %w", op, err)
		}
	}

	u := c.baseURL + "/api/v1" + path
	if len(params) > 0 {
		u += "?" + params.Encode()
	}

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("client: encode %s body: %w", op, err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, u, reader)
	if err != nil {
		return fmt.Errorf("client: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Request-ID", uuid.NewString())
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("client: %s %s: %w", method, path, err)
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("client: read body: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &StatusError{
			Method:     method,
			Path:       path,
			StatusCode: resp.StatusCode,
			Status:     resp.Status,
			Body:       string(data),
		}
	}

	if out == nil || len(bytes.TrimSpace(data)) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("client: decode %s: %w", op, err)
	}
	return nil
}

func workoutPath(id string, suffix ...string) string {
	p := "/workouts/" + url.PathEscape(id)
	for _, s := range suffix {
		p += "/" + s
	}
	return p
}

// ListWorkouts returns the workouts scheduled on date (YYYY-MM-DD). An empty
// date lists all workouts.
func (c *Client) ListWorkouts(ctx context.Context, date string) ([]models.WorkoutAPI, error) {
	var params url.Values
	if date != "" {
		params = url.Values{"date": {date}}
	}
	var workouts []models.WorkoutAPI
	if err := c.do(ctx, "list", http.MethodGet, "/workouts", params, nil, &workouts); err != nil {
		return nil, err
	}
	return workouts, nil
}

// GetWorkout fetches one workout by id.
func (c *Client) GetWorkout(ctx context.Context, id string) (*models.WorkoutAPI, error) {
	return c.workoutCall(ctx, "get", http.MethodGet, workoutPath(id), nil)
}

// SuggestWorkout asks the service for reps/weight suggestions for a workout.
func (c *Client) SuggestWorkout(ctx context.Context, id string) (*models.SuggestionsAPI, error) {
	var out models.SuggestionsAPI
	if err := c.do(ctx, "suggest", http.MethodPost, workoutPath(id, "suggest"), nil, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) StartWorkout(ctx context.Context, id string) (*models.WorkoutAPI, error) {
	return c.workoutCall(ctx, "start", http.MethodPost, workoutPath(id, "start"), nil)
}

func (c *Client) FinishWorkout(ctx context.Context, id string) (*models.WorkoutAPI, error) {
	return c.workoutCall(ctx, "finish", http.MethodPost, workoutPath(id, "finish"), nil)
}

func (c *Client) CancelWorkout(ctx context.Context, id string) (*models.WorkoutAPI, error) {
	return c.workoutCall(ctx, "cancel", http.MethodPost, workoutPath(id, "cancel"), nil)
}

// UpdateExercises replaces the full exercises array of a workout.
func (c *Client) UpdateExercises(ctx context.Context, id string, exercises []models.WorkoutExerciseAPI) (*models.WorkoutAPI, error) {
	body := models.UpdateExercisesRequest{Exercises: exercises}
	return c.workoutCall(ctx, "update", http.MethodPatch, workoutPath(id, "exercises"), body)
}

func (c *Client) workoutCall(ctx context.Context, op, method, path string, body any) (*models.WorkoutAPI, error) {
	var w models.WorkoutAPI
	if err := c.do(ctx, op, method, path, nil, body, &w); err != nil {
		return nil, err
	}
	return &w, nil
}
