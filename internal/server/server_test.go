package server

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/claude/workoutsync/internal/engine"
	"github.com/claude/workoutsync/internal/models"
)

// stubService is an in-memory workout service echoing every write.
type stubService struct {
	mu         sync.Mutex
	workout    models.WorkoutAPI
	failUpdate bool
}

func (s *stubService) ListWorkouts(context.Context, string) ([]models.WorkoutAPI, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return []models.WorkoutAPI{s.workout}, nil
}

func (s *stubService) SuggestWorkout(context.Context, string) (*models.SuggestionsAPI, error) {
	return &models.SuggestionsAPI{}, nil
}

func (s *stubService) StartWorkout(context.Context, string) (*models.WorkoutAPI, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ts := "2026-03-02T09:00:00"
	s.workout.StartTime = &ts
	w := s.workout
	return &w, nil
}

func (s *stubService) FinishWorkout(context.Context, string) (*models.WorkoutAPI, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ts := "2026-03-02T10:00:00"
	s.workout.EndTime = &ts
	w := s.workout
	return &w, nil
}

func (s *stubService) CancelWorkout(context.Context, string) (*models.WorkoutAPI, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.workout.StartTime, s.workout.EndTime = nil, nil
	w := s.workout
	return &w, nil
}

func (s *stubService) UpdateExercises(_ context.Context, _ string, ex []models.WorkoutExerciseAPI) (*models.WorkoutAPI, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failUpdate {
		return nil, errors.New("API request failed: 503 Service Unavailable")
	}
	s.workout.Exercises = ex
	w := s.workout
	return &w, nil
}

type stubHistory struct{}

func (stubHistory) List(_ context.Context, date string) ([]models.WorkoutAPI, error) {
	return []models.WorkoutAPI{{ID: "h-1", Date: date}}, nil
}

func (stubHistory) Get(_ context.Context, id string) (*models.WorkoutAPI, error) {
	if id != "h-1" {
		return nil, errors.New("API request failed: 404 Not Found")
	}
	return &models.WorkoutAPI{ID: "h-1"}, nil
}

func discard() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

func newTestEngine(t *testing.T, svc *stubService, load bool) *engine.Engine {
	t.Helper()
	e := engine.New(svc, engine.WithLogger(discard()), engine.WithDebounce(time.Hour))
	t.Cleanup(e.Close)
	if load {
		require.NoError(t, e.Load(context.Background(), "2026-03-02"))
		e.Wait()
	}
	return e
}

func startedService() *stubService {
	start := "2026-03-02T09:00:00"
	return &stubService{workout: models.WorkoutAPI{
		ID: "w-1", Date: "2026-03-02", StartTime: &start,
		Exercises: []models.WorkoutExerciseAPI{{Name: "Squat", Sets: []models.SetAPI{{}}}},
	}}
}

func do(t *testing.T, h http.Handler, method, path, body string) (*httptest.ResponseRecorder, engine.View) {
	t.Helper()
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, r)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	var resp struct {
		engine.View
		State *engine.View `json:"state"`
	}
	_ = json.Unmarshal(rec.Body.Bytes(), &resp)
	if resp.State != nil {
		return rec, *resp.State
	}
	return rec, resp.View
}

func TestStateAndActions(t *testing.T) {
	s := New(newTestEngine(t, startedService(), true), nil, "", discard())

	rec, v := do(t, s, http.MethodGet, "/api/v1/session", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "in_progress", string(v.Status))
	require.NotNil(t, v.Workout)
	assert.Equal(t, "w-1", v.Workout.ID)

	rec, v = do(t, s, http.MethodPut, "/api/v1/session/exercises/0/sets/0/reps", `{"raw":"5"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "5", v.Workout.Exercises[0].Sets[0].RepsText)

	rec, v = do(t, s, http.MethodPost, "/api/v1/session/exercises/0/sets/0/reps/commit", `{"raw":"5"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 5, *v.Workout.Exercises[0].Sets[0].Reps)
	assert.True(t, v.SavePending)

	rec, _ = do(t, s, http.MethodPost, "/api/v1/session/flush", "")
	require.Equal(t, http.StatusOK, rec.Code)

	rec, v = do(t, s, http.MethodPost, "/api/v1/session/exercises/0/sets/0/toggle", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, v.Workout.Exercises[0].Sets[0].Completed)
	assert.True(t, v.CanFinish)

	rec, v = do(t, s, http.MethodPost, "/api/v1/session/exercises/0/sets", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, v.Workout.Exercises[0].Sets, 2)

	rec, v = do(t, s, http.MethodDelete, "/api/v1/session/exercises/0/sets/1", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, v.Workout.Exercises[0].Sets, 1)

	rec, v = do(t, s, http.MethodPost, "/api/v1/session/finish", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "finished", string(v.Status))
}

func TestErrorMapping(t *testing.T) {
	svc := startedService()
	s := New(newTestEngine(t, svc, true), nil, "", discard())

	tests := []struct {
		name   string
		method string
		path   string
		body   string
		want   int
	}{
		{"invalid value", http.MethodPost, "/api/v1/session/exercises/0/sets/0/weight/commit", `{"raw":"-1"}`, http.StatusUnprocessableEntity},
		{"last set", http.MethodDelete, "/api/v1/session/exercises/0/sets/0", "", http.StatusConflict},
		{"nothing completed", http.MethodPost, "/api/v1/session/finish", "", http.StatusConflict},
		{"out of range", http.MethodPost, "/api/v1/session/exercises/4/sets/0/toggle", "", http.StatusNotFound},
		{"bad index", http.MethodPost, "/api/v1/session/exercises/x/sets/0/toggle", "", http.StatusBadRequest},
		{"bad field", http.MethodPut, "/api/v1/session/exercises/0/sets/0/rest", `{"raw":"1"}`, http.StatusBadRequest},
		{"bad body", http.MethodPut, "/api/v1/session/exercises/0/sets/0/reps", `{`, http.StatusBadRequest},
		{"bad date", http.MethodPost, "/api/v1/session/load?date=03/02/2026", "", http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec, _ := do(t, s, tt.method, tt.path, tt.body)
			assert.Equal(t, tt.want, rec.Code, rec.Body.String())
		})
	}
}

func TestRollbackReturnsBadGateway(t *testing.T) {
	svc := startedService()
	s := New(newTestEngine(t, svc, true), nil, "", discard())
	svc.mu.Lock()
	svc.failUpdate = true
	svc.mu.Unlock()

	rec, v := do(t, s, http.MethodPost, "/api/v1/session/exercises/0/sets", "")
	require.Equal(t, http.StatusBadGateway, rec.Code)
	assert.Len(t, v.Workout.Exercises[0].Sets, 1, "state is rolled back")
	assert.Contains(t, v.Error, "Failed to add set")

	rec, v = do(t, s, http.MethodDelete, "/api/v1/session/error", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, v.Error)
}

func TestNoSession(t *testing.T) {
	s := New(newTestEngine(t, startedService(), false), nil, "", discard())

	rec, v := do(t, s, http.MethodGet, "/api/v1/session", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Nil(t, v.Workout)

	rec, _ = do(t, s, http.MethodPost, "/api/v1/session/start", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec, v = do(t, s, http.MethodPost, "/api/v1/session/load?date=2026-03-02", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "2026-03-02", v.Date)
	assert.NotNil(t, v.Workout)
}

func TestAPIKeyAuth(t *testing.T) {
	s := New(newTestEngine(t, startedService(), true), nil, "secret", discard())

	for _, tt := range []struct {
		key  string
		want int
	}{
		{"", http.StatusUnauthorized},
		{"wrong", http.StatusForbidden},
		{"secret", http.StatusOK},
	} {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/session", nil)
		if tt.key != "" {
			req.Header.Set("X-API-Key", tt.key)
		}
		rec := httptest.NewRecorder()
		s.ServeHTTP(rec, req)
		assert.Equal(t, tt.want, rec.Code, "key=%q", tt.key)
	}

	// metrics stay reachable for scrapers
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRequestIDAndCORS(t *testing.T) {
	s := New(newTestEngine(t, startedService(), true), nil, "", discard())

	req := httptest.NewRequest(http.MethodGet, "/api/v1/session", nil)
	req.Header.Set("X-Request-ID", "abc-123")
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)
	assert.Equal(t, "abc-123", rec.Header().Get("X-Request-ID"))
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))

	rec = httptest.NewRecorder()
	s.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/session", nil))
	assert.Len(t, rec.Header().Get("X-Request-ID"), 36)

	rec = httptest.NewRecorder()
	s.ServeHTTP(rec, httptest.NewRequest(http.MethodOptions, "/api/v1/session", nil))
	assert.Equal(t, http.StatusNoContent, rec.Code)
}

func TestHistoryRoutes(t *testing.T) {
	e := newTestEngine(t, startedService(), false)

	rec := httptest.NewRecorder()
	New(e, nil, "", discard()).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/history?date=2026-03-01", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code, "not mounted without a cache")

	s := New(e, stubHistory{}, "", discard())

	rec = httptest.NewRecorder()
	s.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/history?date=2026-03-01", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var list []models.WorkoutAPI
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	require.Len(t, list, 1)
	assert.Equal(t, "2026-03-01", list[0].Date)

	rec = httptest.NewRecorder()
	s.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/history", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = httptest.NewRecorder()
	s.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/history/h-1", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	s.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/history/zzz", nil))
	assert.Equal(t, http.StatusBadGateway, rec.Code)
}

// TestEvents reads the initial snapshot and the one published after a
// keystroke from the event stream.
func TestEvents(t *testing.T) {
	e := newTestEngine(t, startedService(), true)
	ts := httptest.NewServer(New(e, nil, "", discard()))
	defer ts.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, ts.URL+"/api/v1/session/events", nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	reader := bufio.NewReader(resp.Body)
	next := func() engine.View {
		t.Helper()
		for {
			line, err := reader.ReadString('\n')
			require.NoError(t, err)
			if data, ok := strings.CutPrefix(line, "data: "); ok {
				var v engine.View
				require.NoError(t, json.Unmarshal([]byte(data), &v))
				return v
			}
		}
	}

	first := next()
	assert.Equal(t, "w-1", first.Workout.ID)

	require.NoError(t, e.ChangeField(0, 0, "reps", "7"))
	second := next()
	assert.Equal(t, "7", second.Workout.Exercises[0].Sets[0].RepsText)
}
