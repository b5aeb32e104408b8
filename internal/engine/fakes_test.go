package engine

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/claude/workoutsync/internal/models"
)

var errBackend = errors.New("API request failed: 500 Internal Server Error")

// fakeClock fires timers synchronously from Advance.
type fakeClock struct {
	mu     sync.Mutex
	now    time.Time
	timers []*fakeTimer
}

type fakeTimer struct {
	c       *fakeClock
	at      time.Time
	fn      func()
	stopped bool
	fired   bool
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) AfterFunc(d time.Duration, f func()) Timer {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := &fakeTimer{c: c, at: c.now.Add(d), fn: f}
	c.timers = append(c.timers, t)
	return t
}

func (t *fakeTimer) Stop() bool {
	t.c.mu.Lock()
	defer t.c.mu.Unlock()
	if t.stopped || t.fired {
		return false
	}
	t.stopped = true
	return true
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	var due []*fakeTimer
	for _, t := range c.timers {
		if !t.stopped && !t.fired && !t.at.After(c.now) {
			t.fired = true
			due = append(due, t)
		}
	}
	c.mu.Unlock()

	for _, t := range due {
		t.fn()
	}
}

// fakeService is an in-memory workout service holding a single workout.
type fakeService struct {
	mu          sync.Mutex
	workout     *models.WorkoutAPI
	suggestions *models.SuggestionsAPI
	fail        map[string]error
	calls       []string
	updates     [][]models.WorkoutExerciseAPI
	updateErrs  []error

	// When set, UpdateExercises signals entered and waits for release.
	entered chan struct{}
	release chan struct{}
}

func newFakeService(w *models.WorkoutAPI) *fakeService {
	return &fakeService{workout: w, fail: map[string]error{}}
}

func (f *fakeService) failOn(op string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fail[op] = err
}

func (f *fakeService) callsTo(op string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.calls {
		if c == op {
			n++
		}
	}
	return n
}

func (f *fakeService) lastUpdate() []models.WorkoutExerciseAPI {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.updates) == 0 {
		return nil
	}
	return f.updates[len(f.updates)-1]
}

// lastUpdateCtxErr is the context error seen by the latest UpdateExercises.
func (f *fakeService) lastUpdateCtxErr() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.updateErrs) == 0 {
		return nil
	}
	return f.updateErrs[len(f.updateErrs)-1]
}

func (f *fakeService) begin(op string) (func(), error) {
	f.mu.Lock()
	f.calls = append(f.calls, op)
	return f.mu.Unlock, f.fail[op]
}

func (f *fakeService) snapshot() *models.WorkoutAPI {
	data, _ := json.Marshal(f.workout)
	var out models.WorkoutAPI
	_ = json.Unmarshal(data, &out)
	return &out
}

func (f *fakeService) ListWorkouts(_ context.Context, _ string) ([]models.WorkoutAPI, error) {
	done, err := f.begin("list")
	defer done()
	if err != nil {
		return nil, err
	}
	if f.workout == nil {
		return nil, nil
	}
	return []models.WorkoutAPI{*f.snapshot()}, nil
}

func (f *fakeService) SuggestWorkout(_ context.Context, _ string) (*models.SuggestionsAPI, error) {
	done, err := f.begin("suggest")
	defer done()
	if err != nil {
		return nil, err
	}
	return f.suggestions, nil
}

func (f *fakeService) StartWorkout(_ context.Context, _ string) (*models.WorkoutAPI, error) {
	done, err := f.begin("start")
	defer done()
	if err != nil {
		return nil, err
	}
	ts := "2026-03-02T09:00:00"
	f.workout.StartTime = &ts
	return f.snapshot(), nil
}

func (f *fakeService) FinishWorkout(_ context.Context, _ string) (*models.WorkoutAPI, error) {
	done, err := f.begin("finish")
	defer done()
	if err != nil {
		return nil, err
	}
	ts := "2026-03-02T10:00:00"
	f.workout.EndTime = &ts
	return f.snapshot(), nil
}

func (f *fakeService) CancelWorkout(_ context.Context, _ string) (*models.WorkoutAPI, error) {
	done, err := f.begin("cancel")
	defer done()
	if err != nil {
		return nil, err
	}
	f.workout.StartTime, f.workout.EndTime = nil, nil
	for i := range f.workout.Exercises {
		for j := range f.workout.Exercises[i].Sets {
			f.workout.Exercises[i].Sets[j].Completed = false
		}
	}
	return f.snapshot(), nil
}

func (f *fakeService) UpdateExercises(ctx context.Context, _ string, exercises []models.WorkoutExerciseAPI) (*models.WorkoutAPI, error) {
	if f.entered != nil {
		f.entered <- struct{}{}
		<-f.release
	}
	done, err := f.begin("update")
	defer done()
	f.updateErrs = append(f.updateErrs, ctx.Err())
	data, _ := json.Marshal(exercises)
	var copied []models.WorkoutExerciseAPI
	_ = json.Unmarshal(data, &copied)
	f.updates = append(f.updates, copied)
	if err != nil {
		return nil, err
	}
	f.workout.Exercises = copied
	return f.snapshot(), nil
}

type fakeRecorder struct {
	mu  sync.Mutex
	ids []string
}

func (r *fakeRecorder) Record(_ context.Context, w *models.WorkoutAPI) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ids = append(r.ids, w.ID)
	return nil
}

func ip(v int) *int { return &v }

func fp(v float64) *float64 { return &v }

// benchWorkout is one in-progress "Bench Press" exercise with a blank set.
func benchWorkout(started bool) *models.WorkoutAPI {
	w := &models.WorkoutAPI{
		ID:         "w-1",
		TemplateID: "t-1",
		Date:       "2026-03-02",
		Exercises: []models.WorkoutExerciseAPI{{
			Name: "Bench Press", TargetSets: 3, TargetRepMin: 8, TargetRepMax: 10,
			Sets: []models.SetAPI{{}},
		}},
	}
	if started {
		ts := "2026-03-02T09:00:00"
		w.StartTime = &ts
	}
	return w
}

func suggest(reps int, weight *float64) *models.SuggestionsAPI {
	return &models.SuggestionsAPI{Exercises: []models.ExerciseSuggestionAPI{{
		Name: "Bench Press",
		Sets: []models.SetSuggestionAPI{{Reps: reps, Weight: weight}},
	}}}
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// newLoaded builds an engine over svc, loads it and waits for suggestions.
func newLoaded(t *testing.T, svc *fakeService, opts ...Option) (*Engine, *fakeClock) {
	t.Helper()
	clock := newFakeClock()
	opts = append([]Option{WithClock(clock), WithLogger(discardLogger())}, opts...)
	e := New(svc, opts...)
	t.Cleanup(e.Close)
	if err := e.Load(context.Background(), "2026-03-02"); err != nil {
		t.Fatalf("Load: %v", err)
	}
	e.Wait()
	return e, clock
}
