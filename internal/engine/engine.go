// Package engine owns the in-memory workout session and reconciles it with
// the remote workout service, background suggestions and user edits.
//
// All state lives behind one mutex. Network calls are made without holding it,
// so a slow request never blocks keystrokes or rendering. Responses are applied
// in arrival order; there is no request-generation check, so a stale response
// that lands after a newer mutation wins.
package engine

import (
	"context"
	"log/slog"
	"maps"
	"slices"
	"sync"
	"time"

	"github.com/claude/workoutsync/internal/metrics"
	"github.com/claude/workoutsync/internal/models"
	"github.com/claude/workoutsync/internal/session"
)

const (
	DefaultDebounce          = 500 * time.Millisecond
	DefaultSuggestionTimeout = 30 * time.Second
	DefaultSaveTimeout       = 30 * time.Second
)

// Service is the subset of the workout service the engine calls.
type Service interface {
	ListWorkouts(ctx context.Context, date string) ([]models.WorkoutAPI, error)
	SuggestWorkout(ctx context.Context, id string) (*models.SuggestionsAPI, error)
	StartWorkout(ctx context.Context, id string) (*models.WorkoutAPI, error)
	FinishWorkout(ctx context.Context, id string) (*models.WorkoutAPI, error)
	CancelWorkout(ctx context.Context, id string) (*models.WorkoutAPI, error)
	UpdateExercises(ctx context.Context, id string, exercises []models.WorkoutExerciseAPI) (*models.WorkoutAPI, error)
}

// Recorder receives finished workouts, e.g. the history cache.
type Recorder interface {
	Record(ctx context.Context, w *models.WorkoutAPI) error
}

// Option configures an Engine.
type Option func(*Engine)

// WithClock replaces the wall clock.
func WithClock(c Clock) Option { return func(e *Engine) { e.clock = c } }

// WithDebounce sets the quiet period before coalesced field edits are saved.
func WithDebounce(d time.Duration) Option { return func(e *Engine) { e.debounceDelay = d } }

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option { return func(e *Engine) { e.log = l } }

// WithRecorder registers a sink for finished workouts.
func WithRecorder(r Recorder) Option { return func(e *Engine) { e.recorder = r } }

// WithSuggestionTimeout bounds the background suggestion fetch.
func WithSuggestionTimeout(d time.Duration) Option {
	return func(e *Engine) { e.suggestionTimeout = d }
}

// Engine is the single owner of one active workout session.
type Engine struct {
	svc               Service
	clock             Clock
	log               *slog.Logger
	recorder          Recorder
	debounceDelay     time.Duration
	suggestionTimeout time.Duration
	debounce          *Debouncer

	bgCtx    context.Context
	bgCancel context.CancelFunc
	bg       sync.WaitGroup

	mu          sync.Mutex
	date        string
	session     *session.Session
	suggestions session.Suggestions
	dirty       session.DirtyFields
	buffers     session.Buffers
	fieldErrors session.FieldErrors
	screenErr   string
	loading     bool
	version     uint64
	subs        map[int]*subscriber
	nextSub     int
}

// New creates an Engine backed by svc.
func New(svc Service, opts ...Option) *Engine {
	e := &Engine{
		svc:               svc,
		clock:             realClock{},
		log:               slog.Default(),
		debounceDelay:     DefaultDebounce,
		suggestionTimeout: DefaultSuggestionTimeout,
		dirty:             session.DirtyFields{},
		buffers:           session.Buffers{},
		fieldErrors:       session.FieldErrors{},
		subs:              make(map[int]*subscriber),
	}
	for _, opt := range opts {
		opt(e)
	}
	e.bgCtx, e.bgCancel = context.WithCancel(context.Background())
	e.debounce = NewDebouncer(e.clock, e.debounceDelay, e.saveFields)
	return e
}

// State is an immutable snapshot of the engine for rendering.
type State struct {
	// Version increases with every published change.
	Version     uint64
	Date        string
	Session     *session.Session
	Status      session.Status
	Suggestions session.Suggestions
	Dirty       session.DirtyFields
	Buffers     session.Buffers
	FieldErrors session.FieldErrors
	Error       string
	Loading     bool
	SavePending bool
	CanFinish   bool
}

// DisplayValue is the text shown in the input for k: the raw buffer while
// typing, else the model value, else the suggestion.
func (st State) DisplayValue(k session.FieldKey) string {
	if raw, ok := st.Buffers[k]; ok {
		return raw
	}
	set := st.Session.Set(k.Exercise, k.Set)
	if v := session.FormatValue(k.Field, set); v != "" {
		return v
	}
	if set == nil {
		return ""
	}
	sg, ok := st.Suggestions.For(st.Session.Exercises[k.Exercise].Name, k.Set)
	if !ok {
		return ""
	}
	return session.FormatValue(k.Field, &session.SetEntry{Reps: &sg.Reps, Weight: sg.Weight})
}

// State returns the current snapshot.
func (e *Engine) State() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.stateLocked()
}

func (e *Engine) stateLocked() State {
	return State{
		Version:     e.version,
		Date:        e.date,
		Session:     e.session,
		Status:      e.session.Status(),
		Suggestions: e.suggestions,
		Dirty:       e.dirty.Clone(),
		Buffers:     e.buffers.Clone(),
		FieldErrors: e.fieldErrors.Clone(),
		Error:       e.screenErr,
		Loading:     e.loading,
		SavePending: e.debounce.Pending(),
		CanFinish:   session.CanFinish(e.session),
	}
}

// Subscribe registers fn to be called with a fresh snapshot after every state
// change. Callbacks run outside the engine lock and may call back into the
// engine. Calls to fn never overlap and never go back to an older version;
// intermediate versions may be skipped while fn is busy. The returned function
// unregisters fn.
func (e *Engine) Subscribe(fn func(State)) func() {
	e.mu.Lock()
	id := e.nextSub
	e.nextSub++
	e.subs[id] = &subscriber{fn: fn}
	e.mu.Unlock()

	return func() {
		e.mu.Lock()
		delete(e.subs, id)
		e.mu.Unlock()
	}
}

func (e *Engine) publish() {
	e.mu.Lock()
	e.version++
	st := e.stateLocked()
	subs := slices.Collect(maps.Values(e.subs))
	e.mu.Unlock()

	for _, sub := range subs {
		sub.deliver(st)
	}
}

// subscriber serializes deliveries to one callback. A publisher that finds a
// delivery in progress leaves its snapshot for the running deliverer instead
// of calling fn itself.
type subscriber struct {
	fn func(State)

	mu      sync.Mutex
	latest  uint64
	pending *State
	running bool
}

func (s *subscriber) deliver(st State) {
	s.mu.Lock()
	if st.Version <= s.latest {
		s.mu.Unlock()
		return
	}
	s.latest = st.Version
	s.pending = &st
	if s.running {
		s.mu.Unlock()
		return
	}
	s.running = true
	for s.pending != nil {
		next := *s.pending
		s.pending = nil
		s.mu.Unlock()
		s.fn(next)
		s.mu.Lock()
	}
	s.running = false
	s.mu.Unlock()
}

// replaceLocked installs s as the current session and re-applies suggestions.
func (e *Engine) replaceLocked(s *session.Session) {
	e.session = session.Merge(s, e.suggestions, e.dirty)
}

// Load fetches the workout for date (YYYY-MM-DD) and replaces the current
// session wholesale, discarding edit state and suggestions. Suggestions are
// then fetched in the background.
func (e *Engine) Load(ctx context.Context, date string) error {
	e.mu.Lock()
	e.loading = true
	e.date = date
	e.mu.Unlock()
	e.publish()

	s, err := e.fetchToday(ctx, date)
	if err != nil {
		reqErr := &RequestError{Op: opLoad, Err: err}
		e.log.Error("load workout failed", "date", date, "error", err)
		e.mu.Lock()
		e.loading = false
		e.screenErr = screenMessage(reqErr)
		e.mu.Unlock()
		e.publish()
		return reqErr
	}

	e.mu.Lock()
	e.debounce.Cancel()
	e.suggestions = nil
	e.dirty = session.DirtyFields{}
	e.buffers = session.Buffers{}
	e.fieldErrors = session.FieldErrors{}
	e.screenErr = ""
	e.loading = false
	e.session = s
	e.mu.Unlock()
	e.publish()

	if s == nil {
		e.log.Info("no workout scheduled", "date", date)
		return nil
	}
	e.log.Info("workout loaded", "id", s.ID, "date", date, "status", s.Status())

	e.goBackground(func(ctx context.Context) {
		ctx, cancel := context.WithTimeout(ctx, e.suggestionTimeout)
		defer cancel()
		_ = e.RefreshSuggestions(ctx)
	})
	return nil
}

func (e *Engine) fetchToday(ctx context.Context, date string) (*session.Session, error) {
	workouts, err := e.svc.ListWorkouts(ctx, date)
	if err != nil {
		return nil, err
	}
	if len(workouts) == 0 {
		return nil, nil
	}
	return session.FromAPI(&workouts[0])
}

// RefreshSuggestions fetches suggestions for the current session and merges
// them. Failures are logged and returned but never surface as a screen error;
// the session stays usable with its target defaults.
func (e *Engine) RefreshSuggestions(ctx context.Context) error {
	e.mu.Lock()
	s := e.session
	e.mu.Unlock()
	if s == nil {
		return ErrNoSession
	}

	resp, err := e.svc.SuggestWorkout(ctx, s.ID)
	metrics.SuggestionFetch(err)
	if err != nil {
		e.log.Warn("suggestion fetch failed", "id", s.ID, "error", err)
		return &RequestError{Op: opSuggest, Err: err}
	}

	sugg := session.SuggestionsFromAPI(resp)
	e.mu.Lock()
	e.suggestions = sugg
	e.replaceLocked(e.session)
	e.mu.Unlock()
	e.publish()

	e.log.Debug("suggestions merged", "id", s.ID, "exercises", len(sugg))
	return nil
}

// DismissError clears the screen-level error.
func (e *Engine) DismissError() {
	e.mu.Lock()
	e.screenErr = ""
	e.mu.Unlock()
	e.publish()
}

// Wait blocks until background work started so far has finished.
func (e *Engine) Wait() {
	e.bg.Wait()
}

// Close drops a pending field save, lets a save that is already being written
// finish, then cancels background work and waits for it. Call Flush first to
// write pending edits.
func (e *Engine) Close() {
	if e.debounce.Stop() {
		e.log.Warn("pending field save dropped on close")
	}
	e.bgCancel()
	e.bg.Wait()
}

func (e *Engine) goBackground(fn func(ctx context.Context)) {
	e.bg.Add(1)
	go func() {
		defer e.bg.Done()
		fn(e.bgCtx)
	}()
}
