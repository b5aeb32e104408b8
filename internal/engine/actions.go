package engine

import (
	"context"
	"time"

	"github.com/claude/workoutsync/internal/metrics"
	"github.com/claude/workoutsync/internal/models"
	"github.com/claude/workoutsync/internal/session"
)

type mutation func(cur *session.Session) (*session.Session, error)

type remoteCall func(ctx context.Context, sent *session.Session) (*models.WorkoutAPI, error)

// editState is the rollback snapshot. Sessions are immutable and the edit maps
// are replaced rather than mutated by structural changes, so holding the
// references is enough.
type editState struct {
	session     *session.Session
	dirty       session.DirtyFields
	buffers     session.Buffers
	fieldErrors session.FieldErrors
}

// apply is the immediate path shared by every non-field action: check status,
// mutate locally, write remotely, then adopt the server's copy or roll back to
// the exact pre-mutation snapshot.
//
// Actions that the current status does not allow are ignored and return nil.
func (e *Engine) apply(ctx context.Context, op session.Operation, mutate mutation, call remoteCall) error {
	e.mu.Lock()
	cur := e.session
	if cur == nil {
		e.mu.Unlock()
		return ErrNoSession
	}
	if !cur.Status().Allows(op) {
		e.mu.Unlock()
		e.log.Debug("action ignored", "op", op, "status", cur.Status())
		return nil
	}

	snap := editState{session: cur, dirty: e.dirty, buffers: e.buffers, fieldErrors: e.fieldErrors}
	next, err := mutate(cur)
	if err != nil {
		opErr := &OperationError{Op: op, Err: err}
		e.screenErr = opErr.Error()
		e.mu.Unlock()
		e.publish()
		return opErr
	}
	if op == session.OpFinish || op == session.OpCancel {
		if e.debounce.Cancel() {
			e.log.Info("pending field save dropped", "op", op)
		}
	}
	e.replaceLocked(next)
	sent := e.session
	e.screenErr = ""
	e.mu.Unlock()
	e.publish()

	start := time.Now()
	w, err := call(ctx, sent)
	var fresh *session.Session
	if err == nil {
		fresh, err = session.FromAPI(w)
	}
	if err != nil {
		reqErr := &RequestError{Op: op, Err: err}
		e.mu.Lock()
		e.session = snap.session
		e.dirty = snap.dirty
		e.buffers = snap.buffers
		e.fieldErrors = snap.fieldErrors
		e.screenErr = screenMessage(reqErr)
		e.mu.Unlock()
		e.publish()

		metrics.Rollback(string(op))
		e.log.Warn("action rolled back", "op", op, "id", cur.ID, "error", err)
		return reqErr
	}

	e.mu.Lock()
	e.replaceLocked(fresh)
	e.mu.Unlock()
	e.publish()

	e.log.Debug("action saved", "op", op, "id", cur.ID, "duration", time.Since(start).String())
	return nil
}

func (e *Engine) saveExercises(ctx context.Context, s *session.Session) (*models.WorkoutAPI, error) {
	return e.svc.UpdateExercises(ctx, s.ID, session.ExercisesToAPI(s))
}

// Start begins the workout. Only legal when not started.
func (e *Engine) Start(ctx context.Context) error {
	return e.apply(ctx, session.OpStart,
		func(cur *session.Session) (*session.Session, error) {
			return session.MarkStarted(cur, e.clock.Now()), nil
		},
		func(ctx context.Context, s *session.Session) (*models.WorkoutAPI, error) {
			return e.svc.StartWorkout(ctx, s.ID)
		})
}

// Finish ends the workout. It requires at least one completed set and drops
// any pending field save.
func (e *Engine) Finish(ctx context.Context) error {
	return e.apply(ctx, session.OpFinish,
		func(cur *session.Session) (*session.Session, error) {
			if !cur.HasCompletedSet() {
				return nil, ErrNothingCompleted
			}
			return session.MarkFinished(cur, e.clock.Now()), nil
		},
		func(ctx context.Context, s *session.Session) (*models.WorkoutAPI, error) {
			w, err := e.svc.FinishWorkout(ctx, s.ID)
			if err == nil && e.recorder != nil {
				if rerr := e.recorder.Record(ctx, w); rerr != nil {
					e.log.Warn("recording finished workout failed", "id", s.ID, "error", rerr)
				}
			}
			return w, err
		})
}

// Cancel returns the workout to not started, clearing timestamps, completed
// flags and all edit state.
func (e *Engine) Cancel(ctx context.Context) error {
	return e.apply(ctx, session.OpCancel,
		func(cur *session.Session) (*session.Session, error) {
			e.dirty = session.DirtyFields{}
			e.buffers = session.Buffers{}
			e.fieldErrors = session.FieldErrors{}
			return session.Reset(cur), nil
		},
		func(ctx context.Context, s *session.Session) (*models.WorkoutAPI, error) {
			return e.svc.CancelWorkout(ctx, s.ID)
		})
}

// ToggleSet flips the completed flag of a set. When a set is checked off,
// suggested values are adopted for every field the user has not edited. When
// it is reopened only the flag changes.
func (e *Engine) ToggleSet(ctx context.Context, exerciseIdx, setIdx int) error {
	return e.apply(ctx, session.OpToggleSet,
		func(cur *session.Session) (*session.Session, error) {
			set := cur.Set(exerciseIdx, setIdx)
			if set == nil {
				return nil, ErrNoSuchSet
			}
			next := cur
			if !set.Completed {
				next = session.AdoptSuggestion(next, e.suggestions, e.dirty, exerciseIdx, setIdx)
			} else {
				// Reopened sets keep their logged values; suggestions must not
				// fill them back in.
				e.dirty = e.dirty.Clone()
				e.dirty.Mark(session.Key(exerciseIdx, setIdx, session.FieldReps))
				e.dirty.Mark(session.Key(exerciseIdx, setIdx, session.FieldWeight))
			}
			return session.SetCompleted(next, exerciseIdx, setIdx, !set.Completed), nil
		},
		e.saveExercises)
}

// AddSet appends a set to an exercise, copying the previous set's values.
func (e *Engine) AddSet(ctx context.Context, exerciseIdx int) error {
	return e.apply(ctx, session.OpAddSet,
		func(cur *session.Session) (*session.Session, error) {
			if exerciseIdx < 0 || exerciseIdx >= len(cur.Exercises) {
				return nil, ErrNoSuchSet
			}
			return session.AddSet(cur, exerciseIdx), nil
		},
		e.saveExercises)
}

// DeleteSet removes a set. The last set of an exercise cannot be deleted.
func (e *Engine) DeleteSet(ctx context.Context, exerciseIdx, setIdx int) error {
	return e.apply(ctx, session.OpDeleteSet,
		func(cur *session.Session) (*session.Session, error) {
			if cur.Set(exerciseIdx, setIdx) == nil {
				return nil, ErrNoSuchSet
			}
			next, err := session.DeleteSet(cur, exerciseIdx, setIdx)
			if err != nil {
				return nil, err
			}
			e.dirty = session.WithoutSet(e.dirty, exerciseIdx, setIdx)
			e.buffers = session.WithoutSet(e.buffers, exerciseIdx, setIdx)
			e.fieldErrors = session.WithoutSet(e.fieldErrors, exerciseIdx, setIdx)
			return next, nil
		},
		e.saveExercises)
}
