package engine

import (
	"context"

	"github.com/claude/workoutsync/internal/metrics"
	"github.com/claude/workoutsync/internal/session"
)

// checkEditLocked resolves whether a field edit may proceed. ok is false when
// the edit must be ignored (err == nil) or rejected (err != nil).
func (e *Engine) checkEditLocked(k session.FieldKey) (ok bool, err error) {
	if e.session == nil {
		return false, ErrNoSession
	}
	if !e.session.Status().Allows(session.OpEditField) {
		return false, nil
	}
	if !session.ValidField(k.Field) || e.session.Set(k.Exercise, k.Set) == nil {
		return false, &OperationError{Op: session.OpEditField, Err: ErrNoSuchSet}
	}
	return true, nil
}

// ChangeField records a keystroke. Only the input buffer and the inline
// validation message change; nothing is persisted.
func (e *Engine) ChangeField(exerciseIdx, setIdx int, field session.Field, raw string) error {
	k := session.Key(exerciseIdx, setIdx, field)

	e.mu.Lock()
	ok, err := e.checkEditLocked(k)
	if !ok {
		e.mu.Unlock()
		return err
	}
	e.buffers[k] = raw
	if _, perr := session.ParseField(field, raw); perr != nil {
		e.fieldErrors[k] = session.FieldMessage(perr)
	} else {
		delete(e.fieldErrors, k)
	}
	e.mu.Unlock()
	e.publish()
	return nil
}

// BlurField commits a field. Invalid input reverts the buffer to the model
// value and is not persisted. Valid input marks the field dirty, is applied
// to the session immediately and (re)starts the shared save timer, so a burst
// of edits across fields results in a single write.
func (e *Engine) BlurField(exerciseIdx, setIdx int, field session.Field, raw string) error {
	k := session.Key(exerciseIdx, setIdx, field)

	e.mu.Lock()
	ok, err := e.checkEditLocked(k)
	if !ok {
		e.mu.Unlock()
		return err
	}
	delete(e.buffers, k)

	v, perr := session.ParseField(field, raw)
	if perr != nil {
		msg := session.FieldMessage(perr)
		e.fieldErrors[k] = msg
		e.mu.Unlock()
		e.publish()
		return &ValidationError{Key: k, Message: msg}
	}

	delete(e.fieldErrors, k)
	e.dirty.Mark(k)
	e.replaceLocked(session.SetField(e.session, exerciseIdx, setIdx, field, v))
	e.debounce.Trigger()
	e.mu.Unlock()
	e.publish()
	return nil
}

// Flush runs a pending field save now instead of waiting for the timer.
func (e *Engine) Flush(ctx context.Context) error {
	if !e.debounce.Cancel() {
		return nil
	}
	e.publish()
	return e.persistFields(ctx)
}

// saveFields is the debounce callback.
func (e *Engine) saveFields() {
	ctx, cancel := context.WithTimeout(e.bgCtx, DefaultSaveTimeout)
	defer cancel()
	_ = e.persistFields(ctx)
}

// persistFields writes the session as it is now, not as it was when the
// timer started. A failed write keeps the local edits and only surfaces an
// error.
func (e *Engine) persistFields(ctx context.Context) error {
	e.mu.Lock()
	s := e.session
	e.mu.Unlock()
	if s == nil {
		return ErrNoSession
	}

	w, err := e.saveExercises(ctx, s)
	var fresh *session.Session
	if err == nil {
		fresh, err = session.FromAPI(w)
	}
	metrics.DebouncedSave(err)
	if err != nil {
		reqErr := &RequestError{Op: session.OpSaveFields, Err: err}
		e.mu.Lock()
		e.screenErr = screenMessage(reqErr)
		e.mu.Unlock()
		e.publish()
		e.log.Warn("field save failed", "id", s.ID, "error", err)
		return reqErr
	}

	e.mu.Lock()
	e.replaceLocked(fresh)
	e.mu.Unlock()
	e.publish()
	e.log.Debug("fields saved", "id", s.ID)
	return nil
}
