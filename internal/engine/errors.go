package engine

import (
	"errors"
	"fmt"

	"github.com/claude/workoutsync/internal/session"
)

const (
	opLoad    session.Operation = "load"
	opSuggest session.Operation = "suggest"
)

var (
	// ErrNoSession is returned by actions issued before a workout is loaded.
	ErrNoSession = errors.New("no workout loaded")

	// ErrNothingCompleted rejects Finish when no set has been completed.
	ErrNothingCompleted = errors.New("complete at least one set before finishing")

	// ErrNoSuchSet is returned for out-of-range exercise or set indices.
	ErrNoSuchSet = errors.New("no such set")

	// ErrLastSet rejects deleting the only remaining set of an exercise.
	ErrLastSet = session.ErrLastSet
)

// ValidationError reports a field value that failed to parse. It never
// reaches the network.
type ValidationError struct {
	Key     session.FieldKey
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Key, e.Message)
}

// OperationError is a business-rule rejection raised before any network
// call. The session is left unchanged.
type OperationError struct {
	Op  session.Operation
	Err error
}

func (e *OperationError) Error() string { return e.Err.Error() }

func (e *OperationError) Unwrap() error { return e.Err }

// RequestError wraps a failed call to the workout service.
type RequestError struct {
	Op  session.Operation
	Err error
}

func (e *RequestError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *RequestError) Unwrap() error { return e.Err }

var failureText = map[session.Operation]string{
	opLoad:               "Failed to load workout",
	session.OpStart:      "Failed to start workout",
	session.OpFinish:     "Failed to finish workout",
	session.OpCancel:     "Failed to cancel workout",
	session.OpToggleSet:  "Failed to update set",
	session.OpAddSet:     "Failed to add set",
	session.OpDeleteSet:  "Failed to delete set",
	session.OpSaveFields: "Failed to save changes",
}

// screenMessage renders err as the dismissible screen-level message.
func screenMessage(err error) string {
	var reqErr *RequestError
	if errors.As(err, &reqErr) {
		if text, ok := failureText[reqErr.Op]; ok {
			return fmt.Sprintf("%s: %v", text, reqErr.Err)
		}
	}
	return err.Error()
}
