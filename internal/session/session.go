// Package session holds the in-memory model of one workout session and the
// pure transformations applied to it: field parsing, set mutation, status
// gating and suggestion merging.
//
// Sessions are treated as immutable values. Every transformation returns a new
// *Session that shares untouched exercises and sets with its input, so callers
// can compare pointers to find out which sub-trees changed.
package session

import "time"

// Session is one workout instance for one day.
type Session struct {
	ID         string
	TemplateID string
	Date       string
	StartedAt  *time.Time
	FinishedAt *time.Time
	Exercises  []*ExerciseEntry

	// Opaque server bookkeeping, passed through unchanged.
	CreatedAt string
	UpdatedAt string
}

// ExerciseEntry is one prescribed exercise. Name is the join key to
// suggestions.
type ExerciseEntry struct {
	Name         string
	TargetSets   int
	TargetRepMin int
	TargetRepMax int
	Notes        *string
	Sets         []*SetEntry
}

// SetEntry is a single set. A nil Weight means bodyweight.
type SetEntry struct {
	Reps        *int
	Weight      *float64
	RestSeconds *int
	Completed   bool
	Notes       *string
}

// Status is derived from the session timestamps.
type Status string

const (
	NotStarted Status = "not_started"
	InProgress Status = "in_progress"
	Finished   Status = "finished"
)

// Status returns Finished if FinishedAt is set, InProgress if StartedAt is set,
// NotStarted otherwise.
func (s *Session) Status() Status {
	switch {
	case s == nil:
		return NotStarted
	case s.FinishedAt != nil:
		return Finished
	case s.StartedAt != nil:
		return InProgress
	default:
		return NotStarted
	}
}

// Set returns the set at (exerciseIdx, setIdx), or nil if out of range.
func (s *Session) Set(exerciseIdx, setIdx int) *SetEntry {
	if s == nil || exerciseIdx < 0 || exerciseIdx >= len(s.Exercises) {
		return nil
	}
	sets := s.Exercises[exerciseIdx].Sets
	if setIdx < 0 || setIdx >= len(sets) {
		return nil
	}
	return sets[setIdx]
}

// HasCompletedSet reports whether at least one set in the session is completed.
func (s *Session) HasCompletedSet() bool {
	if s == nil {
		return false
	}
	for _, e := range s.Exercises {
		for _, set := range e.Sets {
			if set.Completed {
				return true
			}
		}
	}
	return false
}

// CompletedSets counts completed sets across all exercises.
func (s *Session) CompletedSets() int {
	if s == nil {
		return 0
	}
	n := 0
	for _, e := range s.Exercises {
		for _, set := range e.Sets {
			if set.Completed {
				n++
			}
		}
	}
	return n
}

func intPtr(v int) *int { return &v }

func floatPtr(v float64) *float64 { return &v }
