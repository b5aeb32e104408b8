package session

import (
	"errors"
	"math"
	"slices"
	"time"
)

// Defaults for a set appended to an exercise that has no sets yet.
const (
	DefaultReps        = 10
	DefaultRestSeconds = 60
)

// ErrLastSet is returned by DeleteSet when the exercise has a single set left.
var ErrLastSet = errors.New("cannot delete the last set of an exercise")

// SetField returns a copy of s with field of the addressed set replaced by
// value. Only the path Session → exercises → exercise → sets → set is cloned;
// all siblings are shared with s. Out-of-range indices return s unchanged.
func SetField(s *Session, exerciseIdx, setIdx int, field Field, value *float64) *Session {
	return updateSet(s, exerciseIdx, setIdx, func(set *SetEntry) {
		switch field {
		case FieldReps:
			if value == nil {
				set.Reps = nil
			} else {
				set.Reps = intPtr(int(math.Round(*value)))
			}
		case FieldWeight:
			if value == nil {
				set.Weight = nil
			} else {
				set.Weight = floatPtr(*value)
			}
		}
	})
}

// SetCompleted returns a copy of s with the completed flag of the addressed
// set replaced.
func SetCompleted(s *Session, exerciseIdx, setIdx int, completed bool) *Session {
	return updateSet(s, exerciseIdx, setIdx, func(set *SetEntry) {
		set.Completed = completed
	})
}

// AddSet appends a set to the exercise, copying reps, weight and rest from the
// previous set, or using the defaults when the exercise has none.
func AddSet(s *Session, exerciseIdx int) *Session {
	return updateExercise(s, exerciseIdx, func(e *ExerciseEntry) {
		next := &SetEntry{
			Reps:        intPtr(DefaultReps),
			RestSeconds: intPtr(DefaultRestSeconds),
		}
		if n := len(e.Sets); n > 0 {
			prev := e.Sets[n-1]
			next = &SetEntry{
				Reps:        clonePtr(prev.Reps),
				Weight:      clonePtr(prev.Weight),
				RestSeconds: clonePtr(prev.RestSeconds),
			}
		}
		e.Sets = append(slices.Clip(e.Sets), next)
	})
}

// DeleteSet removes the addressed set, shifting later sets down. It refuses to
// remove the last remaining set of an exercise.
func DeleteSet(s *Session, exerciseIdx, setIdx int) (*Session, error) {
	if s.Set(exerciseIdx, setIdx) == nil {
		return s, nil
	}
	if len(s.Exercises[exerciseIdx].Sets) <= 1 {
		return s, ErrLastSet
	}
	return updateExercise(s, exerciseIdx, func(e *ExerciseEntry) {
		e.Sets = slices.Delete(slices.Clone(e.Sets), setIdx, setIdx+1)
	}), nil
}

// MarkStarted returns a copy of s with StartedAt set to now.
func MarkStarted(s *Session, now time.Time) *Session {
	if s == nil {
		return nil
	}
	out := *s
	out.StartedAt = &now
	out.FinishedAt = nil
	return &out
}

// MarkFinished returns a copy of s with FinishedAt set to now.
func MarkFinished(s *Session, now time.Time) *Session {
	if s == nil {
		return nil
	}
	out := *s
	out.FinishedAt = &now
	return &out
}

// Reset clears both timestamps and every completed flag, returning the session
// to NotStarted. Exercises without completed sets are shared with s.
func Reset(s *Session) *Session {
	if s == nil {
		return nil
	}
	out := *s
	out.StartedAt = nil
	out.FinishedAt = nil
	out.Exercises = slices.Clone(s.Exercises)
	for i, e := range s.Exercises {
		var sets []*SetEntry
		for j, set := range e.Sets {
			if !set.Completed {
				continue
			}
			if sets == nil {
				sets = slices.Clone(e.Sets)
			}
			cleared := *set
			cleared.Completed = false
			sets[j] = &cleared
		}
		if sets != nil {
			ex := *e
			ex.Sets = sets
			out.Exercises[i] = &ex
		}
	}
	return &out
}

func updateExercise(s *Session, exerciseIdx int, fn func(*ExerciseEntry)) *Session {
	if s == nil || exerciseIdx < 0 || exerciseIdx >= len(s.Exercises) {
		return s
	}
	out := *s
	out.Exercises = slices.Clone(s.Exercises)
	ex := *s.Exercises[exerciseIdx]
	fn(&ex)
	out.Exercises[exerciseIdx] = &ex
	return &out
}

func updateSet(s *Session, exerciseIdx, setIdx int, fn func(*SetEntry)) *Session {
	if s.Set(exerciseIdx, setIdx) == nil {
		return s
	}
	return updateExercise(s, exerciseIdx, func(e *ExerciseEntry) {
		e.Sets = slices.Clone(e.Sets)
		set := *e.Sets[setIdx]
		fn(&set)
		e.Sets[setIdx] = &set
	})
}

func clonePtr[T any](p *T) *T {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}
