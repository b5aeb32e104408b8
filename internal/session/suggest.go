package session

// SetSuggestion is an advisory reps/weight pair for one set.
type SetSuggestion struct {
	Reps   int
	Weight *float64
}

// ExerciseSuggestion holds suggestions for the sets of one exercise, by index.
type ExerciseSuggestion struct {
	Name string
	Sets []SetSuggestion
}

// Suggestions is the result of one suggestion fetch.
type Suggestions []ExerciseSuggestion

// For returns the suggestion for set setIdx of the exercise named name. Names
// match exactly, including case; the first matching exercise wins.
func (s Suggestions) For(name string, setIdx int) (SetSuggestion, bool) {
	for _, e := range s {
		if e.Name != name {
			continue
		}
		if setIdx < 0 || setIdx >= len(e.Sets) {
			return SetSuggestion{}, false
		}
		return e.Sets[setIdx], true
	}
	return SetSuggestion{}, false
}

// Merge fills suggested values into s. Completed sets and dirty fields are
// never touched. Merge is idempotent and returns s itself when nothing
// changes.
func Merge(s *Session, sugg Suggestions, dirty DirtyFields) *Session {
	if s == nil || len(sugg) == 0 {
		return s
	}
	out := s
	for ei, e := range s.Exercises {
		for si, set := range e.Sets {
			if set.Completed {
				continue
			}
			sg, ok := sugg.For(e.Name, si)
			if !ok {
				continue
			}
			if !dirty.IsDirty(Key(ei, si, FieldReps)) && !intEqual(set.Reps, sg.Reps) {
				v := float64(sg.Reps)
				out = SetField(out, ei, si, FieldReps, &v)
			}
			if !dirty.IsDirty(Key(ei, si, FieldWeight)) && !floatEqual(set.Weight, sg.Weight) {
				out = SetField(out, ei, si, FieldWeight, sg.Weight)
			}
		}
	}
	return out
}

// AdoptSuggestion copies the suggested value of every non-dirty field into the
// addressed set. It is applied at the moment a set is checked off.
func AdoptSuggestion(s *Session, sugg Suggestions, dirty DirtyFields, exerciseIdx, setIdx int) *Session {
	set := s.Set(exerciseIdx, setIdx)
	if set == nil {
		return s
	}
	sg, ok := sugg.For(s.Exercises[exerciseIdx].Name, setIdx)
	if !ok {
		return s
	}
	out := s
	if !dirty.IsDirty(Key(exerciseIdx, setIdx, FieldReps)) && !intEqual(set.Reps, sg.Reps) {
		v := float64(sg.Reps)
		out = SetField(out, exerciseIdx, setIdx, FieldReps, &v)
	}
	if !dirty.IsDirty(Key(exerciseIdx, setIdx, FieldWeight)) && !floatEqual(set.Weight, sg.Weight) {
		out = SetField(out, exerciseIdx, setIdx, FieldWeight, sg.Weight)
	}
	return out
}

func intEqual(p *int, v int) bool {
	return p != nil && *p == v
}

func floatEqual(a, b *float64) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}
