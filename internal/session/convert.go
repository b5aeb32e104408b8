package session

import (
	"fmt"
	"time"

	"github.com/claude/workoutsync/internal/models"
)

// Accepted timestamp layouts for start_time/end_time. The service emits
// naive ISO timestamps; older payloads carry bare HH:MM times.
var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
}

// FromAPI converts a service workout into a Session.
func FromAPI(w *models.WorkoutAPI) (*Session, error) {
	if w == nil {
		return nil, nil
	}
	s := &Session{
		ID:         w.ID,
		TemplateID: w.TemplateID,
		Date:       w.Date,
		CreatedAt:  w.CreatedAt,
		UpdatedAt:  w.UpdatedAt,
		Exercises:  make([]*ExerciseEntry, 0, len(w.Exercises)),
	}

	var err error
	if s.StartedAt, err = parseTimestamp(w.Date, w.StartTime); err != nil {
		return nil, fmt.Errorf("parsing start_time: %w", err)
	}
	if s.FinishedAt, err = parseTimestamp(w.Date, w.EndTime); err != nil {
		return nil, fmt.Errorf("parsing end_time: %w", err)
	}
	if s.FinishedAt != nil && s.StartedAt == nil {
		return nil, fmt.Errorf("workout %s has end_time without start_time", w.ID)
	}

	for _, e := range w.Exercises {
		ex := &ExerciseEntry{
			Name:         e.Name,
			TargetSets:   e.TargetSets,
			TargetRepMin: e.TargetRepMin,
			TargetRepMax: e.TargetRepMax,
			Notes:        clonePtr(e.Notes),
			Sets:         make([]*SetEntry, 0, len(e.Sets)),
		}
		for _, set := range e.Sets {
			ex.Sets = append(ex.Sets, &SetEntry{
				Reps:        clonePtr(set.Reps),
				Weight:      clonePtr(set.Weight),
				RestSeconds: clonePtr(set.RestSeconds),
				Completed:   set.Completed,
				Notes:       clonePtr(set.Notes),
			})
		}
		s.Exercises = append(s.Exercises, ex)
	}
	return s, nil
}

// ExercisesToAPI renders the complete exercises array for
// PATCH /workouts/{id}/exercises.
func ExercisesToAPI(s *Session) []models.WorkoutExerciseAPI {
	if s == nil {
		return nil
	}
	out := make([]models.WorkoutExerciseAPI, 0, len(s.Exercises))
	for _, e := range s.Exercises {
		ex := models.WorkoutExerciseAPI{
			Name:         e.Name,
			TargetSets:   e.TargetSets,
			TargetRepMin: e.TargetRepMin,
			TargetRepMax: e.TargetRepMax,
			Notes:        e.Notes,
			Sets:         make([]models.SetAPI, 0, len(e.Sets)),
		}
		for _, set := range e.Sets {
			ex.Sets = append(ex.Sets, models.SetAPI{
				Reps:        set.Reps,
				Weight:      set.Weight,
				RestSeconds: set.RestSeconds,
				Completed:   set.Completed,
				Notes:       set.Notes,
			})
		}
		out = append(out, ex)
	}
	return out
}

// SuggestionsFromAPI converts a suggest response.
func SuggestionsFromAPI(resp *models.SuggestionsAPI) Suggestions {
	if resp == nil {
		return nil
	}
	out := make(Suggestions, 0, len(resp.Exercises))
	for _, e := range resp.Exercises {
		es := ExerciseSuggestion{Name: e.Name, Sets: make([]SetSuggestion, 0, len(e.Sets))}
		for _, set := range e.Sets {
			es.Sets = append(es.Sets, SetSuggestion{Reps: set.Reps, Weight: clonePtr(set.Weight)})
		}
		out = append(out, es)
	}
	return out
}

func parseTimestamp(date string, v *string) (*time.Time, error) {
	if v == nil || *v == "" {
		return nil, nil
	}
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, *v); err == nil {
			return &t, nil
		}
	}
	if t, err := time.Parse("2006-01-02 15:04", date+" "+*v); err == nil {
		return &t, nil
	}
	return nil, fmt.Errorf("unrecognised timestamp %q", *v)
}
