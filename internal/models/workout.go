package models

// WorkoutAPI is a workout instance as returned by the remote workout service.
// StartTime and EndTime are nil until the workout is started/finished.
type WorkoutAPI struct {
	ID         string               `json:"id"`
	TemplateID string               `json:"template_id"`
	Date       string               `json:"date"`
	StartTime  *string              `json:"start_time"`
	EndTime    *string              `json:"end_time"`
	Exercises  []WorkoutExerciseAPI `json:"exercises"`
	CreatedAt  string               `json:"created_at,omitempty"`
	UpdatedAt  string               `json:"updated_at,omitempty"`
}

// WorkoutExerciseAPI is one prescribed exercise and its logged sets.
type WorkoutExerciseAPI struct {
	Name         string   `json:"name"`
	TargetSets   int      `json:"target_sets"`
	TargetRepMin int      `json:"target_rep_min"`
	TargetRepMax int      `json:"target_rep_max"`
	Notes        *string  `json:"notes"`
	Sets         []SetAPI `json:"sets"`
}

// SetAPI is a single set. A nil Weight means bodyweight.
type SetAPI struct {
	Reps        *int     `json:"reps"`
	Weight      *float64 `json:"weight"`
	RestSeconds *int     `json:"rest_seconds"`
	Completed   bool     `json:"completed"`
	Notes       *string  `json:"notes"`
}

// UpdateExercisesRequest is the body of PATCH /workouts/{id}/exercises.
// It always carries the complete exercises array.
type UpdateExercisesRequest struct {
	Exercises []WorkoutExerciseAPI `json:"exercises"`
}

// SuggestionsAPI is the response of POST /workouts/{id}/suggest.
type SuggestionsAPI struct {
	Exercises []ExerciseSuggestionAPI `json:"exercises"`
}

// ExerciseSuggestionAPI holds suggested values for one exercise, matched by name.
type ExerciseSuggestionAPI struct {
	Name string             `json:"name"`
	Sets []SetSuggestionAPI `json:"sets"`
}

// SetSuggestionAPI is a suggested reps/weight pair for the set at the same index.
type SetSuggestionAPI struct {
	Reps   int      `json:"reps"`
	Weight *float64 `json:"weight"`
}
