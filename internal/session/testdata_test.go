package session

import "time"

// benchSession returns an in-progress session with two exercises.
func benchSession() *Session {
	started := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	return &Session{
		ID:         "w-1",
		TemplateID: "t-1",
		Date:       "2026-03-02",
		StartedAt:  &started,
		Exercises: []*ExerciseEntry{
			{
				Name: "Bench Press", TargetSets: 3, TargetRepMin: 8, TargetRepMax: 10,
				Sets: []*SetEntry{
					{Reps: intPtr(10), Weight: floatPtr(135), RestSeconds: intPtr(90)},
					{Reps: intPtr(8), Weight: floatPtr(145), RestSeconds: intPtr(90)},
				},
			},
			{
				Name: "Pull-ups", TargetSets: 2, TargetRepMin: 6, TargetRepMax: 10,
				Sets: []*SetEntry{
					{Reps: intPtr(10), RestSeconds: intPtr(60)},
				},
			},
		},
	}
}
