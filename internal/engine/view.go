package engine

import (
	"time"

	"github.com/claude/workoutsync/internal/session"
)

// View is the JSON rendering of a State used by the control API and the MCP
// tools.
type View struct {
	Date        string         `json:"date"`
	Status      session.Status `json:"status"`
	Workout     *WorkoutView   `json:"workout"`
	Error       string         `json:"error,omitempty"`
	Loading     bool           `json:"loading"`
	SavePending bool           `json:"save_pending"`
	CanFinish   bool           `json:"can_finish"`
}

type WorkoutView struct {
	ID         string         `json:"id"`
	TemplateID string         `json:"template_id"`
	StartedAt  *time.Time     `json:"started_at"`
	FinishedAt *time.Time     `json:"finished_at"`
	Completed  int            `json:"completed_sets"`
	Exercises  []ExerciseView `json:"exercises"`
}

type ExerciseView struct {
	Name         string    `json:"name"`
	TargetSets   int       `json:"target_sets"`
	TargetRepMin int       `json:"target_rep_min"`
	TargetRepMax int       `json:"target_rep_max"`
	Sets         []SetView `json:"sets"`
}

// SetView carries both the model values and what the inputs display.
type SetView struct {
	Reps        *int                     `json:"reps"`
	Weight      *float64                 `json:"weight"`
	RestSeconds *int                     `json:"rest_seconds"`
	Completed   bool                     `json:"completed"`
	RepsText    string                   `json:"reps_text"`
	WeightText  string                   `json:"weight_text"`
	Dirty       []session.Field          `json:"dirty,omitempty"`
	Errors      map[session.Field]string `json:"errors,omitempty"`
}

var viewFields = []session.Field{session.FieldReps, session.FieldWeight}

// View renders st.
func (st State) View() View {
	v := View{
		Date:        st.Date,
		Status:      st.Status,
		Error:       st.Error,
		Loading:     st.Loading,
		SavePending: st.SavePending,
		CanFinish:   st.CanFinish,
	}
	s := st.Session
	if s == nil {
		return v
	}

	w := &WorkoutView{
		ID:         s.ID,
		TemplateID: s.TemplateID,
		StartedAt:  s.StartedAt,
		FinishedAt: s.FinishedAt,
		Completed:  s.CompletedSets(),
		Exercises:  make([]ExerciseView, len(s.Exercises)),
	}
	for ei, e := range s.Exercises {
		ev := ExerciseView{
			Name:         e.Name,
			TargetSets:   e.TargetSets,
			TargetRepMin: e.TargetRepMin,
			TargetRepMax: e.TargetRepMax,
			Sets:         make([]SetView, len(e.Sets)),
		}
		for si, set := range e.Sets {
			sv := SetView{
				Reps:        set.Reps,
				Weight:      set.Weight,
				RestSeconds: set.RestSeconds,
				Completed:   set.Completed,
				RepsText:    st.DisplayValue(session.Key(ei, si, session.FieldReps)),
				WeightText:  st.DisplayValue(session.Key(ei, si, session.FieldWeight)),
			}
			for _, f := range viewFields {
				k := session.Key(ei, si, f)
				if st.Dirty.IsDirty(k) {
					sv.Dirty = append(sv.Dirty, f)
				}
				if msg, ok := st.FieldErrors[k]; ok {
					if sv.Errors == nil {
						sv.Errors = map[session.Field]string{}
					}
					sv.Errors[f] = msg
				}
			}
			ev.Sets[si] = sv
		}
		w.Exercises[ei] = ev
	}
	v.Workout = w
	return v
}
