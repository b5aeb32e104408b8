package session

// Operation is a mutating action a user can take on a session.
type Operation string

const (
	OpStart      Operation = "start"
	OpToggleSet  Operation = "toggle_set"
	OpAddSet     Operation = "add_set"
	OpDeleteSet  Operation = "delete_set"
	OpEditField  Operation = "edit_field"
	OpFinish     Operation = "finish"
	OpCancel     Operation = "cancel"
	OpSaveFields Operation = "save_fields"
)

var allowed = map[Status]map[Operation]bool{
	NotStarted: {
		OpStart: true,
	},
	InProgress: {
		OpToggleSet: true,
		OpAddSet:    true,
		OpDeleteSet: true,
		OpEditField: true,
		OpFinish:    true,
		OpCancel:    true,
	},
	Finished: {
		OpCancel: true,
	},
}

// Allows reports whether op is legal in status st. Finish additionally needs
// at least one completed set, see CanFinish.
func (st Status) Allows(op Operation) bool {
	return allowed[st][op]
}

// CanFinish reports whether Finish is both legal and satisfied for s.
func CanFinish(s *Session) bool {
	return s.Status().Allows(OpFinish) && s.HasCompletedSet()
}
