package state

// validTransitions contains the permitted forward transitions of the
// registration and edit dialogues. Clearing a session is not a transition.
var validTransitions = map[State][]State{
	StateNone: {
		StateName,
		StateEditName,
		StateEditTime,
	},
	StateName: {
		StateBirthDate,
	},
	StateBirthDate: {
		StateBirthTime,
	},
	StateBirthTime: {
		StateBirthPlace,
	},
	StateBirthPlace: {
		StateMessageTime,
	},
	StateMessageTime: {
		StateConfirm,
	},
}

// IsTransitionAllowed reports whether moving from one state to another is
// valid. Re-prompting keeps the machine in place, so self transitions are
// always permitted.
func IsTransitionAllowed(from, to State) bool {
	if from == to {
		return true
	}

	allowed, ok := validTransitions[from]
	if !ok {
		return false
	}

	for _, s := range allowed {
		if s == to {
			return true
		}
	}

	return false
}
