package shared

// TransitionTable lists the legal target states for each source state.
// States absent from the table are terminal.
type TransitionTable[S comparable] map[S][]S

// CanTransition reports whether from -> to is a legal transition
func (t TransitionTable[S]) CanTransition(from, to S) bool {
	for _, target := range t[from] {
		if target == to {
			return true
		}
	}
	return false
}

// IsTerminal reports whether no transition leaves the given state
func (t TransitionTable[S]) IsTerminal(s S) bool {
	return len(t[s]) == 0
}

// Check returns ErrInvalidStateTransition when from -> to is not allowed.
// The entity name is used for the error message only.
func (t TransitionTable[S]) Check(entity string, from, to S) error {
	if t.CanTransition(from, to) {
		return nil
	}
	return Errorf(ErrInvalidStateTransition, "%s cannot transition from %v to %v", entity, from, to)
}
