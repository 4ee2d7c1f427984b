package workflows

// StateMachine enforces allowed state transitions
type StateMachine struct {
	allowedTransitions map[string][]string
}

// NewStateMachine creates a state machine from a transition table
func NewStateMachine(transitions map[string][]string) *StateMachine {
	table := make(map[string][]string, len(transitions))
	for from, to := range transitions {
		table[from] = append([]string(nil), to...)
	}
	return &StateMachine{allowedTransitions: table}
}

// NewDragStateMachine returns the pointer drag lifecycle: a drag starts on
// pointer-down, stays in Dragging while the pointer moves and ends on
// pointer-up.
func NewDragStateMachine() *StateMachine {
	return NewStateMachine(map[string][]string{
		"IDLE":     {"DRAGGING"},
		"DRAGGING": {"DRAGGING", "IDLE"},
	})
}

// CanTransition checks if a status transition is allowed
func (sm *StateMachine) CanTransition(from, to string) bool {
	allowed, exists := sm.allowedTransitions[from]
	if !exists {
		return false
	}
	for _, allowedTo := range allowed {
		if allowedTo == to {
			return true
		}
	}
	return false
}

// GetAllowedTransitions returns a copy of the states reachable from a state.
func (sm *StateMachine) GetAllowedTransitions(from string) []string {
	return append([]string{}, sm.allowedTransitions[from]...)
}
