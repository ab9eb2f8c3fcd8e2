package pagination

// Transition records one accepted state change.
type Transition[S any] struct {
	From S
	To   S
}

// Machine applies a transition table to a current state.
//
// A Machine is not safe for concurrent use; its owner serializes access.
type Machine[S any] struct {
	state     S
	valid     func(from, to S) bool
	observers []func(Transition[S])
}

// NewMachine creates a machine in initial governed by valid.
func NewMachine[S any](initial S, valid func(from, to S) bool) *Machine[S] {
	return &Machine[S]{state: initial, valid: valid}
}

// State returns the current state.
func (m *Machine[S]) State() S {
	return m.state
}

// CanEnter reports whether to is a legal next state.
func (m *Machine[S]) CanEnter(to S) bool {
	return m.valid(m.state, to)
}

// Enter moves to the given state if the table allows it. A rejected
// transition leaves the state unchanged and returns false.
func (m *Machine[S]) Enter(to S) bool {
	if !m.valid(m.state, to) {
		return false
	}
	t := Transition[S]{From: m.state, To: to}
	m.state = to
	for _, fn := range m.observers {
		fn(t)
	}
	return true
}

// OnTransition registers fn to run after every accepted transition.
func (m *Machine[S]) OnTransition(fn func(Transition[S])) {
	m.observers = append(m.observers, fn)
}
