package live

import (
	"fmt"
	"sync"
)

// State is the connection state of a Client.
type State int

// Client states. Error is absorbing.
const (
	StateIdle State = iota
	StateConnecting
	StateOpen
	StateClosing
	StateClosed
	StateError
)

var stateNames = map[State]string{
	StateIdle:       "IDLE",
	StateConnecting: "CONNECTING",
	StateOpen:       "OPEN",
	StateClosing:    "CLOSING",
	StateClosed:     "CLOSED",
	StateError:      "ERROR",
}

func (s State) String() string {
	if name, ok := stateNames[s]; ok {
		return name
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// transitions lists the allowed target states for each state.
var transitions = map[State][]State{
	StateIdle:       {StateConnecting, StateClosing},
	StateConnecting: {StateOpen, StateClosing, StateError},
	StateOpen:       {StateClosing, StateError},
	StateClosing:    {StateClosed},
}

// CanTransition reports whether from -> to is allowed.
func CanTransition(from, to State) bool {
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// stateMachine guards the current state and notifies on change.
type stateMachine struct {
	mu       sync.Mutex
	state    State
	onChange func(from, to State)
}

func (m *stateMachine) get() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// transition moves to the target state or returns ErrInvalidTransition.
func (m *stateMachine) transition(to State) error {
	m.mu.Lock()
	from := m.state
	if !CanTransition(from, to) {
		m.mu.Unlock()
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, from, to)
	}
	m.state = to
	m.mu.Unlock()

	if m.onChange != nil {
		m.onChange(from, to)
	}
	return nil
}
