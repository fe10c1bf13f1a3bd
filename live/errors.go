package live

import (
	"errors"
	"fmt"
)

var (
	// ErrNotOpen is returned by Send before the connection is open.
	ErrNotOpen = errors.New("live session is not open")

	// ErrInvalidTransition is returned for a state change the state machine forbids.
	ErrInvalidTransition = errors.New("invalid state transition")
)

// ConnectionError operations.
const (
	OpDial  = "dial"
	OpSetup = "setup"
	OpRead  = "read"
)

// ConnectionError reports a failed dial, setup or read. It moves the client
// to StateError.
type ConnectionError struct {
	Op  string
	Err error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("live connection %s failed: %v", e.Op, e.Err)
}

func (e *ConnectionError) Unwrap() error {
	return e.Err
}

// Handshake reports whether the failure happened inside Connect, which also
// returns it.
func (e *ConnectionError) Handshake() bool {
	return e.Op == OpDial || e.Op == OpSetup
}
