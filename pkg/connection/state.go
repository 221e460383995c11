package connection

import "errors"

// ErrInvalidTransition is returned when a state change is not allowed.
var ErrInvalidTransition = errors.New("connection: invalid state transition")

// State is the connection state of one wallet.
type State int

const (
	StateIdle State = iota
	StateConnecting
	StateConnected
	StateReconnecting
	StateDisconnected
	StateError
)

// String returns a human-readable representation of the state.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateReconnecting:
		return "reconnecting"
	case StateDisconnected:
		return "disconnected"
	case StateError:
		return "error"
	default:
		return "unknown"
	}
}

// Terminal reports whether s only leaves via a fresh Connect.
func (s State) Terminal() bool {
	return s == StateDisconnected || s == StateError
}

// CanConnect reports whether Connect may start from s.
func (s State) CanConnect() bool {
	return s == StateIdle || s.Terminal()
}

// CanTransitionTo reports whether s -> next is allowed.
func (s State) CanTransitionTo(next State) bool {
	switch s {
	case StateIdle, StateDisconnected, StateError:
		return next == StateConnecting
	case StateConnecting:
		return next == StateConnected || next == StateDisconnected || next == StateError
	case StateConnected:
		return next == StateReconnecting || next == StateDisconnected || next == StateError
	case StateReconnecting:
		return next == StateConnected || next == StateDisconnected || next == StateError
	default:
		return false
	}
}
