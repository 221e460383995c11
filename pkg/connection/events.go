package connection

import (
	"time"

	"github.com/bft-labs/walletmesh/pkg/walleterr"
)

// StateChangeEvent is emitted after a wallet changes state.
type StateChangeEvent struct {
	WalletID  string
	SessionID string
	Previous  State
	Current   State
	Reason    string
	At        time.Time
}

// ErrorEvent is emitted for every classified error the manager surfaces,
// including errors from background reconnection.
type ErrorEvent struct {
	WalletID  string
	SessionID string
	Operation string
	Err       *walleterr.ModalError
	At        time.Time
}

// ReconnectEvent is emitted before each reconnect attempt.
type ReconnectEvent struct {
	WalletID    string
	SessionID   string
	Attempt     int
	MaxAttempts int
	Delay       time.Duration
	At          time.Time
}

// EventHandler receives manager notifications. Methods are called
// synchronously and outside the manager's locks.
type EventHandler interface {
	OnStateChange(event StateChangeEvent)
	OnError(event ErrorEvent)
	OnReconnectAttempt(event ReconnectEvent)
}

// BaseEventHandler implements EventHandler with no-ops. Embed it to
// override only the callbacks you need.
type BaseEventHandler struct{}

func (BaseEventHandler) OnStateChange(StateChangeEvent)    {}
func (BaseEventHandler) OnError(ErrorEvent)                {}
func (BaseEventHandler) OnReconnectAttempt(ReconnectEvent) {}

// EventSource lets observers attach to a running Manager.
type EventSource interface {
	// AddEventHandler registers h and returns a function that removes it.
	AddEventHandler(h EventHandler) func()
}
