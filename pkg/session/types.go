package session

import (
	"errors"
	"time"
)

// Registry errors.
var (
	ErrMissingWalletID   = errors.New("session: wallet id required")
	ErrMissingChainType  = errors.New("session: chain type required")
	ErrNotFound          = errors.New("session: not found")
	ErrInvalidTransition = errors.New("session: invalid status transition")
	ErrTerminal          = errors.New("session: session has ended")
)

// ChainType identifies a blockchain technology family.
type ChainType string

const (
	ChainEVM    ChainType = "evm"
	ChainSolana ChainType = "solana"
	ChainAztec  ChainType = "aztec"
)

// Valid reports whether t is a known chain type.
func (t ChainType) Valid() bool {
	switch t {
	case ChainEVM, ChainSolana, ChainAztec:
		return true
	}
	return false
}

// ChainInfo describes the chain a session is bound to.
type ChainInfo struct {
	Type    ChainType `json:"type"`
	ChainID string    `json:"chainId"`
	Name    string    `json:"name,omitempty"`
}

// Status is the lifecycle status of a session.
type Status string

const (
	StatusConnecting   Status = "connecting"
	StatusConnected    Status = "connected"
	StatusReconnecting Status = "reconnecting"
	StatusDisconnected Status = "disconnected"
	StatusError        Status = "error"
)

// Terminal reports whether no further transitions are allowed.
func (s Status) Terminal() bool {
	return s == StatusDisconnected || s == StatusError
}

// CanTransitionTo reports whether s -> next is a legal status change.
func (s Status) CanTransitionTo(next Status) bool {
	switch s {
	case StatusConnecting:
		return next == StatusConnected || next == StatusDisconnected || next == StatusError
	case StatusConnected:
		return next == StatusReconnecting || next == StatusDisconnected || next == StatusError
	case StatusReconnecting:
		return next == StatusConnected || next == StatusDisconnected || next == StatusError
	default:
		return false
	}
}

// Session is a snapshot of one wallet session.
type Session struct {
	ID        string            `json:"sessionId"`
	WalletID  string            `json:"walletId"`
	ChainType ChainType         `json:"chainType"`
	Chain     ChainInfo         `json:"chainInfo"`
	Status    Status            `json:"status"`
	Addresses []string          `json:"addresses,omitempty"`
	Metadata  map[string]string `json:"metadata,omitempty"`
	Active    bool              `json:"active"`
	CreatedAt time.Time         `json:"createdAt"`
	UpdatedAt time.Time         `json:"updatedAt"`
	EndReason string            `json:"endReason,omitempty"`
}

// CreateParams describes a new session.
type CreateParams struct {
	WalletID  string
	ChainType ChainType
	Chain     ChainInfo
	Addresses []string
	Metadata  map[string]string

	// Status defaults to StatusConnected.
	Status Status
}

// EventType classifies registry notifications.
type EventType string

const (
	EventCreated       EventType = "created"
	EventStatusChanged EventType = "status_changed"
	EventChainChanged  EventType = "chain_changed"
	EventActiveChanged EventType = "active_changed"
	EventEnded         EventType = "ended"
)

// Event is delivered to registry subscribers after a committed change.
type Event struct {
	Type     EventType
	Session  Session
	Previous Status
}

// TerminationHook is notified when a session ends.
type TerminationHook interface {
	FailAllForSession(sessionID, reason string) int
}
