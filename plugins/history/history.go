// Package history records connection state transitions and a bounded event
// log for debugging. It attaches to a connection.Manager as a plugin and
// only observes; nothing in the connection flow depends on it.
package history

import (
	"context"
	"errors"
	"strconv"
	"sync"
	"time"

	"github.com/bft-labs/walletmesh/pkg/connection"
	"github.com/bft-labs/walletmesh/pkg/session"
)

// DefaultCapacity is the number of entries kept per log.
const DefaultCapacity = 256

// ErrNoEventSource is returned when the plugin config carries no manager events.
var ErrNoEventSource = errors.New("history: plugin config has no event source")

// Kind classifies an event log entry.
type Kind string

const (
	KindStateChange Kind = "state_change"
	KindError       Kind = "error"
	KindReconnect   Kind = "reconnect"
	KindSession     Kind = "session"
)

// Transition is one recorded state change.
type Transition struct {
	At        time.Time `json:"at"`
	WalletID  string    `json:"walletId"`
	SessionID string    `json:"sessionId,omitempty"`
	From      string    `json:"from"`
	To        string    `json:"to"`
	Reason    string    `json:"reason,omitempty"`
}

// Entry is one event log line.
type Entry struct {
	At        time.Time `json:"at"`
	Kind      Kind      `json:"kind"`
	WalletID  string    `json:"walletId,omitempty"`
	SessionID string    `json:"sessionId,omitempty"`
	Detail    string    `json:"detail"`
}

// ring is a fixed-size FIFO that overwrites its oldest element.
type ring[T any] struct {
	buf  []T
	next int
	full bool
}

func newRing[T any](n int) *ring[T] {
	return &ring[T]{buf: make([]T, n)}
}

func (r *ring[T]) push(v T) {
	r.buf[r.next] = v
	r.next = (r.next + 1) % len(r.buf)
	if r.next == 0 {
		r.full = true
	}
}

func (r *ring[T]) items() []T {
	if !r.full {
		return append([]T(nil), r.buf[:r.next]...)
	}
	out := make([]T, 0, len(r.buf))
	out = append(out, r.buf[r.next:]...)
	return append(out, r.buf[:r.next]...)
}

func (r *ring[T]) reset() {
	var zero T
	for i := range r.buf {
		r.buf[i] = zero
	}
	r.next, r.full = 0, false
}

// Recorder is the history plugin.
type Recorder struct {
	connection.BaseEventHandler

	mu          sync.Mutex
	transitions *ring[Transition]
	events      *ring[Entry]
	unsubscribe []func()
	now         func() time.Time
}

// New creates a Recorder keeping capacity entries per log. A non-positive
// capacity uses DefaultCapacity.
func New(capacity int) *Recorder {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Recorder{
		transitions: newRing[Transition](capacity),
		events:      newRing[Entry](capacity),
		now:         time.Now,
	}
}

// WithHistory returns a connection Option attaching a Recorder.
func WithHistory(r *Recorder) connection.Option {
	return connection.WithPlugin(r)
}

// Name returns the plugin identifier.
func (r *Recorder) Name() string {
	return "history"
}

// Initialize subscribes to manager and registry events.
func (r *Recorder) Initialize(ctx context.Context, cfg connection.PluginConfig) error {
	if cfg.Events == nil {
		return ErrNoEventSource
	}

	unsubs := []func(){cfg.Events.AddEventHandler(r)}
	if cfg.Registry != nil {
		unsubs = append(unsubs, cfg.Registry.Subscribe(r.onSession))
	}

	r.mu.Lock()
	r.unsubscribe = unsubs
	r.mu.Unlock()
	return nil
}

// Shutdown detaches the recorder. Recorded history stays readable.
func (r *Recorder) Shutdown(ctx context.Context) error {
	r.mu.Lock()
	unsubs := r.unsubscribe
	r.unsubscribe = nil
	r.mu.Unlock()

	for _, u := range unsubs {
		u()
	}
	return nil
}

// OnStateChange records a transition.
func (r *Recorder) OnStateChange(ev connection.StateChangeEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.transitions.push(Transition{
		At:        ev.At,
		WalletID:  ev.WalletID,
		SessionID: ev.SessionID,
		From:      ev.Previous.String(),
		To:        ev.Current.String(),
		Reason:    ev.Reason,
	})
	r.events.push(Entry{
		At:        ev.At,
		Kind:      KindStateChange,
		WalletID:  ev.WalletID,
		SessionID: ev.SessionID,
		Detail:    ev.Previous.String() + " -> " + ev.Current.String(),
	})
}

// OnError records a surfaced error.
func (r *Recorder) OnError(ev connection.ErrorEvent) {
	detail := ev.Operation
	if ev.Err != nil {
		detail += ": " + ev.Err.Error()
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events.push(Entry{At: ev.At, Kind: KindError, WalletID: ev.WalletID, SessionID: ev.SessionID, Detail: detail})
}

// OnReconnectAttempt records a reconnect attempt.
func (r *Recorder) OnReconnectAttempt(ev connection.ReconnectEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events.push(Entry{
		At:        ev.At,
		Kind:      KindReconnect,
		WalletID:  ev.WalletID,
		SessionID: ev.SessionID,
		Detail:    "attempt " + strconv.Itoa(ev.Attempt) + "/" + strconv.Itoa(ev.MaxAttempts),
	})
}

func (r *Recorder) onSession(ev session.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events.push(Entry{
		At:        r.now(),
		Kind:      KindSession,
		WalletID:  ev.Session.WalletID,
		SessionID: ev.Session.ID,
		Detail:    string(ev.Type),
	})
}

// Transitions returns recorded state changes, oldest first.
func (r *Recorder) Transitions() []Transition {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.transitions.items()
}

// Events returns the event log, oldest first.
func (r *Recorder) Events() []Entry {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.events.items()
}

// Clear drops everything recorded so far.
func (r *Recorder) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.transitions.reset()
	r.events.reset()
}
