package session

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/bft-labs/walletmesh/pkg/log"
)

// Option configures a Registry.
type Option func(*Registry)

// WithTerminationHook sets the hook invoked by End.
func WithTerminationHook(h TerminationHook) Option {
	return func(r *Registry) { r.onEnd = h }
}

// WithLogger sets the registry logger.
func WithLogger(l log.Logger) Option {
	return func(r *Registry) { r.logger = log.With(l, log.String("component", "session.registry")) }
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(r *Registry) { r.now = now }
}

// WithIDGenerator overrides session id generation.
func WithIDGenerator(gen func() string) Option {
	return func(r *Registry) { r.newID = gen }
}

type record struct {
	s Session
}

type subscriber struct {
	id uint64
	fn func(Event)
}

// Registry stores wallet sessions keyed by session id.
type Registry struct {
	mu       sync.RWMutex
	sessions map[string]*record
	activeID string

	subMu  sync.RWMutex
	subs   []subscriber
	nextID uint64

	onEnd  TerminationHook
	logger log.Logger
	now    func() time.Time
	newID  func() string
}

// NewRegistry creates an empty registry.
func NewRegistry(opts ...Option) *Registry {
	r := &Registry{
		sessions: make(map[string]*record),
		logger:   log.NoopLogger{},
		now:      time.Now,
		newID:    uuid.NewString,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// SetTerminationHook replaces the hook invoked by End.
func (r *Registry) SetTerminationHook(h TerminationHook) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.onEnd = h
}

// Subscribe registers fn for registry events. Events are delivered after
// the registry lock is released, in commit order per goroutine.
func (r *Registry) Subscribe(fn func(Event)) func() {
	r.subMu.Lock()
	r.nextID++
	id := r.nextID
	r.subs = append(r.subs, subscriber{id: id, fn: fn})
	r.subMu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			r.subMu.Lock()
			defer r.subMu.Unlock()
			for i, s := range r.subs {
				if s.id == id {
					r.subs = append(r.subs[:i:i], r.subs[i+1:]...)
					return
				}
			}
		})
	}
}

func (r *Registry) emit(events ...Event) {
	r.subMu.RLock()
	subs := r.subs
	r.subMu.RUnlock()

	for _, ev := range events {
		for _, s := range subs {
			s.fn(ev)
		}
	}
}

// Create registers a new session with a fresh id. It fails only when the
// wallet id or chain type is missing. The new session is not active.
func (r *Registry) Create(p CreateParams) (Session, error) {
	if p.WalletID == "" {
		return Session{}, ErrMissingWalletID
	}
	if p.ChainType == "" {
		return Session{}, ErrMissingChainType
	}
	status := p.Status
	if status == "" {
		status = StatusConnected
	}
	chain := p.Chain
	if chain.Type == "" {
		chain.Type = p.ChainType
	}

	now := r.now()
	rec := &record{s: Session{
		WalletID:  p.WalletID,
		ChainType: p.ChainType,
		Chain:     chain,
		Status:    status,
		Addresses: append([]string(nil), p.Addresses...),
		Metadata:  cloneMetadata(p.Metadata),
		CreatedAt: now,
		UpdatedAt: now,
	}}

	r.mu.Lock()
	id := r.newID()
	for _, exists := r.sessions[id]; exists; _, exists = r.sessions[id] {
		id = r.newID()
	}
	rec.s.ID = id
	r.sessions[id] = rec
	snap := r.snapshotLocked(rec)
	r.mu.Unlock()

	r.logger.Debug("session created", log.SessionID(id), log.WalletID(p.WalletID), log.String("chain_type", string(p.ChainType)))
	r.emit(Event{Type: EventCreated, Session: snap})
	return snap, nil
}

// Get returns the session with the given id.
func (r *Registry) Get(sessionID string) (Session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	rec, ok := r.sessions[sessionID]
	if !ok {
		return Session{}, false
	}
	return r.snapshotLocked(rec), true
}

// Live reports whether sessionID exists and has not ended.
func (r *Registry) Live(sessionID string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	rec, ok := r.sessions[sessionID]
	return ok && rec.s.EndReason == "" && !rec.s.Status.Terminal()
}

// GetByWallet returns the most recent live session for walletID, falling
// back to the most recent ended one.
func (r *Registry) GetByWallet(walletID string) (Session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var best *record
	for _, rec := range r.sessions {
		if rec.s.WalletID != walletID {
			continue
		}
		if best == nil || better(rec, best) {
			best = rec
		}
	}
	if best == nil {
		return Session{}, false
	}
	return r.snapshotLocked(best), true
}

func better(a, b *record) bool {
	if a.s.Status.Terminal() != b.s.Status.Terminal() {
		return !a.s.Status.Terminal()
	}
	return a.s.CreatedAt.After(b.s.CreatedAt)
}

// ByChainType returns live sessions of the given chain type, oldest first.
func (r *Registry) ByChainType(t ChainType) []Session {
	return r.filter(func(s Session) bool { return s.ChainType == t && !s.Status.Terminal() })
}

// List returns every known session, oldest first.
func (r *Registry) List() []Session {
	return r.filter(func(Session) bool { return true })
}

func (r *Registry) filter(keep func(Session) bool) []Session {
	r.mu.RLock()
	out := make([]Session, 0, len(r.sessions))
	for _, rec := range r.sessions {
		if keep(rec.s) {
			out = append(out, r.snapshotLocked(rec))
		}
	}
	r.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out
}

// Active returns the active session, if any.
func (r *Registry) Active() (Session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.activeID == "" {
		return Session{}, false
	}
	return r.snapshotLocked(r.sessions[r.activeID]), true
}

// UpdateStatus moves a session to status. Setting the current status is a
// no-op; illegal transitions return ErrInvalidTransition.
func (r *Registry) UpdateStatus(sessionID string, status Status) error {
	r.mu.Lock()
	rec, ok := r.sessions[sessionID]
	if !ok {
		r.mu.Unlock()
		return ErrNotFound
	}
	prev := rec.s.Status
	if prev == status {
		r.mu.Unlock()
		return nil
	}
	if !prev.CanTransitionTo(status) {
		r.mu.Unlock()
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, prev, status)
	}
	rec.s.Status = status
	rec.s.UpdatedAt = r.now()

	events := []Event{{Type: EventStatusChanged, Session: r.snapshotLocked(rec), Previous: prev}}
	if status.Terminal() && r.activeID == sessionID {
		r.activeID = ""
		events = append(events, Event{Type: EventActiveChanged, Session: r.snapshotLocked(rec), Previous: prev})
	}
	r.mu.Unlock()

	r.logger.Debug("session status changed",
		log.SessionID(sessionID),
		log.String("from", string(prev)),
		log.String("to", string(status)),
	)
	r.emit(events...)
	return nil
}

// UpdateChain replaces the chain a live session is bound to.
func (r *Registry) UpdateChain(sessionID string, chain ChainInfo) error {
	r.mu.Lock()
	rec, ok := r.sessions[sessionID]
	if !ok {
		r.mu.Unlock()
		return ErrNotFound
	}
	if rec.s.Status.Terminal() {
		r.mu.Unlock()
		return ErrTerminal
	}
	if chain.Type == "" {
		chain.Type = rec.s.ChainType
	}
	rec.s.Chain = chain
	rec.s.UpdatedAt = r.now()
	snap := r.snapshotLocked(rec)
	r.mu.Unlock()

	r.emit(Event{Type: EventChainChanged, Session: snap, Previous: snap.Status})
	return nil
}

// UpdateAddresses replaces the accounts exposed by a live session.
func (r *Registry) UpdateAddresses(sessionID string, addresses []string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.sessions[sessionID]
	if !ok {
		return ErrNotFound
	}
	if rec.s.Status.Terminal() {
		return ErrTerminal
	}
	rec.s.Addresses = append([]string(nil), addresses...)
	rec.s.UpdatedAt = r.now()
	return nil
}

// SwitchActive makes sessionID the single active session. The previous
// holder loses the flag in the same critical section.
func (r *Registry) SwitchActive(sessionID string) error {
	r.mu.Lock()
	rec, ok := r.sessions[sessionID]
	if !ok {
		r.mu.Unlock()
		return ErrNotFound
	}
	if rec.s.Status.Terminal() {
		r.mu.Unlock()
		return ErrTerminal
	}
	if r.activeID == sessionID {
		r.mu.Unlock()
		return nil
	}
	previous := r.activeID
	r.activeID = sessionID
	snap := r.snapshotLocked(rec)
	r.mu.Unlock()

	r.logger.Debug("active session switched", log.SessionID(sessionID), log.String("previous", previous))
	r.emit(Event{Type: EventActiveChanged, Session: snap, Previous: snap.Status})
	return nil
}

// End terminates a session: it is marked disconnected (an errored session
// keeps its error status), removed from the active slot, and every
// outstanding transaction bound to it is failed with reason. Ending an
// already ended session is a no-op.
func (r *Registry) End(sessionID, reason string) error {
	r.mu.Lock()
	rec, ok := r.sessions[sessionID]
	if !ok {
		r.mu.Unlock()
		return ErrNotFound
	}
	if rec.s.EndReason != "" {
		r.mu.Unlock()
		return nil
	}
	prev := rec.s.Status
	if !prev.Terminal() {
		rec.s.Status = StatusDisconnected
	}
	if reason == "" {
		reason = "session ended"
	}
	rec.s.EndReason = reason
	rec.s.UpdatedAt = r.now()
	var events []Event
	if r.activeID == sessionID {
		r.activeID = ""
		events = append(events, Event{Type: EventActiveChanged, Session: r.snapshotLocked(rec), Previous: prev})
	}
	events = append(events, Event{Type: EventEnded, Session: r.snapshotLocked(rec), Previous: prev})
	hook := r.onEnd
	r.mu.Unlock()

	failed := 0
	if hook != nil {
		failed = hook.FailAllForSession(sessionID, reason)
	}
	r.logger.Info("session ended",
		log.SessionID(sessionID),
		log.String("reason", reason),
		log.Int("failed_transactions", failed),
	)
	r.emit(events...)
	return nil
}

func (r *Registry) snapshotLocked(rec *record) Session {
	s := rec.s
	s.Addresses = append([]string(nil), rec.s.Addresses...)
	s.Metadata = cloneMetadata(rec.s.Metadata)
	s.Active = r.activeID == s.ID
	return s
}

func cloneMetadata(m map[string]string) map[string]string {
	if m == nil {
		return nil
	}
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
