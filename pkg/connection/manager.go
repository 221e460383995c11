package connection

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/bft-labs/walletmesh/pkg/discovery"
	"github.com/bft-labs/walletmesh/pkg/log"
	"github.com/bft-labs/walletmesh/pkg/session"
	"github.com/bft-labs/walletmesh/pkg/storage"
	"github.com/bft-labs/walletmesh/pkg/tracker"
	"github.com/bft-labs/walletmesh/pkg/walleterr"
)

// Operation names reported in ErrorEvent.
const (
	OpConnect     = "connect"
	OpSwitchChain = "switch_chain"
	OpDisconnect  = "disconnect"
	OpReconnect   = "reconnect"
)

// ConnectOptions parameterizes Connect.
type ConnectOptions struct {
	// Required is broadcast during discovery. The zero value matches any
	// responder.
	Required discovery.CapabilityRequirement

	// ChainID is a hint passed to the handshake.
	ChainID string

	// Metadata is copied onto the created session.
	Metadata map[string]string
}

// operation is the single in-flight transition of a wallet.
type operation struct {
	kind   string
	cancel context.CancelFunc
	done   chan struct{}
}

type walletEntry struct {
	walletID  string
	state     State
	sessionID string
	adapter   Adapter
	provider  Provider
	handshake HandshakeConfig
	lastErr   *walleterr.ModalError
	op        *operation

	// pendingSignal records a disconnect signal that arrived while op was
	// running; it is handled once op settles.
	pendingSignal bool
}

type handlerEntry struct {
	id uint64
	h  EventHandler
}

// Manager runs the connection state machine for every wallet.
type Manager struct {
	cfg        Config
	discoverer Discoverer
	factory    AdapterFactory
	registry   *session.Registry
	tracker    *tracker.Tracker
	prefs      *storage.Preferences
	logger     log.Logger
	plugins    []Plugin
	now        func() time.Time

	rngMu sync.Mutex
	rng   *rand.Rand

	mu       sync.Mutex
	wallets  map[string]*walletEntry
	sessions map[string]*walletEntry
	closed   bool
	wg       sync.WaitGroup

	hMu      sync.RWMutex
	handlers []handlerEntry
	nextH    uint64
}

// New creates a Manager. Plugins registered with WithPlugin are
// initialized before New returns; if one fails, the ones already
// initialized are shut down and the error is returned.
func New(d Discoverer, factory AdapterFactory, cfg Config, opts ...Option) (*Manager, error) {
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if err := validateModuleVersions(); err != nil {
		return nil, err
	}
	if d == nil {
		return nil, ErrMissingDiscoverer
	}
	if factory == nil {
		return nil, ErrMissingAdapterFactory
	}

	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}

	base := log.OrNoop(o.logger)
	logger := log.With(base, log.String("component", "connection"))

	trk := o.tracker
	if trk == nil {
		trk = tracker.New(tracker.WithLogger(base), tracker.WithClock(o.now))
	}
	reg := o.registry
	if reg == nil {
		reg = session.NewRegistry(session.WithLogger(base), session.WithClock(o.now))
	}
	reg.SetTerminationHook(trk)
	trk.SetSessionLookup(reg)

	store := o.store
	if store == nil {
		store = storage.NewMemoryStorage()
	}

	m := &Manager{
		cfg:        cfg,
		discoverer: d,
		factory:    factory,
		registry:   reg,
		tracker:    trk,
		prefs:      storage.NewPreferences(store),
		logger:     logger,
		now:        o.now,
		rng:        rand.New(rand.NewSource(o.seed)),
		wallets:    make(map[string]*walletEntry),
		sessions:   make(map[string]*walletEntry),
	}
	if o.eventHandler != nil {
		m.AddEventHandler(o.eventHandler)
	}

	pluginCfg := PluginConfig{
		Logger:   base,
		Registry: reg,
		Tracker:  trk,
		Events:   m,
	}
	ctx := context.Background()
	for i, p := range o.plugins {
		if err := p.Initialize(ctx, pluginCfg); err != nil {
			logger.Error("plugin initialization failed",
				log.String("plugin", p.Name()),
				log.Err(err))
			shutdownPlugins(ctx, o.plugins[:i], logger)
			return nil, fmt.Errorf("connection: plugin %s: %w", p.Name(), err)
		}
		logger.Info("plugin initialized", log.String("plugin", p.Name()))
	}
	m.plugins = o.plugins

	return m, nil
}

// Registry returns the session registry the manager writes to.
func (m *Manager) Registry() *session.Registry { return m.registry }

// Tracker returns the transaction tracker bound to the registry.
func (m *Manager) Tracker() *tracker.Tracker { return m.tracker }

// State returns the connection state of walletID. Unknown wallets are idle.
func (m *Manager) State(walletID string) State {
	m.mu.Lock()
	defer m.mu.Unlock()
	if e, ok := m.wallets[walletID]; ok {
		return e.state
	}
	return StateIdle
}

// LastError returns the error that moved walletID to its current state, if any.
func (m *Manager) LastError(walletID string) *walleterr.ModalError {
	m.mu.Lock()
	defer m.mu.Unlock()
	if e, ok := m.wallets[walletID]; ok {
		return e.lastErr
	}
	return nil
}

// Provider returns the chain provider of a live session.
func (m *Manager) Provider(sessionID string) (Provider, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.sessions[sessionID]
	if !ok || e.provider == nil {
		return nil, false
	}
	return e.provider, true
}

// PreferredWallet returns the wallet the user last connected to.
// Storage errors are logged and reported as no preference.
func (m *Manager) PreferredWallet(ctx context.Context) (string, bool) {
	id, ok, err := m.prefs.PreferredWallet(ctx)
	if err != nil {
		m.logger.Warn("failed to read preferred wallet", log.Err(err))
		return "", false
	}
	return id, ok && id != ""
}

// AddEventHandler registers h and returns a function that removes it.
func (m *Manager) AddEventHandler(h EventHandler) func() {
	m.hMu.Lock()
	m.nextH++
	id := m.nextH
	m.handlers = append(m.handlers, handlerEntry{id: id, h: h})
	m.hMu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			m.hMu.Lock()
			defer m.hMu.Unlock()
			for i, he := range m.handlers {
				if he.id == id {
					m.handlers = append(m.handlers[:i:i], m.handlers[i+1:]...)
					return
				}
			}
		})
	}
}

// Close cancels in-flight operations, ends every live session and shuts
// down plugins in reverse order. The stored wallet preference is kept.
func (m *Manager) Close() error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil
	}
	m.closed = true
	entries := make([]*walletEntry, 0, len(m.wallets))
	for _, e := range m.wallets {
		if e.op != nil {
			e.op.cancel()
		}
		entries = append(entries, e)
	}
	m.mu.Unlock()

	m.wg.Wait()

	ctx, cancel := context.WithTimeout(context.Background(), m.cfg.HandshakeTimeout)
	defer cancel()
	for _, e := range entries {
		m.mu.Lock()
		sid, adapter, ev, ok := m.detachLocked(e, StateDisconnected, "manager closed")
		m.mu.Unlock()
		if !ok {
			continue
		}
		if err := adapter.Disconnect(ctx); err != nil {
			m.logger.Warn("adapter disconnect failed", log.WalletID(e.walletID), log.Err(err))
		}
		m.endSession(sid, "manager closed")
		m.emitState(ev)
	}

	shutdownPlugins(context.Background(), m.plugins, m.logger)
	return nil
}

func shutdownPlugins(ctx context.Context, plugins []Plugin, logger log.Logger) {
	for i := len(plugins) - 1; i >= 0; i-- {
		p := plugins[i]
		if err := p.Shutdown(ctx); err != nil {
			logger.Error("plugin shutdown failed",
				log.String("plugin", p.Name()),
				log.Err(err))
		} else {
			logger.Info("plugin shutdown complete", log.String("plugin", p.Name()))
		}
	}
}

// beginLocked marks op as the wallet's in-flight operation. Caller holds m.mu.
func (m *Manager) beginLocked(e *walletEntry, parent context.Context, kind string) (*operation, context.Context) {
	ctx, cancel := context.WithCancel(parent)
	op := &operation{kind: kind, cancel: cancel, done: make(chan struct{})}
	e.op = op
	m.wg.Add(1)
	return op, ctx
}

// finish settles op and replays a disconnect signal deferred while it ran.
func (m *Manager) finish(e *walletEntry, op *operation) {
	op.cancel()

	m.mu.Lock()
	if e.op == op {
		e.op = nil
	}
	replay := e.pendingSignal && e.sessionID != ""
	sid := e.sessionID
	e.pendingSignal = false
	m.mu.Unlock()

	close(op.done)
	m.wg.Done()

	if replay {
		m.HandleDisconnectSignal(sid)
	}
}

// transitionLocked moves e to next. Caller holds m.mu and emits the
// returned event after unlocking.
func (m *Manager) transitionLocked(e *walletEntry, next State, reason string) (StateChangeEvent, bool) {
	prev := e.state
	if !prev.CanTransitionTo(next) {
		m.logger.Warn("rejected state transition",
			log.WalletID(e.walletID),
			log.String("from", prev.String()),
			log.String("to", next.String()))
		return StateChangeEvent{}, false
	}
	e.state = next
	return StateChangeEvent{
		WalletID:  e.walletID,
		SessionID: e.sessionID,
		Previous:  prev,
		Current:   next,
		Reason:    reason,
		At:        m.now(),
	}, true
}

// detachLocked drops the live session of e and moves it to next.
func (m *Manager) detachLocked(e *walletEntry, next State, reason string) (string, Adapter, StateChangeEvent, bool) {
	sid, adapter := e.sessionID, e.adapter
	if sid == "" {
		return "", nil, StateChangeEvent{}, false
	}
	ev, _ := m.transitionLocked(e, next, reason)
	delete(m.sessions, sid)
	e.sessionID, e.adapter, e.provider = "", nil, nil
	return sid, adapter, ev, true
}

func (m *Manager) endSession(sessionID, reason string) {
	if err := m.registry.End(sessionID, reason); err != nil {
		m.logger.Warn("failed to end session", log.SessionID(sessionID), log.Err(err))
	}
}

func (m *Manager) handlerSnapshot() []EventHandler {
	m.hMu.RLock()
	defer m.hMu.RUnlock()
	out := make([]EventHandler, len(m.handlers))
	for i, he := range m.handlers {
		out[i] = he.h
	}
	return out
}

func (m *Manager) emitState(ev StateChangeEvent) {
	if ev.WalletID == "" {
		return
	}
	m.logger.Info("state transition",
		log.WalletID(ev.WalletID),
		log.SessionID(ev.SessionID),
		log.String("from", ev.Previous.String()),
		log.String("to", ev.Current.String()),
		log.String("reason", ev.Reason))
	for _, h := range m.handlerSnapshot() {
		h.OnStateChange(ev)
	}
}

func (m *Manager) emitReconnect(ev ReconnectEvent) {
	for _, h := range m.handlerSnapshot() {
		h.OnReconnectAttempt(ev)
	}
}

// report logs me, notifies handlers and returns me as an error.
func (m *Manager) report(walletID, sessionID, op string, me *walleterr.ModalError) error {
	fields := []log.Field{
		log.String("operation", op),
		log.String("code", me.Code),
		log.String("category", string(me.Category)),
		log.String("classification", string(me.Classification)),
		log.String("recovery", string(me.Strategy())),
		log.Err(me),
	}
	if walletID != "" {
		fields = append(fields, log.WalletID(walletID))
	}
	if sessionID != "" {
		fields = append(fields, log.SessionID(sessionID))
	}
	if me.Category == walleterr.CategoryUser {
		m.logger.Info("operation ended by user", fields...)
	} else {
		m.logger.Warn("operation failed", fields...)
	}

	ev := ErrorEvent{WalletID: walletID, SessionID: sessionID, Operation: op, Err: me, At: m.now()}
	for _, h := range m.handlerSnapshot() {
		h.OnError(ev)
	}
	return me
}

func (m *Manager) backoffDelay(attempt int) time.Duration {
	m.rngMu.Lock()
	defer m.rngMu.Unlock()
	return m.cfg.Backoff.Delay(attempt, m.rng)
}

func (m *Manager) savePreferred(walletID string) {
	if err := m.prefs.SetPreferredWallet(context.Background(), walletID); err != nil {
		m.logger.Warn("failed to save preferred wallet", log.WalletID(walletID), log.Err(err))
	}
}

func (m *Manager) clearPreferred(walletID string) {
	ctx := context.Background()
	current, ok, err := m.prefs.PreferredWallet(ctx)
	if err != nil {
		m.logger.Warn("failed to read preferred wallet", log.Err(err))
		return
	}
	if !ok || current != walletID {
		return
	}
	if err := m.prefs.ClearPreferredWallet(ctx); err != nil {
		m.logger.Warn("failed to clear preferred wallet", log.WalletID(walletID), log.Err(err))
	}
}

// contextError classifies the error of a finished context.
func contextError(err error) *walleterr.ModalError {
	if errors.Is(err, context.Canceled) {
		return walleterr.Cancelled("operation cancelled", walleterr.WithCause(err))
	}
	return walleterr.Classify(err)
}

// registryError maps registry failures onto the error taxonomy.
func registryError(sessionID string, err error) *walleterr.ModalError {
	switch {
	case errors.Is(err, session.ErrNotFound):
		return sessionNotFound(sessionID)
	case errors.Is(err, session.ErrTerminal), errors.Is(err, session.ErrInvalidTransition):
		return walleterr.InvalidState(err.Error(), walleterr.WithCause(err))
	default:
		return walleterr.Classify(err)
	}
}

func sessionNotFound(sessionID string) *walleterr.ModalError {
	return walleterr.New(walleterr.CodeSessionNotFound, walleterr.CategoryGeneral, "session not found",
		walleterr.WithClassification(walleterr.ClassPermanent),
		walleterr.WithData("sessionId", sessionID))
}
