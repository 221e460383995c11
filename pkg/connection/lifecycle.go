package connection

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bft-labs/walletmesh/pkg/discovery"
	"github.com/bft-labs/walletmesh/pkg/log"
	"github.com/bft-labs/walletmesh/pkg/session"
	"github.com/bft-labs/walletmesh/pkg/walleterr"
)

// Connect discovers walletID, performs the adapter handshake and registers
// the resulting session as the active one. A wallet is matched when its
// discovery response carries walletID as rdns or responder id.
//
// Connect is rejected with invalid_state while another operation on the
// same wallet is in flight or the wallet is already connected.
func (m *Manager) Connect(ctx context.Context, walletID string, opts ConnectOptions) (session.Session, error) {
	if walletID == "" {
		return session.Session{}, m.report("", "", OpConnect,
			walleterr.Validation(walleterr.CodeInvalidParams, "wallet id required"))
	}

	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return session.Session{}, m.report(walletID, "", OpConnect, walleterr.InvalidState("manager closed"))
	}
	e, ok := m.wallets[walletID]
	if !ok {
		e = &walletEntry{walletID: walletID, state: StateIdle}
		m.wallets[walletID] = e
	}
	if e.op != nil || !e.state.CanConnect() {
		msg := "wallet is " + e.state.String()
		if e.op != nil {
			msg = e.op.kind + " already in progress"
		}
		m.mu.Unlock()
		return session.Session{}, m.report(walletID, "", OpConnect,
			walleterr.InvalidState(msg, walleterr.WithData("walletId", walletID)))
	}
	e.lastErr = nil
	ev, _ := m.transitionLocked(e, StateConnecting, "connect requested")
	op, opCtx := m.beginLocked(e, ctx, OpConnect)
	m.mu.Unlock()

	defer m.finish(e, op)
	m.emitState(ev)

	sess, me := m.connect(opCtx, e, opts)
	if me != nil {
		next := StateError
		if me.Code == walleterr.CodeCancelled {
			next = StateDisconnected
		}
		m.mu.Lock()
		e.lastErr = me
		ev, _ := m.transitionLocked(e, next, me.Message)
		m.mu.Unlock()
		m.emitState(ev)
		return session.Session{}, m.report(walletID, "", OpConnect, me)
	}

	m.savePreferred(walletID)
	return sess, nil
}

func (m *Manager) connect(ctx context.Context, e *walletEntry, opts ConnectOptions) (session.Session, *walleterr.ModalError) {
	walletID := e.walletID
	logger := log.With(m.logger, log.WalletID(walletID))

	requestID := m.discoverer.Broadcast(opts.Required)
	resp, found := m.discoverer.WaitFor(ctx, requestID, m.cfg.DiscoveryTimeout, func(r discovery.Response) bool {
		return r.RDNS == walletID || r.ResponderID == walletID
	})
	if !found {
		if err := ctx.Err(); err != nil {
			return session.Session{}, contextError(err)
		}
		return session.Session{}, walleterr.New(walleterr.CodeWalletNotFound, walleterr.CategoryWallet,
			"wallet did not answer discovery",
			walleterr.WithClassification(walleterr.ClassTemporary),
			walleterr.WithData("walletId", walletID),
			walleterr.WithData("timeout", m.cfg.DiscoveryTimeout.String()))
	}
	logger.Debug("wallet discovered", log.String("rdns", resp.RDNS), log.String("name", resp.Name))

	adapter, err := m.factory(resp)
	if err != nil {
		return session.Session{}, walleterr.Classify(err)
	}
	if adapter == nil {
		return session.Session{}, walleterr.Validation(walleterr.CodeInvalidParams, "no adapter for wallet",
			walleterr.WithData("walletId", walletID))
	}

	hs := HandshakeConfig{
		WalletID:  walletID,
		ChainID:   opts.ChainID,
		Transport: resp.TransportConfig,
	}
	result, me := m.handshake(ctx, adapter, hs)
	if me != nil {
		return session.Session{}, me
	}

	// Past this check the connection is committed; a later Disconnect
	// waits for it and then ends the new session.
	m.mu.Lock()
	if err := ctx.Err(); err != nil {
		m.mu.Unlock()
		m.closeAdapter(adapter, walletID)
		return session.Session{}, contextError(err)
	}
	m.mu.Unlock()

	chainType := adapter.ChainType()
	chainID := result.ChainID
	if chainID == "" {
		chainID = opts.ChainID
	}
	created, err := m.registry.Create(session.CreateParams{
		WalletID:  walletID,
		ChainType: chainType,
		Chain:     session.ChainInfo{Type: chainType, ChainID: chainID, Name: result.ChainName},
		Addresses: result.Addresses,
		Metadata:  sessionMetadata(resp, opts.Metadata),
	})
	if err != nil {
		m.closeAdapter(adapter, walletID)
		return session.Session{}, registryError("", err)
	}
	if err := m.registry.SwitchActive(created.ID); err != nil {
		m.closeAdapter(adapter, walletID)
		m.endSession(created.ID, "activation failed")
		return session.Session{}, registryError(created.ID, err)
	}

	m.mu.Lock()
	hs.ChainID = chainID
	e.sessionID = created.ID
	e.adapter = adapter
	e.provider = result.Provider
	e.handshake = hs
	m.sessions[created.ID] = e
	ev, _ := m.transitionLocked(e, StateConnected, "handshake complete")
	m.mu.Unlock()

	sid := created.ID
	adapter.OnDisconnect(func() { m.HandleDisconnectSignal(sid) })
	m.emitState(ev)

	sess, ok := m.registry.Get(sid)
	if !ok {
		sess = created
	}
	return sess, nil
}

// handshake runs one adapter handshake bounded by the handshake timeout.
func (m *Manager) handshake(ctx context.Context, a Adapter, cfg HandshakeConfig) (HandshakeResult, *walleterr.ModalError) {
	hctx, cancel := context.WithTimeout(ctx, m.cfg.HandshakeTimeout)
	defer cancel()

	result, err := a.Handshake(hctx, cfg)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return result, contextError(ctxErr)
		}
		if errors.Is(hctx.Err(), context.DeadlineExceeded) {
			return result, walleterr.New(walleterr.CodeConnectionTimeout, walleterr.CategoryNetwork,
				"wallet handshake timed out",
				walleterr.WithClassification(walleterr.ClassTemporary),
				walleterr.WithCause(err),
				walleterr.WithData("timeout", m.cfg.HandshakeTimeout.String()))
		}
		return result, walleterr.Classify(err)
	}
	if err := checkProvider(a.ChainType(), result.Provider); err != nil {
		return result, walleterr.Classify(err)
	}
	return result, nil
}

func (m *Manager) closeAdapter(a Adapter, walletID string) {
	ctx, cancel := context.WithTimeout(context.Background(), m.cfg.HandshakeTimeout)
	defer cancel()
	if err := a.Disconnect(ctx); err != nil {
		m.logger.Warn("adapter disconnect failed", log.WalletID(walletID), log.Err(err))
	}
}

func sessionMetadata(resp discovery.Response, extra map[string]string) map[string]string {
	md := make(map[string]string, len(extra)+3)
	for k, v := range extra {
		md[k] = v
	}
	if resp.Name != "" {
		md["name"] = resp.Name
	}
	if resp.RDNS != "" {
		md["rdns"] = resp.RDNS
	}
	if resp.ResponderID != "" {
		md["responderId"] = resp.ResponderID
	}
	return md
}

// SwitchChain asks the session's wallet to move to chainID. The registry
// is updated only after the adapter confirms; the session status is not
// changed either way.
func (m *Manager) SwitchChain(ctx context.Context, sessionID, chainID string) error {
	if chainID == "" {
		return m.report("", sessionID, OpSwitchChain,
			walleterr.Validation(walleterr.CodeInvalidParams, "chain id required"))
	}

	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return m.report("", sessionID, OpSwitchChain, walleterr.InvalidState("manager closed"))
	}
	e, ok := m.sessions[sessionID]
	if !ok {
		m.mu.Unlock()
		return m.report("", sessionID, OpSwitchChain, sessionNotFound(sessionID))
	}
	if e.op != nil || e.state != StateConnected {
		msg := "wallet is " + e.state.String()
		if e.op != nil {
			msg = e.op.kind + " already in progress"
		}
		m.mu.Unlock()
		return m.report(e.walletID, sessionID, OpSwitchChain, walleterr.InvalidState(msg))
	}
	adapter := e.adapter
	op, opCtx := m.beginLocked(e, ctx, OpSwitchChain)
	m.mu.Unlock()
	defer m.finish(e, op)

	if err := adapter.SwitchChain(opCtx, chainID); err != nil {
		me := walleterr.Classify(err)
		if ctxErr := opCtx.Err(); ctxErr != nil {
			me = contextError(ctxErr)
		}
		return m.report(e.walletID, sessionID, OpSwitchChain, me)
	}

	m.mu.Lock()
	if err := opCtx.Err(); err != nil {
		m.mu.Unlock()
		return m.report(e.walletID, sessionID, OpSwitchChain, contextError(err))
	}
	m.mu.Unlock()

	chain := session.ChainInfo{Type: adapter.ChainType(), ChainID: chainID}
	if err := m.registry.UpdateChain(sessionID, chain); err != nil {
		return m.report(e.walletID, sessionID, OpSwitchChain, registryError(sessionID, err))
	}

	m.mu.Lock()
	e.handshake.ChainID = chainID
	m.mu.Unlock()

	m.logger.Info("chain switched", log.SessionID(sessionID), log.String("chain_id", chainID))
	return nil
}

// Disconnect ends sessionID at the user's request. Any in-flight operation
// on the wallet is cancelled first and settles with a cancelled error. The
// session is ended even if the adapter fails to disconnect; that failure is
// returned.
func (m *Manager) Disconnect(ctx context.Context, sessionID string) error {
	m.mu.Lock()
	e, ok := m.sessions[sessionID]
	m.mu.Unlock()
	if !ok {
		return m.report("", sessionID, OpDisconnect, sessionNotFound(sessionID))
	}
	return m.disconnect(ctx, e)
}

// DisconnectWallet is Disconnect addressed by wallet id. It also cancels a
// Connect that has not produced a session yet.
func (m *Manager) DisconnectWallet(ctx context.Context, walletID string) error {
	m.mu.Lock()
	e, ok := m.wallets[walletID]
	m.mu.Unlock()
	if !ok {
		return m.report(walletID, "", OpDisconnect,
			walleterr.InvalidState("wallet is not connected", walleterr.WithData("walletId", walletID)))
	}
	return m.disconnect(ctx, e)
}

func (m *Manager) disconnect(ctx context.Context, e *walletEntry) error {
	const reason = "user disconnected"

	m.mu.Lock()
	for e.op != nil {
		op := e.op
		op.cancel()
		m.mu.Unlock()

		select {
		case <-op.done:
		case <-ctx.Done():
			return m.report(e.walletID, "", OpDisconnect, contextError(ctx.Err()))
		}
		m.mu.Lock()
	}
	sid, adapter, ev, ok := m.detachLocked(e, StateDisconnected, reason)
	m.mu.Unlock()

	m.clearPreferred(e.walletID)
	if !ok {
		return nil
	}

	var adapterErr error
	if err := adapter.Disconnect(ctx); err != nil {
		adapterErr = err
	}
	m.endSession(sid, reason)
	m.emitState(ev)

	if adapterErr != nil {
		return m.report(e.walletID, sid, OpDisconnect, walleterr.Classify(adapterErr))
	}
	return nil
}

// HandleDisconnectSignal reacts to the wallet dropping sessionID on its
// own. With auto-reconnect enabled the session enters reconnecting and a
// background loop retries the handshake; otherwise the session ends.
// Signals for unknown or not connected sessions are ignored.
func (m *Manager) HandleDisconnectSignal(sessionID string) {
	m.mu.Lock()
	e, ok := m.sessions[sessionID]
	if !ok || m.closed || e.state != StateConnected {
		m.mu.Unlock()
		m.logger.Debug("ignoring disconnect signal", log.SessionID(sessionID))
		return
	}
	if e.op != nil {
		// The running operation talks to a dead wallet; stop it and come
		// back once it settles.
		e.pendingSignal = true
		e.op.cancel()
		m.mu.Unlock()
		return
	}

	if !m.cfg.AutoReconnect || m.cfg.MaxReconnectAttempts == 0 {
		sid, _, ev, _ := m.detachLocked(e, StateDisconnected, "wallet disconnected")
		m.mu.Unlock()
		m.endSession(sid, "wallet disconnected")
		m.emitState(ev)
		return
	}

	ev, _ := m.transitionLocked(e, StateReconnecting, "wallet disconnected")
	op, ctx := m.beginLocked(e, context.Background(), OpReconnect)
	adapter, hs := e.adapter, e.handshake
	m.mu.Unlock()

	if err := m.registry.UpdateStatus(sessionID, session.StatusReconnecting); err != nil {
		m.logger.Debug("registry status update skipped", log.SessionID(sessionID), log.Err(err))
	}
	m.emitState(ev)

	go m.reconnect(ctx, e, op, sessionID, adapter, hs)
}

func (m *Manager) reconnect(ctx context.Context, e *walletEntry, op *operation, sessionID string, adapter Adapter, hs HandshakeConfig) {
	defer m.finish(e, op)

	hs.Reconnect = true
	logger := log.With(m.logger, log.WalletID(e.walletID), log.SessionID(sessionID))
	limit := m.cfg.MaxReconnectAttempts

	var last *walleterr.ModalError
	for attempt := 1; attempt <= limit; attempt++ {
		delay := m.backoffDelay(attempt)
		m.emitReconnect(ReconnectEvent{
			WalletID:    e.walletID,
			SessionID:   sessionID,
			Attempt:     attempt,
			MaxAttempts: limit,
			Delay:       delay,
			At:          m.now(),
		})
		logger.Info("reconnect attempt",
			log.Int("attempt", attempt),
			log.Int("max_attempts", limit),
			log.Duration("delay", delay))

		if !sleepCtx(ctx, delay) {
			return
		}

		result, me := m.handshake(ctx, adapter, hs)
		if ctx.Err() != nil {
			return
		}
		if me == nil {
			m.restore(ctx, e, sessionID, result)
			return
		}

		last = me
		logger.Warn("reconnect attempt failed",
			log.Int("attempt", attempt),
			log.String("code", me.Code),
			log.Err(me))
		if !retryable(me) {
			m.abandon(ctx, e, sessionID, StateError, me)
			return
		}
	}

	exhausted := walleterr.New(walleterr.CodeReconnectExhausted, walleterr.CategoryWallet,
		fmt.Sprintf("reconnect failed after %d attempts", limit),
		walleterr.WithClassification(walleterr.ClassPermanent),
		walleterr.WithRecovery(walleterr.RecoveryManualAction, 0, 0),
		walleterr.WithCause(last),
		walleterr.WithData("attempts", limit))
	m.abandon(ctx, e, sessionID, StateDisconnected, exhausted)
}

// retryable reports whether a failed reconnect attempt may be retried.
func retryable(me *walleterr.ModalError) bool {
	switch me.Classification {
	case walleterr.ClassPermission, walleterr.ClassPermanent:
		return false
	}
	return true
}

func (m *Manager) restore(ctx context.Context, e *walletEntry, sessionID string, result HandshakeResult) {
	m.mu.Lock()
	if ctx.Err() != nil {
		m.mu.Unlock()
		return
	}
	if result.Provider != nil {
		e.provider = result.Provider
	}
	chainChanged := result.ChainID != "" && result.ChainID != e.handshake.ChainID
	if chainChanged {
		e.handshake.ChainID = result.ChainID
	}
	chainType := e.adapter.ChainType()
	ev, _ := m.transitionLocked(e, StateConnected, "reconnected")
	m.mu.Unlock()

	if err := m.registry.UpdateStatus(sessionID, session.StatusConnected); err != nil {
		m.logger.Warn("registry status update failed", log.SessionID(sessionID), log.Err(err))
	}
	if len(result.Addresses) > 0 {
		if err := m.registry.UpdateAddresses(sessionID, result.Addresses); err != nil {
			m.logger.Warn("registry address update failed", log.SessionID(sessionID), log.Err(err))
		}
	}
	if chainChanged {
		chain := session.ChainInfo{Type: chainType, ChainID: result.ChainID, Name: result.ChainName}
		if err := m.registry.UpdateChain(sessionID, chain); err != nil {
			m.logger.Warn("registry chain update failed", log.SessionID(sessionID), log.Err(err))
		}
	}
	m.emitState(ev)
}

// abandon gives up on a dropped session and surfaces me.
func (m *Manager) abandon(ctx context.Context, e *walletEntry, sessionID string, next State, me *walleterr.ModalError) {
	m.mu.Lock()
	if ctx.Err() != nil {
		m.mu.Unlock()
		return
	}
	e.lastErr = me
	_, _, ev, ok := m.detachLocked(e, next, me.Message)
	m.mu.Unlock()
	if !ok {
		return
	}

	if next == StateError {
		if err := m.registry.UpdateStatus(sessionID, session.StatusError); err != nil {
			m.logger.Warn("registry status update failed", log.SessionID(sessionID), log.Err(err))
		}
	}
	m.endSession(sessionID, me.Message)
	m.emitState(ev)
	_ = m.report(e.walletID, sessionID, OpReconnect, me)
}

// sleepCtx waits for d and reports whether ctx is still live.
func sleepCtx(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
