package discovery

import (
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/bft-labs/walletmesh/pkg/eventbus"
	"github.com/bft-labs/walletmesh/pkg/log"
)

// ResponderConfig configures a Responder.
type ResponderConfig struct {
	// Origin is the page origin the responder lives in. Requests declaring
	// any other non-localhost origin are rejected.
	Origin string

	// Logger receives gate decisions. Defaults to a no-op logger.
	Logger log.Logger

	// Clock drives the rate limiter. Defaults to time.Now.
	Clock func() time.Time
}

// Responder answers discovery requests on behalf of one wallet.
type Responder struct {
	bus    eventbus.PubSub
	cfg    ResponderConfig
	logger log.Logger

	mu          sync.RWMutex
	info        ResponderInfo
	gate        *Gate
	unsubscribe func()
}

// NewResponder creates a stopped responder attached to bus.
func NewResponder(bus eventbus.PubSub, cfg ResponderConfig) *Responder {
	return &Responder{
		bus:    bus,
		cfg:    cfg,
		logger: log.With(cfg.Logger, log.String("component", "discovery.responder")),
	}
}

// Start registers the responder on the bus. It fails when info is
// incomplete, the page origin is missing or the responder is already
// running. A missing instance UUID is generated.
func (r *Responder) Start(info ResponderInfo, policy SecurityPolicy) error {
	if info.RDNS == "" || info.Name == "" || len(info.Technologies) == 0 {
		return ErrInvalidResponderInfo
	}
	if _, err := NormalizeOrigin(r.cfg.Origin); err != nil {
		return ErrMissingPageOrigin
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.unsubscribe != nil {
		return ErrAlreadyResponding
	}
	if info.UUID == "" {
		info.UUID = uuid.NewString()
	}
	if info.Version == "" {
		info.Version = ProtocolVersion
	}
	r.info = info
	r.gate = NewGate(r.cfg.Origin, policy, r.cfg.Clock)
	r.unsubscribe = r.bus.Subscribe(EventRequest, r.handle)

	r.logger.Info("responding to discovery",
		log.String("rdns", info.RDNS),
		log.String("responder_id", info.UUID),
	)
	return nil
}

// Stop deregisters the responder. Calling Stop on a stopped responder is a no-op.
func (r *Responder) Stop() {
	r.mu.Lock()
	unsub := r.unsubscribe
	r.unsubscribe = nil
	rdns := r.info.RDNS
	r.mu.Unlock()

	if unsub != nil {
		unsub()
		r.logger.Info("stopped responding", log.String("rdns", rdns))
	}
}

// Responding reports whether the responder is registered.
func (r *Responder) Responding() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.unsubscribe != nil
}

// UpdatePolicy swaps the security policy of a running responder.
func (r *Responder) UpdatePolicy(policy SecurityPolicy) {
	r.mu.RLock()
	gate := r.gate
	r.mu.RUnlock()

	if gate == nil {
		return
	}
	gate.SetPolicy(policy)
	r.logger.Info("security policy updated",
		log.Bool("require_https", policy.RequireHTTPS),
		log.Bool("allow_localhost", policy.AllowLocalhost),
		log.Int("rate_limit", policy.RateLimit.MaxRequests),
		log.Duration("rate_window", policy.RateLimit.Window),
	)
}

// Info returns the advertised responder info.
func (r *Responder) Info() ResponderInfo {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.info
}

func (r *Responder) handle(ev eventbus.Event) {
	var req Request
	if err := json.Unmarshal(ev.Payload, &req); err != nil {
		r.logger.Debug("ignoring malformed request", log.Err(err))
		return
	}
	if req.Type != EventRequest || req.SessionID == "" {
		return
	}
	if !protocolCompatible(req.Version) {
		r.logger.Debug("ignoring incompatible request", log.String("version", req.Version))
		return
	}

	r.mu.RLock()
	info, gate, running := r.info, r.gate, r.unsubscribe != nil
	r.mu.RUnlock()
	if !running {
		return
	}

	if err := gate.Check(req.Origin); err != nil {
		if errors.Is(err, ErrRateLimited) {
			r.logger.Debug("dropping rate-limited request", log.Origin(req.Origin))
		} else {
			r.logger.Warn("rejecting discovery request", log.Origin(req.Origin), log.Err(err))
		}
		return
	}

	matched, ok := Match(req.Required, info)
	if !ok {
		r.logger.Debug("requirement not satisfied", log.SessionID(req.SessionID))
		return
	}

	resp := Response{
		Type:            EventResponse,
		Version:         ProtocolVersion,
		SessionID:       req.SessionID,
		ResponderID:     info.UUID,
		RDNS:            info.RDNS,
		Name:            info.Name,
		Icon:            info.Icon,
		Matched:         Matched{Required: matched},
		TransportConfig: info.TransportConfig,
	}
	payload, err := json.Marshal(resp)
	if err != nil {
		r.logger.Error("encode response", log.Err(err))
		return
	}

	r.bus.Publish(eventbus.Event{Type: EventResponse, Payload: payload})
}
