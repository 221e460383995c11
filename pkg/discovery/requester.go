package discovery

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/bft-labs/walletmesh/pkg/eventbus"
	"github.com/bft-labs/walletmesh/pkg/log"
)

// RequesterConfig configures a Requester.
type RequesterConfig struct {
	// Origin is declared in every request.
	Origin string

	// Initiator identifies the dApp to responders.
	Initiator InitiatorInfo

	Logger log.Logger
}

type pendingRequest struct {
	responses []Response
	seen      map[string]struct{}
	changed   chan struct{}
}

// Requester broadcasts discovery requests and collects correlated responses.
type Requester struct {
	bus    eventbus.PubSub
	cfg    RequesterConfig
	logger log.Logger

	mu          sync.Mutex
	pending     map[string]*pendingRequest
	unsubscribe func()
}

// NewRequester creates a requester listening for responses on bus.
func NewRequester(bus eventbus.PubSub, cfg RequesterConfig) *Requester {
	q := &Requester{
		bus:     bus,
		cfg:     cfg,
		logger:  log.With(cfg.Logger, log.String("component", "discovery.requester")),
		pending: make(map[string]*pendingRequest),
	}
	q.unsubscribe = bus.Subscribe(EventResponse, q.handle)
	return q
}

// Close stops listening and drops all pending requests.
func (q *Requester) Close() {
	q.mu.Lock()
	unsub := q.unsubscribe
	q.unsubscribe = nil
	for id, p := range q.pending {
		close(p.changed)
		delete(q.pending, id)
	}
	q.mu.Unlock()

	if unsub != nil {
		unsub()
	}
}

// Broadcast emits a request for required and returns its correlation id.
// It does not wait for responses.
func (q *Requester) Broadcast(required CapabilityRequirement) string {
	sessionID := uuid.NewString()

	q.mu.Lock()
	q.pending[sessionID] = &pendingRequest{
		seen:    make(map[string]struct{}),
		changed: make(chan struct{}),
	}
	q.mu.Unlock()

	req := Request{
		Type:          EventRequest,
		Version:       ProtocolVersion,
		SessionID:     sessionID,
		Required:      normalizeRequirement(required),
		Origin:        q.cfg.Origin,
		InitiatorInfo: q.cfg.Initiator,
	}
	payload, err := json.Marshal(req)
	if err != nil {
		q.logger.Error("encode request", log.Err(err))
		return sessionID
	}

	q.logger.Debug("broadcasting discovery request", log.SessionID(sessionID))
	q.bus.Publish(eventbus.Event{Type: EventRequest, Payload: payload})
	return sessionID
}

// Responses returns the responses received so far for sessionID.
func (q *Requester) Responses(sessionID string) []Response {
	q.mu.Lock()
	defer q.mu.Unlock()
	p, ok := q.pending[sessionID]
	if !ok {
		return nil
	}
	return append([]Response(nil), p.responses...)
}

// Collect waits for window (or ctx) to elapse and returns every distinct
// response received for sessionID, possibly none. The request is forgotten
// afterwards; late responses are ignored.
func (q *Requester) Collect(ctx context.Context, sessionID string, window time.Duration) []Response {
	timer := time.NewTimer(window)
	defer timer.Stop()

	select {
	case <-ctx.Done():
	case <-timer.C:
	}
	return q.Forget(sessionID)
}

// WaitFor returns the first response for sessionID accepted by match,
// waiting at most window. The request is forgotten on return.
func (q *Requester) WaitFor(ctx context.Context, sessionID string, window time.Duration, match func(Response) bool) (Response, bool) {
	defer q.Forget(sessionID)

	timer := time.NewTimer(window)
	defer timer.Stop()

	checked := 0
	for {
		q.mu.Lock()
		p, ok := q.pending[sessionID]
		if !ok {
			q.mu.Unlock()
			return Response{}, false
		}
		for ; checked < len(p.responses); checked++ {
			if match == nil || match(p.responses[checked]) {
				r := p.responses[checked]
				q.mu.Unlock()
				return r, true
			}
		}
		changed := p.changed
		q.mu.Unlock()

		select {
		case <-ctx.Done():
			return Response{}, false
		case <-timer.C:
			return Response{}, false
		case <-changed:
		}
	}
}

// Discover broadcasts required and collects responses for window.
func (q *Requester) Discover(ctx context.Context, required CapabilityRequirement, window time.Duration) []Response {
	return q.Collect(ctx, q.Broadcast(required), window)
}

// Forget drops sessionID and returns the responses received for it.
func (q *Requester) Forget(sessionID string) []Response {
	q.mu.Lock()
	defer q.mu.Unlock()
	p, ok := q.pending[sessionID]
	if !ok {
		return nil
	}
	delete(q.pending, sessionID)
	close(p.changed)
	return p.responses
}

func (q *Requester) handle(ev eventbus.Event) {
	var resp Response
	if err := json.Unmarshal(ev.Payload, &resp); err != nil {
		q.logger.Debug("ignoring malformed response", log.Err(err))
		return
	}
	if resp.Type != EventResponse || !protocolCompatible(resp.Version) {
		return
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	p, ok := q.pending[resp.SessionID]
	if !ok {
		return
	}
	key := resp.dedupeKey()
	if _, dup := p.seen[key]; dup {
		return
	}
	p.seen[key] = struct{}{}
	p.responses = append(p.responses, resp)

	close(p.changed)
	p.changed = make(chan struct{})
}
