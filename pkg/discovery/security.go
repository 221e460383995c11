package discovery

import (
	"errors"
	"net"
	"net/url"
	"strings"
	"sync"
	"time"
)

// Security gate errors. They are logged by the responder and never sent to
// the requester.
var (
	ErrInvalidOrigin        = errors.New("discovery: invalid origin")
	ErrOriginMismatch       = errors.New("discovery: origin mismatch")
	ErrInsecureOrigin       = errors.New("discovery: https required")
	ErrLocalhostNotAllowed  = errors.New("discovery: localhost not allowed")
	ErrRateLimited          = errors.New("discovery: rate limit exceeded")
	ErrInvalidResponderInfo = errors.New("discovery: invalid responder info")
	ErrAlreadyResponding    = errors.New("discovery: already responding")
	ErrMissingPageOrigin    = errors.New("discovery: page origin required")
)

// RateLimit bounds requests per origin within a sliding window.
// A non-positive MaxRequests disables limiting.
type RateLimit struct {
	MaxRequests int
	Window      time.Duration
}

// SecurityPolicy configures the responder's security gate.
type SecurityPolicy struct {
	RequireHTTPS   bool
	AllowLocalhost bool
	RateLimit      RateLimit
}

// DefaultSecurityPolicy returns the production policy: HTTPS only, no
// localhost, 10 requests per origin per minute.
func DefaultSecurityPolicy() SecurityPolicy {
	return SecurityPolicy{
		RequireHTTPS:   true,
		AllowLocalhost: false,
		RateLimit: RateLimit{
			MaxRequests: 10,
			Window:      time.Minute,
		},
	}
}

// DevelopmentSecurityPolicy allows localhost and plain HTTP.
func DevelopmentSecurityPolicy() SecurityPolicy {
	p := DefaultSecurityPolicy()
	p.RequireHTTPS = false
	p.AllowLocalhost = true
	return p
}

// Gate applies a SecurityPolicy to incoming request origins.
type Gate struct {
	mu         sync.Mutex
	policy     SecurityPolicy
	pageOrigin string
	limiter    *slidingWindow
	now        func() time.Time
}

// NewGate creates a gate for a responder living at pageOrigin.
// A nil clock uses time.Now.
func NewGate(pageOrigin string, policy SecurityPolicy, clock func() time.Time) *Gate {
	if clock == nil {
		clock = time.Now
	}
	normalized, err := NormalizeOrigin(pageOrigin)
	if err != nil {
		normalized = ""
	}
	return &Gate{
		policy:     policy,
		pageOrigin: normalized,
		limiter:    newSlidingWindow(),
		now:        clock,
	}
}

// SetPolicy replaces the policy. Rate-limit history is kept so a reload
// cannot be used to reset an origin's counter.
func (g *Gate) SetPolicy(policy SecurityPolicy) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.policy = policy
}

// Policy returns the current policy.
func (g *Gate) Policy() SecurityPolicy {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.policy
}

// Check returns nil when a request declaring origin may be answered.
// Accepted and rejected requests alike count against the rate limit once
// the origin checks pass.
func (g *Gate) Check(origin string) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	normalized, err := NormalizeOrigin(origin)
	if err != nil {
		return err
	}
	u, _ := url.Parse(normalized)

	if IsLocalhost(u.Hostname()) {
		if !g.policy.AllowLocalhost {
			return ErrLocalhostNotAllowed
		}
	} else {
		if normalized != g.pageOrigin {
			return ErrOriginMismatch
		}
		if g.policy.RequireHTTPS && u.Scheme != "https" {
			return ErrInsecureOrigin
		}
	}

	if !g.limiter.allow(normalized, g.policy.RateLimit, g.now()) {
		return ErrRateLimited
	}
	return nil
}

// NormalizeOrigin reduces origin to lowercase scheme://host[:port].
func NormalizeOrigin(origin string) (string, error) {
	origin = strings.TrimSpace(origin)
	if origin == "" {
		return "", ErrInvalidOrigin
	}
	u, err := url.Parse(origin)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return "", ErrInvalidOrigin
	}
	return strings.ToLower(u.Scheme) + "://" + strings.ToLower(u.Host), nil
}

// IsLocalhost reports whether host names the local machine.
func IsLocalhost(host string) bool {
	host = strings.ToLower(strings.Trim(host, "[]"))
	if host == "localhost" || strings.HasSuffix(host, ".localhost") {
		return true
	}
	if ip := net.ParseIP(host); ip != nil {
		return ip.IsLoopback()
	}
	return false
}

// slidingWindow records request timestamps per origin.
type slidingWindow struct {
	hits  map[string][]time.Time
	calls int
}

// sweepEvery bounds how often stale origins are purged.
const sweepEvery = 256

func newSlidingWindow() *slidingWindow {
	return &slidingWindow{hits: make(map[string][]time.Time)}
}

func (s *slidingWindow) allow(key string, limit RateLimit, now time.Time) bool {
	if limit.MaxRequests <= 0 || limit.Window <= 0 {
		return true
	}

	s.calls++
	if s.calls%sweepEvery == 0 {
		s.sweep(limit.Window, now)
	}

	cutoff := now.Add(-limit.Window)
	kept := prune(s.hits[key], cutoff)
	if len(kept) >= limit.MaxRequests {
		s.hits[key] = kept
		return false
	}
	s.hits[key] = append(kept, now)
	return true
}

func (s *slidingWindow) sweep(window time.Duration, now time.Time) {
	cutoff := now.Add(-window)
	for k, v := range s.hits {
		if kept := prune(v, cutoff); len(kept) == 0 {
			delete(s.hits, k)
		} else {
			s.hits[k] = kept
		}
	}
}

func prune(ts []time.Time, cutoff time.Time) []time.Time {
	i := 0
	for i < len(ts) && !ts[i].After(cutoff) {
		i++
	}
	return ts[i:]
}
