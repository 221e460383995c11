package connection

import (
	"math"
	"math/rand"
	"testing"
	"time"
)

func TestState_String(t *testing.T) {
	tests := []struct {
		state    State
		expected string
	}{
		{StateIdle, "idle"},
		{StateConnecting, "connecting"},
		{StateConnected, "connected"},
		{StateReconnecting, "reconnecting"},
		{StateDisconnected, "disconnected"},
		{StateError, "error"},
		{State(99), "unknown"},
	}

	for _, tc := range tests {
		if got := tc.state.String(); got != tc.expected {
			t.Errorf("State(%d).String() = %q, want %q", tc.state, got, tc.expected)
		}
	}
}

func TestState_Transitions(t *testing.T) {
	allowed := map[State][]State{
		StateIdle:         {StateConnecting},
		StateConnecting:   {StateConnected, StateDisconnected, StateError},
		StateConnected:    {StateReconnecting, StateDisconnected, StateError},
		StateReconnecting: {StateConnected, StateDisconnected, StateError},
		StateDisconnected: {StateConnecting},
		StateError:        {StateConnecting},
	}
	all := []State{StateIdle, StateConnecting, StateConnected, StateReconnecting, StateDisconnected, StateError}

	for from, targets := range allowed {
		ok := make(map[State]bool)
		for _, to := range targets {
			ok[to] = true
		}
		for _, to := range all {
			if got := from.CanTransitionTo(to); got != ok[to] {
				t.Errorf("%s -> %s = %v, want %v", from, to, got, ok[to])
			}
		}
	}
}

func TestState_CanConnect(t *testing.T) {
	for _, s := range []State{StateIdle, StateDisconnected, StateError} {
		if !s.CanConnect() {
			t.Errorf("%s.CanConnect() = false", s)
		}
	}
	for _, s := range []State{StateConnecting, StateConnected, StateReconnecting} {
		if s.CanConnect() {
			t.Errorf("%s.CanConnect() = true", s)
		}
	}
}

func TestBackoff_Delay(t *testing.T) {
	tests := []struct {
		name    string
		backoff Backoff
		attempt int
		want    time.Duration
	}{
		{"fixed first", Backoff{Kind: BackoffFixed, InitialDelay: time.Second}, 1, time.Second},
		{"fixed later", Backoff{Kind: BackoffFixed, InitialDelay: time.Second, Multiplier: 2}, 4, time.Second},
		{"exponential", Backoff{Kind: BackoffExponential, InitialDelay: time.Second, Multiplier: 2}, 3, 4 * time.Second},
		{"exponential capped", Backoff{Kind: BackoffExponential, InitialDelay: time.Second, Multiplier: 2, MaxDelay: 3 * time.Second}, 5, 3 * time.Second},
		{"multiplier below one", Backoff{Kind: BackoffExponential, InitialDelay: time.Second, Multiplier: 0.5}, 3, time.Second},
		{"zero attempt", Backoff{Kind: BackoffExponential, InitialDelay: time.Second, Multiplier: 2}, 0, time.Second},
		{"no delay", Backoff{Kind: BackoffExponential}, 3, 0},
		{"uncapped overflow saturates", Backoff{Kind: BackoffExponential, InitialDelay: time.Second, Multiplier: 2}, 35, time.Duration(math.MaxInt64)},
		{"uncapped huge attempt", Backoff{Kind: BackoffExponential, InitialDelay: time.Second, Multiplier: 2}, 5000, time.Duration(math.MaxInt64)},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := tc.backoff.Delay(tc.attempt, nil); got != tc.want {
				t.Errorf("Delay(%d) = %v, want %v", tc.attempt, got, tc.want)
			}
		})
	}
}

func TestBackoff_JitterRange(t *testing.T) {
	b := Backoff{Kind: BackoffFixed, InitialDelay: time.Second, Jitter: true}
	rng := rand.New(rand.NewSource(7))
	for i := 0; i < 100; i++ {
		got := b.Delay(1, rng)
		if got < 800*time.Millisecond || got > 1200*time.Millisecond {
			t.Fatalf("jitter out of range: %v", got)
		}
	}
}

func TestConfig_SetDefaultsAndValidate(t *testing.T) {
	var cfg Config
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate after SetDefaults: %v", err)
	}
	if cfg.DiscoveryTimeout != DefaultDiscoveryTimeout || cfg.HandshakeTimeout != DefaultHandshakeTimeout {
		t.Errorf("timeouts = %v/%v", cfg.DiscoveryTimeout, cfg.HandshakeTimeout)
	}
	if cfg.Backoff.Kind != BackoffExponential || cfg.Backoff.Multiplier != DefaultReconnectMultiplier {
		t.Errorf("backoff = %+v", cfg.Backoff)
	}

	tests := []struct {
		name   string
		mutate func(*Config)
		want   error
	}{
		{"discovery timeout", func(c *Config) { c.DiscoveryTimeout = -1 }, ErrInvalidDiscoveryTimeout},
		{"handshake timeout", func(c *Config) { c.HandshakeTimeout = -1 }, ErrInvalidHandshakeTimeout},
		{"attempts", func(c *Config) { c.MaxReconnectAttempts = -1 }, ErrInvalidReconnectLimit},
		{"kind", func(c *Config) { c.Backoff.Kind = "linear" }, ErrInvalidBackoffKind},
		{"delay", func(c *Config) { c.Backoff.MaxDelay = -time.Second }, ErrInvalidBackoffDelay},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tc.mutate(&cfg)
			if err := cfg.Validate(); err != tc.want {
				t.Errorf("Validate() = %v, want %v", err, tc.want)
			}
		})
	}
}

func TestBaseEventHandler_DefaultBehavior(t *testing.T) {
	var h EventHandler = BaseEventHandler{}
	h.OnStateChange(StateChangeEvent{})
	h.OnError(ErrorEvent{})
	h.OnReconnectAttempt(ReconnectEvent{})
}
