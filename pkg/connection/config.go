package connection

import (
	"errors"
	"time"
)

// Configuration errors.
var (
	ErrInvalidDiscoveryTimeout = errors.New("connection: discovery timeout must be positive")
	ErrInvalidHandshakeTimeout = errors.New("connection: handshake timeout must be positive")
	ErrInvalidReconnectLimit   = errors.New("connection: max reconnect attempts must not be negative")
	ErrInvalidBackoffKind      = errors.New("connection: backoff kind must be fixed or exponential")
	ErrInvalidBackoffDelay     = errors.New("connection: backoff delays must not be negative")
	ErrMissingDiscoverer       = errors.New("connection: discoverer required")
	ErrMissingAdapterFactory   = errors.New("connection: adapter factory required")
)

// Default configuration values.
const (
	DefaultDiscoveryTimeout     = 3 * time.Second
	DefaultHandshakeTimeout     = 30 * time.Second
	DefaultMaxReconnectAttempts = 3
	DefaultReconnectDelay       = time.Second
	DefaultReconnectMaxDelay    = 30 * time.Second
	DefaultReconnectMultiplier  = 2.0
)

// Config holds the Manager configuration.
// Use DefaultConfig() to get a Config with sensible defaults.
type Config struct {
	// DiscoveryTimeout bounds the wait for the requested wallet to answer.
	DiscoveryTimeout time.Duration

	// HandshakeTimeout bounds each adapter handshake, including reconnects.
	HandshakeTimeout time.Duration

	// AutoReconnect enables reconnection after an adapter disconnect signal.
	AutoReconnect bool

	// MaxReconnectAttempts is the reconnect budget per disconnect signal.
	MaxReconnectAttempts int

	Backoff Backoff
}

// DefaultConfig returns a Config with sensible default values.
func DefaultConfig() Config {
	return Config{
		DiscoveryTimeout:     DefaultDiscoveryTimeout,
		HandshakeTimeout:     DefaultHandshakeTimeout,
		AutoReconnect:        true,
		MaxReconnectAttempts: DefaultMaxReconnectAttempts,
		Backoff: Backoff{
			Kind:         BackoffExponential,
			InitialDelay: DefaultReconnectDelay,
			Multiplier:   DefaultReconnectMultiplier,
			MaxDelay:     DefaultReconnectMaxDelay,
			Jitter:       true,
		},
	}
}

// SetDefaults fills zero-valued fields with defaults.
func (c *Config) SetDefaults() {
	if c.DiscoveryTimeout == 0 {
		c.DiscoveryTimeout = DefaultDiscoveryTimeout
	}
	if c.HandshakeTimeout == 0 {
		c.HandshakeTimeout = DefaultHandshakeTimeout
	}
	if c.Backoff.Kind == "" {
		c.Backoff.Kind = BackoffExponential
	}
	if c.Backoff.Kind == BackoffExponential && c.Backoff.Multiplier == 0 {
		c.Backoff.Multiplier = DefaultReconnectMultiplier
	}
}

// Validate checks the configuration.
func (c *Config) Validate() error {
	if c.DiscoveryTimeout <= 0 {
		return ErrInvalidDiscoveryTimeout
	}
	if c.HandshakeTimeout <= 0 {
		return ErrInvalidHandshakeTimeout
	}
	if c.MaxReconnectAttempts < 0 {
		return ErrInvalidReconnectLimit
	}
	switch c.Backoff.Kind {
	case BackoffFixed, BackoffExponential:
	default:
		return ErrInvalidBackoffKind
	}
	if c.Backoff.InitialDelay < 0 || c.Backoff.MaxDelay < 0 {
		return ErrInvalidBackoffDelay
	}
	return nil
}
