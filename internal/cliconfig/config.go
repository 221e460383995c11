package cliconfig

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/bft-labs/walletmesh/pkg/connection"
	"github.com/bft-labs/walletmesh/pkg/discovery"
)

// DefaultOrigin is the page origin the simulated dApp and wallets share.
const DefaultOrigin = "https://dapp.walletmesh.local"

// Config holds CLI configuration for walletmesh.
type Config struct {
	Origin        string
	InitiatorName string
	ChainID       string

	DiscoveryTimeout     time.Duration
	HandshakeTimeout     time.Duration
	AutoReconnect        bool
	MaxReconnectAttempts int
	Backoff              string
	ReconnectDelay       time.Duration
	MaxReconnectDelay    time.Duration

	PolicyPath string
	StorageDir string
	LogLevel   string

	// Interval is the broadcast period of the simulate command.
	Interval time.Duration
	Watch    bool

	Policy      discovery.SecurityPolicy
	Responders  []discovery.ResponderInfo
	Requirement discovery.CapabilityRequirement
}

// DefaultConfig returns a Config with default values.
func DefaultConfig() Config {
	return Config{
		Origin:               DefaultOrigin,
		InitiatorName:        "walletmesh-cli",
		DiscoveryTimeout:     connection.DefaultDiscoveryTimeout,
		HandshakeTimeout:     connection.DefaultHandshakeTimeout,
		AutoReconnect:        true,
		MaxReconnectAttempts: connection.DefaultMaxReconnectAttempts,
		Backoff:              string(connection.BackoffExponential),
		ReconnectDelay:       connection.DefaultReconnectDelay,
		MaxReconnectDelay:    connection.DefaultReconnectMaxDelay,
		LogLevel:             "info",
		Interval:             5 * time.Second,
		Policy:               discovery.DefaultSecurityPolicy(),
	}
}

// Validate checks the configuration for errors and normalizes the origin.
func (c *Config) Validate() error {
	origin, err := discovery.NormalizeOrigin(c.Origin)
	if err != nil {
		return fmt.Errorf("invalid origin %q: %w", c.Origin, err)
	}
	c.Origin = origin

	if c.InitiatorName == "" {
		return fmt.Errorf("initiator name is required")
	}
	if c.DiscoveryTimeout <= 0 {
		return fmt.Errorf("discovery timeout must be positive")
	}
	if c.HandshakeTimeout <= 0 {
		return fmt.Errorf("handshake timeout must be positive")
	}
	if c.MaxReconnectAttempts < 0 {
		return fmt.Errorf("max reconnect attempts must not be negative")
	}
	switch connection.BackoffKind(c.Backoff) {
	case connection.BackoffFixed, connection.BackoffExponential:
	default:
		return fmt.Errorf("backoff must be %q or %q, got %q",
			connection.BackoffFixed, connection.BackoffExponential, c.Backoff)
	}
	if c.ReconnectDelay < 0 || c.MaxReconnectDelay < 0 {
		return fmt.Errorf("reconnect delays must not be negative")
	}
	if c.Interval <= 0 {
		return fmt.Errorf("interval must be positive")
	}
	if _, err := zerolog.ParseLevel(strings.ToLower(c.LogLevel)); err != nil {
		return fmt.Errorf("invalid log level %q: %w", c.LogLevel, err)
	}
	if c.Watch && c.PolicyPath == "" {
		return fmt.Errorf("watch requires a policy file")
	}
	return nil
}

// ConnectionConfig converts c into a connection manager configuration.
func (c *Config) ConnectionConfig() connection.Config {
	cc := connection.DefaultConfig()
	cc.DiscoveryTimeout = c.DiscoveryTimeout
	cc.HandshakeTimeout = c.HandshakeTimeout
	cc.AutoReconnect = c.AutoReconnect
	cc.MaxReconnectAttempts = c.MaxReconnectAttempts
	cc.Backoff.Kind = connection.BackoffKind(c.Backoff)
	cc.Backoff.InitialDelay = c.ReconnectDelay
	cc.Backoff.MaxDelay = c.MaxReconnectDelay
	return cc
}

// configSetter helps apply configuration values while respecting flag precedence.
// It only applies values if the corresponding flag hasn't been explicitly set.
type configSetter struct {
	changed map[string]bool
}

func newConfigSetter(changed map[string]bool) *configSetter {
	return &configSetter{changed: changed}
}

// setString sets a string value if not empty and flag not changed.
func (s *configSetter) setString(flag, value string, dst *string) {
	if value == "" || s.changed[flag] {
		return
	}
	*dst = value
}

// setCount sets a non-negative int from a pointer. Zero is a valid value.
func (s *configSetter) setCount(flag string, value *int, dst *int) error {
	if value == nil || s.changed[flag] {
		return nil
	}
	if *value < 0 {
		return fmt.Errorf("%s must not be negative", flag)
	}
	*dst = *value
	return nil
}

// setDuration parses and sets a duration from string if valid and flag not changed.
func (s *configSetter) setDuration(flag, value string, dst *time.Duration) error {
	if value == "" || s.changed[flag] {
		return nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return fmt.Errorf("parse %s: %w", flag, err)
	}
	*dst = d
	return nil
}

// setBool sets a bool value from a pointer if not nil and flag not changed.
func (s *configSetter) setBool(flag string, value *bool, dst *bool) {
	if value == nil || s.changed[flag] {
		return
	}
	*dst = *value
}

// setCountFromString parses a non-negative int from an environment value.
func (s *configSetter) setCountFromString(flag, value string, dst *int) error {
	if value == "" || s.changed[flag] {
		return nil
	}
	i, err := strconv.Atoi(value)
	if err != nil {
		return fmt.Errorf("parse %s: %w", flag, err)
	}
	return s.setCount(flag, &i, dst)
}

// setBoolFromString parses a string to bool and sets the destination.
// Accepts "true", "1" as true, anything else as false.
func (s *configSetter) setBoolFromString(flag, value string, dst *bool) {
	if value == "" || s.changed[flag] {
		return
	}
	*dst = value == "true" || value == "1"
}
