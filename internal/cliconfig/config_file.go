package cliconfig

import (
	"os"
	"path/filepath"

	toml "github.com/pelletier/go-toml/v2"

	"github.com/bft-labs/walletmesh/pkg/discovery"
	"github.com/bft-labs/walletmesh/plugins/policywatcher"
)

// FileConfig mirrors Config but uses strings for durations to make TOML friendly.
//
//	origin = "https://dapp.example"
//	discovery_timeout = "3s"
//
//	[policy]
//	allow_localhost = true
//
//	[requirement]
//	technologies = [{ type = "evm", interfaces = ["eip-1193"] }]
//
//	[[responders]]
//	name = "Example Wallet"
//	rdns = "com.example.wallet"
//	technologies = [{ type = "evm", interfaces = ["eip-1193"] }]
type FileConfig struct {
	Origin               string `toml:"origin"`
	InitiatorName        string `toml:"initiator_name"`
	ChainID              string `toml:"chain_id"`
	DiscoveryTimeout     string `toml:"discovery_timeout"`
	HandshakeTimeout     string `toml:"handshake_timeout"`
	AutoReconnect        *bool  `toml:"auto_reconnect"`
	MaxReconnectAttempts *int   `toml:"max_reconnect_attempts"`
	Backoff              string `toml:"backoff"`
	ReconnectDelay       string `toml:"reconnect_delay"`
	MaxReconnectDelay    string `toml:"max_reconnect_delay"`
	PolicyPath           string `toml:"policy_file"`
	StorageDir           string `toml:"storage_dir"`
	LogLevel             string `toml:"log_level"`
	Interval             string `toml:"interval"`

	Policy      policywatcher.PolicyFile        `toml:"policy"`
	Requirement discovery.CapabilityRequirement `toml:"requirement"`
	Responders  []discovery.ResponderInfo       `toml:"responders"`
}

// LoadFileConfig reads and parses a TOML config file from the given path.
func LoadFileConfig(path string) (FileConfig, error) {
	var fc FileConfig
	b, err := os.ReadFile(path)
	if err != nil {
		return fc, err
	}
	if err := toml.Unmarshal(b, &fc); err != nil {
		return fc, err
	}
	return fc, nil
}

// DefaultConfigPath returns ~/.walletmesh/config.toml, or "" when the home
// directory is unknown.
func DefaultConfigPath() string {
	if h, err := os.UserHomeDir(); err == nil {
		return filepath.Join(h, ".walletmesh", "config.toml")
	}
	return ""
}

// DefaultStorageDir returns ~/.walletmesh, or "" when the home directory is
// unknown.
func DefaultStorageDir() string {
	if h, err := os.UserHomeDir(); err == nil {
		return filepath.Join(h, ".walletmesh")
	}
	return ""
}

// ApplyFileConfig applies configuration from a file to the Config struct.
// It respects flags that have been explicitly set (changed map).
func ApplyFileConfig(cfg *Config, fc FileConfig, changed map[string]bool) error {
	s := newConfigSetter(changed)

	s.setString("origin", fc.Origin, &cfg.Origin)
	s.setString("initiator", fc.InitiatorName, &cfg.InitiatorName)
	s.setString("chain-id", fc.ChainID, &cfg.ChainID)
	s.setString("backoff", fc.Backoff, &cfg.Backoff)
	s.setString("policy", fc.PolicyPath, &cfg.PolicyPath)
	s.setString("storage-dir", fc.StorageDir, &cfg.StorageDir)
	s.setString("log-level", fc.LogLevel, &cfg.LogLevel)

	if err := s.setDuration("discovery-timeout", fc.DiscoveryTimeout, &cfg.DiscoveryTimeout); err != nil {
		return err
	}
	if err := s.setDuration("handshake-timeout", fc.HandshakeTimeout, &cfg.HandshakeTimeout); err != nil {
		return err
	}
	if err := s.setDuration("reconnect-delay", fc.ReconnectDelay, &cfg.ReconnectDelay); err != nil {
		return err
	}
	if err := s.setDuration("max-reconnect-delay", fc.MaxReconnectDelay, &cfg.MaxReconnectDelay); err != nil {
		return err
	}
	if err := s.setDuration("interval", fc.Interval, &cfg.Interval); err != nil {
		return err
	}

	s.setBool("auto-reconnect", fc.AutoReconnect, &cfg.AutoReconnect)
	if err := s.setCount("max-reconnect-attempts", fc.MaxReconnectAttempts, &cfg.MaxReconnectAttempts); err != nil {
		return err
	}

	policy, err := fc.Policy.Apply(cfg.Policy)
	if err != nil {
		return err
	}
	cfg.Policy = policy

	if len(fc.Requirement.Technologies) > 0 || len(fc.Requirement.Features) > 0 {
		cfg.Requirement = fc.Requirement
	}
	if len(fc.Responders) > 0 {
		cfg.Responders = append([]discovery.ResponderInfo(nil), fc.Responders...)
	}
	return nil
}

// FileExists checks if a file exists at the given path.
func FileExists(p string) bool {
	_, err := os.Stat(p)
	return err == nil
}
