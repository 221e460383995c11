package cliconfig

import "os"

// ApplyEnvConfig applies configuration from environment variables (WALLETMESH_*).
// It respects flags that have been explicitly set (changed map).
// Returns error if any environment variable has an invalid format.
func ApplyEnvConfig(cfg *Config, changed map[string]bool) error {
	s := newConfigSetter(changed)

	s.setString("origin", os.Getenv("WALLETMESH_ORIGIN"), &cfg.Origin)
	s.setString("initiator", os.Getenv("WALLETMESH_INITIATOR"), &cfg.InitiatorName)
	s.setString("chain-id", os.Getenv("WALLETMESH_CHAIN_ID"), &cfg.ChainID)
	s.setString("backoff", os.Getenv("WALLETMESH_BACKOFF"), &cfg.Backoff)
	s.setString("policy", os.Getenv("WALLETMESH_POLICY_FILE"), &cfg.PolicyPath)
	s.setString("storage-dir", os.Getenv("WALLETMESH_STORAGE_DIR"), &cfg.StorageDir)
	s.setString("log-level", os.Getenv("WALLETMESH_LOG_LEVEL"), &cfg.LogLevel)

	if err := s.setDuration("discovery-timeout", os.Getenv("WALLETMESH_DISCOVERY_TIMEOUT"), &cfg.DiscoveryTimeout); err != nil {
		return err
	}
	if err := s.setDuration("handshake-timeout", os.Getenv("WALLETMESH_HANDSHAKE_TIMEOUT"), &cfg.HandshakeTimeout); err != nil {
		return err
	}
	if err := s.setDuration("reconnect-delay", os.Getenv("WALLETMESH_RECONNECT_DELAY"), &cfg.ReconnectDelay); err != nil {
		return err
	}
	if err := s.setDuration("max-reconnect-delay", os.Getenv("WALLETMESH_MAX_RECONNECT_DELAY"), &cfg.MaxReconnectDelay); err != nil {
		return err
	}
	if err := s.setDuration("interval", os.Getenv("WALLETMESH_INTERVAL"), &cfg.Interval); err != nil {
		return err
	}

	if err := s.setCountFromString("max-reconnect-attempts", os.Getenv("WALLETMESH_MAX_RECONNECT_ATTEMPTS"), &cfg.MaxReconnectAttempts); err != nil {
		return err
	}
	s.setBoolFromString("auto-reconnect", os.Getenv("WALLETMESH_AUTO_RECONNECT"), &cfg.AutoReconnect)
	s.setBoolFromString("watch", os.Getenv("WALLETMESH_WATCH"), &cfg.Watch)

	return nil
}
