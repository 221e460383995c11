package cliconfig

import (
	"testing"
	"time"
)

func TestApplyEnvConfig(t *testing.T) {
	tests := []struct {
		name     string
		envVars  map[string]string
		changed  map[string]bool
		initial  Config
		expected Config
		wantErr  bool
	}{
		{
			name: "applies all valid env vars",
			envVars: map[string]string{
				"WALLETMESH_ORIGIN":                 "https://env.example",
				"WALLETMESH_CHAIN_ID":               "eip155:10",
				"WALLETMESH_DISCOVERY_TIMEOUT":      "2s",
				"WALLETMESH_HANDSHAKE_TIMEOUT":      "1m",
				"WALLETMESH_MAX_RECONNECT_ATTEMPTS": "0",
				"WALLETMESH_BACKOFF":                "fixed",
				"WALLETMESH_AUTO_RECONNECT":         "1",
				"WALLETMESH_POLICY_FILE":            "/env/policy.toml",
				"WALLETMESH_WATCH":                  "true",
			},
			changed: map[string]bool{},
			initial: Config{MaxReconnectAttempts: 3},
			expected: Config{
				Origin:               "https://env.example",
				ChainID:              "eip155:10",
				DiscoveryTimeout:     2 * time.Second,
				HandshakeTimeout:     time.Minute,
				MaxReconnectAttempts: 0,
				Backoff:              "fixed",
				AutoReconnect:        true,
				PolicyPath:           "/env/policy.toml",
				Watch:                true,
			},
		},
		{
			name: "respects changed flags",
			envVars: map[string]string{
				"WALLETMESH_ORIGIN":   "https://env.example",
				"WALLETMESH_CHAIN_ID": "eip155:10",
			},
			changed: map[string]bool{"origin": true},
			initial: Config{Origin: "https://flag.example"},
			expected: Config{
				Origin:  "https://flag.example",
				ChainID: "eip155:10",
			},
		},
		{
			name:    "returns error for invalid duration",
			envVars: map[string]string{"WALLETMESH_INTERVAL": "soon"},
			changed: map[string]bool{},
			wantErr: true,
		},
		{
			name:    "returns error for invalid attempts",
			envVars: map[string]string{"WALLETMESH_MAX_RECONNECT_ATTEMPTS": "many"},
			changed: map[string]bool{},
			wantErr: true,
		},
		{
			name:    "returns error for negative attempts",
			envVars: map[string]string{"WALLETMESH_MAX_RECONNECT_ATTEMPTS": "-2"},
			changed: map[string]bool{},
			wantErr: true,
		},
		{
			name:     "false-like bool values",
			envVars:  map[string]string{"WALLETMESH_AUTO_RECONNECT": "no"},
			changed:  map[string]bool{},
			initial:  Config{AutoReconnect: true},
			expected: Config{AutoReconnect: false},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.envVars {
				t.Setenv(k, v)
			}

			cfg := tt.initial
			err := ApplyEnvConfig(&cfg, tt.changed)

			if tt.wantErr {
				if err == nil {
					t.Error("ApplyEnvConfig() expected error but got nil")
				}
				return
			}
			if err != nil {
				t.Fatalf("ApplyEnvConfig() unexpected error: %v", err)
			}

			if cfg.Origin != tt.expected.Origin {
				t.Errorf("Origin = %v, want %v", cfg.Origin, tt.expected.Origin)
			}
			if cfg.ChainID != tt.expected.ChainID {
				t.Errorf("ChainID = %v, want %v", cfg.ChainID, tt.expected.ChainID)
			}
			if cfg.DiscoveryTimeout != tt.expected.DiscoveryTimeout {
				t.Errorf("DiscoveryTimeout = %v, want %v", cfg.DiscoveryTimeout, tt.expected.DiscoveryTimeout)
			}
			if cfg.HandshakeTimeout != tt.expected.HandshakeTimeout {
				t.Errorf("HandshakeTimeout = %v, want %v", cfg.HandshakeTimeout, tt.expected.HandshakeTimeout)
			}
			if cfg.MaxReconnectAttempts != tt.expected.MaxReconnectAttempts {
				t.Errorf("MaxReconnectAttempts = %v, want %v", cfg.MaxReconnectAttempts, tt.expected.MaxReconnectAttempts)
			}
			if cfg.Backoff != tt.expected.Backoff {
				t.Errorf("Backoff = %v, want %v", cfg.Backoff, tt.expected.Backoff)
			}
			if cfg.AutoReconnect != tt.expected.AutoReconnect {
				t.Errorf("AutoReconnect = %v, want %v", cfg.AutoReconnect, tt.expected.AutoReconnect)
			}
			if cfg.PolicyPath != tt.expected.PolicyPath {
				t.Errorf("PolicyPath = %v, want %v", cfg.PolicyPath, tt.expected.PolicyPath)
			}
			if cfg.Watch != tt.expected.Watch {
				t.Errorf("Watch = %v, want %v", cfg.Watch, tt.expected.Watch)
			}
		})
	}
}

// Integration test: precedence order (CLI > Env > File > defaults)
func TestConfigPrecedence(t *testing.T) {
	attempts := 5
	fileConf := FileConfig{
		Origin:               "https://file.example",
		ChainID:              "eip155:1",
		LogLevel:             "debug",
		MaxReconnectAttempts: &attempts,
	}

	t.Setenv("WALLETMESH_ORIGIN", "https://env.example")
	t.Setenv("WALLETMESH_CHAIN_ID", "eip155:137")

	changed := map[string]bool{"origin": true}
	cfg := DefaultConfig()
	cfg.Origin = "https://cli.example"

	if err := ApplyFileConfig(&cfg, fileConf, changed); err != nil {
		t.Fatalf("ApplyFileConfig failed: %v", err)
	}
	if err := ApplyEnvConfig(&cfg, changed); err != nil {
		t.Fatalf("ApplyEnvConfig failed: %v", err)
	}

	if cfg.Origin != "https://cli.example" {
		t.Errorf("Origin = %v, want https://cli.example (CLI should win)", cfg.Origin)
	}
	if cfg.ChainID != "eip155:137" {
		t.Errorf("ChainID = %v, want eip155:137 (env should override file)", cfg.ChainID)
	}
	if cfg.LogLevel != "debug" {
		t.Errorf("LogLevel = %v, want debug (file should set)", cfg.LogLevel)
	}
	if cfg.MaxReconnectAttempts != 5 {
		t.Errorf("MaxReconnectAttempts = %v, want 5 (file should set)", cfg.MaxReconnectAttempts)
	}
	if cfg.HandshakeTimeout != DefaultConfig().HandshakeTimeout {
		t.Errorf("HandshakeTimeout = %v, want default", cfg.HandshakeTimeout)
	}
}
