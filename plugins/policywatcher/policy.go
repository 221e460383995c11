package policywatcher

import (
	"fmt"
	"os"
	"time"

	"github.com/pelletier/go-toml/v2"

	"github.com/bft-labs/walletmesh/pkg/discovery"
)

// PolicyFile is the TOML form of a discovery security policy. Omitted
// fields keep the value of the base policy.
//
//	require_https = true
//	allow_localhost = false
//
//	[rate_limit]
//	max_requests = 10
//	window = "1m"
type PolicyFile struct {
	RequireHTTPS   *bool         `toml:"require_https"`
	AllowLocalhost *bool         `toml:"allow_localhost"`
	RateLimit      RateLimitFile `toml:"rate_limit"`
}

// RateLimitFile is the [rate_limit] table.
type RateLimitFile struct {
	MaxRequests *int   `toml:"max_requests"`
	Window      string `toml:"window"`
}

// Apply overlays f on base.
func (f PolicyFile) Apply(base discovery.SecurityPolicy) (discovery.SecurityPolicy, error) {
	p := base
	if f.RequireHTTPS != nil {
		p.RequireHTTPS = *f.RequireHTTPS
	}
	if f.AllowLocalhost != nil {
		p.AllowLocalhost = *f.AllowLocalhost
	}
	if f.RateLimit.MaxRequests != nil {
		if *f.RateLimit.MaxRequests < 0 {
			return base, fmt.Errorf("rate_limit.max_requests must not be negative")
		}
		p.RateLimit.MaxRequests = *f.RateLimit.MaxRequests
	}
	if f.RateLimit.Window != "" {
		d, err := time.ParseDuration(f.RateLimit.Window)
		if err != nil {
			return base, fmt.Errorf("invalid rate_limit.window %q: %w", f.RateLimit.Window, err)
		}
		if d < 0 {
			return base, fmt.Errorf("rate_limit.window must not be negative")
		}
		p.RateLimit.Window = d
	}
	return p, nil
}

// ParsePolicy decodes TOML data and overlays it on base.
func ParsePolicy(data []byte, base discovery.SecurityPolicy) (discovery.SecurityPolicy, error) {
	var f PolicyFile
	if err := toml.Unmarshal(data, &f); err != nil {
		return base, fmt.Errorf("parse policy: %w", err)
	}
	return f.Apply(base)
}

// LoadPolicy reads a policy file and overlays it on base.
func LoadPolicy(path string, base discovery.SecurityPolicy) (discovery.SecurityPolicy, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return base, fmt.Errorf("read policy file %s: %w", path, err)
	}
	return ParsePolicy(data, base)
}
