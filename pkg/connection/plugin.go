package connection

import (
	"context"

	"github.com/bft-labs/walletmesh/pkg/log"
	"github.com/bft-labs/walletmesh/pkg/session"
	"github.com/bft-labs/walletmesh/pkg/tracker"
)

// Plugin is an optional component attached to a Manager. Plugins are
// initialized in registration order by New and shut down in reverse order
// by Close.
type Plugin interface {
	Name() string
	Initialize(ctx context.Context, cfg PluginConfig) error
	Shutdown(ctx context.Context) error
}

// PluginConfig is what a plugin gets to work with.
type PluginConfig struct {
	Logger   log.Logger
	Registry *session.Registry
	Tracker  *tracker.Tracker
	Events   EventSource
}

// BasePlugin implements Plugin with no-ops.
type BasePlugin struct{}

func (BasePlugin) Name() string                                          { return "base" }
func (BasePlugin) Initialize(ctx context.Context, cfg PluginConfig) error { return nil }
func (BasePlugin) Shutdown(ctx context.Context) error                     { return nil }
