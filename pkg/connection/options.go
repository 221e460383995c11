package connection

import (
	"time"

	"github.com/bft-labs/walletmesh/pkg/log"
	"github.com/bft-labs/walletmesh/pkg/session"
	"github.com/bft-labs/walletmesh/pkg/storage"
	"github.com/bft-labs/walletmesh/pkg/tracker"
)

// Option configures optional behavior of a Manager.
type Option func(*options)

type options struct {
	logger       log.Logger
	store        storage.Storage
	eventHandler EventHandler
	plugins      []Plugin
	registry     *session.Registry
	tracker      *tracker.Tracker
	now          func() time.Time
	seed         int64
}

func defaultOptions() options {
	return options{
		logger: log.NoopLogger{},
		now:    time.Now,
		seed:   time.Now().UnixNano(),
	}
}

// WithLogger sets a custom logger for structured logging.
// If not provided, a no-op logger is used (no output).
func WithLogger(logger log.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// WithStorage sets the preference store. Without one, preferences are kept
// in memory for the lifetime of the Manager.
func WithStorage(store storage.Storage) Option {
	return func(o *options) {
		o.store = store
	}
}

// WithEventHandler sets a handler for manager events.
// Further handlers can be attached later with AddEventHandler.
func WithEventHandler(handler EventHandler) Option {
	return func(o *options) {
		o.eventHandler = handler
	}
}

// WithPlugin registers a plugin to be initialized by New.
// Plugins are initialized in registration order and shutdown in reverse order.
func WithPlugin(plugin Plugin) Option {
	return func(o *options) {
		o.plugins = append(o.plugins, plugin)
	}
}

// WithRegistry uses an existing session registry. Its termination hook is
// replaced with the manager's tracker.
func WithRegistry(r *session.Registry) Option {
	return func(o *options) {
		o.registry = r
	}
}

// WithTracker uses an existing transaction tracker.
func WithTracker(t *tracker.Tracker) Option {
	return func(o *options) {
		o.tracker = t
	}
}

// WithClock overrides time.Now for event timestamps.
func WithClock(now func() time.Time) Option {
	return func(o *options) {
		o.now = now
	}
}

// WithJitterSeed fixes the reconnect jitter source.
func WithJitterSeed(seed int64) Option {
	return func(o *options) {
		o.seed = seed
	}
}
