// Package policywatcher hot-reloads the discovery security policy from a
// TOML file. When the file is written, the new policy is parsed and pushed
// to every registered responder; a file that fails to parse leaves the
// previous policy in force.
package policywatcher

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/bft-labs/walletmesh/pkg/connection"
	"github.com/bft-labs/walletmesh/pkg/discovery"
	"github.com/bft-labs/walletmesh/pkg/log"
)

// ErrMissingPath is returned by Initialize when no policy file is configured.
var ErrMissingPath = errors.New("policywatcher: policy file path required")

// PolicyUpdater receives reloaded policies. *discovery.Responder satisfies it.
type PolicyUpdater interface {
	UpdatePolicy(policy discovery.SecurityPolicy)
}

// Config holds configuration options for the policy watcher plugin.
type Config struct {
	// Path is the TOML policy file to watch.
	Path string

	// DebounceDelay is the delay to wait after a file change before reloading.
	// Default: 100 milliseconds
	DebounceDelay time.Duration

	// Base is overlaid by the file. Default: discovery.DefaultSecurityPolicy().
	Base *discovery.SecurityPolicy

	// Targets receive every successfully parsed policy.
	Targets []PolicyUpdater
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		DebounceDelay: 100 * time.Millisecond,
	}
}

// Plugin watches a policy file and applies it to its targets.
type Plugin struct {
	mu sync.Mutex

	path          string
	debounceDelay time.Duration
	base          discovery.SecurityPolicy
	targets       []PolicyUpdater
	current       discovery.SecurityPolicy
	reloads       int

	logger   log.Logger
	cancel   context.CancelFunc
	wg       sync.WaitGroup
	debounce *time.Timer
}

// New creates a new policy watcher plugin with the given configuration.
func New(cfg Config) *Plugin {
	if cfg.DebounceDelay <= 0 {
		cfg.DebounceDelay = 100 * time.Millisecond
	}
	base := discovery.DefaultSecurityPolicy()
	if cfg.Base != nil {
		base = *cfg.Base
	}
	return &Plugin{
		path:          cfg.Path,
		debounceDelay: cfg.DebounceDelay,
		base:          base,
		targets:       append([]PolicyUpdater(nil), cfg.Targets...),
		current:       base,
		logger:        log.NoopLogger{},
	}
}

// WithPolicyWatcher returns a connection Option attaching a policy watcher.
func WithPolicyWatcher(cfg Config) connection.Option {
	return connection.WithPlugin(New(cfg))
}

// Name returns the plugin identifier.
func (p *Plugin) Name() string {
	return "policywatcher"
}

// AddTarget registers another policy receiver. It is sent the current
// policy immediately.
func (p *Plugin) AddTarget(t PolicyUpdater) {
	p.mu.Lock()
	p.targets = append(p.targets, t)
	current := p.current
	p.mu.Unlock()
	t.UpdatePolicy(current)
}

// Current returns the policy in force.
func (p *Plugin) Current() discovery.SecurityPolicy {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.current
}

// Reloads returns how many times a policy was successfully applied.
func (p *Plugin) Reloads() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.reloads
}

// Initialize loads the policy once and starts watching its directory.
func (p *Plugin) Initialize(ctx context.Context, cfg connection.PluginConfig) error {
	p.mu.Lock()
	p.logger = log.With(cfg.Logger, log.String("plugin", "policywatcher"))
	p.mu.Unlock()

	if p.path == "" {
		return ErrMissingPath
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	if err := watcher.Add(filepath.Dir(p.path)); err != nil {
		_ = watcher.Close()
		return err
	}

	p.reload()

	watchCtx, cancel := context.WithCancel(context.Background())
	p.cancel = cancel

	p.wg.Add(1)
	go p.watchLoop(watchCtx, watcher)

	p.logger.Info("policy watcher initialized", log.String("path", p.path))
	return nil
}

// Shutdown stops the watcher.
func (p *Plugin) Shutdown(ctx context.Context) error {
	if p.cancel != nil {
		p.cancel()
	}
	p.wg.Wait()

	p.mu.Lock()
	if p.debounce != nil {
		p.debounce.Stop()
	}
	p.mu.Unlock()
	return nil
}

func (p *Plugin) watchLoop(ctx context.Context, watcher *fsnotify.Watcher) {
	defer p.wg.Done()
	defer watcher.Close()

	name := filepath.Base(p.path)
	for {
		select {
		case <-ctx.Done():
			return

		case event, ok := <-watcher.Events:
			if !ok {
				return
			}
			if filepath.Base(event.Name) != name {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			p.debounceReload(ctx)

		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			p.logger.Error("policy watcher error", log.Err(err))
		}
	}
}

func (p *Plugin) debounceReload(ctx context.Context) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.debounce != nil {
		p.debounce.Stop()
	}
	p.debounce = time.AfterFunc(p.debounceDelay, func() {
		if ctx.Err() != nil {
			return
		}
		p.reload()
	})
}

// reload parses the file and pushes the result to every target.
func (p *Plugin) reload() {
	policy, err := LoadPolicy(p.path, p.base)
	if err != nil {
		p.logger.Warn("policy reload failed, keeping previous policy",
			log.String("path", p.path),
			log.Err(err))
		return
	}

	p.mu.Lock()
	p.current = policy
	p.reloads++
	targets := append([]PolicyUpdater(nil), p.targets...)
	p.mu.Unlock()

	for _, t := range targets {
		t.UpdatePolicy(policy)
	}
	p.logger.Info("security policy applied",
		log.Bool("require_https", policy.RequireHTTPS),
		log.Bool("allow_localhost", policy.AllowLocalhost),
		log.Int("max_requests", policy.RateLimit.MaxRequests),
		log.Duration("window", policy.RateLimit.Window))
}
