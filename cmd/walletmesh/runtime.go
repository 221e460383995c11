package main

import (
	"fmt"

	"github.com/bft-labs/walletmesh/internal/cliconfig"
	"github.com/bft-labs/walletmesh/internal/simwallet"
	"github.com/bft-labs/walletmesh/pkg/connection"
	"github.com/bft-labs/walletmesh/pkg/discovery"
	"github.com/bft-labs/walletmesh/pkg/eventbus"
	"github.com/bft-labs/walletmesh/pkg/log"
	"github.com/bft-labs/walletmesh/pkg/storage"
	"github.com/bft-labs/walletmesh/plugins/history"
	"github.com/bft-labs/walletmesh/plugins/policywatcher"
)

// meshRuntime is one in-process discovery bus with its simulated wallets
// and the connection manager driving them.
type meshRuntime struct {
	bus        *eventbus.Bus
	wallets    []discovery.ResponderInfo
	responders []*discovery.Responder
	requester  *discovery.Requester
	network    *simwallet.Network
	manager    *connection.Manager
	history    *history.Recorder
	policy     *policywatcher.Plugin
}

func newMeshRuntime(cfg cliconfig.Config, logger log.Logger) (*meshRuntime, error) {
	rt := &meshRuntime{
		bus:     eventbus.New(logger),
		wallets: cfg.Responders,
		history: history.New(0),
	}
	if len(rt.wallets) == 0 {
		rt.wallets = simwallet.Wallets()
	}
	rt.network = simwallet.NewNetwork(simwallet.Config{Wallets: rt.wallets})

	policy := cfg.Policy
	if cfg.PolicyPath != "" && !cfg.Watch {
		p, err := policywatcher.LoadPolicy(cfg.PolicyPath, policy)
		if err != nil {
			return nil, err
		}
		policy = p
	}

	for _, info := range rt.wallets {
		r := discovery.NewResponder(rt.bus, discovery.ResponderConfig{Origin: cfg.Origin, Logger: logger})
		if err := r.Start(info, policy); err != nil {
			rt.Close()
			return nil, fmt.Errorf("start responder %s: %w", info.RDNS, err)
		}
		rt.responders = append(rt.responders, r)
	}

	rt.requester = discovery.NewRequester(rt.bus, discovery.RequesterConfig{
		Origin:    cfg.Origin,
		Initiator: discovery.InitiatorInfo{Name: cfg.InitiatorName, URL: cfg.Origin},
		Logger:    logger,
	})

	opts := []connection.Option{
		connection.WithLogger(logger),
		connection.WithStorage(openStorage(cfg.StorageDir)),
		history.WithHistory(rt.history),
	}
	if cfg.Watch {
		pcfg := policywatcher.DefaultConfig()
		pcfg.Path = cfg.PolicyPath
		pcfg.Base = &cfg.Policy
		for _, r := range rt.responders {
			pcfg.Targets = append(pcfg.Targets, r)
		}
		rt.policy = policywatcher.New(pcfg)
		opts = append(opts, connection.WithPlugin(rt.policy))
	}

	mgr, err := connection.New(rt.requester, rt.network.Factory, cfg.ConnectionConfig(), opts...)
	if err != nil {
		rt.Close()
		return nil, fmt.Errorf("create connection manager: %w", err)
	}
	rt.manager = mgr
	return rt, nil
}

func openStorage(dir string) storage.Storage {
	if dir == "" {
		dir = cliconfig.DefaultStorageDir()
	}
	if dir == "" {
		return storage.NewMemoryStorage()
	}
	return storage.NewFileStorage(dir)
}

// Close shuts the manager down and detaches every wallet from the bus.
func (rt *meshRuntime) Close() error {
	var err error
	if rt.manager != nil {
		err = rt.manager.Close()
	}
	if rt.requester != nil {
		rt.requester.Close()
	}
	for _, r := range rt.responders {
		r.Stop()
	}
	return err
}
