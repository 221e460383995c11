package simwallet

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/bft-labs/walletmesh/pkg/connection"
	"github.com/bft-labs/walletmesh/pkg/discovery"
	"github.com/bft-labs/walletmesh/pkg/session"
)

// Config configures a Network.
type Config struct {
	// Latency delays every handshake.
	Latency time.Duration

	// Reject lists wallet ids whose users reject every connection.
	Reject []string

	// Wallets are the responders the network hosts. A response that
	// matched no technology falls back to what its wallet advertises.
	// Defaults to Wallets().
	Wallets []discovery.ResponderInfo
}

// Network hands out simulated adapters and keeps them addressable so
// callers can drop connections later.
type Network struct {
	cfg    Config
	reject map[string]bool

	mu       sync.Mutex
	adapters map[string]*Adapter
}

// NewNetwork creates an empty network.
func NewNetwork(cfg Config) *Network {
	reject := make(map[string]bool, len(cfg.Reject))
	for _, id := range cfg.Reject {
		reject[id] = true
	}
	if len(cfg.Wallets) == 0 {
		cfg.Wallets = Wallets()
	}
	return &Network{cfg: cfg, reject: reject, adapters: make(map[string]*Adapter)}
}

// Factory builds the adapter for a discovery response. It matches the
// connection.AdapterFactory signature.
func (n *Network) Factory(resp discovery.Response) (connection.Adapter, error) {
	ct, ok := ChainTypeOf(resp.Matched.Required.Technologies)
	if !ok && len(resp.Matched.Required.Technologies) == 0 {
		ct, ok = n.advertised(resp)
	}
	if !ok {
		return nil, fmt.Errorf("simwallet: %s matched no supported technology", resp.RDNS)
	}
	walletID := resp.RDNS
	if walletID == "" {
		walletID = resp.ResponderID
	}
	a := newAdapter(walletID, ct, n.cfg.Latency, n.reject[walletID] || n.reject[resp.ResponderID])

	n.mu.Lock()
	n.adapters[walletID] = a
	n.mu.Unlock()
	return a, nil
}

// advertised resolves the chain type of a response that carried no matched
// technology, as happens for an empty requirement.
func (n *Network) advertised(resp discovery.Response) (session.ChainType, bool) {
	for _, info := range n.cfg.Wallets {
		if (resp.RDNS != "" && info.RDNS == resp.RDNS) || (resp.ResponderID != "" && info.UUID == resp.ResponderID) {
			return ChainTypeOf(info.Technologies)
		}
	}
	return "", false
}

// Adapter returns the most recent adapter built for walletID.
func (n *Network) Adapter(walletID string) (*Adapter, bool) {
	n.mu.Lock()
	defer n.mu.Unlock()
	a, ok := n.adapters[walletID]
	return a, ok
}

// Connected lists the wallet ids with a live connection, sorted.
func (n *Network) Connected() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	var ids []string
	for id, a := range n.adapters {
		if a.Connected() {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids
}
