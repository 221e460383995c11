package connection

import (
	"context"
	"time"

	"github.com/bft-labs/walletmesh/pkg/discovery"
	"github.com/bft-labs/walletmesh/pkg/session"
)

// HandshakeConfig is passed to Adapter.Handshake.
type HandshakeConfig struct {
	WalletID  string
	ChainID   string
	Transport discovery.TransportConfig

	// Reconnect is set when the handshake re-establishes a dropped session.
	Reconnect bool
}

// HandshakeResult is the outcome of a successful handshake.
type HandshakeResult struct {
	Addresses []string
	ChainID   string
	ChainName string
	Provider  Provider
}

// Adapter performs the wallet-specific part of a connection. The manager
// treats it as opaque and never inspects wallet wire formats.
type Adapter interface {
	// ChainType is the technology the adapter speaks. It decides which
	// Provider variant the handshake must return.
	ChainType() session.ChainType

	// Handshake connects to the wallet. It must honor ctx cancellation.
	Handshake(ctx context.Context, cfg HandshakeConfig) (HandshakeResult, error)

	// SwitchChain asks the wallet to move to chainID. An error means the
	// wallet did not switch.
	SwitchChain(ctx context.Context, chainID string) error

	// Disconnect closes the wallet connection.
	Disconnect(ctx context.Context) error

	// OnDisconnect registers fn to be called when the wallet drops the
	// connection on its own.
	OnDisconnect(fn func())
}

// AdapterFactory builds the adapter for a discovered wallet.
type AdapterFactory func(resp discovery.Response) (Adapter, error)

// Discoverer finds wallets on the discovery bus. *discovery.Requester
// satisfies it.
type Discoverer interface {
	Broadcast(required discovery.CapabilityRequirement) string
	WaitFor(ctx context.Context, sessionID string, window time.Duration, match func(discovery.Response) bool) (discovery.Response, bool)
}
