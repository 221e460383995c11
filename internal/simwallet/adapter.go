package simwallet

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/bft-labs/walletmesh/pkg/connection"
	"github.com/bft-labs/walletmesh/pkg/session"
	"github.com/bft-labs/walletmesh/pkg/walleterr"
)

// ErrNotConnected is returned by provider calls on a dropped adapter.
var ErrNotConnected = errors.New("simwallet: wallet not connected")

// rpcError carries an EIP-1193 code so the connection manager classifies
// it like a real provider error.
type rpcError struct {
	code int
	msg  string
}

func (e *rpcError) Error() string { return e.msg }
func (e *rpcError) RPCCode() int  { return e.code }

// Adapter is a simulated wallet connection.
type Adapter struct {
	walletID  string
	chainType session.ChainType
	latency   time.Duration
	reject    bool
	addresses []string

	mu           sync.Mutex
	connected    bool
	chainID      string
	handshakes   int
	onDisconnect []func()
}

func newAdapter(walletID string, ct session.ChainType, latency time.Duration, reject bool) *Adapter {
	return &Adapter{
		walletID:  walletID,
		chainType: ct,
		latency:   latency,
		reject:    reject,
		addresses: []string{deriveAddress(ct, walletID)},
	}
}

// deriveAddress produces a stable per-wallet address.
func deriveAddress(ct session.ChainType, walletID string) string {
	id := uuid.NewSHA1(uuid.NameSpaceURL, []byte(string(ct)+":"+walletID))
	sum := sha256.Sum256(id[:])
	switch ct {
	case session.ChainEVM:
		return "0x" + hex.EncodeToString(sum[:20])
	case session.ChainAztec:
		return "0x" + hex.EncodeToString(sum[:])
	default:
		return hex.EncodeToString(sum[:])
	}
}

// WalletID returns the wallet this adapter belongs to.
func (a *Adapter) WalletID() string { return a.walletID }

// ChainType implements connection.Adapter.
func (a *Adapter) ChainType() session.ChainType { return a.chainType }

// Handshake implements connection.Adapter.
func (a *Adapter) Handshake(ctx context.Context, cfg connection.HandshakeConfig) (connection.HandshakeResult, error) {
	if a.latency > 0 {
		timer := time.NewTimer(a.latency)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return connection.HandshakeResult{}, ctx.Err()
		case <-timer.C:
		}
	} else if err := ctx.Err(); err != nil {
		return connection.HandshakeResult{}, err
	}

	if a.reject {
		return connection.HandshakeResult{}, &rpcError{code: walleterr.RPCUserRejected, msg: "user rejected the request"}
	}

	chainID := cfg.ChainID
	if chainID == "" {
		chainID = defaultChains[a.chainType][0]
	}
	if !a.supports(chainID) {
		return connection.HandshakeResult{}, &rpcError{
			code: walleterr.RPCUnrecognizedChain,
			msg:  fmt.Sprintf("unrecognized chain %s", chainID),
		}
	}

	a.mu.Lock()
	a.connected = true
	a.chainID = chainID
	a.handshakes++
	a.mu.Unlock()

	return connection.HandshakeResult{
		Addresses: append([]string(nil), a.addresses...),
		ChainID:   chainID,
		ChainName: chainNames[chainID],
		Provider:  a.provider(),
	}, nil
}

// SwitchChain implements connection.Adapter.
func (a *Adapter) SwitchChain(ctx context.Context, chainID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if !a.supports(chainID) {
		return &rpcError{code: walleterr.RPCUnrecognizedChain, msg: fmt.Sprintf("unrecognized chain %s", chainID)}
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	if !a.connected {
		return &rpcError{code: walleterr.RPCDisconnected, msg: "wallet disconnected"}
	}
	a.chainID = chainID
	return nil
}

// Disconnect implements connection.Adapter.
func (a *Adapter) Disconnect(ctx context.Context) error {
	a.mu.Lock()
	a.connected = false
	a.mu.Unlock()
	return nil
}

// OnDisconnect implements connection.Adapter.
func (a *Adapter) OnDisconnect(fn func()) {
	a.mu.Lock()
	a.onDisconnect = append(a.onDisconnect, fn)
	a.mu.Unlock()
}

// Drop simulates the wallet closing the connection on its own.
func (a *Adapter) Drop() {
	a.mu.Lock()
	a.connected = false
	fns := append([]func(){}, a.onDisconnect...)
	a.mu.Unlock()

	for _, fn := range fns {
		fn()
	}
}

// Connected reports whether the last handshake is still live.
func (a *Adapter) Connected() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.connected
}

// ChainID returns the chain the wallet is on.
func (a *Adapter) ChainID() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.chainID
}

// Handshakes counts successful handshakes, reconnects included.
func (a *Adapter) Handshakes() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.handshakes
}

func (a *Adapter) supports(chainID string) bool {
	for _, c := range defaultChains[a.chainType] {
		if c == chainID {
			return true
		}
	}
	return false
}

func (a *Adapter) provider() connection.Provider {
	switch a.chainType {
	case session.ChainSolana:
		return connection.SolanaProvider{Wallet: signer{a}}
	case session.ChainAztec:
		return connection.AztecProvider{Wallet: aztecRPC{a}}
	default:
		return connection.EVMProvider{Client: eip1193{a}}
	}
}

type eip1193 struct{ a *Adapter }

func (p eip1193) Request(ctx context.Context, method string, params []any) (json.RawMessage, error) {
	if !p.a.Connected() {
		return nil, ErrNotConnected
	}
	switch method {
	case "eth_accounts", "eth_requestAccounts":
		return json.Marshal(p.a.addresses)
	case "eth_chainId":
		return json.Marshal(p.a.ChainID())
	default:
		return nil, &rpcError{code: walleterr.RPCUnsupportedMethod, msg: "unsupported method " + method}
	}
}

type signer struct{ a *Adapter }

func (s signer) SignMessage(ctx context.Context, message []byte) ([]byte, error) {
	return s.sign(message)
}

func (s signer) SignTransaction(ctx context.Context, tx []byte) ([]byte, error) {
	return s.sign(tx)
}

func (s signer) sign(payload []byte) ([]byte, error) {
	if !s.a.Connected() {
		return nil, ErrNotConnected
	}
	sum := sha256.Sum256(append([]byte(s.a.addresses[0]), payload...))
	return sum[:], nil
}

type aztecRPC struct{ a *Adapter }

func (r aztecRPC) Call(ctx context.Context, method string, params json.RawMessage) (json.RawMessage, error) {
	if !r.a.Connected() {
		return nil, ErrNotConnected
	}
	switch method {
	case "aztec_getAddress":
		return json.Marshal(r.a.addresses[0])
	case "aztec_getChainId":
		return json.Marshal(r.a.ChainID())
	default:
		return nil, &rpcError{code: walleterr.RPCUnsupportedMethod, msg: "unsupported method " + method}
	}
}
