package connection

import (
	"context"
	"encoding/json"

	"github.com/bft-labs/walletmesh/pkg/session"
	"github.com/bft-labs/walletmesh/pkg/walleterr"
)

// Provider is the chain-specific handle returned by a handshake. It is a
// closed set: EVMProvider, SolanaProvider or AztecProvider. Callers select
// on the concrete type instead of probing for methods.
type Provider interface {
	ChainType() session.ChainType
	provider()
}

// EIP1193 is the request interface of an EVM wallet.
type EIP1193 interface {
	Request(ctx context.Context, method string, params []any) (json.RawMessage, error)
}

// SolanaWallet is the signing interface of a Solana wallet.
type SolanaWallet interface {
	SignMessage(ctx context.Context, message []byte) ([]byte, error)
	SignTransaction(ctx context.Context, tx []byte) ([]byte, error)
}

// AztecWallet is the RPC interface of an Aztec wallet.
type AztecWallet interface {
	Call(ctx context.Context, method string, params json.RawMessage) (json.RawMessage, error)
}

// EVMProvider wraps an EIP-1193 client.
type EVMProvider struct {
	Client EIP1193
}

// SolanaProvider wraps a Solana wallet-standard client.
type SolanaProvider struct {
	Wallet SolanaWallet
}

// AztecProvider wraps an Aztec wallet client.
type AztecProvider struct {
	Wallet AztecWallet
}

func (EVMProvider) ChainType() session.ChainType    { return session.ChainEVM }
func (SolanaProvider) ChainType() session.ChainType { return session.ChainSolana }
func (AztecProvider) ChainType() session.ChainType  { return session.ChainAztec }

func (EVMProvider) provider()    {}
func (SolanaProvider) provider() {}
func (AztecProvider) provider()  {}

// checkProvider rejects a handshake whose provider does not belong to the
// adapter's declared chain type.
func checkProvider(want session.ChainType, p Provider) error {
	if p == nil {
		return walleterr.Validation(walleterr.CodeInvalidParams, "adapter returned no provider",
			walleterr.WithData("chainType", string(want)))
	}
	if got := p.ChainType(); got != want {
		return walleterr.Validation(walleterr.CodeInvalidParams, "provider chain type does not match adapter",
			walleterr.WithData("expected", string(want)),
			walleterr.WithData("actual", string(got)))
	}
	return nil
}
