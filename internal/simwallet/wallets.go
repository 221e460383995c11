// Package simwallet provides in-process wallets for the walletmesh CLI.
// Adapters answer handshakes after a configurable latency and can drop
// their connection on demand to exercise the reconnect path.
package simwallet

import (
	"github.com/bft-labs/walletmesh/pkg/discovery"
	"github.com/bft-labs/walletmesh/pkg/session"
)

// Default chains per technology, used when a handshake names none.
var defaultChains = map[session.ChainType][]string{
	session.ChainEVM:    {"eip155:1", "eip155:10", "eip155:137"},
	session.ChainSolana: {"solana:mainnet", "solana:devnet"},
	session.ChainAztec:  {"aztec:mainnet"},
}

var chainNames = map[string]string{
	"eip155:1":       "Ethereum",
	"eip155:10":      "Optimism",
	"eip155:137":     "Polygon",
	"solana:mainnet": "Solana",
	"solana:devnet":  "Solana Devnet",
	"aztec:mainnet":  "Aztec",
}

// Wallets returns the built-in simulated wallets, one per technology.
func Wallets() []discovery.ResponderInfo {
	return []discovery.ResponderInfo{
		{
			Name:    "Sim EVM Wallet",
			RDNS:    "io.walletmesh.sim.evm",
			Version: "1.0.0",
			TransportConfig: discovery.TransportConfig{
				Type:        "extension",
				ExtensionID: "sim-evm",
			},
			Technologies: []discovery.Technology{{
				Type:       discovery.TechnologyEVM,
				Interfaces: []string{"eip-1193", "eip-6963"},
				Features:   []string{"eip-712"},
			}},
			Features: []string{"account-management", "transaction-signing", "message-signing"},
		},
		{
			Name:    "Sim Solana Wallet",
			RDNS:    "io.walletmesh.sim.solana",
			Version: "1.0.0",
			TransportConfig: discovery.TransportConfig{
				Type:     "popup",
				PopupURL: "https://sim.walletmesh.local/solana",
			},
			Technologies: []discovery.Technology{{
				Type:       discovery.TechnologySolana,
				Interfaces: []string{"solana-wallet-standard"},
			}},
			Features: []string{"account-management", "transaction-signing"},
		},
		{
			Name:    "Sim Aztec Wallet",
			RDNS:    "io.walletmesh.sim.aztec",
			Version: "1.0.0",
			TransportConfig: discovery.TransportConfig{
				Type:   "postMessage",
				Origin: "https://sim.walletmesh.local",
			},
			Technologies: []discovery.Technology{{
				Type:       discovery.TechnologyAztec,
				Interfaces: []string{"aztec-wallet-api-v1"},
			}},
			Features: []string{"account-management", "private-transactions"},
		},
	}
}

// ChainTypeOf returns the first supported chain type among techs.
func ChainTypeOf(techs []discovery.Technology) (session.ChainType, bool) {
	for _, t := range techs {
		ct := session.ChainType(t.Type)
		if _, ok := defaultChains[ct]; ok {
			return ct, true
		}
	}
	return "", false
}
