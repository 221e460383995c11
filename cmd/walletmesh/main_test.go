package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/bft-labs/walletmesh/internal/cliconfig"
	"github.com/bft-labs/walletmesh/pkg/discovery"
	"github.com/bft-labs/walletmesh/pkg/session"
)

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out, errOut bytes.Buffer
	a := &app{cfg: cliconfig.DefaultConfig(), out: &out, errOut: &errOut}
	root := newRootCmd(a)
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func isolate(t *testing.T) string {
	t.Helper()
	home := t.TempDir()
	t.Setenv("HOME", home)
	return home
}

func TestDiscover_BuiltInWallets(t *testing.T) {
	isolate(t)

	out, err := run(t, "discover", "--discovery-timeout", "50ms")
	if err != nil {
		t.Fatalf("discover error = %v", err)
	}
	var responses []discovery.Response
	if err := json.Unmarshal([]byte(out), &responses); err != nil {
		t.Fatalf("decode output: %v\n%s", err, out)
	}
	if len(responses) != 3 {
		t.Errorf("responses = %d, want 3", len(responses))
	}
}

func TestDiscover_ConfigFileRequirementAndResponders(t *testing.T) {
	home := isolate(t)
	cfgPath := filepath.Join(home, "walletmesh.toml")
	content := `
origin = "https://shop.example"
discovery_timeout = "50ms"

[[requirement.technologies]]
type = "evm"

[[responders]]
name = "Shop EVM"
rdns = "com.shop.evm"

[[responders.technologies]]
type = "evm"
interfaces = ["eip-1193"]

[[responders]]
name = "Shop Solana"
rdns = "com.shop.sol"

[[responders.technologies]]
type = "solana"
`
	if err := os.WriteFile(cfgPath, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	out, err := run(t, "discover", "--config", cfgPath)
	if err != nil {
		t.Fatalf("discover error = %v", err)
	}
	var responses []discovery.Response
	if err := json.Unmarshal([]byte(out), &responses); err != nil {
		t.Fatalf("decode output: %v\n%s", err, out)
	}
	if len(responses) != 1 || responses[0].RDNS != "com.shop.evm" {
		t.Errorf("responses = %+v, want only com.shop.evm", responses)
	}
}

func TestDiscover_MissingExplicitConfig(t *testing.T) {
	isolate(t)
	if _, err := run(t, "discover", "--config", "/nonexistent/walletmesh.toml"); err == nil {
		t.Error("expected error for missing config file")
	}
}

func TestConnect_StoresPreferredWallet(t *testing.T) {
	home := isolate(t)
	storageDir := filepath.Join(home, "prefs")

	out, err := run(t, "connect", "io.walletmesh.sim.evm",
		"--storage-dir", storageDir,
		"--discovery-timeout", "200ms",
		"--switch-chain", "eip155:10")
	if err != nil {
		t.Fatalf("connect error = %v", err)
	}
	var sess session.Session
	if err := json.Unmarshal([]byte(out), &sess); err != nil {
		t.Fatalf("decode output: %v\n%s", err, out)
	}
	if sess.WalletID != "io.walletmesh.sim.evm" || sess.Chain.ChainID != "eip155:10" {
		t.Errorf("session = %+v", sess)
	}

	out, err = run(t, "connect", "--storage-dir", storageDir, "--discovery-timeout", "200ms")
	if err != nil {
		t.Fatalf("connect to preferred wallet error = %v", err)
	}
	if !strings.Contains(out, `"walletId": "io.walletmesh.sim.evm"`) {
		t.Errorf("preferred wallet not used:\n%s", out)
	}
}

func TestConnect_UnknownWallet(t *testing.T) {
	home := isolate(t)
	_, err := run(t, "connect", "com.example.missing",
		"--storage-dir", filepath.Join(home, "prefs"),
		"--discovery-timeout", "50ms")
	if err == nil || !strings.Contains(err.Error(), "wallet_not_found") {
		t.Errorf("error = %v, want wallet_not_found", err)
	}
}

func TestSimulate_WatchRequiresPolicy(t *testing.T) {
	isolate(t)
	if _, err := run(t, "simulate", "--watch"); err == nil {
		t.Error("expected error for --watch without --policy")
	}
}
