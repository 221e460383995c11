package main

import (
	"fmt"
	"io"
	"os"
	"runtime"
	"runtime/debug"
	"strings"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	pflag "github.com/spf13/pflag"

	"github.com/bft-labs/walletmesh/internal/cliconfig"
)

const helpDescription = `
Discover wallets, negotiate capabilities and drive connection lifecycles
against simulated wallets on an in-process discovery bus.

Highlights:
  - Capability matching with origin, HTTPS and rate-limit enforcement.
  - One active session at a time, reconnect with backoff, typed errors.
  - Configure via file, env (WALLETMESH_*), or flags.
`

var exampleUsage = strings.TrimSpace(`
  walletmesh discover
  walletmesh connect io.walletmesh.sim.evm --chain-id eip155:10
  walletmesh simulate --policy ./policy.toml --watch
`)

func getVersion() string {
	if info, ok := debug.ReadBuildInfo(); ok && info.Main.Version != "" {
		return info.Main.Version
	}
	return "dev"
}

// app carries the resolved configuration shared by all subcommands.
type app struct {
	cfg     cliconfig.Config
	cfgPath string
	out     io.Writer
	errOut  io.Writer
	logger  zerolog.Logger
}

func main() {
	a := &app{cfg: cliconfig.DefaultConfig(), out: os.Stdout, errOut: os.Stderr}
	root := newRootCmd(a)
	if err := root.Execute(); err != nil {
		a.logger.Error().Err(err).Msg("walletmesh")
		os.Exit(1)
	}
}

func newRootCmd(a *app) *cobra.Command {
	a.logger = cliconfig.Logger(a.errOut, a.cfg.LogLevel)

	root := &cobra.Command{
		Use:           "walletmesh",
		Short:         "Wallet discovery and connection management",
		Long:          strings.TrimSpace(helpDescription),
		Example:       exampleUsage,
		Version:       fmt.Sprintf("%s %s/%s", getVersion(), runtime.GOOS, runtime.GOARCH),
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.load(cmd)
		},
	}
	root.SetOut(a.out)
	root.SetErr(a.errOut)

	f := root.PersistentFlags()
	f.StringVar(&a.cfgPath, "config", "", "path to config file (default: $HOME/.walletmesh/config.toml)")
	f.StringVar(&a.cfg.Origin, "origin", a.cfg.Origin, "page origin shared by the dApp and the simulated wallets")
	f.StringVar(&a.cfg.InitiatorName, "initiator", a.cfg.InitiatorName, "dApp name announced in discovery requests")
	f.StringVar(&a.cfg.ChainID, "chain-id", a.cfg.ChainID, "chain to request during the handshake")
	f.DurationVar(&a.cfg.DiscoveryTimeout, "discovery-timeout", a.cfg.DiscoveryTimeout, "how long to collect discovery responses")
	f.DurationVar(&a.cfg.HandshakeTimeout, "handshake-timeout", a.cfg.HandshakeTimeout, "wallet handshake timeout")
	f.BoolVar(&a.cfg.AutoReconnect, "auto-reconnect", a.cfg.AutoReconnect, "reconnect when a wallet drops the connection")
	f.IntVar(&a.cfg.MaxReconnectAttempts, "max-reconnect-attempts", a.cfg.MaxReconnectAttempts, "reconnect attempts before giving up (0 disables)")
	f.StringVar(&a.cfg.Backoff, "backoff", a.cfg.Backoff, "reconnect backoff: fixed or exponential")
	f.DurationVar(&a.cfg.ReconnectDelay, "reconnect-delay", a.cfg.ReconnectDelay, "initial reconnect delay")
	f.DurationVar(&a.cfg.MaxReconnectDelay, "max-reconnect-delay", a.cfg.MaxReconnectDelay, "reconnect delay ceiling")
	f.StringVar(&a.cfg.PolicyPath, "policy", a.cfg.PolicyPath, "TOML security policy file")
	f.StringVar(&a.cfg.StorageDir, "storage-dir", a.cfg.StorageDir, "preference directory (default: $HOME/.walletmesh)")
	f.StringVar(&a.cfg.LogLevel, "log-level", a.cfg.LogLevel, "log level: debug, info, warn or error")

	root.AddCommand(newDiscoverCmd(a), newConnectCmd(a), newSimulateCmd(a))
	return root
}

// load resolves configuration: defaults, then file, then env, then flags.
func (a *app) load(cmd *cobra.Command) error {
	cfgFile := a.cfgPath
	if cfgFile == "" {
		cfgFile = cliconfig.DefaultConfigPath()
	}

	changed := map[string]bool{}
	cmd.Flags().Visit(func(f *pflag.Flag) { changed[f.Name] = true })

	if cfgFile != "" && cliconfig.FileExists(cfgFile) {
		fc, err := cliconfig.LoadFileConfig(cfgFile)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		if err := cliconfig.ApplyFileConfig(&a.cfg, fc, changed); err != nil {
			return err
		}
	} else if a.cfgPath != "" {
		return fmt.Errorf("config file %s not found", a.cfgPath)
	}

	if err := cliconfig.ApplyEnvConfig(&a.cfg, changed); err != nil {
		return err
	}
	if err := a.cfg.Validate(); err != nil {
		return err
	}

	a.logger = cliconfig.Logger(a.errOut, a.cfg.LogLevel)
	a.logger.Debug().
		Str("origin", a.cfg.Origin).
		Str("config", cfgFile).
		Int("responders", len(a.cfg.Responders)).
		Msg("configuration")
	return nil
}
