package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/bft-labs/walletmesh/pkg/connection"
	"github.com/bft-labs/walletmesh/pkg/discovery"
	"github.com/bft-labs/walletmesh/pkg/log"
	"github.com/bft-labs/walletmesh/pkg/walleterr"
)

func (a *app) runtime() (*meshRuntime, error) {
	return newMeshRuntime(a.cfg, log.NewZerologAdapterWithLogger(a.logger))
}

func (a *app) printJSON(v any) error {
	enc := json.NewEncoder(a.out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func signalContext(parent context.Context) (context.Context, context.CancelFunc) {
	if parent == nil {
		parent = context.Background()
	}
	return signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
}

func newDiscoverCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "discover",
		Short: "Broadcast a discovery request and print the responses",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := a.runtime()
			if err != nil {
				return err
			}
			defer rt.Close()

			ctx, cancel := signalContext(cmd.Context())
			defer cancel()

			responses := rt.requester.Discover(ctx, a.cfg.Requirement, a.cfg.DiscoveryTimeout)
			if responses == nil {
				responses = []discovery.Response{}
			}
			a.logger.Info().Int("responses", len(responses)).Msg("discovery complete")
			return a.printJSON(responses)
		},
	}
}

func newConnectCmd(a *app) *cobra.Command {
	var switchTo string
	cmd := &cobra.Command{
		Use:   "connect [wallet-id]",
		Short: "Connect to a wallet and print the resulting session",
		Long: "Connect to a wallet and print the resulting session. Without a wallet id\n" +
			"the preferred wallet from the last successful connect is used.",
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := a.runtime()
			if err != nil {
				return err
			}
			defer rt.Close()

			ctx, cancel := signalContext(cmd.Context())
			defer cancel()

			walletID := ""
			if len(args) == 1 {
				walletID = args[0]
			} else if id, ok := rt.manager.PreferredWallet(ctx); ok {
				walletID = id
			} else {
				return fmt.Errorf("no wallet id given and no preferred wallet stored")
			}

			sess, err := rt.manager.Connect(ctx, walletID, connection.ConnectOptions{
				Required: a.cfg.Requirement,
				ChainID:  a.cfg.ChainID,
			})
			if err != nil {
				return describe(err)
			}

			if switchTo != "" {
				if err := rt.manager.SwitchChain(ctx, sess.ID, switchTo); err != nil {
					return describe(err)
				}
				if updated, ok := rt.manager.Registry().Get(sess.ID); ok {
					sess = updated
				}
			}
			return a.printJSON(sess)
		},
	}
	cmd.Flags().StringVar(&switchTo, "switch-chain", "", "switch to this chain after connecting")
	return cmd
}

func newSimulateCmd(a *app) *cobra.Command {
	var dropEvery int
	cmd := &cobra.Command{
		Use:   "simulate",
		Short: "Run discovery rounds until interrupted",
		Long: "Connect to the preferred (or first) wallet, then broadcast discovery on every\n" +
			"interval until SIGINT or SIGTERM. --drop-every makes the wallet drop its\n" +
			"connection periodically to exercise reconnects; --watch hot-reloads the\n" +
			"security policy file.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := a.runtime()
			if err != nil {
				return err
			}

			ctx, cancel := signalContext(cmd.Context())
			defer cancel()

			walletID, ok := rt.manager.PreferredWallet(ctx)
			if !ok {
				walletID = rt.wallets[0].RDNS
			}
			if _, err := rt.manager.Connect(ctx, walletID, connection.ConnectOptions{
				Required: a.cfg.Requirement,
				ChainID:  a.cfg.ChainID,
			}); err != nil {
				a.logger.Warn().Err(err).Str("wallet_id", walletID).Msg("initial connect failed")
			}

			ticker := time.NewTicker(a.cfg.Interval)
			defer ticker.Stop()

			for round := 1; ; round++ {
				select {
				case <-ctx.Done():
					a.logger.Info().Msg("received signal, stopping...")
					err := rt.Close()
					a.logger.Info().
						Int("transitions", len(rt.history.Transitions())).
						Int("events", len(rt.history.Events())).
						Msg("simulation finished")
					return err
				case <-ticker.C:
				}

				responses := rt.requester.Discover(ctx, a.cfg.Requirement, a.cfg.DiscoveryTimeout)
				ev := a.logger.Info().
					Int("round", round).
					Int("responses", len(responses)).
					Str("state", rt.manager.State(walletID).String())
				if rt.policy != nil {
					ev = ev.Int("policy_reloads", rt.policy.Reloads())
				}
				ev.Msg("discovery round")

				if dropEvery > 0 && round%dropEvery == 0 {
					if adapter, ok := rt.network.Adapter(walletID); ok && adapter.Connected() {
						a.logger.Info().Str("wallet_id", walletID).Msg("dropping wallet connection")
						adapter.Drop()
					}
				}
			}
		},
	}
	cmd.Flags().DurationVar(&a.cfg.Interval, "interval", a.cfg.Interval, "time between discovery rounds")
	cmd.Flags().BoolVar(&a.cfg.Watch, "watch", a.cfg.Watch, "hot-reload the --policy file")
	cmd.Flags().IntVar(&dropEvery, "drop-every", 0, "drop the wallet connection every N rounds (0 disables)")
	return cmd
}

// describe flattens a ModalError into a single line for the CLI.
func describe(err error) error {
	me := walleterr.Classify(err)
	if me == nil {
		return err
	}
	return fmt.Errorf("%s (%s/%s): %s", me.Code, me.Category, me.Classification, me.Message)
}
