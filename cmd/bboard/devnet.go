package main

import (
	"fmt"
	"net"

	"github.com/blockberries/bboard/config"
	"github.com/blockberries/bboard/devnet"
	bboardgrpc "github.com/blockberries/bboard/grpc"

	"github.com/spf13/cobra"
)

func newDevnetCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "devnet",
		Short: "Serve a standalone network, its wallet connector and proof server over gRPC",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			lis, err := net.Listen("tcp", a.cfg.DevnetListen)
			if err != nil {
				return fmt.Errorf("listen %s: %w", a.cfg.DevnetListen, err)
			}
			addr := lis.Addr().String()

			cfg := devnet.DefaultConfig()
			cfg.URIs = bboardgrpc.ServiceURIs(addr)
			network := devnet.New(cfg, a.log)
			wallet := network.NewWallet(a.cfg.WalletSeed)
			connector := network.NewConnector(wallet)
			srv := bboardgrpc.NewGRPCServer(network, connector, devnet.NewProver(), a.log)

			serveMetrics(ctx, a.cfg.MetricsListen, a.log)

			gs := srv.NewServer()
			go func() {
				<-ctx.Done()
				// Watch streams stay open until their clients leave.
				gs.Stop()
			}()
			fmt.Fprintf(cmd.OutOrStdout(), "Network listening on %s\n", addr)
			return gs.Serve(lis)
		},
	}
	cmd.Flags().String("listen", "", "address to serve the network on")
	cmd.Flags().String("wallet-seed", "", "seed of the connector's wallet")
	_ = a.v.BindPFlag(config.KeyDevnetListen, cmd.Flags().Lookup("listen"))
	_ = a.v.BindPFlag(config.KeyWalletSeed, cmd.Flags().Lookup("wallet-seed"))
	return cmd
}
