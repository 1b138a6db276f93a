package main

import (
	"fmt"
	"io"

	"github.com/blockberries/bboard/board"
	"github.com/blockberries/bboard/stream"
	"github.com/blockberries/bboard/types"

	"github.com/spf13/cobra"
)

func newWatchCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "watch <address>",
		Short: "Print the ledger state of a board every time it changes",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if !a.cfg.Remote() {
				return fmt.Errorf("watch needs a remote network, got %s", a.cfg.Network)
			}
			ctx := cmd.Context()
			env, err := newEnvironment(ctx, a.cfg, a.log)
			if err != nil {
				return err
			}
			defer env.Close()
			serveMetrics(ctx, a.cfg.MetricsListen, a.log)

			address := types.ContractAddress(args[0])
			values, errc := stream.Values(ctx, board.LedgerStates(env.public, address, a.log))
			for l := range values {
				printLedger(cmd.OutOrStdout(), l)
			}
			select {
			case err := <-errc:
				return err
			default:
				return nil
			}
		},
	}
}

func printLedger(w io.Writer, l types.LedgerState) {
	fmt.Fprintf(w, "instance %d: %s, message '%s'\n", l.Instance, l.State, messageText(l.Message))
}
