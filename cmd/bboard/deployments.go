package main

import (
	"context"
	"fmt"
	"io"

	"github.com/blockberries/bboard"
	"github.com/blockberries/bboard/deployment"
	"github.com/blockberries/bboard/stream"
	"github.com/blockberries/bboard/types"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/spf13/cobra"
)

func newDeploymentsCmd(a *app) *cobra.Command {
	var deploy int
	cmd := &cobra.Command{
		Use:   "deployments [address...]",
		Short: "Deploy or join boards concurrently and print their status",
		RunE: func(cmd *cobra.Command, args []string) error {
			if deploy == 0 && len(args) == 0 {
				return fmt.Errorf("nothing to resolve: pass addresses or --deploy")
			}
			ctx := cmd.Context()
			env, err := newEnvironment(ctx, a.cfg, a.log)
			if err != nil {
				return err
			}
			defer env.Close()

			manager := deployment.NewManager(ctx, env.boot, deployment.WithLogger(a.log))
			defer manager.Wait()
			for i := 0; i < deploy; i++ {
				manager.Resolve("")
			}
			for _, address := range args {
				manager.Resolve(types.ContractAddress(address))
			}

			rows, err := collectDeployments(ctx, manager)
			if err != nil {
				return err
			}
			renderDeployments(cmd.OutOrStdout(), rows)
			return nil
		},
	}
	cmd.Flags().IntVar(&deploy, "deploy", 0, "number of new boards to deploy")
	return cmd
}

// deploymentRow is one finished deployment and the board state it
// ended with.
type deploymentRow struct {
	Deployment bboard.Deployment
	State      *types.DerivedState
}

// collectDeployments waits for every deployment the manager knows of
// to finish.
func collectDeployments(ctx context.Context, m *deployment.Manager) ([]deploymentRow, error) {
	list, err := stream.First(ctx, m.BoardDeployments())
	if err != nil {
		return nil, err
	}
	rows := make([]deploymentRow, 0, len(list))
	for _, s := range list {
		d, err := stream.FirstWhere(ctx, s, bboard.Deployment.Terminal)
		if err != nil {
			return nil, err
		}
		row := deploymentRow{Deployment: d}
		if d.Status == bboard.DeploymentDeployed {
			state, err := stream.First(ctx, d.API.State())
			if err != nil {
				return nil, err
			}
			row.State = &state
		}
		rows = append(rows, row)
	}
	return rows, nil
}

func renderDeployments(w io.Writer, rows []deploymentRow) {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)
	t.AppendHeader(table.Row{"ID", "Status", "Address", "Board", "Message", "Owner", "Error"})
	t.SetColumnConfigs([]table.ColumnConfig{
		{Name: "Message", WidthMax: 40, WidthMaxEnforcer: text.WrapText},
		{Name: "Error", WidthMax: 60, WidthMaxEnforcer: text.WrapText},
	})
	for _, r := range rows {
		var address, boardState, message, owner, errText string
		if r.Deployment.API != nil {
			address = string(r.Deployment.API.DeployedContractAddress())
		}
		if r.State != nil {
			boardState = r.State.State.String()
			message = messageText(r.State.Message)
			owner = fmt.Sprint(r.State.IsOwner)
		}
		if r.Deployment.Err != nil {
			errText = r.Deployment.Err.Error()
		}
		t.AppendRow(table.Row{r.Deployment.ID, r.Deployment.Status, address, boardState, message, owner, errText})
	}
	t.Render()
}
