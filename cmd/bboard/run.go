package main

import (
	"bufio"
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/blockberries/bboard"
	"github.com/blockberries/bboard/board"
	"github.com/blockberries/bboard/deployment"
	"github.com/blockberries/bboard/stream"
	"github.com/blockberries/bboard/types"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

func newRunCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Deploy or join a board and interact with it",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			env, err := newEnvironment(ctx, a.cfg, a.log)
			if err != nil {
				return err
			}
			defer env.Close()
			serveMetrics(ctx, a.cfg.MetricsListen, a.log)

			var boardOpts []board.Option
			if a.cfg.Identity != bboard.DefaultPrivateStateKey {
				boardOpts = append(boardOpts, board.WithIdentity(a.cfg.Identity))
			}
			if a.cfg.Scoped {
				boardOpts = append(boardOpts, board.WithContractScopedPrivateState())
			}
			manager := deployment.NewManager(ctx, env.boot,
				deployment.WithLogger(a.log),
				deployment.WithBoardOptions(boardOpts...),
			)
			defer manager.Wait()

			sh := &shell{
				in:      bufio.NewReader(cmd.InOrStdin()),
				out:     cmd.OutOrStdout(),
				log:     a.log,
				boot:    env.boot,
				manager: manager,
			}
			return sh.run(ctx)
		},
	}
}

const mainMenu = `
You can do one of the following:
  1. Deploy a new bulletin board contract
  2. Join an existing bulletin board contract
  3. Exit
Which would you like to do? `

const boardMenu = `
You can do one of the following:
  1. Post a message
  2. Take down your message
  3. Display the current ledger state (known by everyone)
  4. Display the current private state (known only to this DApp instance)
  5. Display the current derived state (known only to this DApp instance)
  6. Exit
Which would you like to do? `

// errExit ends the interactive session.
var errExit = errors.New("exit")

// shell is the interactive board menu.
type shell struct {
	in      *bufio.Reader
	out     io.Writer
	log     zerolog.Logger
	boot    deployment.Bootstrapper
	manager *deployment.Manager
}

func (s *shell) run(ctx context.Context) error {
	err := s.loop(ctx)
	if errors.Is(err, errExit) || errors.Is(err, io.EOF) {
		fmt.Fprintln(s.out, "Goodbye")
		return nil
	}
	return err
}

func (s *shell) loop(ctx context.Context) error {
	api, err := s.resolve(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(s.out, "Board contract address: %s\n", api.DeployedContractAddress())
	for {
		choice, err := s.prompt(boardMenu)
		if err != nil {
			return err
		}
		switch choice {
		case "1":
			message, err := s.prompt("What message do you want to post? ")
			if err != nil {
				return err
			}
			s.report(api.Post(ctx, message))
		case "2":
			s.report(api.TakeDown(ctx))
		case "3":
			s.report(s.displayLedger(ctx, api))
		case "4":
			s.report(s.displayPrivate(ctx, api))
		case "5":
			s.report(s.displayDerived(ctx, api))
		case "6":
			return errExit
		default:
			fmt.Fprintf(s.out, "Invalid choice: %s\n", choice)
		}
	}
}

// resolve asks for a board until one is deployed or joined.
func (s *shell) resolve(ctx context.Context) (bboard.DeployedBoardAPI, error) {
	for {
		choice, err := s.prompt(mainMenu)
		if err != nil {
			return nil, err
		}
		var address types.ContractAddress
		switch choice {
		case "1":
		case "2":
			a, err := s.prompt("What is the contract address (in hex)? ")
			if err != nil {
				return nil, err
			}
			if a == "" {
				fmt.Fprintln(s.out, "An address is required to join a board")
				continue
			}
			address = types.ContractAddress(a)
		case "3":
			return nil, errExit
		default:
			fmt.Fprintf(s.out, "Invalid choice: %s\n", choice)
			continue
		}

		d, err := stream.FirstWhere(ctx, s.manager.Resolve(address), bboard.Deployment.Terminal)
		if err != nil {
			return nil, err
		}
		if d.Status == bboard.DeploymentFailed {
			fmt.Fprintf(s.out, "Failed: %v\n", d.Err)
			continue
		}
		return d.API, nil
	}
}

func (s *shell) prompt(question string) (string, error) {
	fmt.Fprint(s.out, question)
	line, err := s.in.ReadString('\n')
	if err != nil && (line == "" || !errors.Is(err, io.EOF)) {
		return "", err
	}
	return strings.TrimRight(line, "\r\n"), nil
}

func (s *shell) report(err error) {
	if err == nil {
		return
	}
	if a, ok := bboard.IsAssertion(err); ok {
		fmt.Fprintf(s.out, "Rejected by the contract: %s\n", a.Message)
		return
	}
	fmt.Fprintf(s.out, "Failed: %v\n", err)
}

func (s *shell) displayLedger(ctx context.Context, api bboard.DeployedBoardAPI) error {
	p, err := s.boot.GetProviders(ctx)
	if err != nil {
		return err
	}
	cs, err := p.PublicData.QueryContractState(ctx, api.DeployedContractAddress())
	if err != nil {
		return err
	}
	if cs == nil {
		return &bboard.NotFoundError{Address: api.DeployedContractAddress()}
	}
	l, err := types.DecodeLedger(cs.Data)
	if err != nil {
		return err
	}
	fmt.Fprintf(s.out, "Current state is: '%s'\n", l.State)
	fmt.Fprintf(s.out, "Current message is: '%s'\n", messageText(l.Message))
	fmt.Fprintf(s.out, "Current instance is: %d\n", l.Instance)
	fmt.Fprintf(s.out, "Current poster is: '%s'\n", hex.EncodeToString(l.Poster))
	return nil
}

func (s *shell) displayPrivate(ctx context.Context, api bboard.DeployedBoardAPI) error {
	session, ok := api.(*board.API)
	if !ok {
		return errors.New("private state is not available for this session")
	}
	p, err := s.boot.GetProviders(ctx)
	if err != nil {
		return err
	}
	ps, err := p.PrivateState.Get(ctx, session.PrivateStateKey())
	if err != nil {
		return err
	}
	if ps == nil {
		return fmt.Errorf("%s: %w", session.PrivateStateKey(), bboard.ErrPrivateStateMissing)
	}
	fmt.Fprintf(s.out, "Current secret key is: '%s'\n", hex.EncodeToString(ps.SecretKey))
	return nil
}

func (s *shell) displayDerived(ctx context.Context, api bboard.DeployedBoardAPI) error {
	d, err := stream.First(ctx, api.State())
	if err != nil {
		return err
	}
	fmt.Fprintf(s.out, "Current state is: '%s'\n", d.State)
	fmt.Fprintf(s.out, "Current message is: '%s'\n", messageText(d.Message))
	fmt.Fprintf(s.out, "Current instance is: %d\n", d.Instance)
	owner := "not you"
	if d.IsOwner {
		owner = "you"
	}
	fmt.Fprintf(s.out, "Current poster is: '%s'\n", owner)
	return nil
}

func messageText(m *string) string {
	if m == nil {
		return "none"
	}
	return *m
}
