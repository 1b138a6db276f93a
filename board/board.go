// Package board implements a session on one deployed bulletin board:
// deploying or joining it, posting and taking down messages, and the
// derived state stream that tells the local identity what it may do.
package board

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/blockberries/bboard"
	"github.com/blockberries/bboard/contract"
	"github.com/blockberries/bboard/metrics"
	"github.com/blockberries/bboard/stream"
	"github.com/blockberries/bboard/types"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Compile-time interface check.
var _ bboard.DeployedBoardAPI = (*API)(nil)

// API is a session on one deployed board.
type API struct {
	deployed *contract.Deployed
	state    stream.Observable[types.DerivedState]
	log      zerolog.Logger
}

// Option configures a session.
type Option func(*options)

type options struct {
	log      zerolog.Logger
	identity string
	scoped   bool
}

// WithLogger sets the session logger.
func WithLogger(log zerolog.Logger) Option {
	return func(o *options) { o.log = log }
}

// WithIdentity sets the private state key of the local identity.
func WithIdentity(key string) Option {
	return func(o *options) { o.identity = key }
}

// WithContractScopedPrivateState keeps one identity per board, stored
// under the identity key suffixed with the board address. When joining
// a board with no scoped identity yet, the unscoped identity is reused
// if one exists.
func WithContractScopedPrivateState() Option {
	return func(o *options) { o.scoped = true }
}

func newOptions(opts []Option) options {
	o := options{log: zerolog.Nop(), identity: bboard.DefaultPrivateStateKey}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// ScopedKey is the private state key of identity on the board at
// address.
func ScopedKey(identity string, address types.ContractAddress) string {
	return identity + ":" + string(address)
}

// Deploy deploys a new board. Failures are returned as a
// *bboard.DeploymentError.
func Deploy(ctx context.Context, p bboard.Providers, opts ...Option) (*API, error) {
	o := newOptions(opts)
	o.log.Info().Msg("deployContract")

	api, err := deploy(ctx, p, o)
	metrics.DeploymentsTotal.WithLabelValues("deploy", metrics.Result(err)).Inc()
	if err != nil {
		return nil, &bboard.DeploymentError{Err: err}
	}
	return api, nil
}

func deploy(ctx context.Context, p bboard.Providers, o options) (*API, error) {
	key := o.identity
	var initial types.PrivateState
	if o.scoped {
		// The address is unknown until the deploy is final.
		key = ScopedKey(o.identity, types.ContractAddress("pending-"+uuid.NewString()))
		ps, err := contract.NewPrivateState()
		if err != nil {
			return nil, err
		}
		initial = ps
	} else {
		ps, err := privateState(ctx, p.PrivateState, o.identity)
		if err != nil {
			return nil, err
		}
		initial = ps
	}

	deployed, err := contract.Deploy(ctx, p, key, initial)
	if err != nil {
		if o.scoped {
			_ = p.PrivateState.Remove(ctx, key)
		}
		return nil, err
	}
	if o.scoped {
		if err := deployed.Rebind(ctx, ScopedKey(o.identity, deployed.Address())); err != nil {
			return nil, err
		}
	}

	final := deployed.FinalizedDeployTxData()
	o.log.Trace().
		Str("contractAddress", string(deployed.Address())).
		Str("txHash", final.TxHash.String()).
		Uint64("blockHeight", final.BlockHeight).
		Msg("contractDeployed")
	return newAPI(deployed, p, o), nil
}

// Join joins the board at address. It fails with *bboard.NotFoundError
// when nothing is deployed there and *bboard.ContractMismatchError when
// the contract is not a compatible board.
func Join(ctx context.Context, p bboard.Providers, address types.ContractAddress, opts ...Option) (*API, error) {
	o := newOptions(opts)
	o.log.Info().Str("contractAddress", string(address)).Msg("joinContract")

	api, err := join(ctx, p, address, o)
	metrics.DeploymentsTotal.WithLabelValues("join", metrics.Result(err)).Inc()
	return api, err
}

func join(ctx context.Context, p bboard.Providers, address types.ContractAddress, o options) (*API, error) {
	key := o.identity
	if o.scoped {
		key = ScopedKey(o.identity, address)
	}
	initial, err := privateState(ctx, p.PrivateState, key, o.identity)
	if err != nil {
		return nil, err
	}

	deployed, err := contract.Find(ctx, p, address, key, initial)
	if err != nil {
		var nf *bboard.NotFoundError
		var cm *bboard.ContractMismatchError
		if errors.As(err, &nf) || errors.As(err, &cm) {
			return nil, err
		}
		return nil, fmt.Errorf("join board %s: %w", address, err)
	}

	o.log.Trace().
		Str("contractAddress", string(address)).
		Str("txHash", deployed.FinalizedDeployTxData().TxHash.String()).
		Msg("contractJoined")
	return newAPI(deployed, p, o), nil
}

// privateState returns the first private state stored under keys, or
// a fresh one when none is stored.
func privateState(ctx context.Context, store bboard.PrivateStateProvider, keys ...string) (types.PrivateState, error) {
	for _, key := range keys {
		ps, err := store.Get(ctx, key)
		if err != nil {
			return types.PrivateState{}, fmt.Errorf("load private state %s: %w", key, err)
		}
		if ps != nil {
			return *ps, nil
		}
	}
	return contract.NewPrivateState()
}

func newAPI(deployed *contract.Deployed, p bboard.Providers, o options) *API {
	log := o.log.With().Str("contractAddress", string(deployed.Address())).Logger()
	return &API{
		deployed: deployed,
		log:      log,
		state: DeriveState(
			LedgerStates(p.PublicData, deployed.Address(), log),
			PrivateStateOnce(p.PrivateState, deployed.PrivateStateKey()),
		),
	}
}

// DeployedContractAddress returns the board address.
func (a *API) DeployedContractAddress() types.ContractAddress {
	return a.deployed.Address()
}

// FinalizedDeployTxData describes the transaction that deployed the
// board.
func (a *API) FinalizedDeployTxData() types.FinalizedTxData {
	return a.deployed.FinalizedDeployTxData()
}

// PrivateStateKey returns the key the session identity is stored under.
func (a *API) PrivateStateKey() string {
	return a.deployed.PrivateStateKey()
}

// State streams the derived board state.
func (a *API) State() stream.Observable[types.DerivedState] {
	return a.state
}

// Post posts message to the board.
func (a *API) Post(ctx context.Context, message string) error {
	a.log.Info().Str("message", message).Msg("postingMessage")
	return a.call(ctx, contract.CircuitPost, func(ctx context.Context) (types.FinalizedTxData, error) {
		return a.deployed.Post(ctx, message)
	})
}

// TakeDown takes the current message down.
func (a *API) TakeDown(ctx context.Context) error {
	a.log.Info().Msg("takingDownMessage")
	return a.call(ctx, contract.CircuitTakeDown, a.deployed.TakeDown)
}

func (a *API) call(ctx context.Context, circuit string, fn func(context.Context) (types.FinalizedTxData, error)) error {
	start := time.Now()
	final, err := fn(ctx)
	metrics.CircuitCallsTotal.WithLabelValues(circuit, metrics.Result(err)).Inc()
	if err != nil {
		a.log.Debug().Err(err).Str("circuit", circuit).Msg("circuit call failed")
		return err
	}
	metrics.CircuitCallDuration.WithLabelValues(circuit).Observe(time.Since(start).Seconds())
	a.log.Trace().
		Str("circuit", circuit).
		Str("txHash", final.TxHash.String()).
		Uint64("blockHeight", final.BlockHeight).
		Msg("transactionAdded")
	return nil
}
