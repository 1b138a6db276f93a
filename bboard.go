// Package bboard defines the client side of the bulletin board DApp:
// the providers a board session consumes, the wallet connector it
// bootstraps them from, and the APIs it exposes to callers.
//
// The external collaborators (wallet, indexer, proof server, private
// state store) are consumed through the narrow interfaces below. The
// board, deployment and providers packages implement the session,
// the deployment registry and the provider bootstrap on top of them.
package bboard

import (
	"context"

	"github.com/blockberries/bboard/stream"
	"github.com/blockberries/bboard/types"
)

// DefaultPrivateStateKey is the store key under which the local board
// identity is kept unless a session is configured otherwise.
const DefaultPrivateStateKey = "bboardPrivateState"

// PrivateStateProvider stores local secret material by key.
//
// Get returns (nil, nil) when no state is stored under key.
type PrivateStateProvider interface {
	Get(ctx context.Context, key string) (*types.PrivateState, error)
	Set(ctx context.Context, key string, state types.PrivateState) error
	Remove(ctx context.Context, key string) error
}

// PublicDataProvider reads contract state from the indexer.
type PublicDataProvider interface {
	// QueryContractState returns the latest snapshot of the contract at
	// address, or (nil, nil) when no contract is deployed there.
	QueryContractState(ctx context.Context, address types.ContractAddress) (*types.ContractState, error)

	// ContractStateObservable streams snapshots of the contract at
	// address in chain order.
	ContractStateObservable(address types.ContractAddress, cfg types.WatchConfig) stream.Observable[types.ContractState]

	// WatchForTxData blocks until the transaction with the given hash
	// is finalized.
	WatchForTxData(ctx context.Context, txHash types.Hash) (types.FinalizedTxData, error)
}

// ZKConfigProvider returns the key material for a circuit.
type ZKConfigProvider interface {
	Get(ctx context.Context, circuit string) (types.ZKConfig, error)
}

// ProofProvider turns an unproven transaction into a proven one.
type ProofProvider interface {
	ProveTx(ctx context.Context, tx types.UnprovenTransaction, cfg types.ZKConfig) (types.UnbalancedTransaction, error)
}

// WalletProvider pays for transactions.
type WalletProvider interface {
	CoinPublicKey() []byte
	BalanceTx(ctx context.Context, tx types.UnbalancedTransaction, newCoins []types.CoinInfo) (types.BalancedTransaction, error)
}

// MidnightProvider submits transactions to the network.
type MidnightProvider interface {
	SubmitTx(ctx context.Context, tx types.BalancedTransaction) (types.TransactionID, error)
}

// Providers bundles every external collaborator a board session uses.
type Providers struct {
	PrivateState PrivateStateProvider
	PublicData   PublicDataProvider
	ZKConfig     ZKConfigProvider
	Proof        ProofProvider
	Wallet       WalletProvider
	Midnight     MidnightProvider
}

// ConnectorAPI is the handle a wallet connector exposes before the
// user has authorized the DApp.
type ConnectorAPI interface {
	// APIVersion is the semantic version of the connector API.
	APIVersion() string
	IsEnabled(ctx context.Context) (bool, error)
	// Enable asks the user to authorize the DApp. It returns
	// ErrNotAuthorized when the user declines.
	Enable(ctx context.Context) (WalletAPI, error)
	ServiceURIConfig(ctx context.Context) (types.ServiceURIConfig, error)
}

// WalletAPI is the authorized wallet.
type WalletAPI interface {
	State(ctx context.Context) (types.WalletState, error)
	BalanceAndProveTransaction(ctx context.Context, tx types.UnbalancedTransaction, newCoins []types.CoinInfo) (types.BalancedTransaction, error)
	SubmitTransaction(ctx context.Context, tx types.BalancedTransaction) (types.TransactionID, error)
}

// ConnectorLocator looks up the wallet connector. It returns nil while
// no connector is present.
type ConnectorLocator interface {
	Locate(ctx context.Context) ConnectorAPI
}

// LocatorFunc is a helper that implements ConnectorLocator.
type LocatorFunc func(ctx context.Context) ConnectorAPI

func (f LocatorFunc) Locate(ctx context.Context) ConnectorAPI {
	return f(ctx)
}

// DeployedBoardAPI is a session bound to one deployed board.
type DeployedBoardAPI interface {
	DeployedContractAddress() types.ContractAddress

	// State streams the derived board state. The stream is built once
	// per session and shared by every subscriber.
	State() stream.Observable[types.DerivedState]

	// Post submits a post transaction. It fails with an AssertionError
	// when the board is occupied.
	Post(ctx context.Context, message string) error

	// TakeDown submits a take_down transaction. It fails with an
	// AssertionError when the board is vacant or the message belongs
	// to another identity.
	TakeDown(ctx context.Context) error
}

// DeployedBoardAPIProvider tracks the boards deployed or joined during
// this process.
type DeployedBoardAPIProvider interface {
	// BoardDeployments streams the list of deployments. The list only
	// grows.
	BoardDeployments() stream.Observable[[]stream.Observable[Deployment]]

	// Resolve joins the board at address, or deploys a new one when
	// address is empty. It never fails: failures are reported as a
	// Failed deployment on the returned stream.
	Resolve(address types.ContractAddress) stream.Observable[Deployment]
}

// DeploymentStatus is the lifecycle stage of a deployment.
type DeploymentStatus uint8

const (
	DeploymentInProgress DeploymentStatus = iota
	DeploymentDeployed
	DeploymentFailed
)

func (s DeploymentStatus) String() string {
	switch s {
	case DeploymentInProgress:
		return "in-progress"
	case DeploymentDeployed:
		return "deployed"
	case DeploymentFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Deployment is one step of a deployment lifecycle. API is set when
// Status is DeploymentDeployed and Err when it is DeploymentFailed.
type Deployment struct {
	ID     string
	Status DeploymentStatus
	API    DeployedBoardAPI
	Err    error
}

// Terminal reports whether the deployment has finished.
func (d Deployment) Terminal() bool {
	return d.Status != DeploymentInProgress
}
