package bboardgrpc

import "github.com/blockberries/bboard/types"

// Transport-specific wrapper types for RPC methods whose interface
// signatures don't map to a single request/response struct.
// These are used only for gRPC serialization boundaries.

// Empty is the request of RPCs without parameters.
type Empty struct{}

// APIVersionResponse carries the connector API version.
type APIVersionResponse struct {
	Version string `cramberry:"1"`
}

// IsEnabledResponse carries the connector's enabled status.
type IsEnabledResponse struct {
	Enabled bool `cramberry:"1"`
}

// BalanceRequest wraps the parameters of WalletAPI.BalanceAndProveTransaction.
type BalanceRequest struct {
	Tx       types.UnbalancedTransaction `cramberry:"1"`
	NewCoins []types.CoinInfo            `cramberry:"2"`
}

// SubmitResponse wraps the transaction id returned by a submission.
type SubmitResponse struct {
	TxID types.TransactionID `cramberry:"1"`
}

// ContractRequest addresses one contract.
type ContractRequest struct {
	Address types.ContractAddress `cramberry:"1"`
	Watch   types.WatchType       `cramberry:"2"`
}

// QueryResponse carries a contract state. Found is false when nothing
// is deployed at the requested address.
type QueryResponse struct {
	Found bool                `cramberry:"1"`
	State types.ContractState `cramberry:"2"`
}

// WatchTxRequest names the transaction to wait for.
type WatchTxRequest struct {
	TxHash types.Hash `cramberry:"1"`
}

// ProveRequest wraps the parameters of ProofProvider.ProveTx.
type ProveRequest struct {
	Tx     types.UnprovenTransaction `cramberry:"1"`
	Config types.ZKConfig            `cramberry:"2"`
}
