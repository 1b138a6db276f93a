// Package devnet implements a standalone, in-memory board network: a
// node that validates and applies transactions, an indexer over its
// contract state, a proof server and a wallet connector.
//
// It stands in for the external services a board client talks to so
// the client can run end to end in one process or behind the gRPC
// transport.
package devnet

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/blockberries/bboard/contract"
	"github.com/blockberries/bboard/stream"
	"github.com/blockberries/bboard/types"

	"github.com/rs/zerolog"
)

var (
	// ErrStaleState is returned for a call computed against a ledger
	// that has since changed.
	ErrStaleState = errors.New("transaction computed against stale contract state")

	// ErrInvalidProof is returned when a call's proof does not verify.
	ErrInvalidProof = errors.New("invalid proof")

	// ErrInsufficientFunds is returned when the payer cannot cover the fee.
	ErrInsufficientFunds = errors.New("insufficient funds")

	// ErrDuplicateTx is returned when a transaction was already applied.
	ErrDuplicateTx = errors.New("duplicate transaction")
)

// Config configures a network.
type Config struct {
	// ZKSeed derives the circuit keys the network expects.
	ZKSeed string
	// Fee is charged to the payer of every transaction.
	Fee uint64
	// InitialBalance funds every wallet created by NewWallet.
	InitialBalance uint64
	// URIs is what connectors report as the service configuration.
	URIs types.ServiceURIConfig
	// Now stamps finalized transactions. Defaults to time.Now.
	Now func() time.Time
}

// DefaultConfig returns the configuration of a standalone network.
func DefaultConfig() Config {
	return Config{
		ZKSeed:         "bboard-standalone",
		Fee:            1,
		InitialBalance: 1_000_000,
		URIs: types.ServiceURIConfig{
			IndexerURI:       "http://127.0.0.1:8088/api/v1/graphql",
			IndexerWSURI:     "ws://127.0.0.1:8088/api/v1/graphql/ws",
			ProverServerURI:  "http://127.0.0.1:6300",
			SubstrateNodeURI: "http://127.0.0.1:9944",
		},
	}
}

// Network is the in-memory node and indexer.
type Network struct {
	cfg Config
	log zerolog.Logger

	mu        sync.Mutex
	height    uint64
	contracts map[types.ContractAddress]*contractRecord
	txs       map[types.Hash]types.FinalizedTxData
	waiters   map[types.Hash][]chan types.FinalizedTxData
	balances  map[string]uint64

	// outbox holds state publications in apply order. Whoever finds
	// it idle drains it outside mu.
	outbox     []func()
	publishing bool
}

type contractRecord struct {
	state    *types.ContractState
	subject  *stream.Subject[types.ContractState]
	watchers int
}

// New creates an empty network.
func New(cfg Config, log zerolog.Logger) *Network {
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Network{
		cfg:       cfg,
		log:       log.With().Str("component", "devnet").Logger(),
		contracts: make(map[types.ContractAddress]*contractRecord),
		txs:       make(map[types.Hash]types.FinalizedTxData),
		waiters:   make(map[types.Hash][]chan types.FinalizedTxData),
		balances:  make(map[string]uint64),
	}
}

// Config returns the network configuration.
func (n *Network) Config() Config { return n.cfg }

// Height returns the height of the last block.
func (n *Network) Height() uint64 {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.height
}

// Fund credits amount to the holder of coinPublicKey.
func (n *Network) Fund(coinPublicKey []byte, amount uint64) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.balances[hex.EncodeToString(coinPublicKey)] += amount
}

// Balance returns the funds held by coinPublicKey.
func (n *Network) Balance(coinPublicKey []byte) uint64 {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.balances[hex.EncodeToString(coinPublicKey)]
}

// AddressFor returns the address a deploy transaction with the given
// hash deploys to.
func AddressFor(deployTx types.Hash) types.ContractAddress {
	return types.ContractAddress(deployTx.String())
}

// ProofDigest is the proof the network accepts for tx under the
// circuit's verifier key.
func ProofDigest(verifierKey []byte, tx types.Transaction) ([]byte, error) {
	hash, err := tx.Hash()
	if err != nil {
		return nil, err
	}
	h := sha256.New()
	h.Write(verifierKey)
	h.Write(hash[:])
	return h.Sum(nil), nil
}

// Submit validates tx and applies it in a new block.
func (n *Network) Submit(_ context.Context, tx types.BalancedTransaction) (types.TransactionID, error) {
	hash, err := tx.Tx.Hash()
	if err != nil {
		return "", err
	}

	n.mu.Lock()
	final, err := n.applyLocked(hash, tx)
	if err != nil {
		n.mu.Unlock()
		n.log.Debug().Err(err).Str("tx", hash.String()).Msg("transaction rejected")
		return "", err
	}
	start := !n.publishing
	n.publishing = true
	n.mu.Unlock()

	n.log.Debug().
		Str("tx", hash.String()).
		Str("kind", tx.Tx.Kind.String()).
		Str("circuit", tx.Tx.Circuit).
		Uint64("height", final.BlockHeight).
		Msg("transaction applied")

	if start {
		n.drainOutbox()
	}
	return final.TxID, nil
}

// applyLocked validates and applies tx. Caller holds n.mu.
func (n *Network) applyLocked(hash types.Hash, tx types.BalancedTransaction) (types.FinalizedTxData, error) {
	if _, ok := n.txs[hash]; ok {
		return types.FinalizedTxData{}, fmt.Errorf("%s: %w", hash, ErrDuplicateTx)
	}
	payer := hex.EncodeToString(tx.Payer)
	if n.balances[payer] < tx.Fee || tx.Fee < n.cfg.Fee {
		return types.FinalizedTxData{}, ErrInsufficientFunds
	}

	var next types.ContractState
	switch tx.Tx.Kind {
	case types.TxDeploy:
		state, err := n.deployLocked(hash, tx.Tx)
		if err != nil {
			return types.FinalizedTxData{}, err
		}
		next = state
	case types.TxCall:
		state, err := n.callLocked(tx)
		if err != nil {
			return types.FinalizedTxData{}, err
		}
		next = state
	default:
		return types.FinalizedTxData{}, fmt.Errorf("unknown transaction kind %s", tx.Tx.Kind)
	}

	n.balances[payer] -= tx.Fee
	n.height++
	next.BlockHeight = n.height

	rec := n.recordLocked(next.Address)
	rec.state = &next
	subject := rec.subject
	n.outbox = append(n.outbox, func() { subject.Next(next) })

	final := types.FinalizedTxData{
		TxID:            types.TransactionID(hash.String()),
		TxHash:          hash,
		BlockHeight:     n.height,
		BlockTime:       types.TimeToTimestamp(n.cfg.Now()),
		ContractAddress: next.Address,
	}
	n.txs[hash] = final
	for _, ch := range n.waiters[hash] {
		ch <- final
	}
	delete(n.waiters, hash)
	return final, nil
}

func (n *Network) deployLocked(hash types.Hash, tx types.Transaction) (types.ContractState, error) {
	if tx.ContractType == "" {
		return types.ContractState{}, errors.New("deploy transaction without contract type")
	}
	if _, err := types.DecodeLedger(tx.Ledger); err != nil {
		return types.ContractState{}, err
	}
	address := AddressFor(hash)
	if rec, ok := n.contracts[address]; ok && rec.state != nil {
		return types.ContractState{}, fmt.Errorf("contract %s already deployed", address)
	}
	return types.ContractState{
		Address:      address,
		ContractType: tx.ContractType,
		Data:         tx.Ledger,
		Operations:   tx.Operations,
		StateHash:    types.StateHash(tx.Ledger),
		DeployTx:     hash,
	}, nil
}

func (n *Network) callLocked(tx types.BalancedTransaction) (types.ContractState, error) {
	rec, ok := n.contracts[tx.Tx.ContractAddress]
	if !ok || rec.state == nil {
		return types.ContractState{}, fmt.Errorf("no contract at %s", tx.Tx.ContractAddress)
	}
	current := *rec.state
	if current.ContractType != tx.Tx.ContractType {
		return types.ContractState{}, fmt.Errorf("contract type %q does not match %q", current.ContractType, tx.Tx.ContractType)
	}
	if tx.Tx.PriorStateHash != current.StateHash {
		return types.ContractState{}, ErrStaleState
	}
	op, ok := current.Operation(tx.Tx.Circuit)
	if !ok {
		return types.ContractState{}, fmt.Errorf("contract has no operation %q", tx.Tx.Circuit)
	}
	want, err := ProofDigest(op.VerifierKey, tx.Tx)
	if err != nil {
		return types.ContractState{}, err
	}
	if string(want) != string(tx.Proof) {
		return types.ContractState{}, ErrInvalidProof
	}

	if current.ContractType == contract.ContractType {
		prior, err := types.DecodeLedger(current.Data)
		if err != nil {
			return types.ContractState{}, err
		}
		next, err := types.DecodeLedger(tx.Tx.Ledger)
		if err != nil {
			return types.ContractState{}, err
		}
		if err := contract.VerifyTransition(tx.Tx.Circuit, prior, next); err != nil {
			return types.ContractState{}, err
		}
	}

	current.Data = tx.Tx.Ledger
	current.StateHash = types.StateHash(tx.Tx.Ledger)
	return current, nil
}

// recordLocked returns the record for address, creating an empty one
// so watchers can subscribe before deployment. Caller holds n.mu.
func (n *Network) recordLocked(address types.ContractAddress) *contractRecord {
	rec, ok := n.contracts[address]
	if !ok {
		rec = &contractRecord{subject: stream.New[types.ContractState]()}
		n.contracts[address] = rec
	}
	return rec
}

func (n *Network) drainOutbox() {
	for {
		n.mu.Lock()
		if len(n.outbox) == 0 {
			n.publishing = false
			n.mu.Unlock()
			return
		}
		publish := n.outbox[0]
		n.outbox[0] = nil
		n.outbox = n.outbox[1:]
		n.mu.Unlock()

		publish()
	}
}
