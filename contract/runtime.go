package contract

import (
	"bytes"
	"context"
	"crypto/rand"
	"fmt"
	"sync"

	"github.com/blockberries/bboard"
	"github.com/blockberries/bboard/types"
)

const nonceSize = 16

// Deployed is a handle on a board contract deployed on the network.
// Circuit calls through one handle are executed one at a time.
type Deployed struct {
	providers       bboard.Providers
	address         types.ContractAddress
	deployTx        types.FinalizedTxData
	privateStateKey string

	mu sync.Mutex
}

// Deploy stores initial under privateStateKey and deploys a new board.
// It returns once the deploy transaction is finalized.
func Deploy(ctx context.Context, p bboard.Providers, privateStateKey string, initial types.PrivateState) (*Deployed, error) {
	if err := p.PrivateState.Set(ctx, privateStateKey, initial); err != nil {
		return nil, fmt.Errorf("store private state: %w", err)
	}

	ops, err := Operations(ctx, p.ZKConfig)
	if err != nil {
		return nil, err
	}
	ledger, err := types.EncodeLedger(InitialLedger())
	if err != nil {
		return nil, err
	}
	nonce, err := newNonce()
	if err != nil {
		return nil, err
	}
	tx := types.Transaction{
		Kind:         types.TxDeploy,
		ContractType: ContractType,
		Ledger:       ledger,
		Operations:   ops,
		Nonce:        nonce,
	}

	// Deploy transactions carry no circuit proof.
	final, err := submit(ctx, p, types.UnbalancedTransaction{Tx: tx})
	if err != nil {
		return nil, err
	}
	if final.ContractAddress == "" {
		return nil, fmt.Errorf("deploy transaction %s finalized without a contract address", final.TxHash)
	}
	return &Deployed{
		providers:       p,
		address:         final.ContractAddress,
		deployTx:        final,
		privateStateKey: privateStateKey,
	}, nil
}

// Find joins the board at address. initial is stored under
// privateStateKey only when no private state exists there yet.
func Find(ctx context.Context, p bboard.Providers, address types.ContractAddress, privateStateKey string, initial types.PrivateState) (*Deployed, error) {
	cs, err := p.PublicData.QueryContractState(ctx, address)
	if err != nil {
		return nil, fmt.Errorf("query contract %s: %w", address, err)
	}
	if cs == nil {
		return nil, &bboard.NotFoundError{Address: address}
	}
	if cs.ContractType != ContractType {
		return nil, &bboard.ContractMismatchError{Address: address, Reason: fmt.Sprintf("contract type %q", cs.ContractType)}
	}
	ops, err := Operations(ctx, p.ZKConfig)
	if err != nil {
		return nil, err
	}
	for _, want := range ops {
		got, ok := cs.Operation(want.Circuit)
		if !ok {
			return nil, &bboard.ContractMismatchError{Address: address, Reason: "missing operation " + want.Circuit}
		}
		if !bytes.Equal(got.VerifierKey, want.VerifierKey) {
			return nil, &bboard.ContractMismatchError{Address: address, Reason: "verifier key mismatch for " + want.Circuit}
		}
	}

	existing, err := p.PrivateState.Get(ctx, privateStateKey)
	if err != nil {
		return nil, fmt.Errorf("load private state: %w", err)
	}
	if existing == nil {
		if err := p.PrivateState.Set(ctx, privateStateKey, initial); err != nil {
			return nil, fmt.Errorf("store private state: %w", err)
		}
	}

	final, err := p.PublicData.WatchForTxData(ctx, cs.DeployTx)
	if err != nil {
		return nil, fmt.Errorf("deploy transaction of %s: %w", address, err)
	}
	return &Deployed{
		providers:       p,
		address:         address,
		deployTx:        final,
		privateStateKey: privateStateKey,
	}, nil
}

// Address returns the contract address.
func (d *Deployed) Address() types.ContractAddress { return d.address }

// FinalizedDeployTxData describes the transaction that deployed the
// contract.
func (d *Deployed) FinalizedDeployTxData() types.FinalizedTxData { return d.deployTx }

// PrivateStateKey returns the key the handle's identity is stored under.
func (d *Deployed) PrivateStateKey() string { return d.privateStateKey }

// Post calls the post circuit.
func (d *Deployed) Post(ctx context.Context, message string) (types.FinalizedTxData, error) {
	return d.call(ctx, CircuitPost, func(l types.LedgerState, sk []byte) (types.LedgerState, error) {
		return Post(l, sk, message)
	})
}

// TakeDown calls the take_down circuit.
func (d *Deployed) TakeDown(ctx context.Context) (types.FinalizedTxData, error) {
	return d.call(ctx, CircuitTakeDown, func(l types.LedgerState, sk []byte) (types.LedgerState, error) {
		next, _, err := TakeDown(l, sk)
		return next, err
	})
}

// call executes circuit locally against the latest ledger, then
// proves, balances and submits the resulting transaction.
func (d *Deployed) call(ctx context.Context, circuit string, transition func(types.LedgerState, []byte) (types.LedgerState, error)) (types.FinalizedTxData, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	ps, err := d.providers.PrivateState.Get(ctx, d.privateStateKey)
	if err != nil {
		return types.FinalizedTxData{}, fmt.Errorf("load private state: %w", err)
	}
	if ps == nil {
		return types.FinalizedTxData{}, fmt.Errorf("%s: %w", d.privateStateKey, bboard.ErrPrivateStateMissing)
	}

	cs, err := d.providers.PublicData.QueryContractState(ctx, d.address)
	if err != nil {
		return types.FinalizedTxData{}, fmt.Errorf("query contract %s: %w", d.address, err)
	}
	if cs == nil {
		return types.FinalizedTxData{}, &bboard.NotFoundError{Address: d.address}
	}
	prior, err := types.DecodeLedger(cs.Data)
	if err != nil {
		return types.FinalizedTxData{}, err
	}
	next, err := transition(prior, ps.SecretKey)
	if err != nil {
		return types.FinalizedTxData{}, err
	}
	ledger, err := types.EncodeLedger(next)
	if err != nil {
		return types.FinalizedTxData{}, err
	}
	nonce, err := newNonce()
	if err != nil {
		return types.FinalizedTxData{}, err
	}
	tx := types.Transaction{
		Kind:            types.TxCall,
		ContractAddress: d.address,
		ContractType:    ContractType,
		Circuit:         circuit,
		PriorStateHash:  cs.StateHash,
		Ledger:          ledger,
		Nonce:           nonce,
	}

	zk, err := d.providers.ZKConfig.Get(ctx, circuit)
	if err != nil {
		return types.FinalizedTxData{}, err
	}
	proven, err := d.providers.Proof.ProveTx(ctx, types.UnprovenTransaction{Tx: tx}, zk)
	if err != nil {
		return types.FinalizedTxData{}, fmt.Errorf("prove %s: %w", circuit, err)
	}
	return submit(ctx, d.providers, proven)
}

// submit balances, submits and waits for finalization of tx.
func submit(ctx context.Context, p bboard.Providers, tx types.UnbalancedTransaction) (types.FinalizedTxData, error) {
	hash, err := tx.Tx.Hash()
	if err != nil {
		return types.FinalizedTxData{}, err
	}
	balanced, err := p.Wallet.BalanceTx(ctx, tx, nil)
	if err != nil {
		return types.FinalizedTxData{}, fmt.Errorf("balance transaction: %w", err)
	}
	id, err := p.Midnight.SubmitTx(ctx, balanced)
	if err != nil {
		return types.FinalizedTxData{}, fmt.Errorf("submit transaction: %w", err)
	}
	final, err := p.PublicData.WatchForTxData(ctx, hash)
	if err != nil {
		return types.FinalizedTxData{}, fmt.Errorf("watch transaction %s: %w", id, err)
	}
	if final.TxID == "" {
		final.TxID = id
	}
	return final, nil
}

func newNonce() ([]byte, error) {
	b := make([]byte, nonceSize)
	if _, err := rand.Read(b); err != nil {
		return nil, fmt.Errorf("generate nonce: %w", err)
	}
	return b, nil
}

// Rebind moves the handle's identity to key, so later calls read the
// private state from there.
func (d *Deployed) Rebind(ctx context.Context, key string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if key == d.privateStateKey {
		return nil
	}
	ps, err := d.providers.PrivateState.Get(ctx, d.privateStateKey)
	if err != nil {
		return fmt.Errorf("load private state: %w", err)
	}
	if ps == nil {
		return fmt.Errorf("%s: %w", d.privateStateKey, bboard.ErrPrivateStateMissing)
	}
	if err := d.providers.PrivateState.Set(ctx, key, *ps); err != nil {
		return fmt.Errorf("store private state: %w", err)
	}
	if err := d.providers.PrivateState.Remove(ctx, d.privateStateKey); err != nil {
		return fmt.Errorf("remove private state: %w", err)
	}
	d.privateStateKey = key
	return nil
}
