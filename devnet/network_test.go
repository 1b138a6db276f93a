package devnet

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/blockberries/bboard"
	"github.com/blockberries/bboard/contract"
	"github.com/blockberries/bboard/stream"
	"github.com/blockberries/bboard/types"

	"github.com/rs/zerolog"
)

func newTestNetwork(t *testing.T) (*Network, *Wallet) {
	t.Helper()
	n := New(DefaultConfig(), zerolog.Nop())
	return n, n.NewWallet("test")
}

func deployBoard(t *testing.T, n *Network, w *Wallet) types.ContractState {
	t.Helper()
	ctx := context.Background()
	ops, err := contract.Operations(ctx, contract.NewZKConfigProvider(n.Config().ZKSeed))
	if err != nil {
		t.Fatalf("Operations: %v", err)
	}
	ledger, err := types.EncodeLedger(contract.InitialLedger())
	if err != nil {
		t.Fatalf("EncodeLedger: %v", err)
	}
	tx := types.Transaction{
		Kind:         types.TxDeploy,
		ContractType: contract.ContractType,
		Ledger:       ledger,
		Operations:   ops,
		Nonce:        []byte{1},
	}
	balanced, err := w.BalanceAndProveTransaction(ctx, types.UnbalancedTransaction{Tx: tx}, nil)
	if err != nil {
		t.Fatalf("BalanceAndProveTransaction: %v", err)
	}
	if _, err := w.SubmitTransaction(ctx, balanced); err != nil {
		t.Fatalf("SubmitTransaction: %v", err)
	}
	hash, _ := tx.Hash()
	cs, err := n.QueryContractState(ctx, AddressFor(hash))
	if err != nil || cs == nil {
		t.Fatalf("QueryContractState: %v %v", cs, err)
	}
	return *cs
}

// postTx builds a proven post call against cs.
func postTx(t *testing.T, n *Network, w *Wallet, cs types.ContractState, sk []byte, msg string) types.BalancedTransaction {
	t.Helper()
	ctx := context.Background()
	prior, err := types.DecodeLedger(cs.Data)
	if err != nil {
		t.Fatalf("DecodeLedger: %v", err)
	}
	next, err := contract.Post(prior, sk, msg)
	if err != nil {
		t.Fatalf("Post: %v", err)
	}
	ledger, _ := types.EncodeLedger(next)
	tx := types.Transaction{
		Kind:            types.TxCall,
		ContractAddress: cs.Address,
		ContractType:    contract.ContractType,
		Circuit:         contract.CircuitPost,
		PriorStateHash:  cs.StateHash,
		Ledger:          ledger,
		Nonce:           []byte(msg),
	}
	zk, _ := contract.NewZKConfigProvider(n.Config().ZKSeed).Get(ctx, contract.CircuitPost)
	proven, err := NewProver().ProveTx(ctx, types.UnprovenTransaction{Tx: tx}, zk)
	if err != nil {
		t.Fatalf("ProveTx: %v", err)
	}
	balanced, err := w.BalanceAndProveTransaction(ctx, proven, nil)
	if err != nil {
		t.Fatalf("BalanceAndProveTransaction: %v", err)
	}
	return balanced
}

func TestNetwork_Deploy(t *testing.T) {
	n, w := newTestNetwork(t)
	before := n.Balance(w.CoinPublicKey())

	cs := deployBoard(t, n, w)
	if cs.ContractType != contract.ContractType {
		t.Fatalf("unexpected contract type %q", cs.ContractType)
	}
	if cs.BlockHeight != 1 || n.Height() != 1 {
		t.Fatalf("expected height 1, got state=%d network=%d", cs.BlockHeight, n.Height())
	}
	if cs.StateHash != types.StateHash(cs.Data) {
		t.Fatal("state hash does not match data")
	}
	if got := n.Balance(w.CoinPublicKey()); got != before-n.Config().Fee {
		t.Fatalf("expected fee deducted, balance %d -> %d", before, got)
	}

	final, err := n.WatchForTxData(context.Background(), cs.DeployTx)
	if err != nil {
		t.Fatalf("WatchForTxData: %v", err)
	}
	if final.ContractAddress != cs.Address {
		t.Fatalf("finalized address %s != %s", final.ContractAddress, cs.Address)
	}
}

func TestNetwork_CallUpdatesStream(t *testing.T) {
	n, w := newTestNetwork(t)
	cs := deployBoard(t, n, w)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	states, _ := stream.Values(ctx, n.ContractStateObservable(cs.Address, types.WatchConfig{}))

	first := <-states
	if first.StateHash != cs.StateHash {
		t.Fatal("expected latest state first")
	}

	sk := make([]byte, 32)
	if _, err := n.Submit(ctx, postTx(t, n, w, cs, sk, "hello")); err != nil {
		t.Fatalf("Submit: %v", err)
	}

	select {
	case next := <-states:
		l, err := types.DecodeLedger(next.Data)
		if err != nil {
			t.Fatalf("DecodeLedger: %v", err)
		}
		if l.State != types.BoardOccupied || *l.Message != "hello" {
			t.Fatalf("unexpected ledger %+v", l)
		}
	case <-ctx.Done():
		t.Fatal("no state update")
	}
}

func TestNetwork_RejectsStaleState(t *testing.T) {
	n, w := newTestNetwork(t)
	cs := deployBoard(t, n, w)
	sk := make([]byte, 32)

	first := postTx(t, n, w, cs, sk, "one")
	second := postTx(t, n, w, cs, sk, "two")
	if _, err := n.Submit(context.Background(), first); err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if _, err := n.Submit(context.Background(), second); !errors.Is(err, ErrStaleState) {
		t.Fatalf("expected ErrStaleState, got %v", err)
	}
}

func TestNetwork_RejectsDuplicate(t *testing.T) {
	n, w := newTestNetwork(t)
	cs := deployBoard(t, n, w)
	tx := postTx(t, n, w, cs, make([]byte, 32), "once")
	if _, err := n.Submit(context.Background(), tx); err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if _, err := n.Submit(context.Background(), tx); !errors.Is(err, ErrDuplicateTx) {
		t.Fatalf("expected ErrDuplicateTx, got %v", err)
	}
}

func TestNetwork_RejectsInvalidProof(t *testing.T) {
	n, w := newTestNetwork(t)
	cs := deployBoard(t, n, w)
	tx := postTx(t, n, w, cs, make([]byte, 32), "forged")
	tx.Proof = []byte("not a proof")
	if _, err := n.Submit(context.Background(), tx); !errors.Is(err, ErrInvalidProof) {
		t.Fatalf("expected ErrInvalidProof, got %v", err)
	}
}

func TestNetwork_RejectsInvalidTransition(t *testing.T) {
	n, w := newTestNetwork(t)
	cs := deployBoard(t, n, w)
	sk := make([]byte, 32)
	if _, err := n.Submit(context.Background(), postTx(t, n, w, cs, sk, "first")); err != nil {
		t.Fatalf("Submit: %v", err)
	}
	occupied, _ := n.QueryContractState(context.Background(), cs.Address)

	// Forge a post over an occupied board by starting from a vacant ledger.
	forged := postTx(t, n, w, cs, sk, "second")
	forged.Tx.PriorStateHash = occupied.StateHash
	zk, _ := contract.NewZKConfigProvider(n.Config().ZKSeed).Get(context.Background(), contract.CircuitPost)
	proof, _ := ProofDigest(zk.VerifierKey, forged.Tx)
	forged.Proof = proof

	_, err := n.Submit(context.Background(), forged)
	a, ok := bboard.IsAssertion(err)
	if !ok {
		t.Fatalf("expected assertion error, got %v", err)
	}
	if a.Message != contract.MsgOccupied {
		t.Fatalf("unexpected assertion %q", a.Message)
	}
}

func TestNetwork_InsufficientFunds(t *testing.T) {
	cfg := DefaultConfig()
	cfg.InitialBalance = 0
	n := New(cfg, zerolog.Nop())
	w := n.NewWallet("broke")
	_, err := w.BalanceAndProveTransaction(context.Background(), types.UnbalancedTransaction{}, nil)
	if !errors.Is(err, ErrInsufficientFunds) {
		t.Fatalf("expected ErrInsufficientFunds, got %v", err)
	}
}

func TestNetwork_WatchBeforeFinalization(t *testing.T) {
	n, w := newTestNetwork(t)
	cs := deployBoard(t, n, w)
	tx := postTx(t, n, w, cs, make([]byte, 32), "later")
	hash, _ := tx.Tx.Hash()

	done := make(chan types.FinalizedTxData, 1)
	go func() {
		final, err := n.WatchForTxData(context.Background(), hash)
		if err != nil {
			t.Errorf("WatchForTxData: %v", err)
		}
		done <- final
	}()

	time.Sleep(10 * time.Millisecond)
	if _, err := n.Submit(context.Background(), tx); err != nil {
		t.Fatalf("Submit: %v", err)
	}
	select {
	case final := <-done:
		if final.TxHash != hash || final.BlockHeight != 2 {
			t.Fatalf("unexpected finalized data %+v", final)
		}
	case <-time.After(time.Second):
		t.Fatal("watcher not notified")
	}
}

func TestNetwork_WatchCancelled(t *testing.T) {
	n, _ := newTestNetwork(t)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	if _, err := n.WatchForTxData(ctx, types.Hash{1}); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}
}

func TestConnector(t *testing.T) {
	n, w := newTestNetwork(t)
	ctx := context.Background()

	c := n.NewConnector(w)
	if c.APIVersion() != ConnectorAPIVersion {
		t.Fatalf("unexpected version %s", c.APIVersion())
	}
	enabled, _ := c.IsEnabled(ctx)
	if enabled {
		t.Fatal("connector should start disabled")
	}
	api, err := c.Enable(ctx)
	if err != nil {
		t.Fatalf("Enable: %v", err)
	}
	state, err := api.State(ctx)
	if err != nil {
		t.Fatalf("State: %v", err)
	}
	if state.Balance != n.Config().InitialBalance {
		t.Fatalf("unexpected balance %d", state.Balance)
	}
	if enabled, _ := c.IsEnabled(ctx); !enabled {
		t.Fatal("connector should be enabled")
	}

	refusing := n.NewConnector(w, WithAuthorization(false))
	if _, err := refusing.Enable(ctx); !errors.Is(err, bboard.ErrNotAuthorized) {
		t.Fatalf("expected ErrNotAuthorized, got %v", err)
	}
}

func TestNetwork_UnwatchedAddressIsForgotten(t *testing.T) {
	n, w := newTestNetwork(t)
	records := func() int {
		n.mu.Lock()
		defer n.mu.Unlock()
		return len(n.contracts)
	}

	sub := n.ContractStateObservable("nowhere", types.WatchConfig{}).Subscribe(stream.Funcs[types.ContractState]{})
	if c := records(); c != 1 {
		t.Fatalf("expected the watched address to have a record, got %d", c)
	}
	sub.Unsubscribe()
	sub.Unsubscribe()
	if c := records(); c != 0 {
		t.Fatalf("expected the record to be dropped with its last watcher, got %d", c)
	}

	cs := deployBoard(t, n, w)
	sub = n.ContractStateObservable(cs.Address, types.WatchConfig{}).Subscribe(stream.Funcs[types.ContractState]{})
	sub.Unsubscribe()
	if c := records(); c != 1 {
		t.Fatalf("expected the deployed contract to stay, got %d records", c)
	}
	if got, _ := n.QueryContractState(context.Background(), cs.Address); got == nil {
		t.Fatal("deployed contract lost after its watcher left")
	}
}

func TestNetwork_WatchBeforeDeploy(t *testing.T) {
	n, w := newTestNetwork(t)
	ctx := context.Background()
	ops, err := contract.Operations(ctx, contract.NewZKConfigProvider(n.Config().ZKSeed))
	if err != nil {
		t.Fatalf("Operations: %v", err)
	}
	ledger, _ := types.EncodeLedger(contract.InitialLedger())
	tx := types.Transaction{
		Kind:         types.TxDeploy,
		ContractType: contract.ContractType,
		Ledger:       ledger,
		Operations:   ops,
		Nonce:        []byte{1},
	}
	hash, _ := tx.Hash()

	got := make(chan types.ContractState, 1)
	sub := n.ContractStateObservable(AddressFor(hash), types.WatchConfig{}).Subscribe(stream.Funcs[types.ContractState]{
		Next: func(cs types.ContractState) { got <- cs },
	})
	defer sub.Unsubscribe()

	deployBoard(t, n, w)
	select {
	case cs := <-got:
		if cs.Address != AddressFor(hash) {
			t.Fatalf("unexpected address %s", cs.Address)
		}
	case <-time.After(time.Second):
		t.Fatal("watcher not notified of the deployment")
	}
}
