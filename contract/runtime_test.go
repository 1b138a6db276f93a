package contract_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/blockberries/bboard"
	"github.com/blockberries/bboard/contract"
	"github.com/blockberries/bboard/devnet"
	"github.com/blockberries/bboard/local"
	"github.com/blockberries/bboard/privatestate"
	"github.com/blockberries/bboard/types"

	"github.com/rs/zerolog"
)

func setup(t *testing.T) (context.Context, *local.Stack, *privatestate.MemoryStore, *contract.Deployed) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	t.Cleanup(cancel)

	stack := local.NewStack(devnet.DefaultConfig(), zerolog.Nop())
	store := privatestate.NewMemoryStore()
	ps, err := contract.NewPrivateState()
	if err != nil {
		t.Fatal(err)
	}
	d, err := contract.Deploy(ctx, stack.Direct(store), "key", ps)
	if err != nil {
		t.Fatalf("Deploy failed: %v", err)
	}
	return ctx, stack, store, d
}

func ledgerOf(t *testing.T, ctx context.Context, stack *local.Stack, address types.ContractAddress) types.LedgerState {
	t.Helper()
	cs, err := stack.Network.QueryContractState(ctx, address)
	if err != nil || cs == nil {
		t.Fatalf("query %s: %v", address, err)
	}
	l, err := types.DecodeLedger(cs.Data)
	if err != nil {
		t.Fatal(err)
	}
	return l
}

func TestDeploy_InitialLedger(t *testing.T) {
	ctx, stack, store, d := setup(t)

	final := d.FinalizedDeployTxData()
	if d.Address() != devnet.AddressFor(final.TxHash) {
		t.Errorf("address %s does not derive from deploy tx %s", d.Address(), final.TxHash)
	}
	if final.BlockHeight != 1 || final.TxID == "" {
		t.Errorf("unexpected deploy tx data %+v", final)
	}

	l := ledgerOf(t, ctx, stack, d.Address())
	if l.State != types.BoardVacant || l.Instance != 1 || l.Message != nil {
		t.Errorf("unexpected initial ledger %+v", l)
	}
	if ps, _ := store.Get(ctx, "key"); ps == nil || len(ps.SecretKey) != contract.SecretKeySize {
		t.Error("expected the private state to be stored")
	}
}

func TestDeployed_PostAndTakeDown(t *testing.T) {
	ctx, stack, store, d := setup(t)

	posted, err := d.Post(ctx, "note")
	if err != nil {
		t.Fatalf("Post failed: %v", err)
	}
	l := ledgerOf(t, ctx, stack, d.Address())
	ps, _ := store.Get(ctx, "key")
	if l.State != types.BoardOccupied || *l.Message != "note" || !contract.IsPoster(l, ps.SecretKey) {
		t.Fatalf("unexpected ledger after post %+v", l)
	}

	removed, err := d.TakeDown(ctx)
	if err != nil {
		t.Fatalf("TakeDown failed: %v", err)
	}
	if removed.BlockHeight <= posted.BlockHeight {
		t.Errorf("expected take down after post, got heights %d and %d", posted.BlockHeight, removed.BlockHeight)
	}
	if l := ledgerOf(t, ctx, stack, d.Address()); l.State != types.BoardVacant || l.Instance != 2 {
		t.Errorf("unexpected ledger after take down %+v", l)
	}
}

func TestDeployed_ConcurrentPostsSerialized(t *testing.T) {
	ctx, _, _, d := setup(t)

	const n = 10
	errs := make([]error, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = d.Post(ctx, "race")
		}(i)
	}
	wg.Wait()

	var ok, occupied int
	for _, err := range errs {
		switch a, isAssert := bboard.IsAssertion(err); {
		case err == nil:
			ok++
		case isAssert && a.Message == contract.MsgOccupied:
			occupied++
		default:
			t.Errorf("unexpected error: %v", err)
		}
	}
	if ok != 1 || occupied != n-1 {
		t.Errorf("expected 1 success and %d occupied failures, got %d and %d", n-1, ok, occupied)
	}
}

func TestFind_KeepsExistingPrivateState(t *testing.T) {
	ctx, stack, store, d := setup(t)

	before, _ := store.Get(ctx, "key")
	fresh, _ := contract.NewPrivateState()
	found, err := contract.Find(ctx, stack.Direct(store), d.Address(), "key", fresh)
	if err != nil {
		t.Fatalf("Find failed: %v", err)
	}
	after, _ := store.Get(ctx, "key")
	if string(before.SecretKey) != string(after.SecretKey) {
		t.Error("Find replaced an existing private state")
	}
	if found.FinalizedDeployTxData().TxHash != d.FinalizedDeployTxData().TxHash {
		t.Error("Find reported another deploy transaction")
	}
}

func TestFind_StoresInitialPrivateState(t *testing.T) {
	ctx, stack, store, d := setup(t)

	fresh, _ := contract.NewPrivateState()
	if _, err := contract.Find(ctx, stack.Direct(store), d.Address(), "other", fresh); err != nil {
		t.Fatalf("Find failed: %v", err)
	}
	got, _ := store.Get(ctx, "other")
	if got == nil || string(got.SecretKey) != string(fresh.SecretKey) {
		t.Error("expected the initial private state under the new key")
	}
}

func TestDeployed_MissingPrivateState(t *testing.T) {
	ctx, _, store, d := setup(t)

	if err := store.Remove(ctx, "key"); err != nil {
		t.Fatal(err)
	}
	if _, err := d.Post(ctx, "orphan"); !errors.Is(err, bboard.ErrPrivateStateMissing) {
		t.Fatalf("expected ErrPrivateStateMissing, got %v", err)
	}
}

func TestDeployed_Rebind(t *testing.T) {
	ctx, _, store, d := setup(t)

	before, _ := store.Get(ctx, "key")
	if err := d.Rebind(ctx, "moved"); err != nil {
		t.Fatalf("Rebind failed: %v", err)
	}
	if d.PrivateStateKey() != "moved" {
		t.Errorf("expected key moved, got %s", d.PrivateStateKey())
	}
	if old, _ := store.Get(ctx, "key"); old != nil {
		t.Error("expected the old key to be removed")
	}
	moved, _ := store.Get(ctx, "moved")
	if moved == nil || string(moved.SecretKey) != string(before.SecretKey) {
		t.Fatal("expected the private state under the new key")
	}
	if _, err := d.Post(ctx, "after rebind"); err != nil {
		t.Fatalf("Post after Rebind failed: %v", err)
	}
}

func TestDeployed_ReadsLatestLedger(t *testing.T) {
	ctx, stack, store, d := setup(t)

	// A second handle on the same board changes the ledger; the first
	// handle reads the latest state on its next call.
	ps, _ := store.Get(ctx, "key")
	other, err := contract.Find(ctx, stack.Direct(store), d.Address(), "key", *ps)
	if err != nil {
		t.Fatalf("Find failed: %v", err)
	}
	if _, err := other.Post(ctx, "from other"); err != nil {
		t.Fatalf("Post failed: %v", err)
	}
	if _, err := d.TakeDown(ctx); err != nil {
		t.Fatalf("TakeDown through the first handle failed: %v", err)
	}
}
