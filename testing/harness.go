package bboardtest

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/blockberries/bboard"
	"github.com/blockberries/bboard/board"
	"github.com/blockberries/bboard/devnet"
	"github.com/blockberries/bboard/local"
	"github.com/blockberries/bboard/stream"
	"github.com/blockberries/bboard/types"

	"github.com/rs/zerolog"
)

// DefaultTimeout bounds every harness operation.
const DefaultTimeout = 5 * time.Second

// Harness drives board sessions for one identity and fails the test
// on unexpected errors.
type Harness struct {
	t *testing.T
	p bboard.Providers
}

// NewHarness creates a harness over the given providers.
func NewHarness(t *testing.T, p bboard.Providers) *Harness {
	t.Helper()
	return &Harness{t: t, p: p}
}

// Providers returns the providers sessions run against.
func (h *Harness) Providers() bboard.Providers {
	return h.p
}

func (h *Harness) context() context.Context {
	ctx, cancel := context.WithTimeout(context.Background(), DefaultTimeout)
	h.t.Cleanup(cancel)
	return ctx
}

// Deploy deploys a new board.
func (h *Harness) Deploy(opts ...board.Option) *board.API {
	h.t.Helper()
	api, err := board.Deploy(h.context(), h.p, opts...)
	if err != nil {
		h.t.Fatalf("Deploy failed: %v", err)
	}
	return api
}

// Join joins the board at address.
func (h *Harness) Join(address types.ContractAddress, opts ...board.Option) *board.API {
	h.t.Helper()
	api, err := board.Join(h.context(), h.p, address, opts...)
	if err != nil {
		h.t.Fatalf("Join %s failed: %v", address, err)
	}
	return api
}

// Post posts message through api.
func (h *Harness) Post(api bboard.DeployedBoardAPI, message string) {
	h.t.Helper()
	if err := api.Post(h.context(), message); err != nil {
		h.t.Fatalf("Post %q failed: %v", message, err)
	}
}

// TakeDown takes the message down through api.
func (h *Harness) TakeDown(api bboard.DeployedBoardAPI) {
	h.t.Helper()
	if err := api.TakeDown(h.context()); err != nil {
		h.t.Fatalf("TakeDown failed: %v", err)
	}
}

// WaitState waits for a derived state satisfying pred.
func (h *Harness) WaitState(api bboard.DeployedBoardAPI, pred func(types.DerivedState) bool) types.DerivedState {
	h.t.Helper()
	d, err := stream.FirstWhere(h.context(), api.State(), pred)
	if err != nil {
		h.t.Fatalf("waiting for derived state: %v", err)
	}
	return d
}

// MustAssert asserts that err is a circuit assertion failure carrying
// message.
func (h *Harness) MustAssert(err error, message string) {
	h.t.Helper()
	a, ok := bboard.IsAssertion(err)
	if !ok {
		h.t.Fatalf("expected assertion %q, got %v", message, err)
	}
	if a.Message != message {
		h.t.Fatalf("expected assertion %q, got %q", message, a.Message)
	}
}

// --- Predicates ---

// IsVacant matches a vacant board.
func IsVacant(d types.DerivedState) bool { return d.State == types.BoardVacant }

// IsOccupied matches an occupied board.
func IsOccupied(d types.DerivedState) bool { return d.State == types.BoardOccupied }

// HasMessage matches an occupied board showing message.
func HasMessage(message string) func(types.DerivedState) bool {
	return func(d types.DerivedState) bool {
		return d.State == types.BoardOccupied && d.Message != nil && *d.Message == message
	}
}

// AtInstance matches a board at the given instance.
func AtInstance(instance uint64) func(types.DerivedState) bool {
	return func(d types.DerivedState) bool { return d.Instance == instance }
}

// --- Environments ---

// LocalPair starts an in-process network and returns providers for two
// identities on it, each with its own wallet and private state.
func LocalPair(t *testing.T) (owner, peer bboard.Providers) {
	t.Helper()
	stack := local.NewStack(devnet.DefaultConfig(), zerolog.Nop())
	other := local.Attach(stack.Network, fmt.Sprintf("%s-peer", t.Name()))
	return stack.Direct(nil), other.Direct(nil)
}
