package bboardtest

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/blockberries/bboard"
	"github.com/blockberries/bboard/board"
	"github.com/blockberries/bboard/contract"
	"github.com/blockberries/bboard/stream"
	"github.com/blockberries/bboard/types"
)

// Factory returns providers for two identities on a fresh network.
type Factory func(t *testing.T) (owner, peer bboard.Providers)

// RunComplianceSuite checks the board behaviour every provider stack
// must support.
//
// The factory should return providers on a fresh network for each
// test.
func RunComplianceSuite(t *testing.T, factory Factory) {
	t.Helper()

	t.Run("deploy_starts_vacant", func(t *testing.T) {
		owner, _ := factory(t)
		h := NewHarness(t, owner)
		api := h.Deploy()
		d := h.WaitState(api, IsVacant)
		if d.Message != nil {
			t.Errorf("vacant board should have no message, got %q", *d.Message)
		}
		if d.Instance != 1 {
			t.Errorf("expected instance 1, got %d", d.Instance)
		}
		if api.DeployedContractAddress() == "" {
			t.Error("deployed board has no address")
		}
	})

	t.Run("post_take_down_cycle", func(t *testing.T) {
		owner, _ := factory(t)
		h := NewHarness(t, owner)
		api := h.Deploy()
		h.WaitState(api, IsVacant)

		h.Post(api, "hello")
		d := h.WaitState(api, HasMessage("hello"))
		if !d.IsOwner {
			t.Error("poster should own the message")
		}

		h.MustAssert(api.Post(h.context(), "world"), contract.MsgOccupied)
		h.WaitState(api, HasMessage("hello"))

		h.TakeDown(api)
		d = h.WaitState(api, IsVacant)
		if d.Message != nil {
			t.Errorf("expected no message after take down, got %q", *d.Message)
		}

		h.MustAssert(api.TakeDown(h.context()), contract.MsgVacant)
	})

	t.Run("ascii_round_trip", func(t *testing.T) {
		owner, _ := factory(t)
		h := NewHarness(t, owner)

		var b strings.Builder
		for c := 0; c < 128; c++ {
			b.WriteByte(byte(c))
		}
		msg := b.String()

		api := h.Deploy()
		h.Post(api, msg)
		d := h.WaitState(api, IsOccupied)
		if d.Message == nil || *d.Message != msg {
			t.Fatalf("message did not round trip: %q", d.Message)
		}
		if !d.IsOwner {
			t.Error("poster should own the message")
		}
	})

	t.Run("ownership_per_identity", func(t *testing.T) {
		owner, peer := factory(t)
		ho := NewHarness(t, owner)
		hp := NewHarness(t, peer)

		mine := ho.Deploy()
		ho.Post(mine, "owner's")
		theirs := hp.Join(mine.DeployedContractAddress())

		d := hp.WaitState(theirs, HasMessage("owner's"))
		if d.IsOwner {
			t.Error("joining identity should not own the message")
		}
		hp.MustAssert(theirs.TakeDown(hp.context()), contract.MsgNotPoster)

		ho.TakeDown(mine)
		hp.WaitState(theirs, AtInstance(2))
		hp.Post(theirs, "peer's")
		if d := ho.WaitState(mine, HasMessage("peer's")); d.IsOwner {
			t.Error("owner should not own the peer's message")
		}
		if d := hp.WaitState(theirs, HasMessage("peer's")); !d.IsOwner {
			t.Error("peer should own its message")
		}
	})

	t.Run("join_missing_board", func(t *testing.T) {
		owner, _ := factory(t)
		h := NewHarness(t, owner)
		_, err := board.Join(h.context(), owner, types.ContractAddress(strings.Repeat("ab", 32)))
		var nf *bboard.NotFoundError
		if !errors.As(err, &nf) {
			t.Fatalf("expected NotFoundError, got %v", err)
		}
	})

	t.Run("concurrent_state_subscribers", func(t *testing.T) {
		owner, _ := factory(t)
		h := NewHarness(t, owner)
		api := h.Deploy()
		h.Post(api, "shared")

		var wg sync.WaitGroup
		for i := 0; i < 10; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				ctx, cancel := context.WithTimeout(context.Background(), DefaultTimeout)
				defer cancel()
				d, err := stream.FirstWhere(ctx, api.State(), IsOccupied)
				if err != nil {
					t.Errorf("subscriber failed: %v", err)
					return
				}
				if d.Message == nil || *d.Message != "shared" {
					t.Errorf("subscriber saw %v", d.Message)
				}
			}()
		}
		wg.Wait()
	})
}
