package board

import (
	"context"
	"encoding/hex"
	"fmt"

	"github.com/blockberries/bboard"
	"github.com/blockberries/bboard/contract"
	"github.com/blockberries/bboard/metrics"
	"github.com/blockberries/bboard/stream"
	"github.com/blockberries/bboard/types"

	"github.com/rs/zerolog"
)

// Derive combines one ledger state with the local private state.
func Derive(l types.LedgerState, ps types.PrivateState) types.DerivedState {
	d := types.DerivedState{
		State:    l.State,
		Instance: l.Instance,
		IsOwner:  contract.IsPoster(l, ps.SecretKey),
	}
	if l.State == types.BoardOccupied {
		d.Message = l.Message
	}
	return d
}

// DeriveState emits one derived state per ledger state once the
// private state is available, in ledger order. A failed private state
// fetch fails the whole stream.
func DeriveState(ledger stream.Observable[types.LedgerState], private stream.Observable[types.PrivateState]) stream.Observable[types.DerivedState] {
	return stream.CombineLatest2(ledger, private, Derive)
}

// LedgerStates decodes the contract states of the board at address.
func LedgerStates(p bboard.PublicDataProvider, address types.ContractAddress, log zerolog.Logger) stream.Observable[types.LedgerState] {
	states := p.ContractStateObservable(address, types.WatchConfig{Type: types.WatchLatest})
	return stream.MapErr(states, func(cs types.ContractState) (types.LedgerState, error) {
		l, err := types.DecodeLedger(cs.Data)
		if err != nil {
			return types.LedgerState{}, fmt.Errorf("ledger of %s: %w", address, err)
		}
		metrics.LedgerUpdatesTotal.Inc()
		log.Trace().
			Str("state", l.State.String()).
			Uint64("instance", l.Instance).
			Str("poster", hex.EncodeToString(l.Poster)).
			Uint64("blockHeight", cs.BlockHeight).
			Msg("ledgerStateChanged")
		return l, nil
	})
}

// PrivateStateOnce fetches the private state under key once, on first
// subscription.
func PrivateStateOnce(p bboard.PrivateStateProvider, key string) stream.Observable[types.PrivateState] {
	return stream.FromFunc(context.Background(), func(ctx context.Context) (types.PrivateState, error) {
		ps, err := p.Get(ctx, key)
		if err != nil {
			return types.PrivateState{}, fmt.Errorf("load private state %s: %w", key, err)
		}
		if ps == nil {
			return types.PrivateState{}, fmt.Errorf("%s: %w", key, bboard.ErrPrivateStateMissing)
		}
		return *ps, nil
	})
}
