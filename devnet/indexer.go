package devnet

import (
	"context"

	"github.com/blockberries/bboard"
	"github.com/blockberries/bboard/stream"
	"github.com/blockberries/bboard/types"
)

// Compile-time interface check.
var _ bboard.PublicDataProvider = (*Network)(nil)

// QueryContractState returns the latest state of the contract at
// address, or nil when nothing is deployed there.
func (n *Network) QueryContractState(_ context.Context, address types.ContractAddress) (*types.ContractState, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	rec, ok := n.contracts[address]
	if !ok || rec.state == nil {
		return nil, nil
	}
	state := *rec.state
	return &state, nil
}

// ContractStateObservable streams the states of the contract at
// address, starting with the latest one. Watching an address before
// anything is deployed there is allowed; the empty record lives only
// as long as someone watches it.
func (n *Network) ContractStateObservable(address types.ContractAddress, _ types.WatchConfig) stream.Observable[types.ContractState] {
	return stream.ObservableFunc[types.ContractState](func(o stream.Observer[types.ContractState]) stream.Subscription {
		n.mu.Lock()
		rec := n.recordLocked(address)
		rec.watchers++
		n.mu.Unlock()

		sub := rec.subject.Subscribe(o)
		return stream.SubscriptionFunc(func() {
			sub.Unsubscribe()
			n.mu.Lock()
			defer n.mu.Unlock()
			rec.watchers--
			if rec.watchers == 0 && rec.state == nil && n.contracts[address] == rec {
				delete(n.contracts, address)
			}
		})
	})
}

// WatchForTxData blocks until the transaction is finalized.
func (n *Network) WatchForTxData(ctx context.Context, txHash types.Hash) (types.FinalizedTxData, error) {
	n.mu.Lock()
	if final, ok := n.txs[txHash]; ok {
		n.mu.Unlock()
		return final, nil
	}
	ch := make(chan types.FinalizedTxData, 1)
	n.waiters[txHash] = append(n.waiters[txHash], ch)
	n.mu.Unlock()

	select {
	case final := <-ch:
		return final, nil
	case <-ctx.Done():
		n.mu.Lock()
		waiters := n.waiters[txHash]
		for i, w := range waiters {
			if w == ch {
				n.waiters[txHash] = append(waiters[:i], waiters[i+1:]...)
				break
			}
		}
		if len(n.waiters[txHash]) == 0 {
			delete(n.waiters, txHash)
		}
		n.mu.Unlock()
		return types.FinalizedTxData{}, ctx.Err()
	}
}
