// Package bboardtest provides test utilities for board clients and
// provider implementations, including configurable connector and
// wallet mocks, a session harness and a board compliance suite.
package bboardtest

import (
	"context"
	"sync/atomic"

	"github.com/blockberries/bboard"
	"github.com/blockberries/bboard/types"
)

// Compile-time interface checks.
var (
	_ bboard.ConnectorAPI     = (*MockConnector)(nil)
	_ bboard.WalletAPI        = (*MockWallet)(nil)
	_ bboard.ConnectorLocator = (*MockLocator)(nil)
)

// DefaultAPIVersion is the version a MockConnector reports when
// Version is empty.
const DefaultAPIVersion = "1.0.0"

// MockConnector is a configurable wallet connector. All methods are
// configurable via function fields. Unconfigured methods succeed: the
// connector reports itself enabled and hands out Wallet.
type MockConnector struct {
	Version string
	Wallet  bboard.WalletAPI
	URIs    types.ServiceURIConfig

	// Configurable handlers. If nil, defaults are used.
	IsEnabledFn        func(context.Context) (bool, error)
	EnableFn           func(context.Context) (bboard.WalletAPI, error)
	ServiceURIConfigFn func(context.Context) (types.ServiceURIConfig, error)

	// Call counters (atomic for concurrent access).
	IsEnabledCalls        atomic.Int64
	EnableCalls           atomic.Int64
	ServiceURIConfigCalls atomic.Int64
}

func (m *MockConnector) APIVersion() string {
	if m.Version == "" {
		return DefaultAPIVersion
	}
	return m.Version
}

func (m *MockConnector) IsEnabled(ctx context.Context) (bool, error) {
	m.IsEnabledCalls.Add(1)
	if m.IsEnabledFn != nil {
		return m.IsEnabledFn(ctx)
	}
	return true, nil
}

func (m *MockConnector) Enable(ctx context.Context) (bboard.WalletAPI, error) {
	m.EnableCalls.Add(1)
	if m.EnableFn != nil {
		return m.EnableFn(ctx)
	}
	if m.Wallet == nil {
		return &MockWallet{}, nil
	}
	return m.Wallet, nil
}

func (m *MockConnector) ServiceURIConfig(ctx context.Context) (types.ServiceURIConfig, error) {
	m.ServiceURIConfigCalls.Add(1)
	if m.ServiceURIConfigFn != nil {
		return m.ServiceURIConfigFn(ctx)
	}
	return m.URIs, nil
}

// MockWallet is a configurable wallet. Unconfigured methods report an
// empty wallet, balance transactions at no fee and submit nothing.
type MockWallet struct {
	StateFn   func(context.Context) (types.WalletState, error)
	BalanceFn func(context.Context, types.UnbalancedTransaction, []types.CoinInfo) (types.BalancedTransaction, error)
	SubmitFn  func(context.Context, types.BalancedTransaction) (types.TransactionID, error)

	StateCalls   atomic.Int64
	BalanceCalls atomic.Int64
	SubmitCalls  atomic.Int64
}

func (m *MockWallet) State(ctx context.Context) (types.WalletState, error) {
	m.StateCalls.Add(1)
	if m.StateFn != nil {
		return m.StateFn(ctx)
	}
	return types.WalletState{Address: "mock", CoinPublicKey: []byte("mock")}, nil
}

func (m *MockWallet) BalanceAndProveTransaction(ctx context.Context, tx types.UnbalancedTransaction, newCoins []types.CoinInfo) (types.BalancedTransaction, error) {
	m.BalanceCalls.Add(1)
	if m.BalanceFn != nil {
		return m.BalanceFn(ctx, tx, newCoins)
	}
	return types.BalancedTransaction{Tx: tx.Tx, Proof: tx.Proof}, nil
}

func (m *MockWallet) SubmitTransaction(ctx context.Context, tx types.BalancedTransaction) (types.TransactionID, error) {
	m.SubmitCalls.Add(1)
	if m.SubmitFn != nil {
		return m.SubmitFn(ctx, tx)
	}
	hash, err := tx.Tx.Hash()
	if err != nil {
		return "", err
	}
	return types.TransactionID(hash.String()), nil
}

// MockLocator finds Connector once it has been asked Misses times. A
// nil Connector is never found.
type MockLocator struct {
	Connector bboard.ConnectorAPI
	Misses    int64

	Calls atomic.Int64
}

func (m *MockLocator) Locate(context.Context) bboard.ConnectorAPI {
	if m.Calls.Add(1) <= m.Misses || m.Connector == nil {
		return nil
	}
	return m.Connector
}
