// Package local wires board providers straight to an in-process
// network, with no serialization between the client and the node.
//
// A Stack is the standalone environment: one network, a funded wallet
// and the connector that exposes it. Providers built from a Stack go
// through the same bootstrap handshake as a remote connector unless
// Direct is used.
package local

import (
	"context"

	"github.com/blockberries/bboard"
	"github.com/blockberries/bboard/contract"
	"github.com/blockberries/bboard/devnet"
	"github.com/blockberries/bboard/privatestate"
	"github.com/blockberries/bboard/providers"
	"github.com/blockberries/bboard/types"

	"github.com/rs/zerolog"
)

// DefaultWalletSeed seeds the wallet of a new Stack.
const DefaultWalletSeed = "bboard-local"

// Stack is an in-process network with one connected wallet.
type Stack struct {
	Network   *devnet.Network
	Wallet    *devnet.Wallet
	Connector *devnet.Connector
}

// NewStack starts a network from cfg and connects a wallet derived
// from DefaultWalletSeed.
func NewStack(cfg devnet.Config, log zerolog.Logger) *Stack {
	net := devnet.New(cfg, log)
	return Attach(net, DefaultWalletSeed)
}

// Attach connects a new wallet derived from walletSeed to net.
func Attach(net *devnet.Network, walletSeed string, opts ...devnet.ConnectorOption) *Stack {
	w := net.NewWallet(walletSeed)
	return &Stack{
		Network:   net,
		Wallet:    w,
		Connector: net.NewConnector(w, opts...),
	}
}

// BootstrapConfig returns a bootstrap configuration that reaches the
// network through the stack's connector. store is used as the private
// state provider; nil selects a fresh in-memory store.
func (s *Stack) BootstrapConfig(store bboard.PrivateStateProvider) providers.Config {
	if store == nil {
		store = privatestate.NewMemoryStore()
	}
	seed := s.Network.Config().ZKSeed
	return providers.Config{
		Locator: s.Connector.Locator(),
		PrivateState: func(context.Context) (bboard.PrivateStateProvider, error) {
			return store, nil
		},
		ZKConfig: func(context.Context) (bboard.ZKConfigProvider, error) {
			return contract.NewZKConfigProvider(seed), nil
		},
		PublicData: func(context.Context, types.ServiceURIConfig) (bboard.PublicDataProvider, error) {
			return s.Network, nil
		},
		Proof: func(context.Context, types.ServiceURIConfig) (bboard.ProofProvider, error) {
			return devnet.NewProver(), nil
		},
	}
}

// NewBootstrap returns a Bootstrap over BootstrapConfig(store).
func (s *Stack) NewBootstrap(store bboard.PrivateStateProvider, log zerolog.Logger) *providers.Bootstrap {
	return providers.New(s.BootstrapConfig(store), log)
}

// Direct builds the provider bundle without the connector handshake.
func (s *Stack) Direct(store bboard.PrivateStateProvider) bboard.Providers {
	if store == nil {
		store = privatestate.NewMemoryStore()
	}
	wallet, midnight := providers.WalletProviders(s.Wallet.CoinPublicKey(), s.Wallet)
	return bboard.Providers{
		PrivateState: store,
		PublicData:   s.Network,
		ZKConfig:     contract.NewZKConfigProvider(s.Network.Config().ZKSeed),
		Proof:        devnet.NewProver(),
		Wallet:       wallet,
		Midnight:     midnight,
	}
}
