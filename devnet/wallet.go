package devnet

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sync"

	"github.com/blockberries/bboard"
	"github.com/blockberries/bboard/types"
)

// Compile-time interface checks.
var (
	_ bboard.WalletAPI    = (*Wallet)(nil)
	_ bboard.ConnectorAPI = (*Connector)(nil)
)

// ConnectorAPIVersion is the connector API version devnet connectors
// report by default.
const ConnectorAPIVersion = "1.1.0"

// Wallet is a funded account on a network.
type Wallet struct {
	net           *Network
	coinPublicKey []byte
}

// NewWallet derives a wallet from seed and funds it with the
// configured initial balance.
func (n *Network) NewWallet(seed string) *Wallet {
	sum := sha256.Sum256([]byte("bboard:wallet:" + seed))
	w := &Wallet{net: n, coinPublicKey: sum[:]}
	n.Fund(w.coinPublicKey, n.cfg.InitialBalance)
	return w
}

// CoinPublicKey returns the key fees are paid from.
func (w *Wallet) CoinPublicKey() []byte { return w.coinPublicKey }

func (w *Wallet) State(_ context.Context) (types.WalletState, error) {
	return types.WalletState{
		Address:       hex.EncodeToString(w.coinPublicKey),
		CoinPublicKey: w.coinPublicKey,
		Balance:       w.net.Balance(w.coinPublicKey),
	}, nil
}

// BalanceAndProveTransaction attaches the network fee to tx.
func (w *Wallet) BalanceAndProveTransaction(_ context.Context, tx types.UnbalancedTransaction, _ []types.CoinInfo) (types.BalancedTransaction, error) {
	fee := w.net.cfg.Fee
	if w.net.Balance(w.coinPublicKey) < fee {
		return types.BalancedTransaction{}, fmt.Errorf("balance transaction: %w", ErrInsufficientFunds)
	}
	return types.BalancedTransaction{
		Tx:    tx.Tx,
		Proof: tx.Proof,
		Fee:   fee,
		Payer: w.coinPublicKey,
	}, nil
}

func (w *Wallet) SubmitTransaction(ctx context.Context, tx types.BalancedTransaction) (types.TransactionID, error) {
	return w.net.Submit(ctx, tx)
}

// Connector is the wallet connector of a network. Enable succeeds
// unless the connector was configured to refuse authorization.
type Connector struct {
	net        *Network
	wallet     *Wallet
	apiVersion string
	authorize  bool

	mu      sync.Mutex
	enabled bool
}

// ConnectorOption configures a Connector.
type ConnectorOption func(*Connector)

// WithAPIVersion overrides the reported connector API version.
func WithAPIVersion(v string) ConnectorOption {
	return func(c *Connector) { c.apiVersion = v }
}

// WithAuthorization controls whether Enable is granted.
func WithAuthorization(granted bool) ConnectorOption {
	return func(c *Connector) { c.authorize = granted }
}

// NewConnector creates a connector for w.
func (n *Network) NewConnector(w *Wallet, opts ...ConnectorOption) *Connector {
	c := &Connector{net: n, wallet: w, apiVersion: ConnectorAPIVersion, authorize: true}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Connector) APIVersion() string { return c.apiVersion }

func (c *Connector) IsEnabled(_ context.Context) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.enabled, nil
}

func (c *Connector) Enable(_ context.Context) (bboard.WalletAPI, error) {
	if !c.authorize {
		return nil, bboard.ErrNotAuthorized
	}
	c.mu.Lock()
	c.enabled = true
	c.mu.Unlock()
	return c.wallet, nil
}

func (c *Connector) ServiceURIConfig(_ context.Context) (types.ServiceURIConfig, error) {
	return c.net.cfg.URIs, nil
}

// Locator returns a locator that always finds c.
func (c *Connector) Locator() bboard.ConnectorLocator {
	return bboard.LocatorFunc(func(context.Context) bboard.ConnectorAPI { return c })
}
