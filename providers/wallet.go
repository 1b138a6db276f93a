package providers

import (
	"context"

	"github.com/blockberries/bboard"
	"github.com/blockberries/bboard/types"
)

// Compile-time interface checks.
var (
	_ bboard.WalletProvider   = (*walletProvider)(nil)
	_ bboard.MidnightProvider = (*midnightProvider)(nil)
)

// WalletProviders adapts an authorized wallet to the wallet and
// midnight providers of a session.
func WalletProviders(coinPublicKey []byte, wallet bboard.WalletAPI) (bboard.WalletProvider, bboard.MidnightProvider) {
	return &walletProvider{coinPublicKey: coinPublicKey, wallet: wallet}, &midnightProvider{wallet: wallet}
}

type walletProvider struct {
	coinPublicKey []byte
	wallet        bboard.WalletAPI
}

func (w *walletProvider) CoinPublicKey() []byte { return w.coinPublicKey }

func (w *walletProvider) BalanceTx(ctx context.Context, tx types.UnbalancedTransaction, newCoins []types.CoinInfo) (types.BalancedTransaction, error) {
	return w.wallet.BalanceAndProveTransaction(ctx, tx, newCoins)
}

type midnightProvider struct {
	wallet bboard.WalletAPI
}

func (m *midnightProvider) SubmitTx(ctx context.Context, tx types.BalancedTransaction) (types.TransactionID, error) {
	return m.wallet.SubmitTransaction(ctx, tx)
}
