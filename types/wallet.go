package types

// ServiceURIConfig lists the network services a wallet connector
// is configured against.
type ServiceURIConfig struct {
	IndexerURI       string `cramberry:"1"`
	IndexerWSURI     string `cramberry:"2"`
	ProverServerURI  string `cramberry:"3"`
	SubstrateNodeURI string `cramberry:"4"`
}

// WalletState is the subset of wallet state the client needs.
type WalletState struct {
	Address       string `cramberry:"1"`
	CoinPublicKey []byte `cramberry:"2"`
	Balance       uint64 `cramberry:"3"`
}
