package types

// ContractState is a snapshot of a deployed contract as served by
// the indexer. Data holds the encoded ledger state.
type ContractState struct {
	Address      ContractAddress `cramberry:"1"`
	ContractType string          `cramberry:"2"`
	Data         []byte          `cramberry:"3"`
	Operations   []Operation     `cramberry:"4"`
	BlockHeight  uint64          `cramberry:"5"`
	StateHash    Hash            `cramberry:"6"`
	DeployTx     Hash            `cramberry:"7"`
}

// Operation binds a circuit name to the verifier key that checks
// proofs for it.
type Operation struct {
	Circuit     string `cramberry:"1"`
	VerifierKey []byte `cramberry:"2"`
}

// Operation returns the named operation if the contract exposes it.
func (c ContractState) Operation(circuit string) (Operation, bool) {
	for _, op := range c.Operations {
		if op.Circuit == circuit {
			return op, true
		}
	}
	return Operation{}, false
}

// WatchType selects which snapshots a contract state watch delivers.
type WatchType uint8

const (
	// WatchLatest starts from the most recent snapshot and follows
	// every later one.
	WatchLatest WatchType = iota
)

// WatchConfig configures ContractStateObservable.
type WatchConfig struct {
	Type WatchType `cramberry:"1"`
}

// ZKConfig is the key material for one circuit.
type ZKConfig struct {
	Circuit     string `cramberry:"1"`
	ProverKey   []byte `cramberry:"2"`
	VerifierKey []byte `cramberry:"3"`
}

// FinalizedTxData describes a transaction once it is included in a
// block.
type FinalizedTxData struct {
	TxID            TransactionID   `cramberry:"1"`
	TxHash          Hash            `cramberry:"2"`
	BlockHeight     uint64          `cramberry:"3"`
	BlockTime       Timestamp       `cramberry:"4"`
	ContractAddress ContractAddress `cramberry:"5"`
}
