package types

import (
	"crypto/sha256"
	"fmt"

	"github.com/blockberries/cramberry/pkg/cramberry"
)

// TxKind distinguishes contract deployment from circuit calls.
type TxKind uint8

const (
	TxDeploy TxKind = iota
	TxCall
)

func (k TxKind) String() string {
	switch k {
	case TxDeploy:
		return "deploy"
	case TxCall:
		return "call"
	default:
		return fmt.Sprintf("unknown(%d)", k)
	}
}

// Transaction is a contract transition computed locally. Ledger holds
// the encoded ledger state the transition produces and PriorStateHash
// pins the state it was computed against. Deploy transactions carry
// the contract's operations and leave ContractAddress empty.
type Transaction struct {
	Kind            TxKind          `cramberry:"1"`
	ContractAddress ContractAddress `cramberry:"2"`
	ContractType    string          `cramberry:"3"`
	Circuit         string          `cramberry:"4"`
	PriorStateHash  Hash            `cramberry:"5"`
	Ledger          []byte          `cramberry:"6"`
	Operations      []Operation     `cramberry:"7"`
	Nonce           []byte          `cramberry:"8"`
}

// Hash returns the sha256 of the transaction's deterministic encoding.
func (t Transaction) Hash() (Hash, error) {
	data, err := cramberry.Marshal(t)
	if err != nil {
		return Hash{}, fmt.Errorf("hash transaction: %w", err)
	}
	return sha256.Sum256(data), nil
}

// StateHash returns the hash of an encoded ledger, used to chain
// transactions to the state they were computed against.
func StateHash(ledger []byte) Hash {
	return sha256.Sum256(ledger)
}

// UnprovenTransaction is a transaction before proof generation.
type UnprovenTransaction struct {
	Tx Transaction `cramberry:"1"`
}

// UnbalancedTransaction is a proven transaction that does not pay
// fees yet.
type UnbalancedTransaction struct {
	Tx    Transaction `cramberry:"1"`
	Proof []byte      `cramberry:"2"`
}

// BalancedTransaction is a proven transaction with fees attached,
// ready for submission.
type BalancedTransaction struct {
	Tx    Transaction `cramberry:"1"`
	Proof []byte      `cramberry:"2"`
	Fee   uint64      `cramberry:"3"`
	Payer []byte      `cramberry:"4"`
}

// CoinInfo describes a coin created by a transaction that the wallet
// should track.
type CoinInfo struct {
	Nonce []byte `cramberry:"1"`
	Color []byte `cramberry:"2"`
	Value uint64 `cramberry:"3"`
}
