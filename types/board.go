package types

import (
	"fmt"

	"github.com/blockberries/cramberry/pkg/cramberry"
)

// BoardState is the occupancy of the single board slot.
type BoardState uint8

const (
	BoardVacant BoardState = iota
	BoardOccupied
)

func (s BoardState) String() string {
	switch s {
	case BoardVacant:
		return "vacant"
	case BoardOccupied:
		return "occupied"
	default:
		return fmt.Sprintf("unknown(%d)", s)
	}
}

// LedgerState is the public state of a board contract as recorded
// on chain. Message is nil while the board is vacant.
type LedgerState struct {
	State    BoardState `cramberry:"1"`
	Instance uint64     `cramberry:"2"`
	Message  *string    `cramberry:"3"`
	Poster   []byte     `cramberry:"4"`
}

// EncodeLedger serializes a ledger state into the bytes carried in
// ContractState.Data.
func EncodeLedger(l LedgerState) ([]byte, error) {
	data, err := cramberry.Marshal(l)
	if err != nil {
		return nil, fmt.Errorf("encode ledger: %w", err)
	}
	return data, nil
}

// DecodeLedger parses ContractState.Data into a ledger state.
func DecodeLedger(data []byte) (LedgerState, error) {
	var l LedgerState
	if err := cramberry.Unmarshal(data, &l); err != nil {
		return LedgerState{}, fmt.Errorf("decode ledger: %w", err)
	}
	return l, nil
}

// PrivateState is the local secret material of one board identity.
// It never leaves the private state store.
type PrivateState struct {
	SecretKey []byte `cramberry:"1"`
}

// DerivedState is the application view of a board: the latest ledger
// state combined with whether the local identity posted the message.
type DerivedState struct {
	State    BoardState
	Instance uint64
	Message  *string
	IsOwner  bool
}

// CanPost reports whether a post would be accepted by the contract.
func (d DerivedState) CanPost() bool {
	return d.State == BoardVacant
}

// CanTakeDown reports whether the local identity may take the
// current message down.
func (d DerivedState) CanTakeDown() bool {
	return d.State == BoardOccupied && d.IsOwner
}
