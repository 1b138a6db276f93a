package types_test

import (
	"bytes"
	"testing"
	"time"

	"github.com/blockberries/bboard/types"

	"github.com/blockberries/cramberry/pkg/cramberry"
)

// roundTrip marshals v, unmarshals into a new T, and returns it.
func roundTrip[T any](t *testing.T, v T) T {
	t.Helper()
	data, err := cramberry.Marshal(v)
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}
	var out T
	if err := cramberry.Unmarshal(data, &out); err != nil {
		t.Fatalf("Unmarshal failed: %v", err)
	}
	return out
}

func TestTimestamp_RoundTrip(t *testing.T) {
	ts := types.TimeToTimestamp(time.Date(2024, 6, 15, 12, 30, 45, 123456789, time.UTC))
	got := roundTrip(t, ts)
	if got != ts {
		t.Fatalf("Timestamp round-trip failed: got %+v, want %+v", got, ts)
	}
	if got.ToTime().Nanosecond() != 123456789 {
		t.Fatalf("Timestamp.ToTime nanos wrong: %d", got.ToTime().Nanosecond())
	}
}

func TestLedger_VacantEncoding(t *testing.T) {
	data, err := types.EncodeLedger(types.LedgerState{State: types.BoardVacant, Instance: 1})
	if err != nil {
		t.Fatalf("EncodeLedger: %v", err)
	}
	got, err := types.DecodeLedger(data)
	if err != nil {
		t.Fatalf("DecodeLedger: %v", err)
	}
	if got.State != types.BoardVacant || got.Instance != 1 {
		t.Fatalf("unexpected ledger: %+v", got)
	}
	if got.Message != nil {
		t.Fatalf("vacant ledger should have nil message, got %q", *got.Message)
	}
}

func TestLedger_OccupiedEncoding(t *testing.T) {
	msg := "hello"
	in := types.LedgerState{
		State:    types.BoardOccupied,
		Instance: 7,
		Message:  &msg,
		Poster:   bytes.Repeat([]byte{0xab}, 32),
	}
	data, err := types.EncodeLedger(in)
	if err != nil {
		t.Fatalf("EncodeLedger: %v", err)
	}
	got, err := types.DecodeLedger(data)
	if err != nil {
		t.Fatalf("DecodeLedger: %v", err)
	}
	if got.Message == nil || *got.Message != "hello" {
		t.Fatalf("message lost: %+v", got)
	}
	if !bytes.Equal(got.Poster, in.Poster) {
		t.Fatalf("poster mismatch: %x", got.Poster)
	}
}

func TestDecodeLedger_Garbage(t *testing.T) {
	if _, err := types.DecodeLedger([]byte{0xff, 0xff, 0xff}); err == nil {
		t.Fatal("expected error decoding garbage")
	}
}

func TestTransaction_HashDeterministic(t *testing.T) {
	tx := types.Transaction{
		Kind:         types.TxCall,
		ContractType: "bboard",
		Circuit:      "post",
		Ledger:       []byte{1, 2, 3},
		Nonce:        []byte{9},
	}
	h1, err := tx.Hash()
	if err != nil {
		t.Fatalf("Hash: %v", err)
	}
	h2, err := tx.Hash()
	if err != nil {
		t.Fatalf("Hash: %v", err)
	}
	if h1 != h2 {
		t.Fatalf("non-deterministic hash: %s != %s", h1, h2)
	}

	tx.Nonce = []byte{10}
	h3, err := tx.Hash()
	if err != nil {
		t.Fatalf("Hash: %v", err)
	}
	if h3 == h1 {
		t.Fatal("different nonce should change hash")
	}
}

func TestContractState_Operation(t *testing.T) {
	cs := types.ContractState{
		Operations: []types.Operation{
			{Circuit: "post", VerifierKey: []byte{1}},
			{Circuit: "take_down", VerifierKey: []byte{2}},
		},
	}
	op, ok := cs.Operation("take_down")
	if !ok || op.VerifierKey[0] != 2 {
		t.Fatalf("expected take_down operation, got %+v ok=%v", op, ok)
	}
	if _, ok := cs.Operation("missing"); ok {
		t.Fatal("expected missing operation")
	}
}

func TestDerivedState_Enablement(t *testing.T) {
	vacant := types.DerivedState{State: types.BoardVacant}
	if !vacant.CanPost() || vacant.CanTakeDown() {
		t.Fatalf("vacant board: CanPost=%v CanTakeDown=%v", vacant.CanPost(), vacant.CanTakeDown())
	}

	notMine := types.DerivedState{State: types.BoardOccupied}
	if notMine.CanPost() || notMine.CanTakeDown() {
		t.Fatal("occupied board owned by someone else allows no action")
	}

	mine := types.DerivedState{State: types.BoardOccupied, IsOwner: true}
	if !mine.CanTakeDown() {
		t.Fatal("owner should be able to take down")
	}
}

func TestBoardState_String(t *testing.T) {
	if types.BoardVacant.String() != "vacant" || types.BoardOccupied.String() != "occupied" {
		t.Fatal("unexpected board state names")
	}
	if types.BoardState(9).String() != "unknown(9)" {
		t.Fatalf("unexpected: %s", types.BoardState(9))
	}
}
