// Package contract implements the bulletin board contract: its pure
// circuits and the runtime that turns a circuit call into a proven,
// balanced and submitted transaction.
package contract

import (
	"bytes"
	"crypto/rand"
	"crypto/sha256"
	"encoding/binary"
	"fmt"

	"github.com/blockberries/bboard"
	"github.com/blockberries/bboard/types"
)

// ContractType is the type tag recorded on chain for board contracts.
const ContractType = "bboard"

const (
	CircuitPost     = "post"
	CircuitTakeDown = "take_down"
)

// Circuits lists the board's impure circuits in operation order.
var Circuits = []string{CircuitPost, CircuitTakeDown}

// Assertion messages raised by the board circuits.
const (
	MsgOccupied  = "Attempted to post to an occupied board"
	MsgVacant    = "Attempted to take down post from an empty board"
	MsgNotPoster = "Attempted to take down post, but not the current poster"
)

const publicKeyDomain = "bboard:pk:"

// SecretKeySize is the length of a board identity's secret key.
const SecretKeySize = 32

// NewPrivateState creates a fresh identity with a random secret key.
func NewPrivateState() (types.PrivateState, error) {
	sk := make([]byte, SecretKeySize)
	if _, err := rand.Read(sk); err != nil {
		return types.PrivateState{}, fmt.Errorf("generate secret key: %w", err)
	}
	return types.PrivateState{SecretKey: sk}, nil
}

// InitialLedger is the ledger a freshly deployed board starts with.
func InitialLedger() types.LedgerState {
	return types.LedgerState{State: types.BoardVacant, Instance: 1}
}

// InstanceBytes encodes a board instance counter as the 32-byte
// little-endian value the public_key circuit takes.
func InstanceBytes(instance uint64) []byte {
	b := make([]byte, 32)
	binary.LittleEndian.PutUint64(b, instance)
	return b
}

// PublicKey is the pure public_key circuit: a one-way commitment to
// the secret key, bound to one board instance so that a poster cannot
// be linked across instances.
func PublicKey(secretKey, instance []byte) []byte {
	h := sha256.New()
	h.Write(padDomain(publicKeyDomain))
	h.Write(instance)
	h.Write(secretKey)
	return h.Sum(nil)
}

// IsPoster reports whether secretKey posted the current message of l.
func IsPoster(l types.LedgerState, secretKey []byte) bool {
	return bytes.Equal(l.Poster, PublicKey(secretKey, InstanceBytes(l.Instance)))
}

// Post is the post circuit.
func Post(l types.LedgerState, secretKey []byte, message string) (types.LedgerState, error) {
	if l.State != types.BoardVacant {
		return l, bboard.NewAssertionError(CircuitPost, MsgOccupied)
	}
	msg := message
	return types.LedgerState{
		State:    types.BoardOccupied,
		Instance: l.Instance,
		Message:  &msg,
		Poster:   PublicKey(secretKey, InstanceBytes(l.Instance)),
	}, nil
}

// TakeDown is the take_down circuit. It returns the new ledger and the
// message that was taken down.
func TakeDown(l types.LedgerState, secretKey []byte) (types.LedgerState, string, error) {
	if l.State != types.BoardOccupied {
		return l, "", bboard.NewAssertionError(CircuitTakeDown, MsgVacant)
	}
	if !IsPoster(l, secretKey) {
		return l, "", bboard.NewAssertionError(CircuitTakeDown, MsgNotPoster)
	}
	var former string
	if l.Message != nil {
		former = *l.Message
	}
	return types.LedgerState{
		State:    types.BoardVacant,
		Instance: l.Instance + 1,
	}, former, nil
}

// VerifyTransition checks the public half of a circuit: that next is a
// ledger the circuit could produce from prior. Poster ownership is
// attested by the proof, not checked here.
func VerifyTransition(circuit string, prior, next types.LedgerState) error {
	switch circuit {
	case CircuitPost:
		if prior.State != types.BoardVacant {
			return bboard.NewAssertionError(circuit, MsgOccupied)
		}
		if next.State != types.BoardOccupied || next.Instance != prior.Instance || next.Message == nil || len(next.Poster) != sha256.Size {
			return fmt.Errorf("%s: malformed ledger transition", circuit)
		}
	case CircuitTakeDown:
		if prior.State != types.BoardOccupied {
			return bboard.NewAssertionError(circuit, MsgVacant)
		}
		if next.State != types.BoardVacant || next.Instance != prior.Instance+1 || next.Message != nil {
			return fmt.Errorf("%s: malformed ledger transition", circuit)
		}
	default:
		return fmt.Errorf("unknown circuit %q", circuit)
	}
	return nil
}

// padDomain right-pads a domain separator with zeros to 32 bytes.
func padDomain(s string) []byte {
	b := make([]byte, 32)
	copy(b, s)
	return b
}
