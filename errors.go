package bboard

import (
	"errors"
	"fmt"

	"github.com/blockberries/bboard/types"
)

var (
	// ErrConnectorNotFound is returned when no wallet connector
	// responds within the detection timeout.
	ErrConnectorNotFound = errors.New("could not find wallet connector")

	// ErrNotAuthorized is returned when the user declines to enable
	// the DApp.
	ErrNotAuthorized = errors.New("wallet connector not authorized")

	// ErrConnectionTimeout is returned when the connector does not
	// answer the enable handshake in time.
	ErrConnectionTimeout = errors.New("wallet connector connection timed out")

	// ErrPrivateStateMissing is returned when a session has no private
	// state to derive ownership from.
	ErrPrivateStateMissing = errors.New("private state missing")
)

// IncompatibleVersionError is returned when the connector API version
// does not satisfy the required range.
type IncompatibleVersionError struct {
	Required string
	Actual   string
}

func (e *IncompatibleVersionError) Error() string {
	return fmt.Sprintf("incompatible wallet connector version %s, require %s", e.Actual, e.Required)
}

// DeploymentError wraps a failure to deploy a new board.
type DeploymentError struct {
	Err error
}

func (e *DeploymentError) Error() string {
	return fmt.Sprintf("deploy board: %v", e.Err)
}

func (e *DeploymentError) Unwrap() error { return e.Err }

// NotFoundError is returned when no contract is deployed at an address.
type NotFoundError struct {
	Address types.ContractAddress
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("no contract found at %s", e.Address)
}

// ContractMismatchError is returned when the contract at an address is
// not a board, or was deployed with different verifier keys.
type ContractMismatchError struct {
	Address types.ContractAddress
	Reason  string
}

func (e *ContractMismatchError) Error() string {
	return fmt.Sprintf("contract at %s is not a compatible board: %s", e.Address, e.Reason)
}

// AssertionError is a circuit assertion failure raised by the contract.
// Callers distinguish failures by Message only.
type AssertionError struct {
	Circuit string
	Message string
}

func (e *AssertionError) Error() string {
	return "failed assert: " + e.Message
}

// NewAssertionError creates a new AssertionError.
func NewAssertionError(circuit, message string) *AssertionError {
	return &AssertionError{Circuit: circuit, Message: message}
}

// IsAssertion checks whether an error is an AssertionError and returns it.
func IsAssertion(err error) (*AssertionError, bool) {
	var a *AssertionError
	if errors.As(err, &a) {
		return a, true
	}
	return nil, false
}
