package bboardgrpc

import (
	"context"
	"errors"
	"strings"

	"github.com/blockberries/bboard"
	"github.com/blockberries/bboard/devnet"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

const assertPrefix = "failed assert: "

// errNotEnabled is returned by wallet RPCs before Enable succeeded.
var errNotEnabled = status.Error(codes.FailedPrecondition, "wallet connector not enabled")

// sentinelCodes maps the errors clients tell apart to status codes.
var sentinelCodes = []struct {
	err  error
	code codes.Code
}{
	{bboard.ErrNotAuthorized, codes.PermissionDenied},
	{devnet.ErrStaleState, codes.Aborted},
	{devnet.ErrInsufficientFunds, codes.ResourceExhausted},
	{devnet.ErrInvalidProof, codes.InvalidArgument},
	{devnet.ErrDuplicateTx, codes.AlreadyExists},
}

// toStatus converts a domain error into a gRPC status error.
func toStatus(err error) error {
	if _, ok := status.FromError(err); ok {
		return err
	}
	if a, ok := bboard.IsAssertion(err); ok {
		return status.Error(codes.FailedPrecondition, a.Error())
	}
	for _, s := range sentinelCodes {
		if errors.Is(err, s.err) {
			return status.Error(s.code, err.Error())
		}
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return status.FromContextError(err).Err()
	}
	return status.Error(codes.Unknown, err.Error())
}

// remoteError keeps the server's message while matching the sentinel
// it was translated from.
type remoteError struct {
	msg string
	err error
}

func (e *remoteError) Error() string { return e.msg }
func (e *remoteError) Unwrap() error { return e.err }

// fromStatus converts a gRPC status error back into a domain error.
func fromStatus(err error) error {
	st, ok := status.FromError(err)
	if !ok || err == nil {
		return err
	}
	msg := st.Message()
	switch st.Code() {
	case codes.FailedPrecondition:
		if strings.HasPrefix(msg, assertPrefix) {
			return bboard.NewAssertionError("", strings.TrimPrefix(msg, assertPrefix))
		}
	case codes.Canceled:
		return &remoteError{msg: msg, err: context.Canceled}
	case codes.DeadlineExceeded:
		return &remoteError{msg: msg, err: context.DeadlineExceeded}
	}
	for _, s := range sentinelCodes {
		if st.Code() == s.code {
			return &remoteError{msg: msg, err: s.err}
		}
	}
	return err
}
