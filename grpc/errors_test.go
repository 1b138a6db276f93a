package bboardgrpc

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/blockberries/bboard"
	"github.com/blockberries/bboard/devnet"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

func TestStatus_RoundTrip(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		code   codes.Code
		target error
	}{
		{"not authorized", fmt.Errorf("enable: %w", bboard.ErrNotAuthorized), codes.PermissionDenied, bboard.ErrNotAuthorized},
		{"stale", fmt.Errorf("submit: %w", devnet.ErrStaleState), codes.Aborted, devnet.ErrStaleState},
		{"funds", devnet.ErrInsufficientFunds, codes.ResourceExhausted, devnet.ErrInsufficientFunds},
		{"proof", devnet.ErrInvalidProof, codes.InvalidArgument, devnet.ErrInvalidProof},
		{"duplicate", devnet.ErrDuplicateTx, codes.AlreadyExists, devnet.ErrDuplicateTx},
		{"deadline", context.DeadlineExceeded, codes.DeadlineExceeded, context.DeadlineExceeded},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			st := toStatus(tt.err)
			if c := status.Code(st); c != tt.code {
				t.Fatalf("expected code %s, got %s", tt.code, c)
			}
			back := fromStatus(st)
			if !errors.Is(back, tt.target) {
				t.Fatalf("expected %v to match %v", back, tt.target)
			}
			if back.Error() != tt.err.Error() {
				t.Errorf("expected message %q, got %q", tt.err.Error(), back.Error())
			}
		})
	}
}

func TestStatus_Assertion(t *testing.T) {
	err := fmt.Errorf("post: %w", bboard.NewAssertionError("post", "Attempted to post to an occupied board"))
	back := fromStatus(toStatus(err))
	a, ok := bboard.IsAssertion(back)
	if !ok {
		t.Fatalf("expected an assertion error, got %v", back)
	}
	if a.Message != "Attempted to post to an occupied board" {
		t.Errorf("unexpected message %q", a.Message)
	}
}

func TestStatus_Passthrough(t *testing.T) {
	if fromStatus(nil) != nil {
		t.Error("nil must stay nil")
	}
	if got := status.Code(toStatus(errNotEnabled)); got != codes.FailedPrecondition {
		t.Errorf("expected an existing status to be kept, got %s", got)
	}
	if _, ok := bboard.IsAssertion(fromStatus(errNotEnabled)); ok {
		t.Error("a precondition failure without the assert prefix is not an assertion")
	}
	plain := errors.New("boom")
	if got := status.Code(toStatus(plain)); got != codes.Unknown {
		t.Errorf("expected Unknown, got %s", got)
	}
}

func TestTarget(t *testing.T) {
	tests := map[string]string{
		"127.0.0.1:9000":                       "127.0.0.1:9000",
		"http://127.0.0.1:8088/api/v1/graphql": "127.0.0.1:8088",
		"grpc://indexer:443":                   "indexer:443",
	}
	for in, want := range tests {
		if got := Target(in); got != want {
			t.Errorf("Target(%q) = %q, want %q", in, got, want)
		}
	}
}
