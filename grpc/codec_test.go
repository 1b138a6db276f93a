package bboardgrpc

import (
	"errors"
	"strings"
	"testing"

	"google.golang.org/grpc/encoding"
)

func TestCodec_Registered(t *testing.T) {
	if c := encoding.GetCodec(codecName); c == nil {
		t.Fatalf("codec %q not registered", codecName)
	}
}

func TestCodec_RoundTrip(t *testing.T) {
	in := &ContractRequest{Address: "abcd"}
	data, err := codec.Marshal(in)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	var out ContractRequest
	if err := codec.Unmarshal(data, &out); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if out.Address != in.Address {
		t.Fatalf("expected %q, got %q", in.Address, out.Address)
	}
}

func TestCodec_Rejects(t *testing.T) {
	if _, err := codec.Marshal(nil); !errors.Is(err, errNilMessage) {
		t.Errorf("expected errNilMessage, got %v", err)
	}

	var out ContractRequest
	if err := codec.Unmarshal(nil, out); err == nil || !strings.Contains(err.Error(), "pointer") {
		t.Errorf("expected a pointer error, got %v", err)
	}

	small := wireCodec{limit: 2}
	if _, err := small.Marshal(&ContractRequest{Address: "a long contract address"}); err == nil {
		t.Error("expected an oversized message to be refused")
	}
	if err := small.Unmarshal(make([]byte, 3), &out); err == nil {
		t.Error("expected an oversized payload to be refused")
	}
}
