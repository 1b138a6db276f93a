// Package bboardgrpc carries the network service over gRPC: the wallet
// connector, the wallet, the indexer and the proof server share one
// service, so a single listener can stand in for all of them.
//
// Messages are the bboard/types structs themselves, encoded with
// cramberry; there is no protobuf schema.
package bboardgrpc

import (
	"errors"
	"fmt"
	"reflect"

	"github.com/blockberries/cramberry/pkg/cramberry"
	"google.golang.org/grpc/encoding"
)

// codecName is the gRPC content subtype of the network service. It is
// distinct from plain "cramberry" so other cramberry services can
// share a process.
const codecName = "bboard-cram"

// maxMessageSize bounds a single encoded message. Board ledgers and
// transactions are a few kilobytes at most.
const maxMessageSize = 4 << 20

var errNilMessage = errors.New("nil message")

// wireCodec is the encoding.Codec of the network service.
type wireCodec struct {
	limit int
}

var codec = wireCodec{limit: maxMessageSize}

func (c wireCodec) Marshal(v any) ([]byte, error) {
	if v == nil {
		return nil, fmt.Errorf("%s: %w", codecName, errNilMessage)
	}
	data, err := cramberry.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("%s: encode %T: %w", codecName, v, err)
	}
	if len(data) > c.limit {
		return nil, fmt.Errorf("%s: %T is %d bytes, limit %d", codecName, v, len(data), c.limit)
	}
	return data, nil
}

func (c wireCodec) Unmarshal(data []byte, v any) error {
	if len(data) > c.limit {
		return fmt.Errorf("%s: %d byte message exceeds limit %d", codecName, len(data), c.limit)
	}
	if rv := reflect.ValueOf(v); rv.Kind() != reflect.Pointer || rv.IsNil() {
		return fmt.Errorf("%s: decode into %T: need a non-nil pointer", codecName, v)
	}
	if err := cramberry.Unmarshal(data, v); err != nil {
		return fmt.Errorf("%s: decode %T: %w", codecName, v, err)
	}
	return nil
}

func (wireCodec) Name() string { return codecName }

func init() {
	encoding.RegisterCodec(codec)
}
