// Package rpc exposes a storage.Backend over gRPC: a hand-written
// grpc.ServiceDesc standing in for protoc-generated stubs, marshaled with
// the same deterministic CBOR the rest of the store already uses for its
// on-disk and publication encodings. Dialog's wire payloads are already
// opaque bytes plus a handful of scalar fields — protobuf's code
// generation step buys nothing a second serialization format wouldn't
// also cost, so the remote endpoint speaks the codec the store already
// has rather than adding one.
package rpc

import (
	"fmt"

	"google.golang.org/grpc/encoding"

	"github.com/cuemby/dialog/pkg/codec"
)

// Name is the codec name registered with grpc's encoding package and
// requested by both Server and Client via grpc.CallContentSubtype /
// grpc.ForceServerCodec.
const Name = "cbor"

func init() {
	encoding.RegisterCodec(cborCodec{})
}

type cborCodec struct{}

func (cborCodec) Marshal(v interface{}) ([]byte, error) {
	b, err := codec.MarshalCBOR(v)
	if err != nil {
		return nil, fmt.Errorf("dialog: remote: rpc: marshal: %w", err)
	}
	return b, nil
}

func (cborCodec) Unmarshal(data []byte, v interface{}) error {
	if err := codec.UnmarshalCBOR(data, v); err != nil {
		return fmt.Errorf("dialog: remote: rpc: unmarshal: %w", err)
	}
	return nil
}

func (cborCodec) Name() string { return Name }
