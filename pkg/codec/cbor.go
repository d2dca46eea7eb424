// Package codec provides the two encodings the store uses on the wire and
// on disk: deterministic DAG-CBOR for structured records (publication
// records, delegation/proof envelopes, prolly index node bodies) and a
// bespoke zero-copy columnar layout for leaf cells, where allocation-free
// decoding matters on the hot path.
package codec

import (
	"fmt"
	"sync"

	"github.com/fxamacker/cbor/v2"
)

var (
	encMode cbor.EncMode
	decMode cbor.DecMode
	once    sync.Once
)

func modes() (cbor.EncMode, cbor.DecMode) {
	once.Do(func() {
		opts := cbor.CanonicalEncOptions()
		m, err := opts.EncMode()
		if err != nil {
			panic(fmt.Sprintf("dialog: codec: build canonical cbor encoder: %v", err))
		}
		encMode = m

		dopts := cbor.DecOptions{
			DupMapKey:  cbor.DupMapKeyEnforcedAPF,
			IndefLength: cbor.IndefLengthForbidden,
		}
		dm, err := dopts.DecMode()
		if err != nil {
			panic(fmt.Sprintf("dialog: codec: build strict cbor decoder: %v", err))
		}
		decMode = dm
	})
	return encMode, decMode
}

// MarshalCBOR encodes v as deterministic DAG-CBOR: sorted map keys,
// definite-length arrays and maps, smallest-form integers. Two equal Go
// values always produce byte-identical output, which is required wherever
// the encoding itself is hashed (publication records, index node bodies).
func MarshalCBOR(v interface{}) ([]byte, error) {
	enc, _ := modes()
	b, err := enc.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("dialog: codec: marshal cbor: %w", err)
	}
	return b, nil
}

// UnmarshalCBOR decodes deterministic DAG-CBOR into v, rejecting
// indefinite-length items and duplicate map keys rather than silently
// accepting a non-canonical encoding.
func UnmarshalCBOR(b []byte, v interface{}) error {
	_, dec := modes()
	if err := dec.Unmarshal(b, v); err != nil {
		return fmt.Errorf("dialog: codec: unmarshal cbor: %w", err)
	}
	return nil
}
