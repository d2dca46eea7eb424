// Package dialoghash centralizes the BLAKE3-256 hashing and base58 textual
// encoding used across the store: blob addressing, prolly-tree node
// self-hashes, the rank function, and the textual form of binary Values.
//
// Grounded on other_examples/417f8641_javanhut-IvaldiVCS__internal-fsmerkle-types.go.go
// (BLAKE3 content-addressed Merkle nodes) for the hashing idiom, and on the
// storacha-indexing-service manifest (multiformats/DID ecosystem) for
// base58 textual encoding.
package dialoghash

import (
	"github.com/mr-tron/base58"
	"lukechampine.com/blake3"
)

// Size is the length in bytes of a Dialog hash (BLAKE3-256).
const Size = 32

// Hash is a BLAKE3-256 digest.
type Hash [Size]byte

// Sum256 computes the BLAKE3-256 hash of b.
func Sum256(b []byte) Hash {
	return Hash(blake3.Sum256(b))
}

// IsZero reports whether h is the zero hash (never a valid content hash,
// used as a sentinel for "no root").
func (h Hash) IsZero() bool {
	return h == Hash{}
}

// Bytes returns a copy of the hash's bytes.
func (h Hash) Bytes() []byte {
	out := make([]byte, Size)
	copy(out, h[:])
	return out
}

// String returns the base58 textual form of the hash.
func (h Hash) String() string {
	return base58.Encode(h[:])
}

// Compare gives a total order over hashes, used by the tree's LWW conflict
// resolution ("higher hash wins").
func Compare(a, b Hash) int {
	for i := range a {
		if a[i] != b[i] {
			if a[i] < b[i] {
				return -1
			}
			return 1
		}
	}
	return 0
}

// HashFromBytes parses a hash from exactly Size bytes.
func HashFromBytes(b []byte) (Hash, bool) {
	var h Hash
	if len(b) != Size {
		return h, false
	}
	copy(h[:], b)
	return h, true
}

// EncodeBase58 base58-encodes arbitrary bytes, used for the binary-variant
// payload of a Value's textual form and for S3/filesystem unsafe-segment
// rewriting.
func EncodeBase58(b []byte) string {
	return base58.Encode(b)
}

// DecodeBase58 decodes a base58 string back to bytes.
func DecodeBase58(s string) ([]byte, error) {
	return base58.Decode(s)
}
