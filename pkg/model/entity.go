package model

import (
	"fmt"

	"github.com/cuemby/dialog/pkg/dialoghash"
)

// EntitySize is the byte length of an Entity identifier: large enough to
// hold a DID-derived or randomly generated opaque identifier without
// collision in practice.
const EntitySize = 32

// Entity is an opaque, fixed-width identifier naming the subject or object
// of a fact. Entities carry no structure beyond their bytes; callers that
// need a DID or a UUID encode it into the identifier themselves.
type Entity [EntitySize]byte

// EntityFromBytes parses an Entity from exactly EntitySize bytes.
func EntityFromBytes(b []byte) (Entity, bool) {
	var e Entity
	if len(b) != EntitySize {
		return e, false
	}
	copy(e[:], b)
	return e, true
}

// NewEntityFromSeed derives an Entity deterministically from arbitrary
// seed bytes, truncating the BLAKE3-256 hash of the seed to EntitySize.
// Used to mint stable entity identifiers for well-known subjects (e.g. the
// root of a branch) without a source of randomness.
func NewEntityFromSeed(seed []byte) Entity {
	h := dialoghash.Sum256(seed)
	var e Entity
	copy(e[:], h[:EntitySize])
	return e
}

// IsZero reports whether e is the zero entity, never a valid identifier.
func (e Entity) IsZero() bool {
	return e == Entity{}
}

// String renders the entity's base58 textual form.
func (e Entity) String() string {
	return dialoghash.EncodeBase58(e[:])
}

// Compare gives a total order over Entities.
func (e Entity) Compare(o Entity) int {
	for i := range e {
		if e[i] != o[i] {
			if e[i] < o[i] {
				return -1
			}
			return 1
		}
	}
	return 0
}

// ParseEntity parses an Entity from its base58 textual form.
func ParseEntity(s string) (Entity, error) {
	b, err := dialoghash.DecodeBase58(s)
	if err != nil {
		return Entity{}, fmt.Errorf("dialog: parse entity: %w", err)
	}
	e, ok := EntityFromBytes(b)
	if !ok {
		return Entity{}, fmt.Errorf("dialog: parse entity: expected %d bytes, got %d", EntitySize, len(b))
	}
	return e, nil
}
