package prolly

import (
	"encoding/binary"

	"github.com/cuemby/dialog/pkg/dialoghash"
)

// Rank derives a key's level in the tree from the top bytes of
// BLAKE3(key), exactly as dialog-prolly-tree's Distribution trait: treat
// the hash's leading 8 bytes as a uniform random integer and count how
// many times branchFactor divides it before hitting a nonzero remainder.
// This gives each key a geometrically-distributed rank with mean
// 1/(branchFactor-1), independent of insertion order — the property that
// makes the tree's shape history-independent.
func Rank(key []byte, branchFactor uint32) int {
	h := dialoghash.Sum256(key)
	v := binary.BigEndian.Uint64(h[:8])

	bf := uint64(branchFactor)
	level := 0
	for v != 0 && v%bf == 0 && level < MaxLevels {
		level++
		v /= bf
	}
	return level
}

// MaxLevels is the soft cap on tree depth; exceeding it surfaces
// dialogerr.ErrOperation rather than growing unbounded.
const MaxLevels = 32
