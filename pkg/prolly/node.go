package prolly

import (
	"bytes"
	"fmt"

	"github.com/cuemby/dialog/pkg/codec"
	"github.com/cuemby/dialog/pkg/dialogerr"
	"github.com/cuemby/dialog/pkg/dialoghash"
)

// tag bytes, per spec.md §6's on-disk prolly node layout.
const (
	tagSegment byte = 0x00
	tagIndex   byte = 0x01
)

// entry is a raw key/value pair; Segment bodies are sorted lists of
// entry, Index bodies are sorted lists of boundary{upperBoundKey,
// childHash}.
type entry struct {
	key   []byte
	value []byte
}

func (e entry) Cells() [][]byte { return [][]byte{e.key, e.value} }

type boundary struct {
	upperBoundKey []byte
	childHash     dialoghash.Hash
}

func (b boundary) Cells() [][]byte { return [][]byte{b.upperBoundKey, b.childHash.Bytes()} }

// Node is one node of the tree: a Segment (leaf, holding entries directly)
// or an Index (internal, holding boundary keys and child hashes). Nodes
// are immutable; every mutation rebuilds the tree's nodes as new *Node
// values, and a subtree whose entries did not change gets the same hash
// as before.
type Node struct {
	isIndex    bool
	entries    []entry    // set iff !isIndex
	boundaries []boundary // set iff isIndex
	hash       dialoghash.Hash
}

// Hash returns the node's BLAKE3-256 self-hash over its full encoded
// bytes.
func (n *Node) Hash() dialoghash.Hash { return n.hash }

// IsIndex reports whether n is an internal node.
func (n *Node) IsIndex() bool { return n.isIndex }

// MinKey returns the first entry's key for a Segment. For an Index it
// returns the first boundary's upper-bound key (the largest key of the
// first child), not the smallest key reachable under n.
func (n *Node) MinKey() []byte {
	if n.isIndex {
		return n.boundaries[0].upperBoundKey
	}
	return n.entries[0].key
}

// MaxKey returns the node's upper-bound key (the last boundary key for an
// Index, the last entry's key for a Segment).
func (n *Node) MaxKey() []byte {
	if n.isIndex {
		return n.boundaries[len(n.boundaries)-1].upperBoundKey
	}
	return n.entries[len(n.entries)-1].key
}

// encode produces the node's on-disk bytes: tag byte + columnar body.
func (n *Node) encode() []byte {
	var tag byte
	var records []codec.Encodable
	if n.isIndex {
		tag = tagIndex
		for _, b := range n.boundaries {
			records = append(records, b)
		}
	} else {
		tag = tagSegment
		for _, e := range n.entries {
			records = append(records, e)
		}
	}
	body := codec.EncodeColumnar(records, 2)
	out := make([]byte, 0, 1+len(body))
	out = append(out, tag)
	out = append(out, body...)
	return out
}

// finalize computes and caches n's self-hash from its encoded bytes.
func (n *Node) finalize() *Node {
	n.hash = dialoghash.Sum256(n.encode())
	return n
}

// decodeNode parses a node's on-disk bytes.
func decodeNode(raw []byte) (*Node, error) {
	if len(raw) < 1 {
		return nil, fmt.Errorf("dialog: prolly: empty node bytes: %w", dialogerr.ErrInvalidValue)
	}
	tag, body := raw[0], raw[1:]

	table, records, err := codec.DecodeColumnar(body, 2)
	if err != nil {
		return nil, fmt.Errorf("dialog: prolly: decode node body: %w", err)
	}

	n := &Node{hash: dialoghash.Sum256(raw)}
	switch tag {
	case tagSegment:
		n.isIndex = false
		for _, slots := range records {
			cells := codec.FromCells(table, slots)
			n.entries = append(n.entries, entry{key: cells[0], value: cells[1]})
		}
	case tagIndex:
		n.isIndex = true
		for _, slots := range records {
			cells := codec.FromCells(table, slots)
			h, ok := dialoghash.HashFromBytes(cells[1])
			if !ok {
				return nil, fmt.Errorf("dialog: prolly: bad child hash in index node: %w", dialogerr.ErrInvalidValue)
			}
			n.boundaries = append(n.boundaries, boundary{upperBoundKey: cells[0], childHash: h})
		}
	default:
		return nil, fmt.Errorf("dialog: prolly: unknown node tag %#x: %w", tag, dialogerr.ErrInvalidValue)
	}
	return n, nil
}

// findInSegment returns the value for key within a Segment node, or
// (nil, false) if absent.
func (n *Node) findInSegment(key []byte) ([]byte, bool) {
	for _, e := range n.entries {
		if bytes.Equal(e.key, key) {
			return e.value, true
		}
	}
	return nil, false
}

// childForKey returns the boundary (and its index) of the child that
// should contain key: the first boundary whose upperBoundKey is >= key.
func (n *Node) childForKey(key []byte) (boundary, int) {
	for i, b := range n.boundaries {
		if bytes.Compare(key, b.upperBoundKey) <= 0 || i == len(n.boundaries)-1 {
			return b, i
		}
	}
	return n.boundaries[len(n.boundaries)-1], len(n.boundaries) - 1
}
