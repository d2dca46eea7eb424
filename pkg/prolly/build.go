package prolly

import (
	"context"
	"fmt"

	"github.com/cuemby/dialog/pkg/dialogerr"
	"github.com/cuemby/dialog/pkg/metrics"
)

// buildFromSorted constructs a tree bottom-up from a sorted, unique-key
// slice of entries, mirroring dialog-prolly-tree's join_with_rank: group
// the sorted sequence into Segment nodes at every key whose Rank crosses
// the current minimum level, then repeat one level up over the resulting
// boundaries until a single root remains. Every key's rank is a pure
// function of its own bytes, so this grouping is independent of
// insertion order — the tree's shape is history-independent.
func (t *Tree) buildFromSorted(ctx context.Context, entries []entry) (*Node, error) {
	if len(entries) == 0 {
		return nil, nil
	}

	segments, err := t.groupLeaves(ctx, entries)
	if err != nil {
		return nil, err
	}
	total := len(segments)

	level := 1
	nodes := segments
	for len(nodes) > 1 {
		if level > MaxLevels {
			return nil, fmt.Errorf("dialog: prolly: build: root-to-leaf depth exceeds %d levels: %w", MaxLevels, dialogerr.ErrOperation)
		}
		grouped, err := t.groupIndex(ctx, nodes, level)
		if err != nil {
			return nil, err
		}
		nodes = grouped
		total += len(grouped)
		level++
	}

	if t.label != "" {
		metrics.TreeNodesTotal.WithLabelValues(t.label).Set(float64(total))
		metrics.TreeDepth.WithLabelValues(t.label).Set(float64(level))
	}
	return nodes[0], nil
}

// groupLeaves partitions entries into Segment nodes, closing a segment
// after every entry whose rank is >= 1 (i.e. every boundary the
// Distribution selects at level 1 and above) and after the last entry.
func (t *Tree) groupLeaves(ctx context.Context, entries []entry) ([]*Node, error) {
	var out []*Node
	start := 0
	for i, e := range entries {
		isLast := i == len(entries)-1
		if isLast || Rank(e.key, t.branchFactor) >= 1 {
			n := &Node{entries: entries[start : i+1]}
			stored, err := t.store(ctx, n)
			if err != nil {
				return nil, err
			}
			out = append(out, stored)
			start = i + 1
		}
	}
	return out, nil
}

// groupIndex collapses a slice of same-level nodes into Index nodes one
// level up, splitting at every node whose maximum key has rank >= level.
func (t *Tree) groupIndex(ctx context.Context, nodes []*Node, level int) ([]*Node, error) {
	var out []*Node
	var pending []boundary

	flush := func() error {
		if len(pending) == 0 {
			return nil
		}
		n := &Node{isIndex: true, boundaries: pending}
		stored, err := t.store(ctx, n)
		if err != nil {
			return err
		}
		out = append(out, stored)
		pending = nil
		return nil
	}

	for i, n := range nodes {
		pending = append(pending, boundary{upperBoundKey: n.MaxKey(), childHash: n.Hash()})
		isLast := i == len(nodes)-1
		if isLast || Rank(n.MaxKey(), t.branchFactor) >= level {
			if err := flush(); err != nil {
				return nil, err
			}
		}
	}
	if err := flush(); err != nil {
		return nil, err
	}
	return out, nil
}
