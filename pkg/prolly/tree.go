// Package prolly implements the history-independent probabilistically
// balanced search tree used to index a fact set in each of the three
// orderings (EAV, AEV, AVE). Transliterated from dialog-prolly-tree's and
// dialog-search-tree's Rust ownership model into Go value/pointer
// semantics: nodes are immutable *Node values addressed by hash. Set and
// Delete rebuild every node from the full sorted entry set, so a subtree
// whose entries did not change comes out with the same hash, but as a new
// *Node.
package prolly

import (
	"bytes"
	"context"
	"fmt"
	"sort"

	"github.com/cuemby/dialog/pkg/catalog"
	"github.com/cuemby/dialog/pkg/dialogerr"
	"github.com/cuemby/dialog/pkg/dialoghash"
	"github.com/cuemby/dialog/pkg/metrics"
)

// Tree is a key/value index over a catalog.Catalog. Keys and values are
// opaque byte strings (the encoded form of whatever domain type a caller
// indexes — EAVKey/Fact segments in the artifacts layer); ordering is
// plain byte-lexicographic, matching the composite keys' own
// length-prefixed tie-break encoding.
type Tree struct {
	cat          *catalog.Catalog
	branchFactor uint32
	root         *Node // nil means empty tree
	label        string
}

// New creates an empty Tree over cat with the given branch factor. label
// identifies the tree in metrics (e.g. "eav", "aev", "ave"); it may be
// left empty where no per-tree breakdown is needed.
func New(cat *catalog.Catalog, branchFactor uint32, label ...string) *Tree {
	return &Tree{cat: cat, branchFactor: branchFactor, label: firstLabel(label)}
}

// FromHash hydrates a Tree whose root is the node addressed by hash.
func FromHash(ctx context.Context, cat *catalog.Catalog, branchFactor uint32, hash dialoghash.Hash, label ...string) (*Tree, error) {
	root, err := loadNode(ctx, cat, hash)
	if err != nil {
		return nil, err
	}
	return &Tree{cat: cat, branchFactor: branchFactor, root: root, label: firstLabel(label)}, nil
}

func firstLabel(label []string) string {
	if len(label) == 0 {
		return ""
	}
	return label[0]
}

func loadNode(ctx context.Context, cat *catalog.Catalog, hash dialoghash.Hash) (*Node, error) {
	raw, ok, err := cat.Get(ctx, hash)
	if err != nil {
		return nil, fmt.Errorf("dialog: prolly: load node %s: %w", hash, err)
	}
	if !ok {
		return nil, fmt.Errorf("dialog: prolly: load node %s: %w", hash, dialogerr.ErrNotFound)
	}
	n, err := decodeNode(raw)
	if err != nil {
		return nil, err
	}
	n.hash = hash
	return n, nil
}

// Hash returns the tree's current root hash, or the zero hash if the tree
// is empty.
func (t *Tree) Hash() dialoghash.Hash {
	if t.root == nil {
		return dialoghash.Hash{}
	}
	return t.root.Hash()
}

// store persists n into the catalog and returns it with its hash set.
func (t *Tree) store(ctx context.Context, n *Node) (*Node, error) {
	n.finalize()
	h, err := t.cat.Put(ctx, n.encode())
	if err != nil {
		return nil, fmt.Errorf("dialog: prolly: store node: %w", err)
	}
	n.hash = h
	return n, nil
}

// Get retrieves the value for key, walking from the root down through any
// Index nodes to the Segment that would contain it.
func (t *Tree) Get(ctx context.Context, key []byte) ([]byte, bool, error) {
	node := t.root
	for node != nil {
		if !node.isIndex {
			v, ok := node.findInSegment(key)
			return v, ok, nil
		}
		b, _ := node.childForKey(key)
		child, err := loadNode(ctx, t.cat, b.childHash)
		if err != nil {
			return nil, false, err
		}
		node = child
	}
	return nil, false, nil
}

// Set inserts or overwrites key/value. The whole entry set is
// materialized, mutated, and the tree rebuilt bottom-up from the sorted
// result via the same rank-based join used by FromCollection: incremental
// in-place splice/merge (the algorithm dialog-prolly-tree uses) is
// deliberately not replicated here — see DESIGN.md.
func (t *Tree) Set(ctx context.Context, key, value []byte) error {
	entries, err := t.collectAll(ctx)
	if err != nil {
		return err
	}
	entries = upsert(entries, entry{key: key, value: value})
	return t.rebuild(ctx, entries)
}

// Delete removes key if present; a no-op if it is absent.
func (t *Tree) Delete(ctx context.Context, key []byte) error {
	entries, err := t.collectAll(ctx)
	if err != nil {
		return err
	}
	filtered := entries[:0]
	for _, e := range entries {
		if !bytes.Equal(e.key, key) {
			filtered = append(filtered, e)
		}
	}
	return t.rebuild(ctx, filtered)
}

func upsert(entries []entry, e entry) []entry {
	i := sort.Search(len(entries), func(i int) bool { return bytes.Compare(entries[i].key, e.key) >= 0 })
	if i < len(entries) && bytes.Equal(entries[i].key, e.key) {
		entries[i] = e
		return entries
	}
	entries = append(entries, entry{})
	copy(entries[i+1:], entries[i:])
	entries[i] = e
	return entries
}

func (t *Tree) rebuild(ctx context.Context, entries []entry) error {
	if len(entries) == 0 {
		t.root = nil
		return nil
	}
	root, err := t.buildFromSorted(ctx, entries)
	if err != nil {
		return err
	}
	t.root = root
	return nil
}

// collectAll streams every entry currently in the tree into a sorted
// slice.
func (t *Tree) collectAll(ctx context.Context) ([]entry, error) {
	var out []entry
	entries, errs := t.StreamRange(ctx, nil, nil)
	for e := range entries {
		out = append(out, entry{key: e.Key, value: e.Value})
	}
	if err := <-errs; err != nil {
		return nil, err
	}
	return out, nil
}

// Change describes one entry crossing a tree boundary: present in one
// tree's entry set but not the other's.
type Change struct {
	Add    *Pair
	Remove *Pair
}

// Pair is one key/value entry.
type Pair struct {
	Key   []byte
	Value []byte
}

// Differentiate streams the changes that, applied to other, would
// reproduce t — present entries absent in other become Add, and entries
// in other absent from t become Remove.
func (t *Tree) Differentiate(ctx context.Context, other *Tree) (<-chan Change, <-chan error) {
	changes := make(chan Change)
	errs := make(chan error, 1)

	go func() {
		defer close(changes)
		defer close(errs)

		selfEntries, err := t.collectAll(ctx)
		if err != nil {
			errs <- err
			return
		}
		otherEntries, err := other.collectAll(ctx)
		if err != nil {
			errs <- err
			return
		}

		i, j := 0, 0
		for i < len(selfEntries) && j < len(otherEntries) {
			a, b := selfEntries[i], otherEntries[j]
			switch bytes.Compare(a.key, b.key) {
			case 0:
				if !bytes.Equal(a.value, b.value) {
					// A value change at the same key must retract the old
					// value before adding the new one: Integrate's Add case
					// is LWW-guarded and would silently drop the new value
					// when its hash sorts below the old one otherwise.
					if !emit(ctx, changes, Change{Remove: &Pair{Key: b.key, Value: b.value}}) {
						return
					}
					if !emit(ctx, changes, Change{Add: &Pair{Key: a.key, Value: a.value}}) {
						return
					}
				}
				i++
				j++
			case -1:
				if !emit(ctx, changes, Change{Add: &Pair{Key: a.key, Value: a.value}}) {
					return
				}
				i++
			default:
				if !emit(ctx, changes, Change{Remove: &Pair{Key: b.key, Value: b.value}}) {
					return
				}
				j++
			}
		}
		for ; i < len(selfEntries); i++ {
			if !emit(ctx, changes, Change{Add: &Pair{Key: selfEntries[i].key, Value: selfEntries[i].value}}) {
				return
			}
		}
		for ; j < len(otherEntries); j++ {
			if !emit(ctx, changes, Change{Remove: &Pair{Key: otherEntries[j].key, Value: otherEntries[j].value}}) {
				return
			}
		}
	}()

	return changes, errs
}

func emit(ctx context.Context, ch chan<- Change, c Change) bool {
	select {
	case ch <- c:
		return true
	case <-ctx.Done():
		return false
	}
}

// Integrate applies a batch of changes with last-write-wins conflict
// resolution: Add keeps the existing value unless the incoming value's
// hash is larger; Remove deletes only if the current entry equals the
// given (key, value) exactly. The operation is atomic: on any failure the
// tree's root is restored to its value before Integrate was called.
func (t *Tree) Integrate(ctx context.Context, changes []Change) error {
	timer := metrics.NewTimer()
	defer timer.ObserveDuration(metrics.TreeIntegrateDuration)

	priorRoot := t.root

	err := func() error {
		for _, c := range changes {
			switch {
			case c.Add != nil:
				existing, ok, err := t.Get(ctx, c.Add.Key)
				if err != nil {
					return err
				}
				if !ok {
					if err := t.Set(ctx, c.Add.Key, c.Add.Value); err != nil {
						return err
					}
					continue
				}
				if bytes.Equal(existing, c.Add.Value) {
					continue
				}
				if dialoghash.Compare(dialoghash.Sum256(c.Add.Value), dialoghash.Sum256(existing)) > 0 {
					if err := t.Set(ctx, c.Add.Key, c.Add.Value); err != nil {
						return err
					}
				}
			case c.Remove != nil:
				existing, ok, err := t.Get(ctx, c.Remove.Key)
				if err != nil {
					return err
				}
				if ok && bytes.Equal(existing, c.Remove.Value) {
					if err := t.Delete(ctx, c.Remove.Key); err != nil {
						return err
					}
				}
			}
		}
		return nil
	}()

	if err != nil {
		t.root = priorRoot
		return fmt.Errorf("dialog: prolly: integrate: %w: %w", dialogerr.ErrOperation, err)
	}
	return nil
}

// FromCollection bulk-builds a Tree from a slice of already-sorted, unique
// pairs — more efficient than Set-ing them one at a time.
func FromCollection(ctx context.Context, cat *catalog.Catalog, branchFactor uint32, pairs []Pair) (*Tree, error) {
	t := New(cat, branchFactor)
	if len(pairs) == 0 {
		return t, nil
	}
	entries := make([]entry, len(pairs))
	for i, p := range pairs {
		entries[i] = entry{key: p.Key, value: p.Value}
	}
	sort.Slice(entries, func(i, j int) bool { return bytes.Compare(entries[i].key, entries[j].key) < 0 })
	root, err := t.buildFromSorted(ctx, entries)
	if err != nil {
		return nil, err
	}
	t.root = root
	return t, nil
}
