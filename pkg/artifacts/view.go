package artifacts

import (
	"context"
	"fmt"

	"github.com/cuemby/dialog/pkg/model"
	"github.com/cuemby/dialog/pkg/prolly"
)

// Ordering selects which of the three prolly trees a range read walks.
type Ordering int

const (
	// EAV orders by entity, then attribute, then value — "what do we know
	// about this entity".
	EAV Ordering = iota
	// AEV orders by attribute, then entity, then value — "which entities
	// have this attribute".
	AEV
	// AVE orders by attribute, then value, then entity — "which entity has
	// this attribute set to this value".
	AVE
)

// View is a read-only snapshot of a subject's fact set, hydrated from one
// PublicationRecord. It outlives the Artifacts facade that produced it —
// later commits against the same subject do not change an already-
// resolved View.
type View struct {
	pub           PublicationRecord
	eav, aev, ave *prolly.Tree
}

// Resolve fetches the subject's current publication and rehydrates its
// three trees into a View.
func (a *Artifacts) Resolve(ctx context.Context) (*View, error) {
	pub, err := a.currentPublication(ctx)
	if err != nil {
		return nil, err
	}
	eav, aev, ave, err := a.hydrateTrees(ctx, pub)
	if err != nil {
		return nil, err
	}
	return &View{pub: pub, eav: eav, aev: aev, ave: ave}, nil
}

func (a *Artifacts) currentPublication(ctx context.Context) (PublicationRecord, error) {
	pub, _, err := a.resolveOrEmpty(ctx)
	return pub, err
}

// Publication returns the PublicationRecord this View was hydrated from.
func (v *View) Publication() PublicationRecord { return v.pub }

// Entry is one decoded fact yielded by GetRange, paired with whether it is
// currently live (not superseded or retracted).
type Entry struct {
	Fact model.Fact
	Live bool
}

// GetRange streams every fact whose key in the given ordering falls within
// [from, to] (nil bounds are open-ended), in that ordering's ascending
// ordering. The planner picks whichever ordering makes its bound axes
// (bound entity, bound attribute, bound value) a contiguous prefix.
func (v *View) GetRange(ctx context.Context, ordering Ordering, from, to []byte) (<-chan Entry, <-chan error) {
	out := make(chan Entry)
	errs := make(chan error, 1)

	tree, decode := v.treeAndDecoder(ordering)

	go func() {
		defer close(out)
		defer close(errs)

		entries, treeErrs := tree.StreamRange(ctx, from, to)
		for e := range entries {
			f, r, err := decode(e.Key, e.Value)
			if err != nil {
				select {
				case errs <- fmt.Errorf("dialog: artifacts: decode entry: %w", err):
				case <-ctx.Done():
				}
				return
			}
			select {
			case out <- Entry{Fact: f, Live: !r.Retracted}:
			case <-ctx.Done():
				return
			}
		}
		if err := <-treeErrs; err != nil {
			select {
			case errs <- err:
			case <-ctx.Done():
			}
		}
	}()

	return out, errs
}

func (v *View) treeAndDecoder(ordering Ordering) (*prolly.Tree, func(key, value []byte) (model.Fact, record, error)) {
	switch ordering {
	case AEV:
		return v.aev, func(key, value []byte) (model.Fact, record, error) {
			k, err := model.DecodeAEVKey(key)
			if err != nil {
				return model.Fact{}, record{}, err
			}
			return factFromKeyAndRecord(k.The, k.Of, k.Is, value)
		}
	case AVE:
		return v.ave, func(key, value []byte) (model.Fact, record, error) {
			k, err := model.DecodeAVEKey(key)
			if err != nil {
				return model.Fact{}, record{}, err
			}
			return factFromKeyAndRecord(k.The, k.Of, k.Is, value)
		}
	default:
		return v.eav, func(key, value []byte) (model.Fact, record, error) {
			k, err := model.DecodeEAVKey(key)
			if err != nil {
				return model.Fact{}, record{}, err
			}
			return factFromKeyAndRecord(k.The, k.Of, k.Is, value)
		}
	}
}

func factFromKeyAndRecord(the model.Attribute, of model.Entity, is model.Value, value []byte) (model.Fact, record, error) {
	r, err := decodeRecord(value)
	if err != nil {
		return model.Fact{}, record{}, err
	}
	f := model.Fact{The: the, Of: of, Is: is, Retracted: r.Retracted}
	if len(r.Cause) > 0 {
		if cause, ok := model.EntityFromBytes(r.Cause); ok {
			f.Cause = &cause
		}
	}
	return f, r, nil
}
