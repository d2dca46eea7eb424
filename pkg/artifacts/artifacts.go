// Package artifacts binds one subject DID to a blob catalog and a memory
// cell, maintaining three prolly.Trees (EAV, AEV, AVE) over the same fact
// set and publishing their combined root as a single CAS-guarded
// publication record.
package artifacts

import (
	"context"
	"fmt"

	"github.com/cuemby/dialog/pkg/catalog"
	"github.com/cuemby/dialog/pkg/cell"
	"github.com/cuemby/dialog/pkg/codec"
	"github.com/cuemby/dialog/pkg/dialoghash"
	"github.com/cuemby/dialog/pkg/model"
	"github.com/cuemby/dialog/pkg/prolly"
	"github.com/cuemby/dialog/pkg/storage"
)

// DefaultBranchFactor is the prolly tree branch factor used by every
// Artifacts instance, matching the rank function's expected geometric
// mean depth.
const DefaultBranchFactor = 32

// PublicationRecord is the CBOR-encoded value held by a subject's cell:
// the three tree roots that together describe its fact set at one point
// in time.
type PublicationRecord struct {
	EAV dialoghash.Hash `cbor:"eav"`
	AEV dialoghash.Hash `cbor:"aev"`
	AVE dialoghash.Hash `cbor:"ave"`
}

func encodePublication(p PublicationRecord) ([]byte, error) {
	return codec.MarshalCBOR(p)
}

func decodePublication(b []byte) (PublicationRecord, error) {
	var p PublicationRecord
	if err := codec.UnmarshalCBOR(b, &p); err != nil {
		return PublicationRecord{}, err
	}
	return p, nil
}

// Artifacts is the facade a subject uses to commit and resolve its fact
// set. It owns one Catalog and one TypedCell, scoped to the subject's DID
// by the cell key the caller supplies.
type Artifacts struct {
	subject      model.Entity
	cat          *catalog.Catalog
	publication  *cell.TypedCell[PublicationRecord]
	branchFactor uint32
	maxRetries   int
}

// New binds an Artifacts facade to subject over backend, using cellKey as
// the backend key for the subject's publication cell (conventionally
// "<did>/memory" per spec.md §3.7's backend scoping).
func New(subject model.Entity, backend storage.Backend, cellKey string, maxRetries int) *Artifacts {
	cat := catalog.New(backend)
	c := cell.New(backend, cellKey)
	typed := cell.NewTyped(c, decodePublication, encodePublication)
	return &Artifacts{
		subject:      subject,
		cat:          cat,
		publication:  typed,
		branchFactor: DefaultBranchFactor,
		maxRetries:   maxRetries,
	}
}

// Subject returns the DID this facade is scoped to.
func (a *Artifacts) Subject() model.Entity { return a.subject }

// Catalog exposes the underlying blob catalog, e.g. for a Branch mirroring
// blocks to a remote.
func (a *Artifacts) Catalog() *catalog.Catalog { return a.cat }

func (a *Artifacts) emptyTrees() (eav, aev, ave *prolly.Tree) {
	return prolly.New(a.cat, a.branchFactor, "eav"),
		prolly.New(a.cat, a.branchFactor, "aev"),
		prolly.New(a.cat, a.branchFactor, "ave")
}

func (a *Artifacts) hydrateTrees(ctx context.Context, pub PublicationRecord) (eav, aev, ave *prolly.Tree, err error) {
	eav, err = treeOrEmpty(ctx, a.cat, a.branchFactor, pub.EAV, "eav")
	if err != nil {
		return nil, nil, nil, fmt.Errorf("dialog: artifacts: hydrate eav: %w", err)
	}
	aev, err = treeOrEmpty(ctx, a.cat, a.branchFactor, pub.AEV, "aev")
	if err != nil {
		return nil, nil, nil, fmt.Errorf("dialog: artifacts: hydrate aev: %w", err)
	}
	ave, err = treeOrEmpty(ctx, a.cat, a.branchFactor, pub.AVE, "ave")
	if err != nil {
		return nil, nil, nil, fmt.Errorf("dialog: artifacts: hydrate ave: %w", err)
	}
	return eav, aev, ave, nil
}

func treeOrEmpty(ctx context.Context, cat *catalog.Catalog, branchFactor uint32, hash dialoghash.Hash, label string) (*prolly.Tree, error) {
	if hash.IsZero() {
		return prolly.New(cat, branchFactor, label), nil
	}
	return prolly.FromHash(ctx, cat, branchFactor, hash, label)
}
