// Package cell implements the CAS memory cell: a single storage.Backend
// key holding the current root of something (a publication record, a
// capability chain head), published and retracted under the same
// optimistic-concurrency rules as the backend itself.
package cell

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/cuemby/dialog/pkg/dialogerr"
	"github.com/cuemby/dialog/pkg/metrics"
	"github.com/cuemby/dialog/pkg/storage"
)

// Cell is a CAS-guarded pointer to one storage.Backend key.
type Cell struct {
	backend storage.Backend
	key     string
}

// New binds a Cell to one backend key.
func New(backend storage.Backend, key string) *Cell {
	return &Cell{backend: backend, key: key}
}

// Resolve returns the cell's current content and edition. A cell that has
// never been published returns dialogerr.ErrNotFound.
func (c *Cell) Resolve(ctx context.Context) ([]byte, storage.Edition, error) {
	v, ed, err := c.backend.Get(ctx, c.key)
	if err != nil {
		return nil, storage.Edition{}, err
	}
	return v, ed, nil
}

// Publish writes content conditioned on when matching the cell's current
// edition. A nil/zero-value when means "publish only if the cell has never
// been published" (Set semantics via the backend's own absent-key CAS
// rule); any other when is a Replace. Returns dialogerr.ErrEditionMismatch
// if when is stale.
func (c *Cell) Publish(ctx context.Context, content []byte, when storage.Edition) (storage.Edition, error) {
	if when.Token == nil {
		_, err := c.backend.Resolve(ctx, c.key)
		if err == nil {
			metrics.CellCASAttemptsTotal.WithLabelValues("conflict").Inc()
			return storage.Edition{}, dialogerr.ErrEditionMismatch
		}
		if err != dialogerr.ErrNotFound {
			metrics.CellCASAttemptsTotal.WithLabelValues("error").Inc()
			return storage.Edition{}, fmt.Errorf("dialog: cell: publish %q: %w", c.key, err)
		}
		ed, err := c.backend.Set(ctx, c.key, content)
		if err != nil {
			metrics.CellCASAttemptsTotal.WithLabelValues("error").Inc()
			return storage.Edition{}, fmt.Errorf("dialog: cell: publish %q: %w", c.key, err)
		}
		metrics.CellCASAttemptsTotal.WithLabelValues("success").Inc()
		return ed, nil
	}

	ed, err := c.backend.Replace(ctx, c.key, when, content)
	if err != nil {
		if errors.Is(err, dialogerr.ErrEditionMismatch) {
			metrics.CellCASAttemptsTotal.WithLabelValues("conflict").Inc()
		} else {
			metrics.CellCASAttemptsTotal.WithLabelValues("error").Inc()
		}
		return ed, err
	}
	metrics.CellCASAttemptsTotal.WithLabelValues("success").Inc()
	return ed, nil
}

// Retract deletes the cell's content, conditioned on when matching the
// current edition.
func (c *Cell) Retract(ctx context.Context, when storage.Edition) error {
	current, err := c.backend.Resolve(ctx, c.key)
	if err != nil {
		return err
	}
	if !current.Equal(when) {
		return dialogerr.ErrEditionMismatch
	}
	return c.backend.Delete(ctx, c.key)
}

// TypedCell decodes a Cell's bytes into T on Resolve, caching the decoded
// value under a mutex shared across clones so a successful Publish from any
// clone is immediately visible to all of them, grounded on the teacher's
// mutex-guarded map-of-structs idiom in pkg/manager/token.go.
type TypedCell[T any] struct {
	cell    *Cell
	decode  func([]byte) (T, error)
	encode  func(T) ([]byte, error)
	mu      *sync.Mutex
	cached  **cachedValue[T]
}

type cachedValue[T any] struct {
	value   T
	edition storage.Edition
}

// NewTyped wraps a Cell with encode/decode functions for T. Clones share
// the same cache mutex; see Clone.
func NewTyped[T any](c *Cell, decode func([]byte) (T, error), encode func(T) ([]byte, error)) *TypedCell[T] {
	return &TypedCell[T]{cell: c, decode: decode, encode: encode, mu: &sync.Mutex{}, cached: new(*cachedValue[T])}
}

// Clone returns a TypedCell sharing this one's cache, so that publishing
// from one clone invalidates the cache seen by all others.
func (t *TypedCell[T]) Clone() *TypedCell[T] {
	return &TypedCell[T]{cell: t.cell, decode: t.decode, encode: t.encode, mu: t.mu, cached: t.cached}
}

// Resolve returns the cached decoded value if it is still current,
// otherwise re-resolves and decodes from the backend.
func (t *TypedCell[T]) Resolve(ctx context.Context) (T, storage.Edition, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	raw, ed, err := t.cell.Resolve(ctx)
	if err != nil {
		var zero T
		return zero, storage.Edition{}, err
	}
	if c := *t.cached; c != nil && c.edition.Equal(ed) {
		return c.value, ed, nil
	}
	v, err := t.decode(raw)
	if err != nil {
		var zero T
		return zero, storage.Edition{}, fmt.Errorf("dialog: cell: decode: %w", err)
	}
	*t.cached = &cachedValue[T]{value: v, edition: ed}
	return v, ed, nil
}

// Publish encodes value and publishes it conditioned on when, updating the
// shared cache on success.
func (t *TypedCell[T]) Publish(ctx context.Context, value T, when storage.Edition) (storage.Edition, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	raw, err := t.encode(value)
	if err != nil {
		return storage.Edition{}, fmt.Errorf("dialog: cell: encode: %w", err)
	}
	ed, err := t.cell.Publish(ctx, raw, when)
	if err != nil {
		return ed, err
	}
	*t.cached = &cachedValue[T]{value: value, edition: ed}
	return ed, nil
}
