// Package catalog is a thin content-addressed layer over storage.Backend:
// blobs are keyed by their own BLAKE3-256 hash, so Put is idempotent and
// Get needs no separate existence check.
package catalog

import (
	"context"
	"errors"
	"fmt"

	"github.com/cuemby/dialog/pkg/dialogerr"
	"github.com/cuemby/dialog/pkg/dialoghash"
	"github.com/cuemby/dialog/pkg/metrics"
	"github.com/cuemby/dialog/pkg/storage"
)

const keyPrefix = "blob/"

// Catalog stores immutable blobs addressed by their content hash.
type Catalog struct {
	backend storage.Backend
}

// New wraps a storage.Backend as a blob catalog.
func New(backend storage.Backend) *Catalog {
	return &Catalog{backend: backend}
}

func blobKey(h dialoghash.Hash) string {
	return keyPrefix + h.String()
}

// Put stores b and returns its content hash. Storing the same bytes twice
// is a no-op past the first write: the key is derived from the content, so
// a second Put of identical bytes overwrites the backend entry with an
// identical value.
func (c *Catalog) Put(ctx context.Context, b []byte) (dialoghash.Hash, error) {
	h := dialoghash.Sum256(b)
	existed, err := c.Has(ctx, h)
	if err != nil {
		return dialoghash.Hash{}, err
	}
	if _, err := c.backend.Set(ctx, blobKey(h), b); err != nil {
		return dialoghash.Hash{}, fmt.Errorf("dialog: catalog: put %s: %w", h, err)
	}
	if !existed {
		metrics.CatalogBlobsTotal.Inc()
		metrics.CatalogBytesTotal.Add(float64(len(b)))
	}
	return h, nil
}

// Get retrieves the blob for h. The second return value is false iff no
// blob with that hash has been stored.
func (c *Catalog) Get(ctx context.Context, h dialoghash.Hash) ([]byte, bool, error) {
	v, _, err := c.backend.Get(ctx, blobKey(h))
	if err != nil {
		if errors.Is(err, dialogerr.ErrNotFound) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("dialog: catalog: get %s: %w", h, err)
	}
	return v, true, nil
}

// Has reports whether a blob with hash h is stored, without reading it.
func (c *Catalog) Has(ctx context.Context, h dialoghash.Hash) (bool, error) {
	_, _, err := c.backend.Get(ctx, blobKey(h))
	if err != nil {
		if errors.Is(err, dialogerr.ErrNotFound) {
			return false, nil
		}
		return false, fmt.Errorf("dialog: catalog: has %s: %w", h, err)
	}
	return true, nil
}
