// Package remote implements a mirrored branch: a local cell/catalog pair
// kept in sync with an upstream pair reachable over a storage.Backend,
// the same opaque byte-level endpoint every other layer is built on. The
// remote side may be pkg/remote/rpc's gRPC client, or any other
// storage.Backend implementation — Branch never assumes which.
package remote

import (
	"context"
	"errors"
	"fmt"

	"github.com/cenkalti/backoff/v4"

	"github.com/cuemby/dialog/pkg/catalog"
	"github.com/cuemby/dialog/pkg/cell"
	"github.com/cuemby/dialog/pkg/dialogerr"
	"github.com/cuemby/dialog/pkg/metrics"
	"github.com/cuemby/dialog/pkg/storage"
)

// Reference holds what's needed to reach a remote branch before it's been
// opened: credentials (opaque to Branch — whatever Dial needs to build a
// storage.Backend) and the local backend the mirrored state lives in.
// Reference is never connected; opening it never mutates it.
type Reference struct {
	// Dial builds the remote storage.Backend, e.g. an rpc.Client already
	// wired with the caller's mTLS credentials and target address.
	Dial func(ctx context.Context) (storage.Backend, error)

	// Local is the backend the local (downstream) mirror lives in.
	Local storage.Backend

	// Key names the (subject, branch) pair's cell, e.g.
	// "branch/<subject>/<name>".
	Key string

	// MaxPublishRetries bounds how many times Publish retries its CAS
	// after the first attempt. Zero or a negative value allows one retry.
	MaxPublishRetries int
}

// Open is a connected Branch: a local cell (the downstream view) and a
// remote cell plus catalog (the upstream view) over the same key.
type Open struct {
	ref           Reference
	localCell     *cell.Cell
	remoteCell    *cell.Cell
	remoteBackend storage.Backend
	remoteCat     *catalog.Catalog
}

// Open connects ref's remote backend and builds the local/remote cell
// handles. Open is idempotent — calling it again on an already-open
// branch just redials — and error-preserving: a failed Dial leaves ref
// itself untouched, so the caller can retry with the same Reference.
func (ref Reference) Open(ctx context.Context) (*Open, error) {
	backend, err := ref.Dial(ctx)
	if err != nil {
		return nil, fmt.Errorf("dialog: remote: open %q: %w", ref.Key, err)
	}
	return &Open{
		ref:           ref,
		localCell:     cell.New(ref.Local, ref.Key),
		remoteCell:    cell.New(backend, ref.Key),
		remoteBackend: backend,
		remoteCat:     catalog.New(backend),
	}, nil
}

// Resolve reloads the upstream cell and mirrors its current value into
// the local cell, returning the revision now visible on both sides. If
// the upstream has never been published, it returns dialogerr.ErrNotFound
// and leaves the local cell untouched.
func (o *Open) Resolve(ctx context.Context) ([]byte, error) {
	content, _, err := o.remoteCell.Resolve(ctx)
	if err != nil {
		return nil, err
	}
	if err := o.mirrorLocal(ctx, content); err != nil {
		return nil, err
	}
	metrics.RemoteSyncLagSeconds.WithLabelValues(o.ref.Key).Set(0)
	return content, nil
}

// Publish CAS-publishes revision to the upstream cell if it differs from
// the upstream's current value, then mirrors the (possibly unchanged)
// upstream value into the local cell. Edition-mismatch contention against
// other publishers is retried with exponential backoff up to
// ref.MaxPublishRetries times, the same shape as artifacts.Commit's
// retry loop.
func (o *Open) Publish(ctx context.Context, revision []byte) error {
	policy := backoff.WithMaxRetries(backoff.NewExponentialBackOff(), uint64(maxRetries(o.ref.MaxPublishRetries)))

	operation := func() error {
		current, edition, err := o.remoteCell.Resolve(ctx)
		switch {
		case err == nil && bytesEqual(current, revision):
			return nil // upstream already matches; nothing to publish
		case errors.Is(err, dialogerr.ErrNotFound):
			if _, perr := o.remoteCell.Publish(ctx, revision, storage.Edition{}); perr != nil {
				if errors.Is(perr, dialogerr.ErrEditionMismatch) {
					return perr // retryable: someone else published first
				}
				return backoff.Permanent(perr)
			}
			return nil
		case err != nil:
			return backoff.Permanent(err)
		default:
			if _, perr := o.remoteCell.Publish(ctx, revision, edition); perr != nil {
				if errors.Is(perr, dialogerr.ErrEditionMismatch) {
					return perr
				}
				return backoff.Permanent(perr)
			}
			return nil
		}
	}

	if err := backoff.Retry(operation, policy); err != nil {
		if errors.Is(err, dialogerr.ErrEditionMismatch) {
			return fmt.Errorf("dialog: remote: publish %q: exceeded retry budget: %w", o.ref.Key, dialogerr.ErrEditionMismatch)
		}
		return fmt.Errorf("dialog: remote: publish %q: %w", o.ref.Key, err)
	}

	if err := o.mirrorLocal(ctx, revision); err != nil {
		return err
	}
	metrics.RemoteSyncLagSeconds.WithLabelValues(o.ref.Key).Set(0)
	return nil
}

// mirrorLocal CAS-updates the local cell to match content, tolerating a
// never-published local cell the same way Resolve does for the upstream.
func (o *Open) mirrorLocal(ctx context.Context, content []byte) error {
	current, edition, err := o.localCell.Resolve(ctx)
	switch {
	case errors.Is(err, dialogerr.ErrNotFound):
		_, err := o.localCell.Publish(ctx, content, storage.Edition{})
		if err != nil && !errors.Is(err, dialogerr.ErrEditionMismatch) {
			return fmt.Errorf("dialog: remote: mirror local %q: %w", o.ref.Key, err)
		}
		return nil
	case err != nil:
		return fmt.Errorf("dialog: remote: mirror local %q: %w", o.ref.Key, err)
	case bytesEqual(current, content):
		return nil
	default:
		if _, err := o.localCell.Publish(ctx, content, edition); err != nil && !errors.Is(err, dialogerr.ErrEditionMismatch) {
			return fmt.Errorf("dialog: remote: mirror local %q: %w", o.ref.Key, err)
		}
		return nil
	}
}

// Upload stores every block it receives from blocks into the remote
// catalog, keyed by each block's own content hash — idempotent per hash,
// the same guarantee catalog.Put gives locally. Upload stops and returns
// the first error it encounters, or nil once blocks closes.
func (o *Open) Upload(ctx context.Context, blocks <-chan []byte) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case b, ok := <-blocks:
			if !ok {
				return nil
			}
			if _, err := o.remoteCat.Put(ctx, b); err != nil {
				return fmt.Errorf("dialog: remote: upload: %w", err)
			}
		}
	}
}

// Close releases the remote backend's connection, if it implements
// io.Closer (e.g. rpc.Client's underlying grpc.ClientConn). A remote
// backend with no Close method is a no-op.
func (o *Open) Close() error {
	if c, ok := o.remoteBackend.(interface{ Close() error }); ok {
		return c.Close()
	}
	return nil
}

func maxRetries(n int) int {
	if n <= 0 {
		return 1
	}
	return n
}

func bytesEqual(a, b []byte) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
