// Package storage implements the opaque byte-level key/value endpoint the
// rest of Dialog is built on: everything above this package — catalog,
// cell, prolly tree, artifacts — reads and writes through the Backend
// interface and never assumes a particular persistence technology.
package storage

import "context"

// Edition is an opaque compare-and-swap token returned alongside a value.
// Callers never construct or interpret an Edition's bytes; they only pass
// a previously observed one back to Replace. Weak is set when the backend
// cannot guarantee the edition uniquely identifies the write that produced
// it (e.g. an S3 bucket without conditional-write support falling back to
// last-write-wins).
type Edition struct {
	Token []byte
	Weak  bool
}

// Equal reports whether two editions carry the same token.
func (e Edition) Equal(o Edition) bool {
	if len(e.Token) != len(o.Token) {
		return false
	}
	for i := range e.Token {
		if e.Token[i] != o.Token[i] {
			return false
		}
	}
	return true
}

// Entry pairs a key with its stored value and edition, returned by List
// and Read.
type Entry struct {
	Key     string
	Value   []byte
	Edition Edition
}

// Page is one page of a List call: up to ~1000 entries plus a cursor to
// resume from, empty when the list is exhausted.
type Page struct {
	Entries []Entry
	Cursor  string
}

// Backend is the opaque byte-level key/value endpoint every higher layer
// is built on. Implementations must be safe for concurrent use.
type Backend interface {
	// Get returns the value and current edition stored at key, or
	// dialogerr.ErrNotFound if no value is stored there.
	Get(ctx context.Context, key string) ([]byte, Edition, error)

	// Set unconditionally stores value at key and returns the new
	// edition.
	Set(ctx context.Context, key string, value []byte) (Edition, error)

	// Delete removes the value stored at key, if any. Deleting an
	// absent key is not an error.
	Delete(ctx context.Context, key string) error

	// List returns up to ~1000 keys with the given prefix (an empty
	// prefix lists every key), resuming from cursor when non-empty.
	List(ctx context.Context, prefix, cursor string) (Page, error)

	// Resolve returns the current edition stored at key without
	// fetching its value, or dialogerr.ErrNotFound if absent.
	Resolve(ctx context.Context, key string) (Edition, error)

	// Replace performs a compare-and-swap: value is stored at key iff
	// the backend's current edition equals when. On mismatch it returns
	// dialogerr.ErrEditionMismatch and the backend's actual current
	// edition alongside it.
	Replace(ctx context.Context, key string, when Edition, value []byte) (Edition, error)

	// Read streams every entry with the given key prefix, in
	// unspecified order, for bulk range mirroring. The returned channel
	// is closed when the range is exhausted, the context is canceled,
	// or an error occurs; callers must drain Errs after the channel
	// closes to distinguish exhaustion from failure.
	Read(ctx context.Context, prefix string) (<-chan Entry, <-chan error)

	// Write stores every entry it receives from entries until the
	// channel is closed or ctx is canceled, returning the first error
	// encountered, if any.
	Write(ctx context.Context, entries <-chan Entry) error
}
