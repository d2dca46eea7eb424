package storage

import (
	"context"
	"encoding/binary"
	"sort"
	"strings"
	"sync"

	"github.com/cuemby/dialog/pkg/dialogerr"
)

// MemoryBackend is an in-process Backend over a map guarded by a
// sync.RWMutex, the same shape as the teacher's MemoryStore. Editions are
// a monotonically incremented per-key counter encoded as 8 bytes
// big-endian: a fresh backend has no entry for any key, so Resolve on an
// absent key returns dialogerr.ErrNotFound rather than a zero edition.
type MemoryBackend struct {
	mu      sync.RWMutex
	values  map[string][]byte
	editions map[string]uint64
}

// NewMemoryBackend constructs an empty MemoryBackend.
func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{
		values:   make(map[string][]byte),
		editions: make(map[string]uint64),
	}
}

func encodeCounter(n uint64) []byte {
	b := make([]byte, 8)
	binary.BigEndian.PutUint64(b, n)
	return b
}

func (m *MemoryBackend) Get(_ context.Context, key string) ([]byte, Edition, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	v, ok := m.values[key]
	if !ok {
		return nil, Edition{}, dialogerr.ErrNotFound
	}
	out := append([]byte(nil), v...)
	return out, Edition{Token: encodeCounter(m.editions[key])}, nil
}

func (m *MemoryBackend) Set(_ context.Context, key string, value []byte) (Edition, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.editions[key]++
	m.values[key] = append([]byte(nil), value...)
	return Edition{Token: encodeCounter(m.editions[key])}, nil
}

func (m *MemoryBackend) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.values, key)
	delete(m.editions, key)
	return nil
}

func (m *MemoryBackend) Resolve(_ context.Context, key string) (Edition, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	n, ok := m.editions[key]
	if !ok {
		return Edition{}, dialogerr.ErrNotFound
	}
	return Edition{Token: encodeCounter(n)}, nil
}

func (m *MemoryBackend) Replace(_ context.Context, key string, when Edition, value []byte) (Edition, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	current := Edition{}
	if n, ok := m.editions[key]; ok {
		current = Edition{Token: encodeCounter(n)}
	}
	if !current.Equal(when) {
		return current, dialogerr.ErrEditionMismatch
	}

	m.editions[key]++
	m.values[key] = append([]byte(nil), value...)
	return Edition{Token: encodeCounter(m.editions[key])}, nil
}

const listPageSize = 1000

func (m *MemoryBackend) List(_ context.Context, prefix, cursor string) (Page, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	keys := make([]string, 0, len(m.values))
	for k := range m.values {
		if strings.HasPrefix(k, prefix) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)

	start := 0
	if cursor != "" {
		start = sort.SearchStrings(keys, cursor)
	}
	end := start + listPageSize
	if end > len(keys) {
		end = len(keys)
	}

	page := Page{Entries: make([]Entry, 0, end-start)}
	for _, k := range keys[start:end] {
		page.Entries = append(page.Entries, Entry{
			Key:     k,
			Value:   append([]byte(nil), m.values[k]...),
			Edition: Edition{Token: encodeCounter(m.editions[k])},
		})
	}
	if end < len(keys) {
		page.Cursor = keys[end]
	}
	return page, nil
}

func (m *MemoryBackend) Read(ctx context.Context, prefix string) (<-chan Entry, <-chan error) {
	entries := make(chan Entry)
	errs := make(chan error, 1)

	go func() {
		defer close(entries)
		defer close(errs)

		cursor := ""
		for {
			page, err := m.List(ctx, prefix, cursor)
			if err != nil {
				errs <- err
				return
			}
			for _, e := range page.Entries {
				select {
				case entries <- e:
				case <-ctx.Done():
					errs <- ctx.Err()
					return
				}
			}
			if page.Cursor == "" {
				return
			}
			cursor = page.Cursor
		}
	}()

	return entries, errs
}

func (m *MemoryBackend) Write(ctx context.Context, entries <-chan Entry) error {
	for {
		select {
		case e, ok := <-entries:
			if !ok {
				return nil
			}
			if _, err := m.Set(ctx, e.Key, e.Value); err != nil {
				return err
			}
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}
