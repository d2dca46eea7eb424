package storage

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"syscall"

	bolt "go.etcd.io/bbolt"

	"github.com/cuemby/dialog/pkg/dialogerr"
	"github.com/cuemby/dialog/pkg/dialoghash"
)

var bucketValues = []byte("values")

// FileBackend is a durable Backend over a single bbolt file, generalizing
// the teacher's bucket-per-entity-kind BoltStore to a single flat bucket
// keyed by the segment-encoded logical key. Editions are the BLAKE3-256
// hash of the stored bytes: two writers racing to write the same value
// converge on the same edition, matching the store's history-independence
// goal.
type FileBackend struct {
	db   *bolt.DB
	lock *lockFile
}

// OpenFileBackend opens (creating if absent) a bbolt database under dir,
// taking the PID-stamped advisory lock alongside it.
func OpenFileBackend(dir string) (*FileBackend, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("dialog: storage: create data dir %q: %w", dir, err)
	}

	lock, err := acquireLockFile(filepath.Join(dir, ".dialog.lock"))
	if err != nil {
		return nil, err
	}

	dbPath := filepath.Join(dir, "dialog.db")
	db, err := bolt.Open(dbPath, 0o600, nil)
	if err != nil {
		lock.release()
		return nil, fmt.Errorf("dialog: storage: open %q: %w", dbPath, err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketValues)
		return err
	})
	if err != nil {
		db.Close()
		lock.release()
		return nil, fmt.Errorf("dialog: storage: create bucket: %w", err)
	}

	return &FileBackend{db: db, lock: lock}, nil
}

// Close releases the bbolt file and the advisory lock.
func (f *FileBackend) Close() error {
	err := f.db.Close()
	f.lock.release()
	return err
}

func valueEdition(v []byte) Edition {
	h := dialoghash.Sum256(v)
	return Edition{Token: h.Bytes()}
}

func (f *FileBackend) Get(_ context.Context, key string) ([]byte, Edition, error) {
	var value []byte
	err := f.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket(bucketValues).Get([]byte(EncodeKey(key)))
		if v == nil {
			return dialogerr.ErrNotFound
		}
		value = append([]byte(nil), v...)
		return nil
	})
	if err != nil {
		return nil, Edition{}, err
	}
	return value, valueEdition(value), nil
}

func (f *FileBackend) Set(_ context.Context, key string, value []byte) (Edition, error) {
	err := f.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketValues).Put([]byte(EncodeKey(key)), value)
	})
	if err != nil {
		return Edition{}, fmt.Errorf("dialog: storage: set %q: %w", key, err)
	}
	return valueEdition(value), nil
}

func (f *FileBackend) Delete(_ context.Context, key string) error {
	return f.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketValues).Delete([]byte(EncodeKey(key)))
	})
}

func (f *FileBackend) Resolve(ctx context.Context, key string) (Edition, error) {
	_, ed, err := f.Get(ctx, key)
	return ed, err
}

func (f *FileBackend) Replace(ctx context.Context, key string, when Edition, value []byte) (Edition, error) {
	var result Edition
	var mismatch error

	err := f.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketValues)
		encKey := []byte(EncodeKey(key))
		cur := b.Get(encKey)

		var currentEdition Edition
		if cur != nil {
			currentEdition = valueEdition(cur)
		}
		if !currentEdition.Equal(when) {
			result = currentEdition
			mismatch = dialogerr.ErrEditionMismatch
			return nil
		}

		if err := b.Put(encKey, value); err != nil {
			return err
		}
		result = valueEdition(value)
		return nil
	})
	if err != nil {
		return Edition{}, fmt.Errorf("dialog: storage: replace %q: %w", key, err)
	}
	return result, mismatch
}

func (f *FileBackend) List(_ context.Context, prefix, cursor string) (Page, error) {
	page := Page{}
	encPrefix := []byte(EncodeKey(prefix))

	err := f.db.View(func(tx *bolt.Tx) error {
		c := tx.Bucket(bucketValues).Cursor()

		seek := encPrefix
		if cursor != "" {
			seek = []byte(EncodeKey(cursor))
		}

		for k, v := c.Seek(seek); k != nil && strings.HasPrefix(string(k), string(encPrefix)); k, v = c.Next() {
			if len(page.Entries) == listPageSize {
				page.Cursor, _ = decodeFullKey(string(k))
				break
			}
			logicalKey, err := decodeFullKey(string(k))
			if err != nil {
				return err
			}
			value := append([]byte(nil), v...)
			page.Entries = append(page.Entries, Entry{
				Key:     logicalKey,
				Value:   value,
				Edition: valueEdition(value),
			})
		}
		return nil
	})
	return page, err
}

func decodeFullKey(encoded string) (string, error) {
	parts := strings.Split(encoded, "/")
	for i, p := range parts {
		decoded, err := DecodeSegment(p)
		if err != nil {
			return "", fmt.Errorf("dialog: storage: decode key segment %q: %w", p, err)
		}
		parts[i] = decoded
	}
	return strings.Join(parts, "/"), nil
}

func (f *FileBackend) Read(ctx context.Context, prefix string) (<-chan Entry, <-chan error) {
	entries := make(chan Entry)
	errs := make(chan error, 1)

	go func() {
		defer close(entries)
		defer close(errs)

		cursor := ""
		for {
			page, err := f.List(ctx, prefix, cursor)
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

func (f *FileBackend) Write(ctx context.Context, entries <-chan Entry) error {
	for {
		select {
		case e, ok := <-entries:
			if !ok {
				return nil
			}
			if _, err := f.Set(ctx, e.Key, e.Value); err != nil {
				return err
			}
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// lockFile is a PID-stamped advisory lock coordinating multi-process
// writers against the same data directory. A stale lock left behind by a
// process that has since died is reclaimed automatically by checking
// whether its PID is still alive.
type lockFile struct {
	path string
	mu   sync.Mutex
}

func acquireLockFile(path string) (*lockFile, error) {
	if stalePID, err := readLockPID(path); err == nil {
		if !processAlive(stalePID) {
			os.Remove(path)
		}
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		if os.IsExist(err) {
			if stalePID, perr := readLockPID(path); perr == nil {
				return nil, fmt.Errorf("dialog: storage: data directory locked by pid %d", stalePID)
			}
		}
		return nil, fmt.Errorf("dialog: storage: acquire lock %q: %w", path, err)
	}
	defer f.Close()

	if _, err := f.WriteString(strconv.Itoa(os.Getpid())); err != nil {
		os.Remove(path)
		return nil, fmt.Errorf("dialog: storage: write lock %q: %w", path, err)
	}

	return &lockFile{path: path}, nil
}

func readLockPID(path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, err
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil {
		return 0, fmt.Errorf("malformed lock file %q", path)
	}
	return pid, nil
}

func processAlive(pid int) bool {
	if pid <= 0 {
		return false
	}
	return syscall.Kill(pid, 0) == nil
}

func (l *lockFile) release() {
	l.mu.Lock()
	defer l.mu.Unlock()
	os.Remove(l.path)
}
