package storage

import (
	"context"
	"errors"
	"testing"

	"github.com/cuemby/dialog/pkg/dialogerr"
)

// runBackendConformance exercises the behavior every Backend
// implementation must share, regardless of what persists it.
func runBackendConformance(t *testing.T, b Backend) {
	t.Helper()
	ctx := context.Background()

	t.Run("GetMissingReturnsNotFound", func(t *testing.T) {
		if _, _, err := b.Get(ctx, "missing/key"); !errors.Is(err, dialogerr.ErrNotFound) {
			t.Fatalf("expected ErrNotFound, got %v", err)
		}
	})

	t.Run("SetThenGetRoundtrips", func(t *testing.T) {
		if _, err := b.Set(ctx, "a/b", []byte("hello")); err != nil {
			t.Fatalf("Set: %v", err)
		}
		v, _, err := b.Get(ctx, "a/b")
		if err != nil {
			t.Fatalf("Get: %v", err)
		}
		if string(v) != "hello" {
			t.Fatalf("got %q, want %q", v, "hello")
		}
	})

	t.Run("ReplaceSucceedsOnMatchingEdition", func(t *testing.T) {
		key := "replace/match"
		ed, err := b.Set(ctx, key, []byte("v1"))
		if err != nil {
			t.Fatalf("Set: %v", err)
		}
		newEd, err := b.Replace(ctx, key, ed, []byte("v2"))
		if err != nil {
			t.Fatalf("Replace: %v", err)
		}
		if newEd.Equal(ed) {
			t.Fatal("edition should change after a successful replace")
		}
		v, _, err := b.Get(ctx, key)
		if err != nil {
			t.Fatalf("Get: %v", err)
		}
		if string(v) != "v2" {
			t.Fatalf("got %q, want %q", v, "v2")
		}
	})

	t.Run("ReplaceFailsOnStaleEdition", func(t *testing.T) {
		key := "replace/stale"
		staleEd, err := b.Set(ctx, key, []byte("v1"))
		if err != nil {
			t.Fatalf("Set: %v", err)
		}
		if _, err := b.Replace(ctx, key, staleEd, []byte("v2")); err != nil {
			t.Fatalf("first replace: %v", err)
		}
		if _, err := b.Replace(ctx, key, staleEd, []byte("v3")); !errors.Is(err, dialogerr.ErrEditionMismatch) {
			t.Fatalf("expected ErrEditionMismatch, got %v", err)
		}
	})

	t.Run("DeleteRemovesKey", func(t *testing.T) {
		key := "delete/me"
		if _, err := b.Set(ctx, key, []byte("x")); err != nil {
			t.Fatalf("Set: %v", err)
		}
		if err := b.Delete(ctx, key); err != nil {
			t.Fatalf("Delete: %v", err)
		}
		if _, _, err := b.Get(ctx, key); !errors.Is(err, dialogerr.ErrNotFound) {
			t.Fatalf("expected ErrNotFound after delete, got %v", err)
		}
	})

	t.Run("DeleteAbsentKeyIsNotError", func(t *testing.T) {
		if err := b.Delete(ctx, "never/existed"); err != nil {
			t.Fatalf("Delete of absent key should not error, got %v", err)
		}
	})

	t.Run("ListRespectsPrefix", func(t *testing.T) {
		if _, err := b.Set(ctx, "list/one", []byte("1")); err != nil {
			t.Fatalf("Set: %v", err)
		}
		if _, err := b.Set(ctx, "list/two", []byte("2")); err != nil {
			t.Fatalf("Set: %v", err)
		}
		if _, err := b.Set(ctx, "other/three", []byte("3")); err != nil {
			t.Fatalf("Set: %v", err)
		}
		page, err := b.List(ctx, "list/", "")
		if err != nil {
			t.Fatalf("List: %v", err)
		}
		if len(page.Entries) != 2 {
			t.Fatalf("expected 2 entries under list/, got %d", len(page.Entries))
		}
	})

	t.Run("ResolveMatchesGetEdition", func(t *testing.T) {
		key := "resolve/key"
		setEd, err := b.Set(ctx, key, []byte("v"))
		if err != nil {
			t.Fatalf("Set: %v", err)
		}
		resolveEd, err := b.Resolve(ctx, key)
		if err != nil {
			t.Fatalf("Resolve: %v", err)
		}
		if !resolveEd.Equal(setEd) {
			t.Fatalf("Resolve edition %v does not match Set edition %v", resolveEd, setEd)
		}
	})
}
