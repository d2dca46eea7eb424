package storage

import (
	"context"
	"testing"
)

func TestMemoryBackendConformance(t *testing.T) {
	runBackendConformance(t, NewMemoryBackend())
}

func TestMemoryBackendEditionsAreCounters(t *testing.T) {
	ctx := context.Background()
	b := NewMemoryBackend()
	ed1, err := b.Set(ctx, "k", []byte("v1"))
	if err != nil {
		t.Fatalf("Set: %v", err)
	}
	ed2, err := b.Set(ctx, "k", []byte("v2"))
	if err != nil {
		t.Fatalf("Set: %v", err)
	}
	if ed1.Equal(ed2) {
		t.Fatal("successive Set calls on the same key must produce distinct editions")
	}
}
