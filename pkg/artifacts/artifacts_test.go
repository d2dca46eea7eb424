package artifacts

import (
	"bytes"
	"context"
	"testing"

	"github.com/cuemby/dialog/pkg/model"
	"github.com/cuemby/dialog/pkg/storage"
)

func newTestArtifacts() *Artifacts {
	backend := storage.NewMemoryBackend()
	subject := model.NewEntityFromSeed([]byte("subject"))
	return New(subject, backend, "subject/memory", 8)
}

func mustAttr(t *testing.T, ns, name string) model.Attribute {
	t.Helper()
	a, err := model.NewAttribute(ns, name)
	if err != nil {
		t.Fatalf("NewAttribute: %v", err)
	}
	return a
}

func collectLive(t *testing.T, ctx context.Context, v *View, ordering Ordering) []Entry {
	t.Helper()
	entries, errs := v.GetRange(ctx, ordering, nil, nil)
	var out []Entry
	for e := range entries {
		out = append(out, e)
	}
	if err := <-errs; err != nil {
		t.Fatalf("GetRange: %v", err)
	}
	return out
}

func TestCommitThenResolveRoundtrips(t *testing.T) {
	ctx := context.Background()
	a := newTestArtifacts()

	name := mustAttr(t, "person", "name")
	alice := model.NewEntityFromSeed([]byte("alice"))

	_, err := a.Commit(ctx, []Instruction{
		AssertOne(name, alice, model.NewString("Alice")),
	})
	if err != nil {
		t.Fatalf("Commit: %v", err)
	}

	view, err := a.Resolve(ctx)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	entries := collectLive(t, ctx, view, EAV)
	if len(entries) != 1 {
		t.Fatalf("expected 1 fact, got %d", len(entries))
	}
	if !entries[0].Live || !entries[0].Fact.Is.Equal(model.NewString("Alice")) {
		t.Fatalf("unexpected fact: %+v", entries[0])
	}
}

func TestCommitCardinalityOneSupersedesPriorValue(t *testing.T) {
	ctx := context.Background()
	a := newTestArtifacts()
	name := mustAttr(t, "person", "name")
	alice := model.NewEntityFromSeed([]byte("alice"))

	if _, err := a.Commit(ctx, []Instruction{AssertOne(name, alice, model.NewString("Alice"))}); err != nil {
		t.Fatalf("first commit: %v", err)
	}
	if _, err := a.Commit(ctx, []Instruction{AssertOne(name, alice, model.NewString("Alicia"))}); err != nil {
		t.Fatalf("second commit: %v", err)
	}

	view, err := a.Resolve(ctx)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	entries := collectLive(t, ctx, view, AEV)

	var liveCount int
	for _, e := range entries {
		if e.Live {
			liveCount++
			if !e.Fact.Is.Equal(model.NewString("Alicia")) {
				t.Fatalf("expected the live value to be the most recent assertion, got %v", e.Fact.Is)
			}
		}
	}
	if liveCount != 1 {
		t.Fatalf("expected exactly 1 live value after supersede, got %d (entries=%d)", liveCount, len(entries))
	}
}

func TestCommitCardinalityManyKeepsBothValues(t *testing.T) {
	ctx := context.Background()
	a := newTestArtifacts()
	tag := mustAttr(t, "post", "tag")
	post := model.NewEntityFromSeed([]byte("post-1"))

	_, err := a.Commit(ctx, []Instruction{
		AssertMany(tag, post, model.NewString("go")),
		AssertMany(tag, post, model.NewString("databases")),
	})
	if err != nil {
		t.Fatalf("Commit: %v", err)
	}

	view, err := a.Resolve(ctx)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	entries := collectLive(t, ctx, view, EAV)

	live := 0
	for _, e := range entries {
		if e.Live {
			live++
		}
	}
	if live != 2 {
		t.Fatalf("expected both many-valued facts to remain live, got %d", live)
	}
}

func TestRetractMarksFactDead(t *testing.T) {
	ctx := context.Background()
	a := newTestArtifacts()
	name := mustAttr(t, "person", "name")
	alice := model.NewEntityFromSeed([]byte("alice"))
	value := model.NewString("Alice")

	if _, err := a.Commit(ctx, []Instruction{AssertOne(name, alice, value)}); err != nil {
		t.Fatalf("assert: %v", err)
	}
	if _, err := a.Commit(ctx, []Instruction{RetractFact(name, alice, value, alice)}); err != nil {
		t.Fatalf("retract: %v", err)
	}

	view, err := a.Resolve(ctx)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	entries := collectLive(t, ctx, view, EAV)
	if len(entries) != 1 || entries[0].Live {
		t.Fatalf("expected the retracted fact to remain as a dead entry, got %+v", entries)
	}
}

func TestGetRangeAEVFiltersByAttribute(t *testing.T) {
	ctx := context.Background()
	a := newTestArtifacts()
	name := mustAttr(t, "person", "name")
	age := mustAttr(t, "person", "age")
	alice := model.NewEntityFromSeed([]byte("alice"))

	_, err := a.Commit(ctx, []Instruction{
		AssertOne(name, alice, model.NewString("Alice")),
		AssertOne(age, alice, model.NewU128(30)),
	})
	if err != nil {
		t.Fatalf("Commit: %v", err)
	}

	view, err := a.Resolve(ctx)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}

	prefix := model.AEVPrefix(name, alice)
	entries, errs := view.GetRange(ctx, AEV, prefix, nil)
	var got []Entry
	for e := range entries {
		key := model.AEVKeyOf(e.Fact).Encode()
		if bytes.HasPrefix(key, prefix) {
			got = append(got, e)
		}
	}
	if err := <-errs; err != nil {
		t.Fatalf("GetRange: %v", err)
	}
	if len(got) == 0 {
		t.Fatal("expected at least one entry for the name attribute")
	}
	for _, e := range got {
		if e.Fact.The != name {
			t.Fatalf("expected only %q entries starting from its prefix, got %q", name, e.Fact.The)
		}
	}
}

func TestPublicationRecordRoundtripsThroughCBOR(t *testing.T) {
	pub := PublicationRecord{}
	b, err := encodePublication(pub)
	if err != nil {
		t.Fatalf("encodePublication: %v", err)
	}
	decoded, err := decodePublication(b)
	if err != nil {
		t.Fatalf("decodePublication: %v", err)
	}
	if decoded != pub {
		t.Fatalf("roundtrip mismatch: got %+v, want %+v", decoded, pub)
	}
}
