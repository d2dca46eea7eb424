package capability

import (
	"testing"

	"github.com/cuemby/dialog/pkg/model"
)

type ttlPolicy struct{ seconds int }

func (ttlPolicy) isPolicy() {}

type audiencePolicy struct{ did model.Entity }

func (audiencePolicy) isPolicy() {}

func TestSubjectOfWalksToRoot(t *testing.T) {
	did := model.NewEntityFromSeed([]byte("alice"))
	subj := &Subject{DID: did}
	attenuated := NewConstrained(subj, ttlPolicy{seconds: 60}, "", false)
	effect := NewEffect(attenuated, "put", nil)

	if got := SubjectOf(effect); got != did {
		t.Fatalf("SubjectOf mismatch: got %s, want %s", got, did)
	}
}

func TestAbilityPathConcatenatesContributingSegments(t *testing.T) {
	subj := &Subject{DID: model.NewEntityFromSeed([]byte("bob"))}
	scoped := NewConstrained(subj, ttlPolicy{seconds: 30}, "artifacts", true)
	nested := NewConstrained(scoped, ttlPolicy{seconds: 10}, "blobs", true)
	effect := NewEffect(nested, "put", nil)

	if got := AbilityPath(effect); got != "/artifacts/blobs/put" {
		t.Fatalf("got %q, want %q", got, "/artifacts/blobs/put")
	}
}

func TestAbilityPathSkipsNonContributingAttenuations(t *testing.T) {
	subj := &Subject{DID: model.NewEntityFromSeed([]byte("carol"))}
	policyOnly := NewConstrained(subj, ttlPolicy{seconds: 5}, "", false)
	effect := NewEffect(policyOnly, "get", nil)

	if got := AbilityPath(effect); got != "/get" {
		t.Fatalf("got %q, want %q", got, "/get")
	}
}

func TestSelectFindsNearestMatchingPolicy(t *testing.T) {
	subj := &Subject{DID: model.NewEntityFromSeed([]byte("dave"))}
	outer := NewConstrained(subj, ttlPolicy{seconds: 100}, "", false)
	inner := NewConstrained(outer, ttlPolicy{seconds: 5}, "", false)
	effect := NewEffect(inner, "put", nil)

	p, ok := Select[ttlPolicy](effect)
	if !ok {
		t.Fatal("expected a ttlPolicy to be found")
	}
	if p.seconds != 5 {
		t.Fatalf("expected nearest policy (5s), got %d", p.seconds)
	}
}

func TestSelectReturnsFalseWhenAbsent(t *testing.T) {
	subj := &Subject{DID: model.NewEntityFromSeed([]byte("erin"))}
	effect := NewEffect(subj, "put", nil)

	if _, ok := Select[ttlPolicy](effect); ok {
		t.Fatal("expected no ttlPolicy to be found")
	}
}
