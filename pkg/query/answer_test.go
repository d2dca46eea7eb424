package query

import (
	"errors"
	"testing"

	"github.com/cuemby/dialog/pkg/dialogerr"
	"github.com/cuemby/dialog/pkg/model"
)

func TestAnswerSetAndResolve(t *testing.T) {
	a := EmptyAnswer()
	a, err := a.Set("x", Factor{Kind: Ground, Value: model.NewString("hi")})
	if err != nil {
		t.Fatalf("Set: %v", err)
	}
	v, err := a.Resolve("x")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if !v.Equal(model.NewString("hi")) {
		t.Fatalf("unexpected value %v", v)
	}
}

func TestAnswerResolveUnbound(t *testing.T) {
	a := EmptyAnswer()
	if _, err := a.Resolve("missing"); !errors.Is(err, dialogerr.ErrUnboundVariable) {
		t.Fatalf("expected ErrUnboundVariable, got %v", err)
	}
}

func TestAnswerSetConflictingValue(t *testing.T) {
	a := EmptyAnswer()
	a, err := a.Set("x", Factor{Kind: Ground, Value: model.NewString("a")})
	if err != nil {
		t.Fatalf("Set: %v", err)
	}
	if _, err := a.Set("x", Factor{Kind: Ground, Value: model.NewString("b")}); !errors.Is(err, dialogerr.ErrVariableInconsistency) {
		t.Fatalf("expected ErrVariableInconsistency, got %v", err)
	}
}

func TestAnswerSetSameValueIsNoop(t *testing.T) {
	a := EmptyAnswer()
	a, err := a.Set("x", Factor{Kind: Ground, Value: model.NewString("a")})
	if err != nil {
		t.Fatalf("Set: %v", err)
	}
	if _, err := a.Set("x", Factor{Kind: Ground, Value: model.NewString("a")}); err != nil {
		t.Fatalf("Set with identical value should not fail: %v", err)
	}
}

func TestAnswerSetWildcardIsNoop(t *testing.T) {
	a := EmptyAnswer()
	a2, err := a.Set("", Factor{Kind: Ground, Value: model.NewString("a")})
	if err != nil {
		t.Fatalf("Set: %v", err)
	}
	if len(a2.Provenance()) != 0 {
		t.Fatalf("wildcard set should not create a binding")
	}
}

func TestAnswerImmutability(t *testing.T) {
	a := EmptyAnswer()
	b, err := a.Set("x", Factor{Kind: Ground, Value: model.NewString("a")})
	if err != nil {
		t.Fatalf("Set: %v", err)
	}
	if a.Known("x") {
		t.Fatal("original Answer should be unaffected by Set on the derived copy")
	}
	if !b.Known("x") {
		t.Fatal("derived Answer should carry the new binding")
	}
}

func TestAnswerProvenanceOrder(t *testing.T) {
	a := EmptyAnswer()
	a, _ = a.Set("x", Factor{Kind: Ground, Value: model.NewString("1")})
	a, _ = a.Set("y", Factor{Kind: Ground, Value: model.NewString("2")})
	prov := a.Provenance()
	if len(prov) != 2 || !prov[0].Value.Equal(model.NewString("1")) || !prov[1].Value.Equal(model.NewString("2")) {
		t.Fatalf("unexpected provenance order: %+v", prov)
	}
}

func TestTermVariants(t *testing.T) {
	c := ConstTerm(model.NewString("x"))
	if !c.IsConst() || c.IsVariable() || c.IsWildcard() {
		t.Fatalf("const term misclassified: %+v", c)
	}
	v := VarTerm[model.Value]("foo")
	if !v.IsVariable() || v.IsConst() || v.IsWildcard() {
		t.Fatalf("var term misclassified: %+v", v)
	}
	w := Wildcard[model.Value]()
	if !w.IsWildcard() || w.IsConst() || w.IsVariable() {
		t.Fatalf("wildcard term misclassified: %+v", w)
	}
}
