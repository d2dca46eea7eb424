package query

import (
	"context"
	"testing"

	"github.com/cuemby/dialog/pkg/model"
)

func divideFormula() Formula {
	return Formula{
		Name:    "divide",
		Inputs:  []string{"a", "b"},
		Outputs: []string{"quotient"},
		Cost:    1,
		Derive: func(in map[string]model.Value) ([]map[string]model.Value, error) {
			a := int64(in["a"].U128.Lo)
			b := int64(in["b"].U128.Lo)
			if b == 0 {
				return nil, nil // division by zero: no outputs, not an error
			}
			return []map[string]model.Value{{"quotient": model.NewU128(uint64(a / b))}}, nil
		},
	}
}

func TestFormulaApplicationComputesOutput(t *testing.T) {
	app := NewFormulaApplication(divideFormula(), map[string]Term[model.Value]{
		"a":        ConstTerm(model.NewU128(10)),
		"b":        ConstTerm(model.NewU128(2)),
		"quotient": VarTerm[model.Value]("q"),
	})
	answers := drain(t, app.Evaluate(context.Background(), EmptyAnswer()))
	if len(answers) != 1 {
		t.Fatalf("expected 1 answer, got %d", len(answers))
	}
	q, err := answers[0].Resolve("q")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if q.U128.Lo != 5 {
		t.Fatalf("expected quotient 5, got %d", q.U128.Lo)
	}
	f, ok := answers[0].Factor("q")
	if !ok || f.Kind != Derived || f.Formula != "divide" {
		t.Fatalf("expected a Derived factor attributed to 'divide', got %+v", f)
	}
}

func TestFormulaApplicationDivisionByZeroYieldsNoAnswers(t *testing.T) {
	app := NewFormulaApplication(divideFormula(), map[string]Term[model.Value]{
		"a":        ConstTerm(model.NewU128(10)),
		"b":        ConstTerm(model.NewU128(0)),
		"quotient": VarTerm[model.Value]("q"),
	})
	answers := drain(t, app.Evaluate(context.Background(), EmptyAnswer()))
	if len(answers) != 0 {
		t.Fatalf("expected 0 answers for division by zero, got %d", len(answers))
	}
}

func TestFormulaApplicationNotReadyUntilInputsBound(t *testing.T) {
	app := NewFormulaApplication(divideFormula(), map[string]Term[model.Value]{
		"a":        VarTerm[model.Value]("a"),
		"b":        ConstTerm(model.NewU128(2)),
		"quotient": VarTerm[model.Value]("q"),
	})
	if _, ready := app.Estimate(Env{}); ready {
		t.Fatal("expected formula to be unready with an unbound input")
	}
	if _, ready := app.Estimate(Env{"a": struct{}{}}); !ready {
		t.Fatal("expected formula to be ready once its input is bound")
	}
}

func TestConstraintApplicationInfersUnboundSide(t *testing.T) {
	c := NewConstraintApplication(ConstTerm(model.NewString("x")), VarTerm[model.Value]("y"))
	answers := drain(t, c.Evaluate(context.Background(), EmptyAnswer()))
	if len(answers) != 1 {
		t.Fatalf("expected 1 answer, got %d", len(answers))
	}
	v, err := answers[0].Resolve("y")
	if err != nil || !v.Equal(model.NewString("x")) {
		t.Fatalf("expected y to be inferred as 'x', got %v err=%v", v, err)
	}
}

func TestConstraintApplicationFiltersMismatch(t *testing.T) {
	c := NewConstraintApplication(ConstTerm(model.NewString("x")), ConstTerm(model.NewString("y")))
	answers := drain(t, c.Evaluate(context.Background(), EmptyAnswer()))
	if len(answers) != 0 {
		t.Fatalf("expected mismatched constants to be filtered, got %d answers", len(answers))
	}
}

func TestConstraintApplicationPassesThroughOnMatch(t *testing.T) {
	c := NewConstraintApplication(ConstTerm(model.NewString("x")), ConstTerm(model.NewString("x")))
	answers := drain(t, c.Evaluate(context.Background(), EmptyAnswer()))
	if len(answers) != 1 {
		t.Fatalf("expected 1 pass-through answer, got %d", len(answers))
	}
}
