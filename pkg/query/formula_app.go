package query

import (
	"context"
	"fmt"

	"github.com/cuemby/dialog/pkg/model"
)

// FormulaApplication applies a Formula to one Answer, binding the
// formula's declared parameter names to query terms. Params maps each of
// the formula's Input and Output parameter names to the term it is bound
// to in this application.
type FormulaApplication struct {
	Formula Formula
	Params  map[string]Term[model.Value]
}

// NewFormulaApplication binds a Formula's parameters to query terms.
func NewFormulaApplication(f Formula, params map[string]Term[model.Value]) *FormulaApplication {
	return &FormulaApplication{Formula: f, Params: params}
}

func (a *FormulaApplication) Schema() Schema {
	var vars []string
	for _, name := range a.Formula.Outputs {
		if t, ok := a.Params[name]; ok && t.IsVariable() {
			vars = append(vars, t.Name())
		}
	}
	return Schema{Vars: vars}
}

// Estimate is ready once every input parameter's term resolves — a
// formula is a pure function and cannot run on partial input.
func (a *FormulaApplication) Estimate(env Env) (Cost, bool) {
	for _, name := range a.Formula.Inputs {
		t, ok := a.Params[name]
		if !ok || !resolvable(t, env) {
			return 0, false
		}
	}
	return a.Formula.Cost, true
}

func (a *FormulaApplication) Evaluate(ctx context.Context, in Answer) <-chan AnswerOrError {
	out := make(chan AnswerOrError)

	go func() {
		defer close(out)

		cursor := newCursor(in)
		input := make(map[string]model.Value, len(a.Formula.Inputs))
		for _, name := range a.Formula.Inputs {
			t, ok := a.Params[name]
			if !ok {
				emit(ctx, out, AnswerOrError{Err: fmt.Errorf("dialog: query: formula %q: missing input param %q", a.Formula.Name, name)})
				return
			}
			if t.IsConst() {
				input[name] = t.Value()
				continue
			}
			v, err := cursor.Resolve(t.Name())
			if err != nil {
				emit(ctx, out, AnswerOrError{Err: fmt.Errorf("dialog: query: formula %q: input %q: %w", a.Formula.Name, name, err)})
				return
			}
			input[name] = v
		}

		results, err := a.Formula.Derive(input)
		if err != nil {
			emit(ctx, out, AnswerOrError{Err: fmt.Errorf("dialog: query: formula %q: %w", a.Formula.Name, err)})
			return
		}

		for _, result := range results {
			ans := in
			ok := true
			for _, name := range a.Formula.Outputs {
				t, exists := a.Params[name]
				if !exists || t.IsWildcard() {
					continue
				}
				v, has := result[name]
				if !has {
					continue
				}
				if t.IsConst() {
					if !t.Value().Equal(v) {
						ok = false
					}
					continue
				}
				var setErr error
				ans, setErr = ans.Set(t.Name(), Factor{
					Kind:    Derived,
					Value:   v,
					Formula: a.Formula.Name,
					From:    cursor.read,
				})
				if setErr != nil {
					ok = false
				}
			}
			if !ok {
				continue
			}
			if !emit(ctx, out, AnswerOrError{Answer: ans}) {
				return
			}
		}
	}()

	return out
}
