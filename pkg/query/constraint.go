package query

import (
	"context"
	"fmt"

	"github.com/cuemby/dialog/pkg/dialogerr"
	"github.com/cuemby/dialog/pkg/model"
)

// ConstraintApplication is an equality constraint between two value
// terms: it either passes an Answer through unchanged (both sides already
// agree), infers a binding for whichever side is unbound (Assumed), or
// filters out an Answer where both sides are bound and disagree.
type ConstraintApplication struct {
	This Term[model.Value]
	Is   Term[model.Value]
}

// NewConstraintApplication builds a ConstraintApplication over two terms
// expected to denote the same value.
func NewConstraintApplication(this, is Term[model.Value]) *ConstraintApplication {
	return &ConstraintApplication{This: this, Is: is}
}

func (c *ConstraintApplication) Schema() Schema {
	var vars []string
	if c.This.Name() != "" {
		vars = append(vars, c.This.Name())
	}
	if c.Is.Name() != "" {
		vars = append(vars, c.Is.Name())
	}
	return Schema{Vars: vars}
}

// equalityCost is the fixed cost of evaluating an equality constraint: a
// simple comparison, cheaper than any FactApplication scan.
const equalityCost Cost = 1

// Estimate is ready once at least one side is resolvable; equality has
// nothing to check or infer until it knows at least one value.
func (c *ConstraintApplication) Estimate(env Env) (Cost, bool) {
	thisReady := resolvable(c.This, env)
	isReady := resolvable(c.Is, env)
	if !thisReady && !isReady {
		return 0, false
	}
	return equalityCost, true
}

func (c *ConstraintApplication) Evaluate(ctx context.Context, in Answer) <-chan AnswerOrError {
	out := make(chan AnswerOrError, 1)
	defer close(out)

	thisVal, thisOK, err := resolveValue(c.This, in)
	if err != nil {
		out <- AnswerOrError{Err: err}
		return out
	}
	isVal, isOK, err := resolveValue(c.Is, in)
	if err != nil {
		out <- AnswerOrError{Err: err}
		return out
	}

	switch {
	case thisOK && isOK:
		if !thisVal.Equal(isVal) {
			return out // filtered: the two sides disagree, not an error
		}
		out <- AnswerOrError{Answer: in}
	case thisOK:
		ans, err := bindIfVariable(in, c.Is, thisVal)
		if err != nil {
			out <- AnswerOrError{Err: err}
			return out
		}
		out <- AnswerOrError{Answer: ans}
	case isOK:
		ans, err := bindIfVariable(in, c.This, isVal)
		if err != nil {
			out <- AnswerOrError{Err: err}
			return out
		}
		out <- AnswerOrError{Answer: ans}
	default:
		out <- AnswerOrError{Err: fmt.Errorf("dialog: query: constraint with both sides unbound: %w", dialogerr.ErrConstraintViolation)}
	}
	return out
}

func bindIfVariable(in Answer, t Term[model.Value], v model.Value) (Answer, error) {
	if !t.IsVariable() {
		return in, nil
	}
	return in.Set(t.Name(), Factor{Kind: Assumed, Value: v})
}
