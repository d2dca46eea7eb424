package query

import (
	"context"

	"github.com/cuemby/dialog/pkg/model"
)

// Table is a mutable, in-memory fact set. Seminaive rule evaluation grows
// one across fixpoint rounds: TableApplication scans whatever Facts holds
// at the moment it runs, so a rule whose body references the same Table a
// prior round wrote into sees those derivations without its Applications
// being rebuilt.
type Table struct {
	Facts []model.Fact
}

// TableApplication matches (the, of, is) against every fact currently in
// Table, the same shape as FactApplication but over an in-memory slice
// instead of a persisted view — rule bodies use it to reference
// base-facts-plus-derived-so-far during seminaive iteration, where no
// on-disk index exists yet for the derived half.
type TableApplication struct {
	Table *Table
	The   Term[model.Attribute]
	Of    Term[model.Entity]
	Is    Term[model.Value]
}

// NewTableApplication builds a TableApplication scanning t.
func NewTableApplication(t *Table, the Term[model.Attribute], of Term[model.Entity], is Term[model.Value]) *TableApplication {
	return &TableApplication{Table: t, The: the, Of: of, Is: is}
}

func (t *TableApplication) Schema() Schema {
	var vars []string
	for _, name := range []string{t.The.Name(), t.Of.Name(), t.Is.Name()} {
		if name != "" {
			vars = append(vars, name)
		}
	}
	return Schema{Vars: vars}
}

// Estimate is always ready: an in-memory table has no ordering to
// exploit, so its cost doesn't vary with which axes are bound.
func (t *TableApplication) Estimate(Env) (Cost, bool) {
	return Cost(3), true
}

func (t *TableApplication) Evaluate(ctx context.Context, in Answer) <-chan AnswerOrError {
	out := make(chan AnswerOrError)

	go func() {
		defer close(out)

		the, theOK, err := resolveAttribute(t.The, in)
		if err != nil {
			emit(ctx, out, AnswerOrError{Err: err})
			return
		}
		of, ofOK, err := resolveEntity(t.Of, in)
		if err != nil {
			emit(ctx, out, AnswerOrError{Err: err})
			return
		}
		is, isOK, err := resolveValue(t.Is, in)
		if err != nil {
			emit(ctx, out, AnswerOrError{Err: err})
			return
		}

		for _, fact := range t.Table.Facts {
			if theOK && fact.The != the {
				continue
			}
			if ofOK && fact.Of != of {
				continue
			}
			if isOK && !fact.Is.Equal(is) {
				continue
			}

			ans := in
			bound := true
			if t.The.IsVariable() {
				ans, err = ans.Set(t.The.Name(), Factor{Kind: Ground, Value: fact.The.AsValue(), Source: &fact})
				if err != nil {
					bound = false
				}
			}
			if bound && t.Of.IsVariable() {
				ans, err = ans.Set(t.Of.Name(), Factor{Kind: Ground, Value: model.NewEntity(fact.Of), Source: &fact})
				if err != nil {
					bound = false
				}
			}
			if bound && t.Is.IsVariable() {
				ans, err = ans.Set(t.Is.Name(), Factor{Kind: Ground, Value: fact.Is, Source: &fact})
				if err != nil {
					bound = false
				}
			}
			if !bound {
				continue
			}
			if !emit(ctx, out, AnswerOrError{Answer: ans}) {
				return
			}
		}
	}()

	return out
}
