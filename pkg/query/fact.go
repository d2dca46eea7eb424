package query

import (
	"bytes"
	"context"
	"fmt"

	"github.com/cuemby/dialog/pkg/artifacts"
	"github.com/cuemby/dialog/pkg/model"
)

// FactApplication matches facts in a subject's view against a (the, of,
// is, cause) pattern, any component of which may be a constant or a
// variable. Cause defaults to the wildcard, in which case only live
// (non-retracted) facts are considered; binding Cause to a variable or
// constant instead walks retractions, matching the fact that cancelled a
// prior assertion.
type FactApplication struct {
	View  *artifacts.View
	The   Term[model.Attribute]
	Of    Term[model.Entity]
	Is    Term[model.Value]
	Cause Term[model.Entity]
}

// NewFactApplication builds a FactApplication with Cause left as the
// wildcard (match only live facts).
func NewFactApplication(view *artifacts.View, the Term[model.Attribute], of Term[model.Entity], is Term[model.Value]) *FactApplication {
	return &FactApplication{View: view, The: the, Of: of, Is: is, Cause: Wildcard[model.Entity]()}
}

func (f *FactApplication) Schema() Schema {
	var vars []string
	for _, name := range []string{f.The.Name(), f.Of.Name(), f.Is.Name(), f.Cause.Name()} {
		if name != "" {
			vars = append(vars, name)
		}
	}
	return Schema{Vars: vars}
}

// Estimate is always ready: a FactApplication can run as a full scan in
// the worst case. Its cost drops as more of (the, of, is) are already
// known, since a bound attribute or entity turns the scan into a prefix
// range over the AEV or EAV ordering rather than a table scan.
func (f *FactApplication) Estimate(env Env) (Cost, bool) {
	cost := Cost(3)
	if resolvable(f.The, env) {
		cost--
	}
	if resolvable(f.Of, env) {
		cost--
	}
	if resolvable(f.Is, env) {
		cost--
	}
	return cost, true
}

func resolvable[T any](t Term[T], env Env) bool {
	return t.IsConst() || (t.IsVariable() && env.Has(t.Name()))
}

func (f *FactApplication) Evaluate(ctx context.Context, in Answer) <-chan AnswerOrError {
	out := make(chan AnswerOrError)

	go func() {
		defer close(out)

		the, theOK, err := resolveAttribute(f.The, in)
		if err != nil {
			emit(ctx, out, AnswerOrError{Err: err})
			return
		}
		of, ofOK, err := resolveEntity(f.Of, in)
		if err != nil {
			emit(ctx, out, AnswerOrError{Err: err})
			return
		}
		is, isOK, err := resolveValue(f.Is, in)
		if err != nil {
			emit(ctx, out, AnswerOrError{Err: err})
			return
		}
		cause, causeOK, err := resolveEntity(f.Cause, in)
		if err != nil {
			emit(ctx, out, AnswerOrError{Err: err})
			return
		}

		ordering, prefix := f.chooseOrdering(theOK, the, ofOK, of)

		scanCtx, cancel := context.WithCancel(ctx)
		defer cancel()
		entries, errs := f.View.GetRange(scanCtx, ordering, prefix, nil)

		for entry := range entries {
			key := encodedKey(ordering, entry.Fact)
			if len(prefix) > 0 && !bytes.HasPrefix(key, prefix) {
				// Prefix-matching entries form a contiguous band under
				// this ordering; once we're past it there is nothing
				// left to find. Cancel before draining errs so the
				// producer isn't left blocked trying to send an entry
				// we'll never read.
				cancel()
				break
			}
			if !entry.Live && f.Cause.IsWildcard() {
				continue
			}
			if theOK && entry.Fact.The != the {
				continue
			}
			if ofOK && entry.Fact.Of != of {
				continue
			}
			if isOK && !entry.Fact.Is.Equal(is) {
				continue
			}
			if causeOK {
				if entry.Fact.Cause == nil || *entry.Fact.Cause != cause {
					continue
				}
			}

			ans, ok, err := f.extend(in, entry)
			if err != nil {
				emit(ctx, out, AnswerOrError{Err: err})
				return
			}
			if !ok {
				continue
			}
			if !emit(ctx, out, AnswerOrError{Answer: ans}) {
				return
			}
		}
		if err := <-errs; err != nil {
			emit(ctx, out, AnswerOrError{Err: err})
		}
	}()

	return out
}

func (f *FactApplication) chooseOrdering(theOK bool, the model.Attribute, ofOK bool, of model.Entity) (artifacts.Ordering, []byte) {
	switch {
	case theOK && ofOK:
		return artifacts.AEV, model.AEVPrefix(the, of)
	case theOK:
		return artifacts.AEV, model.Prefix(the.Encode())
	case ofOK:
		return artifacts.EAV, model.Prefix(of[:])
	default:
		return artifacts.EAV, nil
	}
}

func encodedKey(ordering artifacts.Ordering, fact model.Fact) []byte {
	switch ordering {
	case artifacts.AEV:
		return model.AEVKeyOf(fact).Encode()
	case artifacts.AVE:
		return model.AVEKeyOf(fact).Encode()
	default:
		return model.EAVKeyOf(fact).Encode()
	}
}

// extend binds any variable terms to the matched fact's components,
// producing Ground factors sourced from that fact.
func (f *FactApplication) extend(in Answer, entry artifacts.Entry) (Answer, bool, error) {
	fact := entry.Fact
	ans := in
	var err error

	if f.The.IsVariable() {
		ans, err = ans.Set(f.The.Name(), Factor{Kind: Ground, Value: fact.The.AsValue(), Source: &fact})
		if err != nil {
			return Answer{}, false, nil //nolint:nilerr // inconsistency means "not a match", not a hard failure
		}
	}
	if f.Of.IsVariable() {
		ans, err = ans.Set(f.Of.Name(), Factor{Kind: Ground, Value: model.NewEntity(fact.Of), Source: &fact})
		if err != nil {
			return Answer{}, false, nil
		}
	}
	if f.Is.IsVariable() {
		ans, err = ans.Set(f.Is.Name(), Factor{Kind: Ground, Value: fact.Is, Source: &fact})
		if err != nil {
			return Answer{}, false, nil
		}
	}
	if f.Cause.IsVariable() && fact.Cause != nil {
		ans, err = ans.Set(f.Cause.Name(), Factor{Kind: Ground, Value: model.NewEntity(*fact.Cause), Source: &fact})
		if err != nil {
			return Answer{}, false, nil
		}
	}
	return ans, true, nil
}

func resolveAttribute(t Term[model.Attribute], ans Answer) (model.Attribute, bool, error) {
	if t.IsConst() {
		return t.Value(), true, nil
	}
	if t.IsWildcard() {
		return "", false, nil
	}
	v, err := ans.Resolve(t.Name())
	if err != nil {
		return "", false, nil //nolint:nilerr // unbound just means "not yet resolvable"
	}
	if v.Tag != model.TagSymbol {
		return "", false, fmt.Errorf("dialog: query: variable %q bound to non-attribute value", t.Name())
	}
	return model.Attribute(v.Str), true, nil
}

func resolveEntity(t Term[model.Entity], ans Answer) (model.Entity, bool, error) {
	if t.IsConst() {
		return t.Value(), true, nil
	}
	if t.IsWildcard() {
		return model.Entity{}, false, nil
	}
	v, err := ans.Resolve(t.Name())
	if err != nil {
		return model.Entity{}, false, nil //nolint:nilerr
	}
	if v.Tag != model.TagEntity {
		return model.Entity{}, false, fmt.Errorf("dialog: query: variable %q bound to non-entity value", t.Name())
	}
	return v.Entity, true, nil
}

func resolveValue(t Term[model.Value], ans Answer) (model.Value, bool, error) {
	if t.IsConst() {
		return t.Value(), true, nil
	}
	if t.IsWildcard() {
		return model.Value{}, false, nil
	}
	v, err := ans.Resolve(t.Name())
	if err != nil {
		return model.Value{}, false, nil //nolint:nilerr
	}
	return v, true, nil
}

// emit sends item on out, honoring cancellation. It returns false if ctx
// was cancelled before the send completed.
func emit(ctx context.Context, out chan<- AnswerOrError, item AnswerOrError) bool {
	select {
	case out <- item:
		return true
	case <-ctx.Done():
		return false
	}
}
