package query

import (
	"fmt"

	"github.com/cuemby/dialog/pkg/dialogerr"
	"github.com/cuemby/dialog/pkg/model"
)

// FactorKind discriminates how a Factor's value was produced.
type FactorKind int

const (
	// Ground means the value came directly from a fact in the store.
	Ground FactorKind = iota
	// Derived means a formula or rule produced the value from other
	// bindings, recorded in From.
	Derived
	// Assumed means equality inference introduced the value: one side
	// of a ConstraintApplication was bound, the other was not.
	Assumed
)

func (k FactorKind) String() string {
	switch k {
	case Ground:
		return "ground"
	case Derived:
		return "derived"
	case Assumed:
		return "assumed"
	default:
		return "unknown"
	}
}

// Factor is the provenance record behind one Answer binding.
type Factor struct {
	Kind FactorKind
	Value model.Value

	// Source is the fact a Ground factor came from. Nil otherwise.
	Source *model.Fact

	// Formula names the formula or rule a Derived factor came from.
	Formula string
	// From records which input bindings a Derived factor was computed
	// from, keyed by the formula's input parameter name.
	From map[string]Factor
}

// Answer is an immutable binding of variable name to Factor. Set returns a
// new Answer rather than mutating the receiver, so a single Answer can be
// safely extended along many branches of a query plan at once.
type Answer struct {
	bindings map[string]Factor
	order    []string
}

// EmptyAnswer is the starting point for a query: no bindings.
func EmptyAnswer() Answer {
	return Answer{}
}

// Set binds name to f. If name is already bound to a Factor whose Value
// differs, Set fails with ErrVariableInconsistency — the two applications
// that both tried to bind name disagree about the entity they describe. If
// name is "" (the wildcard), Set is a no-op: wildcards never bind.
func (a Answer) Set(name string, f Factor) (Answer, error) {
	if name == "" {
		return a, nil
	}
	if existing, ok := a.bindings[name]; ok {
		if !existing.Value.Equal(f.Value) {
			return Answer{}, fmt.Errorf("dialog: query: variable %q: %w", name, dialogerr.ErrVariableInconsistency)
		}
		return a, nil
	}
	next := make(map[string]Factor, len(a.bindings)+1)
	for k, v := range a.bindings {
		next[k] = v
	}
	next[name] = f
	order := make([]string, len(a.order), len(a.order)+1)
	copy(order, a.order)
	order = append(order, name)
	return Answer{bindings: next, order: order}, nil
}

// Resolve returns the value bound to name, or ErrUnboundVariable.
func (a Answer) Resolve(name string) (model.Value, error) {
	f, ok := a.bindings[name]
	if !ok {
		return model.Value{}, fmt.Errorf("dialog: query: variable %q: %w", name, dialogerr.ErrUnboundVariable)
	}
	return f.Value, nil
}

// Factor returns the full provenance record bound to name, if any.
func (a Answer) Factor(name string) (Factor, bool) {
	f, ok := a.bindings[name]
	return f, ok
}

// Known reports whether name is currently bound.
func (a Answer) Known(name string) bool {
	_, ok := a.bindings[name]
	return ok
}

// Provenance returns every bound Factor in the order its variable was
// first set, tracing the derivation of this Answer from its inputs.
func (a Answer) Provenance() []Factor {
	out := make([]Factor, 0, len(a.order))
	for _, name := range a.order {
		out = append(out, a.bindings[name])
	}
	return out
}

// Env is the set of variable names known at a point in a query plan. It
// carries only names, never values: planning order depends on which
// variables are bound, not what they are bound to.
type Env map[string]struct{}

// NewEnv builds an Env from an Answer's currently-bound variable names.
func NewEnv(a Answer) Env {
	e := make(Env, len(a.bindings))
	for name := range a.bindings {
		e[name] = struct{}{}
	}
	return e
}

// Has reports whether name is known in e.
func (e Env) Has(name string) bool {
	_, ok := e[name]
	return ok
}

// With returns a new Env with names added.
func (e Env) With(names ...string) Env {
	next := make(Env, len(e)+len(names))
	for k := range e {
		next[k] = struct{}{}
	}
	for _, n := range names {
		if n != "" {
			next[n] = struct{}{}
		}
	}
	return next
}

// Cost is a monotone, comparable cost estimate. Lower runs first.
type Cost int

// Schema lists the variable names an Application may newly bind when it
// runs, used to grow an Env during planning without executing anything.
type Schema struct {
	Vars []string
}

// AnswerOrError is one item of an Application's evaluation stream: either
// an extended Answer, or a terminal error for that branch.
type AnswerOrError struct {
	Answer Answer
	Err    error
}
