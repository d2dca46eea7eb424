package query

import (
	"context"
	"fmt"

	"github.com/cuemby/dialog/pkg/dialogerr"
	"github.com/cuemby/dialog/pkg/metrics"
	"github.com/cuemby/dialog/pkg/model"
)

// HeadTerm is the pattern a Rule derives, referencing the rule's own body
// variable names (or constants) — never the caller's.
type HeadTerm struct {
	The Term[model.Attribute]
	Of  Term[model.Entity]
	Is  Term[model.Value]
}

// Rule declares a derived-fact pattern (Head) produced whenever its Body —
// a sequence of Applications, possibly including TableApplications
// referencing a shared Table for self- or mutual recursion — is fully
// satisfiable. A Rule's own variable names are local to it: this
// implementation does not alpha-rename, so a rule's body variables must
// not collide with whatever query it is embedded in (see DESIGN.md).
type Rule struct {
	Name string
	Head HeadTerm
	Body []Application
	Cost Cost
}

// RuleApplication runs a Rule's body as a sub-plan seeded from the caller's
// Answer, then matches the derived head fact against the caller-facing
// (The, Of, Is) pattern — the same shape a FactApplication exposes, so a
// rule can appear inside a query (or another rule's body) exactly like a
// fact lookup. It is meant for non-recursive composition; a self- or
// mutually-recursive rule set should run through Program.Evaluate's
// seminaive fixpoint instead, since nesting RuleApplication.Evaluate calls
// for a self-referencing rule would recurse without the bounded-iteration
// guarantee seminaive evaluation provides.
type RuleApplication struct {
	Rule Rule
	The  Term[model.Attribute]
	Of   Term[model.Entity]
	Is   Term[model.Value]
}

// NewRuleApplication builds a RuleApplication matching r's derived facts
// against the given caller-facing pattern.
func NewRuleApplication(r Rule, the Term[model.Attribute], of Term[model.Entity], is Term[model.Value]) *RuleApplication {
	return &RuleApplication{Rule: r, The: the, Of: of, Is: is}
}

func (a *RuleApplication) Schema() Schema {
	var vars []string
	for _, name := range []string{a.The.Name(), a.Of.Name(), a.Is.Name()} {
		if name != "" {
			vars = append(vars, name)
		}
	}
	return Schema{Vars: vars}
}

// Estimate is ready if the rule's body can be fully planned from env —
// i.e. this rule could in principle fire given what's already known.
func (a *RuleApplication) Estimate(env Env) (Cost, bool) {
	if _, err := plan(a.Rule.Body, env); err != nil {
		return 0, false
	}
	return a.Rule.Cost, true
}

func (a *RuleApplication) Evaluate(ctx context.Context, in Answer) <-chan AnswerOrError {
	out := make(chan AnswerOrError)

	go func() {
		defer close(out)

		sub := NewPlanner(a.Rule.Body)
		results := sub.Evaluate(ctx, in)
		for item := range results {
			if item.Err != nil {
				if !emit(ctx, out, item) {
					return
				}
				continue
			}

			the, theOK, err := resolveAttribute(a.Rule.Head.The, item.Answer)
			if err != nil {
				emit(ctx, out, AnswerOrError{Err: err})
				return
			}
			of, ofOK, err := resolveEntity(a.Rule.Head.Of, item.Answer)
			if err != nil {
				emit(ctx, out, AnswerOrError{Err: err})
				return
			}
			is, isOK, err := resolveValue(a.Rule.Head.Is, item.Answer)
			if err != nil {
				emit(ctx, out, AnswerOrError{Err: err})
				return
			}
			if !theOK || !ofOK || !isOK {
				continue
			}

			ans, ok, err := bindHeadToCaller(a.The, a.Of, a.Is, model.NewFact(the, of, is), in, a.Rule.Name)
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
	}()

	return out
}

// bindHeadToCaller matches a rule's derived fact against the caller-facing
// pattern, producing Derived factors for any variable terms.
func bindHeadToCaller(the Term[model.Attribute], of Term[model.Entity], is Term[model.Value], derived model.Fact, in Answer, ruleName string) (Answer, bool, error) {
	if the.IsConst() && the.Value() != derived.The {
		return Answer{}, false, nil
	}
	if of.IsConst() && of.Value() != derived.Of {
		return Answer{}, false, nil
	}
	if is.IsConst() && !is.Value().Equal(derived.Is) {
		return Answer{}, false, nil
	}

	ans := in
	var err error
	if the.IsVariable() {
		ans, err = ans.Set(the.Name(), Factor{Kind: Derived, Value: derived.The.AsValue(), Formula: "rule:" + ruleName})
		if err != nil {
			return Answer{}, false, nil
		}
	}
	if of.IsVariable() {
		ans, err = ans.Set(of.Name(), Factor{Kind: Derived, Value: model.NewEntity(derived.Of), Formula: "rule:" + ruleName})
		if err != nil {
			return Answer{}, false, nil
		}
	}
	if is.IsVariable() {
		ans, err = ans.Set(is.Name(), Factor{Kind: Derived, Value: derived.Is, Formula: "rule:" + ruleName})
		if err != nil {
			return Answer{}, false, nil
		}
	}
	return ans, true, nil
}

// Program is a set of rules evaluated together via seminaive iteration,
// the mechanism for self- and mutually-recursive rules: start from an
// empty derived set, repeatedly fire every rule's body against the
// Table's current facts (base facts plus everything derived so far),
// collect newly derived facts into the Table for the next round, and stop
// when a round adds nothing new or maxIterations is exhausted.
type Program struct {
	Rules []Rule
}

// Evaluate runs the fixpoint, mutating table.Facts in place by appending
// every derived fact, and returns just the newly derived facts (table's
// original contents are the base facts, left untouched as entries but not
// returned). It fails with a wrapped dialogerr.ErrOperation if no fixpoint
// is reached within maxIterations — the soft cap guarding against
// unbounded recursion from a buggy rule set.
func (p *Program) Evaluate(ctx context.Context, table *Table, maxIterations int) ([]model.Fact, error) {
	seen := make(map[string]struct{}, len(table.Facts))
	for _, f := range table.Facts {
		seen[string(model.EAVKeyOf(f).Encode())] = struct{}{}
	}
	var derived []model.Fact

	for iter := 0; iter < maxIterations; iter++ {
		var added []model.Fact
		for _, rule := range p.Rules {
			facts, err := fireRule(ctx, rule)
			if err != nil {
				return nil, err
			}
			metrics.RuleFixpointIterations.WithLabelValues(rule.Name).Set(float64(iter + 1))
			for _, f := range facts {
				key := string(model.EAVKeyOf(f).Encode())
				if _, ok := seen[key]; ok {
					continue
				}
				seen[key] = struct{}{}
				added = append(added, f)
			}
		}
		if len(added) == 0 {
			return derived, nil
		}
		derived = append(derived, added...)
		table.Facts = append(table.Facts, added...)
	}
	return derived, fmt.Errorf("dialog: query: rule evaluation did not reach a fixpoint within %d iterations: %w", maxIterations, dialogerr.ErrOperation)
}

func fireRule(ctx context.Context, rule Rule) ([]model.Fact, error) {
	planner := NewPlanner(rule.Body)
	results := planner.Evaluate(ctx, EmptyAnswer())

	var out []model.Fact
	for item := range results {
		if item.Err != nil {
			return nil, fmt.Errorf("dialog: query: rule %q: %w", rule.Name, item.Err)
		}
		the, theOK, err := resolveAttribute(rule.Head.The, item.Answer)
		if err != nil {
			return nil, err
		}
		of, ofOK, err := resolveEntity(rule.Head.Of, item.Answer)
		if err != nil {
			return nil, err
		}
		is, isOK, err := resolveValue(rule.Head.Is, item.Answer)
		if err != nil {
			return nil, err
		}
		if !theOK || !ofOK || !isOK {
			continue
		}
		out = append(out, model.NewFact(the, of, is))
	}
	return out, nil
}
