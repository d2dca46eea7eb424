// Package query implements Dialog's streaming query kernel: Terms bind to
// Answers through a set of composable Applications (facts, constraints,
// formulas, rules), ordered and executed by a cost-driven Planner.
package query

// Term is either a constant of type T or a named variable. The wildcard
// variable — the zero Term, or one built with Wildcard — matches anything
// and never produces a binding.
type Term[T any] struct {
	name    string
	value   T
	isConst bool
}

// ConstTerm builds a Term bound to a fixed value.
func ConstTerm[T any](v T) Term[T] {
	return Term[T]{value: v, isConst: true}
}

// VarTerm builds a Term naming a variable. An empty name is the wildcard.
func VarTerm[T any](name string) Term[T] {
	return Term[T]{name: name}
}

// Wildcard builds the term that matches anything without binding.
func Wildcard[T any]() Term[T] {
	var t Term[T]
	return t
}

// Name returns the variable's name, or "" for a constant or wildcard term.
func (t Term[T]) Name() string { return t.name }

// IsConst reports whether t is a constant term.
func (t Term[T]) IsConst() bool { return t.isConst }

// IsWildcard reports whether t is the anonymous variable.
func (t Term[T]) IsWildcard() bool { return !t.isConst && t.name == "" }

// IsVariable reports whether t is a named, unbound-by-construction variable.
func (t Term[T]) IsVariable() bool { return !t.isConst && t.name != "" }

// Value returns the term's constant payload. Only meaningful when IsConst.
func (t Term[T]) Value() T { return t.value }
