// Package capability implements the capability chain: a typed, linked
// description of what a caller is allowed to do, rooted at a subject DID
// and narrowed by zero or more attenuations before terminating in an
// effect that a Provider knows how to execute.
//
// The source model's chain is a compile-time generic type indexed by its
// own shape ("select the nth Policy of type T"). Go has no equivalent
// generic-over-shape machinery, so per the tagged-variant-ADT option this
// generalizes to: Ability is an interface implemented by a small closed
// set of node types (Subject, Constrained, Effect), each holding a
// pointer to its parent, and Select[T] walks the chain doing a type
// assertion at each node instead of a compile-time index.
package capability

import (
	"strings"

	"github.com/cuemby/dialog/pkg/model"
)

// Ability is any node in a capability chain: a Subject root, a Constrained
// attenuation, or an Effect leaf.
type Ability interface {
	// Parent returns the ability this one narrows, or nil for a Subject.
	Parent() Ability
	// Segment returns this node's ability-path segment, or "" if it
	// contributes none (a pure policy attenuation).
	Segment() string
}

// Subject is the root of every capability chain: the DID that owns the
// catalog and cell the chain ultimately authorizes access to.
type Subject struct {
	DID model.Entity
}

func (s *Subject) Parent() Ability  { return nil }
func (s *Subject) Segment() string  { return "" }

// Attenuation is a step that narrows what a chain permits. Contributes()
// reports whether it adds a segment to the ability path; implementations
// that return false are "pure policy" and carry constraints only.
type Attenuation interface {
	Ability
	Contributes() bool
}

// Policy is a marker interface for attenuation settings selectable via
// Select[T] — e.g. a rate limit, a TTL, an audience restriction.
type Policy interface {
	isPolicy()
}

// Constrained is a generic attenuation node carrying one Policy plus an
// optional path segment.
type Constrained struct {
	parent      Ability
	policy      Policy
	segment     string
	contributes bool
}

// NewConstrained attenuates parent with policy, optionally contributing
// segment to the ability path.
func NewConstrained(parent Ability, policy Policy, segment string, contributes bool) *Constrained {
	return &Constrained{parent: parent, policy: policy, segment: segment, contributes: contributes}
}

func (c *Constrained) Parent() Ability   { return c.parent }
func (c *Constrained) Segment() string {
	if !c.contributes {
		return ""
	}
	return c.segment
}
func (c *Constrained) Contributes() bool { return c.contributes }

// Effect is the leaf of a capability chain: the concrete operation the
// chain authorizes, with its own declared ability segment and an output
// type recovered by the Provider that executes it.
type Effect struct {
	parent  Ability
	segment string
	op      any
}

// NewEffect builds an Effect attenuating parent, declaring segment, and
// carrying op — a value of the concrete effect type a Provider dispatches
// on (e.g. a *PutBlob or *Publish request struct).
func NewEffect(parent Ability, segment string, op any) *Effect {
	return &Effect{parent: parent, segment: segment, op: op}
}

func (e *Effect) Parent() Ability { return e.parent }
func (e *Effect) Segment() string { return e.segment }

// Op returns the concrete operation value this effect carries.
func (e *Effect) Op() any { return e.op }

// Capability is any chain terminating in an Effect — the type Providers
// accept.
type Capability = *Effect

// SubjectOf walks a to its root and returns the owning DID.
func SubjectOf(a Ability) model.Entity {
	for a.Parent() != nil {
		a = a.Parent()
	}
	if s, ok := a.(*Subject); ok {
		return s.DID
	}
	return model.Entity{}
}

// AbilityPath concatenates every contributing segment from subject to a,
// in chain order, each prefixed with "/".
func AbilityPath(a Ability) string {
	var segments []string
	for n := a; n != nil; n = n.Parent() {
		if seg := n.Segment(); seg != "" {
			segments = append(segments, seg)
		}
	}
	// n.Parent() walks leaf-to-root; reverse for subject-to-leaf order.
	var b strings.Builder
	for i := len(segments) - 1; i >= 0; i-- {
		b.WriteByte('/')
		b.WriteString(segments[i])
	}
	return b.String()
}

// Select walks a's chain from leaf to root and returns the first
// Constrained attenuation whose Policy is of type T, plus whether one was
// found.
func Select[T Policy](a Ability) (T, bool) {
	var zero T
	for n := a; n != nil; n = n.Parent() {
		c, ok := n.(*Constrained)
		if !ok {
			continue
		}
		if p, ok := c.policy.(T); ok {
			return p, true
		}
	}
	return zero, false
}
