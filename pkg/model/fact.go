package model

import "github.com/cuemby/dialog/pkg/dialoghash"

// Cardinality declares whether an attribute admits one live value per
// entity or many. One-valued attributes are retracted implicitly when a
// new assertion supersedes them; many-valued attributes accumulate until
// explicitly retracted.
type Cardinality byte

const (
	// CardinalityOne means at most one live (Entity, Attribute) binding
	// exists at a time; asserting a new value retracts the prior one.
	CardinalityOne Cardinality = iota
	// CardinalityMany means multiple live values may coexist for the
	// same (Entity, Attribute) pair.
	CardinalityMany
)

func (c Cardinality) String() string {
	if c == CardinalityMany {
		return "many"
	}
	return "one"
}

// Fact is a single EAV assertion or retraction: attribute The holds value
// Is for entity Of, caused by the prior fact Cause points at (nil for a
// root assertion), and marked Retracted if this record cancels its cause
// rather than asserting a new value.
type Fact struct {
	The       Attribute
	Of        Entity
	Is        Value
	Cause     *Entity
	Retracted bool
}

// NewFact constructs an assertion.
func NewFact(the Attribute, of Entity, is Value) Fact {
	return Fact{The: the, Of: of, Is: is}
}

// NewRetraction constructs a Fact that retracts the fact identified by
// cause, carrying forward the same attribute, entity and value so the
// retraction can be matched against the assertion it cancels.
func NewRetraction(the Attribute, of Entity, is Value, cause Entity) Fact {
	return Fact{The: the, Of: of, Is: is, Cause: &cause, Retracted: true}
}

// Hash returns the BLAKE3-256 hash over the fact's canonical encoding,
// used as the fact's own Entity identifier when it is referenced as a
// Cause by a later retraction.
func (f Fact) Hash() dialoghash.Hash {
	buf := make([]byte, 0, 96)
	buf = append(buf, f.The.Encode()...)
	buf = append(buf, 0)
	buf = append(buf, f.Of[:]...)
	buf = append(buf, f.Is.Encode()...)
	if f.Cause != nil {
		buf = append(buf, f.Cause[:]...)
	}
	if f.Retracted {
		buf = append(buf, 1)
	}
	return dialoghash.Sum256(buf)
}

// Equal reports whether two facts carry the same attribute, entity, value,
// cause and retraction flag.
func (f Fact) Equal(o Fact) bool {
	if f.The != o.The || f.Of != o.Of || !f.Is.Equal(o.Is) || f.Retracted != o.Retracted {
		return false
	}
	switch {
	case f.Cause == nil && o.Cause == nil:
		return true
	case f.Cause == nil || o.Cause == nil:
		return false
	default:
		return *f.Cause == *o.Cause
	}
}
