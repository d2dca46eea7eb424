package model

import (
	"fmt"
	"strings"

	"github.com/cuemby/dialog/pkg/dialoghash"
)

// Attribute names a fact's predicate as a "namespace/name" symbol, e.g.
// "person/name" or "dialog/branch". Attributes are interned as plain
// strings rather than small integers: the spec's key orderings sort on
// the attribute's encoded bytes directly, so no symbol table is required.
type Attribute string

// NewAttribute validates and constructs an Attribute from a namespace and
// a name.
func NewAttribute(namespace, name string) (Attribute, error) {
	if namespace == "" || name == "" {
		return "", fmt.Errorf("dialog: attribute: namespace and name must be non-empty")
	}
	if strings.Contains(namespace, "/") || strings.Contains(name, "/") {
		return "", fmt.Errorf("dialog: attribute: namespace and name must not contain '/'")
	}
	return Attribute(namespace + "/" + name), nil
}

// Namespace returns the portion of the attribute before the first '/'.
func (a Attribute) Namespace() string {
	if i := strings.IndexByte(string(a), '/'); i >= 0 {
		return string(a)[:i]
	}
	return string(a)
}

// Name returns the portion of the attribute after the first '/'.
func (a Attribute) Name() string {
	if i := strings.IndexByte(string(a), '/'); i >= 0 {
		return string(a)[i+1:]
	}
	return ""
}

// Encode returns the attribute's canonical byte encoding, used directly in
// the AEV and AVE key orderings.
func (a Attribute) Encode() []byte {
	return []byte(a)
}

// Hash returns the BLAKE3-256 hash of the attribute's canonical bytes.
func (a Attribute) Hash() dialoghash.Hash {
	return dialoghash.Sum256(a.Encode())
}

// Compare gives a total order over Attributes (lexicographic on the
// "namespace/name" string).
func (a Attribute) Compare(o Attribute) int {
	switch {
	case a < o:
		return -1
	case a > o:
		return 1
	default:
		return 0
	}
}

// AsValue wraps the attribute as a TagSymbol Value, e.g. so a rule body can
// bind an attribute name to a query variable.
func (a Attribute) AsValue() Value {
	return NewSymbol(string(a))
}
