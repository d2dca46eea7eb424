package query

import "github.com/cuemby/dialog/pkg/model"

// Formula is a pure function from a named input record to zero or more
// named output records (empty for e.g. division by zero). Inputs and
// Outputs name the parameters Derive expects and produces; FormulaApplication
// binds those parameter names to query terms.
type Formula struct {
	Name    string
	Inputs  []string
	Outputs []string
	Cost    Cost
	Derive  func(input map[string]model.Value) ([]map[string]model.Value, error)
}

// Cursor threads an Answer through a formula's input resolution, recording
// which bindings were actually read so the resulting Derived factors carry
// accurate provenance.
type Cursor struct {
	ans  Answer
	read map[string]Factor
}

func newCursor(ans Answer) *Cursor {
	return &Cursor{ans: ans, read: make(map[string]Factor)}
}

// Resolve looks up name in the underlying Answer, recording its Factor if
// found.
func (c *Cursor) Resolve(name string) (model.Value, error) {
	v, err := c.ans.Resolve(name)
	if err != nil {
		return model.Value{}, err
	}
	if f, ok := c.ans.Factor(name); ok {
		c.read[name] = f
	}
	return v, nil
}
