package artifacts

import (
	"fmt"

	"github.com/cuemby/dialog/pkg/codec"
	"github.com/cuemby/dialog/pkg/model"
)

// InstructionKind distinguishes an Assert from a Retract within a commit
// batch.
type InstructionKind byte

const (
	// Assert adds or overwrites a fact.
	Assert InstructionKind = iota
	// Retract marks an existing fact as cancelled.
	Retract
)

// Instruction is one step of a commit batch: assert or retract a fact,
// carrying the attribute's cardinality so Commit knows whether an Assert
// must first supersede a prior value.
type Instruction struct {
	Kind        InstructionKind
	The         model.Attribute
	Of          model.Entity
	Is          model.Value
	Cause       *model.Entity
	Cardinality model.Cardinality
}

// AssertOne builds an Assert instruction for a cardinality-One attribute.
func AssertOne(the model.Attribute, of model.Entity, is model.Value) Instruction {
	return Instruction{Kind: Assert, The: the, Of: of, Is: is, Cardinality: model.CardinalityOne}
}

// AssertMany builds an Assert instruction for a cardinality-Many
// attribute.
func AssertMany(the model.Attribute, of model.Entity, is model.Value) Instruction {
	return Instruction{Kind: Assert, The: the, Of: of, Is: is, Cardinality: model.CardinalityMany}
}

// RetractFact builds a Retract instruction targeting an exact existing
// (the, of, is) triple, attributing the retraction to cause.
func RetractFact(the model.Attribute, of model.Entity, is model.Value, cause model.Entity) Instruction {
	return Instruction{Kind: Retract, The: the, Of: of, Is: is, Cause: &cause}
}

// record is the value stored at every tree entry: everything about a Fact
// not already carried by its key (The/Of/Is are reconstructed from the
// key itself depending on ordering).
type record struct {
	Cause     []byte `cbor:"cause,omitempty"`
	Retracted bool   `cbor:"retracted"`
}

func encodeRecord(r record) []byte {
	b, err := codec.MarshalCBOR(r)
	if err != nil {
		// record is a fixed, small, always-encodable shape; a failure here
		// indicates a codec bug, not a caller error.
		panic(fmt.Sprintf("dialog: artifacts: encode record: %v", err))
	}
	return b
}

func decodeRecord(b []byte) (record, error) {
	var r record
	if err := codec.UnmarshalCBOR(b, &r); err != nil {
		return record{}, err
	}
	return r, nil
}

func recordOf(f model.Fact) record {
	r := record{Retracted: f.Retracted}
	if f.Cause != nil {
		r.Cause = append([]byte(nil), f.Cause[:]...)
	}
	return r
}
