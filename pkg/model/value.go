// Package model defines the EAV (entity-attribute-value) data model shared
// by the artifact store and the query kernel: Value, Entity, Attribute,
// Fact, and the three composite key orderings used to index facts.
package model

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/cuemby/dialog/pkg/dialoghash"
)

// Tag is the 1-byte discriminant of a Value variant.
type Tag byte

const (
	TagBytes Tag = iota
	TagEntity
	TagBool
	TagString
	TagU128
	TagI128
	TagFloat64
	TagRecord
	TagSymbol
)

func (t Tag) String() string {
	switch t {
	case TagBytes:
		return "bytes"
	case TagEntity:
		return "entity"
	case TagBool:
		return "boolean"
	case TagString:
		return "string"
	case TagU128:
		return "u128"
	case TagI128:
		return "i128"
	case TagFloat64:
		return "float64"
	case TagRecord:
		return "record"
	case TagSymbol:
		return "symbol"
	default:
		return fmt.Sprintf("tag(%d)", byte(t))
	}
}

// U128 is an unsigned 128-bit integer stored as two little-endian halves
// (Lo, Hi), avoiding a dependency on a big-integer library for the fixed
// width numeric encoding the spec requires.
type U128 struct {
	Lo, Hi uint64
}

// I128 is a signed 128-bit integer, two's complement across (Lo, Hi).
type I128 struct {
	Lo uint64
	Hi int64
}

// Value is a tagged union over the value types a fact can carry. Only one
// of the typed fields is meaningful, selected by Tag.
type Value struct {
	Tag    Tag
	Bytes  []byte  // TagBytes, TagRecord (opaque CBOR payload)
	Entity Entity  // TagEntity
	Bool   bool    // TagBool
	Str    string  // TagString, TagSymbol (attribute key bytes)
	U128   U128    // TagU128
	I128   I128    // TagI128
	Float  float64 // TagFloat64
}

// NewBytes constructs a TagBytes Value.
func NewBytes(b []byte) Value { return Value{Tag: TagBytes, Bytes: append([]byte(nil), b...)} }

// NewEntity constructs a TagEntity Value.
func NewEntity(e Entity) Value { return Value{Tag: TagEntity, Entity: e} }

// NewBool constructs a TagBool Value.
func NewBool(b bool) Value { return Value{Tag: TagBool, Bool: b} }

// NewString constructs a TagString Value.
func NewString(s string) Value { return Value{Tag: TagString, Str: s} }

// NewU128 constructs a TagU128 Value from a uint64 (Hi = 0).
func NewU128(v uint64) Value { return Value{Tag: TagU128, U128: U128{Lo: v}} }

// NewI128 constructs a TagI128 Value from an int64, sign-extended into Hi.
func NewI128(v int64) Value {
	hi := int64(0)
	if v < 0 {
		hi = -1
	}
	return Value{Tag: TagI128, I128: I128{Lo: uint64(v), Hi: hi}}
}

// NewFloat64 constructs a TagFloat64 Value.
func NewFloat64(f float64) Value { return Value{Tag: TagFloat64, Float: f} }

// NewSymbol constructs a TagSymbol Value holding an Attribute's key bytes.
func NewSymbol(s string) Value { return Value{Tag: TagSymbol, Str: s} }

// NewRecord constructs a TagRecord Value. Record semantics beyond "opaque
// byte payload" are an open question deferred by this revision (spec.md §9).
func NewRecord(b []byte) Value { return Value{Tag: TagRecord, Bytes: append([]byte(nil), b...)} }

// Encode writes the Value's canonical on-disk form: 1 tag byte followed by
// the little-endian payload for numerics, a single 0/nonzero byte for
// booleans, and raw bytes for everything else.
func (v Value) Encode() []byte {
	switch v.Tag {
	case TagBytes, TagRecord:
		out := make([]byte, 1+len(v.Bytes))
		out[0] = byte(v.Tag)
		copy(out[1:], v.Bytes)
		return out
	case TagEntity:
		out := make([]byte, 1+len(v.Entity))
		out[0] = byte(v.Tag)
		copy(out[1:], v.Entity[:])
		return out
	case TagBool:
		b := byte(0)
		if v.Bool {
			b = 1
		}
		return []byte{byte(v.Tag), b}
	case TagString, TagSymbol:
		out := make([]byte, 1+len(v.Str))
		out[0] = byte(v.Tag)
		copy(out[1:], v.Str)
		return out
	case TagU128:
		out := make([]byte, 17)
		out[0] = byte(v.Tag)
		binary.LittleEndian.PutUint64(out[1:9], v.U128.Lo)
		binary.LittleEndian.PutUint64(out[9:17], v.U128.Hi)
		return out
	case TagI128:
		out := make([]byte, 17)
		out[0] = byte(v.Tag)
		binary.LittleEndian.PutUint64(out[1:9], v.I128.Lo)
		binary.LittleEndian.PutUint64(out[9:17], uint64(v.I128.Hi))
		return out
	case TagFloat64:
		out := make([]byte, 9)
		out[0] = byte(v.Tag)
		binary.LittleEndian.PutUint64(out[1:9], math.Float64bits(v.Float))
		return out
	default:
		return []byte{byte(v.Tag)}
	}
}

// DecodeValue parses a Value from its canonical on-disk bytes.
func DecodeValue(b []byte) (Value, error) {
	if len(b) == 0 {
		return Value{}, fmt.Errorf("dialog: decode value: empty buffer")
	}
	tag := Tag(b[0])
	rest := b[1:]
	switch tag {
	case TagBytes:
		return NewBytes(rest), nil
	case TagRecord:
		return NewRecord(rest), nil
	case TagEntity:
		e, ok := EntityFromBytes(rest)
		if !ok {
			return Value{}, fmt.Errorf("dialog: decode value: bad entity length %d", len(rest))
		}
		return NewEntity(e), nil
	case TagBool:
		if len(rest) != 1 {
			return Value{}, fmt.Errorf("dialog: decode value: bad bool length %d", len(rest))
		}
		return NewBool(rest[0] != 0), nil
	case TagString:
		return NewString(string(rest)), nil
	case TagSymbol:
		return NewSymbol(string(rest)), nil
	case TagU128:
		if len(rest) != 16 {
			return Value{}, fmt.Errorf("dialog: decode value: bad u128 length %d", len(rest))
		}
		return Value{Tag: TagU128, U128: U128{
			Lo: binary.LittleEndian.Uint64(rest[0:8]),
			Hi: binary.LittleEndian.Uint64(rest[8:16]),
		}}, nil
	case TagI128:
		if len(rest) != 16 {
			return Value{}, fmt.Errorf("dialog: decode value: bad i128 length %d", len(rest))
		}
		return Value{Tag: TagI128, I128: I128{
			Lo: binary.LittleEndian.Uint64(rest[0:8]),
			Hi: int64(binary.LittleEndian.Uint64(rest[8:16])),
		}}, nil
	case TagFloat64:
		if len(rest) != 8 {
			return Value{}, fmt.Errorf("dialog: decode value: float64 requires fixed 8-byte payload, got %d", len(rest))
		}
		return NewFloat64(math.Float64frombits(binary.LittleEndian.Uint64(rest))), nil
	default:
		return Value{}, fmt.Errorf("dialog: decode value: unknown tag %d", tag)
	}
}

// ToUTF8 renders the Value's textual form: "<tag>:<payload>", base58 for
// binary variants, the native text form otherwise.
func (v Value) ToUTF8() string {
	switch v.Tag {
	case TagBytes:
		return v.Tag.String() + ":" + dialoghash.EncodeBase58(v.Bytes)
	case TagRecord:
		return v.Tag.String() + ":" + dialoghash.EncodeBase58(v.Bytes)
	case TagEntity:
		return v.Tag.String() + ":" + dialoghash.EncodeBase58(v.Entity[:])
	case TagBool:
		return v.Tag.String() + ":" + strconv.FormatBool(v.Bool)
	case TagString:
		return v.Tag.String() + ":" + v.Str
	case TagSymbol:
		return v.Tag.String() + ":" + v.Str
	case TagU128:
		if v.U128.Hi == 0 {
			return v.Tag.String() + ":" + strconv.FormatUint(v.U128.Lo, 10)
		}
		return fmt.Sprintf("%s:%d:%d", v.Tag, v.U128.Hi, v.U128.Lo)
	case TagI128:
		if (v.I128.Hi == 0 && int64(v.I128.Lo) >= 0) || (v.I128.Hi == -1 && int64(v.I128.Lo) < 0) {
			return v.Tag.String() + ":" + strconv.FormatInt(int64(v.I128.Lo), 10)
		}
		return fmt.Sprintf("%s:%d:%d", v.Tag, v.I128.Hi, v.I128.Lo)
	case TagFloat64:
		return v.Tag.String() + ":" + strconv.FormatFloat(v.Float, 'g', -1, 64)
	default:
		return v.Tag.String() + ":"
	}
}

// ValueFromUTF8 parses a Value from its textual form. It is the left
// inverse of ToUTF8 for every variant (roundtrip property, spec.md §8.2).
func ValueFromUTF8(s string) (Value, error) {
	idx := strings.IndexByte(s, ':')
	if idx < 0 {
		return Value{}, fmt.Errorf("dialog: parse value %q: missing tag separator", s)
	}
	tagName, payload := s[:idx], s[idx+1:]
	switch tagName {
	case "bytes":
		b, err := dialoghash.DecodeBase58(payload)
		if err != nil {
			return Value{}, fmt.Errorf("dialog: parse value: %w", err)
		}
		return NewBytes(b), nil
	case "record":
		b, err := dialoghash.DecodeBase58(payload)
		if err != nil {
			return Value{}, fmt.Errorf("dialog: parse value: %w", err)
		}
		return NewRecord(b), nil
	case "entity":
		b, err := dialoghash.DecodeBase58(payload)
		if err != nil {
			return Value{}, fmt.Errorf("dialog: parse value: %w", err)
		}
		e, ok := EntityFromBytes(b)
		if !ok {
			return Value{}, fmt.Errorf("dialog: parse value: bad entity length %d", len(b))
		}
		return NewEntity(e), nil
	case "boolean":
		b, err := strconv.ParseBool(payload)
		if err != nil {
			return Value{}, fmt.Errorf("dialog: parse value: %w", err)
		}
		return NewBool(b), nil
	case "string":
		return NewString(payload), nil
	case "symbol":
		return NewSymbol(payload), nil
	case "u128":
		parts := strings.SplitN(payload, ":", 2)
		if len(parts) == 1 {
			v, err := strconv.ParseUint(parts[0], 10, 64)
			if err != nil {
				return Value{}, fmt.Errorf("dialog: parse value: %w", err)
			}
			return NewU128(v), nil
		}
		hi, err := strconv.ParseUint(parts[0], 10, 64)
		if err != nil {
			return Value{}, fmt.Errorf("dialog: parse value: %w", err)
		}
		lo, err := strconv.ParseUint(parts[1], 10, 64)
		if err != nil {
			return Value{}, fmt.Errorf("dialog: parse value: %w", err)
		}
		return Value{Tag: TagU128, U128: U128{Lo: lo, Hi: hi}}, nil
	case "i128":
		parts := strings.SplitN(payload, ":", 2)
		if len(parts) == 1 {
			v, err := strconv.ParseInt(parts[0], 10, 64)
			if err != nil {
				return Value{}, fmt.Errorf("dialog: parse value: %w", err)
			}
			return NewI128(v), nil
		}
		hi, err := strconv.ParseInt(parts[0], 10, 64)
		if err != nil {
			return Value{}, fmt.Errorf("dialog: parse value: %w", err)
		}
		lo, err := strconv.ParseUint(parts[1], 10, 64)
		if err != nil {
			return Value{}, fmt.Errorf("dialog: parse value: %w", err)
		}
		return Value{Tag: TagI128, I128: I128{Lo: lo, Hi: hi}}, nil
	case "float64":
		f, err := strconv.ParseFloat(payload, 64)
		if err != nil {
			return Value{}, fmt.Errorf("dialog: parse value: %w", err)
		}
		return NewFloat64(f), nil
	default:
		return Value{}, fmt.Errorf("dialog: parse value: unknown tag %q", tagName)
	}
}

// Equal reports whether two Values are identical (same tag and payload).
func (v Value) Equal(o Value) bool {
	return v.Tag == o.Tag && string(v.Encode()) == string(o.Encode())
}

// Hash returns the BLAKE3-256 hash of the Value's canonical encoding, used
// by the tree's LWW conflict resolution ("higher hash wins").
func (v Value) Hash() dialoghash.Hash {
	return dialoghash.Sum256(v.Encode())
}

// CompareValues gives a total order over Values for deterministic tie-breaks
// on colliding composite keys: first by tag, then by encoded bytes.
func CompareValues(a, b Value) int {
	if a.Tag != b.Tag {
		if a.Tag < b.Tag {
			return -1
		}
		return 1
	}
	return bytes.Compare(a.Encode(), b.Encode())
}
