package model

import (
	"bytes"
	"fmt"
)

// EAVKey encodes a fact for the entity-attribute-value ordering: the
// primary index used to answer "what do we know about this entity".
type EAVKey struct {
	Of  Entity
	The Attribute
	Is  Value
}

// AEVKey encodes a fact for the attribute-entity-value ordering: used to
// answer "which entities have this attribute" without a full scan.
type AEVKey struct {
	The Attribute
	Of  Entity
	Is  Value
}

// AVEKey encodes a fact for the attribute-value-entity ordering: used to
// answer "which entity has this attribute set to this value", i.e. a
// reverse lookup.
type AVEKey struct {
	The Attribute
	Is  Value
	Of  Entity
}

// EAVKeyOf projects a Fact into its EAV key.
func EAVKeyOf(f Fact) EAVKey { return EAVKey{Of: f.Of, The: f.The, Is: f.Is} }

// AEVKeyOf projects a Fact into its AEV key.
func AEVKeyOf(f Fact) AEVKey { return AEVKey{The: f.The, Of: f.Of, Is: f.Is} }

// AVEKeyOf projects a Fact into its AVE key.
func AVEKeyOf(f Fact) AVEKey { return AVEKey{The: f.The, Is: f.Is, Of: f.Of} }

// Encode returns the EAVKey's canonical byte encoding: entity bytes,
// attribute bytes, then the value's encoding, each preceded by its length
// as a 4-byte big-endian prefix (see encodeTriple).
func (k EAVKey) Encode() []byte {
	return encodeTriple(k.Of[:], k.The.Encode(), k.Is.Encode())
}

// Encode returns the AEVKey's canonical byte encoding.
func (k AEVKey) Encode() []byte {
	return encodeTriple(k.The.Encode(), k.Of[:], k.Is.Encode())
}

// Encode returns the AVEKey's canonical byte encoding.
func (k AVEKey) Encode() []byte {
	return encodeTriple(k.The.Encode(), k.Is.Encode(), k.Of[:])
}

// AEVPrefix returns the byte prefix shared by every AEVKey for a given
// (the, of) pair, regardless of Is. Because encodeTriple length-prefixes
// each component before appending it, this prefix cannot be confused with
// one for a different (the, of) pair: callers use it to range-scan "every
// value this entity has for this attribute" without constructing bounds
// on Value's own encoding.
func AEVPrefix(the Attribute, of Entity) []byte {
	return Prefix(the.Encode(), of[:])
}

// Prefix returns the length-prefixed concatenation of the given leading
// key components, usable as a StreamRange lower bound for any of the
// three orderings that share that leading-component sequence (e.g. AEV
// and AVE both start with the attribute's bytes). An empty or nil argument
// list returns an empty prefix, matching an unbounded scan.
func Prefix(components ...[]byte) []byte {
	var out []byte
	for _, c := range components {
		out = appendLengthPrefixed(out, c)
	}
	return out
}

// encodeTriple length-prefixes each component with a big-endian uint32 so
// the concatenation sorts component-wise: no component's bytes can be
// mistaken for a length field or bleed into its neighbor.
func encodeTriple(a, b, c []byte) []byte {
	out := make([]byte, 0, 12+len(a)+len(b)+len(c))
	out = appendLengthPrefixed(out, a)
	out = appendLengthPrefixed(out, b)
	out = appendLengthPrefixed(out, c)
	return out
}

func appendLengthPrefixed(out, b []byte) []byte {
	n := len(b)
	out = append(out, byte(n>>24), byte(n>>16), byte(n>>8), byte(n))
	return append(out, b...)
}

// decodeTriple reverses encodeTriple, splitting buf back into its three
// length-prefixed components.
func decodeTriple(buf []byte) (a, b, c []byte, err error) {
	a, rest, err := readLengthPrefixed(buf)
	if err != nil {
		return nil, nil, nil, err
	}
	b, rest, err = readLengthPrefixed(rest)
	if err != nil {
		return nil, nil, nil, err
	}
	c, rest, err = readLengthPrefixed(rest)
	if err != nil {
		return nil, nil, nil, err
	}
	if len(rest) != 0 {
		return nil, nil, nil, fmt.Errorf("dialog: model: trailing bytes after decoding key triple")
	}
	return a, b, c, nil
}

func readLengthPrefixed(buf []byte) (value, rest []byte, err error) {
	if len(buf) < 4 {
		return nil, nil, fmt.Errorf("dialog: model: truncated length prefix")
	}
	n := int(uint32(buf[0])<<24 | uint32(buf[1])<<16 | uint32(buf[2])<<8 | uint32(buf[3]))
	buf = buf[4:]
	if n < 0 || n > len(buf) {
		return nil, nil, fmt.Errorf("dialog: model: length prefix %d exceeds remaining buffer", n)
	}
	return buf[:n], buf[n:], nil
}

// DecodeEAVKey reverses EAVKey.Encode.
func DecodeEAVKey(buf []byte) (EAVKey, error) {
	ofB, theB, isB, err := decodeTriple(buf)
	if err != nil {
		return EAVKey{}, err
	}
	of, ok := EntityFromBytes(ofB)
	if !ok {
		return EAVKey{}, fmt.Errorf("dialog: model: decode eav key: bad entity bytes")
	}
	is, err := DecodeValue(isB)
	if err != nil {
		return EAVKey{}, fmt.Errorf("dialog: model: decode eav key: %w", err)
	}
	return EAVKey{Of: of, The: Attribute(theB), Is: is}, nil
}

// DecodeAEVKey reverses AEVKey.Encode.
func DecodeAEVKey(buf []byte) (AEVKey, error) {
	theB, ofB, isB, err := decodeTriple(buf)
	if err != nil {
		return AEVKey{}, err
	}
	of, ok := EntityFromBytes(ofB)
	if !ok {
		return AEVKey{}, fmt.Errorf("dialog: model: decode aev key: bad entity bytes")
	}
	is, err := DecodeValue(isB)
	if err != nil {
		return AEVKey{}, fmt.Errorf("dialog: model: decode aev key: %w", err)
	}
	return AEVKey{The: Attribute(theB), Of: of, Is: is}, nil
}

// DecodeAVEKey reverses AVEKey.Encode.
func DecodeAVEKey(buf []byte) (AVEKey, error) {
	theB, isB, ofB, err := decodeTriple(buf)
	if err != nil {
		return AVEKey{}, err
	}
	of, ok := EntityFromBytes(ofB)
	if !ok {
		return AVEKey{}, fmt.Errorf("dialog: model: decode ave key: bad entity bytes")
	}
	is, err := DecodeValue(isB)
	if err != nil {
		return AVEKey{}, fmt.Errorf("dialog: model: decode ave key: %w", err)
	}
	return AVEKey{The: Attribute(theB), Is: is, Of: of}, nil
}

// CompareEAVKeys gives the total order used by the EAV index, with a
// deterministic tie-break on the full encoded tuple when two keys are
// otherwise equal (which cannot happen for distinct facts, since Of/The/Is
// together are part of the key, but guards against encoding bugs).
func CompareEAVKeys(a, b EAVKey) int {
	if c := a.Of.Compare(b.Of); c != 0 {
		return c
	}
	if c := a.The.Compare(b.The); c != 0 {
		return c
	}
	return CompareValues(a.Is, b.Is)
}

// CompareAEVKeys gives the total order used by the AEV index.
func CompareAEVKeys(a, b AEVKey) int {
	if c := a.The.Compare(b.The); c != 0 {
		return c
	}
	if c := a.Of.Compare(b.Of); c != 0 {
		return c
	}
	return CompareValues(a.Is, b.Is)
}

// CompareAVEKeys gives the total order used by the AVE index.
func CompareAVEKeys(a, b AVEKey) int {
	if c := a.The.Compare(b.The); c != 0 {
		return c
	}
	if c := CompareValues(a.Is, b.Is); c != 0 {
		return c
	}
	return a.Of.Compare(b.Of)
}

// compareEncoded is a fallback used when only the encoded form of a key is
// available (e.g. a raw tree key read back from storage).
func compareEncoded(a, b []byte) int {
	return bytes.Compare(a, b)
}
