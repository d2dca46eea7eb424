package model

import "testing"

func TestValueEncodeDecodeRoundtrip(t *testing.T) {
	cases := []Value{
		NewBytes([]byte{1, 2, 3}),
		NewBool(true),
		NewBool(false),
		NewString("hello"),
		NewU128(42),
		Value{Tag: TagU128, U128: U128{Lo: 1, Hi: 2}},
		NewI128(-7),
		NewI128(7),
		NewSymbol("person/name"),
		NewRecord([]byte{0xde, 0xad, 0xbe, 0xef}),
	}
	for _, v := range cases {
		enc := v.Encode()
		got, err := DecodeValue(enc)
		if err != nil {
			t.Fatalf("DecodeValue(%v): %v", v, err)
		}
		if !got.Equal(v) {
			t.Fatalf("roundtrip mismatch: got %+v, want %+v", got, v)
		}
	}
}

func TestValueToUTF8Roundtrip(t *testing.T) {
	cases := []Value{
		NewBytes([]byte{9, 9, 9}),
		NewBool(true),
		NewString("a string with spaces"),
		NewU128(1234567890),
		NewI128(-1234567890),
		NewSymbol("dialog/branch"),
		NewFloat64(3.5),
		NewEntity(NewEntityFromSeed([]byte("seed"))),
	}
	for _, v := range cases {
		s := v.ToUTF8()
		got, err := ValueFromUTF8(s)
		if err != nil {
			t.Fatalf("ValueFromUTF8(%q): %v", s, err)
		}
		if !got.Equal(v) {
			t.Fatalf("textual roundtrip mismatch for %q: got %+v, want %+v", s, got, v)
		}
	}
}

func TestValueEqualDistinguishesTag(t *testing.T) {
	a := NewString("1")
	b := NewSymbol("1")
	if a.Equal(b) {
		t.Fatal("values with different tags but same payload must not be equal")
	}
}

func TestCompareValuesTotalOrder(t *testing.T) {
	a := NewU128(1)
	b := NewU128(2)
	if CompareValues(a, a) != 0 {
		t.Fatal("CompareValues(a, a) should be 0")
	}
	if CompareValues(a, b) >= 0 {
		t.Fatal("expected a < b")
	}
	if CompareValues(b, a) <= 0 {
		t.Fatal("expected b > a")
	}
}

func TestDecodeValueRejectsEmpty(t *testing.T) {
	if _, err := DecodeValue(nil); err == nil {
		t.Fatal("expected error decoding empty buffer")
	}
}
