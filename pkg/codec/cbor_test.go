package codec

import "testing"

type publicationFixture struct {
	EAV []byte `cbor:"eav"`
	AEV []byte `cbor:"aev"`
	AVE []byte `cbor:"ave"`
}

func TestMarshalCBORDeterministic(t *testing.T) {
	v := publicationFixture{EAV: []byte{1}, AEV: []byte{2}, AVE: []byte{3}}
	a, err := MarshalCBOR(v)
	if err != nil {
		t.Fatalf("MarshalCBOR: %v", err)
	}
	b, err := MarshalCBOR(v)
	if err != nil {
		t.Fatalf("MarshalCBOR: %v", err)
	}
	if string(a) != string(b) {
		t.Fatal("identical values must encode to identical bytes")
	}
}

func TestMarshalUnmarshalCBORRoundtrip(t *testing.T) {
	v := publicationFixture{EAV: []byte{9, 9}, AEV: []byte{8}, AVE: []byte{7, 7, 7}}
	b, err := MarshalCBOR(v)
	if err != nil {
		t.Fatalf("MarshalCBOR: %v", err)
	}
	var got publicationFixture
	if err := UnmarshalCBOR(b, &got); err != nil {
		t.Fatalf("UnmarshalCBOR: %v", err)
	}
	if string(got.EAV) != string(v.EAV) || string(got.AEV) != string(v.AEV) || string(got.AVE) != string(v.AVE) {
		t.Fatalf("roundtrip mismatch: got %+v, want %+v", got, v)
	}
}

func TestUnmarshalCBORRejectsGarbage(t *testing.T) {
	var v publicationFixture
	if err := UnmarshalCBOR([]byte{0xff, 0xff, 0xff}, &v); err == nil {
		t.Fatal("expected error decoding garbage bytes")
	}
}
