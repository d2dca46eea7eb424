package dialoghash

import "testing"

func TestSum256Deterministic(t *testing.T) {
	a := Sum256([]byte("hello"))
	b := Sum256([]byte("hello"))
	if a != b {
		t.Fatalf("Sum256 not deterministic: %v != %v", a, b)
	}
	c := Sum256([]byte("world"))
	if a == c {
		t.Fatalf("Sum256 collided on distinct inputs")
	}
}

func TestHashIsZero(t *testing.T) {
	var h Hash
	if !h.IsZero() {
		t.Fatal("zero-value Hash should report IsZero")
	}
	if Sum256(nil).IsZero() {
		t.Fatal("Sum256 of empty input should not be the zero hash")
	}
}

func TestCompareTotalOrder(t *testing.T) {
	a := Sum256([]byte("a"))
	b := Sum256([]byte("b"))
	if Compare(a, a) != 0 {
		t.Fatal("Compare(a, a) should be 0")
	}
	if Compare(a, b) == Compare(b, a) && Compare(a, b) != 0 {
		t.Fatal("Compare should be antisymmetric")
	}
}

func TestHashFromBytesRoundtrip(t *testing.T) {
	h := Sum256([]byte("roundtrip"))
	parsed, ok := HashFromBytes(h.Bytes())
	if !ok {
		t.Fatal("HashFromBytes rejected a valid hash")
	}
	if parsed != h {
		t.Fatalf("roundtrip mismatch: %v != %v", parsed, h)
	}
	if _, ok := HashFromBytes([]byte{1, 2, 3}); ok {
		t.Fatal("HashFromBytes accepted a short buffer")
	}
}

func TestBase58Roundtrip(t *testing.T) {
	payload := []byte{0x00, 0x01, 0xff, 0x7f, 0x80}
	encoded := EncodeBase58(payload)
	decoded, err := DecodeBase58(encoded)
	if err != nil {
		t.Fatalf("DecodeBase58: %v", err)
	}
	if string(decoded) != string(payload) {
		t.Fatalf("base58 roundtrip mismatch: %v != %v", decoded, payload)
	}
}
