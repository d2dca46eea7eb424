package storage

import "testing"

func TestEncodeSegmentPassesThroughSafeBytes(t *testing.T) {
	safe := "person.name-v2_final"
	if EncodeSegment(safe) != safe {
		t.Fatalf("safe segment should pass through unchanged, got %q", EncodeSegment(safe))
	}
}

func TestEncodeDecodeSegmentRoundtrip(t *testing.T) {
	unsafe := "dialog/branch:main こんにちは"
	encoded := EncodeSegment(unsafe)
	if encoded == unsafe {
		t.Fatal("segment with unsafe bytes must be rewritten")
	}
	if encoded[0] != '!' {
		t.Fatalf("rewritten segment must be prefixed with '!', got %q", encoded)
	}
	decoded, err := DecodeSegment(encoded)
	if err != nil {
		t.Fatalf("DecodeSegment: %v", err)
	}
	if decoded != unsafe {
		t.Fatalf("roundtrip mismatch: got %q, want %q", decoded, unsafe)
	}
}

func TestEncodeKeyPerSegment(t *testing.T) {
	key := "branch:main/facts"
	encoded := EncodeKey(key)
	parts := 0
	for _, c := range encoded {
		if c == '/' {
			parts++
		}
	}
	if parts != 1 {
		t.Fatalf("expected exactly one '/' separator in %q", encoded)
	}
}
