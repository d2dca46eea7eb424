package storage

import (
	"strings"

	"github.com/cuemby/dialog/pkg/dialoghash"
)

// safeSegmentChars are the bytes a path segment may contain unrewritten,
// chosen to be both a valid bbolt bucket key and a valid S3 object key
// segment without percent-encoding.
func isSafeSegmentByte(b byte) bool {
	switch {
	case b >= 'A' && b <= 'Z', b >= 'a' && b <= 'z', b >= '0' && b <= '9':
		return true
	case b == '.' || b == '_' || b == '-':
		return true
	default:
		return false
	}
}

// EncodeSegment rewrites a single path segment so it is safe to use as a
// bbolt key or an S3 object key segment: if every byte is already in
// [A-Za-z0-9._-], the segment passes through unchanged; otherwise it is
// replaced by "!" + base58(segment), so the rewriting is unambiguous (a
// literal leading "!" never occurs in an unrewritten segment because "!"
// itself is outside the safe set).
func EncodeSegment(segment string) string {
	for i := 0; i < len(segment); i++ {
		if !isSafeSegmentByte(segment[i]) {
			return "!" + dialoghash.EncodeBase58([]byte(segment))
		}
	}
	return segment
}

// DecodeSegment reverses EncodeSegment.
func DecodeSegment(encoded string) (string, error) {
	if !strings.HasPrefix(encoded, "!") {
		return encoded, nil
	}
	b, err := dialoghash.DecodeBase58(encoded[1:])
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// EncodeKey rewrites every '/'-delimited segment of a logical key with
// EncodeSegment, joining the result back with '/'. This is the on-disk /
// on-S3 object key for a given logical storage key.
func EncodeKey(key string) string {
	parts := strings.Split(key, "/")
	for i, p := range parts {
		parts[i] = EncodeSegment(p)
	}
	return strings.Join(parts, "/")
}
