package signing

import (
	"crypto/ecdsa"
	"crypto/ed25519"
	"crypto/elliptic"
	"fmt"
	"strings"

	"github.com/cuemby/dialog/pkg/dialogerr"
	"github.com/cuemby/dialog/pkg/dialoghash"
)

// Multicodec prefixes for the two key types the core supports.
var (
	prefixP256    = []byte{0x80, 0x24}
	prefixEd25519 = []byte{0xed, 0x01}
)

const didKeyPrefix = "did:key:z"

// EncodeEd25519DIDKey formats pub as did:key:z<base58(prefix||pub)>.
func EncodeEd25519DIDKey(pub ed25519.PublicKey) string {
	return didKeyPrefix + dialoghash.EncodeBase58(append(append([]byte(nil), prefixEd25519...), pub...))
}

// EncodeP256DIDKey formats pub's compressed point as
// did:key:z<base58(prefix||point)>.
func EncodeP256DIDKey(pub *ecdsa.PublicKey) string {
	point := elliptic.MarshalCompressed(elliptic.P256(), pub.X, pub.Y)
	return didKeyPrefix + dialoghash.EncodeBase58(append(append([]byte(nil), prefixP256...), point...))
}

// DecodeDIDKey parses a did:key URI, returning the multicodec-tagged key
// material and its algorithm.
func DecodeDIDKey(did string) (Algorithm, []byte, error) {
	if !strings.HasPrefix(did, didKeyPrefix) {
		return 0, nil, fmt.Errorf("dialog: signing: not a did:key uri: %w", dialogerr.ErrInvalidValue)
	}
	raw, err := dialoghash.DecodeBase58(strings.TrimPrefix(did, didKeyPrefix))
	if err != nil {
		return 0, nil, fmt.Errorf("dialog: signing: decode did:key: %w", err)
	}
	if len(raw) < 2 {
		return 0, nil, fmt.Errorf("dialog: signing: did:key too short: %w", dialogerr.ErrInvalidValue)
	}

	switch {
	case raw[0] == prefixEd25519[0] && raw[1] == prefixEd25519[1]:
		return AlgorithmEd25519, raw[2:], nil
	case raw[0] == prefixP256[0] && raw[1] == prefixP256[1]:
		return AlgorithmECDSAP256, raw[2:], nil
	default:
		return 0, nil, fmt.Errorf("dialog: signing: unrecognized did:key multicodec prefix: %w", dialogerr.ErrInvalidValue)
	}
}

// DecodeEd25519DIDKey parses an Ed25519 did:key, rejecting any other
// algorithm.
func DecodeEd25519DIDKey(did string) (ed25519.PublicKey, error) {
	algo, key, err := DecodeDIDKey(did)
	if err != nil {
		return nil, err
	}
	if algo != AlgorithmEd25519 {
		return nil, fmt.Errorf("dialog: signing: did:key is not ed25519: %w", dialogerr.ErrInvalidValue)
	}
	if len(key) != ed25519.PublicKeySize {
		return nil, fmt.Errorf("dialog: signing: bad ed25519 key length: %w", dialogerr.ErrInvalidValue)
	}
	return ed25519.PublicKey(key), nil
}

// DecodeP256DIDKey parses a P-256 did:key, rejecting any other algorithm.
func DecodeP256DIDKey(did string) (*ecdsa.PublicKey, error) {
	algo, key, err := DecodeDIDKey(did)
	if err != nil {
		return nil, err
	}
	if algo != AlgorithmECDSAP256 {
		return nil, fmt.Errorf("dialog: signing: did:key is not p-256: %w", dialogerr.ErrInvalidValue)
	}
	x, y := elliptic.UnmarshalCompressed(elliptic.P256(), key)
	if x == nil {
		return nil, fmt.Errorf("dialog: signing: invalid p-256 point: %w", dialogerr.ErrInvalidValue)
	}
	return &ecdsa.PublicKey{Curve: elliptic.P256(), X: x, Y: y}, nil
}
