// Package signing implements the store's signature contract: varsig
// envelopes over Ed25519/ECDSA-P256/RSA, WebAuthn assertion verification,
// and did:key parsing/formatting. Capability invocation proofs use these
// primitives; UCAN encoding itself is out of scope (spec.md §1 Non-goals).
package signing

import (
	"crypto"
	"crypto/ecdsa"
	"crypto/ed25519"
	"crypto/elliptic"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/x509"
	"encoding/binary"
	"fmt"
	"math/big"

	"github.com/cuemby/dialog/pkg/dialogerr"
)

// Algorithm tags a varsig envelope's signing algorithm.
type Algorithm byte

const (
	AlgorithmEd25519 Algorithm = iota
	AlgorithmECDSAP256
	AlgorithmRSA2048
	AlgorithmRSA4096
)

// Key sizes grounded on the teacher's certificate-authority constants
// (pkg/security/ca.go): 4096 bits for long-lived authorities, 2048 bits
// for short-lived delegates.
const (
	RSAKeySizeLong  = 4096
	RSAKeySizeShort = 2048
)

const varsigHeader = 0x34

// varsigCodecTag is the trailing codec tag identifying the payload's
// encoding; Dialog payloads are always DAG-CBOR.
const varsigCodecTag = 0x71

// Envelope is a parsed varsig header plus the raw signature bytes that
// follow it.
type Envelope struct {
	Algorithm Algorithm
	Signature []byte
}

// Encode produces the varsig byte form: 0x34 0x01 <algo-tag> <codec-tag>
// <signature bytes>, with the header and tags varint-encoded per
// encoding/binary's uvarint format.
func (e Envelope) Encode() []byte {
	buf := make([]byte, 0, 4+len(e.Signature))
	buf = appendUvarint(buf, varsigHeader)
	buf = appendUvarint(buf, 0x01)
	buf = appendUvarint(buf, uint64(e.Algorithm))
	buf = appendUvarint(buf, varsigCodecTag)
	buf = append(buf, e.Signature...)
	return buf
}

// DecodeEnvelope parses a varsig byte form produced by Encode.
func DecodeEnvelope(b []byte) (Envelope, error) {
	header, n := binary.Uvarint(b)
	if n <= 0 || header != varsigHeader {
		return Envelope{}, fmt.Errorf("dialog: signing: bad varsig header: %w", dialogerr.ErrInvalidValue)
	}
	b = b[n:]

	version, n := binary.Uvarint(b)
	if n <= 0 || version != 0x01 {
		return Envelope{}, fmt.Errorf("dialog: signing: bad varsig version: %w", dialogerr.ErrInvalidValue)
	}
	b = b[n:]

	algo, n := binary.Uvarint(b)
	if n <= 0 {
		return Envelope{}, fmt.Errorf("dialog: signing: bad varsig algorithm tag: %w", dialogerr.ErrInvalidValue)
	}
	b = b[n:]

	codec, n := binary.Uvarint(b)
	if n <= 0 || codec != varsigCodecTag {
		return Envelope{}, fmt.Errorf("dialog: signing: bad varsig codec tag: %w", dialogerr.ErrInvalidValue)
	}
	b = b[n:]

	return Envelope{Algorithm: Algorithm(algo), Signature: append([]byte(nil), b...)}, nil
}

func appendUvarint(buf []byte, v uint64) []byte {
	var tmp [binary.MaxVarintLen64]byte
	n := binary.PutUvarint(tmp[:], v)
	return append(buf, tmp[:n]...)
}

// Verifier checks a signature over payload. It returns only success or
// failure; there is no further contract (spec.md §6).
type Verifier interface {
	Verify(payload, signature []byte) bool
}

// Ed25519Verifier verifies an Ed25519 signature.
type Ed25519Verifier struct {
	PublicKey ed25519.PublicKey
}

func (v Ed25519Verifier) Verify(payload, signature []byte) bool {
	return ed25519.Verify(v.PublicKey, payload, signature)
}

// ECDSAP256Verifier verifies an ECDSA signature over the P-256 curve,
// given signature as a raw (r||s) pair with each half padded to the curve
// byte width.
type ECDSAP256Verifier struct {
	PublicKey *ecdsa.PublicKey
}

func (v ECDSAP256Verifier) Verify(payload, signature []byte) bool {
	byteLen := (elliptic.P256().Params().BitSize + 7) / 8
	if len(signature) != 2*byteLen {
		return false
	}
	r := new(big.Int).SetBytes(signature[:byteLen])
	s := new(big.Int).SetBytes(signature[byteLen:])
	digest := sha256.Sum256(payload)
	return ecdsa.Verify(v.PublicKey, digest[:], r, s)
}

// RSAPKCS1v15Verifier verifies an RSA PKCS#1 v1.5 signature over the
// SHA-256 digest of payload. Accepts both 2048- and 4096-bit keys per
// spec.md §6; the key's own size is whatever PublicKey carries.
type RSAPKCS1v15Verifier struct {
	PublicKey *rsa.PublicKey
}

func (v RSAPKCS1v15Verifier) Verify(payload, signature []byte) bool {
	digest := sha256.Sum256(payload)
	return rsa.VerifyPKCS1v15(v.PublicKey, crypto.SHA256, digest[:], signature) == nil
}

// ParseRSAPublicKey parses a DER-encoded PKIX RSA public key, validating
// its size is one of the two supported in the core (2048 or 4096 bits).
func ParseRSAPublicKey(der []byte) (*rsa.PublicKey, error) {
	pub, err := x509.ParsePKIXPublicKey(der)
	if err != nil {
		return nil, fmt.Errorf("dialog: signing: parse rsa public key: %w", err)
	}
	rsaPub, ok := pub.(*rsa.PublicKey)
	if !ok {
		return nil, fmt.Errorf("dialog: signing: not an rsa public key: %w", dialogerr.ErrInvalidValue)
	}
	bits := rsaPub.N.BitLen()
	if bits != RSAKeySizeShort && bits != RSAKeySizeLong {
		return nil, fmt.Errorf("dialog: signing: unsupported rsa key size %d: %w", bits, dialogerr.ErrInvalidValue)
	}
	return rsaPub, nil
}
