package signing

import (
	"crypto/ecdsa"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"fmt"

	"github.com/cuemby/dialog/pkg/dialogerr"
)

// Multihash tags for the challenge encoding: 0x12 = sha2-256, 0x20 = 32
// bytes of digest length, per the multihash varint-prefixed format.
const (
	multihashSHA256Code   = 0x12
	multihashSHA256Length = 0x20
)

// ErrChallengeMismatch indicates the client_data_json challenge did not
// match the expected multihash of the payload.
var ErrChallengeMismatch = fmt.Errorf("dialog: signing: webauthn challenge mismatch: %w", dialogerr.ErrInvalidValue)

type clientData struct {
	Type      string `json:"type"`
	Challenge string `json:"challenge"`
	Origin    string `json:"origin"`
}

// VerifyWebAuthn implements the exact 3-step check from spec.md §6:
//  1. parse client_data_json and decode its base64url challenge
//  2. assert challenge == multihash(0x12, 0x20, SHA-256(payload))
//  3. verify the ECDSA-P256 signature over
//     authenticator_data || SHA-256(client_data_json)
func VerifyWebAuthn(pub *ecdsa.PublicKey, payload, clientDataJSON, authenticatorData, signature []byte) error {
	var cd clientData
	if err := json.Unmarshal(clientDataJSON, &cd); err != nil {
		return fmt.Errorf("dialog: signing: parse client_data_json: %w", err)
	}

	challenge, err := base64.RawURLEncoding.DecodeString(cd.Challenge)
	if err != nil {
		return fmt.Errorf("dialog: signing: decode challenge: %w", err)
	}

	expected := expectedChallenge(payload)
	if !bytesEqual(challenge, expected) {
		return ErrChallengeMismatch
	}

	clientDataHash := sha256.Sum256(clientDataJSON)
	signedData := append(append([]byte(nil), authenticatorData...), clientDataHash[:]...)

	verifier := ECDSAP256Verifier{PublicKey: pub}
	if !verifier.Verify(signedData, signature) {
		return fmt.Errorf("dialog: signing: webauthn signature verification failed: %w", dialogerr.ErrAuthorization)
	}
	return nil
}

// expectedChallenge computes multihash(0x12, 0x20, SHA-256(payload)).
func expectedChallenge(payload []byte) []byte {
	digest := sha256.Sum256(payload)
	return append([]byte{multihashSHA256Code, multihashSHA256Length}, digest[:]...)
}

func bytesEqual(a, b []byte) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
