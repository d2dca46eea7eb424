package signing

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"testing"
)

func makeWebAuthnFixture(t *testing.T) (*ecdsa.PrivateKey, []byte, []byte, []byte, []byte) {
	t.Helper()
	priv, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		t.Fatalf("GenerateKey: %v", err)
	}

	payload := []byte("commit this fact set")
	challenge := expectedChallenge(payload)

	cd := clientData{
		Type:      "webauthn.get",
		Challenge: base64.RawURLEncoding.EncodeToString(challenge),
		Origin:    "https://dialog.example",
	}
	clientDataJSON, err := json.Marshal(cd)
	if err != nil {
		t.Fatalf("marshal client data: %v", err)
	}

	authenticatorData := []byte("authenticator-data-flags-and-counter")
	clientDataHash := sha256.Sum256(clientDataJSON)
	signedData := append(append([]byte(nil), authenticatorData...), clientDataHash[:]...)

	digest := sha256.Sum256(signedData)
	r, s, err := ecdsa.Sign(rand.Reader, priv, digest[:])
	if err != nil {
		t.Fatalf("Sign: %v", err)
	}
	byteLen := (elliptic.P256().Params().BitSize + 7) / 8
	signature := append(padBigInt(r, byteLen), padBigInt(s, byteLen)...)

	return priv, payload, clientDataJSON, authenticatorData, signature
}

func TestVerifyWebAuthnAcceptsValidAssertion(t *testing.T) {
	priv, payload, clientDataJSON, authenticatorData, signature := makeWebAuthnFixture(t)

	err := VerifyWebAuthn(&priv.PublicKey, payload, clientDataJSON, authenticatorData, signature)
	if err != nil {
		t.Fatalf("VerifyWebAuthn: %v", err)
	}
}

func TestVerifyWebAuthnRejectsTamperedAuthenticatorData(t *testing.T) {
	priv, payload, clientDataJSON, authenticatorData, signature := makeWebAuthnFixture(t)
	tampered := append([]byte(nil), authenticatorData...)
	tampered[0] ^= 0xff

	if err := VerifyWebAuthn(&priv.PublicKey, payload, clientDataJSON, tampered, signature); err == nil {
		t.Fatal("expected tampered authenticator_data to fail verification")
	}
}

func TestVerifyWebAuthnRejectsTamperedClientData(t *testing.T) {
	priv, payload, clientDataJSON, authenticatorData, signature := makeWebAuthnFixture(t)
	tampered := append([]byte(nil), clientDataJSON...)
	tampered[len(tampered)-1] ^= 0xff

	if err := VerifyWebAuthn(&priv.PublicKey, payload, tampered, authenticatorData, signature); err == nil {
		t.Fatal("expected tampered client_data_json to fail verification")
	}
}

func TestVerifyWebAuthnRejectsTamperedSignature(t *testing.T) {
	priv, payload, clientDataJSON, authenticatorData, signature := makeWebAuthnFixture(t)
	tampered := append([]byte(nil), signature...)
	tampered[0] ^= 0xff

	if err := VerifyWebAuthn(&priv.PublicKey, payload, clientDataJSON, authenticatorData, tampered); err == nil {
		t.Fatal("expected tampered signature to fail verification")
	}
}

func TestVerifyWebAuthnRejectsChallengeMismatch(t *testing.T) {
	priv, _, clientDataJSON, authenticatorData, signature := makeWebAuthnFixture(t)

	err := VerifyWebAuthn(&priv.PublicKey, []byte("a different payload"), clientDataJSON, authenticatorData, signature)
	if err == nil {
		t.Fatal("expected a mismatched payload to fail the challenge check")
	}
}
