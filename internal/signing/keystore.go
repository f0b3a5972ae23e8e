// Package signing provides keyed-hash signing and verification for evidence
// payloads and issues signed execution tokens. Signatures cover the canonical
// JSON form of the payload, so key-order and whitespace never matter.
package signing

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
	"io"
	"time"

	"golang.org/x/crypto/hkdf"

	"gnce/internal/adra"
)

const secretSize = 32

// KeyStore holds a 256-bit HMAC secret. The secret is generated once per
// instance (or derived from a master secret) and is never serialized.
type KeyStore struct {
	secret []byte
}

// NewKeyStore creates a keystore with a fresh random secret.
func NewKeyStore() (*KeyStore, error) {
	secret := make([]byte, secretSize)
	if _, err := rand.Read(secret); err != nil {
		return nil, fmt.Errorf("generate signing secret: %w", err)
	}
	return &KeyStore{secret: secret}, nil
}

// DeriveKeyStore derives a purpose-bound keystore from a master secret via
// HKDF-SHA256, so one configured secret can back independent signing
// contexts without key reuse.
func DeriveKeyStore(master []byte, purpose string) (*KeyStore, error) {
	if len(master) == 0 {
		return nil, fmt.Errorf("derive signing key: empty master secret")
	}
	secret := make([]byte, secretSize)
	r := hkdf.New(sha256.New, master, nil, []byte(purpose))
	if _, err := io.ReadFull(r, secret); err != nil {
		return nil, fmt.Errorf("derive signing key: %w", err)
	}
	return &KeyStore{secret: secret}, nil
}

// Sign returns the hex HMAC-SHA256 of the payload's canonical JSON.
func (k *KeyStore) Sign(payload any) (string, error) {
	canonical, err := adra.CanonicalJSON(payload)
	if err != nil {
		return "", err
	}
	mac := hmac.New(sha256.New, k.secret)
	mac.Write(canonical)
	return hex.EncodeToString(mac.Sum(nil)), nil
}

// Verify recomputes the signature and compares in constant time. It reports
// a boolean and never fails: verification routinely runs against untrusted
// or historical data, and an unparseable payload is simply not authentic.
func (k *KeyStore) Verify(payload any, signature string) bool {
	expected, err := k.Sign(payload)
	if err != nil {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(expected), []byte(signature)) == 1
}

// SignToken returns a copy of the token with signed_at and signature
// attached. The signature covers the token including signed_at; the input is
// never mutated.
func (k *KeyStore) SignToken(token map[string]any) (map[string]any, error) {
	signed := make(map[string]any, len(token)+2)
	for key, v := range token {
		signed[key] = v
	}
	signed["signed_at"] = time.Now().UTC().Format(time.RFC3339Nano)

	sig, err := k.Sign(signed)
	if err != nil {
		return nil, err
	}
	signed["signature"] = sig
	return signed, nil
}

// VerifyToken checks a token produced by SignToken.
func (k *KeyStore) VerifyToken(token map[string]any) bool {
	sig, ok := token["signature"].(string)
	if !ok {
		return false
	}
	unsigned := make(map[string]any, len(token))
	for key, v := range token {
		if key == "signature" {
			continue
		}
		unsigned[key] = v
	}
	return k.Verify(unsigned, sig)
}
