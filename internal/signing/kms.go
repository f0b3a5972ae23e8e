package signing

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
)

// RemoteSigner is the contract for external key-management backends. The
// capability flag is checked once at construction time, so call sites never
// branch on backend availability.
type RemoteSigner interface {
	Enabled() bool
	Sign(ctx context.Context, payload []byte) ([]byte, error)
}

// Disabled returns a RemoteSigner that reports itself unavailable. Used when
// no KMS backend is configured.
func Disabled() RemoteSigner { return disabledSigner{} }

type disabledSigner struct{}

func (disabledSigner) Enabled() bool { return false }

func (disabledSigner) Sign(context.Context, []byte) ([]byte, error) { return nil, nil }

// FromKeyStore adapts a KeyStore to the RemoteSigner contract, signing raw
// bytes with the store's HMAC secret.
func FromKeyStore(k *KeyStore) RemoteSigner { return keySigner{k} }

type keySigner struct {
	k *KeyStore
}

func (s keySigner) Enabled() bool { return true }

func (s keySigner) Sign(_ context.Context, payload []byte) ([]byte, error) {
	mac := hmac.New(sha256.New, s.k.secret)
	mac.Write(payload)
	return mac.Sum(nil), nil
}
