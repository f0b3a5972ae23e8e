package signing

import (
	"fmt"

	"github.com/golang-jwt/jwt/v5"
)

// TokenJWT renders a signed execution token as an HS256 compact JWT so
// transport-layer consumers can verify it with standard tooling. The HMAC
// envelope from SignToken stays the canonical form; this is a projection.
func (k *KeyStore) TokenJWT(token map[string]any) (string, error) {
	claims := jwt.MapClaims{}
	for key, v := range token {
		claims[key] = v
	}
	out, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(k.secret)
	if err != nil {
		return "", fmt.Errorf("sign token jwt: %w", err)
	}
	return out, nil
}

// ParseTokenJWT verifies an HS256 token issued by TokenJWT and returns its
// claims.
func (k *KeyStore) ParseTokenJWT(raw string) (map[string]any, error) {
	claims := jwt.MapClaims{}
	_, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (any, error) {
		return k.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return nil, fmt.Errorf("parse token jwt: %w", err)
	}
	return claims, nil
}
