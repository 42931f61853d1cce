package internal

import (
	"crypto/rand"
	"encoding/base64"
)

// SigningSecretSize is the length of secrets generated for development mode.
const SigningSecretSize = 32

// NewSigningSecret returns n random bytes.
func NewSigningSecret(n int) ([]byte, error) {
	if n <= 0 {
		n = SigningSecretSize
	}
	secret := make([]byte, n)
	if _, err := rand.Read(secret); err != nil {
		return nil, err
	}
	return secret, nil
}

// NewOpaqueString returns n random bytes encoded as unpadded base64url.
func NewOpaqueString(n int) (string, error) {
	raw, err := NewSigningSecret(n)
	if err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(raw), nil
}
