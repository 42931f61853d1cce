package internal

import (
	"crypto/sha256"
	"encoding/hex"
)

// RateKey picks the login rate-limit key: the explicit client key, then the
// client IP, then the identity. Identities are hashed so that raw account
// names never appear in limiter keys.
func RateKey(clientKey, ip, identity string) string {
	switch {
	case clientKey != "":
		return clientKey
	case ip != "":
		return "ip:" + ip
	default:
		sum := sha256.Sum256([]byte(identity))
		return "id:" + hex.EncodeToString(sum[:16])
	}
}
