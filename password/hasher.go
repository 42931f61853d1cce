package password

import (
	"errors"
	"strings"
)

var (
	// ErrInvalidInput is returned when a secret cannot be hashed (empty or too long).
	ErrInvalidInput = errors.New("invalid input")
	// ErrPolicyViolation wraps secret complexity failures.
	ErrPolicyViolation = errors.New("secret does not satisfy policy")
	// ErrUnknownAlgorithm is returned for an unsupported algorithm name.
	ErrUnknownAlgorithm = errors.New("unknown hash algorithm")
)

// Algorithm names accepted by [New].
const (
	AlgorithmBcrypt   = "bcrypt"
	AlgorithmArgon2id = "argon2id"
)

// Hasher is implemented by every algorithm in this package.
type Hasher interface {
	Hash(secret string) (string, error)
	Verify(secret, hashed string) bool
}

// Format identifies the algorithm that produced hashed, or "" when unknown.
func Format(hashed string) string {
	switch {
	case strings.HasPrefix(hashed, "$2a$"),
		strings.HasPrefix(hashed, "$2b$"),
		strings.HasPrefix(hashed, "$2y$"):
		return AlgorithmBcrypt
	case strings.HasPrefix(hashed, "$"+AlgorithmArgon2id+"$"):
		return AlgorithmArgon2id
	default:
		return ""
	}
}
