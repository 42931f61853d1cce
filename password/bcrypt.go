package password

import (
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

const (
	// DefaultBcryptCost is the work factor used when none is configured.
	DefaultBcryptCost = 12
	// MinBcryptCost is the lowest accepted work factor.
	MinBcryptCost = 10
	// MaxBcryptCost is the highest accepted work factor.
	MaxBcryptCost = 14

	maxBcryptSecretBytes = 72
)

// Bcrypt hashes secrets with bcrypt at a fixed cost.
type Bcrypt struct {
	cost int
}

// NewBcrypt returns a bcrypt hasher. A zero cost selects [DefaultBcryptCost].
func NewBcrypt(cost int) (*Bcrypt, error) {
	if cost == 0 {
		cost = DefaultBcryptCost
	}
	if cost < MinBcryptCost || cost > MaxBcryptCost {
		return nil, fmt.Errorf("bcrypt cost must be within [%d, %d], got %d", MinBcryptCost, MaxBcryptCost, cost)
	}
	return &Bcrypt{cost: cost}, nil
}

// Cost returns the configured work factor.
func (b *Bcrypt) Cost() int {
	return b.cost
}

// Hash returns a salted bcrypt hash of secret.
func (b *Bcrypt) Hash(secret string) (string, error) {
	if secret == "" {
		return "", fmt.Errorf("%w: empty secret", ErrInvalidInput)
	}
	// bcrypt only reads the first 72 bytes.
	if len(secret) > maxBcryptSecretBytes {
		return "", fmt.Errorf("%w: secret exceeds %d bytes", ErrInvalidInput, maxBcryptSecretBytes)
	}

	out, err := bcrypt.GenerateFromPassword([]byte(secret), b.cost)
	if err != nil {
		if errors.Is(err, bcrypt.ErrPasswordTooLong) {
			return "", fmt.Errorf("%w: %v", ErrInvalidInput, err)
		}
		return "", err
	}
	return string(out), nil
}

// Verify reports whether secret matches hashed. Malformed hashes verify as false.
func (b *Bcrypt) Verify(secret, hashed string) bool {
	if Format(hashed) != AlgorithmBcrypt {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(hashed), []byte(secret)) == nil
}

// NeedsUpgrade reports whether hashed was produced with a lower cost.
func (b *Bcrypt) NeedsUpgrade(hashed string) bool {
	cost, err := bcrypt.Cost([]byte(hashed))
	if err != nil {
		return false
	}
	return cost < b.cost
}
