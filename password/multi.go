package password

import "fmt"

// Config selects the primary algorithm and its parameters.
type Config struct {
	Algorithm  string
	BcryptCost int
	Argon2     Argon2Config
}

// Multi hashes with a primary algorithm and verifies every known format.
type Multi struct {
	primary string
	bcrypt  *Bcrypt
	argon2  *Argon2
}

// New builds a [Multi] from cfg. An empty algorithm selects bcrypt.
func New(cfg Config) (*Multi, error) {
	algorithm := cfg.Algorithm
	if algorithm == "" {
		algorithm = AlgorithmBcrypt
	}
	if algorithm != AlgorithmBcrypt && algorithm != AlgorithmArgon2id {
		return nil, fmt.Errorf("%w: %q", ErrUnknownAlgorithm, cfg.Algorithm)
	}

	b, err := NewBcrypt(cfg.BcryptCost)
	if err != nil {
		return nil, err
	}

	argonCfg := cfg.Argon2
	if argonCfg == (Argon2Config{}) {
		argonCfg = DefaultArgon2Config()
	}
	a, err := NewArgon2(argonCfg)
	if err != nil {
		return nil, err
	}

	return &Multi{primary: algorithm, bcrypt: b, argon2: a}, nil
}

// Algorithm returns the primary algorithm name.
func (m *Multi) Algorithm() string {
	return m.primary
}

// Hash hashes with the primary algorithm.
func (m *Multi) Hash(secret string) (string, error) {
	if m.primary == AlgorithmArgon2id {
		return m.argon2.Hash(secret)
	}
	return m.bcrypt.Hash(secret)
}

// Verify dispatches on the hash prefix.
func (m *Multi) Verify(secret, hashed string) bool {
	switch Format(hashed) {
	case AlgorithmBcrypt:
		return m.bcrypt.Verify(secret, hashed)
	case AlgorithmArgon2id:
		return m.argon2.Verify(secret, hashed)
	default:
		return false
	}
}

// NeedsRehash reports whether hashed should be replaced with a fresh primary hash.
func (m *Multi) NeedsRehash(hashed string) bool {
	format := Format(hashed)
	if format == "" {
		return false
	}
	if format != m.primary {
		return true
	}
	if format == AlgorithmArgon2id {
		return m.argon2.NeedsUpgrade(hashed)
	}
	return m.bcrypt.NeedsUpgrade(hashed)
}
