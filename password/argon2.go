package password

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"golang.org/x/crypto/argon2"
)

const (
	minMemoryKB    uint32 = 8 * 1024
	minTimeCost    uint32 = 1
	minParallelism uint8  = 1
	minSaltLength  uint32 = 16
	minKeyLength   uint32 = 16
)

var errMalformedPHC = errors.New("malformed argon2id hash")

// Argon2Config holds argon2id cost parameters.
type Argon2Config struct {
	Memory      uint32
	Time        uint32
	Parallelism uint8
	SaltLength  uint32
	KeyLength   uint32
}

// DefaultArgon2Config returns the parameters used when argon2id is selected without tuning.
func DefaultArgon2Config() Argon2Config {
	return Argon2Config{
		Memory:      64 * 1024,
		Time:        3,
		Parallelism: 2,
		SaltLength:  16,
		KeyLength:   32,
	}
}

// Argon2 hashes secrets with argon2id and encodes them in PHC format.
type Argon2 struct {
	config Argon2Config
}

type phcHash struct {
	memory      uint32
	time        uint32
	parallelism uint8
	salt        []byte
	key         []byte
}

// NewArgon2 validates cfg and returns a hasher.
func NewArgon2(cfg Argon2Config) (*Argon2, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &Argon2{config: cfg}, nil
}

// Hash returns a PHC-encoded argon2id hash of secret.
func (a *Argon2) Hash(secret string) (string, error) {
	if secret == "" {
		return "", fmt.Errorf("%w: empty secret", ErrInvalidInput)
	}

	salt := make([]byte, a.config.SaltLength)
	if _, err := io.ReadFull(rand.Reader, salt); err != nil {
		return "", err
	}

	key := argon2.IDKey([]byte(secret), salt, a.config.Time, a.config.Memory, a.config.Parallelism, a.config.KeyLength)

	return fmt.Sprintf(
		"$%s$v=%d$m=%d,t=%d,p=%d$%s$%s",
		AlgorithmArgon2id,
		argon2.Version,
		a.config.Memory,
		a.config.Time,
		a.config.Parallelism,
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(key),
	), nil
}

// Verify reports whether secret matches the PHC hash. Malformed input verifies as false.
func (a *Argon2) Verify(secret, hashed string) bool {
	parsed, err := parsePHC(hashed)
	if err != nil {
		return false
	}

	computed := argon2.IDKey([]byte(secret), parsed.salt, parsed.time, parsed.memory, parsed.parallelism, uint32(len(parsed.key)))
	return subtle.ConstantTimeCompare(computed, parsed.key) == 1
}

// NeedsUpgrade reports whether hashed used weaker parameters than the current config.
func (a *Argon2) NeedsUpgrade(hashed string) bool {
	parsed, err := parsePHC(hashed)
	if err != nil {
		return false
	}

	return a.config.Memory > parsed.memory ||
		a.config.Time > parsed.time ||
		a.config.Parallelism > parsed.parallelism ||
		a.config.KeyLength != uint32(len(parsed.key))
}

func parsePHC(encoded string) (*phcHash, error) {
	parts := strings.Split(encoded, "$")
	if len(parts) != 6 || parts[0] != "" || parts[1] != AlgorithmArgon2id {
		return nil, errMalformedPHC
	}

	version, err := strconv.Atoi(strings.TrimPrefix(parts[2], "v="))
	if err != nil || !strings.HasPrefix(parts[2], "v=") || version != argon2.Version {
		return nil, errMalformedPHC
	}

	out := &phcHash{}
	if err := out.parseParams(parts[3]); err != nil {
		return nil, err
	}

	out.salt, err = decodeSegment(parts[4])
	if err != nil || len(out.salt) < int(minSaltLength) {
		return nil, errMalformedPHC
	}
	out.key, err = decodeSegment(parts[5])
	if err != nil || len(out.key) == 0 {
		return nil, errMalformedPHC
	}

	return out, nil
}

// decodeSegment accepts padded and unpadded base64, both appear in the wild.
func decodeSegment(s string) ([]byte, error) {
	if strings.HasSuffix(s, "=") {
		return base64.StdEncoding.DecodeString(s)
	}
	return base64.RawStdEncoding.DecodeString(s)
}

func (h *phcHash) parseParams(part string) error {
	pairs := strings.Split(part, ",")
	if len(pairs) != 3 {
		return errMalformedPHC
	}

	var seen int
	for _, pair := range pairs {
		key, value, ok := strings.Cut(pair, "=")
		if !ok {
			return errMalformedPHC
		}

		switch key {
		case "m":
			v, err := strconv.ParseUint(value, 10, 32)
			if err != nil || v < uint64(minMemoryKB) {
				return errMalformedPHC
			}
			h.memory = uint32(v)
		case "t":
			v, err := strconv.ParseUint(value, 10, 32)
			if err != nil || v < uint64(minTimeCost) {
				return errMalformedPHC
			}
			h.time = uint32(v)
		case "p":
			v, err := strconv.ParseUint(value, 10, 8)
			if err != nil || v < uint64(minParallelism) {
				return errMalformedPHC
			}
			h.parallelism = uint8(v)
		default:
			return errMalformedPHC
		}
		seen++
	}

	if seen != 3 || h.memory == 0 || h.time == 0 || h.parallelism == 0 {
		return errMalformedPHC
	}
	return nil
}

func (cfg Argon2Config) validate() error {
	switch {
	case cfg.Memory < minMemoryKB:
		return fmt.Errorf("argon2 memory must be >= %d KB", minMemoryKB)
	case cfg.Time < minTimeCost:
		return errors.New("argon2 time must be >= 1")
	case cfg.Parallelism < minParallelism:
		return errors.New("argon2 parallelism must be >= 1")
	case cfg.SaltLength < minSaltLength:
		return fmt.Errorf("argon2 salt length must be >= %d", minSaltLength)
	case cfg.KeyLength < minKeyLength:
		return fmt.Errorf("argon2 key length must be >= %d", minKeyLength)
	}
	return nil
}
