package jwt

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Class discriminates access tokens from refresh tokens.
type Class string

const (
	// ClassAccess marks short-lived request credentials.
	ClassAccess Class = "access"
	// ClassRefresh marks long-lived rotation credentials.
	ClassRefresh Class = "refresh"
)

const (
	// DefaultAccessTTL is the access token lifetime when none is configured.
	DefaultAccessTTL = 15 * time.Minute
	// DefaultRefreshTTL is the refresh token lifetime when none is configured.
	DefaultRefreshTTL = 7 * 24 * time.Hour

	minSecretBytes = 16
)

var (
	// ErrSignatureInvalid is returned when the signature does not verify under the class secret.
	ErrSignatureInvalid = errors.New("token signature invalid")
	// ErrMalformed is returned for tokens that cannot be decoded. It also matches ErrSignatureInvalid.
	ErrMalformed = fmt.Errorf("%w: malformed token", ErrSignatureInvalid)
	// ErrExpired is returned when now is at or past the token expiry.
	ErrExpired = errors.New("token expired")
	// ErrTypeMismatch is returned when the embedded class differs from the expected one.
	ErrTypeMismatch = errors.New("token type mismatch")
	// ErrInvalidClaims is returned for missing identity or a foreign issuer.
	ErrInvalidClaims = errors.New("token claims invalid")
)

// Config holds per-class secrets and lifetimes.
type Config struct {
	AccessSecret  []byte
	RefreshSecret []byte
	AccessTTL     time.Duration
	RefreshTTL    time.Duration
	Issuer        string
	Leeway        time.Duration
}

// Claims is the signed payload of both token classes.
type Claims struct {
	Identity string `json:"uid"`
	Class    Class  `json:"type"`
	jwt.RegisteredClaims
}

// Manager issues and verifies tokens.
type Manager struct {
	config Config
}

// NewManager validates cfg. Both secrets are required and must differ.
func NewManager(cfg Config) (*Manager, error) {
	if cfg.AccessTTL == 0 {
		cfg.AccessTTL = DefaultAccessTTL
	}
	if cfg.RefreshTTL == 0 {
		cfg.RefreshTTL = DefaultRefreshTTL
	}
	if cfg.AccessTTL < 0 || cfg.RefreshTTL < 0 {
		return nil, errors.New("invalid TTL configuration")
	}
	if cfg.Leeway < 0 || cfg.Leeway > 2*time.Minute {
		return nil, errors.New("invalid leeway configuration")
	}
	if len(cfg.AccessSecret) < minSecretBytes || len(cfg.RefreshSecret) < minSecretBytes {
		return nil, fmt.Errorf("signing secrets must be at least %d bytes", minSecretBytes)
	}
	if string(cfg.AccessSecret) == string(cfg.RefreshSecret) {
		return nil, errors.New("access and refresh secrets must differ")
	}

	return &Manager{config: cfg}, nil
}

// TTL returns the configured lifetime of class.
func (m *Manager) TTL(class Class) time.Duration {
	if class == ClassRefresh {
		return m.config.RefreshTTL
	}
	return m.config.AccessTTL
}

// Issue signs a token of class for identity, valid from now for TTL(class).
// Token times have whole-second precision, so the expiry is rounded up to the
// next second and the token is never rejected before now+TTL.
func (m *Manager) Issue(identity string, class Class, now time.Time) (string, *Claims, error) {
	if identity == "" {
		return "", nil, fmt.Errorf("%w: empty identity", ErrInvalidClaims)
	}
	key, err := m.secret(class)
	if err != nil {
		return "", nil, err
	}

	claims := &Claims{
		Identity: identity,
		Class:    class,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   identity,
			Issuer:    m.config.Issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(ceilSecond(now.Add(m.TTL(class)))),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(key)
	if err != nil {
		return "", nil, err
	}
	return signed, claims, nil
}

func ceilSecond(t time.Time) time.Time {
	floor := t.Truncate(time.Second)
	if floor.Before(t) {
		return floor.Add(time.Second)
	}
	return floor
}

// Verify checks token against the secret of expected and returns its claims.
func (m *Manager) Verify(token string, expected Class, now time.Time) (*Claims, error) {
	key, err := m.secret(expected)
	if err != nil {
		return nil, err
	}

	options := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(func() time.Time { return now }),
	}
	if m.config.Leeway > 0 {
		options = append(options, jwt.WithLeeway(m.config.Leeway))
	}
	if m.config.Issuer != "" {
		options = append(options, jwt.WithIssuer(m.config.Issuer))
	}

	claims := &Claims{}
	_, err = jwt.NewParser(options...).ParseWithClaims(token, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return key, nil
	})
	if err != nil {
		return nil, classify(err)
	}

	if claims.Class != expected {
		return nil, ErrTypeMismatch
	}
	if claims.Identity == "" {
		return nil, fmt.Errorf("%w: missing identity", ErrInvalidClaims)
	}
	return claims, nil
}

func (m *Manager) secret(class Class) ([]byte, error) {
	switch class {
	case ClassAccess:
		return m.config.AccessSecret, nil
	case ClassRefresh:
		return m.config.RefreshSecret, nil
	default:
		return nil, fmt.Errorf("unknown token class %q", class)
	}
}

// classify maps parser errors onto this package's sentinels. Signature
// failures are reported before claim failures by the parser.
func classify(err error) error {
	switch {
	case errors.Is(err, jwt.ErrTokenMalformed):
		return ErrMalformed
	case errors.Is(err, jwt.ErrTokenSignatureInvalid), errors.Is(err, jwt.ErrTokenUnverifiable):
		return ErrSignatureInvalid
	case errors.Is(err, jwt.ErrTokenExpired):
		return ErrExpired
	default:
		return fmt.Errorf("%w: %v", ErrInvalidClaims, err)
	}
}
