package password

import (
	"fmt"
	"regexp"

	validation "github.com/go-ozzo/ozzo-validation"
)

// Policy decides whether a plaintext secret is acceptable for storage.
type Policy interface {
	Validate(secret string) error
}

// PolicyFunc adapts a function to [Policy].
type PolicyFunc func(secret string) error

// Validate calls f(secret).
func (f PolicyFunc) Validate(secret string) error {
	return f(secret)
}

var (
	upperRE = regexp.MustCompile(`[A-Z]`)
	lowerRE = regexp.MustCompile(`[a-z]`)
	digitRE = regexp.MustCompile(`[0-9]`)
)

// ComplexityPolicy requires a minimum length plus upper, lower and digit characters.
type ComplexityPolicy struct {
	MinLength int
	MaxLength int
}

// DefaultPolicy returns the standard complexity policy (8 to 72 bytes).
func DefaultPolicy() ComplexityPolicy {
	return ComplexityPolicy{MinLength: 8, MaxLength: maxBcryptSecretBytes}
}

// Validate returns an error wrapping [ErrPolicyViolation] when secret is rejected.
func (p ComplexityPolicy) Validate(secret string) error {
	err := validation.Validate(secret,
		validation.Required.Error("secret is required"),
		validation.Length(p.MinLength, p.MaxLength).Error(
			fmt.Sprintf("secret must be between %d and %d characters", p.MinLength, p.MaxLength),
		),
		validation.Match(upperRE).Error("secret must contain an uppercase letter"),
		validation.Match(lowerRE).Error("secret must contain a lowercase letter"),
		validation.Match(digitRE).Error("secret must contain a digit"),
	)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrPolicyViolation, err)
	}
	return nil
}
