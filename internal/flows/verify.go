package flows

import (
	"errors"
	"time"

	"github.com/MrEthical07/sessionguard/jwt"
)

type VerifyFailureKind int

const (
	VerifyFailureNone VerifyFailureKind = iota
	VerifyFailureEmpty
	VerifyFailureExpired
	VerifyFailureType
	VerifyFailureSignature
	VerifyFailureClaims
)

// String is the reason recorded in logs and audit. It never reaches callers.
func (k VerifyFailureKind) String() string {
	switch k {
	case VerifyFailureNone:
		return "none"
	case VerifyFailureEmpty:
		return "empty_token"
	case VerifyFailureExpired:
		return "token_expired"
	case VerifyFailureType:
		return "type_mismatch"
	case VerifyFailureSignature:
		return "signature_invalid"
	case VerifyFailureClaims:
		return "invalid_claims"
	default:
		return "unknown"
	}
}

type VerifyDeps struct {
	Now    func() time.Time
	Tokens TokenCodec
}

type VerifyResult struct {
	Identity string
	Failure  VerifyFailureKind
	Err      error
}

// RunVerifyAccess checks an access token. Revocation is not consulted; an
// access token stays valid until it expires.
func RunVerifyAccess(token string, deps VerifyDeps) VerifyResult {
	if token == "" {
		return VerifyResult{Failure: VerifyFailureEmpty}
	}

	claims, err := deps.Tokens.Verify(token, jwt.ClassAccess, nowFunc(deps.Now)())
	if err != nil {
		return VerifyResult{Failure: verifyKind(err), Err: err}
	}
	return VerifyResult{Identity: claims.Identity}
}

func verifyKind(err error) VerifyFailureKind {
	switch {
	case errors.Is(err, jwt.ErrExpired):
		return VerifyFailureExpired
	case errors.Is(err, jwt.ErrTypeMismatch):
		return VerifyFailureType
	case errors.Is(err, jwt.ErrInvalidClaims):
		return VerifyFailureClaims
	default:
		return VerifyFailureSignature
	}
}
