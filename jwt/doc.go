// Package jwt signs and verifies the two token classes handed to clients.
//
// Access and refresh tokens are HS256 JWTs signed with independent secrets.
// The class is also carried in the "type" claim and checked on verify, so a
// token of one class never validates as the other even if the secrets were
// misconfigured to match.
//
// The package performs no I/O. Liveness of refresh tokens lives in the
// session store.
package jwt
