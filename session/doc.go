// Package session persists refresh-token liveness and per-identity lockout
// state.
//
// # Store contract
//
// [Store] has nine operations. Every delete or reset is idempotent on a
// missing key. [Store.IncrementFailedAttempts] is atomic at the backend: two
// concurrent calls for one identity return two distinct sequential counts.
// Refresh tokens are keyed by the SHA-256 of the token value, so raw tokens
// are never written to the backend.
//
// Implementations:
//
//   - [MemoryStore]: single-process, injectable clock.
//   - [RedisStore]: go-redis UniversalClient, Lua for multi-key operations.
//   - [PostgresStore]: pgx pool, row-level upserts.
//
// Backend failures wrap [ErrStoreUnavailable].
//
// # What this package must NOT do
//
//   - Parse or verify tokens.
//   - Decide lock durations (see package lockout).
//   - Hold an in-process lock across a network call.
package session
