// Package rate implements the fixed-window request limiter.
//
// # Paths
//
//   - login: CheckLogin reserves one unit per attempt before the secret is
//     checked, so parallel attempts cannot overshoot the limit. With
//     SkipSuccessful the caller hands the unit back via RefundLogin once the
//     login succeeds, leaving only failures counted.
//   - general: every request consumes budget via Allow.
//
// # Backends
//
// [RedisCounter] runs INCR and the window expiry in one Lua script, so counters
// are shared across processes and a key never outlives its window. [MemoryCounter] wraps ulule/limiter's
// in-process store for single-instance deployments and tests.
//
// Rate limiting is independent of account lockout. Nothing here reads or writes
// lockout state.
package rate
