// Package lockout maps a failed-attempt count to a lock duration.
//
// The mapping is a pure, monotonic step function over a tier table. It never
// clears a lock: a zero duration means "do not lock now". Counters and lock
// records live in the session store; this package only decides.
package lockout
