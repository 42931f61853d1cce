// Package internal contains helpers private to sessionguard: random secret
// generation and rate-key derivation.
//
// # Sub-packages
//
//   - audit: async event dispatch (Dispatcher + Sink implementations)
//   - flows: flow orchestrators for every Engine operation
//   - rate: fixed-window counters behind the login and general limits
package internal
