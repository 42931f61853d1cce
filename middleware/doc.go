// Package middleware adapts an Engine to net/http.
//
// [Guard] reads a bearer token, calls Engine.VerifyAccess and stores the
// identity in the request context. [RateLimit] charges each request to the
// general rate window. [ClientContext] records the client IP and
// User-Agent so that login rate keys and audit events see them.
//
// All decisions are made by the Engine; this package only translates
// HTTP in and out. [StatusCode] maps engine errors to HTTP status codes.
package middleware
