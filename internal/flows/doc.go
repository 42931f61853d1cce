// Package flows contains the orchestration logic behind every Engine
// operation.
//
// Each Run function takes a dependency struct and returns a result value
// carrying a failure kind instead of a host error. The root package maps
// kinds onto its public errors, metrics and audit events, so flows stay free
// of presentation concerns and can be tested with in-memory dependencies.
//
// This package must not hold state between calls or import the root package.
package flows
