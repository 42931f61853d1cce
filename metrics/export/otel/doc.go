// Package otel publishes engine metrics through an OpenTelemetry Meter.
//
// Every counter becomes an Int64ObservableCounter and every latency bucket
// a cumulative Int64ObservableGauge. One callback reads the engine snapshot
// per collection. Callers own the MeterProvider.
package otel
