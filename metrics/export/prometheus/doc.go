// Package prometheus exposes engine metrics as a client_golang Collector.
//
// Counters are named sessionguard_*_total. Login and verify latency are
// exported as sessionguard_login_latency_seconds and
// sessionguard_verify_latency_seconds when latency histograms are enabled.
// Nothing is registered globally.
package prometheus
