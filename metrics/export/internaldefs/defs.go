package internaldefs

import (
	"github.com/MrEthical07/sessionguard"
)

// CounterDef names one engine counter for export.
type CounterDef struct {
	ID   sessionguard.MetricID
	Name string
	Help string
}

// HistogramDef names one engine latency histogram for export.
type HistogramDef struct {
	ID   sessionguard.MetricID
	Name string
	Help string
}

// Namespace prefixes every exported metric name.
const Namespace = "sessionguard"

// AuditDroppedName is the counter for audit events lost to backpressure.
const AuditDroppedName = Namespace + "_audit_dropped_total"

var CounterDefs = []CounterDef{
	{ID: sessionguard.MetricLoginSuccess, Name: "sessionguard_login_success_total", Help: "Successful logins."},
	{ID: sessionguard.MetricLoginFailure, Name: "sessionguard_login_failure_total", Help: "Failed logins, including locked identities."},
	{ID: sessionguard.MetricLoginRateLimited, Name: "sessionguard_login_rate_limited_total", Help: "Logins rejected by the login rate window."},
	{ID: sessionguard.MetricLoginLocked, Name: "sessionguard_login_locked_total", Help: "Logins rejected because the identity was locked."},
	{ID: sessionguard.MetricAccountLocked, Name: "sessionguard_account_locked_total", Help: "Locks applied after a failed login."},
	{ID: sessionguard.MetricRefreshSuccess, Name: "sessionguard_refresh_success_total", Help: "Successful refresh rotations."},
	{ID: sessionguard.MetricRefreshFailure, Name: "sessionguard_refresh_failure_total", Help: "Failed refresh rotations."},
	{ID: sessionguard.MetricRefreshReuseDetected, Name: "sessionguard_refresh_reuse_detected_total", Help: "Refresh tokens presented after rotation or revocation."},
	{ID: sessionguard.MetricRevoke, Name: "sessionguard_revoke_total", Help: "Single refresh token revocations."},
	{ID: sessionguard.MetricRevokeAll, Name: "sessionguard_revoke_all_total", Help: "Revoke-all operations."},
	{ID: sessionguard.MetricAccessVerified, Name: "sessionguard_access_verified_total", Help: "Accepted access tokens."},
	{ID: sessionguard.MetricAccessRejected, Name: "sessionguard_access_rejected_total", Help: "Rejected access tokens."},
	{ID: sessionguard.MetricRateLimitHit, Name: "sessionguard_rate_limit_hit_total", Help: "Requests denied by any rate window."},
	{ID: sessionguard.MetricStoreUnavailable, Name: "sessionguard_store_unavailable_total", Help: "Operations failed by an unreachable store."},
	{ID: sessionguard.MetricSecretRehashed, Name: "sessionguard_secret_rehashed_total", Help: "Stored secret hashes upgraded on login."},
}

var HistogramDefs = []HistogramDef{
	{ID: sessionguard.MetricLoginLatency, Name: "sessionguard_login_latency_seconds", Help: "Login latency."},
	{ID: sessionguard.MetricVerifyLatency, Name: "sessionguard_verify_latency_seconds", Help: "Access token verification latency."},
}

// HistogramUpperBounds are the bucket bounds in seconds, without +Inf.
// They match the engine's millisecond buckets.
var HistogramUpperBounds = []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5}

// HistogramBoundSuffix names each bucket, +Inf included, for exporters
// that flatten histograms into gauges.
var HistogramBoundSuffix = []string{
	"0_005",
	"0_01",
	"0_025",
	"0_05",
	"0_1",
	"0_25",
	"0_5",
	"inf",
}

// NormalizeBuckets pads or truncates raw to the engine's bucket count.
func NormalizeBuckets(raw []uint64) [8]uint64 {
	var out [8]uint64
	for i := 0; i < len(out) && i < len(raw); i++ {
		out[i] = raw[i]
	}
	return out
}

func CumulativeBuckets(raw [8]uint64) [8]uint64 {
	var out [8]uint64
	var running uint64
	for i := 0; i < len(raw); i++ {
		running += raw[i]
		out[i] = running
	}
	return out
}
