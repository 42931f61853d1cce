package prometheus

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/MrEthical07/sessionguard"
)

type fakeSource struct {
	snapshot sessionguard.MetricsSnapshot
	dropped  uint64
}

func (f fakeSource) MetricsSnapshot() sessionguard.MetricsSnapshot { return f.snapshot }
func (f fakeSource) AuditDropped() uint64                          { return f.dropped }

func TestCollectEmptyWhenMetricsDisabled(t *testing.T) {
	c := NewCollectorFromSource(fakeSource{
		snapshot: sessionguard.MetricsSnapshot{
			Counters:   map[sessionguard.MetricID]uint64{},
			Histograms: map[sessionguard.MetricID][]uint64{},
		},
	})

	if n := testutil.CollectAndCount(c); n != 0 {
		t.Fatalf("expected no series for disabled metrics, got %d", n)
	}
}

func TestCollectCountersAndHistogram(t *testing.T) {
	c := NewCollectorFromSource(fakeSource{
		snapshot: sessionguard.MetricsSnapshot{
			Counters: map[sessionguard.MetricID]uint64{
				sessionguard.MetricLoginSuccess: 7,
			},
			Histograms: map[sessionguard.MetricID][]uint64{
				sessionguard.MetricVerifyLatency: {1, 2, 3, 4, 5, 6, 7, 8},
			},
		},
		dropped: 2,
	})

	reg := prometheus.NewRegistry()
	if err := reg.Register(c); err != nil {
		t.Fatalf("Register: %v", err)
	}

	expected := `
# HELP sessionguard_login_success_total Successful logins.
# TYPE sessionguard_login_success_total counter
sessionguard_login_success_total 7
# HELP sessionguard_audit_dropped_total Audit events dropped because the dispatcher buffer was full.
# TYPE sessionguard_audit_dropped_total counter
sessionguard_audit_dropped_total 2
# HELP sessionguard_verify_latency_seconds Access token verification latency.
# TYPE sessionguard_verify_latency_seconds histogram
sessionguard_verify_latency_seconds_bucket{le="0.005"} 1
sessionguard_verify_latency_seconds_bucket{le="0.01"} 3
sessionguard_verify_latency_seconds_bucket{le="0.025"} 6
sessionguard_verify_latency_seconds_bucket{le="0.05"} 10
sessionguard_verify_latency_seconds_bucket{le="0.1"} 15
sessionguard_verify_latency_seconds_bucket{le="0.25"} 21
sessionguard_verify_latency_seconds_bucket{le="0.5"} 28
sessionguard_verify_latency_seconds_bucket{le="+Inf"} 36
sessionguard_verify_latency_seconds_sum 0
sessionguard_verify_latency_seconds_count 36
`
	err := testutil.GatherAndCompare(reg, strings.NewReader(expected),
		"sessionguard_login_success_total",
		"sessionguard_audit_dropped_total",
		"sessionguard_verify_latency_seconds",
	)
	if err != nil {
		t.Fatal(err)
	}
}

func TestHandlerServesEngineMetrics(t *testing.T) {
	engine, err := sessionguard.New().
		WithUserProvider(sessionguard.NewMemoryUserProvider()).
		Build()
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	defer engine.Close()

	_, _ = engine.VerifyAccess(httptest.NewRequest(http.MethodGet, "/", nil).Context(), "garbage")

	srv := httptest.NewServer(NewCollector(engine).Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL)
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status %d", resp.StatusCode)
	}
	if !strings.Contains(string(body), "sessionguard_access_rejected_total 1") {
		t.Fatalf("expected rejected counter, got:\n%s", body)
	}
}
