package otel

import (
	"context"
	"sync"
	"testing"

	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"

	"github.com/MrEthical07/sessionguard"
)

type fakeSource struct {
	mu       sync.RWMutex
	snapshot sessionguard.MetricsSnapshot
	dropped  uint64
}

func (f *fakeSource) MetricsSnapshot() sessionguard.MetricsSnapshot {
	f.mu.RLock()
	defer f.mu.RUnlock()
	out := sessionguard.MetricsSnapshot{
		Counters:   make(map[sessionguard.MetricID]uint64, len(f.snapshot.Counters)),
		Histograms: make(map[sessionguard.MetricID][]uint64, len(f.snapshot.Histograms)),
	}
	for k, v := range f.snapshot.Counters {
		out.Counters[k] = v
	}
	for k, buckets := range f.snapshot.Histograms {
		out.Histograms[k] = append([]uint64(nil), buckets...)
	}
	return out
}

func (f *fakeSource) AuditDropped() uint64 {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.dropped
}

func newReader(t *testing.T) (*sdkmetric.ManualReader, *sdkmetric.MeterProvider) {
	t.Helper()
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() { _ = provider.Shutdown(context.Background()) })
	return reader, provider
}

func findSum(rm metricdata.ResourceMetrics, name string) (int64, bool) {
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			if m.Name != name {
				continue
			}
			if sum, ok := m.Data.(metricdata.Sum[int64]); ok && len(sum.DataPoints) > 0 {
				return sum.DataPoints[0].Value, true
			}
			if g, ok := m.Data.(metricdata.Gauge[int64]); ok && len(g.DataPoints) > 0 {
				return g.DataPoints[0].Value, true
			}
		}
	}
	return 0, false
}

func TestExporterRegistersAndCollects(t *testing.T) {
	reader, provider := newReader(t)

	src := &fakeSource{
		snapshot: sessionguard.MetricsSnapshot{
			Counters: map[sessionguard.MetricID]uint64{
				sessionguard.MetricLoginSuccess: 3,
			},
			Histograms: map[sessionguard.MetricID][]uint64{
				sessionguard.MetricLoginLatency: {1, 1, 1, 1, 1, 1, 1, 1},
			},
		},
		dropped: 1,
	}

	exp, err := NewExporterFromSource(provider.Meter("sessionguard-test"), src)
	if err != nil {
		t.Fatalf("NewExporterFromSource: %v", err)
	}
	defer func() {
		if err := exp.Close(); err != nil {
			t.Fatalf("Close: %v", err)
		}
	}()

	var rm metricdata.ResourceMetrics
	if err := reader.Collect(context.Background(), &rm); err != nil {
		t.Fatalf("Collect: %v", err)
	}

	checks := map[string]int64{
		"sessionguard_login_success_total":                  3,
		"sessionguard_audit_dropped_total":                  1,
		"sessionguard_login_latency_seconds_bucket_le_0_01": 2,
		"sessionguard_login_latency_seconds_count":          8,
	}
	for name, want := range checks {
		got, ok := findSum(rm, name)
		if !ok {
			t.Fatalf("%s not collected", name)
		}
		if got != want {
			t.Fatalf("%s = %d, want %d", name, got, want)
		}
	}
	if _, ok := findSum(rm, "sessionguard_verify_latency_seconds_count"); ok {
		t.Fatal("histogram absent from the snapshot must not be observed")
	}
}

func TestExporterRejectsNil(t *testing.T) {
	_, provider := newReader(t)

	if _, err := NewExporterFromSource(provider.Meter("x"), nil); err != ErrNilSource {
		t.Fatalf("nil source: %v", err)
	}
	if _, err := NewExporterFromSource(nil, &fakeSource{}); err != ErrNilMeter {
		t.Fatalf("nil meter: %v", err)
	}
	if _, err := NewExporter(provider.Meter("x"), nil); err != ErrNilSource {
		t.Fatalf("nil engine: %v", err)
	}
}

func TestExporterConcurrentCollectNoPanic(t *testing.T) {
	reader, provider := newReader(t)

	src := &fakeSource{
		snapshot: sessionguard.MetricsSnapshot{
			Counters:   map[sessionguard.MetricID]uint64{sessionguard.MetricLoginSuccess: 1},
			Histograms: map[sessionguard.MetricID][]uint64{},
		},
	}

	exp, err := NewExporterFromSource(provider.Meter("sessionguard-test"), src)
	if err != nil {
		t.Fatalf("NewExporterFromSource: %v", err)
	}
	defer exp.Close()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(v uint64) {
			defer wg.Done()
			src.mu.Lock()
			src.snapshot.Counters[sessionguard.MetricLoginSuccess] = v
			src.mu.Unlock()

			var rm metricdata.ResourceMetrics
			_ = reader.Collect(context.Background(), &rm)
		}(uint64(i + 1))
	}
	wg.Wait()
}
