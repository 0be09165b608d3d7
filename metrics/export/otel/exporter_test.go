package otel

import (
	"context"
	"sync"
	"testing"

	goMFA "github.com/MrEthical07/goMFA"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

type fakeSource struct {
	mu       sync.RWMutex
	snapshot goMFA.MetricsSnapshot
	dropped  uint64
}

func (f *fakeSource) MetricsSnapshot() goMFA.MetricsSnapshot {
	f.mu.RLock()
	defer f.mu.RUnlock()
	out := goMFA.MetricsSnapshot{
		Counters:   make(map[goMFA.MetricID]uint64, len(f.snapshot.Counters)),
		Histograms: make(map[goMFA.MetricID][]uint64, len(f.snapshot.Histograms)),
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

func newReader() (*sdkmetric.ManualReader, *sdkmetric.MeterProvider) {
	reader := sdkmetric.NewManualReader()
	return reader, sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
}

func collect(t *testing.T, reader *sdkmetric.ManualReader) map[string]metricdata.Metrics {
	t.Helper()
	var rm metricdata.ResourceMetrics
	if err := reader.Collect(context.Background(), &rm); err != nil {
		t.Fatalf("Collect failed: %v", err)
	}
	out := map[string]metricdata.Metrics{}
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			out[m.Name] = m
		}
	}
	return out
}

func TestExporterPublishesCountersAndBuckets(t *testing.T) {
	reader, provider := newReader()
	src := &fakeSource{
		snapshot: goMFA.MetricsSnapshot{
			Counters: map[goMFA.MetricID]uint64{goMFA.MetricLoginSuccess: 3},
			Histograms: map[goMFA.MetricID][]uint64{
				goMFA.MetricValidateLatency: {1, 1, 1, 1, 1, 1, 1, 1},
			},
		},
		dropped: 1,
	}

	exp, err := NewExporter(provider.Meter("gomfa-test"), src)
	if err != nil {
		t.Fatalf("NewExporter failed: %v", err)
	}
	defer func() {
		if err := exp.Close(); err != nil {
			t.Fatalf("Close failed: %v", err)
		}
	}()

	got := collect(t, reader)

	login, ok := got["gomfa_login_success_total"]
	if !ok {
		t.Fatal("expected login success counter")
	}
	sum, ok := login.Data.(metricdata.Sum[int64])
	if !ok || len(sum.DataPoints) != 1 || sum.DataPoints[0].Value != 3 {
		t.Fatalf("unexpected login counter data: %+v", login.Data)
	}

	buckets, ok := got["gomfa_validate_latency_seconds_bucket"]
	if !ok {
		t.Fatal("expected bucket gauge")
	}
	gauge, ok := buckets.Data.(metricdata.Gauge[int64])
	if !ok || len(gauge.DataPoints) != 8 {
		t.Fatalf("expected 8 bucket points, got %+v", buckets.Data)
	}
	for _, dp := range gauge.DataPoints {
		le, _ := dp.Attributes.Value("le")
		if le.AsString() == "+Inf" && dp.Value != 8 {
			t.Fatalf("expected +Inf bucket 8, got %d", dp.Value)
		}
	}

	if _, ok := got["gomfa_audit_dropped_total"]; !ok {
		t.Fatal("expected audit dropped counter")
	}
}

func TestExporterRejectsNilArguments(t *testing.T) {
	_, provider := newReader()

	if _, err := NewExporter(provider.Meter("gomfa-test"), nil); err != ErrNilSource {
		t.Fatalf("expected ErrNilSource, got %v", err)
	}
	if _, err := NewExporter(nil, &fakeSource{}); err != ErrNilMeter {
		t.Fatalf("expected ErrNilMeter, got %v", err)
	}
}

func TestExporterConcurrentCollectNoPanic(t *testing.T) {
	reader, provider := newReader()
	src := &fakeSource{
		snapshot: goMFA.MetricsSnapshot{
			Counters:   map[goMFA.MetricID]uint64{goMFA.MetricTOTPSuccess: 1},
			Histograms: map[goMFA.MetricID][]uint64{},
		},
	}

	exp, err := NewExporter(provider.Meter("gomfa-test"), src)
	if err != nil {
		t.Fatalf("NewExporter failed: %v", err)
	}
	defer exp.Close()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(v uint64) {
			defer wg.Done()
			src.mu.Lock()
			src.snapshot.Counters[goMFA.MetricTOTPSuccess] = v
			src.mu.Unlock()

			var rm metricdata.ResourceMetrics
			_ = reader.Collect(context.Background(), &rm)
		}(uint64(i + 1))
	}
	wg.Wait()
}
