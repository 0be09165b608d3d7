package prometheus

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	goMFA "github.com/MrEthical07/goMFA"
	"github.com/MrEthical07/goMFA/userstore"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

type fakeSource struct {
	snapshot goMFA.MetricsSnapshot
	dropped  uint64
}

func (f fakeSource) MetricsSnapshot() goMFA.MetricsSnapshot { return f.snapshot }
func (f fakeSource) AuditDropped() uint64                   { return f.dropped }

func TestRenderEmptyWhenMetricsDisabled(t *testing.T) {
	exp := NewExporter(fakeSource{
		snapshot: goMFA.MetricsSnapshot{
			Counters:   map[goMFA.MetricID]uint64{},
			Histograms: map[goMFA.MetricID][]uint64{},
		},
	})

	if got := exp.Render(); got != "" {
		t.Fatalf("expected empty output for disabled metrics, got:\n%s", got)
	}
}

func TestRenderCountersAndHistogram(t *testing.T) {
	exp := NewExporter(fakeSource{
		snapshot: goMFA.MetricsSnapshot{
			Counters: map[goMFA.MetricID]uint64{
				goMFA.MetricLoginSuccess: 7,
				goMFA.MetricTOTPFailure:  2,
			},
			Histograms: map[goMFA.MetricID][]uint64{
				goMFA.MetricValidateLatency: {1, 2, 3, 4, 5, 6, 7, 8},
			},
		},
		dropped: 2,
	})

	out := exp.Render()
	for _, want := range []string{
		"# TYPE gomfa_login_success_total counter\n",
		"gomfa_login_success_total 7\n",
		"gomfa_totp_failure_total 2\n",
		"gomfa_register_success_total 0\n",
		"# TYPE gomfa_validate_latency_seconds histogram\n",
		`gomfa_validate_latency_seconds_bucket{le="0.005"} 1` + "\n",
		`gomfa_validate_latency_seconds_bucket{le="+Inf"} 36` + "\n",
		"gomfa_validate_latency_seconds_count 36\n",
		"gomfa_audit_dropped_total 2\n",
	} {
		if !strings.Contains(out, want) {
			t.Fatalf("expected %q in output, got:\n%s", want, out)
		}
	}
}

func TestRenderSkipsHistogramWhenLatencyDisabled(t *testing.T) {
	exp := NewExporter(fakeSource{
		snapshot: goMFA.MetricsSnapshot{
			Counters:   map[goMFA.MetricID]uint64{goMFA.MetricLoginSuccess: 1},
			Histograms: map[goMFA.MetricID][]uint64{},
		},
	})

	if out := exp.Render(); strings.Contains(out, "gomfa_validate_latency_seconds") {
		t.Fatalf("unexpected histogram in output:\n%s", out)
	}
}

func TestHandlerServesLiveEngine(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis: %v", err)
	}
	defer mr.Close()
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer rdb.Close()

	cfg := goMFA.DefaultConfig()
	cfg.Token.PrivateKey = []byte("0123456789abcdef0123456789abcdef")
	engine, err := goMFA.New().WithConfig(cfg).WithRedis(rdb).WithUserStore(userstore.NewMemory()).Build()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	defer engine.Close()

	_, _ = engine.Login(context.Background(), "nobody", "pw")

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	NewExporter(engine).Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if got := rec.Header().Get("Content-Type"); !strings.Contains(got, "text/plain") {
		t.Fatalf("expected prometheus content type, got %q", got)
	}
	if !strings.Contains(rec.Body.String(), "gomfa_login_failure_total 1") {
		t.Fatalf("expected login failure to be exported, got:\n%s", rec.Body.String())
	}
}

func BenchmarkRender(b *testing.B) {
	exp := NewExporter(fakeSource{
		snapshot: goMFA.MetricsSnapshot{
			Counters: map[goMFA.MetricID]uint64{
				goMFA.MetricLoginSuccess:   1000,
				goMFA.MetricLoginFailure:   40,
				goMFA.MetricTOTPSuccess:    800,
				goMFA.MetricTOTPFailure:    10,
				goMFA.MetricSessionCreated: 1000,
			},
			Histograms: map[goMFA.MetricID][]uint64{
				goMFA.MetricValidateLatency: {10, 20, 30, 40, 50, 60, 70, 80},
			},
		},
	})

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = exp.Render()
	}
}
