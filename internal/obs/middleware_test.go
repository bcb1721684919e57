package obs_test

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/noah-isme/backend-beaute/internal/obs"
)

func TestHTTPMetricsLabels(t *testing.T) {
	registry := prometheus.NewRegistry()
	metrics := obs.NewHTTPMetrics("beaute", []float64{1, 10}, registry)
	handler := obs.HTTPObs{Metrics: metrics}.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	req := httptest.NewRequest(http.MethodGet, "/health/ready", nil)
	req = req.WithContext(obs.WithRoutePattern(req.Context(), "/health/ready"))
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	if rr.Code != http.StatusNoContent {
		t.Fatalf("expected 204 got %d", rr.Code)
	}

	total := testutil.ToFloat64(metrics.ReqTotal.WithLabelValues(http.MethodGet, "/health/ready", "204"))
	if total != 1 {
		t.Fatalf("expected counter to be 1, got %v", total)
	}

	samples := testutil.CollectAndCount(metrics.ReqDur)
	if samples == 0 {
		t.Fatalf("expected histogram sample")
	}

	if metrics.InFlight != nil {
		if val := testutil.ToFloat64(metrics.InFlight); val != 0 {
			t.Fatalf("expected no in-flight requests, got %v", val)
		}
	}
}

func TestDomainMetricsRegisterOnce(t *testing.T) {
	registry := prometheus.NewRegistry()
	obs.MustRegisterDomainMetrics("beaute", registry)
	obs.MustRegisterDomainMetrics("beaute", registry)

	obs.DiscountValidationsTotal.WithLabelValues("valid").Inc()
	obs.DiscountValidationsTotal.WithLabelValues("CODE_EXPIRED").Inc()
	if got := testutil.ToFloat64(obs.DiscountValidationsTotal.WithLabelValues("valid")); got != 1 {
		t.Fatalf("expected 1 valid validation, got %v", got)
	}
	if n := testutil.CollectAndCount(obs.DiscountValidationsTotal); n != 2 {
		t.Fatalf("expected 2 series, got %d", n)
	}
}

func TestTracingMiddlewarePassesThrough(t *testing.T) {
	handler := obs.TracingMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusAccepted)
	}))
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/api/v1/checkout/quote", nil))
	if rr.Code != http.StatusAccepted {
		t.Fatalf("expected 202 got %d", rr.Code)
	}
}

func TestRouteFallsBackToUnknown(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/nowhere", nil)
	if got := obs.Route(req); got != "unknown" {
		t.Fatalf("expected unknown, got %q", got)
	}
	req = req.WithContext(obs.WithRoutePattern(req.Context(), "/api/v1/orders/{id}"))
	if got := obs.Route(req); got != "/api/v1/orders/{id}" {
		t.Fatalf("unexpected route %q", got)
	}
}

func TestParseBucketsCSVSkipsJunk(t *testing.T) {
	got := obs.ParseBucketsCSV(" 5, ,abc,-1,25")
	if len(got) != 2 || got[0] != 5 || got[1] != 25 {
		t.Fatalf("unexpected buckets %v", got)
	}
}
