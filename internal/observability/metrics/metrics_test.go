package metrics

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/kirillkom/shopping-assistant/internal/core/domain"
)

func TestMiddlewareLabelsRequestsByRoutePattern(t *testing.T) {
	m := NewHTTPServerMetrics("api")
	r := chi.NewRouter()
	r.Use(m.Middleware("api"))
	r.Get("/v1/conversations/{user_id}/turns", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})

	for _, user := range []string{"u1", "u2"} {
		req := httptest.NewRequest(http.MethodGet, "/v1/conversations/"+user+"/turns", http.NoBody)
		r.ServeHTTP(httptest.NewRecorder(), req)
	}

	got := testutil.ToFloat64(m.requestTotal.WithLabelValues("api", http.MethodGet, "/v1/conversations/{user_id}/turns", "204"))
	if got != 2 {
		t.Fatalf("expected 2 requests under the route pattern, got %v", got)
	}
	if testutil.ToFloat64(m.requestInFlight) != 0 {
		t.Fatalf("expected no in-flight requests after completion")
	}
}

func TestRecordSearchAndResilienceObserver(t *testing.T) {
	m := NewHTTPServerMetrics("api")
	m.RecordSearch("api", "search", "success", 3, 4*time.Second)
	m.RecordSearch("api", "search", "no_products_found", 0, 10*time.Second)
	m.RecordIntent("api", "rules")

	if got := testutil.ToFloat64(m.searchTotal.WithLabelValues("api", "search", "success")); got != 1 {
		t.Fatalf("expected one successful search, got %v", got)
	}
	if got := testutil.CollectAndCount(m.searchProducts); got != 1 {
		t.Fatalf("expected one products series, got %d", got)
	}

	m.ObserveRetry("inference.complete", 1)
	m.ObserveBreakerState("inference.complete", "open")
	if got := testutil.ToFloat64(m.retriesTotal.WithLabelValues("api", "inference.complete")); got != 1 {
		t.Fatalf("expected one retry, got %v", got)
	}
	if got := testutil.ToFloat64(m.breakerState.WithLabelValues("api", "inference.complete")); got != 1 {
		t.Fatalf("expected open breaker gauge, got %v", got)
	}
}

func TestWorkerMetricsTracksInFlight(t *testing.T) {
	m := NewWorkerMetrics("worker")
	m.StartSearch()
	if testutil.ToFloat64(m.processInFlight) != 1 {
		t.Fatalf("expected one in-flight search")
	}
	m.FinishSearch("worker", "success", time.Second)
	if testutil.ToFloat64(m.processInFlight) != 0 {
		t.Fatalf("expected no in-flight searches")
	}
	if got := testutil.ToFloat64(m.processTotal.WithLabelValues("worker", "success")); got != 1 {
		t.Fatalf("expected one processed search, got %v", got)
	}
}

func TestSearchOutcomeLabels(t *testing.T) {
	cases := map[string]error{
		"success":           nil,
		"rate_limited":      domain.WrapError(domain.ErrRateLimitExceeded, "acquire", errors.New("cap reached")),
		"timeout":           domain.ErrSearchTimeout,
		"no_products_found": domain.ErrNoProductsFound,
		"error":             errors.New("boom"),
	}
	for want, err := range cases {
		if got := SearchOutcome(err); got != want {
			t.Fatalf("expected %q for %v, got %q", want, err, got)
		}
	}
}
