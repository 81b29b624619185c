package metrics

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestNormalizePath(t *testing.T) {
	cases := map[string]string{
		"/v1/analyses/0b1c/progress":    "/v1/analyses/{task_id}/progress",
		"/v1/analyses/0b1c":             "/v1/analyses/{task_id}",
		"/v1/analyses/word-frequency":   "/v1/analyses/word-frequency",
		"/v1/analyses/statistics":       "/v1/analyses/statistics",
		"/v1/projects/p-1/analyses":     "/v1/projects/{project_id}/analyses",
		"/v1/analyses/9f/results/words": "/v1/analyses/{task_id}/results/words",
		"/healthz":                      "/healthz",
	}
	for in, want := range cases {
		if got := normalizePath(in); got != want {
			t.Errorf("normalizePath(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestMiddlewareCountsRequestsByNormalizedPath(t *testing.T) {
	m := NewHTTPServerMetrics("api")
	handler := m.Middleware("api", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))

	for _, id := range []string{"a", "b"} {
		req := httptest.NewRequest(http.MethodGet, "/v1/analyses/"+id, nil)
		handler.ServeHTTP(httptest.NewRecorder(), req)
	}

	got := testutil.ToFloat64(m.requestTotal.WithLabelValues("api", http.MethodGet, "/v1/analyses/{task_id}", "404"))
	if got != 2 {
		t.Fatalf("requests_total = %v, want 2", got)
	}
}

func TestHandlerExposesDomainCounters(t *testing.T) {
	m := NewHTTPServerMetrics("api")
	m.RecordAnalysisCreated("api", "TIMELINE")
	m.RecordExport("api", "excel")

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	body := rec.Body.String()
	for _, want := range []string{
		`hta_analysis_created_total{kind="TIMELINE",service="api"} 1`,
		`hta_analysis_exports_total{format="excel",service="api"} 1`,
	} {
		if !strings.Contains(body, want) {
			t.Fatalf("expected %q in metrics output", want)
		}
	}
}

func TestWorkerMetricsShareRegistry(t *testing.T) {
	httpMetrics := NewHTTPServerMetrics("api")
	worker := NewWorkerMetrics("api", httpMetrics.Registry())

	worker.StartTask()
	worker.FinishTask(2*time.Second, errors.New("boom"))
	worker.StartTask()
	worker.FinishTask(time.Second, nil)
	worker.SetQueueDepth(7)

	if got := testutil.ToFloat64(worker.processTotal.WithLabelValues("api", "error")); got != 1 {
		t.Fatalf("error count = %v, want 1", got)
	}
	if got := testutil.ToFloat64(worker.processInFlight); got != 0 {
		t.Fatalf("in flight = %v, want 0", got)
	}
	if got := testutil.ToFloat64(worker.queueDepth); got != 7 {
		t.Fatalf("queue depth = %v, want 7", got)
	}

	rec := httptest.NewRecorder()
	httpMetrics.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if !strings.Contains(rec.Body.String(), "hta_worker_queue_depth") {
		t.Fatalf("expected worker metrics on shared registry")
	}
}

func TestDependencyMetricsBreakerState(t *testing.T) {
	worker := NewWorkerMetrics("worker", nil)
	deps := NewDependencyMetrics(worker.Registry())

	deps.ObserveRetry("nlp.timeline")
	deps.ObserveRetry("nlp.timeline")
	deps.ObserveBreakerState("nlp.timeline", "open")

	if got := testutil.ToFloat64(deps.retriesTotal.WithLabelValues("nlp.timeline")); got != 2 {
		t.Fatalf("retries = %v, want 2", got)
	}
	if got := testutil.ToFloat64(deps.breakerState.WithLabelValues("nlp.timeline")); got != 2 {
		t.Fatalf("breaker state = %v, want 2", got)
	}

	deps.ObserveBreakerState("nlp.timeline", "closed")
	if got := testutil.ToFloat64(deps.breakerState.WithLabelValues("nlp.timeline")); got != 0 {
		t.Fatalf("breaker state = %v, want 0", got)
	}
}
