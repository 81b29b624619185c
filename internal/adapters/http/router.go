package httpadapter

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/kirillkom/historical-text-analysis/internal/config"
	"github.com/kirillkom/historical-text-analysis/internal/core/ports"
	"github.com/kirillkom/historical-text-analysis/internal/observability/metrics"
)

const (
	serviceName     = "api"
	maxRequestBytes = 1 << 20
)

type Router struct {
	analyses    ports.AnalysisManager
	results     ports.AnalysisResultReader
	maintenance ports.AnalysisMaintainer
	access      ports.AccessChecker
	artifacts   ports.ObjectStorage
	httpMetrics *metrics.HTTPServerMetrics

	rateLimitRPS     float64
	rateLimitBurst   int
	maxInFlight      int
	backpressureWait time.Duration
}

func NewRouter(
	cfg config.Config,
	analyses ports.AnalysisManager,
	results ports.AnalysisResultReader,
	maintenance ports.AnalysisMaintainer,
	access ports.AccessChecker,
	artifacts ports.ObjectStorage,
	httpMetrics *metrics.HTTPServerMetrics,
) *Router {
	return &Router{
		analyses:         analyses,
		results:          results,
		maintenance:      maintenance,
		access:           access,
		artifacts:        artifacts,
		httpMetrics:      httpMetrics,
		rateLimitRPS:     cfg.RateLimitRPS,
		rateLimitBurst:   cfg.RateLimitBurst,
		maxInFlight:      cfg.MaxInFlightRequests,
		backpressureWait: cfg.BackpressureWait(),
	}
}

func (rt *Router) Handler() http.Handler {
	api := http.NewServeMux()

	api.HandleFunc("POST /v1/analyses", rt.createAnalysis)
	api.HandleFunc("POST /v1/analyses/batch-delete", rt.deleteAnalyses)
	api.HandleFunc("POST /v1/analyses/{kind}", rt.createAnalysisOfKind)
	api.HandleFunc("GET /v1/analyses/{id}", rt.getAnalysis)
	api.HandleFunc("DELETE /v1/analyses/{id}", rt.deleteAnalysis)
	api.HandleFunc("POST /v1/analyses/{id}/cancel", rt.cancelAnalysis)
	api.HandleFunc("POST /v1/analyses/{id}/rerun", rt.rerunAnalysis)
	api.HandleFunc("GET /v1/analyses/{id}/progress", rt.analysisProgress)
	api.HandleFunc("GET /v1/analyses/{id}/export", rt.exportAnalysis)
	api.HandleFunc("GET /v1/analyses/{id}/statistics", rt.resultStatistics)
	api.HandleFunc("GET /v1/analyses/{id}/word-frequency", rt.listWordFrequencies)
	api.HandleFunc("GET /v1/analyses/{id}/timeline", rt.listTimelineEvents)
	api.HandleFunc("GET /v1/analyses/{id}/geography", rt.listGeoLocations)
	api.HandleFunc("GET /v1/analyses/{id}/geography/nearby", rt.nearbyLocations)

	api.HandleFunc("GET /v1/projects/{id}/analyses", rt.listProjectAnalyses)
	api.HandleFunc("GET /v1/projects/{id}/analyses/recent", rt.recentProjectAnalyses)
	api.HandleFunc("GET /v1/projects/{id}/overview", rt.projectOverview)
	api.HandleFunc("GET /v1/statistics", rt.statistics)

	api.HandleFunc("POST /v1/maintenance/cleanup", rt.requireAdmin(rt.cleanupFailed))
	api.HandleFunc("POST /v1/maintenance/timeouts", rt.requireAdmin(rt.failTimedOut))
	api.HandleFunc("POST /v1/maintenance/recover", rt.requireAdmin(rt.recoverPending))

	var limited http.Handler = api
	limited = backpressureMiddleware(limited, rt.maxInFlight, rt.backpressureWait)
	limited = rt.rateLimitMiddleware(limited)

	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", rt.healthz)
	if rt.httpMetrics != nil {
		mux.Handle("GET /metrics", rt.httpMetrics.Handler())
	}
	mux.Handle("/v1/", limited)

	var handler http.Handler = mux
	if rt.httpMetrics != nil {
		handler = rt.httpMetrics.Middleware(serviceName, handler)
	}
	handler = accessLogMiddleware(handler)
	return requestIDMiddleware(handler)
}

func (rt *Router) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
