package metrics

import "github.com/prometheus/client_golang/prometheus"

// DependencyMetrics records retries and breaker transitions of outbound
// calls. It satisfies resilience.Observer.
type DependencyMetrics struct {
	retriesTotal *prometheus.CounterVec
	breakerState *prometheus.GaugeVec
}

func NewDependencyMetrics(registry *prometheus.Registry) *DependencyMetrics {
	retriesTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "dependency",
			Name:      "retries_total",
			Help:      "Total retried outbound calls by operation.",
		},
		[]string{"operation"},
	)
	breakerState := prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "dependency",
			Name:      "breaker_state",
			Help:      "Circuit breaker state by operation: 0 closed, 1 half-open, 2 open.",
		},
		[]string{"operation"},
	)
	registry.MustRegister(retriesTotal, breakerState)

	return &DependencyMetrics{
		retriesTotal: retriesTotal,
		breakerState: breakerState,
	}
}

func (m *DependencyMetrics) ObserveRetry(operation string) {
	m.retriesTotal.WithLabelValues(operation).Inc()
}

func (m *DependencyMetrics) ObserveBreakerState(operation, state string) {
	value := 0.0
	switch state {
	case "half-open":
		value = 1
	case "open":
		value = 2
	}
	m.breakerState.WithLabelValues(operation).Set(value)
}
