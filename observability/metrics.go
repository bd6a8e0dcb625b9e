package observability

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

type moduleMetrics struct {
	requests *prometheus.CounterVec
	errors   *prometheus.CounterVec
	latency  *prometheus.HistogramVec
}

var (
	moduleMetricsOnce sync.Once
	moduleRegistry    *moduleMetrics
)

// ModuleMetrics returns the lazily-initialised metrics registry used to record
// JSON-RPC module activity.
func ModuleMetrics() *moduleMetrics {
	moduleMetricsOnce.Do(func() {
		moduleRegistry = &moduleMetrics{
			requests: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "fundvault",
				Subsystem: "module",
				Name:      "requests_total",
				Help:      "Total JSON-RPC module requests segmented by module and method.",
			}, []string{"module", "method", "outcome"}),
			errors: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "fundvault",
				Subsystem: "module",
				Name:      "errors_total",
				Help:      "Total JSON-RPC module errors segmented by module, method, and status code.",
			}, []string{"module", "method", "status"}),
			latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
				Namespace: "fundvault",
				Subsystem: "module",
				Name:      "request_duration_seconds",
				Help:      "Latency distribution for JSON-RPC module handlers.",
				Buckets:   prometheus.DefBuckets,
			}, []string{"module", "method"}),
		}
		prometheus.MustRegister(moduleRegistry.requests, moduleRegistry.errors, moduleRegistry.latency)
	})
	return moduleRegistry
}

// RecordRequest counts a completed request with its outcome ("ok" or "error").
func (m *moduleMetrics) RecordRequest(module, method, outcome string) {
	if m == nil {
		return
	}
	m.requests.WithLabelValues(module, method, outcome).Inc()
}

// RecordError counts a failed request by JSON-RPC status code.
func (m *moduleMetrics) RecordError(module, method, status string) {
	if m == nil {
		return
	}
	m.errors.WithLabelValues(module, method, status).Inc()
}

// ObserveLatency records the handler duration for a request.
func (m *moduleMetrics) ObserveLatency(module, method string, d time.Duration) {
	if m == nil {
		return
	}
	m.latency.WithLabelValues(module, method).Observe(d.Seconds())
}
