package observability

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// ModuleMetrics records marketplace operation activity segmented by module and
// operation name.
type ModuleMetrics struct {
	requests *prometheus.CounterVec
	failures *prometheus.CounterVec
	latency  *prometheus.HistogramVec
}

var (
	moduleMetricsOnce sync.Once
	moduleRegistry    *ModuleMetrics
)

// Metrics returns the lazily-initialised module metrics registry.
func Metrics() *ModuleMetrics {
	moduleMetricsOnce.Do(func() {
		moduleRegistry = &ModuleMetrics{
			requests: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "leasechain",
				Subsystem: "module",
				Name:      "requests_total",
				Help:      "Total module operations segmented by module, operation and outcome.",
			}, []string{"module", "op", "outcome"}),
			failures: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "leasechain",
				Subsystem: "module",
				Name:      "failures_total",
				Help:      "Total failed module operations segmented by module and operation.",
			}, []string{"module", "op"}),
			latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
				Namespace: "leasechain",
				Subsystem: "module",
				Name:      "op_duration_seconds",
				Help:      "Latency distribution for module operations.",
				Buckets:   prometheus.DefBuckets,
			}, []string{"module", "op"}),
		}
		prometheus.MustRegister(moduleRegistry.requests, moduleRegistry.failures, moduleRegistry.latency)
	})
	return moduleRegistry
}

// Observe records one operation outcome with its duration.
func (m *ModuleMetrics) Observe(module, op string, err error, start time.Time) {
	if m == nil {
		return
	}
	outcome := "ok"
	if err != nil {
		outcome = "error"
		m.failures.WithLabelValues(module, op).Inc()
	}
	m.requests.WithLabelValues(module, op, outcome).Inc()
	m.latency.WithLabelValues(module, op).Observe(time.Since(start).Seconds())
}
