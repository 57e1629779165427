package ratelimit

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds Prometheus metrics for rate limit decisions.
type Metrics struct {
	decisionsTotal *prometheus.CounterVec
	fallbackTotal  *prometheus.CounterVec
}

// NewMetrics creates a new Metrics instance. Collectors are created
// unregistered; call Register to attach them to a registry.
func NewMetrics() *Metrics {
	return &Metrics{
		decisionsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "gateway",
			Subsystem: "ratelimit",
			Name:      "decisions_total",
			Help:      "Total number of rate limit decisions",
		}, []string{"class", "decision"}),
		fallbackTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "gateway",
			Subsystem: "ratelimit",
			Name:      "fallback_total",
			Help:      "Total number of degraded-store fallback decisions",
		}, []string{"class", "mode"}),
	}
}

// Register registers all collectors with the given registerer.
func (m *Metrics) Register(reg prometheus.Registerer) error {
	for _, c := range []prometheus.Collector{m.decisionsTotal, m.fallbackTotal} {
		if err := reg.Register(c); err != nil {
			return err
		}
	}
	return nil
}

// RecordDecision records an admitted or rejected request.
func (m *Metrics) RecordDecision(class, decision string) {
	m.decisionsTotal.WithLabelValues(class, decision).Inc()
}

// RecordFallback records a degraded-store fallback decision.
func (m *Metrics) RecordFallback(class, mode string) {
	m.fallbackTotal.WithLabelValues(class, mode).Inc()
}
