package cache

import "github.com/prometheus/client_golang/prometheus"

// Metrics holds response cache metrics.
type Metrics struct {
	requestsTotal  *prometheus.CounterVec
	coalescedTotal prometheus.Counter
}

// NewMetrics creates unregistered cache metrics.
func NewMetrics() *Metrics {
	return &Metrics{
		requestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "gateway",
			Subsystem: "cache",
			Name:      "requests_total",
			Help:      "Total number of cache lookups by outcome",
		}, []string{"outcome"}),
		coalescedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "gateway",
			Subsystem: "cache",
			Name:      "coalesced_total",
			Help:      "Total number of requests served by an in-flight downstream call",
		}),
	}
}

// Register registers the metrics with the given registerer.
func (m *Metrics) Register(reg prometheus.Registerer) error {
	for _, c := range []prometheus.Collector{m.requestsTotal, m.coalescedTotal} {
		if err := reg.Register(c); err != nil {
			return err
		}
	}
	return nil
}

// RecordHit records a cache hit.
func (m *Metrics) RecordHit() { m.requestsTotal.WithLabelValues("hit").Inc() }

// RecordMiss records a cache miss.
func (m *Metrics) RecordMiss() { m.requestsTotal.WithLabelValues("miss").Inc() }

// RecordBypass records a lookup skipped because the request was not cacheable.
func (m *Metrics) RecordBypass() { m.requestsTotal.WithLabelValues("bypass").Inc() }

// RecordCoalesced records a request that shared another request's
// downstream call.
func (m *Metrics) RecordCoalesced() { m.coalescedTotal.Inc() }
