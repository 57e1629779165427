package breaker

import "github.com/prometheus/client_golang/prometheus"

// Metrics holds circuit breaker metrics.
type Metrics struct {
	transitionsTotal *prometheus.CounterVec
	state            *prometheus.GaugeVec
	rejectionsTotal  *prometheus.CounterVec
}

// NewMetrics creates unregistered breaker metrics.
func NewMetrics() *Metrics {
	return &Metrics{
		transitionsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "gateway",
			Subsystem: "breaker",
			Name:      "transitions_total",
			Help:      "Total number of circuit breaker state transitions",
		}, []string{"name", "from", "to"}),
		state: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "gateway",
			Subsystem: "breaker",
			Name:      "state",
			Help:      "Current circuit breaker state (0=closed, 1=open, 2=half-open)",
		}, []string{"name"}),
		rejectionsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "gateway",
			Subsystem: "breaker",
			Name:      "rejections_total",
			Help:      "Total number of calls rejected while the circuit was open",
		}, []string{"name"}),
	}
}

// Register registers the metrics with the given registerer.
func (m *Metrics) Register(reg prometheus.Registerer) error {
	for _, c := range []prometheus.Collector{m.transitionsTotal, m.state, m.rejectionsTotal} {
		if err := reg.Register(c); err != nil {
			return err
		}
	}
	return nil
}

// RecordTransition records a state transition.
func (m *Metrics) RecordTransition(name string, from, to State) {
	m.transitionsTotal.WithLabelValues(name, from.String(), to.String()).Inc()
	m.state.WithLabelValues(name).Set(float64(to))
}

// RecordRejection records a fast-failed call.
func (m *Metrics) RecordRejection(name string) {
	m.rejectionsTotal.WithLabelValues(name).Inc()
}
