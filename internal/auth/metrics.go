package auth

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds Prometheus metrics for token lifecycle operations.
type Metrics struct {
	issuedTotal        prometheus.Counter
	verificationsTotal *prometheus.CounterVec
	refreshTotal       *prometheus.CounterVec
	revocationsTotal   *prometheus.CounterVec
	storeFailuresTotal *prometheus.CounterVec
}

// NewMetrics creates a new Metrics instance. Collectors are created
// unregistered; call Register to attach them to a registry.
func NewMetrics() *Metrics {
	return &Metrics{
		issuedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "gateway",
			Subsystem: "auth",
			Name:      "tokens_issued_total",
			Help:      "Total number of token pairs issued",
		}),
		verificationsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "gateway",
			Subsystem: "auth",
			Name:      "verifications_total",
			Help:      "Total number of token verification attempts",
		}, []string{"result"}),
		refreshTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "gateway",
			Subsystem: "auth",
			Name:      "refresh_total",
			Help:      "Total number of refresh token rotations",
		}, []string{"result"}),
		revocationsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "gateway",
			Subsystem: "auth",
			Name:      "revocations_total",
			Help:      "Total number of explicit token revocations",
		}, []string{"token_type"}),
		storeFailuresTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "gateway",
			Subsystem: "auth",
			Name:      "store_failures_total",
			Help:      "Total number of coordination store failures during token operations",
		}, []string{"operation"}),
	}
}

// Register registers all collectors with the given registerer.
func (m *Metrics) Register(reg prometheus.Registerer) error {
	for _, c := range []prometheus.Collector{
		m.issuedTotal,
		m.verificationsTotal,
		m.refreshTotal,
		m.revocationsTotal,
		m.storeFailuresTotal,
	} {
		if err := reg.Register(c); err != nil {
			return err
		}
	}
	return nil
}

// RecordIssue records a successful issuance.
func (m *Metrics) RecordIssue() {
	m.issuedTotal.Inc()
}

// RecordVerify records a verification attempt outcome.
func (m *Metrics) RecordVerify(result string) {
	m.verificationsTotal.WithLabelValues(result).Inc()
}

// RecordRefresh records a refresh rotation outcome.
func (m *Metrics) RecordRefresh(result string) {
	m.refreshTotal.WithLabelValues(result).Inc()
}

// RecordRevoke records an explicit revocation.
func (m *Metrics) RecordRevoke(tokenType string) {
	m.revocationsTotal.WithLabelValues(tokenType).Inc()
}

// RecordStoreFailure records a coordination store failure.
func (m *Metrics) RecordStoreFailure(operation string) {
	m.storeFailuresTotal.WithLabelValues(operation).Inc()
}
