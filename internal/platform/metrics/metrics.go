package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics aggregates the protocol counters. Construct once in main; all
// methods are nil-safe so services can run without metrics in tests.
type Metrics struct {
	CredentialsIssued   prometheus.Counter
	CredentialsAccepted prometheus.Counter
	CredentialsRejected *prometheus.CounterVec
	RequestsCreated     prometheus.Counter
	RequestsResolved    *prometheus.CounterVec
	Verifications       *prometheus.CounterVec
	VerifyDurationMs    prometheus.Histogram
}

func New() *Metrics {
	return &Metrics{
		CredentialsIssued: promauto.NewCounter(prometheus.CounterOpts{
			Name: "credrelay_credentials_issued_total",
			Help: "Total number of credentials issued",
		}),
		CredentialsAccepted: promauto.NewCounter(prometheus.CounterOpts{
			Name: "credrelay_credentials_accepted_total",
			Help: "Total number of credentials accepted into the wallet",
		}),
		CredentialsRejected: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "credrelay_credentials_rejected_total",
			Help: "Total number of credentials rejected at acceptance, by reason",
		}, []string{"reason"}),
		RequestsCreated: promauto.NewCounter(prometheus.CounterOpts{
			Name: "credrelay_proof_requests_created_total",
			Help: "Total number of proof requests created",
		}),
		RequestsResolved: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "credrelay_proof_requests_resolved_total",
			Help: "Total number of proof requests resolved, by terminal status",
		}, []string{"status"}),
		Verifications: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "credrelay_verifications_total",
			Help: "Total number of presentation verifications, by outcome",
		}, []string{"outcome"}),
		VerifyDurationMs: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "credrelay_verify_duration_ms",
			Help:    "Latency of the verification pipeline in milliseconds",
			Buckets: []float64{0.5, 1, 2.5, 5, 10, 25, 50, 100, 250},
		}),
	}
}

func (m *Metrics) IncCredentialsIssued() {
	if m == nil {
		return
	}
	m.CredentialsIssued.Inc()
}

func (m *Metrics) IncCredentialsAccepted() {
	if m == nil {
		return
	}
	m.CredentialsAccepted.Inc()
}

func (m *Metrics) IncCredentialsRejected(reason string) {
	if m == nil {
		return
	}
	m.CredentialsRejected.WithLabelValues(reason).Inc()
}

func (m *Metrics) IncRequestsCreated() {
	if m == nil {
		return
	}
	m.RequestsCreated.Inc()
}

func (m *Metrics) IncRequestsResolved(status string) {
	if m == nil {
		return
	}
	m.RequestsResolved.WithLabelValues(status).Inc()
}

func (m *Metrics) IncVerifications(outcome string) {
	if m == nil {
		return
	}
	m.Verifications.WithLabelValues(outcome).Inc()
}

func (m *Metrics) ObserveVerifyDuration(ms float64) {
	if m == nil {
		return
	}
	m.VerifyDurationMs.Observe(ms)
}
