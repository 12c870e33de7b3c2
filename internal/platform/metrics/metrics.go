package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the ledger.
type Metrics struct {
	CredentialsIssued    prometheus.Counter
	CredentialsRevoked   prometheus.Counter
	AuditsRecorded       *prometheus.CounterVec
	PoliciesCreated      prometheus.Counter
	VerificationHits     prometheus.Counter
	VerificationMisses   prometheus.Counter
	NotificationsDropped prometheus.Counter
}

// New creates and registers all Prometheus metrics.
func New() *Metrics {
	return &Metrics{
		CredentialsIssued: promauto.NewCounter(prometheus.CounterOpts{
			Name: "credentia_credentials_issued_total",
			Help: "Total number of credentials issued",
		}),
		CredentialsRevoked: promauto.NewCounter(prometheus.CounterOpts{
			Name: "credentia_credentials_revoked_total",
			Help: "Total number of credentials revoked",
		}),
		AuditsRecorded: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "credentia_audits_recorded_total",
			Help: "Total number of compliance audits recorded, by framework",
		}, []string{"framework"}),
		PoliciesCreated: promauto.NewCounter(prometheus.CounterOpts{
			Name: "credentia_policies_created_total",
			Help: "Total number of institutional policies created",
		}),
		VerificationHits: promauto.NewCounter(prometheus.CounterOpts{
			Name: "credentia_verification_cache_hits_total",
			Help: "Verification requests served from cache",
		}),
		VerificationMisses: promauto.NewCounter(prometheus.CounterOpts{
			Name: "credentia_verification_cache_misses_total",
			Help: "Verification requests that fell through to the store",
		}),
		NotificationsDropped: promauto.NewCounter(prometheus.CounterOpts{
			Name: "credentia_notifications_dropped_total",
			Help: "Ledger events dropped due to a full notification buffer",
		}),
	}
}

// IncrementCredentialsIssued increments the issued counter by 1.
func (m *Metrics) IncrementCredentialsIssued() {
	if m != nil {
		m.CredentialsIssued.Inc()
	}
}

// IncrementCredentialsRevoked increments the revoked counter by 1.
func (m *Metrics) IncrementCredentialsRevoked() {
	if m != nil {
		m.CredentialsRevoked.Inc()
	}
}

// IncrementAuditsRecorded increments the audit counter for a framework.
func (m *Metrics) IncrementAuditsRecorded(framework string) {
	if m != nil {
		m.AuditsRecorded.WithLabelValues(framework).Inc()
	}
}

// IncrementPoliciesCreated increments the policy counter by 1.
func (m *Metrics) IncrementPoliciesCreated() {
	if m != nil {
		m.PoliciesCreated.Inc()
	}
}

// ObserveVerification records a cache hit or miss.
func (m *Metrics) ObserveVerification(hit bool) {
	if m == nil {
		return
	}
	if hit {
		m.VerificationHits.Inc()
	} else {
		m.VerificationMisses.Inc()
	}
}

// IncrementNotificationsDropped increments the dropped-event counter by 1.
func (m *Metrics) IncrementNotificationsDropped() {
	if m != nil {
		m.NotificationsDropped.Inc()
	}
}
