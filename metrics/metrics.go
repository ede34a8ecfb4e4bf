// metrics/metrics.go
// Package metrics exposes prometheus collectors for the session machinery.
package metrics

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "http_session"

// Outcome label values.
const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
	OutcomeJoined  = "joined"
)

// Metrics groups the collectors updated by the refresh coordinator and the interceptor.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	Renewals        *prometheus.CounterVec
	RenewalWaiters  prometheus.Histogram
	Rejections      *prometheus.CounterVec
	Retries         *prometheus.CounterVec
	SessionExpiries prometheus.Counter
}

// New builds an unregistered set of collectors.
func New() *Metrics {
	return &Metrics{
		Renewals: prometheus.NewCounterVec(
			prometheus.CounterOpts{Namespace: namespace, Name: "renewals_total", Help: "Credential renewal requests by outcome."},
			[]string{"outcome"},
		),
		RenewalWaiters: prometheus.NewHistogram(
			prometheus.HistogramOpts{Namespace: namespace, Name: "renewal_waiters", Help: "Callers settled per renewal round.", Buckets: []float64{1, 2, 4, 8, 16, 32, 64}},
		),
		Rejections: prometheus.NewCounterVec(
			prometheus.CounterOpts{Namespace: namespace, Name: "auth_rejections_total", Help: "Requests rejected with 401 by whether they carried a credential."},
			[]string{"credentialed"},
		),
		Retries: prometheus.NewCounterVec(
			prometheus.CounterOpts{Namespace: namespace, Name: "retries_total", Help: "Requests retried after renewal by final status class."},
			[]string{"status_class"},
		),
		SessionExpiries: prometheus.NewCounter(
			prometheus.CounterOpts{Namespace: namespace, Name: "session_expiries_total", Help: "Sessions torn down after a failed renewal."},
		),
	}
}

// Register registers every collector with reg. Collectors that are already registered
// are not reported as an error.
func (m *Metrics) Register(reg prometheus.Registerer) error {
	for _, c := range []prometheus.Collector{m.Renewals, m.RenewalWaiters, m.Rejections, m.Retries, m.SessionExpiries} {
		if err := reg.Register(c); err != nil {
			var are prometheus.AlreadyRegisteredError
			if errors.As(err, &are) {
				continue
			}
			return err
		}
	}
	return nil
}

// ObserveRenewal records a renewal request. joined is true when the caller attached to
// a round already in flight.
func (m *Metrics) ObserveRenewal(outcome string) {
	if m == nil {
		return
	}
	m.Renewals.WithLabelValues(outcome).Inc()
}

// ObserveRound records a settled renewal round and the number of callers it settled.
func (m *Metrics) ObserveRound(success bool, waiters int) {
	if m == nil {
		return
	}
	m.RenewalWaiters.Observe(float64(waiters))
	if !success {
		m.SessionExpiries.Inc()
	}
}

// ObserveRejection records a 401.
func (m *Metrics) ObserveRejection(credentialed bool) {
	if m == nil {
		return
	}
	label := "false"
	if credentialed {
		label = "true"
	}
	m.Rejections.WithLabelValues(label).Inc()
}

// ObserveRetry records the status of a retried request.
func (m *Metrics) ObserveRetry(statusCode int) {
	if m == nil {
		return
	}
	m.Retries.WithLabelValues(statusClass(statusCode)).Inc()
}

func statusClass(code int) string {
	switch {
	case code >= 500:
		return "5xx"
	case code >= 400:
		return "4xx"
	case code >= 300:
		return "3xx"
	case code >= 200:
		return "2xx"
	default:
		return "error"
	}
}
