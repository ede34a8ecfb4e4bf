// metrics/metrics_test.go
package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetrics_Observe(t *testing.T) {
	m := New()

	m.ObserveRenewal(OutcomeSuccess)
	m.ObserveRenewal(OutcomeJoined)
	m.ObserveRenewal(OutcomeJoined)
	m.ObserveRound(false, 3)
	m.ObserveRejection(true)
	m.ObserveRetry(200)
	m.ObserveRetry(401)
	m.ObserveRetry(0)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.Renewals.WithLabelValues(OutcomeSuccess)))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.Renewals.WithLabelValues(OutcomeJoined)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.SessionExpiries))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Rejections.WithLabelValues("true")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Retries.WithLabelValues("2xx")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Retries.WithLabelValues("4xx")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Retries.WithLabelValues("error")))
}

func TestMetrics_NilIsSafe(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.ObserveRenewal(OutcomeFailure)
		m.ObserveRound(true, 1)
		m.ObserveRejection(false)
		m.ObserveRetry(500)
	})
}

func TestMetrics_RegisterTwice(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New()

	require.NoError(t, m.Register(reg))
	assert.NoError(t, m.Register(reg), "registering the same collectors twice is tolerated")

	families, err := reg.Gather()
	require.NoError(t, err)
	assert.NotNil(t, families)
}
