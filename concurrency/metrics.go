// concurrency/metrics.go
package concurrency

import (
	"net/http"
	"sync"
	"time"
)

// ConcurrencyMetrics captures how the client's requests used their permits.
type ConcurrencyMetrics struct {
	TotalRequests        int64         // Permits granted
	TotalTimeouts        int64         // Permit waits that gave up
	TotalRateLimitErrors int64         // 429 responses
	TotalServerErrors    int64         // 5xx responses
	PermitWaitTime       time.Duration // Total time spent waiting for permits
	ResponseTime         struct {
		Total time.Duration
		Count int64
	}
	lock sync.Mutex
}

// MetricsSnapshot is a copy of ConcurrencyMetrics safe to read without locking.
type MetricsSnapshot struct {
	TotalRequests        int64
	TotalTimeouts        int64
	TotalRateLimitErrors int64
	TotalServerErrors    int64
	PermitWaitTime       time.Duration
	AverageResponseTime  time.Duration
}

func (m *ConcurrencyMetrics) recordAcquire(waited time.Duration) {
	m.lock.Lock()
	defer m.lock.Unlock()
	m.TotalRequests++
	m.PermitWaitTime += waited
}

func (m *ConcurrencyMetrics) recordTimeout() {
	m.lock.Lock()
	defer m.lock.Unlock()
	m.TotalTimeouts++
}

// RecordResponse updates response counters from a completed round trip.
func (m *ConcurrencyMetrics) RecordResponse(resp *http.Response, responseTime time.Duration) {
	m.lock.Lock()
	defer m.lock.Unlock()

	m.ResponseTime.Total += responseTime
	m.ResponseTime.Count++

	if resp == nil {
		return
	}
	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		m.TotalRateLimitErrors++
	case resp.StatusCode >= 500 && resp.StatusCode < 600:
		m.TotalServerErrors++
	}
}

// Snapshot returns a consistent copy of the counters.
func (m *ConcurrencyMetrics) Snapshot() MetricsSnapshot {
	m.lock.Lock()
	defer m.lock.Unlock()

	snap := MetricsSnapshot{
		TotalRequests:        m.TotalRequests,
		TotalTimeouts:        m.TotalTimeouts,
		TotalRateLimitErrors: m.TotalRateLimitErrors,
		TotalServerErrors:    m.TotalServerErrors,
		PermitWaitTime:       m.PermitWaitTime,
	}
	if m.ResponseTime.Count > 0 {
		snap.AverageResponseTime = m.ResponseTime.Total / time.Duration(m.ResponseTime.Count)
	}
	return snap
}
