// concurrency/concurrency_test.go
package concurrency

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/deploymenttheory/go-api-http-session/headers"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"
)

func TestNewConcurrencyHandler_ClampsLimit(t *testing.T) {
	tests := []struct {
		name  string
		limit int
		want  int
	}{
		{"zero", 0, MinConcurrency},
		{"negative", -3, MinConcurrency},
		{"in range", 5, 5},
		{"too large", 1000, MaxConcurrency},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, NewConcurrencyHandler(tt.limit, nil, 0).Limit())
		})
	}
}

func TestAcquireAndRelease(t *testing.T) {
	ch := NewConcurrencyHandler(1, nil, 20*time.Millisecond)

	ctx, id, err := ch.AcquireConcurrencyPermit(context.Background())
	require.NoError(t, err)
	got, ok := RequestIDFromContext(ctx)
	require.True(t, ok)
	assert.Equal(t, id, got)
	assert.Equal(t, 1, ch.InFlight())

	_, _, err = ch.AcquireConcurrencyPermit(context.Background())
	assert.ErrorIs(t, err, context.DeadlineExceeded, "limit reached")

	ch.ReleaseConcurrencyPermit(id)
	assert.Equal(t, 0, ch.InFlight())

	snap := ch.Metrics.Snapshot()
	assert.Equal(t, int64(1), snap.TotalRequests)
	assert.Equal(t, int64(1), snap.TotalTimeouts)
}

func TestAcquire_ContextCancelled(t *testing.T) {
	ch := NewConcurrencyHandler(1, nil, time.Minute)
	_, id, err := ch.AcquireConcurrencyPermit(context.Background())
	require.NoError(t, err)
	defer ch.ReleaseConcurrencyPermit(id)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, _, err = ch.AcquireConcurrencyPermit(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestTransport_BoundsInFlightRequests(t *testing.T) {
	const limit = 2
	var current, peak atomic.Int32
	var sawRequestID atomic.Bool

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := current.Add(1)
		defer current.Add(-1)
		for {
			p := peak.Load()
			if n <= p || peak.CompareAndSwap(p, n) {
				break
			}
		}
		if r.Header.Get(headers.RequestIDHeader) != "" {
			sawRequestID.Store(true)
		}
		time.Sleep(10 * time.Millisecond)
		if r.URL.Path == "/busy" {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	handler := NewConcurrencyHandler(limit, nil, time.Second)
	client := &http.Client{Transport: &Transport{Handler: handler}}

	var g errgroup.Group
	for i := 0; i < 8; i++ {
		path := "/fail"
		if i%2 == 0 {
			path = "/busy"
		}
		g.Go(func() error {
			resp, err := client.Get(srv.URL + path)
			if err != nil {
				return err
			}
			return resp.Body.Close()
		})
	}
	require.NoError(t, g.Wait())

	assert.LessOrEqual(t, peak.Load(), int32(limit))
	assert.True(t, sawRequestID.Load())
	assert.Equal(t, 0, handler.InFlight())

	snap := handler.Metrics.Snapshot()
	assert.Equal(t, int64(8), snap.TotalRequests)
	assert.Equal(t, int64(4), snap.TotalRateLimitErrors)
	assert.Equal(t, int64(4), snap.TotalServerErrors)
	assert.Greater(t, snap.AverageResponseTime, time.Duration(0))
}
