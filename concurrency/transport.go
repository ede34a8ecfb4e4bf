// concurrency/transport.go
package concurrency

import (
	"net/http"
	"time"

	"github.com/deploymenttheory/go-api-http-session/headers"
)

// Transport holds a permit from handler for the duration of every round trip made through base.
type Transport struct {
	Base    http.RoundTripper
	Handler *ConcurrencyHandler
}

// RoundTrip implements http.RoundTripper.
func (t *Transport) RoundTrip(req *http.Request) (*http.Response, error) {
	base := t.Base
	if base == nil {
		base = http.DefaultTransport
	}

	ctx, requestID, err := t.Handler.AcquireConcurrencyPermit(req.Context())
	if err != nil {
		return nil, err
	}
	defer t.Handler.ReleaseConcurrencyPermit(requestID)

	out := req.WithContext(ctx)
	if out.Header.Get(headers.RequestIDHeader) == "" {
		out = out.Clone(ctx)
		headers.SetRequestID(out, requestID.String())
	}

	start := time.Now()
	resp, err := base.RoundTrip(out)
	t.Handler.Metrics.RecordResponse(resp, time.Since(start))
	return resp, err
}
