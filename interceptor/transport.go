// interceptor/transport.go
/* Package interceptor decorates outbound requests with the session's access credential and
recovers from credential rejections. A request is sent with the current credential when one
is held and has not expired locally. A 401 asks the refresh coordinator for a new credential
and the request is re-sent exactly once. When renewal fails the session has already been torn
down and the caller receives a refresh.SessionExpiredError. */
package interceptor

import (
	"context"
	"errors"
	"io"
	"net/http"

	"github.com/deploymenttheory/go-api-http-session/credential"
	"github.com/deploymenttheory/go-api-http-session/headers"
	"github.com/deploymenttheory/go-api-http-session/logger"
	"github.com/deploymenttheory/go-api-http-session/metrics"
	"github.com/deploymenttheory/go-api-http-session/refresh"
	"github.com/deploymenttheory/go-api-http-session/response"
	"github.com/deploymenttheory/go-api-http-session/session"
	"github.com/deploymenttheory/go-api-http-session/status"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// maxDrainBytes caps how much of a discarded response is read so the connection can be reused.
const maxDrainBytes = 64 << 10

// Renewals hands out fresh access credentials. *refresh.Coordinator implements it.
type Renewals interface {
	Renew(ctx context.Context) (string, error)
}

// Transport is an http.RoundTripper that manages the bearer credential of every request.
type Transport struct {
	base     http.RoundTripper
	state    *session.State
	renewals Renewals
	log      logger.Logger
	metrics  *metrics.Metrics
	hosts    map[string]struct{}
}

// Option configures a Transport.
type Option func(*Transport)

// WithLogger sets the logger.
func WithLogger(log logger.Logger) Option {
	return func(t *Transport) {
		t.log = log
	}
}

// WithMetrics sets the collectors updated on rejections and retries.
func WithMetrics(m *metrics.Metrics) Option {
	return func(t *Transport) {
		t.metrics = m
	}
}

// WithAllowedHosts restricts credential handling to requests for the given hosts
// (host[:port] as in URL.Host). Requests to any other host pass through untouched.
// With no hosts configured every request is handled.
func WithAllowedHosts(hosts ...string) Option {
	return func(t *Transport) {
		if len(hosts) == 0 {
			return
		}
		t.hosts = make(map[string]struct{}, len(hosts))
		for _, h := range hosts {
			t.hosts[h] = struct{}{}
		}
	}
}

// NewTransport wraps base. A nil base uses http.DefaultTransport.
func NewTransport(base http.RoundTripper, state *session.State, renewals Renewals, opts ...Option) *Transport {
	if base == nil {
		base = http.DefaultTransport
	}
	t := &Transport{
		base:     base,
		state:    state,
		renewals: renewals,
		log:      logger.NewNop(),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// RoundTrip implements http.RoundTripper.
func (t *Transport) RoundTrip(req *http.Request) (*http.Response, error) {
	if !t.handles(req) {
		return t.base.RoundTrip(req)
	}

	ctx := req.Context()
	method, url := req.Method, req.URL.String()
	requestID := req.Header.Get(headers.RequestIDHeader)
	if requestID == "" {
		requestID = uuid.NewString()
	}

	token, attached := t.currentCredential()
	first := req.Clone(ctx)
	headers.SetRequestID(first, requestID)
	if attached {
		headers.SetAuthorization(first, token)
	}

	t.log.LogRequestStart("request_start", requestID, method, url, first.Header)
	start := t.state.Clock().Now()

	resp, err := t.base.RoundTrip(first)
	if err != nil {
		return nil, err
	}
	if !status.IsAuthenticationRejection(resp.StatusCode) {
		t.log.LogRequestEnd("request_end", method, url, resp.StatusCode, t.state.Clock().Since(start))
		return resp, nil
	}

	t.metrics.ObserveRejection(attached)
	t.log.LogAuthTokenError("credential_rejected", method, url, resp.StatusCode, nil)

	if req.Body != nil && req.Body != http.NoBody && req.GetBody == nil {
		t.log.Warn("Rejected request has a body that cannot be replayed; not retrying",
			zap.String("method", method),
			zap.String("url", url),
		)
		return resp, nil
	}

	renewed, err := t.renewals.Renew(ctx)
	if err != nil {
		var expired *refresh.SessionExpiredError
		if errors.As(err, &expired) {
			rejection := response.HandleAPIErrorResponse(resp, t.log)
			resp.Body.Close()
			return nil, expired.WithRejection(resp.StatusCode, rejection)
		}
		drain(resp)
		return nil, err
	}
	drain(resp)

	retry, err := replay(req, requestID, renewed)
	if err != nil {
		return nil, err
	}

	t.log.LogRetryAttempt("credential_retry", method, url, 1, "access credential renewed", nil)
	resp, err = t.base.RoundTrip(retry)
	if err != nil {
		t.metrics.ObserveRetry(0)
		return nil, err
	}

	t.metrics.ObserveRetry(resp.StatusCode)
	t.log.LogRequestEnd("request_end", method, url, resp.StatusCode, t.state.Clock().Since(start))
	return resp, nil
}

func (t *Transport) handles(req *http.Request) bool {
	if t.hosts == nil {
		return true
	}
	_, ok := t.hosts[req.URL.Host]
	return ok
}

// currentCredential returns the access credential to attach, if any. A held credential that
// has expired locally is not attached.
func (t *Transport) currentCredential() (string, bool) {
	token := t.state.AccessCredential()
	if token == "" || credential.IsExpired(token, t.state.Clock().Now()) {
		return "", false
	}
	return token, true
}

// replay rebuilds req with a fresh body and the renewed credential.
func replay(req *http.Request, requestID, token string) (*http.Request, error) {
	retry := req.Clone(req.Context())
	if req.GetBody != nil {
		body, err := req.GetBody()
		if err != nil {
			return nil, err
		}
		retry.Body = body
	}
	headers.SetRequestID(retry, requestID)
	headers.SetAuthorization(retry, token)
	return retry, nil
}

func drain(resp *http.Response) {
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxDrainBytes))
	resp.Body.Close()
}
