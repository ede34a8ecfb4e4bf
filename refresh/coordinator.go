// refresh/coordinator.go
/* Package refresh coalesces credential renewals. The Coordinator is either idle or renewing;
while renewing it owns exactly one pending renewal that carries the callers waiting on it.
The first caller to ask while idle starts the single renewal call; every caller that asks
before it settles is queued behind it and receives the same outcome, in arrival order. */
package refresh

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/deploymenttheory/go-api-http-session/logger"
	"github.com/deploymenttheory/go-api-http-session/metrics"
	"github.com/deploymenttheory/go-api-http-session/session"
	"go.uber.org/zap"
)

// DefaultRenewalTimeout bounds a single renewal call.
const DefaultRenewalTimeout = 30 * time.Second

// Renewer exchanges a renewal credential for a new grant.
type Renewer interface {
	Refresh(ctx context.Context, renewalCredential string) (session.Grant, error)
}

// RenewerFunc adapts a function to the Renewer interface.
type RenewerFunc func(ctx context.Context, renewalCredential string) (session.Grant, error)

// Refresh calls f.
func (f RenewerFunc) Refresh(ctx context.Context, renewalCredential string) (session.Grant, error) {
	return f(ctx, renewalCredential)
}

// Phase is the coordinator's state.
type Phase int

const (
	// Idle means no renewal is in flight.
	Idle Phase = iota
	// Renewing means one renewal call is outstanding.
	Renewing
)

func (p Phase) String() string {
	if p == Renewing {
		return "renewing"
	}
	return "idle"
}

// Status describes the coordinator at a point in time.
type Status struct {
	Phase   Phase
	Waiters int
}

type result struct {
	token string
	err   error
}

// pendingRenewal is the single in-flight renewal and the callers queued on it.
type pendingRenewal struct {
	started time.Time
	waiters []chan result
}

// Coordinator guarantees at most one renewal call is outstanding at a time.
type Coordinator struct {
	state     *session.State
	renewer   Renewer
	log       logger.Logger
	metrics   *metrics.Metrics
	timeout   time.Duration
	onExpired func(error)

	mu      sync.Mutex
	pending *pendingRenewal
}

// Option configures a Coordinator.
type Option func(*Coordinator)

// WithLogger sets the logger.
func WithLogger(log logger.Logger) Option {
	return func(c *Coordinator) {
		c.log = log
	}
}

// WithMetrics sets the collectors updated on every renewal.
func WithMetrics(m *metrics.Metrics) Option {
	return func(c *Coordinator) {
		c.metrics = m
	}
}

// WithRenewalTimeout bounds each renewal call. Non-positive values keep the default.
func WithRenewalTimeout(d time.Duration) Option {
	return func(c *Coordinator) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// WithOnSessionExpired registers a hook run once per failed renewal round, after the
// session has been cleared and before waiters are released.
func WithOnSessionExpired(fn func(error)) Option {
	return func(c *Coordinator) {
		c.onExpired = fn
	}
}

// NewCoordinator builds an idle Coordinator that renews the session held by state.
func NewCoordinator(state *session.State, renewer Renewer, opts ...Option) *Coordinator {
	c := &Coordinator{
		state:   state,
		renewer: renewer,
		log:     logger.NewNop(),
		timeout: DefaultRenewalTimeout,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Future is the pending outcome of a renewal request.
type Future struct {
	ch <-chan result
}

// Wait blocks until the renewal round settles or ctx is done. Abandoning a wait does not
// affect the renewal.
func (f *Future) Wait(ctx context.Context) (string, error) {
	select {
	case r := <-f.ch:
		return r.token, r.err
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

// RequestRenewal returns a future for a fresh access credential. It starts a renewal call
// when idle and otherwise queues the caller behind the one in flight.
func (c *Coordinator) RequestRenewal() *Future {
	ch := make(chan result, 1)

	c.mu.Lock()
	if c.pending != nil {
		c.pending.waiters = append(c.pending.waiters, ch)
		waiters := len(c.pending.waiters)
		c.mu.Unlock()

		c.metrics.ObserveRenewal(metrics.OutcomeJoined)
		c.log.Debug("Joined in-flight credential renewal", zap.Int("waiters", waiters))
		return &Future{ch: ch}
	}

	c.pending = &pendingRenewal{
		started: c.state.Clock().Now(),
		waiters: []chan result{ch},
	}
	renewal := c.state.RenewalCredential()
	c.mu.Unlock()

	c.log.Debug("Starting credential renewal")
	go c.renew(renewal)

	return &Future{ch: ch}
}

// Renew requests a renewal and waits for it.
func (c *Coordinator) Renew(ctx context.Context) (string, error) {
	return c.RequestRenewal().Wait(ctx)
}

// Status reports the current phase and the number of queued callers.
func (c *Coordinator) Status() Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.pending == nil {
		return Status{Phase: Idle}
	}
	return Status{Phase: Renewing, Waiters: len(c.pending.waiters)}
}

// renew performs the single renewal call of a round and settles it.
func (c *Coordinator) renew(renewal string) {
	ctx, cancel := context.WithTimeout(context.Background(), c.timeout)
	defer cancel()

	token, err := c.exchange(ctx, renewal)
	if err != nil {
		c.fail(context.WithoutCancel(ctx), err)
		return
	}
	c.succeed(token)
}

func (c *Coordinator) exchange(ctx context.Context, renewal string) (string, error) {
	if renewal == "" {
		return "", ErrNoRenewalCredential
	}

	grant, err := c.renewer.Refresh(ctx, renewal)
	if err != nil {
		return "", err
	}
	if grant.AccessCredential == "" {
		return "", fmt.Errorf("renewal response carried no access credential")
	}

	if err := c.state.Set(ctx, grant); err != nil {
		return "", fmt.Errorf("storing renewed credentials: %w", err)
	}
	return grant.AccessCredential, nil
}

func (c *Coordinator) succeed(token string) {
	round := c.settle()

	elapsed := c.state.Clock().Since(round.started)
	c.metrics.ObserveRenewal(metrics.OutcomeSuccess)
	c.metrics.ObserveRound(true, len(round.waiters))
	c.log.LogRenewal("credential_renewal", metrics.OutcomeSuccess, len(round.waiters), elapsed, nil)

	for _, ch := range round.waiters {
		ch <- result{token: token}
	}
}

func (c *Coordinator) fail(ctx context.Context, cause error) {
	if err := c.state.Clear(ctx); err != nil {
		c.log.Warn("Session cleared in memory but credential store clear failed", zap.Error(err))
	}

	round := c.settle()

	elapsed := c.state.Clock().Since(round.started)
	c.metrics.ObserveRenewal(metrics.OutcomeFailure)
	c.metrics.ObserveRound(false, len(round.waiters))
	c.log.LogRenewal("credential_renewal", metrics.OutcomeFailure, len(round.waiters), elapsed, cause)

	expired := &SessionExpiredError{Err: cause}
	if c.onExpired != nil {
		c.onExpired(expired)
	}

	for _, ch := range round.waiters {
		ch <- result{err: expired}
	}
}

// settle returns the coordinator to idle and hands back the round that was in flight.
func (c *Coordinator) settle() *pendingRenewal {
	c.mu.Lock()
	defer c.mu.Unlock()
	round := c.pending
	c.pending = nil
	return round
}
