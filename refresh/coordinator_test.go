// refresh/coordinator_test.go
package refresh

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/deploymenttheory/go-api-http-session/credential"
	"github.com/deploymenttheory/go-api-http-session/credentialstore"
	"github.com/deploymenttheory/go-api-http-session/internal/unsigned"
	"github.com/deploymenttheory/go-api-http-session/metrics"
	"github.com/deploymenttheory/go-api-http-session/mocklogger"
	"github.com/deploymenttheory/go-api-http-session/session"
	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"
)

var testIdentity = credential.Identity{ID: "1", Email: "test@example.com", DisplayName: "Test User"}

// gatedRenewer blocks every Refresh call until release is closed.
type gatedRenewer struct {
	release chan struct{}
	grant   session.Grant
	err     error

	calls atomic.Int32
	mu    sync.Mutex
	seen  []string
}

func newGatedRenewer(grant session.Grant, err error) *gatedRenewer {
	return &gatedRenewer{release: make(chan struct{}), grant: grant, err: err}
}

func (g *gatedRenewer) Refresh(ctx context.Context, renewal string) (session.Grant, error) {
	g.calls.Add(1)
	g.mu.Lock()
	g.seen = append(g.seen, renewal)
	g.mu.Unlock()

	select {
	case <-g.release:
	case <-ctx.Done():
		return session.Grant{}, ctx.Err()
	}
	return g.grant, g.err
}

// countingStore counts Clear calls and can be told to fail writes.
type countingStore struct {
	credentialstore.Store
	clears  atomic.Int32
	failSet atomic.Bool
}

func (s *countingStore) Set(ctx context.Context, access, renewal string, identity credential.Identity) error {
	if s.failSet.Load() {
		return errors.New("store unavailable")
	}
	return s.Store.Set(ctx, access, renewal, identity)
}

func (s *countingStore) Clear(ctx context.Context) error {
	s.clears.Add(1)
	return s.Store.Clear(ctx)
}

type fixture struct {
	clock clockwork.FakeClock
	store *countingStore
	state *session.State
}

func newFixture(t *testing.T, renewal string) *fixture {
	t.Helper()
	clock := clockwork.NewFakeClockAt(time.Unix(1700000000, 0))
	store := &countingStore{Store: credentialstore.NewMemoryStore()}
	state, err := session.NewState(context.Background(), store, session.WithClock(clock))
	require.NoError(t, err)

	access := unsigned.MustMint(testIdentity, clock.Now().Add(-2*time.Hour), time.Hour)
	require.NoError(t, state.Set(context.Background(), session.Grant{
		AccessCredential:  access,
		RenewalCredential: renewal,
		Identity:          testIdentity,
	}))
	return &fixture{clock: clock, store: store, state: state}
}

func (f *fixture) grant(renewal string) session.Grant {
	return session.Grant{
		AccessCredential:  unsigned.MustMint(testIdentity, f.clock.Now(), time.Hour),
		RenewalCredential: renewal,
		Identity:          testIdentity,
	}
}

func TestCoordinator_CoalescesConcurrentRequests(t *testing.T) {
	const callers = 8
	f := newFixture(t, "refresh-1-1")
	grant := f.grant("refresh-1-2")
	renewer := newGatedRenewer(grant, nil)
	c := NewCoordinator(f.state, renewer)

	ctx := context.Background()
	tokens := make([]string, callers)
	var g errgroup.Group
	for i := 0; i < callers; i++ {
		i := i
		g.Go(func() error {
			token, err := c.Renew(ctx)
			tokens[i] = token
			return err
		})
	}

	require.Eventually(t, func() bool {
		return c.Status().Waiters == callers
	}, time.Second, time.Millisecond)
	assert.Equal(t, Renewing, c.Status().Phase)

	close(renewer.release)
	require.NoError(t, g.Wait())

	assert.Equal(t, int32(1), renewer.calls.Load(), "exactly one renewal call per contended window")
	assert.Equal(t, []string{"refresh-1-1"}, renewer.seen)
	for _, token := range tokens {
		assert.Equal(t, grant.AccessCredential, token)
	}
	assert.Equal(t, grant.AccessCredential, f.state.AccessCredential())
	assert.Equal(t, "refresh-1-2", f.state.RenewalCredential())
	assert.True(t, f.state.IsAuthenticated())
	assert.Equal(t, Status{Phase: Idle}, c.Status())
}

func TestCoordinator_BackToBackRequestsResolveIdentically(t *testing.T) {
	f := newFixture(t, "r1")
	renewer := newGatedRenewer(f.grant("r2"), nil)
	c := NewCoordinator(f.state, renewer)

	first := c.RequestRenewal()
	second := c.RequestRenewal()
	assert.Equal(t, Status{Phase: Renewing, Waiters: 2}, c.Status())
	close(renewer.release)

	ctx := context.Background()
	a, err := first.Wait(ctx)
	require.NoError(t, err)
	b, err := second.Wait(ctx)
	require.NoError(t, err)
	assert.Equal(t, a, b)
	assert.Equal(t, int32(1), renewer.calls.Load())
}

func TestCoordinator_FailureTearsDownOnce(t *testing.T) {
	const callers = 5
	f := newFixture(t, "r1")
	rejected := errors.New("issuer rejected renewal credential")
	renewer := newGatedRenewer(session.Grant{}, rejected)

	var hookCalls atomic.Int32
	var hookErr error
	c := NewCoordinator(f.state, renewer, WithOnSessionExpired(func(err error) {
		hookCalls.Add(1)
		hookErr = err
	}))

	futures := make([]*Future, callers)
	for i := range futures {
		futures[i] = c.RequestRenewal()
	}
	close(renewer.release)

	for _, fut := range futures {
		token, err := fut.Wait(context.Background())
		assert.Empty(t, token)
		require.ErrorIs(t, err, ErrSessionExpired)
		assert.ErrorIs(t, err, rejected)

		var expired *SessionExpiredError
		require.ErrorAs(t, err, &expired)
		assert.Equal(t, rejected, expired.Err)
	}

	assert.Equal(t, int32(1), renewer.calls.Load())
	assert.Equal(t, int32(1), f.store.clears.Load(), "session cleared exactly once")
	assert.Equal(t, int32(1), hookCalls.Load())
	assert.ErrorIs(t, hookErr, ErrSessionExpired)
	assert.False(t, f.state.IsAuthenticated())
	assert.Nil(t, f.state.CurrentIdentity())
	assert.Empty(t, f.state.RenewalCredential())
	assert.Equal(t, Idle, c.Status().Phase)
}

func TestCoordinator_NoRenewalCredential(t *testing.T) {
	f := newFixture(t, "")
	renewer := newGatedRenewer(f.grant("r2"), nil)
	c := NewCoordinator(f.state, renewer)

	_, err := c.Renew(context.Background())

	require.ErrorIs(t, err, ErrSessionExpired)
	assert.ErrorIs(t, err, ErrNoRenewalCredential)
	assert.Equal(t, int32(0), renewer.calls.Load())
	assert.True(t, f.state.Snapshot().Empty())
}

func TestCoordinator_StoreWriteFailureExpiresSession(t *testing.T) {
	f := newFixture(t, "r1")
	renewer := newGatedRenewer(f.grant("r2"), nil)
	close(renewer.release)
	f.store.failSet.Store(true)
	c := NewCoordinator(f.state, renewer)

	_, err := c.Renew(context.Background())

	assert.ErrorIs(t, err, ErrSessionExpired)
	assert.True(t, f.state.Snapshot().Empty())
}

func TestCoordinator_EmptyGrantExpiresSession(t *testing.T) {
	f := newFixture(t, "r1")
	renewer := newGatedRenewer(session.Grant{RenewalCredential: "r2"}, nil)
	close(renewer.release)
	c := NewCoordinator(f.state, renewer)

	_, err := c.Renew(context.Background())

	assert.ErrorIs(t, err, ErrSessionExpired)
}

func TestCoordinator_AbandonedWaitDoesNotCancelRenewal(t *testing.T) {
	f := newFixture(t, "r1")
	grant := f.grant("r2")
	renewer := newGatedRenewer(grant, nil)
	c := NewCoordinator(f.state, renewer)

	ctx, cancel := context.WithCancel(context.Background())
	fut := c.RequestRenewal()
	cancel()
	_, err := fut.Wait(ctx)
	assert.ErrorIs(t, err, context.Canceled)

	close(renewer.release)
	require.Eventually(t, func() bool {
		return c.Status().Phase == Idle
	}, time.Second, time.Millisecond)
	assert.Equal(t, grant.AccessCredential, f.state.AccessCredential())
}

func TestCoordinator_RenewalTimeout(t *testing.T) {
	f := newFixture(t, "r1")
	renewer := newGatedRenewer(f.grant("r2"), nil)
	c := NewCoordinator(f.state, renewer, WithRenewalTimeout(10*time.Millisecond))

	_, err := c.Renew(context.Background())

	require.ErrorIs(t, err, ErrSessionExpired)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.True(t, f.state.Snapshot().Empty())
}

func TestCoordinator_SequentialRoundsUseLatestRenewalCredential(t *testing.T) {
	f := newFixture(t, "r1")
	calls := 0
	renewer := RenewerFunc(func(ctx context.Context, renewal string) (session.Grant, error) {
		calls++
		assert.Equal(t, []string{"r1", "r2"}[calls-1], renewal)
		return f.grant([]string{"r2", "r3"}[calls-1]), nil
	})
	c := NewCoordinator(f.state, renewer)

	_, err := c.Renew(context.Background())
	require.NoError(t, err)
	_, err = c.Renew(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 2, calls)
	assert.Equal(t, "r3", f.state.RenewalCredential())
}

func TestCoordinator_LogsAndMetrics(t *testing.T) {
	f := newFixture(t, "r1")
	renewer := newGatedRenewer(f.grant("r2"), nil)
	m := metrics.New()
	log := mocklogger.NewMockLogger()
	log.On("LogRenewal", "credential_renewal", metrics.OutcomeSuccess, 3, mock.Anything, nil).Return()

	c := NewCoordinator(f.state, renewer, WithLogger(log), WithMetrics(m))
	futures := []*Future{c.RequestRenewal(), c.RequestRenewal(), c.RequestRenewal()}
	close(renewer.release)
	for _, fut := range futures {
		_, err := fut.Wait(context.Background())
		require.NoError(t, err)
	}

	log.AssertExpectations(t)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Renewals.WithLabelValues(metrics.OutcomeSuccess)))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.Renewals.WithLabelValues(metrics.OutcomeJoined)))
	assert.Equal(t, 0.0, testutil.ToFloat64(m.SessionExpiries))
}

func TestSessionExpiredError(t *testing.T) {
	cause := errors.New("boom")
	base := &SessionExpiredError{Err: cause}
	withStatus := base.WithRejection(401, nil)

	assert.Equal(t, "session expired: renewal failed: boom", base.Error())
	assert.Equal(t, "session expired after status 401: renewal failed: boom", withStatus.Error())
	assert.Zero(t, base.StatusCode, "WithRejection copies")
	assert.ErrorIs(t, withStatus, ErrSessionExpired)
	assert.ErrorIs(t, withStatus, cause)
	assert.Equal(t, "renewing", Renewing.String())
	assert.Equal(t, "idle", Idle.String())
}
