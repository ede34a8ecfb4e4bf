// session/state.go
/* Package session holds the client's view of the current session: the access credential,
the renewal credential and the identity they belong to. Every write goes through the
credential store and the state is then re-read from it, so the store stays the single
source of truth. Observers can subscribe to be told about every change. */
package session

import (
	"context"
	"errors"
	"sync"

	"github.com/deploymenttheory/go-api-http-session/credential"
	"github.com/deploymenttheory/go-api-http-session/credentialstore"
	"github.com/deploymenttheory/go-api-http-session/logger"
	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"
)

// Grant is a credential pair issued by the issuing service together with the identity it
// was issued for.
type Grant struct {
	AccessCredential  string
	RenewalCredential string
	Identity          credential.Identity
}

// Snapshot is an immutable copy of the session state.
type Snapshot struct {
	AccessCredential  string
	RenewalCredential string
	Identity          *credential.Identity
}

// Empty reports whether the snapshot holds no access credential.
func (s Snapshot) Empty() bool {
	return s.AccessCredential == ""
}

// State is the observable session. It is safe for concurrent use.
type State struct {
	store credentialstore.Store
	clock clockwork.Clock
	log   logger.Logger

	writeMu sync.Mutex

	mu   sync.RWMutex
	snap Snapshot

	subsMu sync.Mutex
	subs   map[int]chan Snapshot
	nextID int
}

// Option configures a State.
type Option func(*State)

// WithClock sets the clock used for local expiry checks.
func WithClock(clock clockwork.Clock) Option {
	return func(s *State) {
		s.clock = clock
	}
}

// WithLogger sets the logger.
func WithLogger(log logger.Logger) Option {
	return func(s *State) {
		s.log = log
	}
}

// NewState builds a State backed by store and hydrates it from whatever the store holds.
// A store that cannot be read leaves the state empty; the failure is logged.
func NewState(ctx context.Context, store credentialstore.Store, opts ...Option) (*State, error) {
	if store == nil {
		return nil, errors.New("session: nil credential store")
	}

	s := &State{
		store: store,
		clock: clockwork.NewRealClock(),
		log:   logger.NewNop(),
		subs:  make(map[int]chan Snapshot),
	}
	for _, opt := range opts {
		opt(s)
	}

	s.snap = s.load(ctx)
	if !s.snap.Empty() {
		s.log.Info("Session hydrated from credential store",
			zap.Bool("authenticated", s.IsAuthenticated()),
			zap.Bool("renewable", s.snap.RenewalCredential != ""),
		)
	}
	return s, nil
}

// Clock returns the clock used for expiry checks.
func (s *State) Clock() clockwork.Clock {
	return s.clock
}

// Snapshot returns a copy of the current state.
func (s *State) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return copySnapshot(s.snap)
}

// AccessCredential returns the current access credential, or an empty string.
func (s *State) AccessCredential() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snap.AccessCredential
}

// RenewalCredential returns the current renewal credential, or an empty string.
func (s *State) RenewalCredential() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snap.RenewalCredential
}

// CurrentIdentity returns the identity of the signed in principal, or nil.
func (s *State) CurrentIdentity() *credential.Identity {
	return s.Snapshot().Identity
}

// IsAuthenticated reports whether an access credential is held and has not expired
// according to the local clock.
func (s *State) IsAuthenticated() bool {
	token := s.AccessCredential()
	return token != "" && !credential.IsExpired(token, s.clock.Now())
}

// Set writes grant through the store and then publishes what the store now holds.
func (s *State) Set(ctx context.Context, grant Grant) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	if err := s.store.Set(ctx, grant.AccessCredential, grant.RenewalCredential, grant.Identity); err != nil {
		return err
	}

	s.publish(s.load(ctx))
	return nil
}

// Clear removes the session from the store and empties the state. The in-memory state is
// emptied even when the store fails; the store error is returned.
func (s *State) Clear(ctx context.Context) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	err := s.store.Clear(ctx)
	if err != nil {
		s.log.Warn("Failed to clear credential store", zap.Error(err))
	}

	s.publish(Snapshot{})
	return err
}

// Subscribe returns a channel that receives the current snapshot immediately and then
// every subsequent change. A slow reader only sees the most recent snapshot. The
// returned function cancels the subscription and closes the channel.
func (s *State) Subscribe() (<-chan Snapshot, func()) {
	ch := make(chan Snapshot, 1)

	s.subsMu.Lock()
	id := s.nextID
	s.nextID++
	s.subs[id] = ch
	ch <- s.Snapshot()
	s.subsMu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			s.subsMu.Lock()
			delete(s.subs, id)
			close(ch)
			s.subsMu.Unlock()
		})
	}
	return ch, cancel
}

func (s *State) publish(snap Snapshot) {
	s.mu.Lock()
	s.snap = snap
	s.mu.Unlock()

	s.subsMu.Lock()
	defer s.subsMu.Unlock()
	for _, ch := range s.subs {
		select {
		case <-ch:
		default:
		}
		ch <- copySnapshot(snap)
	}
}

// load reads the session triple from the store. Identity falls back to the access
// credential's claims when the store holds none.
func (s *State) load(ctx context.Context) Snapshot {
	access, err := s.store.Get(ctx)
	if err != nil {
		s.log.Warn("Failed to read access credential from store", zap.Error(err))
		return Snapshot{}
	}
	if access == "" {
		return Snapshot{}
	}

	renewal, err := s.store.GetRenewal(ctx)
	if err != nil {
		s.log.Warn("Failed to read renewal credential from store", zap.Error(err))
		return Snapshot{}
	}

	identity, err := s.store.GetIdentity(ctx)
	if err != nil {
		s.log.Warn("Failed to read identity from store", zap.Error(err))
		return Snapshot{}
	}
	if identity == nil {
		if claims, err := credential.Decode(access); err == nil {
			derived := claims.Identity()
			identity = &derived
		}
	}

	return Snapshot{AccessCredential: access, RenewalCredential: renewal, Identity: identity}
}

func copySnapshot(snap Snapshot) Snapshot {
	if snap.Identity != nil {
		identity := *snap.Identity
		snap.Identity = &identity
	}
	return snap
}
