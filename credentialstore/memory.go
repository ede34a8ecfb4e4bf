// credentialstore/memory.go
package credentialstore

import (
	"context"
	"sync"

	"github.com/deploymenttheory/go-api-http-session/credential"
)

// MemoryStore keeps the session triple in process memory.
type MemoryStore struct {
	mu  sync.RWMutex
	rec record
}

var _ Store = (*MemoryStore)(nil)

// NewMemoryStore returns an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (m *MemoryStore) Get(context.Context) (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.rec.Token, nil
}

func (m *MemoryStore) GetRenewal(context.Context) (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.rec.RefreshToken, nil
}

func (m *MemoryStore) GetIdentity(context.Context) (*credential.Identity, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.rec.User == nil {
		return nil, nil
	}
	identity := *m.rec.User
	return &identity, nil
}

func (m *MemoryStore) Set(_ context.Context, access, renewal string, identity credential.Identity) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rec = record{Token: access, RefreshToken: renewal, User: &identity}
	return nil
}

func (m *MemoryStore) Clear(context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rec = record{}
	return nil
}
