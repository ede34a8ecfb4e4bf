// credentialstore/redis.go
package credentialstore

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/deploymenttheory/go-api-http-session/credential"
	"github.com/redis/go-redis/v9"
)

// DefaultRedisKeyPrefix is prepended to the three entry names.
const DefaultRedisKeyPrefix = "session:"

// RedisStore keeps the session triple under three keys sharing a prefix. Set and
// Clear run inside MULTI/EXEC so the keys change together.
type RedisStore struct {
	client redis.UniversalClient
	prefix string
	ttl    time.Duration
}

var _ Store = (*RedisStore)(nil)

// RedisOption configures a RedisStore.
type RedisOption func(*RedisStore)

// WithKeyPrefix overrides DefaultRedisKeyPrefix.
func WithKeyPrefix(prefix string) RedisOption {
	return func(r *RedisStore) {
		r.prefix = prefix
	}
}

// WithTTL expires the stored entries after ttl. Zero keeps them until cleared.
func WithTTL(ttl time.Duration) RedisOption {
	return func(r *RedisStore) {
		r.ttl = ttl
	}
}

// NewRedisStore wraps an existing redis client.
func NewRedisStore(client redis.UniversalClient, opts ...RedisOption) *RedisStore {
	r := &RedisStore{
		client: client,
		prefix: DefaultRedisKeyPrefix,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *RedisStore) key(name string) string {
	return r.prefix + name
}

func (r *RedisStore) getString(ctx context.Context, name string) (string, error) {
	val, err := r.client.Get(ctx, r.key(name)).Result()
	if errors.Is(err, redis.Nil) {
		return "", nil
	}
	if err != nil {
		return "", &StoreError{Op: "get " + name, Backend: "redis", Err: errors.Join(ErrStoreUnavailable, err)}
	}
	return val, nil
}

func (r *RedisStore) Get(ctx context.Context) (string, error) {
	return r.getString(ctx, KeyAccessCredential)
}

func (r *RedisStore) GetRenewal(ctx context.Context) (string, error) {
	return r.getString(ctx, KeyRenewalCredential)
}

func (r *RedisStore) GetIdentity(ctx context.Context) (*credential.Identity, error) {
	raw, err := r.getString(ctx, KeyIdentity)
	if err != nil || raw == "" {
		return nil, err
	}
	var identity credential.Identity
	if err := json.Unmarshal([]byte(raw), &identity); err != nil {
		return nil, &StoreError{Op: "get " + KeyIdentity, Backend: "redis", Err: err}
	}
	return &identity, nil
}

func (r *RedisStore) Set(ctx context.Context, access, renewal string, identity credential.Identity) error {
	user, err := json.Marshal(identity)
	if err != nil {
		return &StoreError{Op: "set", Backend: "redis", Err: err}
	}

	_, err = r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, r.key(KeyAccessCredential), access, r.ttl)
		pipe.Set(ctx, r.key(KeyRenewalCredential), renewal, r.ttl)
		pipe.Set(ctx, r.key(KeyIdentity), user, r.ttl)
		return nil
	})
	if err != nil {
		return &StoreError{Op: "set", Backend: "redis", Err: errors.Join(ErrStoreUnavailable, err)}
	}
	return nil
}

func (r *RedisStore) Clear(ctx context.Context) error {
	_, err := r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, r.key(KeyAccessCredential), r.key(KeyRenewalCredential), r.key(KeyIdentity))
		return nil
	})
	if err != nil {
		return &StoreError{Op: "clear", Backend: "redis", Err: errors.Join(ErrStoreUnavailable, err)}
	}
	return nil
}
