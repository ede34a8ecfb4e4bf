// credentialstore/nop.go
package credentialstore

import (
	"context"

	"github.com/deploymenttheory/go-api-http-session/credential"
)

// NopStore is used when no durable medium exists, for example when running
// non-interactively. Reads always report absence and writes are discarded.
type NopStore struct{}

var _ Store = NopStore{}

func (NopStore) Get(context.Context) (string, error)        { return "", nil }
func (NopStore) GetRenewal(context.Context) (string, error) { return "", nil }

func (NopStore) GetIdentity(context.Context) (*credential.Identity, error) { return nil, nil }

func (NopStore) Set(context.Context, string, string, credential.Identity) error { return nil }

func (NopStore) Clear(context.Context) error { return nil }
