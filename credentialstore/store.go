// credentialstore/store.go
/* Package credentialstore persists the session triple: the access credential, the renewal
credential and the identity of the principal. All three entries are written together and
cleared together. A read that finds nothing returns the zero value and no error. */
package credentialstore

import (
	"context"
	"errors"
	"fmt"

	"github.com/deploymenttheory/go-api-http-session/credential"
)

const (
	// KeyAccessCredential names the stored access credential entry.
	KeyAccessCredential = "token"
	// KeyRenewalCredential names the stored renewal credential entry.
	KeyRenewalCredential = "refreshToken"
	// KeyIdentity names the stored identity entry.
	KeyIdentity = "user"
)

// ErrStoreUnavailable is returned when the backing medium cannot be reached.
var ErrStoreUnavailable = errors.New("credential store unavailable")

// Store is the durable home of the session triple.
type Store interface {
	Get(ctx context.Context) (string, error)
	GetRenewal(ctx context.Context) (string, error)
	GetIdentity(ctx context.Context) (*credential.Identity, error)
	Set(ctx context.Context, access, renewal string, identity credential.Identity) error
	Clear(ctx context.Context) error
}

// StoreError describes a failed store operation.
type StoreError struct {
	Op      string
	Backend string
	Err     error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("credential store %s %s: %v", e.Backend, e.Op, e.Err)
}

func (e *StoreError) Unwrap() error {
	return e.Err
}

// record is the serialised form shared by the file and redis backends.
type record struct {
	Token        string               `json:"token,omitempty"`
	RefreshToken string               `json:"refreshToken,omitempty"`
	User         *credential.Identity `json:"user,omitempty"`
}
