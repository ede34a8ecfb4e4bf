// credential/credential.go
/* Package credential decodes the claims carried by a bearer access credential and decides whether
it has expired locally. Decoding is unverified: the signature segment is never checked, the
claims are only used to schedule the client's own behaviour. Any credential that cannot be
decoded is treated as expired. */
package credential

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ErrMalformedCredential is wrapped by every error returned from Decode.
var ErrMalformedCredential = errors.New("malformed credential")

// Claims is the claim set carried by an access credential.
type Claims struct {
	jwt.RegisteredClaims
	Email string `json:"email,omitempty"`
	Name  string `json:"name,omitempty"`
}

// Identity describes the authenticated principal.
type Identity struct {
	ID          string `json:"id"`
	Email       string `json:"email"`
	DisplayName string `json:"name"`
}

// segmentParser decodes base64url segments with or without padding.
var segmentParser = jwt.NewParser(jwt.WithPaddingAllowed())

// Decode extracts the claims of an access credential without verifying it.
// The credential must have exactly three dot-separated segments and the middle
// segment must decode to a JSON object holding a numeric exp claim.
func Decode(token string) (*Claims, error) {
	parts := strings.Split(token, ".")
	if len(parts) != 3 {
		return nil, fmt.Errorf("%w: expected 3 segments, got %d", ErrMalformedCredential, len(parts))
	}

	payload, err := segmentParser.DecodeSegment(parts[1])
	if err != nil {
		return nil, fmt.Errorf("%w: claims segment: %v", ErrMalformedCredential, err)
	}

	var claims Claims
	if err := json.Unmarshal(payload, &claims); err != nil {
		return nil, fmt.Errorf("%w: claims payload: %v", ErrMalformedCredential, err)
	}

	if claims.ExpiresAt == nil {
		return nil, fmt.Errorf("%w: missing exp claim", ErrMalformedCredential)
	}

	return &claims, nil
}

// IsExpired reports whether the credential is expired at now. The comparison is made
// in milliseconds, so a credential with exp = T is expired from T*1000 ms onward.
// Credentials that fail to decode are always expired.
func IsExpired(token string, now time.Time) bool {
	claims, err := Decode(token)
	if err != nil {
		return true
	}
	return now.UnixMilli() >= claims.ExpiresAt.UnixMilli()
}

// Identity derives the principal described by the claims.
func (c *Claims) Identity() Identity {
	return Identity{
		ID:          c.Subject,
		Email:       c.Email,
		DisplayName: c.Name,
	}
}

// ExpiresIn returns the time remaining until expiry, negative once expired.
func (c *Claims) ExpiresIn(now time.Time) time.Duration {
	if c.ExpiresAt == nil {
		return 0
	}
	return c.ExpiresAt.Sub(now)
}
