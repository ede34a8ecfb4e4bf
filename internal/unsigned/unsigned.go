// internal/unsigned/unsigned.go
// Package unsigned mints alg "none" access credentials. It backs the mock issuing service
// and the package tests; nothing in the client path depends on it.
package unsigned

import (
	"time"

	"github.com/deploymenttheory/go-api-http-session/credential"
	"github.com/golang-jwt/jwt/v5"
)

// Mint returns an unsigned credential for identity, issued at issuedAt and expiring ttl later.
func Mint(identity credential.Identity, issuedAt time.Time, ttl time.Duration) (string, error) {
	return MintClaims(ClaimsFor(identity, issuedAt, ttl))
}

// ClaimsFor builds the claim set Mint signs.
func ClaimsFor(identity credential.Identity, issuedAt time.Time, ttl time.Duration) credential.Claims {
	return credential.Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   identity.ID,
			IssuedAt:  jwt.NewNumericDate(issuedAt),
			ExpiresAt: jwt.NewNumericDate(issuedAt.Add(ttl)),
		},
		Email: identity.Email,
		Name:  identity.DisplayName,
	}
}

// MintClaims returns an unsigned credential carrying claims.
func MintClaims(claims credential.Claims) (string, error) {
	return jwt.NewWithClaims(jwt.SigningMethodNone, claims).SignedString(jwt.UnsafeAllowNoneSignatureType)
}

// MustMint is Mint for tests, panicking on failure.
func MustMint(identity credential.Identity, issuedAt time.Time, ttl time.Duration) string {
	token, err := Mint(identity, issuedAt, ttl)
	if err != nil {
		panic(err)
	}
	return token
}
