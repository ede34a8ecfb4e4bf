// refresh/errors.go
package refresh

import (
	"errors"
	"fmt"

	"github.com/deploymenttheory/go-api-http-session/response"
)

// ErrSessionExpired is matched by every error returned when a renewal round fails.
var ErrSessionExpired = errors.New("session expired")

// ErrNoRenewalCredential is the cause recorded when a renewal is requested while no renewal
// credential is held.
var ErrNoRenewalCredential = errors.New("no renewal credential held")

// SessionExpiredError is returned to every caller waiting on a failed renewal round. By the
// time a caller sees it the session has already been cleared.
type SessionExpiredError struct {
	// StatusCode is the status of the rejected request that asked for the renewal, if any.
	StatusCode int
	// Rejection is the parsed body of that rejected request, if any.
	Rejection *response.APIError
	// Err is why the renewal failed.
	Err error
}

func (e *SessionExpiredError) Error() string {
	msg := "session expired"
	if e.StatusCode != 0 {
		msg = fmt.Sprintf("%s after status %d", msg, e.StatusCode)
	}
	if e.Err != nil {
		msg = fmt.Sprintf("%s: renewal failed: %v", msg, e.Err)
	}
	return msg
}

// Is reports ErrSessionExpired as a match.
func (e *SessionExpiredError) Is(target error) bool {
	return target == ErrSessionExpired
}

// Unwrap returns the renewal failure.
func (e *SessionExpiredError) Unwrap() error {
	return e.Err
}

// WithRejection returns a copy of e that carries the rejected request's status and body.
func (e *SessionExpiredError) WithRejection(statusCode int, rejection *response.APIError) *SessionExpiredError {
	cp := *e
	cp.StatusCode = statusCode
	cp.Rejection = rejection
	return &cp
}
