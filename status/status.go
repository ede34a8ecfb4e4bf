// status/status.go
// This package provides utility functions for categorizing HTTP status codes.
package status

import (
	"net/http"
)

// IsAuthenticationRejection reports whether the upstream rejected the request's
// credential. Only 401 qualifies; 403 means the credential was accepted but lacks
// permission, and renewing it would not help.
func IsAuthenticationRejection(statusCode int) bool {
	return statusCode == http.StatusUnauthorized
}

// IsSuccess reports a 2xx status.
func IsSuccess(statusCode int) bool {
	return statusCode >= 200 && statusCode < 300
}

// IsRedirectStatusCode checks if the provided HTTP status code is one of the redirect codes.
// Redirect status codes instruct the client to make a new request to a different URI, as defined in the response's Location header.
//
// - 301 Moved Permanently
// - 302 Found
// - 303 See Other
// - 307 Temporary Redirect
// - 308 Permanent Redirect
func IsRedirectStatusCode(statusCode int) bool {
	switch statusCode {
	case http.StatusMovedPermanently,
		http.StatusFound,
		http.StatusSeeOther,
		http.StatusTemporaryRedirect,
		http.StatusPermanentRedirect:
		return true
	default:
		return false
	}
}

// IsPermanentRedirect checks if the provided HTTP status code is one of the permanent redirect codes.
func IsPermanentRedirect(statusCode int) bool {
	switch statusCode {
	case http.StatusMovedPermanently,
		http.StatusPermanentRedirect:
		return true
	default:
		return false
	}
}
