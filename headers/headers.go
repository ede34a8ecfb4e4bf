// headers/headers.go
package headers

import (
	"fmt"
	"net/http"
	"sort"
	"strings"

	"github.com/deploymenttheory/go-api-http-session/headers/redact"
	"github.com/deploymenttheory/go-api-http-session/logger"
	"github.com/deploymenttheory/go-api-http-session/version"
	"go.uber.org/zap"
)

const (
	// AuthorizationScheme prefixes every access credential sent upstream.
	AuthorizationScheme = "Bearer "
	// RequestIDHeader carries the per request identifier.
	RequestIDHeader = "X-Request-ID"
)

// SetAuthorization sets the Authorization header for the request, adding the Bearer
// scheme only once.
func SetAuthorization(req *http.Request, token string) {
	if !strings.HasPrefix(token, AuthorizationScheme) {
		token = AuthorizationScheme + token
	}
	req.Header.Set("Authorization", token)
}

// BearerToken returns the credential carried in the request's Authorization header, or
// an empty string.
func BearerToken(req *http.Request) string {
	value := req.Header.Get("Authorization")
	if !strings.HasPrefix(value, AuthorizationScheme) {
		return ""
	}
	return strings.TrimPrefix(value, AuthorizationScheme)
}

// SetJSONHeaders sets Content-Type (when the request has a body), Accept and User-Agent.
func SetJSONHeaders(req *http.Request) {
	if req.Body != nil && req.Body != http.NoBody {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json, application/xml;q=0.9, */*;q=0.8")
	SetUserAgent(req)
}

// SetUserAgent sets the User-Agent header unless the caller already set one.
func SetUserAgent(req *http.Request) {
	if req.Header.Get("User-Agent") == "" {
		req.Header.Set("User-Agent", version.GetUserAgentHeader())
	}
}

// SetRequestID sets the X-Request-ID header unless the caller already set one.
func SetRequestID(req *http.Request, requestID string) {
	if requestID != "" && req.Header.Get(RequestIDHeader) == "" {
		req.Header.Set(RequestIDHeader, requestID)
	}
}

// LogHeaders prints the request headers at debug level with sensitive values redacted.
func LogHeaders(log logger.Logger, req *http.Request, hideSensitiveData bool) {
	if log.GetLogLevel() > logger.LogLevelDebug {
		return
	}

	redactedHeaders := http.Header{}
	for name, values := range req.Header {
		for _, value := range values {
			redactedHeaders.Add(name, redact.RedactSensitiveHeaderData(hideSensitiveData, name, value))
		}
	}

	log.Debug("HTTP Request Headers", zap.String("Headers", HeadersToString(redactedHeaders)))
}

// HeadersToString converts a http.Header to a string for logging, one header per line,
// sorted by name.
func HeadersToString(headers http.Header) string {
	names := make([]string, 0, len(headers))
	for name := range headers {
		names = append(names, name)
	}
	sort.Strings(names)

	headerStrings := make([]string, 0, len(names))
	for _, name := range names {
		headerStrings = append(headerStrings, fmt.Sprintf("%s: %s", name, strings.Join(headers[name], ", ")))
	}
	return strings.Join(headerStrings, "\n")
}

// CheckDeprecationHeader checks the response headers for the Deprecation header and logs a warning if present.
func CheckDeprecationHeader(resp *http.Response, log logger.Logger) {
	if deprecationHeader := resp.Header.Get("Deprecation"); deprecationHeader != "" {
		log.Warn("API endpoint is deprecated",
			zap.String("Date", deprecationHeader),
			zap.String("Endpoint", resp.Request.URL.String()),
		)
	}
}
