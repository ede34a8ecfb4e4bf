// headers/redact/redact.go
package redact

import "strings"

// sensitiveKeys lists header and field names whose values carry credentials.
var sensitiveKeys = []string{
	"Authorization",
	"AccessToken",
	"RefreshToken",
	"Cookie",
	"Set-Cookie",
}

// RedactSensitiveHeaderData redacts sensitive data based on the hideSensitiveData flag.
// Keys are compared case-insensitively.
func RedactSensitiveHeaderData(hideSensitiveData bool, key, value string) string {
	if hideSensitiveData && IsSensitiveKey(key) {
		return "REDACTED"
	}
	return value
}

// IsSensitiveKey reports whether values stored under key must be hidden.
func IsSensitiveKey(key string) bool {
	for _, k := range sensitiveKeys {
		if strings.EqualFold(k, key) {
			return true
		}
	}
	return false
}
