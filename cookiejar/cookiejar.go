// cookiejar/cookiejar.go

/* The cookiejar package gives the application client an optional cookie jar scoped by the
public suffix list, and helpers to log response cookies without leaking session values. */

package cookiejar

import (
	"fmt"
	"net/http"
	"net/http/cookiejar"
	"strings"

	"github.com/deploymenttheory/go-api-http-session/logger"
	"go.uber.org/zap"
	"golang.org/x/net/publicsuffix"
)

// sensitiveCookieNames are matched case-insensitively.
var sensitiveCookieNames = map[string]bool{
	"sessionid":     true,
	"session":       true,
	"token":         true,
	"refreshtoken":  true,
	"access_token":  true,
	"refresh_token": true,
}

// SetupCookieJar initializes the HTTP client with a cookie jar if enabled in the configuration.
func SetupCookieJar(client *http.Client, enableCookieJar bool, log logger.Logger) error {
	if !enableCookieJar {
		return nil
	}

	jar, err := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
	if err != nil {
		log.Error("Failed to create cookie jar", zap.Error(err))
		return fmt.Errorf("setupCookieJar failed: %w", err)
	}
	client.Jar = jar
	log.Debug("Cookie jar enabled")
	return nil
}

// RedactSensitiveCookies returns copies of cookies with sensitive values replaced.
func RedactSensitiveCookies(cookies []*http.Cookie) []*http.Cookie {
	redacted := make([]*http.Cookie, 0, len(cookies))
	for _, cookie := range cookies {
		c := *cookie
		if sensitiveCookieNames[strings.ToLower(c.Name)] {
			c.Value = "REDACTED"
		}
		redacted = append(redacted, &c)
	}
	return redacted
}

// CookiesFromHeader parses every Set-Cookie header, skipping malformed ones.
func CookiesFromHeader(header http.Header) []*http.Cookie {
	cookies := []*http.Cookie{}
	for _, line := range header.Values("Set-Cookie") {
		cookie, err := http.ParseSetCookie(line)
		if err != nil {
			continue
		}
		cookies = append(cookies, cookie)
	}
	return cookies
}

// LogResponseCookies logs the cookies set by resp at debug level with sensitive values redacted.
func LogResponseCookies(log logger.Logger, resp *http.Response) {
	cookies := CookiesFromHeader(resp.Header)
	if len(cookies) == 0 {
		return
	}

	fields := make([]zap.Field, 0, len(cookies))
	for _, c := range RedactSensitiveCookies(cookies) {
		fields = append(fields, zap.String(c.Name, c.Value))
	}
	log.Debug("Response cookies", zap.Dict("cookies", fields...))
}
