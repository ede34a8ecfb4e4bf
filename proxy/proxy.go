// proxy/proxy.go

package proxy

import (
	"encoding/base64"
	"fmt"
	"net/http"
	"net/url"

	"github.com/deploymenttheory/go-api-http-session/logger"
	"go.uber.org/zap"
)

// ConfigureProxy routes every request sent through transport via proxyURL. When username and
// password are both set the proxy receives them as basic credentials on CONNECT and, through
// the URL userinfo, on plain http requests. An empty proxyURL leaves transport untouched.
func ConfigureProxy(transport *http.Transport, proxyURL, username, password string, log logger.Logger) error {
	if proxyURL == "" {
		return nil
	}

	parsedProxyURL, err := url.Parse(proxyURL)
	if err != nil {
		log.Error("Failed to parse proxy URL", zap.Error(err))
		return fmt.Errorf("invalid proxy url: %w", err)
	}
	if parsedProxyURL.Scheme == "" || parsedProxyURL.Host == "" {
		return log.Error("Proxy URL must be absolute", zap.String("ProxyURL", proxyURL))
	}

	if username != "" && password != "" {
		parsedProxyURL.User = url.UserPassword(username, password)
		if transport.ProxyConnectHeader == nil {
			transport.ProxyConnectHeader = http.Header{}
		}
		transport.ProxyConnectHeader.Set("Proxy-Authorization", basicAuth(username, password))
	}

	transport.Proxy = http.ProxyURL(parsedProxyURL)

	log.Info("Proxy configured",
		zap.String("ProxyURL", parsedProxyURL.Redacted()),
		zap.Bool("Authenticated", parsedProxyURL.User != nil),
	)
	return nil
}

func basicAuth(username, password string) string {
	return "Basic " + base64.StdEncoding.EncodeToString([]byte(username+":"+password))
}
