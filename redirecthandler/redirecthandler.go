// redirecthandler/redirecthandler.go
// Package redirecthandler applies the client's redirect policy.
package redirecthandler

import (
	"fmt"
	"net/http"
	"sync"

	"github.com/deploymenttheory/go-api-http-session/logger"
	"github.com/deploymenttheory/go-api-http-session/status"
	"go.uber.org/zap"
)

// RedirectHandler contains configurations for handling HTTP redirects.
type RedirectHandler struct {
	Logger             logger.Logger
	MaxRedirects       int               // Maximum allowed redirects to prevent infinite loops.
	SensitiveHeaders   []string          // Headers to be removed on cross-host redirects.
	PermanentRedirects map[string]string // Cache of permanent redirects seen so far.
	PermRedirectsMutex sync.RWMutex
}

// NewRedirectHandler creates a new instance of RedirectHandler.
func NewRedirectHandler(log logger.Logger, maxRedirects int) *RedirectHandler {
	if log == nil {
		log = logger.NewNop()
	}
	return &RedirectHandler{
		Logger:             log,
		MaxRedirects:       maxRedirects,
		SensitiveHeaders:   []string{"Authorization", "Cookie"},
		PermanentRedirects: make(map[string]string),
	}
}

// AddSensitiveHeader allows adding configurable sensitive headers.
func (r *RedirectHandler) AddSensitiveHeader(header string) {
	r.SensitiveHeaders = append(r.SensitiveHeaders, header)
}

// WithRedirectHandling applies the redirect handling policy to an http.Client.
func (r *RedirectHandler) WithRedirectHandling(client *http.Client) {
	client.CheckRedirect = r.checkRedirect
}

// checkRedirect decides whether req, the next hop after via, is followed.
func (r *RedirectHandler) checkRedirect(req *http.Request, via []*http.Request) error {
	if len(via) == 0 {
		return nil
	}
	previous := via[len(via)-1]

	// Non-idempotent methods are never replayed.
	if previous.Method == http.MethodPost || previous.Method == http.MethodPatch {
		r.Logger.Warn("Redirect attempted on non-idempotent method, not following", zap.String("method", previous.Method))
		return http.ErrUseLastResponse
	}

	for _, hop := range via {
		if hop.URL.String() == req.URL.String() {
			r.Logger.Warn("Redirect loop detected", zap.String("url", req.URL.String()))
			return &RedirectLoopError{URL: req.URL.String()}
		}
	}

	if len(via) >= r.MaxRedirects {
		r.Logger.Warn("Maximum redirects reached", zap.Int("maxRedirects", r.MaxRedirects))
		return &MaxRedirectsError{MaxRedirects: r.MaxRedirects}
	}

	if req.URL.Host != via[0].URL.Host {
		r.secureRequest(req)
	}

	if previous.Response != nil && status.IsPermanentRedirect(previous.Response.StatusCode) {
		r.cachePermanentRedirect(previous.URL.String(), req.URL.String())
	}

	r.Logger.Info("Redirecting request",
		zap.String("originalURL", previous.URL.String()),
		zap.String("newURL", req.URL.String()),
		zap.Int("redirectCount", len(via)),
	)
	return nil
}

// secureRequest removes sensitive headers from a request leaving the original host.
func (r *RedirectHandler) secureRequest(req *http.Request) {
	for _, header := range r.SensitiveHeaders {
		req.Header.Del(header)
	}
}

// RedirectLoopError represents an error when a redirect loop is detected.
type RedirectLoopError struct {
	URL string
}

func (e *RedirectLoopError) Error() string {
	return fmt.Sprintf("redirect loop detected at %s", e.URL)
}

// MaxRedirectsError represents an error when the maximum number of redirects is reached.
type MaxRedirectsError struct {
	MaxRedirects int
}

func (e *MaxRedirectsError) Error() string {
	return fmt.Sprintf("maximum redirects reached: %d", e.MaxRedirects)
}

func (r *RedirectHandler) cachePermanentRedirect(originalURL, redirectURL string) {
	r.PermRedirectsMutex.Lock()
	defer r.PermRedirectsMutex.Unlock()
	r.PermanentRedirects[originalURL] = redirectURL
}

// ResolvePermanentRedirect returns the target of a permanent redirect previously seen for
// rawURL, or rawURL itself.
func (r *RedirectHandler) ResolvePermanentRedirect(rawURL string) string {
	r.PermRedirectsMutex.RLock()
	defer r.PermRedirectsMutex.RUnlock()
	if target, ok := r.PermanentRedirects[rawURL]; ok {
		return target
	}
	return rawURL
}

// SetupRedirectHandler configures the HTTP client for redirect handling. When redirects are
// disabled the client returns the redirect response itself. The returned handler is nil in that case.
func SetupRedirectHandler(client *http.Client, followRedirects bool, maxRedirects int, log logger.Logger) (*RedirectHandler, error) {
	if !followRedirects {
		client.CheckRedirect = func(*http.Request, []*http.Request) error {
			return http.ErrUseLastResponse
		}
		return nil, nil
	}

	if maxRedirects < 1 {
		return nil, log.Error("Invalid maxRedirects value", zap.Int("maxRedirects", maxRedirects))
	}

	handler := NewRedirectHandler(log, maxRedirects)
	handler.WithRedirectHandling(client)
	log.Info("Redirect handling enabled", zap.Int("MaxRedirects", maxRedirects))
	return handler, nil
}
