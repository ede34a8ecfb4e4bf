// httpclient/client.go
/* The `httpclient` package provides the application facing client of the session library. It
wires the credential store, the session state, the issuer client, the refresh coordinator and
the request interceptor behind a single `Client`, together with the concurrency limit, redirect
policy, optional cookie jar, structured logging and prometheus metrics. Requests made through
the client carry the bearer credential, are renewed and retried once on a 401, and fail with
refresh.ErrSessionExpired when the session cannot be renewed. */
package httpclient

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"github.com/deploymenttheory/go-api-http-session/concurrency"
	"github.com/deploymenttheory/go-api-http-session/cookiejar"
	"github.com/deploymenttheory/go-api-http-session/credentialstore"
	"github.com/deploymenttheory/go-api-http-session/interceptor"
	"github.com/deploymenttheory/go-api-http-session/issuer"
	"github.com/deploymenttheory/go-api-http-session/logger"
	"github.com/deploymenttheory/go-api-http-session/metrics"
	"github.com/deploymenttheory/go-api-http-session/proxy"
	"github.com/deploymenttheory/go-api-http-session/redirecthandler"
	"github.com/deploymenttheory/go-api-http-session/refresh"
	"github.com/deploymenttheory/go-api-http-session/session"
	"github.com/deploymenttheory/go-api-http-session/version"
	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Master struct/object
type Client struct {
	// Private
	config        ClientConfig
	http          *http.Client
	loginRedirect func(loginURL string)
	closeStore    func() error

	// Exported
	Logger      logger.Logger
	Session     *session.State
	Issuer      *issuer.Client
	Renewals    *refresh.Coordinator
	Concurrency *concurrency.ConcurrencyHandler
	Metrics     *metrics.Metrics
	Redirects   *redirecthandler.RedirectHandler
}

// Option overrides one of the collaborators BuildClient would otherwise create.
type Option func(*buildOptions)

type buildOptions struct {
	log           logger.Logger
	clock         clockwork.Clock
	store         credentialstore.Store
	transport     http.RoundTripper
	registerer    prometheus.Registerer
	loginRedirect func(loginURL string)
}

// WithLogger replaces the logger built from the configuration.
func WithLogger(log logger.Logger) Option {
	return func(o *buildOptions) {
		o.log = log
	}
}

// WithClock sets the clock used for local expiry checks.
func WithClock(clock clockwork.Clock) Option {
	return func(o *buildOptions) {
		o.clock = clock
	}
}

// WithCredentialStore replaces the store selected by StoreBackend.
func WithCredentialStore(store credentialstore.Store) Option {
	return func(o *buildOptions) {
		o.store = store
	}
}

// WithTransport sets the transport outbound requests are finally sent through.
func WithTransport(rt http.RoundTripper) Option {
	return func(o *buildOptions) {
		o.transport = rt
	}
}

// WithRegisterer registers the session metrics with reg instead of a private registry.
func WithRegisterer(reg prometheus.Registerer) Option {
	return func(o *buildOptions) {
		o.registerer = reg
	}
}

// WithLoginRedirect sets the callback run with LoginURL when the session expires.
func WithLoginRedirect(fn func(loginURL string)) Option {
	return func(o *buildOptions) {
		o.loginRedirect = fn
	}
}

// BuildClient creates a new HTTP client with the provided configuration.
func BuildClient(config ClientConfig, populateDefaultValues bool, opts ...Option) (*Client, error) {
	err := validateClientConfig(&config, populateDefaultValues)
	if err != nil {
		return nil, fmt.Errorf("invalid configuration: %v", err)
	}

	var o buildOptions
	for _, opt := range opts {
		opt(&o)
	}

	//region Logging

	log := o.log
	if log == nil {
		exportPath := ""
		if config.ExportLogs {
			exportPath = config.LogExportPath
		}
		log = logger.BuildLogger(logger.Options{
			Level:             logger.ParseLogLevelFromString(config.LogLevel),
			Encoding:          config.LogOutputFormat,
			ConsoleSeparator:  config.LogConsoleSeparator,
			ExportPath:        exportPath,
			HideSensitiveData: config.HideSensitiveData,
			InitialFields: map[string]interface{}{
				"application": version.GetAppName(),
				"version":     version.GetVersion(),
			},
		})
	}

	//endregion

	//////////////////////////////////////////////////////////////////////////////////////////

	//region Session

	store, closeStore, err := buildCredentialStore(config, o.store)
	if err != nil {
		return nil, log.Error("Failed to set up credential store", zap.String("backend", config.StoreBackend), zap.Error(err))
	}
	built := false
	defer func() {
		if !built && closeStore != nil {
			_ = closeStore()
		}
	}()

	clock := o.clock
	if clock == nil {
		clock = clockwork.NewRealClock()
	}

	state, err := session.NewState(context.Background(), store,
		session.WithClock(clock),
		session.WithLogger(log.With(zap.String("component", "session"))),
	)
	if err != nil {
		return nil, err
	}

	//endregion

	//////////////////////////////////////////////////////////////////////////////////////////

	//region Concurrency

	concurrencyHandler := concurrency.NewConcurrencyHandler(config.MaxConcurrentRequests, log, 0)

	base := o.transport
	if base == nil {
		transport := http.DefaultTransport.(*http.Transport).Clone()
		if err := proxy.ConfigureProxy(transport, config.ProxyURL, config.ProxyUsername, config.ProxyPassword, log); err != nil {
			return nil, err
		}
		base = transport
	}
	limited := &concurrency.Transport{Base: base, Handler: concurrencyHandler}

	//endregion

	//////////////////////////////////////////////////////////////////////////////////////////

	//region Metrics

	sessionMetrics := metrics.New()
	registerer := o.registerer
	if registerer == nil {
		registerer = prometheus.NewRegistry()
	}
	if err := sessionMetrics.Register(registerer); err != nil {
		return nil, log.Error("Failed to register session metrics", zap.Error(err))
	}

	//endregion

	//////////////////////////////////////////////////////////////////////////////////////////

	//region Create

	client := &Client{
		config:        config,
		loginRedirect: o.loginRedirect,
		closeStore:    closeStore,
		Logger:        log,
		Session:       state,
		Concurrency:   concurrencyHandler,
		Metrics:       sessionMetrics,
	}

	// Issuer calls bypass the interceptor.
	client.Issuer = issuer.NewClient(config.BaseURL, &http.Client{
		Timeout:   config.CustomTimeout,
		Transport: limited,
	}, log.With(zap.String("component", "issuer")))

	client.Renewals = refresh.NewCoordinator(state, client.Issuer,
		refresh.WithLogger(log.With(zap.String("component", "refresh"))),
		refresh.WithMetrics(sessionMetrics),
		refresh.WithRenewalTimeout(config.RenewalTimeout),
		refresh.WithOnSessionExpired(client.sessionExpired),
	)

	baseURL, _ := url.Parse(config.BaseURL)
	client.http = &http.Client{
		Timeout: config.CustomTimeout,
		Transport: interceptor.NewTransport(limited, state, client.Renewals,
			interceptor.WithLogger(log.With(zap.String("component", "interceptor"))),
			interceptor.WithMetrics(sessionMetrics),
			interceptor.WithAllowedHosts(baseURL.Host),
		),
	}

	//endregion

	//////////////////////////////////////////////////////////////////////////////////////////

	//region Redirect

	client.Redirects, err = redirecthandler.SetupRedirectHandler(client.http, config.FollowRedirects, config.MaxRedirects, log)
	if err != nil {
		return nil, err
	}

	//endregion

	//////////////////////////////////////////////////////////////////////////////////////////

	//region Cookies

	if err := cookiejar.SetupCookieJar(client.http, config.CookieJarEnabled, log); err != nil {
		return nil, err
	}

	//endregion

	//////////////////////////////////////////////////////////////////////////////////////////

	//region LoggingOut

	log.Debug("New session client initialized",
		zap.String("Base URL", config.BaseURL),
		zap.String("Logging Level", config.LogLevel),
		zap.String("Log Encoding Format", config.LogOutputFormat),
		zap.Bool("Hide Sensitive Data In Logs", config.HideSensitiveData),
		zap.Bool("Cookie Jar Enabled", config.CookieJarEnabled),
		zap.Int("Max Concurrent Requests", concurrencyHandler.Limit()),
		zap.Duration("Timeout", config.CustomTimeout),
		zap.Duration("Renewal Timeout", config.RenewalTimeout),
		zap.Bool("Follow Redirects", config.FollowRedirects),
		zap.Int("Max Redirects", config.MaxRedirects),
		zap.String("Credential Store", config.StoreBackend),
		zap.Bool("Proxy", config.ProxyURL != ""),
		zap.Bool("Authenticated", state.IsAuthenticated()),
	)

	//endregion

	built = true
	return client, nil
}

// HTTPClient returns the intercepted http.Client for requests DoRequest does not cover.
func (c *Client) HTTPClient() *http.Client {
	return c.http
}

// Config returns the configuration the client was built with, defaults included.
func (c *Client) Config() ClientConfig {
	return c.config
}

// Close releases the connections held by the credential store.
func (c *Client) Close() error {
	if c.closeStore == nil {
		return nil
	}
	return c.closeStore()
}

// sessionExpired runs once per failed renewal round, after the session has been cleared.
func (c *Client) sessionExpired(err error) {
	c.Logger.Warn("Session expired, login required",
		zap.String("loginURL", c.config.LoginURL),
		zap.Error(err),
	)
	if c.loginRedirect != nil {
		c.loginRedirect(c.config.LoginURL)
	}
}

// buildCredentialStore returns override when set, otherwise the store named by
// config.StoreBackend and a function releasing its resources.
func buildCredentialStore(config ClientConfig, override credentialstore.Store) (credentialstore.Store, func() error, error) {
	if override != nil {
		return override, nil, nil
	}

	switch config.StoreBackend {
	case StoreBackendNone:
		return credentialstore.NopStore{}, nil, nil
	case StoreBackendMemory:
		return credentialstore.NewMemoryStore(), nil, nil
	case StoreBackendFile:
		return credentialstore.NewFileStore(config.StoreFilePath), nil, nil
	case StoreBackendRedis:
		rdb := redis.NewClient(&redis.Options{
			Addr:     config.RedisAddr,
			Password: config.RedisPassword,
			DB:       config.RedisDB,
		})
		return credentialstore.NewRedisStore(rdb, credentialstore.WithKeyPrefix(config.RedisKeyPrefix)), rdb.Close, nil
	default:
		return nil, nil, fmt.Errorf("unknown store backend %q", config.StoreBackend)
	}
}
