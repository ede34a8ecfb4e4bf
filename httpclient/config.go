// httpclient/config.go
// Description: This file contains functions to load and validate configuration values from a JSON file or environment variables.
package httpclient

import (
	"errors"
	"fmt"
	"net/url"
	"slices"
	"time"

	"github.com/deploymenttheory/go-api-http-session/concurrency"
	"github.com/deploymenttheory/go-api-http-session/refresh"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	DefaultLogLevelString        = "LogLevelInfo"
	DefaultLogOutputFormatString = "pretty"
	DefaultLogConsoleSeparator   = "	"
	DefaultLogExportPath         = "logs"
	DefaultMaxConcurrentRequests = concurrency.DefaultMaxConcurrency
	DefaultCustomTimeout         = 10 * time.Second
	DefaultRenewalTimeout        = refresh.DefaultRenewalTimeout
	DefaultMaxRedirects          = 5
	DefaultStoreBackend          = StoreBackendMemory
	DefaultStoreFilePath         = ".session.json"
	DefaultRedisKeyPrefix        = "session:"
	DefaultLoginURL              = "/login"

	// EnvPrefix prefixes every variable read by LoadConfigFromEnv, e.g. SESSION_BASE_URL.
	EnvPrefix = "SESSION"
)

// Credential store backends.
const (
	StoreBackendNone   = "none"
	StoreBackendMemory = "memory"
	StoreBackendFile   = "file"
	StoreBackendRedis  = "redis"
)

var (
	validLogLevels = []string{
		"LogLevelDebug",
		"LogLevelInfo",
		"LogLevelWarn",
		"LogLevelError",
		"LogLevelPanic",
		"LogLevelFatal",
	}
	validLogFormats    = []string{"json", "pretty", "console"}
	validStoreBackends = []string{StoreBackendNone, StoreBackendMemory, StoreBackendFile, StoreBackendRedis}
)

// ClientConfig holds every option BuildClient understands.
type ClientConfig struct {
	// BaseURL is the root of the API, e.g. http://localhost:3000/api. The issuer's
	// /auth/* endpoints live under it and only requests to its host carry the credential.
	BaseURL string

	// Log
	LogLevel            string
	LogOutputFormat     string // "json" or "pretty"/"console"
	LogConsoleSeparator string
	ExportLogs          bool
	LogExportPath       string
	HideSensitiveData   bool

	// Cookies
	CookieJarEnabled bool

	// Transport
	MaxConcurrentRequests int
	CustomTimeout         time.Duration
	RenewalTimeout        time.Duration
	FollowRedirects       bool
	MaxRedirects          int
	ProxyURL              string
	ProxyUsername         string
	ProxyPassword         string

	// Credential store
	StoreBackend   string
	StoreFilePath  string
	RedisAddr      string
	RedisPassword  string
	RedisDB        int
	RedisKeyPrefix string

	// LoginURL is handed to the login redirect callback when the session expires.
	LoginURL string
}

// LoadConfigFromFile reads a JSON configuration file. Keys match the ClientConfig field
// names; durations are strings such as "10s".
func LoadConfigFromFile(path string) (*ClientConfig, error) {
	path, err := validateFilePath(path)
	if err != nil {
		return nil, err
	}

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("json")
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read configuration file %s: %w", path, err)
	}

	var config ClientConfig
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to decode configuration file %s: %w", path, err)
	}

	SetDefaultValuesClientConfig(&config)
	return &config, nil
}

// LoadConfigFromEnv reads the configuration from SESSION_* environment variables, after
// loading envFiles (or .env when none are given) into the environment. Files that do not
// exist are ignored and variables already set win over file values.
func LoadConfigFromEnv(envFiles ...string) (*ClientConfig, error) {
	_ = godotenv.Load(envFiles...)

	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.AutomaticEnv()

	v.SetDefault("LOG_LEVEL", DefaultLogLevelString)
	v.SetDefault("LOG_OUTPUT_FORMAT", DefaultLogOutputFormatString)
	v.SetDefault("LOG_CONSOLE_SEPARATOR", DefaultLogConsoleSeparator)
	v.SetDefault("LOG_EXPORT_PATH", DefaultLogExportPath)
	v.SetDefault("MAX_CONCURRENT_REQUESTS", DefaultMaxConcurrentRequests)
	v.SetDefault("CUSTOM_TIMEOUT", DefaultCustomTimeout)
	v.SetDefault("RENEWAL_TIMEOUT", DefaultRenewalTimeout)
	v.SetDefault("MAX_REDIRECTS", DefaultMaxRedirects)
	v.SetDefault("STORE_BACKEND", DefaultStoreBackend)
	v.SetDefault("STORE_FILE_PATH", DefaultStoreFilePath)
	v.SetDefault("REDIS_KEY_PREFIX", DefaultRedisKeyPrefix)
	v.SetDefault("LOGIN_URL", DefaultLoginURL)

	config := &ClientConfig{
		BaseURL:               v.GetString("BASE_URL"),
		LogLevel:              v.GetString("LOG_LEVEL"),
		LogOutputFormat:       v.GetString("LOG_OUTPUT_FORMAT"),
		LogConsoleSeparator:   v.GetString("LOG_CONSOLE_SEPARATOR"),
		ExportLogs:            v.GetBool("EXPORT_LOGS"),
		LogExportPath:         v.GetString("LOG_EXPORT_PATH"),
		HideSensitiveData:     v.GetBool("HIDE_SENSITIVE_DATA"),
		CookieJarEnabled:      v.GetBool("COOKIE_JAR_ENABLED"),
		MaxConcurrentRequests: v.GetInt("MAX_CONCURRENT_REQUESTS"),
		CustomTimeout:         v.GetDuration("CUSTOM_TIMEOUT"),
		RenewalTimeout:        v.GetDuration("RENEWAL_TIMEOUT"),
		FollowRedirects:       v.GetBool("FOLLOW_REDIRECTS"),
		MaxRedirects:          v.GetInt("MAX_REDIRECTS"),
		ProxyURL:              v.GetString("PROXY_URL"),
		ProxyUsername:         v.GetString("PROXY_USERNAME"),
		ProxyPassword:         v.GetString("PROXY_PASSWORD"),
		StoreBackend:          v.GetString("STORE_BACKEND"),
		StoreFilePath:         v.GetString("STORE_FILE_PATH"),
		RedisAddr:             v.GetString("REDIS_ADDR"),
		RedisPassword:         v.GetString("REDIS_PASSWORD"),
		RedisDB:               v.GetInt("REDIS_DB"),
		RedisKeyPrefix:        v.GetString("REDIS_KEY_PREFIX"),
		LoginURL:              v.GetString("LOGIN_URL"),
	}
	return config, nil
}

// SetDefaultValuesClientConfig fills every unset field with its default.
func SetDefaultValuesClientConfig(config *ClientConfig) {
	if config.LogLevel == "" {
		config.LogLevel = DefaultLogLevelString
	}

	if config.LogOutputFormat == "" {
		config.LogOutputFormat = DefaultLogOutputFormatString
	}

	if config.LogConsoleSeparator == "" {
		config.LogConsoleSeparator = DefaultLogConsoleSeparator
	}

	if config.LogExportPath == "" {
		config.LogExportPath = DefaultLogExportPath
	}

	if config.MaxConcurrentRequests == 0 {
		config.MaxConcurrentRequests = DefaultMaxConcurrentRequests
	}

	if config.CustomTimeout == 0 {
		config.CustomTimeout = DefaultCustomTimeout
	}

	if config.RenewalTimeout == 0 {
		config.RenewalTimeout = DefaultRenewalTimeout
	}

	if config.MaxRedirects == 0 {
		config.MaxRedirects = DefaultMaxRedirects
	}

	if config.StoreBackend == "" {
		config.StoreBackend = DefaultStoreBackend
	}

	if config.StoreFilePath == "" {
		config.StoreFilePath = DefaultStoreFilePath
	}

	if config.RedisKeyPrefix == "" {
		config.RedisKeyPrefix = DefaultRedisKeyPrefix
	}

	if config.LoginURL == "" {
		config.LoginURL = DefaultLoginURL
	}
}

// validateClientConfig checks config, first filling defaults when populateDefaults is set.
func validateClientConfig(config *ClientConfig, populateDefaults bool) error {
	if populateDefaults {
		SetDefaultValuesClientConfig(config)
	}

	if config.BaseURL == "" {
		return errors.New("no base url supplied")
	}
	base, err := url.Parse(config.BaseURL)
	if err != nil {
		return fmt.Errorf("invalid base url %q: %w", config.BaseURL, err)
	}
	if (base.Scheme != "http" && base.Scheme != "https") || base.Host == "" {
		return fmt.Errorf("invalid base url %q: expected an absolute http or https url", config.BaseURL)
	}

	if !slices.Contains(validLogLevels, config.LogLevel) {
		return fmt.Errorf("invalid log level: %s", config.LogLevel)
	}

	if !slices.Contains(validLogFormats, config.LogOutputFormat) {
		return fmt.Errorf("invalid log output format: %s", config.LogOutputFormat)
	}

	if config.ExportLogs && config.LogExportPath == "" {
		return errors.New("log export enabled without a log export path")
	}

	if config.MaxConcurrentRequests < concurrency.MinConcurrency || config.MaxConcurrentRequests > concurrency.MaxConcurrency {
		return fmt.Errorf("maximum concurrent requests must be between %d and %d", concurrency.MinConcurrency, concurrency.MaxConcurrency)
	}

	if config.CustomTimeout < 0 {
		return errors.New("timeout cannot be less than 0 seconds")
	}

	if config.RenewalTimeout < 0 {
		return errors.New("renewal timeout cannot be less than 0 seconds")
	}

	if config.FollowRedirects && config.MaxRedirects < 1 {
		return errors.New("max redirects cannot be less than 1")
	}

	if !slices.Contains(validStoreBackends, config.StoreBackend) {
		return fmt.Errorf("invalid store backend: %s", config.StoreBackend)
	}

	if config.StoreBackend == StoreBackendFile && config.StoreFilePath == "" {
		return errors.New("file store selected without a store file path")
	}

	if config.StoreBackend == StoreBackendRedis && config.RedisAddr == "" {
		return errors.New("redis store selected without a redis address")
	}

	return nil
}
