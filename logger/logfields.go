// logger/logfields.go
package logger

import (
	"time"

	"github.com/deploymenttheory/go-api-http-session/headers/redact"
	"go.uber.org/zap"
)

// LogRequestStart logs the dispatch of an outbound request. Header values pass through
// redact so credentials never reach the log when sensitive data is hidden.
func (d *defaultLogger) LogRequestStart(event string, requestID string, method string, url string, headers map[string][]string) {
	if d.logLevel > LogLevelDebug {
		return
	}

	redacted := make(map[string][]string, len(headers))
	for key, values := range headers {
		out := make([]string, len(values))
		for i, value := range values {
			out[i] = redact.RedactSensitiveHeaderData(d.hideSensitiveData, key, value)
		}
		redacted[key] = out
	}

	d.logger.Debug("HTTP request started",
		zap.String("event", event),
		zap.String("request_id", requestID),
		zap.String("method", method),
		zap.String("url", url),
		zap.Any("headers", redacted),
	)
}

// LogRequestEnd logs the completion of an HTTP request, including the status code and duration.
func (d *defaultLogger) LogRequestEnd(event string, method string, url string, statusCode int, duration time.Duration) {
	if d.logLevel <= LogLevelInfo {
		d.logger.Info("HTTP request completed",
			zap.String("event", event),
			zap.String("method", method),
			zap.String("url", url),
			zap.Int("status_code", statusCode),
			zap.Duration("duration", duration),
		)
	}
}

// LogAuthTokenError logs a request rejected for authentication reasons.
func (d *defaultLogger) LogAuthTokenError(event string, method string, url string, statusCode int, err error) {
	if d.logLevel <= LogLevelWarn {
		d.logger.Warn("Authentication rejected",
			zap.String("event", event),
			zap.String("method", method),
			zap.String("url", url),
			zap.Int("status_code", statusCode),
			zap.Error(err),
		)
	}
}

// LogRetryAttempt logs the single retry made after a credential renewal.
func (d *defaultLogger) LogRetryAttempt(event string, method string, url string, attempt int, reason string, err error) {
	if d.logLevel <= LogLevelInfo {
		d.logger.Info("HTTP request retry",
			zap.String("event", event),
			zap.String("method", method),
			zap.String("url", url),
			zap.Int("attempt", attempt),
			zap.String("reason", reason),
			zap.Error(err),
		)
	}
}

// LogRenewal logs the settlement of a credential renewal round.
func (d *defaultLogger) LogRenewal(event string, outcome string, waiters int, duration time.Duration, err error) {
	fields := []zap.Field{
		zap.String("event", event),
		zap.String("outcome", outcome),
		zap.Int("waiters", waiters),
		zap.Duration("duration", duration),
	}
	if err != nil {
		if d.logLevel <= LogLevelWarn {
			d.logger.Warn("Credential renewal failed", append(fields, zap.Error(err))...)
		}
		return
	}
	if d.logLevel <= LogLevelInfo {
		d.logger.Info("Credential renewed", fields...)
	}
}
