// mocklogger/mocklogger.go
package mocklogger

import (
	"errors"
	"time"

	"github.com/deploymenttheory/go-api-http-session/logger"
	"github.com/stretchr/testify/mock"
	"go.uber.org/zap"
)

// MockLogger is a mock type for the Logger interface.
type MockLogger struct {
	mock.Mock
	logLevel logger.LogLevel
}

// NewMockLogger creates a new instance of MockLogger. Calls are only recorded for
// methods that have an expectation registered with On.
func NewMockLogger() *MockLogger {
	return &MockLogger{}
}

var _ logger.Logger = (*MockLogger)(nil)

// GetLogLevel returns the level last set with SetLevel.
func (m *MockLogger) GetLogLevel() logger.LogLevel {
	return m.logLevel
}

// SetLevel sets the logging level of the MockLogger.
func (m *MockLogger) SetLevel(level logger.LogLevel) {
	m.logLevel = level
	m.record("SetLevel", level)
}

// With records the call and returns the receiver so expectations stay on one mock.
func (m *MockLogger) With(fields ...zap.Field) logger.Logger {
	m.record("With", fields)
	return m
}

// Debug logs a message at the Debug level.
func (m *MockLogger) Debug(msg string, fields ...zap.Field) {
	m.record("Debug", msg, fields)
}

// Info logs a message at the Info level.
func (m *MockLogger) Info(msg string, fields ...zap.Field) {
	m.record("Info", msg, fields)
}

// Warn logs a message at the Warn level.
func (m *MockLogger) Warn(msg string, fields ...zap.Field) {
	m.record("Warn", msg, fields)
}

// Error records the call and returns msg as an error, matching the real logger.
func (m *MockLogger) Error(msg string, fields ...zap.Field) error {
	m.record("Error", msg, fields)
	return errors.New(msg)
}

// Panic logs a message at the Panic level.
func (m *MockLogger) Panic(msg string, fields ...zap.Field) {
	m.record("Panic", msg, fields)
}

// Fatal logs a message at the Fatal level.
func (m *MockLogger) Fatal(msg string, fields ...zap.Field) {
	m.record("Fatal", msg, fields)
}

// LogRequestStart logs the start of an HTTP request.
func (m *MockLogger) LogRequestStart(event string, requestID string, method string, url string, headers map[string][]string) {
	m.record("LogRequestStart", event, requestID, method, url, headers)
}

// LogRequestEnd logs the end of an HTTP request.
func (m *MockLogger) LogRequestEnd(event string, method string, url string, statusCode int, duration time.Duration) {
	m.record("LogRequestEnd", event, method, url, statusCode, duration)
}

// LogAuthTokenError logs a rejected request.
func (m *MockLogger) LogAuthTokenError(event string, method string, url string, statusCode int, err error) {
	m.record("LogAuthTokenError", event, method, url, statusCode, err)
}

// LogRetryAttempt logs a retry attempt.
func (m *MockLogger) LogRetryAttempt(event string, method string, url string, attempt int, reason string, err error) {
	m.record("LogRetryAttempt", event, method, url, attempt, reason, err)
}

// LogRenewal logs a renewal round.
func (m *MockLogger) LogRenewal(event string, outcome string, waiters int, duration time.Duration, err error) {
	m.record("LogRenewal", event, outcome, waiters, duration, err)
}

// record routes through mock.Called only when an expectation exists for method, so
// tests only have to declare the calls they care about.
func (m *MockLogger) record(method string, args ...interface{}) {
	for _, call := range m.ExpectedCalls {
		if call.Method == method {
			m.MethodCalled(method, args...)
			return
		}
	}
}
