// logger/logger_test.go
package logger

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func newObservedLogger(level LogLevel) (*defaultLogger, *observer.ObservedLogs) {
	core, logs := observer.New(zap.DebugLevel)
	return &defaultLogger{logger: zap.New(core), logLevel: level}, logs
}

func TestParseLogLevelFromString(t *testing.T) {
	tests := []struct {
		levelStr      string
		expectedLevel LogLevel
	}{
		{"LogLevelDebug", LogLevelDebug},
		{"LogLevelInfo", LogLevelInfo},
		{"LogLevelWarn", LogLevelWarn},
		{"LogLevelError", LogLevelError},
		{"LogLevelDPanic", LogLevelDPanic},
		{"LogLevelPanic", LogLevelPanic},
		{"LogLevelFatal", LogLevelFatal},
		{"Invalid", LogLevelNone},
	}

	for _, tt := range tests {
		t.Run(tt.levelStr, func(t *testing.T) {
			assert.Equal(t, tt.expectedLevel, ParseLogLevelFromString(tt.levelStr))
		})
	}
}

func TestConvertToZapLevel(t *testing.T) {
	tests := []struct {
		name          string
		inputLevel    LogLevel
		expectedLevel zapcore.Level
	}{
		{"DebugLevel", LogLevelDebug, zap.DebugLevel},
		{"InfoLevel", LogLevelInfo, zap.InfoLevel},
		{"WarnLevel", LogLevelWarn, zap.WarnLevel},
		{"ErrorLevel", LogLevelError, zap.ErrorLevel},
		{"DPanicLevel", LogLevelDPanic, zap.DPanicLevel},
		{"PanicLevel", LogLevelPanic, zap.PanicLevel},
		{"FatalLevel", LogLevelFatal, zap.FatalLevel},
		{"NoneLevel", LogLevelNone, zap.FatalLevel},
		{"UnknownLevel", LogLevel(999), zap.InfoLevel},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expectedLevel, convertToZapLevel(tt.inputLevel))
		})
	}
}

func TestDefaultLogger_LevelFiltering(t *testing.T) {
	log, logs := newObservedLogger(LogLevelWarn)

	log.Debug("debug message")
	log.Info("info message")
	log.Warn("warn message")
	err := log.Error("error message")

	require.Error(t, err)
	assert.Equal(t, "error message", err.Error())
	assert.Equal(t, 0, logs.FilterMessage("debug message").Len())
	assert.Equal(t, 0, logs.FilterMessage("info message").Len())
	assert.Equal(t, 1, logs.FilterMessage("warn message").Len())
	assert.Equal(t, 1, logs.FilterMessage("error message").Len())
}

func TestDefaultLogger_SetLevel(t *testing.T) {
	log, logs := newObservedLogger(LogLevelError)
	log.SetLevel(LogLevelDebug)

	assert.Equal(t, LogLevelDebug, log.GetLogLevel())
	log.Debug("now visible")
	assert.Equal(t, 1, logs.FilterMessage("now visible").Len())
}

func TestDefaultLogger_With(t *testing.T) {
	log, logs := newObservedLogger(LogLevelInfo)

	child := log.With(zap.String("component", "refresh"))
	child.Info("hello")

	entries := logs.FilterMessage("hello").All()
	require.Len(t, entries, 1)
	assert.Equal(t, "refresh", entries[0].ContextMap()["component"])
	assert.Equal(t, LogLevelInfo, child.GetLogLevel())
}

func TestDefaultLogger_Panic(t *testing.T) {
	log, _ := newObservedLogger(LogLevelPanic)
	assert.Panics(t, func() { log.Panic("panic message") })
}

func TestLogRequestStart_RedactsSensitiveHeaders(t *testing.T) {
	log, logs := newObservedLogger(LogLevelDebug)
	log.hideSensitiveData = true

	log.LogRequestStart("request_start", "req-1", "GET", "http://example.com", map[string][]string{
		"Authorization": {"Bearer secret"},
		"Accept":        {"application/json"},
	})

	entries := logs.FilterMessage("HTTP request started").All()
	require.Len(t, entries, 1)
	headers := entries[0].ContextMap()["headers"].(map[string][]string)
	assert.Equal(t, []string{"REDACTED"}, headers["Authorization"])
	assert.Equal(t, []string{"application/json"}, headers["Accept"])
}

func TestLogRenewal(t *testing.T) {
	log, logs := newObservedLogger(LogLevelInfo)

	log.LogRenewal("renewal", "success", 3, time.Second, nil)
	log.LogRenewal("renewal", "failure", 2, time.Second, errors.New("rejected"))

	success := logs.FilterMessage("Credential renewed").All()
	require.Len(t, success, 1)
	assert.Equal(t, int64(3), success[0].ContextMap()["waiters"])

	failure := logs.FilterMessage("Credential renewal failed").All()
	require.Len(t, failure, 1)
	assert.Equal(t, zapcore.WarnLevel, failure[0].Level)
	assert.Equal(t, "rejected", failure[0].ContextMap()["error"])
}

func TestNewNop(t *testing.T) {
	log := NewNop()
	assert.NotPanics(t, func() {
		log.Info("ignored")
		log.LogRenewal("renewal", "success", 1, 0, nil)
	})
	assert.Error(t, log.Error("still returned"))
}

func TestEnsureLogDirectory(t *testing.T) {
	base := t.TempDir()

	t.Run("creates missing directory", func(t *testing.T) {
		dir, err := EnsureLogDirectory(filepath.Join(base, "logs", "nested"))
		require.NoError(t, err)
		info, err := os.Stat(dir)
		require.NoError(t, err)
		assert.True(t, info.IsDir())
	})

	t.Run("existing file resolves to parent", func(t *testing.T) {
		file := filepath.Join(base, "app.log")
		require.NoError(t, os.WriteFile(file, nil, 0o600))
		dir, err := EnsureLogDirectory(file)
		require.NoError(t, err)
		assert.Equal(t, base, dir)
	})
}

func TestBuildLogger_ExportsToRotatedFile(t *testing.T) {
	dir := t.TempDir()

	log := BuildLogger(Options{
		Level:         LogLevelInfo,
		Encoding:      LogOutputJSON,
		ExportPath:    dir,
		InitialFields: map[string]interface{}{"application": "test"},
	})
	log.Info("exported entry")

	matches, err := filepath.Glob(filepath.Join(dir, "session.*.log"))
	require.NoError(t, err)
	require.NotEmpty(t, matches)

	data, err := os.ReadFile(matches[0])
	require.NoError(t, err)
	assert.Contains(t, string(data), "exported entry")
	assert.Equal(t, LogLevelInfo, log.GetLogLevel())
}
