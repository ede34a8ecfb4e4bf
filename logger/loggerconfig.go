// logger/loggerconfig.go
package logger

import (
	"os"
	"path/filepath"
	"time"

	rotatelogs "github.com/lestrrat-go/file-rotatelogs"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const (
	LogOutputJSON    = "json"
	LogOutputConsole = "console"
	// LogOutputPretty is accepted as an alias of LogOutputConsole.
	LogOutputPretty = "pretty"

	logRotationTime = 24 * time.Hour
	logMaxAge       = 7 * 24 * time.Hour
)

// Options holds the settings BuildLogger understands.
type Options struct {
	Level             LogLevel
	Encoding          string
	ConsoleSeparator  string
	ExportPath        string
	HideSensitiveData bool
	InitialFields     map[string]interface{}
}

// BuildLogger creates and returns a new zap backed Logger writing to stdout. When
// ExportPath is set, JSON entries are also written to a daily rotated file under that
// directory. A failure to open the export file is reported on the returned logger and
// does not prevent logging to stdout.
func BuildLogger(opts Options) Logger {
	encoderCfg := zap.NewProductionEncoderConfig()
	encoderCfg.TimeKey = "timestamp"
	encoderCfg.EncodeTime = zapcore.RFC3339TimeEncoder
	encoderCfg.MessageKey = "msg"
	encoderCfg.LevelKey = "level"
	encoderCfg.NameKey = "logger"
	encoderCfg.EncodeDuration = zapcore.StringDurationEncoder
	encoderCfg.EncodeName = zapcore.FullNameEncoder

	encoding := LogOutputJSON
	if opts.Encoding == LogOutputConsole || opts.Encoding == LogOutputPretty {
		encoding = LogOutputConsole
		encoderCfg.EncodeLevel = zapcore.CapitalColorLevelEncoder
		if opts.ConsoleSeparator != "" {
			encoderCfg.ConsoleSeparator = opts.ConsoleSeparator
		}
	}

	zapLevel := zap.NewAtomicLevelAt(convertToZapLevel(opts.Level))

	var stdoutEncoder zapcore.Encoder
	if encoding == LogOutputConsole {
		stdoutEncoder = zapcore.NewConsoleEncoder(encoderCfg)
	} else {
		stdoutEncoder = zapcore.NewJSONEncoder(encoderCfg)
	}
	cores := []zapcore.Core{zapcore.NewCore(stdoutEncoder, zapcore.Lock(os.Stdout), zapLevel)}

	var exportErr error
	if opts.ExportPath != "" {
		writer, err := newRotatingWriter(opts.ExportPath)
		if err != nil {
			exportErr = err
		} else {
			fileCfg := encoderCfg
			fileCfg.EncodeLevel = zapcore.CapitalLevelEncoder
			cores = append(cores, zapcore.NewCore(zapcore.NewJSONEncoder(fileCfg), zapcore.AddSync(writer), zapLevel))
		}
	}

	fields := make([]zap.Field, 0, len(opts.InitialFields))
	for key, value := range opts.InitialFields {
		fields = append(fields, zap.Any(key, value))
	}

	wrappedCore := &customCore{zapcore.NewTee(cores...)}
	zl := zap.New(wrappedCore, zap.ErrorOutput(zapcore.Lock(os.Stderr))).With(fields...)

	log := &defaultLogger{
		logger:            zl,
		logLevel:          opts.Level,
		hideSensitiveData: opts.HideSensitiveData,
	}
	if exportErr != nil {
		log.Warn("Log export disabled", zap.String("path", opts.ExportPath), zap.Error(exportErr))
	}
	return log
}

// newRotatingWriter opens a rotatelogs writer under dir.
func newRotatingWriter(path string) (*rotatelogs.RotateLogs, error) {
	dir, err := EnsureLogDirectory(path)
	if err != nil {
		return nil, err
	}
	return rotatelogs.New(
		filepath.Join(dir, "session.%Y%m%d.log"),
		rotatelogs.WithLinkName(filepath.Join(dir, "session.log")),
		rotatelogs.WithRotationTime(logRotationTime),
		rotatelogs.WithMaxAge(logMaxAge),
	)
}

// convertToZapLevel converts the custom LogLevel to a zapcore.Level
func convertToZapLevel(level LogLevel) zapcore.Level {
	switch level {
	case LogLevelDebug:
		return zap.DebugLevel
	case LogLevelInfo:
		return zap.InfoLevel
	case LogLevelWarn:
		return zap.WarnLevel
	case LogLevelError:
		return zap.ErrorLevel
	case LogLevelDPanic:
		return zap.DPanicLevel
	case LogLevelPanic:
		return zap.PanicLevel
	case LogLevelFatal, LogLevelNone:
		return zap.FatalLevel
	default:
		return zap.InfoLevel
	}
}
