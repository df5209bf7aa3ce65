package logging

import (
	"fmt"
	"os"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var logger *zap.Logger

// LogLevelEnvVar is the environment variable that controls logging verbosity.
// When unset or empty, logging is silent (no zap output).
// Valid values: "debug", "info", "warn", "error"
const LogLevelEnvVar = "E2REMOTE_LOG_LEVEL"

// Initialize creates a new logger with the specified level.
// If level is empty, it checks E2REMOTE_LOG_LEVEL.
// If neither is set, logging is disabled (silent mode).
func Initialize(level string) error {
	if level == "" {
		level = os.Getenv(LogLevelEnvVar)
	}

	if level == "" {
		logger = zap.NewNop()
		return nil
	}

	config := zap.Config{
		Level:            zap.NewAtomicLevelAt(parseLevel(level)),
		Development:      false,
		Encoding:         "console",
		EncoderConfig:    zap.NewDevelopmentEncoderConfig(),
		OutputPaths:      []string{"stderr"},
		ErrorOutputPaths: []string{"stderr"},
	}

	config.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	config.EncoderConfig.EncodeCaller = zapcore.ShortCallerEncoder

	var err error
	logger, err = config.Build()
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}

	return nil
}

func parseLevel(level string) zapcore.Level {
	switch level {
	case "debug":
		return zapcore.DebugLevel
	case "info":
		return zapcore.InfoLevel
	case "warn":
		return zapcore.WarnLevel
	case "error":
		return zapcore.ErrorLevel
	default:
		// Unknown level - use info when something was explicitly requested
		return zapcore.InfoLevel
	}
}

// InitializeFromEnv initializes the logger from E2REMOTE_LOG_LEVEL only.
func InitializeFromEnv() error {
	return Initialize("")
}

// SetLogger replaces the global logger. Tests use it with zaptest/observer.
func SetLogger(l *zap.Logger) {
	logger = l
}

// GetLogger returns the global logger instance
func GetLogger() *zap.Logger {
	if logger == nil {
		logger = zap.NewNop()
	}
	return logger
}

// Info logs an info message
func Info(msg string, fields ...zap.Field) {
	GetLogger().Info(msg, fields...)
}

// Debug logs a debug message
func Debug(msg string, fields ...zap.Field) {
	GetLogger().Debug(msg, fields...)
}

// Warn logs a warning message
func Warn(msg string, fields ...zap.Field) {
	GetLogger().Warn(msg, fields...)
}

// Error logs an error message
func Error(msg string, fields ...zap.Field) {
	GetLogger().Error(msg, fields...)
}

// LogRequest logs an outgoing request to the device
func LogRequest(kind string, url string) {
	Debug("Request issued",
		zap.String("kind", kind),
		zap.String("url", url),
	)
}

// LogResponse logs the outcome of a request. A nil err with a non-200 status
// is still logged as a warning.
func LogResponse(kind string, url string, statusCode int, elapsed time.Duration, err error) {
	fields := []zap.Field{
		zap.String("kind", kind),
		zap.String("url", url),
		zap.Duration("elapsed", elapsed),
	}
	if statusCode != 0 {
		fields = append(fields, zap.Int("status_code", statusCode))
	}

	switch {
	case err != nil:
		Warn("Request failed", append(fields, zap.Error(err))...)
	case statusCode != 200:
		Warn("Unexpected response", fields...)
	default:
		Debug("Response received", fields...)
	}
}

// LogConnectionState logs a connection state transition
func LogConnectionState(address string, state string, reason string) {
	fields := []zap.Field{
		zap.String("address", address),
		zap.String("state", state),
	}
	if reason != "" {
		fields = append(fields, zap.String("reason", reason))
	}
	Info("Connection state changed", fields...)
}

// Summarize returns a printable, length-limited rendering of a response body
// for logs. Non-printable bytes are replaced with '.'.
func Summarize(data []byte, limit int) string {
	if len(data) == 0 {
		return ""
	}
	truncated := false
	if limit > 0 && len(data) > limit {
		data = data[:limit]
		truncated = true
	}

	result := make([]byte, len(data))
	for i, b := range data {
		switch {
		case b == '\n' || b == '\r' || b == '\t':
			result[i] = ' '
		case b >= 32 && b <= 126:
			result[i] = b
		default:
			result[i] = '.'
		}
	}
	if truncated {
		return string(result) + "..."
	}
	return string(result)
}

// Sync flushes any buffered log entries
func Sync() {
	if logger != nil {
		_ = logger.Sync()
	}
}
