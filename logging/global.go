// Package logging provides the structured logging service for the
// interactions API: a global slog logger writing to console and a rotating
// weekly log file, plus the HTTP request logging middleware. Check-path log
// lines carry drug names and matched rule ids for audit reconstruction, never
// full patient identity.
package logging

import (
	"log/slog"
	"os"
)

type LoggingService struct {
	Logger *slog.Logger
}

var DefaultLoggingService *LoggingService

// InitLogger initializes the global logger instance. An empty logDir logs to
// stderr only, which tests rely on.
func InitLogger(logDir string) {
	DefaultLoggingService = &LoggingService{
		Logger: SetupLogger(logDir, Options{}),
	}
	slog.SetDefault(DefaultLoggingService.Logger)
}

// InitLoggerWithOptions initializes the global logger with explicit rotation
// and level settings from the configuration.
func InitLoggerWithOptions(logDir string, opts Options) {
	DefaultLoggingService = &LoggingService{
		Logger: SetupLogger(logDir, opts),
	}
	slog.SetDefault(DefaultLoggingService.Logger)
}

// Package-level functions for direct access

func Info(msg string, args ...any) {
	logWith(slog.LevelInfo, msg, args...)
}

func Error(msg string, args ...any) {
	logWith(slog.LevelError, msg, args...)
}

func Warn(msg string, args ...any) {
	logWith(slog.LevelWarn, msg, args...)
}

func Debug(msg string, args ...any) {
	logWith(slog.LevelDebug, msg, args...)
}

func logWith(level slog.Level, msg string, args ...any) {
	if DefaultLoggingService == nil || DefaultLoggingService.Logger == nil {
		// Fallback to console logger if not initialized
		fallback := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
			Level: slog.LevelDebug,
		}))
		fallback.Log(nil, level, msg, args...)
		return
	}
	DefaultLoggingService.Logger.Log(nil, level, msg, args...)
}
