package logging

import (
	"io"
	"log/slog"
	"os"
	"sync/atomic"
)

var structuredLogger *slog.Logger
var humanReadableLogger *slog.Logger

// levelVar allows the minimum level to be changed after Init.
var levelVar slog.LevelVar

const (
	LevelFatal = slog.Level(12)
)

// Add fatal level name.
var levelNames = map[slog.Leveler]string{
	LevelFatal: "FATAL",
}

var initialized atomic.Bool

// Init initializes the logging system with structured and human-readable loggers.
// It configures JSON output for structured logs and Text output for human-readable logs.
func Init() {
	if !initialized.CompareAndSwap(false, true) {
		return
	}

	levelVar.Set(slog.LevelInfo)

	// Configure structured logger (JSON to stdout)
	structuredLogger = slog.New(slog.NewJSONHandler(os.Stdout, handlerOptions()))

	// Configure human-readable logger (Text to stderr)
	humanReadableLogger = slog.New(slog.NewTextHandler(os.Stderr, handlerOptions()))

	// Set the structured logger as the application default
	slog.SetDefault(structuredLogger)
}

func handlerOptions() *slog.HandlerOptions {
	return &slog.HandlerOptions{
		Level: &levelVar,
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			// Customize level names
			if a.Key == slog.LevelKey {
				level := a.Value.Any().(slog.Level)
				levelLabel, exists := levelNames[level]
				if !exists {
					levelLabel = level.String()
				}
				a.Value = slog.StringValue(levelLabel)
			}
			return a
		},
	}
}

// SetLevel sets the minimum logging level for both loggers.
func SetLevel(level slog.Level) {
	levelVar.Set(level)
}

// HumanReadableLogger returns the text logger, initializing the logging system if needed.
func HumanReadableLogger() *slog.Logger {
	Init()
	return humanReadableLogger
}

// ForService returns a logger with a service attribute attached, for
// per-component logging.
func ForService(service string) *slog.Logger {
	Init()
	return structuredLogger.With("service", service)
}

// Discard returns a logger that drops all records, for use in tests.
func Discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
