// Package debug provides debug logging for pgweave using log/slog.
// Logging is off unless PGWEAVE_DEBUG is set to 1, true or debug, or
// Init is called explicitly.
package debug

import (
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"
)

// EnvVar enables debug logging when set to 1, true or debug.
const EnvVar = "PGWEAVE_DEBUG"

var (
	// mu protects the logger and the enabled flag
	mu sync.RWMutex
	// logger is the shared debug logger instance
	logger *slog.Logger
	// enabled indicates if debug logging is enabled
	enabled bool
	// initialized indicates Init ran, explicitly or from the environment
	initialized bool
)

// Init initializes the debug logger, overriding the environment default.
// If enable is true, debug logs are written to os.Stderr; otherwise they
// are silently discarded.
func Init(enable bool) {
	mu.Lock()
	defer mu.Unlock()
	setLocked(enable)
}

func setLocked(enable bool) {
	enabled = enable
	initialized = true
	if enable {
		opts := &slog.HandlerOptions{Level: slog.LevelDebug}
		logger = slog.New(slog.NewTextHandler(os.Stderr, opts))
		return
	}
	logger = slog.New(slog.NewTextHandler(io.Discard, nil))
}

func envEnabled() bool {
	switch strings.ToLower(os.Getenv(EnvVar)) {
	case "1", "true", "debug":
		return true
	}
	return false
}

func get() *slog.Logger {
	mu.RLock()
	if initialized {
		l := logger
		mu.RUnlock()
		return l
	}
	mu.RUnlock()

	mu.Lock()
	defer mu.Unlock()
	if !initialized {
		setLocked(envEnabled())
	}
	return logger
}

// Enabled returns whether debug logging is enabled.
func Enabled() bool {
	get()
	mu.RLock()
	defer mu.RUnlock()
	return enabled
}

// Component returns a logger scoped to one engine component.
func Component(name string) *slog.Logger {
	return get().With("component", name)
}

// Debug logs a debug message.
func Debug(msg string, args ...any) {
	get().Debug(msg, args...)
}

// Info logs an info message.
func Info(msg string, args ...any) {
	get().Info(msg, args...)
}

// Warn logs a warning message.
func Warn(msg string, args ...any) {
	get().Warn(msg, args...)
}

// Error logs an error message.
func Error(msg string, args ...any) {
	get().Error(msg, args...)
}

// With returns a logger with the given attributes.
func With(args ...any) *slog.Logger {
	return get().With(args...)
}

// Logger returns the underlying slog.Logger instance.
func Logger() *slog.Logger {
	return get()
}
