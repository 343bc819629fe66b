// Package logger provides the process-wide structured logger for slackgammon.
package logger

import (
	"io"
	"log/slog"
	"os"
	"sync"
)

var (
	root     *slog.Logger
	levelVar = new(slog.LevelVar)
	mu       sync.Mutex
	initDone bool
)

// SetDebug enables or disables debug level logging
func SetDebug(enabled bool) {
	if enabled {
		levelVar.Set(slog.LevelDebug)
	} else {
		levelVar.Set(slog.LevelInfo)
	}
}

// Init initializes the logger with a custom writer. Must be called before
// logging. If not called, stderr is used on first log call.
func Init(w io.Writer) {
	mu.Lock()
	defer mu.Unlock()

	if initDone {
		return
	}

	handler := slog.NewTextHandler(w, &slog.HandlerOptions{Level: levelVar})
	root = slog.New(handler)
	initDone = true
}

// ensureInit initializes the logger with default settings if not already
// initialized. Caller must hold mu.
func ensureInit() {
	if initDone {
		return
	}

	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: levelVar})
	root = slog.New(handler)
	initDone = true
}

// Get returns the root logger instance.
// Use this when you don't have game context.
func Get() *slog.Logger {
	mu.Lock()
	defer mu.Unlock()

	ensureInit()

	if root == nil {
		return slog.Default()
	}
	return root
}

// WithGame returns a logger with the game ID attached.
// All log entries from this logger will include gameID as a structured field.
//
// Example:
//
//	log := logger.WithGame(sess.ID)
//	log.Info("engine started", "path", path)
//	// Output: level=INFO msg="engine started" gameID=abc123 path=/usr/local/bin/gnubg
func WithGame(gameID string) *slog.Logger {
	mu.Lock()
	defer mu.Unlock()

	ensureInit()

	if root == nil {
		return slog.Default().With("gameID", gameID)
	}
	return root.With("gameID", gameID)
}

// WithComponent returns a logger with the component name attached.
// Useful for non-game-scoped logging where you want to identify the source.
//
// Example:
//
//	log := logger.WithComponent("server")
//	log.Info("listening", "addr", addr)
//	// Output: level=INFO msg="listening" component=server addr=:8080
func WithComponent(component string) *slog.Logger {
	mu.Lock()
	defer mu.Unlock()

	ensureInit()

	if root == nil {
		return slog.Default().With("component", component)
	}
	return root.With("component", component)
}

// Reset resets the logger state, allowing reinitialization.
// This is primarily for testing purposes.
func Reset() {
	mu.Lock()
	defer mu.Unlock()

	initDone = false
	root = nil
	levelVar = new(slog.LevelVar)
}
