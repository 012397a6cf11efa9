// Package logger holds the process-wide structured logger shared by every engine package.
package logger

import (
	"fmt"
	"sync/atomic"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// active is the process-wide logger. It discards everything until SetLogger is called.
var active atomic.Pointer[zap.Logger]

func init() {
	active.Store(zap.NewNop())
}

// L returns the active logger. Safe to call from any goroutine.
func L() *zap.Logger {
	return active.Load()
}

// SetLogger replaces the active logger. Passing nil restores the silent default.
//
// Parameters:
//   - l: the logger to install
func SetLogger(l *zap.Logger) {
	if l == nil {
		l = zap.NewNop()
	}
	active.Store(l)
}

// New builds a zap logger at the given level ("debug", "info", "warn", "error").
// Development mode selects the console encoder with caller and stack annotations.
//
// Parameters:
//   - level: the minimum level to log
//   - development: true for human-readable development output
//
// Returns:
//   - *zap.Logger: the configured logger
//   - error: error if the level is unknown or the logger cannot be built
func New(level string, development bool) (*zap.Logger, error) {
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		return nil, fmt.Errorf("logger: %w", err)
	}

	cfg := zap.NewProductionConfig()
	if development {
		cfg = zap.NewDevelopmentConfig()
	}
	cfg.Level = zap.NewAtomicLevelAt(lvl)
	return cfg.Build()
}
