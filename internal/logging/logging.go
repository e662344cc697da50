// Package logging centralizes zap logger construction so every component
// reports through the same core with a per-component name.
package logging

import (
	"fmt"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	mu   sync.RWMutex
	root = zap.NewNop()
)

// Setup builds the process-wide logger. level is one of debug, info, warn,
// error; json selects the production JSON encoder, otherwise a console
// encoder is used. Before Setup runs all loggers are no-ops, which keeps
// library use silent.
func Setup(level string, json bool) error {
	var cfg zap.Config
	if json {
		cfg = zap.NewProductionConfig()
	} else {
		cfg = zap.NewDevelopmentConfig()
	}

	switch level {
	case "", "info":
		cfg.Level = zap.NewAtomicLevelAt(zapcore.InfoLevel)
	case "debug":
		cfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
	case "warn":
		cfg.Level = zap.NewAtomicLevelAt(zapcore.WarnLevel)
	case "error":
		cfg.Level = zap.NewAtomicLevelAt(zapcore.ErrorLevel)
	default:
		return fmt.Errorf("unknown log level %q", level)
	}

	logger, err := cfg.Build()
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}

	mu.Lock()
	root = logger
	mu.Unlock()
	zap.ReplaceGlobals(logger)
	return nil
}

// Get returns a named logger for a component, e.g. Get("merge").
func Get(component string) *zap.Logger {
	mu.RLock()
	defer mu.RUnlock()
	return root.Named(component)
}

// Sync flushes buffered log entries. Called once on shutdown.
func Sync() {
	mu.RLock()
	defer mu.RUnlock()
	_ = root.Sync()
}
