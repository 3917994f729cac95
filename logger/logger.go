// Package logger provides the process-wide zap logger.
package logger

import (
	"fmt"
	"os"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	logger *zap.Logger
	once   sync.Once
	mu     sync.Mutex
)

// Init builds the global logger. environment "production" selects JSON output,
// anything else the development console encoder. Later calls are no-ops.
func Init(level, environment string) {
	once.Do(func() {
		mu.Lock()
		defer mu.Unlock()
		logger = build(level, environment)
	})
}

func build(levelStr, environment string) *zap.Logger {
	var level zapcore.Level
	if err := level.UnmarshalText([]byte(levelStr)); err != nil {
		level = zapcore.InfoLevel
	}

	var cfg zap.Config
	if environment == "production" {
		cfg = zap.NewProductionConfig()
	} else {
		cfg = zap.NewDevelopmentConfig()
	}
	cfg.Level = zap.NewAtomicLevelAt(level)
	cfg.OutputPaths = []string{"stdout"}
	cfg.ErrorOutputPaths = []string{"stderr"}

	zapLogger, err := cfg.Build()
	if err != nil {
		panic(fmt.Sprintf("failed to initialize logger: %v", err))
	}
	return zapLogger
}

// L returns the global logger, initialising it with defaults if needed.
func L() *zap.Logger {
	Init(os.Getenv("LOG_LEVEL"), os.Getenv("ENVIRONMENT"))
	mu.Lock()
	defer mu.Unlock()
	return logger
}

// Sync flushes buffered entries. Call before exit.
func Sync() {
	mu.Lock()
	defer mu.Unlock()
	if logger != nil {
		if err := logger.Sync(); err != nil {
			fmt.Fprintf(os.Stderr, "error syncing logger: %v\n", err)
		}
	}
}
