// Package logger holds the process-wide zap logger. Components log through
// Named children; credentials only ever appear as fingerprints.
package logger

import (
	"crypto/sha256"
	"encoding/hex"
	"os"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	sugar *zap.SugaredLogger
	once  sync.Once
)

// Init builds the global logger once. "production" writes JSON at info level,
// "test" discards everything, and any other environment writes colored console
// output at debug level. LOG_LEVEL overrides the level when it parses.
func Init(env string) {
	once.Do(func() {
		sugar = build(env, os.Getenv("LOG_LEVEL")).Sugar()
	})
}

func build(env, level string) *zap.Logger {
	if env == "test" {
		return zap.NewNop()
	}

	cfg := zap.NewDevelopmentConfig()
	cfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	if env == "production" {
		cfg = zap.NewProductionConfig()
	}
	if level != "" {
		if lvl, err := zap.ParseAtomicLevel(level); err == nil {
			cfg.Level = lvl
		}
	}

	base, err := cfg.Build()
	if err != nil {
		return zap.NewNop()
	}
	return base
}

// Get returns the global sugared logger, initializing a development logger
// if Init was never called.
func Get() *zap.SugaredLogger {
	if sugar == nil {
		Init("development")
	}
	return sugar
}

// Named returns a child logger scoped to a component, e.g. "identity".
func Named(component string) *zap.SugaredLogger {
	return Get().Named(component)
}

// Fingerprint identifies a token in logs without revealing it: the first
// eight hex digits of its SHA-256.
func Fingerprint(token string) string {
	if token == "" {
		return ""
	}
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:4])
}

// Sync flushes buffered entries. Call it before exit.
func Sync() {
	if sugar != nil {
		_ = sugar.Sync()
	}
}
