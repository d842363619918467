package logger

import (
	"os"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Package-level tag-style logging used throughout the app:
// logger.Info("TAG", "message"). Backed by a shared zap sugared logger.

var (
	mu  sync.Mutex
	log *zap.SugaredLogger
)

func get() *zap.SugaredLogger {
	mu.Lock()
	defer mu.Unlock()
	if log == nil {
		cfg := zap.NewDevelopmentConfig()
		if os.Getenv("LOG_JSON") != "" {
			cfg = zap.NewProductionConfig()
		}
		cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
		cfg.DisableCaller = true
		cfg.DisableStacktrace = true
		l, err := cfg.Build()
		if err != nil {
			// zap only fails on invalid config; fall back to a no-op core.
			l = zap.NewNop()
		}
		log = l.Sugar()
	}
	return log
}

// Info logs an informational message under a component tag.
func Info(tag, msg string) {
	get().Infof("[%s] %s", tag, msg)
}

// Success logs a completed-step message under a component tag.
func Success(tag, msg string) {
	get().Infof("[%s] OK %s", tag, msg)
}

// Warn logs a warning under a component tag.
func Warn(tag, msg string) {
	get().Warnf("[%s] %s", tag, msg)
}

// Error logs an error under a component tag.
func Error(tag, msg string) {
	get().Errorf("[%s] %s", tag, msg)
}

// Banner prints the startup banner with the build version.
func Banner(version string) {
	if version == "" {
		version = "dev"
	}
	get().Infof("EVE Metro %s", version)
}

// Section marks the start of a named phase in the log.
func Section(name string) {
	get().Infof("--- %s ---", name)
}

// Stats logs a single key/value counter.
func Stats(key string, value int) {
	get().Infof("%s: %d", key, value)
}

// Server logs the listen address once the HTTP server is up.
func Server(addr string) {
	get().Infof("Listening on http://%s", addr)
}

// Sync flushes buffered log entries. Called on shutdown.
func Sync() {
	mu.Lock()
	defer mu.Unlock()
	if log != nil {
		_ = log.Sync()
	}
}
