package util

import (
	"fmt"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// LogConfig selects the logger preset for one binary.
type LogConfig struct {
	Env     string
	Level   string
	Service string
	// Command tags every entry with the binary that wrote it.
	Command string
}

var logger *zap.Logger

// InitLogger builds the global logger: JSON with ISO8601 times in
// production, colored console output otherwise.
func InitLogger(cfg LogConfig) error {
	zcfg := zap.NewDevelopmentConfig()
	zcfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	if cfg.Env == "production" {
		zcfg = zap.NewProductionConfig()
		zcfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	}

	if cfg.Level != "" {
		lvl, err := zapcore.ParseLevel(cfg.Level)
		if err != nil {
			return fmt.Errorf("invalid log level %q: %w", cfg.Level, err)
		}
		zcfg.Level = zap.NewAtomicLevelAt(lvl)
	}

	fields := []zap.Field{zap.String("service", serviceOrDefault(cfg.Service))}
	if cfg.Command != "" {
		fields = append(fields, zap.String("cmd", cfg.Command))
	}
	built, err := zcfg.Build(zap.Fields(fields...))
	if err != nil {
		return fmt.Errorf("failed to build logger: %w", err)
	}

	logger = built
	zap.ReplaceGlobals(logger)
	return nil
}

// GetLogger returns the global logger, or a development logger before
// InitLogger has run.
func GetLogger() *zap.Logger {
	if logger == nil {
		logger, _ = zap.NewDevelopment()
	}
	return logger
}

// SyncLogger flushes any buffered log entries
func SyncLogger() {
	if logger != nil {
		_ = logger.Sync()
	}
}
