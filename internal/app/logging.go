package app

import (
	"fmt"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"omnisearch/internal/infra/telemetry"
)

// LoggingConfig configures logging wiring.
type LoggingConfig struct {
	// Level is a zap level name; empty means info.
	Level string
	// Format is "json" or "console"; empty means json.
	Format string
	// Logger replaces the built logger when set.
	Logger      *zap.Logger
	Broadcaster *telemetry.LogBroadcaster
}

// Logging bundles the logger and broadcaster.
type Logging struct {
	Logger      *zap.Logger
	Broadcaster *telemetry.LogBroadcaster
}

// NewLogging builds the process logger and tees it into a log broadcaster so
// the control API can stream entries.
func NewLogging(cfg LoggingConfig) (Logging, error) {
	level := zapcore.InfoLevel
	if strings.TrimSpace(cfg.Level) != "" {
		parsed, err := zapcore.ParseLevel(cfg.Level)
		if err != nil {
			return Logging{}, fmt.Errorf("invalid log level %q: %w", cfg.Level, err)
		}
		level = parsed
	}

	logger := cfg.Logger
	if logger == nil {
		built, err := buildLogger(level, cfg.Format)
		if err != nil {
			return Logging{}, err
		}
		logger = built
	}
	logger = logger.With(zap.String(telemetry.FieldLogSource, telemetry.LogSourceCore))

	logs := cfg.Broadcaster
	if logs == nil {
		logs = telemetry.NewLogBroadcaster(level)
	}
	logger = logger.WithOptions(zap.WrapCore(func(core zapcore.Core) zapcore.Core {
		return zapcore.NewTee(core, logs.Core())
	}))

	return Logging{
		Logger:      logger,
		Broadcaster: logs,
	}, nil
}

func buildLogger(level zapcore.Level, format string) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(level)
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	switch strings.ToLower(strings.TrimSpace(format)) {
	case "", "json":
	case "console":
		cfg.Encoding = "console"
		cfg.EncoderConfig.EncodeLevel = zapcore.CapitalLevelEncoder
	default:
		return nil, fmt.Errorf("invalid log format %q (want json or console)", format)
	}
	return cfg.Build()
}
