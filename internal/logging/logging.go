// Package logging constructs the single *zap.Logger a probe process
// passes explicitly down through its dependency graph. No package
// outside this one reaches for a global logger.
package logging

import (
	"fmt"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// New builds a production-shaped zap.Logger: JSON encoding, ISO8601
// timestamps, level gated by levelName ("debug", "info", "warn",
// "error"; defaults to "info" on an empty or unrecognized value).
func New(levelName string) (*zap.Logger, error) {
	level, err := parseLevel(levelName)
	if err != nil {
		return nil, err
	}

	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(level)
	cfg.EncoderConfig.TimeKey = "ts"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	logger, err := cfg.Build()
	if err != nil {
		return nil, fmt.Errorf("building logger: %w", err)
	}
	return logger, nil
}

func parseLevel(name string) (zapcore.Level, error) {
	if name == "" {
		return zapcore.InfoLevel, nil
	}
	var level zapcore.Level
	if err := level.UnmarshalText([]byte(name)); err != nil {
		return zapcore.InfoLevel, fmt.Errorf("parsing log level %q: %w", name, err)
	}
	return level, nil
}
