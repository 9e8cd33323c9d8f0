// Package logger builds the zap logger every service uses.
package logger

import (
	"fmt"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

type Config struct {
	Service     string
	Environment string
	// Level overrides the environment default when set.
	Level string
}

func New(cfg Config) (*zap.Logger, error) {
	level, err := resolveLevel(cfg)
	if err != nil {
		return nil, err
	}

	base := buildConfigByEnvironment(cfg.Environment)
	base.Level = level
	base.DisableStacktrace = true

	built, err := base.Build()
	if err != nil {
		return nil, fmt.Errorf("failed to build logger: %w", err)
	}
	return built.With(zap.String("service", cfg.Service)), nil
}

func isDevelopment(env string) bool {
	switch strings.ToLower(env) {
	case "development", "local", "test":
		return true
	}
	return false
}

func resolveLevel(cfg Config) (zap.AtomicLevel, error) {
	if strings.TrimSpace(cfg.Level) != "" {
		var parsed zapcore.Level
		if err := parsed.Set(cfg.Level); err != nil {
			return zap.AtomicLevel{}, fmt.Errorf("invalid log level %q: %w", cfg.Level, err)
		}
		return zap.NewAtomicLevelAt(parsed), nil
	}
	if isDevelopment(cfg.Environment) {
		return zap.NewAtomicLevelAt(zapcore.DebugLevel), nil
	}
	return zap.NewAtomicLevelAt(zapcore.InfoLevel), nil
}

func buildConfigByEnvironment(env string) zap.Config {
	cfg := zap.NewProductionConfig()
	if isDevelopment(env) {
		cfg = zap.NewDevelopmentConfig()
	}
	cfg.Encoding = "json"
	cfg.EncoderConfig.EncodeLevel = zapcore.CapitalLevelEncoder
	cfg.EncoderConfig.TimeKey = "timestamp"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	return cfg
}
