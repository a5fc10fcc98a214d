// Package logger builds the zap loggers used by the quizrag binaries and
// carries request-scoped loggers through contexts.
package logger

import (
	"fmt"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Options selects the logger flavour.
type Options struct {
	// Env is prod (JSON), local, dev or docker (colored console), or test (no-op).
	Env string
	// Level overrides the environment default when set.
	Level string
	// Service is attached to every entry; defaults to "quizrag".
	Service string
}

// New builds a logger for opts.
func New(opts Options) (*zap.Logger, error) {
	var cfg zap.Config
	switch opts.Env {
	case "prod":
		cfg = zap.NewProductionConfig()
	case "local", "dev", "docker":
		cfg = zap.NewDevelopmentConfig()
		cfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	case "test":
		return zap.NewNop(), nil
	default:
		return nil, fmt.Errorf("unknown logger environment %q", opts.Env)
	}

	if opts.Level != "" {
		level, err := ParseLevel(opts.Level)
		if err != nil {
			return nil, err
		}
		cfg.Level = zap.NewAtomicLevelAt(level)
	}

	l, err := cfg.Build(zap.AddStacktrace(zapcore.ErrorLevel))
	if err != nil {
		return nil, fmt.Errorf("build logger: %w", err)
	}
	service := opts.Service
	if service == "" {
		service = "quizrag"
	}
	return l.With(zap.String("service", service)), nil
}

// ParseLevel accepts debug, info, warn or error.
func ParseLevel(s string) (zapcore.Level, error) {
	var level zapcore.Level
	if err := level.UnmarshalText([]byte(s)); err != nil {
		return level, fmt.Errorf("invalid log level %q: %w", s, err)
	}
	return level, nil
}
