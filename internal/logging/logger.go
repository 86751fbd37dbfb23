package logging

import (
	"fmt"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"mslclient/internal/config"
)

// Options controls logger construction.
type Options struct {
	Format           string
	Level            string
	OutputPaths      []string
	ErrorOutputPaths []string
}

// NewFromConfig builds a logger from the [logging] section of cfg.
func NewFromConfig(cfg *config.Config) (*zap.Logger, error) {
	if cfg == nil {
		return nil, fmt.Errorf("logging: nil config")
	}
	return New(Options{Format: cfg.Logging.Format, Level: cfg.Logging.Level})
}

// New builds a logger. An unknown level falls back to info; an unknown
// format falls back to console.
func New(opts Options) (*zap.Logger, error) {
	level := zap.NewAtomicLevelAt(zapcore.InfoLevel)
	if lvl := strings.TrimSpace(opts.Level); lvl != "" {
		if err := level.UnmarshalText([]byte(strings.ToLower(lvl))); err != nil {
			level = zap.NewAtomicLevelAt(zapcore.InfoLevel)
		}
	}

	var zcfg zap.Config
	if strings.EqualFold(strings.TrimSpace(opts.Format), "json") {
		zcfg = zap.NewProductionConfig()
		zcfg.EncoderConfig.TimeKey = "ts"
		zcfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	} else {
		zcfg = zap.NewDevelopmentConfig()
		zcfg.Development = false
		zcfg.EncoderConfig.EncodeLevel = zapcore.CapitalLevelEncoder
		zcfg.EncoderConfig.EncodeTime = zapcore.TimeEncoderOfLayout("15:04:05")
	}
	zcfg.Level = level
	zcfg.Sampling = nil
	zcfg.DisableCaller = level.Level() > zapcore.DebugLevel
	zcfg.DisableStacktrace = level.Level() > zapcore.DebugLevel

	zcfg.OutputPaths = []string{"stderr"}
	if len(opts.OutputPaths) > 0 {
		zcfg.OutputPaths = opts.OutputPaths
	}
	zcfg.ErrorOutputPaths = []string{"stderr"}
	if len(opts.ErrorOutputPaths) > 0 {
		zcfg.ErrorOutputPaths = opts.ErrorOutputPaths
	}

	logger, err := zcfg.Build()
	if err != nil {
		return nil, fmt.Errorf("build logger: %w", err)
	}
	return logger, nil
}
