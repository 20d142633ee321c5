package config

import (
	"fmt"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func parseLevel(level string) (zapcore.Level, error) {
	var l zapcore.Level
	if err := l.UnmarshalText([]byte(level)); err != nil {
		return l, fmt.Errorf("invalid log level '%s'", level)
	}
	return l, nil
}

// NewLogger builds the process logger: JSON output with ISO8601 timestamps,
// or the console development logger.
func NewLogger(c LoggingConfig) (*zap.Logger, error) {
	level, err := parseLevel(c.Level)
	if err != nil {
		return nil, err
	}

	config := zap.NewProductionConfig()
	if c.Development {
		config = zap.NewDevelopmentConfig()
	}
	config.Level = zap.NewAtomicLevelAt(level)
	config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder // Human-readable timestamps
	config.EncoderConfig.TimeKey = "timestamp"                   // Key for the timestamp field

	return config.Build()
}
