package logger

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func NewLogger(level string) (*zap.Logger, error) {
	return build(level)
}

// NewFileLogger logs to stderr and appends to path.
func NewFileLogger(path, level string) (*zap.Logger, error) {
	return build(level, path)
}

func build(level string, files ...string) (*zap.Logger, error) {
	config := zap.NewProductionConfig()

	l, err := zapcore.ParseLevel(level)
	if err != nil {
		l = zapcore.InfoLevel
	}
	config.Level = zap.NewAtomicLevelAt(l)
	config.EncoderConfig.TimeKey = "time"
	config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	config.OutputPaths = append(config.OutputPaths, files...)

	return config.Build(zap.Fields(zap.String("service", "crypto_prices_etl")))
}
