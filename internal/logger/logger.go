package logger

import (
	"fmt"
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// New creates a console zap logger writing to stderr at the given level.
// Stdout is left to the progress display.
func New(level string) (*zap.Logger, error) {
	return NewWithWriter(level, zapcore.Lock(os.Stderr))
}

// NewWithWriter creates a console zap logger writing to w
func NewWithWriter(level string, w zapcore.WriteSyncer) (*zap.Logger, error) {
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", level, err)
	}

	encoderConfig := zapcore.EncoderConfig{
		TimeKey:        "time",
		LevelKey:       "level",
		MessageKey:     "msg",
		NameKey:        "logger",
		EncodeTime:     zapcore.TimeEncoderOfLayout("15:04:05"),
		EncodeLevel:    zapcore.CapitalColorLevelEncoder,
		EncodeDuration: zapcore.StringDurationEncoder,
	}

	core := zapcore.NewCore(
		zapcore.NewConsoleEncoder(encoderConfig),
		w,
		lvl,
	)

	return zap.New(core), nil
}
