package common

import (
	"os"
	"path/filepath"

	"github.com/mattn/go-isatty"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/berrythewa/clipkeep/internal/config"
)

// IsTTY reports whether f is attached to a terminal
func IsTTY(f *os.File) bool {
	fd := f.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

// resolveEncoding picks the zap encoding for a configured log format
func resolveEncoding(format string, tty bool) string {
	switch format {
	case "json":
		return "json"
	case "text", "console":
		return "console"
	default:
		if tty {
			return "console"
		}
		return "json"
	}
}

// NewLogger creates a new logger instance
func NewLogger(cfg config.LogConfig) (*zap.Logger, error) {
	var level zapcore.Level
	if err := level.UnmarshalText([]byte(cfg.Level)); err != nil {
		level = zapcore.InfoLevel
	}

	encoding := resolveEncoding(cfg.Format, IsTTY(os.Stderr))
	encoderConfig := zap.NewProductionEncoderConfig()
	encoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	if encoding == "console" {
		encoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}

	outputs := []string{"stderr"}
	if cfg.EnableFileLogging && cfg.File != "" {
		if err := os.MkdirAll(filepath.Dir(cfg.File), 0755); err == nil {
			outputs = []string{cfg.File}
			encoderConfig.EncodeLevel = zapcore.CapitalLevelEncoder
		}
	}

	zc := zap.Config{
		Level:       zap.NewAtomicLevelAt(level),
		Development: false,
		Sampling: &zap.SamplingConfig{
			Initial:    100,
			Thereafter: 100,
		},
		Encoding:         encoding,
		EncoderConfig:    encoderConfig,
		OutputPaths:      outputs,
		ErrorOutputPaths: []string{"stderr"},
	}

	return zc.Build()
}
