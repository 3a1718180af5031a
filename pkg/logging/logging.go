// Package logging builds the zap loggers used across fundboard.
//
// The dashboards own the terminal, so logs go to a file under the data
// directory instead of stderr.
package logging

import (
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const FileName = "fundboard.log"

// Options controls logger construction.
type Options struct {
	Dir    string // directory for the log file; empty logs to stderr
	Debug  bool
	Stderr bool // also log to stderr (headless mode)
}

// New returns a production JSON logger.
func New(opts Options) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	if opts.Debug {
		cfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
	}
	cfg.EncoderConfig.TimeKey = "ts"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	var outputs []string
	if opts.Dir != "" {
		if err := os.MkdirAll(opts.Dir, 0o755); err != nil {
			return nil, fmt.Errorf("logging: creating %s: %w", opts.Dir, err)
		}
		outputs = append(outputs, filepath.Join(opts.Dir, FileName))
	}
	if opts.Stderr || len(outputs) == 0 {
		outputs = append(outputs, "stderr")
	}
	cfg.OutputPaths = outputs
	cfg.ErrorOutputPaths = []string{"stderr"}

	logger, err := cfg.Build()
	if err != nil {
		return nil, fmt.Errorf("logging: building logger: %w", err)
	}
	return logger, nil
}

// NewNop returns a logger that discards everything.
func NewNop() *zap.Logger {
	return zap.NewNop()
}

// OrNop returns l, or a no-op logger when l is nil.
func OrNop(l *zap.Logger) *zap.Logger {
	if l == nil {
		return zap.NewNop()
	}
	return l
}
