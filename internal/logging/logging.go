// Package logging builds the zap logger shared by the server, the watcher and the CLI.
package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Options selects the level and sinks.
type Options struct {
	// Level is a zap level name: debug, info, warn, error.
	Level string
	// Debug forces the debug level.
	Debug bool
	// File enables a rotating JSON log file in addition to stderr.
	File string
	// Console receives the stderr stream; nil means os.Stderr.
	Console io.Writer
}

// New builds a logger with production JSON encoding.
func New(opt Options) (*zap.Logger, error) {
	level := zapcore.InfoLevel
	if opt.Level != "" {
		l, err := zapcore.ParseLevel(opt.Level)
		if err != nil {
			return nil, fmt.Errorf("invalid log level %q: %w", opt.Level, err)
		}
		level = l
	}
	if opt.Debug {
		level = zapcore.DebugLevel
	}
	enabler := zap.NewAtomicLevelAt(level)

	encCfg := zap.NewProductionEncoderConfig()
	encCfg.EncodeTime = zapcore.ISO8601TimeEncoder

	console := opt.Console
	if console == nil {
		console = os.Stderr
	}
	cores := []zapcore.Core{
		zapcore.NewCore(zapcore.NewJSONEncoder(encCfg), zapcore.Lock(zapcore.AddSync(console)), enabler),
	}
	if opt.File != "" {
		if err := os.MkdirAll(filepath.Dir(opt.File), 0o755); err != nil {
			return nil, fmt.Errorf("create log dir: %w", err)
		}
		cores = append(cores, zapcore.NewCore(zapcore.NewJSONEncoder(encCfg), zapcore.AddSync(RotatingFile(opt.File)), enabler))
	}
	return zap.New(zapcore.NewTee(cores...), zap.AddCaller()), nil
}

// RotatingFile returns a size-rotated writer for path.
func RotatingFile(path string) *lumberjack.Logger {
	return &lumberjack.Logger{
		Filename:   path,
		MaxSize:    10, // megabytes
		MaxBackups: 3,
		MaxAge:     28, // days
		Compress:   true,
	}
}
