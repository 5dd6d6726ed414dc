// Package logging builds the process zap logger.
package logging

import (
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Options for New.
type Options struct {
	// Debug lowers the level from warn to debug.
	Debug bool
	// File, if set, also receives logs, rotated by size.
	File string
	// MaxSizeMB per rotated file (default 50).
	MaxSizeMB int
	// MaxBackups kept (default 3).
	MaxBackups int
}

// Level maps the debug switch to a zap level: debug or warn.
func Level(debug bool) zapcore.Level {
	if debug {
		return zapcore.DebugLevel
	}
	return zapcore.WarnLevel
}

func encoderConfig() zapcore.EncoderConfig {
	return zapcore.EncoderConfig{
		MessageKey:    "msg",
		LevelKey:      "level",
		TimeKey:       "time",
		NameKey:       "logger",
		StacktraceKey: "stack",
		EncodeLevel:   zapcore.CapitalLevelEncoder,
		EncodeTime:    zapcore.TimeEncoderOfLayout("2006-01-02 15:04:05.000"),
		EncodeName:    zapcore.FullNameEncoder,
		LineEnding:    zapcore.DefaultLineEnding,
	}
}

// New returns the logger and its atomic level.
func New(o Options) (*zap.Logger, zap.AtomicLevel) {
	atomicLevel := zap.NewAtomicLevelAt(Level(o.Debug))

	stdout := encoderConfig()
	stdout.EncodeLevel = zapcore.CapitalColorLevelEncoder
	cores := []zapcore.Core{
		zapcore.NewCore(zapcore.NewConsoleEncoder(stdout), zapcore.Lock(os.Stdout), atomicLevel),
	}
	if o.File != "" {
		if o.MaxSizeMB <= 0 {
			o.MaxSizeMB = 50
		}
		if o.MaxBackups <= 0 {
			o.MaxBackups = 3
		}
		w := zapcore.AddSync(&lumberjack.Logger{
			Filename:   o.File,
			MaxSize:    o.MaxSizeMB,
			MaxBackups: o.MaxBackups,
			Compress:   true,
		})
		cores = append(cores, zapcore.NewCore(zapcore.NewConsoleEncoder(encoderConfig()), w, atomicLevel))
	}
	return zap.New(zapcore.NewTee(cores...)), atomicLevel
}
