// Copyright (C) 2020 Markus L. Noga
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License
// along with this program.  If not, see <https://www.gnu.org/licenses/>.

// Package logging is the process-wide log facade. All output goes through
// a zap logger, with printf-style helpers for the command implementations.
package logging

import (
	"fmt"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Logger settings, usually from the log section of the configuration
type Options struct {
	Level  string // debug, info, warn or error
	Format string // console or json
	File   string // optional log file, in addition to stdout
}

var (
	mu     sync.RWMutex
	logger = newDefault()
	sugar  = logger.Sugar()
)

func newDefault() *zap.Logger {
	l, err := build(Options{Level: "info", Format: "console"})
	if err != nil {
		return zap.NewNop()
	}
	return l
}

func build(o Options) (*zap.Logger, error) {
	level := zapcore.InfoLevel
	if o.Level != "" {
		if err := level.UnmarshalText([]byte(o.Level)); err != nil {
			return nil, fmt.Errorf("log level %q: %w", o.Level, err)
		}
	}

	var enc zapcore.EncoderConfig
	switch o.Format {
	case "", "console":
		enc = zap.NewDevelopmentEncoderConfig()
		enc.EncodeLevel = zapcore.CapitalLevelEncoder
		o.Format = "console"
	case "json":
		enc = zap.NewProductionEncoderConfig()
		enc.EncodeTime = zapcore.ISO8601TimeEncoder
	default:
		return nil, fmt.Errorf("log format %q: must be console or json", o.Format)
	}

	outputs := []string{"stdout"}
	if o.File != "" {
		outputs = append(outputs, o.File)
	}
	cfg := zap.Config{
		Level:             zap.NewAtomicLevelAt(level),
		Encoding:          o.Format,
		EncoderConfig:     enc,
		OutputPaths:       outputs,
		ErrorOutputPaths:  []string{"stderr"},
		DisableStacktrace: true,
	}
	return cfg.Build()
}

// Replaces the process logger according to the options
func Init(o Options) error {
	l, err := build(o)
	if err != nil {
		return err
	}
	Set(l)
	return nil
}

// Replaces the process logger, e.g. with an observer in tests
func Set(l *zap.Logger) {
	mu.Lock()
	defer mu.Unlock()
	_ = logger.Sync()
	logger, sugar = l, l.Sugar()
}

// The current logger, for libraries that take a *zap.Logger
func Logger() *zap.Logger {
	mu.RLock()
	defer mu.RUnlock()
	return logger
}

func current() *zap.SugaredLogger {
	mu.RLock()
	defer mu.RUnlock()
	return sugar
}

func Debugf(format string, args ...interface{}) { current().Debugf(format, args...) }

func Printf(format string, args ...interface{}) { current().Infof(format, args...) }

func Warnf(format string, args ...interface{}) { current().Warnf(format, args...) }

func Errorf(format string, args ...interface{}) { current().Errorf(format, args...) }

// Logs at fatal level, flushes and exits the process
func Fatalf(format string, args ...interface{}) { current().Fatalf(format, args...) }

// Fatalf for a bare error
func Fatal(err error) { current().Fatal(err) }

// Flushes buffered output
func Sync() { _ = current().Sync() }
