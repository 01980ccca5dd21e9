// Copyright 2025 Velora, Inc.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package logutil

import (
	"context"

	"github.com/pingcap/errors"
	"github.com/pingcap/log"
	"go.uber.org/zap"
)

const (
	// DefaultLogLevel is the log level used when no configuration is given.
	DefaultLogLevel = "info"
	// DefaultLogFormat is the log format used when no configuration is given.
	DefaultLogFormat = "text"
	// DefaultLogMaxSize is the default max size of a log file in MB before rotation.
	DefaultLogMaxSize = 300
)

// LogConfig serializes log related config in toml/json.
type LogConfig struct {
	// Level is one of debug, info, warn, error and fatal.
	Level string `toml:"level" json:"level"`
	// Format is one of text or json.
	Format string `toml:"format" json:"format"`
	// DisableTimestamp disables automatic timestamps in output.
	DisableTimestamp bool `toml:"disable-timestamp" json:"disable-timestamp"`
	// File is the log file config.
	File log.FileLogConfig `toml:"file" json:"file"`
}

// NewLogConfig creates a LogConfig with sane defaults.
func NewLogConfig(level, format string) *LogConfig {
	return &LogConfig{
		Level:  level,
		Format: format,
		File:   log.FileLogConfig{MaxSize: DefaultLogMaxSize},
	}
}

// InitLogger initializes the global logger from cfg and replaces the
// process-wide zap globals.
func InitLogger(cfg *LogConfig) error {
	conf := &log.Config{
		Level:            cfg.Level,
		Format:           cfg.Format,
		DisableTimestamp: cfg.DisableTimestamp,
		File:             cfg.File,
	}
	lg, props, err := log.InitLogger(conf)
	if err != nil {
		return errors.Trace(err)
	}
	log.ReplaceGlobals(lg, props)
	return nil
}

// SetLevel changes the log level of the global logger.
func SetLevel(level string) error {
	l := zap.NewAtomicLevel()
	if err := l.UnmarshalText([]byte(level)); err != nil {
		return errors.Trace(err)
	}
	log.SetLevel(l.Level())
	return nil
}

type ctxLogKeyType struct{}

var ctxLogKey = ctxLogKeyType{}

// BgLogger returns the default global logger.
func BgLogger() *zap.Logger {
	return log.L()
}

// Logger gets a contextual logger from ctx, falling back to the global one.
func Logger(ctx context.Context) *zap.Logger {
	if ctxlogger, ok := ctx.Value(ctxLogKey).(*zap.Logger); ok {
		return ctxlogger
	}
	return log.L()
}

// WithLogger attaches a logger to ctx which Logger will retrieve.
func WithLogger(ctx context.Context, logger *zap.Logger) context.Context {
	return context.WithValue(ctx, ctxLogKey, logger)
}

// WithFields attaches a logger carrying the given fields to ctx.
func WithFields(ctx context.Context, fields ...zap.Field) context.Context {
	return WithLogger(ctx, Logger(ctx).With(fields...))
}
