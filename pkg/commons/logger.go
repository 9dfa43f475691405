// Copyright (c) 2023-2025 RapidaAI
// Author: Prashant Srivastav <prashant@rapida.ai>
//
// Licensed under GPL-2.0 with Rapida Additional Terms.
// See LICENSE.md or contact sales@rapida.ai for commercial usage.
package commons

import (
	"os"
	"path/filepath"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	lumberjack "gopkg.in/natefinch/lumberjack.v2"
)

// Logger is the application-wide logging surface. All packages take it as a
// dependency instead of constructing their own zap instances.
type Logger interface {
	Debug(args ...interface{})
	Debugf(template string, args ...interface{})
	Debugw(msg string, keysAndValues ...interface{})

	Info(args ...interface{})
	Infof(template string, args ...interface{})
	Infow(msg string, keysAndValues ...interface{})

	Warn(args ...interface{})
	Warnf(template string, args ...interface{})
	Warnw(msg string, keysAndValues ...interface{})

	Error(args ...interface{})
	Errorf(template string, args ...interface{})
	Errorw(msg string, keysAndValues ...interface{})

	Sync() error
}

type applicationLogger struct {
	*zap.SugaredLogger
}

type loggerOptions struct {
	name  string
	path  string
	level string
}

// Option configures NewApplicationLogger.
type Option func(*loggerOptions)

// Name sets the service name embedded in every log line and in the
// rotated file name.
func Name(name string) Option {
	return func(o *loggerOptions) { o.name = name }
}

// Path sets the directory where rotated log files are written. Empty path
// disables file output and logs to stderr only.
func Path(path string) Option {
	return func(o *loggerOptions) { o.path = path }
}

// Level sets the minimum log level: debug, info, warn or error.
func Level(level string) Option {
	return func(o *loggerOptions) { o.level = level }
}

// NewApplicationLogger builds a zap-backed Logger writing to stderr and,
// when a path is configured, to a size-rotated file via lumberjack.
func NewApplicationLogger(opts ...Option) (Logger, error) {
	options := loggerOptions{
		name:  "capture",
		level: "debug",
	}
	for _, opt := range opts {
		opt(&options)
	}

	level := zapcore.DebugLevel
	if err := level.Set(options.level); err != nil {
		level = zapcore.DebugLevel
	}

	encoderCfg := zap.NewProductionEncoderConfig()
	encoderCfg.EncodeTime = zapcore.ISO8601TimeEncoder
	encoder := zapcore.NewJSONEncoder(encoderCfg)

	sinks := []zapcore.WriteSyncer{zapcore.AddSync(os.Stderr)}
	if options.path != "" {
		sinks = append(sinks, zapcore.AddSync(&lumberjack.Logger{
			Filename:   filepath.Join(options.path, options.name+".log"),
			MaxSize:    100, // megabytes
			MaxBackups: 5,
			MaxAge:     30, // days
			Compress:   true,
		}))
	}

	core := zapcore.NewCore(encoder, zapcore.NewMultiWriteSyncer(sinks...), level)
	logger := zap.New(core, zap.AddCaller()).Named(options.name)
	return &applicationLogger{logger.Sugar()}, nil
}
