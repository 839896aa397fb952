// Package logging builds the zap loggers used across relay.
//
// The JSON layout writes one object per call:
//
//	{"level":"info","message":"Orchestrating task","type":"code-review","timestamp":"..."}
//
// Records below error level go to stdout; error and above go to stderr.
package logging

import (
	"fmt"
	"io"
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/klubi/relay/internal/apperrors"
	"github.com/klubi/relay/internal/config"
)

// New creates a logger from the log section of the configuration.
func New(cfg config.LogConfig) (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return nil, fmt.Errorf("parsing log level %q: %w", cfg.Level, err)
	}

	switch cfg.Format {
	case "console":
		zc := zap.NewDevelopmentConfig()
		zc.Level = zap.NewAtomicLevelAt(level)
		return zc.Build()
	case "", "json":
		return NewWithWriters(os.Stdout, os.Stderr, level), nil
	default:
		return nil, fmt.Errorf("unknown log format %q", cfg.Format)
	}
}

// NewWithWriters returns a JSON logger that splits records between out and
// errOut by level.
func NewWithWriters(out, errOut io.Writer, level zapcore.Level) *zap.Logger {
	enc := zapcore.NewJSONEncoder(encoderConfig())

	low := zap.LevelEnablerFunc(func(l zapcore.Level) bool {
		return l >= level && l < zapcore.ErrorLevel
	})
	high := zap.LevelEnablerFunc(func(l zapcore.Level) bool {
		return l >= level && l >= zapcore.ErrorLevel
	})

	core := zapcore.NewTee(
		zapcore.NewCore(enc, zapcore.AddSync(out), low),
		zapcore.NewCore(enc, zapcore.AddSync(errOut), high),
	)
	return zap.New(core)
}

func encoderConfig() zapcore.EncoderConfig {
	return zapcore.EncoderConfig{
		MessageKey:     "message",
		LevelKey:       "level",
		TimeKey:        "timestamp",
		NameKey:        "logger",
		LineEnding:     zapcore.DefaultLineEnding,
		EncodeLevel:    zapcore.LowercaseLevelEncoder,
		EncodeTime:     zapcore.ISO8601TimeEncoder,
		EncodeDuration: zapcore.MillisDurationEncoder,
		EncodeName:     zapcore.FullNameEncoder,
	}
}

// Err serialises err as {"name", "message", "stack"} under the "error" key.
// Members of the apperrors family additionally report code and status.
func Err(err error) zap.Field {
	if err == nil {
		return zap.Skip()
	}
	return zap.Object("error", errorObject{
		err:   err,
		stack: zap.StackSkip("", 1).String,
	})
}

type errorObject struct {
	err   error
	stack string
}

func (o errorObject) MarshalLogObject(enc zapcore.ObjectEncoder) error {
	enc.AddString("name", apperrors.KindOf(o.err))
	enc.AddString("message", o.err.Error())
	if ae, ok := apperrors.From(o.err); ok {
		enc.AddString("code", ae.Code)
		if status, known := ae.HTTPStatus(); known {
			enc.AddInt("statusCode", status)
		}
	}
	enc.AddString("stack", o.stack)
	return nil
}
