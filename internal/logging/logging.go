// Package logging configures the process logger and defines verbosity levels.
package logging

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/go-logr/logr"
	"github.com/go-logr/zapr"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	ctrl "sigs.k8s.io/controller-runtime"
	crzap "sigs.k8s.io/controller-runtime/pkg/log/zap"
)

// Verbosity levels passed to logr's V().
const (
	DEBUG = 1
	TRACE = 2
)

// Options selects the logger level and encoding.
type Options struct {
	// Level is one of trace, debug, info, warn, error.
	Level string
	// Encoding is console or json.
	Encoding string
}

// parseLevel maps a level name to a zap level. logr V(n) logs at zap level -n.
func parseLevel(level string) (zapcore.Level, error) {
	switch strings.ToLower(level) {
	case "trace":
		return zapcore.Level(-TRACE), nil
	case "debug":
		return zapcore.DebugLevel, nil
	case "", "info":
		return zapcore.InfoLevel, nil
	case "warn":
		return zapcore.WarnLevel, nil
	case "error":
		return zapcore.ErrorLevel, nil
	}
	return zapcore.InfoLevel, fmt.Errorf("unknown log level %q", level)
}

// NewZapLogger builds the zap logger described by opts.
func NewZapLogger(opts Options) (*zap.Logger, error) {
	lvl, err := parseLevel(opts.Level)
	if err != nil {
		return nil, err
	}
	encoding := opts.Encoding
	if encoding == "" {
		encoding = "console"
	}
	if encoding != "console" && encoding != "json" {
		return nil, fmt.Errorf("unknown log encoding %q", encoding)
	}

	encoderCfg := zap.NewProductionEncoderConfig()
	if encoding == "console" {
		encoderCfg = zap.NewDevelopmentEncoderConfig()
	}
	encoderCfg.TimeKey = "ts"
	encoderCfg.EncodeTime = zapcore.ISO8601TimeEncoder

	cfg := zap.Config{
		Level:            zap.NewAtomicLevelAt(lvl),
		Development:      false,
		Encoding:         encoding,
		EncoderConfig:    encoderCfg,
		OutputPaths:      []string{"stderr"},
		ErrorOutputPaths: []string{"stderr"},
	}
	return cfg.Build()
}

// Setup builds the logger and installs it as the controller-runtime logger.
func Setup(opts Options) (logr.Logger, error) {
	zl, err := NewZapLogger(opts)
	if err != nil {
		return logr.Discard(), err
	}
	logger := zapr.NewLogger(zl)
	ctrl.SetLogger(logger)
	return logger, nil
}

// NewTestLogger installs a development logger writing to w, or stderr when w is nil.
func NewTestLogger(w ...io.Writer) logr.Logger {
	var out io.Writer = os.Stderr
	if len(w) > 0 && w[0] != nil {
		out = w[0]
	}
	logger := crzap.New(crzap.UseDevMode(true), crzap.WriteTo(out))
	ctrl.SetLogger(logger)
	return logger
}
