// Package observability configures the process-wide zap logger.
//
// Logs go to stderr with a console encoder by default; pointing them at a
// file switches to structured JSON so long runs leave a parseable trail
// without polluting result output on stdout.
package observability

import (
	"os"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// CLILogger is the shared logger for command execution. It defaults to a
// no-op logger until Init runs so early code paths can log safely.
var CLILogger = zap.NewNop()

// Config controls logger construction.
type Config struct {
	// Level is the minimum level: debug, info, warn, error.
	// Empty means info; FASTLS_LOG_LEVEL overrides.
	Level string

	// FilePath routes log output to a file (JSON encoded, appended).
	// Empty logs to stderr with a console encoder.
	FilePath string
}

// Init builds and installs CLILogger. Returns a flush function suitable for
// deferring from main.
func Init(cfg Config) (func(), error) {
	level := zapcore.InfoLevel
	raw := cfg.Level
	if env := os.Getenv("FASTLS_LOG_LEVEL"); env != "" {
		raw = env
	}
	if raw != "" {
		if err := level.Set(strings.ToLower(raw)); err != nil {
			return nil, err
		}
	}

	encCfg := zap.NewProductionEncoderConfig()
	encCfg.EncodeTime = zapcore.ISO8601TimeEncoder

	var core zapcore.Core
	var closer func()
	if cfg.FilePath != "" {
		f, err := os.OpenFile(cfg.FilePath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, err
		}
		core = zapcore.NewCore(zapcore.NewJSONEncoder(encCfg), zapcore.AddSync(f), level)
		closer = func() { _ = f.Close() }
	} else {
		devCfg := zap.NewDevelopmentEncoderConfig()
		devCfg.EncodeLevel = zapcore.CapitalLevelEncoder
		core = zapcore.NewCore(zapcore.NewConsoleEncoder(devCfg), zapcore.Lock(os.Stderr), level)
	}

	logger := zap.New(core)
	CLILogger = logger
	return func() {
		_ = logger.Sync()
		if closer != nil {
			closer()
		}
	}, nil
}
