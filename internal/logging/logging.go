// Package logging builds the run logger: human-readable console output
// at info level and a debug-level file log for post-run inspection. The
// logger is constructed once at startup and passed explicitly; there is
// no package-level logger.
package logging

import (
	"fmt"
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"easyapply/internal/config"
)

// New builds the run logger. verbose raises the console level to debug.
// The returned close function flushes and releases the log file.
func New(cfg config.LoggingConfig, verbose bool) (*zap.Logger, func(), error) {
	consoleLevel := zapcore.InfoLevel
	if verbose {
		consoleLevel = zapcore.DebugLevel
	}

	encCfg := zap.NewProductionEncoderConfig()
	encCfg.EncodeTime = zapcore.ISO8601TimeEncoder
	consoleEnc := zapcore.NewConsoleEncoder(encCfg)
	cores := []zapcore.Core{
		zapcore.NewCore(consoleEnc, zapcore.Lock(os.Stderr), consoleLevel),
	}

	var file *os.File
	if cfg.LogFile != "" {
		f, err := os.OpenFile(cfg.LogFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, nil, fmt.Errorf("open log file %s: %w", cfg.LogFile, err)
		}
		file = f
		fileEnc := zapcore.NewJSONEncoder(zap.NewProductionEncoderConfig())
		cores = append(cores, zapcore.NewCore(fileEnc, zapcore.Lock(f), zapcore.DebugLevel))
	}

	logger := zap.New(zapcore.NewTee(cores...))
	closeFn := func() {
		_ = logger.Sync()
		if file != nil {
			_ = file.Close()
		}
	}
	return logger, closeFn, nil
}
