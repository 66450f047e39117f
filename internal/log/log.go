package log

import (
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	sugar      *zap.SugaredLogger
	loggerOnce sync.Once
	level      zap.AtomicLevel
)

// initLogger initializes the global logger to write structured lines to
// stderr. Default minimum level is INFO.
func initLogger() {
	loggerOnce.Do(func() {
		level = zap.NewAtomicLevelAt(zapcore.InfoLevel)

		cfg := zap.NewProductionConfig()
		cfg.Level = level
		cfg.OutputPaths = []string{"stderr"}
		cfg.ErrorOutputPaths = []string{"stderr"}
		cfg.EncoderConfig.EncodeTime = zapcore.RFC3339NanoTimeEncoder

		logger, err := cfg.Build(zap.AddCallerSkip(1))
		if err != nil {
			// zap's production config cannot fail to build with these
			// options; fall back to a no-op logger just in case.
			logger = zap.NewNop()
		}
		sugar = logger.Sugar()
	})
}

func SetLevel(l zapcore.Level) {
	initLogger()
	level.SetLevel(l)
}

func Debug(msg string, kv ...any) {
	initLogger()
	sugar.Debugw(msg, kv...)
}

func Info(msg string, kv ...any) {
	initLogger()
	sugar.Infow(msg, kv...)
}

func Error(msg string, err error, kv ...any) {
	initLogger()
	// Prepend error into key-value list.
	extended := append([]any{"err", err}, kv...)
	sugar.Errorw(msg, extended...)
}

// Sync flushes buffered log entries. Call before process exit.
func Sync() {
	initLogger()
	_ = sugar.Sync()
}
