// Package logger wraps go.uber.org/zap for the nvm tools. Entries go to a
// rotating lumberjack file and optionally to stderr, tagged with the
// configured service name.
package logger

import (
	"fmt"
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Encodings accepted by Config.Format.
const (
	FormatJSON    = "json"
	FormatConsole = "console"
)

// Logger log writer, a no-op logger until InitLogger is called
var Logger = zap.NewNop()

// SugarLogger simple logger
var SugarLogger = Logger.Sugar()

// InitLogger Initialize logger
func InitLogger(cfg *Config) error {
	if cfg == nil {
		cfg = DefaultConfig()
	}

	level := new(zapcore.Level)
	if err := level.UnmarshalText([]byte(cfg.Level)); err != nil {
		return err
	}
	encoder, err := newEncoder(cfg.Format)
	if err != nil {
		return err
	}

	core := zapcore.NewCore(encoder, newWriter(cfg), level)
	opts := []zap.Option{zap.AddCaller(), zap.AddCallerSkip(1), zap.AddStacktrace(zapcore.DPanicLevel)}
	if cfg.Service != "" {
		opts = append(opts, zap.Fields(zap.String("service", cfg.Service)))
	}
	Logger = zap.New(core, opts...)
	SugarLogger = Logger.Sugar()
	return nil
}

// Sync flushes any buffered log entries.
func Sync() error {
	return Logger.Sync()
}

func newEncoder(format string) (zapcore.Encoder, error) {
	ec := zap.NewProductionEncoderConfig()
	ec.TimeKey = "time"
	ec.EncodeTime = zapcore.RFC3339NanoTimeEncoder
	ec.EncodeDuration = zapcore.MillisDurationEncoder
	ec.EncodeCaller = zapcore.ShortCallerEncoder
	ec.EncodeLevel = zapcore.CapitalLevelEncoder
	switch format {
	case "", FormatJSON:
		return zapcore.NewJSONEncoder(ec), nil
	case FormatConsole:
		return zapcore.NewConsoleEncoder(ec), nil
	}
	return nil, fmt.Errorf("unknown log format %q", format)
}

func newWriter(cfg *Config) zapcore.WriteSyncer {
	ws := []zapcore.WriteSyncer{zapcore.AddSync(&lumberjack.Logger{
		Filename:   cfg.FileName,
		MaxAge:     cfg.MaxAge,
		MaxSize:    cfg.MaxSize,
		MaxBackups: cfg.MaxBackups,
		Compress:   cfg.Compress,
	})}
	if cfg.Stderr {
		ws = append(ws, zapcore.Lock(os.Stderr))
	}
	return zapcore.NewMultiWriteSyncer(ws...)
}

// Debug logs a message at DebugLevel. The message includes any fields passed
// at the log site, as well as any fields accumulated on the logger.
func Debug(msg string, fields ...zap.Field) {
	Logger.Debug(msg, fields...)
}

// Info logs a message at InfoLevel. The message includes any fields passed
// at the log site, as well as any fields accumulated on the logger.
func Info(msg string, fields ...zap.Field) {
	Logger.Info(msg, fields...)
}

// Warn logs a message at WarnLevel. The message includes any fields passed
// at the log site, as well as any fields accumulated on the logger.
func Warn(msg string, fields ...zap.Field) {
	Logger.Warn(msg, fields...)
}

// Error logs a message at ErrorLevel. The message includes any fields passed
// at the log site, as well as any fields accumulated on the logger.
func Error(msg string, fields ...zap.Field) {
	Logger.Error(msg, fields...)
}

// With creates a child logger and adds structured context to it. Fields added
// to the child don't affect the parent, and vice versa.
func With(fields ...zap.Field) *zap.Logger {
	return Logger.With(fields...)
}
