package logger

import (
	"github.com/ThreeDotsLabs/watermill"
	"github.com/lm-legal/payments/internal/config"
	"github.com/lm-legal/payments/internal/types"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Logger wraps zap.SugaredLogger to provide logging functionality
type Logger struct {
	*zap.SugaredLogger
}

// L is the process-wide logger for scripts and package init paths.
// Services receive their logger through dependency injection.
var L *Logger

func init() {
	L, _ = NewLogger(config.GetDefaultConfig())
}

// NewLogger creates and returns a new Logger instance
func NewLogger(cfg *config.Configuration) (*Logger, error) {
	zapCfg := zap.NewProductionConfig()
	zapCfg.EncoderConfig.TimeKey = "timestamp"
	zapCfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	zapCfg.Level = zap.NewAtomicLevelAt(toZapLevel(cfg.Logging.Level))

	zapLogger, err := zapCfg.Build()
	if err != nil {
		return nil, err
	}

	return &Logger{
		SugaredLogger: zapLogger.Sugar(),
	}, nil
}

// NewNopLogger returns a logger that discards everything, used by tests
func NewNopLogger() *Logger {
	return &Logger{SugaredLogger: zap.NewNop().Sugar()}
}

func toZapLevel(level types.LogLevel) zapcore.Level {
	switch level {
	case types.LogLevelDebug:
		return zapcore.DebugLevel
	case types.LogLevelWarn:
		return zapcore.WarnLevel
	case types.LogLevelError:
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}

// With returns a child logger carrying the given key-value pairs
func (l *Logger) With(args ...interface{}) *Logger {
	return &Logger{SugaredLogger: l.SugaredLogger.With(args...)}
}

// Sync flushes buffered entries, errors from stderr/stdout syncing are ignored
func (l *Logger) Sync() {
	_ = l.SugaredLogger.Sync()
}

// watermillAdapter routes watermill's internal logging into zap
type watermillAdapter struct {
	log    *zap.SugaredLogger
	fields watermill.LogFields
}

// WatermillAdapter returns a watermill.LoggerAdapter backed by this logger
func (l *Logger) WatermillAdapter() watermill.LoggerAdapter {
	return &watermillAdapter{log: l.SugaredLogger.With("component", "watermill")}
}

func (w *watermillAdapter) keyvals(fields watermill.LogFields) []interface{} {
	merged := w.fields.Add(fields)
	kv := make([]interface{}, 0, len(merged)*2)
	for k, v := range merged {
		kv = append(kv, k, v)
	}
	return kv
}

func (w *watermillAdapter) Error(msg string, err error, fields watermill.LogFields) {
	w.log.Errorw(msg, append(w.keyvals(fields), "error", err)...)
}

func (w *watermillAdapter) Info(msg string, fields watermill.LogFields) {
	w.log.Infow(msg, w.keyvals(fields)...)
}

func (w *watermillAdapter) Debug(msg string, fields watermill.LogFields) {
	w.log.Debugw(msg, w.keyvals(fields)...)
}

func (w *watermillAdapter) Trace(msg string, fields watermill.LogFields) {
	w.log.Debugw(msg, w.keyvals(fields)...)
}

func (w *watermillAdapter) With(fields watermill.LogFields) watermill.LoggerAdapter {
	return &watermillAdapter{log: w.log, fields: w.fields.Add(fields)}
}
