package logger

import (
	"fmt"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

type Interface interface {
	Debug(message interface{}, args ...interface{})
	Info(message string, args ...interface{})
	Warn(message string, args ...interface{})
	Error(message interface{}, args ...interface{})
	Fatal(message interface{}, args ...interface{})
}

type Logger struct {
	sugar *zap.SugaredLogger
}

var _ Interface = (*Logger)(nil)

func New(level string) *Logger {
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(parseLevel(level))
	cfg.EncoderConfig.TimeKey = "time"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	l, err := cfg.Build(zap.AddCallerSkip(2))
	if err != nil {
		// production config only fails on broken sinks
		l = zap.NewNop()
	}

	return &Logger{sugar: l.Sugar()}
}

func NewWithCore(core zapcore.Core) *Logger {
	return &Logger{sugar: zap.New(core, zap.AddCallerSkip(2)).Sugar()}
}

func NewNop() *Logger {
	return &Logger{sugar: zap.NewNop().Sugar()}
}

func parseLevel(level string) zapcore.Level {
	lvl, err := zapcore.ParseLevel(strings.ToLower(level))
	if err != nil {
		return zapcore.InfoLevel
	}

	return lvl
}

func (l *Logger) Debug(message interface{}, args ...interface{}) {
	l.msg(zapcore.DebugLevel, message, args...)
}

func (l *Logger) Info(message string, args ...interface{}) {
	l.log(zapcore.InfoLevel, message, args...)
}

func (l *Logger) Warn(message string, args ...interface{}) {
	l.log(zapcore.WarnLevel, message, args...)
}

// Error accepts either a format string or an error. For an error, a leading
// string argument is used as the call-site prefix: Error(err, "Repo - Get").
func (l *Logger) Error(message interface{}, args ...interface{}) {
	l.msg(zapcore.ErrorLevel, message, args...)
}

func (l *Logger) Fatal(message interface{}, args ...interface{}) {
	l.msg(zapcore.FatalLevel, message, args...)
}

func (l *Logger) msg(level zapcore.Level, message interface{}, args ...interface{}) {
	switch m := message.(type) {
	case error:
		if len(args) > 0 {
			if where, ok := args[0].(string); ok {
				l.log(level, where+": "+m.Error())
				return
			}
		}
		l.log(level, m.Error())
	case string:
		l.log(level, m, args...)
	default:
		l.log(level, fmt.Sprintf("%s message %v has unknown type %T", level, message, message))
	}
}

func (l *Logger) log(level zapcore.Level, message string, args ...interface{}) {
	if len(args) == 0 {
		l.sugar.Log(level, message)
		return
	}

	l.sugar.Logf(level, message, args...)
}

func (l *Logger) Sync() error {
	return l.sugar.Sync()
}
