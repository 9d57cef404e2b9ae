package logger

import (
	"fmt"
	"strings"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

type Level int

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
)

var (
	mu    sync.RWMutex
	level = zap.NewAtomicLevelAt(zapcore.InfoLevel)
	sugar = newSugar("text", "stdout")
)

func (l Level) String() string {
	switch l {
	case LevelDebug:
		return "DEBUG"
	case LevelInfo:
		return "INFO"
	case LevelWarn:
		return "WARN"
	case LevelError:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

func (l Level) zapLevel() zapcore.Level {
	switch l {
	case LevelDebug:
		return zapcore.DebugLevel
	case LevelWarn:
		return zapcore.WarnLevel
	case LevelError:
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}

// ParseLevel maps a case-insensitive level name to a Level.
func ParseLevel(name string) (Level, bool) {
	switch strings.ToUpper(name) {
	case "DEBUG":
		return LevelDebug, true
	case "INFO":
		return LevelInfo, true
	case "WARN":
		return LevelWarn, true
	case "ERROR":
		return LevelError, true
	}
	return LevelInfo, false
}

// SetLevel changes the minimum level. Unknown names are ignored.
func SetLevel(name string) {
	if l, ok := ParseLevel(name); ok {
		level.SetLevel(l.zapLevel())
	}
}

// Configure rebuilds the process logger.
//
// Parameters:
//   - levelName: DEBUG, INFO, WARN or ERROR
//   - format: "text" (human readable console lines) or "json"
//   - output: "stdout", "stderr" or a file path
func Configure(levelName, format, output string) error {
	l, ok := ParseLevel(levelName)
	if !ok {
		return fmt.Errorf("unknown log level %q", levelName)
	}
	if format != "text" && format != "json" {
		return fmt.Errorf("unknown log format %q", format)
	}

	level.SetLevel(l.zapLevel())
	s, err := build(format, output)
	if err != nil {
		return err
	}

	mu.Lock()
	old := sugar
	sugar = s
	mu.Unlock()

	_ = old.Sync()
	return nil
}

// Sync flushes buffered entries.
func Sync() error {
	mu.RLock()
	defer mu.RUnlock()
	return sugar.Sync()
}

func newSugar(format, output string) *zap.SugaredLogger {
	s, err := build(format, output)
	if err != nil {
		return zap.NewNop().Sugar()
	}
	return s
}

func build(format, output string) (*zap.SugaredLogger, error) {
	encCfg := zap.NewProductionEncoderConfig()
	encCfg.TimeKey = "time"
	encCfg.EncodeTime = zapcore.TimeEncoderOfLayout("2006-01-02 15:04:05")

	encoding := "json"
	if format == "text" {
		encoding = "console"
		encCfg.EncodeLevel = zapcore.CapitalLevelEncoder
	}

	cfg := zap.Config{
		Level:            level,
		Encoding:         encoding,
		EncoderConfig:    encCfg,
		OutputPaths:      []string{output},
		ErrorOutputPaths: []string{"stderr"},
	}

	l, err := cfg.Build(zap.AddCallerSkip(2))
	if err != nil {
		return nil, fmt.Errorf("build logger: %w", err)
	}
	return l.Sugar(), nil
}

func log(l Level, format string, v ...any) {
	mu.RLock()
	s := sugar
	mu.RUnlock()

	switch l {
	case LevelDebug:
		s.Debugf(format, v...)
	case LevelInfo:
		s.Infof(format, v...)
	case LevelWarn:
		s.Warnf(format, v...)
	case LevelError:
		s.Errorf(format, v...)
	}
}

func Debug(format string, v ...any) {
	log(LevelDebug, format, v...)
}

func Info(format string, v ...any) {
	log(LevelInfo, format, v...)
}

func Warn(format string, v ...any) {
	log(LevelWarn, format, v...)
}

func Error(format string, v ...any) {
	log(LevelError, format, v...)
}
