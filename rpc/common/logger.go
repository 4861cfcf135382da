package common

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	zaplogfmt "github.com/jsternberg/zap-logfmt"
	"github.com/lni/dragonboat/v4/logger"
	"github.com/puzpuzpuz/xsync/v3"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// loggerNames lists every package logger of the repository
var loggerNames = []string{
	"kvstore", "memory", "nvs", "tdb", "pref", "atmodem", "metered",
	"rpc", "transport/rpc", "cli",
}

// LogConfig selects level, encoding and destination of the log output
type LogConfig struct {
	Level  string    // debug, info, warn or error
	Format string    // console, json or logfmt
	Output io.Writer // defaults to stdout
}

// --------------------------------------------------------------------------
// Custom Logger (implements dragonboats logger.ILogger)
// --------------------------------------------------------------------------

// zapLogger implements the ILogger interface on top of a shared zap core.
// The level is kept per package.
type zapLogger struct {
	name  string
	level zap.AtomicLevel
	sugar atomic.Pointer[zap.SugaredLogger]
}

func (l *zapLogger) SetLevel(level logger.LogLevel) {
	l.level.SetLevel(toZapLevel(level))
}

func (l *zapLogger) Debugf(format string, args ...interface{}) {
	if l.level.Enabled(zapcore.DebugLevel) {
		l.sugar.Load().Debugf(format, args...)
	}
}

func (l *zapLogger) Infof(format string, args ...interface{}) {
	if l.level.Enabled(zapcore.InfoLevel) {
		l.sugar.Load().Infof(format, args...)
	}
}

func (l *zapLogger) Warningf(format string, args ...interface{}) {
	if l.level.Enabled(zapcore.WarnLevel) {
		l.sugar.Load().Warnf(format, args...)
	}
}

func (l *zapLogger) Errorf(format string, args ...interface{}) {
	if l.level.Enabled(zapcore.ErrorLevel) {
		l.sugar.Load().Errorf(format, args...)
	}
}

func (l *zapLogger) Panicf(format string, args ...interface{}) {
	l.sugar.Load().Panicf(format, args...)
}

// --------------------------------------------------------------------------
// Logger Factory
// --------------------------------------------------------------------------

var (
	rootMu      sync.Mutex
	root        = zap.NewNop()
	rootFormat  = "console"
	created     = xsync.NewMapOf[string, *zapLogger]()
	factoryOnce sync.Once
)

// NewRootLogger builds the zap logger all package loggers write through
func NewRootLogger(format string, w io.Writer) (*zap.Logger, error) {
	cfg := zap.NewProductionEncoderConfig()
	cfg.EncodeTime = func(ts time.Time, encoder zapcore.PrimitiveArrayEncoder) {
		encoder.AppendString(ts.UTC().Format("2006-01-02T15:04:05.000000Z07:00"))
	}
	cfg.LevelKey = "lvl"
	cfg.NameKey = "pkg"

	var enc zapcore.Encoder
	switch strings.ToLower(format) {
	case "", "console":
		enc = zapcore.NewConsoleEncoder(cfg)
	case "json":
		enc = zapcore.NewJSONEncoder(cfg)
	case "logfmt":
		enc = zaplogfmt.NewEncoder(cfg)
	default:
		return nil, fmt.Errorf("unrecognized log format %q (must be one of console, json, logfmt)", format)
	}

	// the package loggers filter, the core accepts everything
	return zap.New(zapcore.NewCore(enc, zapcore.AddSync(w), zapcore.DebugLevel)), nil
}

// CreateLogger implements the dragonboat logger Factory
func CreateLogger(pkgName string) logger.ILogger {
	rootMu.Lock()
	defer rootMu.Unlock()

	l := &zapLogger{
		name:  pkgName,
		level: zap.NewAtomicLevelAt(zapcore.InfoLevel),
	}
	l.sugar.Store(named(pkgName))
	created.Store(pkgName, l)
	return l
}

// --------------------------------------------------------------------------
// Helper
// --------------------------------------------------------------------------

// named derives the logger of one package from root. The logfmt encoder
// drops logger names, so there the name is attached as a pkg field.
// Callers hold rootMu.
func named(pkgName string) *zap.SugaredLogger {
	if rootFormat == "logfmt" {
		return root.With(zap.String("pkg", pkgName)).Sugar()
	}
	return root.Named(pkgName).Sugar()
}

// ParseLogLevel converts a string level to logger.LogLevel
func ParseLogLevel(level string) (logger.LogLevel, error) {
	switch strings.ToLower(level) {
	case "debug":
		return logger.DEBUG, nil
	case "", "info":
		return logger.INFO, nil
	case "warning", "warn":
		return logger.WARNING, nil
	case "error":
		return logger.ERROR, nil
	default:
		return logger.INFO, fmt.Errorf("invalid log level: %s. must be one of debug, info, warn, error", level)
	}
}

func toZapLevel(level logger.LogLevel) zapcore.Level {
	switch level {
	case logger.DEBUG:
		return zapcore.DebugLevel
	case logger.INFO:
		return zapcore.InfoLevel
	case logger.WARNING:
		return zapcore.WarnLevel
	case logger.ERROR:
		return zapcore.ErrorLevel
	default:
		return zapcore.DPanicLevel
	}
}

// --------------------------------------------------------------------------
// Logger initialization
// --------------------------------------------------------------------------

// InitLoggers installs the zap backed factory and applies the level to all
// package loggers. It must run before the first log line is written.
func InitLoggers(config LogConfig) error {
	level, err := ParseLogLevel(config.Level)
	if err != nil {
		return err
	}

	w := config.Output
	if w == nil {
		w = os.Stdout
	}
	rootLogger, err := NewRootLogger(config.Format, w)
	if err != nil {
		return err
	}

	// loggers created by an earlier call switch to the new output
	rootMu.Lock()
	root, rootFormat = rootLogger, strings.ToLower(config.Format)
	created.Range(func(name string, l *zapLogger) bool {
		l.sugar.Store(named(name))
		return true
	})
	rootMu.Unlock()

	// dragonboat accepts the factory only once
	factoryOnce.Do(func() { logger.SetLoggerFactory(CreateLogger) })
	for _, name := range loggerNames {
		logger.GetLogger(name).SetLevel(level)
	}
	return nil
}
