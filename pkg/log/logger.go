package log

import (
	"context"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	perrors "github.com/nggra/obesity/pkg/errors"
)

// Output formats accepted by New and SetupLogger.
const (
	FormatJSON   = "json"
	FormatPretty = "pretty"
)

var (
	defaultMu     sync.RWMutex
	defaultLogger Logger = Nop()
	globalsOnce   sync.Once
)

func setGlobals() {
	globalsOnce.Do(func() {
		// Cloud Logging field names.
		zerolog.LevelFieldName = "severity"
		zerolog.MessageFieldName = "message"
		zerolog.TimeFieldFormat = time.RFC3339Nano
		zerolog.LevelFieldMarshalFunc = func(l zerolog.Level) string {
			return strings.ToUpper(l.String())
		}
		zerolog.ErrorStackMarshaler = stackMarshaler
		zerolog.ErrorStackFieldName = StacktraceAttrKey
	})
}

// zlogger adapts a zerolog.Logger to Logger.
type zlogger struct {
	l zerolog.Logger
}

// New builds a Logger writing to w in the given format.
func New(w io.Writer, level Level, format string) (Logger, error) {
	setGlobals()
	switch format {
	case FormatJSON, "":
	case FormatPretty:
		w = zerolog.ConsoleWriter{Out: w, TimeFormat: time.TimeOnly}
	default:
		return nil, perrors.NewValidationError("log_format", "must be json or pretty", format)
	}
	l := zerolog.New(w).Level(toZerolog(level)).With().Timestamp().Logger()
	return &zlogger{l: l}, nil
}

// Nop returns a logger that discards everything.
func Nop() Logger {
	return &zlogger{l: zerolog.Nop()}
}

// SetupLogger installs the process-wide logger on stderr and routes
// pkg/errors warnings through it.
func SetupLogger(level, format string) error {
	lvl, err := ParseLevel(level)
	if err != nil {
		return err
	}
	logger, err := New(os.Stderr, lvl, format)
	if err != nil {
		return err
	}
	SetLogger(logger)
	return nil
}

// SetLogger replaces the process-wide logger.
func SetLogger(l Logger) {
	defaultMu.Lock()
	defaultLogger = l
	defaultMu.Unlock()
	perrors.SetZerologWarnFunc(func(w error) {
		l.Warn(w.Error(), ErrAttrKey, w)
	})
}

// GetLogger returns the process-wide logger.
func GetLogger() Logger {
	defaultMu.RLock()
	defer defaultMu.RUnlock()
	return defaultLogger
}

// GetLoggerWithName returns the process-wide logger tagged with a component.
func GetLoggerWithName(name string) Logger {
	return GetLogger().With(ComponentKey, name)
}

func toZerolog(level Level) zerolog.Level {
	switch {
	case level <= LevelDebug:
		return zerolog.DebugLevel
	case level <= LevelInfo:
		return zerolog.InfoLevel
	case level <= LevelWarn:
		return zerolog.WarnLevel
	default:
		return zerolog.ErrorLevel
	}
}

func (z *zlogger) Debug(msg string, fields ...any) {
	appendFields(z.l.Debug(), fields).Msg(msg)
}

func (z *zlogger) Info(msg string, fields ...any) {
	appendFields(z.l.Info(), fields).Msg(msg)
}

func (z *zlogger) Warn(msg string, fields ...any) {
	appendFields(z.l.Warn(), fields).Msg(msg)
}

func (z *zlogger) Error(msg string, fields ...any) {
	appendFields(z.l.Error(), fields).Msg(msg)
}

func (z *zlogger) With(fields ...any) Logger {
	return &zlogger{l: contextFields(z.l.With(), fields).Logger()}
}

func (z *zlogger) Enabled(_ context.Context, level Level) bool {
	return z.l.GetLevel() <= toZerolog(level)
}
