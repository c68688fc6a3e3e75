// Package log is the structured logging layer of the pipeline.
//
// Callers depend on the small Logger interface below; the default
// implementation is backed by zerolog and emits either Cloud Logging style
// JSON or a human readable console format.
//
//	logger := log.GetLogger().With(log.ModelNameKey, "RandomForestClassifier")
//	logger.Info("grid search finished",
//	    log.OperationKey, log.OperationFit,
//	    log.SamplesKey, 1796,
//	    log.CVScoreKey, 0.97,
//	)
package log

import (
	"context"
	"strings"

	perrors "github.com/nggra/obesity/pkg/errors"
)

// Logger is a leveled, structured logger. Fields are alternating key/value
// pairs. When the first field passed to Error is an error value, it is
// attached as the error of the record together with its stack trace.
type Logger interface {
	Debug(msg string, fields ...any)
	Info(msg string, fields ...any)
	Warn(msg string, fields ...any)
	Error(msg string, fields ...any)

	// With returns a child logger that adds fields to every record.
	With(fields ...any) Logger

	// Enabled reports whether records at level would be emitted.
	Enabled(ctx context.Context, level Level) bool
}

// Level values are compatible with slog.Level.
type Level int

const (
	LevelDebug Level = -4
	LevelInfo  Level = 0
	LevelWarn  Level = 4
	LevelError Level = 8
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

// ParseLevel accepts debug, info, warn and error in any case.
func ParseLevel(s string) (Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return LevelDebug, nil
	case "info", "":
		return LevelInfo, nil
	case "warn", "warning":
		return LevelWarn, nil
	case "error":
		return LevelError, nil
	default:
		return LevelInfo, perrors.NewValidationError("log_level", "must be debug, info, warn or error", s)
	}
}

