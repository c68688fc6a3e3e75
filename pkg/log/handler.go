package log

import (
	"fmt"

	"github.com/cockroachdb/errors"
	"github.com/rs/zerolog"
)

const (
	ErrAttrKey        = "error"
	StacktraceAttrKey = "stacktrace"
	ErrDetailAttrKey  = "error_detail"
)

// extractStacktrace returns the first safe detail recorded by
// cockroachdb/errors, which holds the stack captured by WithStack.
func extractStacktrace(err error) string {
	safeDetails := errors.GetSafeDetails(err).SafeDetails
	if len(safeDetails) > 0 {
		return safeDetails[0]
	}
	return ""
}

// stackMarshaler is installed as zerolog.ErrorStackMarshaler.
func stackMarshaler(err error) interface{} {
	if st := extractStacktrace(err); st != "" {
		return st
	}
	return nil
}

// appendFields copies alternating key/value pairs onto a zerolog context or
// event. Errors get their stack and, for the pipeline's structured
// kinds, their zerolog object form.
func appendFields(e *zerolog.Event, fields []any) *zerolog.Event {
	if len(fields)%2 == 1 {
		if err, ok := fields[0].(error); ok {
			e = appendError(e, err)
			fields = fields[1:]
		}
	}
	for i := 0; i+1 < len(fields); i += 2 {
		key := fmt.Sprint(fields[i])
		switch v := fields[i+1].(type) {
		case error:
			if key == ErrAttrKey {
				e = appendError(e, v)
			} else {
				e = e.AnErr(key, v)
			}
		case zerolog.LogObjectMarshaler:
			e = e.Object(key, v)
		default:
			e = e.Interface(key, v)
		}
	}
	return e
}

func appendError(e *zerolog.Event, err error) *zerolog.Event {
	e = e.Stack().Err(err)
	var obj zerolog.LogObjectMarshaler
	if errors.As(err, &obj) {
		e = e.Object(ErrDetailAttrKey, obj)
	}
	return e
}

func contextFields(c zerolog.Context, fields []any) zerolog.Context {
	for i := 0; i+1 < len(fields); i += 2 {
		key := fmt.Sprint(fields[i])
		switch v := fields[i+1].(type) {
		case error:
			c = c.AnErr(key, v)
		default:
			c = c.Interface(key, v)
		}
	}
	return c
}
