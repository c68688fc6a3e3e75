// Package errors provides the structured error kinds and the warning hook used
// across the pipeline. Every constructor attaches a stack trace through
// cockroachdb/errors and every kind knows how to render itself into a zerolog
// event.
package errors

import (
	"fmt"
	"log"
	"strings"
	"sync"

	"github.com/cockroachdb/errors"
	"github.com/rs/zerolog"
)

// ===========================================================================
//
//	Warnings
//
// ===========================================================================
var (
	warningMutex   sync.Mutex
	warningHandler = func(w error) {
		log.Printf("obesity-warning: %v\n", w)
	}
	// set by pkg/log to avoid an import cycle
	zerologWarnFunc func(warning error)
)

// SetWarningHandler replaces the fallback handler used when no structured
// logger has been installed.
func SetWarningHandler(handler func(w error)) {
	warningMutex.Lock()
	defer warningMutex.Unlock()
	warningHandler = handler
}

// SetZerologWarnFunc installs the structured warning sink.
func SetZerologWarnFunc(warnFunc func(warning error)) {
	warningMutex.Lock()
	defer warningMutex.Unlock()
	zerologWarnFunc = warnFunc
}

// Warn reports a non-fatal condition.
func Warn(w error) {
	warningMutex.Lock()
	defer warningMutex.Unlock()

	if zerologWarnFunc != nil {
		zerologWarnFunc(w)
		return
	}
	if warningHandler != nil {
		warningHandler(w)
	}
}

// DataConversionWarning is raised when a raw cell could not be coerced and
// was replaced by a missing value.
type DataConversionWarning struct {
	Column string
	Line   int
	Raw    string
}

func (w *DataConversionWarning) Error() string {
	return fmt.Sprintf("column %s line %d: cannot parse %q as a number, treating it as missing", w.Column, w.Line, w.Raw)
}

// MarshalZerologObject adds the warning fields to a zerolog event.
func (w *DataConversionWarning) MarshalZerologObject(e *zerolog.Event) {
	e.Str("column", w.Column).
		Int("line", w.Line).
		Str("raw", w.Raw).
		Str("type", "DataConversionWarning")
}

// NewDataConversionWarning creates a DataConversionWarning.
func NewDataConversionWarning(column string, line int, raw string) *DataConversionWarning {
	return &DataConversionWarning{Column: column, Line: line, Raw: raw}
}

// UndefinedMetricWarning is raised when a metric is ill-defined, for example
// precision for a class that was never predicted.
type UndefinedMetricWarning struct {
	Metric    string
	Condition string
	Result    float64
}

func (w *UndefinedMetricWarning) Error() string {
	return fmt.Sprintf("'%s' is ill-defined and being set to %f due to %s.", w.Metric, w.Result, w.Condition)
}

// MarshalZerologObject adds the warning fields to a zerolog event.
func (w *UndefinedMetricWarning) MarshalZerologObject(e *zerolog.Event) {
	e.Str("metric", w.Metric).
		Str("condition", w.Condition).
		Float64("result", w.Result).
		Str("type", "UndefinedMetricWarning")
}

// NewUndefinedMetricWarning creates an UndefinedMetricWarning.
func NewUndefinedMetricWarning(metric, condition string, result float64) *UndefinedMetricWarning {
	return &UndefinedMetricWarning{Metric: metric, Condition: condition, Result: result}
}

// ===========================================================================
//
//	Structured errors
//
// ===========================================================================

// NotFittedError is returned when Predict or Transform is called before Fit.
type NotFittedError struct {
	ModelName string
	Method    string
}

func (e *NotFittedError) Error() string {
	return fmt.Sprintf("obesity: %s: this model is not fitted yet. Call Fit() before using %s()", e.ModelName, e.Method)
}

// MarshalZerologObject adds the error fields to a zerolog event.
func (e *NotFittedError) MarshalZerologObject(event *zerolog.Event) {
	event.Str("model_name", e.ModelName).
		Str("method", e.Method).
		Str("type", "NotFittedError")
}

// NewNotFittedError creates a NotFittedError with a stack trace.
func NewNotFittedError(modelName, method string) error {
	return errors.WithStack(&NotFittedError{ModelName: modelName, Method: method})
}

// DimensionError is returned when an input has the wrong shape.
type DimensionError struct {
	Op       string
	Expected int
	Got      int
	Axis     int // 0 for rows, 1 for columns/features
}

func (e *DimensionError) Error() string {
	return fmt.Sprintf("obesity: %s: dimension mismatch on axis %d (%s). Expected %d, got %d", e.Op, e.Axis, e.axisName(), e.Expected, e.Got)
}

func (e *DimensionError) axisName() string {
	if e.Axis == 0 {
		return "rows"
	}
	return "features"
}

// MarshalZerologObject adds the error fields to a zerolog event.
func (e *DimensionError) MarshalZerologObject(event *zerolog.Event) {
	event.Str("operation", e.Op).
		Int("expected", e.Expected).
		Int("got", e.Got).
		Int("axis", e.Axis).
		Str("axis_name", e.axisName()).
		Str("type", "DimensionError")
}

// NewDimensionError creates a DimensionError with a stack trace.
func NewDimensionError(op string, expected, got, axis int) error {
	return errors.WithStack(&DimensionError{Op: op, Expected: expected, Got: got, Axis: axis})
}

// FieldError describes one offending input field.
type FieldError struct {
	Field  string
	Reason string
	Value  interface{}
}

func (f FieldError) String() string {
	return fmt.Sprintf("%s: %s (got: %v)", f.Field, f.Reason, f.Value)
}

// ValidationError lists every field of an input that failed validation.
type ValidationError struct {
	Fields []FieldError
}

func (e *ValidationError) Error() string {
	switch len(e.Fields) {
	case 0:
		return "obesity: validation failed"
	case 1:
		f := e.Fields[0]
		return fmt.Sprintf("obesity: validation failed for '%s': %s (got: %v)", f.Field, f.Reason, f.Value)
	}
	parts := make([]string, len(e.Fields))
	for i, f := range e.Fields {
		parts[i] = f.String()
	}
	return fmt.Sprintf("obesity: validation failed for %d fields: %s", len(e.Fields), strings.Join(parts, "; "))
}

// FieldNames returns the offending field names in report order.
func (e *ValidationError) FieldNames() []string {
	names := make([]string, len(e.Fields))
	for i, f := range e.Fields {
		names[i] = f.Field
	}
	return names
}

// MarshalZerologObject adds the error fields to a zerolog event.
func (e *ValidationError) MarshalZerologObject(event *zerolog.Event) {
	event.Strs("fields", e.FieldNames()).
		Int("count", len(e.Fields)).
		Str("type", "ValidationError")
}

// NewValidationError creates a single-field ValidationError with a stack trace.
func NewValidationError(field, reason string, value interface{}) error {
	return errors.WithStack(&ValidationError{Fields: []FieldError{{Field: field, Reason: reason, Value: value}}})
}

// NewMultiValidationError creates a ValidationError over several fields.
// It returns nil when fields is empty.
func NewMultiValidationError(fields []FieldError) error {
	if len(fields) == 0 {
		return nil
	}
	return errors.WithStack(&ValidationError{Fields: fields})
}

// ValueError is returned when an argument has an unsuitable value.
type ValueError struct {
	Op      string
	Message string
}

func (e *ValueError) Error() string {
	return fmt.Sprintf("obesity: %s: %s", e.Op, e.Message)
}

// NewValueError creates a ValueError with a stack trace.
func NewValueError(op, message string) error {
	return errors.WithStack(&ValueError{Op: op, Message: message})
}

// ModelError is a general model failure.
type ModelError struct {
	Op   string
	Kind string
	Err  error
}

func (e *ModelError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("obesity: %s: %s: %v", e.Op, e.Kind, e.Err)
	}
	return fmt.Sprintf("obesity: %s: %s", e.Op, e.Kind)
}

func (e *ModelError) Unwrap() error {
	return e.Err
}

// NewModelError creates a ModelError with a stack trace.
func NewModelError(op, kind string, err error) error {
	return errors.WithStack(&ModelError{Op: op, Kind: kind, Err: err})
}

// stageError is the shared shape of the pipeline-stage errors below.
type stageError struct {
	Op     string
	Reason string
	Err    error
}

func (e *stageError) format(kind string) string {
	msg := fmt.Sprintf("obesity: %s: %s: %s", kind, e.Op, e.Reason)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *stageError) marshal(event *zerolog.Event, kind string) {
	event.Str("operation", e.Op).
		Str("reason", e.Reason).
		Str("type", kind)
	if e.Err != nil {
		event.Str("cause", e.Err.Error())
	}
}

// DataError is a fatal problem with the training data, such as a missing
// column or a categorical column with no observed value.
type DataError struct{ stageError }

func (e *DataError) Error() string                          { return e.format("data error") }
func (e *DataError) Unwrap() error                          { return e.Err }
func (e *DataError) MarshalZerologObject(ev *zerolog.Event) { e.marshal(ev, "DataError") }

// NewDataError creates a DataError with a stack trace.
func NewDataError(op, reason string, err error) error {
	return errors.WithStack(&DataError{stageError{Op: op, Reason: reason, Err: err}})
}

// TrainingError aborts a training run before anything is persisted.
type TrainingError struct{ stageError }

func (e *TrainingError) Error() string                          { return e.format("training error") }
func (e *TrainingError) Unwrap() error                          { return e.Err }
func (e *TrainingError) MarshalZerologObject(ev *zerolog.Event) { e.marshal(ev, "TrainingError") }

// NewTrainingError creates a TrainingError with a stack trace.
func NewTrainingError(op, reason string, err error) error {
	return errors.WithStack(&TrainingError{stageError{Op: op, Reason: reason, Err: err}})
}

// StartupError means the inference artifacts are missing, unreadable or do
// not belong together. No prediction may be attempted after it.
type StartupError struct{ stageError }

func (e *StartupError) Error() string                          { return e.format("startup error") }
func (e *StartupError) Unwrap() error                          { return e.Err }
func (e *StartupError) MarshalZerologObject(ev *zerolog.Event) { e.marshal(ev, "StartupError") }

// NewStartupError creates a StartupError with a stack trace.
func NewStartupError(op, reason string, err error) error {
	return errors.WithStack(&StartupError{stageError{Op: op, Reason: reason, Err: err}})
}

// ===========================================================================
//
//	cockroachdb/errors wrappers
//
// ===========================================================================

// Is reports whether any error in err's chain matches target.
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As finds the first error in err's chain that matches target.
func As(err error, target interface{}) bool {
	return errors.As(err, target)
}

// Wrap annotates err with a message.
func Wrap(err error, message string) error {
	return errors.Wrap(err, message)
}

// Wrapf annotates err with a formatted message.
func Wrapf(err error, format string, args ...interface{}) error {
	return errors.Wrapf(err, format, args...)
}

// New creates an error with a stack trace.
func New(message string) error {
	return errors.New(message)
}

// WithStack attaches a stack trace to err.
func WithStack(err error) error {
	return errors.WithStack(err)
}

// ErrEmptyData is returned when an operation receives no rows.
var ErrEmptyData = New("empty data")
