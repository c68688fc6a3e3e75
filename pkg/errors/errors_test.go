package errors

import (
	"bytes"
	"fmt"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

func TestNewModelError(t *testing.T) {
	tests := []struct {
		name    string
		op      string
		kind    string
		err     error
		wantMsg string
	}{
		{
			name:    "with original error",
			op:      "Fit",
			kind:    "invalid input",
			err:     fmt.Errorf("test error"),
			wantMsg: "obesity: Fit: invalid input: test error",
		},
		{
			name:    "without original error",
			op:      "Predict",
			kind:    "not fitted",
			wantMsg: "obesity: Predict: not fitted",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := NewModelError(tt.op, tt.kind, tt.err)
			if err.Error() != tt.wantMsg {
				t.Errorf("Error() = %v, want %v", err.Error(), tt.wantMsg)
			}
			formatted := fmt.Sprintf("%+v", err)
			if !strings.Contains(formatted, "errors_test.go") {
				t.Error("Expected stack trace to contain test file name")
			}
			var modelErr *ModelError
			if !As(err, &modelErr) {
				t.Error("Error should be castable to *ModelError")
			}
		})
	}
}

func TestNewDimensionError(t *testing.T) {
	err := NewDimensionError("Transform", 8, 16, 1)
	want := "obesity: Transform: dimension mismatch on axis 1 (features). Expected 8, got 16"
	if err.Error() != want {
		t.Errorf("Error() = %v, want %v", err.Error(), want)
	}
	var dimErr *DimensionError
	if !As(err, &dimErr) {
		t.Fatal("Error should be castable to *DimensionError")
	}
	if dimErr.Expected != 8 || dimErr.Got != 16 {
		t.Errorf("unexpected fields: %+v", dimErr)
	}
}

func TestNewNotFittedError(t *testing.T) {
	err := NewNotFittedError("StandardScaler", "Transform")
	want := "obesity: StandardScaler: this model is not fitted yet. Call Fit() before using Transform()"
	if err.Error() != want {
		t.Errorf("Error() = %v, want %v", err.Error(), want)
	}
	var notFittedErr *NotFittedError
	if !As(err, &notFittedErr) {
		t.Error("Error should be castable to *NotFittedError")
	}
}

func TestValidationError(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantFields []string
		wantMsg    string
	}{
		{
			name:       "single field",
			err:        NewValidationError("Gender", "unknown category", "Other"),
			wantFields: []string{"Gender"},
			wantMsg:    "obesity: validation failed for 'Gender': unknown category (got: Other)",
		},
		{
			name: "several fields",
			err: NewMultiValidationError([]FieldError{
				{Field: "Age", Reason: "out of range [10, 100]", Value: 120.0},
				{Field: "MTRANS", Reason: "unknown category", Value: "Rocket"},
			}),
			wantFields: []string{"Age", "MTRANS"},
			wantMsg:    "obesity: validation failed for 2 fields: Age: out of range [10, 100] (got: 120); MTRANS: unknown category (got: Rocket)",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var vErr *ValidationError
			if !As(tt.err, &vErr) {
				t.Fatalf("expected *ValidationError, got %T", tt.err)
			}
			if got := vErr.FieldNames(); strings.Join(got, ",") != strings.Join(tt.wantFields, ",") {
				t.Errorf("FieldNames() = %v, want %v", got, tt.wantFields)
			}
			if tt.err.Error() != tt.wantMsg {
				t.Errorf("Error() = %q, want %q", tt.err.Error(), tt.wantMsg)
			}
		})
	}

	if NewMultiValidationError(nil) != nil {
		t.Error("empty field list should produce a nil error")
	}
}

func TestStageErrors(t *testing.T) {
	cause := fmt.Errorf("disk full")
	tests := []struct {
		name    string
		err     error
		wantMsg string
		check   func(error) bool
	}{
		{
			name:    "data",
			err:     NewDataError("Clean", "column CALC has no observed values", nil),
			wantMsg: "obesity: data error: Clean: column CALC has no observed values",
			check:   func(err error) bool { var e *DataError; return As(err, &e) },
		},
		{
			name:    "training",
			err:     NewTrainingError("SMOTE", "class 3 has a single sample", nil),
			wantMsg: "obesity: training error: SMOTE: class 3 has a single sample",
			check:   func(err error) bool { var e *TrainingError; return As(err, &e) },
		},
		{
			name:    "startup",
			err:     NewStartupError("Load", "cannot read model.gob", cause),
			wantMsg: "obesity: startup error: Load: cannot read model.gob: disk full",
			check:   func(err error) bool { var e *StartupError; return As(err, &e) },
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.err.Error() != tt.wantMsg {
				t.Errorf("Error() = %q, want %q", tt.err.Error(), tt.wantMsg)
			}
			if !tt.check(tt.err) {
				t.Errorf("error %T has the wrong kind", tt.err)
			}
		})
	}

	if !Is(NewStartupError("Load", "x", cause), cause) {
		t.Error("StartupError should unwrap to its cause")
	}
}

func TestMarshalZerologObject(t *testing.T) {
	var buf bytes.Buffer
	logger := zerolog.New(&buf)

	var dataErr *DataError
	err := NewDataError("Load", "missing column NObeyesdad", nil)
	if !As(err, &dataErr) {
		t.Fatal("expected *DataError")
	}
	logger.Error().EmbedObject(dataErr).Msg("load failed")

	out := buf.String()
	for _, want := range []string{`"type":"DataError"`, `"operation":"Load"`, `"reason":"missing column NObeyesdad"`} {
		if !strings.Contains(out, want) {
			t.Errorf("log line %s does not contain %s", out, want)
		}
	}
}

func TestWarn(t *testing.T) {
	var got []error
	SetZerologWarnFunc(nil)
	SetWarningHandler(func(w error) { got = append(got, w) })
	defer SetWarningHandler(nil)

	Warn(NewDataConversionWarning("Age", 4, "abc"))
	if len(got) != 1 {
		t.Fatalf("expected one warning, got %d", len(got))
	}
	want := `column Age line 4: cannot parse "abc" as a number, treating it as missing`
	if got[0].Error() != want {
		t.Errorf("warning = %q, want %q", got[0].Error(), want)
	}
}

func TestWrapAndIs(t *testing.T) {
	wrapped := Wrap(ErrEmptyData, "encode MTRANS")
	if !Is(wrapped, ErrEmptyData) {
		t.Error("Expected Is(wrapped, ErrEmptyData) to be true")
	}
	if !strings.Contains(wrapped.Error(), "encode MTRANS") {
		t.Error("Expected wrapped error to contain wrapping message")
	}

	wrappedf := Wrapf(ErrEmptyData, "in %s: %d rows left", "Clean", 0)
	if !Is(wrappedf, ErrEmptyData) {
		t.Error("Expected Is(wrappedf, ErrEmptyData) to be true")
	}
}

func TestCheckFinite(t *testing.T) {
	if err := CheckFinite("Fit", []float64{1, 2, 3}); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	err := CheckFinite("Fit", []float64{1, nan(), 3})
	var vErr *ValueError
	if !As(err, &vErr) {
		t.Fatalf("expected *ValueError, got %v", err)
	}
	if !strings.Contains(vErr.Message, "index 1") {
		t.Errorf("message should name the index: %s", vErr.Message)
	}
}

func nan() float64 {
	var zero float64
	return zero / zero
}
