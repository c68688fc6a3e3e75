package log

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	perrors "github.com/nggra/obesity/pkg/errors"
)

func TestLoggerLevels(t *testing.T) {
	logger := NewTestLogger(LevelDebug)

	logger.Debug("debug message", "key1", "value1", "number", 42)
	logger.Info("info message", OperationKey, OperationFit)
	logger.Warn("warning message")
	logger.Error("error message", fmt.Errorf("test error"), ColumnKey, "Age")

	for _, msg := range []string{"debug message", "info message", "warning message", "error message"} {
		assert.True(t, logger.ContainsMessage(msg), msg)
	}
	assert.True(t, logger.ContainsField("key1", "value1"))
	assert.True(t, logger.ContainsField("number", 42))
	assert.True(t, logger.ContainsField(OperationKey, OperationFit))
	assert.True(t, logger.ContainsField(ErrAttrKey, "test error"))
	assert.Equal(t, 1, logger.CountLevel(LevelWarn))
}

func TestLoggerFiltering(t *testing.T) {
	logger := NewTestLogger(LevelWarn)
	logger.Debug("hidden")
	logger.Info("hidden too")
	logger.Warn("shown")

	entries, err := logger.Entries()
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "shown", entries[0]["message"])
	assert.Equal(t, "WARN", entries[0]["severity"])

	ctx := context.Background()
	assert.False(t, logger.Enabled(ctx, LevelInfo))
	assert.True(t, logger.Enabled(ctx, LevelError))
}

func TestLoggerWith(t *testing.T) {
	logger := NewTestLogger(LevelInfo)
	child := logger.With(ModelNameKey, "StandardScaler", ComponentKey, "preprocessing")
	child.Info("scaler fitted", FeaturesKey, 8)

	assert.True(t, logger.ContainsField(ModelNameKey, "StandardScaler"))
	assert.True(t, logger.ContainsField(ComponentKey, "preprocessing"))
	assert.True(t, logger.ContainsField(FeaturesKey, 8))
}

func TestStructuredErrorDetail(t *testing.T) {
	logger := NewTestLogger(LevelInfo)
	logger.Error("load failed", perrors.NewStartupError("Load", "missing model.gob", nil))

	entries, err := logger.Entries()
	require.NoError(t, err)
	require.Len(t, entries, 1)

	detail, ok := entries[0][ErrDetailAttrKey].(map[string]interface{})
	require.True(t, ok, "error_detail should be an object: %v", entries[0])
	assert.Equal(t, "StartupError", detail["type"])
	assert.Equal(t, "Load", detail["operation"])
	assert.Contains(t, entries[0], StacktraceAttrKey)
}

func TestNewFormats(t *testing.T) {
	tests := []struct {
		format  string
		wantErr bool
		check   func(t *testing.T, out string)
	}{
		{format: FormatJSON, check: func(t *testing.T, out string) {
			assert.True(t, strings.HasPrefix(out, "{"))
			assert.Contains(t, out, `"message":"hello"`)
		}},
		{format: FormatPretty, check: func(t *testing.T, out string) {
			assert.Contains(t, out, "hello")
			assert.False(t, strings.HasPrefix(out, "{"))
		}},
		{format: "xml", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.format, func(t *testing.T) {
			var buf bytes.Buffer
			logger, err := New(&buf, LevelInfo, tt.format)
			if tt.wantErr {
				var ve *perrors.ValidationError
				require.True(t, perrors.As(err, &ve))
				assert.Equal(t, []string{"log_format"}, ve.FieldNames())
				return
			}
			require.NoError(t, err)
			logger.Info("hello", SamplesKey, 10)
			tt.check(t, buf.String())
		})
	}
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in      string
		want    Level
		wantErr bool
	}{
		{"debug", LevelDebug, false},
		{"INFO", LevelInfo, false},
		{"warn", LevelWarn, false},
		{"error", LevelError, false},
		{"", LevelInfo, false},
		{"verbose", LevelInfo, true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseLevel(tt.in)
			if tt.wantErr {
				var ve *perrors.ValidationError
				require.True(t, perrors.As(err, &ve))
				assert.Equal(t, []string{"log_level"}, ve.FieldNames())
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestSetLoggerRoutesWarnings(t *testing.T) {
	logger := NewTestLogger(LevelDebug)
	prev := GetLogger()
	SetLogger(logger)
	defer SetLogger(prev)

	perrors.Warn(perrors.NewDataConversionWarning("Age", 3, "n/a"))
	assert.Equal(t, 1, logger.CountLevel(LevelWarn))
	assert.True(t, logger.ContainsField(ErrAttrKey, `column Age line 3: cannot parse "n/a" as a number, treating it as missing`))
}

func TestConcurrentLogging(t *testing.T) {
	logger := NewTestLogger(LevelInfo)
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			for j := 0; j < 25; j++ {
				logger.Info("fold scored", CandidateKey, id, FoldsKey, j)
			}
		}(i)
	}
	wg.Wait()

	entries, err := logger.Entries()
	require.NoError(t, err)
	assert.Len(t, entries, 200)
}
