package log

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
)

// syncBuffer serialises writes from concurrent loggers.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (s *syncBuffer) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.buf.Write(p)
}

func (s *syncBuffer) String() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.buf.String()
}

func (s *syncBuffer) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.buf.Reset()
}

// TestLogger captures JSON records in memory so tests can assert on them.
// It is the production zerolog backend pointed at a buffer.
type TestLogger struct {
	Logger
	out *syncBuffer
}

// NewTestLogger creates a TestLogger emitting records at level or above.
//
//	logger := log.NewTestLogger(log.LevelDebug)
//	scaler.SetLogger(logger)
//	...
//	require.True(t, logger.ContainsMessage("scaler fitted"))
func NewTestLogger(level Level) *TestLogger {
	out := &syncBuffer{}
	l, err := New(out, level, FormatJSON)
	if err != nil {
		panic(err)
	}
	return &TestLogger{Logger: l, out: out}
}

// With keeps the capturing buffer on the child logger.
func (t *TestLogger) With(fields ...any) Logger {
	return &TestLogger{Logger: t.Logger.With(fields...), out: t.out}
}

// Output returns the raw captured log lines.
func (t *TestLogger) Output() string {
	return t.out.String()
}

// Entries parses the captured output, one map per record.
func (t *TestLogger) Entries() ([]map[string]interface{}, error) {
	var entries []map[string]interface{}
	sc := bufio.NewScanner(strings.NewReader(t.out.String()))
	sc.Buffer(make([]byte, 0, 64*1024), 1<<20)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		var entry map[string]interface{}
		if err := json.Unmarshal([]byte(line), &entry); err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	return entries, sc.Err()
}

// ContainsMessage reports whether any record has exactly this message.
func (t *TestLogger) ContainsMessage(message string) bool {
	entries, err := t.Entries()
	if err != nil {
		return false
	}
	for _, e := range entries {
		if e["message"] == message {
			return true
		}
	}
	return false
}

// ContainsField reports whether any record carries key with a value whose
// printed form equals value's. Numbers decode as float64, so 3 matches 3.0.
func (t *TestLogger) ContainsField(key string, value interface{}) bool {
	entries, err := t.Entries()
	if err != nil {
		return false
	}
	want := fmt.Sprint(value)
	for _, e := range entries {
		if v, ok := e[key]; ok && fmt.Sprint(v) == want {
			return true
		}
	}
	return false
}

// CountLevel returns how many records were emitted at level.
func (t *TestLogger) CountLevel(level Level) int {
	entries, err := t.Entries()
	if err != nil {
		return 0
	}
	n := 0
	for _, e := range entries {
		if e["severity"] == level.String() {
			n++
		}
	}
	return n
}

// Clear drops everything captured so far.
func (t *TestLogger) Clear() {
	t.out.Reset()
}
