package logger

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	tests := map[string]LogLevel{
		"debug":   LevelDebug,
		"INFO":    LevelInfo,
		"warning": LevelWarn,
		"WARN":    LevelWarn,
		"error":   LevelError,
		"bogus":   LevelInfo,
	}
	for in, want := range tests {
		assert.Equal(t, want, ParseLevel(in), in)
	}
}

func TestStdLogger_LevelThresholdAndFields(t *testing.T) {
	var buf bytes.Buffer
	l := New(LevelInfo, &buf)
	ctx := context.Background()

	l.Debug(ctx, "hidden")
	l.Info(ctx, "cycle finished", map[string]interface{}{"trades": 2, "errors": 0})
	l.Error(ctx, errors.New("boom"), "order failed")

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, "[INFO] cycle finished | errors=0 trades=2")
	assert.Contains(t, out, "[ERROR] order failed | error: boom")
}

func TestNewFileLogger_WritesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "manager.log")
	l, closer, err := NewFileLogger(LevelInfo, path)
	require.NoError(t, err)

	l.Warn(context.Background(), "emergency stop active")
	require.NoError(t, closer())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "[WARN] emergency stop active")
}
