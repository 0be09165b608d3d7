package logging

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	cases := map[string]slog.Level{
		"":        slog.LevelInfo,
		"debug":   slog.LevelDebug,
		"INFO":    slog.LevelInfo,
		"warning": slog.LevelWarn,
		" Error ": slog.LevelError,
	}
	for in, want := range cases {
		got, err := ParseLevel(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}

	_, err := ParseLevel("verbose")
	assert.Error(t, err)
}

func TestNewTextFiltersBelowLevel(t *testing.T) {
	var buf bytes.Buffer
	l, err := New("warn", "text", &buf)
	require.NoError(t, err)

	l.Info("quiet", "k", "v")
	l.Warn("loud", "user", "alice")

	out := buf.String()
	assert.NotContains(t, out, "quiet")
	assert.Contains(t, out, "level=WARN")
	assert.Contains(t, out, "user=alice")
}

func TestNewJSON(t *testing.T) {
	var buf bytes.Buffer
	l, err := New("debug", "json", &buf)
	require.NoError(t, err)

	l.Debug("hello", "session_id", "sid")

	var rec map[string]any
	require.NoError(t, json.Unmarshal([]byte(strings.TrimSpace(buf.String())), &rec))
	assert.Equal(t, "DEBUG", rec["level"])
	assert.Equal(t, "hello", rec["msg"])
	assert.Equal(t, "sid", rec["session_id"])
}

func TestNewRejectsUnknownFormat(t *testing.T) {
	_, err := New("info", "xml", &bytes.Buffer{})
	assert.Error(t, err)
}
