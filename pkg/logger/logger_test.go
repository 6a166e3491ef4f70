package logger

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLogger_DefaultInitialization(t *testing.T) {
	require.NotNil(t, Log)
	Log.Info("Testing default logger")
}

func TestNew_JSONCarriesContext(t *testing.T) {
	var buf bytes.Buffer
	l := New(&buf, "info", "json").With("session", "abc")
	l.Debug("hidden")
	l.Info("tick", "progress", 42)

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 1)

	var rec map[string]any
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &rec))
	assert.Equal(t, "tick", rec["msg"])
	assert.Equal(t, "abc", rec["session"])
	assert.EqualValues(t, 42, rec["progress"])
}

func TestNew_TextFormat(t *testing.T) {
	var buf bytes.Buffer
	New(&buf, "debug", "text").Debug("starting", "pid", 7)
	assert.Contains(t, buf.String(), "msg=starting")
	assert.Contains(t, buf.String(), "pid=7")
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, ParseLevel("DEBUG"))
	assert.Equal(t, slog.LevelWarn, ParseLevel("warning"))
	assert.Equal(t, slog.LevelError, ParseLevel("error"))
	assert.Equal(t, slog.LevelInfo, ParseLevel("bogus"))
}
