package logger

import (
	"bytes"
	"encoding/json"
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func capture(t *testing.T, level, format string) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	SetOutput(&buf)
	Configure(level, format)
	t.Cleanup(func() {
		SetOutput(os.Stderr)
		Configure("info", "text")
	})
	return &buf
}

func TestLevelFiltering(t *testing.T) {
	buf := capture(t, "warn", "text")

	Info("hidden %d", 1)
	Warn("shown %d", 2)
	Error("shown %d", 3)

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, "WARN: shown 2")
	assert.Contains(t, out, "ERROR: shown 3")
	assert.False(t, Enabled(LevelInfo))
	assert.True(t, Enabled(LevelError))
}

func TestJSONFormat(t *testing.T) {
	buf := capture(t, "debug", "json")

	Debug("page %d is blank", 4)

	var entry map[string]string
	require.NoError(t, json.Unmarshal([]byte(strings.TrimSpace(buf.String())), &entry))
	assert.Equal(t, "DEBUG", entry["level"])
	assert.Equal(t, "page 4 is blank", entry["message"])
	assert.NotEmpty(t, entry["time"])
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, LevelDebug, ParseLevel("DEBUG"))
	assert.Equal(t, LevelWarn, ParseLevel("warning"))
	assert.Equal(t, LevelError, ParseLevel(" error "))
	assert.Equal(t, LevelInfo, ParseLevel("verbose"))
}
