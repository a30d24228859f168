package logger

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func logLine(t *testing.T, buf *bytes.Buffer) map[string]any {
	t.Helper()
	var m map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &m))
	return m
}

func TestLogger_MasksSensitiveKeys(t *testing.T) {
	var buf bytes.Buffer
	log := New(Config{Level: "info", Format: "json", Output: &buf})

	log.Info("connecting", "password", "hunter2", "host", "db")

	m := logLine(t, &buf)
	assert.Equal(t, "[REDACTED]", m["password"])
	assert.Equal(t, "db", m["host"])
}

func TestLogger_MasksKeysContainingSensitiveWords(t *testing.T) {
	var buf bytes.Buffer
	log := New(Config{Level: "info", Format: "json", Output: &buf})

	log.Info("delivering", "webhook_secret_hash", "abc", "url", "https://example.com")

	m := logLine(t, &buf)
	assert.Equal(t, "[REDACTED]", m["webhook_secret_hash"])
	assert.Equal(t, "https://example.com", m["url"])
}

func TestLogger_LevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	log := New(Config{Level: "warn", Format: "json", Output: &buf})

	log.Info("dropped")
	assert.Zero(t, buf.Len())

	log.Warn("kept")
	assert.NotZero(t, buf.Len())
}

func TestParseLevel_UnknownDefaultsToInfo(t *testing.T) {
	var buf bytes.Buffer
	log := New(Config{Level: "chatty", Format: "json", Output: &buf})

	log.Debug("dropped")
	assert.Zero(t, buf.Len())
	log.Info("kept")
	assert.NotZero(t, buf.Len())
}

func TestLogger_With(t *testing.T) {
	var buf bytes.Buffer
	log := New(Config{Level: "info", Format: "json", Output: &buf})

	log.With("component", "scheduler").Info("tick")

	m := logLine(t, &buf)
	assert.Equal(t, "scheduler", m["component"])
}
