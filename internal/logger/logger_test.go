package logger

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/charmbracelet/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input    string
		expected log.Level
	}{
		{"debug", log.DebugLevel},
		{"INFO", log.InfoLevel},
		{"warn", log.WarnLevel},
		{"warning", log.WarnLevel},
		{" error ", log.ErrorLevel},
		{"fatal", log.FatalLevel},
		{"verbose", log.InfoLevel},
		{"", log.InfoLevel},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.expected, ParseLevel(tt.input))
		})
	}
}

func TestConfigure_FlagOverridesEnv(t *testing.T) {
	t.Setenv("BYTEDGE_LOG_LEVEL", "error")
	t.Cleanup(func() { _ = Configure("info", "", "") })

	require.NoError(t, Configure("debug", "", ""))
	assert.Equal(t, log.DebugLevel, Logger.GetLevel())

	require.NoError(t, Configure("", "", ""))
	assert.Equal(t, log.ErrorLevel, Logger.GetLevel())
}

func TestConfigure_LogFileAndJSONFormat(t *testing.T) {
	t.Cleanup(func() { _ = Configure("info", "", "") })

	path := filepath.Join(t.TempDir(), "bytedge.log")
	require.NoError(t, Configure("info", path, "json"))

	Info("request handled", "agent", "brake")

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"msg":"request handled"`)
	assert.Contains(t, string(data), `"agent":"brake"`)
}

func TestConfigure_BadLogFile(t *testing.T) {
	err := Configure("info", filepath.Join(t.TempDir(), "missing", "dir", "x.log"), "")
	assert.Error(t, err)
}

func TestSetOutput_KeepsLevel(t *testing.T) {
	t.Cleanup(func() { _ = Configure("info", "", "") })
	require.NoError(t, Configure("warn", "", "logfmt"))

	var buf bytes.Buffer
	SetOutput(&buf)

	Info("hidden")
	Warn("shown", "session", "s1")

	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), "shown")
	assert.Contains(t, buf.String(), "session=s1")
}

func TestNewStyledLogger(t *testing.T) {
	t.Cleanup(func() { _ = Configure("info", "", "") })
	require.NoError(t, Configure("debug", "", "logfmt"))

	var buf bytes.Buffer
	SetOutput(&buf)

	l := NewStyledLogger("server")
	assert.Equal(t, log.DebugLevel, l.GetLevel())

	l.Debug("listening", "status", "ok")
	assert.Contains(t, buf.String(), "listening")
	assert.Contains(t, buf.String(), "server")
}
