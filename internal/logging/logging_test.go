package logging

import (
	"bytes"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"

	"github.com/infinitepi-io/chatrix/internal/config"
)

func TestNewJSON(t *testing.T) {
	var buf bytes.Buffer
	logger, closer := New(config.LoggingConfig{Level: "info"}, &buf)
	defer closer.Close()

	logger.Debug("hidden")
	logger.Info("request completed", "request_id", "abc")

	line := buf.String()
	require.True(t, gjson.Valid(line), line)
	assert.Equal(t, "request completed", gjson.Get(line, "msg").String())
	assert.Equal(t, "abc", gjson.Get(line, "request_id").String())
	assert.Equal(t, "chatrix", gjson.Get(line, "service").String())
}

func TestNewText(t *testing.T) {
	var buf bytes.Buffer
	logger, _ := New(config.LoggingConfig{Level: "debug", Format: "text"}, &buf)

	logger.Debug("visible", "k", "v")
	assert.Contains(t, buf.String(), "msg=visible")
	assert.Contains(t, buf.String(), "k=v")
}

func TestNewWritesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "chatrix.log")
	logger, closer := New(config.LoggingConfig{File: path}, nil)

	logger.Warn("to file")
	require.NoError(t, closer.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "to file")
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, ParseLevel("DEBUG"))
	assert.Equal(t, slog.LevelWarn, ParseLevel("warning"))
	assert.Equal(t, slog.LevelError, ParseLevel("error"))
	assert.Equal(t, slog.LevelInfo, ParseLevel(""))
	assert.Equal(t, slog.LevelInfo, ParseLevel("nonsense"))
}
