package logging

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLogLevel_String(t *testing.T) {
	tests := []struct {
		level    LogLevel
		expected string
	}{
		{DebugLevel, "DEBUG"},
		{InfoLevel, "INFO"},
		{WarnLevel, "WARN"},
		{ErrorLevel, "ERROR"},
		{LogLevel(99), "UNKNOWN"},
	}

	for _, tt := range tests {
		t.Run(tt.expected, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.level.String())
		})
	}
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, DebugLevel, ParseLevel("debug"))
	assert.Equal(t, WarnLevel, ParseLevel("WARNING"))
	assert.Equal(t, ErrorLevel, ParseLevel(" error "))
	assert.Equal(t, InfoLevel, ParseLevel(""))
	assert.Equal(t, InfoLevel, ParseLevel("verbose"))
}

func TestZapAdapter(t *testing.T) {
	t.Run("levels", func(t *testing.T) {
		var buf bytes.Buffer
		logger, err := NewZapLogger(LogConfig{Level: DebugLevel, Output: &buf})
		require.NoError(t, err)

		logger.Debug("token loaded", String("user_id", "alice"))
		logger.Info("token refreshed", Int64("expires_in", 3600))
		logger.Warn("retrying request", Int("attempt", 2))
		logger.Error("refresh failed", errors.New("invalid_grant"))

		output := buf.String()
		assert.Contains(t, output, "DEBUG")
		assert.Contains(t, output, "token loaded")
		assert.Contains(t, output, "alice")
		assert.Contains(t, output, "INFO")
		assert.Contains(t, output, "3600")
		assert.Contains(t, output, "WARN")
		assert.Contains(t, output, "ERROR")
		assert.Contains(t, output, "invalid_grant")
	})

	t.Run("level filtering", func(t *testing.T) {
		var buf bytes.Buffer
		logger, err := NewZapLogger(LogConfig{Level: WarnLevel, Output: &buf})
		require.NoError(t, err)

		logger.Debug("hidden debug")
		logger.Info("hidden info")
		logger.Warn("shown warn")

		output := buf.String()
		assert.NotContains(t, output, "hidden")
		assert.Contains(t, output, "shown warn")
	})

	t.Run("with fields", func(t *testing.T) {
		var buf bytes.Buffer
		logger, err := NewZapLogger(LogConfig{Level: InfoLevel, Output: &buf})
		require.NoError(t, err)

		logger.WithFields(String("component", "oauth2_flow")).Info("exchanging code")
		assert.Contains(t, buf.String(), "oauth2_flow")
		assert.Same(t, logger, logger.WithFields())
	})

	t.Run("with context", func(t *testing.T) {
		var buf bytes.Buffer
		logger, err := NewZapLogger(LogConfig{Level: InfoLevel, Output: &buf})
		require.NoError(t, err)

		ctx := ContextWithRequestID(ContextWithUserID(context.Background(), "bob"), "req-1")
		logger.WithContext(ctx).Info("request sent")

		output := buf.String()
		assert.Contains(t, output, "bob")
		assert.Contains(t, output, "req-1")
		assert.Same(t, logger, logger.WithContext(context.Background()))
	})

	t.Run("prefix", func(t *testing.T) {
		var buf bytes.Buffer
		logger, err := NewZapLogger(LogConfig{Level: InfoLevel, Output: &buf, Prefix: "apiclient"})
		require.NoError(t, err)

		logger.Info("hello")
		assert.Contains(t, buf.String(), "apiclient")
	})
}

func TestGlobalLogger(t *testing.T) {
	original := GetGlobalLogger()
	defer SetGlobalLogger(original)

	var buf bytes.Buffer
	logger, err := NewZapLogger(LogConfig{Level: DebugLevel, Output: &buf})
	require.NoError(t, err)
	SetGlobalLogger(logger)

	Info("global info", Bool("cached", true))
	Warn("global warn")
	Error("global error", errors.New("boom"))
	WithFields(String("k", "v")).Debug("global debug")

	output := buf.String()
	assert.Contains(t, output, "global info")
	assert.Contains(t, output, "global warn")
	assert.Contains(t, output, "boom")
	assert.Contains(t, output, "global debug")
}

func TestNopLogger(t *testing.T) {
	logger := NewNopLogger()
	assert.NotPanics(t, func() {
		logger.Info("ignored")
		logger.Error("ignored", errors.New("x"))
		logger.WithFields(String("a", "b")).WithContext(context.Background()).Debug("ignored")
	})
}
