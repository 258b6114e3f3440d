package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestContextLogger(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))

	ctx := ContextWithLogger(context.Background(), logger)
	assert.Same(t, logger, FromContext(ctx))
	assert.Nil(t, FromContext(context.Background()))
	assert.Equal(t, context.Background(), ContextWithLogger(context.Background(), nil))
}

func TestParseLevel(t *testing.T) {
	tests := map[string]slog.Level{
		"debug":  slog.LevelDebug,
		"INFO":   slog.LevelInfo,
		" warn ": slog.LevelWarn,
		"error":  slog.LevelError,
	}
	for input, want := range tests {
		got, err := ParseLevel(input)
		require.NoError(t, err, input)
		assert.Equal(t, want, got, input)
	}

	_, err := ParseLevel("verbose")
	assert.Error(t, err)
}

func TestNew_WritesJSONAtLevel(t *testing.T) {
	var buf bytes.Buffer
	logger := New(&buf, slog.LevelWarn)

	logger.Info("dropped")
	logger.Warn("kept", "session_id", "s1")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "kept", entry["msg"])
	assert.Equal(t, "s1", entry["session_id"])
}

func TestScoped(t *testing.T) {
	var fallbackOut, requestOut bytes.Buffer
	fallback := New(&fallbackOut, slog.LevelInfo)
	request := New(&requestOut, slog.LevelInfo).With("request_id", "r1")

	Scoped(context.Background(), fallback, "service", "SessionService", "CreateSeries", "series_id", "x").Info("done")
	var entry map[string]any
	require.NoError(t, json.Unmarshal(fallbackOut.Bytes(), &entry))
	assert.Equal(t, "SessionService", entry["service"])
	assert.Equal(t, "CreateSeries", entry["operation"])
	assert.Equal(t, "x", entry["series_id"])

	ctx := ContextWithLogger(context.Background(), request)
	Scoped(ctx, fallback, "handler", "RoomHandler", "").Info("done")
	entry = nil
	require.NoError(t, json.Unmarshal(requestOut.Bytes(), &entry))
	assert.Equal(t, "r1", entry["request_id"])
	assert.Equal(t, "RoomHandler", entry["handler"])
	assert.NotContains(t, entry, "operation")

	assert.Same(t, slog.Default(), OrDefault(nil))
	assert.Same(t, fallback, OrDefault(fallback))
}
