package logging_test

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lorrc/repair-desk/internal/infrastructure/logging"
)

func TestNewLogger_AddsContextAndServiceMetadata(t *testing.T) {
	var buf bytes.Buffer
	logger := logging.NewLogger(logging.Config{
		Level:       "debug",
		Format:      "json",
		Output:      &buf,
		ServiceName: "repair-desk",
		Environment: "test",
	})

	ctx := logging.WithRequestID(context.Background(), "req-1")
	ctx = logging.WithClientID(ctx, "client-9")
	logger.DebugContext(ctx, "loaded", "tickets", 3)

	var record map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &record))
	assert.Equal(t, "loaded", record["msg"])
	assert.Equal(t, "repair-desk", record["service"])
	assert.Equal(t, "test", record["environment"])
	assert.Equal(t, "req-1", record["request_id"])
	assert.Equal(t, "client-9", record["client_id"])
	assert.Equal(t, float64(3), record["tickets"])
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, logging.ParseLevel("debug"))
	assert.Equal(t, slog.LevelWarn, logging.ParseLevel("warn"))
	assert.Equal(t, slog.LevelError, logging.ParseLevel("error"))
	assert.Equal(t, slog.LevelInfo, logging.ParseLevel("verbose"))
}

func TestLoggerFromContext(t *testing.T) {
	var buf bytes.Buffer
	base := slog.New(slog.NewJSONHandler(&buf, nil))

	ctx := logging.WithClientID(context.Background(), "client-9")
	logging.LoggerFromContext(ctx, base).Info("hello")

	var record map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &record))
	assert.Equal(t, "client-9", record["client_id"])
	assert.NotContains(t, record, "request_id")
}

func TestDefaultConfig_Overrides(t *testing.T) {
	var buf bytes.Buffer
	cfg := logging.DefaultConfig()
	cfg.Output = &buf
	cfg.ServiceName = "repairctl"

	logging.NewLogger(cfg).Debug("hidden")
	logging.NewLogger(cfg).Info("shown")

	var record map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &record), "only the info record is written, as json")
	assert.Equal(t, "shown", record["msg"])
	assert.Equal(t, "repairctl", record["service"])
	assert.Equal(t, "development", record["environment"])
}
