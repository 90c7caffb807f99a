package logger_test

import (
	"bytes"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/DeafMist/verdict-radar/backend/internal/logger"
)

func TestNewWithWriterJSON(t *testing.T) {
	var buf bytes.Buffer
	log := logger.NewWithWriter(&buf, "api", "debug", "json")
	log.Debug("cache hit", "items", 4)

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	require.Equal(t, "api", line["service"])
	require.Equal(t, "cache hit", line["msg"])
	require.EqualValues(t, 4, line["items"])
}

func TestNewWithWriterLevelFilter(t *testing.T) {
	var buf bytes.Buffer
	log := logger.NewWithWriter(&buf, "scraper", "warn", "")
	log.Info("dropped")
	require.Zero(t, buf.Len())

	log.Warn("kept")
	require.Contains(t, buf.String(), "service=scraper")
	require.Contains(t, buf.String(), "kept")
}

func TestCronLoggerReportsErrors(t *testing.T) {
	var buf bytes.Buffer
	log := logger.Cron(logger.NewWithWriter(&buf, "api", "info", "json"))

	log.Info("wake", "now", "x")
	require.Zero(t, buf.Len())

	log.Error(errors.New("panic in job"), "job failed", "entry", 1)
	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	require.Equal(t, "job failed", line["msg"])
	require.Equal(t, "panic in job", line["err"])
	require.Equal(t, "cron", line["component"])
	require.EqualValues(t, 1, line["entry"])
}
