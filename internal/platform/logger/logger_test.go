package logger

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_ProductionWritesJSONAtInfo(t *testing.T) {
	prev := slog.Default()
	t.Cleanup(func() { slog.SetDefault(prev) })

	var buf bytes.Buffer
	log, flush, err := New(Options{Output: &buf})
	require.NoError(t, err)
	defer flush()

	log.Debug("hidden")
	log.Info("sweep finished", "updated", 3)

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "sweep finished", line["msg"])
	assert.EqualValues(t, 3, line["updated"])
	assert.Same(t, log, slog.Default())
}

func TestNew_DevelopmentWritesTextAtDebug(t *testing.T) {
	prev := slog.Default()
	t.Cleanup(func() { slog.SetDefault(prev) })

	var buf bytes.Buffer
	log, _, err := New(Options{Development: true, Output: &buf})
	require.NoError(t, err)

	log.Debug("lease held elsewhere", "task", "sweep")
	assert.Contains(t, buf.String(), "level=DEBUG")
	assert.Contains(t, buf.String(), "task=sweep")
}
