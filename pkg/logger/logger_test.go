package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/helmcode/repoguardian/pkg/config"
)

func TestTraceHandler_AddsContextFields(t *testing.T) {
	var buf bytes.Buffer
	log := slog.New(NewHandler(&buf, "json", slog.LevelDebug))

	ctx := WithLogFields(context.Background(), LogFields{RequestID: "req-1", Component: "test"})
	ctx = WithLogFields(ctx, LogFields{Repository: "octocat/hello"})
	log.InfoContext(ctx, "hello")

	var rec map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &rec))
	assert.Equal(t, "req-1", rec["request_id"])
	assert.Equal(t, "octocat/hello", rec["repository"])
	assert.Equal(t, "test", rec["component"])
	assert.NotContains(t, rec, "trace_id")
}

func TestWithLogFields_KeepsExistingValues(t *testing.T) {
	ctx := WithLogFields(context.Background(), LogFields{RequestID: "a", Repository: "x/y"})
	ctx = WithLogFields(ctx, LogFields{RequestID: "b"})

	fields := GetLogFields(ctx)
	assert.Equal(t, "b", fields.RequestID)
	assert.Equal(t, "x/y", fields.Repository)
}

func TestSetup(t *testing.T) {
	prev := slog.Default()
	t.Cleanup(func() { slog.SetDefault(prev) })

	path := filepath.Join(t.TempDir(), "rg.log")
	closer, err := Setup(config.LogConfig{Level: "info", Format: "text", File: path}, false)
	require.NoError(t, err)
	require.NoError(t, closer.Close())

	_, err = Setup(config.LogConfig{Level: "loud"}, false)
	assert.Error(t, err)
}
