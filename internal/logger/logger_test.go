package logger

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/trace"
)

func TestInitWritesJSONFile(t *testing.T) {
	t.Cleanup(func() { globalLogger = nil })
	path := filepath.Join(t.TempDir(), "app.log")

	require.NoError(t, Init(Options{Level: "WARN", Format: "json", OutputPath: path, Service: "waide-pipeline", Version: "v1.2.0"}))
	Info("不会输出")
	Warn("作业超时")
	require.NoError(t, Sync())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	out := string(data)
	assert.NotContains(t, out, "不会输出")
	assert.Contains(t, out, "作业超时")
	assert.Contains(t, out, `"level":"warn"`)
	assert.Contains(t, out, `"service":"waide-pipeline"`)
	assert.Contains(t, out, `"version":"v1.2.0"`)
}

func TestNewInvalidLevelFallsBackToInfo(t *testing.T) {
	path := filepath.Join(t.TempDir(), "app.log")
	l, err := New(Options{Level: "verbose", Format: "json", OutputPath: path})
	require.NoError(t, err)

	l.Debug("调试")
	l.Info("信息")
	require.NoError(t, l.Sync())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.NotContains(t, string(data), "调试")
	assert.Contains(t, string(data), "信息")
}

func TestInitBadPath(t *testing.T) {
	t.Cleanup(func() { globalLogger = nil })
	assert.Error(t, Init(Options{Level: "info", Format: "json", OutputPath: filepath.Join(t.TempDir(), "missing", "app.log")}))
	assert.Nil(t, globalLogger)
}

func TestGetWithoutInit(t *testing.T) {
	globalLogger = nil
	assert.NotNil(t, Get())
	assert.NotNil(t, Named("worker"))
	assert.NoError(t, Sync())
}

func TestRequestIDAndTrace(t *testing.T) {
	ctx := WithRequestID(context.Background(), "req-1")
	assert.Equal(t, "req-1", RequestID(ctx))
	assert.Empty(t, RequestID(context.Background()))

	sc := trace.NewSpanContext(trace.SpanContextConfig{
		TraceID: trace.TraceID{1, 2, 3},
		SpanID:  trace.SpanID{4},
	})
	assert.NotNil(t, WithContext(trace.ContextWithSpanContext(ctx, sc)))
	assert.NotNil(t, WithContext(context.Background()))
}
