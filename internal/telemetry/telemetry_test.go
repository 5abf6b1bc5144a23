package telemetry

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/codes"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.False(t, cfg.Enabled)
	assert.Equal(t, "rrdpworker", cfg.ServiceName)
	assert.Equal(t, "dev", cfg.ServiceVersion)
	assert.Equal(t, "localhost:4317", cfg.Endpoint)
	assert.True(t, cfg.Insecure)
	assert.Equal(t, 1.0, cfg.SampleRate)
}

func TestInitDisabled(t *testing.T) {
	ctx := context.Background()
	cfg := DefaultConfig()
	cfg.Enabled = false

	shutdown, err := Init(ctx, cfg)
	require.NoError(t, err)
	require.NotNil(t, shutdown)

	err = shutdown(ctx)
	assert.NoError(t, err)

	assert.False(t, IsEnabled())
}

func TestTracerReturnsNoOp(t *testing.T) {
	tracer = nil
	enabled = false

	tr := Tracer()
	require.NotNil(t, tr)
}

func TestStartSpan(t *testing.T) {
	ctx := context.Background()

	newCtx, span := StartSpan(ctx, "test.operation")
	require.NotNil(t, newCtx)
	require.NotNil(t, span)
	span.End()
}

func TestSpanFromContext(t *testing.T) {
	ctx := context.Background()

	span := SpanFromContext(ctx)
	require.NotNil(t, span)
}

func TestAddEvent(t *testing.T) {
	ctx := context.Background()

	require.NotPanics(t, func() {
		AddEvent(ctx, "test.event")
	})
}

func TestRecordError(t *testing.T) {
	ctx := context.Background()

	require.NotPanics(t, func() {
		RecordError(ctx, nil)
	})

	require.NotPanics(t, func() {
		RecordError(ctx, errors.New("test error"))
	})
}

func TestSetStatus(t *testing.T) {
	ctx := context.Background()

	require.NotPanics(t, func() {
		SetStatus(ctx, codes.Ok, "success")
	})

	require.NotPanics(t, func() {
		SetStatus(ctx, codes.Error, "failed")
	})
}

func TestSetAttributes(t *testing.T) {
	ctx := context.Background()

	require.NotPanics(t, func() {
		SetAttributes(ctx, SessionID(7))
	})
}

func TestTraceID(t *testing.T) {
	ctx := context.Background()

	traceID := TraceID(ctx)
	assert.Equal(t, "", traceID)
}

func TestSpanID(t *testing.T) {
	ctx := context.Background()

	spanID := SpanID(ctx)
	assert.Equal(t, "", spanID)
}

func TestAttributeHelpers(t *testing.T) {
	t.Run("SessionID", func(t *testing.T) {
		attr := SessionID(42)
		assert.Equal(t, AttrSessionID, string(attr.Key))
		assert.Equal(t, int64(42), attr.Value.AsInt64())
	})

	t.Run("LocalLabel", func(t *testing.T) {
		attr := LocalLabel("repo-1")
		assert.Equal(t, AttrLocalLabel, string(attr.Key))
		assert.Equal(t, "repo-1", attr.Value.AsString())
	})

	t.Run("Task", func(t *testing.T) {
		attr := Task("delta")
		assert.Equal(t, AttrTask, string(attr.Key))
		assert.Equal(t, "delta", attr.Value.AsString())
	})

	t.Run("NotifyURI", func(t *testing.T) {
		attr := NotifyURI("https://example/notification.xml")
		assert.Equal(t, AttrNotifyURI, string(attr.Key))
		assert.Equal(t, "https://example/notification.xml", attr.Value.AsString())
	})

	t.Run("DocURI", func(t *testing.T) {
		attr := DocURI("https://example/delta.xml")
		assert.Equal(t, AttrDocURI, string(attr.Key))
		assert.Equal(t, "https://example/delta.xml", attr.Value.AsString())
	})

	t.Run("RepoSerial", func(t *testing.T) {
		attr := RepoSerial(5)
		assert.Equal(t, AttrRepoSerial, string(attr.Key))
		assert.Equal(t, int64(5), attr.Value.AsInt64())
	})

	t.Run("AdvertisedSerial", func(t *testing.T) {
		attr := AdvertisedSerial(7)
		assert.Equal(t, AttrAdvSerial, string(attr.Key))
		assert.Equal(t, int64(7), attr.Value.AsInt64())
	})

	t.Run("SessionUUID", func(t *testing.T) {
		attr := SessionUUID("A")
		assert.Equal(t, AttrSessionUUID, string(attr.Key))
		assert.Equal(t, "A", attr.Value.AsString())
	})

	t.Run("Decision", func(t *testing.T) {
		attr := Decision("snapshot")
		assert.Equal(t, AttrDecision, string(attr.Key))
		assert.Equal(t, "snapshot", attr.Value.AsString())
	})

	t.Run("HTTPStatus", func(t *testing.T) {
		attr := HTTPStatus(304)
		assert.Equal(t, AttrHTTPStatus, string(attr.Key))
		assert.Equal(t, int64(304), attr.Value.AsInt64())
	})

	t.Run("BytesRead", func(t *testing.T) {
		attr := BytesRead(1048576)
		assert.Equal(t, AttrBytesRead, string(attr.Key))
		assert.Equal(t, int64(1048576), attr.Value.AsInt64())
	})

	t.Run("FileCount", func(t *testing.T) {
		attr := FileCount(12)
		assert.Equal(t, AttrFileCount, string(attr.Key))
		assert.Equal(t, int64(12), attr.Value.AsInt64())
	})

	t.Run("HashMatch", func(t *testing.T) {
		attr := HashMatch(true)
		assert.Equal(t, AttrHashMatch, string(attr.Key))
		assert.True(t, attr.Value.AsBool())
	})

	t.Run("OK", func(t *testing.T) {
		attr := OK(false)
		assert.Equal(t, AttrOK, string(attr.Key))
		assert.False(t, attr.Value.AsBool())
	})
}

func TestStartSessionSpan(t *testing.T) {
	ctx := context.Background()

	newCtx, span := StartSessionSpan(ctx, 1, "repo-1", "https://example/notification.xml")
	require.NotNil(t, newCtx)
	require.NotNil(t, span)
	span.End()
}

func TestStartDocumentSpan(t *testing.T) {
	ctx := context.Background()

	newCtx, span := StartDocumentSpan(ctx, SpanFetchDocument, 1, "delta", "https://example/delta.xml")
	require.NotNil(t, newCtx)
	require.NotNil(t, span)
	span.End()
}
