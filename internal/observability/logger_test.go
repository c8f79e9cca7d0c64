package observability

import (
	"bytes"
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

func TestTracingHandler_ServiceAttrs(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer

	handler := NewTracingHandler(slog.NewTextHandler(&buf, nil), "branchweight", "ci")
	logger := slog.New(handler)

	logger.Info("hello")

	out := buf.String()
	assert.Contains(t, out, "service=branchweight")
	assert.Contains(t, out, "env=ci")
	assert.NotContains(t, out, "trace_id")
}

func TestTracingHandler_InjectsTraceContext(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer

	handler := NewTracingHandler(slog.NewTextHandler(&buf, nil), "branchweight", "")
	logger := slog.New(handler)

	tp := sdktrace.NewTracerProvider()

	t.Cleanup(func() {
		require.NoError(t, tp.Shutdown(context.Background()))
	})

	ctx, span := tp.Tracer("test").Start(context.Background(), "op")
	logger.InfoContext(ctx, "inside span")
	span.End()

	out := buf.String()
	assert.Contains(t, out, "trace_id="+span.SpanContext().TraceID().String())
	assert.Contains(t, out, "span_id="+span.SpanContext().SpanID().String())
}

func TestTracingHandler_WithGroupKeepsServiceTopLevel(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer

	handler := NewTracingHandler(slog.NewTextHandler(&buf, nil), "branchweight", "")
	logger := slog.New(handler).WithGroup("run")

	logger.Info("grouped", "branches", 3)

	out := buf.String()
	assert.Contains(t, out, "service=branchweight")
	assert.Contains(t, out, "run.branches=3")
}
