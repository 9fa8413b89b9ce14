package util

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	semconv "go.opentelemetry.io/otel/semconv/v1.17.0"
	"go.uber.org/zap"
)

func useTracer(t *testing.T, tp *sdktrace.TracerProvider) {
	t.Helper()
	prev := tracer
	tracer = tp.Tracer("test")
	t.Cleanup(func() { tracer = prev })
}

func TestRecordErrorMarksSpan(t *testing.T) {
	rec := tracetest.NewSpanRecorder()
	useTracer(t, newTracerProvider("ingest-test", "test", 0, sdktrace.WithSpanProcessor(rec)))

	_, span := StartSpan(context.Background(), "Ingest.Run")
	RecordError(span, nil)
	RecordError(span, errors.New("feed unreadable"))
	span.End()

	ended := rec.Ended()
	require.Len(t, ended, 1)
	assert.Equal(t, "Ingest.Run", ended[0].Name())
	assert.Equal(t, codes.Error, ended[0].Status().Code)
	assert.Equal(t, "feed unreadable", ended[0].Status().Description)
	assert.Len(t, ended[0].Events(), 1)
	assert.Contains(t, ended[0].Resource().Attributes(), semconv.ServiceName("ingest-test"))
	assert.Contains(t, ended[0].Resource().Attributes(), semconv.DeploymentEnvironmentKey.String("test"))
}

func TestSampleRatioZeroKeepsEveryTrace(t *testing.T) {
	rec := tracetest.NewSpanRecorder()
	useTracer(t, newTracerProvider("svc", "", 0, sdktrace.WithSpanProcessor(rec)))

	_, span := StartSpan(context.Background(), "op")
	assert.True(t, span.SpanContext().IsSampled())
	span.End()
}

func TestServiceOrDefault(t *testing.T) {
	assert.Equal(t, DefaultServiceName, serviceOrDefault(""))
	assert.Equal(t, "registration-ingest", serviceOrDefault("registration-ingest"))
}

func TestInitLoggerLevel(t *testing.T) {
	prev := logger
	t.Cleanup(func() {
		logger = prev
		zap.ReplaceGlobals(GetLogger())
	})

	require.NoError(t, InitLogger(LogConfig{Env: "production", Level: "warn", Command: "ingest"}))
	assert.False(t, GetLogger().Core().Enabled(zap.InfoLevel))
	assert.True(t, GetLogger().Core().Enabled(zap.WarnLevel))

	assert.Error(t, InitLogger(LogConfig{Level: "loud"}))
}
