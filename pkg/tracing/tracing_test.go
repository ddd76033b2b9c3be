package tracing

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	tracesdk "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func installRecorder(t *testing.T) *tracetest.SpanRecorder {
	t.Helper()
	recorder := tracetest.NewSpanRecorder()
	tp := tracesdk.NewTracerProvider(tracesdk.WithSpanProcessor(recorder))
	prev := otel.GetTracerProvider()
	otel.SetTracerProvider(tp)
	t.Cleanup(func() {
		otel.SetTracerProvider(prev)
		tp.Shutdown(context.Background())
	})
	return recorder
}

func TestInit_Disabled(t *testing.T) {
	tp, err := Init(DefaultConfig())
	require.NoError(t, err)
	assert.NoError(t, tp.Shutdown(context.Background()))
}

func TestTraceTransition_Attributes(t *testing.T) {
	recorder := installRecorder(t)

	ctx, span := TraceTransition(context.Background(), "pay", "signer-1", 4)
	AddSpanAttributes(ctx, AmountKey.Int64(100))
	RecordError(ctx, errors.New("boom"))
	span.End()

	spans := recorder.Ended()
	require.Len(t, spans, 1)
	got := spans[0]
	assert.Equal(t, "escrow.pay", got.Name())
	assert.Equal(t, codes.Error, got.Status().Code)
	assert.Contains(t, got.Attributes(), TransitionKey.String("pay"))
	assert.Contains(t, got.Attributes(), SignerKey.String("signer-1"))
	assert.Contains(t, got.Attributes(), AccountsKey.Int(4))
	assert.Contains(t, got.Attributes(), AmountKey.Int64(100))
}

func TestTraceHTTPRequest(t *testing.T) {
	recorder := installRecorder(t)

	_, span := TraceHTTPRequest(context.Background(), "POST", "/api/v1/streams/pay")
	span.End()

	spans := recorder.Ended()
	require.Len(t, spans, 1)
	assert.Equal(t, "http.POST /api/v1/streams/pay", spans[0].Name())
	assert.Contains(t, spans[0].Attributes(), attribute.String("http.route", "/api/v1/streams/pay"))
}

func TestHelpers_NoopWithoutRecordingSpan(t *testing.T) {
	ctx := context.Background()
	AddSpanAttributes(ctx, ValueKey.Int64(1))
	RecordError(ctx, errors.New("ignored"))
}
