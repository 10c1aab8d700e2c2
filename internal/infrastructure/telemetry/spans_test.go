package telemetry_test

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.opentelemetry.io/otel/trace"

	"github.com/immoflow/backend/internal/infrastructure/telemetry"
)

// setupRecorder installs an in-memory tracer provider and restores the
// previous one on cleanup.
func setupRecorder(t *testing.T) *tracetest.SpanRecorder {
	t.Helper()

	sr := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(sr))

	prev := otel.GetTracerProvider()
	otel.SetTracerProvider(tp)
	t.Cleanup(func() {
		otel.SetTracerProvider(prev)
		_ = tp.Shutdown(context.Background())
	})

	return sr
}

func TestStartSpan(t *testing.T) {
	t.Run("records name and default kind", func(t *testing.T) {
		sr := setupRecorder(t)

		_, span := telemetry.StartSpan(context.Background(), "allocation.allocate")
		span.End()

		spans := sr.Ended()
		require.Len(t, spans, 1)
		assert.Equal(t, "allocation.allocate", spans[0].Name())
		assert.Equal(t, trace.SpanKindInternal, spans[0].SpanKind())
	})

	t.Run("carries start attributes", func(t *testing.T) {
		sr := setupRecorder(t)

		paymentID := uuid.New()
		_, span := telemetry.StartSpan(context.Background(), "allocation.reassign",
			telemetry.WithAttribute("payment_id", paymentID),
			telemetry.WithAttribute("retry_count", 2),
		)
		span.End()

		spans := sr.Ended()
		require.Len(t, spans, 1)
		assert.Contains(t, spans[0].Attributes(), attribute.String("payment_id", paymentID.String()))
		assert.Contains(t, spans[0].Attributes(), attribute.Int("retry_count", 2))
	})
}

func TestRecordError(t *testing.T) {
	sr := setupRecorder(t)

	_, span := telemetry.StartSpan(context.Background(), "settlement.distribute")
	telemetry.RecordError(span, errors.New("period 2026-03 is locked"))
	span.End()

	spans := sr.Ended()
	require.Len(t, spans, 1)
	assert.Equal(t, codes.Error, spans[0].Status().Code)
	assert.Equal(t, "period 2026-03 is locked", spans[0].Status().Description)
	require.Len(t, spans[0].Events(), 1)
}

func TestTraceID(t *testing.T) {
	setupRecorder(t)

	assert.Empty(t, telemetry.TraceID(context.Background()))

	ctx, span := telemetry.StartSpan(context.Background(), "payment.record")
	defer span.End()

	assert.Len(t, telemetry.TraceID(ctx), 32)
}
