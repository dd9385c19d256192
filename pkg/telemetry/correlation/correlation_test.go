package correlation

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.opentelemetry.io/otel/trace"
)

func TestCaptureRestoreRoundTripsSpan(t *testing.T) {
	traceID, _ := trace.TraceIDFromHex("4bf92f3577b34da6a3ce929d0e0e4736")
	spanID, _ := trace.SpanIDFromHex("00f067aa0ba902b7")
	sc := trace.NewSpanContext(trace.SpanContextConfig{TraceID: traceID, SpanID: spanID, TraceFlags: trace.FlagsSampled})
	ctx := trace.ContextWithSpanContext(context.Background(), sc)
	ctx = ContextWithCorrelationID(ctx, "01HZX")

	carrier := Capture(ctx)
	assert.Equal(t, "01HZX", carrier.CorrelationID)

	restored := Restore(context.Background(), carrier)
	assert.Equal(t, "01HZX", ExtractCorrelationID(restored))
	got := trace.SpanContextFromContext(restored)
	assert.Equal(t, traceID, got.TraceID())
	assert.True(t, got.IsRemote())
}

func TestCaptureGeneratesCorrelationID(t *testing.T) {
	carrier := Capture(context.Background())
	assert.NotEmpty(t, carrier.CorrelationID)
	assert.Empty(t, carrier.TraceID)
}
