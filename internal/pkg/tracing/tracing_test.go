package tracing

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

func TestInit_Disabled(t *testing.T) {
	shutdown, err := Init(Options{ServiceName: "topology"})
	require.NoError(t, err)
	assert.NoError(t, shutdown(context.Background()))
}

func TestInit_UnknownProtocol(t *testing.T) {
	_, err := Init(Options{ServiceName: "topology", Endpoint: "localhost:4318", Protocol: "udp"})
	assert.Error(t, err)
}

func TestStartSpan_Noop(t *testing.T) {
	ctx, span := StartSpan(context.Background(), "view.select")
	defer span.End()
	assert.Empty(t, TraceIDFromContext(ctx))
}

func TestSampler(t *testing.T) {
	assert.Equal(t, sdktrace.AlwaysSample().Description(), sampler(1).Description())
	assert.Equal(t, sdktrace.NeverSample().Description(), sampler(0).Description())
	assert.Contains(t, sampler(0.5).Description(), "TraceIDRatioBased")
}
