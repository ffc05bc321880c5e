package otelinit

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInitDisabledReturnsNoopTracer(t *testing.T) {
	tracer, shutdown, err := Init(context.Background(), Config{Enabled: false}, nil)
	require.NoError(t, err)
	require.NotNil(t, tracer)

	ctx, span := tracer.Start(context.Background(), "op")
	assert.False(t, span.SpanContext().IsValid())
	span.End()

	assert.NoError(t, shutdown(ctx))
}

func TestInitEnabledBuildsRealProvider(t *testing.T) {
	tracer, shutdown, err := Init(context.Background(), Config{
		Enabled:  true,
		Endpoint: "127.0.0.1:4318",
		Insecure: true,
	}, nil)
	require.NoError(t, err)
	require.NotNil(t, tracer)

	_, span := tracer.Start(context.Background(), "op")
	span.End()

	require.NoError(t, shutdown(context.Background()))
}
