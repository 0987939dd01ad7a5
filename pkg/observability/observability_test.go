package observability

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
)

func TestNew_DisabledIsNoOp(t *testing.T) {
	ctx := context.Background()
	p, err := New(ctx, &Config{Enabled: false})
	require.NoError(t, err)
	require.NotNil(t, p)

	// Every helper must be callable on a disabled provider.
	_, done := p.TrackVerification(ctx, attribute.String("mode", "single"))
	done(nil)
	_, done = p.TrackVerification(ctx)
	done(errors.New("boom"))

	assert.NotNil(t, p.Tracer())
	assert.NoError(t, p.Shutdown(ctx))
}

func TestNew_NilConfigUsesDefaults(t *testing.T) {
	p, err := New(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, "verdict-core", p.config.ServiceName)
	assert.False(t, p.config.Enabled)
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	assert.Equal(t, 1.0, cfg.SampleRate)
	assert.False(t, cfg.Enabled)
	assert.True(t, cfg.Insecure)
}
