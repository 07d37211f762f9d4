package telemetry_test

import (
	"context"
	"testing"

	"github.com/exora/cart-session/internal/config"
	"github.com/exora/cart-session/internal/telemetry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInitTracer(t *testing.T) {
	ctx := context.Background()

	t.Run("Disabled", func(t *testing.T) {
		shutdown, err := telemetry.InitTracer(ctx, config.OTel{Enabled: false})

		require.NoError(t, err)
		assert.NoError(t, shutdown(ctx))
	})

	t.Run("Enabled", func(t *testing.T) {
		// the exporter connects lazily, so no collector is needed here
		shutdown, err := telemetry.InitTracer(ctx, config.OTel{
			Enabled:          true,
			ServiceName:      "exora-cart-test",
			ExporterEndpoint: "http://127.0.0.1:4318/v1/traces",
			SamplerRatio:     1,
		})

		require.NoError(t, err)
		require.NotNil(t, shutdown)

		// nothing was recorded, so shutdown has nothing to flush
		assert.NoError(t, shutdown(ctx))
	})
}
