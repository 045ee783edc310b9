package obs

import (
	"context"
	"testing"

	"stay-booking/pkg/utils"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInitTracer_Disabled(t *testing.T) {
	shutdown, err := InitTracer(context.Background(), utils.AppConfig{Name: "stay-booking"}, utils.TracingConfig{})
	require.NoError(t, err)
	assert.NoError(t, shutdown(context.Background()))
}

func TestInitTracer_Enabled(t *testing.T) {
	// the exporter connects lazily, so no collector is needed
	shutdown, err := InitTracer(context.Background(),
		utils.AppConfig{Name: "stay-booking", Env: "test"},
		utils.TracingConfig{Enabled: true, Endpoint: "localhost:4317"},
	)
	require.NoError(t, err)
	require.NotNil(t, shutdown)
}
