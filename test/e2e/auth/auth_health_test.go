package auth_test

import (
	"net/http"
	"testing"

	"github.com/aussiebroadwan/affworld/pkg/authsdk"
	"github.com/stretchr/testify/require"
)

func TestHealthEndpoints(t *testing.T) {
	c := setupAuthContainer(t)
	client := authsdk.NewSDKClient(c.BaseURL)
	ctx := t.Context()

	t.Run("Liveness", func(t *testing.T) {
		health, err := client.GetLiveness(ctx)
		assertHealthy(t, health, err)
		require.NotEmpty(t, health.Version)
		require.NotEmpty(t, health.Uptime)
	})

	t.Run("Readiness", func(t *testing.T) {
		health, err := client.GetReadiness(ctx)
		assertHealthy(t, health, err)
		require.Equal(t, "ok", health.Checks["database"])
	})

	t.Run("Metrics", func(t *testing.T) {
		resp, err := http.Get(c.BaseURL + "/metrics")
		require.NoError(t, err)
		defer resp.Body.Close()
		require.Equal(t, http.StatusOK, resp.StatusCode)
	})
}
