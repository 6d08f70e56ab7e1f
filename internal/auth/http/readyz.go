package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/aussiebroadwan/affworld/internal/auth/store"
	"github.com/aussiebroadwan/affworld/pkg/authsdk"
	"github.com/aussiebroadwan/affworld/pkg/httpx"
	"github.com/aussiebroadwan/affworld/pkg/slogx"
)

// ReadyzHandler godoc
//
//	@Summary		Readiness Check Endpoint
//	@Description	Readiness probe that pings the account store.
//	@Tags			Health
//	@Produce		json
//	@Success		200	{object}	authsdk.HealthResponse	"status, uptime, version, checks"
//	@Failure		503	{object}	authsdk.HealthResponse	"status, uptime, version, checks - service not ready"
//	@Router			/readyz [get].
func ReadyzHandler(startTime time.Time, version string, st store.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		checks := map[string]string{"database": "ok"}
		status := "ok"
		code := http.StatusOK

		if err := st.Ping(r.Context()); err != nil {
			// The driver error can include the DSN, so only the log gets it.
			slogx.FromContext(r.Context()).Error("readiness: store ping failed", slog.Any("err", err))
			checks["database"] = "unreachable"
			status = "degraded"
			code = http.StatusServiceUnavailable
		}

		httpx.WriteJSON(w, code, authsdk.HealthResponse{
			Status:  status,
			Uptime:  time.Since(startTime).Round(time.Second).String(),
			Version: version,
			Checks:  checks,
		})
	}
}
