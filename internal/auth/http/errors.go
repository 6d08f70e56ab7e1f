package http

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/aussiebroadwan/affworld/internal/auth/service"
	"github.com/aussiebroadwan/affworld/pkg/authsdk"
	"github.com/aussiebroadwan/affworld/pkg/slogx"
)

var serviceErrors = []struct {
	target error
	api    *authsdk.APIError
}{
	{service.ErrValidation, authsdk.ErrInvalidRequest},
	{service.ErrConflict, authsdk.ErrConflict},
	{service.ErrAccountNotFound, authsdk.ErrNotFound},
	{service.ErrInvalidCredentials, authsdk.ErrInvalidCredentials},
	{service.ErrUnauthorized, authsdk.ErrInvalidToken},
	{service.ErrInvalidOrExpiredToken, authsdk.ErrInvalidGrant},
	{service.ErrDeliveryFailure, authsdk.ErrDeliveryFailed},
}

// writeServiceError renders a session service error. Taxonomy errors carry
// their message as the description; anything else is logged and hidden
// behind a generic server_error.
func writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	for _, m := range serviceErrors {
		if errors.Is(err, m.target) {
			m.api.WithDescription(err.Error()).WriteError(w)
			return
		}
	}

	slogx.FromContext(r.Context()).Error("request failed", slog.Any("err", err))
	authsdk.ErrServerError.WriteError(w)
}
