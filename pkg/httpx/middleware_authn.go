package httpx

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/aussiebroadwan/affworld/pkg/slogx"
)

// AccessVerifier checks an access token and returns the account it was
// issued to.
type AccessVerifier interface {
	VerifyAccess(raw string) (accountID string, err error)
}

// AccessVerifierFunc adapts a function to AccessVerifier.
type AccessVerifierFunc func(raw string) (string, error)

func (f AccessVerifierFunc) VerifyAccess(raw string) (string, error) { return f(raw) }

// AuthnMiddleware requires a valid access token, taken from the
// Authorization header or, failing that, from the named cookie.
func AuthnMiddleware(v AccessVerifier, cookieName string) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			log := slogx.FromContext(ctx)

			raw := bearerToken(r)
			if raw == "" && cookieName != "" {
				if c, err := r.Cookie(cookieName); err == nil {
					raw = strings.TrimSpace(c.Value)
				}
			}
			if raw == "" {
				writeBearerError(w, "missing access token")
				return
			}

			accountID, err := v.VerifyAccess(raw)
			if err != nil {
				log.Info("access token rejected", slog.String("reason", err.Error()))
				writeBearerError(w, "access token invalid or expired")
				return
			}

			ctx = WithAccountID(ctx, accountID)
			ctx = slogx.WithContext(ctx, log.With(slog.String("account_id", accountID)))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func bearerToken(r *http.Request) string {
	scheme, token, ok := strings.Cut(r.Header.Get("Authorization"), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}

// RFC 6750 error response for bearer auth.
func writeBearerError(w http.ResponseWriter, desc string) {
	w.Header().Set("WWW-Authenticate", `Bearer error="invalid_token", error_description="`+desc+`"`)
	WriteJSON(w, http.StatusUnauthorized, map[string]string{
		"error":             "invalid_token",
		"error_description": desc,
	})
}
