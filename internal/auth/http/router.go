package http

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/cors"
	httpSwagger "github.com/swaggo/http-swagger"

	_ "github.com/aussiebroadwan/affworld/api/auth" // Swagger docs
	"github.com/aussiebroadwan/affworld/internal/auth/federation"
	"github.com/aussiebroadwan/affworld/internal/auth/metrics"
	"github.com/aussiebroadwan/affworld/internal/auth/service"
	"github.com/aussiebroadwan/affworld/internal/auth/store"
	"github.com/aussiebroadwan/affworld/internal/auth/tokens"
	"github.com/aussiebroadwan/affworld/pkg/httpx"
	"github.com/aussiebroadwan/affworld/pkg/idx"
	"github.com/aussiebroadwan/affworld/pkg/slogx"
)

// IdentityVerifier turns a provider token into a verified identity.
type IdentityVerifier interface {
	Verify(ctx context.Context, accessToken string) (federation.Identity, error)
}

// Options tunes the boundary layer.
type Options struct {
	// AllowedOrigins enables CORS with credentials for these origins. Empty
	// disables CORS handling.
	AllowedOrigins []string

	// CookieSameSite applies to both session cookies. Zero means Lax.
	CookieSameSite http.SameSite

	// TrustProxyHeaders keys per-IP rate limits on X-Forwarded-For.
	TrustProxyHeaders bool

	StrictLimit   httpx.RateLimitConfig
	ModerateLimit httpx.RateLimitConfig
}

// Router holds shared dependencies for HTTP handlers.
type Router struct {
	Mux         *http.ServeMux
	middlewares []httpx.Middleware
	handler     http.Handler

	codec        tokens.Codec
	store        store.Store
	metrics      *metrics.Metrics
	opts         Options
	buildVersion string
	startTime    time.Time
	logger       *slog.Logger

	Sessions *service.SessionService
	Google   IdentityVerifier // Optional: Google login is not routed when nil
}

func NewRouter(
	codec tokens.Codec,
	st store.Store,
	m *metrics.Metrics,
	buildVersion string,
	logger *slog.Logger,
	opts Options,
) *Router {
	if opts.CookieSameSite == 0 {
		opts.CookieSameSite = http.SameSiteLaxMode
	}
	if opts.StrictLimit.RequestsPerWindow <= 0 {
		opts.StrictLimit = httpx.StrictLimit
	}
	if opts.ModerateLimit.RequestsPerWindow <= 0 {
		opts.ModerateLimit = httpx.ModerateLimit
	}

	r := &Router{
		Mux:          http.NewServeMux(),
		codec:        codec,
		store:        st,
		metrics:      m,
		opts:         opts,
		buildVersion: buildVersion,
		startTime:    time.Now(),
		logger:       logger,
	}

	r.middlewares = []httpx.Middleware{
		slogx.HTTPMiddleware(r.logger),
	}
	if len(opts.AllowedOrigins) > 0 {
		r.middlewares = append(r.middlewares, cors.Handler(cors.Options{
			AllowedOrigins:   opts.AllowedOrigins,
			AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodOptions},
			AllowedHeaders:   []string{"Authorization", "Content-Type", slogx.RequestIDHeader},
			ExposedHeaders:   []string{slogx.RequestIDHeader, "Retry-After"},
			AllowCredentials: true,
			MaxAge:           300,
		}))
	}

	return r
}

// ApplyRoutes registers every route. Sessions must be set first.
func (r *Router) ApplyRoutes() {
	r.registerUsers()
	r.registerSystem()

	r.Mux.Handle("/swagger/", httpSwagger.Handler())

	// Instrument wraps the mux itself so it sees the matched pattern.
	r.handler = httpx.Chain(r.metrics.Instrument(r.Mux), r.middlewares...)
}

// ServeHTTP implements http.Handler for Router and applies the global middleware chain.
//
//	@title			Affworld Account Service API
//	@version		0.1.0
//	@description	Account registration, password and Google login, refresh token rotation and password reset.
//	@description
//	@description				Sessions are returned in the response body and as the HttpOnly cookies accessToken and refreshToken.
//
//	@contact.name				AussieBroadWAN Team
//	@contact.url				https://github.com/aussiebroadwan/affworld
//
//	@license.name				MIT
//	@license.url				https://opensource.org/licenses/MIT
//
//	@host						localhost:8080
//	@BasePath					/
//
//	@schemes					http https
//
//	@securityDefinitions.apikey	BearerAuth
//	@in							header
//	@name						Authorization
//	@description				Access token. Format: "Bearer {token}".
func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	r.handler.ServeHTTP(w, req)
}

func (r *Router) registerUsers() {
	h := &UsersHandler{
		Sessions:       r.Sessions,
		Google:         r.Google,
		CookieSameSite: r.opts.CookieSameSite,
	}

	ipKeys := httpx.IPKeyExtractor
	if r.opts.TrustProxyHeaders {
		ipKeys = httpx.ForwardedIPKeyExtractor
	}

	// Credential and reset endpoints share the strict per-IP budget shape,
	// each with its own buckets.
	strict := func(fn http.HandlerFunc) http.Handler {
		return httpx.Chain(fn, httpx.RateLimitByIP(r.opts.StrictLimit, ipKeys))
	}
	secured := func(fn http.HandlerFunc) http.Handler {
		return httpx.Chain(fn,
			httpx.AuthnMiddleware(httpx.AccessVerifierFunc(r.verifyAccess), CookieAccessToken),
			httpx.RateLimitByAccount(r.opts.ModerateLimit, ipKeys),
		)
	}

	r.Mux.Handle("POST /api/v1/users/register", strict(h.HandleRegister))
	r.Mux.Handle("POST /api/v1/users/login", strict(h.HandleLogin))
	if r.Google != nil {
		r.Mux.Handle("POST /api/v1/users/google", strict(h.HandleGoogleLogin))
	}
	r.Mux.Handle("POST /api/v1/users/forgot-password", strict(h.HandleForgotPassword))
	r.Mux.Handle("POST /api/v1/users/reset-password/{token}", strict(h.HandleResetPassword))

	r.Mux.Handle("POST /api/v1/users/refresh-token",
		httpx.Chain(http.HandlerFunc(h.HandleRefresh),
			httpx.RateLimitByIP(r.opts.ModerateLimit, ipKeys),
		),
	)

	r.Mux.Handle("POST /api/v1/users/logout", secured(h.HandleLogout))
	r.Mux.Handle("POST /api/v1/users/change-password", secured(h.HandleChangePassword))
	r.Mux.Handle("GET /api/v1/users/current-user", secured(h.HandleCurrentUser))
}

func (r *Router) registerSystem() {
	r.Mux.Handle("GET /livez", LivezHandler(r.startTime, r.buildVersion))
	r.Mux.Handle("GET /readyz", ReadyzHandler(r.startTime, r.buildVersion, r.store))
	if r.metrics != nil {
		r.Mux.Handle("GET /metrics", r.metrics.Handler())
	}
}

// verifyAccess accepts only access tokens whose subject is an account ID.
func (r *Router) verifyAccess(raw string) (string, error) {
	now := time.Now()
	if r.Sessions != nil && r.Sessions.Now != nil {
		now = r.Sessions.Now()
	}

	claims, err := r.codec.Verify(raw, tokens.Access, now)
	if err != nil {
		return "", err
	}
	id, err := idx.Parse(claims.Subject)
	if err != nil {
		return "", fmt.Errorf("token subject: %w", err)
	}
	return id.String(), nil
}
