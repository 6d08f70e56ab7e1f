package app

import (
	"errors"
	"fmt"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/aussiebroadwan/affworld/internal/auth/federation"
	"github.com/aussiebroadwan/affworld/internal/auth/service"
	"github.com/aussiebroadwan/affworld/pkg/httpx"
	"github.com/aussiebroadwan/affworld/pkg/jwtx"
)

type Config struct {
	Issuer string // Issuer claim for tokens (default: affworld-auth)

	TokenFormat        string        // jwt or paseto (default: jwt)
	Algorithm          string        // JWT signing algorithm, HS256 or EdDSA (default: EdDSA)
	AccessTokenSecret  string        // HS256 only
	RefreshTokenSecret string        // HS256 only
	SigningKeyFile     string        // Optional: PKCS8 Ed25519 PEM; an ephemeral key is generated when empty
	AccessTokenTTL     time.Duration // default: 15m
	RefreshTokenTTL    time.Duration // default: 7d
	PepperFile         string        // Path to the password pepper (default: ./pepper)

	DatabaseDriver string // sqlite or postgres (default: sqlite)
	DatabaseFile   string // SQLite file (default: ./auth.db)
	DatabaseURL    string // Postgres URL

	ResetTokenTTL   time.Duration // default: 15m
	FrontendBaseURL string        // Reset links point at {FrontendBaseURL}/forgot-password/{secret}

	MailDriver      string // log or smtp (default: log)
	SMTPHost        string
	SMTPPort        int // default: 587
	SMTPUsername    string
	SMTPPassword    string
	MailFrom        string
	DeliveryTimeout time.Duration // default: 10s

	GoogleUserInfoURL string // Set to "off" to disable Google login

	CORSAllowedOrigins []string
	CookieSameSite     string // lax, strict or none (default: lax)
	TrustProxyHeaders  bool

	RevealUnknownAccounts          bool
	RevokeSessionsOnPasswordChange bool

	Env                  string        // Environment (dev, staging, prod) (default: dev)
	LogLevel             string        // Log level (debug, info, warn, error) (default: info)
	LogFormat            string        // Log format (json, text) (default: json)
	Port                 int           // HTTP server port (default: 8080)
	ShutdownGracePeriod  time.Duration // Graceful shutdown timeout (default: 10s)
	HousekeepingInterval time.Duration // Expired reset purge interval (default: 1h)

	StrictLimit   httpx.RateLimitConfig // RATELIMIT_STRICT_*
	ModerateLimit httpx.RateLimitConfig // RATELIMIT_MODERATE_*
}

func LoadConfig() Config {
	return Config{
		Issuer:             getEnvOrDefault("AUTH_ISSUER", "affworld-auth"),
		TokenFormat:        strings.ToLower(getEnvOrDefault("AUTH_TOKEN_FORMAT", "jwt")),
		Algorithm:          getEnvOrDefault("AUTH_ALGORITHM", "EdDSA"),
		AccessTokenSecret:  os.Getenv("ACCESS_TOKEN_SECRET"),
		RefreshTokenSecret: os.Getenv("REFRESH_TOKEN_SECRET"),
		SigningKeyFile:     os.Getenv("AUTH_SIGNING_KEY_FILE"),
		AccessTokenTTL:     getEnvDurationOrDefault("ACCESS_TOKEN_EXPIRY", jwtx.DefaultAccessTokenTTL),
		RefreshTokenTTL:    getEnvDurationOrDefault("REFRESH_TOKEN_EXPIRY", jwtx.DefaultRefreshTokenTTL),
		PepperFile:         getEnvOrDefault("AUTH_PEPPER_FILE", "pepper"),

		DatabaseDriver: strings.ToLower(getEnvOrDefault("AUTH_DATABASE_DRIVER", "sqlite")),
		DatabaseFile:   getEnvOrDefault("AUTH_DATABASE_FILE", "auth.db"),
		DatabaseURL:    os.Getenv("DATABASE_URL"),

		ResetTokenTTL:   getEnvDurationOrDefault("RESET_TOKEN_TTL", service.DefaultResetTTL),
		FrontendBaseURL: getEnvOrDefault("FRONTEND_BASE_URL", "http://localhost:3000"),

		MailDriver:      strings.ToLower(getEnvOrDefault("MAIL_DRIVER", "log")),
		SMTPHost:        os.Getenv("SMTP_HOST"),
		SMTPPort:        getEnvIntOrDefault("SMTP_PORT", 587),
		SMTPUsername:    os.Getenv("SMTP_USERNAME"),
		SMTPPassword:    os.Getenv("SMTP_PASSWORD"),
		MailFrom:        getEnvOrDefault("MAIL_FROM", "no-reply@localhost"),
		DeliveryTimeout: getEnvDurationOrDefault("DELIVERY_TIMEOUT", service.DefaultDeliveryTimeout),

		GoogleUserInfoURL: getEnvOrDefault("GOOGLE_USERINFO_URL", federation.DefaultGoogleUserInfoURL),

		CORSAllowedOrigins: splitList(os.Getenv("CORS_ALLOWED_ORIGINS")),
		CookieSameSite:     strings.ToLower(getEnvOrDefault("COOKIE_SAMESITE", "lax")),
		TrustProxyHeaders:  getEnvBoolOrDefault("TRUST_PROXY_HEADERS", false),

		RevealUnknownAccounts:          getEnvBoolOrDefault("REVEAL_UNKNOWN_ACCOUNTS", false),
		RevokeSessionsOnPasswordChange: getEnvBoolOrDefault("REVOKE_SESSIONS_ON_PASSWORD_CHANGE", false),

		Env:                  getEnvOrDefault("ENV", "dev"),
		LogLevel:             getEnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:            getEnvOrDefault("LOG_FORMAT", "json"),
		Port:                 getEnvIntOrDefault("PORT", 8080),
		ShutdownGracePeriod:  getEnvDurationOrDefault("SHUTDOWN_GRACE_PERIOD", 10*time.Second),
		HousekeepingInterval: getEnvDurationOrDefault("HOUSEKEEPING_INTERVAL", 1*time.Hour),

		StrictLimit:   httpx.ParseRateLimitFromEnv("STRICT", httpx.StrictLimit),
		ModerateLimit: httpx.ParseRateLimitFromEnv("MODERATE", httpx.ModerateLimit),
	}
}

// Validate reports every configuration problem at once.
func (c Config) Validate() error {
	var errs []error

	switch c.TokenFormat {
	case "jwt":
		switch c.Algorithm {
		case "HS256":
			if c.AccessTokenSecret == "" || c.RefreshTokenSecret == "" {
				errs = append(errs, errors.New("HS256 needs ACCESS_TOKEN_SECRET and REFRESH_TOKEN_SECRET"))
			} else if c.AccessTokenSecret == c.RefreshTokenSecret {
				errs = append(errs, errors.New("ACCESS_TOKEN_SECRET and REFRESH_TOKEN_SECRET must differ"))
			}
		case "EdDSA":
		default:
			errs = append(errs, fmt.Errorf("unsupported AUTH_ALGORITHM %q (HS256, EdDSA)", c.Algorithm))
		}
	case "paseto":
	default:
		errs = append(errs, fmt.Errorf("unsupported AUTH_TOKEN_FORMAT %q (jwt, paseto)", c.TokenFormat))
	}

	if c.AccessTokenTTL <= 0 || c.RefreshTokenTTL <= 0 {
		errs = append(errs, errors.New("token lifetimes must be positive"))
	}

	switch c.DatabaseDriver {
	case "sqlite":
	case "postgres":
		if c.DatabaseURL == "" {
			errs = append(errs, errors.New("postgres driver needs DATABASE_URL"))
		}
	default:
		errs = append(errs, fmt.Errorf("unsupported AUTH_DATABASE_DRIVER %q (sqlite, postgres)", c.DatabaseDriver))
	}

	switch c.MailDriver {
	case "log":
		if c.Env == "prod" {
			errs = append(errs, errors.New("MAIL_DRIVER=log writes reset links to the log and is not allowed when ENV=prod"))
		}
	case "smtp":
		if c.SMTPHost == "" {
			errs = append(errs, errors.New("smtp mail driver needs SMTP_HOST"))
		}
	default:
		errs = append(errs, fmt.Errorf("unsupported MAIL_DRIVER %q (log, smtp)", c.MailDriver))
	}

	if _, err := c.SameSite(); err != nil {
		errs = append(errs, err)
	}
	if c.FrontendBaseURL == "" {
		errs = append(errs, errors.New("FRONTEND_BASE_URL is required"))
	}

	return errors.Join(errs...)
}

// SameSite maps CookieSameSite to its http constant.
func (c Config) SameSite() (http.SameSite, error) {
	switch c.CookieSameSite {
	case "", "lax":
		return http.SameSiteLaxMode, nil
	case "strict":
		return http.SameSiteStrictMode, nil
	case "none":
		return http.SameSiteNoneMode, nil
	}
	return 0, fmt.Errorf("unsupported COOKIE_SAMESITE %q (lax, strict, none)", c.CookieSameSite)
}

// GoogleEnabled reports whether Google login is routed.
func (c Config) GoogleEnabled() bool {
	return c.GoogleUserInfoURL != "" && c.GoogleUserInfoURL != "off"
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvIntOrDefault(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	if intValue, err := strconv.Atoi(value); err == nil {
		return intValue
	}

	return defaultValue
}

func getEnvBoolOrDefault(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	if b, err := strconv.ParseBool(value); err == nil {
		return b
	}
	return defaultValue
}

func getEnvDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	// Try parsing as duration (e.g., "1h", "30m", "90s")
	if duration, err := time.ParseDuration(value); err == nil {
		return duration
	}

	// Day counts such as "7d", as jsonwebtoken-style configs use
	if days, ok := strings.CutSuffix(value, "d"); ok {
		if n, err := strconv.Atoi(days); err == nil {
			return time.Duration(n) * 24 * time.Hour
		}
	}

	// Plain integers are minutes
	if minutes, err := strconv.Atoi(value); err == nil {
		return time.Duration(minutes) * time.Minute
	}

	return defaultValue
}

func splitList(value string) []string {
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
