package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aussiebroadwan/affworld/internal/auth/federation"
	httpapi "github.com/aussiebroadwan/affworld/internal/auth/http"
	"github.com/aussiebroadwan/affworld/internal/auth/mail"
	"github.com/aussiebroadwan/affworld/internal/auth/metrics"
	"github.com/aussiebroadwan/affworld/internal/auth/service"
	"github.com/aussiebroadwan/affworld/internal/auth/store"
	"github.com/aussiebroadwan/affworld/internal/auth/store/drivers/postgres"
	"github.com/aussiebroadwan/affworld/internal/auth/store/drivers/sqlite"
	"github.com/aussiebroadwan/affworld/internal/auth/tokens"
	"github.com/aussiebroadwan/affworld/pkg/cryptox"
	"github.com/aussiebroadwan/affworld/pkg/slogx"
)

const (
	// BuildVersion should be set at build time via ldflags. Later problem
	BuildVersion = "v0.1.0"
)

// migrator is implemented by both store drivers.
type migrator interface {
	store.Store
	ApplyMigrations() error
}

// Application encapsulates the auth service application with all its dependencies
type Application struct {
	cfg    Config
	logger *slog.Logger

	// Core dependencies
	db      store.Store
	codec   tokens.Codec
	hasher  *cryptox.Hasher
	mailer  mail.Sender
	metrics *metrics.Metrics

	// Services
	sessionService      *service.SessionService
	housekeepingService *service.HousekeepingService

	// HTTP server
	server *http.Server
	router *httpapi.Router
}

// New creates a new Application instance with all dependencies initialized
func New(cfg Config) (*Application, error) {
	app := &Application{
		cfg: cfg,
		logger: slogx.New(slogx.Config{
			Service: "auth-service",
			Version: BuildVersion,
			Env:     cfg.Env,
			Level:   cfg.LogLevel,
			Format:  cfg.LogFormat,
		}),
		metrics: metrics.New(),
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	pepper, err := cryptox.LoadOrCreatePepper(cfg.PepperFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load pepper: %w", err)
	}
	app.hasher = cryptox.NewHasher(pepper, cryptox.DefaultArgon2Params)

	if err := app.initDatabase(); err != nil {
		return nil, err
	}

	codec, err := InitTokenCodec(cfg, app.logger)
	if err != nil {
		_ = app.db.Close()
		return nil, fmt.Errorf("failed to initialize token codec: %w", err)
	}
	app.codec = codec

	app.initMailer()
	app.initServices()
	if err := app.initHTTP(); err != nil {
		_ = app.db.Close()
		return nil, err
	}

	return app, nil
}

// Run starts the application and blocks until shutdown is requested
func (app *Application) Run() error {
	app.housekeepingService.Start()

	app.logger.Info("auth service starting", "port", app.cfg.Port, "version", BuildVersion)

	serverErrors := make(chan error, 1)
	go func() {
		serverErrors <- app.server.ListenAndServe()
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		app.housekeepingService.Stop()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server failed: %w", err)
		}
	case sig := <-shutdown:
		app.logger.Info("shutdown signal received", "signal", sig)

		if err := app.Shutdown(); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
	}

	return nil
}

// Shutdown gracefully shuts down the application
func (app *Application) Shutdown() error {
	app.logger.Info("shutting down auth service...")

	ctx, cancel := context.WithTimeout(context.Background(), app.cfg.ShutdownGracePeriod)
	defer cancel()

	if err := app.server.Shutdown(ctx); err != nil {
		app.logger.Error("graceful server shutdown failed", "error", err)
		if err := app.server.Close(); err != nil {
			app.logger.Error("error closing server", "error", err)
		}
	}

	app.housekeepingService.Stop()

	if err := app.db.Close(); err != nil {
		app.logger.Error("error closing database", "error", err)
		return err
	}

	app.logger.Info("auth service stopped")
	return nil
}

// initDatabase opens the configured driver and applies migrations
func (app *Application) initDatabase() error {
	var (
		db  migrator
		err error
	)

	switch app.cfg.DatabaseDriver {
	case "postgres":
		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		db, err = postgres.NewStore(ctx, app.cfg.DatabaseURL, postgres.PoolConfig{
			MaxOpenConns:    20,
			MaxIdleConns:    5,
			ConnMaxLifetime: 30 * time.Minute,
		})
	default:
		dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)", app.cfg.DatabaseFile)
		db, err = sqlite.NewStore(dsn)
	}
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	app.db = db

	if err := db.ApplyMigrations(); err != nil {
		_ = db.Close()
		return fmt.Errorf("failed to apply database migrations: %w", err)
	}

	app.logger.Info("database migrations applied successfully", "driver", app.cfg.DatabaseDriver)
	return nil
}

func (app *Application) initMailer() {
	switch app.cfg.MailDriver {
	case "smtp":
		app.mailer = &mail.SMTPSender{
			Host:     app.cfg.SMTPHost,
			Port:     app.cfg.SMTPPort,
			Username: app.cfg.SMTPUsername,
			Password: app.cfg.SMTPPassword,
			From:     app.cfg.MailFrom,
		}
	default:
		app.logger.Warn("mail driver is log; reset links are written to the log")
		app.mailer = mail.LogSender{}
	}
}

// initServices initializes all business logic services
func (app *Application) initServices() {
	app.sessionService = &service.SessionService{
		Store:                          app.db,
		Codec:                          app.codec,
		Hasher:                         app.hasher,
		Mailer:                         app.mailer,
		Metrics:                        app.metrics,
		FrontendBaseURL:                app.cfg.FrontendBaseURL,
		ResetTTL:                       app.cfg.ResetTokenTTL,
		DeliveryTimeout:                app.cfg.DeliveryTimeout,
		RevealUnknownAccounts:          app.cfg.RevealUnknownAccounts,
		RevokeSessionsOnPasswordChange: app.cfg.RevokeSessionsOnPasswordChange,
	}

	app.housekeepingService = service.NewHousekeepingService(
		app.db,
		app.logger,
		app.cfg.HousekeepingInterval,
	)
	app.housekeepingService.Metrics = app.metrics
}

// initHTTP initializes the HTTP router and server
func (app *Application) initHTTP() error {
	sameSite, err := app.cfg.SameSite()
	if err != nil {
		return err
	}

	router := httpapi.NewRouter(
		app.codec,
		app.db,
		app.metrics,
		BuildVersion,
		app.logger,
		httpapi.Options{
			AllowedOrigins:    app.cfg.CORSAllowedOrigins,
			CookieSameSite:    sameSite,
			TrustProxyHeaders: app.cfg.TrustProxyHeaders,
			StrictLimit:       app.cfg.StrictLimit,
			ModerateLimit:     app.cfg.ModerateLimit,
		},
	)

	router.Sessions = app.sessionService
	if app.cfg.GoogleEnabled() {
		router.Google = federation.NewGoogleVerifier(app.cfg.GoogleUserInfoURL, app.cfg.DeliveryTimeout)
	}
	router.ApplyRoutes()

	app.router = router

	app.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", app.cfg.Port),
		Handler:           router,
		ReadHeaderTimeout: 3 * time.Second,
	}
	return nil
}
