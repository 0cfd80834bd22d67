// Package app wires configuration, storage, services and the HTTP server into
// a runnable application.
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

	"github.com/cardfile/cardfile/internal/avatar"
	"github.com/cardfile/cardfile/internal/cache"
	httpapi "github.com/cardfile/cardfile/internal/http"
	"github.com/cardfile/cardfile/internal/mail"
	"github.com/cardfile/cardfile/internal/obs"
	"github.com/cardfile/cardfile/internal/service"
	"github.com/cardfile/cardfile/internal/store"
	"github.com/cardfile/cardfile/internal/store/drivers/sqlite"
	"github.com/cardfile/cardfile/pkg/cryptox"
	"github.com/cardfile/cardfile/pkg/jwtx"
	"github.com/cardfile/cardfile/pkg/slogx"
)

const (
	// BuildVersion should be set at build time via ldflags. Later problem
	BuildVersion = "v0.1.0"
)

// Application encapsulates the API service with all its dependencies.
type Application struct {
	cfg    Config
	logger *slog.Logger

	db         store.Store
	codec      *jwtx.Codec
	sessions   *cache.SessionCache
	resets     *service.ResetCodeStore
	dispatcher *mail.Dispatcher

	authFlows      *service.AuthFlows
	identity       *service.IdentityService
	contactService *service.ContactService
	userService    *service.UserService

	server *http.Server
	router *httpapi.Router
}

// New creates an Application with all dependencies initialized.
func New(cfg Config) (*Application, error) {
	if cfg.JWTSecret == "" {
		return nil, errors.New("JWT_SECRET must be set")
	}

	app := &Application{
		cfg: cfg,
		logger: slogx.New(slogx.Config{
			Service: "cardfile",
			Version: BuildVersion,
			Env:     cfg.Env,
			Level:   cfg.LogLevel,
			Format:  cfg.LogFormat,
		}),
	}

	obs.Init()

	if err := app.initDatabase(); err != nil {
		return nil, err
	}

	if err := app.initServices(); err != nil {
		_ = app.db.Close()
		return nil, err
	}

	app.initHTTP()
	return app, nil
}

// Run starts the application and blocks until shutdown is requested.
func (app *Application) Run() error {
	app.logger.Info("cardfile api starting", "port", app.cfg.Port, "version", BuildVersion)

	serverErrors := make(chan error, 1)
	go func() {
		serverErrors <- app.server.ListenAndServe()
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
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

// Shutdown gracefully shuts down the application.
func (app *Application) Shutdown() error {
	app.logger.Info("shutting down cardfile api...")

	ctx, cancel := context.WithTimeout(context.Background(), app.cfg.ShutdownGracePeriod)
	defer cancel()

	if err := app.server.Shutdown(ctx); err != nil {
		app.logger.Error("graceful server shutdown failed", "error", err)
		if err := app.server.Close(); err != nil {
			app.logger.Error("error closing server", "error", err)
		}
	}

	// Drain queued mail before tearing the rest down.
	app.dispatcher.Close()
	app.sessions.Close()
	app.resets.Close()

	if err := app.db.Close(); err != nil {
		app.logger.Error("error closing database", "error", err)
		return err
	}

	app.logger.Info("cardfile api stopped")
	return nil
}

// initDatabase initializes the database and applies migrations.
func (app *Application) initDatabase() error {
	host := fmt.Sprintf("file:%s?_busy_timeout=5000&_journal_mode=WAL", app.cfg.DatabaseFile)
	db, err := sqlite.NewStore(host)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	app.db = db

	if err := db.ApplyMigrations(); err != nil {
		_ = db.Close()
		return fmt.Errorf("failed to apply database migrations: %w", err)
	}

	app.logger.Info("database migrations applied successfully")
	return nil
}

// initServices initializes all business logic services.
func (app *Application) initServices() error {
	app.codec = jwtx.NewCodec([]byte(app.cfg.JWTSecret), app.cfg.Issuer)
	app.sessions = cache.NewSessionCache(app.cfg.SessionCacheTTL)
	app.resets = service.NewResetCodeStore()

	mailer, err := mail.NewSMTPMailer(mail.SMTPConfig{
		Host:     app.cfg.SMTPHost,
		Port:     app.cfg.SMTPPort,
		Username: app.cfg.SMTPUsername,
		Password: app.cfg.SMTPPassword,
		From:     app.cfg.SMTPFrom,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize mailer: %w", err)
	}
	app.dispatcher = mail.NewDispatcher(mailer, app.logger)

	uploader, err := avatar.NewS3Uploader(context.Background(), avatar.S3Config{
		Region:        app.cfg.S3Region,
		Endpoint:      app.cfg.S3Endpoint,
		AccessKey:     app.cfg.S3AccessKey,
		SecretKey:     app.cfg.S3SecretKey,
		Bucket:        app.cfg.S3Bucket,
		PublicBaseURL: app.cfg.S3PublicBaseURL,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize avatar storage: %w", err)
	}

	app.authFlows = &service.AuthFlows{
		Store:          app.db,
		Hasher:         cryptox.NewHasher(app.cfg.Pepper),
		Codec:          app.codec,
		Cache:          app.sessions,
		Resets:         app.resets,
		Mail:           app.dispatcher,
		BaseURL:        app.cfg.BaseURL,
		AccessTTL:      app.cfg.AccessTTL,
		RefreshTTL:     app.cfg.RefreshTTL,
		EmailVerifyTTL: app.cfg.EmailVerifyTTL,
	}
	app.identity = &service.IdentityService{Store: app.db, Cache: app.sessions}
	app.contactService = service.NewContactService(app.db)
	app.userService = &service.UserService{
		Store:    app.db,
		Cache:    app.sessions,
		Uploader: uploader,
	}

	return nil
}

// initHTTP initializes the HTTP router and server.
func (app *Application) initHTTP() {
	router := httpapi.NewRouter(app.codec, BuildVersion, app.db, app.logger)

	router.AuthFlows = app.authFlows
	router.Identity = app.identity
	router.ContactService = app.contactService
	router.UserService = app.userService
	router.ApplyRoutes()

	app.router = router

	app.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", app.cfg.Port),
		Handler:           router,
		ReadHeaderTimeout: 3 * time.Second,
	}
}
