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

	"github.com/acornbank/acorn/internal/savings/cache"
	httpapi "github.com/acornbank/acorn/internal/savings/http"
	"github.com/acornbank/acorn/internal/savings/notify"
	"github.com/acornbank/acorn/internal/savings/queue"
	"github.com/acornbank/acorn/internal/savings/service"
	"github.com/acornbank/acorn/internal/savings/store"
	"github.com/acornbank/acorn/internal/savings/store/drivers/sqlite"
	"github.com/acornbank/acorn/pkg/jwtx"
	"github.com/acornbank/acorn/pkg/slogx"
)

// BuildVersion should be set at build time via ldflags.
const BuildVersion = "v0.1.0"

// Application wires the savings core end to end: store, cache, queue,
// services, the background sweeper, and the probe server.
type Application struct {
	cfg    Config
	logger *slog.Logger

	db    store.Store
	cache cache.Cache
	queue *queue.Dispatcher

	sessionService *service.SessionService
	tokenService   *service.TokenService
	deviceService  *service.DeviceService
	codeService    *service.CodeService
	authService    *service.AuthService
	ledgerService  *service.LedgerService
	sweeper        *service.Sweeper

	server *http.Server
}

func New(cfg Config) (*Application, error) {
	if cfg.AccessSecret == "" || cfg.RefreshSecret == "" {
		return nil, errors.New("SAVINGS_ACCESS_SECRET and SAVINGS_REFRESH_SECRET must be set")
	}
	if cfg.AccessSecret == cfg.RefreshSecret {
		return nil, errors.New("access and refresh secrets must differ")
	}

	app := &Application{
		cfg: cfg,
		logger: slogx.New(slogx.Config{
			Service: "savings-core",
			Version: BuildVersion,
			Env:     cfg.Env,
			Level:   cfg.LogLevel,
			Format:  cfg.LogFormat,
		}),
	}

	if err := app.initDatabase(); err != nil {
		return nil, err
	}

	app.cache = cache.NewMemory()
	app.queue = queue.NewDispatcher(app.logger)
	notify.RegisterHandlers(app.queue, &notify.LogMailer{Logger: app.logger})

	app.initServices()
	app.initHTTP()

	return app, nil
}

// Run starts the application and blocks until shutdown is requested.
func (app *Application) Run() error {
	app.sweeper.Start()

	app.logger.Info("savings core starting", "port", app.cfg.Port, "version", BuildVersion)

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

// Shutdown stops the probe server, the sweeper, and the queue, then
// closes the database.
func (app *Application) Shutdown() error {
	app.logger.Info("shutting down savings core...")

	ctx, cancel := context.WithTimeout(context.Background(), app.cfg.ShutdownGracePeriod)
	defer cancel()

	if err := app.server.Shutdown(ctx); err != nil {
		app.logger.Error("graceful server shutdown failed", "error", err)
		if err := app.server.Close(); err != nil {
			app.logger.Error("error closing server", "error", err)
		}
	}

	app.sweeper.Stop()
	app.queue.Stop()

	if err := app.db.Close(); err != nil {
		app.logger.Error("error closing database", "error", err)
		return err
	}

	app.logger.Info("savings core stopped")
	return nil
}

func (app *Application) initDatabase() error {
	dsn := fmt.Sprintf("file:%s?_busy_timeout=5000&_journal_mode=WAL", app.cfg.DatabaseFile)
	db, err := sqlite.NewStore(dsn)
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

func (app *Application) initServices() {
	codec := jwtx.NewCodec(app.cfg.Issuer, []byte(app.cfg.AccessSecret), []byte(app.cfg.RefreshSecret))
	codec.AccessTTL = app.cfg.AccessTokenTTL
	codec.RefreshTTL = app.cfg.RefreshTokenTTL

	app.sessionService = &service.SessionService{
		Store:      app.db,
		Cache:      app.cache,
		AccessTTL:  codec.AccessTTL,
		RefreshTTL: codec.RefreshTTL,
	}
	app.tokenService = &service.TokenService{
		Codec:    codec,
		Cache:    app.cache,
		Sessions: app.sessionService,
	}
	app.deviceService = &service.DeviceService{Store: app.db}
	app.codeService = &service.CodeService{
		Store:   app.db,
		Queue:   app.queue,
		CodeTTL: app.cfg.CodeTTL,
	}
	app.authService = &service.AuthService{
		Store:            app.db,
		Cache:            app.cache,
		Sessions:         app.sessionService,
		Tokens:           app.tokenService,
		Devices:          app.deviceService,
		Codes:            app.codeService,
		Queue:            app.queue,
		MaxLoginAttempts: app.cfg.MaxLoginAttempts,
		AttemptWindow:    app.cfg.AttemptWindow,
	}
	app.ledgerService = &service.LedgerService{
		Store:            app.db,
		Queue:            app.queue,
		PendingThreshold: app.cfg.PendingThreshold,
		ConfirmWindow:    app.cfg.ConfirmWindow,
	}
	app.sweeper = &service.Sweeper{
		Store:         app.db,
		Logger:        app.logger,
		Interval:      app.cfg.SweepInterval,
		ConfirmWindow: app.cfg.ConfirmWindow,
	}
}

func (app *Application) initHTTP() {
	app.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", app.cfg.Port),
		Handler:           httpapi.NewMux(time.Now(), BuildVersion, app.db, app.logger),
		ReadHeaderTimeout: 3 * time.Second,
	}
}
