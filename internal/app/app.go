package app

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/shaibs3/pagecache/internal/handlers"
	"github.com/shaibs3/pagecache/internal/router"
	"golang.org/x/time/rate"

	"github.com/shaibs3/pagecache/internal/config"
	"go.uber.org/zap"
)

// App represents the main application
type App struct {
	config     *config.Config
	logger     *zap.Logger
	components *Components
	server     *http.Server
}

func NewApp(cfg *config.Config, logger *zap.Logger) (*App, error) {
	components, err := NewComponents(cfg, logger)
	if err != nil {
		return nil, err
	}

	// Initialize router with handlers
	var limiter = rate.NewLimiter(rate.Limit(cfg.RPSLimit), cfg.RPSBurst)

	// Create handlers
	handlerList := []router.Handler{
		handlers.NewHealthHandler(components.Store, logger),
		handlers.NewCacheHandler(
			components.Scheduler,
			components.Unit,
			components.Maintainer,
			cfg.AdminPassword,
			cfg.DefaultBatchSize,
			logger,
		),
	}

	appRouter := router.NewRouter(limiter, components.Telemetry, logger, handlerList)
	server := appRouter.CreateServer(":" + cfg.Port)

	return &App{
		config:     cfg,
		logger:     logger,
		components: components,
		server:     server,
	}, nil
}

// Handler exposes the HTTP handler, mainly for tests
func (app *App) Handler() http.Handler {
	return app.server.Handler
}

// Start starts the application server
func (app *App) start() error {
	app.logger.Info("starting server", zap.String("port", app.config.Port))

	go func() {
		if err := app.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			app.logger.Fatal("server failed to start", zap.Error(err))
		}
	}()

	return nil
}

// Stop gracefully shuts down the application
func (app *App) stop() error {
	app.logger.Info("shutting down server...")

	// Create shutdown context with timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := app.server.Shutdown(shutdownCtx); err != nil {
		app.logger.Error("server forced to shutdown", zap.Error(err))
		return err
	}
	if err := app.components.Telemetry.Shutdown(shutdownCtx); err != nil {
		app.logger.Warn("telemetry shutdown failed", zap.Error(err))
	}
	if err := app.components.Close(); err != nil {
		app.logger.Warn("store close failed", zap.Error(err))
	}

	app.logger.Info("server exited gracefully")
	return nil
}

// Run starts the application and waits for shutdown signals
func (app *App) Run() error {
	// Start the server
	if err := app.start(); err != nil {
		return err
	}

	// Wait for interrupt signal
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Wait for shutdown signal
	<-ctx.Done()

	// Stop the application
	return app.stop()
}
