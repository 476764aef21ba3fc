// Package app initializes and holds long-lived application services, acting
// as a dependency injection container.
package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/shelfscout/bookscraper/internal/api"
	"github.com/shelfscout/bookscraper/internal/clock/system"
	"github.com/shelfscout/bookscraper/internal/config"
	"github.com/shelfscout/bookscraper/internal/engine"
	"github.com/shelfscout/bookscraper/internal/extract"
	"github.com/shelfscout/bookscraper/internal/fetch"
	"github.com/shelfscout/bookscraper/internal/id/uuid"
	"github.com/shelfscout/bookscraper/internal/logging"
	"github.com/shelfscout/bookscraper/internal/ratelimit"
	"github.com/shelfscout/bookscraper/internal/scraper"
)

// App holds the shared, long-lived services for the application. It is
// initialized once at startup and passed to the commands that need it.
type App struct {
	cfg    config.Config
	logger *zap.Logger
	engine *engine.Engine
	server *api.Server
}

// New builds the whole service graph from configuration. It fails fast when
// any component cannot be constructed.
func New(configPath string) (*App, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	logger, err := logging.New(cfg.Logging.Development)
	if err != nil {
		return nil, fmt.Errorf("build logger: %w", err)
	}

	clk := system.New()
	limiter := ratelimit.New(ratelimit.RegistryConfig{
		Default: ratelimit.Config{
			RequestsPerSecond: cfg.RateLimit.DefaultRPS,
			Burst:             cfg.RateLimit.DefaultBurst,
			Jitter:            cfg.RateLimit.Jitter,
		},
		Adaptive: cfg.RateLimit.Adaptive,
	}, clk)

	fetcher := fetch.New(fetch.Config{
		Timeout:        cfg.RequestTimeout(),
		MaxAttempts:    cfg.HTTP.MaxRetries,
		RetryBaseDelay: cfg.RetryBaseDelay(),
		RetryMaxDelay:  cfg.RetryMaxDelay(),
		CacheSize:      cfg.Fetch.CacheSize,
		MaxConcurrent:  cfg.Scraper.MaxConcurrent,
	}, logger.Named("fetch"))

	sources := make([]scraper.Source, 0, len(cfg.Scraper.EnabledSources))
	for _, s := range cfg.Scraper.EnabledSources {
		sources = append(sources, scraper.ParseSource(s))
	}

	eng := engine.New(
		limiter,
		fetcher,
		extract.New(logger.Named("extract")),
		clk,
		uuid.New(),
		engine.Options{
			MaxConcurrent:  cfg.Scraper.MaxConcurrent,
			BatchTimeout:   cfg.BatchTimeout(),
			EnabledSources: sources,
		},
		logger.Named("engine"),
	)

	return &App{
		cfg:    cfg,
		logger: logger,
		engine: eng,
		server: api.NewServer(eng, logger.Named("api")),
	}, nil
}

// Config returns the loaded configuration.
func (a *App) Config() config.Config {
	return a.cfg
}

// Logger returns the shared zap logger.
func (a *App) Logger() *zap.Logger {
	return a.logger
}

// Engine returns the scraper engine.
func (a *App) Engine() *engine.Engine {
	return a.engine
}

// Serve runs the HTTP server until ctx is canceled, then shuts it down
// gracefully.
func (a *App) Serve(ctx context.Context) error {
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", a.cfg.Server.Port),
		Handler:           a.server.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		a.logger.Info("http server listening", zap.Int("port", a.cfg.Server.Port))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("serve: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	a.logger.Info("shutting down http server")
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

// Close flushes the logger. Best effort; there is nothing else to tear down.
func (a *App) Close() {
	_ = a.logger.Sync()
}
