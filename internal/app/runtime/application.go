// Package runtime wires configuration, stores, services, and the HTTP server
// into a runnable process.
package runtime

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"time"

	_ "github.com/lib/pq"

	app "github.com/advanced-ai/backend/internal/app"
	"github.com/advanced-ai/backend/internal/app/httpapi"
	"github.com/advanced-ai/backend/internal/app/metrics"
	"github.com/advanced-ai/backend/internal/app/services/compute"
	"github.com/advanced-ai/backend/internal/app/services/engine"
	"github.com/advanced-ai/backend/internal/app/storage/postgres"
	"github.com/advanced-ai/backend/internal/app/storage/rediscache"
	"github.com/advanced-ai/backend/internal/config"
	"github.com/advanced-ai/backend/internal/httpserver"
	"github.com/advanced-ai/backend/internal/middleware"
	"github.com/advanced-ai/backend/internal/platform/migrations"
	"github.com/advanced-ai/backend/pkg/logger"
)

// Application wires core dependencies and manages the server lifecycle.
type Application struct {
	cfg        *config.Config
	log        *logger.Logger
	app        *app.Application
	httpServer *httpserver.Server
	db         *sql.DB
	cache      *rediscache.Cache
}

// NewApplication constructs the application with default wiring. Any error
// here is fatal: the process has nothing useful to do without its
// configuration, stores, and listener wiring.
func NewApplication() (*Application, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	log := logger.New(logger.LoggingConfig{
		Level:     cfg.Logging.Level,
		Format:    cfg.Logging.Format,
		Output:    cfg.Logging.Output,
		Component: "runtime",
	})

	stores, db, err := buildStores(cfg)
	if err != nil {
		return nil, fmt.Errorf("configure stores: %w", err)
	}

	cache := buildCache(cfg, log)
	var responseCache engine.ResponseCache
	if cache != nil {
		responseCache = cache
	}

	application, err := app.New(stores, app.Settings{
		AppName:   cfg.App.Name,
		Version:   "1.0.0",
		APIPrefix: cfg.App.Prefix,
		Engine: engine.Config{
			Model:       cfg.Engine.Model,
			Temperature: cfg.Engine.Temperature,
			MaxTokens:   cfg.Engine.MaxTokens,
			CacheTTL:    cfg.Engine.CacheTTL,
		},
		Compute: compute.Config{
			Enabled:       cfg.Compute.Enabled,
			MaxScriptSize: cfg.Compute.MaxScriptSize,
			Timeout:       cfg.Compute.Timeout,
		},
		ResponseCache:     responseCache,
		RetentionMaxAge:   cfg.Retention.MaxAge,
		RetentionSchedule: cfg.Retention.Schedule,
	}, log.WithComponent("app"))
	if err != nil {
		return nil, fmt.Errorf("wire application: %w", err)
	}

	handler := buildHandler(cfg, application, cache, log)
	httpSrv := httpserver.New(cfg.Server, log.WithComponent("httpserver"), handler)

	return &Application{
		cfg:        cfg,
		log:        log,
		app:        application,
		httpServer: httpSrv,
		db:         db,
		cache:      cache,
	}, nil
}

// Run starts the services and the HTTP server, then blocks until the context
// is cancelled or the server fails. A listener that cannot bind surfaces here
// as a fatal error.
func (a *Application) Run(ctx context.Context) error {
	if err := a.app.Start(ctx); err != nil {
		return fmt.Errorf("start services: %w", err)
	}

	errCh := make(chan error, 1)
	go func() {
		a.log.Infof("HTTP server listening on %s:%d", a.cfg.Server.Host, a.cfg.Server.Port)
		if err := a.httpServer.Start(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		return nil
	case err := <-errCh:
		return err
	}
}

// Shutdown gracefully stops the HTTP server, services, and connections.
func (a *Application) Shutdown(ctx context.Context) error {
	shutdownCtx, cancel := context.WithTimeout(ctx, a.cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := a.httpServer.Shutdown(shutdownCtx); err != nil {
		return err
	}

	if err := a.app.Stop(shutdownCtx); err != nil {
		a.log.WithError(err).Warn("error stopping services")
	}

	if a.db != nil {
		if err := a.db.Close(); err != nil {
			a.log.WithError(err).Warn("error closing database connection")
		}
	}
	if a.cache != nil {
		if err := a.cache.Close(); err != nil {
			a.log.WithError(err).Warn("error closing redis connection")
		}
	}
	return nil
}

// buildStores returns postgres-backed stores when a DSN is configured, and
// nil stores (in-memory) otherwise.
func buildStores(cfg *config.Config) (app.Stores, *sql.DB, error) {
	if cfg.Database.DSN == "" {
		return app.Stores{}, nil, nil
	}

	db, err := openDatabase(cfg.Database)
	if err != nil {
		return app.Stores{}, nil, err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := migrations.Apply(ctx, db); err != nil {
		db.Close()
		return app.Stores{}, nil, fmt.Errorf("apply migrations: %w", err)
	}

	store := postgres.New(db)
	return app.Stores{Executions: store, Workflows: store}, db, nil
}

func openDatabase(cfg config.DatabaseConfig) (*sql.DB, error) {
	db, err := sql.Open("postgres", cfg.DSN)
	if err != nil {
		return nil, err
	}

	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}

// buildCache connects to Redis when configured. A failed connection is
// logged, not fatal; the process falls back to local rate limiting and no
// response cache.
func buildCache(cfg *config.Config, log *logger.Logger) *rediscache.Cache {
	if cfg.Redis.Addr == "" {
		return nil
	}

	cache := rediscache.New(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := cache.Ping(ctx); err != nil {
		log.WithError(err).Warn("redis unreachable, continuing without it")
		_ = cache.Close()
		return nil
	}
	return cache
}

// buildHandler assembles the middleware chain around the API handler. Order
// from the outside in: CORS, rate limit, auth, metrics.
func buildHandler(cfg *config.Config, application *app.Application, cache *rediscache.Cache, log *logger.Logger) http.Handler {
	handler := httpapi.NewHandler(application, log.WithComponent("httpapi"))
	handler = metrics.InstrumentHandler(handler)

	auth := middleware.NewAuthMiddleware(cfg.Auth.SecretKey, cfg.Auth.Enabled,
		[]string{"/health", "/metrics"}, log.WithComponent("auth"))
	handler = auth.Handler(handler)

	var counter middleware.WindowCounter
	if cache != nil {
		counter = cache
	}
	limiter := middleware.NewRateLimiter(cfg.RateLimit.RequestsPerMinute, counter, log.WithComponent("ratelimit"))
	limiter.StartCleanup(context.Background(), 10*time.Minute)
	handler = limiter.Handler(handler)

	cors := middleware.NewCORSMiddleware(cfg.Server.CORSOrigins)
	return cors.Handler(handler)
}
