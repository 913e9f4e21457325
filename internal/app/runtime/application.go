// Package runtime assembles the process: configuration, database readiness,
// migrations, service wiring and the HTTP server lifecycle. The startup
// order is fixed: gate, migrate, serve. The listener is never bound before
// the schema is current.
package runtime

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/jmoiron/sqlx"

	app "github.com/todo-platform/task-api/internal/app"
	"github.com/todo-platform/task-api/internal/app/httpapi"
	"github.com/todo-platform/task-api/internal/app/metrics"
	"github.com/todo-platform/task-api/internal/app/services/users"
	"github.com/todo-platform/task-api/internal/app/storage/postgres"
	"github.com/todo-platform/task-api/internal/config"
	"github.com/todo-platform/task-api/internal/logging"
	"github.com/todo-platform/task-api/internal/middleware"
	"github.com/todo-platform/task-api/internal/platform/database"
	"github.com/todo-platform/task-api/internal/platform/migrations"
	"github.com/todo-platform/task-api/internal/platform/readiness"
)

// Application wires core dependencies and manages the HTTP server lifecycle.
type Application struct {
	cfg         *config.Config
	log         *logging.Logger
	application *app.Application
	httpServer  *http.Server
	rateLimiter *middleware.RateLimiter
	db          *sqlx.DB
	redisClient *redis.Client
}

// LoadConfig loads the typed configuration from the environment.
func LoadConfig() (*config.Config, error) {
	return config.Load()
}

// NewApplication builds the application: it waits for the database behind
// the readiness gate, applies migrations, and assembles the handler chain.
// Any failure here must abort the process before serving begins.
func NewApplication(ctx context.Context, cfg *config.Config) (*Application, error) {
	log := logging.New(logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
	})

	a := &Application{cfg: cfg, log: log}

	stores := app.Stores{}
	if cfg.HasDatabase() {
		db, err := a.openDatabase(ctx)
		if err != nil {
			return nil, err
		}
		a.db = db

		migrateStart := time.Now()
		if err := migrations.Apply(db.DB); err != nil {
			db.Close()
			return nil, fmt.Errorf("migrate: %w", err)
		}
		metrics.RecordStartupPhase("migrate", time.Since(migrateStart))
		log.WithField("took", time.Since(migrateStart).String()).Info("schema migrations applied")

		store := postgres.New(db)
		stores = app.Stores{Users: store, Tasks: store, Tokens: store}
	} else {
		// Config validation only allows this in debug mode.
		log.Warn("no database configured; using the in-memory store")
	}

	var authCache users.Cache
	if cfg.Redis.Addr != "" {
		a.redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		authCache = users.NewRedisCache(a.redisClient, cfg.Redis.AuthTTL, log)
	}

	application, err := app.New(stores, app.Options{
		SecretKey:  cfg.Auth.SecretKey,
		AccessTTL:  cfg.Auth.AccessTTL,
		RefreshTTL: cfg.Auth.RefreshTTL,
		AuthCache:  authCache,
	}, log)
	if err != nil {
		if a.db != nil {
			a.db.Close()
		}
		return nil, fmt.Errorf("wire application: %w", err)
	}
	a.application = application

	a.httpServer = &http.Server{
		Addr:         cfg.Server.Addr(),
		Handler:      a.buildHandler(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	return a, nil
}

// App exposes the wired services, mainly for tests.
func (a *Application) App() *app.Application {
	return a.application
}

// openDatabase opens the pool behind the readiness gate: the configured
// attempt budget mirrors the orchestrator's health check so the managed
// platform path, which has no orchestrator-side gate, gets the same
// guarantee in-process.
func (a *Application) openDatabase(ctx context.Context) (*sqlx.DB, error) {
	dbCfg := a.cfg.Database
	gate := readiness.Gate{
		Name:        "postgres",
		Interval:    dbCfg.ReadyInterval,
		MaxAttempts: dbCfg.ReadyAttempts,
		Log:         a.log,
	}

	gateStart := time.Now()
	var db *sqlx.DB
	err := gate.Wait(ctx, func(ctx context.Context) error {
		probeCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()

		opened, err := database.Open(probeCtx, dbCfg.DSN(), database.PoolConfig{
			MaxOpenConns:    dbCfg.MaxOpenConns,
			MaxIdleConns:    dbCfg.MaxIdleConns,
			ConnMaxLifetime: dbCfg.ConnMaxLifetime,
		})
		if err != nil {
			return err
		}
		db = opened
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("database readiness: %w", err)
	}
	metrics.RecordStartupPhase("gate", time.Since(gateStart))
	return db, nil
}

// buildHandler assembles the middleware chain around the REST mux.
func (a *Application) buildHandler() http.Handler {
	var ready httpapi.ReadyProbe
	if a.db != nil {
		db := a.db
		ready = func(ctx context.Context) error { return db.PingContext(ctx) }
	}

	handler := httpapi.NewHandler(a.application, ready)

	// The limiter sits inside auth so authenticated traffic is keyed by
	// user id; anonymous traffic (skip paths) falls back to the client IP.
	if a.cfg.RateLimit.Enabled {
		a.rateLimiter = middleware.NewRateLimiter(a.cfg.RateLimit.RequestsPerSecond, a.cfg.RateLimit.Burst, a.log)
		handler = a.rateLimiter.Handler(handler)
	}

	authMW := middleware.NewAuthMiddleware(a.application.Auth, a.log, httpapi.AuthSkipPaths)
	handler = authMW.Handler(handler)

	handler = middleware.MetricsMiddleware(handler)
	handler = middleware.LoggingMiddleware(a.log)(handler)
	handler = middleware.NewCORSMiddleware(a.cfg.AllowedHosts).Handler(handler)

	return handler
}

// Run starts background services and the HTTP server, blocking until the
// context is cancelled or the server fails.
func (a *Application) Run(ctx context.Context) error {
	if err := a.application.Start(ctx); err != nil {
		return fmt.Errorf("start services: %w", err)
	}

	if a.rateLimiter != nil {
		go a.rateLimiterCleanup(ctx)
	}

	errCh := make(chan error, 1)
	go func() {
		a.log.Infof("HTTP server listening on %s", a.cfg.Server.Addr())
		if err := a.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
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

func (a *Application) rateLimiterCleanup(ctx context.Context) {
	ticker := time.NewTicker(10 * time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			a.rateLimiter.Cleanup(time.Hour)
		}
	}
}

// Shutdown drains the HTTP server, stops background services and closes
// connections.
func (a *Application) Shutdown(ctx context.Context) error {
	shutdownCtx, cancel := context.WithTimeout(ctx, a.cfg.Server.ShutdownTimeout)
	defer cancel()

	var firstErr error
	if err := a.httpServer.Shutdown(shutdownCtx); err != nil {
		firstErr = err
	}
	if err := a.application.Stop(shutdownCtx); err != nil && firstErr == nil {
		firstErr = err
	}
	if a.db != nil {
		if err := a.db.Close(); err != nil {
			a.log.WithError(err).Warn("error closing database connection")
		}
	}
	if a.redisClient != nil {
		if err := a.redisClient.Close(); err != nil {
			a.log.WithError(err).Warn("error closing redis connection")
		}
	}
	return firstErr
}
