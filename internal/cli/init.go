// Package cli provides the initialization shared by every gigledger command:
// environment loading, logging, the local cache and the wired record store.
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"gigledger/internal/amqp"
	"gigledger/internal/backend"
	"gigledger/internal/config"
	"gigledger/internal/entitlement"
	"gigledger/internal/limits"
	"gigledger/internal/log"
	"gigledger/internal/metrics"
	"gigledger/internal/storage"
	"gigledger/internal/store"
)

// LoadEnvFile loads a .env file for local development. A missing default
// file is ignored; an explicitly named one must exist.
func LoadEnvFile(path string) error {
	if path == "" {
		_ = godotenv.Load()
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("load env file %s: %w", path, err)
	}
	return nil
}

// SetupLogger builds the application logger from cfg and installs it as the
// slog default. Logs go to w so that command output on stdout stays clean.
func SetupLogger(cfg *config.Config, w io.Writer) *log.Logger {
	logger := log.New(log.Config{
		Level:     log.ParseLevel(cfg.LogLevel),
		Format:    cfg.LogFormat,
		Component: log.ComponentApp,
		Output:    w,
	})
	log.SetDefault(logger)
	return logger
}

// LoadAndValidateConfig loads configuration from the environment and
// validates it.
func LoadAndValidateConfig() (*config.Config, error) {
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return cfg, nil
}

// OpenCache opens the SQLite cache at cfg.CacheDBPath, sealed with
// cfg.CacheKey when one is configured. The returned func closes the database.
func OpenCache(cfg *config.Config, logger *log.Logger) (storage.Cache, func() error, error) {
	if logger == nil {
		logger = log.Discard()
	}
	sqlite, err := storage.NewSQLiteCache(cfg.CacheDBPath)
	if err != nil {
		return nil, nil, fmt.Errorf("open local cache: %w", err)
	}
	if cfg.CacheKey == "" {
		logger.Debug("Local cache is not sealed", "path", cfg.CacheDBPath)
		return sqlite, sqlite.Close, nil
	}

	key, err := storage.ParseKey(cfg.CacheKey)
	if err != nil {
		sqlite.Close()
		return nil, nil, err
	}
	sealed, err := storage.NewSealed(sqlite, key)
	if err != nil {
		sqlite.Close()
		return nil, nil, err
	}
	return sealed, sqlite.Close, nil
}

// App is a fully wired store together with the resources it holds.
type App struct {
	Config  *config.Config
	Logger  *log.Logger
	Store   *store.Store
	Cache   storage.Cache
	Metrics *metrics.Metrics
	// AMQP is nil when no broker is configured or it could not be reached.
	AMQP *amqp.Client
	// Entitlements follows premium changes when a broker and a user are
	// configured.
	Entitlements *entitlement.Watcher

	cleanup []func() error
}

// Bootstrap opens the cache, builds the remote backend for authenticated
// users, connects to the broker when configured, rehydrates the store from
// the last snapshot and restores the last known premium flag.
func Bootstrap(ctx context.Context, cfg *config.Config, logger *log.Logger) (*App, error) {
	if logger == nil {
		logger = log.Discard()
	}
	app := &App{
		Config:  cfg,
		Logger:  logger,
		Metrics: metrics.New(),
	}

	cache, closeCache, err := OpenCache(cfg, logger)
	if err != nil {
		return nil, err
	}
	app.Cache = cache
	app.cleanup = append(app.cleanup, closeCache)

	opts := store.Options{
		Policy:   limits.Default(),
		Cache:    cache,
		Recorder: app.Metrics,
		Logger:   logger,
	}

	if cfg.Authenticated() {
		bcfg, err := backend.FromAppConfig(cfg)
		if err != nil {
			app.Close()
			return nil, err
		}
		res, err := backend.NewFactory(logger).CreateBackend(ctx, bcfg)
		if err != nil {
			app.Close()
			return nil, fmt.Errorf("create backend: %w", err)
		}
		app.cleanup = append(app.cleanup, res.Close)
		opts.Gateway = res.Gateway
		opts.Identity = bcfg.Identity
	}

	if cfg.AMQPURL != "" {
		client, err := amqp.NewClient(cfg.AMQPURL, amqp.Topology{
			Exchange:          cfg.AMQPExchange,
			EventsQueue:       cfg.AMQPEventsQueue,
			EntitlementsQueue: cfg.AMQPEntitlementQueue,
			UserID:            cfg.UserID,
		}, logger)
		if err != nil {
			logger.Warn("AMQP unavailable, continuing without events", log.FieldError, err)
		} else {
			app.AMQP = client
			app.cleanup = append(app.cleanup, client.Close)
			opts.Publisher = client
		}
	}

	app.Store = store.New(opts)

	if err := app.Store.Rehydrate(ctx); err != nil {
		app.Close()
		return nil, err
	}
	var source entitlement.Source
	if app.AMQP != nil && cfg.Authenticated() {
		source = amqp.NewEntitlementSource(app.AMQP, cfg.UserID)
	}
	app.Entitlements = entitlement.NewWatcher(source, app.Premium(), cache, logger)
	premium, err := app.Entitlements.Restore(ctx)
	if err != nil {
		logger.Warn("Failed to restore premium status, starting as free", log.FieldError, err)
	}

	logger.Debug("Application ready",
		log.FieldBackend, cfg.DataBackend,
		log.FieldMode, mode(cfg),
		log.FieldPremium, premium)
	return app, nil
}

// Premium returns the setter that updates both the store and the premium
// gauge.
func (a *App) Premium() entitlement.PremiumSetter {
	return a.Metrics.PremiumGauge(a.Store)
}

// Persist flushes the store to the local cache and records the outcome.
func (a *App) Persist(ctx context.Context) error {
	err := a.Store.Persist(ctx)
	a.Metrics.RecordPersist(err)
	return err
}

// Close releases resources in reverse acquisition order.
func (a *App) Close() error {
	var errs []error
	for i := len(a.cleanup) - 1; i >= 0; i-- {
		if err := a.cleanup[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.cleanup = nil
	return errors.Join(errs...)
}

func mode(cfg *config.Config) string {
	if cfg.Authenticated() {
		return "remote"
	}
	return "local"
}

// SignalContext returns a context cancelled on SIGINT or SIGTERM.
func SignalContext(parent context.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
}
