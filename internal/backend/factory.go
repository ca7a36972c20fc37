package backend

import (
	"context"
	"encoding/json"
	"fmt"

	"gigledger/internal/cache"
	"gigledger/internal/gateway"
	"gigledger/internal/gateway/memory"
	"gigledger/internal/gateway/postgres"
	"gigledger/internal/log"
)

// DefaultFactory implements the Factory interface
type DefaultFactory struct {
	logger *log.Logger
}

// NewFactory creates a new backend factory
func NewFactory(logger *log.Logger) Factory {
	if logger == nil {
		logger = log.Discard()
	}
	return &DefaultFactory{
		logger: logger.WithComponent(log.ComponentBackend),
	}
}

// CreateBackend implements Factory.CreateBackend
func (f *DefaultFactory) CreateBackend(ctx context.Context, config Config) (*BackendResult, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	var (
		result *BackendResult
		err    error
	)
	switch config.Type {
	case MemoryBackend:
		result = f.createMemoryBackend(config)
	case PostgresBackend:
		result, err = f.createPostgresBackend(ctx, config)
	default:
		return nil, fmt.Errorf("unsupported backend type: %s", config.Type)
	}
	if err != nil {
		return nil, err
	}

	if config.FetchCacheSize > 0 {
		f.wrapWithCache(result, config)
	}
	return result, nil
}

func (f *DefaultFactory) createMemoryBackend(config Config) *BackendResult {
	f.logger.Info("Initialized memory backend", "app_id", config.AppID)
	return &BackendResult{
		Gateway: memory.New(config.Identity, config.AppID),
	}
}

func (f *DefaultFactory) createPostgresBackend(ctx context.Context, config Config) (*BackendResult, error) {
	pool, err := postgres.NewPool(ctx, config.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to postgres: %w", err)
	}
	if err := postgres.RunMigrations(pool); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to migrate postgres: %w", err)
	}

	f.logger.Info("Initialized postgres backend", "app_id", config.AppID)

	return &BackendResult{
		Gateway: postgres.New(pool, config.Identity, config.AppID),
		Cleanup: func() error {
			pool.Close()
			return nil
		},
	}, nil
}

// wrapWithCache puts a read-through cache in front of the gateway and a
// background sweeper that drops expired entries.
func (f *DefaultFactory) wrapWithCache(result *BackendResult, config Config) {
	lru := cache.NewLRUCache[[]json.RawMessage](config.FetchCacheSize, config.FetchCacheTTL)
	manager := cache.NewManager(f.logger)
	manager.Register(lru)
	manager.StartCleanup(config.FetchCacheTTL)

	result.Gateway = gateway.NewCached(result.Gateway, config.Identity, lru)

	next := result.Cleanup
	result.Cleanup = func() error {
		manager.Stop()
		if next != nil {
			return next()
		}
		return nil
	}

	f.logger.Info("Enabled fetch cache",
		"size", config.FetchCacheSize,
		"ttl", config.FetchCacheTTL.String())
}

// Close runs the cleanup function, if any.
func (r *BackendResult) Close() error {
	if r == nil || r.Cleanup == nil {
		return nil
	}
	return r.Cleanup()
}
