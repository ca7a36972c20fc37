package backend

import (
	"errors"
	"fmt"
	"time"

	"gigledger/internal/config"
	"gigledger/internal/gateway"
)

// Config holds configuration for backend creation
type Config struct {
	Type     BackendType
	AppID    string
	Identity gateway.Identity

	// Postgres specific
	DatabaseURL string

	// Read-through cache; a zero size disables it.
	FetchCacheSize int
	FetchCacheTTL  time.Duration
}

// FromAppConfig converts the application config to backend config
func FromAppConfig(appConfig *config.Config) (Config, error) {
	if appConfig == nil {
		return Config{}, errors.New("app config is nil")
	}

	backendType := BackendType(appConfig.DataBackend)
	if !backendType.IsValid() {
		return Config{}, fmt.Errorf("invalid backend type in config: %s", appConfig.DataBackend)
	}

	return Config{
		Type:           backendType,
		AppID:          appConfig.AppID,
		Identity:       gateway.Static(appConfig.UserID),
		DatabaseURL:    appConfig.DatabaseURL,
		FetchCacheSize: appConfig.FetchCacheSize,
		FetchCacheTTL:  appConfig.FetchCacheTTL,
	}, nil
}

// Validate validates the backend configuration
func (c Config) Validate() error {
	if !c.Type.IsValid() {
		return fmt.Errorf("invalid backend type: %s", c.Type)
	}
	if c.AppID == "" {
		return errors.New("app id is required")
	}
	if c.Identity == nil {
		return errors.New("identity is required")
	}
	if c.Type == PostgresBackend && c.DatabaseURL == "" {
		return errors.New("database URL is required for postgres backend")
	}
	if c.FetchCacheSize > 0 && c.FetchCacheTTL <= 0 {
		return errors.New("fetch cache TTL must be positive when the cache is enabled")
	}
	return nil
}
