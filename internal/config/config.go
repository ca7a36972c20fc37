package config

import (
	"encoding/hex"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"time"
)

const (
	BackendMemory   = "memory"
	BackendPostgres = "postgres"
)

type Config struct {
	// Identity. An empty UserID runs the store in local-only mode.
	AppID  string
	UserID string

	// Remote backend
	DataBackend string
	DatabaseURL string

	// Local cache
	CacheDBPath string
	CacheKey    string // hex, 32 bytes; empty disables sealing

	// AMQP
	AMQPURL              string
	AMQPExchange         string
	AMQPEventsQueue      string
	AMQPEntitlementQueue string

	// Read-through cache in front of the backend
	FetchCacheSize int
	FetchCacheTTL  time.Duration

	// Daemon
	PersistInterval time.Duration
	MetricsAddr     string

	// Export
	GoogleSpreadsheetID   string
	GoogleCredentialsFile string

	// Logging
	LogLevel  string
	LogFormat string
}

func Load() *Config {
	return &Config{
		AppID:  getEnv("APP_ID", "gigledger"),
		UserID: getEnv("USER_ID", ""),

		DataBackend: getEnv("DATA_BACKEND", BackendMemory),
		DatabaseURL: getEnv("DATABASE_URL", ""),

		CacheDBPath: getEnv("CACHE_DB_PATH", "./data/gigledger.db"),
		CacheKey:    getEnv("CACHE_KEY", ""),

		AMQPURL:              getEnv("AMQP_URL", ""),
		AMQPExchange:         getEnv("AMQP_EXCHANGE", "gigledger"),
		AMQPEventsQueue:      getEnv("AMQP_EVENTS_QUEUE", "record_events"),
		AMQPEntitlementQueue: getEnv("AMQP_ENTITLEMENT_QUEUE", "entitlements"),

		FetchCacheSize: getEnvInt("FETCH_CACHE_SIZE", 64),
		FetchCacheTTL:  getEnvDuration("FETCH_CACHE_TTL", 2*time.Minute),

		PersistInterval: getEnvDuration("PERSIST_INTERVAL", 30*time.Second),
		MetricsAddr:     getEnv("METRICS_ADDR", ":9090"),

		GoogleSpreadsheetID:   getEnv("GOOGLE_SPREADSHEET_ID", ""),
		GoogleCredentialsFile: getEnv("GOOGLE_CREDENTIALS_FILE", ""),

		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogFormat: getEnv("LOG_FORMAT", "text"),
	}
}

// Authenticated reports whether a user id is configured.
func (c *Config) Authenticated() bool {
	return c.UserID != ""
}

// Validate validates the configuration and returns an error if invalid
func (c *Config) Validate() error {
	var errors []string

	if strings.TrimSpace(c.AppID) == "" {
		errors = append(errors, "app id cannot be empty")
	}

	validBackends := []string{BackendMemory, BackendPostgres}
	if !slices.Contains(validBackends, c.DataBackend) {
		errors = append(errors, fmt.Sprintf("invalid data backend '%s': must be one of %v", c.DataBackend, validBackends))
	}

	// The memory backend starts empty in every process; refreshing a signed-in
	// user from it would replace the cached records with nothing.
	if c.DataBackend == BackendMemory && c.Authenticated() {
		errors = append(errors, "memory backend cannot hold records for a signed-in user: set DATA_BACKEND=postgres or unset USER_ID")
	}

	if c.DataBackend == BackendPostgres {
		if c.DatabaseURL == "" {
			errors = append(errors, "database URL is required when using postgres backend")
		} else if u, err := url.Parse(c.DatabaseURL); err != nil {
			errors = append(errors, fmt.Sprintf("invalid database URL: %v", err))
		} else if u.Scheme != "postgres" && u.Scheme != "postgresql" {
			errors = append(errors, fmt.Sprintf("invalid database URL scheme '%s': must be 'postgres' or 'postgresql'", u.Scheme))
		}
	}

	if c.CacheDBPath == "" {
		errors = append(errors, "cache database path cannot be empty")
	} else {
		dir := filepath.Dir(c.CacheDBPath)
		if dir != "." && dir != "" {
			if _, err := os.Stat(dir); os.IsNotExist(err) {
				if err := os.MkdirAll(dir, 0755); err != nil {
					errors = append(errors, fmt.Sprintf("cannot create cache database directory '%s': %v", dir, err))
				}
			}
		}
	}

	if c.CacheKey != "" {
		if key, err := hex.DecodeString(c.CacheKey); err != nil || len(key) != 32 {
			errors = append(errors, "invalid cache key: must be 64 hex characters")
		}
	}

	if c.AMQPURL != "" {
		if parsedURL, err := url.Parse(c.AMQPURL); err != nil {
			errors = append(errors, fmt.Sprintf("invalid AMQP URL '%s': %v", c.AMQPURL, err))
		} else if parsedURL.Scheme != "amqp" && parsedURL.Scheme != "amqps" {
			errors = append(errors, fmt.Sprintf("invalid AMQP URL scheme '%s': must be 'amqp' or 'amqps'", parsedURL.Scheme))
		}
		if c.AMQPExchange == "" {
			errors = append(errors, "AMQP exchange name cannot be empty when AMQP URL is provided")
		}
		if c.AMQPEventsQueue == "" || c.AMQPEntitlementQueue == "" {
			errors = append(errors, "AMQP queue names cannot be empty when AMQP URL is provided")
		}
	}

	if c.FetchCacheSize < 1 {
		errors = append(errors, fmt.Sprintf("invalid fetch cache size %d: must be at least 1", c.FetchCacheSize))
	} else if c.FetchCacheSize > 10000 {
		errors = append(errors, fmt.Sprintf("invalid fetch cache size %d: must be at most 10000", c.FetchCacheSize))
	}
	if c.FetchCacheTTL < time.Second {
		errors = append(errors, fmt.Sprintf("invalid fetch cache TTL %v: must be at least 1 second", c.FetchCacheTTL))
	}

	if c.PersistInterval < time.Second {
		errors = append(errors, fmt.Sprintf("invalid persist interval %v: must be at least 1 second", c.PersistInterval))
	} else if c.PersistInterval > 24*time.Hour {
		errors = append(errors, fmt.Sprintf("invalid persist interval %v: must be at most 24 hours", c.PersistInterval))
	}

	if c.GoogleCredentialsFile != "" {
		if _, err := os.Stat(c.GoogleCredentialsFile); os.IsNotExist(err) {
			errors = append(errors, fmt.Sprintf("Google credentials file does not exist: %s", c.GoogleCredentialsFile))
		}
	}

	if len(errors) > 0 {
		return fmt.Errorf("configuration validation failed:\n- %s", strings.Join(errors, "\n- "))
	}

	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
