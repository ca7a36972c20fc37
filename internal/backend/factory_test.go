package backend

import (
	"context"
	"testing"
	"time"

	"gigledger/internal/config"
	"gigledger/internal/core"
	"gigledger/internal/gateway"
	"gigledger/internal/gateway/memory"
)

func TestBackendType_IsValid(t *testing.T) {
	tests := []struct {
		bt   BackendType
		want bool
	}{
		{MemoryBackend, true},
		{PostgresBackend, true},
		{"sqlite", false},
		{"", false},
	}
	for _, tt := range tests {
		if got := tt.bt.IsValid(); got != tt.want {
			t.Errorf("BackendType(%q).IsValid() = %v, want %v", tt.bt, got, tt.want)
		}
	}
}

func TestFromAppConfig(t *testing.T) {
	if _, err := FromAppConfig(nil); err == nil {
		t.Error("expected error for nil config")
	}

	cfg, err := FromAppConfig(&config.Config{
		AppID:          "app",
		UserID:         "user-1",
		DataBackend:    "memory",
		FetchCacheSize: 10,
		FetchCacheTTL:  time.Minute,
	})
	if err != nil {
		t.Fatalf("FromAppConfig() error = %v", err)
	}
	if cfg.Type != MemoryBackend || cfg.AppID != "app" || cfg.FetchCacheSize != 10 {
		t.Errorf("unexpected config %+v", cfg)
	}
	if user, ok := cfg.Identity.UserID(context.Background()); !ok || user != "user-1" {
		t.Errorf("identity = %q, %v", user, ok)
	}

	if _, err := FromAppConfig(&config.Config{DataBackend: "sheets"}); err == nil {
		t.Error("expected error for unknown backend")
	}
}

func TestConfig_Validate(t *testing.T) {
	base := Config{Type: MemoryBackend, AppID: "app", Identity: gateway.Anonymous{}}

	tests := []struct {
		name    string
		modify  func(c *Config)
		wantErr bool
	}{
		{"valid", func(c *Config) {}, false},
		{"invalid type", func(c *Config) { c.Type = "sqlite" }, true},
		{"missing app id", func(c *Config) { c.AppID = "" }, true},
		{"missing identity", func(c *Config) { c.Identity = nil }, true},
		{"postgres without url", func(c *Config) { c.Type = PostgresBackend }, true},
		{"cache without ttl", func(c *Config) { c.FetchCacheSize = 5 }, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := base
			tt.modify(&cfg)
			if err := cfg.Validate(); (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestCreateBackend_Memory(t *testing.T) {
	ctx := context.Background()
	f := NewFactory(nil)

	res, err := f.CreateBackend(ctx, Config{Type: MemoryBackend, AppID: "app", Identity: gateway.Static("u1")})
	if err != nil {
		t.Fatalf("CreateBackend() error = %v", err)
	}
	defer res.Close()

	if _, ok := res.Gateway.(*memory.Gateway); !ok {
		t.Errorf("expected *memory.Gateway without cache, got %T", res.Gateway)
	}
	if _, err := res.Gateway.Create(ctx, core.Gigs, []byte(`{"title":"a"}`)); err != nil {
		t.Errorf("Create() error = %v", err)
	}
}

func TestCreateBackend_CachedMemory(t *testing.T) {
	ctx := context.Background()
	f := NewFactory(nil)

	res, err := f.CreateBackend(ctx, Config{
		Type:           MemoryBackend,
		AppID:          "app",
		Identity:       gateway.Static("u1"),
		FetchCacheSize: 8,
		FetchCacheTTL:  time.Minute,
	})
	if err != nil {
		t.Fatalf("CreateBackend() error = %v", err)
	}

	if _, ok := res.Gateway.(*gateway.Cached); !ok {
		t.Fatalf("expected *gateway.Cached, got %T", res.Gateway)
	}
	if _, err := res.Gateway.Create(ctx, core.Gigs, []byte(`{"title":"a"}`)); err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	rows, err := res.Gateway.FetchAll(ctx, core.Gigs)
	if err != nil || len(rows) != 1 {
		t.Fatalf("FetchAll() = %d rows, err %v", len(rows), err)
	}
	if err := res.Close(); err != nil {
		t.Errorf("Close() error = %v", err)
	}
}

func TestCreateBackend_InvalidConfig(t *testing.T) {
	f := NewFactory(nil)
	if _, err := f.CreateBackend(context.Background(), Config{Type: "sheets"}); err == nil {
		t.Error("expected error for invalid config")
	}
}
