package postgres

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gigledger/internal/core"
	"gigledger/internal/gateway"
)

func setupTestPool(t *testing.T) *pgxpool.Pool {
	databaseURL := os.Getenv("DATABASE_URL")
	if databaseURL == "" {
		t.Skip("DATABASE_URL not set")
	}
	ctx := context.Background()
	schema := fmt.Sprintf("test_%d", time.Now().UnixNano())

	admin, err := pgx.Connect(ctx, databaseURL)
	require.NoError(t, err)
	_, err = admin.Exec(ctx, "CREATE SCHEMA "+schema)
	require.NoError(t, err)

	config, err := pgxpool.ParseConfig(databaseURL)
	require.NoError(t, err)
	config.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		_, err := conn.Exec(ctx, "SET search_path TO "+schema)
		return err
	}
	pool, err := pgxpool.NewWithConfig(ctx, config)
	require.NoError(t, err)
	require.NoError(t, RunMigrations(pool))

	t.Cleanup(func() {
		pool.Close()
		_, _ = admin.Exec(ctx, "DROP SCHEMA "+schema+" CASCADE")
		_ = admin.Close(ctx)
	})
	return pool
}

func TestGateway_CRUD(t *testing.T) {
	pool := setupTestPool(t)
	ctx := context.Background()
	g := New(pool, gateway.Static("user-1"), "gigledger")

	created, err := gateway.Create(ctx, g, core.Gigs, core.Gig{
		ID: "local", Title: "Ride", Platform: "Uber", Amount: core.Cents(2500),
		Date: core.NewDate(2025, 5, 1), Status: core.GigPending,
	})
	require.NoError(t, err)
	assert.NotEqual(t, "local", created.ID)

	updated, err := gateway.Update[core.Gig](ctx, g, core.Gigs, created.ID, map[string]any{"status": core.GigCompleted})
	require.NoError(t, err)
	assert.Equal(t, core.GigCompleted, updated.Status)
	assert.Equal(t, int64(2500), updated.Amount.Cents)

	gigs, err := gateway.FetchAll[core.Gig](ctx, g, core.Gigs)
	require.NoError(t, err)
	require.Len(t, gigs, 1)
	assert.Equal(t, created.ID, gigs[0].ID)

	require.NoError(t, g.Remove(ctx, core.Gigs, created.ID))
	assert.ErrorIs(t, g.Remove(ctx, core.Gigs, created.ID), gateway.ErrNotFound)
}

func TestGateway_ScopesByUser(t *testing.T) {
	pool := setupTestPool(t)
	ctx := context.Background()
	alice := New(pool, gateway.Static("alice"), "gigledger")
	bob := New(pool, gateway.Static("bob"), "gigledger")

	created, err := gateway.Create(ctx, alice, core.Clients, core.Client{Name: "Acme"})
	require.NoError(t, err)

	clients, err := gateway.FetchAll[core.Client](ctx, bob, core.Clients)
	require.NoError(t, err)
	assert.Empty(t, clients)
	assert.ErrorIs(t, bob.Remove(ctx, core.Clients, created.ID), gateway.ErrNotFound)
}

func TestGateway_InvalidIDIsNotFound(t *testing.T) {
	g := New(nil, gateway.Static("u"), "app")
	_, err := g.Update(context.Background(), core.Gigs, "not-a-uuid", []byte(`{}`))
	assert.ErrorIs(t, err, gateway.ErrNotFound)
	assert.ErrorIs(t, g.Remove(context.Background(), core.Gigs, "not-a-uuid"), gateway.ErrNotFound)
}
