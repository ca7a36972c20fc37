// Package postgres is the hosted remote backend: one jsonb records table,
// every row scoped by user and application id.
package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"gigledger/internal/core"
	"gigledger/internal/gateway"
)

// Server-owned fields are layered over the stored document on the way out.
const recordJSON = `data || jsonb_build_object('id', id::text, 'createdAt', created_at, 'updatedAt', updated_at)`

type Gateway struct {
	pool     *pgxpool.Pool
	identity gateway.Identity
	appID    string
}

var _ gateway.Gateway = (*Gateway)(nil)

// NewPool opens a pgx pool with conservative sizing for a single-user client.
func NewPool(ctx context.Context, databaseURL string) (*pgxpool.Pool, error) {
	config, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse database url: %w", err)
	}
	config.MaxConns = 4
	config.MinConns = 1
	config.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("connect: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return pool, nil
}

func New(pool *pgxpool.Pool, identity gateway.Identity, appID string) *Gateway {
	return &Gateway{pool: pool, identity: identity, appID: appID}
}

func (g *Gateway) user(ctx context.Context) (string, error) {
	user, ok := g.identity.UserID(ctx)
	if !ok {
		return "", gateway.ErrNotAuthenticated
	}
	return user, nil
}

func (g *Gateway) FetchAll(ctx context.Context, c core.Collection) ([]json.RawMessage, error) {
	user, err := g.user(ctx)
	if err != nil {
		return nil, err
	}
	rows, err := g.pool.Query(ctx, `
		SELECT `+recordJSON+`
		FROM records
		WHERE user_id = $1 AND app_id = $2 AND collection = $3
		ORDER BY created_at, id`,
		user, g.appID, string(c))
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", c, err)
	}
	defer rows.Close()

	out := make([]json.RawMessage, 0)
	for rows.Next() {
		var raw []byte
		if err := rows.Scan(&raw); err != nil {
			return nil, fmt.Errorf("scan %s: %w", c, err)
		}
		out = append(out, json.RawMessage(raw))
	}
	return out, rows.Err()
}

func (g *Gateway) Create(ctx context.Context, c core.Collection, record json.RawMessage) (json.RawMessage, error) {
	user, err := g.user(ctx)
	if err != nil {
		return nil, err
	}
	if _, err := gateway.DecodeObject(record); err != nil {
		return nil, err
	}
	var raw []byte
	err = g.pool.QueryRow(ctx, `
		INSERT INTO records (user_id, app_id, collection, data)
		VALUES ($1, $2, $3, $4::jsonb - 'id' - 'createdAt' - 'updatedAt')
		RETURNING `+recordJSON,
		user, g.appID, string(c), string(record)).Scan(&raw)
	if err != nil {
		return nil, fmt.Errorf("insert %s: %w", c, err)
	}
	return raw, nil
}

func (g *Gateway) Update(ctx context.Context, c core.Collection, id string, patch json.RawMessage) (json.RawMessage, error) {
	user, err := g.user(ctx)
	if err != nil {
		return nil, err
	}
	if _, err := uuid.Parse(id); err != nil {
		return nil, gateway.ErrNotFound
	}
	if _, err := gateway.DecodeObject(patch); err != nil {
		return nil, err
	}
	var raw []byte
	err = g.pool.QueryRow(ctx, `
		UPDATE records
		SET data = data || ($5::jsonb - 'id' - 'createdAt' - 'updatedAt'), updated_at = now()
		WHERE id = $1 AND user_id = $2 AND app_id = $3 AND collection = $4
		RETURNING `+recordJSON,
		id, user, g.appID, string(c), string(patch)).Scan(&raw)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, gateway.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("update %s: %w", c, err)
	}
	return raw, nil
}

func (g *Gateway) Remove(ctx context.Context, c core.Collection, id string) error {
	user, err := g.user(ctx)
	if err != nil {
		return err
	}
	if _, err := uuid.Parse(id); err != nil {
		return gateway.ErrNotFound
	}
	tag, err := g.pool.Exec(ctx, `
		DELETE FROM records
		WHERE id = $1 AND user_id = $2 AND app_id = $3 AND collection = $4`,
		id, user, g.appID, string(c))
	if err != nil {
		return fmt.Errorf("delete %s: %w", c, err)
	}
	if tag.RowsAffected() == 0 {
		return gateway.ErrNotFound
	}
	return nil
}
