package gateway

import (
	"context"
	"encoding/json"

	"gigledger/internal/cache"
	"gigledger/internal/core"
)

// Cached is a read-through decorator: FetchAll results are kept per
// (user, collection) and dropped on any write to that collection.
type Cached struct {
	next     Gateway
	identity Identity
	cache    cache.Cache[[]json.RawMessage]
}

var _ Gateway = (*Cached)(nil)

// Purger is implemented by gateways that hold cached reads. Purge makes the
// next FetchAll go to the backend.
type Purger interface {
	Purge()
}

var _ Purger = (*Cached)(nil)

func NewCached(next Gateway, identity Identity, c cache.Cache[[]json.RawMessage]) *Cached {
	return &Cached{next: next, identity: identity, cache: c}
}

func (g *Cached) key(ctx context.Context, c core.Collection) (string, bool) {
	user, ok := g.identity.UserID(ctx)
	if !ok {
		return "", false
	}
	return user + "|" + string(c), true
}

func (g *Cached) FetchAll(ctx context.Context, c core.Collection) ([]json.RawMessage, error) {
	key, ok := g.key(ctx, c)
	if ok {
		if hit, found := g.cache.Get(key); found {
			return append([]json.RawMessage(nil), hit...), nil
		}
	}
	raws, err := g.next.FetchAll(ctx, c)
	if err != nil {
		return nil, err
	}
	if ok {
		g.cache.Set(key, append([]json.RawMessage(nil), raws...))
	}
	return raws, nil
}

func (g *Cached) Create(ctx context.Context, c core.Collection, record json.RawMessage) (json.RawMessage, error) {
	defer g.invalidate(ctx, c)
	return g.next.Create(ctx, c, record)
}

func (g *Cached) Update(ctx context.Context, c core.Collection, id string, patch json.RawMessage) (json.RawMessage, error) {
	defer g.invalidate(ctx, c)
	return g.next.Update(ctx, c, id, patch)
}

func (g *Cached) Remove(ctx context.Context, c core.Collection, id string) error {
	defer g.invalidate(ctx, c)
	return g.next.Remove(ctx, c, id)
}

func (g *Cached) invalidate(ctx context.Context, c core.Collection) {
	if key, ok := g.key(ctx, c); ok {
		g.cache.Delete(key)
	}
}

// Purge drops every cached collection.
func (g *Cached) Purge() {
	g.cache.Purge()
}
