// Package memory is an in-process remote backend. Records are partitioned
// by (user, app) exactly like the hosted backend, which makes it a drop-in
// gateway for local development and tests.
package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"gigledger/internal/core"
	"gigledger/internal/gateway"
)

type partition struct {
	user string
	app  string
}

type record map[string]json.RawMessage

type Gateway struct {
	mu       sync.Mutex
	identity gateway.Identity
	appID    string
	now      func() time.Time
	newID    func() string
	data     map[partition]map[core.Collection][]record
}

var _ gateway.Gateway = (*Gateway)(nil)

// New creates an empty backend scoped to appID.
func New(identity gateway.Identity, appID string) *Gateway {
	return &Gateway{
		identity: identity,
		appID:    appID,
		now:      time.Now,
		newID:    uuid.NewString,
		data:     make(map[partition]map[core.Collection][]record),
	}
}

// WithClock overrides the server clock used for timestamps.
func (g *Gateway) WithClock(now func() time.Time) *Gateway {
	g.now = now
	return g
}

func (g *Gateway) scope(ctx context.Context) (partition, error) {
	user, ok := g.identity.UserID(ctx)
	if !ok {
		return partition{}, gateway.ErrNotAuthenticated
	}
	return partition{user: user, app: g.appID}, nil
}

func (g *Gateway) collection(p partition, c core.Collection) []record {
	byCollection, ok := g.data[p]
	if !ok {
		byCollection = make(map[core.Collection][]record)
		g.data[p] = byCollection
	}
	return byCollection[c]
}

func (g *Gateway) FetchAll(ctx context.Context, c core.Collection) ([]json.RawMessage, error) {
	p, err := g.scope(ctx)
	if err != nil {
		return nil, err
	}
	g.mu.Lock()
	defer g.mu.Unlock()

	rows := g.collection(p, c)
	out := make([]json.RawMessage, 0, len(rows))
	for _, r := range rows {
		raw, err := json.Marshal(r)
		if err != nil {
			return nil, fmt.Errorf("encode %s record: %w", c, err)
		}
		out = append(out, raw)
	}
	return out, nil
}

func (g *Gateway) Create(ctx context.Context, c core.Collection, body json.RawMessage) (json.RawMessage, error) {
	p, err := g.scope(ctx)
	if err != nil {
		return nil, err
	}
	fields, err := gateway.DecodeObject(body)
	if err != nil {
		return nil, err
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	ts, _ := json.Marshal(g.now().UTC())
	id, _ := json.Marshal(g.newID())
	r := record(fields)
	r["id"] = id
	r["createdAt"] = ts
	r["updatedAt"] = ts

	rows := g.collection(p, c)
	g.data[p][c] = append(rows, r)
	return json.Marshal(r)
}

func (g *Gateway) Update(ctx context.Context, c core.Collection, id string, patch json.RawMessage) (json.RawMessage, error) {
	p, err := g.scope(ctx)
	if err != nil {
		return nil, err
	}
	fields, err := gateway.DecodeObject(patch)
	if err != nil {
		return nil, err
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	rows := g.collection(p, c)
	i := indexOf(rows, id)
	if i < 0 {
		return nil, gateway.ErrNotFound
	}
	merged := make(record, len(rows[i])+len(fields))
	for k, v := range rows[i] {
		merged[k] = v
	}
	for k, v := range fields {
		if k == "id" || k == "createdAt" {
			continue
		}
		merged[k] = v
	}
	merged["updatedAt"], _ = json.Marshal(g.now().UTC())
	rows[i] = merged
	return json.Marshal(merged)
}

func (g *Gateway) Remove(ctx context.Context, c core.Collection, id string) error {
	p, err := g.scope(ctx)
	if err != nil {
		return err
	}
	g.mu.Lock()
	defer g.mu.Unlock()

	rows := g.collection(p, c)
	i := indexOf(rows, id)
	if i < 0 {
		return gateway.ErrNotFound
	}
	g.data[p][c] = append(rows[:i:i], rows[i+1:]...)
	return nil
}

// Len returns the number of records the current user has in c.
func (g *Gateway) Len(ctx context.Context, c core.Collection) int {
	p, err := g.scope(ctx)
	if err != nil {
		return 0
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.collection(p, c))
}

func indexOf(rows []record, id string) int {
	for i, r := range rows {
		var rid string
		if err := json.Unmarshal(r["id"], &rid); err == nil && rid == id {
			return i
		}
	}
	return -1
}
