package store_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"gigledger/internal/core"
	"gigledger/internal/gateway"
	"gigledger/internal/gateway/memory"
	"gigledger/internal/store"
)

var errNetwork = errors.New("connection reset by peer")

type testClock struct {
	mu sync.Mutex
	t  time.Time
}

func newClock(t time.Time) *testClock { return &testClock{t: t} }

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *testClock) Set(t time.Time) {
	c.mu.Lock()
	c.t = t
	c.mu.Unlock()
}

// flakyGateway wraps a working gateway and fails the calls whose error is set.
type flakyGateway struct {
	gateway.Gateway
	fetchErr  error
	createErr error
	updateErr error
	removeErr error
	creates   atomic.Int32
}

func (g *flakyGateway) FetchAll(ctx context.Context, c core.Collection) ([]json.RawMessage, error) {
	if g.fetchErr != nil {
		return nil, g.fetchErr
	}
	return g.Gateway.FetchAll(ctx, c)
}

func (g *flakyGateway) Create(ctx context.Context, c core.Collection, rec json.RawMessage) (json.RawMessage, error) {
	g.creates.Add(1)
	if g.createErr != nil {
		return nil, g.createErr
	}
	return g.Gateway.Create(ctx, c, rec)
}

func (g *flakyGateway) Update(ctx context.Context, c core.Collection, id string, patch json.RawMessage) (json.RawMessage, error) {
	if g.updateErr != nil {
		return nil, g.updateErr
	}
	return g.Gateway.Update(ctx, c, id, patch)
}

func (g *flakyGateway) Remove(ctx context.Context, c core.Collection, id string) error {
	if g.removeErr != nil {
		return g.removeErr
	}
	return g.Gateway.Remove(ctx, c, id)
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []core.RecordEvent
	err    error
}

func (p *recordingPublisher) PublishRecordEvent(_ context.Context, ev core.RecordEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, ev)
	return p.err
}

type countingRecorder struct {
	mu     sync.Mutex
	counts map[string]int
}

func (r *countingRecorder) RecordMutation(c core.Collection, op string, outcome store.Outcome) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.counts == nil {
		r.counts = make(map[string]int)
	}
	r.counts[fmt.Sprintf("%s/%s/%s", c, op, outcome)]++
}

func (r *countingRecorder) get(key string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.counts[key]
}

var march15 = time.Date(2024, time.March, 15, 12, 0, 0, 0, time.UTC)

var dueApril = core.NewDate(2024, 4, 30)

func newLocalStore(t *testing.T, clock *testClock) *store.Store {
	t.Helper()
	if clock == nil {
		clock = newClock(march15)
	}
	return store.New(store.Options{Clock: clock.Now})
}

func newRemoteStore(t *testing.T, gw gateway.Gateway) *store.Store {
	t.Helper()
	return store.New(store.Options{
		Gateway:  gw,
		Identity: gateway.Static("user-1"),
		Clock:    newClock(march15).Now,
	})
}

func newMemoryBackend() *memory.Gateway {
	return memory.New(gateway.Static("user-1"), "gigledger-test")
}

func gig(title string, cents int64, status core.GigStatus) core.Gig {
	return core.Gig{
		Title:    title,
		Platform: "Upwork",
		Amount:   core.Cents(cents),
		Date:     core.NewDate(2024, 3, 10),
		Status:   status,
	}
}

func expense(title string, cents int64, date core.Date) core.Expense {
	return core.Expense{
		Title:    title,
		Category: "Supplies",
		Amount:   core.Cents(cents),
		Date:     date,
	}
}
