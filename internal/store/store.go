// Package store is the record store: the single owner of gigs, expenses,
// clients, invoices and savings goals for one user session. Every
// mutation is gated by the free-tier policy, persisted remotely when the
// user is authenticated, and followed by a totals recompute and an
// observer notification.
package store

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"gigledger/internal/core"
	"gigledger/internal/gateway"
	"gigledger/internal/limits"
	"gigledger/internal/log"
	"gigledger/internal/storage"
)

var (
	// ErrLimitReached is carried by a Result whose RequiresUpgrade is set.
	ErrLimitReached = errors.New("free tier limit reached")
	// ErrInvalidRecord rejects a refresh or rehydrate holding a record the
	// mutation paths would not accept.
	ErrInvalidRecord = errors.New("invalid stored record")
)

// Result is the outcome of a mutation. Exactly one of Success,
// RequiresUpgrade or a non-nil Err describes it.
type Result struct {
	Success         bool
	RequiresUpgrade bool
	Err             error
}

func accepted() Result { return Result{Success: true} }
func upgradeRequired() Result { return Result{RequiresUpgrade: true, Err: ErrLimitReached} }
func failed(err error) Result { return Result{Err: err} }

// Options wires a Store. Only Policy is required to be meaningful; the
// zero values of the rest select local-only mode, default tax rates, the
// wall clock and uuid ids.
type Options struct {
	Gateway   gateway.Gateway
	Identity  gateway.Identity
	Policy    *limits.Policy
	TaxRates  core.TaxRates
	Cache     storage.Cache
	Publisher Publisher
	Recorder  Recorder
	Clock     func() time.Time
	NewID     func() string
	Logger    *log.Logger
}

type state struct {
	gigs     []core.Gig
	expenses []core.Expense
	clients  []core.Client
	invoices []core.Invoice
	goals    []core.SavingsGoal
	totals   core.Totals
	premium  bool
	version  uint64
}

type Store struct {
	gw        gateway.Gateway
	identity  gateway.Identity
	policy    *limits.Policy
	rates     core.TaxRates
	cache     storage.Cache
	publisher Publisher
	recorder  Recorder
	now       func() time.Time
	newID     func() string
	logger    *log.Logger

	// colMu serializes count check, remote write and merge per collection.
	colMu map[core.Collection]*sync.Mutex

	mu sync.RWMutex
	st state

	subMu   sync.Mutex
	subs    map[int]func(Snapshot)
	nextSub int
}

func New(opts Options) *Store {
	s := &Store{
		gw:        opts.Gateway,
		identity:  opts.Identity,
		policy:    opts.Policy,
		rates:     opts.TaxRates,
		cache:     opts.Cache,
		publisher: opts.Publisher,
		recorder:  opts.Recorder,
		now:       opts.Clock,
		newID:     opts.NewID,
		logger:    opts.Logger,
		colMu:     make(map[core.Collection]*sync.Mutex),
		subs:      make(map[int]func(Snapshot)),
	}
	if s.identity == nil {
		s.identity = gateway.Anonymous{}
	}
	if s.policy == nil {
		s.policy = limits.Default()
	}
	if s.rates == (core.TaxRates{}) {
		s.rates = core.DefaultTaxRates
	}
	if s.now == nil {
		s.now = time.Now
	}
	if s.newID == nil {
		s.newID = uuid.NewString
	}
	if s.logger == nil {
		s.logger = log.Discard()
	}
	s.logger = s.logger.WithComponent(log.ComponentStore)
	for _, c := range core.AllCollections() {
		s.colMu[c] = &sync.Mutex{}
	}
	return s
}

// authenticated reports whether writes go to the remote gateway.
func (s *Store) authenticated(ctx context.Context) bool {
	if s.gw == nil {
		return false
	}
	_, ok := s.identity.UserID(ctx)
	return ok
}

// SetPremium overwrites the entitlement flag. It is not coordinated with
// mutations already past their limit check.
func (s *Store) SetPremium(premium bool) {
	s.mu.Lock()
	if s.st.premium == premium {
		s.mu.Unlock()
		return
	}
	s.st.premium = premium
	s.st.version++
	snap := s.snapshotLocked()
	s.mu.Unlock()
	s.notify(snap)
}

func (s *Store) IsPremium() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.st.premium
}

// recomputeLocked derives totals and client running totals. Callers hold mu.
func (s *Store) recomputeLocked() {
	s.st.totals = core.ComputeTotals(s.st.gigs, s.st.expenses, s.rates)
	s.st.clients = core.ReconcileClients(s.st.clients, s.st.gigs)
	s.st.version++
}

// apply mutates the state under mu and recomputes. The caller notifies
// observers with the returned snapshot once it has released its own locks.
func (s *Store) apply(fn func(st *state)) Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	fn(&s.st)
	s.recomputeLocked()
	return s.snapshotLocked()
}
