package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"gigledger/internal/core"
	"gigledger/internal/export"
	"gigledger/internal/gateway"
	"gigledger/internal/limits"
	"gigledger/internal/log"
)

// SnapshotKey is the local cache key holding the persisted collections.
const SnapshotKey = "gigledger-finance-storage"

// persisted is the cached shape. Only the collections are kept; totals
// and the premium flag are derived or come from the entitlement source.
type persisted struct {
	State struct {
		Gigs         []core.Gig         `json:"gigs"`
		Expenses     []core.Expense     `json:"expenses"`
		Clients      []core.Client      `json:"clients"`
		Invoices     []core.Invoice     `json:"invoices"`
		SavingsGoals []core.SavingsGoal `json:"savingsGoals"`
	} `json:"state"`
	Version int `json:"version"`
}

// lockAll blocks every mutation path. Locks are taken in a fixed order.
func (s *Store) lockAll() func() {
	cs := core.AllCollections()
	for _, c := range cs {
		s.colMu[c].Lock()
	}
	return func() {
		for i := len(cs) - 1; i >= 0; i-- {
			s.colMu[cs[i]].Unlock()
		}
	}
}

// Refresh replaces local state with the remote collections. It is a no-op
// in local-only mode. On any fetch error local state is left untouched.
func (s *Store) Refresh(ctx context.Context) error {
	if !s.authenticated(ctx) {
		return nil
	}
	start := time.Now()

	unlock := s.lockAll()
	// Another device may have written since the last read.
	if p, ok := s.gw.(gateway.Purger); ok {
		p.Purge()
	}
	var (
		gigs     []core.Gig
		expenses []core.Expense
		clients  []core.Client
		invoices []core.Invoice
		goals    []core.SavingsGoal
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		gigs, err = gateway.FetchAll[core.Gig](gctx, s.gw, core.Gigs)
		return err
	})
	g.Go(func() (err error) {
		expenses, err = gateway.FetchAll[core.Expense](gctx, s.gw, core.Expenses)
		return err
	})
	g.Go(func() (err error) {
		clients, err = gateway.FetchAll[core.Client](gctx, s.gw, core.Clients)
		return err
	})
	g.Go(func() (err error) {
		invoices, err = gateway.FetchAll[core.Invoice](gctx, s.gw, core.Invoices)
		return err
	})
	g.Go(func() (err error) {
		goals, err = gateway.FetchAll[core.SavingsGoal](gctx, s.gw, core.SavingsGoals)
		return err
	})
	if err := g.Wait(); err != nil {
		unlock()
		s.logger.LogError(ctx, "Failed to refresh from remote", err, log.OpFetch,
			log.NewFields().WithErrorType(log.ErrorTypeNetwork))
		return fmt.Errorf("refresh: %w", err)
	}

	if err := validateLoaded(gigs, expenses, clients, invoices, goals); err != nil {
		unlock()
		s.logger.LogError(ctx, "Remote returned an invalid record", err, log.OpFetch,
			log.NewFields().WithErrorType(log.ErrorTypeValidation))
		return fmt.Errorf("refresh: %w", err)
	}

	snap := s.apply(func(st *state) {
		st.gigs, st.expenses, st.clients, st.invoices, st.goals = gigs, expenses, clients, invoices, goals
	})
	unlock()
	s.notify(snap)

	s.logger.InfoContext(ctx, "Refreshed records from remote",
		log.FieldOperation, log.OpFetch,
		log.FieldCount, len(gigs)+len(expenses)+len(clients)+len(invoices)+len(goals),
		log.FieldDuration, time.Since(start).Milliseconds())
	return nil
}

// validateLoaded applies the same checks as the mutation paths, so a bad
// remote row or a hand-edited cache cannot put a negative amount into the
// totals.
func validateLoaded(gigs []core.Gig, expenses []core.Expense, clients []core.Client, invoices []core.Invoice, goals []core.SavingsGoal) error {
	if err := validateEach(core.Gigs, gigs, func(g core.Gig) string { return g.ID }); err != nil {
		return err
	}
	if err := validateEach(core.Expenses, expenses, func(e core.Expense) string { return e.ID }); err != nil {
		return err
	}
	if err := validateEach(core.Clients, clients, func(c core.Client) string { return c.ID }); err != nil {
		return err
	}
	if err := validateEach(core.Invoices, invoices, func(i core.Invoice) string { return i.ID }); err != nil {
		return err
	}
	return validateEach(core.SavingsGoals, goals, func(g core.SavingsGoal) string { return g.ID })
}

func validateEach[T interface{ Validate() error }](c core.Collection, recs []T, id func(T) string) error {
	for _, rec := range recs {
		if err := rec.Validate(); err != nil {
			return fmt.Errorf("%w: %s %q: %v", ErrInvalidRecord, c, id(rec), err)
		}
	}
	return nil
}

// Persist writes the five collections to the local cache.
func (s *Store) Persist(ctx context.Context) error {
	if s.cache == nil {
		return nil
	}
	var p persisted
	s.mu.RLock()
	p.State.Gigs = s.st.gigs
	p.State.Expenses = s.st.expenses
	p.State.Clients = s.st.clients
	p.State.Invoices = s.st.invoices
	p.State.SavingsGoals = s.st.goals
	data, err := json.Marshal(p)
	s.mu.RUnlock()
	if err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}

	if err := s.cache.Save(ctx, SnapshotKey, data); err != nil {
		s.logger.LogError(ctx, "Failed to persist snapshot", err, log.OpPersist,
			log.NewFields().WithErrorType(log.ErrorTypeDatabase))
		return fmt.Errorf("persist snapshot: %w", err)
	}
	s.logger.DebugContext(ctx, "Persisted snapshot", log.FieldKey, SnapshotKey, log.FieldBytes, len(data))
	return nil
}

// Rehydrate restores the collections saved by Persist and recomputes the
// derived totals. A missing snapshot leaves the store empty.
func (s *Store) Rehydrate(ctx context.Context) error {
	if s.cache == nil {
		return nil
	}
	data, ok, err := s.cache.Load(ctx, SnapshotKey)
	if err != nil {
		s.logger.LogError(ctx, "Failed to load snapshot", err, log.OpRehydrate,
			log.NewFields().WithErrorType(log.ErrorTypeDatabase))
		return fmt.Errorf("load snapshot: %w", err)
	}
	if !ok {
		return nil
	}
	var p persisted
	if err := json.Unmarshal(data, &p); err != nil {
		return fmt.Errorf("decode snapshot: %w", err)
	}
	if err := validateLoaded(p.State.Gigs, p.State.Expenses, p.State.Clients, p.State.Invoices, p.State.SavingsGoals); err != nil {
		s.logger.LogError(ctx, "Snapshot holds an invalid record", err, log.OpRehydrate,
			log.NewFields().WithErrorType(log.ErrorTypeValidation))
		return fmt.Errorf("rehydrate: %w", err)
	}

	unlock := s.lockAll()
	snap := s.apply(func(st *state) {
		st.gigs = p.State.Gigs
		st.expenses = p.State.Expenses
		st.clients = p.State.Clients
		st.invoices = p.State.Invoices
		st.goals = p.State.SavingsGoals
	})
	unlock()
	s.notify(snap)
	return nil
}

// Export sends gigs and expenses to exp. It is a premium feature.
func (s *Store) Export(ctx context.Context, exp export.Exporter) Result {
	snap := s.Snapshot()
	if !s.policy.IsAvailable(limits.DataExport, snap.IsPremium) {
		s.logger.InfoContext(ctx, "Export blocked by free tier limit", log.FieldOperation, log.OpExport)
		return upgradeRequired()
	}
	if err := exp.ExportGigs(ctx, snap.Gigs); err != nil {
		s.logger.LogError(ctx, "Failed to export gigs", err, log.OpExport, nil)
		return failed(fmt.Errorf("export gigs: %w", err))
	}
	if err := exp.ExportExpenses(ctx, snap.Expenses); err != nil {
		s.logger.LogError(ctx, "Failed to export expenses", err, log.OpExport, nil)
		return failed(fmt.Errorf("export expenses: %w", err))
	}
	s.logger.InfoContext(ctx, "Exported records",
		log.FieldOperation, log.OpExport,
		log.FieldCount, len(snap.Gigs)+len(snap.Expenses))
	return accepted()
}
