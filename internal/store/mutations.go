package store

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"gigledger/internal/core"
	"gigledger/internal/gateway"
	"gigledger/internal/limits"
	"gigledger/internal/log"
)

type validator interface {
	Validate() error
}

// collectionOps gives the generic mutation paths access to one collection.
type collectionOps[T validator] struct {
	collection core.Collection
	items      func(st *state) *[]T
	id         func(T) string
}

var (
	gigOps = collectionOps[core.Gig]{
		collection: core.Gigs,
		items:      func(st *state) *[]core.Gig { return &st.gigs },
		id:         func(g core.Gig) string { return g.ID },
	}
	expenseOps = collectionOps[core.Expense]{
		collection: core.Expenses,
		items:      func(st *state) *[]core.Expense { return &st.expenses },
		id:         func(e core.Expense) string { return e.ID },
	}
	clientOps = collectionOps[core.Client]{
		collection: core.Clients,
		items:      func(st *state) *[]core.Client { return &st.clients },
		id:         func(c core.Client) string { return c.ID },
	}
	invoiceOps = collectionOps[core.Invoice]{
		collection: core.Invoices,
		items:      func(st *state) *[]core.Invoice { return &st.invoices },
		id:         func(i core.Invoice) string { return i.ID },
	}
	goalOps = collectionOps[core.SavingsGoal]{
		collection: core.SavingsGoals,
		items:      func(st *state) *[]core.SavingsGoal { return &st.goals },
		id:         func(g core.SavingsGoal) string { return g.ID },
	}
)

func (ops collectionOps[T]) find(st *state, id string) (T, int) {
	items := *ops.items(st)
	for i, rec := range items {
		if ops.id(rec) == id {
			return rec, i
		}
	}
	var zero T
	return zero, -1
}

func (ops collectionOps[T]) replace(st *state, rec T) {
	items := *ops.items(st)
	if _, i := ops.find(st, ops.id(rec)); i >= 0 {
		items[i] = rec
	}
}

func (ops collectionOps[T]) delete(st *state, id string) {
	*ops.items(st) = slices.DeleteFunc(*ops.items(st), func(rec T) bool { return ops.id(rec) == id })
}

// creation describes how one collection counts toward its limit and how a
// record is completed in local-only mode.
type creation[T validator] struct {
	feature limits.Feature
	count   func(st *state, now time.Time) int
	local   func(rec *T, id string, now time.Time)
}

func add[T validator](ctx context.Context, s *Store, ops collectionOps[T], cr creation[T], rec T) (T, Result) {
	var zero T
	c := ops.collection

	if err := rec.Validate(); err != nil {
		res := failed(fmt.Errorf("invalid %s record: %w", c, err))
		s.record(c, log.OpCreate, res)
		return zero, res
	}

	stored, snap, res := func() (T, *Snapshot, Result) {
		lock := s.colMu[c]
		lock.Lock()
		defer lock.Unlock()

		now := s.now()
		s.mu.RLock()
		n := cr.count(&s.st, now)
		premium := s.st.premium
		s.mu.RUnlock()

		if s.policy.IsBlocked(cr.feature, n, premium) {
			s.logger.InfoContext(ctx, "Mutation blocked by free tier limit", log.NewFields().
				WithOperation(log.OpCreate).
				WithRecord(string(c), "").
				WithLimit(n, premium).
				ToSlice()...)
			return zero, nil, upgradeRequired()
		}

		stored := rec
		if s.authenticated(ctx) {
			var err error
			stored, err = gateway.Create(context.WithoutCancel(ctx), s.gw, c, rec)
			if err != nil {
				s.logger.LogError(ctx, "Failed to persist new record", err, log.OpCreate,
					log.NewFields().WithRecord(string(c), "").WithErrorType(log.ErrorTypeNetwork))
				return zero, nil, failed(fmt.Errorf("create %s: %w", c, err))
			}
		} else {
			cr.local(&stored, s.newID(), now)
		}

		snap := s.apply(func(st *state) {
			*ops.items(st) = append(*ops.items(st), stored)
		})
		return stored, &snap, accepted()
	}()

	if snap != nil {
		s.notify(*snap)
		s.emit(ctx, c, core.OpCreated, ops.id(stored))
	}
	s.record(c, log.OpCreate, res)
	return stored, res
}

// update runs a read-modify-write of one record inside the collection's
// critical section. change derives the merged record and the patch sent
// to the gateway from the current value. A missing record fails unless
// missingOK is set, in which case it is a successful no-op.
func update[T validator](ctx context.Context, s *Store, ops collectionOps[T], op, id string, missingOK bool, change func(cur T) (T, any)) (T, Result) {
	var zero T
	c := ops.collection

	stored, snap, res := func() (T, *Snapshot, Result) {
		lock := s.colMu[c]
		lock.Lock()
		defer lock.Unlock()

		s.mu.RLock()
		cur, i := ops.find(&s.st, id)
		s.mu.RUnlock()
		if i < 0 {
			if missingOK {
				return zero, nil, accepted()
			}
			return zero, nil, failed(fmt.Errorf("%s %q: %w", c, id, core.ErrNotFound))
		}

		merged, patch := change(cur)
		if err := merged.Validate(); err != nil {
			return zero, nil, failed(fmt.Errorf("invalid %s record: %w", c, err))
		}

		stored := merged
		if s.authenticated(ctx) {
			var err error
			stored, err = gateway.Update[T](context.WithoutCancel(ctx), s.gw, c, id, patch)
			if err != nil {
				s.logger.LogError(ctx, "Failed to persist record update", err, op,
					log.NewFields().WithRecord(string(c), id).WithErrorType(log.ErrorTypeNetwork))
				return zero, nil, failed(fmt.Errorf("update %s %q: %w", c, id, err))
			}
		}

		snap := s.apply(func(st *state) { ops.replace(st, stored) })
		return stored, &snap, accepted()
	}()

	if snap != nil {
		s.notify(*snap)
		s.emit(ctx, c, core.OpUpdated, id)
	}
	s.record(c, op, res)
	return stored, res
}

func remove[T validator](ctx context.Context, s *Store, ops collectionOps[T], id string) Result {
	c := ops.collection

	snap, res := func() (*Snapshot, Result) {
		lock := s.colMu[c]
		lock.Lock()
		defer lock.Unlock()

		s.mu.RLock()
		_, i := ops.find(&s.st, id)
		s.mu.RUnlock()
		if i < 0 {
			return nil, failed(fmt.Errorf("%s %q: %w", c, id, core.ErrNotFound))
		}

		if s.authenticated(ctx) {
			err := s.gw.Remove(context.WithoutCancel(ctx), c, id)
			// Already gone remotely: converge by dropping the local copy.
			if err != nil && !errors.Is(err, gateway.ErrNotFound) {
				s.logger.LogError(ctx, "Failed to delete remote record", err, log.OpDelete,
					log.NewFields().WithRecord(string(c), id).WithErrorType(log.ErrorTypeNetwork))
				return nil, failed(fmt.Errorf("delete %s %q: %w", c, id, err))
			}
		}

		snap := s.apply(func(st *state) { ops.delete(st, id) })
		return &snap, accepted()
	}()

	if snap != nil {
		s.notify(*snap)
		s.emit(ctx, c, core.OpDeleted, id)
	}
	s.record(c, log.OpDelete, res)
	return res
}
