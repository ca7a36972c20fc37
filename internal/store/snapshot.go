package store

import (
	"slices"

	"gigledger/internal/core"
	"gigledger/internal/limits"
)

// Snapshot is a deep copy of the store's state. Version increases with
// every change, so an observer can discard a snapshot older than one it
// has already seen.
type Snapshot struct {
	Gigs         []core.Gig
	Expenses     []core.Expense
	Clients      []core.Client
	Invoices     []core.Invoice
	SavingsGoals []core.SavingsGoal
	Totals       core.Totals
	IsPremium    bool
	Version      uint64
}

func (s *Store) snapshotLocked() Snapshot {
	snap := Snapshot{
		Gigs:         slices.Clone(s.st.gigs),
		Expenses:     slices.Clone(s.st.expenses),
		Clients:      slices.Clone(s.st.clients),
		Invoices:     make([]core.Invoice, len(s.st.invoices)),
		SavingsGoals: make([]core.SavingsGoal, len(s.st.goals)),
		Totals:       s.st.totals,
		IsPremium:    s.st.premium,
		Version:      s.st.version,
	}
	for i, inv := range s.st.invoices {
		inv.Items = slices.Clone(inv.Items)
		snap.Invoices[i] = inv
	}
	for i, g := range s.st.goals {
		if g.Deadline != nil {
			d := *g.Deadline
			g.Deadline = &d
		}
		snap.SavingsGoals[i] = g
	}
	return snap
}

func (s *Store) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snapshotLocked()
}

func (s *Store) Totals() core.Totals {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.st.totals
}

// ThisMonthIncome is computed on demand against the current clock.
func (s *Store) ThisMonthIncome() core.Money {
	now := s.now()
	s.mu.RLock()
	defer s.mu.RUnlock()
	return core.ThisMonthIncome(s.st.gigs, now)
}

func (s *Store) ThisMonthExpenses() core.Money {
	now := s.now()
	s.mu.RLock()
	defer s.mu.RUnlock()
	return core.ThisMonthExpenses(s.st.expenses, now)
}

func (s *Store) PendingInvoicesTotal() core.Money {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return core.PendingInvoicesTotal(s.st.invoices)
}

// QuarterlyTaxes returns a quarter of the estimated taxes. It reports
// false for users without the quarterly estimates feature.
func (s *Store) QuarterlyTaxes() (core.Money, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.policy.IsAvailable(limits.QuarterlyTaxEstimates, s.st.premium) {
		return core.Money{}, false
	}
	return core.QuarterlyTaxes(s.st.totals), true
}

// Subscribe registers fn to receive a snapshot after every state change.
// fn runs on the mutating goroutine, outside the store's locks. The
// returned func removes the subscription.
func (s *Store) Subscribe(fn func(Snapshot)) (unsubscribe func()) {
	s.subMu.Lock()
	id := s.nextSub
	s.nextSub++
	s.subs[id] = fn
	s.subMu.Unlock()

	return func() {
		s.subMu.Lock()
		delete(s.subs, id)
		s.subMu.Unlock()
	}
}

func (s *Store) notify(snap Snapshot) {
	s.subMu.Lock()
	fns := make([]func(Snapshot), 0, len(s.subs))
	for _, fn := range s.subs {
		fns = append(fns, fn)
	}
	s.subMu.Unlock()

	for _, fn := range fns {
		fn(snap)
	}
}
