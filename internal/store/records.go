package store

import (
	"context"
	"fmt"
	"time"

	"gigledger/internal/core"
	"gigledger/internal/limits"
	"gigledger/internal/log"
)

// AddGig records a gig. Free users are capped on lifetime gig count.
func (s *Store) AddGig(ctx context.Context, g core.Gig) (core.Gig, Result) {
	return add(ctx, s, gigOps, creation[core.Gig]{
		feature: limits.MaxGigs,
		count:   func(st *state, _ time.Time) int { return len(st.gigs) },
		local:   func(g *core.Gig, id string, _ time.Time) { g.ID = id },
	}, g)
}

// AddExpense records an expense. Free users are capped per calendar month,
// counted by the expense date.
func (s *Store) AddExpense(ctx context.Context, e core.Expense) (core.Expense, Result) {
	return add(ctx, s, expenseOps, creation[core.Expense]{
		feature: limits.MaxExpenses,
		count:   func(st *state, now time.Time) int { return core.CountExpensesInMonth(st.expenses, now) },
		local:   func(e *core.Expense, id string, _ time.Time) { e.ID = id },
	}, e)
}

// AddClient records a client. Running totals start at zero and are derived
// from gigs afterwards.
func (s *Store) AddClient(ctx context.Context, c core.Client) (core.Client, Result) {
	c.TotalEarned = core.Money{}
	c.GigsCount = 0
	return add(ctx, s, clientOps, creation[core.Client]{
		feature: limits.MaxClients,
		count:   func(st *state, _ time.Time) int { return len(st.clients) },
		local:   func(c *core.Client, id string, _ time.Time) { c.ID = id },
	}, c)
}

// CreateInvoice records an invoice. Free users are capped per calendar
// month, counted by creation time.
func (s *Store) CreateInvoice(ctx context.Context, inv core.Invoice) (core.Invoice, Result) {
	inv.CreatedAt = time.Time{}
	return add(ctx, s, invoiceOps, creation[core.Invoice]{
		feature: limits.MaxInvoicesPerMonth,
		count:   func(st *state, now time.Time) int { return core.CountInvoicesInMonth(st.invoices, now) },
		local: func(inv *core.Invoice, id string, now time.Time) {
			inv.ID = id
			inv.CreatedAt = now.UTC()
		},
	}, inv)
}

// AddSavingsGoal records a goal starting from zero savings.
func (s *Store) AddSavingsGoal(ctx context.Context, g core.SavingsGoal) (core.SavingsGoal, Result) {
	g.CurrentAmount = core.Money{}
	return add(ctx, s, goalOps, creation[core.SavingsGoal]{
		feature: limits.MaxSavingsGoals,
		count:   func(st *state, _ time.Time) int { return len(st.goals) },
		local:   func(g *core.SavingsGoal, id string, _ time.Time) { g.ID = id },
	}, g)
}

// GigPatch holds the gig fields to change; nil fields are left alone.
type GigPatch struct {
	Title    *string         `json:"title,omitempty"`
	Platform *string         `json:"platform,omitempty"`
	Amount   *core.Money     `json:"amount,omitempty"`
	Date     *core.Date      `json:"date,omitempty"`
	Status   *core.GigStatus `json:"status,omitempty"`
	Notes    *string         `json:"notes,omitempty"`
	ClientID *string         `json:"clientId,omitempty"`
}

func (p GigPatch) apply(g core.Gig) core.Gig {
	setIf(&g.Title, p.Title)
	setIf(&g.Platform, p.Platform)
	setIf(&g.Amount, p.Amount)
	setIf(&g.Date, p.Date)
	setIf(&g.Status, p.Status)
	setIf(&g.Notes, p.Notes)
	setIf(&g.ClientID, p.ClientID)
	return g
}

type ExpensePatch struct {
	Title        *string     `json:"title,omitempty"`
	Category     *string     `json:"category,omitempty"`
	Amount       *core.Money `json:"amount,omitempty"`
	Date         *core.Date  `json:"date,omitempty"`
	IsDeductible *bool       `json:"isDeductible,omitempty"`
	ReceiptURL   *string     `json:"receiptUrl,omitempty"`
	Notes        *string     `json:"notes,omitempty"`
}

func (p ExpensePatch) apply(e core.Expense) core.Expense {
	setIf(&e.Title, p.Title)
	setIf(&e.Category, p.Category)
	setIf(&e.Amount, p.Amount)
	setIf(&e.Date, p.Date)
	setIf(&e.IsDeductible, p.IsDeductible)
	setIf(&e.ReceiptURL, p.ReceiptURL)
	setIf(&e.Notes, p.Notes)
	return e
}

func setIf[T any](dst *T, v *T) {
	if v != nil {
		*dst = *v
	}
}

// UpdateGig applies p to the gig with the given id. With a remote gateway
// the local copy only changes after the remote update succeeds.
func (s *Store) UpdateGig(ctx context.Context, id string, p GigPatch) (core.Gig, Result) {
	return update(ctx, s, gigOps, log.OpUpdate, id, false, func(cur core.Gig) (core.Gig, any) {
		return p.apply(cur), p
	})
}

func (s *Store) DeleteGig(ctx context.Context, id string) Result {
	return remove(ctx, s, gigOps, id)
}

func (s *Store) UpdateExpense(ctx context.Context, id string, p ExpensePatch) (core.Expense, Result) {
	return update(ctx, s, expenseOps, log.OpUpdate, id, false, func(cur core.Expense) (core.Expense, any) {
		return p.apply(cur), p
	})
}

func (s *Store) DeleteExpense(ctx context.Context, id string) Result {
	return remove(ctx, s, expenseOps, id)
}

// UpdateInvoiceStatus moves an invoice to status. Any transition is
// accepted.
func (s *Store) UpdateInvoiceStatus(ctx context.Context, id string, status core.InvoiceStatus) (core.Invoice, Result) {
	if !status.Valid() {
		res := failed(fmt.Errorf("%w: invoice status %q", core.ErrInvalidStatus, status))
		s.record(core.Invoices, log.OpUpdate, res)
		return core.Invoice{}, res
	}
	return update(ctx, s, invoiceOps, log.OpUpdate, id, false, func(cur core.Invoice) (core.Invoice, any) {
		cur.Status = status
		return cur, map[string]any{"status": status}
	})
}

func (s *Store) DeleteInvoice(ctx context.Context, id string) Result {
	return remove(ctx, s, invoiceOps, id)
}

// ContributeToSavings adds amount to a goal. An unknown goal id is a
// successful no-op. The new total is computed and written while the
// savings collection is locked, so concurrent contributions add up.
func (s *Store) ContributeToSavings(ctx context.Context, goalID string, amount core.Money) (core.SavingsGoal, Result) {
	if err := amount.Validate(); err != nil {
		res := failed(err)
		s.record(core.SavingsGoals, log.OpContribute, res)
		return core.SavingsGoal{}, res
	}
	return update(ctx, s, goalOps, log.OpContribute, goalID, true, func(cur core.SavingsGoal) (core.SavingsGoal, any) {
		cur.CurrentAmount = cur.CurrentAmount.Add(amount)
		return cur, map[string]any{"currentAmount": cur.CurrentAmount}
	})
}
