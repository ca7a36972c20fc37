package core

import (
	"time"

	"github.com/shopspring/decimal"
)

// TaxRates are combined additively and applied to net income.
type TaxRates struct {
	SelfEmployment decimal.Decimal
	Income         decimal.Decimal
}

// DefaultTaxRates is 15.3% self-employment plus an estimated 22% federal bracket.
var DefaultTaxRates = TaxRates{
	SelfEmployment: decimal.RequireFromString("0.153"),
	Income:         decimal.RequireFromString("0.22"),
}

// Combined returns the total rate applied to net income.
func (r TaxRates) Combined() decimal.Decimal {
	return r.SelfEmployment.Add(r.Income)
}

// Totals are derived figures. EstimatedTaxes is negative when expenses
// exceed income; it is deliberately left unclamped.
type Totals struct {
	TotalIncome    Money `json:"totalIncome"`
	TotalExpenses  Money `json:"totalExpenses"`
	EstimatedTaxes Money `json:"estimatedTaxes"`
}

// NetIncome is income minus expenses.
func (t Totals) NetIncome() Money {
	return t.TotalIncome.Sub(t.TotalExpenses)
}

// ComputeTotals derives income, expenses and the tax estimate from the
// current collections. Only completed gigs count as income; every expense
// counts regardless of deductibility.
func ComputeTotals(gigs []Gig, expenses []Expense, rates TaxRates) Totals {
	var t Totals
	for _, g := range gigs {
		if g.Status == GigCompleted {
			t.TotalIncome = t.TotalIncome.Add(g.Amount)
		}
	}
	for _, e := range expenses {
		t.TotalExpenses = t.TotalExpenses.Add(e.Amount)
	}
	t.EstimatedTaxes = applyRate(t.NetIncome(), rates.Combined())
	return t
}

// QuarterlyTaxes spreads the annual estimate over four quarters.
func QuarterlyTaxes(t Totals) Money {
	q := t.EstimatedTaxes.Decimal().Div(decimal.NewFromInt(4)).Mul(hundred).Round(0)
	return Money{Cents: q.IntPart()}
}

func applyRate(net Money, rate decimal.Decimal) Money {
	cents := decimal.NewFromInt(net.Cents).Mul(rate).Round(0)
	return Money{Cents: cents.IntPart()}
}

// ThisMonthIncome sums completed gigs dated in now's calendar month.
func ThisMonthIncome(gigs []Gig, now time.Time) Money {
	month := MonthKey(now)
	var sum Money
	for _, g := range gigs {
		if g.Status == GigCompleted && g.Date.MonthKey() == month {
			sum = sum.Add(g.Amount)
		}
	}
	return sum
}

// ThisMonthExpenses sums expenses dated in now's calendar month.
func ThisMonthExpenses(expenses []Expense, now time.Time) Money {
	month := MonthKey(now)
	var sum Money
	for _, e := range expenses {
		if e.Date.MonthKey() == month {
			sum = sum.Add(e.Amount)
		}
	}
	return sum
}

// PendingInvoicesTotal sums invoices that are sent or overdue.
func PendingInvoicesTotal(invoices []Invoice) Money {
	var sum Money
	for _, inv := range invoices {
		if inv.IsPending() {
			sum = sum.Add(inv.Amount)
		}
	}
	return sum
}

// CountExpensesInMonth counts expenses whose date falls in now's month.
func CountExpensesInMonth(expenses []Expense, now time.Time) int {
	month := MonthKey(now)
	n := 0
	for _, e := range expenses {
		if e.Date.MonthKey() == month {
			n++
		}
	}
	return n
}

// CountInvoicesInMonth counts invoices created in now's month.
func CountInvoicesInMonth(invoices []Invoice, now time.Time) int {
	month := MonthKey(now)
	n := 0
	for _, inv := range invoices {
		if MonthKey(inv.CreatedAt) == month {
			n++
		}
	}
	return n
}

// ReconcileClients rebuilds each client's running totals from the gigs
// that reference it. The input slice is not modified.
func ReconcileClients(clients []Client, gigs []Gig) []Client {
	type agg struct {
		earned Money
		count  int
	}
	byClient := make(map[string]agg, len(clients))
	for _, g := range gigs {
		if g.ClientID == "" {
			continue
		}
		a := byClient[g.ClientID]
		a.count++
		if g.Status == GigCompleted {
			a.earned = a.earned.Add(g.Amount)
		}
		byClient[g.ClientID] = a
	}
	out := make([]Client, len(clients))
	for i, c := range clients {
		a := byClient[c.ID]
		c.TotalEarned = a.earned
		c.GigsCount = a.count
		out[i] = c
	}
	return out
}
