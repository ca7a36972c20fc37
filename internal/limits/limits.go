// Package limits holds the free-tier feature table and the policy that
// decides whether a mutation is blocked for a non-premium user.
package limits

import "math"

// Feature identifies an entry of the feature limit table.
type Feature string

const (
	MaxGigs             Feature = "maxGigs"
	MaxIncomeSources    Feature = "maxIncomeSources"
	MaxClients          Feature = "maxClients"
	MaxExpenses         Feature = "maxExpenses" // per calendar month
	MaxCategories       Feature = "maxCategories"
	MaxInvoicesPerMonth Feature = "maxInvoicesPerMonth"
	MaxSavingsGoals     Feature = "maxSavingsGoals"

	ReceiptScanning         Feature = "receiptScanning"
	QuarterlyTaxEstimates   Feature = "quarterlyTaxEstimates"
	TaxDeductionSuggestions Feature = "taxDeductionSuggestions"
	TaxReportExport         Feature = "taxReportExport"
	CustomBranding          Feature = "customBranding"
	RecurringInvoices       Feature = "recurringInvoices"
	PaymentReminders        Feature = "paymentReminders"
	BasicReports            Feature = "basicReports"
	AdvancedAnalytics       Feature = "advancedAnalytics"
	IncomeProjections       Feature = "incomeProjections"
	ProfitMarginAnalysis    Feature = "profitMarginAnalysis"
	AutoSavingsRules        Feature = "autoSavingsRules"
	CloudSync               Feature = "cloudSync"
	DataExport              Feature = "dataExport"
	BankSync                Feature = "bankSync"
)

// Unlimited is reported by Limit for premium users.
const Unlimited = math.MaxInt

// Limit is either a numeric ceiling or an on/off flag.
type Limit struct {
	Max     int
	Enabled bool
	Numeric bool
}

// Count builds a numeric limit.
func Count(n int) Limit { return Limit{Max: n, Numeric: true} }

// Flag builds an on/off limit.
func Flag(enabled bool) Limit { return Limit{Enabled: enabled} }

// Table maps features to their free-tier limit.
type Table map[Feature]Limit

// DefaultTable returns the free-tier limits.
func DefaultTable() Table {
	return Table{
		MaxGigs:             Count(25),
		MaxIncomeSources:    Count(3),
		MaxClients:          Count(10),
		MaxExpenses:         Count(50),
		MaxCategories:       Count(5),
		MaxInvoicesPerMonth: Count(5),
		MaxSavingsGoals:     Count(2),

		ReceiptScanning:         Flag(false),
		QuarterlyTaxEstimates:   Flag(false),
		TaxDeductionSuggestions: Flag(false),
		TaxReportExport:         Flag(false),
		CustomBranding:          Flag(false),
		RecurringInvoices:       Flag(false),
		PaymentReminders:        Flag(false),
		BasicReports:            Flag(true),
		AdvancedAnalytics:       Flag(false),
		IncomeProjections:       Flag(false),
		ProfitMarginAnalysis:    Flag(false),
		AutoSavingsRules:        Flag(false),
		CloudSync:               Flag(false),
		DataExport:              Flag(false),
		BankSync:                Flag(false),
	}
}

// Policy evaluates the table. It is read-only once built.
type Policy struct {
	table Table
}

// NewPolicy copies the table so later edits by the caller have no effect.
func NewPolicy(t Table) *Policy {
	cp := make(Table, len(t))
	for k, v := range t {
		cp[k] = v
	}
	return &Policy{table: cp}
}

// Default returns a policy over DefaultTable.
func Default() *Policy {
	return NewPolicy(DefaultTable())
}

// IsBlocked reports whether a free-tier user at count is blocked from
// feature. Numeric limits block once count reaches the ceiling; a disabled
// flag blocks regardless of count. Premium users and unknown features are
// never blocked.
func (p *Policy) IsBlocked(f Feature, count int, premium bool) bool {
	if premium {
		return false
	}
	l, ok := p.table[f]
	if !ok {
		return false
	}
	if l.Numeric {
		return count >= l.Max
	}
	return !l.Enabled
}

// IsAvailable reports whether a feature can be used at all.
func (p *Policy) IsAvailable(f Feature, premium bool) bool {
	if premium {
		return true
	}
	l, ok := p.table[f]
	if !ok || l.Numeric {
		return true
	}
	return l.Enabled
}

// Limit returns the ceiling for a numeric feature, Unlimited for premium
// users, and false for features without a numeric limit.
func (p *Policy) Limit(f Feature, premium bool) (int, bool) {
	l, ok := p.table[f]
	if !ok || !l.Numeric {
		return 0, false
	}
	if premium {
		return Unlimited, true
	}
	return l.Max, true
}
