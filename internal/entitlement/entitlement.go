// Package entitlement tracks the user's subscription status as reported by
// the billing system and feeds the premium flag into the record store.
package entitlement

import (
	"context"
	"strings"
	"time"
)

// EntitlementID is the entitlement that unlocks premium features.
const EntitlementID = "gigguard_pro"

// PeriodTrial marks an entitlement granted by a free trial.
const PeriodTrial = "TRIAL"

type Plan string

const (
	PlanFree     Plan = "free"
	PlanMonthly  Plan = "monthly"
	PlanYearly   Plan = "yearly"
	PlanLifetime Plan = "lifetime"
)

// Entitlement is an active entitlement as delivered by the billing system.
type Entitlement struct {
	ID             string     `json:"identifier"`
	ProductID      string     `json:"productIdentifier"`
	PeriodType     string     `json:"periodType"`
	ExpirationDate *time.Time `json:"expirationDate,omitempty"`
	WillRenew      bool       `json:"willRenew"`
}

type Status struct {
	IsPremium      bool
	Plan           Plan
	ExpirationDate *time.Time
	WillRenew      bool
	IsInTrial      bool
	TrialEndDate   *time.Time
}

// Free is the status of a user without an active entitlement.
var Free = Status{Plan: PlanFree}

// PlanFromProduct derives the billing plan from a store product id such
// as "gigguard_pro_annual". Unrecognized ids on an active entitlement are
// treated as monthly.
func PlanFromProduct(productID string) Plan {
	id := strings.ToLower(productID)
	switch {
	case strings.Contains(id, "lifetime"):
		return PlanLifetime
	case strings.Contains(id, "annual"), strings.Contains(id, "yearly"), strings.Contains(id, "year"):
		return PlanYearly
	default:
		return PlanMonthly
	}
}

// StatusFromEntitlement builds a Status from the active entitlement, or
// Free when there is none.
func StatusFromEntitlement(e *Entitlement) Status {
	if e == nil {
		return Free
	}
	st := Status{
		IsPremium:      true,
		Plan:           PlanFromProduct(e.ProductID),
		ExpirationDate: e.ExpirationDate,
		WillRenew:      e.WillRenew,
	}
	if e.PeriodType == PeriodTrial {
		st.IsInTrial = true
		st.TrialEndDate = e.ExpirationDate
	}
	return st
}

// Source delivers entitlement changes. The channel is closed when the
// source stops or ctx is done.
type Source interface {
	Updates(ctx context.Context) (<-chan Status, error)
}
