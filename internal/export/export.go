// Package export defines where premium users can send their records.
package export

import (
	"context"

	"gigledger/internal/core"
)

// Exporter writes records to an external destination, appending to
// whatever is already there.
type Exporter interface {
	ExportGigs(ctx context.Context, gigs []core.Gig) error
	ExportExpenses(ctx context.Context, expenses []core.Expense) error
}
