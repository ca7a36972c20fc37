package export

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"strconv"

	"gigledger/internal/core"
)

// CSVHeader is the first line written by a CSV exporter. Gigs and expenses
// share the layout; detail holds the platform or the category and flag holds
// the gig status or the deductible bit.
var CSVHeader = []string{"type", "id", "date", "title", "detail", "amount", "flag", "notes"}

// CSV writes both collections to a single comma separated stream.
type CSV struct {
	w           *csv.Writer
	wroteHeader bool
}

var _ Exporter = (*CSV)(nil)

func NewCSV(out io.Writer) *CSV {
	return &CSV{w: csv.NewWriter(out)}
}

func (c *CSV) ExportGigs(_ context.Context, gigs []core.Gig) error {
	for _, g := range gigs {
		if err := c.write([]string{"gig", g.ID, g.Date.String(), g.Title, g.Platform, g.Amount.String(), string(g.Status), g.Notes}); err != nil {
			return err
		}
	}
	return c.flush()
}

func (c *CSV) ExportExpenses(_ context.Context, expenses []core.Expense) error {
	for _, e := range expenses {
		if err := c.write([]string{"expense", e.ID, e.Date.String(), e.Title, e.Category, e.Amount.String(), strconv.FormatBool(e.IsDeductible), e.Notes}); err != nil {
			return err
		}
	}
	return c.flush()
}

func (c *CSV) write(record []string) error {
	if !c.wroteHeader {
		if err := c.w.Write(CSVHeader); err != nil {
			return fmt.Errorf("write csv header: %w", err)
		}
		c.wroteHeader = true
	}
	if err := c.w.Write(record); err != nil {
		return fmt.Errorf("write csv row: %w", err)
	}
	return nil
}

func (c *CSV) flush() error {
	c.w.Flush()
	if err := c.w.Error(); err != nil {
		return fmt.Errorf("flush csv: %w", err)
	}
	return nil
}
