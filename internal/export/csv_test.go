package export

import (
	"bytes"
	"context"
	"encoding/csv"
	"testing"

	"gigledger/internal/core"
)

func TestCSVExport(t *testing.T) {
	var buf bytes.Buffer
	exp := NewCSV(&buf)
	ctx := context.Background()

	gigs := []core.Gig{{ID: "g1", Title: "Bar, late set", Platform: "direct", Amount: core.Cents(30000), Date: core.NewDate(2026, 9, 5), Status: core.GigCompleted}}
	expenses := []core.Expense{{ID: "e1", Title: "Cab", Category: "travel", Amount: core.Cents(2450), Date: core.NewDate(2026, 9, 5), IsDeductible: true}}

	if err := exp.ExportGigs(ctx, gigs); err != nil {
		t.Fatalf("ExportGigs() error = %v", err)
	}
	if err := exp.ExportExpenses(ctx, expenses); err != nil {
		t.Fatalf("ExportExpenses() error = %v", err)
	}

	records, err := csv.NewReader(&buf).ReadAll()
	if err != nil {
		t.Fatalf("read back: %v", err)
	}
	want := [][]string{
		CSVHeader,
		{"gig", "g1", "2026-09-05", "Bar, late set", "direct", "300.00", "completed", ""},
		{"expense", "e1", "2026-09-05", "Cab", "travel", "24.50", "true", ""},
	}
	if len(records) != len(want) {
		t.Fatalf("got %d records, want %d", len(records), len(want))
	}
	for i := range want {
		for j := range want[i] {
			if records[i][j] != want[i][j] {
				t.Errorf("record %d field %d = %q, want %q", i, j, records[i][j], want[i][j])
			}
		}
	}
}

func TestCSVExportEmpty(t *testing.T) {
	var buf bytes.Buffer
	exp := NewCSV(&buf)
	if err := exp.ExportGigs(context.Background(), nil); err != nil {
		t.Fatalf("ExportGigs() error = %v", err)
	}
	if buf.Len() != 0 {
		t.Errorf("expected no output for empty export, got %q", buf.String())
	}
}
