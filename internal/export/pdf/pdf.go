// Package pdf renders gigs and expenses as a printable statement.
package pdf

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/phpdave11/gofpdf"

	"gigledger/internal/core"
	"gigledger/internal/export"
)

const pageBreakY = 270

// Report collects sections and writes a single PDF on Close.
type Report struct {
	pdf *gofpdf.Fpdf
	out io.Writer
}

var _ export.Exporter = (*Report)(nil)

func New(out io.Writer, generatedAt time.Time) *Report {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetMargins(14, 14, 14)
	pdf.SetFooterFunc(func() {
		pdf.SetY(-18)
		pdf.SetFont("Helvetica", "", 9)
		pdf.SetTextColor(120, 120, 120)
		pdf.CellFormat(0, 10, "Generated by gigledger "+generatedAt.UTC().Format(time.RFC3339), "", 0, "C", false, 0, "")
	})
	pdf.AddPage()
	pdf.SetFont("Helvetica", "B", 18)
	pdf.Cell(0, 10, "gigledger statement")
	pdf.Ln(14)
	return &Report{pdf: pdf, out: out}
}

type column struct {
	title string
	width float64
	align string
}

var (
	gigColumns = []column{
		{"DATE", 24, "C"},
		{"TITLE", 70, "L"},
		{"PLATFORM", 34, "L"},
		{"STATUS", 24, "C"},
		{"AMOUNT", 30, "R"},
	}
	expenseColumns = []column{
		{"DATE", 24, "C"},
		{"TITLE", 70, "L"},
		{"CATEGORY", 34, "L"},
		{"DEDUCT.", 24, "C"},
		{"AMOUNT", 30, "R"},
	}
)

func (r *Report) ExportGigs(_ context.Context, gigs []core.Gig) error {
	rows := make([][]string, 0, len(gigs))
	var total core.Money
	for _, g := range gigs {
		rows = append(rows, []string{g.Date.String(), g.Title, g.Platform, string(g.Status), g.Amount.String()})
		if g.Status == core.GigCompleted {
			total = total.Add(g.Amount)
		}
	}
	r.section("Gigs", gigColumns, rows, "Completed income: "+total.String())
	return r.pdf.Error()
}

func (r *Report) ExportExpenses(_ context.Context, expenses []core.Expense) error {
	rows := make([][]string, 0, len(expenses))
	var total core.Money
	for _, e := range expenses {
		deductible := "no"
		if e.IsDeductible {
			deductible = "yes"
		}
		rows = append(rows, []string{e.Date.String(), e.Title, e.Category, deductible, e.Amount.String()})
		total = total.Add(e.Amount)
	}
	r.section("Expenses", expenseColumns, rows, "Total expenses: "+total.String())
	return r.pdf.Error()
}

// Close writes the document to the underlying writer.
func (r *Report) Close() error {
	if err := r.pdf.Output(r.out); err != nil {
		return fmt.Errorf("write pdf: %w", err)
	}
	return nil
}

func (r *Report) section(title string, cols []column, rows [][]string, footer string) {
	pdf := r.pdf
	if pdf.GetY() > pageBreakY-30 {
		pdf.AddPage()
	}
	pdf.SetTextColor(20, 20, 20)
	pdf.SetFont("Helvetica", "B", 13)
	pdf.Cell(0, 8, title)
	pdf.Ln(9)

	r.header(cols)
	pdf.SetFont("Helvetica", "", 9)
	for _, row := range rows {
		if pdf.GetY() > pageBreakY {
			pdf.AddPage()
			r.header(cols)
			pdf.SetFont("Helvetica", "", 9)
		}
		for i, c := range cols {
			ln := 0
			if i == len(cols)-1 {
				ln = 1
			}
			pdf.CellFormat(c.width, 7, trimTo(row[i], int(c.width/2)), "1", ln, c.align, false, 0, "")
		}
	}

	pdf.SetFont("Helvetica", "I", 10)
	pdf.Ln(2)
	pdf.Cell(0, 7, footer)
	pdf.Ln(12)
}

func (r *Report) header(cols []column) {
	pdf := r.pdf
	pdf.SetFont("Helvetica", "B", 10)
	pdf.SetFillColor(245, 245, 245)
	pdf.SetDrawColor(200, 200, 200)
	for i, c := range cols {
		ln := 0
		if i == len(cols)-1 {
			ln = 1
		}
		pdf.CellFormat(c.width, 8, c.title, "1", ln, "C", true, 0, "")
	}
}

func trimTo(s string, n int) string {
	s = strings.TrimSpace(s)
	if len(s) <= n {
		return s
	}
	return s[:n-3] + "..."
}
