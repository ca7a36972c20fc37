// Package google exports records by appending rows to a Google Sheets
// spreadsheet with one sheet per collection.
package google

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"

	"gigledger/internal/core"
	"gigledger/internal/export"
	"gigledger/internal/log"
)

const (
	DefaultGigsSheet     = "Gigs"
	DefaultExpensesSheet = "Expenses"
)

type Config struct {
	SpreadsheetID string
	// CredentialsFile is a service account key; GOOGLE_APPLICATION_CREDENTIALS
	// is used when empty.
	CredentialsFile string
	GigsSheet       string
	ExpensesSheet   string
}

type Client struct {
	svc           *gsheet.Service
	spreadsheetID string
	gigsSheet     string
	expensesSheet string
	logger        *log.Logger
}

var _ export.Exporter = (*Client)(nil)

// New builds a client from cfg. Extra options are passed to the Sheets
// service and take precedence over the service account credentials.
func New(ctx context.Context, cfg Config, logger *log.Logger, opts ...goption.ClientOption) (*Client, error) {
	if strings.TrimSpace(cfg.SpreadsheetID) == "" {
		return nil, errors.New("missing spreadsheet id")
	}
	if logger == nil {
		logger = log.Discard()
	}

	if len(opts) == 0 {
		credentialsJSON, err := readCredentials(cfg.CredentialsFile)
		if err != nil {
			return nil, err
		}
		opts = []goption.ClientOption{
			goption.WithCredentialsJSON(credentialsJSON),
			goption.WithScopes(gsheet.SpreadsheetsScope),
		}
	}

	svc, err := gsheet.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}

	c := &Client{
		svc:           svc,
		spreadsheetID: cfg.SpreadsheetID,
		gigsSheet:     cfg.GigsSheet,
		expensesSheet: cfg.ExpensesSheet,
		logger:        logger.WithComponent(log.ComponentExport),
	}
	if c.gigsSheet == "" {
		c.gigsSheet = DefaultGigsSheet
	}
	if c.expensesSheet == "" {
		c.expensesSheet = DefaultExpensesSheet
	}
	return c, nil
}

func readCredentials(path string) ([]byte, error) {
	if path == "" {
		path = strings.TrimSpace(os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"))
	}
	if path == "" {
		return nil, errors.New("missing service account credentials (set GOOGLE_CREDENTIALS_FILE or GOOGLE_APPLICATION_CREDENTIALS)")
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read service account file: %w", err)
	}
	return data, nil
}

// GigRow is the sheet row for a gig: date, title, platform, amount,
// status, client id, notes.
func GigRow(g core.Gig) []interface{} {
	return []interface{}{
		g.Date.String(),
		g.Title,
		g.Platform,
		g.Amount.String(),
		string(g.Status),
		g.ClientID,
		g.Notes,
	}
}

// ExpenseRow is the sheet row for an expense: date, title, category,
// amount, deductible, notes.
func ExpenseRow(e core.Expense) []interface{} {
	deductible := "no"
	if e.IsDeductible {
		deductible = "yes"
	}
	return []interface{}{
		e.Date.String(),
		e.Title,
		e.Category,
		e.Amount.String(),
		deductible,
		e.Notes,
	}
}

func (c *Client) ExportGigs(ctx context.Context, gigs []core.Gig) error {
	rows := make([][]interface{}, 0, len(gigs))
	for _, g := range gigs {
		rows = append(rows, GigRow(g))
	}
	return c.append(ctx, c.gigsSheet, "A:G", rows)
}

func (c *Client) ExportExpenses(ctx context.Context, expenses []core.Expense) error {
	rows := make([][]interface{}, 0, len(expenses))
	for _, e := range expenses {
		rows = append(rows, ExpenseRow(e))
	}
	return c.append(ctx, c.expensesSheet, "A:F", rows)
}

func (c *Client) append(ctx context.Context, sheet, cols string, rows [][]interface{}) error {
	if len(rows) == 0 {
		return nil
	}
	if c.svc == nil {
		return errors.New("sheets service not initialized")
	}
	rng := fmt.Sprintf("%s!%s", sheet, cols)
	_, err := c.svc.Spreadsheets.Values.Append(c.spreadsheetID, rng, &gsheet.ValueRange{Values: rows}).
		ValueInputOption("USER_ENTERED").
		InsertDataOption("INSERT_ROWS").
		Context(ctx).
		Do()
	if err != nil {
		return fmt.Errorf("append to %s: %w", sheet, err)
	}
	c.logger.InfoContext(ctx, "Exported rows", "sheet", sheet, log.FieldCount, len(rows))
	return nil
}
