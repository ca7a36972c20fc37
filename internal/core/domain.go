package core

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

const (
	GigPending   GigStatus = "pending"
	GigCompleted GigStatus = "completed"
	GigDisputed  GigStatus = "disputed"
)

const (
	InvoiceDraft   InvoiceStatus = "draft"
	InvoiceSent    InvoiceStatus = "sent"
	InvoicePaid    InvoiceStatus = "paid"
	InvoiceOverdue InvoiceStatus = "overdue"
)

const (
	GoalTaxes     GoalType = "taxes"
	GoalEmergency GoalType = "emergency"
	GoalCustom    GoalType = "custom"
)

const (
	Gigs         Collection = "gigs"
	Expenses     Collection = "expenses"
	Clients      Collection = "clients"
	Invoices     Collection = "invoices"
	SavingsGoals Collection = "savings_goals"
)

const dateLayout = "2006-01-02"

type (
	GigStatus     string
	InvoiceStatus string
	GoalType      string

	// Collection names one of the record collections owned by the store.
	Collection string

	// Date is a calendar day, always normalized to UTC midnight.
	Date struct {
		time.Time
	}

	Gig struct {
		ID       string    `json:"id"`
		Title    string    `json:"title"`
		Platform string    `json:"platform"`
		Amount   Money     `json:"amount"`
		Date     Date      `json:"date"`
		Status   GigStatus `json:"status"`
		Notes    string    `json:"notes,omitempty"`
		ClientID string    `json:"clientId,omitempty"`
	}

	Expense struct {
		ID           string `json:"id"`
		Title        string `json:"title"`
		Category     string `json:"category"`
		Amount       Money  `json:"amount"`
		Date         Date   `json:"date"`
		IsDeductible bool   `json:"isDeductible"`
		ReceiptURL   string `json:"receiptUrl,omitempty"`
		Notes        string `json:"notes,omitempty"`
	}

	// Client carries running totals that are rebuilt from gigs on every
	// recompute; see ReconcileClients.
	Client struct {
		ID          string `json:"id"`
		Name        string `json:"name"`
		Email       string `json:"email,omitempty"`
		Phone       string `json:"phone,omitempty"`
		TotalEarned Money  `json:"totalEarned"`
		GigsCount   int    `json:"gigsCount"`
	}

	LineItem struct {
		Description string `json:"description"`
		Amount      Money  `json:"amount"`
	}

	Invoice struct {
		ID         string        `json:"id"`
		ClientID   string        `json:"clientId"`
		ClientName string        `json:"clientName"`
		Amount     Money         `json:"amount"`
		Status     InvoiceStatus `json:"status"`
		DueDate    Date          `json:"dueDate"`
		CreatedAt  time.Time     `json:"createdAt"`
		Items      []LineItem    `json:"items"`
	}

	SavingsGoal struct {
		ID            string   `json:"id"`
		Name          string   `json:"name"`
		TargetAmount  Money    `json:"targetAmount"`
		CurrentAmount Money    `json:"currentAmount"`
		Deadline      *Date    `json:"deadline,omitempty"`
		Type          GoalType `json:"type"`
	}
)

var (
	ErrInvalidDate   = errors.New("invalid date")
	ErrInvalidAmount = errors.New("invalid amount")
	ErrEmptyTitle    = errors.New("empty title")
	ErrInvalidStatus = errors.New("invalid status")
	ErrInvalidType   = errors.New("invalid goal type")
	ErrNotFound      = errors.New("record not found")
)

// AllCollections lists every collection in a stable order.
func AllCollections() []Collection {
	return []Collection{Gigs, Expenses, Clients, Invoices, SavingsGoals}
}

func (c Collection) String() string {
	return string(c)
}

// NewDate creates a new Date from year, month, day
func NewDate(year, month, day int) Date {
	return Date{Time: time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)}
}

// DateOf truncates an instant to its UTC calendar day.
func DateOf(t time.Time) Date {
	y, m, d := t.UTC().Date()
	return NewDate(y, int(m), d)
}

// ParseDate parses a YYYY-MM-DD string.
func ParseDate(s string) (Date, error) {
	t, err := time.Parse(dateLayout, strings.TrimSpace(s))
	if err != nil {
		return Date{}, fmt.Errorf("%w: %q", ErrInvalidDate, s)
	}
	return Date{Time: t}, nil
}

func (d Date) Validate() error {
	if d.IsZero() {
		return ErrInvalidDate
	}
	return nil
}

func (d Date) String() string {
	if d.IsZero() {
		return ""
	}
	return d.Format(dateLayout)
}

// MonthKey returns the ISO year-month ("2006-01") the day falls in.
func (d Date) MonthKey() string {
	return d.Format("2006-01")
}

func (d Date) MarshalJSON() ([]byte, error) {
	if d.IsZero() {
		return []byte(`""`), nil
	}
	return json.Marshal(d.Format(dateLayout))
}

func (d *Date) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("%w: %s", ErrInvalidDate, data)
	}
	if s == "" {
		*d = Date{}
		return nil
	}
	// Remote rows sometimes carry full timestamps; keep only the day.
	if len(s) > len(dateLayout) {
		if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
			*d = DateOf(t)
			return nil
		}
	}
	parsed, err := ParseDate(s)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// MonthKey returns the ISO year-month of an instant in UTC.
func MonthKey(t time.Time) string {
	return t.UTC().Format("2006-01")
}

func (s GigStatus) Valid() bool {
	switch s {
	case GigPending, GigCompleted, GigDisputed:
		return true
	}
	return false
}

func (s InvoiceStatus) Valid() bool {
	switch s {
	case InvoiceDraft, InvoiceSent, InvoicePaid, InvoiceOverdue:
		return true
	}
	return false
}

func (t GoalType) Valid() bool {
	switch t {
	case GoalTaxes, GoalEmergency, GoalCustom:
		return true
	}
	return false
}

func (g Gig) Validate() error {
	if strings.TrimSpace(g.Title) == "" {
		return ErrEmptyTitle
	}
	if err := g.Amount.Validate(); err != nil {
		return err
	}
	if err := g.Date.Validate(); err != nil {
		return err
	}
	if !g.Status.Valid() {
		return fmt.Errorf("%w: gig status %q", ErrInvalidStatus, g.Status)
	}
	return nil
}

func (e Expense) Validate() error {
	if strings.TrimSpace(e.Title) == "" {
		return ErrEmptyTitle
	}
	if err := e.Amount.Validate(); err != nil {
		return err
	}
	return e.Date.Validate()
}

func (c Client) Validate() error {
	if strings.TrimSpace(c.Name) == "" {
		return ErrEmptyTitle
	}
	return nil
}

func (i Invoice) Validate() error {
	if strings.TrimSpace(i.ClientName) == "" && i.ClientID == "" {
		return errors.New("invoice needs a client")
	}
	if err := i.Amount.Validate(); err != nil {
		return err
	}
	if err := i.DueDate.Validate(); err != nil {
		return fmt.Errorf("due date: %w", err)
	}
	if !i.Status.Valid() {
		return fmt.Errorf("%w: invoice status %q", ErrInvalidStatus, i.Status)
	}
	for _, item := range i.Items {
		if err := item.Amount.Validate(); err != nil {
			return fmt.Errorf("line item %q: %w", item.Description, err)
		}
	}
	return nil
}

// IsPending reports whether the invoice counts toward the pending total.
func (i Invoice) IsPending() bool {
	return i.Status == InvoiceSent || i.Status == InvoiceOverdue
}

func (g SavingsGoal) Validate() error {
	if strings.TrimSpace(g.Name) == "" {
		return ErrEmptyTitle
	}
	if err := g.TargetAmount.Validate(); err != nil {
		return err
	}
	if err := g.CurrentAmount.Validate(); err != nil {
		return err
	}
	if !g.Type.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidType, g.Type)
	}
	return nil
}
