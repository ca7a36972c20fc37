package core

import (
	"encoding/json"
	"errors"
	"testing"
	"time"
)

func TestDateJSON(t *testing.T) {
	d := NewDate(2025, 3, 9)
	b, err := json.Marshal(d)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if string(b) != `"2025-03-09"` {
		t.Fatalf("unexpected encoding %s", b)
	}

	var got Date
	if err := json.Unmarshal(b, &got); err != nil || !got.Equal(d.Time) {
		t.Fatalf("round trip: got %v err=%v", got, err)
	}
	if err := json.Unmarshal([]byte(`"2025-03-09T22:15:00Z"`), &got); err != nil || got.String() != "2025-03-09" {
		t.Fatalf("timestamp input: got %v err=%v", got, err)
	}
	if err := json.Unmarshal([]byte(`"09/03/2025"`), &got); err == nil {
		t.Fatalf("expected error for bad layout")
	}
}

func TestMonthKey(t *testing.T) {
	if got := NewDate(2025, 1, 31).MonthKey(); got != "2025-01" {
		t.Fatalf("date month key = %s", got)
	}
	// Wall-clock instants are keyed in UTC.
	ts := time.Date(2025, 2, 1, 1, 0, 0, 0, time.FixedZone("CET", 3600))
	if got := MonthKey(ts); got != "2025-02" {
		t.Fatalf("instant month key = %s", got)
	}
}

func TestGigValidate(t *testing.T) {
	good := Gig{Title: "Delivery", Platform: "DoorDash", Amount: Cents(1500), Date: NewDate(2025, 1, 1), Status: GigCompleted}
	if err := good.Validate(); err != nil {
		t.Fatalf("expected ok, got %v", err)
	}

	bads := []Gig{
		{Title: "", Amount: Cents(1), Date: NewDate(2025, 1, 1), Status: GigPending},
		{Title: "a", Amount: Cents(-1), Date: NewDate(2025, 1, 1), Status: GigPending},
		{Title: "a", Amount: Cents(1), Status: GigPending},
		{Title: "a", Amount: Cents(1), Date: NewDate(2025, 1, 1), Status: "done"},
	}
	for i, g := range bads {
		if err := g.Validate(); err == nil {
			t.Fatalf("case %d expected error", i)
		}
	}
}

func TestInvoiceValidate(t *testing.T) {
	good := Invoice{ClientName: "Acme", Amount: Cents(5000), DueDate: NewDate(2025, 2, 1), Status: InvoiceDraft}
	if err := good.Validate(); err != nil {
		t.Fatalf("expected ok, got %v", err)
	}

	noDue := good
	noDue.DueDate = Date{}
	if err := noDue.Validate(); !errors.Is(err, ErrInvalidDate) {
		t.Errorf("zero due date: got %v, want ErrInvalidDate", err)
	}

	noClient := good
	noClient.ClientName = ""
	if err := noClient.Validate(); err == nil {
		t.Error("invoice without a client should fail")
	}

	badItem := good
	badItem.Items = []LineItem{{Description: "refund", Amount: Cents(-100)}}
	if err := badItem.Validate(); !errors.Is(err, ErrInvalidAmount) {
		t.Errorf("negative line item: got %v", err)
	}
}

func TestInvoiceIsPending(t *testing.T) {
	cases := map[InvoiceStatus]bool{
		InvoiceDraft:   false,
		InvoiceSent:    true,
		InvoicePaid:    false,
		InvoiceOverdue: true,
	}
	for status, want := range cases {
		if got := (Invoice{Status: status}).IsPending(); got != want {
			t.Errorf("%s: IsPending = %v, want %v", status, got, want)
		}
	}
}

func TestSavingsGoalValidate(t *testing.T) {
	g := SavingsGoal{Name: "Taxes", TargetAmount: Cents(100000), Type: GoalTaxes}
	if err := g.Validate(); err != nil {
		t.Fatalf("expected ok, got %v", err)
	}
	g.Type = "vacation"
	if err := g.Validate(); err == nil {
		t.Fatalf("expected error for unknown goal type")
	}
}
