package domain

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// TaxRate is the flat tax applied to every invoice subtotal
const TaxRate = 0.09

// DateLayout is the wire format for issue and due dates
const DateLayout = "2006-01-02"

// MaxDueDateSpanDays bounds how far the due date may trail the issue date
const MaxDueDateSpanDays = 365

// LineItem is one billable line of an invoice
type LineItem struct {
	Description string  `json:"description"`
	Quantity    float64 `json:"quantity"`
	Rate        float64 `json:"rate"`
}

// Total returns quantity times rate
func (l LineItem) Total() float64 {
	return l.Quantity * l.Rate
}

// Totals holds the derived amounts of an invoice
type Totals struct {
	Subtotal float64 `json:"subtotal"`
	Tax      float64 `json:"tax"`
	Total    float64 `json:"total"`
}

// ComputeTotals derives subtotal, tax and total from the line items
func ComputeTotals(items []LineItem) Totals {
	var subtotal float64
	for _, item := range items {
		subtotal += item.Total()
	}
	tax := subtotal * TaxRate
	return Totals{
		Subtotal: subtotal,
		Tax:      tax,
		Total:    subtotal + tax,
	}
}

// ValidateItems checks that there is at least one item and every item is complete
func ValidateItems(items []LineItem) *ValidationError {
	verr := &ValidationError{}
	if len(items) == 0 {
		verr.Add("items", "at least one line item is required")
		return verr
	}
	for i, item := range items {
		prefix := fmt.Sprintf("items[%d]", i)
		if strings.TrimSpace(item.Description) == "" {
			verr.Add(prefix+".description", "description is required")
		}
		if item.Quantity <= 0 {
			verr.Add(prefix+".quantity", "quantity must be greater than zero")
		}
		if item.Rate < 0 {
			verr.Add(prefix+".rate", "rate cannot be negative")
		}
	}
	return verr
}

// ValidateDates checks due >= issue and due within one year of issue
func ValidateDates(issue, due time.Time) *ValidationError {
	verr := &ValidationError{}
	if due.Before(issue) {
		verr.Add("due_date", "due date cannot be before issue date")
	} else if due.After(issue.AddDate(0, 0, MaxDueDateSpanDays)) {
		verr.Add("due_date", "due date cannot be more than 1 year from issue date")
	}
	return verr
}

// ParseDate parses a YYYY-MM-DD date for the given field
func ParseDate(field, value string) (time.Time, *ValidationError) {
	t, err := time.Parse(DateLayout, strings.TrimSpace(value))
	if err != nil {
		return time.Time{}, NewValidationError(field, "invalid date format, use YYYY-MM-DD")
	}
	return t, nil
}

// FormatInvoiceNumber builds INV-<year>-<seq> with a zero padded sequence
func FormatInvoiceNumber(year, seq int) string {
	return fmt.Sprintf("INV-%d-%03d", year, seq)
}

// InvoiceNumberPrefix is the prefix shared by all generated numbers of a year
func InvoiceNumberPrefix(year int) string {
	return fmt.Sprintf("INV-%d-", year)
}

// ParseInvoiceSequence extracts the sequence from a generated number for the given year
func ParseInvoiceSequence(number string, year int) (int, bool) {
	prefix := InvoiceNumberPrefix(year)
	if !strings.HasPrefix(number, prefix) {
		return 0, false
	}
	seq, err := strconv.Atoi(strings.TrimPrefix(number, prefix))
	if err != nil || seq < 0 {
		return 0, false
	}
	return seq, true
}

// InvoiceState is the outbox view of an invoice
type InvoiceState struct {
	InvoiceID      uint
	TenantID       uint
	InvoiceNumber  string
	ApprovalStatus ApprovalStatus
	Total          float64
}

// InvoiceAggregate records invoice lifecycle events for projection and history
type InvoiceAggregate struct {
	*AggregateBase
	State InvoiceState
}

// NewInvoiceAggregate creates a new invoice aggregate
func NewInvoiceAggregate(invoiceID uint) *InvoiceAggregate {
	aggregate := &InvoiceAggregate{
		State: InvoiceState{InvoiceID: invoiceID},
	}

	base := NewAggregateBase(AggregateTypeInvoice, aggregate.applyEvent)
	base.SetID(AggregateID(invoiceID))
	aggregate.AggregateBase = base

	return aggregate
}

func (a *InvoiceAggregate) applyEvent(event interface{}) error {
	switch e := event.(type) {
	case InvoiceCreatedEvent:
		a.State.TenantID = e.TenantID
		a.State.InvoiceNumber = e.InvoiceNumber
		a.State.ApprovalStatus = ApprovalPending
		a.State.Total = e.Total

	case InvoiceResubmittedEvent:
		a.State.ApprovalStatus = ApprovalPending
		a.State.Total = e.Total

	case ApprovalChangedEvent:
		a.State.ApprovalStatus = e.To
	}

	return nil
}
