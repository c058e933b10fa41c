package domain

import (
	"time"
)

// DeliveryStatus is the effective delivery status of an invoice
type DeliveryStatus string

const (
	DeliveryStatusPending   DeliveryStatus = "pending"
	DeliveryStatusDelivered DeliveryStatus = "delivered"
	DeliveryStatusOpened    DeliveryStatus = "opened"
	DeliveryStatusFailed    DeliveryStatus = "failed"
)

// ParseDeliveryStatus validates a manual override target
func ParseDeliveryStatus(s string) (DeliveryStatus, bool) {
	switch DeliveryStatus(s) {
	case DeliveryStatusPending, DeliveryStatusDelivered, DeliveryStatusOpened, DeliveryStatusFailed:
		return DeliveryStatus(s), true
	}
	return "", false
}

// ManualFailureReason is stored when an administrator marks a delivery as failed
const ManualFailureReason = "Delivery failed - verify email address"

// Delivery event sources
const (
	SourceMailer   = "mailer"
	SourcePixel    = "pixel"
	SourceViewLink = "view-link"
	SourceManual   = "manual"
	SourceProvider = "provider"
)

// DeliveryEntryType names a kind of delivery log entry
type DeliveryEntryType string

const (
	EntrySent      DeliveryEntryType = "sent"
	EntryDelivered DeliveryEntryType = "delivered"
	EntryOpened    DeliveryEntryType = "opened"
	EntryFailed    DeliveryEntryType = "failed"
	EntryResent    DeliveryEntryType = "resent"
	EntryReset     DeliveryEntryType = "reset"
)

// DeliveryEntry is one entry in an invoice's delivery log
type DeliveryEntry struct {
	Type   DeliveryEntryType `json:"type"`
	At     time.Time         `json:"at"`
	Source string            `json:"source,omitempty"`
	Detail string            `json:"detail,omitempty"`
}

// DeliveryState is the append-only delivery log of an invoice
type DeliveryState struct {
	InvoiceID uint            `json:"invoice_id"`
	Entries   []DeliveryEntry `json:"entries"`
}

// EffectiveStatus derives the delivery status from the log. Any open wins,
// otherwise the newest delivered, failed or pending-class entry decides.
func (s DeliveryState) EffectiveStatus() DeliveryStatus {
	for _, e := range s.Entries {
		if e.Type == EntryOpened {
			return DeliveryStatusOpened
		}
	}
	for i := len(s.Entries) - 1; i >= 0; i-- {
		switch s.Entries[i].Type {
		case EntryDelivered:
			return DeliveryStatusDelivered
		case EntryFailed:
			return DeliveryStatusFailed
		case EntrySent, EntryResent, EntryReset:
			return DeliveryStatusPending
		}
	}
	return DeliveryStatusPending
}

// FailureReason returns the newest failure reason while the status is failed
func (s DeliveryState) FailureReason() string {
	if s.EffectiveStatus() != DeliveryStatusFailed {
		return ""
	}
	for i := len(s.Entries) - 1; i >= 0; i-- {
		if s.Entries[i].Type == EntryFailed {
			return s.Entries[i].Detail
		}
	}
	return ""
}

// OpenedAt returns the time of the first open
func (s DeliveryState) OpenedAt() *time.Time {
	for _, e := range s.Entries {
		if e.Type == EntryOpened {
			at := e.At
			return &at
		}
	}
	return nil
}

// HasBeenSent reports whether the invoice was ever sent
func (s DeliveryState) HasBeenSent() bool {
	for _, e := range s.Entries {
		if e.Type == EntrySent {
			return true
		}
	}
	return false
}

// DeliveryAggregate is the event sourced delivery log of one invoice
type DeliveryAggregate struct {
	*AggregateBase
	State DeliveryState
}

// NewDeliveryAggregate creates a new delivery aggregate
func NewDeliveryAggregate(invoiceID uint) *DeliveryAggregate {
	aggregate := &DeliveryAggregate{
		State: DeliveryState{InvoiceID: invoiceID, Entries: []DeliveryEntry{}},
	}

	base := NewAggregateBase(AggregateTypeDelivery, aggregate.applyEvent)
	base.SetID(AggregateID(invoiceID))
	aggregate.AggregateBase = base

	return aggregate
}

func (a *DeliveryAggregate) applyEvent(event interface{}) error {
	switch e := event.(type) {
	case DeliverySentEvent:
		a.append(EntrySent, e.At, "", e.Recipient)
	case DeliveryDeliveredEvent:
		a.append(EntryDelivered, e.At, e.Source, "")
	case DeliveryOpenedEvent:
		a.append(EntryOpened, e.At, e.Source, "")
	case DeliveryFailedEvent:
		a.append(EntryFailed, e.At, e.Source, e.Reason)
	case DeliveryResentEvent:
		a.append(EntryResent, e.At, "", e.Recipient)
	case DeliveryResetEvent:
		a.append(EntryReset, e.At, SourceManual, "")
	}
	return nil
}

func (a *DeliveryAggregate) append(t DeliveryEntryType, at time.Time, source, detail string) {
	a.State.Entries = append(a.State.Entries, DeliveryEntry{Type: t, At: at, Source: source, Detail: detail})
}

// Send records the first send. A second send is rejected.
func (a *DeliveryAggregate) Send(recipient, messageID string, actorID uint, at time.Time) error {
	if a.State.HasBeenSent() {
		return NewValidationError("delivery_status", "invoice has already been sent, use resend for failed deliveries")
	}
	return a.Apply(DeliverySentEvent{
		InvoiceID: a.State.InvoiceID,
		Recipient: recipient,
		MessageID: messageID,
		ActorID:   actorID,
		At:        at.UTC(),
	})
}

// Resend records an administrator retry. Only a failed delivery can be resent.
func (a *DeliveryAggregate) Resend(recipient, messageID string, actorID uint, at time.Time) error {
	if a.State.EffectiveStatus() != DeliveryStatusFailed {
		return NewValidationError("delivery_status", "only failed deliveries can be resent")
	}
	return a.Apply(DeliveryResentEvent{
		InvoiceID: a.State.InvoiceID,
		Recipient: recipient,
		MessageID: messageID,
		ActorID:   actorID,
		At:        at.UTC(),
	})
}

// ConfirmDelivered applies an automatic delivery confirmation. It only
// moves a pending delivery and reports whether anything was recorded.
func (a *DeliveryAggregate) ConfirmDelivered(source string, at time.Time) (bool, error) {
	if a.State.EffectiveStatus() != DeliveryStatusPending {
		return false, nil
	}
	return true, a.Apply(DeliveryDeliveredEvent{InvoiceID: a.State.InvoiceID, Source: source, At: at.UTC()})
}

// ReportFailure applies an automatic failure report. It is ignored once the
// invoice has been opened or has already failed.
func (a *DeliveryAggregate) ReportFailure(reason, source string, at time.Time) (bool, error) {
	switch a.State.EffectiveStatus() {
	case DeliveryStatusPending, DeliveryStatusDelivered:
	default:
		return false, nil
	}
	return true, a.Apply(DeliveryFailedEvent{InvoiceID: a.State.InvoiceID, Reason: reason, Source: source, At: at.UTC()})
}

// RecordOpen records the first open. Later opens are ignored.
func (a *DeliveryAggregate) RecordOpen(source, ip, userAgent string, at time.Time) (bool, error) {
	if a.State.OpenedAt() != nil {
		return false, nil
	}
	return true, a.Apply(DeliveryOpenedEvent{
		InvoiceID: a.State.InvoiceID,
		Source:    source,
		IP:        ip,
		UserAgent: userAgent,
		At:        at.UTC(),
	})
}

// Override applies an administrator's manual status. Delivered and failed
// are always appended; opened keeps precedence in the effective status.
func (a *DeliveryAggregate) Override(target DeliveryStatus, actorID uint, at time.Time) error {
	at = at.UTC()
	switch target {
	case DeliveryStatusDelivered:
		return a.Apply(DeliveryDeliveredEvent{InvoiceID: a.State.InvoiceID, Source: SourceManual, At: at})
	case DeliveryStatusFailed:
		return a.Apply(DeliveryFailedEvent{InvoiceID: a.State.InvoiceID, Reason: ManualFailureReason, Source: SourceManual, At: at})
	case DeliveryStatusPending:
		return a.Apply(DeliveryResetEvent{InvoiceID: a.State.InvoiceID, ActorID: actorID, At: at})
	case DeliveryStatusOpened:
		_, err := a.RecordOpen(SourceManual, "", "", at)
		return err
	default:
		return NewValidationError("status", "invalid delivery status")
	}
}
