package domain

import (
	"time"
)

// EventType constants
const (
	// Invoice events
	InvoiceCreated         = "V1_INVOICE_CREATED"
	InvoiceResubmitted     = "V1_INVOICE_RESUBMITTED"
	InvoiceApprovalChanged = "V1_INVOICE_APPROVAL_CHANGED"

	// Delivery events
	DeliverySent      = "V1_DELIVERY_SENT"
	DeliveryDelivered = "V1_DELIVERY_DELIVERED"
	DeliveryOpened    = "V1_DELIVERY_OPENED"
	DeliveryFailed    = "V1_DELIVERY_FAILED"
	DeliveryResent    = "V1_DELIVERY_RESENT"
	DeliveryReset     = "V1_DELIVERY_RESET"
)

// Event represents a domain event
type Event struct {
	ID            string      `json:"id"`
	AggregateID   string      `json:"aggregate_id"`
	AggregateType string      `json:"aggregate_type"`
	Type          string      `json:"type"`
	Version       int         `json:"version"`
	Timestamp     time.Time   `json:"timestamp"`
	Data          interface{} `json:"data"`
}

// Invoice Events

// InvoiceCreatedEvent is recorded when an invoice enters the ledger
type InvoiceCreatedEvent struct {
	InvoiceID     uint      `json:"invoice_id"`
	TenantID      uint      `json:"tenant_id"`
	InvoiceNumber string    `json:"invoice_number"`
	ClientName    string    `json:"client_name"`
	Total         float64   `json:"total"`
	ActorID       uint      `json:"actor_id"`
	At            time.Time `json:"at"`
}

// InvoiceResubmittedEvent is recorded when a rejected or held invoice is edited and sent back for approval
type InvoiceResubmittedEvent struct {
	InvoiceID uint           `json:"invoice_id"`
	TenantID  uint           `json:"tenant_id"`
	From      ApprovalStatus `json:"from"`
	Total     float64        `json:"total"`
	ActorID   uint           `json:"actor_id"`
	At        time.Time      `json:"at"`
}

// ApprovalChangedEvent is recorded on every approval transition
type ApprovalChangedEvent struct {
	InvoiceID uint           `json:"invoice_id"`
	TenantID  uint           `json:"tenant_id"`
	From      ApprovalStatus `json:"from"`
	To        ApprovalStatus `json:"to"`
	Action    ApprovalAction `json:"action"`
	Reason    *string        `json:"reason,omitempty"`
	ActorID   uint           `json:"actor_id"`
	At        time.Time      `json:"at"`
}

// Delivery Events

// DeliverySentEvent records the first send of an invoice email
type DeliverySentEvent struct {
	InvoiceID uint      `json:"invoice_id"`
	Recipient string    `json:"recipient"`
	MessageID string    `json:"message_id"`
	ActorID   uint      `json:"actor_id"`
	At        time.Time `json:"at"`
}

// DeliveryDeliveredEvent records a delivery confirmation
type DeliveryDeliveredEvent struct {
	InvoiceID uint      `json:"invoice_id"`
	Source    string    `json:"source"`
	At        time.Time `json:"at"`
}

// DeliveryOpenedEvent records the recipient opening the invoice
type DeliveryOpenedEvent struct {
	InvoiceID uint      `json:"invoice_id"`
	Source    string    `json:"source"`
	IP        string    `json:"ip,omitempty"`
	UserAgent string    `json:"user_agent,omitempty"`
	At        time.Time `json:"at"`
}

// DeliveryFailedEvent records a delivery failure
type DeliveryFailedEvent struct {
	InvoiceID uint      `json:"invoice_id"`
	Reason    string    `json:"reason"`
	Source    string    `json:"source"`
	At        time.Time `json:"at"`
}

// DeliveryResentEvent records an administrator retrying a failed delivery
type DeliveryResentEvent struct {
	InvoiceID uint      `json:"invoice_id"`
	Recipient string    `json:"recipient"`
	MessageID string    `json:"message_id"`
	ActorID   uint      `json:"actor_id"`
	At        time.Time `json:"at"`
}

// DeliveryResetEvent records an administrator moving delivery back to pending
type DeliveryResetEvent struct {
	InvoiceID uint      `json:"invoice_id"`
	ActorID   uint      `json:"actor_id"`
	At        time.Time `json:"at"`
}
