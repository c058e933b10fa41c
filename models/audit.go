package models

import (
	"time"
)

// AuditLog is an append-only record of an invoice lifecycle action
type AuditLog struct {
	ID            uint      `gorm:"primaryKey" json:"id"`
	TenantID      uint      `gorm:"index;not null" json:"tenant_id"`
	InvoiceID     *uint     `gorm:"index" json:"invoice_id"`
	InvoiceNumber string    `gorm:"size:32;index" json:"invoice_number"`
	ClientName    string    `gorm:"size:80" json:"client_name"`
	Action        string    `gorm:"size:64;not null" json:"action"`
	Amount        float64   `json:"amount"`
	Status        string    `gorm:"size:16" json:"status"`
	Actor         string    `gorm:"size:32" json:"actor"`
	Timestamp     time.Time `gorm:"index" json:"timestamp"`
}

// WebhookEvent journals every accepted provider callback.
// A provider message is processed at most once per event type.
type WebhookEvent struct {
	ID          uint       `gorm:"primaryKey" json:"id"`
	Provider    string     `gorm:"size:32;not null;uniqueIndex:idx_webhook_message,priority:1" json:"provider"`
	MessageID   string     `gorm:"size:128;not null;uniqueIndex:idx_webhook_message,priority:2" json:"message_id"`
	EventType   string     `gorm:"size:32;not null;uniqueIndex:idx_webhook_message,priority:3" json:"event_type"`
	Recipient   string     `gorm:"size:120" json:"recipient"`
	InvoiceID   *uint      `gorm:"index" json:"invoice_id"`
	Payload     []byte     `json:"-"`
	Outcome     string     `gorm:"size:32" json:"outcome"`
	Error       *string    `gorm:"type:text" json:"error,omitempty"`
	ProcessedAt *time.Time `json:"processed_at"`
	CreatedAt   time.Time  `json:"created_at"`
}

// All returns every model for migration
func All() []interface{} {
	return []interface{}{
		&Event{},
		&Client{},
		&Invoice{},
		&InvoiceItem{},
		&AuditLog{},
		&WebhookEvent{},
	}
}
