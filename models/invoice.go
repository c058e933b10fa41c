package models

import (
	"time"
)

// Invoice is a billing document. The client billing details are a snapshot
// taken at creation or resubmission.
type Invoice struct {
	ID             uint          `gorm:"primaryKey" json:"id"`
	TenantID       uint          `gorm:"not null;uniqueIndex:idx_tenant_invoice_number,priority:1" json:"tenant_id"`
	InvoiceNumber  string        `gorm:"not null;size:32;uniqueIndex:idx_tenant_invoice_number,priority:2" json:"invoice_number"`
	ClientID       *uint         `gorm:"index" json:"client_id"`
	ClientName     string        `gorm:"size:80;not null" json:"client_name"`
	Email          string        `gorm:"size:120;index" json:"email"`
	Phone          string        `gorm:"size:32" json:"phone"`
	Address        string        `gorm:"size:200" json:"address"`
	IssueDate      time.Time     `json:"issue_date"`
	DueDate        time.Time     `json:"due_date"`
	Notes          string        `gorm:"size:2000" json:"notes"`
	Subtotal       float64       `json:"subtotal"`
	Tax            float64       `json:"tax"`
	Total          float64       `json:"total"`
	ApprovalStatus string        `gorm:"size:16;not null;default:pending;index" json:"approval_status"`
	ApprovalReason *string       `gorm:"size:500" json:"approval_reason"`
	ApproverID     *uint         `json:"approver_id"`
	ApprovalDate   *time.Time    `json:"approval_date"`
	CreatedBy      uint          `json:"created_by"`
	Items          []InvoiceItem `gorm:"constraint:OnDelete:CASCADE" json:"items"`
	CreatedAt      time.Time     `json:"created_at"`
	UpdatedAt      time.Time     `json:"updated_at"`
}

// InvoiceItem is one line of an invoice
type InvoiceItem struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	InvoiceID   uint      `gorm:"index;not null" json:"invoice_id"`
	Position    int       `json:"position"`
	Description string    `gorm:"size:200;not null" json:"description"`
	Quantity    float64   `json:"quantity"`
	Rate        float64   `json:"rate"`
	Total       float64   `json:"total"`
	CreatedAt   time.Time `json:"created_at"`
}
