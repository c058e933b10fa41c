package repository

import (
	"context"
	"errors"
	"strings"

	"gorm.io/gorm"

	"github.com/pbravv456123-lgtm/fourvoice-integrated/eventstore"
	"github.com/pbravv456123-lgtm/fourvoice-integrated/models"
)

var (
	// ErrNotFound is returned when a record does not exist in the requested scope
	ErrNotFound = errors.New("record not found")
	// ErrDuplicateKey is returned when a unique constraint is violated
	ErrDuplicateKey = errors.New("duplicate key")
)

// InvoiceFilter narrows invoice listings
type InvoiceFilter struct {
	ApprovalStatus string
	Limit          int
	Offset         int
}

// Repository provides data access methods for the invoice ledger
type Repository interface {
	// Transaction support
	WithTransaction(ctx context.Context, fn func(ctx context.Context, txRepo Repository) error) error

	// Events returns the event store bound to this repository's connection
	Events() eventstore.EventStore

	// Invoice operations
	CreateInvoice(ctx context.Context, invoice *models.Invoice) error
	UpdateInvoice(ctx context.Context, invoice *models.Invoice) error
	ReplaceInvoiceItems(ctx context.Context, invoiceID uint, items []models.InvoiceItem) error
	FindInvoice(ctx context.Context, tenantID, id uint) (*models.Invoice, error)
	FindInvoiceByID(ctx context.Context, id uint) (*models.Invoice, error)
	FindLatestApprovedInvoiceByEmail(ctx context.Context, email string) (*models.Invoice, error)
	ListInvoices(ctx context.Context, tenantID uint, filter InvoiceFilter) ([]models.Invoice, error)
	InvoiceNumberExists(ctx context.Context, tenantID uint, number string) (bool, error)
	LastInvoiceSequence(ctx context.Context, tenantID uint, year int) (int, error)

	// Client operations
	CreateClient(ctx context.Context, client *models.Client) error
	UpdateClient(ctx context.Context, client *models.Client) error
	FindClient(ctx context.Context, tenantID, id uint) (*models.Client, error)
	ListClients(ctx context.Context, tenantID uint) ([]models.Client, error)
	DeleteClient(ctx context.Context, tenantID, id uint) error

	// Audit log operations
	AppendAuditLog(ctx context.Context, entry *models.AuditLog) error
	ListAuditLogs(ctx context.Context, tenantID uint) ([]models.AuditLog, error)
	ListAuditTenants(ctx context.Context) ([]uint, error)

	// Webhook journal operations
	SaveWebhookEvent(ctx context.Context, event *models.WebhookEvent) error
	UpdateWebhookEvent(ctx context.Context, event *models.WebhookEvent) error
	FindWebhookEvent(ctx context.Context, provider, messageID, eventType string) (*models.WebhookEvent, error)
}

// repo is an implementation of the Repository interface
type repo struct {
	db     *gorm.DB
	events *eventstore.GormEventStore
}

// NewRepository creates a new repository instance
func NewRepository(db *gorm.DB) Repository {
	return &repo{
		db:     db,
		events: eventstore.NewGormEventStore(db),
	}
}

// WithTransaction executes the given function within a database transaction.
// fn must only use txRepo; the outer repository is not part of the transaction.
func (r *repo) WithTransaction(ctx context.Context, fn func(ctx context.Context, txRepo Repository) error) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		txRepo := &repo{
			db:     tx,
			events: r.events.WithTx(tx),
		}
		return fn(ctx, txRepo)
	})
}

func (r *repo) Events() eventstore.EventStore {
	return r.events
}

// translate maps driver errors onto the repository sentinels
func translate(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return ErrDuplicateKey
	}
	msg := err.Error()
	if strings.Contains(msg, "UNIQUE constraint failed") || strings.Contains(msg, "duplicate key value") {
		return ErrDuplicateKey
	}
	return err
}
