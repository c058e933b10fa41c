package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/pbravv456123-lgtm/fourvoice-integrated/domain"
	"github.com/pbravv456123-lgtm/fourvoice-integrated/models"
)

// DefaultListLimit caps a single listing page
const DefaultListLimit = 100

func orderItems(db *gorm.DB) *gorm.DB {
	return db.Order("position ASC")
}

func (r *repo) CreateInvoice(ctx context.Context, invoice *models.Invoice) error {
	return translate(r.db.WithContext(ctx).Create(invoice).Error)
}

// UpdateInvoice saves the invoice row. Items are managed by ReplaceInvoiceItems.
func (r *repo) UpdateInvoice(ctx context.Context, invoice *models.Invoice) error {
	return translate(r.db.WithContext(ctx).Omit("Items").Save(invoice).Error)
}

func (r *repo) ReplaceInvoiceItems(ctx context.Context, invoiceID uint, items []models.InvoiceItem) error {
	if err := r.db.WithContext(ctx).Where("invoice_id = ?", invoiceID).Delete(&models.InvoiceItem{}).Error; err != nil {
		return translate(err)
	}
	if len(items) == 0 {
		return nil
	}
	for i := range items {
		items[i].ID = 0
		items[i].InvoiceID = invoiceID
	}
	return translate(r.db.WithContext(ctx).Create(&items).Error)
}

func (r *repo) FindInvoice(ctx context.Context, tenantID, id uint) (*models.Invoice, error) {
	var invoice models.Invoice
	err := r.db.WithContext(ctx).
		Preload("Items", orderItems).
		Where("tenant_id = ?", tenantID).
		First(&invoice, id).Error
	if err != nil {
		return nil, translate(err)
	}
	return &invoice, nil
}

func (r *repo) FindInvoiceByID(ctx context.Context, id uint) (*models.Invoice, error) {
	var invoice models.Invoice
	err := r.db.WithContext(ctx).
		Preload("Items", orderItems).
		First(&invoice, id).Error
	if err != nil {
		return nil, translate(err)
	}
	return &invoice, nil
}

// FindLatestApprovedInvoiceByEmail returns the newest approved invoice addressed to email, in any tenant
func (r *repo) FindLatestApprovedInvoiceByEmail(ctx context.Context, email string) (*models.Invoice, error) {
	var invoice models.Invoice
	err := r.db.WithContext(ctx).
		Where("LOWER(email) = LOWER(?) AND approval_status = ?", email, string(domain.ApprovalApproved)).
		Order("id DESC").
		First(&invoice).Error
	if err != nil {
		return nil, translate(err)
	}
	return &invoice, nil
}

func (r *repo) ListInvoices(ctx context.Context, tenantID uint, filter InvoiceFilter) ([]models.Invoice, error) {
	limit := filter.Limit
	if limit <= 0 || limit > DefaultListLimit {
		limit = DefaultListLimit
	}

	query := r.db.WithContext(ctx).
		Preload("Items", orderItems).
		Where("tenant_id = ?", tenantID)
	if filter.ApprovalStatus != "" {
		query = query.Where("approval_status = ?", filter.ApprovalStatus)
	}

	var invoices []models.Invoice
	if err := query.Order("id DESC").Limit(limit).Offset(filter.Offset).Find(&invoices).Error; err != nil {
		return nil, translate(err)
	}
	return invoices, nil
}

func (r *repo) InvoiceNumberExists(ctx context.Context, tenantID uint, number string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.Invoice{}).
		Where("tenant_id = ? AND invoice_number = ?", tenantID, number).
		Count(&count).Error
	if err != nil {
		return false, translate(err)
	}
	return count > 0, nil
}

// LastInvoiceSequence returns the highest generated sequence for the tenant and year, or 0
func (r *repo) LastInvoiceSequence(ctx context.Context, tenantID uint, year int) (int, error) {
	var numbers []string
	err := r.db.WithContext(ctx).
		Model(&models.Invoice{}).
		Where("tenant_id = ? AND invoice_number LIKE ?", tenantID, domain.InvoiceNumberPrefix(year)+"%").
		Pluck("invoice_number", &numbers).Error
	if err != nil {
		return 0, translate(err)
	}

	last := 0
	for _, number := range numbers {
		if seq, ok := domain.ParseInvoiceSequence(number, year); ok && seq > last {
			last = seq
		}
	}
	return last, nil
}
