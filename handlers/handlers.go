package handlers

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/pbravv456123-lgtm/fourvoice-integrated/cache"
	"github.com/pbravv456123-lgtm/fourvoice-integrated/domain"
	"github.com/pbravv456123-lgtm/fourvoice-integrated/models"
	"github.com/pbravv456123-lgtm/fourvoice-integrated/repository"
	"github.com/pbravv456123-lgtm/fourvoice-integrated/utils"
)

// InvoiceCache holds invoice detail views
type InvoiceCache interface {
	Get(ctx context.Context, key string, value interface{}) error
	Set(ctx context.Context, key string, value interface{}) error
	Delete(ctx context.Context, keys ...string) error
}

// invalidate drops the cached view of an invoice. Failures only cost freshness.
func invalidate(ctx context.Context, c InvoiceCache, tenantID, invoiceID uint) {
	if c == nil {
		return
	}
	if err := c.Delete(ctx, cache.InvoiceCacheKey(tenantID, invoiceID)); err != nil {
		log.Warn().Err(err).Uint("invoiceID", invoiceID).Msg("Failed to invalidate cached invoice")
	}
}

// notFound maps a repository miss onto the domain error
func notFound(err error) error {
	if errors.Is(err, repository.ErrNotFound) {
		return domain.ErrNotFound
	}
	return err
}

// validationFrom converts validator tag failures into a domain validation error
func validationFrom(cmd interface{}) *domain.ValidationError {
	verr := &domain.ValidationError{}
	if err := utils.ValidateStruct(cmd); err != nil {
		for field, msg := range utils.FieldErrors(err) {
			verr.Add(field, msg)
		}
	}
	return verr
}

func newAuditEntry(invoice *models.Invoice, action, status, actor string) *models.AuditLog {
	invoiceID := invoice.ID
	return &models.AuditLog{
		TenantID:      invoice.TenantID,
		InvoiceID:     &invoiceID,
		InvoiceNumber: invoice.InvoiceNumber,
		ClientName:    invoice.ClientName,
		Action:        action,
		Amount:        invoice.Total,
		Status:        status,
		Actor:         actor,
		Timestamp:     time.Now().UTC(),
	}
}

// recordInvoiceEvent appends an event to the invoice stream
func recordInvoiceEvent(ctx context.Context, tx repository.Repository, invoiceID uint, event interface{}) error {
	agg := domain.NewInvoiceAggregate(invoiceID)
	if err := tx.Events().Load(ctx, agg); err != nil {
		return fmt.Errorf("failed to load invoice stream: %w", err)
	}
	if err := agg.Apply(event); err != nil {
		return err
	}
	if err := tx.Events().Save(ctx, agg); err != nil {
		return fmt.Errorf("failed to save invoice event: %w", err)
	}
	return nil
}

// loadDelivery replays the delivery stream of an invoice
func loadDelivery(ctx context.Context, repo repository.Repository, invoiceID uint) (*domain.DeliveryAggregate, error) {
	agg := domain.NewDeliveryAggregate(invoiceID)
	if err := repo.Events().Load(ctx, agg); err != nil {
		return nil, fmt.Errorf("failed to load delivery stream: %w", err)
	}
	return agg, nil
}

// toLineItems converts stored items back to domain items
func toLineItems(items []models.InvoiceItem) []domain.LineItem {
	out := make([]domain.LineItem, len(items))
	for i, item := range items {
		out[i] = domain.LineItem{Description: item.Description, Quantity: item.Quantity, Rate: item.Rate}
	}
	return out
}

// toModelItems converts domain items into rows ordered by position
func toModelItems(items []domain.LineItem) []models.InvoiceItem {
	out := make([]models.InvoiceItem, len(items))
	for i, item := range items {
		out[i] = models.InvoiceItem{
			Position:    i,
			Description: item.Description,
			Quantity:    item.Quantity,
			Rate:        item.Rate,
			Total:       item.Total(),
		}
	}
	return out
}
