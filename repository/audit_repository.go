package repository

import (
	"context"
	"time"

	"github.com/pbravv456123-lgtm/fourvoice-integrated/models"
)

// AppendAuditLog inserts an audit entry. Entries are never updated.
func (r *repo) AppendAuditLog(ctx context.Context, entry *models.AuditLog) error {
	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now().UTC()
	}
	return translate(r.db.WithContext(ctx).Create(entry).Error)
}

// ListAuditLogs returns a tenant's audit entries oldest first
func (r *repo) ListAuditLogs(ctx context.Context, tenantID uint) ([]models.AuditLog, error) {
	var entries []models.AuditLog
	if err := r.db.WithContext(ctx).
		Where("tenant_id = ?", tenantID).
		Order("timestamp ASC, id ASC").
		Find(&entries).Error; err != nil {
		return nil, translate(err)
	}
	return entries, nil
}

// ListAuditTenants returns every tenant with at least one audit entry
func (r *repo) ListAuditTenants(ctx context.Context) ([]uint, error) {
	var tenants []uint
	if err := r.db.WithContext(ctx).
		Model(&models.AuditLog{}).
		Distinct("tenant_id").
		Order("tenant_id ASC").
		Pluck("tenant_id", &tenants).Error; err != nil {
		return nil, translate(err)
	}
	return tenants, nil
}

// SaveWebhookEvent journals a provider callback. A replay of the same
// provider message and event type returns ErrDuplicateKey.
func (r *repo) SaveWebhookEvent(ctx context.Context, event *models.WebhookEvent) error {
	var count int64
	if err := r.db.WithContext(ctx).
		Model(&models.WebhookEvent{}).
		Where("provider = ? AND message_id = ? AND event_type = ?", event.Provider, event.MessageID, event.EventType).
		Count(&count).Error; err != nil {
		return translate(err)
	}
	if count > 0 {
		return ErrDuplicateKey
	}
	return translate(r.db.WithContext(ctx).Create(event).Error)
}

func (r *repo) UpdateWebhookEvent(ctx context.Context, event *models.WebhookEvent) error {
	return translate(r.db.WithContext(ctx).Save(event).Error)
}

// FindWebhookEvent returns the journal row of a provider message and event type
func (r *repo) FindWebhookEvent(ctx context.Context, provider, messageID, eventType string) (*models.WebhookEvent, error) {
	var event models.WebhookEvent
	if err := r.db.WithContext(ctx).
		Where("provider = ? AND message_id = ? AND event_type = ?", provider, messageID, eventType).
		First(&event).Error; err != nil {
		return nil, translate(err)
	}
	return &event, nil
}
