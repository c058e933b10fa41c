package repository

import (
	"context"

	"github.com/pbravv456123-lgtm/fourvoice-integrated/models"
)

func (r *repo) CreateClient(ctx context.Context, client *models.Client) error {
	return translate(r.db.WithContext(ctx).Create(client).Error)
}

func (r *repo) UpdateClient(ctx context.Context, client *models.Client) error {
	return translate(r.db.WithContext(ctx).Save(client).Error)
}

func (r *repo) FindClient(ctx context.Context, tenantID, id uint) (*models.Client, error) {
	var client models.Client
	if err := r.db.WithContext(ctx).Where("tenant_id = ?", tenantID).First(&client, id).Error; err != nil {
		return nil, translate(err)
	}
	return &client, nil
}

func (r *repo) ListClients(ctx context.Context, tenantID uint) ([]models.Client, error) {
	var clients []models.Client
	if err := r.db.WithContext(ctx).Where("tenant_id = ?", tenantID).Order("name ASC").Find(&clients).Error; err != nil {
		return nil, translate(err)
	}
	return clients, nil
}

// DeleteClient soft-deletes a client. Invoices keep their billing snapshot.
func (r *repo) DeleteClient(ctx context.Context, tenantID, id uint) error {
	result := r.db.WithContext(ctx).Where("tenant_id = ?", tenantID).Delete(&models.Client{}, id)
	if result.Error != nil {
		return translate(result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}
