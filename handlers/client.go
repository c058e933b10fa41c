package handlers

import (
	"context"
	"fmt"
	"strings"

	"github.com/pbravv456123-lgtm/fourvoice-integrated/domain"
	"github.com/pbravv456123-lgtm/fourvoice-integrated/models"
	"github.com/pbravv456123-lgtm/fourvoice-integrated/repository"
)

type ClientCommand struct {
	Name    string `json:"name" validate:"required,max=80"`
	Email   string `json:"email" validate:"omitempty,email,max=120"`
	Phone   string `json:"phone" validate:"max=32"`
	Address string `json:"address" validate:"max=200"`
}

type ClientHandler struct {
	repo repository.Repository
}

func NewClientHandler(repo repository.Repository) *ClientHandler {
	return &ClientHandler{repo: repo}
}

func (h *ClientHandler) HandleCreateClient(ctx context.Context, actor domain.ActorContext, cmd ClientCommand) (*models.Client, error) {
	phone, verr := clientPhone(cmd)
	if verr.HasErrors() {
		return nil, verr
	}
	client := &models.Client{TenantID: actor.TenantID}
	applyClientCommand(client, cmd, phone)
	if err := h.repo.CreateClient(ctx, client); err != nil {
		return nil, fmt.Errorf("failed to create client: %w", err)
	}
	return client, nil
}

func (h *ClientHandler) HandleUpdateClient(ctx context.Context, actor domain.ActorContext, id uint, cmd ClientCommand) (*models.Client, error) {
	phone, verr := clientPhone(cmd)
	if verr.HasErrors() {
		return nil, verr
	}
	client, err := h.repo.FindClient(ctx, actor.TenantID, id)
	if err != nil {
		return nil, notFound(err)
	}
	applyClientCommand(client, cmd, phone)
	if err := h.repo.UpdateClient(ctx, client); err != nil {
		return nil, fmt.Errorf("failed to update client: %w", err)
	}
	return client, nil
}

func (h *ClientHandler) HandleDeleteClient(ctx context.Context, actor domain.ActorContext, id uint) error {
	return notFound(h.repo.DeleteClient(ctx, actor.TenantID, id))
}

func (h *ClientHandler) GetClient(ctx context.Context, actor domain.ActorContext, id uint) (*models.Client, error) {
	client, err := h.repo.FindClient(ctx, actor.TenantID, id)
	if err != nil {
		return nil, notFound(err)
	}
	return client, nil
}

func (h *ClientHandler) ListClients(ctx context.Context, actor domain.ActorContext) ([]models.Client, error) {
	return h.repo.ListClients(ctx, actor.TenantID)
}

// clientPhone validates cmd and returns its phone in E.164 form
func clientPhone(cmd ClientCommand) (string, *domain.ValidationError) {
	verr := validationFrom(cmd)
	phone, phoneErr := domain.NormalizePhone(cmd.Phone)
	verr.Merge(phoneErr)
	return phone, verr
}

func applyClientCommand(client *models.Client, cmd ClientCommand, phone string) {
	client.Name = strings.TrimSpace(cmd.Name)
	client.Email = strings.TrimSpace(cmd.Email)
	client.Phone = phone
	client.Address = strings.TrimSpace(cmd.Address)
}
