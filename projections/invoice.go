package projections

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/elastic/go-elasticsearch/v7"

	"github.com/pbravv456123-lgtm/fourvoice-integrated/config"
	"github.com/pbravv456123-lgtm/fourvoice-integrated/domain"
	"github.com/pbravv456123-lgtm/fourvoice-integrated/models"
	"github.com/pbravv456123-lgtm/fourvoice-integrated/repository"
)

// InvoiceDocument is the searchable read model of an invoice
type InvoiceDocument struct {
	InvoiceID      uint      `json:"invoice_id"`
	TenantID       uint      `json:"tenant_id"`
	InvoiceNumber  string    `json:"invoice_number"`
	ClientName     string    `json:"client_name"`
	Email          string    `json:"email"`
	Notes          string    `json:"notes"`
	Items          []string  `json:"items"`
	Total          float64   `json:"total"`
	ApprovalStatus string    `json:"approval_status"`
	DeliveryStatus string    `json:"delivery_status"`
	IssueDate      time.Time `json:"issue_date"`
	DueDate        time.Time `json:"due_date"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// EventDocument is an indexed copy of a stored event
type EventDocument struct {
	EventID       string      `json:"event_id"`
	InvoiceID     uint        `json:"invoice_id"`
	TenantID      uint        `json:"tenant_id"`
	AggregateType string      `json:"aggregate_type"`
	Type          string      `json:"type"`
	Version       int         `json:"version"`
	Timestamp     time.Time   `json:"timestamp"`
	Data          interface{} `json:"data"`
}

// InvoiceProjector keeps the invoice search index in step with the ledger.
// Every event re-reads the invoice, so replays converge on the same document.
type InvoiceProjector struct {
	repo          repository.Repository
	elasticClient *elasticsearch.Client
	cfg           config.ElasticConfig
}

// NewInvoiceProjector creates a new invoice projector
func NewInvoiceProjector(repo repository.Repository, elasticClient *elasticsearch.Client, cfg config.ElasticConfig) *InvoiceProjector {
	return &InvoiceProjector{
		repo:          repo,
		elasticClient: elasticClient,
		cfg:           cfg,
	}
}

func (p *InvoiceProjector) Name() string {
	return "elasticsearch"
}

// Project indexes the invoice touched by an event and the event itself
func (p *InvoiceProjector) Project(ctx context.Context, event domain.Event) error {
	invoiceID, err := domain.ParseAggregateID(event.AggregateID)
	if err != nil {
		return err
	}

	invoice, err := p.repo.FindInvoiceByID(ctx, invoiceID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil
		}
		return fmt.Errorf("failed to load invoice: %w", err)
	}

	delivery := domain.NewDeliveryAggregate(invoiceID)
	if err := p.repo.Events().Load(ctx, delivery); err != nil {
		return fmt.Errorf("failed to load delivery stream: %w", err)
	}

	doc := BuildInvoiceDocument(invoice, delivery.State)
	if err := p.index(ctx, InvoicesIndex, domain.AggregateID(invoiceID), doc); err != nil {
		return err
	}

	return p.index(ctx, InvoiceEventsIndex, event.ID, EventDocument{
		EventID:       event.ID,
		InvoiceID:     invoiceID,
		TenantID:      invoice.TenantID,
		AggregateType: event.AggregateType,
		Type:          event.Type,
		Version:       event.Version,
		Timestamp:     event.Timestamp,
		Data:          event.Data,
	})
}

// BuildInvoiceDocument flattens an invoice and its delivery log
func BuildInvoiceDocument(invoice *models.Invoice, delivery domain.DeliveryState) InvoiceDocument {
	items := make([]string, len(invoice.Items))
	for i, item := range invoice.Items {
		items[i] = item.Description
	}
	return InvoiceDocument{
		InvoiceID:      invoice.ID,
		TenantID:       invoice.TenantID,
		InvoiceNumber:  invoice.InvoiceNumber,
		ClientName:     invoice.ClientName,
		Email:          invoice.Email,
		Notes:          invoice.Notes,
		Items:          items,
		Total:          invoice.Total,
		ApprovalStatus: invoice.ApprovalStatus,
		DeliveryStatus: string(delivery.EffectiveStatus()),
		IssueDate:      invoice.IssueDate,
		DueDate:        invoice.DueDate,
		UpdatedAt:      invoice.UpdatedAt,
	}
}

func (p *InvoiceProjector) index(ctx context.Context, indexName, id string, doc interface{}) error {
	body, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("failed to marshal document: %w", err)
	}

	index := config.FormatIndex(p.cfg, indexName)
	res, err := p.elasticClient.Index(
		index,
		bytes.NewReader(body),
		p.elasticClient.Index.WithDocumentID(id),
		p.elasticClient.Index.WithRefresh("true"),
		p.elasticClient.Index.WithContext(ctx),
	)
	if err != nil {
		return fmt.Errorf("failed to index document in %s: %w", index, err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return fmt.Errorf("failed to index document in %s: %s", index, res.String())
	}
	return nil
}
